package pdu

import (
	dlms "github.com/openmetering/godlms"
	"github.com/openmetering/godlms/pkg/axdr"
)

// EventNotification is an unsolicited attribute report from the
// server. It carries no invoke id.
type EventNotification struct {
	Time      *axdr.DateTime
	Attribute dlms.AttributeDescriptor
	Value     axdr.Data
}

func (p EventNotification) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, TagEventNotification)
	if p.Time == nil {
		dst = append(dst, 0x00)
	} else {
		dst = append(dst, 0x01)
		dst = p.Time.Encode(dst)
	}
	dst = encodeAttributeDescriptor(dst, p.Attribute)
	return axdr.Append(dst, p.Value)
}

func decodeEventNotification(buf []byte) (PDU, error) {
	if len(buf) < 1 {
		return nil, dlms.NewError(dlms.KindInvalidData, "event-notification: truncated")
	}
	var notification EventNotification
	pos := 1
	if buf[0] == 0x01 {
		if len(buf) < 13 {
			return nil, dlms.NewError(dlms.KindInvalidData, "event-notification: truncated time")
		}
		when, err := axdr.DecodeDateTime(buf[1:13])
		if err != nil {
			return nil, err
		}
		notification.Time = &when
		pos = 13
	}
	attr, n, err := decodeAttributeDescriptor(buf[pos:])
	if err != nil {
		return nil, err
	}
	pos += n
	value, _, err := axdr.Decode(buf[pos:])
	if err != nil {
		return nil, err
	}
	notification.Attribute = attr
	notification.Value = value
	return notification, nil
}

// State and service errors of the exception response.
const (
	StateErrorServiceNotAllowed uint8 = 1
	StateErrorServiceUnknown    uint8 = 2

	ServiceErrorOperationNotPossible uint8 = 1
	ServiceErrorNotSupported         uint8 = 2
	ServiceErrorOtherReason          uint8 = 3
)

// ExceptionResponse signals a service layer failure outside the
// normal result taxonomy.
type ExceptionResponse struct {
	StateError   uint8
	ServiceError uint8
}

func (p ExceptionResponse) Encode(dst []byte) ([]byte, error) {
	return append(dst, TagExceptionResponse, p.StateError, p.ServiceError), nil
}

func decodeExceptionResponse(buf []byte) (PDU, error) {
	if len(buf) < 2 {
		return nil, dlms.NewError(dlms.KindInvalidData, "exception-response: truncated")
	}
	return ExceptionResponse{StateError: buf[0], ServiceError: buf[1]}, nil
}
