// Package pdu implements the COSEM application layer PDUs: the
// GET/SET/ACTION request and response families with their block
// transfer and list variants, event notifications, access requests
// and the exception response.
package pdu

import (
	dlms "github.com/openmetering/godlms"
)

// Application PDU tags.
const (
	TagGetRequest        byte = 0xC0
	TagSetRequest        byte = 0xC1
	TagEventNotification byte = 0xC2
	TagActionRequest     byte = 0xC3
	TagGetResponse       byte = 0xC4
	TagSetResponse       byte = 0xC5
	TagActionResponse    byte = 0xC7
	TagExceptionResponse byte = 0xD8
	TagAccessRequest     byte = 0xD9
	TagAccessResponse    byte = 0xDA
)

// PDU is one application layer message.
type PDU interface {
	// Encode appends the full wire form, tag included.
	Encode(dst []byte) ([]byte, error)
}

// Decode parses one application PDU, dispatching on the leading tag.
func Decode(buf []byte) (PDU, error) {
	if len(buf) < 2 {
		return nil, dlms.NewError(dlms.KindInvalidData, "pdu: truncated")
	}
	switch buf[0] {
	case TagGetRequest:
		return decodeGetRequest(buf[1:])
	case TagGetResponse:
		return decodeGetResponse(buf[1:])
	case TagSetRequest:
		return decodeSetRequest(buf[1:])
	case TagSetResponse:
		return decodeSetResponse(buf[1:])
	case TagActionRequest:
		return decodeActionRequest(buf[1:])
	case TagActionResponse:
		return decodeActionResponse(buf[1:])
	case TagEventNotification:
		return decodeEventNotification(buf[1:])
	case TagExceptionResponse:
		return decodeExceptionResponse(buf[1:])
	case TagAccessRequest:
		return decodeAccessRequest(buf[1:])
	case TagAccessResponse:
		return decodeAccessResponse(buf[1:])
	default:
		return nil, dlms.Errorf(dlms.KindProtocol, "pdu: unknown tag 0x%02X", buf[0])
	}
}

// Encode serializes one PDU from scratch.
func Encode(p PDU) ([]byte, error) {
	return p.Encode(nil)
}
