package pdu

import (
	"encoding/binary"

	dlms "github.com/openmetering/godlms"
	"github.com/openmetering/godlms/pkg/axdr"
)

// SelectiveAccess narrows an attribute access to a range or set of
// entries. The parameters are interpreted by the target object.
type SelectiveAccess struct {
	Selector   uint8
	Parameters axdr.Data
}

func encodeAttributeDescriptor(dst []byte, d dlms.AttributeDescriptor) []byte {
	dst = binary.BigEndian.AppendUint16(dst, d.ClassId)
	dst = append(dst, d.InstanceId[:]...)
	return append(dst, byte(d.AttributeId))
}

func decodeAttributeDescriptor(buf []byte) (dlms.AttributeDescriptor, int, error) {
	if len(buf) < 9 {
		return dlms.AttributeDescriptor{}, 0, dlms.NewError(dlms.KindInvalidData, "attribute descriptor: truncated")
	}
	obis, err := dlms.ObisCodeFromBytes(buf[2:8])
	if err != nil {
		return dlms.AttributeDescriptor{}, 0, err
	}
	return dlms.AttributeDescriptor{
		ClassId:     binary.BigEndian.Uint16(buf),
		InstanceId:  obis,
		AttributeId: int8(buf[8]),
	}, 9, nil
}

func encodeMethodDescriptor(dst []byte, d dlms.MethodDescriptor) []byte {
	dst = binary.BigEndian.AppendUint16(dst, d.ClassId)
	dst = append(dst, d.InstanceId[:]...)
	return append(dst, byte(d.MethodId))
}

func decodeMethodDescriptor(buf []byte) (dlms.MethodDescriptor, int, error) {
	if len(buf) < 9 {
		return dlms.MethodDescriptor{}, 0, dlms.NewError(dlms.KindInvalidData, "method descriptor: truncated")
	}
	obis, err := dlms.ObisCodeFromBytes(buf[2:8])
	if err != nil {
		return dlms.MethodDescriptor{}, 0, err
	}
	return dlms.MethodDescriptor{
		ClassId:    binary.BigEndian.Uint16(buf),
		InstanceId: obis,
		MethodId:   int8(buf[8]),
	}, 9, nil
}

func encodeSelectiveAccess(dst []byte, sa *SelectiveAccess) ([]byte, error) {
	if sa == nil {
		return append(dst, 0x00), nil
	}
	dst = append(dst, 0x01, sa.Selector)
	return axdr.Append(dst, sa.Parameters)
}

func decodeSelectiveAccess(buf []byte) (*SelectiveAccess, int, error) {
	if len(buf) < 1 {
		return nil, 0, dlms.NewError(dlms.KindInvalidData, "selective access: truncated")
	}
	if buf[0] == 0x00 {
		return nil, 1, nil
	}
	if len(buf) < 2 {
		return nil, 0, dlms.NewError(dlms.KindInvalidData, "selective access: truncated")
	}
	params, n, err := axdr.Decode(buf[2:])
	if err != nil {
		return nil, 0, err
	}
	return &SelectiveAccess{Selector: buf[1], Parameters: params}, n + 2, nil
}

// decodeCount reads a list element count in A-XDR length form.
func decodeCount(buf []byte) (int, int, error) {
	return axdr.DecodeLength(buf)
}

func decodeInvoke(buf []byte) (InvokeIdAndPriority, error) {
	if len(buf) < 1 {
		return 0, dlms.NewError(dlms.KindInvalidData, "pdu: missing invoke-id-and-priority")
	}
	return InvokeIdAndPriority(buf[0]), nil
}
