package pdu

import (
	"encoding/binary"

	dlms "github.com/openmetering/godlms"
	"github.com/openmetering/godlms/pkg/axdr"
)

// Access service specification choice tags.
const (
	tagAccessGet    byte = 0x01
	tagAccessSet    byte = 0x02
	tagAccessAction byte = 0x03
)

// AccessSpec is one operation of an access request: exactly one of
// the descriptors is set, selected by Kind.
type AccessSpec struct {
	Kind      byte // tagAccessGet, tagAccessSet or tagAccessAction
	Attribute dlms.AttributeDescriptor
	Method    dlms.MethodDescriptor
}

// AccessGetSpec selects an attribute read.
func AccessGetSpec(attr dlms.AttributeDescriptor) AccessSpec {
	return AccessSpec{Kind: tagAccessGet, Attribute: attr}
}

// AccessSetSpec selects an attribute write.
func AccessSetSpec(attr dlms.AttributeDescriptor) AccessSpec {
	return AccessSpec{Kind: tagAccessSet, Attribute: attr}
}

// AccessActionSpec selects a method invocation.
func AccessActionSpec(method dlms.MethodDescriptor) AccessSpec {
	return AccessSpec{Kind: tagAccessAction, Method: method}
}

func (s AccessSpec) encode(dst []byte) ([]byte, error) {
	switch s.Kind {
	case tagAccessGet, tagAccessSet:
		dst = append(dst, s.Kind)
		return encodeAttributeDescriptor(dst, s.Attribute), nil
	case tagAccessAction:
		dst = append(dst, s.Kind)
		return encodeMethodDescriptor(dst, s.Method), nil
	default:
		return nil, dlms.Errorf(dlms.KindInvalidData, "access spec: unknown kind 0x%02X", s.Kind)
	}
}

func decodeAccessSpec(buf []byte) (AccessSpec, int, error) {
	if len(buf) < 1 {
		return AccessSpec{}, 0, dlms.NewError(dlms.KindInvalidData, "access spec: truncated")
	}
	spec := AccessSpec{Kind: buf[0]}
	switch spec.Kind {
	case tagAccessGet, tagAccessSet:
		attr, n, err := decodeAttributeDescriptor(buf[1:])
		if err != nil {
			return AccessSpec{}, 0, err
		}
		spec.Attribute = attr
		return spec, n + 1, nil
	case tagAccessAction:
		method, n, err := decodeMethodDescriptor(buf[1:])
		if err != nil {
			return AccessSpec{}, 0, err
		}
		spec.Method = method
		return spec, n + 1, nil
	default:
		return AccessSpec{}, 0, dlms.Errorf(dlms.KindInvalidData, "access spec: unknown kind 0x%02X", spec.Kind)
	}
}

// AccessRequest bundles several operations under one long invoke id.
type AccessRequest struct {
	LongInvokeIdAndPriority uint32
	DateTime                []byte // octet-string form, empty when unused
	Specs                   []AccessSpec
	Values                  []axdr.Data
}

func (p AccessRequest) Encode(dst []byte) ([]byte, error) {
	if len(p.Specs) != len(p.Values) {
		return nil, dlms.NewError(dlms.KindInvalidData, "access-request: spec and value counts differ")
	}
	dst = append(dst, TagAccessRequest)
	dst = binary.BigEndian.AppendUint32(dst, p.LongInvokeIdAndPriority)
	dst = axdr.EncodeLength(dst, len(p.DateTime))
	dst = append(dst, p.DateTime...)
	dst = axdr.EncodeLength(dst, len(p.Specs))
	var err error
	for _, spec := range p.Specs {
		dst, err = spec.encode(dst)
		if err != nil {
			return nil, err
		}
	}
	dst = axdr.EncodeLength(dst, len(p.Values))
	for _, value := range p.Values {
		dst, err = axdr.Append(dst, value)
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func decodeAccessRequest(buf []byte) (PDU, error) {
	if len(buf) < 5 {
		return nil, dlms.NewError(dlms.KindInvalidData, "access-request: truncated")
	}
	request := AccessRequest{LongInvokeIdAndPriority: binary.BigEndian.Uint32(buf)}
	pos := 4
	timeLen, n, err := axdr.DecodeLength(buf[pos:])
	if err != nil {
		return nil, err
	}
	pos += n
	if len(buf) < pos+timeLen {
		return nil, dlms.NewError(dlms.KindInvalidData, "access-request: truncated date-time")
	}
	request.DateTime = append([]byte(nil), buf[pos:pos+timeLen]...)
	pos += timeLen

	count, n, err := decodeCount(buf[pos:])
	if err != nil {
		return nil, err
	}
	pos += n
	for i := 0; i < count; i++ {
		spec, consumed, err := decodeAccessSpec(buf[pos:])
		if err != nil {
			return nil, err
		}
		request.Specs = append(request.Specs, spec)
		pos += consumed
	}
	valueCount, n, err := decodeCount(buf[pos:])
	if err != nil {
		return nil, err
	}
	if valueCount != count {
		return nil, dlms.NewError(dlms.KindInvalidData, "access-request: list counts differ")
	}
	pos += n
	for i := 0; i < valueCount; i++ {
		value, consumed, err := axdr.Decode(buf[pos:])
		if err != nil {
			return nil, err
		}
		request.Values = append(request.Values, value)
		pos += consumed
	}
	return request, nil
}

// AccessResponse answers an access request positionally: one value
// and one result per requested operation.
type AccessResponse struct {
	LongInvokeIdAndPriority uint32
	DateTime                []byte
	Values                  []axdr.Data
	Results                 []AccessResult
}

func (p AccessResponse) Encode(dst []byte) ([]byte, error) {
	if len(p.Values) != len(p.Results) {
		return nil, dlms.NewError(dlms.KindInvalidData, "access-response: value and result counts differ")
	}
	dst = append(dst, TagAccessResponse)
	dst = binary.BigEndian.AppendUint32(dst, p.LongInvokeIdAndPriority)
	dst = axdr.EncodeLength(dst, len(p.DateTime))
	dst = append(dst, p.DateTime...)
	dst = axdr.EncodeLength(dst, len(p.Values))
	var err error
	for _, value := range p.Values {
		dst, err = axdr.Append(dst, value)
		if err != nil {
			return nil, err
		}
	}
	dst = axdr.EncodeLength(dst, len(p.Results))
	for _, result := range p.Results {
		dst = append(dst, byte(result))
	}
	return dst, nil
}

func decodeAccessResponse(buf []byte) (PDU, error) {
	if len(buf) < 5 {
		return nil, dlms.NewError(dlms.KindInvalidData, "access-response: truncated")
	}
	response := AccessResponse{LongInvokeIdAndPriority: binary.BigEndian.Uint32(buf)}
	pos := 4
	timeLen, n, err := axdr.DecodeLength(buf[pos:])
	if err != nil {
		return nil, err
	}
	pos += n
	if len(buf) < pos+timeLen {
		return nil, dlms.NewError(dlms.KindInvalidData, "access-response: truncated date-time")
	}
	response.DateTime = append([]byte(nil), buf[pos:pos+timeLen]...)
	pos += timeLen

	count, n, err := decodeCount(buf[pos:])
	if err != nil {
		return nil, err
	}
	pos += n
	for i := 0; i < count; i++ {
		value, consumed, err := axdr.Decode(buf[pos:])
		if err != nil {
			return nil, err
		}
		response.Values = append(response.Values, value)
		pos += consumed
	}
	resultCount, n, err := decodeCount(buf[pos:])
	if err != nil {
		return nil, err
	}
	if resultCount != count {
		return nil, dlms.NewError(dlms.KindInvalidData, "access-response: list counts differ")
	}
	pos += n
	if len(buf) < pos+resultCount {
		return nil, dlms.NewError(dlms.KindInvalidData, "access-response: truncated results")
	}
	for i := 0; i < resultCount; i++ {
		response.Results = append(response.Results, AccessResult(buf[pos+i]))
	}
	return response, nil
}
