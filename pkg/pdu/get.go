package pdu

import (
	"encoding/binary"

	dlms "github.com/openmetering/godlms"
	"github.com/openmetering/godlms/pkg/axdr"
)

// GetRequest variant tags.
const (
	tagGetRequestNormal   byte = 0x01
	tagGetRequestNext     byte = 0x02
	tagGetRequestWithList byte = 0x03
)

// GetRequestNormal reads one attribute.
type GetRequestNormal struct {
	Invoke          InvokeIdAndPriority
	Attribute       dlms.AttributeDescriptor
	AccessSelection *SelectiveAccess
}

func (p GetRequestNormal) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, TagGetRequest, tagGetRequestNormal, byte(p.Invoke))
	dst = encodeAttributeDescriptor(dst, p.Attribute)
	return encodeSelectiveAccess(dst, p.AccessSelection)
}

// GetRequestNext asks for the block after the one last received.
type GetRequestNext struct {
	Invoke      InvokeIdAndPriority
	BlockNumber uint32
}

func (p GetRequestNext) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, TagGetRequest, tagGetRequestNext, byte(p.Invoke))
	return binary.BigEndian.AppendUint32(dst, p.BlockNumber), nil
}

// GetRequestItem is one entry of a WithList request.
type GetRequestItem struct {
	Attribute       dlms.AttributeDescriptor
	AccessSelection *SelectiveAccess
}

// GetRequestWithList reads several attributes in one round trip.
type GetRequestWithList struct {
	Invoke InvokeIdAndPriority
	Items  []GetRequestItem
}

func (p GetRequestWithList) Encode(dst []byte) ([]byte, error) {
	if len(p.Items) == 0 {
		return nil, dlms.NewError(dlms.KindInvalidData, "get-request with-list: empty list")
	}
	dst = append(dst, TagGetRequest, tagGetRequestWithList, byte(p.Invoke))
	dst = axdr.EncodeLength(dst, len(p.Items))
	var err error
	for _, item := range p.Items {
		dst = encodeAttributeDescriptor(dst, item.Attribute)
		dst, err = encodeSelectiveAccess(dst, item.AccessSelection)
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func decodeGetRequest(buf []byte) (PDU, error) {
	variant := buf[0]
	invoke, err := decodeInvoke(buf[1:])
	if err != nil {
		return nil, err
	}
	body := buf[2:]
	switch variant {
	case tagGetRequestNormal:
		attr, n, err := decodeAttributeDescriptor(body)
		if err != nil {
			return nil, err
		}
		access, _, err := decodeSelectiveAccess(body[n:])
		if err != nil {
			return nil, err
		}
		return GetRequestNormal{Invoke: invoke, Attribute: attr, AccessSelection: access}, nil

	case tagGetRequestNext:
		if len(body) < 4 {
			return nil, dlms.NewError(dlms.KindInvalidData, "get-request next: truncated")
		}
		return GetRequestNext{Invoke: invoke, BlockNumber: binary.BigEndian.Uint32(body)}, nil

	case tagGetRequestWithList:
		count, n, err := decodeCount(body)
		if err != nil {
			return nil, err
		}
		pos := n
		items := make([]GetRequestItem, 0, count)
		for i := 0; i < count; i++ {
			attr, consumed, err := decodeAttributeDescriptor(body[pos:])
			if err != nil {
				return nil, err
			}
			pos += consumed
			access, consumed, err := decodeSelectiveAccess(body[pos:])
			if err != nil {
				return nil, err
			}
			pos += consumed
			items = append(items, GetRequestItem{Attribute: attr, AccessSelection: access})
		}
		return GetRequestWithList{Invoke: invoke, Items: items}, nil

	default:
		return nil, dlms.Errorf(dlms.KindProtocol, "get-request: unknown variant 0x%02X", variant)
	}
}

// GetResponse variant tags.
const (
	tagGetResponseNormal        byte = 0x01
	tagGetResponseWithDataBlock byte = 0x02
	tagGetResponseWithList      byte = 0x03
)

// GetResponseNormal answers a Normal request.
type GetResponseNormal struct {
	Invoke InvokeIdAndPriority
	Result GetDataResult
}

func (p GetResponseNormal) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, TagGetResponse, tagGetResponseNormal, byte(p.Invoke))
	return p.Result.encode(dst)
}

// DataBlockG is one chunk of a long GET result.
type DataBlockG struct {
	LastBlock   bool
	BlockNumber uint32
	// Raw carries the chunk on success; Result the failure code.
	Raw    []byte
	Result AccessResult
	failed bool
}

// RawBlock builds a successful chunk.
func RawBlock(lastBlock bool, number uint32, raw []byte) DataBlockG {
	return DataBlockG{LastBlock: lastBlock, BlockNumber: number, Raw: raw}
}

// FailedBlock builds a failed chunk.
func FailedBlock(number uint32, result AccessResult) DataBlockG {
	return DataBlockG{LastBlock: true, BlockNumber: number, Result: result, failed: true}
}

// Failed reports whether the block carries a failure code.
func (b DataBlockG) Failed() bool {
	return b.failed
}

// GetResponseWithDataBlock streams a long result.
type GetResponseWithDataBlock struct {
	Invoke InvokeIdAndPriority
	Block  DataBlockG
}

func (p GetResponseWithDataBlock) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, TagGetResponse, tagGetResponseWithDataBlock, byte(p.Invoke))
	if p.Block.LastBlock {
		dst = append(dst, 0x01)
	} else {
		dst = append(dst, 0x00)
	}
	dst = binary.BigEndian.AppendUint32(dst, p.Block.BlockNumber)
	if p.Block.failed {
		return append(dst, 0x01, byte(p.Block.Result)), nil
	}
	dst = append(dst, 0x00)
	dst = axdr.EncodeLength(dst, len(p.Block.Raw))
	return append(dst, p.Block.Raw...), nil
}

// GetResponseWithList answers a WithList request positionally.
type GetResponseWithList struct {
	Invoke  InvokeIdAndPriority
	Results []GetDataResult
}

func (p GetResponseWithList) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, TagGetResponse, tagGetResponseWithList, byte(p.Invoke))
	dst = axdr.EncodeLength(dst, len(p.Results))
	var err error
	for _, result := range p.Results {
		dst, err = result.encode(dst)
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func decodeGetResponse(buf []byte) (PDU, error) {
	variant := buf[0]
	invoke, err := decodeInvoke(buf[1:])
	if err != nil {
		return nil, err
	}
	body := buf[2:]
	switch variant {
	case tagGetResponseNormal:
		result, _, err := decodeGetDataResult(body)
		if err != nil {
			return nil, err
		}
		return GetResponseNormal{Invoke: invoke, Result: result}, nil

	case tagGetResponseWithDataBlock:
		if len(body) < 6 {
			return nil, dlms.NewError(dlms.KindInvalidData, "get-response with-datablock: truncated")
		}
		block := DataBlockG{
			LastBlock:   body[0] != 0,
			BlockNumber: binary.BigEndian.Uint32(body[1:5]),
		}
		switch body[5] {
		case 0x00:
			length, n, err := axdr.DecodeLength(body[6:])
			if err != nil {
				return nil, err
			}
			if len(body) < 6+n+length {
				return nil, dlms.NewError(dlms.KindInvalidData, "get-response with-datablock: raw data truncated")
			}
			block.Raw = append([]byte(nil), body[6+n:6+n+length]...)
		case 0x01:
			if len(body) < 7 {
				return nil, dlms.NewError(dlms.KindInvalidData, "get-response with-datablock: truncated result")
			}
			block.Result = AccessResult(body[6])
			block.failed = true
		default:
			return nil, dlms.Errorf(dlms.KindInvalidData, "get-response with-datablock: bad choice 0x%02X", body[5])
		}
		return GetResponseWithDataBlock{Invoke: invoke, Block: block}, nil

	case tagGetResponseWithList:
		count, n, err := decodeCount(body)
		if err != nil {
			return nil, err
		}
		pos := n
		results := make([]GetDataResult, 0, count)
		for i := 0; i < count; i++ {
			result, consumed, err := decodeGetDataResult(body[pos:])
			if err != nil {
				return nil, err
			}
			pos += consumed
			results = append(results, result)
		}
		return GetResponseWithList{Invoke: invoke, Results: results}, nil

	default:
		return nil, dlms.Errorf(dlms.KindProtocol, "get-response: unknown variant 0x%02X", variant)
	}
}
