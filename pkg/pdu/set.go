package pdu

import (
	"encoding/binary"

	dlms "github.com/openmetering/godlms"
	"github.com/openmetering/godlms/pkg/axdr"
)

// SetRequest variant tags.
const (
	tagSetRequestNormal             byte = 0x01
	tagSetRequestWithFirstDataBlock byte = 0x02
	tagSetRequestWithDataBlock      byte = 0x03
	tagSetRequestWithList           byte = 0x04
)

// DataBlockSA is one chunk of a long SET or ACTION transfer.
type DataBlockSA struct {
	LastBlock   bool
	BlockNumber uint32
	Raw         []byte
}

func (b DataBlockSA) encode(dst []byte) []byte {
	if b.LastBlock {
		dst = append(dst, 0x01)
	} else {
		dst = append(dst, 0x00)
	}
	dst = binary.BigEndian.AppendUint32(dst, b.BlockNumber)
	dst = axdr.EncodeLength(dst, len(b.Raw))
	return append(dst, b.Raw...)
}

func decodeDataBlockSA(buf []byte) (DataBlockSA, int, error) {
	if len(buf) < 6 {
		return DataBlockSA{}, 0, dlms.NewError(dlms.KindInvalidData, "datablock: truncated")
	}
	block := DataBlockSA{
		LastBlock:   buf[0] != 0,
		BlockNumber: binary.BigEndian.Uint32(buf[1:5]),
	}
	length, n, err := axdr.DecodeLength(buf[5:])
	if err != nil {
		return DataBlockSA{}, 0, err
	}
	if len(buf) < 5+n+length {
		return DataBlockSA{}, 0, dlms.NewError(dlms.KindInvalidData, "datablock: raw data truncated")
	}
	block.Raw = append([]byte(nil), buf[5+n:5+n+length]...)
	return block, 5 + n + length, nil
}

// SetRequestNormal writes one attribute.
type SetRequestNormal struct {
	Invoke          InvokeIdAndPriority
	Attribute       dlms.AttributeDescriptor
	AccessSelection *SelectiveAccess
	Value           axdr.Data
}

func (p SetRequestNormal) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, TagSetRequest, tagSetRequestNormal, byte(p.Invoke))
	dst = encodeAttributeDescriptor(dst, p.Attribute)
	dst, err := encodeSelectiveAccess(dst, p.AccessSelection)
	if err != nil {
		return nil, err
	}
	return axdr.Append(dst, p.Value)
}

// SetRequestWithFirstDataBlock starts a long write.
type SetRequestWithFirstDataBlock struct {
	Invoke          InvokeIdAndPriority
	Attribute       dlms.AttributeDescriptor
	AccessSelection *SelectiveAccess
	Block           DataBlockSA
}

func (p SetRequestWithFirstDataBlock) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, TagSetRequest, tagSetRequestWithFirstDataBlock, byte(p.Invoke))
	dst = encodeAttributeDescriptor(dst, p.Attribute)
	dst, err := encodeSelectiveAccess(dst, p.AccessSelection)
	if err != nil {
		return nil, err
	}
	return p.Block.encode(dst), nil
}

// SetRequestWithDataBlock continues a long write.
type SetRequestWithDataBlock struct {
	Invoke InvokeIdAndPriority
	Block  DataBlockSA
}

func (p SetRequestWithDataBlock) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, TagSetRequest, tagSetRequestWithDataBlock, byte(p.Invoke))
	return p.Block.encode(dst), nil
}

// SetRequestItem is one target of a WithList write.
type SetRequestItem struct {
	Attribute       dlms.AttributeDescriptor
	AccessSelection *SelectiveAccess
}

// SetRequestWithList writes several attributes in one round trip.
type SetRequestWithList struct {
	Invoke InvokeIdAndPriority
	Items  []SetRequestItem
	Values []axdr.Data
}

func (p SetRequestWithList) Encode(dst []byte) ([]byte, error) {
	if len(p.Items) == 0 || len(p.Items) != len(p.Values) {
		return nil, dlms.NewError(dlms.KindInvalidData, "set-request with-list: item and value counts differ")
	}
	dst = append(dst, TagSetRequest, tagSetRequestWithList, byte(p.Invoke))
	dst = axdr.EncodeLength(dst, len(p.Items))
	var err error
	for _, item := range p.Items {
		dst = encodeAttributeDescriptor(dst, item.Attribute)
		dst, err = encodeSelectiveAccess(dst, item.AccessSelection)
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

func decodeSetRequest(buf []byte) (PDU, error) {
	variant := buf[0]
	invoke, err := decodeInvoke(buf[1:])
	if err != nil {
		return nil, err
	}
	body := buf[2:]
	switch variant {
	case tagSetRequestNormal:
		attr, n, err := decodeAttributeDescriptor(body)
		if err != nil {
			return nil, err
		}
		pos := n
		access, n, err := decodeSelectiveAccess(body[pos:])
		if err != nil {
			return nil, err
		}
		pos += n
		value, _, err := axdr.Decode(body[pos:])
		if err != nil {
			return nil, err
		}
		return SetRequestNormal{Invoke: invoke, Attribute: attr, AccessSelection: access, Value: value}, nil

	case tagSetRequestWithFirstDataBlock:
		attr, n, err := decodeAttributeDescriptor(body)
		if err != nil {
			return nil, err
		}
		pos := n
		access, n, err := decodeSelectiveAccess(body[pos:])
		if err != nil {
			return nil, err
		}
		pos += n
		block, _, err := decodeDataBlockSA(body[pos:])
		if err != nil {
			return nil, err
		}
		return SetRequestWithFirstDataBlock{Invoke: invoke, Attribute: attr, AccessSelection: access, Block: block}, nil

	case tagSetRequestWithDataBlock:
		block, _, err := decodeDataBlockSA(body)
		if err != nil {
			return nil, err
		}
		return SetRequestWithDataBlock{Invoke: invoke, Block: block}, nil

	case tagSetRequestWithList:
		count, n, err := decodeCount(body)
		if err != nil {
			return nil, err
		}
		pos := n
		items := make([]SetRequestItem, 0, count)
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
			items = append(items, SetRequestItem{Attribute: attr, AccessSelection: access})
		}
		valueCount, n, err := decodeCount(body[pos:])
		if err != nil {
			return nil, err
		}
		pos += n
		values := make([]axdr.Data, 0, valueCount)
		for i := 0; i < valueCount; i++ {
			value, consumed, err := axdr.Decode(body[pos:])
			if err != nil {
				return nil, err
			}
			pos += consumed
			values = append(values, value)
		}
		return SetRequestWithList{Invoke: invoke, Items: items, Values: values}, nil

	default:
		return nil, dlms.Errorf(dlms.KindProtocol, "set-request: unknown variant 0x%02X", variant)
	}
}

// SetResponse variant tags.
const (
	tagSetResponseNormal                byte = 0x01
	tagSetResponseDataBlock             byte = 0x02
	tagSetResponseLastDataBlock         byte = 0x03
	tagSetResponseLastDataBlockWithList byte = 0x04
	tagSetResponseWithList              byte = 0x05
)

// SetResponseNormal acknowledges a Normal write.
type SetResponseNormal struct {
	Invoke InvokeIdAndPriority
	Result AccessResult
}

func (p SetResponseNormal) Encode(dst []byte) ([]byte, error) {
	return append(dst, TagSetResponse, tagSetResponseNormal, byte(p.Invoke), byte(p.Result)), nil
}

// SetResponseDataBlock acknowledges one intermediate block.
type SetResponseDataBlock struct {
	Invoke      InvokeIdAndPriority
	BlockNumber uint32
}

func (p SetResponseDataBlock) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, TagSetResponse, tagSetResponseDataBlock, byte(p.Invoke))
	return binary.BigEndian.AppendUint32(dst, p.BlockNumber), nil
}

// SetResponseLastDataBlock closes a long write.
type SetResponseLastDataBlock struct {
	Invoke      InvokeIdAndPriority
	Result      AccessResult
	BlockNumber uint32
}

func (p SetResponseLastDataBlock) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, TagSetResponse, tagSetResponseLastDataBlock, byte(p.Invoke), byte(p.Result))
	return binary.BigEndian.AppendUint32(dst, p.BlockNumber), nil
}

// SetResponseLastDataBlockWithList closes a long WithList write.
type SetResponseLastDataBlockWithList struct {
	Invoke      InvokeIdAndPriority
	Results     []AccessResult
	BlockNumber uint32
}

func (p SetResponseLastDataBlockWithList) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, TagSetResponse, tagSetResponseLastDataBlockWithList, byte(p.Invoke))
	dst = axdr.EncodeLength(dst, len(p.Results))
	for _, result := range p.Results {
		dst = append(dst, byte(result))
	}
	return binary.BigEndian.AppendUint32(dst, p.BlockNumber), nil
}

// SetResponseWithList answers a WithList write positionally.
type SetResponseWithList struct {
	Invoke  InvokeIdAndPriority
	Results []AccessResult
}

func (p SetResponseWithList) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, TagSetResponse, tagSetResponseWithList, byte(p.Invoke))
	dst = axdr.EncodeLength(dst, len(p.Results))
	for _, result := range p.Results {
		dst = append(dst, byte(result))
	}
	return dst, nil
}

func decodeSetResponse(buf []byte) (PDU, error) {
	variant := buf[0]
	invoke, err := decodeInvoke(buf[1:])
	if err != nil {
		return nil, err
	}
	body := buf[2:]
	switch variant {
	case tagSetResponseNormal:
		if len(body) < 1 {
			return nil, dlms.NewError(dlms.KindInvalidData, "set-response: truncated")
		}
		return SetResponseNormal{Invoke: invoke, Result: AccessResult(body[0])}, nil

	case tagSetResponseDataBlock:
		if len(body) < 4 {
			return nil, dlms.NewError(dlms.KindInvalidData, "set-response datablock: truncated")
		}
		return SetResponseDataBlock{Invoke: invoke, BlockNumber: binary.BigEndian.Uint32(body)}, nil

	case tagSetResponseLastDataBlock:
		if len(body) < 5 {
			return nil, dlms.NewError(dlms.KindInvalidData, "set-response last datablock: truncated")
		}
		return SetResponseLastDataBlock{
			Invoke:      invoke,
			Result:      AccessResult(body[0]),
			BlockNumber: binary.BigEndian.Uint32(body[1:5]),
		}, nil

	case tagSetResponseLastDataBlockWithList:
		count, n, err := decodeCount(body)
		if err != nil {
			return nil, err
		}
		if len(body) < n+count+4 {
			return nil, dlms.NewError(dlms.KindInvalidData, "set-response last datablock with-list: truncated")
		}
		results := make([]AccessResult, count)
		for i := 0; i < count; i++ {
			results[i] = AccessResult(body[n+i])
		}
		return SetResponseLastDataBlockWithList{
			Invoke:      invoke,
			Results:     results,
			BlockNumber: binary.BigEndian.Uint32(body[n+count:]),
		}, nil

	case tagSetResponseWithList:
		count, n, err := decodeCount(body)
		if err != nil {
			return nil, err
		}
		if len(body) < n+count {
			return nil, dlms.NewError(dlms.KindInvalidData, "set-response with-list: truncated")
		}
		results := make([]AccessResult, count)
		for i := 0; i < count; i++ {
			results[i] = AccessResult(body[n+i])
		}
		return SetResponseWithList{Invoke: invoke, Results: results}, nil

	default:
		return nil, dlms.Errorf(dlms.KindProtocol, "set-response: unknown variant 0x%02X", variant)
	}
}
