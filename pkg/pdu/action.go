package pdu

import (
	"encoding/binary"

	dlms "github.com/openmetering/godlms"
	"github.com/openmetering/godlms/pkg/axdr"
)

// ActionRequest variant tags.
const (
	tagActionRequestNormal         byte = 0x01
	tagActionRequestNextPblock     byte = 0x02
	tagActionRequestWithList       byte = 0x03
	tagActionRequestWithFirstBlock byte = 0x04
	tagActionRequestWithBlock      byte = 0x05
)

// ActionRequestNormal invokes one method.
type ActionRequestNormal struct {
	Invoke     InvokeIdAndPriority
	Method     dlms.MethodDescriptor
	Parameters *axdr.Data
}

func (p ActionRequestNormal) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, TagActionRequest, tagActionRequestNormal, byte(p.Invoke))
	dst = encodeMethodDescriptor(dst, p.Method)
	if p.Parameters == nil {
		return append(dst, 0x00), nil
	}
	dst = append(dst, 0x01)
	return axdr.Append(dst, *p.Parameters)
}

// ActionRequestNextPblock continues a long method result.
type ActionRequestNextPblock struct {
	Invoke      InvokeIdAndPriority
	BlockNumber uint32
}

func (p ActionRequestNextPblock) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, TagActionRequest, tagActionRequestNextPblock, byte(p.Invoke))
	return binary.BigEndian.AppendUint32(dst, p.BlockNumber), nil
}

// ActionRequestItem is one entry of a WithList invocation.
type ActionRequestItem struct {
	Method     dlms.MethodDescriptor
	Parameters *axdr.Data
}

// ActionRequestWithList invokes several methods in one round trip.
type ActionRequestWithList struct {
	Invoke InvokeIdAndPriority
	Items  []ActionRequestItem
}

func (p ActionRequestWithList) Encode(dst []byte) ([]byte, error) {
	if len(p.Items) == 0 {
		return nil, dlms.NewError(dlms.KindInvalidData, "action-request with-list: empty list")
	}
	dst = append(dst, TagActionRequest, tagActionRequestWithList, byte(p.Invoke))
	dst = axdr.EncodeLength(dst, len(p.Items))
	for _, item := range p.Items {
		dst = encodeMethodDescriptor(dst, item.Method)
	}
	dst = axdr.EncodeLength(dst, len(p.Items))
	var err error
	for _, item := range p.Items {
		if item.Parameters == nil {
			dst = append(dst, 0x00)
			continue
		}
		dst = append(dst, 0x01)
		dst, err = axdr.Append(dst, *item.Parameters)
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}

// ActionRequestWithFirstBlock starts a long parameter upload.
type ActionRequestWithFirstBlock struct {
	Invoke InvokeIdAndPriority
	Method dlms.MethodDescriptor
	Block  DataBlockSA
}

func (p ActionRequestWithFirstBlock) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, TagActionRequest, tagActionRequestWithFirstBlock, byte(p.Invoke))
	dst = encodeMethodDescriptor(dst, p.Method)
	return p.Block.encode(dst), nil
}

// ActionRequestWithBlock continues a long parameter upload.
type ActionRequestWithBlock struct {
	Invoke InvokeIdAndPriority
	Block  DataBlockSA
}

func (p ActionRequestWithBlock) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, TagActionRequest, tagActionRequestWithBlock, byte(p.Invoke))
	return p.Block.encode(dst), nil
}

func decodeActionRequest(buf []byte) (PDU, error) {
	variant := buf[0]
	invoke, err := decodeInvoke(buf[1:])
	if err != nil {
		return nil, err
	}
	body := buf[2:]
	switch variant {
	case tagActionRequestNormal:
		method, n, err := decodeMethodDescriptor(body)
		if err != nil {
			return nil, err
		}
		request := ActionRequestNormal{Invoke: invoke, Method: method}
		if len(body) <= n {
			return nil, dlms.NewError(dlms.KindInvalidData, "action-request: truncated")
		}
		if body[n] == 0x01 {
			params, _, err := axdr.Decode(body[n+1:])
			if err != nil {
				return nil, err
			}
			request.Parameters = &params
		}
		return request, nil

	case tagActionRequestNextPblock:
		if len(body) < 4 {
			return nil, dlms.NewError(dlms.KindInvalidData, "action-request next-pblock: truncated")
		}
		return ActionRequestNextPblock{Invoke: invoke, BlockNumber: binary.BigEndian.Uint32(body)}, nil

	case tagActionRequestWithList:
		count, n, err := decodeCount(body)
		if err != nil {
			return nil, err
		}
		pos := n
		items := make([]ActionRequestItem, count)
		for i := 0; i < count; i++ {
			method, consumed, err := decodeMethodDescriptor(body[pos:])
			if err != nil {
				return nil, err
			}
			items[i].Method = method
			pos += consumed
		}
		paramCount, n, err := decodeCount(body[pos:])
		if err != nil {
			return nil, err
		}
		if paramCount != count {
			return nil, dlms.NewError(dlms.KindInvalidData, "action-request with-list: list counts differ")
		}
		pos += n
		for i := 0; i < count; i++ {
			if pos >= len(body) {
				return nil, dlms.NewError(dlms.KindInvalidData, "action-request with-list: truncated")
			}
			if body[pos] == 0x00 {
				pos++
				continue
			}
			pos++
			params, consumed, err := axdr.Decode(body[pos:])
			if err != nil {
				return nil, err
			}
			items[i].Parameters = &params
			pos += consumed
		}
		return ActionRequestWithList{Invoke: invoke, Items: items}, nil

	case tagActionRequestWithFirstBlock:
		method, n, err := decodeMethodDescriptor(body)
		if err != nil {
			return nil, err
		}
		block, _, err := decodeDataBlockSA(body[n:])
		if err != nil {
			return nil, err
		}
		return ActionRequestWithFirstBlock{Invoke: invoke, Method: method, Block: block}, nil

	case tagActionRequestWithBlock:
		block, _, err := decodeDataBlockSA(body)
		if err != nil {
			return nil, err
		}
		return ActionRequestWithBlock{Invoke: invoke, Block: block}, nil

	default:
		return nil, dlms.Errorf(dlms.KindProtocol, "action-request: unknown variant 0x%02X", variant)
	}
}

// ActionResponse variant tags.
const (
	tagActionResponseNormal     byte = 0x01
	tagActionResponseWithPblock byte = 0x02
	tagActionResponseWithList   byte = 0x03
	tagActionResponseNextPblock byte = 0x04
)

// ActionResponseNormal answers a Normal invocation.
type ActionResponseNormal struct {
	Invoke InvokeIdAndPriority
	Result ActionResult
}

func (p ActionResponseNormal) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, TagActionResponse, tagActionResponseNormal, byte(p.Invoke))
	return p.Result.encode(dst)
}

// ActionResponseWithPblock streams a long method result.
type ActionResponseWithPblock struct {
	Invoke InvokeIdAndPriority
	Block  DataBlockSA
}

func (p ActionResponseWithPblock) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, TagActionResponse, tagActionResponseWithPblock, byte(p.Invoke))
	return p.Block.encode(dst), nil
}

// ActionResponseWithList answers a WithList invocation positionally.
type ActionResponseWithList struct {
	Invoke  InvokeIdAndPriority
	Results []ActionResult
}

func (p ActionResponseWithList) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, TagActionResponse, tagActionResponseWithList, byte(p.Invoke))
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

// ActionResponseNextPblock acknowledges an uploaded block.
type ActionResponseNextPblock struct {
	Invoke      InvokeIdAndPriority
	BlockNumber uint32
}

func (p ActionResponseNextPblock) Encode(dst []byte) ([]byte, error) {
	dst = append(dst, TagActionResponse, tagActionResponseNextPblock, byte(p.Invoke))
	return binary.BigEndian.AppendUint32(dst, p.BlockNumber), nil
}

func decodeActionResponse(buf []byte) (PDU, error) {
	variant := buf[0]
	invoke, err := decodeInvoke(buf[1:])
	if err != nil {
		return nil, err
	}
	body := buf[2:]
	switch variant {
	case tagActionResponseNormal:
		result, _, err := decodeActionResult(body)
		if err != nil {
			return nil, err
		}
		return ActionResponseNormal{Invoke: invoke, Result: result}, nil

	case tagActionResponseWithPblock:
		block, _, err := decodeDataBlockSA(body)
		if err != nil {
			return nil, err
		}
		return ActionResponseWithPblock{Invoke: invoke, Block: block}, nil

	case tagActionResponseWithList:
		count, n, err := decodeCount(body)
		if err != nil {
			return nil, err
		}
		pos := n
		results := make([]ActionResult, 0, count)
		for i := 0; i < count; i++ {
			result, consumed, err := decodeActionResult(body[pos:])
			if err != nil {
				return nil, err
			}
			pos += consumed
			results = append(results, result)
		}
		return ActionResponseWithList{Invoke: invoke, Results: results}, nil

	case tagActionResponseNextPblock:
		if len(body) < 4 {
			return nil, dlms.NewError(dlms.KindInvalidData, "action-response next-pblock: truncated")
		}
		return ActionResponseNextPblock{Invoke: invoke, BlockNumber: binary.BigEndian.Uint32(body)}, nil

	default:
		return nil, dlms.Errorf(dlms.KindProtocol, "action-response: unknown variant 0x%02X", variant)
	}
}
