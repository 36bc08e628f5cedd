package server

import (
	dlms "github.com/openmetering/godlms"
	"github.com/openmetering/godlms/pkg/axdr"
	"github.com/openmetering/godlms/pkg/pdu"
	log "github.com/sirupsen/logrus"
)

// Engine translates application PDUs into registry calls for one
// association. It owns the block transfer state, so one engine
// serves exactly one association.
type Engine struct {
	registry *Registry
	// maxPDUSize bounds responses; larger GET results stream as
	// data blocks.
	maxPDUSize int

	// Outbound long GET state.
	getBuffer []byte
	getBlock  uint32
	getInvoke pdu.InvokeIdAndPriority

	// Inbound long SET state.
	setTarget *pdu.SetRequestWithFirstDataBlock
	setBuffer []byte
	setBlock  uint32
}

// NewEngine builds an engine over the shared registry.
func NewEngine(registry *Registry, maxPDUSize int) *Engine {
	if maxPDUSize < 64 {
		maxPDUSize = 64
	}
	return &Engine{registry: registry, maxPDUSize: maxPDUSize}
}

// Handle maps one request PDU onto a response PDU.
func (e *Engine) Handle(request pdu.PDU) (pdu.PDU, error) {
	switch r := request.(type) {
	case pdu.GetRequestNormal:
		return e.handleGetNormal(r), nil
	case pdu.GetRequestNext:
		return e.handleGetNext(r), nil
	case pdu.GetRequestWithList:
		return e.handleGetWithList(r), nil
	case pdu.SetRequestNormal:
		return e.handleSetNormal(r), nil
	case pdu.SetRequestWithFirstDataBlock:
		return e.handleSetFirstBlock(r), nil
	case pdu.SetRequestWithDataBlock:
		return e.handleSetBlock(r), nil
	case pdu.SetRequestWithList:
		return e.handleSetWithList(r), nil
	case pdu.ActionRequestNormal:
		return e.handleAction(r), nil
	case pdu.ActionRequestWithList:
		return e.handleActionWithList(r), nil
	case pdu.AccessRequest:
		return e.handleAccess(r), nil
	default:
		return pdu.ExceptionResponse{
			StateError:   pdu.StateErrorServiceNotAllowed,
			ServiceError: pdu.ServiceErrorNotSupported,
		}, nil
	}
}

func (e *Engine) getData(attr dlms.AttributeDescriptor, access *pdu.SelectiveAccess) pdu.GetDataResult {
	object, ok := e.registry.Lookup(attr.ClassId, attr.InstanceId)
	if !ok {
		return pdu.ErrorResult(pdu.AccessObjectUndefined)
	}
	value, err := object.GetAttribute(attr.AttributeId, access)
	if err != nil {
		log.WithFields(log.Fields{"attr": attr, "err": err}).Debug("get failed")
		return pdu.ErrorResult(accessResultFor(err))
	}
	return pdu.DataResult(value)
}

func (e *Engine) handleGetNormal(r pdu.GetRequestNormal) pdu.PDU {
	result := e.getData(r.Attribute, r.AccessSelection)
	if result.Data == nil {
		return pdu.GetResponseNormal{Invoke: r.Invoke, Result: result}
	}
	encoded, err := axdr.Encode(*result.Data)
	if err != nil {
		return pdu.GetResponseNormal{Invoke: r.Invoke, Result: pdu.ErrorResult(pdu.AccessOtherReason)}
	}
	if len(encoded) <= e.maxPDUSize {
		return pdu.GetResponseNormal{Invoke: r.Invoke, Result: result}
	}
	// Result exceeds the PDU bound: stream it as data blocks.
	e.getBuffer = encoded
	e.getBlock = 1
	e.getInvoke = r.Invoke
	return e.nextGetBlock(r.Invoke)
}

func (e *Engine) nextGetBlock(invoke pdu.InvokeIdAndPriority) pdu.PDU {
	chunk := e.maxPDUSize
	last := chunk >= len(e.getBuffer)
	if last {
		chunk = len(e.getBuffer)
	}
	block := pdu.RawBlock(last, e.getBlock, e.getBuffer[:chunk])
	e.getBuffer = e.getBuffer[chunk:]
	if last {
		e.getBuffer = nil
	}
	return pdu.GetResponseWithDataBlock{Invoke: invoke, Block: block}
}

func (e *Engine) handleGetNext(r pdu.GetRequestNext) pdu.PDU {
	if e.getBuffer == nil {
		return pdu.GetResponseWithDataBlock{
			Invoke: r.Invoke,
			Block:  pdu.FailedBlock(r.BlockNumber, pdu.AccessNoLongGetInProgress),
		}
	}
	if r.BlockNumber != e.getBlock {
		e.getBuffer = nil
		return pdu.GetResponseWithDataBlock{
			Invoke: r.Invoke,
			Block:  pdu.FailedBlock(r.BlockNumber, pdu.AccessDataBlockNumberInvalid),
		}
	}
	e.getBlock++
	return e.nextGetBlock(r.Invoke)
}

func (e *Engine) handleGetWithList(r pdu.GetRequestWithList) pdu.PDU {
	results := make([]pdu.GetDataResult, 0, len(r.Items))
	for _, item := range r.Items {
		results = append(results, e.getData(item.Attribute, item.AccessSelection))
	}
	return pdu.GetResponseWithList{Invoke: r.Invoke, Results: results}
}

func (e *Engine) setData(attr dlms.AttributeDescriptor, value axdr.Data, access *pdu.SelectiveAccess) pdu.AccessResult {
	object, ok := e.registry.Lookup(attr.ClassId, attr.InstanceId)
	if !ok {
		return pdu.AccessObjectUndefined
	}
	if err := object.SetAttribute(attr.AttributeId, value, access); err != nil {
		log.WithFields(log.Fields{"attr": attr, "err": err}).Debug("set failed")
		return accessResultFor(err)
	}
	return pdu.AccessSuccess
}

func (e *Engine) handleSetNormal(r pdu.SetRequestNormal) pdu.PDU {
	return pdu.SetResponseNormal{
		Invoke: r.Invoke,
		Result: e.setData(r.Attribute, r.Value, r.AccessSelection),
	}
}

func (e *Engine) handleSetFirstBlock(r pdu.SetRequestWithFirstDataBlock) pdu.PDU {
	if r.Block.BlockNumber != 1 {
		return pdu.SetResponseLastDataBlock{
			Invoke:      r.Invoke,
			Result:      pdu.AccessDataBlockNumberInvalid,
			BlockNumber: r.Block.BlockNumber,
		}
	}
	target := r
	e.setTarget = &target
	e.setBuffer = append([]byte(nil), r.Block.Raw...)
	e.setBlock = 1
	if r.Block.LastBlock {
		return e.finishSetBlocks(r.Invoke)
	}
	return pdu.SetResponseDataBlock{Invoke: r.Invoke, BlockNumber: r.Block.BlockNumber}
}

func (e *Engine) handleSetBlock(r pdu.SetRequestWithDataBlock) pdu.PDU {
	if e.setTarget == nil {
		return pdu.SetResponseLastDataBlock{
			Invoke:      r.Invoke,
			Result:      pdu.AccessNoLongSetInProgress,
			BlockNumber: r.Block.BlockNumber,
		}
	}
	if r.Block.BlockNumber != e.setBlock+1 {
		e.setTarget = nil
		e.setBuffer = nil
		return pdu.SetResponseLastDataBlock{
			Invoke:      r.Invoke,
			Result:      pdu.AccessDataBlockNumberInvalid,
			BlockNumber: r.Block.BlockNumber,
		}
	}
	e.setBlock = r.Block.BlockNumber
	e.setBuffer = append(e.setBuffer, r.Block.Raw...)
	if r.Block.LastBlock {
		return e.finishSetBlocks(r.Invoke)
	}
	return pdu.SetResponseDataBlock{Invoke: r.Invoke, BlockNumber: r.Block.BlockNumber}
}

func (e *Engine) finishSetBlocks(invoke pdu.InvokeIdAndPriority) pdu.PDU {
	target := e.setTarget
	buffer := e.setBuffer
	block := e.setBlock
	e.setTarget = nil
	e.setBuffer = nil

	value, _, err := axdr.Decode(buffer)
	if err != nil {
		return pdu.SetResponseLastDataBlock{Invoke: invoke, Result: pdu.AccessTypeUnmatched, BlockNumber: block}
	}
	result := e.setData(target.Attribute, value, target.AccessSelection)
	return pdu.SetResponseLastDataBlock{Invoke: invoke, Result: result, BlockNumber: block}
}

func (e *Engine) handleSetWithList(r pdu.SetRequestWithList) pdu.PDU {
	results := make([]pdu.AccessResult, 0, len(r.Items))
	for i, item := range r.Items {
		if i >= len(r.Values) {
			results = append(results, pdu.AccessOtherReason)
			continue
		}
		results = append(results, e.setData(item.Attribute, r.Values[i], item.AccessSelection))
	}
	return pdu.SetResponseWithList{Invoke: r.Invoke, Results: results}
}

func (e *Engine) invoke(method dlms.MethodDescriptor, parameters *axdr.Data) pdu.ActionResult {
	object, ok := e.registry.Lookup(method.ClassId, method.InstanceId)
	if !ok {
		return pdu.ActionResult{Result: pdu.ActionObjectUndefined}
	}
	returned, err := object.InvokeMethod(method.MethodId, parameters)
	if err != nil {
		log.WithFields(log.Fields{"method": method, "err": err}).Debug("action failed")
		return pdu.ActionResult{Result: pdu.ActionResultCode(accessResultFor(err))}
	}
	result := pdu.ActionResult{Result: pdu.ActionSuccess}
	if returned != nil {
		data := pdu.DataResult(*returned)
		result.ReturnData = &data
	}
	return result
}

func (e *Engine) handleAction(r pdu.ActionRequestNormal) pdu.PDU {
	return pdu.ActionResponseNormal{Invoke: r.Invoke, Result: e.invoke(r.Method, r.Parameters)}
}

func (e *Engine) handleActionWithList(r pdu.ActionRequestWithList) pdu.PDU {
	results := make([]pdu.ActionResult, 0, len(r.Items))
	for _, item := range r.Items {
		results = append(results, e.invoke(item.Method, item.Parameters))
	}
	return pdu.ActionResponseWithList{Invoke: r.Invoke, Results: results}
}

func (e *Engine) handleAccess(r pdu.AccessRequest) pdu.PDU {
	if len(r.Values) != len(r.Specs) {
		return pdu.ExceptionResponse{
			StateError:   pdu.StateErrorServiceNotAllowed,
			ServiceError: pdu.ServiceErrorOperationNotPossible,
		}
	}
	response := pdu.AccessResponse{
		LongInvokeIdAndPriority: r.LongInvokeIdAndPriority,
		DateTime:                r.DateTime,
	}
	for i, spec := range r.Specs {
		switch spec.Kind {
		case 0x01: // get
			result := e.getData(spec.Attribute, nil)
			if result.Data != nil {
				response.Values = append(response.Values, *result.Data)
				response.Results = append(response.Results, pdu.AccessSuccess)
			} else {
				response.Values = append(response.Values, axdr.NewNull())
				response.Results = append(response.Results, result.Result)
			}
		case 0x02: // set
			response.Values = append(response.Values, axdr.NewNull())
			response.Results = append(response.Results, e.setData(spec.Attribute, r.Values[i], nil))
		case 0x03: // action
			value := r.Values[i]
			result := e.invoke(spec.Method, &value)
			if result.ReturnData != nil && result.ReturnData.Data != nil {
				response.Values = append(response.Values, *result.ReturnData.Data)
			} else {
				response.Values = append(response.Values, axdr.NewNull())
			}
			response.Results = append(response.Results, pdu.AccessResult(result.Result))
		}
	}
	return response
}
