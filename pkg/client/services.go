package client

import (
	dlms "github.com/openmetering/godlms"
	"github.com/openmetering/godlms/pkg/axdr"
	"github.com/openmetering/godlms/pkg/pdu"
	log "github.com/sirupsen/logrus"
)

// Get reads one attribute, following block transfer transparently
// when the server streams the result.
func (a *Association) Get(attr dlms.AttributeDescriptor, access *pdu.SelectiveAccess) (axdr.Data, error) {
	id, invoke, err := a.nextInvoke()
	if err != nil {
		return axdr.Data{}, err
	}
	request := pdu.GetRequestNormal{Invoke: invoke, Attribute: attr, AccessSelection: access}
	response, err := a.transact(request, id)
	if err != nil {
		return axdr.Data{}, err
	}
	switch r := response.(type) {
	case pdu.GetResponseNormal:
		if r.Result.Data == nil {
			return axdr.Data{}, r.Result.Result.Err()
		}
		return *r.Result.Data, nil
	case pdu.GetResponseWithDataBlock:
		return a.followBlocks(invoke, r)
	default:
		return axdr.Data{}, dlms.Errorf(dlms.KindProtocol, "unexpected response %T to get-request", response)
	}
}

// followBlocks drives GetRequest Next until the last block arrives
// and decodes the reassembled value.
func (a *Association) followBlocks(invoke pdu.InvokeIdAndPriority, first pdu.GetResponseWithDataBlock) (axdr.Data, error) {
	assembler := NewBlockAssembler()
	response := first
	for {
		last, err := assembler.Add(response.Block)
		if err != nil {
			return axdr.Data{}, err
		}
		if last {
			value, err := assembler.Assemble()
			if err == nil {
				log.WithField("blocks", assembler.LastReceived()).Debug("block transfer assembled")
			}
			return value, err
		}
		id, nextInvoke, err := a.nextInvoke()
		if err != nil {
			return axdr.Data{}, err
		}
		next := pdu.GetRequestNext{Invoke: nextInvoke, BlockNumber: assembler.LastReceived()}
		reply, err := a.transact(next, id)
		if err != nil {
			return axdr.Data{}, err
		}
		block, ok := reply.(pdu.GetResponseWithDataBlock)
		if !ok {
			return axdr.Data{}, dlms.Errorf(dlms.KindProtocol, "unexpected response %T during block transfer", reply)
		}
		response = block
	}
}

// GetList reads several attributes in one request. Results map to
// the descriptors positionally; individual entries may fail.
func (a *Association) GetList(items []pdu.GetRequestItem) ([]pdu.GetDataResult, error) {
	if len(items) == 0 {
		return nil, dlms.NewError(dlms.KindInvalidData, "get list: no items")
	}
	id, invoke, err := a.nextInvoke()
	if err != nil {
		return nil, err
	}
	response, err := a.transact(pdu.GetRequestWithList{Invoke: invoke, Items: items}, id)
	if err != nil {
		return nil, err
	}
	withList, ok := response.(pdu.GetResponseWithList)
	if !ok {
		return nil, dlms.Errorf(dlms.KindProtocol, "unexpected response %T to get-request with-list", response)
	}
	if len(withList.Results) != len(items) {
		return nil, dlms.Errorf(dlms.KindProtocol, "with-list: %d results for %d items", len(withList.Results), len(items))
	}
	return withList.Results, nil
}

// Set writes one attribute.
func (a *Association) Set(attr dlms.AttributeDescriptor, value axdr.Data, access *pdu.SelectiveAccess) error {
	id, invoke, err := a.nextInvoke()
	if err != nil {
		return err
	}
	request := pdu.SetRequestNormal{Invoke: invoke, Attribute: attr, AccessSelection: access, Value: value}
	response, err := a.transact(request, id)
	if err != nil {
		return err
	}
	normal, ok := response.(pdu.SetResponseNormal)
	if !ok {
		return dlms.Errorf(dlms.KindProtocol, "unexpected response %T to set-request", response)
	}
	return normal.Result.Err()
}

// SetList writes several attributes in one request.
func (a *Association) SetList(items []pdu.SetRequestItem, values []axdr.Data) ([]pdu.AccessResult, error) {
	id, invoke, err := a.nextInvoke()
	if err != nil {
		return nil, err
	}
	response, err := a.transact(pdu.SetRequestWithList{Invoke: invoke, Items: items, Values: values}, id)
	if err != nil {
		return nil, err
	}
	withList, ok := response.(pdu.SetResponseWithList)
	if !ok {
		return nil, dlms.Errorf(dlms.KindProtocol, "unexpected response %T to set-request with-list", response)
	}
	return withList.Results, nil
}

// Action invokes one method and returns its optional result data.
func (a *Association) Action(method dlms.MethodDescriptor, parameters *axdr.Data) (*axdr.Data, error) {
	id, invoke, err := a.nextInvoke()
	if err != nil {
		return nil, err
	}
	request := pdu.ActionRequestNormal{Invoke: invoke, Method: method, Parameters: parameters}
	response, err := a.transact(request, id)
	if err != nil {
		return nil, err
	}
	normal, ok := response.(pdu.ActionResponseNormal)
	if !ok {
		return nil, dlms.Errorf(dlms.KindProtocol, "unexpected response %T to action-request", response)
	}
	if normal.Result.Result != pdu.ActionSuccess {
		return nil, dlms.NewError(dlms.KindAccessDenied, normal.Result.Result.String())
	}
	if normal.Result.ReturnData == nil {
		return nil, nil
	}
	if normal.Result.ReturnData.Data == nil {
		return nil, normal.Result.ReturnData.Result.Err()
	}
	return normal.Result.ReturnData.Data, nil
}
