package server

import (
	"bytes"
	"testing"

	dlms "github.com/openmetering/godlms"
	"github.com/openmetering/godlms/pkg/axdr"
	"github.com/openmetering/godlms/pkg/pdu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testObis = dlms.NewObisCode(0, 0, 42, 0, 0, 255)

func testEngine(t *testing.T, maxPDU int) (*Engine, *Registry) {
	t.Helper()
	registry := NewRegistry()
	registry.Register(ClassData, testObis, NewDataObject(testObis, axdr.NewInteger32(42)))
	return NewEngine(registry, maxPDU), registry
}

func invoke(t *testing.T, id uint8) pdu.InvokeIdAndPriority {
	t.Helper()
	v, err := pdu.NewInvokeIdAndPriority(id, false, true)
	require.Nil(t, err)
	return v
}

func TestEngineGetNormal(t *testing.T) {
	engine, _ := testEngine(t, 1024)
	response, err := engine.Handle(pdu.GetRequestNormal{
		Invoke:    invoke(t, 1),
		Attribute: dlms.AttributeDescriptor{ClassId: 1, InstanceId: testObis, AttributeId: 2},
	})
	require.Nil(t, err)
	normal, ok := response.(pdu.GetResponseNormal)
	require.True(t, ok)
	require.NotNil(t, normal.Result.Data)
	assert.Equal(t, axdr.NewInteger32(42), *normal.Result.Data)
}

func TestEngineGetUnknownObject(t *testing.T) {
	engine, _ := testEngine(t, 1024)
	response, err := engine.Handle(pdu.GetRequestNormal{
		Invoke:    invoke(t, 1),
		Attribute: dlms.AttributeDescriptor{ClassId: 1, InstanceId: dlms.NewObisCode(1, 2, 3, 4, 5, 6), AttributeId: 2},
	})
	require.Nil(t, err)
	normal := response.(pdu.GetResponseNormal)
	assert.Equal(t, pdu.AccessObjectUndefined, normal.Result.Result)
}

func TestEngineGetUnknownAttribute(t *testing.T) {
	engine, _ := testEngine(t, 1024)
	response, err := engine.Handle(pdu.GetRequestNormal{
		Invoke:    invoke(t, 1),
		Attribute: dlms.AttributeDescriptor{ClassId: 1, InstanceId: testObis, AttributeId: 9},
	})
	require.Nil(t, err)
	normal := response.(pdu.GetResponseNormal)
	assert.Equal(t, pdu.AccessObjectClassInconsistent, normal.Result.Result)
}

func TestEngineBlockTransfer(t *testing.T) {
	engine, registry := testEngine(t, 64)
	big := dlms.NewObisCode(0, 0, 99, 0, 0, 255)
	payload := bytes.Repeat([]byte{0xCD}, 200)
	registry.Register(ClassData, big, NewDataObject(big, axdr.NewOctetString(payload)))

	response, err := engine.Handle(pdu.GetRequestNormal{
		Invoke:    invoke(t, 1),
		Attribute: dlms.AttributeDescriptor{ClassId: 1, InstanceId: big, AttributeId: 2},
	})
	require.Nil(t, err)
	withBlock, ok := response.(pdu.GetResponseWithDataBlock)
	require.True(t, ok)
	assert.False(t, withBlock.Block.LastBlock)
	assert.EqualValues(t, 1, withBlock.Block.BlockNumber)

	var assembled []byte
	assembled = append(assembled, withBlock.Block.Raw...)
	number := withBlock.Block.BlockNumber
	for !withBlock.Block.LastBlock {
		response, err = engine.Handle(pdu.GetRequestNext{Invoke: invoke(t, 1), BlockNumber: number})
		require.Nil(t, err)
		withBlock = response.(pdu.GetResponseWithDataBlock)
		require.False(t, withBlock.Block.Failed())
		number = withBlock.Block.BlockNumber
		assembled = append(assembled, withBlock.Block.Raw...)
	}
	value, _, err := axdr.Decode(assembled)
	require.Nil(t, err)
	assert.Equal(t, payload, value.Value)
}

func TestEngineGetNextWithoutTransfer(t *testing.T) {
	engine, _ := testEngine(t, 1024)
	response, err := engine.Handle(pdu.GetRequestNext{Invoke: invoke(t, 1), BlockNumber: 1})
	require.Nil(t, err)
	withBlock := response.(pdu.GetResponseWithDataBlock)
	assert.True(t, withBlock.Block.Failed())
	assert.Equal(t, pdu.AccessNoLongGetInProgress, withBlock.Block.Result)
}

func TestEngineGetNextWrongNumber(t *testing.T) {
	engine, registry := testEngine(t, 64)
	big := dlms.NewObisCode(0, 0, 99, 0, 0, 255)
	registry.Register(ClassData, big, NewDataObject(big, axdr.NewOctetString(bytes.Repeat([]byte{1}, 200))))

	_, err := engine.Handle(pdu.GetRequestNormal{
		Invoke:    invoke(t, 1),
		Attribute: dlms.AttributeDescriptor{ClassId: 1, InstanceId: big, AttributeId: 2},
	})
	require.Nil(t, err)
	response, err := engine.Handle(pdu.GetRequestNext{Invoke: invoke(t, 1), BlockNumber: 5})
	require.Nil(t, err)
	withBlock := response.(pdu.GetResponseWithDataBlock)
	assert.True(t, withBlock.Block.Failed())
	assert.Equal(t, pdu.AccessDataBlockNumberInvalid, withBlock.Block.Result)
}

func TestEngineSetBlocks(t *testing.T) {
	engine, registry := testEngine(t, 1024)
	target := dlms.NewObisCode(0, 0, 43, 0, 0, 255)
	object := NewDataObject(target, axdr.NewOctetString(nil))
	object.Writable = true
	registry.Register(ClassData, target, object)

	payload := bytes.Repeat([]byte{0xEE}, 100)
	encoded, err := axdr.Encode(axdr.NewOctetString(payload))
	require.Nil(t, err)

	attr := dlms.AttributeDescriptor{ClassId: 1, InstanceId: target, AttributeId: 2}
	response, err := engine.Handle(pdu.SetRequestWithFirstDataBlock{
		Invoke:    invoke(t, 2),
		Attribute: attr,
		Block:     pdu.DataBlockSA{BlockNumber: 1, Raw: encoded[:40]},
	})
	require.Nil(t, err)
	_, ok := response.(pdu.SetResponseDataBlock)
	require.True(t, ok)

	response, err = engine.Handle(pdu.SetRequestWithDataBlock{
		Invoke: invoke(t, 2),
		Block:  pdu.DataBlockSA{LastBlock: true, BlockNumber: 2, Raw: encoded[40:]},
	})
	require.Nil(t, err)
	last, ok := response.(pdu.SetResponseLastDataBlock)
	require.True(t, ok)
	assert.Equal(t, pdu.AccessSuccess, last.Result)
	assert.Equal(t, payload, object.Value().Value)
}

func TestEngineActionUnknownMethod(t *testing.T) {
	engine, _ := testEngine(t, 1024)
	response, err := engine.Handle(pdu.ActionRequestNormal{
		Invoke: invoke(t, 3),
		Method: dlms.MethodDescriptor{ClassId: 1, InstanceId: testObis, MethodId: 1},
	})
	require.Nil(t, err)
	normal := response.(pdu.ActionResponseNormal)
	assert.Equal(t, pdu.ActionResultCode(pdu.AccessObjectClassInconsistent), normal.Result.Result)
}

func TestEngineUnsupportedRequest(t *testing.T) {
	engine, _ := testEngine(t, 1024)
	response, err := engine.Handle(pdu.GetResponseNormal{Invoke: invoke(t, 1)})
	require.Nil(t, err)
	_, ok := response.(pdu.ExceptionResponse)
	assert.True(t, ok)
}

func TestRegistryConcurrentLookup(t *testing.T) {
	registry := NewRegistry()
	registry.Register(ClassData, testObis, NewDataObject(testObis, axdr.NewInteger32(1)))

	done := make(chan bool)
	for i := 0; i < 8; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				_, ok := registry.Lookup(ClassData, testObis)
				assert.True(t, ok)
			}
			done <- true
		}()
	}
	registry.Register(ClassData, dlms.NewObisCode(1, 1, 1, 1, 1, 1), NewDataObject(testObis, axdr.NewNull()))
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.Equal(t, 2, registry.Len())
	registry.Unregister(ClassData, testObis)
	assert.Equal(t, 1, registry.Len())
}
