package pdu

import (
	"testing"

	dlms "github.com/openmetering/godlms"
	"github.com/openmetering/godlms/pkg/axdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAttribute() dlms.AttributeDescriptor {
	return dlms.AttributeDescriptor{
		ClassId:     1,
		InstanceId:  dlms.NewObisCode(0, 0, 42, 0, 0, 255),
		AttributeId: 2,
	}
}

func TestInvokeIdAndPriority(t *testing.T) {
	invoke, err := NewInvokeIdAndPriority(1, true, true)
	require.Nil(t, err)
	assert.Equal(t, InvokeIdAndPriority(0xC1), invoke)
	assert.EqualValues(t, 1, invoke.InvokeId())
	assert.True(t, invoke.HighPriority())
	assert.True(t, invoke.Confirmed())

	_, err = NewInvokeIdAndPriority(0, false, false)
	assert.NotNil(t, err)
	_, err = NewInvokeIdAndPriority(16, false, false)
	assert.NotNil(t, err)
}

func TestGetResponseNormalScenario(t *testing.T) {
	invoke, err := NewInvokeIdAndPriority(1, true, true)
	require.Nil(t, err)
	response := GetResponseNormal{
		Invoke: invoke,
		Result: DataResult(axdr.NewInteger32(42)),
	}
	encoded, err := Encode(response)
	require.Nil(t, err)
	assert.Equal(t, []byte{0xC4, 0x01, 0xC1, 0x00, 0x05, 0x00, 0x00, 0x00, 0x2A}, encoded)

	decoded, err := Decode(encoded)
	require.Nil(t, err)
	normal, ok := decoded.(GetResponseNormal)
	require.True(t, ok)
	require.NotNil(t, normal.Result.Data)
	assert.Equal(t, axdr.NewInteger32(42), *normal.Result.Data)
}

func TestGetRequestNormalRoundTrip(t *testing.T) {
	invoke, err := NewInvokeIdAndPriority(1, false, true)
	require.Nil(t, err)
	request := GetRequestNormal{Invoke: invoke, Attribute: testAttribute()}
	encoded, err := Encode(request)
	require.Nil(t, err)
	assert.Equal(t, byte(0xC0), encoded[0])

	decoded, err := Decode(encoded)
	require.Nil(t, err)
	assert.Equal(t, request, decoded)
}

func TestGetRequestWithSelectiveAccess(t *testing.T) {
	invoke, err := NewInvokeIdAndPriority(3, false, true)
	require.Nil(t, err)
	request := GetRequestNormal{
		Invoke:    invoke,
		Attribute: testAttribute(),
		AccessSelection: &SelectiveAccess{
			Selector:   1,
			Parameters: axdr.NewStructure(axdr.NewUnsigned32(1), axdr.NewUnsigned32(10)),
		},
	}
	encoded, err := Encode(request)
	require.Nil(t, err)
	decoded, err := Decode(encoded)
	require.Nil(t, err)
	assert.Equal(t, request, decoded)
}

func TestGetRequestNextRoundTrip(t *testing.T) {
	invoke, err := NewInvokeIdAndPriority(2, false, true)
	require.Nil(t, err)
	request := GetRequestNext{Invoke: invoke, BlockNumber: 7}
	encoded, err := Encode(request)
	require.Nil(t, err)
	decoded, err := Decode(encoded)
	require.Nil(t, err)
	assert.Equal(t, request, decoded)
}

func TestGetRequestWithListRoundTrip(t *testing.T) {
	invoke, err := NewInvokeIdAndPriority(4, false, true)
	require.Nil(t, err)
	other := testAttribute()
	other.AttributeId = 3
	request := GetRequestWithList{
		Invoke: invoke,
		Items: []GetRequestItem{
			{Attribute: testAttribute()},
			{Attribute: other, AccessSelection: &SelectiveAccess{Selector: 2, Parameters: axdr.NewUnsigned8(1)}},
		},
	}
	encoded, err := Encode(request)
	require.Nil(t, err)
	decoded, err := Decode(encoded)
	require.Nil(t, err)
	assert.Equal(t, request, decoded)
}

func TestGetResponseWithDataBlockRoundTrip(t *testing.T) {
	invoke, err := NewInvokeIdAndPriority(1, false, true)
	require.Nil(t, err)
	response := GetResponseWithDataBlock{
		Invoke: invoke,
		Block:  RawBlock(false, 1, []byte{0x01, 0x02, 0x03}),
	}
	encoded, err := Encode(response)
	require.Nil(t, err)
	decoded, err := Decode(encoded)
	require.Nil(t, err)
	assert.Equal(t, response, decoded)

	failed := GetResponseWithDataBlock{
		Invoke: invoke,
		Block:  FailedBlock(2, AccessDataBlockUnavailable),
	}
	encoded, err = Encode(failed)
	require.Nil(t, err)
	decoded, err = Decode(encoded)
	require.Nil(t, err)
	block := decoded.(GetResponseWithDataBlock).Block
	assert.True(t, block.Failed())
	assert.Equal(t, AccessDataBlockUnavailable, block.Result)
}

func TestGetResponseWithListRoundTrip(t *testing.T) {
	invoke, err := NewInvokeIdAndPriority(5, false, true)
	require.Nil(t, err)
	response := GetResponseWithList{
		Invoke: invoke,
		Results: []GetDataResult{
			DataResult(axdr.NewUnsigned16(230)),
			ErrorResult(AccessObjectUndefined),
		},
	}
	encoded, err := Encode(response)
	require.Nil(t, err)
	decoded, err := Decode(encoded)
	require.Nil(t, err)
	assert.Equal(t, response, decoded)
}

func TestSetRequestRoundTrips(t *testing.T) {
	invoke, err := NewInvokeIdAndPriority(6, false, true)
	require.Nil(t, err)
	cases := []PDU{
		SetRequestNormal{Invoke: invoke, Attribute: testAttribute(), Value: axdr.NewVisibleString("on")},
		SetRequestWithFirstDataBlock{
			Invoke:    invoke,
			Attribute: testAttribute(),
			Block:     DataBlockSA{BlockNumber: 1, Raw: []byte{1, 2, 3}},
		},
		SetRequestWithDataBlock{
			Invoke: invoke,
			Block:  DataBlockSA{LastBlock: true, BlockNumber: 2, Raw: []byte{4, 5}},
		},
		SetRequestWithList{
			Invoke: invoke,
			Items:  []SetRequestItem{{Attribute: testAttribute()}},
			Values: []axdr.Data{axdr.NewBoolean(true)},
		},
	}
	for _, request := range cases {
		encoded, err := Encode(request)
		require.Nil(t, err)
		decoded, err := Decode(encoded)
		require.Nil(t, err)
		assert.Equal(t, request, decoded)
	}
}

func TestSetResponseRoundTrips(t *testing.T) {
	invoke, err := NewInvokeIdAndPriority(7, false, true)
	require.Nil(t, err)
	cases := []PDU{
		SetResponseNormal{Invoke: invoke, Result: AccessSuccess},
		SetResponseDataBlock{Invoke: invoke, BlockNumber: 3},
		SetResponseLastDataBlock{Invoke: invoke, Result: AccessTypeUnmatched, BlockNumber: 4},
		SetResponseLastDataBlockWithList{Invoke: invoke, Results: []AccessResult{AccessSuccess, AccessReadWriteDenied}, BlockNumber: 5},
		SetResponseWithList{Invoke: invoke, Results: []AccessResult{AccessSuccess}},
	}
	for _, response := range cases {
		encoded, err := Encode(response)
		require.Nil(t, err)
		decoded, err := Decode(encoded)
		require.Nil(t, err)
		assert.Equal(t, response, decoded)
	}
}

func TestActionRoundTrips(t *testing.T) {
	invoke, err := NewInvokeIdAndPriority(8, false, true)
	require.Nil(t, err)
	method := dlms.MethodDescriptor{
		ClassId:    15,
		InstanceId: dlms.NewObisCode(0, 0, 40, 0, 0, 255),
		MethodId:   1,
	}
	params := axdr.NewOctetString([]byte{0xAA, 0xBB})
	returnData := DataResult(axdr.NewOctetString([]byte{0x10, 0x20}))
	cases := []PDU{
		ActionRequestNormal{Invoke: invoke, Method: method, Parameters: &params},
		ActionRequestNormal{Invoke: invoke, Method: method},
		ActionRequestNextPblock{Invoke: invoke, BlockNumber: 2},
		ActionRequestWithList{Invoke: invoke, Items: []ActionRequestItem{{Method: method, Parameters: &params}, {Method: method}}},
		ActionRequestWithFirstBlock{Invoke: invoke, Method: method, Block: DataBlockSA{BlockNumber: 1, Raw: []byte{1}}},
		ActionRequestWithBlock{Invoke: invoke, Block: DataBlockSA{LastBlock: true, BlockNumber: 2, Raw: []byte{2}}},
		ActionResponseNormal{Invoke: invoke, Result: ActionResult{Result: ActionSuccess, ReturnData: &returnData}},
		ActionResponseNormal{Invoke: invoke, Result: ActionResult{Result: ActionObjectUndefined}},
		ActionResponseWithPblock{Invoke: invoke, Block: DataBlockSA{BlockNumber: 1, Raw: []byte{9}}},
		ActionResponseWithList{Invoke: invoke, Results: []ActionResult{{Result: ActionSuccess}}},
		ActionResponseNextPblock{Invoke: invoke, BlockNumber: 9},
	}
	for _, p := range cases {
		encoded, err := Encode(p)
		require.Nil(t, err)
		decoded, err := Decode(encoded)
		require.Nil(t, err)
		assert.Equal(t, p, decoded)
	}
}

func TestEventNotificationRoundTrip(t *testing.T) {
	when := axdr.DateTime{
		Date: axdr.Date{Year: 2024, Month: 6, DayOfMonth: 1, DayOfWeek: axdr.NotSpecified},
		Time: axdr.Time{Hour: 12, Minute: 0, Second: 0, Hundredths: 0},
	}
	notification := EventNotification{
		Time:      &when,
		Attribute: testAttribute(),
		Value:     axdr.NewUnsigned32(99),
	}
	encoded, err := Encode(notification)
	require.Nil(t, err)
	decoded, err := Decode(encoded)
	require.Nil(t, err)
	assert.Equal(t, notification, decoded)

	// Without a timestamp.
	notification.Time = nil
	encoded, err = Encode(notification)
	require.Nil(t, err)
	decoded, err = Decode(encoded)
	require.Nil(t, err)
	assert.Equal(t, notification, decoded)
}

func TestExceptionResponseRoundTrip(t *testing.T) {
	response := ExceptionResponse{StateError: StateErrorServiceNotAllowed, ServiceError: ServiceErrorNotSupported}
	encoded, err := Encode(response)
	require.Nil(t, err)
	assert.Equal(t, []byte{0xD8, 0x01, 0x02}, encoded)
	decoded, err := Decode(encoded)
	require.Nil(t, err)
	assert.Equal(t, response, decoded)
}

func TestAccessRoundTrip(t *testing.T) {
	request := AccessRequest{
		LongInvokeIdAndPriority: 0xC0000001,
		Specs:                   []AccessSpec{AccessGetSpec(testAttribute()), AccessSetSpec(testAttribute())},
		Values:                  []axdr.Data{axdr.NewNull(), axdr.NewUnsigned8(1)},
	}
	encoded, err := Encode(request)
	require.Nil(t, err)
	decoded, err := Decode(encoded)
	require.Nil(t, err)
	assert.Equal(t, request, decoded)

	response := AccessResponse{
		LongInvokeIdAndPriority: 0xC0000001,
		Values:                  []axdr.Data{axdr.NewUnsigned8(7), axdr.NewNull()},
		Results:                 []AccessResult{AccessSuccess, AccessSuccess},
	}
	encoded, err = Encode(response)
	require.Nil(t, err)
	decoded, err = Decode(encoded)
	require.Nil(t, err)
	assert.Equal(t, response, decoded)
}

func TestUnknownPDUTag(t *testing.T) {
	_, err := Decode([]byte{0x42, 0x00})
	assert.True(t, dlms.IsKind(err, dlms.KindProtocol))
}

func TestAccessResultNames(t *testing.T) {
	assert.Equal(t, "success", AccessSuccess.String())
	assert.Equal(t, "other-reason", AccessOtherReason.String())
	assert.Nil(t, AccessSuccess.Err())
	assert.True(t, dlms.IsKind(AccessReadWriteDenied.Err(), dlms.KindAccessDenied))
	assert.True(t, dlms.IsKind(AccessTypeUnmatched.Err(), dlms.KindProtocol))
}
