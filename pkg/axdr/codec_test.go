package axdr

import (
	"bytes"
	"testing"

	dlms "github.com/openmetering/godlms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInteger32RoundTrip(t *testing.T) {
	encoded, err := Encode(NewInteger32(-1))
	require.Nil(t, err)
	assert.Equal(t, []byte{0x05, 0xFF, 0xFF, 0xFF, 0xFF}, encoded)

	decoded, n, err := Decode(encoded)
	require.Nil(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, NewInteger32(-1), decoded)
}

func TestLengthBoundary(t *testing.T) {
	short := EncodeLength(nil, 127)
	assert.Equal(t, []byte{0x7F}, short)
	long := EncodeLength(nil, 128)
	assert.Equal(t, []byte{0x81, 0x80}, long)

	for _, n := range []int{0, 1, 127, 128, 255, 256, 65535, 1 << 20} {
		encoded := EncodeLength(nil, n)
		decoded, consumed, err := DecodeLength(encoded)
		require.Nil(t, err)
		assert.Equal(t, n, decoded)
		assert.Equal(t, len(encoded), consumed)
	}
}

func TestLengthIndefiniteRejected(t *testing.T) {
	_, _, err := DecodeLength([]byte{0x80})
	assert.True(t, dlms.IsKind(err, dlms.KindInvalidData))
}

func TestOctetStringBoundary(t *testing.T) {
	// 128 bytes forces the long length form.
	payload := bytes.Repeat([]byte{0xAB}, 128)
	encoded, err := Encode(NewOctetString(payload))
	require.Nil(t, err)
	assert.Equal(t, byte(0x09), encoded[0])
	assert.Equal(t, byte(0x81), encoded[1])
	assert.Equal(t, byte(0x80), encoded[2])

	decoded, n, err := Decode(encoded)
	require.Nil(t, err)
	assert.Equal(t, len(encoded), n)
	assert.Equal(t, payload, decoded.Value)
}

func TestEmptyValues(t *testing.T) {
	for _, d := range []Data{NewNull(), NewDontCare(), NewOctetString([]byte{}), NewArray()} {
		encoded, err := Encode(d)
		require.Nil(t, err)
		decoded, n, err := Decode(encoded)
		require.Nil(t, err)
		assert.Equal(t, len(encoded), n)
		assert.Equal(t, d.Tag, decoded.Tag)
	}
}

func TestUnknownTag(t *testing.T) {
	_, _, err := Decode([]byte{0x7C, 0x00})
	assert.True(t, dlms.IsKind(err, dlms.KindInvalidData))
}

func TestTruncatedInput(t *testing.T) {
	encoded, err := Encode(NewInteger32(1234))
	require.Nil(t, err)
	for cut := 1; cut < len(encoded); cut++ {
		_, _, err := Decode(encoded[:cut])
		assert.NotNil(t, err, "cut at %d", cut)
	}
}

func TestLengthBeyondInput(t *testing.T) {
	// octet-string declaring 5 bytes but carrying 2
	_, _, err := Decode([]byte{0x09, 0x05, 0x01, 0x02})
	assert.True(t, dlms.IsKind(err, dlms.KindInvalidData))
}

func TestStructureRoundTrip(t *testing.T) {
	d := NewStructure(
		NewUnsigned16(3),
		NewOctetString([]byte{1, 0, 1, 8, 0, 255}),
		NewInteger8(2),
	)
	encoded, err := Encode(d)
	require.Nil(t, err)
	decoded, n, err := Decode(encoded)
	require.Nil(t, err)
	assert.Equal(t, len(encoded), n)
	assert.Equal(t, d, decoded)
}

func TestBitStringRoundTrip(t *testing.T) {
	d := NewBitString(BitString{Length: 11, Bytes: []byte{0xAC, 0x40}})
	encoded, err := Encode(d)
	require.Nil(t, err)
	decoded, n, err := Decode(encoded)
	require.Nil(t, err)
	assert.Equal(t, len(encoded), n)
	assert.Equal(t, d, decoded)
}

func TestBitStringOverdeclared(t *testing.T) {
	_, err := Encode(NewBitString(BitString{Length: 17, Bytes: []byte{0xFF, 0xFF}}))
	assert.True(t, dlms.IsKind(err, dlms.KindInvalidData))
}

func TestCompactArrayRoundTrip(t *testing.T) {
	ca := CompactArray{
		Type:  TypeDescription{Tag: TagUnsigned16},
		Items: []Data{NewUnsigned16(1), NewUnsigned16(2), NewUnsigned16(3)},
	}
	encoded, err := Encode(Data{Tag: TagCompactArray, Value: ca})
	require.Nil(t, err)
	decoded, n, err := Decode(encoded)
	require.Nil(t, err)
	assert.Equal(t, len(encoded), n)
	assert.Equal(t, ca, decoded.Value)
}

func TestCompactArrayStructureElements(t *testing.T) {
	td := TypeDescription{Tag: TagStructure, Elements: []TypeDescription{
		{Tag: TagUnsigned8}, {Tag: TagInteger32},
	}}
	ca := CompactArray{
		Type: td,
		Items: []Data{
			NewStructure(NewUnsigned8(1), NewInteger32(-5)),
			NewStructure(NewUnsigned8(2), NewInteger32(42)),
		},
	}
	encoded, err := Encode(Data{Tag: TagCompactArray, Value: ca})
	require.Nil(t, err)
	decoded, n, err := Decode(encoded)
	require.Nil(t, err)
	assert.Equal(t, len(encoded), n)
	assert.Equal(t, ca, decoded.Value)
}

func TestCompactArrayNonConformingElement(t *testing.T) {
	ca := CompactArray{
		Type:  TypeDescription{Tag: TagUnsigned16},
		Items: []Data{NewUnsigned16(1), NewInteger8(2)},
	}
	_, err := Encode(Data{Tag: TagCompactArray, Value: ca})
	assert.True(t, dlms.IsKind(err, dlms.KindInvalidData))
}

func TestRestartableDecode(t *testing.T) {
	first, err := Encode(NewUnsigned8(7))
	require.Nil(t, err)
	second, err := Encode(NewVisibleString("kWh"))
	require.Nil(t, err)
	buf := append(first, second...)

	d1, n1, err := Decode(buf)
	require.Nil(t, err)
	assert.Equal(t, NewUnsigned8(7), d1)
	d2, n2, err := Decode(buf[n1:])
	require.Nil(t, err)
	assert.Equal(t, NewVisibleString("kWh"), d2)
	assert.Equal(t, len(buf), n1+n2)
}
