package ber

import (
	"testing"

	dlms "github.com/openmetering/godlms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPrimitiveRoundTrip(t *testing.T) {
	n := NewPrimitive(ClassContext, 1, []byte{0x60, 0x85, 0x74, 0x05, 0x08, 0x01, 0x01})
	encoded, err := n.Encode()
	require.Nil(t, err)
	decoded, consumed, err := Decode(encoded)
	require.Nil(t, err)
	assert.Equal(t, len(encoded), consumed)
	assert.Equal(t, n, decoded)
}

func TestConstructedRoundTrip(t *testing.T) {
	n := NewConstructed(ClassApplication, 0,
		NewConstructed(ClassContext, 1, NewPrimitive(ClassUniversal, TagObjectIdentifier, []byte{0x60})),
		NewPrimitive(ClassContext, 30, []byte{0x01, 0x02}),
	)
	encoded, err := n.Encode()
	require.Nil(t, err)
	decoded, consumed, err := Decode(encoded)
	require.Nil(t, err)
	assert.Equal(t, len(encoded), consumed)
	assert.Equal(t, n, decoded)
}

func TestExtendedTagRoundTrip(t *testing.T) {
	n := NewPrimitive(ClassContext, 31, []byte{0xAA})
	encoded, err := n.Encode()
	require.Nil(t, err)
	// 0x1F marker plus one tag number octet
	assert.Equal(t, byte(0x9F), encoded[0])
	assert.Equal(t, byte(31), encoded[1])
	decoded, _, err := Decode(encoded)
	require.Nil(t, err)
	assert.Equal(t, n, decoded)
}

func TestIndefiniteLengthRejected(t *testing.T) {
	_, _, err := Decode([]byte{0x30, 0x80, 0x00, 0x00})
	assert.True(t, dlms.IsKind(err, dlms.KindAsn1Decoding))
}

func TestTruncatedValue(t *testing.T) {
	_, _, err := Decode([]byte{0x04, 0x05, 0x01})
	assert.True(t, dlms.IsKind(err, dlms.KindAsn1Decoding))
}

func TestOIDRoundTrip(t *testing.T) {
	arcs := []uint32{2, 16, 756, 5, 8, 1, 1}
	encoded, err := EncodeOID(arcs)
	require.Nil(t, err)
	assert.Equal(t, []byte{0x60, 0x85, 0x74, 0x05, 0x08, 0x01, 0x01}, encoded)
	decoded, err := DecodeOID(encoded)
	require.Nil(t, err)
	assert.Equal(t, arcs, decoded)
}

func TestNodeRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := NewPrimitive(
			Class(rapid.SampledFrom([]Class{ClassUniversal, ClassApplication, ClassContext, ClassPrivate}).Draw(t, "class")),
			rapid.Uint32Range(0, 500).Draw(t, "number"),
			rapid.SliceOfN(rapid.Byte(), 0, 300).Draw(t, "value"),
		)
		encoded, err := n.Encode()
		require.Nil(t, err)
		decoded, consumed, err := Decode(encoded)
		require.Nil(t, err)
		assert.Equal(t, len(encoded), consumed)
		assert.Equal(t, n.Tag, decoded.Tag)
		if len(n.Value) == 0 {
			assert.Empty(t, decoded.Value)
		} else {
			assert.Equal(t, n.Value, decoded.Value)
		}
	})
}
