package hdlc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNegotiationRoundTrip(t *testing.T) {
	p := Parameters{MaxInfoLengthTx: 1024, MaxInfoLengthRx: 512, WindowSizeTx: 4, WindowSizeRx: 2}
	encoded := EncodeNegotiation(p)
	decoded, err := DecodeNegotiation(encoded)
	require.Nil(t, err)
	assert.Equal(t, p, decoded)
}

func TestNegotiationEmptyKeepsDefaults(t *testing.T) {
	decoded, err := DecodeNegotiation(nil)
	require.Nil(t, err)
	assert.Equal(t, DefaultParameters(), decoded)
}

func TestNegotiatedTakesMinimum(t *testing.T) {
	proposed := Parameters{MaxInfoLengthTx: 1024, MaxInfoLengthRx: 1024, WindowSizeTx: 7, WindowSizeRx: 7}
	received := Parameters{MaxInfoLengthTx: 256, MaxInfoLengthRx: 2048, WindowSizeTx: 1, WindowSizeRx: 4}
	negotiated := Negotiated(proposed, received)
	assert.Equal(t, Parameters{MaxInfoLengthTx: 256, MaxInfoLengthRx: 1024, WindowSizeTx: 1, WindowSizeRx: 4}, negotiated)
}

func TestNegotiationBadHeader(t *testing.T) {
	_, err := DecodeNegotiation([]byte{0x55, 0x80, 0x00})
	assert.NotNil(t, err)
}
