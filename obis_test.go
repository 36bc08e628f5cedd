package dlms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseObisCode(t *testing.T) {
	code, err := ParseObisCode("1.1.1.8.0.255")
	require.Nil(t, err)
	assert.Equal(t, ObisCode{1, 1, 1, 8, 0, 255}, code)
	assert.Equal(t, []byte{0x01, 0x01, 0x01, 0x08, 0x00, 0xFF}, code.Bytes())
	assert.Equal(t, "1.1.1.8.0.255", code.String())
}

func TestParseObisCodeReduced(t *testing.T) {
	code, err := ParseObisCode("1-0:1.8.0*255")
	require.Nil(t, err)
	assert.Equal(t, ObisCode{1, 0, 1, 8, 0, 255}, code)

	// F defaults to 255 when the *F group is absent.
	code, err = ParseObisCode("1-0:1.8.0")
	require.Nil(t, err)
	assert.Equal(t, ObisCode{1, 0, 1, 8, 0, 255}, code)
}

func TestParseObisCodeInvalid(t *testing.T) {
	for _, s := range []string{"", "1.2.3", "1.2.3.4.5.6.7", "1.2.3.4.5.256", "a.b.c.d.e.f", "1-0:1.8*2"} {
		_, err := ParseObisCode(s)
		assert.NotNil(t, err, "input %q", s)
		assert.True(t, IsKind(err, KindInvalidData), "input %q", s)
	}
}

func TestObisCodeEquality(t *testing.T) {
	a := NewObisCode(1, 0, 1, 8, 0, 255)
	b, err := ObisCodeFromBytes([]byte{1, 0, 1, 8, 0, 255})
	require.Nil(t, err)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, NewObisCode(1, 0, 1, 8, 1, 255))
}

func TestObisCodeFromBytesWrongLength(t *testing.T) {
	_, err := ObisCodeFromBytes([]byte{1, 2, 3})
	assert.True(t, IsKind(err, KindInvalidData))
}
