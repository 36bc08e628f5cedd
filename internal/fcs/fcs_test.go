package fcs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecksumKnownFrame(t *testing.T) {
	// Minimal UA frame A0 08 03 21 93 followed by its FCS.
	sum := Checksum([]byte{0xA0, 0x08, 0x03, 0x21, 0x93})
	assert.Equal(t, [2]byte{0xF6, 0xB3}, sum)
}

func TestResidual(t *testing.T) {
	data := []byte{0xA0, 0x08, 0x03, 0x21, 0x93}
	sum := Checksum(data)
	f := New().UpdateBytes(data).Update(sum[0]).Update(sum[1])
	assert.True(t, f.Good())
}

func TestResidualBrokenByte(t *testing.T) {
	data := []byte{0xA0, 0x08, 0x03, 0x21, 0x93}
	sum := Checksum(data)
	data[2] ^= 0x40
	f := New().UpdateBytes(data).Update(sum[0]).Update(sum[1])
	assert.False(t, f.Good())
}
