package client

import (
	"testing"

	dlms "github.com/openmetering/godlms"
	"github.com/openmetering/godlms/pkg/axdr"
	"github.com/openmetering/godlms/pkg/pdu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunks(t *testing.T, value axdr.Data, size int) [][]byte {
	t.Helper()
	encoded, err := axdr.Encode(value)
	require.Nil(t, err)
	var out [][]byte
	for len(encoded) > 0 {
		n := size
		if n > len(encoded) {
			n = len(encoded)
		}
		out = append(out, encoded[:n])
		encoded = encoded[n:]
	}
	return out
}

func TestBlockAssemblyInOrder(t *testing.T) {
	value := axdr.NewOctetString(make([]byte, 50))
	parts := chunks(t, value, 20)
	require.Len(t, parts, 3)

	assembler := NewBlockAssembler()
	for i, part := range parts {
		last, err := assembler.Add(pdu.RawBlock(i == len(parts)-1, uint32(i+1), part))
		require.Nil(t, err)
		assert.Equal(t, i == len(parts)-1, last)
	}
	assembled, err := assembler.Assemble()
	require.Nil(t, err)
	assert.Equal(t, value.Tag, assembled.Tag)
}

func TestBlockAssemblySkippedNumber(t *testing.T) {
	assembler := NewBlockAssembler()
	_, err := assembler.Add(pdu.RawBlock(false, 1, []byte{1}))
	require.Nil(t, err)
	_, err = assembler.Add(pdu.RawBlock(true, 3, []byte{2}))
	assert.True(t, dlms.IsKind(err, dlms.KindProtocol))
}

func TestBlockAssemblyRepeatedNumber(t *testing.T) {
	assembler := NewBlockAssembler()
	_, err := assembler.Add(pdu.RawBlock(false, 1, []byte{1}))
	require.Nil(t, err)
	_, err = assembler.Add(pdu.RawBlock(false, 1, []byte{1}))
	assert.True(t, dlms.IsKind(err, dlms.KindProtocol))
}

func TestBlockAssemblyIncomplete(t *testing.T) {
	assembler := NewBlockAssembler()
	_, err := assembler.Add(pdu.RawBlock(false, 1, []byte{0x09}))
	require.Nil(t, err)
	_, err = assembler.Assemble()
	assert.True(t, dlms.IsKind(err, dlms.KindProtocol))
}

func TestBlockAssemblyFailedBlock(t *testing.T) {
	assembler := NewBlockAssembler()
	_, err := assembler.Add(pdu.FailedBlock(1, pdu.AccessLongGetAborted))
	assert.NotNil(t, err)
}
