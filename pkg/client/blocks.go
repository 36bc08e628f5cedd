package client

import (
	dlms "github.com/openmetering/godlms"
	"github.com/openmetering/godlms/pkg/axdr"
	"github.com/openmetering/godlms/pkg/pdu"
)

// BlockAssembler rebuilds a value streamed as GetResponse
// WithDataBlock chunks. Block numbers start at 1 and must be
// strictly monotonic; any mismatch aborts the transfer.
type BlockAssembler struct {
	expected uint32
	buf      []byte
	done     bool
}

// NewBlockAssembler starts a transfer expecting block 1.
func NewBlockAssembler() *BlockAssembler {
	return &BlockAssembler{expected: 1}
}

// Add consumes one block. It returns true once the last block has
// been taken.
func (b *BlockAssembler) Add(block pdu.DataBlockG) (last bool, err error) {
	if b.done {
		return false, dlms.NewError(dlms.KindProtocol, "block-number: transfer already complete")
	}
	if block.Failed() {
		return false, block.Result.Err()
	}
	if block.BlockNumber != b.expected {
		return false, dlms.Errorf(dlms.KindProtocol, "block-number: got %d, expected %d", block.BlockNumber, b.expected)
	}
	b.buf = append(b.buf, block.Raw...)
	b.expected++
	if block.LastBlock {
		b.done = true
	}
	return b.done, nil
}

// LastReceived is the block number to echo in GetRequest Next.
func (b *BlockAssembler) LastReceived() uint32 {
	return b.expected - 1
}

// Assemble decodes the concatenated bytes as one A-XDR value.
func (b *BlockAssembler) Assemble() (axdr.Data, error) {
	if !b.done {
		return axdr.Data{}, dlms.NewError(dlms.KindProtocol, "block transfer incomplete")
	}
	value, _, err := axdr.Decode(b.buf)
	return value, err
}
