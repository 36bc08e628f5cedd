package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestAllocatorCyclesSkippingZero(t *testing.T) {
	allocator := NewInvokeAllocator(15)
	seen := map[uint8]bool{}
	for i := 0; i < 15; i++ {
		id, err := allocator.Allocate()
		require.Nil(t, err)
		assert.GreaterOrEqual(t, id, uint8(1))
		assert.LessOrEqual(t, id, uint8(15))
		assert.False(t, seen[id], "id %d handed out twice", id)
		seen[id] = true
	}
	// All in flight now.
	_, err := allocator.Allocate()
	assert.NotNil(t, err)

	allocator.Release(3)
	id, err := allocator.Allocate()
	require.Nil(t, err)
	assert.EqualValues(t, 3, id)
}

func TestAllocatorDistinctProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		max := uint8(rapid.IntRange(1, 127).Draw(t, "max"))
		k := rapid.IntRange(0, int(max)).Draw(t, "k")
		allocator := NewInvokeAllocator(max)
		seen := map[uint8]bool{}
		for i := 0; i < k; i++ {
			id, err := allocator.Allocate()
			require.Nil(t, err)
			require.GreaterOrEqual(t, id, uint8(1))
			require.LessOrEqual(t, id, uint8(127))
			require.False(t, seen[id])
			seen[id] = true
		}
	})
}

func TestAllocatorQuarantine(t *testing.T) {
	allocator := NewInvokeAllocator(2)
	id, err := allocator.Allocate()
	require.Nil(t, err)
	allocator.Quarantine(id, 50*time.Millisecond)

	// The quarantined id is skipped while the hold lasts.
	other, err := allocator.Allocate()
	require.Nil(t, err)
	assert.NotEqual(t, id, other)
	_, err = allocator.Allocate()
	assert.NotNil(t, err)

	time.Sleep(60 * time.Millisecond)
	back, err := allocator.Allocate()
	require.Nil(t, err)
	assert.Equal(t, id, back)
}
