package client

import (
	"sync"
	"time"

	dlms "github.com/openmetering/godlms"
)

// InvokeAllocator hands out invoke identifiers, cycling over
// 1..max and skipping zero. Identifiers stay unavailable while a
// request is in flight, and for a quarantine interval after a
// timeout so a late response cannot be correlated with a new
// request.
type InvokeAllocator struct {
	mu         sync.Mutex
	max        uint8
	next       uint8
	inFlight   map[uint8]bool
	quarantine map[uint8]time.Time
}

// NewInvokeAllocator builds an allocator over 1..max. The 4-bit
// invoke-id-and-priority field caps max at 15; peers using the wide
// encoding may go up to 127.
func NewInvokeAllocator(max uint8) *InvokeAllocator {
	if max == 0 || max > 127 {
		max = 15
	}
	return &InvokeAllocator{
		max:        max,
		next:       1,
		inFlight:   make(map[uint8]bool),
		quarantine: make(map[uint8]time.Time),
	}
}

// Allocate returns the next free identifier.
func (a *InvokeAllocator) Allocate() (uint8, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := time.Now()
	for tried := uint8(0); tried < a.max; tried++ {
		id := a.next
		a.next++
		if a.next > a.max {
			a.next = 1
		}
		if a.inFlight[id] {
			continue
		}
		if until, held := a.quarantine[id]; held {
			if now.Before(until) {
				continue
			}
			delete(a.quarantine, id)
		}
		a.inFlight[id] = true
		return id, nil
	}
	return 0, dlms.NewError(dlms.KindProtocol, "invoke ids exhausted")
}

// Release frees an identifier after its response arrived.
func (a *InvokeAllocator) Release(id uint8) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inFlight, id)
}

// Quarantine frees an identifier but holds it back until after the
// given interval, used when a request timed out.
func (a *InvokeAllocator) Quarantine(id uint8, interval time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inFlight, id)
	a.quarantine[id] = time.Now().Add(interval)
}

// InFlight reports whether id has been allocated and not released.
func (a *InvokeAllocator) InFlight(id uint8) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inFlight[id]
}
