package security

import (
	"sync"

	dlms "github.com/openmetering/godlms"
)

// FrameCounter issues strictly increasing counters for outgoing
// protected frames. The counter may reach 0xFFFFFFFF but refuses to
// wrap past it; the association must be re-established with fresh
// keys instead.
type FrameCounter struct {
	mu   sync.Mutex
	next uint32
	worn bool
}

// NewFrameCounter starts counting at initial.
func NewFrameCounter(initial uint32) *FrameCounter {
	return &FrameCounter{next: initial}
}

// Next returns the counter for the next frame and advances.
func (f *FrameCounter) Next() (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.worn {
		return 0, dlms.NewError(dlms.KindSecurity, "frame counter exhausted")
	}
	value := f.next
	if f.next == 0xFFFFFFFF {
		f.worn = true
	} else {
		f.next++
	}
	return value, nil
}

// ReplayGuard tracks the highest frame counter accepted from a peer
// and rejects anything not strictly greater.
type ReplayGuard struct {
	mu   sync.Mutex
	last uint32
	seen bool
}

// Accept validates counter against the last accepted value and
// advances on success.
func (g *ReplayGuard) Accept(counter uint32) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seen && counter <= g.last {
		return dlms.Errorf(dlms.KindSecurity, "replay: counter %d not above %d", counter, g.last)
	}
	g.last = counter
	g.seen = true
	return nil
}

// Reset forgets the peer state, for a new association.
func (g *ReplayGuard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = 0
	g.seen = false
}
