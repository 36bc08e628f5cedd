package transport

import (
	"sync"
	"time"

	"github.com/pkg/term"

	dlms "github.com/openmetering/godlms"
	log "github.com/sirupsen/logrus"
)

// Serial is a stream over an optical head or RS-485 serial port.
type Serial struct {
	Device string
	Baud   int

	mu      sync.Mutex
	port    *term.Term
	timeout time.Duration
	closed  bool
}

// NewSerial builds an unopened serial transport. Meters default to
// 9600 8N1 on the optical interface.
func NewSerial(device string, baud int) *Serial {
	if baud == 0 {
		baud = 9600
	}
	return &Serial{Device: device, Baud: baud}
}

// Open opens the port in raw mode.
func (s *Serial) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port != nil {
		return nil
	}
	port, err := term.Open(s.Device, term.Speed(s.Baud), term.RawMode)
	if err != nil {
		return dlms.WrapError(dlms.KindConnection, "serial open "+s.Device, err)
	}
	log.WithFields(log.Fields{"device": s.Device, "baud": s.Baud}).Debug("serial transport open")
	s.port = port
	s.closed = false
	return nil
}

func (s *Serial) Read(buf []byte) (int, error) {
	s.mu.Lock()
	port, timeout := s.port, s.timeout
	closed := s.closed
	s.mu.Unlock()
	if port == nil || closed {
		return 0, dlms.NewError(dlms.KindConnection, "serial transport not open")
	}
	if timeout > 0 {
		if err := port.SetReadTimeout(timeout); err != nil {
			return 0, dlms.WrapError(dlms.KindConnection, "serial timeout", err)
		}
	}
	n, err := port.Read(buf)
	if err != nil {
		return n, dlms.WrapError(dlms.KindConnection, "serial read", err)
	}
	if n == 0 && timeout > 0 {
		// The term package signals an expired VTIME read with a
		// zero-byte result.
		return 0, dlms.NewError(dlms.KindTimeout, "serial read deadline")
	}
	return n, nil
}

func (s *Serial) Write(buf []byte) (int, error) {
	s.mu.Lock()
	port := s.port
	closed := s.closed
	s.mu.Unlock()
	if port == nil || closed {
		return 0, dlms.NewError(dlms.KindConnection, "serial transport not open")
	}
	n, err := port.Write(buf)
	if err != nil {
		return n, dlms.WrapError(dlms.KindConnection, "serial write", err)
	}
	return n, nil
}

// SetReadTimeout bounds subsequent reads; zero clears the bound.
func (s *Serial) SetReadTimeout(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeout = timeout
	return nil
}

// Closed reports whether the port was closed.
func (s *Serial) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close restores and closes the port.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.port == nil {
		s.closed = true
		return nil
	}
	s.closed = true
	_ = s.port.Restore()
	return s.port.Close()
}
