package transport

import (
	"fmt"
	"net"
	"sync"
	"time"

	dlms "github.com/openmetering/godlms"
	log "github.com/sirupsen/logrus"
)

// UDP is a stream over UDP datagrams to one peer. Datagram
// boundaries disappear behind an internal buffer so the session
// layers can read byte-wise.
type UDP struct {
	Host string
	Port int

	mu      sync.Mutex
	conn    *net.UDPConn
	pending []byte
	timeout time.Duration
	closed  bool
}

// NewUDP builds an unopened UDP transport.
func NewUDP(host string, port int) *UDP {
	return &UDP{Host: host, Port: port}
}

// Open resolves and connects the socket.
func (u *UDP) Open() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.conn != nil {
		return nil
	}
	address := net.JoinHostPort(u.Host, fmt.Sprintf("%d", u.Port))
	remote, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return dlms.WrapError(dlms.KindConnection, "udp resolve "+address, err)
	}
	conn, err := net.DialUDP("udp", nil, remote)
	if err != nil {
		return dlms.WrapError(dlms.KindConnection, "udp dial "+address, err)
	}
	log.WithField("address", address).Debug("udp transport open")
	u.conn = conn
	u.closed = false
	return nil
}

func (u *UDP) Read(buf []byte) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.conn == nil || u.closed {
		return 0, dlms.NewError(dlms.KindConnection, "udp transport not open")
	}
	if len(u.pending) == 0 {
		var deadline time.Time
		if u.timeout > 0 {
			deadline = time.Now().Add(u.timeout)
		}
		if err := u.conn.SetReadDeadline(deadline); err != nil {
			return 0, dlms.WrapError(dlms.KindConnection, "udp deadline", err)
		}
		scratch := make([]byte, 65536)
		n, err := u.conn.Read(scratch)
		if err != nil {
			return 0, wrapNetErr(err)
		}
		u.pending = scratch[:n]
	}
	n := copy(buf, u.pending)
	u.pending = u.pending[n:]
	return n, nil
}

func (u *UDP) Write(buf []byte) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.conn == nil || u.closed {
		return 0, dlms.NewError(dlms.KindConnection, "udp transport not open")
	}
	n, err := u.conn.Write(buf)
	if err != nil {
		return n, wrapNetErr(err)
	}
	return n, nil
}

// SetReadTimeout bounds subsequent reads; zero clears the bound.
func (u *UDP) SetReadTimeout(timeout time.Duration) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.timeout = timeout
	return nil
}

// Closed reports whether the stream was closed.
func (u *UDP) Closed() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.closed
}

// Close shuts the socket down.
func (u *UDP) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed || u.conn == nil {
		u.closed = true
		return nil
	}
	u.closed = true
	return u.conn.Close()
}
