// Package transport provides the byte stream implementations the
// session layers run over: TCP, UDP and serial.
package transport

import (
	"fmt"
	"net"
	"sync"
	"time"

	dlms "github.com/openmetering/godlms"
	log "github.com/sirupsen/logrus"
)

const defaultDialTimeout = 10 * time.Second

// TCP is a stream over one TCP connection.
type TCP struct {
	Host        string
	Port        int
	DialTimeout time.Duration

	mu      sync.Mutex
	conn    net.Conn
	timeout time.Duration
	closed  bool
}

// NewTCP builds an unopened TCP transport.
func NewTCP(host string, port int) *TCP {
	return &TCP{Host: host, Port: port, DialTimeout: defaultDialTimeout}
}

// NewTCPFromConn wraps an accepted connection, server side.
func NewTCPFromConn(conn net.Conn) *TCP {
	return &TCP{conn: conn}
}

// Open dials the meter.
func (t *TCP) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return nil
	}
	address := net.JoinHostPort(t.Host, fmt.Sprintf("%d", t.Port))
	dialTimeout := t.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = defaultDialTimeout
	}
	conn, err := net.DialTimeout("tcp", address, dialTimeout)
	if err != nil {
		return dlms.WrapError(dlms.KindConnection, "tcp dial "+address, err)
	}
	log.WithField("address", address).Debug("tcp transport open")
	t.conn = conn
	t.closed = false
	return nil
}

func (t *TCP) Read(buf []byte) (int, error) {
	conn, timeout, err := t.connection()
	if err != nil {
		return 0, err
	}
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return 0, dlms.WrapError(dlms.KindConnection, "tcp deadline", err)
	}
	n, err := conn.Read(buf)
	if err != nil {
		return n, wrapNetErr(err)
	}
	return n, nil
}

func (t *TCP) Write(buf []byte) (int, error) {
	conn, _, err := t.connection()
	if err != nil {
		return 0, err
	}
	n, err := conn.Write(buf)
	if err != nil {
		return n, wrapNetErr(err)
	}
	return n, nil
}

// SetReadTimeout bounds subsequent reads; zero clears the bound.
func (t *TCP) SetReadTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	return nil
}

// Closed reports whether the stream was closed.
func (t *TCP) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Close shuts the connection down.
func (t *TCP) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.conn == nil {
		t.closed = true
		return nil
	}
	t.closed = true
	return t.conn.Close()
}

func (t *TCP) connection() (net.Conn, time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil || t.closed {
		return nil, 0, dlms.NewError(dlms.KindConnection, "tcp transport not open")
	}
	return t.conn, t.timeout, nil
}

func wrapNetErr(err error) error {
	var nerr net.Error
	if ok := asNetError(err, &nerr); ok && nerr.Timeout() {
		return dlms.WrapError(dlms.KindTimeout, "read deadline", err)
	}
	return dlms.WrapError(dlms.KindConnection, "i/o", err)
}
