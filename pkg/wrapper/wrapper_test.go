package wrapper

import (
	"net"
	"testing"
	"time"

	dlms "github.com/openmetering/godlms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipeStream struct {
	conn    net.Conn
	timeout time.Duration
	closed  bool
}

func (p *pipeStream) Read(buf []byte) (int, error) {
	if p.timeout > 0 {
		if err := p.conn.SetReadDeadline(time.Now().Add(p.timeout)); err != nil {
			return 0, err
		}
	}
	return p.conn.Read(buf)
}

func (p *pipeStream) Write(buf []byte) (int, error) { return p.conn.Write(buf) }

func (p *pipeStream) SetReadTimeout(timeout time.Duration) error {
	p.timeout = timeout
	return nil
}

func (p *pipeStream) Closed() bool { return p.closed }

func (p *pipeStream) Close() error {
	p.closed = true
	return p.conn.Close()
}

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{Version: 1, Source: 0x10, Destination: 0x01, Length: 42}
	encoded := h.Encode(nil)
	assert.Equal(t, []byte{0x00, 0x01, 0x00, 0x10, 0x00, 0x01, 0x00, 0x2A}, encoded)
	decoded, err := DecodeHeader(encoded)
	require.Nil(t, err)
	assert.Equal(t, h, decoded)
}

func TestHeaderBadVersion(t *testing.T) {
	_, err := DecodeHeader([]byte{0x00, 0x02, 0x00, 0x10, 0x00, 0x01, 0x00, 0x00})
	assert.True(t, dlms.IsKind(err, dlms.KindFrameInvalid))
}

func TestSendReceive(t *testing.T) {
	clientEnd, serverEnd := net.Pipe()
	client := New(&pipeStream{conn: clientEnd}, Config{Source: 0x10, Destination: 0x01})
	server := New(&pipeStream{conn: serverEnd}, Config{Source: 0x01, Destination: 0x10})

	apdu := []byte{0xC0, 0x01, 0xC1, 0x00, 0x01}
	received := make(chan []byte, 1)
	errs := make(chan error, 1)
	go func() {
		payload, err := server.Receive()
		if err != nil {
			errs <- err
			return
		}
		received <- payload
		errs <- nil
	}()

	require.Nil(t, client.Send(apdu))
	require.Nil(t, <-errs)
	assert.Equal(t, apdu, <-received)
}

func TestReceiveOversizedRejected(t *testing.T) {
	clientEnd, serverEnd := net.Pipe()
	client := New(&pipeStream{conn: clientEnd}, Config{Source: 0x10, Destination: 0x01})
	server := New(&pipeStream{conn: serverEnd}, Config{Source: 0x01, Destination: 0x10, MaxPDUSize: 4})

	go func() {
		// The reader rejects after the header, so this write may
		// stay partially unconsumed until the pipe closes.
		_ = client.Send([]byte{1, 2, 3, 4, 5, 6})
	}()
	_, err := server.Receive()
	assert.True(t, dlms.IsKind(err, dlms.KindFrameInvalid))
	_ = server.Close()
}

func TestEmptyAPDU(t *testing.T) {
	clientEnd, serverEnd := net.Pipe()
	client := New(&pipeStream{conn: clientEnd}, Config{Source: 0x10, Destination: 0x01})
	server := New(&pipeStream{conn: serverEnd}, Config{Source: 0x01, Destination: 0x10})

	payloads := make(chan []byte, 1)
	errs := make(chan error, 1)
	go func() {
		payload, err := server.Receive()
		payloads <- payload
		errs <- err
	}()
	require.Nil(t, client.Send(nil))
	assert.Empty(t, <-payloads)
	require.Nil(t, <-errs)
}
