package hdlc

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeStream adapts one end of net.Pipe to the stream contract.
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

func (p *pipeStream) Write(buf []byte) (int, error) {
	return p.conn.Write(buf)
}

func (p *pipeStream) SetReadTimeout(timeout time.Duration) error {
	p.timeout = timeout
	return nil
}

func (p *pipeStream) Closed() bool { return p.closed }

func (p *pipeStream) Close() error {
	p.closed = true
	return p.conn.Close()
}

func testLink(t *testing.T, clientParams, serverParams Parameters) (*Connection, *Connection) {
	t.Helper()
	clientEnd, serverEnd := net.Pipe()
	client := New(&pipeStream{conn: clientEnd}, Config{
		Local:           MustAddress(0x10, 1),
		Remote:          MustAddress(0x01, 1),
		Parameters:      clientParams,
		ResponseTimeout: 2 * time.Second,
	})
	server := New(&pipeStream{conn: serverEnd}, Config{
		Local:           MustAddress(0x01, 1),
		Remote:          MustAddress(0x10, 1),
		Parameters:      serverParams,
		ResponseTimeout: 2 * time.Second,
		Server:          true,
	})
	return client, server
}

func TestOpenNegotiatesParameters(t *testing.T) {
	client, server := testLink(t,
		Parameters{MaxInfoLengthTx: 1024, MaxInfoLengthRx: 1024, WindowSizeTx: 4, WindowSizeRx: 4},
		Parameters{MaxInfoLengthTx: 128, MaxInfoLengthRx: 128, WindowSizeTx: 1, WindowSizeRx: 1},
	)
	done := make(chan error, 1)
	go func() { done <- server.Accept() }()

	require.Nil(t, client.Open())
	require.Nil(t, <-done)

	assert.Equal(t, StateConnected, client.State())
	assert.Equal(t, StateConnected, server.State())
	assert.Equal(t, uint16(128), client.Parameters().MaxInfoLengthTx)
	assert.Equal(t, uint8(1), client.Parameters().WindowSizeTx)
}

func TestRequestResponse(t *testing.T) {
	client, server := testLink(t, Parameters{}, Parameters{})
	done := make(chan error, 1)
	go func() {
		if err := server.Accept(); err != nil {
			done <- err
			return
		}
		apdu, err := server.Receive()
		if err != nil {
			done <- err
			return
		}
		done <- server.Send(append([]byte{0xC4}, apdu...))
	}()

	require.Nil(t, client.Open())
	require.Nil(t, client.Send([]byte{0xC0, 0x01, 0xC1}))
	response, err := client.Receive()
	require.Nil(t, err)
	require.Nil(t, <-done)
	assert.Equal(t, []byte{0xC4, 0xC0, 0x01, 0xC1}, response)
}

func TestSegmentedTransfer(t *testing.T) {
	params := Parameters{MaxInfoLengthTx: 32, MaxInfoLengthRx: 32, WindowSizeTx: 1, WindowSizeRx: 1}
	client, server := testLink(t, params, params)

	payload := bytes.Repeat([]byte{0xAB}, 100)
	received := make(chan []byte, 1)
	done := make(chan error, 1)
	go func() {
		if err := server.Accept(); err != nil {
			done <- err
			return
		}
		apdu, err := server.Receive()
		if err != nil {
			done <- err
			return
		}
		received <- apdu
		done <- nil
	}()

	require.Nil(t, client.Open())
	require.Nil(t, client.Send(payload))
	require.Nil(t, <-done)
	assert.Equal(t, payload, <-received)

	stats := server.Statistics()
	assert.NotZero(t, stats.SegmentsReassembled)
}

func TestCloseHandshake(t *testing.T) {
	client, server := testLink(t, Parameters{}, Parameters{})
	done := make(chan error, 1)
	go func() {
		if err := server.Accept(); err != nil {
			done <- err
			return
		}
		// The server answers the DISC with UA.
		frame, err := server.readFrame(2 * time.Second)
		if err != nil {
			done <- err
			return
		}
		if frame.Type != FrameDISC {
			done <- err
			return
		}
		done <- server.writeFrame(NewControlFrame(server.pair(), FrameUA, nil))
	}()

	require.Nil(t, client.Open())
	require.Nil(t, client.Close())
	require.Nil(t, <-done)
	assert.Equal(t, StateClosed, client.State())
}

func TestSendInClosedState(t *testing.T) {
	client, _ := testLink(t, Parameters{}, Parameters{})
	assert.NotNil(t, client.Send([]byte{0x01}))
}
