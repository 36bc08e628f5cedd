package hdlc

import (
	"sync"
	"time"

	dlms "github.com/openmetering/godlms"
	log "github.com/sirupsen/logrus"
)

const (
	defaultResponseTimeout = 5 * time.Second
	// Retransmissions of an unacknowledged I frame before the
	// connection gives up and closes.
	defaultMaxRetries = 3
)

// Config carries the fixed settings of one HDLC connection.
type Config struct {
	Local           Address
	Remote          Address
	Parameters      Parameters
	ResponseTimeout time.Duration
	MaxRetries      int
	// Server makes the connection answer SNRM instead of sending
	// it, and swaps the LLC direction.
	Server bool
}

type sentFrame struct {
	seq   uint8
	frame Frame
}

// Connection drives one HDLC link over a byte stream: connection
// state machine, modulo-8 sliding window, segmentation and
// reassembly. All methods must be called from a single driver
// goroutine; the mutex only guards state inspection from outside.
type Connection struct {
	mu     sync.Mutex
	stream dlms.Stream
	cfg    Config

	state    State
	params   Parameters
	vs       uint8 // V(S), next send sequence
	vr       uint8 // V(R), next expected receive sequence
	unacked  []sentFrame
	peerBusy bool

	reassembly []byte
	delivered  [][]byte // APDUs received while sending

	llcSend []byte
	llcRecv []byte

	stats Statistics
}

// New creates a closed connection over stream.
func New(stream dlms.Stream, cfg Config) *Connection {
	if cfg.Parameters == (Parameters{}) {
		cfg.Parameters = DefaultParameters()
	}
	if cfg.ResponseTimeout == 0 {
		cfg.ResponseTimeout = defaultResponseTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	conn := &Connection{
		stream:  stream,
		cfg:     cfg,
		state:   StateClosed,
		params:  cfg.Parameters,
		llcSend: LLCRequest,
		llcRecv: LLCResponse,
	}
	if cfg.Server {
		conn.llcSend, conn.llcRecv = LLCResponse, LLCRequest
	}
	return conn
}

// State returns the current connection state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Statistics returns a snapshot of the traffic counters.
func (c *Connection) Statistics() Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats.Snapshot()
}

// Parameters returns the negotiated link parameters.
func (c *Connection) Parameters() Parameters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

func (c *Connection) setState(next State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ValidateTransition(c.state, next); err != nil {
		return err
	}
	if next == StateConnecting {
		// Reassembly never survives a reconnect.
		c.reassembly = nil
	}
	log.WithFields(log.Fields{"from": c.state, "to": next}).Debug("hdlc state change")
	c.state = next
	return nil
}

func (c *Connection) pair() AddressPair {
	return AddressPair{Destination: c.cfg.Remote, Source: c.cfg.Local}
}

// Open establishes the link: SNRM with the proposed parameters, UA
// installs the negotiated minimum of both proposals.
func (c *Connection) Open() error {
	if err := c.setState(StateConnecting); err != nil {
		return err
	}
	snrm := NewControlFrame(c.pair(), FrameSNRM, EncodeNegotiation(c.cfg.Parameters))
	if err := c.writeFrame(snrm); err != nil {
		c.abort()
		return err
	}
	frame, err := c.readFrame(c.cfg.ResponseTimeout)
	if err != nil {
		c.abort()
		return err
	}
	switch frame.Type {
	case FrameUA:
		received, err := DecodeNegotiation(frame.Information)
		if err != nil {
			c.abort()
			return err
		}
		c.mu.Lock()
		c.params = Negotiated(c.cfg.Parameters, received)
		c.vs, c.vr = 0, 0
		c.unacked = nil
		c.mu.Unlock()
		if err := c.setState(StateConnected); err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"remote":  c.cfg.Remote,
			"maxInfo": c.params.MaxInfoLengthTx,
			"window":  c.params.WindowSizeTx,
		}).Info("hdlc connected")
		return nil
	case FrameDM:
		c.abort()
		return dlms.NewError(dlms.KindConnection, "hdlc: connection refused with DM")
	default:
		c.abort()
		return dlms.Errorf(dlms.KindProtocol, "hdlc: expected UA, got %s", frame.Type)
	}
}

// Accept waits for a SNRM on a server-side connection and answers UA
// with the negotiated parameters.
func (c *Connection) Accept() error {
	if err := c.setState(StateConnecting); err != nil {
		return err
	}
	frame, err := c.readFrame(c.cfg.ResponseTimeout)
	if err != nil {
		c.abort()
		return err
	}
	if frame.Type != FrameSNRM {
		c.abort()
		return dlms.Errorf(dlms.KindProtocol, "hdlc: expected SNRM, got %s", frame.Type)
	}
	received, err := DecodeNegotiation(frame.Information)
	if err != nil {
		c.abort()
		return err
	}
	c.mu.Lock()
	c.params = Negotiated(c.cfg.Parameters, received)
	c.vs, c.vr = 0, 0
	c.unacked = nil
	params := c.params
	c.mu.Unlock()
	ua := NewControlFrame(AddressPair{Destination: frame.Addresses.Source, Source: c.cfg.Local}, FrameUA, EncodeNegotiation(params))
	if err := c.writeFrame(ua); err != nil {
		c.abort()
		return err
	}
	return c.setState(StateConnected)
}

// Close releases the link with DISC and closes the stream.
func (c *Connection) Close() error {
	if c.State() == StateClosed {
		return nil
	}
	if c.State() == StateConnected {
		if err := c.setState(StateClosing); err != nil {
			return err
		}
		disc := NewControlFrame(c.pair(), FrameDISC, nil)
		if err := c.writeFrame(disc); err == nil {
			// UA or DM both complete the disconnect; a timeout
			// closes anyway.
			if frame, err := c.readFrame(c.cfg.ResponseTimeout); err == nil {
				if frame.Type != FrameUA && frame.Type != FrameDM {
					log.WithField("type", frame.Type).Warn("hdlc: unexpected disconnect reply")
				}
			}
		}
	}
	if err := c.setState(StateClosed); err != nil {
		return err
	}
	return c.stream.Close()
}

func (c *Connection) abort() {
	if err := c.setState(StateClosed); err == nil {
		_ = c.stream.Close()
	}
}

// Send transmits one APDU, segmenting it over as many I frames as
// the negotiated information field length requires.
func (c *Connection) Send(apdu []byte) error {
	if !c.State().CanSendInformation() {
		return dlms.Errorf(dlms.KindConnection, "hdlc: cannot send in state %s", c.State())
	}
	payload := append(append([]byte(nil), c.llcSend...), apdu...)
	maxSeg := int(c.params.MaxInfoLengthTx)

	for offset := 0; offset < len(payload); {
		end := offset + maxSeg
		segmented := end < len(payload)
		if !segmented {
			end = len(payload)
		}
		if err := c.sendSegment(payload[offset:end], segmented); err != nil {
			return err
		}
		offset = end
	}
	return nil
}

func (c *Connection) sendSegment(segment []byte, segmented bool) error {
	for len(c.unacked) >= int(c.params.WindowSizeTx) || c.peerBusy {
		if err := c.awaitAck(); err != nil {
			return err
		}
	}
	frame := NewInformationFrame(c.pair(), c.vs, c.vr, segmented, segment)
	if err := c.writeFrame(frame); err != nil {
		return err
	}
	c.unacked = append(c.unacked, sentFrame{seq: c.vs, frame: frame})
	c.vs = (c.vs + 1) % 8
	return nil
}

// awaitAck reads frames until the send window moves, retransmitting
// on timeout up to the configured cap.
func (c *Connection) awaitAck() error {
	for attempt := 0; ; attempt++ {
		frame, err := c.readFrame(c.cfg.ResponseTimeout)
		if dlms.IsKind(err, dlms.KindTimeout) {
			if attempt >= c.cfg.MaxRetries {
				c.abort()
				return dlms.NewError(dlms.KindTimeout, "hdlc: no acknowledgement after retransmissions")
			}
			if err := c.retransmit(); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		if done, err := c.handleFrame(frame); err != nil {
			return err
		} else if done || len(c.unacked) < int(c.params.WindowSizeTx) {
			return nil
		}
	}
}

func (c *Connection) retransmit() error {
	for _, sent := range c.unacked {
		c.bump(&c.stats.Retransmissions)
		if err := c.writeFrame(sent.frame); err != nil {
			return err
		}
	}
	return nil
}

// Receive blocks until one complete APDU has been reassembled.
func (c *Connection) Receive() ([]byte, error) {
	if len(c.delivered) > 0 {
		apdu := c.delivered[0]
		c.delivered = c.delivered[1:]
		return apdu, nil
	}
	if c.State() != StateConnected {
		return nil, dlms.Errorf(dlms.KindConnection, "hdlc: cannot receive in state %s", c.State())
	}
	for {
		frame, err := c.readFrame(c.cfg.ResponseTimeout)
		if err != nil {
			return nil, err
		}
		if _, err := c.handleFrame(frame); err != nil {
			return nil, err
		}
		if len(c.delivered) > 0 {
			apdu := c.delivered[0]
			c.delivered = c.delivered[1:]
			return apdu, nil
		}
	}
}

// handleFrame updates window and reassembly state for one incoming
// frame. It reports whether an acknowledgement arrived.
func (c *Connection) handleFrame(frame Frame) (acked bool, err error) {
	switch frame.Type {
	case FrameI:
		c.acknowledge(frame.RecvSeq)
		if frame.SendSeq != c.vr {
			// Out of sequence: discard and repeat our expectation.
			c.bump(&c.stats.Discarded)
			log.WithFields(log.Fields{"got": frame.SendSeq, "want": c.vr}).Debug("hdlc: out of sequence I frame")
			return true, c.writeFrame(NewReceiveReady(c.pair(), c.vr))
		}
		c.vr = (c.vr + 1) % 8
		c.reassembly = append(c.reassembly, frame.Information...)
		if frame.Segmented {
			c.bump(&c.stats.SegmentsReassembled)
			return true, c.writeFrame(NewReceiveReady(c.pair(), c.vr))
		}
		apdu, err := c.stripLLC(c.reassembly)
		c.reassembly = nil
		if err != nil {
			return true, err
		}
		c.delivered = append(c.delivered, apdu)
		return true, nil

	case FrameRR:
		c.peerBusy = false
		c.acknowledge(frame.RecvSeq)
		return true, nil

	case FrameRNR:
		c.peerBusy = true
		c.acknowledge(frame.RecvSeq)
		return true, nil

	case FrameDM, FrameDISC:
		c.abort()
		return false, dlms.NewError(dlms.KindConnection, "hdlc: peer disconnected")

	case FrameFRMR:
		c.abort()
		return false, dlms.NewError(dlms.KindProtocol, "hdlc: frame reject from peer")

	case FrameUI:
		// Unnumbered information is outside the window; deliver as is.
		apdu, err := c.stripLLC(frame.Information)
		if err != nil {
			return false, err
		}
		c.delivered = append(c.delivered, apdu)
		return false, nil

	default:
		c.bump(&c.stats.Discarded)
		return false, nil
	}
}

func (c *Connection) bump(counter *uint64) {
	c.mu.Lock()
	*counter++
	c.mu.Unlock()
}

// acknowledge drops every unacked frame up to but not including
// sequence number nr. Outstanding frames are queued in send order,
// so popping from the front until the head reaches N(R) is the
// modulo-8 window advance.
func (c *Connection) acknowledge(nr uint8) {
	for len(c.unacked) > 0 && c.unacked[0].seq != nr {
		c.unacked = c.unacked[1:]
	}
}

func (c *Connection) stripLLC(payload []byte) ([]byte, error) {
	if len(payload) >= 3 && payload[0] == 0xE6 && (payload[1] == 0xE6 || payload[1] == 0xE7) && payload[2] == 0x00 {
		return payload[3:], nil
	}
	return nil, dlms.NewError(dlms.KindProtocol, "hdlc: missing LLC header")
}
