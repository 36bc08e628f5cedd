package hdlc

import (
	"errors"
	"io"
	"time"

	dlms "github.com/openmetering/godlms"
	log "github.com/sirupsen/logrus"
)

func (c *Connection) writeFrame(frame Frame) error {
	encoded, err := frame.Encode()
	if err != nil {
		return err
	}
	wire := make([]byte, 0, len(encoded)+2)
	wire = append(wire, Flag)
	wire = append(wire, encoded...)
	wire = append(wire, Flag)
	if _, err := c.stream.Write(wire); err != nil {
		return wrapStreamErr(err)
	}
	c.mu.Lock()
	c.stats.FramesSent++
	c.mu.Unlock()
	log.WithFields(log.Fields{"type": frame.Type, "len": len(encoded)}).Trace("hdlc frame sent")
	return nil
}

// readFrame reads and decodes one frame. Frames failing their check
// sequences are counted and discarded without disconnecting; the
// read continues until a valid frame or the timeout.
func (c *Connection) readFrame(timeout time.Duration) (Frame, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Frame{}, dlms.NewError(dlms.KindTimeout, "hdlc: no frame before deadline")
		}
		raw, err := c.readRawFrame(remaining)
		if err != nil {
			return Frame{}, err
		}
		frame, err := DecodeFrame(raw)
		if err != nil {
			if dlms.IsKind(err, dlms.KindFrameInvalid) {
				c.mu.Lock()
				c.stats.ChecksumFailures++
				c.mu.Unlock()
				log.WithError(err).Debug("hdlc: discarding invalid frame")
				continue
			}
			return Frame{}, err
		}
		c.mu.Lock()
		c.stats.FramesReceived++
		c.mu.Unlock()
		return frame, nil
	}
}

// readRawFrame returns the bytes of one frame without its flags.
func (c *Connection) readRawFrame(timeout time.Duration) ([]byte, error) {
	if err := c.stream.SetReadTimeout(timeout); err != nil {
		return nil, wrapStreamErr(err)
	}

	// Skip the opening flag and any interframe fill.
	var b [1]byte
	for {
		if err := c.readFull(b[:]); err != nil {
			return nil, err
		}
		if b[0] != Flag {
			break
		}
	}

	header := []byte{b[0], 0}
	if err := c.readFull(header[1:]); err != nil {
		return nil, err
	}
	length := int(uint16(header[0])<<8|uint16(header[1])) & int(lengthMask)
	if length < 5 {
		return nil, dlms.Errorf(dlms.KindFrameInvalid, "hdlc: format length %d too short", length)
	}
	raw := make([]byte, length)
	copy(raw, header)
	if err := c.readFull(raw[2:]); err != nil {
		return nil, err
	}

	if err := c.readFull(b[:]); err != nil {
		return nil, err
	}
	if b[0] != Flag {
		return nil, dlms.Errorf(dlms.KindFrameInvalid, "hdlc: expected closing flag, got 0x%02X", b[0])
	}
	return raw, nil
}

func (c *Connection) readFull(buf []byte) error {
	for pos := 0; pos < len(buf); {
		n, err := c.stream.Read(buf[pos:])
		if err != nil {
			return wrapStreamErr(err)
		}
		if n == 0 {
			return dlms.NewError(dlms.KindConnection, "hdlc: stream closed")
		}
		pos += n
	}
	return nil
}

func wrapStreamErr(err error) error {
	var derr *dlms.Error
	if errors.As(err, &derr) {
		return err
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return dlms.WrapError(dlms.KindConnection, "stream closed", err)
	}
	type timeouter interface{ Timeout() bool }
	var terr timeouter
	if errors.As(err, &terr) && terr.Timeout() {
		return dlms.WrapError(dlms.KindTimeout, "stream read", err)
	}
	return dlms.WrapError(dlms.KindConnection, "stream", err)
}
