// Package wrapper implements the TCP/UDP wrapper session layer: an
// 8-byte header carrying version, source and destination wrapper
// ports and the APDU length. There are no windows and no
// retransmission; reliability comes from the transport underneath.
package wrapper

import (
	"encoding/binary"
	"errors"
	"io"
	"time"

	dlms "github.com/openmetering/godlms"
	log "github.com/sirupsen/logrus"
)

// Version is the only wrapper protocol version in use.
const Version uint16 = 1

// HeaderLength is the fixed wrapper header size.
const HeaderLength = 8

const defaultMaxPDUSize = 65535

// Header is the 8-byte wrapper prefix.
type Header struct {
	Version     uint16
	Source      uint16
	Destination uint16
	Length      uint16
}

// Encode appends the wire form of the header.
func (h Header) Encode(dst []byte) []byte {
	dst = binary.BigEndian.AppendUint16(dst, h.Version)
	dst = binary.BigEndian.AppendUint16(dst, h.Source)
	dst = binary.BigEndian.AppendUint16(dst, h.Destination)
	return binary.BigEndian.AppendUint16(dst, h.Length)
}

// DecodeHeader parses an 8-byte wrapper header.
func DecodeHeader(raw []byte) (Header, error) {
	if len(raw) < HeaderLength {
		return Header{}, dlms.Errorf(dlms.KindFrameInvalid, "wrapper: header needs %d bytes, got %d", HeaderLength, len(raw))
	}
	h := Header{
		Version:     binary.BigEndian.Uint16(raw[0:2]),
		Source:      binary.BigEndian.Uint16(raw[2:4]),
		Destination: binary.BigEndian.Uint16(raw[4:6]),
		Length:      binary.BigEndian.Uint16(raw[6:8]),
	}
	if h.Version != Version {
		return Header{}, dlms.Errorf(dlms.KindFrameInvalid, "wrapper: version %d", h.Version)
	}
	return h, nil
}

// Config carries the wrapper port pair and receive bound.
type Config struct {
	Source      uint16
	Destination uint16
	// MaxPDUSize bounds the length field accepted on receive.
	MaxPDUSize  int
	ReadTimeout time.Duration
}

// Session frames APDUs over a byte stream.
type Session struct {
	stream dlms.Stream
	cfg    Config
}

// New creates a wrapper session over stream.
func New(stream dlms.Stream, cfg Config) *Session {
	if cfg.MaxPDUSize == 0 {
		cfg.MaxPDUSize = defaultMaxPDUSize
	}
	return &Session{stream: stream, cfg: cfg}
}

// Open is part of the session contract; the wrapper has no link
// handshake of its own.
func (s *Session) Open() error {
	return nil
}

// Send prepends the header and writes the APDU.
func (s *Session) Send(apdu []byte) error {
	if len(apdu) > 0xFFFF {
		return dlms.Errorf(dlms.KindInvalidData, "wrapper: APDU of %d bytes does not fit the length field", len(apdu))
	}
	header := Header{
		Version:     Version,
		Source:      s.cfg.Source,
		Destination: s.cfg.Destination,
		Length:      uint16(len(apdu)),
	}
	wire := header.Encode(make([]byte, 0, HeaderLength+len(apdu)))
	wire = append(wire, apdu...)
	if _, err := s.stream.Write(wire); err != nil {
		return wrapStreamErr(err)
	}
	log.WithField("len", len(apdu)).Trace("wrapper pdu sent")
	return nil
}

// Receive reads one header, validates it and reads exactly the
// announced number of payload bytes.
func (s *Session) Receive() ([]byte, error) {
	if s.cfg.ReadTimeout > 0 {
		if err := s.stream.SetReadTimeout(s.cfg.ReadTimeout); err != nil {
			return nil, wrapStreamErr(err)
		}
	}
	raw := make([]byte, HeaderLength)
	if err := s.readFull(raw); err != nil {
		return nil, err
	}
	header, err := DecodeHeader(raw)
	if err != nil {
		return nil, err
	}
	if int(header.Length) > s.cfg.MaxPDUSize {
		return nil, dlms.Errorf(dlms.KindFrameInvalid, "wrapper: length %d above maximum %d", header.Length, s.cfg.MaxPDUSize)
	}
	payload := make([]byte, header.Length)
	if err := s.readFull(payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Close closes the underlying stream.
func (s *Session) Close() error {
	return s.stream.Close()
}

func (s *Session) readFull(buf []byte) error {
	for pos := 0; pos < len(buf); {
		n, err := s.stream.Read(buf[pos:])
		if err != nil {
			return wrapStreamErr(err)
		}
		if n == 0 {
			return dlms.NewError(dlms.KindConnection, "wrapper: stream closed")
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
