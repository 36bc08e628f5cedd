package hdlc

import (
	"encoding/binary"

	dlms "github.com/openmetering/godlms"
)

// Parameters are the negotiable HDLC link parameters.
type Parameters struct {
	MaxInfoLengthTx uint16
	MaxInfoLengthRx uint16
	WindowSizeTx    uint8
	WindowSizeRx    uint8
}

// DefaultParameters returns the defaults used when the peer does not
// negotiate: 128-byte information fields and a window of one.
func DefaultParameters() Parameters {
	return Parameters{
		MaxInfoLengthTx: 128,
		MaxInfoLengthRx: 128,
		WindowSizeTx:    1,
		WindowSizeRx:    1,
	}
}

// Negotiation information field layout: format identifier, group
// identifier, group length, then (id, len, value) triples.
const (
	negFormatIdentifier byte = 0x81
	negGroupIdentifier  byte = 0x80

	negMaxInfoTx byte = 0x05
	negMaxInfoRx byte = 0x06
	negWindowTx  byte = 0x07
	negWindowRx  byte = 0x08
)

// EncodeNegotiation builds the SNRM/UA information field proposing p.
func EncodeNegotiation(p Parameters) []byte {
	var group []byte
	group = appendNegParam(group, negMaxInfoTx, uint32(p.MaxInfoLengthTx))
	group = appendNegParam(group, negMaxInfoRx, uint32(p.MaxInfoLengthRx))
	group = appendNegParam(group, negWindowTx, uint32(p.WindowSizeTx))
	group = appendNegParam(group, negWindowRx, uint32(p.WindowSizeRx))

	out := []byte{negFormatIdentifier, negGroupIdentifier, byte(len(group))}
	return append(out, group...)
}

func appendNegParam(dst []byte, id byte, value uint32) []byte {
	switch {
	case value <= 0xFF:
		return append(dst, id, 1, byte(value))
	case value <= 0xFFFF:
		dst = append(dst, id, 2)
		return binary.BigEndian.AppendUint16(dst, uint16(value))
	default:
		dst = append(dst, id, 4)
		return binary.BigEndian.AppendUint32(dst, value)
	}
}

// DecodeNegotiation parses a SNRM/UA information field. Missing
// parameters keep their defaults.
func DecodeNegotiation(buf []byte) (Parameters, error) {
	p := DefaultParameters()
	if len(buf) == 0 {
		return p, nil
	}
	if len(buf) < 3 || buf[0] != negFormatIdentifier || buf[1] != negGroupIdentifier {
		return p, dlms.NewError(dlms.KindInvalidData, "hdlc negotiation: bad header")
	}
	group := buf[3:]
	if int(buf[2]) != len(group) {
		return p, dlms.NewError(dlms.KindInvalidData, "hdlc negotiation: bad group length")
	}
	for pos := 0; pos < len(group); {
		if pos+2 > len(group) {
			return p, dlms.NewError(dlms.KindInvalidData, "hdlc negotiation: truncated parameter")
		}
		id, size := group[pos], int(group[pos+1])
		pos += 2
		if pos+size > len(group) {
			return p, dlms.NewError(dlms.KindInvalidData, "hdlc negotiation: truncated value")
		}
		var value uint32
		for _, b := range group[pos : pos+size] {
			value = value<<8 | uint32(b)
		}
		pos += size
		switch id {
		case negMaxInfoTx:
			p.MaxInfoLengthTx = uint16(value)
		case negMaxInfoRx:
			p.MaxInfoLengthRx = uint16(value)
		case negWindowTx:
			p.WindowSizeTx = uint8(value)
		case negWindowRx:
			p.WindowSizeRx = uint8(value)
		}
	}
	return p, nil
}

// Negotiated applies the parameter negotiation rule: both sides
// adopt the minimum of proposed and received for each value.
func Negotiated(proposed, received Parameters) Parameters {
	return Parameters{
		MaxInfoLengthTx: minU16(proposed.MaxInfoLengthTx, received.MaxInfoLengthTx),
		MaxInfoLengthRx: minU16(proposed.MaxInfoLengthRx, received.MaxInfoLengthRx),
		WindowSizeTx:    minU8(proposed.WindowSizeTx, received.WindowSizeTx),
		WindowSizeRx:    minU8(proposed.WindowSizeRx, received.WindowSizeRx),
	}
}

func minU16(a, b uint16) uint16 {
	if a < b {
		return a
	}
	return b
}

func minU8(a, b uint8) uint8 {
	if a < b {
		return a
	}
	return b
}
