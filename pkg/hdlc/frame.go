package hdlc

import (
	"fmt"

	dlms "github.com/openmetering/godlms"
	"github.com/openmetering/godlms/internal/fcs"
)

// Flag delimits HDLC frames on the wire.
const Flag byte = 0x7E

// LLC headers prefixing DLMS APDUs inside I-frame information fields.
var (
	LLCRequest  = []byte{0xE6, 0xE6, 0x00}
	LLCResponse = []byte{0xE6, 0xE7, 0x00}
)

// FrameType is the command/response type carried in the control byte.
type FrameType uint8

const (
	FrameI FrameType = iota
	FrameRR
	FrameRNR
	FrameSNRM
	FrameDISC
	FrameUA
	FrameDM
	FrameFRMR
	FrameUI
)

var frameTypeNames = map[FrameType]string{
	FrameI:    "I",
	FrameRR:   "RR",
	FrameRNR:  "RNR",
	FrameSNRM: "SNRM",
	FrameDISC: "DISC",
	FrameUA:   "UA",
	FrameDM:   "DM",
	FrameFRMR: "FRMR",
	FrameUI:   "UI",
}

func (t FrameType) String() string {
	name, ok := frameTypeNames[t]
	if !ok {
		return fmt.Sprintf("frame type %d", uint8(t))
	}
	return name
}

const (
	// Frame format field: type nibble 0b1010, segmentation bit 11,
	// 11-bit frame length.
	formatType  uint16 = 0xA000
	formatSeg   uint16 = 0x0800
	lengthMask  uint16 = 0x07FF
	maxFrameLen int    = int(lengthMask)
)

// Frame is one decoded HDLC frame.
type Frame struct {
	Addresses   AddressPair
	Type        FrameType
	Poll        bool
	SendSeq     uint8 // N(S), I frames only
	RecvSeq     uint8 // N(R), I/RR/RNR frames only
	Segmented   bool
	Information []byte
}

// NewInformationFrame builds an I frame carrying one segment.
func NewInformationFrame(pair AddressPair, ns, nr uint8, segmented bool, information []byte) Frame {
	return Frame{
		Addresses:   pair,
		Type:        FrameI,
		Poll:        !segmented,
		SendSeq:     ns & 0x07,
		RecvSeq:     nr & 0x07,
		Segmented:   segmented,
		Information: information,
	}
}

// NewControlFrame builds an unnumbered or supervisory frame without
// sequence numbers (SNRM, DISC, UA, DM).
func NewControlFrame(pair AddressPair, frameType FrameType, information []byte) Frame {
	return Frame{Addresses: pair, Type: frameType, Poll: true, Information: information}
}

// NewReceiveReady acknowledges frames up to nr-1.
func NewReceiveReady(pair AddressPair, nr uint8) Frame {
	return Frame{Addresses: pair, Type: FrameRR, Poll: true, RecvSeq: nr & 0x07}
}

// NewReceiveNotReady signals a busy receiver.
func NewReceiveNotReady(pair AddressPair, nr uint8) Frame {
	return Frame{Addresses: pair, Type: FrameRNR, Poll: true, RecvSeq: nr & 0x07}
}

func (f Frame) control() (byte, error) {
	poll := byte(0)
	if f.Poll {
		poll = 0x10
	}
	switch f.Type {
	case FrameI:
		return f.RecvSeq<<5 | poll | f.SendSeq<<1, nil
	case FrameRR:
		return f.RecvSeq<<5 | poll | 0x01, nil
	case FrameRNR:
		return f.RecvSeq<<5 | poll | 0x05, nil
	case FrameSNRM:
		return 0x83 | poll, nil
	case FrameDISC:
		return 0x43 | poll, nil
	case FrameUA:
		return 0x63 | poll, nil
	case FrameDM:
		return 0x0F | poll, nil
	case FrameFRMR:
		return 0x87 | poll, nil
	case FrameUI:
		return 0x03 | poll, nil
	default:
		return 0, dlms.Errorf(dlms.KindInvalidData, "hdlc: unknown frame type %d", f.Type)
	}
}

func decodeControl(control byte) (frameType FrameType, poll bool, ns, nr uint8, err error) {
	poll = control&0x10 != 0
	if control&0x01 == 0 {
		return FrameI, poll, control >> 1 & 0x07, control >> 5 & 0x07, nil
	}
	switch control & 0x0F {
	case 0x01:
		return FrameRR, poll, 0, control >> 5 & 0x07, nil
	case 0x05:
		return FrameRNR, poll, 0, control >> 5 & 0x07, nil
	}
	switch control &^ 0x10 {
	case 0x83:
		return FrameSNRM, poll, 0, 0, nil
	case 0x43:
		return FrameDISC, poll, 0, 0, nil
	case 0x63:
		return FrameUA, poll, 0, 0, nil
	case 0x0F:
		return FrameDM, poll, 0, 0, nil
	case 0x87:
		return FrameFRMR, poll, 0, 0, nil
	case 0x03:
		return FrameUI, poll, 0, 0, nil
	}
	return 0, false, 0, 0, dlms.Errorf(dlms.KindFrameInvalid, "hdlc: unknown control byte 0x%02X", control)
}

// Encode serializes the frame contents between (and excluding) the
// flags: format, addresses, control, HCS when an information field
// follows, information, FCS.
func (f Frame) Encode() ([]byte, error) {
	control, err := f.control()
	if err != nil {
		return nil, err
	}
	header := make([]byte, 2, 16)
	header = f.Addresses.Destination.Encode(header)
	header = f.Addresses.Source.Encode(header)
	header = append(header, control)

	total := len(header) + 2 // trailing FCS
	if len(f.Information) > 0 {
		total += 2 + len(f.Information) // HCS + information
	}
	if total > maxFrameLen {
		return nil, dlms.Errorf(dlms.KindFrameInvalid, "hdlc: frame length %d exceeds format field", total)
	}
	format := formatType | uint16(total)&lengthMask
	if f.Segmented {
		format |= formatSeg
	}
	header[0] = byte(format >> 8)
	header[1] = byte(format)

	out := header
	if len(f.Information) > 0 {
		hcs := fcs.Checksum(out)
		out = append(out, hcs[0], hcs[1])
		out = append(out, f.Information...)
	}
	sum := fcs.Checksum(out)
	return append(out, sum[0], sum[1]), nil
}

// DecodeFrame parses frame contents between flags, validating the
// format field, HCS and FCS.
func DecodeFrame(buf []byte) (Frame, error) {
	if len(buf) < 5 {
		return Frame{}, dlms.Errorf(dlms.KindFrameInvalid, "hdlc: frame of %d bytes", len(buf))
	}
	format := uint16(buf[0])<<8 | uint16(buf[1])
	if format&0xF000 != formatType {
		return Frame{}, dlms.Errorf(dlms.KindFrameInvalid, "hdlc: bad format type 0x%X", format>>12)
	}
	if int(format&lengthMask) != len(buf) {
		return Frame{}, dlms.Errorf(dlms.KindFrameInvalid, "hdlc: format length %d, frame length %d", format&lengthMask, len(buf))
	}

	pos := 2
	dest, n, err := decodeAddress(buf[pos:])
	if err != nil {
		return Frame{}, err
	}
	pos += n
	src, n, err := decodeAddress(buf[pos:])
	if err != nil {
		return Frame{}, err
	}
	pos += n
	if pos >= len(buf) {
		return Frame{}, dlms.NewError(dlms.KindFrameInvalid, "hdlc: missing control byte")
	}
	control := buf[pos]
	pos++

	frame := Frame{
		Addresses: AddressPair{Destination: dest, Source: src},
		Segmented: format&formatSeg != 0,
	}
	frame.Type, frame.Poll, frame.SendSeq, frame.RecvSeq, err = decodeControl(control)
	if err != nil {
		return Frame{}, err
	}

	rest := len(buf) - pos
	switch {
	case rest == 2:
		// No information field, trailing FCS only.
		if !fcs.New().UpdateBytes(buf).Good() {
			return Frame{}, dlms.NewError(dlms.KindFrameInvalid, "hdlc: FCS mismatch")
		}
	case rest > 4:
		// HCS over the header comes first, checked before the
		// information field is touched.
		if !fcs.New().UpdateBytes(buf[:pos+2]).Good() {
			return Frame{}, dlms.NewError(dlms.KindFrameInvalid, "hdlc: HCS mismatch")
		}
		if !fcs.New().UpdateBytes(buf).Good() {
			return Frame{}, dlms.NewError(dlms.KindFrameInvalid, "hdlc: FCS mismatch")
		}
		frame.Information = append([]byte(nil), buf[pos+2:len(buf)-2]...)
	default:
		return Frame{}, dlms.Errorf(dlms.KindFrameInvalid, "hdlc: %d bytes after control", rest)
	}
	return frame, nil
}
