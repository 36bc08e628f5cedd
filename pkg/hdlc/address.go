// Package hdlc implements the HDLC session layer of DLMS/COSEM:
// frame codec with HCS/FCS protection, addressing, the connection
// state machine with its sliding window, segmentation and parameter
// negotiation.
package hdlc

import (
	"fmt"

	dlms "github.com/openmetering/godlms"
)

// Address is an HDLC station address of 1, 2 or 4 octets. The value
// is the concatenation of bits 1..7 of each octet, MSB first; on the
// wire the last octet has its LSB set.
type Address struct {
	Value uint32
	Size  uint8
}

// Reserved address values.
const (
	NoStationValue       uint32 = 0
	AllStationValue1Byte uint32 = 0x7F
	AllStationValue2Byte uint32 = 0x3FFF
)

// NewAddress builds an address, checking the value against the size.
func NewAddress(value uint32, size uint8) (Address, error) {
	var limit uint32
	switch size {
	case 1:
		limit = 1<<7 - 1
	case 2:
		limit = 1<<14 - 1
	case 4:
		limit = 1<<28 - 1
	default:
		return Address{}, dlms.Errorf(dlms.KindInvalidData, "hdlc address size %d, must be 1, 2 or 4", size)
	}
	if value > limit {
		return Address{}, dlms.Errorf(dlms.KindInvalidData, "hdlc address 0x%X does not fit in %d bytes", value, size)
	}
	return Address{Value: value, Size: size}, nil
}

// MustAddress is NewAddress for statically known values.
func MustAddress(value uint32, size uint8) Address {
	addr, err := NewAddress(value, size)
	if err != nil {
		panic(err)
	}
	return addr
}

// IsNoStation reports the reserved no-station address.
func (a Address) IsNoStation() bool {
	return a.Value == NoStationValue
}

// IsAllStation reports the reserved broadcast address.
func (a Address) IsAllStation() bool {
	switch a.Size {
	case 1:
		return a.Value == AllStationValue1Byte
	case 2:
		return a.Value == AllStationValue2Byte
	}
	return false
}

// Encode appends the wire form: each octet carries 7 value bits in
// bits 1..7, the final octet has LSB set.
func (a Address) Encode(dst []byte) []byte {
	switch a.Size {
	case 1:
		return append(dst, byte(a.Value<<1)|0x01)
	case 2:
		return append(dst, byte(a.Value>>7)<<1, byte(a.Value&0x7F)<<1|0x01)
	default:
		return append(dst,
			byte(a.Value>>21)<<1,
			byte(a.Value>>14&0x7F)<<1,
			byte(a.Value>>7&0x7F)<<1,
			byte(a.Value&0x7F)<<1|0x01)
	}
}

// decodeAddress reads one address off buf, stopping at the octet
// with LSB set. Three-octet addresses are not a valid HDLC form.
func decodeAddress(buf []byte) (Address, int, error) {
	var value uint32
	for i := 0; i < len(buf) && i < 4; i++ {
		value = value<<7 | uint32(buf[i]>>1)
		if buf[i]&0x01 == 1 {
			size := uint8(i + 1)
			if size == 3 {
				return Address{}, 0, dlms.NewError(dlms.KindFrameInvalid, "hdlc address: 3-octet form")
			}
			return Address{Value: value, Size: size}, i + 1, nil
		}
	}
	return Address{}, 0, dlms.NewError(dlms.KindFrameInvalid, "hdlc address: missing end marker")
}

func (a Address) String() string {
	return fmt.Sprintf("0x%X/%d", a.Value, a.Size)
}

// AddressPair is the destination and source of one frame.
type AddressPair struct {
	Destination Address
	Source      Address
}

// Reversed swaps destination and source, for replying.
func (p AddressPair) Reversed() AddressPair {
	return AddressPair{Destination: p.Source, Source: p.Destination}
}
