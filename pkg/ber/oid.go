package ber

import (
	dlms "github.com/openmetering/godlms"
)

// Universal tag numbers used by the ACSE layer.
const (
	TagInteger          uint32 = 0x02
	TagBitString        uint32 = 0x03
	TagOctetString      uint32 = 0x04
	TagObjectIdentifier uint32 = 0x06
	TagGraphicString    uint32 = 0x19
)

// EncodeOID serializes an object identifier value. The first two
// arcs share the leading octet (40*first + second).
func EncodeOID(arcs []uint32) ([]byte, error) {
	if len(arcs) < 2 {
		return nil, dlms.NewError(dlms.KindAsn1Encoding, "oid: needs at least two arcs")
	}
	if arcs[0] > 2 || (arcs[0] < 2 && arcs[1] > 39) {
		return nil, dlms.NewError(dlms.KindAsn1Encoding, "oid: first arcs out of range")
	}
	out := []byte{byte(arcs[0]*40 + arcs[1])}
	for _, arc := range arcs[2:] {
		out = appendBase128(out, arc)
	}
	return out, nil
}

// DecodeOID parses an object identifier value back into its arcs.
func DecodeOID(raw []byte) ([]uint32, error) {
	if len(raw) == 0 {
		return nil, dlms.NewError(dlms.KindAsn1Decoding, "oid: empty value")
	}
	first := uint32(raw[0])
	arcs := []uint32{first / 40, first % 40}
	if first >= 80 {
		arcs[0], arcs[1] = 2, first-80
	}
	var arc uint32
	loaded := false
	for _, b := range raw[1:] {
		arc = arc<<7 | uint32(b&0x7F)
		loaded = true
		if b&0x80 == 0 {
			arcs = append(arcs, arc)
			arc = 0
			loaded = false
		}
	}
	if loaded {
		return nil, dlms.NewError(dlms.KindAsn1Decoding, "oid: truncated arc")
	}
	return arcs, nil
}

func appendBase128(dst []byte, v uint32) []byte {
	var groups [5]byte
	i := len(groups)
	for {
		i--
		groups[i] = byte(v & 0x7F)
		v >>= 7
		if v == 0 {
			break
		}
	}
	for j := i; j < len(groups)-1; j++ {
		dst = append(dst, groups[j]|0x80)
	}
	return append(dst, groups[len(groups)-1])
}

// OIDEqual compares two arc sequences.
func OIDEqual(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
