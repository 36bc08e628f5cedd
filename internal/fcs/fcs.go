// Package fcs computes the HDLC frame check sequence, a CRC-CCITT
// with the bit-reversed polynomial 0x8408.
package fcs

const (
	initial = 0xFFFF
	// good is the residual left after running the FCS over a frame
	// that includes its own (complemented, little-endian) FCS.
	good = 0xF0B8
	key  = 0x8408
)

var table = buildTable()

func buildTable() [256]uint16 {
	var t [256]uint16
	for b := 0; b < 256; b++ {
		v := uint16(b)
		for i := 0; i < 8; i++ {
			if v&1 == 1 {
				v = (v >> 1) ^ key
			} else {
				v >>= 1
			}
		}
		t[b] = v
	}
	return t
}

// FCS16 is a running frame check sequence. The zero value is not
// usable, start from New.
type FCS16 uint16

// New returns an FCS initialised to 0xFFFF.
func New() FCS16 {
	return initial
}

// Update feeds one byte into the running FCS.
func (f FCS16) Update(b byte) FCS16 {
	return (f >> 8) ^ FCS16(table[byte(f)^b])
}

// UpdateBytes feeds a byte slice into the running FCS.
func (f FCS16) UpdateBytes(data []byte) FCS16 {
	for _, b := range data {
		f = f.Update(b)
	}
	return f
}

// Bytes returns the complemented FCS in transmit order (little-endian).
func (f FCS16) Bytes() [2]byte {
	inv := uint16(f) ^ 0xFFFF
	return [2]byte{byte(inv), byte(inv >> 8)}
}

// Good reports whether the running value equals the residual of a
// frame whose trailing FCS was included in the computation.
func (f FCS16) Good() bool {
	return f == good
}

// Checksum computes the complemented FCS of data in transmit order.
func Checksum(data []byte) [2]byte {
	return New().UpdateBytes(data).Bytes()
}
