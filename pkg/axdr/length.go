package axdr

import (
	dlms "github.com/openmetering/godlms"
)

// EncodeLength appends the A-XDR length of n to dst: short form for
// lengths below 0x80, long form (0x80|N followed by N big-endian
// bytes) otherwise.
func EncodeLength(dst []byte, n int) []byte {
	if n < 0x80 {
		return append(dst, byte(n))
	}
	var tmp [4]byte
	width := 0
	for v := uint32(n); v > 0; v >>= 8 {
		tmp[3-width] = byte(v)
		width++
	}
	dst = append(dst, 0x80|byte(width))
	return append(dst, tmp[4-width:]...)
}

// DecodeLength reads an A-XDR length from buf. It returns the length
// and the number of bytes consumed. The indefinite form (0x80) and
// length-of-length above 4 are rejected.
func DecodeLength(buf []byte) (int, int, error) {
	if len(buf) == 0 {
		return 0, 0, dlms.NewError(dlms.KindInvalidData, "length: empty input")
	}
	first := buf[0]
	if first&0x80 == 0 {
		return int(first), 1, nil
	}
	width := int(first & 0x7F)
	if width == 0 {
		return 0, 0, dlms.NewError(dlms.KindInvalidData, "length: indefinite form not allowed")
	}
	if width > 4 {
		return 0, 0, dlms.Errorf(dlms.KindInvalidData, "length: length-of-length %d too large", width)
	}
	if len(buf) < 1+width {
		return 0, 0, dlms.NewError(dlms.KindInvalidData, "length: truncated long form")
	}
	n := 0
	for _, b := range buf[1 : 1+width] {
		n = n<<8 | int(b)
	}
	return n, 1 + width, nil
}
