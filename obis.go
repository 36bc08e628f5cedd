package dlms

import (
	"fmt"
	"strconv"
	"strings"
)

// ObisCode identifies a COSEM object with the 6-byte value groups
// A.B.C.D.E.F. Being an array type, equality is bytewise.
type ObisCode [6]byte

// NewObisCode builds an OBIS code from its six value groups.
func NewObisCode(a, b, c, d, e, f uint8) ObisCode {
	return ObisCode{a, b, c, d, e, f}
}

// ObisCodeFromBytes builds an OBIS code from a 6-byte slice.
func ObisCodeFromBytes(raw []byte) (ObisCode, error) {
	var code ObisCode
	if len(raw) != len(code) {
		return code, Errorf(KindInvalidData, "obis code needs 6 bytes, got %d", len(raw))
	}
	copy(code[:], raw)
	return code, nil
}

// ParseObisCode parses the plain "A.B.C.D.E.F" form and the reduced
// forms "A-B:C.D.E*F" and "A-B:C.D.E" (F defaults to 255).
func ParseObisCode(s string) (ObisCode, error) {
	if strings.ContainsAny(s, "-:*") {
		return parseReducedObis(s)
	}
	parts := strings.Split(s, ".")
	if len(parts) != 6 {
		return ObisCode{}, Errorf(KindInvalidData, "obis code %q: expected 6 dot separated groups", s)
	}
	var code ObisCode
	for i, part := range parts {
		v, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			return ObisCode{}, Errorf(KindInvalidData, "obis code %q: bad group %q", s, part)
		}
		code[i] = byte(v)
	}
	return code, nil
}

// parseReducedObis handles "A-B:C.D.E*F" and "A-B:C.D.E".
func parseReducedObis(s string) (ObisCode, error) {
	var code ObisCode
	code[5] = 0xFF

	rest := s
	if star := strings.IndexByte(rest, '*'); star >= 0 {
		v, err := strconv.ParseUint(rest[star+1:], 10, 8)
		if err != nil {
			return ObisCode{}, Errorf(KindInvalidData, "obis code %q: bad F group", s)
		}
		code[5] = byte(v)
		rest = rest[:star]
	}

	dash := strings.IndexByte(rest, '-')
	colon := strings.IndexByte(rest, ':')
	if dash < 0 || colon < dash {
		return ObisCode{}, Errorf(KindInvalidData, "obis code %q: expected A-B:C.D.E form", s)
	}
	groups := []string{rest[:dash], rest[dash+1 : colon]}
	groups = append(groups, strings.Split(rest[colon+1:], ".")...)
	if len(groups) != 5 {
		return ObisCode{}, Errorf(KindInvalidData, "obis code %q: expected 5 groups before *F", s)
	}
	for i, part := range groups {
		v, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			return ObisCode{}, Errorf(KindInvalidData, "obis code %q: bad group %q", s, part)
		}
		code[i] = byte(v)
	}
	return code, nil
}

// Bytes returns the code as a fresh 6-byte slice.
func (code ObisCode) Bytes() []byte {
	out := make([]byte, 6)
	copy(out, code[:])
	return out
}

func (code ObisCode) String() string {
	return fmt.Sprintf("%d.%d.%d.%d.%d.%d", code[0], code[1], code[2], code[3], code[4], code[5])
}
