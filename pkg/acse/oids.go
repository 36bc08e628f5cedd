// Package acse builds and parses the ISO-ACSE association PDUs
// (AARQ, AARE, RLRQ, RLRE) with BER, plus the xDLMS
// InitiateRequest/InitiateResponse they carry.
package acse

import "github.com/openmetering/godlms/pkg/ber"

// Application context names.
var (
	ContextLNNoCipher = []uint32{2, 16, 756, 5, 8, 1, 1}
	ContextSNNoCipher = []uint32{2, 16, 756, 5, 8, 1, 2}
	ContextLNCipher   = []uint32{2, 16, 756, 5, 8, 1, 3}
	ContextSNCipher   = []uint32{2, 16, 756, 5, 8, 1, 4}
)

// Authentication mechanism names.
var (
	MechanismLow      = []uint32{2, 16, 756, 5, 8, 2, 1}
	MechanismHighGMAC = []uint32{2, 16, 756, 5, 8, 2, 5}
)

// IsCipheredContext reports whether oid names a ciphered application
// context. The second result is false for unknown OIDs.
func IsCipheredContext(oid []uint32) (ciphered, known bool) {
	switch {
	case ber.OIDEqual(oid, ContextLNCipher), ber.OIDEqual(oid, ContextSNCipher):
		return true, true
	case ber.OIDEqual(oid, ContextLNNoCipher), ber.OIDEqual(oid, ContextSNNoCipher):
		return false, true
	}
	return false, false
}

// IsLogicalNameContext reports LN addressing.
func IsLogicalNameContext(oid []uint32) bool {
	return ber.OIDEqual(oid, ContextLNNoCipher) || ber.OIDEqual(oid, ContextLNCipher)
}
