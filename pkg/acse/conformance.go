package acse

import (
	dlms "github.com/openmetering/godlms"
)

// Conformance is the 24-bit service conformance block. Bit values
// follow the standard numbering, bit 0 being the leftmost bit of
// the first block byte.
type Conformance uint32

const (
	ConformanceGeneralProtection      Conformance = 1 << 22
	ConformanceGeneralBlockTransfer   Conformance = 1 << 21
	ConformanceRead                   Conformance = 1 << 20
	ConformanceWrite                  Conformance = 1 << 19
	ConformanceUnconfirmedWrite       Conformance = 1 << 18
	ConformanceAttribute0Set          Conformance = 1 << 15
	ConformancePriorityManagement     Conformance = 1 << 14
	ConformanceAttribute0Get          Conformance = 1 << 13
	ConformanceBlockTransferGet       Conformance = 1 << 12
	ConformanceBlockTransferSet       Conformance = 1 << 11
	ConformanceBlockTransferAction    Conformance = 1 << 10
	ConformanceMultipleReferences     Conformance = 1 << 9
	ConformanceInformationReport      Conformance = 1 << 8
	ConformanceParameterizedAccess    Conformance = 1 << 5
	ConformanceGet                    Conformance = 1 << 4
	ConformanceSet                    Conformance = 1 << 3
	ConformanceSelectiveAccess        Conformance = 1 << 2
	ConformanceEventNotification      Conformance = 1 << 1
	ConformanceAction                 Conformance = 1 << 0
)

// DefaultLNConformance is what the client proposes for logical name
// referencing.
const DefaultLNConformance = ConformanceGet | ConformanceSet | ConformanceAction |
	ConformanceSelectiveAccess | ConformanceEventNotification |
	ConformanceBlockTransferGet | ConformanceBlockTransferSet |
	ConformanceMultipleReferences

// Bytes returns the 3-byte block, most significant bits first.
func (c Conformance) Bytes() [3]byte {
	return [3]byte{byte(c >> 16), byte(c >> 8), byte(c)}
}

// ConformanceFromBytes rebuilds the block from its 3-byte form.
func ConformanceFromBytes(raw []byte) (Conformance, error) {
	if len(raw) != 3 {
		return 0, dlms.Errorf(dlms.KindInvalidData, "conformance: need 3 bytes, got %d", len(raw))
	}
	return Conformance(uint32(raw[0])<<16 | uint32(raw[1])<<8 | uint32(raw[2])), nil
}

// And intersects two proposals, the negotiation rule of the
// association handshake.
func (c Conformance) And(other Conformance) Conformance {
	return c & other
}

// Has reports whether every bit of flags is set.
func (c Conformance) Has(flags Conformance) bool {
	return c&flags == flags
}
