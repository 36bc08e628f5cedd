package pdu

import (
	dlms "github.com/openmetering/godlms"
)

// InvokeIdAndPriority packs the invoke identifier with the priority
// and service-class bits: bits 0..3 invoke id, bit 6 high priority,
// bit 7 confirmed.
type InvokeIdAndPriority byte

const (
	invokeIdMask      InvokeIdAndPriority = 0x0F
	priorityHighBit   InvokeIdAndPriority = 0x40
	serviceConfirmBit InvokeIdAndPriority = 0x80
)

// MaxInvokeId is the largest identifier the 4-bit field carries;
// zero stays reserved.
const MaxInvokeId uint8 = 15

// NewInvokeIdAndPriority builds the byte, rejecting identifiers
// outside the 4-bit field.
func NewInvokeIdAndPriority(id uint8, highPriority, confirmed bool) (InvokeIdAndPriority, error) {
	if id == 0 || id > MaxInvokeId {
		return 0, dlms.Errorf(dlms.KindInvalidData, "invoke id %d outside 1..%d", id, MaxInvokeId)
	}
	v := InvokeIdAndPriority(id) & invokeIdMask
	if highPriority {
		v |= priorityHighBit
	}
	if confirmed {
		v |= serviceConfirmBit
	}
	return v, nil
}

// InvokeId returns the identifier bits.
func (i InvokeIdAndPriority) InvokeId() uint8 {
	return uint8(i & invokeIdMask)
}

// HighPriority reports bit 6.
func (i InvokeIdAndPriority) HighPriority() bool {
	return i&priorityHighBit != 0
}

// Confirmed reports bit 7.
func (i InvokeIdAndPriority) Confirmed() bool {
	return i&serviceConfirmBit != 0
}
