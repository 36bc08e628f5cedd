package server

import (
	"sync"

	dlms "github.com/openmetering/godlms"
	"github.com/openmetering/godlms/pkg/axdr"
	"github.com/openmetering/godlms/pkg/pdu"
)

// Interface class identifiers used by the bundled objects.
const (
	ClassData     uint16 = 1
	ClassRegister uint16 = 3
)

// DataObject is interface class 1: a logical name and one value.
type DataObject struct {
	mu    sync.Mutex
	obis  dlms.ObisCode
	value axdr.Data
	// Writable opens attribute 2 for SET.
	Writable bool
}

// NewDataObject builds a class 1 object with an initial value.
func NewDataObject(obis dlms.ObisCode, value axdr.Data) *DataObject {
	return &DataObject{obis: obis, value: value}
}

// Value returns the current value.
func (d *DataObject) Value() axdr.Data {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value
}

// Update replaces the value outside the protocol path.
func (d *DataObject) Update(value axdr.Data) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.value = value
}

func (d *DataObject) GetAttribute(id int8, access *pdu.SelectiveAccess) (axdr.Data, error) {
	switch id {
	case 1:
		return axdr.NewOctetString(d.obis.Bytes()), nil
	case 2:
		return d.Value(), nil
	default:
		return axdr.Data{}, ErrAttributeUnknown
	}
}

func (d *DataObject) SetAttribute(id int8, value axdr.Data, access *pdu.SelectiveAccess) error {
	if id != 2 {
		if id == 1 {
			return ErrAccessDenied
		}
		return ErrAttributeUnknown
	}
	if !d.Writable {
		return ErrAccessDenied
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.value.Tag != value.Tag {
		return dlms.Errorf(dlms.KindInvalidData, "value type %s, attribute holds %s",
			axdr.TagName(value.Tag), axdr.TagName(d.value.Tag))
	}
	d.value = value
	return nil
}

func (d *DataObject) InvokeMethod(id int8, parameters *axdr.Data) (*axdr.Data, error) {
	return nil, ErrMethodUnknown
}

// ScalerUnit is the register scaler-unit attribute: value = raw *
// 10^Scaler, expressed in Unit (a DLMS unit code).
type ScalerUnit struct {
	Scaler int8
	Unit   uint8
}

func (s ScalerUnit) data() axdr.Data {
	return axdr.NewStructure(axdr.NewInteger8(s.Scaler), axdr.NewEnum(s.Unit))
}

// RegisterObject is interface class 3: a value with scaler and unit
// plus a reset method.
type RegisterObject struct {
	mu     sync.Mutex
	obis   dlms.ObisCode
	value  axdr.Data
	scaler ScalerUnit
}

// NewRegisterObject builds a class 3 object.
func NewRegisterObject(obis dlms.ObisCode, value axdr.Data, scaler ScalerUnit) *RegisterObject {
	return &RegisterObject{obis: obis, value: value, scaler: scaler}
}

// Update replaces the value outside the protocol path.
func (r *RegisterObject) Update(value axdr.Data) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.value = value
}

func (r *RegisterObject) GetAttribute(id int8, access *pdu.SelectiveAccess) (axdr.Data, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch id {
	case 1:
		return axdr.NewOctetString(r.obis.Bytes()), nil
	case 2:
		return r.value, nil
	case 3:
		return r.scaler.data(), nil
	default:
		return axdr.Data{}, ErrAttributeUnknown
	}
}

func (r *RegisterObject) SetAttribute(id int8, value axdr.Data, access *pdu.SelectiveAccess) error {
	switch id {
	case 1, 2, 3:
		return ErrAccessDenied
	default:
		return ErrAttributeUnknown
	}
}

func (r *RegisterObject) InvokeMethod(id int8, parameters *axdr.Data) (*axdr.Data, error) {
	if id != 1 {
		return nil, ErrMethodUnknown
	}
	// reset: the register value returns to its default.
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.value.Tag {
	case axdr.TagInteger32:
		r.value = axdr.NewInteger32(0)
	case axdr.TagUnsigned32:
		r.value = axdr.NewUnsigned32(0)
	case axdr.TagInteger64:
		r.value = axdr.NewInteger64(0)
	case axdr.TagUnsigned64:
		r.value = axdr.NewUnsigned64(0)
	default:
		r.value = axdr.NewNull()
	}
	return nil, nil
}
