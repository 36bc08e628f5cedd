package axdr

import (
	dlms "github.com/openmetering/godlms"
)

// Data is one value of the COSEM data model: a tag byte plus the
// Go value it maps to. The concrete type of Value depends on Tag:
//
//	null-data, dont-care            nil
//	boolean                         bool
//	bit-string                      BitString
//	integer / long / double-long /
//	long64                          int8 / int16 / int32 / int64
//	unsigned family                 uint8 / uint16 / uint32 / uint64
//	enum, bcd                       uint8
//	float32, float64                float32, float64
//	octet-string                    []byte
//	visible-string, utf8-string     string
//	array, structure                []Data
//	compact-array                   CompactArray
//	date, time, date-time           Date, Time, DateTime
type Data struct {
	Tag   byte
	Value any
}

// BitString is a string of Length bits packed MSB-first into Bytes.
type BitString struct {
	Length int
	Bytes  []byte
}

// Validate checks the declared bit count against the byte count.
func (b BitString) Validate() error {
	if b.Length < 0 || b.Length > 8*len(b.Bytes) {
		return dlms.Errorf(dlms.KindInvalidData, "bit-string: %d bits do not fit in %d bytes", b.Length, len(b.Bytes))
	}
	return nil
}

func NewNull() Data                 { return Data{Tag: TagNull} }
func NewDontCare() Data             { return Data{Tag: TagDontCare} }
func NewBoolean(v bool) Data        { return Data{Tag: TagBoolean, Value: v} }
func NewInteger8(v int8) Data       { return Data{Tag: TagInteger8, Value: v} }
func NewInteger16(v int16) Data     { return Data{Tag: TagInteger16, Value: v} }
func NewInteger32(v int32) Data     { return Data{Tag: TagInteger32, Value: v} }
func NewInteger64(v int64) Data     { return Data{Tag: TagInteger64, Value: v} }
func NewUnsigned8(v uint8) Data     { return Data{Tag: TagUnsigned8, Value: v} }
func NewUnsigned16(v uint16) Data   { return Data{Tag: TagUnsigned16, Value: v} }
func NewUnsigned32(v uint32) Data   { return Data{Tag: TagUnsigned32, Value: v} }
func NewUnsigned64(v uint64) Data   { return Data{Tag: TagUnsigned64, Value: v} }
func NewEnum(v uint8) Data          { return Data{Tag: TagEnum, Value: v} }
func NewBcd(v uint8) Data           { return Data{Tag: TagBcd, Value: v} }
func NewFloat32(v float32) Data     { return Data{Tag: TagFloat32, Value: v} }
func NewFloat64(v float64) Data     { return Data{Tag: TagFloat64, Value: v} }
func NewOctetString(v []byte) Data  { return Data{Tag: TagOctetString, Value: v} }
func NewVisibleString(v string) Data { return Data{Tag: TagVisibleString, Value: v} }
func NewUtf8String(v string) Data   { return Data{Tag: TagUtf8String, Value: v} }
func NewBitString(v BitString) Data { return Data{Tag: TagBitString, Value: v} }
func NewArray(items ...Data) Data   { return Data{Tag: TagArray, Value: items} }
func NewStructure(items ...Data) Data {
	return Data{Tag: TagStructure, Value: items}
}
func NewDate(v Date) Data         { return Data{Tag: TagDate, Value: v} }
func NewTime(v Time) Data         { return Data{Tag: TagTime, Value: v} }
func NewDateTime(v DateTime) Data { return Data{Tag: TagDateTime, Value: v} }

// IsNull reports whether d carries no payload at all.
func (d Data) IsNull() bool {
	return d.Tag == TagNull || d.Tag == TagDontCare
}
