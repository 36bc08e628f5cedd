package axdr

import (
	"fmt"

	dlms "github.com/openmetering/godlms"
)

// Sentinel values of the COSEM date/time encoding.
const (
	NotSpecified         byte = 0xFF
	LastDayOfMonth       byte = 0xFE
	SecondLastDayOfMonth byte = 0xFD

	// YearNotSpecified is the two-byte year sentinel.
	YearNotSpecified uint16 = 0xFFFF
	// DeviationNotSpecified marks an unknown UTC deviation.
	DeviationNotSpecified int16 = -0x8000
)

// Clock status flag bits.
const (
	ClockInvalid            byte = 0x01
	ClockDoubtful           byte = 0x02
	ClockDifferentBase      byte = 0x04
	ClockInvalidStatus      byte = 0x08
	ClockDaylightSavingUsed byte = 0x80
)

// Date is the 5-byte COSEM date: year, month, day of month, day of
// week. Month and day fields may carry the sentinel values above.
type Date struct {
	Year       uint16
	Month      byte
	DayOfMonth byte
	DayOfWeek  byte
}

// NewDateValue builds a validated Date with an unspecified weekday.
func NewDateValue(year uint16, month, dayOfMonth byte) (Date, error) {
	d := Date{Year: year, Month: month, DayOfMonth: dayOfMonth, DayOfWeek: NotSpecified}
	if err := d.Validate(); err != nil {
		return Date{}, err
	}
	return d, nil
}

// Validate checks the field ranges, allowing sentinels.
func (d Date) Validate() error {
	if d.Month < 1 || (d.Month > 12 && d.Month != NotSpecified && d.Month != LastDayOfMonth && d.Month != SecondLastDayOfMonth) {
		return dlms.Errorf(dlms.KindInvalidData, "date: month %d out of range", d.Month)
	}
	if d.DayOfMonth < 1 || (d.DayOfMonth > 31 && d.DayOfMonth != NotSpecified && d.DayOfMonth != LastDayOfMonth && d.DayOfMonth != SecondLastDayOfMonth) {
		return dlms.Errorf(dlms.KindInvalidData, "date: day of month %d out of range", d.DayOfMonth)
	}
	if (d.DayOfWeek < 1 || d.DayOfWeek > 7) && d.DayOfWeek != NotSpecified {
		return dlms.Errorf(dlms.KindInvalidData, "date: day of week %d out of range", d.DayOfWeek)
	}
	return nil
}

// Encode appends the 5-byte form to dst.
func (d Date) Encode(dst []byte) []byte {
	return append(dst, byte(d.Year>>8), byte(d.Year), d.Month, d.DayOfMonth, d.DayOfWeek)
}

// DecodeDate reads a 5-byte date.
func DecodeDate(raw []byte) (Date, error) {
	if len(raw) != 5 {
		return Date{}, dlms.Errorf(dlms.KindInvalidData, "date: need 5 bytes, got %d", len(raw))
	}
	return Date{
		Year:       uint16(raw[0])<<8 | uint16(raw[1]),
		Month:      raw[2],
		DayOfMonth: raw[3],
		DayOfWeek:  raw[4],
	}, nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.DayOfMonth)
}

// Time is the 4-byte COSEM time of day.
type Time struct {
	Hour       byte
	Minute     byte
	Second     byte
	Hundredths byte
}

// NewTimeValue builds a validated Time with unspecified hundredths.
func NewTimeValue(hour, minute, second byte) (Time, error) {
	t := Time{Hour: hour, Minute: minute, Second: second, Hundredths: NotSpecified}
	if err := t.Validate(); err != nil {
		return Time{}, err
	}
	return t, nil
}

// Validate checks the field ranges, allowing sentinels.
func (t Time) Validate() error {
	if t.Hour > 23 && t.Hour != NotSpecified {
		return dlms.Errorf(dlms.KindInvalidData, "time: hour %d out of range", t.Hour)
	}
	if t.Minute > 59 && t.Minute != NotSpecified {
		return dlms.Errorf(dlms.KindInvalidData, "time: minute %d out of range", t.Minute)
	}
	if t.Second > 59 && t.Second != NotSpecified {
		return dlms.Errorf(dlms.KindInvalidData, "time: second %d out of range", t.Second)
	}
	if t.Hundredths > 99 && t.Hundredths != NotSpecified {
		return dlms.Errorf(dlms.KindInvalidData, "time: hundredths %d out of range", t.Hundredths)
	}
	return nil
}

// Encode appends the 4-byte form to dst.
func (t Time) Encode(dst []byte) []byte {
	return append(dst, t.Hour, t.Minute, t.Second, t.Hundredths)
}

// DecodeTime reads a 4-byte time.
func DecodeTime(raw []byte) (Time, error) {
	if len(raw) != 4 {
		return Time{}, dlms.Errorf(dlms.KindInvalidData, "time: need 4 bytes, got %d", len(raw))
	}
	return Time{Hour: raw[0], Minute: raw[1], Second: raw[2], Hundredths: raw[3]}, nil
}

func (t Time) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// DateTime is the 12-byte COSEM date-time: date, time, UTC deviation
// in minutes and the clock status byte.
type DateTime struct {
	Date      Date
	Time      Time
	Deviation int16
	Status    byte
}

// Validate checks both halves; the deviation may always carry the
// unspecified sentinel.
func (dt DateTime) Validate() error {
	if err := dt.Date.Validate(); err != nil {
		return err
	}
	return dt.Time.Validate()
}

// Encode appends the 12-byte form to dst.
func (dt DateTime) Encode(dst []byte) []byte {
	dst = dt.Date.Encode(dst)
	dst = dt.Time.Encode(dst)
	dev := uint16(dt.Deviation)
	return append(dst, byte(dev>>8), byte(dev), dt.Status)
}

// DecodeDateTime reads a 12-byte date-time.
func DecodeDateTime(raw []byte) (DateTime, error) {
	if len(raw) != 12 {
		return DateTime{}, dlms.Errorf(dlms.KindInvalidData, "date-time: need 12 bytes, got %d", len(raw))
	}
	date, err := DecodeDate(raw[:5])
	if err != nil {
		return DateTime{}, err
	}
	tod, err := DecodeTime(raw[5:9])
	if err != nil {
		return DateTime{}, err
	}
	return DateTime{
		Date:      date,
		Time:      tod,
		Deviation: int16(uint16(raw[9])<<8 | uint16(raw[10])),
		Status:    raw[11],
	}, nil
}

func (dt DateTime) String() string {
	return fmt.Sprintf("%s %s", dt.Date, dt.Time)
}
