package axdr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateTimeRoundTrip(t *testing.T) {
	dt := DateTime{
		Date:      Date{Year: 2024, Month: 3, DayOfMonth: 15, DayOfWeek: 5},
		Time:      Time{Hour: 10, Minute: 30, Second: 0, Hundredths: 0},
		Deviation: -60,
		Status:    ClockDaylightSavingUsed,
	}
	encoded := dt.Encode(nil)
	require.Len(t, encoded, 12)
	decoded, err := DecodeDateTime(encoded)
	require.Nil(t, err)
	assert.Equal(t, dt, decoded)
}

func TestDateSentinels(t *testing.T) {
	d := Date{Year: YearNotSpecified, Month: NotSpecified, DayOfMonth: LastDayOfMonth, DayOfWeek: NotSpecified}
	assert.Nil(t, d.Validate())
	encoded := d.Encode(nil)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFE, 0xFF}, encoded)
}

func TestDateOutOfRange(t *testing.T) {
	_, err := NewDateValue(2024, 13, 1)
	assert.NotNil(t, err)
	_, err = NewDateValue(2024, 0, 1)
	assert.NotNil(t, err)
	_, err = NewDateValue(2024, 1, 32)
	assert.NotNil(t, err)
}

func TestTimeOutOfRange(t *testing.T) {
	_, err := NewTimeValue(24, 0, 0)
	assert.NotNil(t, err)
	_, err = NewTimeValue(10, 60, 0)
	assert.NotNil(t, err)
}

func TestDateTimeViaDataCodec(t *testing.T) {
	dt := DateTime{
		Date:      Date{Year: 2023, Month: 12, DayOfMonth: 31, DayOfWeek: NotSpecified},
		Time:      Time{Hour: 23, Minute: 59, Second: 59, Hundredths: NotSpecified},
		Deviation: DeviationNotSpecified,
	}
	encoded, err := Encode(NewDateTime(dt))
	require.Nil(t, err)
	decoded, n, err := Decode(encoded)
	require.Nil(t, err)
	assert.Equal(t, len(encoded), n)
	assert.Equal(t, dt, decoded.Value)
}
