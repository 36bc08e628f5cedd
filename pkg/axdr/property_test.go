package axdr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func scalarGen() *rapid.Generator[Data] {
	return rapid.OneOf(
		rapid.Just(NewNull()),
		rapid.Map(rapid.Bool(), NewBoolean),
		rapid.Map(rapid.Int8(), NewInteger8),
		rapid.Map(rapid.Int16(), NewInteger16),
		rapid.Map(rapid.Int32(), NewInteger32),
		rapid.Map(rapid.Int64(), NewInteger64),
		rapid.Map(rapid.Uint8(), NewUnsigned8),
		rapid.Map(rapid.Uint16(), NewUnsigned16),
		rapid.Map(rapid.Uint32(), NewUnsigned32),
		rapid.Map(rapid.Uint64(), NewUnsigned64),
		rapid.Map(rapid.Uint8(), NewEnum),
		rapid.Map(rapid.SliceOfN(rapid.Byte(), 0, 300), NewOctetString),
		rapid.Map(rapid.StringN(-1, -1, 200), NewVisibleString),
	)
}

func dataGen() *rapid.Generator[Data] {
	return rapid.OneOf(
		scalarGen(),
		rapid.Custom(func(t *rapid.T) Data {
			items := rapid.SliceOfN(scalarGen(), 0, 8).Draw(t, "items")
			return NewArray(items...)
		}),
		rapid.Custom(func(t *rapid.T) Data {
			items := rapid.SliceOfN(scalarGen(), 1, 8).Draw(t, "members")
			return NewStructure(items...)
		}),
	)
}

func TestDataRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := dataGen().Draw(t, "d")
		encoded, err := Encode(d)
		require.Nil(t, err)
		decoded, n, err := Decode(encoded)
		require.Nil(t, err)
		assert.Equal(t, len(encoded), n)
		assert.Equal(t, normalize(d), normalize(decoded))
	})
}

// normalize maps empty slices and strings onto a canonical form so
// DeepEqual comparison is not tripped by nil vs empty.
func normalize(d Data) Data {
	switch v := d.Value.(type) {
	case []byte:
		if len(v) == 0 {
			d.Value = []byte{}
		}
	case []Data:
		items := make([]Data, len(v))
		for i, item := range v {
			items[i] = normalize(item)
		}
		d.Value = items
	}
	return d
}

func TestLengthRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 1<<24).Draw(t, "n")
		encoded := EncodeLength(nil, n)
		decoded, consumed, err := DecodeLength(encoded)
		require.Nil(t, err)
		assert.Equal(t, n, decoded)
		assert.Equal(t, len(encoded), consumed)
	})
}
