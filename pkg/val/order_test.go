package val

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCompareTotalOrder(t *testing.T) {
	require := require.New(t)

	ladder := []Value{
		None{},
		Null{},
		Bool(false),
		Bool(true),
		Int(1),
		Str("a"),
		DurationV(time.Second),
		DatetimeV(time.Unix(100, 0).UTC()),
		UuidV{0x01},
		Array{Int(1)},
		Object{"a": Int(1)},
		Bytes("x"),
		RecordID{Table: "person", Key: NewRecordIDNumber(1)},
		RangeV{StartKind: Unbounded, EndKind: Unbounded},
		RegexV{Source: "a.*"},
		FileV{Bucket: "b", Key: "k"},
		TableV("person"),
	}

	for i := 0; i < len(ladder); i++ {
		for j := 0; j < len(ladder); j++ {
			c := Compare(ladder[i], ladder[j])
			switch {
			case i < j:
				require.Equal(-1, c, "index %d should sort before %d", i, j)
			case i > j:
				require.Equal(1, c, "index %d should sort after %d", i, j)
			default:
				require.Equal(0, c)
			}
		}
	}
}

func TestCompareAntisymmetricAndTransitive(t *testing.T) {
	require := require.New(t)
	a, b, c := Int(1), Int(2), Int(3)
	require.Equal(-Compare(a, b), Compare(b, a))
	require.True(Compare(a, b) < 0 && Compare(b, c) < 0 && Compare(a, c) < 0)
}

func TestCompareNaNIsGreatestAndSelfEqual(t *testing.T) {
	require := require.New(t)
	nan := Float(math.NaN())
	require.Equal(0, Compare(nan, nan))
	require.Equal(1, Compare(nan, Int(math.MaxInt64)))
	require.Equal(-1, Compare(Int(math.MaxInt64), nan))
}

func TestEqualCrossesNumericVariants(t *testing.T) {
	require := require.New(t)
	require.True(Equal(Int(2), Float(2.0)))
	require.True(Equal(Int(2), Dec(MustDecimal("2"))))
	require.False(Equal(Int(2), Float(2.5)))
}

func TestObjectOrderingIsKeyLexicographic(t *testing.T) {
	require := require.New(t)
	a := Object{"a": Int(1), "z": Int(0)}
	b := Object{"a": Int(1), "z": Int(1)}
	require.Equal(-1, Compare(a, b))
}
