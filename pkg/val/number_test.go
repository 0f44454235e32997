package val

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNumberAddOverflowPromotesToDecimal(t *testing.T) {
	require := require.New(t)
	sum, err := Int(math.MaxInt64).Add(Int(1))
	require.NoError(err)
	require.Equal(NumDecimal, sum.NumKind())
}

func TestNumberIntDivByZeroErrors(t *testing.T) {
	require := require.New(t)
	_, err := Int(1).Div(Int(0))
	require.Error(err)
}

func TestNumberFloatDivByZeroIsInf(t *testing.T) {
	require := require.New(t)
	res, err := Float(1).Div(Float(0))
	require.NoError(err)
	require.True(math.IsInf(res.AsFloat(), 1))
}

func TestNumberFloatNegDivByZeroIsNegInf(t *testing.T) {
	require := require.New(t)
	res, err := Float(-1).Div(Float(0))
	require.NoError(err)
	require.True(math.IsInf(res.AsFloat(), -1))
}

func TestNumberExactIntDivisionStaysInt(t *testing.T) {
	require := require.New(t)
	res, err := Int(10).Div(Int(2))
	require.NoError(err)
	require.Equal(NumInt, res.NumKind())
	v, ok := res.AsInt()
	require.True(ok)
	require.Equal(int64(5), v)
}

func TestDecimalPrecisionOverflowErrors(t *testing.T) {
	require := require.New(t)
	big := MustDecimal("1" + repeat("0", 30))
	one := MustDecimal("1")
	_, err := Dec(big).Add(Dec(one))
	require.Error(err)
}

func repeat(s string, n int) string {
	out := make([]byte, 0, n*len(s))
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
