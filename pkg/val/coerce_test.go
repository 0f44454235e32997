package val

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCoerceIntToFloat(t *testing.T) {
	require := require.New(t)
	v, err := CoerceTo(Int(3), FloatK)
	require.NoError(err)
	require.Equal(Float(3), v)
}

func TestCoerceFloatToIntRejectsFractional(t *testing.T) {
	require := require.New(t)
	_, err := CoerceTo(Float(3.5), IntK)
	require.Error(err)
	var ce *CoerceError
	require.ErrorAs(err, &ce)
}

func TestCoerceOptionPassesThroughNone(t *testing.T) {
	require := require.New(t)
	v, err := CoerceTo(None{}, Option(IntK))
	require.NoError(err)
	require.Equal(None{}, v)
}

func TestCoerceEitherTriesEachAlternative(t *testing.T) {
	require := require.New(t)
	k := Either(IntK, StringK)
	v, err := CoerceTo(Str("hi"), k)
	require.NoError(err)
	require.Equal(Str("hi"), v)
}

func TestCoerceRecordChecksTableMembership(t *testing.T) {
	require := require.New(t)
	k := Record("person")
	rid := RecordID{Table: "person", Key: NewRecordIDNumber(1)}
	v, err := CoerceTo(rid, k)
	require.NoError(err)
	require.Equal(rid, v)

	other := RecordID{Table: "animal", Key: NewRecordIDNumber(1)}
	_, err = CoerceTo(other, k)
	require.Error(err)
}

func TestCoerceSetDedupsElements(t *testing.T) {
	require := require.New(t)
	max := uint64(10)
	k := Set(IntK, &max)
	v, err := CoerceTo(Array{Int(1), Int(1), Int(2)}, k)
	require.NoError(err)
	arr := v.(Array)
	require.Len(arr, 2)
}

func TestCoerceArrayRespectsLengthCap(t *testing.T) {
	require := require.New(t)
	max := uint64(2)
	k := ArrayKind(IntK, &max)
	_, err := CoerceTo(Array{Int(1), Int(2), Int(3)}, k)
	require.Error(err)
}
