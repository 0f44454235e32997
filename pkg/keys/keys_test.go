package keys

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusdb/nexus/pkg/val"
)

func TestRecordKeyRoundTrips(t *testing.T) {
	require := require.New(t)
	k := RecordKey{NS: "test", DB: "main", TB: "person", ID: val.NewRecordIDString("alice")}
	enc, err := k.Encode()
	require.NoError(err)
	dec, err := DecodeRecordKey(enc)
	require.NoError(err)
	require.Equal(k, dec)
}

func TestRecordKeyNumericRoundTrips(t *testing.T) {
	require := require.New(t)
	k := RecordKey{NS: "n", DB: "d", TB: "t", ID: val.NewRecordIDNumber(-12345)}
	enc, err := k.Encode()
	require.NoError(err)
	dec, err := DecodeRecordKey(enc)
	require.NoError(err)
	require.Equal(k, dec)
}

func TestRecordKeysOfSameTableSortByNumericID(t *testing.T) {
	require := require.New(t)
	k1 := RecordKey{NS: "n", DB: "d", TB: "t", ID: val.NewRecordIDNumber(1)}
	k2 := RecordKey{NS: "n", DB: "d", TB: "t", ID: val.NewRecordIDNumber(2)}
	k3 := RecordKey{NS: "n", DB: "d", TB: "t", ID: val.NewRecordIDNumber(-1)}
	e1, _ := k1.Encode()
	e2, _ := k2.Encode()
	e3, _ := k3.Encode()
	require.True(bytes.Compare(e3, e1) < 0, "negative id must sort before positive")
	require.True(bytes.Compare(e1, e2) < 0, "1 must sort before 2")
}

func TestRecordKeysShareTablePrefixForRangeScan(t *testing.T) {
	require := require.New(t)
	k1 := RecordKey{NS: "n", DB: "d", TB: "t", ID: val.NewRecordIDNumber(1)}
	k2 := RecordKey{NS: "n", DB: "d", TB: "t", ID: val.NewRecordIDNumber(2)}
	e1, _ := k1.Encode()
	e2, _ := k2.Encode()
	prefix := RecordKeyPrefix("n", "d", "t")
	begin, end := RangeOf(prefix)
	require.True(bytes.Compare(begin, e1) <= 0)
	require.True(bytes.Compare(e1, end) < 0)
	require.True(bytes.Compare(e2, end) < 0)

	other := RecordKey{NS: "n", DB: "d", TB: "other", ID: val.NewRecordIDNumber(1)}
	eo, _ := other.Encode()
	require.False(bytes.Compare(begin, eo) <= 0 && bytes.Compare(eo, end) < 0)
}

func TestIndexEntryKeyRoundTrips(t *testing.T) {
	require := require.New(t)
	k := IndexEntryKey{
		NS: "n", DB: "d", TB: "t", IX: "by_email",
		FieldValue: val.Str("alice@example.com"),
		ID:         val.NewRecordIDString("alice"),
	}
	enc, err := k.Encode()
	require.NoError(err)
	dec, err := DecodeIndexEntryKey(enc)
	require.NoError(err)
	require.Equal(k, dec)
}

func TestGraphEdgeKeyRoundTrips(t *testing.T) {
	require := require.New(t)
	k := GraphEdgeKey{
		NS: "n", DB: "d", TB: "person",
		ID:      val.NewRecordIDString("alice"),
		Dir:     DirOut,
		Foreign: val.RecordID{Table: "likes", Key: val.NewRecordIDString("edge1")},
	}
	enc, err := k.Encode()
	require.NoError(err)
	dec, err := DecodeGraphEdgeKey(enc)
	require.NoError(err)
	require.Equal(k, dec)
}

func TestChangeFeedKeyRoundTrips(t *testing.T) {
	require := require.New(t)
	k := ChangeFeedKey{
		NS: "n", DB: "d",
		VS:     Versionstamp{TxnCounter: 42, SubStamp: 7},
		Record: val.RecordID{Table: "person", Key: val.NewRecordIDNumber(1)},
	}
	enc, err := k.Encode()
	require.NoError(err)
	dec, err := DecodeChangeFeedKey(enc)
	require.NoError(err)
	require.Equal(k, dec)
}

func TestChangeFeedKeysSortByVersionstamp(t *testing.T) {
	require := require.New(t)
	k1 := ChangeFeedKey{NS: "n", DB: "d", VS: Versionstamp{TxnCounter: 1}, Record: val.RecordID{Table: "t", Key: val.NewRecordIDNumber(1)}}
	k2 := ChangeFeedKey{NS: "n", DB: "d", VS: Versionstamp{TxnCounter: 2}, Record: val.RecordID{Table: "t", Key: val.NewRecordIDNumber(1)}}
	e1, _ := k1.Encode()
	e2, _ := k2.Encode()
	require.True(bytes.Compare(e1, e2) < 0)
	require.Equal(-1, k1.VS.Compare(k2.VS))
}

func TestOrderedValueEncodingPreservesNumericOrder(t *testing.T) {
	require := require.New(t)
	vals := []val.Number{val.Int(-100), val.Int(-1), val.Int(0), val.Int(1), val.Dec(val.MustDecimal("1.5")), val.Int(100)}
	var encoded [][]byte
	for _, v := range vals {
		e, err := EncodeOrderedValue(v)
		require.NoError(err)
		encoded = append(encoded, e)
	}
	for i := 1; i < len(encoded); i++ {
		require.True(bytes.Compare(encoded[i-1], encoded[i]) < 0, "index %d should sort before %d", i-1, i)
	}
}

func TestOrderedValueRoundTripsStringsAndArrays(t *testing.T) {
	require := require.New(t)
	v := val.Array{val.Str("a"), val.Int(1), val.Bool(true)}
	enc, err := EncodeOrderedValue(v)
	require.NoError(err)
	dec, err := DecodeOrderedValue(enc)
	require.NoError(err)
	require.True(val.Equal(v, dec))
}

func TestStorageVersionKeyIsWellKnown(t *testing.T) {
	require := require.New(t)
	require.Equal([]byte("/!sv"), StorageVersionKey)
}
