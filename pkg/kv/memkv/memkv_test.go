package memkv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusdb/nexus/pkg/kv"
)

func TestSetGetWithinSameTransaction(t *testing.T) {
	require := require.New(t)
	db := New()
	ctx := context.Background()

	tx, err := db.Begin(ctx, kv.ReadWrite)
	require.NoError(err)
	require.NoError(tx.Set([]byte("a"), []byte("1")))
	v, ok, err := tx.Get([]byte("a"))
	require.NoError(err)
	require.True(ok)
	require.Equal([]byte("1"), v)
	_, err = tx.Commit(ctx)
	require.NoError(err)
}

func TestCommittedWriteVisibleToNewTransaction(t *testing.T) {
	require := require.New(t)
	db := New()
	ctx := context.Background()

	tx1, _ := db.Begin(ctx, kv.ReadWrite)
	require.NoError(tx1.Set([]byte("k"), []byte("v1")))
	_, err := tx1.Commit(ctx)
	require.NoError(err)

	tx2, _ := db.Begin(ctx, kv.ReadOnly)
	v, ok, err := tx2.Get([]byte("k"))
	require.NoError(err)
	require.True(ok)
	require.Equal([]byte("v1"), v)
}

func TestReadOnlyTransactionRejectsWrites(t *testing.T) {
	require := require.New(t)
	db := New()
	ctx := context.Background()

	tx, _ := db.Begin(ctx, kv.ReadOnly)
	require.Error(tx.Set([]byte("a"), []byte("1")))
	require.Error(tx.Delete([]byte("a")))
	_, err := tx.PutIfNotExists([]byte("a"), []byte("1"))
	require.Error(err)
}

func TestPutIfNotExists(t *testing.T) {
	require := require.New(t)
	db := New()
	ctx := context.Background()

	tx, _ := db.Begin(ctx, kv.ReadWrite)
	ok, err := tx.PutIfNotExists([]byte("k"), []byte("first"))
	require.NoError(err)
	require.True(ok)

	ok, err = tx.PutIfNotExists([]byte("k"), []byte("second"))
	require.NoError(err)
	require.False(ok)

	v, _, _ := tx.Get([]byte("k"))
	require.Equal([]byte("first"), v)
}

// TestOptimisticConflictOnOverlappingWrite exercises testable property 5:
// two read-write transactions that both read then write the same key
// produce a TxConflict for whichever commits second.
func TestOptimisticConflictOnOverlappingWrite(t *testing.T) {
	require := require.New(t)
	db := New()
	ctx := context.Background()

	seed, _ := db.Begin(ctx, kv.ReadWrite)
	require.NoError(seed.Set([]byte("balance"), []byte("100")))
	_, err := seed.Commit(ctx)
	require.NoError(err)

	txA, _ := db.Begin(ctx, kv.ReadWrite)
	txB, _ := db.Begin(ctx, kv.ReadWrite)

	_, _, err = txA.Get([]byte("balance"))
	require.NoError(err)
	_, _, err = txB.Get([]byte("balance"))
	require.NoError(err)

	require.NoError(txA.Set([]byte("balance"), []byte("90")))
	require.NoError(txB.Set([]byte("balance"), []byte("80")))

	_, err = txA.Commit(ctx)
	require.NoError(err)

	_, err = txB.Commit(ctx)
	require.Error(err)
}

func TestScanReturnsOrderedRangeRespectingLimit(t *testing.T) {
	require := require.New(t)
	db := New()
	ctx := context.Background()

	tx, _ := db.Begin(ctx, kv.ReadWrite)
	for _, k := range []string{"b", "a", "d", "c"} {
		require.NoError(tx.Set([]byte(k), []byte(k)))
	}
	_, err := tx.Commit(ctx)
	require.NoError(err)

	tx2, _ := db.Begin(ctx, kv.ReadOnly)
	out, err := tx2.Scan(kv.Range{Begin: []byte("a"), End: []byte("z")}, 2, nil)
	require.NoError(err)
	require.Len(out, 2)
	require.Equal([]byte("a"), out[0].Key)
	require.Equal([]byte("b"), out[1].Key)
}

func TestDeleteThenGetIsAbsent(t *testing.T) {
	require := require.New(t)
	db := New()
	ctx := context.Background()

	tx, _ := db.Begin(ctx, kv.ReadWrite)
	require.NoError(tx.Set([]byte("k"), []byte("v")))
	_, err := tx.Commit(ctx)
	require.NoError(err)

	tx2, _ := db.Begin(ctx, kv.ReadWrite)
	require.NoError(tx2.Delete([]byte("k")))
	_, ok, err := tx2.Get([]byte("k"))
	require.NoError(err)
	require.False(ok)
	_, err = tx2.Commit(ctx)
	require.NoError(err)

	tx3, _ := db.Begin(ctx, kv.ReadOnly)
	_, ok, err = tx3.Get([]byte("k"))
	require.NoError(err)
	require.False(ok)
}

// TestGetAsOfReplaysEarlierVersion exercises S6: a VERSION query against
// an earlier commit sees the value as it stood at that versionstamp.
func TestGetAsOfReplaysEarlierVersion(t *testing.T) {
	require := require.New(t)
	db := New()
	ctx := context.Background()

	tx1, _ := db.Begin(ctx, kv.ReadWrite)
	require.NoError(tx1.Set([]byte("k"), []byte("v1")))
	vs1, err := tx1.Commit(ctx)
	require.NoError(err)

	tx2, _ := db.Begin(ctx, kv.ReadWrite)
	require.NoError(tx2.Set([]byte("k"), []byte("v2")))
	_, err = tx2.Commit(ctx)
	require.NoError(err)

	temporalTx, err := db.BeginTemporal(ctx, vs1)
	require.NoError(err)
	v, ok, err := temporalTx.GetAsOf([]byte("k"), vs1)
	require.NoError(err)
	require.True(ok)
	require.Equal([]byte("v1"), v)

	current, err := db.Begin(ctx, kv.ReadOnly)
	require.NoError(err)
	v2, ok2, err := current.Get([]byte("k"))
	require.NoError(err)
	require.True(ok2)
	require.Equal([]byte("v2"), v2)
}
