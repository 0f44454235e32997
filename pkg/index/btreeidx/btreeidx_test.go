package btreeidx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusdb/nexus/pkg/kv"
	"github.com/nexusdb/nexus/pkg/kv/memkv"
	"github.com/nexusdb/nexus/pkg/val"
)

func openTx(t *testing.T) (kv.Tx, func()) {
	t.Helper()
	db := memkv.New()
	tx, err := db.Begin(context.Background(), kv.ReadWrite)
	require.NoError(t, err)
	return tx, func() { tx.Cancel(); _ = db.Close() }
}

func TestNonUniqueIndexInsertAndScan(t *testing.T) {
	require := require.New(t)
	tx, done := openTx(t)
	defer done()

	idx := New("ns", "db", "person", "age_idx", false)
	require.NoError(idx.Insert(tx, val.Int(30), val.NewRecordIDNumber(1)))
	require.NoError(idx.Insert(tx, val.Int(30), val.NewRecordIDNumber(2)))
	require.NoError(idx.Insert(tx, val.Int(40), val.NewRecordIDNumber(3)))

	ids, err := idx.scanValue(tx, val.Int(30), 0)
	require.NoError(err)
	require.Len(ids, 2)
}

func TestUniqueIndexRejectsDuplicateValue(t *testing.T) {
	require := require.New(t)
	tx, done := openTx(t)
	defer done()

	idx := New("ns", "db", "person", "email_idx", true)
	require.NoError(idx.Insert(tx, val.Str("a@example.com"), val.NewRecordIDNumber(1)))
	err := idx.Insert(tx, val.Str("a@example.com"), val.NewRecordIDNumber(2))
	require.Error(err)
}

func TestUniqueIndexAllowsReinsertingSameRecord(t *testing.T) {
	require := require.New(t)
	tx, done := openTx(t)
	defer done()

	idx := New("ns", "db", "person", "email_idx", true)
	require.NoError(idx.Insert(tx, val.Str("a@example.com"), val.NewRecordIDNumber(1)))
	require.NoError(idx.Insert(tx, val.Str("a@example.com"), val.NewRecordIDNumber(1)))
}

func TestRemoveDropsEntry(t *testing.T) {
	require := require.New(t)
	tx, done := openTx(t)
	defer done()

	idx := New("ns", "db", "person", "age_idx", false)
	require.NoError(idx.Insert(tx, val.Int(30), val.NewRecordIDNumber(1)))
	require.NoError(idx.Remove(tx, val.Int(30), val.NewRecordIDNumber(1)))

	ids, err := idx.Scan(tx, val.Int(30), val.Int(31), 10, nil)
	require.NoError(err)
	require.Empty(ids)
}

func TestScanOrdersByFieldValue(t *testing.T) {
	require := require.New(t)
	tx, done := openTx(t)
	defer done()

	idx := New("ns", "db", "person", "age_idx", false)
	require.NoError(idx.Insert(tx, val.Int(40), val.NewRecordIDNumber(1)))
	require.NoError(idx.Insert(tx, val.Int(20), val.NewRecordIDNumber(2)))
	require.NoError(idx.Insert(tx, val.Int(30), val.NewRecordIDNumber(3)))

	ids, err := idx.Scan(tx, nil, nil, 10, nil)
	require.NoError(err)
	require.Len(ids, 3)
	n0, _ := ids[0].Num, true
	require.EqualValues(2, n0)
}

func TestCountIndexTracksRunningTotal(t *testing.T) {
	require := require.New(t)
	tx, done := openTx(t)
	defer done()

	c := CountIndex{NS: "ns", DB: "db", TB: "person", IX: "count_idx"}
	n, err := c.Get(tx)
	require.NoError(err)
	require.EqualValues(0, n)

	require.NoError(c.Inc(tx, 1))
	require.NoError(c.Inc(tx, 1))
	require.NoError(c.Inc(tx, -1))

	n, err = c.Get(tx)
	require.NoError(err)
	require.EqualValues(1, n)
}
