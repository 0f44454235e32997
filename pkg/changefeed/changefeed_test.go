package changefeed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusdb/nexus/pkg/keys"
	"github.com/nexusdb/nexus/pkg/kv"
	"github.com/nexusdb/nexus/pkg/kv/memkv"
	"github.com/nexusdb/nexus/pkg/val"
)

// commitMutation runs w through a full record/commit/flush cycle against
// db, mirroring how pkg/exec is expected to drive a Writer: stage the
// mutation inside the owning transaction, commit it, then flush the
// resulting versionstamp in a follow-up transaction.
func commitMutation(t *testing.T, db kv.KV, ns, dbName string, m Mutation) keys.Versionstamp {
	t.Helper()
	ctx := context.Background()

	w := NewWriter(ns, dbName)
	w.Record(m)

	tx, err := db.Begin(ctx, kv.ReadWrite)
	require.NoError(t, err)
	vs, err := tx.Commit(ctx)
	require.NoError(t, err)

	flushTx, err := db.Begin(ctx, kv.ReadWrite)
	require.NoError(t, err)
	require.NoError(t, w.Flush(flushTx, vs))
	_, err = flushTx.Commit(ctx)
	require.NoError(t, err)

	return vs
}

func TestFlushWritesOneEntryPerMutation(t *testing.T) {
	require := require.New(t)
	db := memkv.New()
	defer db.Close()
	ctx := context.Background()

	vs := commitMutation(t, db, "ns", "db", Mutation{
		Record: val.RecordID{Table: "person", Key: val.NewRecordIDNumber(1)},
		Kind:   MutationCreate,
		Value:  val.Str("alice"),
	})

	tx, err := db.Begin(ctx, kv.ReadOnly)
	require.NoError(err)
	defer tx.Cancel()

	entries, err := Scan(tx, "ns", "db", keys.Versionstamp{}, keys.Versionstamp{}, 10)
	require.NoError(err)
	require.Len(entries, 1)
	require.Equal(MutationCreate, entries[0].Kind)
	require.Equal(vs, entries[0].VS)
	require.Equal("person", entries[0].Record.Table)
	require.EqualValues(1, entries[0].Record.Key.Num)
	require.Equal(val.Str("alice"), entries[0].Value)
}

func TestScanOrdersByCommitVersionstamp(t *testing.T) {
	require := require.New(t)
	db := memkv.New()
	defer db.Close()
	ctx := context.Background()

	var versions []keys.Versionstamp
	for i := int64(1); i <= 3; i++ {
		vs := commitMutation(t, db, "ns", "db", Mutation{
			Record: val.RecordID{Table: "person", Key: val.NewRecordIDNumber(i)},
			Kind:   MutationCreate,
			Value:  val.Str("x"),
		})
		versions = append(versions, vs)
	}

	for i := 1; i < len(versions); i++ {
		require.Equal(-1, versions[i-1].Compare(versions[i]), "versionstamps must strictly increase across commits")
	}

	tx, err := db.Begin(ctx, kv.ReadOnly)
	require.NoError(err)
	defer tx.Cancel()

	entries, err := Scan(tx, "ns", "db", keys.Versionstamp{}, keys.Versionstamp{}, 10)
	require.NoError(err)
	require.Len(entries, 3)
	for i := range entries {
		require.Equal(versions[i], entries[i].VS)
		require.EqualValues(i+1, entries[i].Record.Key.Num)
	}
}

func TestScanRespectsHalfOpenVersionstampInterval(t *testing.T) {
	require := require.New(t)
	db := memkv.New()
	defer db.Close()
	ctx := context.Background()

	var versions []keys.Versionstamp
	for i := int64(1); i <= 4; i++ {
		vs := commitMutation(t, db, "ns", "db", Mutation{
			Record: val.RecordID{Table: "person", Key: val.NewRecordIDNumber(i)},
			Kind:   MutationCreate,
			Value:  val.Str("x"),
		})
		versions = append(versions, vs)
	}

	tx, err := db.Begin(ctx, kv.ReadOnly)
	require.NoError(err)
	defer tx.Cancel()

	entries, err := Scan(tx, "ns", "db", versions[1], versions[3], 10)
	require.NoError(err)
	require.Len(entries, 2)
	require.EqualValues(2, entries[0].Record.Key.Num)
	require.EqualValues(3, entries[1].Record.Key.Num)
}

func TestFlushStoresOriginalOnlyWhenSet(t *testing.T) {
	require := require.New(t)
	db := memkv.New()
	defer db.Close()
	ctx := context.Background()

	commitMutation(t, db, "ns", "db", Mutation{
		Record:   val.RecordID{Table: "person", Key: val.NewRecordIDNumber(1)},
		Kind:     MutationUpdate,
		Value:    val.Str("new"),
		Original: val.Str("old"),
	})

	tx, err := db.Begin(ctx, kv.ReadOnly)
	require.NoError(err)
	defer tx.Cancel()

	entries, err := Scan(tx, "ns", "db", keys.Versionstamp{}, keys.Versionstamp{}, 10)
	require.NoError(err)
	require.Len(entries, 1)
	require.Equal(val.Str("new"), entries[0].Value)
	require.Equal(val.Str("old"), entries[0].Original)
}

func TestFlushOmitsValueForDelete(t *testing.T) {
	require := require.New(t)
	db := memkv.New()
	defer db.Close()
	ctx := context.Background()

	commitMutation(t, db, "ns", "db", Mutation{
		Record: val.RecordID{Table: "person", Key: val.NewRecordIDNumber(1)},
		Kind:   MutationDelete,
	})

	tx, err := db.Begin(ctx, kv.ReadOnly)
	require.NoError(err)
	defer tx.Cancel()

	entries, err := Scan(tx, "ns", "db", keys.Versionstamp{}, keys.Versionstamp{}, 10)
	require.NoError(err)
	require.Len(entries, 1)
	require.Equal(MutationDelete, entries[0].Kind)
	require.Nil(entries[0].Value)
	require.Nil(entries[0].Original)
}

func TestGCDeletesOnlyEntriesOlderThanCutoff(t *testing.T) {
	require := require.New(t)
	db := memkv.New()
	defer db.Close()
	ctx := context.Background()

	var versions []keys.Versionstamp
	for i := int64(1); i <= 3; i++ {
		vs := commitMutation(t, db, "ns", "db", Mutation{
			Record: val.RecordID{Table: "person", Key: val.NewRecordIDNumber(i)},
			Kind:   MutationCreate,
			Value:  val.Str("x"),
		})
		versions = append(versions, vs)
	}

	gcTx, err := db.Begin(ctx, kv.ReadWrite)
	require.NoError(err)
	deleted, err := GC(gcTx, "ns", "db", versions[2])
	require.NoError(err)
	require.Equal(2, deleted)
	_, err = gcTx.Commit(ctx)
	require.NoError(err)

	tx, err := db.Begin(ctx, kv.ReadOnly)
	require.NoError(err)
	defer tx.Cancel()

	entries, err := Scan(tx, "ns", "db", keys.Versionstamp{}, keys.Versionstamp{}, 10)
	require.NoError(err)
	require.Len(entries, 1)
	require.EqualValues(3, entries[0].Record.Key.Num)
}

func TestGCZeroCutoffDeletesNothing(t *testing.T) {
	require := require.New(t)
	db := memkv.New()
	defer db.Close()
	ctx := context.Background()

	commitMutation(t, db, "ns", "db", Mutation{
		Record: val.RecordID{Table: "person", Key: val.NewRecordIDNumber(1)},
		Kind:   MutationCreate,
		Value:  val.Str("x"),
	})

	gcTx, err := db.Begin(ctx, kv.ReadWrite)
	require.NoError(err)
	deleted, err := GC(gcTx, "ns", "db", keys.Versionstamp{})
	require.NoError(err)
	require.Equal(0, deleted)
	gcTx.Cancel()
}
