package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/index/btreeidx"
	"github.com/nexusdb/nexus/pkg/keys"
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

func putRecord(t *testing.T, tx kv.Tx, tb string, id val.RecordIdKey) {
	t.Helper()
	k, err := keys.RecordKey{NS: "ns", DB: "db", TB: tb, ID: id}.Encode()
	require.NoError(t, err)
	require.NoError(t, tx.Set(k, []byte{}))
}

func TestRelateWritesEdgeAndBothAdjacencyEntries(t *testing.T) {
	require := require.New(t)
	tx, done := openTx(t)
	defer done()

	from := val.RecordID{Table: "person", Key: val.NewRecordIDNumber(1)}
	to := val.RecordID{Table: "person", Key: val.NewRecordIDNumber(2)}
	e := Edge{NS: "ns", DB: "db", TB: "knows", ID: val.NewRecordIDNumber(100), From: from, To: to}
	require.NoError(Relate(tx, e, false))

	out, err := Lookup(tx, "ns", "db", "person", from.Key, DirOut, 10, nil)
	require.NoError(err)
	require.Len(out, 1)
	require.Equal("knows", out[0].Table)

	in, err := Lookup(tx, "ns", "db", "person", to.Key, DirIn, 10, nil)
	require.NoError(err)
	require.Len(in, 1)
	require.Equal("knows", in[0].Table)

	both, err := Lookup(tx, "ns", "db", "person", from.Key, DirBoth, 10, nil)
	require.NoError(err)
	require.Len(both, 1)
}

func TestRelateEnforcedRejectsMissingEndpoint(t *testing.T) {
	require := require.New(t)
	tx, done := openTx(t)
	defer done()

	from := val.RecordID{Table: "person", Key: val.NewRecordIDNumber(1)}
	to := val.RecordID{Table: "person", Key: val.NewRecordIDNumber(2)}
	e := Edge{NS: "ns", DB: "db", TB: "knows", ID: val.NewRecordIDNumber(100), From: from, To: to}

	err := Relate(tx, e, true)
	require.Error(err)
	require.True(xerrors.Of(err, xerrors.KindIdNotFound))
}

func TestRelateEnforcedSucceedsWhenBothEndpointsExist(t *testing.T) {
	require := require.New(t)
	tx, done := openTx(t)
	defer done()

	from := val.RecordID{Table: "person", Key: val.NewRecordIDNumber(1)}
	to := val.RecordID{Table: "person", Key: val.NewRecordIDNumber(2)}
	putRecord(t, tx, "person", from.Key)
	putRecord(t, tx, "person", to.Key)

	e := Edge{NS: "ns", DB: "db", TB: "knows", ID: val.NewRecordIDNumber(100), From: from, To: to}
	require.NoError(Relate(tx, e, true))
}

func TestLookupDirectionsDoNotCrossTalk(t *testing.T) {
	require := require.New(t)
	tx, done := openTx(t)
	defer done()

	a := val.RecordID{Table: "person", Key: val.NewRecordIDNumber(1)}
	b := val.RecordID{Table: "person", Key: val.NewRecordIDNumber(2)}
	require.NoError(Relate(tx, Edge{NS: "ns", DB: "db", TB: "knows", ID: val.NewRecordIDNumber(1), From: a, To: b}, false))

	bOut, err := Lookup(tx, "ns", "db", "person", b.Key, DirOut, 10, nil)
	require.NoError(err)
	require.Empty(bOut)

	aIn, err := Lookup(tx, "ns", "db", "person", a.Key, DirIn, 10, nil)
	require.NoError(err)
	require.Empty(aIn)
}

func TestRefLookupFindsReferencingRecords(t *testing.T) {
	require := require.New(t)
	tx, done := openTx(t)
	defer done()

	target := val.RecordID{Table: "author", Key: val.NewRecordIDNumber(1)}
	idx := btreeidx.New("ns", "db", "book", "author_ref_idx", false)
	require.NoError(idx.Insert(tx, val.Str(target.String()), val.NewRecordIDNumber(10)))
	require.NoError(idx.Insert(tx, val.Str(target.String()), val.NewRecordIDNumber(11)))

	other := val.RecordID{Table: "author", Key: val.NewRecordIDNumber(2)}
	require.NoError(idx.Insert(tx, val.Str(other.String()), val.NewRecordIDNumber(12)))

	ids, err := RefLookup(tx, "ns", "db", "book", "author_ref_idx", target, 10, nil)
	require.NoError(err)
	require.Len(ids, 2)
}
