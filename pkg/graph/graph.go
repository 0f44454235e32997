// Package graph implements the edge-traversal and record-ref lookup
// operator of spec §4.8: a Relation-typed table's RELATE writes three
// keys atomically (the edge record itself, the `->` entry on the `in`
// endpoint, the `<-` entry on the `out` endpoint), and Lookup resolves
// a source record plus direction into the foreign record ids reachable
// from it.
package graph

import (
	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/keys"
	"github.com/nexusdb/nexus/pkg/kv"
	"github.com/nexusdb/nexus/pkg/val"
)

// Direction mirrors spec §4.8's `->`, `<-`, `<->` Lookup subjects.
// `<~` (reference lookup) is handled by this package's RefLookup, not
// Direction, since it walks a Field.Reference rather than a graph edge.
type Direction uint8

const (
	DirOut Direction = iota
	DirIn
	DirBoth
)

// Edge describes one RELATE: an edge table tb, its own record id eid,
// and the two endpoints it connects.
type Edge struct {
	NS, DB, TB string
	ID         val.RecordIdKey
	From, To   val.RecordID
}

// exists reports whether a record's primary key is present, used to
// enforce ENFORCED relations (spec §4.8: "ENFORCED relations require
// both endpoints to exist").
func exists(tx kv.Tx, ns, db string, r val.RecordID) (bool, error) {
	k, err := keys.RecordKey{NS: ns, DB: db, TB: r.Table, ID: r.Key}.Encode()
	if err != nil {
		return false, err
	}
	_, ok, err := tx.Get(k)
	return ok, err
}

// Relate writes an edge's three keys atomically within tx (spec §4.8).
// When enforced is true, both endpoints must already exist or Relate
// fails with xerrors.KindIdNotFound before writing anything.
func Relate(tx kv.Tx, e Edge, enforced bool) error {
	if enforced {
		for _, endpoint := range []val.RecordID{e.From, e.To} {
			ok, err := exists(tx, e.NS, e.DB, endpoint)
			if err != nil {
				return err
			}
			if !ok {
				return xerrors.New(xerrors.KindIdNotFound,
					"graph: enforced relation endpoint "+endpoint.String()+" does not exist")
			}
		}
	}

	edgeKey, err := keys.RecordKey{NS: e.NS, DB: e.DB, TB: e.TB, ID: e.ID}.Encode()
	if err != nil {
		return err
	}
	edgeRecordID := val.RecordID{Table: e.TB, Key: e.ID}
	if err := tx.Set(edgeKey, []byte{}); err != nil {
		return err
	}

	outKey, err := keys.GraphEdgeKey{NS: e.NS, DB: e.DB, TB: e.From.Table, ID: e.From.Key, Dir: keys.DirOut, Foreign: edgeRecordID}.Encode()
	if err != nil {
		return err
	}
	if err := tx.Set(outKey, mustEncodeRef(e.To)); err != nil {
		return err
	}

	inKey, err := keys.GraphEdgeKey{NS: e.NS, DB: e.DB, TB: e.To.Table, ID: e.To.Key, Dir: keys.DirIn, Foreign: edgeRecordID}.Encode()
	if err != nil {
		return err
	}
	return tx.Set(inKey, mustEncodeRef(e.From))
}

func mustEncodeRef(r val.RecordID) []byte {
	b, err := val.Encode(r)
	if err != nil {
		// RecordID always encodes: its Table/Key carry no expression
		// fragments, unlike a catalog entity's any-typed fields.
		panic(err)
	}
	return b
}

// Lookup resolves source's edges in dir, returning up to limit foreign
// record ids reachable through table tb's graph index (spec §4.8). The
// caller applies any WHERE/fetch/order/limit refinement beyond the
// plain id scan.
func Lookup(tx kv.Tx, ns, db, tb string, source val.RecordIdKey, dir Direction, limit int, cursor []byte) ([]val.RecordID, error) {
	idBytes, err := keys.EncodeRecordIdKey(source)
	if err != nil {
		return nil, err
	}

	var prefix []byte
	switch dir {
	case DirOut:
		prefix = keys.GraphDirPrefix(ns, db, tb, idBytes, keys.DirOut)
	case DirIn:
		prefix = keys.GraphDirPrefix(ns, db, tb, idBytes, keys.DirIn)
	case DirBoth:
		prefix = keys.GraphKeyPrefix(ns, db, tb, idBytes)
	}
	begin, end := keys.RangeOf(prefix)

	kvs, err := tx.Scan(kv.Range{Begin: begin, End: end}, limit, cursor)
	if err != nil {
		return nil, err
	}
	out := make([]val.RecordID, 0, len(kvs))
	for _, p := range kvs {
		ek, err := keys.DecodeGraphEdgeKey(p.Key)
		if err != nil {
			return nil, err
		}
		out = append(out, ek.Foreign)
	}
	return out, nil
}

// RefLookup walks a `<~` reference: every record of table tb whose
// field holds a RecordID pointing at target, found via that table's
// `reference` index entry (spec §4.8's "<~ for references"; the
// backing index entries are written by pkg/index/btreeidx the same way
// any other secondary index is, keyed by the referencing field's
// value). refIndex names the index pkg/catalog registered for the
// Ref-typed field.
func RefLookup(tx kv.Tx, ns, db, tb, refIndex string, target val.RecordID, limit int, cursor []byte) ([]val.RecordIdKey, error) {
	// pkg/keys.EncodeOrderedValue has no RecordID variant (a reference
	// field's index entry is keyed by the target's canonical "table:id"
	// string form, the same convention the writer of a Ref field's
	// index entry must follow); string() keeps the lookup and the write
	// path it will meet in pkg/exec on the one shared encoding.
	fdb, err := keys.EncodeOrderedValue(val.Str(target.String()))
	if err != nil {
		return nil, err
	}
	prefix := append(keys.IndexKeyPrefix(ns, db, tb, refIndex), fdb...)
	begin, end := keys.RangeOf(prefix)

	kvs, err := tx.Scan(kv.Range{Begin: begin, End: end}, limit, cursor)
	if err != nil {
		return nil, err
	}
	out := make([]val.RecordIdKey, 0, len(kvs))
	for _, p := range kvs {
		ek, err := keys.DecodeIndexEntryKey(p.Key)
		if err != nil {
			return nil, err
		}
		out = append(out, ek.ID)
	}
	return out, nil
}
