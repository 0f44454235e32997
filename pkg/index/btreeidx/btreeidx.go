// Package btreeidx implements the unique, non-unique, and count
// secondary-index cores of spec §3.4/§4.2's `index_kind`: `Idx`
// (non-unique), `Uniq`, and `Count`. Both live directly on
// `pkg/keys.IndexEntryKey` over a `pkg/kv.Tx`, so an index entry is
// just another key in the core's single flat keyspace — no separate
// index storage engine is needed, the same way the teacher keeps a
// secondary index as just another bucket inside `erigon-lib/kv` rather
// than a bolted-on structure.
package btreeidx

import (
	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/keys"
	"github.com/nexusdb/nexus/pkg/kv"
	"github.com/nexusdb/nexus/pkg/val"
)

// Index is one non-unique or unique secondary index bound to a
// transaction.
type Index struct {
	NS, DB, TB, IX string
	Unique         bool
}

// New binds an Index descriptor; Unique controls whether Insert
// rejects a duplicate field value (spec §3.4: `index_kind` one of
// `Idx`|`Uniq`).
func New(ns, db, tb, ix string, unique bool) Index {
	return Index{NS: ns, DB: db, TB: tb, IX: ix, Unique: unique}
}

func (idx Index) key(fieldValue val.Value, id val.RecordIdKey) keys.IndexEntryKey {
	return keys.IndexEntryKey{NS: idx.NS, DB: idx.DB, TB: idx.TB, IX: idx.IX, FieldValue: fieldValue, ID: id}
}

// Insert adds one index entry for id under fieldValue. A unique index
// rejects the insert with xerrors.KindIndexViolation if any record
// already holds that field value (scanning the single-value range
// first, since uniqueness is checked per value, not per (value,id)
// pair).
func (idx Index) Insert(tx kv.Tx, fieldValue val.Value, id val.RecordIdKey) error {
	if idx.Unique {
		existing, err := idx.scanValue(tx, fieldValue, 1)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if e.ID.String() != id.String() {
				return xerrors.New(xerrors.KindIndexViolation,
					"btreeidx: unique index "+idx.IX+" already has an entry for this value")
			}
		}
	}
	k, err := idx.key(fieldValue, id).Encode()
	if err != nil {
		return err
	}
	return tx.Set(k, []byte{})
}

// Remove deletes the entry for (fieldValue, id), e.g. when a record is
// updated or deleted.
func (idx Index) Remove(tx kv.Tx, fieldValue val.Value, id val.RecordIdKey) error {
	k, err := idx.key(fieldValue, id).Encode()
	if err != nil {
		return err
	}
	return tx.Delete(k)
}

// valuePrefix is the key prefix shared by every entry for exactly
// fieldValue: IndexKeyPrefix + that value's ordered encoding, with the
// owning record id not yet appended.
func (idx Index) valuePrefix(fieldValue val.Value) ([]byte, error) {
	fdb, err := keys.EncodeOrderedValue(fieldValue)
	if err != nil {
		return nil, err
	}
	return append(keys.IndexKeyPrefix(idx.NS, idx.DB, idx.TB, idx.IX), fdb...), nil
}

// scanValue returns every index entry for exactly fieldValue.
func (idx Index) scanValue(tx kv.Tx, fieldValue val.Value, limit int) ([]keys.IndexEntryKey, error) {
	prefix, err := idx.valuePrefix(fieldValue)
	if err != nil {
		return nil, err
	}
	begin, end := keys.RangeOf(prefix)
	kvs, err := tx.Scan(kv.Range{Begin: begin, End: end}, limit, nil)
	if err != nil {
		return nil, err
	}
	out := make([]keys.IndexEntryKey, 0, len(kvs))
	for _, p := range kvs {
		ek, err := keys.DecodeIndexEntryKey(p.Key)
		if err != nil {
			return nil, err
		}
		out = append(out, ek)
	}
	return out, nil
}

// Scan returns up to limit record IDs whose index entries fall within
// [beginValue, endValue], inclusive on both ends (an equality lookup
// passes the same value twice) — an ordered range scan over the index,
// serving an IndexRangeScan plan operator (spec §4.4). A nil bound
// means unbounded on that side.
func (idx Index) Scan(tx kv.Tx, beginValue, endValue val.Value, limit int, cursor []byte) ([]val.RecordIdKey, error) {
	begin, end := keys.RangeOf(keys.IndexKeyPrefix(idx.NS, idx.DB, idx.TB, idx.IX))
	if beginValue != nil {
		b, err := idx.valuePrefix(beginValue)
		if err != nil {
			return nil, err
		}
		begin = b
	}
	if endValue != nil {
		e, err := idx.valuePrefix(endValue)
		if err != nil {
			return nil, err
		}
		_, end = keys.RangeOf(e)
	}

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

// CountIndex is the `Count(Option<Cond>)` index kind: it stores one
// running total at a single well-known key rather than one entry per
// record, so `COUNT()` queries that only need a total skip a table
// scan entirely (spec §3.4). The optional Cond (an *expr.Expr, opaque
// to this package) is evaluated by the caller before Inc (a negative
// delta decrements), matching
// every other `any`-typed condition field in pkg/catalog.
type CountIndex struct {
	NS, DB, TB, IX string
}

func (c CountIndex) key() []byte {
	return keys.IndexKeyPrefix(c.NS, c.DB, c.TB, c.IX)
}

func (c CountIndex) Get(tx kv.Tx) (int64, error) {
	v, ok, err := tx.Get(c.key())
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return decodeCount(v), nil
}

func (c CountIndex) Inc(tx kv.Tx, delta int64) error {
	cur, err := c.Get(tx)
	if err != nil {
		return err
	}
	return tx.Set(c.key(), encodeCount(cur+delta))
}

func encodeCount(n int64) []byte {
	u := uint64(n)
	return []byte{
		byte(u >> 56), byte(u >> 48), byte(u >> 40), byte(u >> 32),
		byte(u >> 24), byte(u >> 16), byte(u >> 8), byte(u),
	}
}

func decodeCount(b []byte) int64 {
	if len(b) < 8 {
		return 0
	}
	u := uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
		uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7])
	return int64(u)
}
