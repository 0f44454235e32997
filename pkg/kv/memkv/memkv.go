// Package memkv is the in-process pkg/kv.TemporalKV backend: an ordered
// keyspace held in a github.com/google/btree.BTreeG, with optimistic
// conflict detection at commit time (a transaction's read set is
// revalidated against the current keyspace before its writes apply).
//
// Every committed version of every key is retained, so memkv also
// answers as-of-version reads (pkg/kv.TemporalTx.GetAsOf) directly from
// the same btree — no separate history structure is needed the way
// boltkv requires one, since the btree item already holds every
// version.
package memkv

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/keys"
	"github.com/nexusdb/nexus/pkg/kv"
)

// versionedValue is one committed revision of a key. value == nil marks
// a tombstone (the key was deleted at that version).
type versionedValue struct {
	version uint64
	value   []byte
}

type item struct {
	key      []byte
	versions []versionedValue // ascending by version
}

func itemLess(a, b *item) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// latestAsOf returns the value live at or before version, and whether
// the key existed (non-tombstone) at that point.
func (it *item) latestAsOf(version uint64) ([]byte, bool) {
	var found *versionedValue
	for i := range it.versions {
		v := &it.versions[i]
		if v.version > version {
			break
		}
		found = v
	}
	if found == nil || found.value == nil {
		return nil, false
	}
	return found.value, true
}

func (it *item) currentVersion() uint64 {
	if len(it.versions) == 0 {
		return 0
	}
	return it.versions[len(it.versions)-1].version
}

// DB is an in-process TemporalKV.
type DB struct {
	mu      sync.Mutex
	tree    *btree.BTreeG[*item]
	counter uint64
}

func New() *DB {
	return &DB{tree: btree.NewG(32, itemLess)}
}

func (db *DB) Close() error { return nil }

func (db *DB) Begin(_ context.Context, mode kv.Mode) (kv.Tx, error) {
	db.mu.Lock()
	snapshot := db.counter
	db.mu.Unlock()
	return db.newTx(mode, snapshot), nil
}

func (db *DB) BeginTemporal(_ context.Context, asOf keys.Versionstamp) (kv.TemporalTx, error) {
	return db.newTx(kv.ReadOnly, asOf.TxnCounter), nil
}

func (db *DB) newTx(mode kv.Mode, snapshot uint64) *Tx {
	return &Tx{
		db:       db,
		mode:     mode,
		snapshot: snapshot,
		reads:    make(map[string]uint64),
		writes:   make(map[string][]byte),
		deletes:  make(map[string]bool),
	}
}

// Tx is a single memkv transaction. Not safe for concurrent use from
// multiple goroutines (spec §3.5).
type Tx struct {
	db       *DB
	mode     kv.Mode
	snapshot uint64
	done     bool

	reads   map[string]uint64 // key -> version observed at read time
	writes  map[string][]byte
	deletes map[string]bool
}

func (t *Tx) lookupTree(key []byte, asOf uint64) ([]byte, bool, uint64) {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	found, ok := t.db.tree.Get(&item{key: key})
	if !ok {
		return nil, false, 0
	}
	v, present := found.latestAsOf(asOf)
	return v, present, found.currentVersion()
}

func (t *Tx) Get(key []byte) ([]byte, bool, error) {
	ks := string(key)
	if t.deletes[ks] {
		return nil, false, nil
	}
	if v, ok := t.writes[ks]; ok {
		return v, true, nil
	}
	v, ok, treeVersion := t.lookupTree(key, t.snapshot)
	if _, seen := t.reads[ks]; !seen {
		t.reads[ks] = treeVersion
	}
	return v, ok, nil
}

func (t *Tx) Set(key, value []byte) error {
	if t.mode != kv.ReadWrite {
		return xerrors.New(xerrors.KindPermissionDenied, "memkv: write attempted on a ReadOnly transaction")
	}
	ks := string(key)
	delete(t.deletes, ks)
	t.writes[ks] = append([]byte{}, value...)
	return nil
}

func (t *Tx) Delete(key []byte) error {
	if t.mode != kv.ReadWrite {
		return xerrors.New(xerrors.KindPermissionDenied, "memkv: write attempted on a ReadOnly transaction")
	}
	ks := string(key)
	delete(t.writes, ks)
	t.deletes[ks] = true
	return nil
}

func (t *Tx) PutIfNotExists(key, value []byte) (bool, error) {
	if t.mode != kv.ReadWrite {
		return false, xerrors.New(xerrors.KindPermissionDenied, "memkv: write attempted on a ReadOnly transaction")
	}
	if _, ok, err := t.Get(key); err != nil {
		return false, err
	} else if ok {
		return false, nil
	}
	return true, t.Set(key, value)
}

func (t *Tx) Scan(r kv.Range, limit int, cursor []byte) ([]kv.KeyValue, error) {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()

	lo := r.Begin
	if cursor != nil && bytes.Compare(cursor, lo) > 0 {
		lo = cursor
	}

	var out []kv.KeyValue
	t.db.tree.AscendRange(&item{key: lo}, &item{key: r.End}, func(it *item) bool {
		ks := string(it.key)
		if cursor != nil && bytes.Equal(it.key, cursor) {
			return true
		}
		if t.deletes[ks] {
			return limit <= 0 || len(out) < limit
		}
		if wv, ok := t.writes[ks]; ok {
			out = append(out, kv.KeyValue{Key: append([]byte{}, it.key...), Value: wv})
		} else if v, ok := it.latestAsOf(t.snapshot); ok {
			out = append(out, kv.KeyValue{Key: append([]byte{}, it.key...), Value: v})
		}
		return limit <= 0 || len(out) < limit
	})

	// local writes that fall in range but were never inserted into the
	// tree yet (a brand-new key written this transaction).
	for ks, wv := range t.writes {
		k := []byte(ks)
		if bytes.Compare(k, lo) < 0 || bytes.Compare(k, r.End) >= 0 || (cursor != nil && bytes.Equal(k, cursor)) {
			continue
		}
		if _, ok := t.db.tree.Get(&item{key: k}); ok {
			continue // already covered by the AscendRange walk above
		}
		out = append(out, kv.KeyValue{Key: k, Value: wv})
	}

	sortKeyValues(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortKeyValues(kvs []kv.KeyValue) {
	for i := 1; i < len(kvs); i++ {
		for j := i; j > 0 && bytes.Compare(kvs[j-1].Key, kvs[j].Key) > 0; j-- {
			kvs[j-1], kvs[j] = kvs[j], kvs[j-1]
		}
	}
}

// Commit validates the transaction's read set against the current
// keyspace (optimistic concurrency), then applies its writes under a
// single new version, returning it as the commit versionstamp.
func (t *Tx) Commit(_ context.Context) (keys.Versionstamp, error) {
	if t.done {
		return keys.Versionstamp{}, xerrors.New(xerrors.KindInternal, "memkv: transaction already finished")
	}
	t.done = true
	if t.mode == kv.ReadOnly {
		return keys.Versionstamp{}, nil
	}

	t.db.mu.Lock()
	defer t.db.mu.Unlock()

	for ks, observed := range t.reads {
		found, ok := t.db.tree.Get(&item{key: []byte(ks)})
		current := uint64(0)
		if ok {
			current = found.currentVersion()
		}
		if current != observed {
			return keys.Versionstamp{}, xerrors.TxConflict
		}
	}

	newVersion := t.db.counter + 1
	t.db.counter = newVersion

	for ks := range t.deletes {
		t.applyVersion([]byte(ks), nil, newVersion)
	}
	for ks, v := range t.writes {
		t.applyVersion([]byte(ks), v, newVersion)
	}

	return keys.Versionstamp{TxnCounter: newVersion}, nil
}

func (t *Tx) applyVersion(key, value []byte, version uint64) {
	found, ok := t.db.tree.Get(&item{key: key})
	if !ok {
		found = &item{key: append([]byte{}, key...)}
		t.db.tree.ReplaceOrInsert(found)
	}
	found.versions = append(found.versions, versionedValue{version: version, value: value})
}

func (t *Tx) Cancel() {
	t.done = true
}

func (t *Tx) GetAsOf(key []byte, asOf keys.Versionstamp) ([]byte, bool, error) {
	v, ok, _ := t.lookupTree(key, asOf.TxnCounter)
	return v, ok, nil
}

var (
	_ kv.KV         = (*DB)(nil)
	_ kv.TemporalKV = (*DB)(nil)
	_ kv.Tx         = (*Tx)(nil)
	_ kv.TemporalTx = (*Tx)(nil)
)
