// Package boltkv is the embedded on-disk pkg/kv.TemporalKV backend,
// built on go.etcd.io/bbolt. Unlike memkv's optimistic concurrency,
// boltkv is pessimistic: bbolt allows only one writable transaction at a
// time, so Begin(ctx, ReadWrite) blocks until the prior writer commits
// or cancels rather than ever surfacing a TxConflict — the two backends
// deliberately cover both isolation strategies the spec allows
// ("optimistic/pessimistic variants", §4.3).
//
// Every commit additionally appends to a history bucket keyed by
// key+versionstamp, so GetAsOf can replay a key's value at any earlier
// commit without bbolt's own page-level MVCC (which only retains the
// most recent committed snapshot) — the same "current value plus
// separate append-only history" split the teacher's domain/history
// file separation uses (core/state/history_reader_v3.go's
// AccountsDomain/AccountsHistory pair).
package boltkv

import (
	"bytes"
	"context"

	bolt "go.etcd.io/bbolt"

	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/keys"
	"github.com/nexusdb/nexus/pkg/kv"
)

var (
	bucketData    = []byte("data")
	bucketHistory = []byte("history")
	bucketMeta    = []byte("meta")
	metaCounter   = []byte("counter")
)

// History entry payload tags (see Tx.Commit / Tx.GetAsOf).
const (
	tombstoneTag byte = 0x00
	valueTag     byte = 0x01
)

// DB is a bbolt-backed TemporalKV.
type DB struct {
	bolt *bolt.DB
}

func Open(path string) (*DB, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindInternal, "boltkv: open", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketData, bucketHistory, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, xerrors.Wrap(xerrors.KindInternal, "boltkv: init buckets", err)
	}
	return &DB{bolt: db}, nil
}

func (d *DB) Close() error { return d.bolt.Close() }

func (d *DB) Begin(_ context.Context, mode kv.Mode) (kv.Tx, error) {
	btx, err := d.bolt.Begin(mode == kv.ReadWrite)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindInternal, "boltkv: begin", err)
	}
	return &Tx{tx: btx, mode: mode, touched: make(map[string]bool)}, nil
}

func (d *DB) BeginTemporal(_ context.Context, asOf keys.Versionstamp) (kv.TemporalTx, error) {
	btx, err := d.bolt.Begin(false)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindInternal, "boltkv: begin temporal", err)
	}
	return &Tx{tx: btx, mode: kv.ReadOnly, fixedAsOf: &asOf, touched: make(map[string]bool)}, nil
}

// Tx wraps a *bolt.Tx. A ReadWrite Tx holds bbolt's single writer lock
// for its whole lifetime (acquired at Begin, released at Commit/Cancel).
type Tx struct {
	tx        *bolt.Tx
	mode      kv.Mode
	fixedAsOf *keys.Versionstamp
	done      bool
	touched   map[string]bool
}

func (t *Tx) Get(key []byte) ([]byte, bool, error) {
	v := t.tx.Bucket(bucketData).Get(key)
	if v == nil {
		return nil, false, nil
	}
	return append([]byte{}, v...), true, nil
}

func (t *Tx) Set(key, value []byte) error {
	if t.mode != kv.ReadWrite {
		return xerrors.New(xerrors.KindPermissionDenied, "boltkv: write attempted on a ReadOnly transaction")
	}
	t.touched[string(key)] = true
	return t.tx.Bucket(bucketData).Put(key, value)
}

func (t *Tx) Delete(key []byte) error {
	if t.mode != kv.ReadWrite {
		return xerrors.New(xerrors.KindPermissionDenied, "boltkv: write attempted on a ReadOnly transaction")
	}
	t.touched[string(key)] = true
	return t.tx.Bucket(bucketData).Delete(key)
}

func (t *Tx) PutIfNotExists(key, value []byte) (bool, error) {
	if t.mode != kv.ReadWrite {
		return false, xerrors.New(xerrors.KindPermissionDenied, "boltkv: write attempted on a ReadOnly transaction")
	}
	b := t.tx.Bucket(bucketData)
	if b.Get(key) != nil {
		return false, nil
	}
	t.touched[string(key)] = true
	return true, b.Put(key, value)
}

func (t *Tx) Scan(r kv.Range, limit int, cursor []byte) ([]kv.KeyValue, error) {
	c := t.tx.Bucket(bucketData).Cursor()
	start := r.Begin
	if cursor != nil && bytes.Compare(cursor, start) > 0 {
		start = cursor
	}
	var out []kv.KeyValue
	for k, v := c.Seek(start); k != nil && bytes.Compare(k, r.End) < 0; k, v = c.Next() {
		if cursor != nil && bytes.Equal(k, cursor) {
			continue
		}
		out = append(out, kv.KeyValue{Key: append([]byte{}, k...), Value: append([]byte{}, v...)})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Commit assigns the next global versionstamp, writes a history entry
// per key touched this transaction, then commits the underlying bbolt
// transaction.
func (t *Tx) Commit(_ context.Context) (keys.Versionstamp, error) {
	if t.done {
		return keys.Versionstamp{}, xerrors.New(xerrors.KindInternal, "boltkv: transaction already finished")
	}
	t.done = true
	if t.mode == kv.ReadOnly {
		return keys.Versionstamp{}, t.tx.Rollback()
	}

	meta := t.tx.Bucket(bucketMeta)
	counter := uint64(0)
	if b := meta.Get(metaCounter); b != nil {
		vs, _, err := keys.ParseVersionstamp(b)
		if err != nil {
			return keys.Versionstamp{}, err
		}
		counter = vs.TxnCounter
	}
	newVS := keys.Versionstamp{TxnCounter: counter + 1}
	if err := meta.Put(metaCounter, newVS.Bytes()); err != nil {
		return keys.Versionstamp{}, err
	}

	history := t.tx.Bucket(bucketHistory)
	data := t.tx.Bucket(bucketData)
	for k := range t.touched {
		key := []byte(k)
		v := data.Get(key)
		var payload []byte
		if v == nil {
			payload = []byte{tombstoneTag}
		} else {
			payload = append([]byte{valueTag}, v...)
		}
		if err := history.Put(historyKey(key, newVS), payload); err != nil {
			return keys.Versionstamp{}, err
		}
	}

	if err := t.tx.Commit(); err != nil {
		return keys.Versionstamp{}, xerrors.Wrap(xerrors.KindInternal, "boltkv: commit", err)
	}
	return newVS, nil
}

func (t *Tx) Cancel() {
	if t.done {
		return
	}
	t.done = true
	_ = t.tx.Rollback()
}

// GetAsOf replays key's history, returning the value as of the most
// recent entry at or before asOf. Scans every retained version of key
// (bounded by how often that specific key was written), which is
// acceptable for the scope of this engine's history retention.
func (t *Tx) GetAsOf(key []byte, asOf keys.Versionstamp) ([]byte, bool, error) {
	if t.fixedAsOf != nil {
		asOf = *t.fixedAsOf
	}
	c := t.tx.Bucket(bucketHistory).Cursor()
	prefix := append(append([]byte{}, key...), 0x00)
	var bestPayload []byte
	found := false
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		vs, _, err := keys.ParseVersionstamp(k[len(prefix):])
		if err != nil {
			return nil, false, err
		}
		if vs.Compare(asOf) > 0 {
			break
		}
		bestPayload = v
		found = true
	}
	if !found || len(bestPayload) == 0 || bestPayload[0] == tombstoneTag {
		return nil, false, nil
	}
	return append([]byte{}, bestPayload[1:]...), true, nil
}

func historyKey(key []byte, vs keys.Versionstamp) []byte {
	out := append(append([]byte{}, key...), 0x00)
	return append(out, vs.Bytes()...)
}

var (
	_ kv.KV         = (*DB)(nil)
	_ kv.TemporalKV = (*DB)(nil)
	_ kv.Tx         = (*Tx)(nil)
	_ kv.TemporalTx = (*Tx)(nil)
)
