// Package kv defines the single transactional ordered KV abstraction the
// query execution core is built on (spec §4.3/§6.2): bytewise-ordered
// keys, snapshot reads, conflict-detecting writes, and a commit-time
// versionstamp. No secondary indexing or SQL capability is required of a
// backend — those are built above this contract by pkg/index and
// pkg/catalog.
//
// The interface shape follows the teacher's read/write-transaction split
// (erigon-lib/kv's Tx/RwTx convention, as seen in
// core/state/history_reader_v3.go's kv.TemporalTx.GetAsOf usage): callers
// begin a Tx in ReadOnly or ReadWrite mode, and only a ReadWrite Tx's
// methods that mutate are meaningful to call (a ReadOnly Tx's Set/Delete/
// PutIfNotExists return KindPermissionDenied).
package kv

import (
	"context"

	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/keys"
)

// Mode selects a transaction's isolation/mutability per spec §4.3's
// `begin(mode)`.
type Mode uint8

const (
	ReadOnly Mode = iota
	ReadWrite
)

// KeyValue is one (key, value) pair returned by a Scan.
type KeyValue struct {
	Key   []byte
	Value []byte
}

// Range is an exclusive-end bytewise scan bound, matching
// pkg/keys.RangeOf's (begin, end) convention.
type Range struct {
	Begin []byte
	End   []byte
}

// KV is the storage backend contract: a factory for transactions.
type KV interface {
	// Begin starts a new transaction. The read set of the returned Tx is a
	// snapshot of KV state as of this call (spec §3.5: "the read set is a
	// snapshot of KV state at begin").
	Begin(ctx context.Context, mode Mode) (Tx, error)

	// Close releases any resources the backend holds (file handles,
	// in-memory structures). Close does not affect in-flight transactions;
	// callers must commit or cancel them first.
	Close() error
}

// Tx is a single transaction: single-owner, not safe for concurrent use
// from multiple goroutines (spec §3.5).
type Tx interface {
	// Get returns the value at key and whether it was present.
	Get(key []byte) (value []byte, ok bool, err error)

	// Set writes key=value, visible to later reads in the same
	// transaction (spec §4.3: "writes in the same statement are visible
	// to later reads in the same statement").
	Set(key, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key []byte) error

	// PutIfNotExists writes key=value only if key is currently absent,
	// reporting whether the write happened.
	PutIfNotExists(key, value []byte) (bool, error)

	// Scan returns up to limit key-value pairs in r, in ascending key
	// order, starting after cursor (nil cursor starts at r.Begin). A
	// limit <= 0 means unbounded.
	Scan(r Range, limit int, cursor []byte) ([]KeyValue, error)

	// Commit finalizes the transaction's writes, assigning them a
	// versionstamp. A ReadWrite Tx that conflicts with another committed
	// transaction returns xerrors.TxConflict; memkv detects a conflict
	// when a key this Tx read was committed again after the read, and
	// boltkv serializes writers and never reports one (spec §4.3:
	// "Serializable snapshot isolation is assumed; conflicts surface as a
	// typed TxConflict error").
	Commit(ctx context.Context) (keys.Versionstamp, error)

	// Cancel discards the transaction's writes; the read snapshot is
	// released. Calling Cancel after Commit is a no-op.
	Cancel()
}

// TemporalKV is implemented by backends that retain enough history to
// answer as-of-version reads (spec §6.3/S6, VERSION queries), grounded
// on the teacher's kv.TemporalTx.GetAsOf/HistoryReaderV3 pattern
// (core/state/history_reader_v3.go): the executor holds one durable
// reader, rebinds it to a target point via SetTxNum/SetTx, and all reads
// through it resolve "as of" that point without re-snapshotting the
// whole KV.
type TemporalKV interface {
	KV

	// BeginTemporal starts a transaction pinned to the state as of
	// asOf (a versionstamp previously observed via Commit or the change
	// feed), rather than to the current snapshot.
	BeginTemporal(ctx context.Context, asOf keys.Versionstamp) (TemporalTx, error)
}

// TemporalTx is a read-only Tx additionally able to answer "what was the
// value of key at or before asOf" queries without needing a fresh
// transaction per point in time.
type TemporalTx interface {
	Tx

	// GetAsOf returns the value key held at the most recent commit at or
	// before asOf, mirroring kv.TemporalTx.GetAsOf's (value, ok, error)
	// shape from the teacher.
	GetAsOf(key []byte, asOf keys.Versionstamp) (value []byte, ok bool, err error)
}

func errReadOnly() error {
	return xerrors.New(xerrors.KindPermissionDenied, "kv: write attempted on a ReadOnly transaction")
}
