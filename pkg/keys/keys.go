// Package keys implements the single lexicographic key schema the storage
// core maps every catalog entity, record, index entry, graph edge, and
// change-feed mutation into (spec §4.2). Every prefix is chosen so a scan
// over a parent range returns all of its children contiguously, the same
// design tables.go documents for Erigon's bucket layout, generalized from
// a name->bucket registry to a byte-prefix-per-category scheme since this
// engine keeps one flat keyspace instead of many named buckets.
//
// Key categories (see individual Encode*/Decode* pairs below):
//
//	Root-level:  /!ns{ns}  /!ac{ac}  /!nd{nd}  /!hb{ts}/{nd}  /!us{us}  /!sv
//	Per-node:    /${nd}!lq{lq}{ns}{db}
//	Namespace:   /*{ns}!db{db}  /*{ns}!ac{ac}  /*{ns}!us{us}
//	Database:    /*{ns}*{db}!{category}{id}
//	Table:       /*{ns}*{db}*{tb}!{category}{id}
//	Record:      /*{ns}*{db}*{tb}*{id}
//	Index:       /*{ns}*{db}*{tb}+{ix}*{fd}{id}
//	Graph edge:  /*{ns}*{db}*{tb}~{id}{dir}{foreign}
//	Change feed: /*{ns}*{db}#{versionstamp}{record_id}
//
// All variable-length names are NUL-terminated; integer IDs are
// big-endian; RecordIdKey components use an order-preserving encoding
// (see recordkey.go) so range scans over a table's records stay correctly
// sorted.
package keys

import (
	"fmt"

	"github.com/nexusdb/nexus/internal/xerrors"
)

const (
	markerRoot      = '!' // root-level / per-scope category marker
	markerNamespace = '*' // enter-namespace / enter-database / enter-table
	markerNode      = '$' // per-node scope
	markerIndex     = '+' // secondary index entries
	markerGraph     = '~' // graph edges
	markerFeed      = '#' // change feed
)

// StorageVersionKey is the well-known key a freshly formatted KV carries
// its schema version at (spec §6.4). A core instance refuses to operate
// against an incompatible version found here.
var StorageVersionKey = []byte("/!sv")

// Categories used under a database or table scope (`!{category}{id}`).
const (
	CategoryTable     = "tb"
	CategoryAnalyzer  = "az"
	CategoryFunction  = "fn"
	CategoryModel     = "ml"
	CategoryParam     = "pa"
	CategoryUser      = "us"
	CategoryAccess    = "ac"
	CategoryEvent     = "ev"
	CategoryField     = "fd"
	CategoryIndex     = "ix"
	CategoryView      = "vw"
	CategoryLiveQuery = "lq"
	CategoryBucket    = "bu"
	CategoryAPI       = "ap"
	CategoryConfig    = "cf"
)

// --- root-level ---

func NamespaceKey(ns string) []byte {
	b := []byte{'/', markerRoot, 'n', 's'}
	return appendNulString(b, ns)
}

func NodeKey(nd string) []byte {
	b := []byte{'/', markerRoot, 'n', 'd'}
	return appendNulString(b, nd)
}

func RootAccessKey(ac string) []byte {
	b := []byte{'/', markerRoot, 'a', 'c'}
	return appendNulString(b, ac)
}

func RootUserKey(us string) []byte {
	b := []byte{'/', markerRoot, 'u', 's'}
	return appendNulString(b, us)
}

// HeartbeatKey orders nodes by heartbeat timestamp so a scan finds expired
// nodes contiguously (oldest first).
func HeartbeatKey(ts uint64, nd string) []byte {
	b := []byte{'/', markerRoot, 'h', 'b'}
	b = appendUint64(b, ts)
	b = append(b, '/')
	return appendNulString(b, nd)
}

// --- per-node ---

func NodeLiveQueryKey(nd, lq, ns, db string) []byte {
	b := []byte{'/', markerNode}
	b = appendNulString(b, nd)
	b = append(b, markerRoot, 'l', 'q')
	b = appendNulString(b, lq)
	b = appendNulString(b, ns)
	return appendNulString(b, db)
}

// NodeLiveQueryPrefix returns `/${nd}!lq`, the base of a scan over every
// live query a node is discoverable under.
func NodeLiveQueryPrefix(nd string) []byte {
	b := []byte{'/', markerNode}
	b = appendNulString(b, nd)
	return append(b, markerRoot, 'l', 'q')
}

// --- namespace scope ---

func NamespaceDatabaseKey(ns, db string) []byte {
	b := nsPrefix(ns)
	b = append(b, markerRoot, 'd', 'b')
	return appendNulString(b, db)
}

func NamespaceAccessKey(ns, ac string) []byte {
	b := nsPrefix(ns)
	b = append(b, markerRoot, 'a', 'c')
	return appendNulString(b, ac)
}

func NamespaceUserKey(ns, us string) []byte {
	b := nsPrefix(ns)
	b = append(b, markerRoot, 'u', 's')
	return appendNulString(b, us)
}

// --- database scope ---

// DatabaseEntityKey encodes `/*{ns}*{db}!{category}{id}` for every
// database-scoped catalog entity (tables, analyzers, functions, models,
// params, users, accesses, buckets, apis, configs).
func DatabaseEntityKey(ns, db, category, id string) []byte {
	b := dbPrefix(ns, db)
	b = append(b, markerRoot)
	b = append(b, category...)
	return appendNulString(b, id)
}

// --- id sequences ---
//
// DEFINE NAMESPACE/DATABASE/TABLE/INDEX allocate a fresh uint32 id for the
// entity being created; these keys hold the next value to hand out, one
// counter per scope the id is unique within (spec §3.4). They reuse
// markerRoot the same way every other category key does, with a two-byte
// suffix ('nq'/'dq'/'tq'/'iq') chosen to not collide with any Category*
// constant or the 'ns'/'nd'/'ac'/'us'/'hb'/'db' root/namespace keys above.

func NamespaceSeqKey() []byte {
	return []byte{'/', markerRoot, 'n', 'q'}
}

func DatabaseSeqKey(ns string) []byte {
	b := nsPrefix(ns)
	return append(b, markerRoot, 'd', 'q')
}

func TableSeqKey(ns, db string) []byte {
	b := dbPrefix(ns, db)
	return append(b, markerRoot, 't', 'q')
}

func IndexSeqKey(ns, db, tb string) []byte {
	b := tbPrefix(ns, db, tb)
	return append(b, markerRoot, 'i', 'q')
}

// --- table scope ---

// TableEntityKey encodes `/*{ns}*{db}*{tb}!{category}{id}` for every
// table-scoped catalog entity (events, fields, indexes, views, live
// queries).
func TableEntityKey(ns, db, tb, category, id string) []byte {
	b := tbPrefix(ns, db, tb)
	b = append(b, markerRoot)
	b = append(b, category...)
	return appendNulString(b, id)
}

// TableEntityPrefix returns `/*{ns}*{db}*{tb}!{category}`, the base of a
// scan over every entity of one category at table scope (e.g. every
// live query registered on a table).
func TableEntityPrefix(ns, db, tb, category string) []byte {
	b := tbPrefix(ns, db, tb)
	b = append(b, markerRoot)
	return append(b, category...)
}

// --- records ---

// RecordKeyPrefix returns the prefix common to every record of a table,
// `/*{ns}*{db}*{tb}*`; used both to build a specific record key (append
// the encoded RecordIdKey) and as the base of a full-table range scan.
func RecordKeyPrefix(ns, db, tb string) []byte {
	b := tbPrefix(ns, db, tb)
	return append(b, markerNamespace)
}

// --- secondary indexes ---

// IndexKeyPrefix returns `/*{ns}*{db}*{tb}+{ix}*`, the base of a scan over
// one index's entries; IndexEntryKey appends the indexed field value and
// the owning record's key.
func IndexKeyPrefix(ns, db, tb, ix string) []byte {
	b := tbPrefix(ns, db, tb)
	b = append(b, markerIndex)
	b = appendNulString(b, ix)
	return append(b, markerNamespace)
}

// --- graph edges ---

// GraphKeyPrefix returns `/*{ns}*{db}*{tb}~{id}`, the base of a scan over
// every edge touching one record, in any direction.
func GraphKeyPrefix(ns, db, tb string, id RecordIdKeyBytes) []byte {
	b := tbPrefix(ns, db, tb)
	b = append(b, markerGraph)
	return append(b, id...)
}

// GraphDirPrefix narrows GraphKeyPrefix to one traversal direction.
func GraphDirPrefix(ns, db, tb string, id RecordIdKeyBytes, dir byte) []byte {
	b := GraphKeyPrefix(ns, db, tb, id)
	return append(b, dir)
}

// Directions used inside a graph edge key.
const (
	DirOut byte = '>' // ->
	DirIn  byte = '<' // <-
)

// --- change feed ---

// ChangeFeedPrefix returns `/*{ns}*{db}#`, the base of a scan over a
// database's append-only mutation log.
func ChangeFeedPrefix(ns, db string) []byte {
	b := dbPrefix(ns, db)
	return append(b, markerFeed)
}

// --- bucket objects ---

// BucketObjectKey encodes `/*{ns}*{db}!bu{bucket}*{key}`, one stored
// object inside a database-scoped bucket (spec §6.5). It reuses
// CategoryBucket's marker (the bucket's own catalog entity lives at
// DatabaseEntityKey(ns, db, CategoryBucket, name)) but extends one level
// deeper to address an individual object by its key within that bucket.
func BucketObjectKey(ns, db, bucket, key string) []byte {
	b := dbPrefix(ns, db)
	b = append(b, markerRoot)
	b = append(b, CategoryBucket...)
	b = appendNulString(b, bucket)
	b = append(b, markerNamespace)
	return appendNulString(b, key)
}

// BucketObjectPrefix returns the base of a scan over every object stored
// in one bucket, `/*{ns}*{db}!bu{bucket}*`.
func BucketObjectPrefix(ns, db, bucket string) []byte {
	b := dbPrefix(ns, db)
	b = append(b, markerRoot)
	b = append(b, CategoryBucket...)
	b = appendNulString(b, bucket)
	return append(b, markerNamespace)
}

// --- shared helpers ---

func nsPrefix(ns string) []byte {
	b := []byte{'/', markerNamespace}
	return appendNulString(b, ns)
}

func dbPrefix(ns, db string) []byte {
	b := nsPrefix(ns)
	b = append(b, markerNamespace)
	return appendNulString(b, db)
}

func tbPrefix(ns, db, tb string) []byte {
	b := dbPrefix(ns, db)
	b = append(b, markerNamespace)
	return appendNulString(b, tb)
}

func appendNulString(b []byte, s string) []byte {
	b = append(b, s...)
	return append(b, 0x00)
}

// readNulString reads a NUL-terminated string starting at b[off], returning
// the decoded string and the offset just past its terminator.
func readNulString(b []byte, off int) (string, int, error) {
	for i := off; i < len(b); i++ {
		if b[i] == 0x00 {
			return string(b[off:i]), i + 1, nil
		}
	}
	return "", 0, xerrors.New(xerrors.KindInternal, "keys: unterminated string in key")
}

func appendUint64(b []byte, v uint64) []byte {
	return append(b,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func readUint64(b []byte, off int) (uint64, int, error) {
	if off+8 > len(b) {
		return 0, 0, xerrors.New(xerrors.KindInternal, "keys: truncated uint64 in key")
	}
	v := uint64(b[off])<<56 | uint64(b[off+1])<<48 | uint64(b[off+2])<<40 | uint64(b[off+3])<<32 |
		uint64(b[off+4])<<24 | uint64(b[off+5])<<16 | uint64(b[off+6])<<8 | uint64(b[off+7])
	return v, off + 8, nil
}

// RangeOf returns the (begin, end) pair for a bytewise scan over every key
// sharing prefix, per spec §4.2: begin is the prefix itself (inclusive),
// end is the prefix with a trailing 0xFF (exclusive upper bound, since no
// valid encoded key can contain a 0xFF continuation byte at that position
// immediately after a complete category prefix).
func RangeOf(prefix []byte) (begin, end []byte) {
	begin = append([]byte{}, prefix...)
	end = append(append([]byte{}, prefix...), 0xFF)
	return begin, end
}

func errKeyTooShort(what string) error {
	return xerrors.New(xerrors.KindInternal, fmt.Sprintf("keys: %s key too short", what))
}
