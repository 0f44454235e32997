package keys

import (
	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/val"
)

// Versionstamp is the 10-byte commit-time stamp (8-byte monotonic counter
// + 2-byte sub-stamp) the KV assigns at commit, used as the change-feed
// sort key and as the live-query ordering basis (spec §4.2).
type Versionstamp struct {
	TxnCounter uint64
	SubStamp   uint16
}

func (v Versionstamp) Bytes() []byte {
	b := appendUint64(nil, v.TxnCounter)
	return append(b, byte(v.SubStamp>>8), byte(v.SubStamp))
}

func ParseVersionstamp(b []byte) (Versionstamp, int, error) {
	if len(b) < 10 {
		return Versionstamp{}, 0, errKeyTooShort("versionstamp")
	}
	counter, _, err := readUint64(b, 0)
	if err != nil {
		return Versionstamp{}, 0, err
	}
	sub := uint16(b[8])<<8 | uint16(b[9])
	return Versionstamp{TxnCounter: counter, SubStamp: sub}, 10, nil
}

// Compare gives Versionstamp the strictly-increasing order the change
// feed relies on (testable property: change-feed monotonicity).
func (v Versionstamp) Compare(o Versionstamp) int {
	switch {
	case v.TxnCounter < o.TxnCounter:
		return -1
	case v.TxnCounter > o.TxnCounter:
		return 1
	case v.SubStamp < o.SubStamp:
		return -1
	case v.SubStamp > o.SubStamp:
		return 1
	default:
		return 0
	}
}

// RecordKey identifies one record's primary storage location: spec §4.2's
// `/*{ns}*{db}*{tb}*{id}`.
type RecordKey struct {
	NS, DB, TB string
	ID         val.RecordIdKey
}

func (k RecordKey) Encode() ([]byte, error) {
	idb, err := EncodeRecordIdKey(k.ID)
	if err != nil {
		return nil, err
	}
	return append(RecordKeyPrefix(k.NS, k.DB, k.TB), idb...), nil
}

// DecodeRecordKey is the inverse of RecordKey.Encode, used by range-scan
// consumers that need to recover which record a raw key names.
func DecodeRecordKey(b []byte) (RecordKey, error) {
	ns, db, tb, rest, err := decodeTablePrefix(b, markerNamespace)
	if err != nil {
		return RecordKey{}, err
	}
	id, err := DecodeRecordIdKey(rest)
	if err != nil {
		return RecordKey{}, err
	}
	return RecordKey{NS: ns, DB: db, TB: tb, ID: id}, nil
}

// IndexEntryKey is one secondary-index entry: spec §4.2's
// `/*{ns}*{db}*{tb}+{ix}*{fd}{id}` — fd is the indexed field's Value (or,
// for a composite index, an Array of them), id is the owning record's key.
type IndexEntryKey struct {
	NS, DB, TB, IX string
	FieldValue     val.Value
	ID             val.RecordIdKey
}

func (k IndexEntryKey) Encode() ([]byte, error) {
	fdb, err := EncodeOrderedValue(k.FieldValue)
	if err != nil {
		return nil, err
	}
	idb, err := EncodeRecordIdKey(k.ID)
	if err != nil {
		return nil, err
	}
	out := IndexKeyPrefix(k.NS, k.DB, k.TB, k.IX)
	out = append(out, fdb...)
	return append(out, idb...), nil
}

// GraphEdgeKey is one directional graph adjacency entry: spec §4.2's
// `/*{ns}*{db}*{tb}~{id}{dir}{foreign}`.
type GraphEdgeKey struct {
	NS, DB, TB string
	ID         val.RecordIdKey
	Dir        byte // DirOut or DirIn
	Foreign    val.RecordID
}

func (k GraphEdgeKey) Encode() ([]byte, error) {
	idb, err := EncodeRecordIdKey(k.ID)
	if err != nil {
		return nil, err
	}
	fb, err := EncodeRecordIdKey(k.Foreign.Key)
	if err != nil {
		return nil, err
	}
	out := tbPrefix(k.NS, k.DB, k.TB)
	out = append(out, markerGraph)
	out = append(out, idb...)
	out = append(out, k.Dir)
	out = appendNulString(out, k.Foreign.Table)
	return append(out, fb...), nil
}

// ChangeFeedKey is one append-only mutation-log entry: spec §4.2's
// `/*{ns}*{db}#{versionstamp}{record_id}`.
type ChangeFeedKey struct {
	NS, DB string
	VS     Versionstamp
	Record val.RecordID
}

func (k ChangeFeedKey) Encode() ([]byte, error) {
	rb, err := EncodeRecordIdKey(k.Record.Key)
	if err != nil {
		return nil, err
	}
	out := ChangeFeedPrefix(k.NS, k.DB)
	out = append(out, k.VS.Bytes()...)
	out = appendNulString(out, k.Record.Table)
	return append(out, rb...), nil
}

func DecodeChangeFeedKey(b []byte) (ChangeFeedKey, error) {
	if len(b) < 2 || b[0] != '/' || b[1] != markerNamespace {
		return ChangeFeedKey{}, xerrors.New(xerrors.KindInternal, "keys: malformed change feed key")
	}
	off := 2
	ns, off, err := readNulString(b, off)
	if err != nil {
		return ChangeFeedKey{}, err
	}
	if off >= len(b) || b[off] != markerNamespace {
		return ChangeFeedKey{}, xerrors.New(xerrors.KindInternal, "keys: malformed change feed key (db marker)")
	}
	off++
	db, off, err := readNulString(b, off)
	if err != nil {
		return ChangeFeedKey{}, err
	}
	if off >= len(b) || b[off] != markerFeed {
		return ChangeFeedKey{}, xerrors.New(xerrors.KindInternal, "keys: malformed change feed key (feed marker)")
	}
	off++
	vs, n, err := ParseVersionstamp(b[off:])
	if err != nil {
		return ChangeFeedKey{}, err
	}
	off += n
	tb, off, err := readNulString(b, off)
	if err != nil {
		return ChangeFeedKey{}, err
	}
	rid, err := DecodeRecordIdKey(b[off:])
	if err != nil {
		return ChangeFeedKey{}, err
	}
	return ChangeFeedKey{NS: ns, DB: db, VS: vs, Record: val.RecordID{Table: tb, Key: rid}}, nil
}

// DecodeIndexEntryKey is the inverse of IndexEntryKey.Encode.
func DecodeIndexEntryKey(b []byte) (IndexEntryKey, error) {
	if len(b) < 2 || b[0] != '/' || b[1] != markerNamespace {
		return IndexEntryKey{}, xerrors.New(xerrors.KindInternal, "keys: malformed index key")
	}
	off := 2
	ns, off, err := readNulString(b, off)
	if err != nil {
		return IndexEntryKey{}, err
	}
	off, err = expectMarker(b, off, markerNamespace)
	if err != nil {
		return IndexEntryKey{}, err
	}
	db, off, err := readNulString(b, off)
	if err != nil {
		return IndexEntryKey{}, err
	}
	off, err = expectMarker(b, off, markerNamespace)
	if err != nil {
		return IndexEntryKey{}, err
	}
	tb, off, err := readNulString(b, off)
	if err != nil {
		return IndexEntryKey{}, err
	}
	off, err = expectMarker(b, off, markerIndex)
	if err != nil {
		return IndexEntryKey{}, err
	}
	ix, off, err := readNulString(b, off)
	if err != nil {
		return IndexEntryKey{}, err
	}
	off, err = expectMarker(b, off, markerNamespace)
	if err != nil {
		return IndexEntryKey{}, err
	}
	fv, n, err := decodeOrderedValue(b, off)
	if err != nil {
		return IndexEntryKey{}, err
	}
	id, err := DecodeRecordIdKey(b[n:])
	if err != nil {
		return IndexEntryKey{}, err
	}
	return IndexEntryKey{NS: ns, DB: db, TB: tb, IX: ix, FieldValue: fv, ID: id}, nil
}

// DecodeGraphEdgeKey is the inverse of GraphEdgeKey.Encode.
func DecodeGraphEdgeKey(b []byte) (GraphEdgeKey, error) {
	ns, db, tb, rest, err := decodeTablePrefixNoTrailingMarker(b, markerNamespace, markerGraph)
	if err != nil {
		return GraphEdgeKey{}, err
	}
	id, n, err := decodeOrderedValue(rest, 0)
	if err != nil {
		return GraphEdgeKey{}, err
	}
	idKey, err := valueToRecordIdKey(id)
	if err != nil {
		return GraphEdgeKey{}, err
	}
	if n >= len(rest) {
		return GraphEdgeKey{}, errKeyTooShort("graph edge direction")
	}
	dir := rest[n]
	n++
	foreignTable, n, err := readNulString(rest, n)
	if err != nil {
		return GraphEdgeKey{}, err
	}
	foreignKey, err := DecodeRecordIdKey(rest[n:])
	if err != nil {
		return GraphEdgeKey{}, err
	}
	return GraphEdgeKey{
		NS: ns, DB: db, TB: tb, ID: idKey, Dir: dir,
		Foreign: val.RecordID{Table: foreignTable, Key: foreignKey},
	}, nil
}

func valueToRecordIdKey(v val.Value) (val.RecordIdKey, error) {
	enc, err := EncodeOrderedValue(v)
	if err != nil {
		return val.RecordIdKey{}, err
	}
	return DecodeRecordIdKey(enc)
}

func expectMarker(b []byte, off int, marker byte) (int, error) {
	if off >= len(b) || b[off] != marker {
		return 0, xerrors.New(xerrors.KindInternal, "keys: expected marker byte not found")
	}
	return off + 1, nil
}

// decodeTablePrefixNoTrailingMarker parses `/*{ns}*{db}*{tb}` followed by
// trailingMarker (graph keys use `~` instead of a repeated `*` before the
// variable-length remainder).
func decodeTablePrefixNoTrailingMarker(b []byte, marker, trailingMarker byte) (ns, db, tb string, rest []byte, err error) {
	if len(b) < 2 || b[0] != '/' || b[1] != marker {
		return "", "", "", nil, xerrors.New(xerrors.KindInternal, "keys: malformed table-scoped key")
	}
	off := 2
	ns, off, err = readNulString(b, off)
	if err != nil {
		return "", "", "", nil, err
	}
	off, err = expectMarker(b, off, marker)
	if err != nil {
		return "", "", "", nil, err
	}
	db, off, err = readNulString(b, off)
	if err != nil {
		return "", "", "", nil, err
	}
	off, err = expectMarker(b, off, marker)
	if err != nil {
		return "", "", "", nil, err
	}
	tb, off, err = readNulString(b, off)
	if err != nil {
		return "", "", "", nil, err
	}
	off, err = expectMarker(b, off, trailingMarker)
	if err != nil {
		return "", "", "", nil, err
	}
	return ns, db, tb, b[off:], nil
}

// decodeTablePrefix parses the common `/*{ns}*{db}*{tb}` prefix shared by
// record, index, and graph keys and returns the remainder after it.
func decodeTablePrefix(b []byte, marker byte) (ns, db, tb string, rest []byte, err error) {
	if len(b) < 2 || b[0] != '/' || b[1] != marker {
		return "", "", "", nil, xerrors.New(xerrors.KindInternal, "keys: malformed table-scoped key")
	}
	off := 2
	ns, off, err = readNulString(b, off)
	if err != nil {
		return "", "", "", nil, err
	}
	if off >= len(b) || b[off] != marker {
		return "", "", "", nil, xerrors.New(xerrors.KindInternal, "keys: malformed table-scoped key (db marker)")
	}
	off++
	db, off, err = readNulString(b, off)
	if err != nil {
		return "", "", "", nil, err
	}
	if off >= len(b) || b[off] != marker {
		return "", "", "", nil, xerrors.New(xerrors.KindInternal, "keys: malformed table-scoped key (tb marker)")
	}
	off++
	tb, off, err = readNulString(b, off)
	if err != nil {
		return "", "", "", nil, err
	}
	if off >= len(b) || b[off] != marker {
		return "", "", "", nil, xerrors.New(xerrors.KindInternal, "keys: malformed table-scoped key (id marker)")
	}
	off++
	return ns, db, tb, b[off:], nil
}

