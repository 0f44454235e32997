package keys

import (
	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/val"
)

// ixPrefix is the `/*{ns}*{db}*{tb}+{ix}` root every full-text key
// category (term postings, per-doc length, collection stats) branches
// from with its own `!{category}` marker, the same way TableEntityKey
// branches catalog entities off a table prefix.
func ixPrefix(ns, db, tb, ix string) []byte {
	b := tbPrefix(ns, db, tb)
	b = append(b, markerIndex)
	return appendNulString(b, ix)
}

// TermDocKey is one full-text posting: spec §4.7's
// `/*{ns}*{db}*{tb}+{ix}!tt{term}{doc_id}{nid}{uid}{add}`. Nid/Uid are
// the writing transaction's node/update identifiers and Add
// distinguishes a term-doc addition from its retraction, so concurrent
// writers append rather than contend on one posting list (§9's
// "log-structured postings"); Compact folds a term's postings down to
// its current set.
type TermDocKey struct {
	NS, DB, TB, IX string
	Term           string
	DocID          val.RecordIdKey
	Nid, Uid       uint64
	Add            bool
}

func (k TermDocKey) Encode() ([]byte, error) {
	idb, err := EncodeRecordIdKey(k.DocID)
	if err != nil {
		return nil, err
	}
	b := append(TermPrefix(k.NS, k.DB, k.TB, k.IX, k.Term), idb...)
	b = appendUint64(b, k.Nid)
	b = appendUint64(b, k.Uid)
	if k.Add {
		return append(b, 1), nil
	}
	return append(b, 0), nil
}

// TermPrefix is the scan base for every posting of one term, across
// every doc id, writer, and add/retract state.
func TermPrefix(ns, db, tb, ix, term string) []byte {
	b := ixPrefix(ns, db, tb, ix)
	b = append(b, markerRoot, 't', 't')
	return appendNulString(b, term)
}

// DecodeTermDocKey is the inverse of TermDocKey.Encode.
func DecodeTermDocKey(b []byte) (TermDocKey, error) {
	ns, db, tb, off, err := decodeIxPrefix(b)
	if err != nil {
		return TermDocKey{}, err
	}
	ix, off, err := readNulString(b, off)
	if err != nil {
		return TermDocKey{}, err
	}
	off, err = expectMarker(b, off, markerRoot)
	if err != nil {
		return TermDocKey{}, err
	}
	if off+2 > len(b) || b[off] != 't' || b[off+1] != 't' {
		return TermDocKey{}, xerrors.New(xerrors.KindInternal, "keys: malformed term-doc key category")
	}
	off += 2
	term, off, err := readNulString(b, off)
	if err != nil {
		return TermDocKey{}, err
	}
	docVal, n, err := decodeOrderedValue(b, off)
	if err != nil {
		return TermDocKey{}, err
	}
	docID, err := valueToRecordIdKey(docVal)
	if err != nil {
		return TermDocKey{}, err
	}
	off = n
	nid, off, err := readUint64(b, off)
	if err != nil {
		return TermDocKey{}, err
	}
	uid, off, err := readUint64(b, off)
	if err != nil {
		return TermDocKey{}, err
	}
	if off >= len(b) {
		return TermDocKey{}, errKeyTooShort("term-doc add flag")
	}
	return TermDocKey{
		NS: ns, DB: db, TB: tb, IX: ix, Term: term, DocID: docID,
		Nid: nid, Uid: uid, Add: b[off] != 0,
	}, nil
}

// DocLenKey is one document's indexed-field token count, spec §4.7's
// `/…!bl{doc_id}`, used as BM25's per-document length term.
type DocLenKey struct {
	NS, DB, TB, IX string
	DocID          val.RecordIdKey
}

func (k DocLenKey) Encode() ([]byte, error) {
	idb, err := EncodeRecordIdKey(k.DocID)
	if err != nil {
		return nil, err
	}
	b := ixPrefix(k.NS, k.DB, k.TB, k.IX)
	b = append(b, markerRoot, 'b', 'l')
	return append(b, idb...), nil
}

// StatsKey is an index's collection-wide statistics, spec §4.7's
// `/…!bs` — document count and total token count, BM25's other inputs
// alongside each document's own length.
type StatsKey struct {
	NS, DB, TB, IX string
}

func (k StatsKey) Encode() []byte {
	b := ixPrefix(k.NS, k.DB, k.TB, k.IX)
	return append(b, markerRoot, 'b', 's')
}

func decodeIxPrefix(b []byte) (ns, db, tb string, off int, err error) {
	ns, db, tb, rest, err := decodeTablePrefixNoTrailingMarker(b, markerNamespace, markerIndex)
	if err != nil {
		return "", "", "", 0, err
	}
	return ns, db, tb, len(b) - len(rest), nil
}
