// Package fulltext implements the inverted full-text index of spec
// §4.7: term postings keyed by (term, doc_id, writer, add/retract) so
// concurrent writers never block each other, combined at query time
// into per-term doc sets and scored with BM25.
package fulltext

import (
	"sort"

	roaring "github.com/RoaringBitmap/roaring/v2"

	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/keys"
	"github.com/nexusdb/nexus/pkg/kv"
	"github.com/nexusdb/nexus/pkg/val"
)

// LogicalOp combines a multi-term query's per-term doc sets (spec
// §4.7: "combine per-term doc sets by AND/OR").
type LogicalOp uint8

const (
	OpAnd LogicalOp = iota
	OpOr
)

// Index binds one full-text index to its owning table.
type Index struct {
	NS, DB, TB, IX string
	Analyzer       Analyzer
	K1, B          float64
}

// New binds a full-text Index. k1/b are BM25's tuning constants (spec
// §4.7's `BM25{k1,b}`); VS scoring is out of scope for this core (see
// DESIGN.md) so Index always scores with BM25.
func New(ns, db, tb, ix string, analyzer Analyzer, k1, b float64) Index {
	return Index{NS: ns, DB: db, TB: tb, IX: ix, Analyzer: analyzer, K1: k1, B: b}
}

type posting struct {
	nid, uid uint64
	add      bool
	freq     uint64
}

// IndexDoc tokenizes text and appends one addition posting per distinct
// term, plus the document's token-length and the index's collection
// stats (spec §4.7 "Index doc"). nid/uid identify the writing
// transaction, giving this write a total order against any other
// writer's postings for the same (term, doc).
func (idx Index) IndexDoc(tx kv.Tx, docID val.RecordIdKey, text string, nid, uid uint64) error {
	tokens := idx.Analyzer.Tokenize(text)
	freqs := TermFrequencies(tokens)
	for term, freq := range freqs {
		k, err := keys.TermDocKey{NS: idx.NS, DB: idx.DB, TB: idx.TB, IX: idx.IX, Term: term, DocID: docID, Nid: nid, Uid: uid, Add: true}.Encode()
		if err != nil {
			return err
		}
		if err := tx.Set(k, encodeU64(freq)); err != nil {
			return err
		}
	}
	dk, err := keys.DocLenKey{NS: idx.NS, DB: idx.DB, TB: idx.TB, IX: idx.IX, DocID: docID}.Encode()
	if err != nil {
		return err
	}
	if err := tx.Set(dk, encodeU64(uint64(len(tokens)))); err != nil {
		return err
	}
	return idx.bumpStats(tx, 1, int64(len(tokens)))
}

// RemoveDoc appends a retraction posting for every distinct term text
// was previously indexed under, and removes the document's length and
// collection-stats contribution. Callers re-indexing a changed document
// call RemoveDoc with the old text before IndexDoc with the new text.
func (idx Index) RemoveDoc(tx kv.Tx, docID val.RecordIdKey, text string, nid, uid uint64) error {
	tokens := idx.Analyzer.Tokenize(text)
	freqs := TermFrequencies(tokens)
	for term := range freqs {
		k, err := keys.TermDocKey{NS: idx.NS, DB: idx.DB, TB: idx.TB, IX: idx.IX, Term: term, DocID: docID, Nid: nid, Uid: uid, Add: false}.Encode()
		if err != nil {
			return err
		}
		if err := tx.Set(k, encodeU64(0)); err != nil {
			return err
		}
	}
	dlk, err := keys.DocLenKey{NS: idx.NS, DB: idx.DB, TB: idx.TB, IX: idx.IX, DocID: docID}.Encode()
	if err != nil {
		return err
	}
	if err := tx.Delete(dlk); err != nil {
		return err
	}
	return idx.bumpStats(tx, -1, -int64(len(tokens)))
}

func (idx Index) bumpStats(tx kv.Tx, docDelta int64, tokenDelta int64) error {
	count, total, err := idx.Stats(tx)
	if err != nil {
		return err
	}
	count += docDelta
	total += tokenDelta
	if count < 0 {
		count = 0
	}
	if total < 0 {
		total = 0
	}
	b := make([]byte, 16)
	copy(b[0:8], encodeU64(uint64(count)))
	copy(b[8:16], encodeU64(uint64(total)))
	return tx.Set(keys.StatsKey{NS: idx.NS, DB: idx.DB, TB: idx.TB, IX: idx.IX}.Encode(), b)
}

// Stats returns the index's current (docCount, totalTokens).
func (idx Index) Stats(tx kv.Tx) (docCount int64, totalTokens int64, err error) {
	v, ok, err := tx.Get(keys.StatsKey{NS: idx.NS, DB: idx.DB, TB: idx.TB, IX: idx.IX}.Encode())
	if err != nil {
		return 0, 0, err
	}
	if !ok || len(v) < 16 {
		return 0, 0, nil
	}
	return int64(decodeU64(v[0:8])), int64(decodeU64(v[8:16])), nil
}

func (idx Index) docLen(tx kv.Tx, docID val.RecordIdKey) (uint64, error) {
	dk, err := keys.DocLenKey{NS: idx.NS, DB: idx.DB, TB: idx.TB, IX: idx.IX, DocID: docID}.Encode()
	if err != nil {
		return 0, err
	}
	v, ok, err := tx.Get(dk)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return decodeU64(v), nil
}

// livePostings scans every posting written for term and folds them
// down to the current set: the winning entry per doc id is the one
// with the greatest (nid, uid), and it is live only if that entry is
// an addition. This is the reconciliation half of spec §9's
// log-structured posting scheme; Compact makes the fold durable.
func (idx Index) livePostings(tx kv.Tx, term string) (map[string]posting, []val.RecordIdKey, error) {
	prefix := keys.TermPrefix(idx.NS, idx.DB, idx.TB, idx.IX, term)
	begin, end := keys.RangeOf(prefix)
	kvs, err := tx.Scan(kv.Range{Begin: begin, End: end}, 0, nil)
	if err != nil {
		return nil, nil, err
	}
	winners := make(map[string]posting)
	docByKey := make(map[string]val.RecordIdKey)
	for _, p := range kvs {
		tk, err := keys.DecodeTermDocKey(p.Key)
		if err != nil {
			return nil, nil, err
		}
		docKey := tk.DocID.String()
		docByKey[docKey] = tk.DocID
		cur, have := winners[docKey]
		cand := posting{nid: tk.Nid, uid: tk.Uid, add: tk.Add, freq: decodeU64(p.Value)}
		if !have || cand.nid > cur.nid || (cand.nid == cur.nid && cand.uid > cur.uid) {
			winners[docKey] = cand
		}
	}
	live := make(map[string]posting, len(winners))
	ids := make([]val.RecordIdKey, 0, len(winners))
	for k, p := range winners {
		if p.add {
			live[k] = p
			ids = append(ids, docByKey[k])
		}
	}
	return live, ids, nil
}

// Compact deletes every superseded or retracted posting for term,
// leaving at most one live entry per document — spec §9's "background
// compaction folds these [tombstones]".
func (idx Index) Compact(tx kv.Tx, term string) error {
	prefix := keys.TermPrefix(idx.NS, idx.DB, idx.TB, idx.IX, term)
	begin, end := keys.RangeOf(prefix)
	kvs, err := tx.Scan(kv.Range{Begin: begin, End: end}, 0, nil)
	if err != nil {
		return err
	}
	type entry struct {
		key []byte
		tk  keys.TermDocKey
	}
	byDoc := make(map[string][]entry)
	for _, p := range kvs {
		tk, err := keys.DecodeTermDocKey(p.Key)
		if err != nil {
			return err
		}
		docKey := tk.DocID.String()
		byDoc[docKey] = append(byDoc[docKey], entry{key: p.Key, tk: tk})
	}
	for _, entries := range byDoc {
		winnerIdx := 0
		for i := 1; i < len(entries); i++ {
			w, c := entries[winnerIdx].tk, entries[i].tk
			if c.Nid > w.Nid || (c.Nid == w.Nid && c.Uid > w.Uid) {
				winnerIdx = i
			}
		}
		for i, e := range entries {
			if i == winnerIdx && e.tk.Add {
				continue
			}
			if err := tx.Delete(e.key); err != nil {
				return err
			}
		}
	}
	return nil
}

// ScoredDoc is one Search hit.
type ScoredDoc struct {
	DocID val.RecordIdKey
	Score float64
}

// Search tokenizes query, combines each term's live posting set by op,
// and scores the surviving documents with BM25 (spec §4.7 "Search").
func (idx Index) Search(tx kv.Tx, query string, op LogicalOp) ([]ScoredDoc, error) {
	terms := idx.Analyzer.Tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}
	docCount, totalTokens, err := idx.Stats(tx)
	if err != nil {
		return nil, err
	}
	if docCount == 0 {
		return nil, nil
	}
	avgDocLen := float64(totalTokens) / float64(docCount)

	ordinal := make(map[string]uint32)
	ordinalDoc := make([]val.RecordIdKey, 0)
	termLive := make([]map[string]posting, 0, len(terms))
	termBitmaps := make([]*roaring.Bitmap, 0, len(terms))

	for _, term := range terms {
		live, ids, err := idx.livePostings(tx, term)
		if err != nil {
			return nil, err
		}
		bm := roaring.NewBitmap()
		for _, id := range ids {
			dk := id.String()
			ord, ok := ordinal[dk]
			if !ok {
				ord = uint32(len(ordinalDoc))
				ordinal[dk] = ord
				ordinalDoc = append(ordinalDoc, id)
			}
			bm.Add(ord)
		}
		termLive = append(termLive, live)
		termBitmaps = append(termBitmaps, bm)
	}

	var combined *roaring.Bitmap
	switch op {
	case OpAnd:
		combined = termBitmaps[0].Clone()
		for _, bm := range termBitmaps[1:] {
			combined.And(bm)
		}
	case OpOr:
		combined = roaring.FastOr(termBitmaps...)
	default:
		return nil, xerrors.New(xerrors.KindInvalidArguments, "fulltext: unknown logical op")
	}

	out := make([]ScoredDoc, 0, combined.GetCardinality())
	it := combined.Iterator()
	for it.HasNext() {
		ord := it.Next()
		docID := ordinalDoc[ord]
		docKey := docID.String()
		docLen, err := idx.docLen(tx, docID)
		if err != nil {
			return nil, err
		}
		var score float64
		for i, term := range terms {
			p, ok := termLive[i][docKey]
			if !ok {
				continue
			}
			df := uint64(termBitmaps[i].GetCardinality())
			score += bm25Score(p.freq, df, uint64(docCount), float64(docLen), avgDocLen, idx.K1, idx.B)
			_ = term
		}
		out = append(out, ScoredDoc{DocID: docID, Score: score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func encodeU64(v uint64) []byte {
	return []byte{
		byte(v >> 56), byte(v >> 48), byte(v >> 40), byte(v >> 32),
		byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v),
	}
}

func decodeU64(b []byte) uint64 {
	if len(b) < 8 {
		return 0
	}
	return uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
		uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7])
}
