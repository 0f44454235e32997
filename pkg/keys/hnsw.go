package keys

import "github.com/nexusdb/nexus/pkg/val"

// HNSW storage (spec §4.6): "each node stores its feature vector at a
// per-node key; each layer stores each node's adjacency as a
// length-prefixed list of neighbor IDs at a per-node-per-layer key."
// All three categories branch off the same `/*{ns}*{db}*{tb}+{ix}`
// prefix fulltext.go's ixPrefix/TermPrefix already use for full-text
// postings — an HNSW index and a full-text index are both just
// different `!{category}` suffixes under one index's key space.

// VectorKey is one node's stored feature vector, spec §4.6's
// "per-node key".
type VectorKey struct {
	NS, DB, TB, IX string
	DocID          val.RecordIdKey
}

func (k VectorKey) Encode() ([]byte, error) {
	idb, err := EncodeRecordIdKey(k.DocID)
	if err != nil {
		return nil, err
	}
	b := ixPrefix(k.NS, k.DB, k.TB, k.IX)
	b = append(b, markerRoot, 'h', 'v')
	return append(b, idb...), nil
}

// LayerAdjacencyKey is one node's neighbor list at one layer, spec
// §4.6's "per-node-per-layer key".
type LayerAdjacencyKey struct {
	NS, DB, TB, IX string
	DocID          val.RecordIdKey
	Layer          uint32
}

func (k LayerAdjacencyKey) Encode() ([]byte, error) {
	idb, err := EncodeRecordIdKey(k.DocID)
	if err != nil {
		return nil, err
	}
	b := ixPrefix(k.NS, k.DB, k.TB, k.IX)
	b = append(b, markerRoot, 'h', 'n')
	b = append(b, idb...)
	return appendUint64(b, uint64(k.Layer)), nil
}

// EntryPointKey is the index-wide well-known key holding the current
// graph entry point's doc id and top layer, updated whenever a node is
// inserted above the current top layer.
type EntryPointKey struct {
	NS, DB, TB, IX string
}

func (k EntryPointKey) Encode() []byte {
	b := ixPrefix(k.NS, k.DB, k.TB, k.IX)
	return append(b, markerRoot, 'h', 'p')
}
