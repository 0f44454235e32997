// Package hnsw implements the layered-proximity-graph vector index of
// spec §4.6: approximate k-nearest-neighbor search over a node's
// feature vector, built incrementally as records are inserted.
package hnsw

import (
	"context"
	"encoding/binary"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/semaphore"

	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/keys"
	"github.com/nexusdb/nexus/pkg/kv"
	"github.com/nexusdb/nexus/pkg/val"
)

// Params configures one HNSW index (spec §4.6). Ml/M0 of zero mean
// "derive from M" (Ml = 1/ln(M), M0 = 2*M) — resolved in New, not
// baked into a stored catalog entity, matching pkg/catalog.HnswParams'
// own documented deferral of that default.
type Params struct {
	Dimension             uint32
	Distance              Distance
	MinkowskiP            float64
	VectorType            VectorType
	M                     uint32
	M0                    uint32
	EfConstruction        uint32
	Ml                    float64
	ExtendCandidates      bool
	KeepPrunedConnections bool
}

// Index is one HNSW index bound to a table, holding the single
// insertion-path lock and bounded writer semaphore spec §4.6 calls
// for ("a writer acquires a single lock on the index handle for the
// insertion path"; concurrent writer admission is additionally capped
// by writeSem, grounded on the teacher's bounded-worker-pool use of
// golang.org/x/sync/semaphore elsewhere in its concurrency helpers).
type Index struct {
	NS, DB, TB, IX string
	Params

	mu       sync.Mutex
	writeSem *semaphore.Weighted

	inserts  prometheus.Counter
	searches prometheus.Counter
}

// New binds an HNSW index, resolving M0/Ml defaults and setting up its
// metrics and writer admission semaphore. maxConcurrentWriters bounds
// how many goroutines may be mid-Insert at once; 0 means unbounded.
func New(ns, db, tb, ix string, p Params, maxConcurrentWriters int64, reg prometheus.Registerer) (*Index, error) {
	if p.M0 == 0 {
		p.M0 = 2 * p.M
	}
	if p.Ml == 0 && p.M > 1 {
		p.Ml = 1 / math.Log(float64(p.M))
	}
	idx := &Index{NS: ns, DB: db, TB: tb, IX: ix, Params: p}
	if maxConcurrentWriters > 0 {
		idx.writeSem = semaphore.NewWeighted(maxConcurrentWriters)
	}
	idx.inserts = prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "nexus_hnsw_inserts_total",
		Help:        "HNSW nodes inserted.",
		ConstLabels: prometheus.Labels{"index": ix},
	})
	idx.searches = prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "nexus_hnsw_searches_total",
		Help:        "HNSW searches performed.",
		ConstLabels: prometheus.Labels{"index": ix},
	})
	if reg != nil {
		if err := reg.Register(idx.inserts); err != nil {
			return nil, err
		}
		if err := reg.Register(idx.searches); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

type entryPoint struct {
	id       val.RecordIdKey
	hasNode  bool
	topLayer uint32
}

func (idx Index) entryPointKey() []byte {
	return keys.EntryPointKey{NS: idx.NS, DB: idx.DB, TB: idx.TB, IX: idx.IX}.Encode()
}

func (idx Index) getEntryPoint(tx kv.Tx) (entryPoint, error) {
	v, ok, err := tx.Get(idx.entryPointKey())
	if err != nil {
		return entryPoint{}, err
	}
	if !ok {
		return entryPoint{}, nil
	}
	layer := binary.BigEndian.Uint32(v[:4])
	id, err := keys.DecodeRecordIdKey(v[4:])
	if err != nil {
		return entryPoint{}, err
	}
	return entryPoint{id: id, hasNode: true, topLayer: layer}, nil
}

func (idx Index) setEntryPoint(tx kv.Tx, id val.RecordIdKey, layer uint32) error {
	idb, err := keys.EncodeRecordIdKey(id)
	if err != nil {
		return err
	}
	buf := make([]byte, 4, 4+len(idb))
	binary.BigEndian.PutUint32(buf, layer)
	buf = append(buf, idb...)
	return tx.Set(idx.entryPointKey(), buf)
}

func (idx Index) getVector(tx kv.Tx, id val.RecordIdKey) ([]float64, error) {
	k, err := keys.VectorKey{NS: idx.NS, DB: idx.DB, TB: idx.TB, IX: idx.IX, DocID: id}.Encode()
	if err != nil {
		return nil, err
	}
	v, ok, err := tx.Get(k)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, xerrors.New(xerrors.KindIdNotFound, "hnsw: node vector not found")
	}
	return decodeVector(idx.VectorType, idx.Dimension, v)
}

func (idx Index) setVector(tx kv.Tx, id val.RecordIdKey, v []float64) error {
	k, err := keys.VectorKey{NS: idx.NS, DB: idx.DB, TB: idx.TB, IX: idx.IX, DocID: id}.Encode()
	if err != nil {
		return err
	}
	return tx.Set(k, encodeVector(idx.VectorType, v))
}

func (idx Index) getNeighbors(tx kv.Tx, id val.RecordIdKey, layer uint32) ([]val.RecordIdKey, error) {
	k, err := keys.LayerAdjacencyKey{NS: idx.NS, DB: idx.DB, TB: idx.TB, IX: idx.IX, DocID: id, Layer: layer}.Encode()
	if err != nil {
		return nil, err
	}
	v, ok, err := tx.Get(k)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return decodeNeighborList(v)
}

func (idx Index) setNeighbors(tx kv.Tx, id val.RecordIdKey, layer uint32, neighbors []val.RecordIdKey) error {
	k, err := keys.LayerAdjacencyKey{NS: idx.NS, DB: idx.DB, TB: idx.TB, IX: idx.IX, DocID: id, Layer: layer}.Encode()
	if err != nil {
		return err
	}
	enc, err := encodeNeighborList(neighbors)
	if err != nil {
		return err
	}
	return tx.Set(k, enc)
}

func encodeNeighborList(ids []val.RecordIdKey) ([]byte, error) {
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, uint32(len(ids)))
	for _, id := range ids {
		idb, err := keys.EncodeRecordIdKey(id)
		if err != nil {
			return nil, err
		}
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(idb)))
		out = append(out, lenBuf[:]...)
		out = append(out, idb...)
	}
	return out, nil
}

func decodeNeighborList(b []byte) ([]val.RecordIdKey, error) {
	if len(b) < 4 {
		return nil, xerrors.New(xerrors.KindInternal, "hnsw: malformed neighbor list")
	}
	count := binary.BigEndian.Uint32(b[:4])
	off := 4
	out := make([]val.RecordIdKey, 0, count)
	for i := uint32(0); i < count; i++ {
		if off+4 > len(b) {
			return nil, xerrors.New(xerrors.KindInternal, "hnsw: truncated neighbor list")
		}
		n := binary.BigEndian.Uint32(b[off : off+4])
		off += 4
		if off+int(n) > len(b) {
			return nil, xerrors.New(xerrors.KindInternal, "hnsw: truncated neighbor id")
		}
		id, err := keys.DecodeRecordIdKey(b[off : off+int(n)])
		if err != nil {
			return nil, err
		}
		off += int(n)
		out = append(out, id)
	}
	return out, nil
}

// sampleLayer draws L ~ floor(-ln(uniform(0,1)) * ml), spec §4.6's
// Insert layer-sampling rule.
func sampleLayer(ml float64) uint32 {
	if ml <= 0 {
		return 0
	}
	u := rand.Float64()
	if u <= 0 {
		u = math.SmallestNonzeroFloat64
	}
	return uint32(math.Floor(-math.Log(u) * ml))
}

type candidate struct {
	id   val.RecordIdKey
	dist float64
}

// Insert adds id with feature vector v, sampling a random top layer
// and wiring it into the graph per spec §4.6's Insert algorithm.
func (idx *Index) Insert(ctx context.Context, tx kv.Tx, id val.RecordIdKey, v []float64) error {
	if uint32(len(v)) != idx.Dimension {
		return xerrors.New(xerrors.KindInvalidArguments, "hnsw: vector dimension mismatch")
	}
	if idx.writeSem != nil {
		if err := idx.writeSem.Acquire(ctx, 1); err != nil {
			return err
		}
		defer idx.writeSem.Release(1)
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.setVector(tx, id, v); err != nil {
		return err
	}

	ep, err := idx.getEntryPoint(tx)
	if err != nil {
		return err
	}
	level := sampleLayer(idx.Ml)

	if !ep.hasNode {
		if err := idx.setEntryPoint(tx, id, level); err != nil {
			return err
		}
		idx.inserts.Inc()
		return nil
	}

	cur := ep.id
	for layer := ep.topLayer; layer > level; layer-- {
		nearest, err := idx.greedyDescend(tx, v, cur, layer)
		if err != nil {
			return err
		}
		cur = nearest
	}

	for layer := min32(ep.topLayer, level); ; layer-- {
		candidates, err := idx.searchLayer(tx, v, []val.RecordIdKey{cur}, idx.EfConstruction, layer, nil)
		if err != nil {
			return err
		}
		m := idx.M
		if layer == 0 {
			m = idx.M0
		}
		selected := selectNeighbors(candidates, int(m))
		if err := idx.connect(tx, id, v, selected, layer); err != nil {
			return err
		}
		if len(selected) > 0 {
			cur = selected[0].id
		}
		if layer == 0 {
			break
		}
	}

	if level > ep.topLayer {
		if err := idx.setEntryPoint(tx, id, level); err != nil {
			return err
		}
	}
	idx.inserts.Inc()
	return nil
}

func (idx *Index) connect(tx kv.Tx, id val.RecordIdKey, v []float64, selected []candidate, layer uint32) error {
	neighborIDs := make([]val.RecordIdKey, len(selected))
	for i, c := range selected {
		neighborIDs[i] = c.id
	}
	if err := idx.setNeighbors(tx, id, layer, neighborIDs); err != nil {
		return err
	}
	m := idx.M
	if layer == 0 {
		m = idx.M0
	}
	for _, c := range selected {
		existing, err := idx.getNeighbors(tx, c.id, layer)
		if err != nil {
			return err
		}
		existing = append(existing, id)
		if uint32(len(existing)) > m {
			existing = idx.pruneNeighbors(tx, c.id, existing, int(m))
		}
		if err := idx.setNeighbors(tx, c.id, layer, existing); err != nil {
			return err
		}
	}
	return nil
}

// pruneNeighbors re-ranks a node's candidate neighbor list by distance
// to that node's own vector and keeps the closest m — the "pruning
// each endpoint's neighbor list back to M/M0" step of spec §4.6's
// Insert. Errors reading a neighbor's vector fall back to keeping the
// list unpruned rather than failing the whole insert.
func (idx *Index) pruneNeighbors(tx kv.Tx, of val.RecordIdKey, ids []val.RecordIdKey, m int) []val.RecordIdKey {
	ov, err := idx.getVector(tx, of)
	if err != nil {
		return ids
	}
	cs := make([]candidate, 0, len(ids))
	for _, id := range ids {
		v, err := idx.getVector(tx, id)
		if err != nil {
			continue
		}
		cs = append(cs, candidate{id: id, dist: distance(idx.Distance, idx.VectorType, idx.MinkowskiP, ov, v)})
	}
	sort.Slice(cs, func(i, j int) bool { return cs[i].dist < cs[j].dist })
	if len(cs) > m {
		cs = cs[:m]
	}
	out := make([]val.RecordIdKey, len(cs))
	for i, c := range cs {
		out[i] = c.id
	}
	return out
}

func selectNeighbors(cs []candidate, m int) []candidate {
	sort.Slice(cs, func(i, j int) bool { return cs[i].dist < cs[j].dist })
	if len(cs) > m {
		cs = cs[:m]
	}
	return cs
}

// greedyDescend returns the single closest node to target reachable
// from cur by following layer's adjacency, used while descending from
// the entry point's top layer to the insertion/search level (spec
// §4.6: "greedily descend").
func (idx *Index) greedyDescend(tx kv.Tx, target []float64, cur val.RecordIdKey, layer uint32) (val.RecordIdKey, error) {
	curVec, err := idx.getVector(tx, cur)
	if err != nil {
		return cur, err
	}
	best := cur
	bestDist := distance(idx.Distance, idx.VectorType, idx.MinkowskiP, target, curVec)
	improved := true
	for improved {
		improved = false
		neighbors, err := idx.getNeighbors(tx, best, layer)
		if err != nil {
			return best, err
		}
		for _, n := range neighbors {
			nv, err := idx.getVector(tx, n)
			if err != nil {
				continue
			}
			d := distance(idx.Distance, idx.VectorType, idx.MinkowskiP, target, nv)
			if d < bestDist {
				bestDist = d
				best = n
				improved = true
			}
		}
	}
	return best, nil
}

// searchLayer is SEARCH_LAYER: a best-first exploration of layer's
// adjacency starting from entryPoints, collecting up to 4*width
// accepted candidates and returning the closest width of them, ordered
// by distance to target. A
// ConditionChecker, if non-nil, excludes candidates it rejects from
// the returned set (but they are still traversed through, so a
// disallowed node doesn't cut off reachable allowed ones behind it).
func (idx *Index) searchLayer(tx kv.Tx, target []float64, entryPoints []val.RecordIdKey, width uint32, layer uint32, checker ConditionChecker) ([]candidate, error) {
	visited := make(map[string]bool)
	var found []candidate
	queue := make([]candidate, 0, len(entryPoints))
	for _, ep := range entryPoints {
		v, err := idx.getVector(tx, ep)
		if err != nil {
			continue
		}
		d := distance(idx.Distance, idx.VectorType, idx.MinkowskiP, target, v)
		queue = append(queue, candidate{id: ep, dist: d})
		visited[ep.String()] = true
	}
	sort.Slice(queue, func(i, j int) bool { return queue[i].dist < queue[j].dist })

	for len(queue) > 0 && uint32(len(found)) < width*4 {
		c := queue[0]
		queue = queue[1:]

		ok := true
		if checker != nil {
			var err error
			ok, err = checker.Check(c.id)
			if err != nil {
				return nil, err
			}
		}
		if ok {
			found = append(found, c)
		}

		neighbors, err := idx.getNeighbors(tx, c.id, layer)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbors {
			key := n.String()
			if visited[key] {
				continue
			}
			visited[key] = true
			nv, err := idx.getVector(tx, n)
			if err != nil {
				continue
			}
			d := distance(idx.Distance, idx.VectorType, idx.MinkowskiP, target, nv)
			queue = append(queue, candidate{id: n, dist: d})
		}
		sort.Slice(queue, func(i, j int) bool { return queue[i].dist < queue[j].dist })
		if uint32(len(queue)) > width*4 {
			queue = queue[:width*4]
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].dist < found[j].dist })
	if uint32(len(found)) > width {
		found = found[:width]
	}
	return found, nil
}

// Result is one Search hit.
type Result struct {
	ID       val.RecordIdKey
	Distance float64
}

// Search descends from the entry point to layer 1, then runs
// SEARCH_LAYER at layer 0 with width max(ef, k), returning the top-k
// by distance (spec §4.6). checker may be nil (equivalent to
// TrivialChecker).
func (idx *Index) Search(tx kv.Tx, q []float64, k int, ef uint32, checker ConditionChecker) ([]Result, error) {
	idx.searches.Inc()
	ep, err := idx.getEntryPoint(tx)
	if err != nil {
		return nil, err
	}
	if !ep.hasNode {
		return nil, nil
	}
	cur := ep.id
	for layer := ep.topLayer; layer >= 1; layer-- {
		cur, err = idx.greedyDescend(tx, q, cur, layer)
		if err != nil {
			return nil, err
		}
	}
	width := ef
	if uint32(k) > width {
		width = uint32(k)
	}
	candidates, err := idx.searchLayer(tx, q, []val.RecordIdKey{cur}, width, 0, checker)
	if err != nil {
		return nil, err
	}
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	out := make([]Result, len(candidates))
	for i, c := range candidates {
		out[i] = Result{ID: c.id, Distance: c.dist}
	}
	return out, nil
}

// Delete removes id's edges from every layer's adjacency it
// participates in, then deletes its vector (spec §4.6: "remove all of
// the node's edges from the graph's undirected adjacency, then delete
// the node").
func (idx *Index) Delete(tx kv.Tx, id val.RecordIdKey) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	ep, err := idx.getEntryPoint(tx)
	if err != nil {
		return err
	}
	if !ep.hasNode {
		return nil
	}
	for layer := uint32(0); layer <= ep.topLayer; layer++ {
		neighbors, err := idx.getNeighbors(tx, id, layer)
		if err != nil {
			return err
		}
		for _, n := range neighbors {
			nn, err := idx.getNeighbors(tx, n, layer)
			if err != nil {
				return err
			}
			nn = removeID(nn, id)
			if err := idx.setNeighbors(tx, n, layer, nn); err != nil {
				return err
			}
		}
		k, err := keys.LayerAdjacencyKey{NS: idx.NS, DB: idx.DB, TB: idx.TB, IX: idx.IX, DocID: id, Layer: layer}.Encode()
		if err != nil {
			return err
		}
		if err := tx.Delete(k); err != nil {
			return err
		}
	}
	vk, err := keys.VectorKey{NS: idx.NS, DB: idx.DB, TB: idx.TB, IX: idx.IX, DocID: id}.Encode()
	if err != nil {
		return err
	}
	return tx.Delete(vk)
}

func removeID(ids []val.RecordIdKey, target val.RecordIdKey) []val.RecordIdKey {
	out := ids[:0]
	for _, id := range ids {
		if id.String() != target.String() {
			out = append(out, id)
		}
	}
	return out
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
