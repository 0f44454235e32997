package exec

import (
	"sort"

	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/catalog"
	"github.com/nexusdb/nexus/pkg/expr"
	"github.com/nexusdb/nexus/pkg/index/btreeidx"
	"github.com/nexusdb/nexus/pkg/index/fulltext"
	"github.com/nexusdb/nexus/pkg/index/hnsw"
	"github.com/nexusdb/nexus/pkg/keys"
	"github.com/nexusdb/nexus/pkg/kv"
	"github.com/nexusdb/nexus/pkg/plan"
	"github.com/nexusdb/nexus/pkg/val"
)

// Row is one record flowing through an operator tree: its storage
// identity (when it has one — a freshly computed value, e.g. from
// OpComputeFields over no source, does not) plus its current value.
type Row struct {
	ID    val.RecordID
	HasID bool
	Value val.Value
}

// RowIter is a pull-based row stream — the Go-idiomatic stand-in for
// spec §4.5's lazy Stream<ValueBatch>. Filter, Project, ComputeFields,
// Limit, Start and Fetch wrap their child's iterator; the sources and
// the other operators (Sort, GroupBy, Distinct, Union, control flow,
// mutations) collect their rows into a slice first. Returns
// (zero Row, false, nil) at end of stream.
type RowIter func() (Row, bool, error)

func sliceIter(rows []Row) RowIter {
	i := 0
	return func() (Row, bool, error) {
		if i >= len(rows) {
			return Row{}, false, nil
		}
		r := rows[i]
		i++
		return r, true, nil
	}
}

func drain(it RowIter) ([]Row, error) {
	var out []Row
	for {
		r, ok, err := it()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, r)
	}
}

// Engine executes one physical plan.Operator tree against an
// ExecutionContext, evaluating every expr-typed field of an Operator
// through a shared Evaluator.
type Engine struct {
	EC  *ExecutionContext
	Res *Resources
	EV  *Evaluator
}

// Run dispatches op by Tag, returning a RowIter its parent can pull
// from. Each case grounds its storage access on the key shape pkg/keys
// defines for that entity (record / index entry / graph edge).
func (e *Engine) Run(op *plan.Operator) (RowIter, error) {
	if op == nil {
		return sliceIter(nil), nil
	}
	if e.EC.Cancelled() {
		return nil, xerrors.New(xerrors.KindInternal, "exec: cancelled")
	}

	switch op.Tag {
	// --- Sources ---
	case plan.OpTableScan:
		return e.runTableScan(op)
	case plan.OpRecordIdLookup:
		return e.runRecordIDLookup(op)
	case plan.OpIndexRangeScan:
		return e.runIndexRangeScan(op)
	case plan.OpUnionIndexScan:
		return e.runUnionIndexScan(op)
	case plan.OpFullTextScan:
		return e.runFullTextScan(op)
	case plan.OpKnnScan:
		return e.runKnnScan(op)

	// --- Transforms ---
	case plan.OpFilter:
		return e.runFilter(op)
	case plan.OpProject:
		return e.runProject(op)
	case plan.OpComputeFields:
		return e.runComputeFields(op)
	case plan.OpSort:
		return e.runSort(op)
	case plan.OpLimit:
		return e.runLimit(op)
	case plan.OpStart:
		return e.runStart(op)
	case plan.OpGroupBy:
		return e.runGroupBy(op)
	case plan.OpFetch:
		return e.runFetch(op)
	case plan.OpDistinct:
		return e.runDistinct(op)

	// --- Mutations ---
	case plan.OpCreate:
		return e.runCreate(op)
	case plan.OpUpdate:
		return e.runUpdate(op)
	case plan.OpUpsert:
		return e.runUpsert(op)
	case plan.OpDelete:
		return e.runDelete(op)
	case plan.OpRelate:
		return e.runRelate(op)
	case plan.OpInsert:
		return e.runInsert(op)

	// --- Set ops ---
	case plan.OpUnion:
		return e.runUnion(op)

	// --- Control flow ---
	case plan.OpSequence:
		return e.runSequence(op)
	case plan.OpIfElse:
		return e.runIfElse(op)
	case plan.OpForEach:
		return e.runForEach(op)

	// --- Meta ---
	case plan.OpInfo:
		return e.runInfo(op)
	case plan.OpUse:
		return e.runUse(op)
	case plan.OpLet:
		return e.runLet(op)
	case plan.OpTxControl:
		return sliceIter(nil), nil

	// --- DDL ---
	case plan.OpDefine:
		return e.runDefine(op)
	case plan.OpRemove:
		return e.runRemove(op)

	default:
		return nil, xerrors.PlannerUnimplemented
	}
}

func (e *Engine) table(name string) (catalog.Table, error) {
	return e.Res.Catalog.Table(e.EC.Tx, e.EC.NS, e.EC.DB, e.EC.NamespaceID, e.EC.DatabaseID, name)
}

// --- Sources ---

func (e *Engine) runTableScan(op *plan.Operator) (RowIter, error) {
	begin, end := keys.RangeOf(keys.RecordKeyPrefix(e.EC.NS, e.EC.DB, op.Table))
	var rows []Row
	cursor := []byte(nil)
	for {
		batch, err := e.EC.Tx.Scan(kv.Range{Begin: begin, End: end}, 256, cursor)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		for _, kvPair := range batch {
			rk, err := keys.DecodeRecordKey(kvPair.Key)
			if err != nil {
				return nil, err
			}
			v, err := val.Decode(kvPair.Value)
			if err != nil {
				return nil, err
			}
			rows = append(rows, Row{ID: val.RecordID{Table: rk.TB, Key: rk.ID}, HasID: true, Value: v})
			cursor = kvPair.Key
		}
		if len(batch) < 256 {
			break
		}
	}
	return sliceIter(rows), nil
}

func (e *Engine) runRecordIDLookup(op *plan.Operator) (RowIter, error) {
	var rows []Row
	for _, idExpr := range op.RecordIDs {
		v, err := e.EV.Eval(idExpr, val.None{})
		if err != nil {
			return nil, err
		}
		rid, ok := v.(val.RecordID)
		if !ok {
			continue
		}
		rk := keys.RecordKey{NS: e.EC.NS, DB: e.EC.DB, TB: rid.Table, ID: rid.Key}
		key, err := rk.Encode()
		if err != nil {
			return nil, err
		}
		raw, ok, err := e.EC.Tx.Get(key)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		rv, err := val.Decode(raw)
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{ID: rid, HasID: true, Value: rv})
	}
	return sliceIter(rows), nil
}

func (e *Engine) resolveIndex(table, name string) (catalog.Index, error) {
	return e.Res.Catalog.Index(e.EC.Tx, e.EC.NS, e.EC.DB, table, e.EC.NamespaceID, e.EC.DatabaseID, name)
}

func (e *Engine) fetchByKey(table string, id val.RecordIdKey) (Row, bool, error) {
	rk := keys.RecordKey{NS: e.EC.NS, DB: e.EC.DB, TB: table, ID: id}
	key, err := rk.Encode()
	if err != nil {
		return Row{}, false, err
	}
	raw, ok, err := e.EC.Tx.Get(key)
	if err != nil || !ok {
		return Row{}, false, err
	}
	v, err := val.Decode(raw)
	if err != nil {
		return Row{}, false, err
	}
	return Row{ID: val.RecordID{Table: table, Key: id}, HasID: true, Value: v}, true, nil
}

func (e *Engine) runIndexRangeScan(op *plan.Operator) (RowIter, error) {
	idxDef, err := e.resolveIndex(op.Table, op.Index)
	if err != nil {
		return nil, err
	}
	unique := idxDef.Kind.Tag == catalog.IndexUnique
	bIdx := btreeidx.New(e.EC.NS, e.EC.DB, op.Table, op.Index, unique)

	var beginVal, endVal val.Value
	if op.RangeBegin != nil {
		beginVal, err = e.EV.Eval(op.RangeBegin, val.None{})
		if err != nil {
			return nil, err
		}
	}
	if op.RangeEnd != nil {
		endVal, err = e.EV.Eval(op.RangeEnd, val.None{})
		if err != nil {
			return nil, err
		}
	}

	ids, err := bIdx.Scan(e.EC.Tx, beginVal, endVal, 0, nil)
	if err != nil {
		return nil, err
	}
	var rows []Row
	for _, id := range ids {
		row, ok, err := e.fetchByKey(op.Table, id)
		if err != nil {
			return nil, err
		}
		if ok {
			rows = append(rows, row)
		}
	}
	return sliceIter(rows), nil
}

func (e *Engine) runUnionIndexScan(op *plan.Operator) (RowIter, error) {
	seen := map[string]bool{}
	var rows []Row
	for _, child := range op.Children {
		it, err := e.Run(child)
		if err != nil {
			return nil, err
		}
		childRows, err := drain(it)
		if err != nil {
			return nil, err
		}
		for _, r := range childRows {
			k := r.ID.String()
			if seen[k] {
				continue
			}
			seen[k] = true
			rows = append(rows, r)
		}
	}
	return sliceIter(rows), nil
}

func (e *Engine) runFullTextScan(op *plan.Operator) (RowIter, error) {
	idxDef, err := e.resolveIndex(op.Table, op.Index)
	if err != nil {
		return nil, err
	}
	if idxDef.Kind.FullText == nil {
		return nil, xerrors.New(xerrors.KindInternal, "exec: index is not a full-text index")
	}
	ft := idxDef.Kind.FullText
	ftIdx := fulltext.New(e.EC.NS, e.EC.DB, op.Table, op.Index, fulltext.DefaultAnalyzer(), ft.BM25K1, ft.BM25B)

	queryVal, err := e.EV.Eval(op.MatchQuery, val.None{})
	if err != nil {
		return nil, err
	}
	queryStr, ok := queryVal.(val.Str)
	if !ok {
		return nil, xerrors.New(xerrors.KindTypeMismatch, "exec: full-text match query is not a string")
	}
	docs, err := ftIdx.Search(e.EC.Tx, string(queryStr), fulltext.OpAnd)
	if err != nil {
		return nil, err
	}
	var rows []Row
	for _, d := range docs {
		row, ok, err := e.fetchByKey(op.Table, d.DocID)
		if err != nil {
			return nil, err
		}
		if ok {
			rows = append(rows, row)
		}
	}
	return sliceIter(rows), nil
}

func toHnswDistance(d catalog.HnswDistance) hnsw.Distance { return hnsw.Distance(d) }
func toHnswVectorType(t catalog.HnswVectorType) hnsw.VectorType { return hnsw.VectorType(t) }

func (e *Engine) runKnnScan(op *plan.Operator) (RowIter, error) {
	idxDef, err := e.resolveIndex(op.Table, op.Index)
	if err != nil {
		return nil, err
	}
	if idxDef.Kind.Hnsw == nil {
		return nil, xerrors.New(xerrors.KindInternal, "exec: index is not an HNSW index")
	}
	hp := idxDef.Kind.Hnsw
	params := hnsw.Params{
		Dimension:             hp.Dimension,
		Distance:              toHnswDistance(hp.Distance),
		MinkowskiP:            hp.MinkowskiP,
		VectorType:            toHnswVectorType(hp.VectorType),
		M:                     hp.M,
		M0:                    hp.M0,
		EfConstruction:        hp.EfConstruction,
		Ml:                    hp.Ml,
		ExtendCandidates:      hp.ExtendCandidates,
		KeepPrunedConnections: hp.KeepPrunedConnections,
	}
	hIdx, err := hnsw.New(e.EC.NS, e.EC.DB, op.Table, op.Index, params, 0, nil)
	if err != nil {
		return nil, err
	}

	vecVal, err := e.EV.Eval(op.KnnVector, val.None{})
	if err != nil {
		return nil, err
	}
	arr, ok := vecVal.(val.Array)
	if !ok {
		return nil, xerrors.New(xerrors.KindTypeMismatch, "exec: KNN vector is not an array")
	}
	vec := make([]float64, len(arr))
	for i, el := range arr {
		n, ok := el.(val.Number)
		if !ok {
			return nil, xerrors.New(xerrors.KindTypeMismatch, "exec: KNN vector element is not numeric")
		}
		vec[i] = n.AsFloat()
	}

	ef := op.Ef
	if ef == 0 {
		ef = op.K
	}
	results, err := hIdx.Search(e.EC.Tx, vec, int(op.K), ef, hnsw.TrivialChecker{})
	if err != nil {
		return nil, err
	}
	var rows []Row
	for _, r := range results {
		row, ok, err := e.fetchByKey(op.Table, r.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			rows = append(rows, row)
		}
	}
	return sliceIter(rows), nil
}

// --- Transforms ---

func (e *Engine) runFilter(op *plan.Operator) (RowIter, error) {
	child, err := e.Run(op.Children[0])
	if err != nil {
		return nil, err
	}
	return func() (Row, bool, error) {
		for {
			r, ok, err := child()
			if err != nil || !ok {
				return r, ok, err
			}
			keep, err := e.EV.Eval(op.Cond, r.Value)
			if err != nil {
				return Row{}, false, err
			}
			if val.Truthy(keep) {
				return r, true, nil
			}
		}
	}, nil
}

func (e *Engine) runProject(op *plan.Operator) (RowIter, error) {
	child, err := e.Run(op.Children[0])
	if err != nil {
		return nil, err
	}
	return func() (Row, bool, error) {
		r, ok, err := child()
		if err != nil || !ok {
			return r, ok, err
		}
		out := val.Object{}
		for _, fe := range op.Fields {
			v, err := e.EV.Eval(fe, r.Value)
			if err != nil {
				return Row{}, false, err
			}
			out[projectionName(fe)] = v
		}
		r.Value = out
		return r, true, nil
	}, nil
}

func projectionName(fe interface{ String() string }) string {
	return fe.String()
}

func (e *Engine) runComputeFields(op *plan.Operator) (RowIter, error) {
	var child RowIter
	var err error
	if len(op.Children) > 0 {
		child, err = e.Run(op.Children[0])
		if err != nil {
			return nil, err
		}
	} else {
		child = sliceIter([]Row{{Value: val.None{}}})
	}
	return func() (Row, bool, error) {
		r, ok, err := child()
		if err != nil || !ok {
			return r, ok, err
		}
		obj, isObj := r.Value.(val.Object)
		if !isObj {
			obj = val.Object{}
		}
		out := make(val.Object, len(obj))
		for k, v := range obj {
			out[k] = v
		}
		for _, fe := range op.Fields {
			v, err := e.EV.Eval(fe, r.Value)
			if err != nil {
				return Row{}, false, err
			}
			out[projectionName(fe)] = v
		}
		r.Value = out
		return r, true, nil
	}, nil
}

func (e *Engine) runSort(op *plan.Operator) (RowIter, error) {
	child, err := e.Run(op.Children[0])
	if err != nil {
		return nil, err
	}
	rows, err := drain(child)
	if err != nil {
		return nil, err
	}
	var sortErr error
	sort.SliceStable(rows, func(i, j int) bool {
		for _, sk := range op.SortKeys {
			vi, err := e.EV.Eval(sk.Path, rows[i].Value)
			if err != nil {
				sortErr = err
				return false
			}
			vj, err := e.EV.Eval(sk.Path, rows[j].Value)
			if err != nil {
				sortErr = err
				return false
			}
			c := val.Compare(vi, vj)
			if c == 0 {
				continue
			}
			if sk.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	if sortErr != nil {
		return nil, sortErr
	}
	return sliceIter(rows), nil
}

func (e *Engine) runLimit(op *plan.Operator) (RowIter, error) {
	child, err := e.Run(op.Children[0])
	if err != nil {
		return nil, err
	}
	n, err := e.evalCountAsInt(op.Count)
	if err != nil {
		return nil, err
	}
	remaining := n
	return func() (Row, bool, error) {
		if remaining <= 0 {
			return Row{}, false, nil
		}
		r, ok, err := child()
		if err != nil || !ok {
			return r, ok, err
		}
		remaining--
		return r, true, nil
	}, nil
}

func (e *Engine) runStart(op *plan.Operator) (RowIter, error) {
	child, err := e.Run(op.Children[0])
	if err != nil {
		return nil, err
	}
	n, err := e.evalCountAsInt(op.Count)
	if err != nil {
		return nil, err
	}
	skipped := false
	return func() (Row, bool, error) {
		if !skipped {
			for i := int64(0); i < n; i++ {
				_, ok, err := child()
				if err != nil {
					return Row{}, false, err
				}
				if !ok {
					break
				}
			}
			skipped = true
		}
		return child()
	}, nil
}

func (e *Engine) evalCountAsInt(ex *expr.Expr) (int64, error) {
	if ex == nil {
		return 0, nil
	}
	v, err := e.EV.Eval(ex, val.None{})
	if err != nil {
		return 0, err
	}
	n, ok := v.(val.Number)
	if !ok {
		return 0, xerrors.New(xerrors.KindTypeMismatch, "exec: LIMIT/START value is not numeric")
	}
	iv, _ := n.AsInt()
	return iv, nil
}

// runGroupBy buckets rows by op.GroupKeys, then evaluates op.Aggregates
// with the row bound to the val.Array of each bucket's member values —
// an aggregate's idiom arguments are expected in the `*.field` form
// (val.PartAll then a field), which val.Walk already maps over an Array
// root without any GroupBy-specific evaluation path.
func (e *Engine) runGroupBy(op *plan.Operator) (RowIter, error) {
	child, err := e.Run(op.Children[0])
	if err != nil {
		return nil, err
	}
	rows, err := drain(child)
	if err != nil {
		return nil, err
	}

	type bucket struct {
		keyVals []val.Value
		members val.Array
	}
	var buckets []*bucket
	for _, r := range rows {
		keyVals := make([]val.Value, len(op.GroupKeys))
		for i, k := range op.GroupKeys {
			v, err := e.EV.Eval(k, r.Value)
			if err != nil {
				return nil, err
			}
			keyVals[i] = v
		}
		var b *bucket
		for _, cand := range buckets {
			if sameKeys(cand.keyVals, keyVals) {
				b = cand
				break
			}
		}
		if b == nil {
			b = &bucket{keyVals: keyVals}
			buckets = append(buckets, b)
		}
		b.members = append(b.members, r.Value)
	}

	var out []Row
	for _, b := range buckets {
		obj := val.Object{}
		for i, k := range op.GroupKeys {
			obj[projectionName(k)] = b.keyVals[i]
		}
		for _, agg := range op.Aggregates {
			v, err := e.EV.Eval(agg, b.members)
			if err != nil {
				return nil, err
			}
			obj[projectionName(agg)] = v
		}
		out = append(out, Row{Value: obj})
	}
	return sliceIter(out), nil
}

func sameKeys(a, b []val.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !val.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// runFetch expands every FETCH idiom path in op.Fields that resolves to
// a val.RecordID into the referenced record's full value, in place.
func (e *Engine) runFetch(op *plan.Operator) (RowIter, error) {
	child, err := e.Run(op.Children[0])
	if err != nil {
		return nil, err
	}
	return func() (Row, bool, error) {
		r, ok, err := child()
		if err != nil || !ok {
			return r, ok, err
		}
		obj, isObj := r.Value.(val.Object)
		if !isObj {
			return r, true, nil
		}
		out := make(val.Object, len(obj))
		for k, v := range obj {
			out[k] = v
		}
		for _, fe := range op.Fields {
			name := projectionName(fe)
			cur, present := out[name]
			if !present {
				continue
			}
			rid, isRID := cur.(val.RecordID)
			if !isRID {
				continue
			}
			fetched, ok, err := e.fetchByKey(rid.Table, rid.Key)
			if err != nil {
				return Row{}, false, err
			}
			if ok {
				out[name] = fetched.Value
			}
		}
		r.Value = out
		return r, true, nil
	}, nil
}

func (e *Engine) runDistinct(op *plan.Operator) (RowIter, error) {
	child, err := e.Run(op.Children[0])
	if err != nil {
		return nil, err
	}
	rows, err := drain(child)
	if err != nil {
		return nil, err
	}
	var out []Row
	for _, r := range rows {
		dup := false
		for _, seen := range out {
			if val.Equal(r.Value, seen.Value) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, r)
		}
	}
	return sliceIter(out), nil
}

// --- Set ops ---

func (e *Engine) runUnion(op *plan.Operator) (RowIter, error) {
	var rows []Row
	for _, child := range op.Children {
		it, err := e.Run(child)
		if err != nil {
			return nil, err
		}
		childRows, err := drain(it)
		if err != nil {
			return nil, err
		}
		rows = append(rows, childRows...)
	}
	return sliceIter(rows), nil
}

// --- Control flow ---

func (e *Engine) runSequence(op *plan.Operator) (RowIter, error) {
	var last []Row
	for _, child := range op.Children {
		it, err := e.Run(child)
		if err != nil {
			return nil, err
		}
		rows, err := drain(it)
		if err != nil {
			return nil, err
		}
		last = rows
	}
	return sliceIter(last), nil
}

func (e *Engine) runIfElse(op *plan.Operator) (RowIter, error) {
	cond, err := e.EV.Eval(op.Cond, val.None{})
	if err != nil {
		return nil, err
	}
	if val.Truthy(cond) {
		return e.Run(op.Children[0])
	}
	if len(op.Children) > 1 {
		return e.Run(op.Children[1])
	}
	return sliceIter(nil), nil
}

// runForEach iterates op.ForEachOver, binding each element to
// op.ForEachVar and re-running op's single child once per iteration —
// spec §4.5's FOR loop.
func (e *Engine) runForEach(op *plan.Operator) (RowIter, error) {
	overVal, err := e.EV.Eval(op.ForEachOver, val.None{})
	if err != nil {
		return nil, err
	}
	arr, ok := overVal.(val.Array)
	if !ok {
		return nil, xerrors.New(xerrors.KindTypeMismatch, "exec: FOR ... IN target is not an array")
	}
	outerEC := e.EC
	var out []Row
	for _, item := range arr {
		iterEC := outerEC.WithParam(op.ForEachVar, item)
		iterEngine := &Engine{EC: iterEC, Res: e.Res, EV: &Evaluator{EC: iterEC, Fns: e.EV.Fns, Deps: e.EV.Deps, Functions: e.EV.Functions, Subquery: e.EV.Subquery}}
		if len(op.Children) == 0 {
			continue
		}
		it, err := iterEngine.Run(op.Children[0])
		if err != nil {
			return nil, err
		}
		rows, err := drain(it)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return sliceIter(out), nil
}

// --- Meta ---

func (e *Engine) runInfo(op *plan.Operator) (RowIter, error) {
	// INFO's result shape depends on scope (ROOT/NS/DB/TABLE/...) and is
	// assembled by the caller from catalog.Store listings rather than a
	// generic Operator result — the executor handles OpInfo directly
	// rather than through Engine.Run.
	return nil, xerrors.PlannerUnimplemented
}

func (e *Engine) runUse(op *plan.Operator) (RowIter, error) {
	// USE mutates the surrounding ExecutionContext (WithScope), which is
	// a statement-DAG-level concern (pkg/exec's statement executor
	// threads the returned context to the next node) rather than
	// something an Operator's row stream expresses.
	return sliceIter(nil), nil
}

func (e *Engine) runLet(op *plan.Operator) (RowIter, error) {
	v, err := e.EV.Eval(op.Value, val.None{})
	if err != nil {
		return nil, err
	}
	return sliceIter([]Row{{Value: v}}), nil
}
