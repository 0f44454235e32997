package exec

import (
	"github.com/google/uuid"

	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/catalog"
	"github.com/nexusdb/nexus/pkg/changefeed"
	"github.com/nexusdb/nexus/pkg/expr"
	"github.com/nexusdb/nexus/pkg/graph"
	"github.com/nexusdb/nexus/pkg/index/btreeidx"
	"github.com/nexusdb/nexus/pkg/index/fulltext"
	"github.com/nexusdb/nexus/pkg/index/hnsw"
	"github.com/nexusdb/nexus/pkg/keys"
	"github.com/nexusdb/nexus/pkg/live"
	"github.com/nexusdb/nexus/pkg/plan"
	"github.com/nexusdb/nexus/pkg/val"
)

// applySetFields evaluates op.SetFields against base (the pre-mutation
// record, val.None{} on CREATE) and returns the merged Object.
func (e *Engine) applySetFields(op *plan.Operator, base val.Value) (val.Object, error) {
	out := val.Object{}
	if baseObj, ok := base.(val.Object); ok {
		for k, v := range baseObj {
			out[k] = v
		}
	}
	for name, fe := range op.SetFields {
		v, err := e.EV.Eval(fe, base)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

func (e *Engine) writeRecord(table string, id val.RecordIdKey, v val.Value) error {
	rk := keys.RecordKey{NS: e.EC.NS, DB: e.EC.DB, TB: table, ID: id}
	k, err := rk.Encode()
	if err != nil {
		return err
	}
	b, err := val.Encode(v)
	if err != nil {
		return err
	}
	return e.EC.Tx.Set(k, b)
}

// maintainIndexes applies the delta (pre -> post) of one record to every
// secondary index defined on table — BTree range index, unique index,
// full-text, or HNSW, keyed by catalog.Index.Kind (spec §4.4/§4.6/§4.7:
// every index kind is maintained synchronously on write, not rebuilt in
// the background).
func (e *Engine) maintainIndexes(table string, id val.RecordIdKey, pre, post val.Value) error {
	idxs, err := e.Res.Catalog.Indexes(e.EC.Tx, e.EC.NS, e.EC.DB, table)
	if err != nil {
		return err
	}
	for _, idxDef := range idxs {
		if err := e.maintainOneIndex(table, idxDef, id, pre, post); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) indexFieldValue(fields []val.Idiom, row val.Value) (val.Value, error) {
	if row == nil {
		return val.None{}, nil
	}
	if len(fields) == 1 {
		paths, err := val.Walk(row, fields[0], e.EV)
		if err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			return val.None{}, nil
		}
		return paths[0].Value, nil
	}
	out := make(val.Array, len(fields))
	for i, f := range fields {
		paths, err := val.Walk(row, f, e.EV)
		if err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			out[i] = val.None{}
			continue
		}
		out[i] = paths[0].Value
	}
	return out, nil
}

func (e *Engine) maintainOneIndex(table string, idxDef catalog.Index, id val.RecordIdKey, pre, post val.Value) error {
	switch idxDef.Kind.Tag {
	case catalog.IndexNonUnique, catalog.IndexUnique:
		unique := idxDef.Kind.Tag == catalog.IndexUnique
		bIdx := btreeidx.New(e.EC.NS, e.EC.DB, table, idxDef.Name, unique)
		if pre != nil {
			fv, err := e.indexFieldValue(idxDef.Fields, pre)
			if err != nil {
				return err
			}
			if _, isNone := fv.(val.None); !isNone {
				if err := bIdx.Remove(e.EC.Tx, fv, id); err != nil {
					return err
				}
			}
		}
		if post != nil {
			fv, err := e.indexFieldValue(idxDef.Fields, post)
			if err != nil {
				return err
			}
			if _, isNone := fv.(val.None); !isNone {
				if err := bIdx.Insert(e.EC.Tx, fv, id); err != nil {
					return err
				}
			}
		}
		return nil

	case catalog.IndexFullText:
		if idxDef.Kind.FullText == nil || len(idxDef.Fields) == 0 {
			return nil
		}
		ft := idxDef.Kind.FullText
		ftIdx := fulltext.New(e.EC.NS, e.EC.DB, table, idxDef.Name, fulltext.DefaultAnalyzer(), ft.BM25K1, ft.BM25B)
		nid, uid := hashVersion(table, idxDef.Name)
		if pre != nil {
			text, err := e.indexTextValue(idxDef.Fields[0], pre)
			if err != nil {
				return err
			}
			if text != "" {
				if err := ftIdx.RemoveDoc(e.EC.Tx, id, text, nid, uid); err != nil {
					return err
				}
			}
		}
		if post != nil {
			text, err := e.indexTextValue(idxDef.Fields[0], post)
			if err != nil {
				return err
			}
			if text != "" {
				if err := ftIdx.IndexDoc(e.EC.Tx, id, text, nid, uid); err != nil {
					return err
				}
			}
		}
		return nil

	case catalog.IndexHnsw:
		if idxDef.Kind.Hnsw == nil || len(idxDef.Fields) == 0 {
			return nil
		}
		hp := idxDef.Kind.Hnsw
		params := hnsw.Params{
			Dimension: hp.Dimension, Distance: toHnswDistance(hp.Distance), MinkowskiP: hp.MinkowskiP,
			VectorType: toHnswVectorType(hp.VectorType), M: hp.M, M0: hp.M0,
			EfConstruction: hp.EfConstruction, Ml: hp.Ml,
			ExtendCandidates: hp.ExtendCandidates, KeepPrunedConnections: hp.KeepPrunedConnections,
		}
		hIdx, err := hnsw.New(e.EC.NS, e.EC.DB, table, idxDef.Name, params, 0, nil)
		if err != nil {
			return err
		}
		if pre != nil {
			if err := hIdx.Delete(e.EC.Tx, id); err != nil {
				return err
			}
		}
		if post != nil {
			vec, err := e.indexVectorValue(idxDef.Fields[0], post)
			if err != nil {
				return err
			}
			if vec != nil {
				if err := hIdx.Insert(e.EC.Ctx, e.EC.Tx, id, vec); err != nil {
					return err
				}
			}
		}
		return nil

	case catalog.IndexCount:
		cIdx := btreeidx.CountIndex{NS: e.EC.NS, DB: e.EC.DB, TB: table, IX: idxDef.Name}
		preMatch, err := e.countCondMatches(idxDef.Kind.CountOf, pre)
		if err != nil {
			return err
		}
		postMatch, err := e.countCondMatches(idxDef.Kind.CountOf, post)
		if err != nil {
			return err
		}
		delta := int64(0)
		if !preMatch && postMatch {
			delta = 1
		} else if preMatch && !postMatch {
			delta = -1
		}
		if delta == 0 {
			return nil
		}
		return cIdx.Inc(e.EC.Tx, delta)

	default:
		return nil
	}
}

// countCondMatches reports whether row satisfies a COUNT index's
// optional condition — a bare COUNT() index (cond == nil) matches every
// row, so presence alone drives Inc/Dec.
func (e *Engine) countCondMatches(cond any, row val.Value) (bool, error) {
	if row == nil {
		return false, nil
	}
	if cond == nil {
		return true, nil
	}
	ce, ok := cond.(*expr.Expr)
	if !ok {
		return true, nil
	}
	v, err := e.EV.Eval(ce, row)
	if err != nil {
		return false, err
	}
	return val.Truthy(v), nil
}

func (e *Engine) indexTextValue(field val.Idiom, row val.Value) (string, error) {
	v, err := e.indexFieldValue([]val.Idiom{field}, row)
	if err != nil {
		return "", err
	}
	s, ok := v.(val.Str)
	if !ok {
		return "", nil
	}
	return string(s), nil
}

func (e *Engine) indexVectorValue(field val.Idiom, row val.Value) ([]float64, error) {
	v, err := e.indexFieldValue([]val.Idiom{field}, row)
	if err != nil {
		return nil, err
	}
	arr, ok := v.(val.Array)
	if !ok {
		return nil, nil
	}
	out := make([]float64, len(arr))
	for i, el := range arr {
		n, ok := el.(val.Number)
		if !ok {
			return nil, xerrors.New(xerrors.KindTypeMismatch, "exec: HNSW field is not a numeric array")
		}
		out[i] = n.AsFloat()
	}
	return out, nil
}

// hashVersion derives the deterministic (nid, uid) pair fulltext.Index
// uses to namespace its per-node/per-transaction stat counters; this
// package has no cluster node identity yet, so both are pinned to a
// stable value derived from the index's own coordinates rather than a
// random one (a random uid would make every IndexDoc/RemoveDoc pair
// across a retried transaction inconsistent with itself).
func hashVersion(table, index string) (nid, uid uint64) {
	h := uint64(1469598103934665603)
	for _, b := range table + "/" + index {
		h ^= uint64(b)
		h *= 1099511628211
	}
	return h, h
}

func (e *Engine) recordChange(table string, id val.RecordIdKey, kind changefeed.MutationKind, value, original val.Value) {
	if e.EC.CF == nil {
		return
	}
	e.EC.CF.Record(changefeed.Mutation{
		Record:   val.RecordID{Table: table, Key: id},
		Kind:     kind,
		Value:    value,
		Original: original,
	})
}

func (e *Engine) dispatchLive(table string, pre, post val.Value) error {
	if e.EC.Live == nil {
		return nil
	}
	queries, err := live.ListForTable(e.EC.Tx, e.EC.NS, e.EC.DB, table)
	if err != nil {
		return err
	}
	if len(queries) == 0 {
		return nil
	}
	_, err = e.EC.Live.Dispatch(queries, pre, post)
	return err
}

func (e *Engine) runCreate(op *plan.Operator) (RowIter, error) {
	content, err := e.applySetFields(op, val.None{})
	if err != nil {
		return nil, err
	}
	id, ok := recordIDOf(content)
	if !ok {
		id = val.NewRecordIDUuid(val.UuidV(mustNewUUID()))
	}

	rk := keys.RecordKey{NS: e.EC.NS, DB: e.EC.DB, TB: op.Table, ID: id}
	key, err := rk.Encode()
	if err != nil {
		return nil, err
	}
	b, err := val.Encode(content)
	if err != nil {
		return nil, err
	}
	created, err := e.EC.Tx.PutIfNotExists(key, b)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, xerrors.New(xerrors.KindIndexViolation, "exec: CREATE target "+op.Table+":"+id.String()+" already exists")
	}
	if err := e.maintainIndexes(op.Table, id, nil, content); err != nil {
		return nil, err
	}
	e.recordChange(op.Table, id, changefeed.MutationCreate, content, nil)
	if err := e.dispatchLive(op.Table, nil, content); err != nil {
		return nil, err
	}
	return sliceIter([]Row{{ID: val.RecordID{Table: op.Table, Key: id}, HasID: true, Value: content}}), nil
}

func (e *Engine) runUpdate(op *plan.Operator) (RowIter, error) {
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
		if !r.HasID {
			continue
		}
		merged, err := e.applySetFields(op, r.Value)
		if err != nil {
			return nil, err
		}
		if err := e.writeRecord(r.ID.Table, r.ID.Key, merged); err != nil {
			return nil, err
		}
		if err := e.maintainIndexes(r.ID.Table, r.ID.Key, r.Value, merged); err != nil {
			return nil, err
		}
		e.recordChange(r.ID.Table, r.ID.Key, changefeed.MutationUpdate, merged, r.Value)
		if err := e.dispatchLive(r.ID.Table, r.Value, merged); err != nil {
			return nil, err
		}
		out = append(out, Row{ID: r.ID, HasID: true, Value: merged})
	}
	return sliceIter(out), nil
}

// runUpsert behaves like runUpdate over its matched source rows, and
// additionally creates a fresh record when the source produced none —
// UPDATE ... SET ... (spec's UPSERT semantics, distinct from UPDATE
// which is a no-op over zero matches).
func (e *Engine) runUpsert(op *plan.Operator) (RowIter, error) {
	child, err := e.Run(op.Children[0])
	if err != nil {
		return nil, err
	}
	rows, err := drain(child)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return e.runCreate(op)
	}
	var out []Row
	for _, r := range rows {
		if !r.HasID {
			continue
		}
		merged, err := e.applySetFields(op, r.Value)
		if err != nil {
			return nil, err
		}
		if err := e.writeRecord(r.ID.Table, r.ID.Key, merged); err != nil {
			return nil, err
		}
		if err := e.maintainIndexes(r.ID.Table, r.ID.Key, r.Value, merged); err != nil {
			return nil, err
		}
		e.recordChange(r.ID.Table, r.ID.Key, changefeed.MutationUpdate, merged, r.Value)
		if err := e.dispatchLive(r.ID.Table, r.Value, merged); err != nil {
			return nil, err
		}
		out = append(out, Row{ID: r.ID, HasID: true, Value: merged})
	}
	return sliceIter(out), nil
}

func (e *Engine) runDelete(op *plan.Operator) (RowIter, error) {
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
		if !r.HasID {
			continue
		}
		rk := keys.RecordKey{NS: e.EC.NS, DB: e.EC.DB, TB: r.ID.Table, ID: r.ID.Key}
		key, err := rk.Encode()
		if err != nil {
			return nil, err
		}
		if err := e.EC.Tx.Delete(key); err != nil {
			return nil, err
		}
		if err := e.maintainIndexes(r.ID.Table, r.ID.Key, r.Value, nil); err != nil {
			return nil, err
		}
		e.recordChange(r.ID.Table, r.ID.Key, changefeed.MutationDelete, nil, r.Value)
		if err := e.dispatchLive(r.ID.Table, r.Value, nil); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return sliceIter(out), nil
}

func (e *Engine) runRelate(op *plan.Operator) (RowIter, error) {
	fromVal, err := e.EV.Eval(op.RelateFrom, val.None{})
	if err != nil {
		return nil, err
	}
	toVal, err := e.EV.Eval(op.RelateTo, val.None{})
	if err != nil {
		return nil, err
	}
	from, ok := fromVal.(val.RecordID)
	if !ok {
		return nil, xerrors.New(xerrors.KindTypeMismatch, "exec: RELATE from is not a record id")
	}
	to, ok := toVal.(val.RecordID)
	if !ok {
		return nil, xerrors.New(xerrors.KindTypeMismatch, "exec: RELATE to is not a record id")
	}

	table, err := e.table(op.Table)
	if err != nil {
		return nil, err
	}
	enforced := table.Enforced

	content, err := e.applySetFields(op, val.None{})
	if err != nil {
		return nil, err
	}
	id, ok := recordIDOf(content)
	if !ok {
		id = val.NewRecordIDUuid(val.UuidV(mustNewUUID()))
	}

	if err := graph.Relate(e.EC.Tx, graph.Edge{NS: e.EC.NS, DB: e.EC.DB, TB: op.Table, ID: id, From: from, To: to}, enforced); err != nil {
		return nil, err
	}
	if len(content) > 0 {
		if err := e.writeRecord(op.Table, id, content); err != nil {
			return nil, err
		}
	}
	if err := e.maintainIndexes(op.Table, id, nil, content); err != nil {
		return nil, err
	}
	e.recordChange(op.Table, id, changefeed.MutationCreate, content, nil)
	if err := e.dispatchLive(op.Table, nil, content); err != nil {
		return nil, err
	}
	return sliceIter([]Row{{ID: val.RecordID{Table: op.Table, Key: id}, HasID: true, Value: content}}), nil
}

// runInsert executes one row of an INSERT INTO table (...) VALUES (...),
// taken from op.SetFields (op's children are not read), through
// the same create path CREATE uses — INSERT's only distinct behavior
// spec §9 calls out is bulk multi-row input, which the planner already
// expresses as one OpInsert per tuple under a Sequence.
func (e *Engine) runInsert(op *plan.Operator) (RowIter, error) {
	return e.runCreate(op)
}

// recordIDOf extracts an explicit id field from a CREATE/RELATE content
// object, if one was given (e.g. CREATE person:alice or CREATE person SET
// id = "alice"). ok is false when no usable id was supplied, signaling
// the caller to generate one.
func recordIDOf(content val.Object) (key val.RecordIdKey, ok bool) {
	idv, present := content["id"]
	if !present {
		return val.RecordIdKey{}, false
	}
	if rid, isRid := idv.(val.RecordID); isRid {
		return rid.Key, true
	}
	if s, isStr := idv.(val.Str); isStr {
		return val.NewRecordIDString(string(s)), true
	}
	return val.RecordIdKey{}, false
}

func mustNewUUID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
