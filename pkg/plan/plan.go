package plan

import (
	"github.com/nexusdb/nexus/pkg/catalog"
	"github.com/nexusdb/nexus/pkg/expr"
	"github.com/nexusdb/nexus/pkg/val"
)

// Rewrite folds literal constant subexpressions and canonicalizes
// idioms before access-path selection runs (SPEC_FULL.md §9, modeled on
// `original_source/core/src/idx/planner/checker.rs`/`rewriter.rs`'s
// checker/rewriter split: the original separates "can this subtree be
// statically decided" from "rebuild the tree with what we decided",
// and Rewrite keeps that same two-step shape in miniature — foldBinary
// decides, Rewrite rebuilds).
func Rewrite(e *expr.Expr) *expr.Expr {
	if e == nil {
		return nil
	}
	switch e.Tag {
	case expr.TagBinary:
		l := Rewrite(e.Left)
		r := Rewrite(e.Right)
		if folded := foldBinary(e.Op, l, r); folded != nil {
			return folded
		}
		out := *e
		out.Left, out.Right = l, r
		return &out
	case expr.TagUnary:
		operand := Rewrite(e.Operand)
		if operand.IsLiteral() {
			if folded := foldUnary(e.UnaryOp, operand); folded != nil {
				return folded
			}
		}
		out := *e
		out.Operand = operand
		return &out
	case expr.TagCall:
		args := make([]*expr.Expr, len(e.Args))
		for i, a := range e.Args {
			args[i] = Rewrite(a)
		}
		out := *e
		out.Args = args
		return &out
	case expr.TagIf:
		out := *e
		out.Cond = Rewrite(e.Cond)
		out.Then = Rewrite(e.Then)
		if e.Else != nil {
			out.Else = Rewrite(e.Else)
		}
		return &out
	default:
		return e
	}
}

func foldBinary(op expr.BinOp, l, r *expr.Expr) *expr.Expr {
	if !l.IsLiteral() || !r.IsLiteral() {
		return nil
	}
	ln, lok := l.Literal.(val.Number)
	rn, rok := r.Literal.(val.Number)
	if !lok || !rok {
		return foldLiteralComparison(op, l.Literal, r.Literal)
	}
	var (
		out val.Number
		err error
	)
	switch op {
	case expr.OpAdd:
		out, err = ln.Add(rn)
	case expr.OpSub:
		out, err = ln.Sub(rn)
	case expr.OpMul:
		out, err = ln.Mul(rn)
	case expr.OpDiv:
		out, err = ln.Div(rn)
	default:
		return foldLiteralComparison(op, l.Literal, r.Literal)
	}
	if err != nil {
		// A folding error (overflow, div-by-zero) is not this pass's to
		// report — leave the node unfolded so evaluation surfaces the
		// real error at the right place in the plan.
		return nil
	}
	return expr.Lit(out)
}

func foldLiteralComparison(op expr.BinOp, l, r val.Value) *expr.Expr {
	switch op {
	case expr.OpEq:
		return expr.Lit(val.Bool(val.Equal(l, r)))
	case expr.OpNeq:
		return expr.Lit(val.Bool(!val.Equal(l, r)))
	case expr.OpLt:
		return expr.Lit(val.Bool(val.Compare(l, r) < 0))
	case expr.OpLte:
		return expr.Lit(val.Bool(val.Compare(l, r) <= 0))
	case expr.OpGt:
		return expr.Lit(val.Bool(val.Compare(l, r) > 0))
	case expr.OpGte:
		return expr.Lit(val.Bool(val.Compare(l, r) >= 0))
	case expr.OpAnd:
		return expr.Lit(val.Bool(val.Truthy(l) && val.Truthy(r)))
	case expr.OpOr:
		return expr.Lit(val.Bool(val.Truthy(l) || val.Truthy(r)))
	default:
		return nil
	}
}

func foldUnary(op expr.UnaryOp, operand *expr.Expr) *expr.Expr {
	switch op {
	case expr.OpNot:
		return expr.Lit(val.Bool(!val.Truthy(operand.Literal)))
	case expr.OpNeg:
		if n, ok := operand.Literal.(val.Number); ok {
			return expr.Lit(n.Neg())
		}
	}
	return nil
}

// conjuncts splits a WHERE tree on top-level AND into its independent
// clauses (spec §4.4: "For conjunctions, pick the most selective
// index").
func conjuncts(e *expr.Expr) []*expr.Expr {
	if e == nil {
		return nil
	}
	if e.Tag == expr.TagBinary && e.Op == expr.OpAnd {
		return append(conjuncts(e.Left), conjuncts(e.Right)...)
	}
	return []*expr.Expr{e}
}

// disjuncts splits a WHERE tree on top-level OR.
func disjuncts(e *expr.Expr) []*expr.Expr {
	if e.Tag == expr.TagBinary && e.Op == expr.OpOr {
		return append(disjuncts(e.Left), disjuncts(e.Right)...)
	}
	return []*expr.Expr{e}
}

// indexableIdiom returns the field idiom a conjunct compares, if that
// conjunct has the shape `idiom <op> literal` (or the reverse) an index
// can serve directly.
func indexableIdiom(e *expr.Expr) (*expr.Expr, bool) {
	if e.Tag != expr.TagBinary {
		return nil, false
	}
	switch {
	case e.Left.Tag == expr.TagIdiom && e.Right.IsLiteral():
		return e.Left, true
	case e.Right.Tag == expr.TagIdiom && e.Left.IsLiteral():
		return e.Right, true
	default:
		return nil, false
	}
}

func indexCoversIdiom(idx catalog.Index, idiom *expr.Expr) bool {
	if len(idx.Fields) == 0 {
		return false
	}
	return idx.Fields[0].String() == idiom.Idiom.String()
}

// Plan builds a physical plan for a SELECT-shaped read over table,
// given its secondary indexes and an already-rewritten WHERE clause
// (spec §4.4's access-path selection).
func Plan(table catalog.Table, indexes []catalog.Index, where *expr.Expr) (*Operator, error) {
	where = Rewrite(where)
	if where == nil {
		return Leaf(OpTableScan), nil
	}

	if matchOp, ok := matchAccessPath(where, indexes); ok {
		return matchOp, nil
	}

	if ors := disjuncts(where); len(ors) > 1 {
		branches := make([]*Operator, 0, len(ors))
		for _, branch := range ors {
			op, err := Plan(table, indexes, branch)
			if err != nil {
				return nil, err
			}
			branches = append(branches, op)
		}
		return Wrap(OpUnionIndexScan, branches...), nil
	}

	var (
		best    catalog.Index
		bestHit *expr.Expr
		found   bool
	)
	residual := make([]*expr.Expr, 0)
	for _, c := range conjuncts(where) {
		idiom, ok := indexableIdiom(c)
		if !ok {
			residual = append(residual, c)
			continue
		}
		matched := false
		for _, idx := range indexes {
			if idx.Kind.Tag == catalog.IndexFullText || idx.Kind.Tag == catalog.IndexHnsw {
				continue
			}
			if indexCoversIdiom(idx, idiom) {
				if !found || idx.Kind.Tag == catalog.IndexUnique {
					best, bestHit, found = idx, c, true
				}
				matched = true
				break
			}
		}
		if !matched {
			residual = append(residual, c)
		}
	}

	if !found {
		return &Operator{Tag: OpFilter, Cond: where, Children: []*Operator{Leaf(OpTableScan)}}, nil
	}

	scan := &Operator{Tag: OpIndexRangeScan, Table: table.Name, Index: best.Name}
	idiom, _ := indexableIdiom(bestHit)
	switch bestHit.Op {
	case expr.OpEq:
		scan.RangeBegin, scan.RangeEnd = bestHit, bestHit
	case expr.OpGt, expr.OpGte:
		scan.RangeBegin = bestHit
	case expr.OpLt, expr.OpLte:
		scan.RangeEnd = bestHit
	default:
		residual = append(residual, bestHit)
	}
	_ = idiom

	remaining := rebuildConjunction(residual)
	if remaining == nil {
		return scan, nil
	}
	return &Operator{Tag: OpFilter, Cond: remaining, Residual: remaining, Children: []*Operator{scan}}, nil
}

func rebuildConjunction(cs []*expr.Expr) *expr.Expr {
	if len(cs) == 0 {
		return nil
	}
	out := cs[0]
	for _, c := range cs[1:] {
		out = expr.Bin(expr.OpAnd, out, c)
	}
	return out
}

// matchAccessPath detects a top-level MATCHES/KNN comparison and routes
// it to the named full-text or HNSW index (spec §4.4).
func matchAccessPath(where *expr.Expr, indexes []catalog.Index) (*Operator, bool) {
	if where.Tag != expr.TagBinary || where.Match == nil {
		return nil, false
	}
	switch where.Op {
	case expr.OpMatches:
		for _, idx := range indexes {
			if idx.Name == where.Match.IndexRef && idx.Kind.Tag == catalog.IndexFullText {
				return &Operator{
					Tag: OpFullTextScan, Index: idx.Name, MatchQuery: where.Right,
					Highlight: idx.Kind.FullText != nil && idx.Kind.FullText.Highlight,
				}, true
			}
		}
	case expr.OpKnn:
		for _, idx := range indexes {
			if idx.Name == where.Match.IndexRef && idx.Kind.Tag == catalog.IndexHnsw {
				return &Operator{
					Tag: OpKnnScan, Index: idx.Name, KnnVector: where.Right,
					K: where.Match.K, Ef: where.Match.Ef,
				}, true
			}
		}
	}
	return nil, false
}

