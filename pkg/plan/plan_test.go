package plan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusdb/nexus/pkg/catalog"
	"github.com/nexusdb/nexus/pkg/expr"
	"github.com/nexusdb/nexus/pkg/val"
)

func ageField() *expr.Expr { return expr.IdiomExpr(val.FieldPart("age")) }

func ageIndex() catalog.Index {
	return catalog.Index{Name: "age_idx", Fields: []val.Idiom{{val.FieldPart("age")}}}
}

func TestRewriteFoldsConstantArithmetic(t *testing.T) {
	require := require.New(t)
	e := expr.Bin(expr.OpAdd, expr.Lit(val.Int(2)), expr.Lit(val.Int(3)))
	out := Rewrite(e)
	require.True(out.IsLiteral())
	n := out.Literal.(val.Number)
	v, ok := n.AsInt()
	require.True(ok)
	require.EqualValues(5, v)
}

func TestRewriteFoldsConstantComparison(t *testing.T) {
	require := require.New(t)
	e := expr.Bin(expr.OpGt, expr.Lit(val.Int(5)), expr.Lit(val.Int(3)))
	out := Rewrite(e)
	require.True(out.IsLiteral())
	require.Equal(val.Bool(true), out.Literal)
}

func TestRewriteLeavesNonLiteralBinaryIntact(t *testing.T) {
	require := require.New(t)
	e := expr.Bin(expr.OpGt, ageField(), expr.Lit(val.Int(18)))
	out := Rewrite(e)
	require.Equal(expr.TagBinary, out.Tag)
	require.Equal(expr.TagIdiom, out.Left.Tag)
}

func TestRewriteDoesNotFoldDivisionByZero(t *testing.T) {
	require := require.New(t)
	e := expr.Bin(expr.OpDiv, expr.Lit(val.Int(1)), expr.Lit(val.Int(0)))
	out := Rewrite(e)
	require.Equal(expr.TagBinary, out.Tag, "a folding error must leave the node for evaluation, not panic or silently drop it")
}

func TestPlanUsesIndexRangeScanForEqualityOnIndexedField(t *testing.T) {
	require := require.New(t)
	table := catalog.NewTable("person", 1)
	where := expr.Bin(expr.OpEq, ageField(), expr.Lit(val.Int(30)))
	op, err := Plan(table, []catalog.Index{ageIndex()}, where)
	require.NoError(err)
	require.Equal(OpIndexRangeScan, op.Tag)
	require.Equal("age_idx", op.Index)
}

func TestPlanFallsBackToTableScanFilterWithoutIndex(t *testing.T) {
	require := require.New(t)
	table := catalog.NewTable("person", 1)
	where := expr.Bin(expr.OpEq, ageField(), expr.Lit(val.Int(30)))
	op, err := Plan(table, nil, where)
	require.NoError(err)
	require.Equal(OpFilter, op.Tag)
	require.Len(op.Children, 1)
	require.Equal(OpTableScan, op.Children[0].Tag)
}

func TestPlanSplitsTopLevelOrIntoUnionIndexScan(t *testing.T) {
	require := require.New(t)
	table := catalog.NewTable("person", 1)
	where := expr.Bin(expr.OpOr,
		expr.Bin(expr.OpEq, ageField(), expr.Lit(val.Int(30))),
		expr.Bin(expr.OpEq, ageField(), expr.Lit(val.Int(40))),
	)
	op, err := Plan(table, []catalog.Index{ageIndex()}, where)
	require.NoError(err)
	require.Equal(OpUnionIndexScan, op.Tag)
	require.Len(op.Children, 2)
	require.Equal(OpIndexRangeScan, op.Children[0].Tag)
	require.Equal(OpIndexRangeScan, op.Children[1].Tag)
}

func TestPlanRoutesMatchesToFullTextIndex(t *testing.T) {
	require := require.New(t)
	table := catalog.NewTable("article", 1)
	idx := catalog.Index{Name: "body_fts", Kind: catalog.IndexKind{Tag: catalog.IndexFullText, FullText: &catalog.FullTextParams{Highlight: true}}}
	where := expr.BinMatch(expr.OpMatches, expr.IdiomExpr(val.FieldPart("body")), expr.Lit(val.Str("hello")),
		expr.MatchOptions{IndexRef: "body_fts"})
	op, err := Plan(table, []catalog.Index{idx}, where)
	require.NoError(err)
	require.Equal(OpFullTextScan, op.Tag)
	require.True(op.Highlight)
}

func TestPlanRoutesKnnToHnswIndex(t *testing.T) {
	require := require.New(t)
	table := catalog.NewTable("doc", 1)
	idx := catalog.Index{Name: "embedding_idx", Kind: catalog.IndexKind{Tag: catalog.IndexHnsw, Hnsw: &catalog.HnswParams{Dimension: 4}}}
	where := expr.BinMatch(expr.OpKnn, expr.IdiomExpr(val.FieldPart("embedding")), expr.Lit(val.Array{}),
		expr.MatchOptions{IndexRef: "embedding_idx", K: 5, Ef: 50})
	op, err := Plan(table, []catalog.Index{idx}, where)
	require.NoError(err)
	require.Equal(OpKnnScan, op.Tag)
	require.EqualValues(5, op.K)
}

func TestPlanResidualConjunctStaysAsFilterOverIndexScan(t *testing.T) {
	require := require.New(t)
	table := catalog.NewTable("person", 1)
	where := expr.Bin(expr.OpAnd,
		expr.Bin(expr.OpEq, ageField(), expr.Lit(val.Int(30))),
		expr.Bin(expr.OpEq, expr.IdiomExpr(val.FieldPart("active")), expr.Lit(val.Bool(true))),
	)
	op, err := Plan(table, []catalog.Index{ageIndex()}, where)
	require.NoError(err)
	require.Equal(OpFilter, op.Tag)
	require.Equal(OpIndexRangeScan, op.Children[0].Tag)
}

func TestPlanNilWhereIsTableScan(t *testing.T) {
	require := require.New(t)
	table := catalog.NewTable("person", 1)
	op, err := Plan(table, nil, nil)
	require.NoError(err)
	require.Equal(OpTableScan, op.Tag)
}
