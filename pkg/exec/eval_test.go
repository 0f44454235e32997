package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusdb/nexus/pkg/expr"
	"github.com/nexusdb/nexus/pkg/fn"
	"github.com/nexusdb/nexus/pkg/val"
)

func newEvalFixture() *Evaluator {
	ec := &ExecutionContext{
		Params: map[string]val.Value{"age_limit": val.Int(18)},
		Ctx:    context.Background(),
	}
	return &Evaluator{EC: ec, Fns: fn.Default(), Deps: &fn.Deps{}}
}

func TestEvalLiteralAndArith(t *testing.T) {
	ev := newEvalFixture()
	e := expr.Bin(expr.OpAdd, expr.Lit(val.Int(2)), expr.Lit(val.Int(3)))
	v, err := ev.Eval(e, val.None{})
	require.NoError(t, err)
	require.Equal(t, val.Int(5), v)
}

func TestEvalRemainder(t *testing.T) {
	ev := newEvalFixture()
	e := expr.Bin(expr.OpRem, expr.Lit(val.Int(10)), expr.Lit(val.Int(3)))
	v, err := ev.Eval(e, val.None{})
	require.NoError(t, err)
	require.Equal(t, val.Int(1), v)
}

func TestEvalRemainderByZero(t *testing.T) {
	ev := newEvalFixture()
	e := expr.Bin(expr.OpRem, expr.Lit(val.Int(10)), expr.Lit(val.Int(0)))
	_, err := ev.Eval(e, val.None{})
	require.Error(t, err)
}

func TestEvalParamLookup(t *testing.T) {
	ev := newEvalFixture()
	v, err := ev.Eval(expr.Param("age_limit"), val.None{})
	require.NoError(t, err)
	require.Equal(t, val.Int(18), v)
}

func TestEvalParamMissingYieldsNone(t *testing.T) {
	ev := newEvalFixture()
	v, err := ev.Eval(expr.Param("nope"), val.None{})
	require.NoError(t, err)
	require.Equal(t, val.None{}, v)
}

func TestEvalIdiomField(t *testing.T) {
	ev := newEvalFixture()
	row := val.Object{"name": val.Str("ferris")}
	v, err := ev.Eval(expr.IdiomExpr(val.FieldPart("name")), row)
	require.NoError(t, err)
	require.Equal(t, val.Str("ferris"), v)
}

func TestEvalAndShortCircuits(t *testing.T) {
	ev := newEvalFixture()
	// right side divides by zero; AND must not evaluate it once left is false
	e := expr.Bin(expr.OpAnd, expr.Lit(val.Bool(false)),
		expr.Bin(expr.OpDiv, expr.Lit(val.Int(1)), expr.Lit(val.Int(0))))
	v, err := ev.Eval(e, val.None{})
	require.NoError(t, err)
	require.Equal(t, val.Bool(false), v)
}

func TestEvalOrShortCircuits(t *testing.T) {
	ev := newEvalFixture()
	e := expr.Bin(expr.OpOr, expr.Lit(val.Bool(true)),
		expr.Bin(expr.OpDiv, expr.Lit(val.Int(1)), expr.Lit(val.Int(0))))
	v, err := ev.Eval(e, val.None{})
	require.NoError(t, err)
	require.Equal(t, val.Bool(true), v)
}

func TestEvalContainsAndInside(t *testing.T) {
	ev := newEvalFixture()
	arr := expr.Lit(val.Array{val.Int(1), val.Int(2), val.Int(3)})
	two := expr.Lit(val.Int(2))
	ten := expr.Lit(val.Int(10))

	v, err := ev.Eval(expr.Bin(expr.OpContains, arr, two), val.None{})
	require.NoError(t, err)
	require.Equal(t, val.Bool(true), v)

	v, err = ev.Eval(expr.Bin(expr.OpContains, arr, ten), val.None{})
	require.NoError(t, err)
	require.Equal(t, val.Bool(false), v)

	v, err = ev.Eval(expr.Bin(expr.OpInside, two, arr), val.None{})
	require.NoError(t, err)
	require.Equal(t, val.Bool(true), v)
}

func TestEvalIntersects(t *testing.T) {
	ev := newEvalFixture()
	a := expr.Lit(val.Array{val.Int(1), val.Int(2)})
	b := expr.Lit(val.Array{val.Int(2), val.Int(3)})
	v, err := ev.Eval(expr.Bin(expr.OpIntersects, a, b), val.None{})
	require.NoError(t, err)
	require.Equal(t, val.Bool(true), v)
}

func TestEvalIfElse(t *testing.T) {
	ev := newEvalFixture()
	e := expr.If(expr.Lit(val.Bool(true)), expr.Lit(val.Str("yes")), expr.Lit(val.Str("no")))
	v, err := ev.Eval(e, val.None{})
	require.NoError(t, err)
	require.Equal(t, val.Str("yes"), v)
}

func TestEvalCastIntToFloat(t *testing.T) {
	ev := newEvalFixture()
	v, err := ev.Eval(expr.Cast(val.FloatK, expr.Lit(val.Int(42))), val.None{})
	require.NoError(t, err)
	require.Equal(t, val.Float(42), v)
}

func TestEvalCallBuiltin(t *testing.T) {
	ev := newEvalFixture()
	e := expr.Call("array::len", expr.Lit(val.Array{val.Int(1), val.Int(2)}))
	v, err := ev.Eval(e, val.None{})
	require.NoError(t, err)
	require.Equal(t, val.Int(2), v)
}

func TestEvalUnknownFunctionErrors(t *testing.T) {
	ev := newEvalFixture()
	_, err := ev.Eval(expr.Call("nope::nope"), val.None{})
	require.Error(t, err)
}
