package exec

import (
	"context"

	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/catalog"
	"github.com/nexusdb/nexus/pkg/expr"
	"github.com/nexusdb/nexus/pkg/fn"
	"github.com/nexusdb/nexus/pkg/val"
)

// Evaluator walks an *expr.Expr tree against a row, resolving idioms,
// params, calls, and casts. It also implements val.Evaluator so
// pkg/val.Walk can resolve an Idiom's dynamic parts (WHERE filters,
// method calls, dynamic index expressions) the same way a SELECT's
// field projection does — no separate code path exists for the two
// (spec §4.1/§4.5 never distinguish "idiom evaluation inside an
// expression" from "idiom evaluation as a standalone projection").
type Evaluator struct {
	EC   *ExecutionContext
	Fns  *fn.Registry
	Deps *fn.Deps

	// Functions resolves a user-defined DEFINE FUNCTION body by name,
	// falling back when Fns has no builtin of that name. nil is valid —
	// callers that never DEFINE a function can leave it unset.
	Functions func(name string) (catalog.Function, bool, error)

	// Subquery runs a nested statement tree (TagSubquery's opaque
	// Statement) and returns its single result value. Executor.evaluator
	// leaves it nil, and a nil Subquery makes TagSubquery evaluate to
	// PlannerUnimplemented. Kept as a field rather than a method so
	// eval.go doesn't need to import statement.go's Script type.
	Subquery func(ec *ExecutionContext, stmt any, row val.Value) (val.Value, error)
}

// Eval evaluates e against row (the record bound as `$this`/the
// implicit idiom root) under ev.EC.
func (ev *Evaluator) Eval(e *expr.Expr, row val.Value) (val.Value, error) {
	if e == nil {
		return val.None{}, nil
	}
	switch e.Tag {
	case expr.TagLiteral:
		return e.Literal, nil

	case expr.TagIdiom:
		return ev.evalIdiom(e.Idiom, row)

	case expr.TagParam:
		if e.ParamName == "this" || e.ParamName == "" {
			return row, nil
		}
		v, ok := ev.EC.Params[e.ParamName]
		if !ok {
			return val.None{}, nil
		}
		return v, nil

	case expr.TagBinary:
		return ev.evalBinary(e, row)

	case expr.TagUnary:
		return ev.evalUnary(e, row)

	case expr.TagCall:
		return ev.evalCall(e, row)

	case expr.TagCast:
		v, err := ev.Eval(e.CastExpr, row)
		if err != nil {
			return nil, err
		}
		return val.CoerceTo(v, *e.CastKind)

	case expr.TagIf:
		cond, err := ev.Eval(e.Cond, row)
		if err != nil {
			return nil, err
		}
		if val.Truthy(cond) {
			return ev.Eval(e.Then, row)
		}
		if e.Else != nil {
			return ev.Eval(e.Else, row)
		}
		return val.None{}, nil

	case expr.TagClosure:
		return val.ClosureV{Params: e.ClosureParams, Body: e.Body}, nil

	case expr.TagSubquery:
		if ev.Subquery == nil {
			return nil, xerrors.PlannerUnimplemented
		}
		return ev.Subquery(ev.EC, e.Statement, row)

	case expr.TagRange:
		begin, err := ev.Eval(e.RangeBegin, row)
		if err != nil {
			return nil, err
		}
		end, err := ev.Eval(e.RangeEnd, row)
		if err != nil {
			return nil, err
		}
		return val.RangeV{StartKind: val.Inclusive, Start: begin, EndKind: val.Inclusive, End: end}, nil

	default:
		return nil, xerrors.New(xerrors.KindInternal, "exec: unknown expr tag")
	}
}

func (ev *Evaluator) evalIdiom(idiom val.Idiom, row val.Value) (val.Value, error) {
	paths, err := val.Walk(row, idiom, ev)
	if err != nil {
		return nil, err
	}
	switch len(paths) {
	case 0:
		return val.None{}, nil
	case 1:
		return paths[0].Value, nil
	default:
		out := make(val.Array, len(paths))
		for i, p := range paths {
			out[i] = p.Value
		}
		return out, nil
	}
}

func (ev *Evaluator) evalUnary(e *expr.Expr, row val.Value) (val.Value, error) {
	v, err := ev.Eval(e.Operand, row)
	if err != nil {
		return nil, err
	}
	switch e.UnaryOp {
	case expr.OpNot:
		return val.Bool(!val.Truthy(v)), nil
	case expr.OpNeg:
		n, ok := v.(val.Number)
		if !ok {
			return nil, xerrors.New(xerrors.KindTypeMismatch, "exec: unary - on non-number")
		}
		return n.Neg(), nil
	default:
		return nil, xerrors.New(xerrors.KindInternal, "exec: unknown unary op")
	}
}

func (ev *Evaluator) evalBinary(e *expr.Expr, row val.Value) (val.Value, error) {
	// AND/OR short-circuit: the right side must not be evaluated (and
	// may legitimately throw / be expensive) when the left already
	// decides the result.
	if e.Op == expr.OpAnd || e.Op == expr.OpOr {
		l, err := ev.Eval(e.Left, row)
		if err != nil {
			return nil, err
		}
		lt := val.Truthy(l)
		if e.Op == expr.OpAnd && !lt {
			return val.Bool(false), nil
		}
		if e.Op == expr.OpOr && lt {
			return val.Bool(true), nil
		}
		r, err := ev.Eval(e.Right, row)
		if err != nil {
			return nil, err
		}
		return val.Bool(val.Truthy(r)), nil
	}

	l, err := ev.Eval(e.Left, row)
	if err != nil {
		return nil, err
	}
	r, err := ev.Eval(e.Right, row)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case expr.OpAdd, expr.OpSub, expr.OpMul, expr.OpDiv, expr.OpRem:
		return evalArith(e.Op, l, r)
	case expr.OpEq:
		return val.Bool(val.Equal(l, r)), nil
	case expr.OpNeq:
		return val.Bool(!val.Equal(l, r)), nil
	case expr.OpLt:
		return val.Bool(val.Compare(l, r) < 0), nil
	case expr.OpLte:
		return val.Bool(val.Compare(l, r) <= 0), nil
	case expr.OpGt:
		return val.Bool(val.Compare(l, r) > 0), nil
	case expr.OpGte:
		return val.Bool(val.Compare(l, r) >= 0), nil
	case expr.OpContains:
		return val.Bool(arrayContains(l, r)), nil
	case expr.OpContainsNot:
		return val.Bool(!arrayContains(l, r)), nil
	case expr.OpInside:
		return val.Bool(arrayContains(r, l)), nil
	case expr.OpNotInside:
		return val.Bool(!arrayContains(r, l)), nil
	case expr.OpIntersects:
		return val.Bool(arraysIntersect(l, r)), nil
	case expr.OpMatches, expr.OpKnn:
		// Routed through an index by pkg/plan when one applies (spec
		// §4.4); reaching here means no index matched and this is the
		// residual predicate, which full-text/KNN operators don't
		// support evaluating row-by-row without the index's posting
		// lists, so planning must have pushed these down.
		return nil, xerrors.PlannerUnimplemented
	default:
		return nil, xerrors.New(xerrors.KindInternal, "exec: unknown binary op")
	}
}

func evalArith(op expr.BinOp, l, r val.Value) (val.Value, error) {
	ln, ok := l.(val.Number)
	if !ok {
		return nil, xerrors.New(xerrors.KindTypeMismatch, "exec: arithmetic on non-number")
	}
	rn, ok := r.(val.Number)
	if !ok {
		return nil, xerrors.New(xerrors.KindTypeMismatch, "exec: arithmetic on non-number")
	}
	switch op {
	case expr.OpAdd:
		return ln.Add(rn)
	case expr.OpSub:
		return ln.Sub(rn)
	case expr.OpMul:
		return ln.Mul(rn)
	case expr.OpDiv:
		return ln.Div(rn)
	case expr.OpRem:
		if rn.IsZero() {
			return nil, xerrors.New(xerrors.KindDivideByZero, "exec: % by zero")
		}
		return val.Int(int64(ln.AsFloat()) % int64(rn.AsFloat())), nil
	default:
		return nil, xerrors.New(xerrors.KindInternal, "exec: unknown arithmetic op")
	}
}

func arrayContains(haystack, needle val.Value) bool {
	arr, ok := haystack.(val.Array)
	if !ok {
		return false
	}
	for _, el := range arr {
		if val.Equal(el, needle) {
			return true
		}
	}
	return false
}

func arraysIntersect(a, b val.Value) bool {
	aa, ok := a.(val.Array)
	if !ok {
		return false
	}
	ba, ok := b.(val.Array)
	if !ok {
		return false
	}
	for _, x := range aa {
		for _, y := range ba {
			if val.Equal(x, y) {
				return true
			}
		}
	}
	return false
}

func (ev *Evaluator) evalCall(e *expr.Expr, row val.Value) (val.Value, error) {
	args := make([]val.Value, len(e.Args))
	for i, a := range e.Args {
		v, err := ev.Eval(a, row)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	if f, ok := ev.Fns.Lookup(e.FuncName); ok {
		_ = f
		return ev.Fns.Call(ev.ECContext(), ev.Deps, e.FuncName, args)
	}
	if ev.Functions != nil {
		if def, ok, err := ev.Functions(e.FuncName); err != nil {
			return nil, err
		} else if ok {
			return ev.callUserFunction(def, args, row)
		}
	}
	return nil, xerrors.New(xerrors.KindInvalidArguments, "exec: unknown function "+e.FuncName)
}

// callUserFunction evaluates a DEFINE FUNCTION body (def.Body, an
// *expr.Expr) with its declared parameters bound as $-params, falling
// through to the same evaluator rather than a separate interpreter.
func (ev *Evaluator) callUserFunction(def catalog.Function, args []val.Value, row val.Value) (val.Value, error) {
	body, ok := def.Body.(*expr.Expr)
	if !ok {
		return nil, xerrors.New(xerrors.KindInternal, "exec: function body is not an expr tree")
	}
	inner := ev.EC.Clone()
	for i, p := range def.Params {
		if i < len(args) {
			inner.Params[p.Name] = args[i]
		} else {
			inner.Params[p.Name] = val.None{}
		}
	}
	sub := &Evaluator{EC: inner, Fns: ev.Fns, Deps: ev.Deps, Functions: ev.Functions, Subquery: ev.Subquery}
	return sub.Eval(body, row)
}

// ECContext returns the context.Context bound to ev.EC, for fn.Registry
// calls (HTTP/crypto functions poll it for cancellation).
func (ev *Evaluator) ECContext() context.Context { return ev.EC.Ctx }

// EvalIndex implements val.Evaluator: a dynamic `arr[$i]`-style index
// expression.
func (ev *Evaluator) EvalIndex(e any, row val.Value) (val.Value, error) {
	ex, ok := e.(*expr.Expr)
	if !ok {
		return nil, xerrors.New(xerrors.KindInternal, "exec: index expr is not *expr.Expr")
	}
	return ev.Eval(ex, row)
}

// EvalWhere implements val.Evaluator: an idiom's `[WHERE ...]` filter
// part, evaluated with the candidate element bound as the row.
func (ev *Evaluator) EvalWhere(pred any, candidate val.Value) (bool, error) {
	ex, ok := pred.(*expr.Expr)
	if !ok {
		return false, xerrors.New(xerrors.KindInternal, "exec: where pred is not *expr.Expr")
	}
	v, err := ev.Eval(ex, candidate)
	if err != nil {
		return false, err
	}
	return val.Truthy(v), nil
}

// EvalMethod implements val.Evaluator: an idiom's `.method(args)` part
// (spec §3.3's Method/ClosureFieldCall), routed through the same
// function registry a TagCall expression uses.
func (ev *Evaluator) EvalMethod(name string, args []any, receiver val.Value) (val.Value, error) {
	argv := make([]val.Value, 0, len(args)+1)
	argv = append(argv, receiver)
	for _, a := range args {
		ex, ok := a.(*expr.Expr)
		if !ok {
			return nil, xerrors.New(xerrors.KindInternal, "exec: method arg is not *expr.Expr")
		}
		v, err := ev.Eval(ex, receiver)
		if err != nil {
			return nil, err
		}
		argv = append(argv, v)
	}
	if f, ok := ev.Fns.Lookup(name); ok {
		_ = f
		return ev.Fns.Call(ev.ECContext(), ev.Deps, name, argv)
	}
	return nil, xerrors.New(xerrors.KindInvalidArguments, "exec: unknown method "+name)
}
