// Package expr implements the expression-tree shape of spec §3.3/§6.1:
// the normative in-memory form the core receives an already-parsed
// query as. No parser lives in this module (per §1's "deliberately out
// of scope" boundary and §6.1) — callers and tests build trees directly
// through the builder functions below (Bin, IdiomExpr, Lit, ...), the same
// way the spec's own worked examples assume a pre-built tree.
//
// Expr follows pkg/val's Kind/Part shape: one struct carrying a
// discriminant tag plus the fields relevant to that variant, rather
// than an interface-per-variant hierarchy, so pkg/plan/pkg/exec can
// switch on Tag without a type assertion per node.
package expr

import (
	"fmt"
	"strings"

	"github.com/nexusdb/nexus/pkg/val"
)

// Tag discriminates Expr's variants.
type Tag uint8

const (
	TagLiteral Tag = iota
	TagIdiom
	TagParam
	TagBinary
	TagUnary
	TagCall
	TagCast
	TagIf
	TagClosure
	TagSubquery
	TagRange
)

// BinOp enumerates the binary operators an Expr.Binary node carries:
// arithmetic, comparison, logical, and the set/match operators named in
// spec §4.1 ("CONTAINS, INSIDE, INTERSECTS, …") and §4.4 ("MATCHES @@",
// "<|k,ef|> KNN").
type BinOp uint8

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpRem
	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpAnd
	OpOr
	OpContains
	OpContainsNot
	OpInside
	OpNotInside
	OpIntersects
	OpMatches
	OpKnn
)

func (op BinOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpRem:
		return "%"
	case OpEq:
		return "="
	case OpNeq:
		return "!="
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	case OpContains:
		return "CONTAINS"
	case OpContainsNot:
		return "CONTAINSNOT"
	case OpInside:
		return "INSIDE"
	case OpNotInside:
		return "NOTINSIDE"
	case OpIntersects:
		return "INTERSECTS"
	case OpMatches:
		return "@@"
	case OpKnn:
		return "<|knn|>"
	default:
		return "?"
	}
}

// UnaryOp enumerates Expr.Unary's operators.
type UnaryOp uint8

const (
	OpNot UnaryOp = iota
	OpNeg
)

func (op UnaryOp) String() string {
	if op == OpNeg {
		return "-"
	}
	return "!"
}

// MatchOptions carries the optional ref/knn parameters of an
// OpMatches/OpKnn binary node: the full-text index or HNSW field the
// planner should route the comparison through, and KNN's k/ef tuning
// (spec §4.4: "For MATCHES @@ with a ref, use the named full-text
// index"; "For <|k,ef|> KNN, use the HNSW index of the referenced
// field").
type MatchOptions struct {
	IndexRef string
	K        uint32
	Ef       uint32
}

// Expr is one node of the expression tree (spec §3.3/§6.1).
type Expr struct {
	Tag Tag

	// TagLiteral
	Literal val.Value

	// TagIdiom
	Idiom val.Idiom

	// TagParam
	ParamName string

	// TagBinary
	Op    BinOp
	Left  *Expr
	Right *Expr
	Match *MatchOptions // set iff Op is OpMatches or OpKnn

	// TagUnary
	UnaryOp   UnaryOp
	Operand   *Expr

	// TagCall
	FuncName string
	Args     []*Expr

	// TagCast
	CastKind *val.Kind
	CastExpr *Expr

	// TagIf
	Cond *Expr
	Then *Expr
	Else *Expr // nil means no ELSE branch

	// TagClosure: parameter names plus a body, opaque to pkg/expr itself
	// (pkg/exec supplies the closure environment and evaluates Body).
	ClosureParams []string
	Body          *Expr

	// TagSubquery: an opaque nested statement (e.g. a SELECT used as a
	// value); typed any to avoid pkg/expr depending on whatever package
	// eventually models full statements (mirrors pkg/catalog's ViewSpec.Expr
	// avoidance of a pkg/expr import before this package existed).
	Statement any

	// TagRange
	RangeBegin, RangeEnd *Expr
}

// Cond is Expr used where the spec calls out a boolean predicate
// specifically (WHERE clauses, permission conditions, event triggers).
// It is the same type; the alias only documents intent at call sites.
type Cond = Expr

func Lit(v val.Value) *Expr { return &Expr{Tag: TagLiteral, Literal: v} }

func IdiomExpr(parts ...val.Part) *Expr { return &Expr{Tag: TagIdiom, Idiom: val.Idiom(parts)} }

func Param(name string) *Expr { return &Expr{Tag: TagParam, ParamName: name} }

func Bin(op BinOp, l, r *Expr) *Expr { return &Expr{Tag: TagBinary, Op: op, Left: l, Right: r} }

// BinMatch builds a MATCHES/KNN binary node carrying the index
// selection hint the planner needs (spec §4.4).
func BinMatch(op BinOp, l, r *Expr, m MatchOptions) *Expr {
	return &Expr{Tag: TagBinary, Op: op, Left: l, Right: r, Match: &m}
}

func Unary(op UnaryOp, e *Expr) *Expr { return &Expr{Tag: TagUnary, UnaryOp: op, Operand: e} }

func Call(name string, args ...*Expr) *Expr { return &Expr{Tag: TagCall, FuncName: name, Args: args} }

func Cast(k val.Kind, e *Expr) *Expr { return &Expr{Tag: TagCast, CastKind: &k, CastExpr: e} }

func If(cond, then, els *Expr) *Expr { return &Expr{Tag: TagIf, Cond: cond, Then: then, Else: els} }

func Closure(params []string, body *Expr) *Expr {
	return &Expr{Tag: TagClosure, ClosureParams: params, Body: body}
}

func Subquery(stmt any) *Expr { return &Expr{Tag: TagSubquery, Statement: stmt} }

func RangeExpr(begin, end *Expr) *Expr { return &Expr{Tag: TagRange, RangeBegin: begin, RangeEnd: end} }

// IsLiteral reports whether e is a fully-constant literal node — the
// degenerate case pkg/plan's constant-folding rewrite pass looks for
// (SPEC_FULL.md §9's planner rewrite pass).
func (e *Expr) IsLiteral() bool { return e != nil && e.Tag == TagLiteral }

func (e *Expr) String() string {
	if e == nil {
		return "NONE"
	}
	switch e.Tag {
	case TagLiteral:
		if e.Literal == nil {
			return "NULL"
		}
		return e.Literal.String()
	case TagIdiom:
		return e.Idiom.String()
	case TagParam:
		return "$" + e.ParamName
	case TagBinary:
		return fmt.Sprintf("(%s %s %s)", e.Left, e.Op, e.Right)
	case TagUnary:
		return fmt.Sprintf("%s%s", e.UnaryOp, e.Operand)
	case TagCall:
		args := make([]string, len(e.Args))
		for i, a := range e.Args {
			args[i] = a.String()
		}
		return fmt.Sprintf("%s(%s)", e.FuncName, strings.Join(args, ", "))
	case TagCast:
		return fmt.Sprintf("<%s>%s", e.CastKind, e.CastExpr)
	case TagIf:
		if e.Else != nil {
			return fmt.Sprintf("IF %s THEN %s ELSE %s", e.Cond, e.Then, e.Else)
		}
		return fmt.Sprintf("IF %s THEN %s", e.Cond, e.Then)
	case TagClosure:
		return fmt.Sprintf("|%s| %s", strings.Join(e.ClosureParams, ", "), e.Body)
	case TagSubquery:
		return "(subquery)"
	case TagRange:
		return fmt.Sprintf("%s..%s", e.RangeBegin, e.RangeEnd)
	default:
		return "?expr"
	}
}
