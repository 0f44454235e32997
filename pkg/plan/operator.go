// Package plan implements the logical-to-physical planner of spec §4.4:
// it consumes an expression tree (pkg/expr) plus the current catalog
// scope (pkg/catalog) and emits an Operator tree pkg/exec runs. The
// planner is deliberately pragmatic — where a feature has no physical
// form yet it returns xerrors.PlannerUnsupported/PlannerUnimplemented
// so the executor can fall back to an interpreter, preserving full
// language coverage during incremental migration (spec §4.4).
package plan

import "github.com/nexusdb/nexus/pkg/expr"

// OperatorTag discriminates Operator's variants, grouped the way spec
// §4.4 groups them: Sources, Transforms, Mutations, Set ops, Control
// flow, Meta.
type OperatorTag uint8

const (
	// Sources
	OpTableScan OperatorTag = iota
	OpRecordIdLookup
	OpIndexRangeScan
	OpUnionIndexScan
	OpFullTextScan
	OpKnnScan

	// Transforms
	OpFilter
	OpProject
	OpComputeFields
	OpSort
	OpLimit
	OpStart
	OpGroupBy
	OpFetch
	OpDistinct

	// Mutations
	OpCreate
	OpUpdate
	OpUpsert
	OpDelete
	OpRelate
	OpInsert

	// Set ops
	OpUnion

	// Control flow
	OpSequence
	OpIfElse
	OpForEach

	// Meta
	OpInfo
	OpUse
	OpLet
	OpTxControl

	// DDL
	OpDefine
	OpRemove
)

// EntityKind names which catalog entity an OpDefine/OpRemove operator
// targets (spec §3.4's DEFINE/REMOVE statement list). View has no kind
// of its own: a view is a ViewSpec embedded in the owning Table, not a
// separately stored entity, so defining one goes through EntityTable.
type EntityKind uint8

const (
	EntityNamespace EntityKind = iota
	EntityDatabase
	EntityTable
	EntityField
	EntityIndex
	EntityAnalyzer
	EntityAccess
	EntityUser
	EntityFunction
	EntityParam
	EntityEvent
	EntityBucket
	EntityApi
	EntityConfig
)

// SortKey is one ORDER BY term: an idiom path plus direction, matching
// val.Compare's (idiom, collate, numeric) signature (spec §4.1).
type SortKey struct {
	Path    *expr.Expr // TagIdiom
	Desc    bool
	Collate bool
	Numeric bool
}

// Operator is one node of the physical plan (spec §4.4). Like
// pkg/expr.Expr and pkg/val.Kind/Part, it is one struct with a tag
// discriminant rather than an interface hierarchy, so pkg/exec can
// switch on Tag directly.
type Operator struct {
	Tag      OperatorTag
	Children []*Operator

	// OpTableScan / OpIndexRangeScan / OpFullTextScan / OpKnnScan /
	// mutation ops: the table this operator reads or writes.
	Table string

	// OpRecordIdLookup
	RecordIDs []*expr.Expr

	// OpIndexRangeScan / OpUnionIndexScan's branches / OpFullTextScan /
	// OpKnnScan: the index this operator is bound to.
	Index string

	// OpIndexRangeScan: the comparison conjunct (e.g. `age > 30`) that
	// bounds the scan from below (RangeBegin) or above (RangeEnd); an
	// equality sets both. nil means unbounded on that side.
	RangeBegin, RangeEnd *expr.Expr

	// OpFullTextScan
	MatchQuery *expr.Expr
	Highlight  bool

	// OpKnnScan
	KnnVector *expr.Expr
	K, Ef     uint32

	// OpFilter / OpIfElse's condition
	Cond *expr.Expr

	// OpProject / OpComputeFields
	Fields []*expr.Expr

	// OpSort
	SortKeys []SortKey

	// OpLimit / OpStart
	Count *expr.Expr

	// OpGroupBy
	GroupKeys []*expr.Expr
	Aggregates []*expr.Expr

	// Mutation ops: the fields/values being written.
	SetFields map[string]*expr.Expr

	// OpRelate: the from/to record expressions and the edge table.
	RelateFrom, RelateTo *expr.Expr

	// OpIfElse: Children[0] is evaluated when Cond is true; Children[1]
	// (optional) when false.

	// OpForEach: the idiom being iterated and the loop variable name.
	ForEachVar  string
	ForEachOver *expr.Expr

	// OpInfo: which scope this INFO targets (ROOT/NS/DB/TABLE/USER/...).
	InfoScope string

	// OpUse / OpLet: target namespace/database or bound variable name.
	Name string
	Value *expr.Expr

	// OpDefine / OpRemove: which catalog entity kind (Table/Field/Index/
	// User/...), its name, and — for OpDefine only — the catalog.* value
	// to write (e.g. catalog.Table, catalog.Field). EntityBody is typed
	// any rather than catalog.X so this package never imports pkg/catalog,
	// the same avoidance pattern pkg/catalog/entity.go itself uses for
	// ViewSpec.Expr/Field.Computed/Field.Value/Field.Assert/Field.Default/
	// Permission.Cond. OpRemove leaves EntityBody nil.
	EntityKind EntityKind
	EntityName string
	EntityBody any

	// Residual is any predicate that could not be pushed into an index
	// scan and must still be evaluated by an enclosing OpFilter (spec
	// §4.4: "emit a TableScan and push the residual predicate into a
	// Filter").
	Residual *expr.Expr
}

// Leaf builds a childless operator.
func Leaf(tag OperatorTag) *Operator { return &Operator{Tag: tag} }

// Wrap builds an operator with the given children, in order.
func Wrap(tag OperatorTag, children ...*Operator) *Operator {
	return &Operator{Tag: tag, Children: children}
}
