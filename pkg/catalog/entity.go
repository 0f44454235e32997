// Package catalog implements the schema entities of spec §3.4: each
// DEFINE statement produces one of these, REMOVE deletes it, and reads
// go through a cached view (Cache) whose coherency rides on the
// underlying KV's snapshot isolation.
//
// Every entity has a revisioned encoding — a JSON envelope (codec.go)
// whose revision number never shifts across releases, mirroring the teacher's
// DBSchemaVersion convention (erigon-lib/kv/tables.go: "DBSchemaVersion
// versions list" with a stable Major/Minor/Patch triple) generalized
// from one whole-database version to one small revision byte per
// entity, since catalog entities evolve independently of each other.
package catalog

import (
	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/val"
)

// Revision is the wire/storage schema version of one encoded entity.
// Bump when an entity gains fields; never renumber existing values.
type Revision uint8

// Namespace is the top-level scoping entity (spec §3.4).
type Namespace struct {
	NamespaceID uint32
	Name        string
}

func (Namespace) Revision() Revision { return 1 }

// ChangeFeedSpec configures a database or table's mutation log
// retention (spec §3.4, §9b).
type ChangeFeedSpec struct {
	ExpirySeconds uint64
	StoreOriginal bool
}

// Database is namespace-scoped (spec §3.4).
type Database struct {
	NamespaceID uint32
	DatabaseID  uint32
	Name        string
	ChangeFeed  *ChangeFeedSpec
	Strict      bool
}

func (Database) Revision() Revision { return 1 }

// TableType distinguishes a plain record table from a graph-edge
// ("Relation") table (spec §3.4: "A Relation-typed table is a graph
// edge").
type TableType uint8

const (
	TableAny TableType = iota
	TableNormal
	TableRelation
)

// RelationSpec names the two tables a Relation table connects.
type RelationSpec struct {
	From string
	To   string
}

// ViewSpec defines a computed (SELECT-backed) table (spec §3.4).
type ViewSpec struct {
	// Expr holds the view's defining SELECT expression tree. Typed any
	// to avoid pkg/catalog depending on pkg/expr (pkg/expr's builder
	// types aren't needed to store/transport a catalog entity — only
	// pkg/plan ever interprets this field), the same avoidance pattern
	// pkg/val.Walk uses for dynamic parts.
	Expr any
}

// PermissionKind is one access-control disposition for a table or
// field operation (spec §4.5 "Permission pipeline").
type PermissionKind uint8

const (
	PermFull PermissionKind = iota
	PermNone
	PermConditional
)

// Permission pairs a disposition with its conditional expression (only
// meaningful when Kind == PermConditional).
type Permission struct {
	Kind PermissionKind
	Cond any // an expr tree; see ViewSpec.Expr for why this is `any`
}

// Permissions is the per-operation permission set a table or field
// carries (spec §3.4/§4.5): select/create/update/delete, each
// independently Full/None/Conditional.
type Permissions struct {
	Select Permission
	Create Permission
	Update Permission
	Delete Permission
}

func defaultPermissions() Permissions {
	full := Permission{Kind: PermFull}
	return Permissions{Select: full, Create: full, Update: full, Delete: full}
}

// Table is the central schema entity (spec §3.4).
type Table struct {
	Name       string
	TableID    uint32
	Type       TableType
	Relation   *RelationSpec // set iff Type == TableRelation
	Enforced   bool
	Schemaless bool
	ChangeFeed *ChangeFeedSpec
	Permissions Permissions
	View       *ViewSpec
}

func (Table) Revision() Revision { return 1 }

func NewTable(name string, id uint32) Table {
	return Table{Name: name, TableID: id, Type: TableAny, Permissions: defaultPermissions()}
}

// Field describes one schema-enforced or computed field (spec §3.4).
// Computed/Value/Assert/Default hold expr-tree fragments; typed any for
// the same reason as ViewSpec.Expr.
type Field struct {
	Name        val.Idiom
	Kind        *val.Kind
	Computed    any
	Value       any
	Assert      any
	Default     any
	Permissions Permissions
	Reference   *Ref
}

func (Field) Revision() Revision { return 1 }

// Ref describes a field's reference-integrity relationship to another
// table (spec §4.8's "ref lookup"): ON DELETE behavior when the
// referenced record disappears.
type Ref struct {
	Table    string
	OnDelete RefOnDelete
}

type RefOnDelete uint8

const (
	RefReject RefOnDelete = iota
	RefCascade
	RefIgnore
	RefUnset
)

// IndexKindTag discriminates Index.Kind's variants.
type IndexKindTag uint8

const (
	IndexNonUnique IndexKindTag = iota
	IndexUnique
	IndexFullText
	IndexHnsw
	IndexCount
)

// FullTextParams configures an inverted full-text index (spec §4.7).
type FullTextParams struct {
	Analyzer  string
	Highlight bool
	Scoring   FullTextScoring
	BM25K1    float64
	BM25B     float64
}

type FullTextScoring uint8

const (
	ScoringBM25 FullTextScoring = iota
	ScoringVS
)

// HnswDistance is the distance metric an HNSW index searches under
// (spec §4.6).
type HnswDistance uint8

const (
	DistanceEuclidean HnswDistance = iota
	DistanceCosine
	DistanceManhattan
	DistanceMinkowski
)

// HnswVectorType is the stored element type of an HNSW index's vectors.
type HnswVectorType uint8

const (
	VectorF32 HnswVectorType = iota
	VectorF64
	VectorI16
	VectorI32
	VectorI64
)

// HnswParams configures an HNSW vector index (spec §4.6). Zero M0/Ml
// mean "derive from M" (M0 = 2*M, Ml = 1/ln(M)) — pkg/index/hnsw
// resolves the defaults at build time rather than baking them into the
// stored catalog entity, so an index built before a default changed
// keeps behaving the way it was actually configured.
type HnswParams struct {
	Dimension             uint32
	Distance              HnswDistance
	MinkowskiP            float64
	VectorType            HnswVectorType
	M                     uint32
	M0                    uint32
	EfConstruction        uint32
	Ml                    float64
	ExtendCandidates      bool
	KeepPrunedConnections bool
}

// IndexKind is the discriminated union over an index's physical form.
type IndexKind struct {
	Tag      IndexKindTag
	FullText *FullTextParams // set iff Tag == IndexFullText
	Hnsw     *HnswParams     // set iff Tag == IndexHnsw
	CountOf  any             // set iff Tag == IndexCount; an optional expr Cond
}

// Index is a secondary index definition (spec §3.4).
type Index struct {
	IndexID uint32
	Name    string
	Fields  []val.Idiom
	Kind    IndexKind
}

func (Index) Revision() Revision { return 1 }

// AccessKind discriminates Access's JWT-verifier variants (spec §3.4).
type AccessKind uint8

const (
	AccessKey AccessKind = iota
	AccessJwks
	AccessRecord
	AccessBearer
)

type RecordAccessSpec struct {
	SignupExpr any
	SigninExpr any
	JwtAlg     string
	JwtKey     string
}

// Access is a JWT verifier or record-signup/signin authenticator (spec
// §3.4).
type Access struct {
	Name   string
	Kind   AccessKind
	Alg    string // AccessKey
	Key    string // AccessKey
	JwksURL string // AccessJwks
	Issuer  string
	Record  *RecordAccessSpec // AccessRecord
}

func (Access) Revision() Revision { return 1 }

// AnalyzerStage is one tokenizer or filter stage in an Analyzer's
// pipeline (spec §3.4).
type AnalyzerStage struct {
	Name   string
	Params map[string]string
}

// Analyzer is a named tokenizer+filter pipeline producing normalized
// terms for full-text indexing (spec §3.4/§4.7).
type Analyzer struct {
	Name       string
	Tokenizer  AnalyzerStage
	Filters    []AnalyzerStage
}

func (Analyzer) Revision() Revision { return 1 }

// Event is a table-scoped trigger (spec §3.4): fires When (an expr
// Cond) after a WriteKind mutation, executing Then (a statement tree).
type Event struct {
	Name      string
	When      any
	Then      any
	WriteKind WriteKind
}

type WriteKind uint8

const (
	WriteCreate WriteKind = iota
	WriteUpdate
	WriteDelete
)

func (Event) Revision() Revision { return 1 }

// Function is a user-defined scalar function (spec §3.4/§12): a named,
// typed-parameter body evaluated like a built-in.
type Function struct {
	Name   string
	Params []FunctionParam
	Body   any
}

type FunctionParam struct {
	Name string
	Kind *val.Kind
}

func (Function) Revision() Revision { return 1 }

// Param is a database-scoped named constant (spec §3.4), resolved the
// same way a session variable is but persisted in the catalog.
type Param struct {
	Name  string
	Value val.Value
}

func (Param) Revision() Revision { return 1 }

// User is a namespace- or root-scoped authentication principal (spec
// §3.4).
type User struct {
	Name         string
	PasswordHash string
	Roles        []string
}

func (User) Revision() Revision { return 1 }

// Bucket is an object-store namespace backing pkg/bucket (spec §3.4,
// §6.5).
type Bucket struct {
	Name     string
	Backend  string // "" selects the default pkg/bucket/kvstore backend
	ReadOnly bool
}

func (Bucket) Revision() Revision { return 1 }

// Api is a database-scoped HTTP route definition (spec §3.4): exposes a
// statement tree at a path, supplementing the core's native protocol
// surface.
type Api struct {
	Path   string
	Method string
	Body   any
}

func (Api) Revision() Revision { return 1 }

// Config is a free-form database-scoped configuration blob (spec §3.4)
// — e.g. GraphQL exposure toggles — stored as a Value so new config
// keys never require a catalog schema migration.
type Config struct {
	Name  string
	Value val.Value
}

func (Config) Revision() Revision { return 1 }

func errNotFound(kind xerrors.Kind, what string) error {
	return xerrors.New(kind, "catalog: "+what+" not found")
}
