package session

// Action is the operation an Authorizer is asked to permit.
type Action uint8

const (
	ActionSelect Action = iota
	ActionCreate
	ActionUpdate
	ActionDelete
	ActionDefine
	ActionRemove
)

// ResourceKind is the catalog entity class an Action targets. pkg/exec
// resolves a query's access paths to one of these per statement before
// consulting an Authorizer.
type ResourceKind uint8

const (
	ResourceNamespace ResourceKind = iota
	ResourceDatabase
	ResourceTable
	ResourceRecord
	ResourceFunction
	ResourceBucket
)

// Authorizer is the resolved IAM decision function spec §1's Non-goals
// names in place of an IAM policy language: "the core consumes a
// resolved Action×ResourceKind decision function". pkg/exec calls this
// once per statement (and, for per-record SELECT permissions, the
// catalog.Permission pipeline — a distinct, finer-grained check this
// interface doesn't replace) rather than evaluating roles/policies
// itself.
type Authorizer interface {
	Authorize(st State, action Action, kind ResourceKind, name string) bool
}

// AllowAll is the trivial Authorizer: every action on every resource is
// permitted. Useful for embedding this module without a surrounding
// IAM layer, and for tests that don't exercise authorization.
type AllowAll struct{}

func (AllowAll) Authorize(State, Action, ResourceKind, string) bool { return true }
