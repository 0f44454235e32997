// Package exec implements the query-execution core of spec §4.5: it
// plans (via pkg/plan), evaluates expressions (pkg/expr) against
// records, runs the permission pipeline of spec §4.5, and drives every
// storage-facing operator (pkg/catalog, pkg/graph, pkg/index/*,
// pkg/changefeed, pkg/live) to completion. Executor is the concrete
// type pkg/session.Executor expects.
package exec

import (
	"context"
	"sync"
	"time"

	"github.com/nexusdb/nexus/pkg/catalog"
	"github.com/nexusdb/nexus/pkg/changefeed"
	"github.com/nexusdb/nexus/pkg/kv"
	"github.com/nexusdb/nexus/pkg/live"
	"github.com/nexusdb/nexus/pkg/session"
	"github.com/nexusdb/nexus/pkg/val"
)

// RequiredContext is the minimum catalog scope a statement needs
// resolved before it can run (spec §4.5: "required_context() returns
// one of Root/Namespace/Database").
type RequiredContext uint8

const (
	RequireRoot RequiredContext = iota
	RequireNamespace
	RequireDatabase
)

// Max promotes c to whichever of c/o demands more scope.
func (c RequiredContext) Max(o RequiredContext) RequiredContext {
	if o > c {
		return o
	}
	return c
}

// ExecutionContext carries everything an operator needs to run (spec
// §3.5/§4.5): namespace/database scope, the owning session's identity,
// bound parameters, the transaction, and a cancellation signal.
// Contexts are cheap to clone — Clone copies the Params map so a LET
// in one branch never leaks into a sibling, but the Tx field is never
// duplicated: §3.5 is explicit that "cloning a context does not clone
// the transaction — both refer to the same underlying handle".
type ExecutionContext struct {
	NS, DB string
	Sess   session.State

	Tx     kv.Tx
	Params map[string]val.Value

	NamespaceID, DatabaseID uint32

	Ctx      context.Context // carries deadline/cancellation
	Deadline time.Time        // zero means no deadline

	Authorizer session.Authorizer

	// CF buffers this transaction's record mutations for the change
	// feed; nil disables change-feed recording entirely. Executor always
	// sets one, whatever the database's CHANGEFEED setting. Shared, not cloned —
	// every branch of one query appends to the same transaction's log.
	CF *changefeed.Writer

	// Live dispatches post-mutation notifications to registered live
	// queries (spec §4.9); nil disables live-query delivery.
	Live *live.Dispatcher
}

// Clone copies c, deep-copying Params so a context-mutating operator
// (LET, USE) never lets its downstream siblings observe each other's
// bindings (spec §3.5/§4.5's "output_context(input) -> ExecutionContext").
func (c *ExecutionContext) Clone() *ExecutionContext {
	n := *c
	n.Params = make(map[string]val.Value, len(c.Params))
	for k, v := range c.Params {
		n.Params[k] = v
	}
	return &n
}

// WithParam returns a clone of c with name bound to v — the effect of
// one LET statement.
func (c *ExecutionContext) WithParam(name string, v val.Value) *ExecutionContext {
	n := c.Clone()
	n.Params[name] = v
	return n
}

// WithScope returns a clone of c with its namespace/database switched —
// the effect of one USE statement. An empty string leaves that
// component unchanged, matching pkg/session.Session.Use's semantics.
func (c *ExecutionContext) WithScope(ns, db string) *ExecutionContext {
	n := c.Clone()
	if ns != "" {
		n.NS = ns
	}
	if db != "" {
		n.DB = db
	}
	return n
}

// Cancelled reports whether c's context has been cancelled or its
// deadline has passed — every operator polls this between batches
// (spec §4.5 "Cancellation").
func (c *ExecutionContext) Cancelled() bool {
	if c.Ctx != nil {
		select {
		case <-c.Ctx.Done():
			return true
		default:
		}
	}
	return !c.Deadline.IsZero() && time.Now().After(c.Deadline)
}

// Resources groups the collaborator dependencies an Executor wires
// into every ExecutionContext-bearing call: the storage backend, the
// schema Store, and a guard mutex per HNSW/FT index handle (spec §3.5:
// "a writer acquires the single per-index lock for the minimum span").
type Resources struct {
	KV      kv.KV
	Catalog *catalog.Store

	indexLocks sync.Map // index name -> *sync.Mutex
}

// IndexLock returns the single lock guarding index's writer path,
// creating it on first use.
func (r *Resources) IndexLock(index string) *sync.Mutex {
	l, _ := r.indexLocks.LoadOrStore(index, &sync.Mutex{})
	return l.(*sync.Mutex)
}
