package exec

import (
	"golang.org/x/sync/errgroup"

	"github.com/nexusdb/nexus/pkg/plan"
	"github.com/nexusdb/nexus/pkg/val"
)

// StatementKind classifies one statement in a script for scheduling
// purposes (spec §4.5's "statement DAG"): whether it can run alongside
// its siblings or must act as a barrier every later statement in the
// script waits on.
type StatementKind uint8

const (
	// PureRead writes no shared state and leaves its ExecutionContext
	// unchanged — safe to run concurrently with other PureRead
	// statements between two barriers.
	PureRead StatementKind = iota
	// ContextMutation is USE: changes the NS/DB every following
	// statement resolves against.
	ContextMutation
	// DataMutation is CREATE/UPDATE/UPSERT/DELETE/RELATE/INSERT: writes
	// records, so later statements may observe its effects.
	DataMutation
	// Schema is DEFINE/REMOVE: writes catalog entities, so later
	// statements may observe new tables/fields/indexes/functions.
	Schema
	// Transaction is BEGIN/COMMIT/CANCEL: delimits the surrounding
	// transaction boundary itself.
	Transaction
)

// classify derives a Statement's StatementKind from its plan.Operator's
// top-level tag, following the same Sources/Transforms/Mutations/Set
// ops/Control flow/Meta grouping pkg/plan.OperatorTag documents.
func classify(op *plan.Operator) StatementKind {
	switch op.Tag {
	case plan.OpUse:
		return ContextMutation
	case plan.OpCreate, plan.OpUpdate, plan.OpUpsert, plan.OpDelete, plan.OpRelate, plan.OpInsert:
		return DataMutation
	case plan.OpDefine, plan.OpRemove:
		return Schema
	case plan.OpTxControl:
		return Transaction
	default:
		return PureRead
	}
}

// Statement is one node of a script's DAG: a physical plan plus the
// scheduling metadata the planner attached. ContextSource, when >= 0,
// names the index of the statement this one's ExecutionContext derives
// from (normally the previous statement, but a subquery branch may
// reference an ancestor directly); WaitFor lists statement indices that
// must complete before this one starts, beyond whatever the barrier
// rule below already implies.
type Statement struct {
	Op            *plan.Operator
	ContextSource int
	WaitFor       []int
}

// Script is the "query" payload pkg/session.Executor.Execute receives
// (spec §6.1: "the core receives an already-built expression/statement
// tree"; left untyped one layer up since no parser exists in this
// module, but concretely a Script once it reaches pkg/exec).
type Script []*Statement

// StatementResult pairs one statement's outcome with its originating
// index, since RunScript may complete several PureRead statements out
// of submission order.
type StatementResult struct {
	Index int
	Value val.Value
	Err   error
}

// RunScript executes every statement in script against ec, in order,
// with one concurrency rule (spec §4.5 "statement scheduling"): each
// ContextMutation/DataMutation/Schema/Transaction statement is a full
// barrier — no statement after it may start until it (and everything
// before it) has completed, and the barrier itself never runs
// concurrently with anything. Between two barriers, every PureRead
// statement is independent by construction (none of them changes the
// ExecutionContext they share, so no statement observes another's LET
// bindings) and is fanned out with errgroup rather than run serially.
// A statement's explicit WaitFor is honored in addition to the barrier
// rule — it can only ask for more ordering, never less: when a WaitFor
// names an earlier statement of the same PureRead run, that whole run
// executes serially in script order. A WaitFor naming a later
// statement is ignored.
func (e *Engine) RunScript(ec *ExecutionContext, script Script) ([]StatementResult, error) {
	results := make([]StatementResult, len(script))
	contexts := make([]*ExecutionContext, len(script))

	i := 0
	for i < len(script) {
		if ec.Cancelled() {
			return results, ec.Ctx.Err()
		}
		stmt := script[i]
		kind := classify(stmt.Op)

		batchEC := e.contextFor(ec, contexts, stmt, i)

		if kind != PureRead {
			val, err := e.runOne(batchEC, stmt.Op)
			results[i] = StatementResult{Index: i, Value: val, Err: err}
			contexts[i] = batchEC
			if kind == ContextMutation {
				contexts[i] = e.applyUse(batchEC, stmt.Op)
			}
			i++
			continue
		}

		// Collect the run of consecutive PureRead statements starting
		// here and run them concurrently — they share no context
		// mutation to order against.
		start := i
		for i < len(script) && classify(script[i].Op) == PureRead {
			i++
		}
		batch := script[start:i]

		serial := false
		for off, bstmt := range batch {
			for _, w := range bstmt.WaitFor {
				if w >= start && w < start+off {
					serial = true
				}
			}
		}

		var g errgroup.Group
		for off, bstmt := range batch {
			idx := start + off
			bctx := e.contextFor(ec, contexts, bstmt, idx)
			contexts[idx] = bctx
			if serial {
				v, err := e.runOne(bctx, bstmt.Op)
				results[idx] = StatementResult{Index: idx, Value: v, Err: err}
				continue
			}
			g.Go(func() error {
				v, err := e.runOne(bctx, bstmt.Op)
				results[idx] = StatementResult{Index: idx, Value: v, Err: err}
				return nil // per-statement errors are carried in results, not aggregated
			})
		}
		_ = g.Wait()
	}

	return results, nil
}

// contextFor resolves the ExecutionContext a statement runs under: its
// explicit ContextSource if one was planned, otherwise the nearest
// preceding statement's resulting context, otherwise ec itself (the
// script's root context).
func (e *Engine) contextFor(root *ExecutionContext, contexts []*ExecutionContext, stmt *Statement, index int) *ExecutionContext {
	if stmt.ContextSource >= 0 && stmt.ContextSource < index && contexts[stmt.ContextSource] != nil {
		return contexts[stmt.ContextSource]
	}
	if index > 0 && contexts[index-1] != nil {
		return contexts[index-1]
	}
	return root
}

// applyUse returns ec switched to the namespace/database an OpUse
// operator names — the context-mutation effect classify's
// ContextMutation case exists to schedule as a barrier. OpUse has no
// dedicated ns/db fields of its own; it reuses Operator.Table for the
// namespace and Operator.Name for the database, the same way OpLet
// reuses Name for its bound variable — Operator is one shared struct
// across every tag, not one struct per tag.
func (e *Engine) applyUse(ec *ExecutionContext, op *plan.Operator) *ExecutionContext {
	return ec.WithScope(op.Table, op.Name)
}

// runOne plans nothing further (script statements already carry a
// physical plan.Operator) and just drives one operator to completion,
// collapsing its RowIter into a single result value the way spec
// §4.5's per-statement result shape expects: an Array of the matched
// rows' Values for a multi-row statement, or the one row's Value alone
// when the statement yields a single row with no record id (a LET or a
// computed value). Rows that carry a record id, such as a point or KNN
// lookup's, always come back as an Array.
func (e *Engine) runOne(ec *ExecutionContext, op *plan.Operator) (val.Value, error) {
	eng := &Engine{EC: ec, Res: e.Res, EV: &Evaluator{EC: ec, Fns: e.EV.Fns, Deps: e.EV.Deps, Functions: e.EV.Functions, Subquery: e.EV.Subquery}}
	it, err := eng.Run(op)
	if err != nil {
		return nil, err
	}
	rows, err := drain(it)
	if err != nil {
		return nil, err
	}
	if len(rows) == 1 && !rows[0].HasID {
		return rows[0].Value, nil
	}
	out := make(val.Array, len(rows))
	for i, r := range rows {
		out[i] = r.Value
	}
	return out, nil
}
