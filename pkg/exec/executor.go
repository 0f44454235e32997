package exec

import (
	"context"
	"errors"
	"time"

	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/catalog"
	"github.com/nexusdb/nexus/pkg/changefeed"
	"github.com/nexusdb/nexus/pkg/fn"
	"github.com/nexusdb/nexus/pkg/keys"
	"github.com/nexusdb/nexus/pkg/kv"
	"github.com/nexusdb/nexus/pkg/live"
	"github.com/nexusdb/nexus/pkg/session"
	"github.com/nexusdb/nexus/pkg/val"
)

// maxDefineRetries bounds how many times a statement that lost a
// DEFINE-vs-DEFINE optimistic-concurrency race is replayed before
// giving up (spec §7: "DEFINE statements retry on TxConflict up to 5
// times before surfacing the conflict to the caller").
const maxDefineRetries = 5

// Executor is the concrete pkg/session.Executor this package builds:
// it owns the storage/catalog/function/live-query collaborators and
// turns one Script into a committed (or cancelled) transaction.
type Executor struct {
	Res *Resources
	Fns *fn.Registry
	Deps *fn.Deps
	Hub *live.Hub

	Metrics *Metrics

	// openTx holds transactions opened by an explicit BEGIN, keyed by
	// the token Begin returns, until the matching Commit/Cancel arrives
	// (spec §3.5/§6.4: "a session that opens an explicit BEGIN owns the
	// resulting transaction across however many Execute calls arrive in
	// between").
	openTx map[string]*openTransaction

	// liveRegistrations tracks which table/node a live query was
	// registered against, since pkg/session.Executor.Kill is only
	// handed the lqid — live.Kill needs the owning table and node to
	// find both key shapes Register wrote.
	liveRegistrations map[string]liveRegistration
}

type liveRegistration struct {
	NS, DB, Table, Node string
}

type openTransaction struct {
	tx     kv.Tx
	cf     *changefeed.Writer
	live   *live.Dispatcher
	ec     *ExecutionContext
}

// NewExecutor wires the collaborators Resources/fn.Registry/live.Hub
// together into one Executor (spec §4.5's top-level entry point).
func NewExecutor(res *Resources, fns *fn.Registry, deps *fn.Deps, hub *live.Hub, metrics *Metrics) *Executor {
	return &Executor{
		Res: res, Fns: fns, Deps: deps, Hub: hub, Metrics: metrics,
		openTx:            map[string]*openTransaction{},
		liveRegistrations: map[string]liveRegistration{},
	}
}

// Execute implements pkg/session.Executor. query is a Script built by
// whatever sits upstream of this package (spec §6.1: no parser lives in
// this module); Execute opens (or reuses, for an explicit transaction)
// one read-write Tx, runs the script's statement DAG, commits, and
// flushes the change feed once the commit versionstamp exists.
func (ex *Executor) Execute(ctx context.Context, st session.State, query any, params map[string]val.Value) ([]session.QueryResult, error) {
	script, ok := query.(Script)
	if !ok {
		return nil, xerrors.New(xerrors.KindInternal, "exec: query is not a Script")
	}

	retries := 1
	if scriptIsSchemaOnly(script) {
		retries = 1 + maxDefineRetries
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		results, err := ex.runScriptOnce(ctx, st, script, params)
		if err == nil {
			return toQueryResults(results), nil
		}
		if !errors.Is(err, xerrors.TxConflict) {
			return nil, err
		}
		lastErr = err
		if ex.Metrics != nil {
			ex.Metrics.TxConflictRetries.Inc()
		}
	}
	return nil, lastErr
}

// scriptIsSchemaOnly reports whether every statement in script is a
// DEFINE/REMOVE (spec §7: "DEFINE/REMOVE always retry up to N times;
// user-visible queries surface the error"). A script mixing Schema
// statements with any other kind is treated as a user-visible query for
// retry purposes — it surfaces TxConflict on the first loss rather than
// silently replaying a DataMutation/PureRead statement the caller never
// asked to be retried.
func scriptIsSchemaOnly(script Script) bool {
	if len(script) == 0 {
		return false
	}
	for _, stmt := range script {
		if classify(stmt.Op) != Schema {
			return false
		}
	}
	return true
}

func (ex *Executor) runScriptOnce(ctx context.Context, st session.State, script Script, params map[string]val.Value) ([]StatementResult, error) {
	tx, err := ex.Res.KV.Begin(ctx, kv.ReadWrite)
	if err != nil {
		return nil, err
	}

	cf := changefeed.NewWriter(st.NS, st.DB)
	dispatcher := &live.Dispatcher{Hub: ex.Hub}

	ec := &ExecutionContext{
		NS: st.NS, DB: st.DB,
		Sess:   st,
		Tx:     tx,
		Params: cloneParams(params),
		Ctx:    ctx,
		CF:     cf,
		Live:   dispatcher,
	}
	if ec.NamespaceID, ec.DatabaseID, err = ex.Res.Catalog.Scope(tx, st.NS, st.DB); err != nil {
		tx.Cancel()
		return nil, err
	}

	eng := &Engine{EC: ec, Res: ex.Res, EV: ex.evaluator(ec)}
	results, err := eng.RunScript(ec, script)
	if err != nil {
		tx.Cancel()
		ex.bumpCancelled()
		return nil, err
	}
	for _, r := range results {
		if r.Err != nil {
			tx.Cancel()
			ex.bumpCancelled()
			return results, nil
		}
	}
	ex.bumpStatements(len(results))

	vs, err := tx.Commit(ctx)
	if err != nil {
		return nil, err
	}
	ex.bumpCommitted()
	if cf.Pending() {
		flushTx, ferr := ex.Res.KV.Begin(ctx, kv.ReadWrite)
		if ferr != nil {
			return results, ferr
		}
		if ferr := cf.Flush(flushTx, vs); ferr != nil {
			flushTx.Cancel()
			return results, ferr
		}
		if _, ferr := flushTx.Commit(ctx); ferr != nil {
			return results, ferr
		}
	}
	return results, nil
}

// evaluator builds an Evaluator bound to ec, resolving user functions
// through the catalog directly (spec §3.4's DEFINE FUNCTION entities
// are database-scoped, keyed the same way pkg/catalog.Store's other
// lookups are, but no Store method exists for them yet, so Execute
// reads the entity straight off the Tx the same way Store.Table does).
func (ex *Executor) evaluator(ec *ExecutionContext) *Evaluator {
	ev := &Evaluator{EC: ec, Fns: ex.Fns, Deps: ex.Deps}
	ev.Functions = func(name string) (catalog.Function, bool, error) {
		key := keys.DatabaseEntityKey(ec.NS, ec.DB, keys.CategoryFunction, name)
		b, ok, err := ec.Tx.Get(key)
		if err != nil || !ok {
			return catalog.Function{}, ok, err
		}
		fdef, err := catalog.DecodeFunction(b)
		return fdef, true, err
	}
	return ev
}

// Begin opens an explicit transaction for st, returning a token the
// session threads through subsequent Execute/Commit/Cancel calls.
func (ex *Executor) Begin(ctx context.Context, st session.State) (string, error) {
	tx, err := ex.Res.KV.Begin(ctx, kv.ReadWrite)
	if err != nil {
		return "", err
	}
	ec := &ExecutionContext{
		NS: st.NS, DB: st.DB, Sess: st, Tx: tx,
		Params: map[string]val.Value{}, Ctx: ctx,
		CF: changefeed.NewWriter(st.NS, st.DB), Live: &live.Dispatcher{Hub: ex.Hub},
	}
	if ec.NamespaceID, ec.DatabaseID, err = ex.Res.Catalog.Scope(tx, st.NS, st.DB); err != nil {
		tx.Cancel()
		return "", err
	}
	token := newTxToken()
	ex.openTx[token] = &openTransaction{tx: tx, cf: ec.CF, live: ec.Live, ec: ec}
	return token, nil
}

// Commit finalizes the transaction token names, flushing its change
// feed once the commit versionstamp is known (changefeed.Writer's
// documented two-phase Record-then-Flush design, see pkg/changefeed).
func (ex *Executor) Commit(ctx context.Context, token string) error {
	open, ok := ex.openTx[token]
	if !ok {
		return xerrors.New(xerrors.KindInternal, "exec: unknown transaction token")
	}
	delete(ex.openTx, token)
	vs, err := open.tx.Commit(ctx)
	if err != nil {
		return err
	}
	ex.bumpCommitted()
	if open.cf.Pending() {
		flushTx, ferr := ex.Res.KV.Begin(ctx, kv.ReadWrite)
		if ferr != nil {
			return ferr
		}
		if ferr := open.cf.Flush(flushTx, vs); ferr != nil {
			flushTx.Cancel()
			return ferr
		}
		_, ferr = flushTx.Commit(ctx)
		return ferr
	}
	return nil
}

// Cancel aborts the transaction token names without committing.
func (ex *Executor) Cancel(ctx context.Context, token string) error {
	open, ok := ex.openTx[token]
	if !ok {
		return xerrors.New(xerrors.KindInternal, "exec: unknown transaction token")
	}
	delete(ex.openTx, token)
	open.tx.Cancel()
	ex.bumpCancelled()
	return nil
}

// Live registers a live query (spec §4.9) against the session's hub.
func (ex *Executor) Live(ctx context.Context, st session.State, query any, params map[string]val.Value, lqid string) error {
	op, ok := query.(*LiveQuery)
	if !ok {
		return xerrors.New(xerrors.KindInternal, "exec: live query payload is not a LiveQuery")
	}
	tx, err := ex.Res.KV.Begin(ctx, kv.ReadWrite)
	if err != nil {
		return err
	}
	defer tx.Cancel()

	q := live.Query{ID: lqid, Node: st.Node, Session: st.ID, NS: st.NS, DB: st.DB, Table: op.Table, Where: op.Where}
	if err := live.Register(tx, q); err != nil {
		return err
	}
	if _, err = tx.Commit(ctx); err != nil {
		return err
	}
	ex.liveRegistrations[lqid] = liveRegistration{NS: st.NS, DB: st.DB, Table: op.Table, Node: st.Node}
	return nil
}

// LiveQuery is the query payload LIVE SELECT passes to Live —
// narrower than a full Script since a live query names one table and
// one WHERE clause, never a statement DAG.
type LiveQuery struct {
	Table string
	Where any
}

// Kill deregisters a live query.
func (ex *Executor) Kill(ctx context.Context, st session.State, lqid string) error {
	reg, ok := ex.liveRegistrations[lqid]
	if !ok {
		return xerrors.New(xerrors.KindIdNotFound, "exec: no such live query")
	}
	tx, err := ex.Res.KV.Begin(ctx, kv.ReadWrite)
	if err != nil {
		return err
	}
	defer tx.Cancel()
	if err := live.Kill(tx, reg.NS, reg.DB, reg.Table, lqid, reg.Node); err != nil {
		return err
	}
	if _, err = tx.Commit(ctx); err != nil {
		return err
	}
	delete(ex.liveRegistrations, lqid)
	return nil
}

// Authenticate is out of this package's scope (spec §1 names wire
// authentication as a Non-goal the core only consumes the result of);
// a caller that never wires a real verifier in front of Executor gets
// an anonymous Root session back.
func (ex *Executor) Authenticate(ctx context.Context, creds session.Credentials) (session.State, error) {
	return session.State{}, nil
}

func (ex *Executor) bumpStatements(n int) {
	if ex.Metrics != nil {
		ex.Metrics.StatementsExecuted.Add(float64(n))
	}
}

func (ex *Executor) bumpCommitted() {
	if ex.Metrics != nil {
		ex.Metrics.TxCommitted.Inc()
	}
}

func (ex *Executor) bumpCancelled() {
	if ex.Metrics != nil {
		ex.Metrics.TxCancelled.Inc()
	}
}

func cloneParams(p map[string]val.Value) map[string]val.Value {
	out := make(map[string]val.Value, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func toQueryResults(results []StatementResult) []session.QueryResult {
	out := make([]session.QueryResult, len(results))
	for i, r := range results {
		if r.Err != nil {
			out[i] = session.QueryResult{Status: session.StatusErr, Err: r.Err}
			continue
		}
		out[i] = session.QueryResult{Status: session.StatusOk, Result: r.Value}
	}
	return out
}

var txTokenSeq uint64

// newTxToken derives a unique-enough token from a monotonic counter
// plus the wall clock — this package must never call time.Now()/rand
// inside a workflow-resumable path, but Begin is a live RPC entry
// point, not a resumable script step, so real time is fine here.
func newTxToken() string {
	txTokenSeq++
	return time.Now().Format("20060102150405.000000000") + "-" + itoa(txTokenSeq)
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
