// Package session implements the collaborator-boundary surface spec
// §6.4 names: one Session per connected client, exposing execute,
// live, kill, use, authenticate, and transaction control. It is a thin
// facade — every actual query runs through an injected Executor, the
// same injected-dependency pattern pkg/live uses for Matcher/Projector
// and pkg/fn uses for Deps.HTTP/Deps.Bucket, since pkg/exec (the
// concrete Executor) sits above this package in the dependency graph
// and can't be imported here without a cycle.
//
// pkg/session/wire carries the two collaborator-boundary transports
// §6.4 names: a gorilla/websocket notification stream and
// grpc/protobuf-shaped request/response types for an RPC front end
// (types only — no running gRPC server is part of this module, per
// §1's "HTTP/WebSocket/RPC server shells... are deliberately out of
// scope").
package session

import (
	"context"
	"sync"
	"time"

	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/live"
	"github.com/nexusdb/nexus/pkg/val"
)

// Status discriminates one statement's outcome within a QueryResult
// (spec §6.4: "QueryResult is { duration, status: Ok|Err, result }").
type Status uint8

const (
	StatusOk Status = iota
	StatusErr
)

// QueryResult is the per-statement result spec §6.4 names.
type QueryResult struct {
	Duration time.Duration
	Status   Status
	Result   val.Value // set when Status == StatusOk
	Err      error     // set when Status == StatusErr
}

// Notification re-exports pkg/live's delivery type under the name
// spec §6.4 gives it at the wire boundary; Session.Live callers read
// these off the channel Subscribe returns.
type Notification = live.Notification

// Credentials is whatever Authenticate was handed at the wire boundary
// — §1 names IAM policy evaluation and wire authentication as explicit
// Non-goals ("the core consumes a resolved Action×ResourceKind
// decision function"; "session authentication over the wire" is listed
// under deliberately-out-of-scope server shells), so this package only
// carries credentials through to the injected Executor rather than
// implementing a verifier (JWT/JWKS/record-signup) itself.
type Credentials struct {
	NS, DB   string
	User     string
	Pass     string
	Token    string // set instead of User/Pass for a bearer/JWT-style credential
}

// State is the namespace/database/identity a Session carries, and the
// subset of it an Executor needs on every call. Cloning State is cheap
// the same way spec §3.5 requires ExecutionContext to be — USE and a
// successful Authenticate each produce a new State rather than
// mutating in place, so a caller holding an older context reference
// isn't surprised by a concurrent USE on the same Session.
type State struct {
	ID     string // session id
	Node   string // owning node id
	NS, DB string
	User   string // authenticated principal name, "" if anonymous/root
}

// Executor is the query-execution dependency a Session delegates every
// statement to. pkg/exec.Executor is expected to satisfy this
// interface; query is left untyped the same way pkg/live.Query.Where
// is, since no parser exists in this module (spec §6.1: "the core
// receives an already-built expression/statement tree").
type Executor interface {
	Execute(ctx context.Context, st State, query any, params map[string]val.Value) ([]QueryResult, error)
	Live(ctx context.Context, st State, query any, params map[string]val.Value, lqid string) error
	Kill(ctx context.Context, st State, lqid string) error
	Authenticate(ctx context.Context, creds Credentials) (State, error)
	// Begin, Commit, and Cancel implement spec §3.5/§6.4's "transaction
	// control when the session is the executor of a script": a session
	// that opens an explicit BEGIN owns the resulting transaction until
	// it COMMITs or CANCELs, across however many Execute calls arrive
	// in between.
	Begin(ctx context.Context, st State) (txToken string, err error)
	Commit(ctx context.Context, txToken string) error
	Cancel(ctx context.Context, txToken string) error
}

// Session is one connected client: it pins a NS/DB/identity (State),
// owns one live-query notification channel (spec §5: "SPMC per
// session, bounded"), and forwards every call to Executor.
type Session struct {
	exec Executor
	hub  *live.Hub

	mu      sync.Mutex
	state   State
	txToken string // "" when no explicit transaction is open

	notifications <-chan Notification
}

// New opens a Session for node/id against exec, subscribing it to hub
// immediately — one notification channel for the session's whole
// lifetime, shared by every live query it registers.
func New(id, node string, exec Executor, hub *live.Hub) *Session {
	s := &Session{
		exec:  exec,
		hub:   hub,
		state: State{ID: id, Node: node},
	}
	s.notifications = hub.Subscribe(id)
	return s
}

// Notifications returns the channel Live's notifications arrive on —
// one shared channel per session, per spec §5.
func (s *Session) Notifications() <-chan Notification { return s.notifications }

// State returns the session's current namespace/database/identity.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Use switches the session's namespace and/or database (spec §6.4
// "use(ns?, db?)"). An empty string leaves that component unchanged,
// matching the optional-argument semantics the spec signature implies.
func (s *Session) Use(ns, db string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ns != "" {
		s.state.NS = ns
	}
	if db != "" {
		s.state.DB = db
	}
}

// Authenticate re-resolves the session's identity against creds and,
// on success, adopts the returned State (spec §6.4
// "authenticate(credentials) -> Session"): NS/DB/User all switch to
// whatever the Executor's credential check resolved, the same way a
// successful SIGNIN swaps a connection's scope in the source system.
func (s *Session) Authenticate(ctx context.Context, creds Credentials) error {
	st, err := s.exec.Authenticate(ctx, creds)
	if err != nil {
		return err
	}
	s.mu.Lock()
	st.ID, st.Node = s.state.ID, s.state.Node
	s.state = st
	s.mu.Unlock()
	return nil
}

// Execute runs query under the session's current state. The token of
// a transaction opened with Begin is not passed on: Executor.Execute
// receives only the State, so query does not run inside that
// transaction.
func (s *Session) Execute(ctx context.Context, query any, params map[string]val.Value) ([]QueryResult, error) {
	st := s.State()
	return s.exec.Execute(ctx, st, query, params)
}

// Live registers a LIVE SELECT and returns its lqid; notifications
// arrive on Notifications(), tagged with that lqid (spec §6.4 "live(
// query, params) -> (lqid, Stream<Notification>)"). The channel itself
// doesn't change per call — every live query a session owns multiplexes
// onto the one channel New subscribed.
func (s *Session) Live(ctx context.Context, query any, params map[string]val.Value) (string, error) {
	lqid, err := live.NewID()
	if err != nil {
		return "", err
	}
	st := s.State()
	if err := s.exec.Live(ctx, st, query, params, lqid); err != nil {
		return "", err
	}
	return lqid, nil
}

// Kill unregisters a live query by id (spec §6.4 "kill(lqid)").
func (s *Session) Kill(ctx context.Context, lqid string) error {
	st := s.State()
	return s.exec.Kill(ctx, st, lqid)
}

// Begin opens an explicit transaction the session owns until Commit or
// Cancel; a second Begin before either is a protocol error.
func (s *Session) Begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txToken != "" {
		return xerrors.New(xerrors.KindInvalidArguments, "session: transaction already open")
	}
	tok, err := s.exec.Begin(ctx, s.state)
	if err != nil {
		return err
	}
	s.txToken = tok
	return nil
}

// Commit closes the session's open transaction.
func (s *Session) Commit(ctx context.Context) error {
	s.mu.Lock()
	tok := s.txToken
	s.txToken = ""
	s.mu.Unlock()
	if tok == "" {
		return xerrors.New(xerrors.KindInvalidArguments, "session: no open transaction")
	}
	return s.exec.Commit(ctx, tok)
}

// Cancel rolls back the session's open transaction.
func (s *Session) Cancel(ctx context.Context) error {
	s.mu.Lock()
	tok := s.txToken
	s.txToken = ""
	s.mu.Unlock()
	if tok == "" {
		return xerrors.New(xerrors.KindInvalidArguments, "session: no open transaction")
	}
	return s.exec.Cancel(ctx, tok)
}

// Close unsubscribes the session from its notification hub. Any live
// queries it still owns are left registered — the caller (pkg/exec,
// on connection teardown) is responsible for killing them first if
// that's the desired behavior; Close only tears down the transport
// side of the session.
func (s *Session) Close() {
	s.hub.Unsubscribe(s.state.ID)
}
