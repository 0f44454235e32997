// Package live implements live query registration and notification
// dispatch (spec §4.9): `LIVE SELECT` registers a query keyed by a v7
// UUID under both its owning table and its owning node; every
// committed mutation on that table is matched against the registered
// queries and fanned out as a Notification on the owning session's
// bounded channel.
//
// WHERE evaluation and field-permission projection need the expression
// evaluator and catalog permission pipeline pkg/exec owns (spec §4.5,
// §6.1) — this package stays independent of both the same way
// pkg/catalog's ViewSpec/Permission fields stay typed `any`, and takes
// a Matcher/Projector pair as injected dependencies instead.
package live

import (
	"sync"

	"github.com/google/uuid"

	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/keys"
	"github.com/nexusdb/nexus/pkg/kv"
	"github.com/nexusdb/nexus/pkg/val"
)

// Query is one registered `LIVE SELECT` (spec §4.9).
type Query struct {
	ID      string // lqid, a v7 UUID in canonical string form
	Node    string // the node the owning session is connected to
	Session string // owning session id; notifications route here
	NS, DB  string
	Table   string
	// Where holds the live query's WHERE expr tree fragment; typed any
	// for the same reason pkg/catalog.ViewSpec.Expr is (pkg/live never
	// interprets it itself — see the package doc).
	Where any
}

// NewID returns a fresh lqid: spec §4.9 names it specifically as a v7
// UUID, so its leading bits sort with registration time the same way a
// v7 record id does elsewhere in this module.
func NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", xerrors.New(xerrors.KindInternal, "live: "+err.Error())
	}
	return id.String(), nil
}

// Register writes both key shapes spec §4.9 names: the table-scoped
// definition and the node-local discovery entry.
func Register(tx kv.Tx, q Query) error {
	body, err := encodeQuery(q)
	if err != nil {
		return err
	}
	tk := keys.TableEntityKey(q.NS, q.DB, q.Table, keys.CategoryLiveQuery, q.ID)
	if err := tx.Set(tk, body); err != nil {
		return err
	}
	nk := keys.NodeLiveQueryKey(q.Node, q.ID, q.NS, q.DB)
	return tx.Set(nk, nil)
}

// Kill removes both keys Register wrote. Returns KindIdNotFound if the
// live query isn't registered under q's table.
func Kill(tx kv.Tx, ns, db, tb, lqid, node string) error {
	tk := keys.TableEntityKey(ns, db, tb, keys.CategoryLiveQuery, lqid)
	_, ok, err := tx.Get(tk)
	if err != nil {
		return err
	}
	if !ok {
		return xerrors.New(xerrors.KindIdNotFound, "live: no such live query")
	}
	if err := tx.Delete(tk); err != nil {
		return err
	}
	return tx.Delete(keys.NodeLiveQueryKey(node, lqid, ns, db))
}

// ListForTable returns every live query registered on ns/db/tb — the
// set a dispatcher walks on every committed mutation to that table
// (spec §4.9 step 1).
func ListForTable(tx kv.Tx, ns, db, tb string) ([]Query, error) {
	prefix := keys.TableEntityPrefix(ns, db, tb, keys.CategoryLiveQuery)
	begin, end := keys.RangeOf(prefix)
	kvs, err := tx.Scan(kv.Range{Begin: begin, End: end}, 0, nil)
	if err != nil {
		return nil, err
	}
	out := make([]Query, 0, len(kvs))
	for _, kve := range kvs {
		id, _, err := readNulString(kve.Key, len(prefix))
		if err != nil {
			return nil, err
		}
		q, err := decodeQuery(kve.Value)
		if err != nil {
			return nil, err
		}
		q.ID, q.NS, q.DB, q.Table = id, ns, db, tb
		out = append(out, q)
	}
	return out, nil
}

// ListForNode returns the (lqid, ns, db) triples discoverable for one
// node — used when a node restarts and needs to know which live
// queries it still owns without scanning every table.
func ListForNode(tx kv.Tx, node string) ([]NodeEntry, error) {
	prefix := keys.NodeLiveQueryPrefix(node)
	begin, end := keys.RangeOf(prefix)
	kvs, err := tx.Scan(kv.Range{Begin: begin, End: end}, 0, nil)
	if err != nil {
		return nil, err
	}
	out := make([]NodeEntry, 0, len(kvs))
	for _, kve := range kvs {
		lqid, off, err := readNulString(kve.Key, len(prefix))
		if err != nil {
			return nil, err
		}
		ns, off, err := readNulString(kve.Key, off)
		if err != nil {
			return nil, err
		}
		db, _, err := readNulString(kve.Key, off)
		if err != nil {
			return nil, err
		}
		out = append(out, NodeEntry{LiveID: lqid, NS: ns, DB: db})
	}
	return out, nil
}

// NodeEntry is one decoded per-node live-query discovery entry.
type NodeEntry struct {
	LiveID string
	NS, DB string
}

func readNulString(b []byte, off int) (string, int, error) {
	for i := off; i < len(b); i++ {
		if b[i] == 0x00 {
			return string(b[off:i]), i + 1, nil
		}
	}
	return "", 0, xerrors.New(xerrors.KindInternal, "live: unterminated string in key")
}

// encodeQuery/decodeQuery store only the fields a registration needs to
// recover on restart: Session and Node (Where isn't persisted — a
// node's own in-memory live-query table holds the parsed expr tree,
// rebuilt from the original statement text pkg/exec keeps; §4.9 never
// requires replaying a live query's WHERE after a node restart without
// re-issuing LIVE SELECT).
func encodeQuery(q Query) ([]byte, error) {
	out := appendLenPrefixedStr(nil, q.Session)
	out = appendLenPrefixedStr(out, q.Node)
	return out, nil
}

func decodeQuery(b []byte) (Query, error) {
	session, off, err := readLenPrefixedStr(b, 0)
	if err != nil {
		return Query{}, err
	}
	node, _, err := readLenPrefixedStr(b, off)
	if err != nil {
		return Query{}, err
	}
	return Query{Session: session, Node: node}, nil
}

func appendLenPrefixedStr(out []byte, s string) []byte {
	n := uint32(len(s))
	out = append(out, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	return append(out, s...)
}

func readLenPrefixedStr(b []byte, off int) (string, int, error) {
	if off+4 > len(b) {
		return "", 0, xerrors.New(xerrors.KindInternal, "live: truncated query record")
	}
	n := int(uint32(b[off])<<24 | uint32(b[off+1])<<16 | uint32(b[off+2])<<8 | uint32(b[off+3]))
	off += 4
	if off+n > len(b) {
		return "", 0, xerrors.New(xerrors.KindInternal, "live: truncated query record body")
	}
	return string(b[off : off+n]), off + n, nil
}

// Action discriminates a Notification's kind (spec §4.9).
type Action uint8

const (
	ActionCreate Action = iota
	ActionUpdate
	ActionDelete
	ActionKilled
)

// Notification is the message spec §4.9 delivers on a session's
// channel for one live query.
type Notification struct {
	LiveID string
	Action Action
	Result val.Value
}

// Hub fans notifications out to per-session bounded channels (spec
// §5's "Live-query notification channels are SPMC per session,
// bounded"). A session subscribes once and receives every live query
// it owns on the same channel, in the order Notify is called.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]chan Notification
	capacity int
}

// NewHub returns a Hub whose per-session channels hold up to capacity
// buffered notifications before a slow consumer trips Notify's
// overflow signal.
func NewHub(capacity int) *Hub {
	return &Hub{sessions: make(map[string]chan Notification), capacity: capacity}
}

// Subscribe opens (or reopens) a session's notification channel.
func (h *Hub) Subscribe(session string) <-chan Notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan Notification, h.capacity)
	h.sessions[session] = ch
	return ch
}

// Unsubscribe closes and forgets a session's channel.
func (h *Hub) Unsubscribe(session string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.sessions[session]; ok {
		close(ch)
		delete(h.sessions, session)
	}
}

// Notify delivers n to session's channel without blocking. It reports
// false when the channel is full or the session isn't subscribed — the
// caller's cue (spec §5) to kill the live query and emit a Killed
// notification instead.
func (h *Hub) Notify(session string, n Notification) bool {
	h.mu.Lock()
	ch, ok := h.sessions[session]
	h.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- n:
		return true
	default:
		return false
	}
}

// Matcher evaluates a live query's WHERE condition against a record
// image. A nil where is always truthy (an unconditional LIVE SELECT).
type Matcher func(where any, image val.Value) (bool, error)

// Projector applies field-level permissions to a record image as if
// owner executed an equivalent SELECT (spec §4.9 step 3).
type Projector func(owner, table string, image val.Value) (val.Value, error)

// Dispatcher implements spec §4.9's "after every mutation" algorithm
// for one table's registered live queries.
type Dispatcher struct {
	Hub     *Hub
	Match   Matcher
	Project Projector
}

// Dispatch evaluates queries (a table's registered live queries, held
// in memory by the caller complete with parsed WHERE trees — see the
// package doc on why pkg/live itself never rehydrates Where from the
// registration store) against pre (the image before the mutation, nil
// on Create) and post (the image after, nil on Delete), and delivers
// one Notification per matching query via Hub.Notify. A query whose
// delivery fails (a full or missing session channel) is killed and its
// Killed notification is attempted in its place; Dispatch does not
// itself mutate the registration store — the caller commits the Kill
// (via the package-level Kill function) in the same transaction as the
// mutation.
//
// This directly implements testable property 9: every live query whose
// post-image WHERE is truthy gets exactly one Create/Update
// notification; every live query whose pre-image was truthy and whose
// post-image isn't gets exactly one Delete.
func (d *Dispatcher) Dispatch(queries []Query, pre, post val.Value) ([]string, error) {
	var toKill []string
	for _, q := range queries {
		wasTruthy, isTruthy, err := d.evalBoth(q.Where, pre, post)
		if err != nil {
			return nil, err
		}
		action, image, fire := classify(wasTruthy, isTruthy, pre, post)
		if !fire {
			continue
		}
		projected, err := d.Project(q.Session, q.Table, image)
		if err != nil {
			return nil, err
		}
		if !d.Hub.Notify(q.Session, Notification{LiveID: q.ID, Action: action, Result: projected}) {
			toKill = append(toKill, q.ID)
			d.Hub.Notify(q.Session, Notification{LiveID: q.ID, Action: ActionKilled})
		}
	}
	return toKill, nil
}

func (d *Dispatcher) evalBoth(where any, pre, post val.Value) (wasTruthy, isTruthy bool, err error) {
	if pre != nil {
		wasTruthy, err = d.Match(where, pre)
		if err != nil {
			return false, false, err
		}
	}
	if post != nil {
		isTruthy, err = d.Match(where, post)
		if err != nil {
			return false, false, err
		}
	}
	return wasTruthy, isTruthy, nil
}

func classify(wasTruthy, isTruthy bool, pre, post val.Value) (action Action, image val.Value, fire bool) {
	switch {
	case !wasTruthy && isTruthy:
		return ActionCreate, post, true
	case wasTruthy && isTruthy:
		return ActionUpdate, post, true
	case wasTruthy && !isTruthy:
		return ActionDelete, pre, true
	default:
		return 0, nil, false
	}
}
