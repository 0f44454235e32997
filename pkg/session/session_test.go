package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/live"
	"github.com/nexusdb/nexus/pkg/val"
)

// fakeExecutor is a minimal in-memory Executor stand-in, mirroring the
// fakeHTTP/fakeBucket pattern pkg/fn's tests use for injected
// dependencies.
type fakeExecutor struct {
	authenticated map[string]State // "user:pass" -> resolved State
	lastQuery     any
	lastParams    map[string]val.Value
	liveErr       error
	txCounter     int
	committed     []string
	cancelled     []string
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{authenticated: map[string]State{}}
}

func (f *fakeExecutor) Execute(ctx context.Context, st State, query any, params map[string]val.Value) ([]QueryResult, error) {
	f.lastQuery, f.lastParams = query, params
	return []QueryResult{{Duration: time.Millisecond, Status: StatusOk, Result: val.Int(1)}}, nil
}

func (f *fakeExecutor) Live(ctx context.Context, st State, query any, params map[string]val.Value, lqid string) error {
	return f.liveErr
}

func (f *fakeExecutor) Kill(ctx context.Context, st State, lqid string) error { return nil }

func (f *fakeExecutor) Authenticate(ctx context.Context, creds Credentials) (State, error) {
	st, ok := f.authenticated[creds.User+":"+creds.Pass]
	if !ok {
		return State{}, xerrors.New(xerrors.KindPermissionDenied, "fakeExecutor: bad credentials")
	}
	return st, nil
}

func (f *fakeExecutor) Begin(ctx context.Context, st State) (string, error) {
	f.txCounter++
	return "tx-1", nil
}

func (f *fakeExecutor) Commit(ctx context.Context, tok string) error {
	f.committed = append(f.committed, tok)
	return nil
}

func (f *fakeExecutor) Cancel(ctx context.Context, tok string) error {
	f.cancelled = append(f.cancelled, tok)
	return nil
}

func TestUseUpdatesNamespaceAndDatabaseIndependently(t *testing.T) {
	require := require.New(t)
	sess := New("s1", "node1", newFakeExecutor(), live.NewHub(4))
	defer sess.Close()

	sess.Use("ns1", "db1")
	require.Equal(State{ID: "s1", Node: "node1", NS: "ns1", DB: "db1"}, sess.State())

	sess.Use("", "db2")
	require.Equal("ns1", sess.State().NS)
	require.Equal("db2", sess.State().DB)
}

func TestExecutePassesCurrentState(t *testing.T) {
	require := require.New(t)
	exec := newFakeExecutor()
	sess := New("s1", "node1", exec, live.NewHub(4))
	defer sess.Close()
	sess.Use("ns1", "db1")

	results, err := sess.Execute(context.Background(), "SELECT * FROM t", map[string]val.Value{"x": val.Int(1)})
	require.NoError(err)
	require.Len(results, 1)
	require.Equal(StatusOk, results[0].Status)
	require.Equal("SELECT * FROM t", exec.lastQuery)
}

func TestAuthenticateAdoptsResolvedStateButKeepsSessionID(t *testing.T) {
	require := require.New(t)
	exec := newFakeExecutor()
	exec.authenticated["root:hunter2"] = State{NS: "ns1", DB: "db1", User: "root"}
	sess := New("s1", "node1", exec, live.NewHub(4))
	defer sess.Close()

	err := sess.Authenticate(context.Background(), Credentials{User: "root", Pass: "hunter2"})
	require.NoError(err)

	st := sess.State()
	require.Equal("s1", st.ID)
	require.Equal("node1", st.Node)
	require.Equal("root", st.User)
	require.Equal("ns1", st.NS)
}

func TestAuthenticateFailureLeavesStateUnchanged(t *testing.T) {
	require := require.New(t)
	exec := newFakeExecutor()
	sess := New("s1", "node1", exec, live.NewHub(4))
	defer sess.Close()
	sess.Use("ns1", "db1")

	err := sess.Authenticate(context.Background(), Credentials{User: "nobody", Pass: "wrong"})
	require.Error(err)
	require.True(xerrors.Of(err, xerrors.KindPermissionDenied))
	require.Equal("ns1", sess.State().NS)
}

func TestLiveRegistersAndNotificationsArriveOnSessionChannel(t *testing.T) {
	require := require.New(t)
	exec := newFakeExecutor()
	hub := live.NewHub(4)
	sess := New("s1", "node1", exec, hub)
	defer sess.Close()

	lqid, err := sess.Live(context.Background(), "LIVE SELECT * FROM t", nil)
	require.NoError(err)
	require.NotEmpty(lqid)

	require.True(hub.Notify("s1", live.Notification{LiveID: lqid, Action: live.ActionCreate, Result: val.Int(1)}))
	n := <-sess.Notifications()
	require.Equal(lqid, n.LiveID)
	require.Equal(live.ActionCreate, n.Action)
}

func TestBeginCommitRoundTrip(t *testing.T) {
	require := require.New(t)
	exec := newFakeExecutor()
	sess := New("s1", "node1", exec, live.NewHub(4))
	defer sess.Close()

	require.NoError(sess.Begin(context.Background()))
	require.Error(sess.Begin(context.Background())) // already open

	require.NoError(sess.Commit(context.Background()))
	require.Equal([]string{"tx-1"}, exec.committed)

	// Commit again with nothing open is a protocol error.
	err := sess.Commit(context.Background())
	require.Error(err)
	require.True(xerrors.Of(err, xerrors.KindInvalidArguments))
}

func TestCancelRollsBackOpenTransaction(t *testing.T) {
	require := require.New(t)
	exec := newFakeExecutor()
	sess := New("s1", "node1", exec, live.NewHub(4))
	defer sess.Close()

	require.NoError(sess.Begin(context.Background()))
	require.NoError(sess.Cancel(context.Background()))
	require.Equal([]string{"tx-1"}, exec.cancelled)
}
