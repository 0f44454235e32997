package live

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusdb/nexus/pkg/kv"
	"github.com/nexusdb/nexus/pkg/kv/memkv"
	"github.com/nexusdb/nexus/pkg/val"
)

func openTx(t *testing.T) (kv.Tx, func()) {
	t.Helper()
	db := memkv.New()
	tx, err := db.Begin(context.Background(), kv.ReadWrite)
	require.NoError(t, err)
	return tx, func() { tx.Cancel(); _ = db.Close() }
}

func TestNewIDProducesDistinctV7UUIDs(t *testing.T) {
	require := require.New(t)
	a, err := NewID()
	require.NoError(err)
	b, err := NewID()
	require.NoError(err)
	require.NotEqual(a, b)
}

func TestRegisterThenListForTableFindsQuery(t *testing.T) {
	require := require.New(t)
	tx, done := openTx(t)
	defer done()

	id, err := NewID()
	require.NoError(err)
	q := Query{ID: id, Node: "node1", Session: "sess1", NS: "ns", DB: "db", Table: "person"}
	require.NoError(Register(tx, q))

	found, err := ListForTable(tx, "ns", "db", "person")
	require.NoError(err)
	require.Len(found, 1)
	require.Equal(id, found[0].ID)
	require.Equal("sess1", found[0].Session)
	require.Equal("node1", found[0].Node)
}

func TestRegisterWritesNodeLocalDiscoveryEntry(t *testing.T) {
	require := require.New(t)
	tx, done := openTx(t)
	defer done()

	id, err := NewID()
	require.NoError(err)
	require.NoError(Register(tx, Query{ID: id, Node: "node1", Session: "sess1", NS: "ns", DB: "db", Table: "person"}))

	entries, err := ListForNode(tx, "node1")
	require.NoError(err)
	require.Len(entries, 1)
	require.Equal(id, entries[0].LiveID)
	require.Equal("ns", entries[0].NS)
	require.Equal("db", entries[0].DB)
}

func TestKillRemovesBothKeys(t *testing.T) {
	require := require.New(t)
	tx, done := openTx(t)
	defer done()

	id, err := NewID()
	require.NoError(err)
	require.NoError(Register(tx, Query{ID: id, Node: "node1", Session: "sess1", NS: "ns", DB: "db", Table: "person"}))
	require.NoError(Kill(tx, "ns", "db", "person", id, "node1"))

	found, err := ListForTable(tx, "ns", "db", "person")
	require.NoError(err)
	require.Empty(found)

	entries, err := ListForNode(tx, "node1")
	require.NoError(err)
	require.Empty(entries)
}

func TestKillUnknownReturnsNotFound(t *testing.T) {
	tx, done := openTx(t)
	defer done()
	err := Kill(tx, "ns", "db", "person", "missing", "node1")
	require.Error(t, err)
}

func TestListForTableScopesByTable(t *testing.T) {
	require := require.New(t)
	tx, done := openTx(t)
	defer done()

	id1, _ := NewID()
	id2, _ := NewID()
	require.NoError(Register(tx, Query{ID: id1, Node: "node1", Session: "s1", NS: "ns", DB: "db", Table: "person"}))
	require.NoError(Register(tx, Query{ID: id2, Node: "node1", Session: "s2", NS: "ns", DB: "db", Table: "animal"}))

	found, err := ListForTable(tx, "ns", "db", "person")
	require.NoError(err)
	require.Len(found, 1)
	require.Equal(id1, found[0].ID)
}

func alwaysTrue(_ any, _ val.Value) (bool, error) { return true, nil }

func truthyMatcher(truthyField string) Matcher {
	return func(_ any, image val.Value) (bool, error) {
		obj, ok := image.(val.Object)
		if !ok {
			return false, nil
		}
		v, ok := obj[truthyField]
		return ok && v == val.Bool(true), nil
	}
}

func identityProject(_, _ string, image val.Value) (val.Value, error) { return image, nil }

func TestDispatchEmitsCreateWhenPostMatchesAndNoPre(t *testing.T) {
	require := require.New(t)
	hub := NewHub(4)
	ch := hub.Subscribe("sess1")
	d := &Dispatcher{Hub: hub, Match: alwaysTrue, Project: identityProject}

	queries := []Query{{ID: "lq1", Session: "sess1", Table: "person"}}
	killed, err := d.Dispatch(queries, nil, val.Object{"name": val.Str("tobie")})
	require.NoError(err)
	require.Empty(killed)

	n := <-ch
	require.Equal(ActionCreate, n.Action)
	require.Equal("lq1", n.LiveID)
}

func TestDispatchEmitsDeleteWhenPreMatchesAndNoPost(t *testing.T) {
	require := require.New(t)
	hub := NewHub(4)
	ch := hub.Subscribe("sess1")
	d := &Dispatcher{Hub: hub, Match: alwaysTrue, Project: identityProject}

	queries := []Query{{ID: "lq1", Session: "sess1", Table: "person"}}
	_, err := d.Dispatch(queries, val.Object{"name": val.Str("tobie")}, nil)
	require.NoError(err)

	n := <-ch
	require.Equal(ActionDelete, n.Action)
}

func TestDispatchEmitsUpdateWhenBothMatch(t *testing.T) {
	require := require.New(t)
	hub := NewHub(4)
	ch := hub.Subscribe("sess1")
	d := &Dispatcher{Hub: hub, Match: alwaysTrue, Project: identityProject}

	queries := []Query{{ID: "lq1", Session: "sess1", Table: "person"}}
	_, err := d.Dispatch(queries, val.Object{"name": val.Str("old")}, val.Object{"name": val.Str("new")})
	require.NoError(err)

	n := <-ch
	require.Equal(ActionUpdate, n.Action)
}

func TestDispatchEmitsNothingWhenNeitherImageMatches(t *testing.T) {
	require := require.New(t)
	hub := NewHub(4)
	ch := hub.Subscribe("sess1")
	never := func(_ any, _ val.Value) (bool, error) { return false, nil }
	d := &Dispatcher{Hub: hub, Match: never, Project: identityProject}

	queries := []Query{{ID: "lq1", Session: "sess1", Table: "person"}}
	_, err := d.Dispatch(queries, val.Object{"name": val.Str("old")}, val.Object{"name": val.Str("new")})
	require.NoError(err)

	select {
	case <-ch:
		t.Fatal("expected no notification")
	default:
	}
}

func TestDispatchTransitionIntoWhereFiresCreateOnUpdate(t *testing.T) {
	require := require.New(t)
	hub := NewHub(4)
	ch := hub.Subscribe("sess1")
	d := &Dispatcher{Hub: hub, Match: truthyMatcher("visible"), Project: identityProject}

	queries := []Query{{ID: "lq1", Session: "sess1", Table: "person"}}
	pre := val.Object{"visible": val.Bool(false)}
	post := val.Object{"visible": val.Bool(true)}
	_, err := d.Dispatch(queries, pre, post)
	require.NoError(err)

	n := <-ch
	require.Equal(ActionCreate, n.Action)
}

func TestDispatchKillsLiveQueryWhenChannelFull(t *testing.T) {
	require := require.New(t)
	hub := NewHub(0) // zero-capacity channel: every send finds it full
	hub.Subscribe("sess1")
	d := &Dispatcher{Hub: hub, Match: alwaysTrue, Project: identityProject}

	queries := []Query{{ID: "lq1", Session: "sess1", Table: "person"}}
	killed, err := d.Dispatch(queries, nil, val.Object{"name": val.Str("x")})
	require.NoError(err)
	require.Equal([]string{"lq1"}, killed)
}

func TestHubNotifyReportsFalseForUnknownSession(t *testing.T) {
	hub := NewHub(4)
	require.False(t, hub.Notify("nobody", Notification{LiveID: "lq1", Action: ActionCreate}))
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	require := require.New(t)
	hub := NewHub(4)
	ch := hub.Subscribe("sess1")
	hub.Unsubscribe("sess1")
	_, ok := <-ch
	require.False(ok)
}
