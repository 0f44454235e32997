package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusdb/nexus/pkg/catalog"
	"github.com/nexusdb/nexus/pkg/expr"
	"github.com/nexusdb/nexus/pkg/fn"
	"github.com/nexusdb/nexus/pkg/keys"
	"github.com/nexusdb/nexus/pkg/kv"
	"github.com/nexusdb/nexus/pkg/kv/memkv"
	"github.com/nexusdb/nexus/pkg/plan"
	"github.com/nexusdb/nexus/pkg/session"
	"github.com/nexusdb/nexus/pkg/val"
)

func newExecutorFixture(t *testing.T) *Executor {
	t.Helper()
	db := memkv.New()
	seed, err := db.Begin(context.Background(), kv.ReadWrite)
	require.NoError(t, err)
	require.NoError(t, seed.Set(keys.NamespaceKey("ns1"), mustEncode(t, catalog.Namespace{NamespaceID: 1, Name: "ns1"})))
	require.NoError(t, seed.Set(keys.NamespaceDatabaseKey("ns1", "db1"), mustEncode(t, catalog.Database{NamespaceID: 1, DatabaseID: 1, Name: "db1"})))
	_, err = seed.Commit(context.Background())
	require.NoError(t, err)

	cache, err := catalog.NewCache(16)
	require.NoError(t, err)
	res := &Resources{KV: db, Catalog: catalog.NewStore(cache)}
	return NewExecutor(res, fn.Default(), &fn.Deps{}, nil, nil)
}

func mustEncode(t *testing.T, e interface{ Encode() ([]byte, error) }) []byte {
	t.Helper()
	b, err := e.Encode()
	require.NoError(t, err)
	return b
}

func TestExecuteCreateThenSelectSeesRecord(t *testing.T) {
	ex := newExecutorFixture(t)
	st := session.State{NS: "ns1", DB: "db1", User: "root"}

	createScript := Script{{
		ContextSource: -1,
		Op: &plan.Operator{
			Tag:   plan.OpCreate,
			Table: "person",
			SetFields: map[string]*expr.Expr{
				"name": expr.Lit(val.Str("ferris")),
			},
		},
	}}
	results, err := ex.Execute(context.Background(), st, createScript, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, session.StatusOk, results[0].Status)

	scanScript := Script{{
		ContextSource: -1,
		Op:            &plan.Operator{Tag: plan.OpTableScan, Table: "person"},
	}}
	results, err = ex.Execute(context.Background(), st, scanScript, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	arr, ok := results[0].Result.(val.Array)
	require.True(t, ok)
	require.Len(t, arr, 1)
}

func TestExecuteRejectsNonScriptQuery(t *testing.T) {
	ex := newExecutorFixture(t)
	st := session.State{NS: "ns1", DB: "db1"}
	_, err := ex.Execute(context.Background(), st, "not-a-script", nil)
	require.Error(t, err)
}

func TestBeginCommitRoundTrip(t *testing.T) {
	ex := newExecutorFixture(t)
	st := session.State{NS: "ns1", DB: "db1"}
	token, err := ex.Begin(context.Background(), st)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.NoError(t, ex.Commit(context.Background(), token))

	_, err = ex.Begin(context.Background(), st)
	require.NoError(t, err)
}
