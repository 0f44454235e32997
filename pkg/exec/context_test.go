package exec

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexusdb/nexus/pkg/val"
)

func TestCloneDeepCopiesParamsNotTx(t *testing.T) {
	orig := &ExecutionContext{
		NS:     "ns1",
		DB:     "db1",
		Tx:     nil,
		Params: map[string]val.Value{"a": val.Int(1)},
	}
	clone := orig.Clone()
	clone.Params["a"] = val.Int(2)
	clone.Params["b"] = val.Int(3)

	require.Equal(t, val.Int(1), orig.Params["a"])
	_, ok := orig.Params["b"]
	require.False(t, ok, "mutating the clone's Params must not leak into the original")
}

func TestWithParamDoesNotMutateOriginal(t *testing.T) {
	orig := &ExecutionContext{Params: map[string]val.Value{}}
	next := orig.WithParam("x", val.Int(42))

	require.Equal(t, val.Int(42), next.Params["x"])
	_, ok := orig.Params["x"]
	require.False(t, ok)
}

func TestWithScopeLeavesEmptyComponentsUnchanged(t *testing.T) {
	orig := &ExecutionContext{NS: "ns1", DB: "db1", Params: map[string]val.Value{}}
	next := orig.WithScope("", "db2")

	require.Equal(t, "ns1", next.NS)
	require.Equal(t, "db2", next.DB)
	require.Equal(t, "ns1", orig.NS)
	require.Equal(t, "db1", orig.DB)
}

func TestCancelledTracksContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ec := &ExecutionContext{Ctx: ctx, Params: map[string]val.Value{}}
	require.False(t, ec.Cancelled())
	cancel()
	require.True(t, ec.Cancelled())
}

func TestCancelledTracksDeadline(t *testing.T) {
	ec := &ExecutionContext{Deadline: time.Now().Add(-time.Second), Params: map[string]val.Value{}}
	require.True(t, ec.Cancelled())

	ec2 := &ExecutionContext{Deadline: time.Now().Add(time.Hour), Params: map[string]val.Value{}}
	require.False(t, ec2.Cancelled())
}

func TestRequiredContextMax(t *testing.T) {
	require.Equal(t, RequireDatabase, RequireRoot.Max(RequireDatabase))
	require.Equal(t, RequireNamespace, RequireNamespace.Max(RequireRoot))
}

func TestIndexLockReturnsSameMutexForSameName(t *testing.T) {
	r := &Resources{}
	a := r.IndexLock("by_name")
	b := r.IndexLock("by_name")
	require.Same(t, a, b)

	c := r.IndexLock("other")
	require.NotSame(t, a, c)
}
