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
	"github.com/nexusdb/nexus/pkg/val"
)

func newEngineFixture(t *testing.T) (*Engine, kv.Tx) {
	db := memkv.New()
	tx, err := db.Begin(context.Background(), kv.ReadWrite)
	require.NoError(t, err)

	cache, err := catalog.NewCache(16)
	require.NoError(t, err)
	store := catalog.NewStore(cache)

	ec := &ExecutionContext{
		NS: "ns1", DB: "db1",
		Tx:     tx,
		Params: map[string]val.Value{},
		Ctx:    context.Background(),
	}
	res := &Resources{KV: db, Catalog: store}
	ev := &Evaluator{EC: ec, Fns: fn.Default(), Deps: &fn.Deps{}}
	return &Engine{EC: ec, Res: res, EV: ev}, tx
}

func putRecord(t *testing.T, tx kv.Tx, ns, db, tb string, id val.RecordIdKey, v val.Value) {
	rk := keys.RecordKey{NS: ns, DB: db, TB: tb, ID: id}
	k, err := rk.Encode()
	require.NoError(t, err)
	b, err := val.Encode(v)
	require.NoError(t, err)
	require.NoError(t, tx.Set(k, b))
}

func TestRunTableScanReturnsAllRecords(t *testing.T) {
	eng, tx := newEngineFixture(t)
	putRecord(t, tx, "ns1", "db1", "person", val.NewRecordIDString("a"), val.Object{"name": val.Str("alice")})
	putRecord(t, tx, "ns1", "db1", "person", val.NewRecordIDString("b"), val.Object{"name": val.Str("bob")})

	op := &plan.Operator{Tag: plan.OpTableScan, Table: "person"}
	it, err := eng.Run(op)
	require.NoError(t, err)
	rows, err := drain(it)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestRunFilterKeepsMatchingRows(t *testing.T) {
	eng, tx := newEngineFixture(t)
	putRecord(t, tx, "ns1", "db1", "person", val.NewRecordIDString("a"), val.Object{"age": val.Int(30)})
	putRecord(t, tx, "ns1", "db1", "person", val.NewRecordIDString("b"), val.Object{"age": val.Int(10)})

	scan := &plan.Operator{Tag: plan.OpTableScan, Table: "person"}
	cond := expr.Bin(expr.OpGte, expr.IdiomExpr(val.FieldPart("age")), expr.Lit(val.Int(18)))
	filt := plan.Wrap(plan.OpFilter, scan)
	filt.Cond = cond

	it, err := eng.Run(filt)
	require.NoError(t, err)
	rows, err := drain(it)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestRunLimitAndStart(t *testing.T) {
	eng, tx := newEngineFixture(t)
	for _, id := range []string{"a", "b", "c"} {
		putRecord(t, tx, "ns1", "db1", "person", val.NewRecordIDString(id), val.Object{"id": val.Str(id)})
	}
	scan := &plan.Operator{Tag: plan.OpTableScan, Table: "person"}
	start := plan.Wrap(plan.OpStart, scan)
	start.Count = expr.Lit(val.Int(1))
	limit := plan.Wrap(plan.OpLimit, start)
	limit.Count = expr.Lit(val.Int(1))

	it, err := eng.Run(limit)
	require.NoError(t, err)
	rows, err := drain(it)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestRunIfElseTakesTrueBranch(t *testing.T) {
	eng, _ := newEngineFixture(t)
	thenOp := &plan.Operator{Tag: plan.OpLet, Name: "x", Value: expr.Lit(val.Str("then"))}
	elseOp := &plan.Operator{Tag: plan.OpLet, Name: "x", Value: expr.Lit(val.Str("else"))}
	ifOp := plan.Wrap(plan.OpIfElse, thenOp, elseOp)
	ifOp.Cond = expr.Lit(val.Bool(true))

	it, err := eng.Run(ifOp)
	require.NoError(t, err)
	rows, err := drain(it)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, val.Str("then"), rows[0].Value)
}

func TestRunDistinctRemovesDuplicates(t *testing.T) {
	eng, tx := newEngineFixture(t)
	putRecord(t, tx, "ns1", "db1", "tag", val.NewRecordIDString("a"), val.Object{"name": val.Str("x")})
	putRecord(t, tx, "ns1", "db1", "tag", val.NewRecordIDString("b"), val.Object{"name": val.Str("x")})

	scan := &plan.Operator{Tag: plan.OpTableScan, Table: "tag"}
	proj := plan.Wrap(plan.OpProject, scan)
	proj.Fields = []*expr.Expr{expr.IdiomExpr(val.FieldPart("name"))}
	dist := plan.Wrap(plan.OpDistinct, proj)

	it, err := eng.Run(dist)
	require.NoError(t, err)
	rows, err := drain(it)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
