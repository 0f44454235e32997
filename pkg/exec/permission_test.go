package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusdb/nexus/pkg/catalog"
	"github.com/nexusdb/nexus/pkg/expr"
	"github.com/nexusdb/nexus/pkg/fn"
	"github.com/nexusdb/nexus/pkg/val"
)

func newPermChecker() *PermissionChecker {
	ec := &ExecutionContext{Params: map[string]val.Value{}, Ctx: context.Background()}
	return &PermissionChecker{EV: &Evaluator{EC: ec, Fns: fn.Default(), Deps: &fn.Deps{}}}
}

func TestCheckTablePermFull(t *testing.T) {
	p := newPermChecker()
	tbl := catalog.NewTable("person", 1)
	ok, err := p.CheckTable(tbl, val.Object{})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCheckTablePermNone(t *testing.T) {
	p := newPermChecker()
	tbl := catalog.NewTable("person", 1)
	tbl.Permissions.Select = catalog.Permission{Kind: catalog.PermNone}
	ok, err := p.CheckTable(tbl, val.Object{})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCheckTablePermConditional(t *testing.T) {
	p := newPermChecker()
	tbl := catalog.NewTable("person", 1)
	cond := expr.Bin(expr.OpEq, expr.IdiomExpr(val.FieldPart("owner")), expr.Lit(val.Str("alice")))
	tbl.Permissions.Select = catalog.Permission{Kind: catalog.PermConditional, Cond: cond}

	ok, err := p.CheckTable(tbl, val.Object{"owner": val.Str("alice")})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = p.CheckTable(tbl, val.Object{"owner": val.Str("bob")})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestProjectDropsDeniedRecord(t *testing.T) {
	p := newPermChecker()
	tbl := catalog.NewTable("person", 1)
	tbl.Permissions.Select = catalog.Permission{Kind: catalog.PermNone}
	_, ok, err := p.Project(tbl, nil, val.Object{"name": val.Str("ferris")})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestProjectRedactsDeniedField(t *testing.T) {
	p := newPermChecker()
	tbl := catalog.NewTable("person", 1)
	secret := catalog.Field{
		Name:        val.Idiom{val.FieldPart("ssn")},
		Permissions: catalog.Permissions{Select: catalog.Permission{Kind: catalog.PermNone}},
	}
	row := val.Object{"name": val.Str("ferris"), "ssn": val.Str("000-00-0000")}
	out, ok, err := p.Project(tbl, []catalog.Field{secret}, row)
	require.NoError(t, err)
	require.True(t, ok)
	obj := out.(val.Object)
	_, present := obj["ssn"]
	require.False(t, present)
	require.Equal(t, val.Str("ferris"), obj["name"])
}

func TestProjectMaterializesComputedField(t *testing.T) {
	p := newPermChecker()
	tbl := catalog.NewTable("person", 1)
	computed := catalog.Field{
		Name:     val.Idiom{val.FieldPart("full_name")},
		Computed: expr.Lit(val.Str("Ferris Crab")),
	}
	row := val.Object{"name": val.Str("ferris")}
	out, ok, err := p.Project(tbl, []catalog.Field{computed}, row)
	require.NoError(t, err)
	require.True(t, ok)
	obj := out.(val.Object)
	require.Equal(t, val.Str("Ferris Crab"), obj["full_name"])
}
