package exec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusdb/nexus/pkg/catalog"
	"github.com/nexusdb/nexus/pkg/plan"
	"github.com/nexusdb/nexus/pkg/val"
)

func TestRunDefineTableWritesCatalogEntity(t *testing.T) {
	require := require.New(t)
	eng, tx := newEngineFixture(t)

	op := &plan.Operator{
		Tag:        plan.OpDefine,
		EntityKind: plan.EntityTable,
		EntityName: "widget",
		EntityBody: catalog.NewTable("widget", 0),
	}
	it, err := eng.Run(op)
	require.NoError(err)
	rows, err := drain(it)
	require.NoError(err)
	require.Len(rows, 1)

	tbl, err := eng.Res.Catalog.Table(tx, "ns1", "db1", 0, 0, "widget")
	require.NoError(err)
	require.Equal("widget", tbl.Name)
}

func TestRunDefineFieldIsTableScoped(t *testing.T) {
	require := require.New(t)
	eng, tx := newEngineFixture(t)

	op := &plan.Operator{
		Tag:        plan.OpDefine,
		Table:      "widget",
		EntityKind: plan.EntityField,
		EntityName: "color",
		EntityBody: catalog.Field{Name: val.Idiom{val.FieldPart("color")}},
	}
	_, err := eng.Run(op)
	require.NoError(err)

	f, err := eng.Res.Catalog.Field(tx, "ns1", "db1", "widget", 0, 0, "color")
	require.NoError(err)
	require.Equal("color", f.Name.String())
}

func TestRunRemoveTableDeletesCatalogEntity(t *testing.T) {
	require := require.New(t)
	eng, tx := newEngineFixture(t)

	defineOp := &plan.Operator{
		Tag: plan.OpDefine, EntityKind: plan.EntityTable, EntityName: "widget",
		EntityBody: catalog.NewTable("widget", 0),
	}
	_, err := eng.Run(defineOp)
	require.NoError(err)

	removeOp := &plan.Operator{Tag: plan.OpRemove, EntityKind: plan.EntityTable, EntityName: "widget"}
	_, err = eng.Run(removeOp)
	require.NoError(err)

	_, err = eng.Res.Catalog.Table(tx, "ns1", "db1", 0, 0, "widget")
	require.Error(err)
}

func TestRunDefineUnknownBodyTypeErrors(t *testing.T) {
	eng, _ := newEngineFixture(t)
	op := &plan.Operator{Tag: plan.OpDefine, EntityKind: plan.EntityTable, EntityName: "x", EntityBody: "not-a-table"}
	_, err := eng.Run(op)
	require.Error(t, err)
}
