package exec

import (
	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/catalog"
	"github.com/nexusdb/nexus/pkg/plan"
	"github.com/nexusdb/nexus/pkg/val"
)

// runDefine and runRemove are the DDL half of the operator tree (spec
// §3.4): they turn an OpDefine/OpRemove plan.Operator into one of
// pkg/catalog.Store's write-side calls, type-switching op.EntityKind
// and type-asserting op.EntityBody to the matching catalog.* struct
// the planner built it from. Table-scoped kinds (Field/Index/Event)
// reuse op.Table the same way every Source/Mutation operator already
// does for the table it runs against.
func (e *Engine) runDefine(op *plan.Operator) (RowIter, error) {
	tx, ns, db, nsID, dbID := e.EC.Tx, e.EC.NS, e.EC.DB, e.EC.NamespaceID, e.EC.DatabaseID
	cat := e.Res.Catalog

	switch op.EntityKind {
	case plan.EntityNamespace:
		if _, err := cat.DefineNamespace(tx, op.EntityName); err != nil {
			return nil, err
		}
	case plan.EntityDatabase:
		body, ok := op.EntityBody.(catalog.Database)
		if !ok {
			return nil, errDDLBody("DEFINE DATABASE")
		}
		if _, err := cat.DefineDatabase(tx, ns, op.EntityName, body.Strict, body.ChangeFeed); err != nil {
			return nil, err
		}
	case plan.EntityTable:
		body, ok := op.EntityBody.(catalog.Table)
		if !ok {
			return nil, errDDLBody("DEFINE TABLE")
		}
		if _, err := cat.DefineTable(tx, ns, db, nsID, dbID, body); err != nil {
			return nil, err
		}
	case plan.EntityField:
		body, ok := op.EntityBody.(catalog.Field)
		if !ok {
			return nil, errDDLBody("DEFINE FIELD")
		}
		if _, err := cat.DefineField(tx, ns, db, op.Table, nsID, dbID, body); err != nil {
			return nil, err
		}
	case plan.EntityIndex:
		body, ok := op.EntityBody.(catalog.Index)
		if !ok {
			return nil, errDDLBody("DEFINE INDEX")
		}
		if _, err := cat.DefineIndex(tx, ns, db, op.Table, nsID, dbID, body); err != nil {
			return nil, err
		}
	case plan.EntityAnalyzer:
		body, ok := op.EntityBody.(catalog.Analyzer)
		if !ok {
			return nil, errDDLBody("DEFINE ANALYZER")
		}
		if _, err := cat.DefineAnalyzer(tx, ns, db, body); err != nil {
			return nil, err
		}
	case plan.EntityAccess:
		body, ok := op.EntityBody.(catalog.Access)
		if !ok {
			return nil, errDDLBody("DEFINE ACCESS")
		}
		if _, err := cat.DefineAccess(tx, ns, db, nsID, dbID, body); err != nil {
			return nil, err
		}
	case plan.EntityUser:
		body, ok := op.EntityBody.(catalog.User)
		if !ok {
			return nil, errDDLBody("DEFINE USER")
		}
		if _, err := cat.DefineUser(tx, ns, db, body); err != nil {
			return nil, err
		}
	case plan.EntityFunction:
		body, ok := op.EntityBody.(catalog.Function)
		if !ok {
			return nil, errDDLBody("DEFINE FUNCTION")
		}
		if _, err := cat.DefineFunction(tx, ns, db, body); err != nil {
			return nil, err
		}
	case plan.EntityParam:
		body, ok := op.EntityBody.(catalog.Param)
		if !ok {
			return nil, errDDLBody("DEFINE PARAM")
		}
		if _, err := cat.DefineParam(tx, ns, db, body); err != nil {
			return nil, err
		}
	case plan.EntityEvent:
		body, ok := op.EntityBody.(catalog.Event)
		if !ok {
			return nil, errDDLBody("DEFINE EVENT")
		}
		if _, err := cat.DefineEvent(tx, ns, db, op.Table, body); err != nil {
			return nil, err
		}
	case plan.EntityBucket:
		body, ok := op.EntityBody.(catalog.Bucket)
		if !ok {
			return nil, errDDLBody("DEFINE BUCKET")
		}
		if _, err := cat.DefineBucket(tx, ns, db, body); err != nil {
			return nil, err
		}
	case plan.EntityApi:
		body, ok := op.EntityBody.(catalog.Api)
		if !ok {
			return nil, errDDLBody("DEFINE API")
		}
		if _, err := cat.DefineApi(tx, ns, db, body); err != nil {
			return nil, err
		}
	case plan.EntityConfig:
		body, ok := op.EntityBody.(catalog.Config)
		if !ok {
			return nil, errDDLBody("DEFINE CONFIG")
		}
		if _, err := cat.DefineConfig(tx, ns, db, body); err != nil {
			return nil, err
		}
	default:
		return nil, xerrors.PlannerUnimplemented
	}
	return sliceIter([]Row{{Value: val.Object{"name": val.Str(op.EntityName)}}}), nil
}

func (e *Engine) runRemove(op *plan.Operator) (RowIter, error) {
	tx, ns, db, nsID, dbID := e.EC.Tx, e.EC.NS, e.EC.DB, e.EC.NamespaceID, e.EC.DatabaseID
	cat := e.Res.Catalog

	var err error
	switch op.EntityKind {
	case plan.EntityNamespace:
		err = cat.RemoveNamespace(tx, op.EntityName)
	case plan.EntityDatabase:
		err = cat.RemoveDatabase(tx, ns, op.EntityName)
	case plan.EntityTable:
		err = cat.RemoveTable(tx, ns, db, nsID, dbID, op.EntityName)
	case plan.EntityField:
		err = cat.RemoveField(tx, ns, db, op.Table, nsID, dbID, op.EntityName)
	case plan.EntityIndex:
		err = cat.RemoveIndex(tx, ns, db, op.Table, nsID, dbID, op.EntityName)
	case plan.EntityAnalyzer:
		err = cat.RemoveAnalyzer(tx, ns, db, op.EntityName)
	case plan.EntityAccess:
		err = cat.RemoveAccess(tx, ns, db, nsID, dbID, op.EntityName)
	case plan.EntityUser:
		err = cat.RemoveUser(tx, ns, db, op.EntityName)
	case plan.EntityFunction:
		err = cat.RemoveFunction(tx, ns, db, op.EntityName)
	case plan.EntityParam:
		err = cat.RemoveParam(tx, ns, db, op.EntityName)
	case plan.EntityEvent:
		err = cat.RemoveEvent(tx, ns, db, op.Table, op.EntityName)
	case plan.EntityBucket:
		err = cat.RemoveBucket(tx, ns, db, op.EntityName)
	case plan.EntityApi:
		err = cat.RemoveApi(tx, ns, db, op.EntityName)
	case plan.EntityConfig:
		err = cat.RemoveConfig(tx, ns, db, op.EntityName)
	default:
		return nil, xerrors.PlannerUnimplemented
	}
	if err != nil {
		return nil, err
	}
	return sliceIter([]Row{{Value: val.Object{"name": val.Str(op.EntityName)}}}), nil
}

func errDDLBody(stmt string) error {
	return xerrors.New(xerrors.KindInternal, "exec: "+stmt+" operator missing a typed body")
}
