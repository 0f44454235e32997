package exec

import (
	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/catalog"
	"github.com/nexusdb/nexus/pkg/expr"
	"github.com/nexusdb/nexus/pkg/val"
)

// PermissionChecker evaluates the three-step SELECT pipeline spec §4.5
// describes: table-level disposition, COMPUTED field materialization,
// field-level disposition. A thrown (PermConditional, errors) permission
// aborts the whole record with a user-visible error rather than
// silently dropping it, distinguishing "denied" (record or field
// vanishes) from "broken" (the query fails).
type PermissionChecker struct {
	EV *Evaluator
}

// CheckTable evaluates table.Permissions.Select against row, returning
// whether the record survives. PermFull always survives, PermNone never
// does, PermConditional evaluates Cond with row bound as $this.
func (p *PermissionChecker) CheckTable(table catalog.Table, row val.Value) (bool, error) {
	return p.evalPermission(table.Permissions.Select, row)
}

// CheckMutation evaluates the permission for a CREATE/UPDATE/DELETE
// against row (the record as it would exist post-mutation for
// CREATE/UPDATE, pre-mutation for DELETE).
func (p *PermissionChecker) CheckMutation(perm catalog.Permission, row val.Value) (bool, error) {
	return p.evalPermission(perm, row)
}

func (p *PermissionChecker) evalPermission(perm catalog.Permission, row val.Value) (bool, error) {
	switch perm.Kind {
	case catalog.PermFull:
		return true, nil
	case catalog.PermNone:
		return false, nil
	case catalog.PermConditional:
		cond, ok := perm.Cond.(*expr.Expr)
		if !ok {
			return false, xerrors.New(xerrors.KindInternal, "exec: permission condition is not *expr.Expr")
		}
		v, err := p.EV.Eval(cond, row)
		if err != nil {
			return false, err
		}
		return val.Truthy(v), nil
	default:
		return false, xerrors.New(xerrors.KindInternal, "exec: unknown permission kind")
	}
}

// Project applies the full spec §4.5 SELECT pipeline to one record: the
// table-level SELECT permission (the record is dropped if it fails),
// COMPUTED field materialization, then per-field SELECT permissions
// (denied fields become absent from the projected Object rather than
// failing the whole record). ok is false when the record itself is
// denied; callers must skip it, not project a zero Object.
func (p *PermissionChecker) Project(table catalog.Table, fields []catalog.Field, row val.Value) (projected val.Value, ok bool, err error) {
	survives, err := p.CheckTable(table, row)
	if err != nil {
		return nil, false, err
	}
	if !survives {
		return nil, false, nil
	}

	obj, isObj := row.(val.Object)
	if !isObj {
		return row, true, nil
	}
	out := make(val.Object, len(obj))
	for k, v := range obj {
		out[k] = v
	}

	for _, f := range fields {
		if f.Computed == nil {
			continue
		}
		ce, ok := f.Computed.(*expr.Expr)
		if !ok {
			return nil, false, xerrors.New(xerrors.KindInternal, "exec: computed field is not *expr.Expr")
		}
		v, err := p.EV.Eval(ce, row)
		if err != nil {
			return nil, false, err
		}
		updated, err := val.Put(out, f.Name, v)
		if err != nil {
			return nil, false, err
		}
		newOut, ok := updated.(val.Object)
		if !ok {
			return nil, false, xerrors.New(xerrors.KindInternal, "exec: computed field put did not yield an object")
		}
		out = newOut
	}

	for _, f := range fields {
		name := fieldRootName(f.Name)
		if name == "" {
			continue
		}
		allowed, err := p.evalPermission(f.Permissions.Select, row)
		if err != nil {
			return nil, false, err
		}
		if !allowed {
			delete(out, name)
		}
	}

	return out, true, nil
}

func fieldRootName(idiom val.Idiom) string {
	if len(idiom) == 0 {
		return ""
	}
	if idiom[0].Tag != val.PartField {
		return ""
	}
	return idiom[0].Field
}
