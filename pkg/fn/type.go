package fn

import (
	"context"
	"strconv"

	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/internal/xmath"
	"github.com/nexusdb/nexus/pkg/val"
)

func registerType(r *Registry) {
	// type::string always succeeds (every Value implements fmt.Stringer),
	// unlike the other type:: casts below which go through CoerceTo's
	// strict, lossless-only partial function (spec §3.2) and fail on a
	// variant that doesn't already belong to the target Kind's family.
	r.Register("type::string", fnTypeString)
	r.Register("type::bool", fnTypeCoerce(val.BoolK))
	r.Register("type::int", fnTypeCoerce(val.IntK))
	r.Register("type::float", fnTypeCoerce(val.FloatK))
	r.Register("type::number", fnTypeCoerce(val.NumberK))
	r.Register("type::decimal", fnTypeCoerce(val.DecimalK))
	r.Register("type::datetime", fnTypeCoerce(val.Datetime))
	r.Register("type::duration", fnTypeCoerce(val.Duration))
	r.Register("type::uuid", fnTypeCoerce(val.UuidK))
	// type::table($t) — spec names this directly: a plain string cast to
	// a first-class table reference, used where a planner step defers
	// resolving the target table until execution.
	r.Register("type::table", fnTypeTable)
	r.Register("type::is::string", fnTypeIs(val.KindString))
	r.Register("type::is::bool", fnTypeIs(val.KindBool))
	r.Register("type::is::number", fnTypeIs(val.KindNumber))
	r.Register("type::is::array", fnTypeIs(val.KindArray))
	r.Register("type::is::object", fnTypeIs(val.KindObject))
	r.Register("type::is::uuid", fnTypeIs(val.KindUuid))
	r.Register("type::is::record", fnTypeIs(val.KindRecord))
	r.Register("type::is::none", fnTypeIsNone)
	r.Register("type::is::null", fnTypeIsNull)
}

func fnTypeCoerce(k val.Kind) Fn {
	return func(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
		if err := arity("type::"+k.String(), args, 1, 1); err != nil {
			return nil, err
		}
		out, err := val.CoerceTo(args[0], k)
		if err != nil {
			if s, isStr := args[0].(val.Str); isStr {
				if parsed, ok := parseNumericString(string(s), k); ok {
					return val.CoerceTo(parsed, k)
				}
			}
			return nil, xerrors.New(xerrors.KindCoerce, "fn: "+err.Error())
		}
		return out, nil
	}
}

// parseNumericString attempts the hex-or-decimal integer / plain float
// parse a string literal needs before it can feed val.CoerceTo, for the
// numeric Kinds CoerceTo itself never accepts a Str for (CoerceTo is
// deliberately lossless-structural only, spec §3.2 — this is the parse
// step a cast performs before that check, not a relaxation of it).
func parseNumericString(s string, k val.Kind) (val.Value, bool) {
	switch k.Tag() {
	case val.KindInt:
		if n, ok := xmath.ParseInt64(s); ok {
			return val.Int(n), true
		}
	case val.KindFloat, val.KindNumber, val.KindDecimal:
		if n, ok := xmath.ParseInt64(s); ok {
			return val.Int(n), true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return val.Float(f), true
		}
	}
	return nil, false
}

func fnTypeString(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("type::string", args, 1, 1); err != nil {
		return nil, err
	}
	return val.Str(args[0].String()), nil
}

func fnTypeTable(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("type::table", args, 1, 1); err != nil {
		return nil, err
	}
	name, err := asString("type::table", args[0])
	if err != nil {
		return nil, err
	}
	return val.TableV(name), nil
}

func fnTypeIs(tag val.KindTag) Fn {
	return func(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
		if err := arity("type::is", args, 1, 1); err != nil {
			return nil, err
		}
		return val.Bool(args[0].Kind() == tag), nil
	}
}

func fnTypeIsNone(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("type::is::none", args, 1, 1); err != nil {
		return nil, err
	}
	_, ok := args[0].(val.None)
	return val.Bool(ok), nil
}

func fnTypeIsNull(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("type::is::null", args, 1, 1); err != nil {
		return nil, err
	}
	_, ok := args[0].(val.Null)
	return val.Bool(ok), nil
}
