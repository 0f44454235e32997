package fn

import (
	"context"
	"sort"

	"github.com/nexusdb/nexus/pkg/val"
)

func registerArray(r *Registry) {
	r.Register("array::len", fnArrayLen)
	r.Register("array::append", fnArrayAppend)
	r.Register("array::concat", fnArrayConcat)
	r.Register("array::distinct", fnArrayDistinct)
	r.Register("array::flatten", fnArrayFlatten)
	r.Register("array::sort", fnArraySort)
	r.Register("array::first", fnArrayFirst)
	r.Register("array::last", fnArrayLast)
	r.Register("array::join", fnArrayJoin)
	r.Register("array::contains", fnArrayContains)
	r.Register("array::reverse", fnArrayReverse)
}

func fnArrayLen(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("array::len", args, 1, 1); err != nil {
		return nil, err
	}
	a, err := asArray("array::len", args[0])
	if err != nil {
		return nil, err
	}
	return val.Int(int64(len(a))), nil
}

func fnArrayAppend(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("array::append", args, 2, 2); err != nil {
		return nil, err
	}
	a, err := asArray("array::append", args[0])
	if err != nil {
		return nil, err
	}
	out := make(val.Array, len(a), len(a)+1)
	copy(out, a)
	return append(out, args[1]), nil
}

func fnArrayConcat(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("array::concat", args, 1, -1); err != nil {
		return nil, err
	}
	var out val.Array
	for _, arg := range args {
		a, err := asArray("array::concat", arg)
		if err != nil {
			return nil, err
		}
		out = append(out, a...)
	}
	return out, nil
}

func fnArrayDistinct(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("array::distinct", args, 1, 1); err != nil {
		return nil, err
	}
	a, err := asArray("array::distinct", args[0])
	if err != nil {
		return nil, err
	}
	out := make(val.Array, 0, len(a))
	for _, v := range a {
		dup := false
		for _, seen := range out {
			if val.Equal(v, seen) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, v)
		}
	}
	return out, nil
}

func fnArrayFlatten(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("array::flatten", args, 1, 1); err != nil {
		return nil, err
	}
	a, err := asArray("array::flatten", args[0])
	if err != nil {
		return nil, err
	}
	out := make(val.Array, 0, len(a))
	for _, v := range a {
		if inner, ok := v.(val.Array); ok {
			out = append(out, inner...)
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func fnArraySort(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("array::sort", args, 1, 2); err != nil {
		return nil, err
	}
	a, err := asArray("array::sort", args[0])
	if err != nil {
		return nil, err
	}
	desc := false
	if len(args) == 2 {
		dir, err := asString("array::sort", args[1])
		if err != nil {
			return nil, err
		}
		if dir == "desc" || dir == "DESC" {
			desc = true
		}
	}
	out := make(val.Array, len(a))
	copy(out, a)
	sort.SliceStable(out, func(i, j int) bool {
		c := val.Compare(out[i], out[j])
		if desc {
			return c > 0
		}
		return c < 0
	})
	return out, nil
}

func fnArrayFirst(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("array::first", args, 1, 1); err != nil {
		return nil, err
	}
	a, err := asArray("array::first", args[0])
	if err != nil {
		return nil, err
	}
	if len(a) == 0 {
		return val.None{}, nil
	}
	return a[0], nil
}

func fnArrayLast(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("array::last", args, 1, 1); err != nil {
		return nil, err
	}
	a, err := asArray("array::last", args[0])
	if err != nil {
		return nil, err
	}
	if len(a) == 0 {
		return val.None{}, nil
	}
	return a[len(a)-1], nil
}

func fnArrayJoin(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("array::join", args, 2, 2); err != nil {
		return nil, err
	}
	a, err := asArray("array::join", args[0])
	if err != nil {
		return nil, err
	}
	sep, err := asString("array::join", args[1])
	if err != nil {
		return nil, err
	}
	parts := make([]string, len(a))
	for i, v := range a {
		parts[i] = v.String()
	}
	return val.Str(joinStrings(parts, sep)), nil
}

func fnArrayContains(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("array::contains", args, 2, 2); err != nil {
		return nil, err
	}
	a, err := asArray("array::contains", args[0])
	if err != nil {
		return nil, err
	}
	for _, v := range a {
		if val.Equal(v, args[1]) {
			return val.Bool(true), nil
		}
	}
	return val.Bool(false), nil
}

func fnArrayReverse(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("array::reverse", args, 1, 1); err != nil {
		return nil, err
	}
	a, err := asArray("array::reverse", args[0])
	if err != nil {
		return nil, err
	}
	out := make(val.Array, len(a))
	for i, v := range a {
		out[len(a)-1-i] = v
	}
	return out, nil
}
