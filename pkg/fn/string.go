package fn

import (
	"context"
	"strings"

	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/val"
)

func registerString(r *Registry) {
	r.Register("string::concat", fnStringConcat)
	r.Register("string::join", fnStringJoin)
	r.Register("string::len", fnStringLen)
	r.Register("string::uppercase", fnStringUppercase)
	r.Register("string::lowercase", fnStringLowercase)
	r.Register("string::trim", fnStringTrim)
	r.Register("string::replace", fnStringReplace)
	r.Register("string::split", fnStringSplit)
	r.Register("string::starts_with", fnStringStartsWith)
	r.Register("string::ends_with", fnStringEndsWith)
	r.Register("string::contains", fnStringContains)
	r.Register("string::repeat", fnStringRepeat)
	r.Register("string::reverse", fnStringReverse)
	r.Register("string::slice", fnStringSlice)
}

func fnStringConcat(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	parts, err := stringsOf("string::concat", args)
	if err != nil {
		return nil, err
	}
	return val.Str(joinStrings(parts, "")), nil
}

func fnStringJoin(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("string::join", args, 1, -1); err != nil {
		return nil, err
	}
	sep, err := asString("string::join", args[0])
	if err != nil {
		return nil, err
	}
	parts, err := stringsOf("string::join", args[1:])
	if err != nil {
		return nil, err
	}
	return val.Str(joinStrings(parts, sep)), nil
}

func fnStringLen(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("string::len", args, 1, 1); err != nil {
		return nil, err
	}
	s, err := asString("string::len", args[0])
	if err != nil {
		return nil, err
	}
	return val.Int(int64(len([]rune(s)))), nil
}

func fnStringUppercase(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("string::uppercase", args, 1, 1); err != nil {
		return nil, err
	}
	s, err := asString("string::uppercase", args[0])
	if err != nil {
		return nil, err
	}
	return val.Str(strings.ToUpper(s)), nil
}

func fnStringLowercase(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("string::lowercase", args, 1, 1); err != nil {
		return nil, err
	}
	s, err := asString("string::lowercase", args[0])
	if err != nil {
		return nil, err
	}
	return val.Str(strings.ToLower(s)), nil
}

func fnStringTrim(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("string::trim", args, 1, 1); err != nil {
		return nil, err
	}
	s, err := asString("string::trim", args[0])
	if err != nil {
		return nil, err
	}
	return val.Str(strings.TrimSpace(s)), nil
}

func fnStringReplace(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("string::replace", args, 3, 3); err != nil {
		return nil, err
	}
	parts, err := stringsOf("string::replace", args)
	if err != nil {
		return nil, err
	}
	return val.Str(strings.ReplaceAll(parts[0], parts[1], parts[2])), nil
}

func fnStringSplit(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("string::split", args, 2, 2); err != nil {
		return nil, err
	}
	parts, err := stringsOf("string::split", args)
	if err != nil {
		return nil, err
	}
	pieces := strings.Split(parts[0], parts[1])
	out := make(val.Array, len(pieces))
	for i, p := range pieces {
		out[i] = val.Str(p)
	}
	return out, nil
}

func fnStringStartsWith(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("string::starts_with", args, 2, 2); err != nil {
		return nil, err
	}
	parts, err := stringsOf("string::starts_with", args)
	if err != nil {
		return nil, err
	}
	return val.Bool(strings.HasPrefix(parts[0], parts[1])), nil
}

func fnStringEndsWith(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("string::ends_with", args, 2, 2); err != nil {
		return nil, err
	}
	parts, err := stringsOf("string::ends_with", args)
	if err != nil {
		return nil, err
	}
	return val.Bool(strings.HasSuffix(parts[0], parts[1])), nil
}

func fnStringContains(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("string::contains", args, 2, 2); err != nil {
		return nil, err
	}
	parts, err := stringsOf("string::contains", args)
	if err != nil {
		return nil, err
	}
	return val.Bool(strings.Contains(parts[0], parts[1])), nil
}

func fnStringRepeat(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("string::repeat", args, 2, 2); err != nil {
		return nil, err
	}
	s, err := asString("string::repeat", args[0])
	if err != nil {
		return nil, err
	}
	n, err := asInt("string::repeat", args[1])
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, xerrors.New(xerrors.KindInvalidArguments, "fn: string::repeat count must be non-negative")
	}
	return val.Str(strings.Repeat(s, int(n))), nil
}

func fnStringReverse(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("string::reverse", args, 1, 1); err != nil {
		return nil, err
	}
	s, err := asString("string::reverse", args[0])
	if err != nil {
		return nil, err
	}
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return val.Str(string(r)), nil
}

func fnStringSlice(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("string::slice", args, 2, 3); err != nil {
		return nil, err
	}
	s, err := asString("string::slice", args[0])
	if err != nil {
		return nil, err
	}
	start, err := asInt("string::slice", args[1])
	if err != nil {
		return nil, err
	}
	r := []rune(s)
	end := int64(len(r))
	if len(args) == 3 {
		end, err = asInt("string::slice", args[2])
		if err != nil {
			return nil, err
		}
	}
	if start < 0 || end > int64(len(r)) || start > end {
		return nil, xerrors.New(xerrors.KindInvalidArguments, "fn: string::slice bounds out of range")
	}
	return val.Str(string(r[start:end])), nil
}
