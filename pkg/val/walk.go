package val

import "github.com/nexusdb/nexus/internal/xerrors"

// PathValue pairs a concrete Idiom (the path actually taken, with any `[*]`
// wildcard resolved to a concrete index/field) with the Value reached at
// that path (spec §3.3/§4.1).
type PathValue struct {
	Path  Idiom
	Value Value
}

// Evaluator resolves the dynamic sub-parts of an Idiom (Where predicates,
// Method/ClosureFieldCall arguments, dynamic Index expressions, Recurse
// instructions) against a row context. pkg/exec supplies the concrete
// implementation; pkg/val only depends on this narrow interface so the
// value model never imports the expression/executor packages.
type Evaluator interface {
	EvalIndex(expr any, row Value) (Value, error)
	EvalWhere(pred any, candidate Value) (bool, error)
	EvalMethod(name string, args []any, receiver Value) (Value, error)
}

// Walk evaluates idiom against root, returning every (path, value) leaf
// reached. Bounded recursion depth guards against adversarial [*]-over-[*]
// idioms (spec §9, "recursion safety"); exceeding it returns an Internal
// error rather than overflowing the call stack.
func Walk(root Value, idiom Idiom, ev Evaluator) ([]PathValue, error) {
	return walkStack(root, nil, idiom, ev, 0)
}

const maxWalkDepth = 256

func walkStack(v Value, prefix Idiom, rest Idiom, ev Evaluator, depth int) ([]PathValue, error) {
	if depth > maxWalkDepth {
		return nil, xerrors.New(xerrors.KindInternal, "idiom walk exceeded max depth")
	}
	if len(rest) == 0 {
		return []PathValue{{Path: append(Idiom{}, prefix...), Value: v}}, nil
	}
	part, tail := rest[0], rest[1:]

	switch part.Tag {
	case PartField:
		obj, ok := v.(Object)
		if !ok {
			if _, isNone := v.(None); isNone {
				return []PathValue{{Path: append(append(Idiom{}, prefix...), part), Value: None{}}}, nil
			}
			return nil, xerrors.New(xerrors.KindFieldNotFound, "field access on non-object value")
		}
		fv, present := obj[part.Field]
		if !present {
			fv = None{}
		}
		return walkStack(fv, append(prefix, part), tail, ev, depth+1)

	case PartIndex:
		idx, err := resolveIndex(part, v, ev)
		if err != nil {
			return nil, err
		}
		arr, ok := v.(Array)
		if !ok {
			return nil, xerrors.New(xerrors.KindTypeMismatch, "index access on non-array value")
		}
		if idx < 0 {
			idx += len(arr)
		}
		if idx < 0 || idx >= len(arr) {
			return walkStack(None{}, append(prefix, part), tail, ev, depth+1)
		}
		return walkStack(arr[idx], append(prefix, part), tail, ev, depth+1)

	case PartAll, PartFlatten:
		arr, ok := v.(Array)
		if !ok {
			if obj, isObj := v.(Object); isObj && part.Tag == PartAll {
				var out []PathValue
				for _, k := range obj.SortedKeys() {
					sub, err := walkStack(obj[k], append(prefix, FieldPart(k)), tail, ev, depth+1)
					if err != nil {
						return nil, err
					}
					out = append(out, sub...)
				}
				return out, nil
			}
			return nil, xerrors.New(xerrors.KindTypeMismatch, "[*]/... on non-array value")
		}
		var out []PathValue
		for i, el := range arr {
			sub, err := walkStack(el, append(prefix, IndexLiteral(Int(int64(i)))), tail, ev, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
		return out, nil

	case PartFirst:
		arr, ok := v.(Array)
		if !ok || len(arr) == 0 {
			return walkStack(None{}, append(prefix, part), tail, ev, depth+1)
		}
		return walkStack(arr[0], append(prefix, IndexLiteral(Int(0))), tail, ev, depth+1)

	case PartLast:
		arr, ok := v.(Array)
		if !ok || len(arr) == 0 {
			return walkStack(None{}, append(prefix, part), tail, ev, depth+1)
		}
		return walkStack(arr[len(arr)-1], append(prefix, IndexLiteral(Int(int64(len(arr)-1)))), tail, ev, depth+1)

	case PartOptional:
		if _, isNone := v.(None); isNone {
			return []PathValue{{Path: append(append(Idiom{}, prefix...), part), Value: None{}}}, nil
		}
		if _, isNull := v.(Null); isNull {
			return []PathValue{{Path: append(append(Idiom{}, prefix...), part), Value: Null{}}}, nil
		}
		return walkStack(v, prefix, tail, ev, depth+1)

	case PartWhere:
		arr, ok := v.(Array)
		if !ok {
			return nil, xerrors.New(xerrors.KindTypeMismatch, "WHERE applied to non-array value")
		}
		if ev == nil {
			return nil, xerrors.PlannerUnimplemented
		}
		var out []PathValue
		for i, el := range arr {
			ok, err := ev.EvalWhere(part.Expr, el)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			sub, err := walkStack(el, append(prefix, IndexLiteral(Int(int64(i)))), tail, ev, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
		return out, nil

	case PartMethod, PartClosureFieldCall:
		if ev == nil {
			return nil, xerrors.PlannerUnimplemented
		}
		res, err := ev.EvalMethod(part.MethodName, part.Args, v)
		if err != nil {
			return nil, err
		}
		return walkStack(res, append(prefix, part), tail, ev, depth+1)

	case PartDestructure:
		if _, ok := v.(Object); !ok {
			return nil, xerrors.New(xerrors.KindTypeMismatch, "destructure on non-object value")
		}
		var out []PathValue
		for _, dp := range part.Destructure {
			inner := append(Idiom{FieldPart(dp.Name)}, dp.Inner...)
			sub, err := walkStack(v, prefix, append(inner, tail...), ev, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
		return out, nil

	case PartLookup, PartRecurse, PartRepeatRecurse:
		// These require graph/ref resolution or recursive re-application of
		// a sub-idiom and are resolved by pkg/graph / pkg/exec, which wrap
		// Walk rather than extend it.
		return nil, xerrors.PlannerUnimplemented

	default:
		return nil, xerrors.New(xerrors.KindInternal, "unknown idiom part")
	}
}

func resolveIndex(part Part, row Value, ev Evaluator) (int, error) {
	if part.Literal != nil {
		n, ok := part.Literal.(Number)
		if !ok {
			return 0, xerrors.New(xerrors.KindTypeMismatch, "index literal is not a number")
		}
		iv, ok := n.AsInt()
		if !ok {
			return 0, xerrors.New(xerrors.KindTypeMismatch, "index literal is not an integer")
		}
		return int(iv), nil
	}
	if ev == nil {
		return 0, xerrors.PlannerUnimplemented
	}
	v, err := ev.EvalIndex(part.Expr, row)
	if err != nil {
		return 0, err
	}
	n, ok := v.(Number)
	if !ok {
		return 0, xerrors.New(xerrors.KindTypeMismatch, "index expression is not a number")
	}
	iv, ok := n.AsInt()
	if !ok {
		return 0, xerrors.New(xerrors.KindTypeMismatch, "index expression is not an integer")
	}
	return int(iv), nil
}

// Put writes value at path inside root, creating intermediate
// Objects/Arrays as needed, and returns the resulting (possibly new) root.
// It supports only the structural parts (Field, Index-with-literal) since
// it is used to reconstruct a subtree from Walk's output (spec testable
// property 4), not to evaluate arbitrary idioms.
func Put(root Value, path Idiom, value Value) (Value, error) {
	if len(path) == 0 {
		return value, nil
	}
	part, tail := path[0], path[1:]
	switch part.Tag {
	case PartField:
		obj, ok := root.(Object)
		if !ok {
			if _, isNone := root.(None); !isNone {
				return nil, xerrors.New(xerrors.KindTypeMismatch, "Put: field target is not an object")
			}
			obj = Object{}
		}
		out := Object{}
		for k, v := range obj {
			out[k] = v
		}
		child := Value(None{})
		if existing, present := out[part.Field]; present {
			child = existing
		}
		newChild, err := Put(child, tail, value)
		if err != nil {
			return nil, err
		}
		out[part.Field] = newChild
		return out, nil

	case PartIndex:
		n, ok := part.Literal.(Number)
		if !ok {
			return nil, xerrors.New(xerrors.KindTypeMismatch, "Put: only literal indices supported")
		}
		idx, _ := n.AsInt()
		arr, ok := root.(Array)
		if !ok {
			if _, isNone := root.(None); !isNone {
				return nil, xerrors.New(xerrors.KindTypeMismatch, "Put: index target is not an array")
			}
			arr = Array{}
		}
		out := append(Array{}, arr...)
		for int64(len(out)) <= idx {
			out = append(out, None{})
		}
		newChild, err := Put(out[idx], tail, value)
		if err != nil {
			return nil, err
		}
		out[idx] = newChild
		return out, nil

	default:
		// All/Flatten/Where/First/Last are resolved to concrete Field/Index
		// parts by Walk. Method and ClosureFieldCall parts, and First/Last
		// over an empty or non-array value, stay in Walk's paths as they
		// are, and Put rejects them here.
		return nil, xerrors.New(xerrors.KindInternal, "Put: unsupported path part")
	}
}
