package val

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CoerceError is the error returned by CoerceTo; it is distinct from a
// plain structural type-check failure in that it always names the
// offending Kind and the value's variant (spec §3.2).
type CoerceError struct {
	Value Value
	Kind  Kind
}

func (e *CoerceError) Error() string {
	return fmt.Sprintf("cannot coerce %s to %s", e.Value, e.Kind)
}

func coerceErr(v Value, k Kind) error { return &CoerceError{Value: v, Kind: k} }

// CoerceTo implements the partial function Value x Kind -> Value (spec
// §3.2): it succeeds when the runtime variant is convertible without loss,
// and fails with *CoerceError otherwise.
func CoerceTo(v Value, k Kind) (Value, error) {
	switch k.tag {
	case KindAny:
		return v, nil
	case KindNull:
		if _, ok := v.(Null); ok {
			return v, nil
		}
		return nil, coerceErr(v, k)
	case KindBool:
		if _, ok := v.(Bool); ok {
			return v, nil
		}
		return nil, coerceErr(v, k)
	case KindBytes:
		if _, ok := v.(Bytes); ok {
			return v, nil
		}
		return nil, coerceErr(v, k)
	case KindDatetime:
		if _, ok := v.(DatetimeV); ok {
			return v, nil
		}
		return nil, coerceErr(v, k)
	case KindDecimal:
		if n, ok := v.(Number); ok {
			return Dec(n.AsDecimal()), nil
		}
		return nil, coerceErr(v, k)
	case KindDuration:
		if _, ok := v.(DurationV); ok {
			return v, nil
		}
		return nil, coerceErr(v, k)
	case KindFloat:
		if n, ok := v.(Number); ok {
			switch n.k {
			case NumFloat:
				return n, nil
			case NumInt:
				return Float(float64(n.i)), nil
			case NumDecimal:
				f, exact := n.d.Float64()
				if !exact {
					return nil, coerceErr(v, k)
				}
				return Float(f), nil
			}
		}
		return nil, coerceErr(v, k)
	case KindInt:
		if n, ok := v.(Number); ok {
			if iv, ok := n.AsInt(); ok {
				return Int(iv), nil
			}
		}
		return nil, coerceErr(v, k)
	case KindNumber:
		if n, ok := v.(Number); ok {
			return n, nil
		}
		return nil, coerceErr(v, k)
	case KindObject:
		if _, ok := v.(Object); ok {
			return v, nil
		}
		return nil, coerceErr(v, k)
	case KindPoint:
		if g, ok := v.(GeometryV); ok && g.Sub == GeomPoint {
			return v, nil
		}
		return nil, coerceErr(v, k)
	case KindString:
		if _, ok := v.(Str); ok {
			return v, nil
		}
		return nil, coerceErr(v, k)
	case KindUuid:
		if _, ok := v.(UuidV); ok {
			return v, nil
		}
		return nil, coerceErr(v, k)
	case KindRecord:
		rid, ok := v.(RecordID)
		if !ok {
			return nil, coerceErr(v, k)
		}
		if len(k.Record) == 0 {
			return v, nil
		}
		for _, t := range k.Record {
			if t == rid.Table {
				return v, nil
			}
		}
		return nil, coerceErr(v, k)
	case KindGeometry:
		g, ok := v.(GeometryV)
		if !ok {
			return nil, coerceErr(v, k)
		}
		if len(k.Geometry) == 0 {
			return v, nil
		}
		for _, gk := range k.Geometry {
			if gk == g.Sub {
				return v, nil
			}
		}
		return nil, coerceErr(v, k)
	case KindOption:
		if _, isNone := v.(None); isNone {
			return v, nil
		}
		if _, isNull := v.(Null); isNull {
			return v, nil
		}
		return CoerceTo(v, *k.Inner)
	case KindEither:
		for _, alt := range k.Either {
			if cv, err := CoerceTo(v, alt); err == nil {
				return cv, nil
			}
		}
		return nil, coerceErr(v, k)
	case KindSet, KindArray:
		arr, ok := v.(Array)
		if !ok {
			return nil, coerceErr(v, k)
		}
		if k.Length != nil && uint64(len(arr)) > *k.Length {
			return nil, coerceErr(v, k)
		}
		out := make(Array, len(arr))
		for i, el := range arr {
			cv, err := CoerceTo(el, *k.Inner)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		if k.tag == KindSet {
			out = dedupPreserveOrder(out)
		}
		return out, nil
	case KindFunction:
		if _, ok := v.(ClosureV); ok {
			return v, nil
		}
		return nil, coerceErr(v, k)
	case KindRange:
		if _, ok := v.(RangeV); ok {
			return v, nil
		}
		return nil, coerceErr(v, k)
	case KindLiteralType:
		return coerceLiteral(v, *k.Literal, k)
	default:
		return nil, coerceErr(v, k)
	}
}

func dedupPreserveOrder(arr Array) Array {
	out := make(Array, 0, len(arr))
	for _, v := range arr {
		dup := false
		for _, seen := range out {
			if Equal(v, seen) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, v)
		}
	}
	return out
}

func coerceLiteral(v Value, lit Literal, k Kind) (Value, error) {
	if lit.Str != nil {
		if s, ok := v.(Str); ok && string(s) == *lit.Str {
			return v, nil
		}
		return nil, coerceErr(v, k)
	}
	if lit.Num != nil {
		if n, ok := v.(Number); ok && EqualNumber(n, *lit.Num) {
			return v, nil
		}
		return nil, coerceErr(v, k)
	}
	if lit.Dur != nil {
		if d, ok := v.(DurationV); ok && d == *lit.Dur {
			return v, nil
		}
		return nil, coerceErr(v, k)
	}
	if lit.Bool != nil {
		if b, ok := v.(Bool); ok && bool(b) == *lit.Bool {
			return v, nil
		}
		return nil, coerceErr(v, k)
	}
	if lit.Array != nil {
		arr, ok := v.(Array)
		if !ok || len(arr) != len(lit.Array) {
			return nil, coerceErr(v, k)
		}
		for i, el := range lit.Array {
			if _, err := coerceLiteral(arr[i], el, k); err != nil {
				return nil, err
			}
		}
		return v, nil
	}
	if lit.Object != nil {
		obj, ok := v.(Object)
		if !ok {
			return nil, coerceErr(v, k)
		}
		for key, el := range lit.Object {
			fv, present := obj[key]
			if !present {
				return nil, coerceErr(v, k)
			}
			if _, err := coerceLiteral(fv, el, k); err != nil {
				return nil, err
			}
		}
		return v, nil
	}
	return nil, coerceErr(v, k)
}

// MustDecimal is a test/construction helper parsing a decimal literal.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}
