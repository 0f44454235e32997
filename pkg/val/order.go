package val

import (
	"bytes"
	"time"
)

// variantRank assigns the total-order rank demanded by spec §3.1:
//
//	None < Null < Bool < Number < String < Duration < Datetime < Uuid <
//	Array < Object < Geometry < Bytes < RecordId < Range < Regex < File <
//	Closure < Table
//
// Ranking is a dedicated type switch rather than reuse of Kind() because
// several variants (Regex/File/Table) share a Kind() tag with String for
// coercion purposes but must still rank distinctly among themselves.
func variantRank(v Value) int {
	switch v.(type) {
	case None:
		return 0
	case Null:
		return 1
	case Bool:
		return 2
	case Number:
		return 3
	case Str:
		return 4
	case DurationV:
		return 5
	case DatetimeV:
		return 6
	case UuidV:
		return 7
	case Array:
		return 8
	case Object:
		return 9
	case GeometryV:
		return 10
	case Bytes:
		return 11
	case RecordID:
		return 12
	case RangeV:
		return 13
	case RegexV:
		return 14
	case FileV:
		return 15
	case ClosureV:
		return 16
	case TableV:
		return 17
	default:
		return 99
	}
}

// Compare implements the total order over Value required by spec §3.1 and
// testable property 3 (total, antisymmetric, transitive, NaN-aware).
func Compare(a, b Value) int {
	ra, rb := variantRank(a), variantRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch av := a.(type) {
	case None:
		return 0
	case Null:
		return 0
	case Bool:
		bv := b.(Bool)
		if av == bv {
			return 0
		}
		if !bool(av) {
			return -1
		}
		return 1
	case Number:
		return CompareNumber(av, b.(Number))
	case Str:
		return compareStrings(string(av), string(b.(Str)))
	case DurationV:
		bv := b.(DurationV)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case DatetimeV:
		at, bt := time.Time(av), time.Time(b.(DatetimeV))
		switch {
		case at.Before(bt):
			return -1
		case at.After(bt):
			return 1
		default:
			return 0
		}
	case UuidV:
		return bytes.Compare(av[:], b.(UuidV)[:])
	case Array:
		return compareArrays(av, b.(Array))
	case Object:
		return compareObjects(av, b.(Object))
	case GeometryV:
		return compareGeometry(av, b.(GeometryV))
	case Bytes:
		return bytes.Compare(av, b.(Bytes))
	case RecordID:
		return compareRecordID(av, b.(RecordID))
	case RangeV:
		return compareRange(av, b.(RangeV))
	case RegexV:
		return compareStrings(av.Source, b.(RegexV).Source)
	case FileV:
		bv := b.(FileV)
		if c := compareStrings(av.Bucket, bv.Bucket); c != 0 {
			return c
		}
		return compareStrings(av.Key, bv.Key)
	case TableV:
		return compareStrings(string(av), string(b.(TableV)))
	case ClosureV:
		return 0 // closures are not meaningfully ordered; stable but arbitrary
	default:
		return 0
	}
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareArrays(a, b Array) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func compareObjects(a, b Object) int {
	ak, bk := a.SortedKeys(), b.SortedKeys()
	for i := 0; i < len(ak) && i < len(bk); i++ {
		if c := compareStrings(ak[i], bk[i]); c != 0 {
			return c
		}
		if c := Compare(a[ak[i]], b[bk[i]]); c != 0 {
			return c
		}
	}
	switch {
	case len(ak) < len(bk):
		return -1
	case len(ak) > len(bk):
		return 1
	default:
		return 0
	}
}

func compareRecordID(a, b RecordID) int {
	if c := compareStrings(a.Table, b.Table); c != 0 {
		return c
	}
	return compareRecordIDKey(a.Key, b.Key)
}

func compareRecordIDKey(a, b RecordIdKey) int {
	if a.Tag != b.Tag {
		if a.Tag < b.Tag {
			return -1
		}
		return 1
	}
	switch a.Tag {
	case RIDNumber:
		switch {
		case a.Num < b.Num:
			return -1
		case a.Num > b.Num:
			return 1
		default:
			return 0
		}
	case RIDString:
		return compareStrings(a.Str, b.Str)
	case RIDUuid:
		return bytes.Compare(a.Uuid[:], b.Uuid[:])
	case RIDArray:
		return compareArrays(a.Arr, b.Arr)
	case RIDObject:
		return compareObjects(a.Obj, b.Obj)
	case RIDRange:
		return 0
	default:
		return 0
	}
}

func compareRange(a, b RangeV) int {
	if a.Start == nil && b.Start != nil {
		return -1
	}
	if a.Start != nil && b.Start == nil {
		return 1
	}
	if a.Start != nil && b.Start != nil {
		if c := Compare(a.Start, b.Start); c != 0 {
			return c
		}
	}
	if a.End == nil && b.End != nil {
		return 1
	}
	if a.End != nil && b.End == nil {
		return -1
	}
	if a.End != nil && b.End != nil {
		return Compare(a.End, b.End)
	}
	return 0
}

// Equal implements structural equality; numeric equality crosses
// Int/Float/Decimal by mathematical value when lossless (spec §3.1).
func Equal(a, b Value) bool {
	an, aIsNum := a.(Number)
	bn, bIsNum := b.(Number)
	if aIsNum && bIsNum {
		return EqualNumber(an, bn)
	}
	return Compare(a, b) == 0
}
