package val

import "fmt"

// RecordIdKeyTag discriminates the RecordIdKey sum.
type RecordIdKeyTag uint8

const (
	RIDNumber RecordIdKeyTag = iota
	RIDString
	RIDUuid
	RIDArray
	RIDObject
	RIDRange
)

// RecordIdKey is the key half of a RecordId: a Number, String, Uuid,
// Array, Object, or an inclusive/exclusive Range over any of those (spec
// §3.1).
type RecordIdKey struct {
	Tag RecordIdKeyTag

	Num    int64
	Str    string
	Uuid   UuidV
	Arr    Array
	Obj    Object
	RRange *RecordIdKeyRange
}

func NewRecordIDNumber(n int64) RecordIdKey  { return RecordIdKey{Tag: RIDNumber, Num: n} }
func NewRecordIDString(s string) RecordIdKey { return RecordIdKey{Tag: RIDString, Str: s} }
func NewRecordIDUuid(u UuidV) RecordIdKey    { return RecordIdKey{Tag: RIDUuid, Uuid: u} }
func NewRecordIDArray(a Array) RecordIdKey   { return RecordIdKey{Tag: RIDArray, Arr: a} }
func NewRecordIDObject(o Object) RecordIdKey { return RecordIdKey{Tag: RIDObject, Obj: o} }
func NewRecordIDRange(r RecordIdKeyRange) RecordIdKey {
	return RecordIdKey{Tag: RIDRange, RRange: &r}
}

func (k RecordIdKey) String() string {
	switch k.Tag {
	case RIDNumber:
		return fmt.Sprintf("%d", k.Num)
	case RIDString:
		return fmt.Sprintf("%q", k.Str)
	case RIDUuid:
		return k.Uuid.String()
	case RIDArray:
		return k.Arr.String()
	case RIDObject:
		return k.Obj.String()
	case RIDRange:
		return k.RRange.String()
	default:
		return "?"
	}
}

// BoundKind discriminates inclusive/exclusive/unbounded range edges.
type BoundKind uint8

const (
	Unbounded BoundKind = iota
	Inclusive
	Exclusive
)

// RecordIdKeyRange bounds a RecordIdKey on each side.
type RecordIdKeyRange struct {
	StartKind BoundKind
	Start     *RecordIdKey
	EndKind   BoundKind
	End       *RecordIdKey
}

func (r RecordIdKeyRange) String() string {
	s := "?"
	if r.StartKind == Unbounded {
		s = ""
	} else if r.Start != nil {
		s = r.Start.String()
	}
	e := "?"
	if r.EndKind == Unbounded {
		e = ""
	} else if r.End != nil {
		e = r.End.String()
	}
	open, close := "[", "]"
	if r.StartKind == Exclusive {
		open = "("
	}
	if r.EndKind == Exclusive {
		close = ")"
	}
	return open + s + ".." + e + close
}

// RecordID is the {table, key} pair uniquely identifying a record (spec
// §3.1, "Thing").
type RecordID struct {
	Table string
	Key   RecordIdKey
}

func (RecordID) Kind() KindTag { return KindRecord }

func (r RecordID) String() string { return r.Table + ":" + r.Key.String() }

// RangeV is a generic inclusive/exclusive-bounded range over any two
// Values (spec §3.1, distinct from RecordIdKeyRange which is
// RecordIdKey-typed for use inside a RecordID).
type RangeV struct {
	StartKind BoundKind
	Start     Value
	EndKind   BoundKind
	End       Value
}

func (RangeV) Kind() KindTag { return KindRange }

func (r RangeV) String() string {
	open, close := "[", "]"
	if r.StartKind == Exclusive {
		open = "("
	}
	if r.EndKind == Exclusive {
		close = ")"
	}
	s, e := "", ""
	if r.Start != nil {
		s = r.Start.String()
	}
	if r.End != nil {
		e = r.End.String()
	}
	return open + s + ".." + e + close
}

// Contains reports whether v falls within the range under cmp (typically
// Compare from order.go).
func (r RangeV) Contains(v Value, cmp func(a, b Value) int) bool {
	if r.Start != nil {
		c := cmp(v, r.Start)
		if r.StartKind == Inclusive && c < 0 {
			return false
		}
		if r.StartKind == Exclusive && c <= 0 {
			return false
		}
	}
	if r.End != nil {
		c := cmp(v, r.End)
		if r.EndKind == Inclusive && c > 0 {
			return false
		}
		if r.EndKind == Exclusive && c >= 0 {
			return false
		}
	}
	return true
}
