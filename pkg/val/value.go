// Package val implements the universal Value sum type and the Kind type
// lattice that the query execution core operates on (spec §3.1-§3.3,
// §4.1). Every concrete type in this file is a Value variant; Compare,
// Equal, Truthy, CoerceTo and Walk are the cross-variant operations.
package val

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Value is the universal runtime value. Each concrete type below
// implements it; Kind() reports which variant a value holds so callers can
// type-switch without reflection.
type Value interface {
	Kind() KindTag
	fmt.Stringer
}

// None represents the absence of a value distinct from Null (spec §3.1).
type None struct{}

func (None) Kind() KindTag  { return KindAny }
func (None) String() string { return "NONE" }

// Null represents SQL-style NULL.
type Null struct{}

func (Null) Kind() KindTag  { return KindNull }
func (Null) String() string { return "NULL" }

// Bool is a boolean Value.
type Bool bool

func (Bool) Kind() KindTag    { return KindBool }
func (b Bool) String() string { return fmt.Sprintf("%t", bool(b)) }

// Str is a UTF-8 string Value. Named Str (not String) to avoid colliding
// with the fmt.Stringer method every variant implements.
type Str string

func (Str) Kind() KindTag    { return KindString }
func (s Str) String() string { return string(s) }

// DurationV is a non-negative, nanosecond-precision duration, bounded to
// roughly 584 years by time.Duration's own int64-nanosecond range.
type DurationV time.Duration

func (DurationV) Kind() KindTag    { return KindDuration }
func (d DurationV) String() string { return time.Duration(d).String() }

// minDatetimeSeconds/maxDatetimeSeconds bound Datetime per spec §3.1:
// range constrained to [1, 8_210_298_412_799] seconds since epoch.
const (
	minDatetimeSeconds int64 = 1
	maxDatetimeSeconds int64 = 8_210_298_412_799
)

// DatetimeV is a UTC, nanosecond-precision instant.
type DatetimeV time.Time

func (DatetimeV) Kind() KindTag { return KindDatetime }
func (d DatetimeV) String() string {
	return time.Time(d).UTC().Format(time.RFC3339Nano)
}

// InRange reports whether d falls within the spec's representable
// Datetime bound.
func (d DatetimeV) InRange() bool {
	sec := time.Time(d).Unix()
	return sec >= minDatetimeSeconds && sec <= maxDatetimeSeconds
}

// UuidV wraps an RFC 4122 UUID; Version() distinguishes v4 (random) from
// v7 (time-ordered), the two variants the spec names.
type UuidV uuid.UUID

func (UuidV) Kind() KindTag    { return KindUuid }
func (u UuidV) String() string { return uuid.UUID(u).String() }
func (u UuidV) Version() int   { return int(uuid.UUID(u).Version()) }

// Bytes is an arbitrary binary blob; round-trip through storage/wire must
// be bit-identical (spec invariant).
type Bytes []byte

func (Bytes) Kind() KindTag  { return KindBytes }
func (b Bytes) String() string {
	return fmt.Sprintf("<bytes:%d>", len(b))
}

// Array is an ordered sequence of Value.
type Array []Value

func (Array) Kind() KindTag { return KindArray }
func (a Array) String() string {
	return fmt.Sprintf("%v", []Value(a))
}

// Object maps string keys to Value. Insertion order is not significant;
// canonical ordering (used by the key/wire codecs) is lexicographic on
// encode, so Object itself need not preserve insertion order.
type Object map[string]Value

func (Object) Kind() KindTag { return KindObject }
func (o Object) String() string {
	return fmt.Sprintf("%v", map[string]Value(o))
}

// SortedKeys returns o's keys in the canonical lexicographic encode order.
func (o Object) SortedKeys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RegexV is a regular expression value held as its source pattern only
// (no compiled form is stored), so round-tripping through storage
// reproduces the exact text rather than a canonicalized recompile.
type RegexV struct {
	Source string
}

func (RegexV) Kind() KindTag    { return KindString }
func (r RegexV) String() string { return "/" + r.Source + "/" }

// FileV is a first-class reference into a bucket (spec §6.5).
type FileV struct {
	Bucket string
	Key    string
}

func (FileV) Kind() KindTag    { return KindString }
func (f FileV) String() string { return "f\"" + f.Bucket + ":" + f.Key + "\"" }

// TableV names a table without referencing a specific record.
type TableV string

func (TableV) Kind() KindTag    { return KindString }
func (t TableV) String() string { return string(t) }

// ClosureV is a first-class lambda capturing its defining environment
// (spec §9, "Closures").
type ClosureV struct {
	Params     []string
	ParamKinds []Kind
	Body       any // *expr.Expr; kept as `any` to avoid an import cycle with pkg/expr
	Env        map[string]Value
}

func (ClosureV) Kind() KindTag    { return KindAny }
func (c ClosureV) String() string { return fmt.Sprintf("|%v| ...", c.Params) }
