package val

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Kind is the static type descriptor used for fields, function parameters,
// and casts (spec §3.2). The literal sub-lattice is handled by Literal.
type Kind struct {
	tag KindTag

	// Record carries the allowed table names for tag == KindRecord. An
	// empty slice means "any table".
	Record []string

	// Geometry carries the allowed geometry sub-kinds for tag == KindGeometry.
	Geometry []GeomKind

	// Option/Array/Set wrap a single inner Kind.
	Inner *Kind

	// Array/Set carry an optional fixed length; nil means unbounded.
	Length *uint64

	// Either carries the member kinds for tag == KindEither.
	Either []Kind

	// Function carries parameter kinds (nil = any arity) and a return kind
	// (nil = any).
	FuncParams *[]Kind
	FuncReturn *Kind

	// Literal carries the pattern for tag == KindLiteralType.
	Literal *Literal
}

// KindTag enumerates the variants of Kind.
type KindTag uint8

const (
	KindAny KindTag = iota
	KindNull
	KindBool
	KindBytes
	KindDatetime
	KindDecimal
	KindDuration
	KindFloat
	KindInt
	KindNumber
	KindObject
	KindPoint
	KindString
	KindUuid
	KindRecord
	KindGeometry
	KindOption
	KindEither
	KindSet
	KindArray
	KindFunction
	KindRange
	KindLiteralType
)

// GeomKind enumerates the geometry sub-kinds usable in Kind.Geometry.
type GeomKind uint8

const (
	GeomPoint GeomKind = iota
	GeomLine
	GeomPolygon
	GeomMultiPoint
	GeomMultiLine
	GeomMultiPolygon
	GeomCollection
)

// Literal is a value-level pattern type: a string/number/duration literal,
// or a literal array/object shape.
type Literal struct {
	Str      *string
	Num      *Number
	Dur      *DurationV
	Bool     *bool
	Array    []Literal
	Object   map[string]Literal
}

func simple(tag KindTag) Kind { return Kind{tag: tag} }

var (
	Any      = simple(KindAny)
	NullK    = simple(KindNull)
	BoolK    = simple(KindBool)
	BytesK   = simple(KindBytes)
	Datetime = simple(KindDatetime)
	DecimalK = simple(KindDecimal)
	Duration = simple(KindDuration)
	FloatK   = simple(KindFloat)
	IntK     = simple(KindInt)
	NumberK  = simple(KindNumber)
	ObjectK  = simple(KindObject)
	Point    = simple(KindPoint)
	StringK  = simple(KindString)
	UuidK    = simple(KindUuid)
	RangeK   = simple(KindRange)
)

func (k Kind) Tag() KindTag { return k.tag }

// WithTag rebuilds a Kind carrying tag with the same composite fields k
// already has set (Record, Geometry, Inner, Length, Either, FuncParams,
// FuncReturn, Literal); used by pkg/catalog's revisioned codec to
// reconstruct a decoded Kind without pkg/val exposing its unexported
// tag field directly.
func (k Kind) WithTag(tag KindTag) Kind {
	k.tag = tag
	return k
}

// kindWire is Kind's JSON-able shadow: tag is unexported so a plain
// marshal would silently drop the discriminant. Catalog entities that
// embed a Kind (pkg/catalog's Field.Kind, FunctionParam.Kind) rely on
// these Marshal/UnmarshalJSON methods to round-trip through the
// revisioned JSON codec without pkg/catalog reaching into Kind's
// internals.
type kindWire struct {
	Tag        KindTag  `json:"tag"`
	Record     []string `json:"record,omitempty"`
	Geometry   []GeomKind `json:"geometry,omitempty"`
	Inner      *Kind    `json:"inner,omitempty"`
	Length     *uint64  `json:"length,omitempty"`
	Either     []Kind   `json:"either,omitempty"`
	FuncParams *[]Kind  `json:"func_params,omitempty"`
	FuncReturn *Kind    `json:"func_return,omitempty"`
	Literal    *Literal `json:"literal,omitempty"`
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(kindWire{
		Tag: k.tag, Record: k.Record, Geometry: k.Geometry, Inner: k.Inner,
		Length: k.Length, Either: k.Either, FuncParams: k.FuncParams,
		FuncReturn: k.FuncReturn, Literal: k.Literal,
	})
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var w kindWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*k = Kind{
		tag: w.Tag, Record: w.Record, Geometry: w.Geometry, Inner: w.Inner,
		Length: w.Length, Either: w.Either, FuncParams: w.FuncParams,
		FuncReturn: w.FuncReturn, Literal: w.Literal,
	}
	return nil
}

func Record(tables ...string) Kind { return Kind{tag: KindRecord, Record: tables} }

func GeometryKind(geoms ...GeomKind) Kind { return Kind{tag: KindGeometry, Geometry: geoms} }

func Option(inner Kind) Kind { return Kind{tag: KindOption, Inner: &inner} }

func Either(kinds ...Kind) Kind { return Kind{tag: KindEither, Either: kinds} }

func Set(inner Kind, max *uint64) Kind { return Kind{tag: KindSet, Inner: &inner, Length: max} }

func ArrayKind(inner Kind, max *uint64) Kind { return Kind{tag: KindArray, Inner: &inner, Length: max} }

func Function(params *[]Kind, ret *Kind) Kind {
	return Kind{tag: KindFunction, FuncParams: params, FuncReturn: ret}
}

func LiteralKind(lit Literal) Kind { return Kind{tag: KindLiteralType, Literal: &lit} }

func (k Kind) String() string {
	switch k.tag {
	case KindAny:
		return "any"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindBytes:
		return "bytes"
	case KindDatetime:
		return "datetime"
	case KindDecimal:
		return "decimal"
	case KindDuration:
		return "duration"
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindNumber:
		return "number"
	case KindObject:
		return "object"
	case KindPoint:
		return "point"
	case KindString:
		return "string"
	case KindUuid:
		return "uuid"
	case KindRecord:
		if len(k.Record) == 0 {
			return "record"
		}
		return fmt.Sprintf("record<%v>", k.Record)
	case KindGeometry:
		return fmt.Sprintf("geometry<%v>", k.Geometry)
	case KindOption:
		return fmt.Sprintf("option<%s>", k.Inner)
	case KindEither:
		return fmt.Sprintf("either<%v>", k.Either)
	case KindSet:
		return fmt.Sprintf("set<%s>", k.Inner)
	case KindArray:
		return fmt.Sprintf("array<%s>", k.Inner)
	case KindFunction:
		return "function"
	case KindRange:
		return "range"
	case KindLiteralType:
		return "literal"
	default:
		return "unknown"
	}
}

// Accepts reports whether CoerceTo(v, k) succeeds (used to validate
// DEFINE FIELD TYPE assertions). A value that CoerceTo would convert,
// such as an Int for a float kind, is accepted as well.
func (k Kind) Accepts(v Value) bool {
	_, err := CoerceTo(v, k)
	return err == nil
}
