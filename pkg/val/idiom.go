package val

import (
	"strings"

	json "github.com/goccy/go-json"
)

// PartTag discriminates the Part sum of spec §3.3.
type PartTag uint8

const (
	PartField PartTag = iota
	PartIndex
	PartAll
	PartFlatten
	PartFirst
	PartLast
	PartWhere
	PartMethod
	PartClosureFieldCall
	PartDestructure
	PartOptional
	PartLookup
	PartRecurse
	PartRepeatRecurse
)

// Part is one step of an Idiom path traversal (spec §3.3). Parts that need
// expression evaluation (Where, Method args, ClosureFieldCall args, the
// Recurse instruction) carry an opaque Expr (typically *expr.Expr) and are
// only resolvable by a Walk call given an Evaluator; all other parts are
// purely structural and always resolvable.
type Part struct {
	Tag PartTag

	Field string // PartField

	// PartIndex: either a literal index/key (Literal != nil) or a dynamic
	// expression (Expr != nil) requiring an Evaluator.
	Literal Value
	Expr    any

	// PartMethod / PartClosureFieldCall
	MethodName string
	Args       []any // []Expr, evaluator-resolved

	// PartDestructure
	Destructure []DestructurePart

	// PartLookup: opaque graph/ref traversal descriptor, resolved by
	// pkg/graph rather than pkg/val.
	Lookup any

	// PartRecurse
	RecurseMin, RecurseMax int
	RecurseInstruction     any
}

// partWire is Part's JSON-able shadow. Literal is a Value interface over
// concrete types with unexported fields (Number, RecordID, ...), so it
// goes through the wire codec (codec.go) the same way Param/Config route
// their Value fields in pkg/catalog; Expr/Args/Lookup/RecurseInstruction
// stay plain `any` like the rest of the dynamic-part fields, since they
// only ever carry an opaque *expr.Expr that pkg/val never interprets.
type partWire struct {
	Tag                PartTag           `json:"tag"`
	Field              string            `json:"field,omitempty"`
	Literal            []byte            `json:"literal,omitempty"`
	Expr               any               `json:"expr,omitempty"`
	MethodName         string            `json:"method_name,omitempty"`
	Args               []any             `json:"args,omitempty"`
	Destructure        []DestructurePart `json:"destructure,omitempty"`
	Lookup             any               `json:"lookup,omitempty"`
	RecurseMin         int               `json:"recurse_min,omitempty"`
	RecurseMax         int               `json:"recurse_max,omitempty"`
	RecurseInstruction any               `json:"recurse_instruction,omitempty"`
}

func (p Part) MarshalJSON() ([]byte, error) {
	w := partWire{
		Tag: p.Tag, Field: p.Field, Expr: p.Expr, MethodName: p.MethodName,
		Args: p.Args, Destructure: p.Destructure, Lookup: p.Lookup,
		RecurseMin: p.RecurseMin, RecurseMax: p.RecurseMax,
		RecurseInstruction: p.RecurseInstruction,
	}
	if p.Literal != nil {
		lb, err := Encode(p.Literal)
		if err != nil {
			return nil, err
		}
		w.Literal = lb
	}
	return json.Marshal(w)
}

func (p *Part) UnmarshalJSON(data []byte) error {
	var w partWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = Part{
		Tag: w.Tag, Field: w.Field, Expr: w.Expr, MethodName: w.MethodName,
		Args: w.Args, Destructure: w.Destructure, Lookup: w.Lookup,
		RecurseMin: w.RecurseMin, RecurseMax: w.RecurseMax,
		RecurseInstruction: w.RecurseInstruction,
	}
	if len(w.Literal) > 0 {
		v, err := Decode(w.Literal)
		if err != nil {
			return err
		}
		p.Literal = v
	}
	return nil
}

func FieldPart(name string) Part        { return Part{Tag: PartField, Field: name} }
func IndexLiteral(v Value) Part         { return Part{Tag: PartIndex, Literal: v} }
func IndexExpr(e any) Part              { return Part{Tag: PartIndex, Expr: e} }
func AllPart() Part                     { return Part{Tag: PartAll} }
func FlattenPart() Part                 { return Part{Tag: PartFlatten} }
func FirstPart() Part                   { return Part{Tag: PartFirst} }
func LastPart() Part                    { return Part{Tag: PartLast} }
func OptionalPart() Part                { return Part{Tag: PartOptional} }
func WherePart(pred any) Part           { return Part{Tag: PartWhere, Expr: pred} }
func MethodPart(name string, a []any) Part {
	return Part{Tag: PartMethod, MethodName: name, Args: a}
}

// DestructurePart names one field extracted by a `{a, b: c.d}` destructure.
type DestructurePart struct {
	Name  string
	Inner Idiom // nested path within the field, empty means "just the field"
}

// Idiom is an ordered sequence of Parts describing a traversal into a
// Value (spec §3.3).
type Idiom []Part

func (i Idiom) String() string {
	var b strings.Builder
	for _, p := range i {
		switch p.Tag {
		case PartField:
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			b.WriteString(p.Field)
		case PartIndex:
			b.WriteByte('[')
			if p.Literal != nil {
				b.WriteString(p.Literal.String())
			} else {
				b.WriteString("?")
			}
			b.WriteByte(']')
		case PartAll:
			b.WriteString("[*]")
		case PartFlatten:
			b.WriteString("...")
		case PartFirst:
			b.WriteString("[0]")
		case PartLast:
			b.WriteString("[$]")
		case PartOptional:
			b.WriteString("?")
		default:
			b.WriteString("<part>")
		}
	}
	return b.String()
}
