package val

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nexusdb/nexus/internal/xerrors"
)

// wireTag is the on-disk/on-wire discriminant for a Value variant. These
// numbers are part of the storage format and must never be renumbered or
// reused, the same rule the teacher's table-name constants follow.
type wireTag uint8

const (
	wireNone wireTag = iota
	wireNull
	wireBool
	wireNumber
	wireString
	wireDuration
	wireDatetime
	wireUuid
	wireArray
	wireObject
	wireGeometry
	wireBytes
	wireRecordID
	wireRange
	wireRegex
	wireFile
	wireTable
	// wireClosure is intentionally absent: closures are never persisted to
	// storage or sent over the wire, only held in an execution context.
)

// envelope is the tagged-union wrapper every Value is encoded inside.
type envelope struct {
	T wireTag         `json:"t"`
	V json.RawMessage `json:"v,omitempty"`
}

// Encode serializes v to its wire/storage form, a JSON envelope tagged
// with the variant's wireTag and carrying no revision marker (spec §3 "every
// catalog/value type round-trips through Encode/Decode losslessly").
func Encode(v Value) ([]byte, error) {
	env, err := encodeEnvelope(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

func encodeEnvelope(v Value) (envelope, error) {
	switch t := v.(type) {
	case None:
		return envelope{T: wireNone}, nil
	case Null:
		return envelope{T: wireNull}, nil
	case Bool:
		return marshalInto(wireBool, bool(t))
	case Number:
		return encodeNumber(t)
	case Str:
		return marshalInto(wireString, string(t))
	case DurationV:
		return marshalInto(wireDuration, int64(t))
	case DatetimeV:
		return marshalInto(wireDatetime, time.Time(t).UnixNano())
	case UuidV:
		return marshalInto(wireUuid, uuid.UUID(t).String())
	case Array:
		elems := make([]envelope, len(t))
		for i, el := range t {
			e, err := encodeEnvelope(el)
			if err != nil {
				return envelope{}, err
			}
			elems[i] = e
		}
		return marshalInto(wireArray, elems)
	case Object:
		fields := make(map[string]envelope, len(t))
		for k, el := range t {
			e, err := encodeEnvelope(el)
			if err != nil {
				return envelope{}, err
			}
			fields[k] = e
		}
		return marshalInto(wireObject, fields)
	case GeometryV:
		return marshalInto(wireGeometry, t)
	case Bytes:
		return marshalInto(wireBytes, []byte(t))
	case RecordID:
		return encodeRecordID(t)
	case RangeV:
		return encodeRange(t)
	case RegexV:
		return marshalInto(wireRegex, t.Source)
	case FileV:
		return marshalInto(wireFile, t)
	case TableV:
		return marshalInto(wireTable, string(t))
	default:
		return envelope{}, xerrors.New(xerrors.KindInternal, fmt.Sprintf("codec: unencodable value %T", v))
	}
}

func marshalInto(tag wireTag, payload any) (envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return envelope{}, xerrors.Wrap(xerrors.KindInternal, "codec: marshal failed", err)
	}
	return envelope{T: tag, V: raw}, nil
}

func datetimeFromUnixNano(nanos int64) DatetimeV {
	return DatetimeV(time.Unix(0, nanos).UTC())
}

type numberWire struct {
	K NumberKind `json:"k"`
	I int64      `json:"i,omitempty"`
	F float64    `json:"f,omitempty"`
	D string     `json:"d,omitempty"`
}

func encodeNumber(n Number) (envelope, error) {
	w := numberWire{K: n.k}
	switch n.k {
	case NumInt:
		w.I = n.i
	case NumFloat:
		w.F = n.f
	case NumDecimal:
		w.D = n.d.String()
	}
	return marshalInto(wireNumber, w)
}

type recordIDKeyWire struct {
	Tag RecordIdKeyTag  `json:"tag"`
	Num int64           `json:"num,omitempty"`
	Str string          `json:"str,omitempty"`
	Uid string          `json:"uid,omitempty"`
	Arr envelope        `json:"arr,omitempty"`
	Obj envelope        `json:"obj,omitempty"`
	Rng *rangeBoundWire  `json:"rng,omitempty"`
}

type rangeBoundWire struct {
	StartKind BoundKind        `json:"sk"`
	Start     *recordIDKeyWire `json:"s,omitempty"`
	EndKind   BoundKind        `json:"ek"`
	End       *recordIDKeyWire `json:"e,omitempty"`
}

func encodeRecordIDKey(k RecordIdKey) (recordIDKeyWire, error) {
	w := recordIDKeyWire{Tag: k.Tag}
	switch k.Tag {
	case RIDNumber:
		w.Num = k.Num
	case RIDString:
		w.Str = k.Str
	case RIDUuid:
		w.Uid = uuid.UUID(k.Uuid).String()
	case RIDArray:
		e, err := encodeEnvelope(k.Arr)
		if err != nil {
			return w, err
		}
		w.Arr = e
	case RIDObject:
		e, err := encodeEnvelope(k.Obj)
		if err != nil {
			return w, err
		}
		w.Obj = e
	case RIDRange:
		sk, err := encodeRangeBound(k.RRange)
		if err != nil {
			return w, err
		}
		w.Rng = sk
	}
	return w, nil
}

func encodeRangeBound(r *RecordIdKeyRange) (*rangeBoundWire, error) {
	out := &rangeBoundWire{StartKind: r.StartKind, EndKind: r.EndKind}
	if r.Start != nil {
		sw, err := encodeRecordIDKey(*r.Start)
		if err != nil {
			return nil, err
		}
		out.Start = &sw
	}
	if r.End != nil {
		ew, err := encodeRecordIDKey(*r.End)
		if err != nil {
			return nil, err
		}
		out.End = &ew
	}
	return out, nil
}

type recordIDWire struct {
	Table string          `json:"table"`
	Key   recordIDKeyWire `json:"key"`
}

func encodeRecordID(r RecordID) (envelope, error) {
	kw, err := encodeRecordIDKey(r.Key)
	if err != nil {
		return envelope{}, err
	}
	return marshalInto(wireRecordID, recordIDWire{Table: r.Table, Key: kw})
}

type rangeWire struct {
	StartKind BoundKind `json:"sk"`
	Start     *envelope `json:"s,omitempty"`
	EndKind   BoundKind `json:"ek"`
	End       *envelope `json:"e,omitempty"`
}

func encodeRange(r RangeV) (envelope, error) {
	w := rangeWire{StartKind: r.StartKind, EndKind: r.EndKind}
	if r.Start != nil {
		e, err := encodeEnvelope(r.Start)
		if err != nil {
			return envelope{}, err
		}
		w.Start = &e
	}
	if r.End != nil {
		e, err := encodeEnvelope(r.End)
		if err != nil {
			return envelope{}, err
		}
		w.End = &e
	}
	return marshalInto(wireRange, w)
}

// Decode deserializes a Value previously produced by Encode.
func Decode(data []byte) (Value, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, xerrors.Wrap(xerrors.KindInternal, "codec: unmarshal envelope failed", err)
	}
	return decodeEnvelope(env)
}

func decodeEnvelope(env envelope) (Value, error) {
	switch env.T {
	case wireNone:
		return None{}, nil
	case wireNull:
		return Null{}, nil
	case wireBool:
		var b bool
		if err := json.Unmarshal(env.V, &b); err != nil {
			return nil, err
		}
		return Bool(b), nil
	case wireNumber:
		var w numberWire
		if err := json.Unmarshal(env.V, &w); err != nil {
			return nil, err
		}
		switch w.K {
		case NumInt:
			return Int(w.I), nil
		case NumFloat:
			return Float(w.F), nil
		case NumDecimal:
			d, err := decimal.NewFromString(w.D)
			if err != nil {
				return nil, xerrors.Wrap(xerrors.KindInternal, "codec: bad decimal", err)
			}
			return Dec(d), nil
		default:
			return nil, xerrors.New(xerrors.KindInternal, "codec: unknown number kind")
		}
	case wireString:
		var s string
		if err := json.Unmarshal(env.V, &s); err != nil {
			return nil, err
		}
		return Str(s), nil
	case wireDuration:
		var d int64
		if err := json.Unmarshal(env.V, &d); err != nil {
			return nil, err
		}
		return DurationV(d), nil
	case wireDatetime:
		var nanos int64
		if err := json.Unmarshal(env.V, &nanos); err != nil {
			return nil, err
		}
		return datetimeFromUnixNano(nanos), nil
	case wireUuid:
		var s string
		if err := json.Unmarshal(env.V, &s); err != nil {
			return nil, err
		}
		u, err := uuid.Parse(s)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.KindInternal, "codec: bad uuid", err)
		}
		return UuidV(u), nil
	case wireArray:
		var elems []envelope
		if err := json.Unmarshal(env.V, &elems); err != nil {
			return nil, err
		}
		out := make(Array, len(elems))
		for i, e := range elems {
			v, err := decodeEnvelope(e)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case wireObject:
		var fields map[string]envelope
		if err := json.Unmarshal(env.V, &fields); err != nil {
			return nil, err
		}
		out := make(Object, len(fields))
		for k, e := range fields {
			v, err := decodeEnvelope(e)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	case wireGeometry:
		var g GeometryV
		if err := json.Unmarshal(env.V, &g); err != nil {
			return nil, err
		}
		return g, nil
	case wireBytes:
		var b []byte
		if err := json.Unmarshal(env.V, &b); err != nil {
			return nil, err
		}
		return Bytes(b), nil
	case wireRecordID:
		var w recordIDWire
		if err := json.Unmarshal(env.V, &w); err != nil {
			return nil, err
		}
		key, err := decodeRecordIDKey(w.Key)
		if err != nil {
			return nil, err
		}
		return RecordID{Table: w.Table, Key: key}, nil
	case wireRange:
		var w rangeWire
		if err := json.Unmarshal(env.V, &w); err != nil {
			return nil, err
		}
		out := RangeV{StartKind: w.StartKind, EndKind: w.EndKind}
		if w.Start != nil {
			v, err := decodeEnvelope(*w.Start)
			if err != nil {
				return nil, err
			}
			out.Start = v
		}
		if w.End != nil {
			v, err := decodeEnvelope(*w.End)
			if err != nil {
				return nil, err
			}
			out.End = v
		}
		return out, nil
	case wireRegex:
		var s string
		if err := json.Unmarshal(env.V, &s); err != nil {
			return nil, err
		}
		return RegexV{Source: s}, nil
	case wireFile:
		var f FileV
		if err := json.Unmarshal(env.V, &f); err != nil {
			return nil, err
		}
		return f, nil
	case wireTable:
		var s string
		if err := json.Unmarshal(env.V, &s); err != nil {
			return nil, err
		}
		return TableV(s), nil
	default:
		return nil, xerrors.New(xerrors.KindInternal, fmt.Sprintf("codec: unknown wire tag %d", env.T))
	}
}

func decodeRecordIDKey(w recordIDKeyWire) (RecordIdKey, error) {
	switch w.Tag {
	case RIDNumber:
		return NewRecordIDNumber(w.Num), nil
	case RIDString:
		return NewRecordIDString(w.Str), nil
	case RIDUuid:
		u, err := uuid.Parse(w.Uid)
		if err != nil {
			return RecordIdKey{}, xerrors.Wrap(xerrors.KindInternal, "codec: bad uuid key", err)
		}
		return NewRecordIDUuid(UuidV(u)), nil
	case RIDArray:
		v, err := decodeEnvelope(w.Arr)
		if err != nil {
			return RecordIdKey{}, err
		}
		arr, ok := v.(Array)
		if !ok {
			return RecordIdKey{}, xerrors.New(xerrors.KindInternal, "codec: record id array key malformed")
		}
		return NewRecordIDArray(arr), nil
	case RIDObject:
		v, err := decodeEnvelope(w.Obj)
		if err != nil {
			return RecordIdKey{}, err
		}
		obj, ok := v.(Object)
		if !ok {
			return RecordIdKey{}, xerrors.New(xerrors.KindInternal, "codec: record id object key malformed")
		}
		return NewRecordIDObject(obj), nil
	case RIDRange:
		rr, err := decodeRangeBound(w.Rng)
		if err != nil {
			return RecordIdKey{}, err
		}
		return NewRecordIDRange(*rr), nil
	default:
		return RecordIdKey{}, xerrors.New(xerrors.KindInternal, "codec: unknown record id key tag")
	}
}

func decodeRangeBound(w *rangeBoundWire) (*RecordIdKeyRange, error) {
	out := &RecordIdKeyRange{StartKind: w.StartKind, EndKind: w.EndKind}
	if w.Start != nil {
		sk, err := decodeRecordIDKey(*w.Start)
		if err != nil {
			return nil, err
		}
		out.Start = &sk
	}
	if w.End != nil {
		ek, err := decodeRecordIDKey(*w.End)
		if err != nil {
			return nil, err
		}
		out.End = &ek
	}
	return out, nil
}
