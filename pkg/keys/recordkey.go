package keys

import (
	"math/big"

	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/val"
)

// RecordIdKeyBytes is the order-preserving binary encoding of a
// val.RecordIdKey (or, more generally, any val.Value used as an indexed
// field value): bytewise-comparing two RecordIdKeyBytes agrees with
// val.Compare on the decoded values, which is what lets a table/index
// range scan return records/entries in the same order SELECT ... ORDER BY
// would (spec §4.2, "Every prefix is chosen so that scans ... return all
// children contiguously").
type RecordIdKeyBytes []byte

// Tag bytes for the ordered value encoding. Values are part of the
// on-disk format and must sort in the same relative order as
// val.variantRank for the categories this encoding supports.
const (
	ovNone   = 0x00
	ovNull   = 0x01
	ovFalse  = 0x02
	ovTrue   = 0x03
	ovNegNum = 0x04
	ovZero   = 0x05
	ovPosNum = 0x06
	ovString = 0x07
	ovUuid   = 0x08
	ovBytes  = 0x09
	ovArray  = 0x0A
	ovObject = 0x0B
)

// numberScale is the fixed number of decimal places a Number is rescaled
// to before being stored as a big integer magnitude; values carrying more
// fractional precision than this lose it in the *key* encoding only (the
// record's stored Value itself is unaffected). 9 places covers every
// practical id/index use while keeping the encoded width fixed.
const numberScale = 9

// numberMagnitudeBytes bounds the rescaled magnitude to 24 bytes (192
// bits), far beyond the 28-significant-digit Decimal ceiling plus the 9
// extra scale digits; EncodeOrderedValue errors rather than truncate if a
// pathological value ever exceeds it.
const numberMagnitudeBytes = 24

// EncodeOrderedValue encodes v into an order-preserving byte sequence.
// Supported variants: None, Null, Bool, Number, Str, UuidV, Bytes, Array,
// Object (recursively). Other variants (Array/Object elements aside) are
// never used as record ids or index field values and are rejected.
func EncodeOrderedValue(v val.Value) ([]byte, error) {
	switch t := v.(type) {
	case val.None:
		return []byte{ovNone}, nil
	case val.Null:
		return []byte{ovNull}, nil
	case val.Bool:
		if t {
			return []byte{ovTrue}, nil
		}
		return []byte{ovFalse}, nil
	case val.Number:
		return encodeOrderedNumber(t)
	case val.Str:
		out := []byte{ovString}
		return appendNulString(out, string(t)), nil
	case val.UuidV:
		out := make([]byte, 0, 17)
		out = append(out, ovUuid)
		return append(out, t[:]...), nil
	case val.Bytes:
		out := []byte{ovBytes}
		out = appendUint64(out, uint64(len(t)))
		return append(out, t...), nil
	case val.Array:
		out := []byte{ovArray}
		out = appendUint64(out, uint64(len(t)))
		for _, el := range t {
			enc, err := EncodeOrderedValue(el)
			if err != nil {
				return nil, err
			}
			out = appendUint64(out, uint64(len(enc)))
			out = append(out, enc...)
		}
		return out, nil
	case val.Object:
		keys := t.SortedKeys()
		out := []byte{ovObject}
		out = appendUint64(out, uint64(len(keys)))
		for _, k := range keys {
			out = appendNulString(out, k)
			enc, err := EncodeOrderedValue(t[k])
			if err != nil {
				return nil, err
			}
			out = appendUint64(out, uint64(len(enc)))
			out = append(out, enc...)
		}
		return out, nil
	default:
		return nil, xerrors.New(xerrors.KindInternal, "keys: value variant not key-encodable")
	}
}

func encodeOrderedNumber(n val.Number) ([]byte, error) {
	d := n.AsDecimal().Mul(val.DecimalPow10(numberScale)).Truncate(0)
	bi := d.BigInt()
	sign := bi.Sign()
	if sign == 0 {
		return []byte{ovZero}, nil
	}
	abs := new(big.Int).Abs(bi)
	if abs.BitLen() > numberMagnitudeBytes*8 {
		return nil, xerrors.New(xerrors.KindNumberOverflow, "keys: number magnitude exceeds key encoding width")
	}
	mag := make([]byte, numberMagnitudeBytes)
	abs.FillBytes(mag)
	tag := byte(ovPosNum)
	if sign < 0 {
		tag = ovNegNum
		for i := range mag {
			mag[i] = ^mag[i]
		}
	}
	return append([]byte{tag}, mag...), nil
}

// DecodeOrderedValue is the inverse of EncodeOrderedValue. Decoded Numbers
// are always val.Dec-typed (the original Int/Float/Decimal distinction is
// not recoverable from the key alone; the record's stored Value carries
// the authoritative type).
func DecodeOrderedValue(b []byte) (val.Value, error) {
	v, n, err := decodeOrderedValue(b, 0)
	if err != nil {
		return nil, err
	}
	if n != len(b) {
		return nil, xerrors.New(xerrors.KindInternal, "keys: trailing bytes after ordered value")
	}
	return v, nil
}

func decodeOrderedValue(b []byte, off int) (val.Value, int, error) {
	if off >= len(b) {
		return nil, 0, errKeyTooShort("ordered value")
	}
	tag := b[off]
	off++
	switch tag {
	case ovNone:
		return val.None{}, off, nil
	case ovNull:
		return val.Null{}, off, nil
	case ovFalse:
		return val.Bool(false), off, nil
	case ovTrue:
		return val.Bool(true), off, nil
	case ovZero:
		return val.Int(0), off, nil
	case ovNegNum, ovPosNum:
		if off+numberMagnitudeBytes > len(b) {
			return nil, 0, errKeyTooShort("ordered number")
		}
		mag := append([]byte{}, b[off:off+numberMagnitudeBytes]...)
		off += numberMagnitudeBytes
		if tag == ovNegNum {
			for i := range mag {
				mag[i] = ^mag[i]
			}
		}
		abs := new(big.Int).SetBytes(mag)
		if tag == ovNegNum {
			abs.Neg(abs)
		}
		d := val.DecimalFromBigInt(abs, -numberScale)
		return val.Dec(d), off, nil
	case ovString:
		s, next, err := readNulString(b, off)
		if err != nil {
			return nil, 0, err
		}
		return val.Str(s), next, nil
	case ovUuid:
		if off+16 > len(b) {
			return nil, 0, errKeyTooShort("ordered uuid")
		}
		var u val.UuidV
		copy(u[:], b[off:off+16])
		return u, off + 16, nil
	case ovBytes:
		n, next, err := readUint64(b, off)
		if err != nil {
			return nil, 0, err
		}
		off = next
		if off+int(n) > len(b) {
			return nil, 0, errKeyTooShort("ordered bytes")
		}
		return val.Bytes(append([]byte{}, b[off:off+int(n)]...)), off + int(n), nil
	case ovArray:
		count, next, err := readUint64(b, off)
		if err != nil {
			return nil, 0, err
		}
		off = next
		out := make(val.Array, 0, count)
		for i := uint64(0); i < count; i++ {
			elLen, n2, err := readUint64(b, off)
			if err != nil {
				return nil, 0, err
			}
			off = n2
			if off+int(elLen) > len(b) {
				return nil, 0, errKeyTooShort("ordered array element")
			}
			elVal, _, err := decodeOrderedValue(b[:off+int(elLen)], off)
			if err != nil {
				return nil, 0, err
			}
			out = append(out, elVal)
			off += int(elLen)
		}
		return out, off, nil
	case ovObject:
		count, next, err := readUint64(b, off)
		if err != nil {
			return nil, 0, err
		}
		off = next
		out := make(val.Object, count)
		for i := uint64(0); i < count; i++ {
			k, n2, err := readNulString(b, off)
			if err != nil {
				return nil, 0, err
			}
			off = n2
			elLen, n3, err := readUint64(b, off)
			if err != nil {
				return nil, 0, err
			}
			off = n3
			if off+int(elLen) > len(b) {
				return nil, 0, errKeyTooShort("ordered object value")
			}
			elVal, _, err := decodeOrderedValue(b[:off+int(elLen)], off)
			if err != nil {
				return nil, 0, err
			}
			out[k] = elVal
			off += int(elLen)
		}
		return out, off, nil
	default:
		return nil, 0, xerrors.New(xerrors.KindInternal, "keys: unknown ordered value tag")
	}
}

// EncodeRecordIdKey projects a val.RecordIdKey onto the same ordered
// encoding used for index field values, so RIDRange is explicitly
// rejected (ranges are a query-time construct, never a stored key).
func EncodeRecordIdKey(k val.RecordIdKey) (RecordIdKeyBytes, error) {
	switch k.Tag {
	case val.RIDNumber:
		return EncodeOrderedValue(val.Int(k.Num))
	case val.RIDString:
		return EncodeOrderedValue(val.Str(k.Str))
	case val.RIDUuid:
		return EncodeOrderedValue(k.Uuid)
	case val.RIDArray:
		return EncodeOrderedValue(k.Arr)
	case val.RIDObject:
		return EncodeOrderedValue(k.Obj)
	default:
		return nil, xerrors.New(xerrors.KindInternal, "keys: RecordIdKeyRange is not a storable key")
	}
}

// DecodeRecordIdKey is the inverse of EncodeRecordIdKey.
func DecodeRecordIdKey(b []byte) (val.RecordIdKey, error) {
	v, err := DecodeOrderedValue(b)
	if err != nil {
		return val.RecordIdKey{}, err
	}
	switch t := v.(type) {
	case val.Number:
		iv, ok := t.AsInt()
		if !ok {
			return val.RecordIdKey{}, xerrors.New(xerrors.KindInternal, "keys: record id number not integral")
		}
		return val.NewRecordIDNumber(iv), nil
	case val.Str:
		return val.NewRecordIDString(string(t)), nil
	case val.UuidV:
		return val.NewRecordIDUuid(t), nil
	case val.Array:
		return val.NewRecordIDArray(t), nil
	case val.Object:
		return val.NewRecordIDObject(t), nil
	default:
		return val.RecordIdKey{}, xerrors.New(xerrors.KindInternal, "keys: decoded value is not a valid record id key")
	}
}
