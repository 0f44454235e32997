package hnsw

import (
	"encoding/binary"
	"math"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/nexusdb/nexus/internal/xerrors"
)

// VectorType is the stored element type of an HNSW index's vectors
// (spec §4.6's `vector_type ∈ {F32, F64, I16, I32, I64}`), mirroring
// pkg/catalog.HnswVectorType; this package stays independent of
// pkg/catalog the same way pkg/index/fulltext does.
type VectorType uint8

const (
	VectorF32 VectorType = iota
	VectorF64
	VectorI16
	VectorI32
	VectorI64
)

func (t VectorType) integral() bool {
	return t == VectorI16 || t == VectorI32 || t == VectorI64
}

// Distance is the metric Search ranks candidates by (spec §4.6).
type Distance uint8

const (
	DistanceEuclidean Distance = iota
	DistanceCosine
	DistanceManhattan
	DistanceMinkowski
)

// encodeVector serializes a decoded vector back to its VectorType's
// on-disk form.
func encodeVector(t VectorType, v []float64) []byte {
	out := make([]byte, 0, len(v)*8)
	for _, x := range v {
		var buf [8]byte
		switch t {
		case VectorF32:
			binary.BigEndian.PutUint32(buf[:4], math.Float32bits(float32(x)))
			out = append(out, buf[:4]...)
		case VectorF64:
			binary.BigEndian.PutUint64(buf[:8], math.Float64bits(x))
			out = append(out, buf[:8]...)
		case VectorI16:
			binary.BigEndian.PutUint16(buf[:2], uint16(int16(x)))
			out = append(out, buf[:2]...)
		case VectorI32:
			binary.BigEndian.PutUint32(buf[:4], uint32(int32(x)))
			out = append(out, buf[:4]...)
		case VectorI64:
			binary.BigEndian.PutUint64(buf[:8], uint64(int64(x)))
			out = append(out, buf[:8]...)
		}
	}
	return out
}

func vectorWidth(t VectorType) int {
	switch t {
	case VectorF64, VectorI64:
		return 8
	case VectorF32, VectorI32:
		return 4
	case VectorI16:
		return 2
	default:
		return 0
	}
}

// decodeVector is the inverse of encodeVector.
func decodeVector(t VectorType, dimension uint32, b []byte) ([]float64, error) {
	w := vectorWidth(t)
	if w == 0 || len(b) != int(dimension)*w {
		return nil, xerrors.New(xerrors.KindInternal, "hnsw: malformed stored vector")
	}
	out := make([]float64, dimension)
	for i := range out {
		off := i * w
		switch t {
		case VectorF32:
			out[i] = float64(math.Float32frombits(binary.BigEndian.Uint32(b[off : off+4])))
		case VectorF64:
			out[i] = math.Float64frombits(binary.BigEndian.Uint64(b[off : off+8]))
		case VectorI16:
			out[i] = float64(int16(binary.BigEndian.Uint16(b[off : off+2])))
		case VectorI32:
			out[i] = float64(int32(binary.BigEndian.Uint32(b[off : off+4])))
		case VectorI64:
			out[i] = float64(int64(binary.BigEndian.Uint64(b[off : off+8])))
		}
	}
	return out, nil
}

// distance computes the configured metric between a and b. Euclidean
// distance over an integral VectorType accumulates its sum-of-squares
// in a uint256.Int rather than float64, so a high-dimension vector of
// large I64 magnitudes can't silently lose precision or overflow
// before the final sqrt — the same overflow-safety role uint256 plays
// for balance/gas accumulation in the teacher's state package.
func distance(kind Distance, t VectorType, minkowskiP float64, a, b []float64) float64 {
	switch kind {
	case DistanceEuclidean:
		if t.integral() {
			return euclideanIntegral(a, b)
		}
		return math.Sqrt(sumSquaredDiff(a, b))
	case DistanceCosine:
		return cosineDistance(a, b)
	case DistanceManhattan:
		var sum float64
		for i := range a {
			sum += math.Abs(a[i] - b[i])
		}
		return sum
	case DistanceMinkowski:
		var sum float64
		for i := range a {
			sum += math.Pow(math.Abs(a[i]-b[i]), minkowskiP)
		}
		return math.Pow(sum, 1/minkowskiP)
	default:
		return math.Sqrt(sumSquaredDiff(a, b))
	}
}

func sumSquaredDiff(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func euclideanIntegral(a, b []float64) float64 {
	acc := new(uint256.Int)
	for i := range a {
		d := int64(a[i]) - int64(b[i])
		var ud uint64
		if d < 0 {
			ud = uint64(-d)
		} else {
			ud = uint64(d)
		}
		sq := new(uint256.Int).SetUint64(ud)
		sq.Mul(sq, sq)
		acc.Add(acc, sq)
	}
	f, _ := new(big.Float).SetInt(acc.ToBig()).Float64()
	return math.Sqrt(f)
}

func cosineDistance(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
