// vector:: functions implement the scalar vector arithmetic spec names
// alongside the HNSW index (`vector::distance::knn` appears directly in
// a query example). The distance formulas mirror
// pkg/index/hnsw/vector.go's unexported euclidean/cosine/manhattan
// helpers, reimplemented here over plain []float64 since pkg/fn takes
// val.Array arguments rather than the index's internal vector
// representation — the two packages share the formula, not the code, the
// same way pkg/index/hnsw keeps its own VectorType/Distance enums instead
// of importing pkg/catalog's.
package fn

import (
	"context"
	"math"

	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/val"
)

func registerVector(r *Registry) {
	r.Register("vector::distance::euclidean", fnVectorDistance(euclideanDistance))
	r.Register("vector::distance::manhattan", fnVectorDistance(manhattanDistance))
	r.Register("vector::distance::cosine", fnVectorDistance(cosineDistance))
	r.Register("vector::similarity::cosine", fnVectorDistance(func(a, b []float64) float64 { return 1 - cosineDistance(a, b) }))
	r.Register("vector::add", fnVectorElementwise(func(a, b float64) float64 { return a + b }))
	r.Register("vector::subtract", fnVectorElementwise(func(a, b float64) float64 { return a - b }))
	r.Register("vector::multiply", fnVectorElementwise(func(a, b float64) float64 { return a * b }))
	r.Register("vector::magnitude", fnVectorMagnitude)
}

func floatsOf(name string, v val.Value) ([]float64, error) {
	a, err := asArray(name, v)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(a))
	for i, e := range a {
		n, err := asNumber(name, e)
		if err != nil {
			return nil, err
		}
		out[i] = n.AsFloat()
	}
	return out, nil
}

func fnVectorDistance(dist func(a, b []float64) float64) Fn {
	return func(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
		if err := arity("vector::distance", args, 2, 2); err != nil {
			return nil, err
		}
		a, err := floatsOf("vector::distance", args[0])
		if err != nil {
			return nil, err
		}
		b, err := floatsOf("vector::distance", args[1])
		if err != nil {
			return nil, err
		}
		if len(a) != len(b) {
			return nil, xerrors.New(xerrors.KindInvalidArguments, "fn: vector arguments must have equal dimension")
		}
		return val.Float(dist(a, b)), nil
	}
}

func fnVectorElementwise(op func(a, b float64) float64) Fn {
	return func(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
		if err := arity("vector::elementwise", args, 2, 2); err != nil {
			return nil, err
		}
		a, err := floatsOf("vector::elementwise", args[0])
		if err != nil {
			return nil, err
		}
		b, err := floatsOf("vector::elementwise", args[1])
		if err != nil {
			return nil, err
		}
		if len(a) != len(b) {
			return nil, xerrors.New(xerrors.KindInvalidArguments, "fn: vector arguments must have equal dimension")
		}
		out := make(val.Array, len(a))
		for i := range a {
			out[i] = val.Float(op(a[i], b[i]))
		}
		return out, nil
	}
}

func fnVectorMagnitude(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("vector::magnitude", args, 1, 1); err != nil {
		return nil, err
	}
	a, err := floatsOf("vector::magnitude", args[0])
	if err != nil {
		return nil, err
	}
	var sumSq float64
	for _, x := range a {
		sumSq += x * x
	}
	return val.Float(math.Sqrt(sumSq)), nil
}

func euclideanDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func manhattanDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return sum
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
