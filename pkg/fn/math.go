package fn

import (
	"context"
	"math"

	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/pkg/val"
)

func registerMath(r *Registry) {
	r.Register("math::abs", fnMathAbs)
	r.Register("math::ceil", fnMathCeil)
	r.Register("math::floor", fnMathFloor)
	r.Register("math::round", fnMathRound)
	r.Register("math::sqrt", fnMathSqrt)
	r.Register("math::pow", fnMathPow)
	r.Register("math::max", fnMathMax)
	r.Register("math::min", fnMathMin)
	r.Register("math::sum", fnMathSum)
	r.Register("math::mean", fnMathMean)
}

func fnMathAbs(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("math::abs", args, 1, 1); err != nil {
		return nil, err
	}
	n, err := asNumber("math::abs", args[0])
	if err != nil {
		return nil, err
	}
	if n.AsFloat() < 0 {
		return n.Neg(), nil
	}
	return n, nil
}

func fnMathCeil(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("math::ceil", args, 1, 1); err != nil {
		return nil, err
	}
	n, err := asNumber("math::ceil", args[0])
	if err != nil {
		return nil, err
	}
	return val.Float(math.Ceil(n.AsFloat())), nil
}

func fnMathFloor(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("math::floor", args, 1, 1); err != nil {
		return nil, err
	}
	n, err := asNumber("math::floor", args[0])
	if err != nil {
		return nil, err
	}
	return val.Float(math.Floor(n.AsFloat())), nil
}

func fnMathRound(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("math::round", args, 1, 1); err != nil {
		return nil, err
	}
	n, err := asNumber("math::round", args[0])
	if err != nil {
		return nil, err
	}
	return val.Float(math.Round(n.AsFloat())), nil
}

func fnMathSqrt(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("math::sqrt", args, 1, 1); err != nil {
		return nil, err
	}
	n, err := asNumber("math::sqrt", args[0])
	if err != nil {
		return nil, err
	}
	if n.AsFloat() < 0 {
		return nil, xerrors.New(xerrors.KindInvalidArguments, "fn: math::sqrt of a negative number")
	}
	return val.Float(math.Sqrt(n.AsFloat())), nil
}

func fnMathPow(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	if err := arity("math::pow", args, 2, 2); err != nil {
		return nil, err
	}
	base, err := asNumber("math::pow", args[0])
	if err != nil {
		return nil, err
	}
	exp, err := asNumber("math::pow", args[1])
	if err != nil {
		return nil, err
	}
	return val.Float(math.Pow(base.AsFloat(), exp.AsFloat())), nil
}

func fnMathMax(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	nums, err := numbersOf("math::max", args)
	if err != nil {
		return nil, err
	}
	best := nums[0]
	for _, n := range nums[1:] {
		if val.CompareNumber(n, best) > 0 {
			best = n
		}
	}
	return best, nil
}

func fnMathMin(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	nums, err := numbersOf("math::min", args)
	if err != nil {
		return nil, err
	}
	best := nums[0]
	for _, n := range nums[1:] {
		if val.CompareNumber(n, best) < 0 {
			best = n
		}
	}
	return best, nil
}

func fnMathSum(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	nums, err := numbersOf("math::sum", args)
	if err != nil {
		return nil, err
	}
	total := val.Int(0)
	for _, n := range nums {
		total, err = total.Add(n)
		if err != nil {
			return nil, err
		}
	}
	return total, nil
}

func fnMathMean(_ context.Context, _ *Deps, args []val.Value) (val.Value, error) {
	nums, err := numbersOf("math::mean", args)
	if err != nil {
		return nil, err
	}
	var total float64
	for _, n := range nums {
		total += n.AsFloat()
	}
	return val.Float(total / float64(len(nums))), nil
}

// numbersOf flattens a single array argument or collects the argument
// list itself into a Number slice — math::max/min/sum/mean all accept
// either call shape.
func numbersOf(name string, args []val.Value) ([]val.Number, error) {
	if len(args) == 1 {
		if a, ok := args[0].(val.Array); ok {
			return numbersOf(name, []val.Value(a))
		}
	}
	if len(args) == 0 {
		return nil, xerrors.New(xerrors.KindInvalidArguments, "fn: "+name+" expects at least 1 argument")
	}
	out := make([]val.Number, len(args))
	for i, a := range args {
		n, err := asNumber(name, a)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}
