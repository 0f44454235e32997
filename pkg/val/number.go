package val

import (
	"fmt"
	"math"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/nexusdb/nexus/internal/xerrors"
	"github.com/nexusdb/nexus/internal/xmath"
)

// NumberKind distinguishes the three representations folded into Number
// (spec §3.1/§4.1).
type NumberKind uint8

const (
	NumInt NumberKind = iota
	NumFloat
	NumDecimal
)

// decimalDigits is the fixed precision Decimal arithmetic is held to;
// operations producing more significant digits fail with NumberOverflow
// instead of silently rounding (spec §4.1). Div first rounds its quotient
// to decimalDigits decimal places, then applies the same check.
const decimalDigits = 28

// Number is the Value variant folding Int(i64)/Float(f64)/Decimal(128-bit
// fixed point) into one runtime type, matching the spec's Number sum.
type Number struct {
	k NumberKind
	i int64
	f float64
	d decimal.Decimal
}

func (Number) Kind() KindTag { return KindNumber }

func Int(v int64) Number     { return Number{k: NumInt, i: v} }
func Float(v float64) Number { return Number{k: NumFloat, f: v} }
func Dec(v decimal.Decimal) Number {
	return Number{k: NumDecimal, d: v}
}

func (n Number) NumKind() NumberKind { return n.k }

func (n Number) String() string {
	switch n.k {
	case NumInt:
		return fmt.Sprintf("%d", n.i)
	case NumFloat:
		return fmt.Sprintf("%g", n.f)
	case NumDecimal:
		return n.d.String() + "dec"
	default:
		return "NaN"
	}
}

// AsInt returns n as an int64, converting Float/Decimal when exactly
// representable. ok is false when the conversion would lose information.
func (n Number) AsInt() (v int64, ok bool) {
	switch n.k {
	case NumInt:
		return n.i, true
	case NumFloat:
		if n.f != math.Trunc(n.f) || math.IsNaN(n.f) || math.IsInf(n.f, 0) {
			return 0, false
		}
		return int64(n.f), true
	case NumDecimal:
		if !n.d.Equal(n.d.Truncate(0)) {
			return 0, false
		}
		bi := n.d.BigInt()
		if !bi.IsInt64() {
			return 0, false
		}
		return bi.Int64(), true
	}
	return 0, false
}

func (n Number) AsFloat() float64 {
	switch n.k {
	case NumInt:
		return float64(n.i)
	case NumFloat:
		return n.f
	case NumDecimal:
		f, _ := n.d.Float64()
		return f
	}
	return 0
}

func (n Number) AsDecimal() decimal.Decimal {
	switch n.k {
	case NumInt:
		return decimal.NewFromInt(n.i)
	case NumFloat:
		return decimal.NewFromFloat(n.f)
	case NumDecimal:
		return n.d
	}
	return decimal.Zero
}

// DecimalFromBigInt builds a Decimal from an arbitrary-precision integer
// coefficient and a base-10 exponent (value == coefficient * 10^exp), the
// same representation shopspring/decimal itself stores internally; used
// by pkg/keys to reconstruct a Number from its ordered key encoding.
func DecimalFromBigInt(coefficient *big.Int, exp int32) decimal.Decimal {
	return decimal.NewFromBigInt(coefficient, exp)
}

// DecimalPow10 returns 10^n as a Decimal, used to rescale a Decimal by a
// fixed number of places without depending on a Shift method that may not
// exist across all shopspring/decimal versions.
func DecimalPow10(n int32) decimal.Decimal {
	return decimal.New(1, n)
}

// decimalPrecisionBound is 10^decimalDigits, the exclusive ceiling a
// Decimal's absolute coefficient must stay under. Held as a uint256.Int
// so exceedsPrecision can compare against it without ever formatting the
// coefficient to a string on the common, in-bounds path.
var decimalPrecisionBound = func() *uint256.Int {
	bound, _ := uint256.FromBig(new(big.Int).Exp(big.NewInt(10), big.NewInt(decimalDigits), nil))
	return bound
}()

// exceedsPrecision reports whether d's coefficient has more than
// decimalDigits significant digits. The coefficient is arbitrary
// precision (shopspring/decimal backs it with a big.Int), so it's
// compared against decimalPrecisionBound via uint256 rather than a
// string length count: if the coefficient doesn't fit in 256 bits at
// all it's certainly over a 28-digit bound, and if it does fit the
// uint256 comparison is cheaper than formatting it.
func exceedsPrecision(d decimal.Decimal) bool {
	coeff := new(big.Int).Abs(d.Coefficient())
	bounded, overflow := uint256.FromBig(coeff)
	if overflow {
		return true
	}
	return bounded.Cmp(decimalPrecisionBound) >= 0
}

func checkPrecision(d decimal.Decimal) (Number, error) {
	if exceedsPrecision(d) {
		return Number{}, xerrors.New(xerrors.KindNumberOverflow, fmt.Sprintf("decimal precision exceeds %d significant digits", decimalDigits))
	}
	return Dec(d), nil
}

// Add implements Int+Int wrap-to-Decimal-then-Float overflow promotion and
// ordinary Float/Decimal addition (spec §4.1).
func (n Number) Add(o Number) (Number, error) {
	if n.k == NumInt && o.k == NumInt {
		sum, overflow := xmath.SafeAddInt64(n.i, o.i)
		if overflow {
			d := decimal.NewFromInt(n.i).Add(decimal.NewFromInt(o.i))
			if exceedsPrecision(d) {
				return Float(float64(n.i) + float64(o.i)), nil
			}
			return Dec(d), nil
		}
		return Int(sum), nil
	}
	if n.k == NumFloat || o.k == NumFloat {
		return Float(n.AsFloat() + o.AsFloat()), nil
	}
	res := n.AsDecimal().Add(o.AsDecimal())
	return checkPrecision(res)
}

func (n Number) Sub(o Number) (Number, error) {
	if n.k == NumInt && o.k == NumInt {
		diff, overflow := xmath.SafeSubInt64(n.i, o.i)
		if overflow {
			d := decimal.NewFromInt(n.i).Sub(decimal.NewFromInt(o.i))
			if exceedsPrecision(d) {
				return Float(float64(n.i) - float64(o.i)), nil
			}
			return Dec(d), nil
		}
		return Int(diff), nil
	}
	if n.k == NumFloat || o.k == NumFloat {
		return Float(n.AsFloat() - o.AsFloat()), nil
	}
	res := n.AsDecimal().Sub(o.AsDecimal())
	return checkPrecision(res)
}

func (n Number) Mul(o Number) (Number, error) {
	if n.k == NumInt && o.k == NumInt {
		prod, overflow := xmath.SafeMulInt64(n.i, o.i)
		if overflow {
			d := decimal.NewFromInt(n.i).Mul(decimal.NewFromInt(o.i))
			if exceedsPrecision(d) {
				return Float(float64(n.i) * float64(o.i)), nil
			}
			return Dec(d), nil
		}
		return Int(prod), nil
	}
	if n.k == NumFloat || o.k == NumFloat {
		return Float(n.AsFloat() * o.AsFloat()), nil
	}
	res := n.AsDecimal().Mul(o.AsDecimal())
	return checkPrecision(res)
}

// Div implements integer division-by-zero as an error and float
// division-by-zero as +/-inf (spec §4.1).
func (n Number) Div(o Number) (Number, error) {
	if n.k == NumInt && o.k == NumInt {
		if o.i == 0 {
			return Number{}, fmt.Errorf("division by zero")
		}
		if n.i%o.i == 0 {
			return Int(n.i / o.i), nil
		}
		res := decimal.NewFromInt(n.i).DivRound(decimal.NewFromInt(o.i), decimalDigits)
		return checkPrecision(res)
	}
	if n.k == NumFloat || o.k == NumFloat {
		return Float(n.AsFloat() / o.AsFloat()), nil
	}
	if o.AsDecimal().IsZero() {
		return Number{}, fmt.Errorf("division by zero")
	}
	res := n.AsDecimal().DivRound(o.AsDecimal(), decimalDigits)
	return checkPrecision(res)
}

func (n Number) Neg() Number {
	switch n.k {
	case NumInt:
		return Int(-n.i)
	case NumFloat:
		return Float(-n.f)
	default:
		return Dec(n.d.Neg())
	}
}

func (n Number) IsZero() bool {
	switch n.k {
	case NumInt:
		return n.i == 0
	case NumFloat:
		return n.f == 0
	default:
		return n.d.IsZero()
	}
}

// CompareNumber implements the total, NaN-aware order spec §4.1 requires:
// all NaN compare equal and greater than every finite number.
func CompareNumber(a, b Number) int {
	aNaN := a.k == NumFloat && math.IsNaN(a.f)
	bNaN := b.k == NumFloat && math.IsNaN(b.f)
	if aNaN && bNaN {
		return 0
	}
	if aNaN {
		return 1
	}
	if bNaN {
		return -1
	}
	if a.k == NumInt && b.k == NumInt {
		switch {
		case a.i < b.i:
			return -1
		case a.i > b.i:
			return 1
		default:
			return 0
		}
	}
	if a.k == NumDecimal || b.k == NumDecimal {
		// an Int operand compares exactly against a Decimal through
		// decimal.Decimal; a Float operand compares through float64.
		if a.k == NumFloat || b.k == NumFloat {
			af, bf := a.AsFloat(), b.AsFloat()
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
		return a.AsDecimal().Cmp(b.AsDecimal())
	}
	af, bf := a.AsFloat(), b.AsFloat()
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	default:
		return 0
	}
}

// EqualNumber implements the spec's cross-variant numeric equality:
// compares by mathematical value when lossless, else Int != Float != Decimal
// strictly differ when a lossless comparison isn't possible.
func EqualNumber(a, b Number) bool {
	if a.k == b.k {
		return CompareNumber(a, b) == 0
	}
	// Int vs Float: compare only if the float is integral and in range.
	if (a.k == NumInt && b.k == NumFloat) || (a.k == NumFloat && b.k == NumInt) {
		var iv Number
		var fv Number
		if a.k == NumInt {
			iv, fv = a, b
		} else {
			iv, fv = b, a
		}
		if fv.f != math.Trunc(fv.f) || math.IsNaN(fv.f) || math.IsInf(fv.f, 0) {
			return false
		}
		return float64(iv.i) == fv.f
	}
	// Decimal vs Int/Float: exact decimal comparison, still "lossless".
	return a.AsDecimal().Equal(b.AsDecimal())
}
