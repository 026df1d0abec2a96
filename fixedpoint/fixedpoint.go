// Package fixedpoint provides the integer arithmetic used by every pool and
// scenario calculation: full-width mul-div, basis point math, and checked or
// saturating 64-bit helpers. No operation in this package ever wraps silently.
package fixedpoint

import (
	"errors"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/holiman/uint256"
)

// BasisPointDivisor represents 100% in basis points.
const BasisPointDivisor = 10_000

var (
	// ErrDivisionByZero is returned when a denominator is zero.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrArithmeticOverflow is returned when a result does not fit in 64 bits.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	bpDivisor = uint256.NewInt(BasisPointDivisor)
)

// MulDiv computes floor(a*b/denom) using a wide intermediate, so the product
// a*b never overflows before the division. The result must still narrow back
// to 64 bits; otherwise ErrArithmeticOverflow is returned.
func MulDiv(a, b, denom uint64) (uint64, error) {
	if denom == 0 {
		return 0, ErrDivisionByZero
	}

	var product, quotient uint256.Int
	product.Mul(uint256.NewInt(a), uint256.NewInt(b))
	quotient.Div(&product, uint256.NewInt(denom))

	if !quotient.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return quotient.Uint64(), nil
}

// MulDivUp computes ceil(a*b/denom) with the same wide intermediate and
// failure modes as MulDiv.
func MulDivUp(a, b, denom uint64) (uint64, error) {
	if denom == 0 {
		return 0, ErrDivisionByZero
	}

	var product, quotient, rem uint256.Int
	product.Mul(uint256.NewInt(a), uint256.NewInt(b))
	quotient.DivMod(&product, uint256.NewInt(denom), &rem)
	if !rem.IsZero() {
		quotient.AddUint64(&quotient, 1)
	}

	if !quotient.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return quotient.Uint64(), nil
}

// BasisPointsOf computes floor(part*10000/whole).
func BasisPointsOf(part, whole uint64) (uint64, error) {
	if whole == 0 {
		return 0, ErrDivisionByZero
	}

	var product, quotient uint256.Int
	product.Mul(uint256.NewInt(part), bpDivisor)
	quotient.Div(&product, uint256.NewInt(whole))

	// part*10000/whole fits in 64 bits whenever part does not exceed
	// whole by more than a factor of ~2^50, but very small wholes can
	// still push the quotient out of range.
	if !quotient.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return quotient.Uint64(), nil
}

// Add returns a+b or ErrArithmeticOverflow.
func Add(a, b uint64) (uint64, error) {
	sum, overflow := math.SafeAdd(a, b)
	if overflow {
		return 0, ErrArithmeticOverflow
	}
	return sum, nil
}

// Sub returns a-b or ErrArithmeticOverflow when b > a.
func Sub(a, b uint64) (uint64, error) {
	diff, overflow := math.SafeSub(a, b)
	if overflow {
		return 0, ErrArithmeticOverflow
	}
	return diff, nil
}

// Mul returns a*b or ErrArithmeticOverflow.
func Mul(a, b uint64) (uint64, error) {
	product, overflow := math.SafeMul(a, b)
	if overflow {
		return 0, ErrArithmeticOverflow
	}
	return product, nil
}

// SatAdd returns a+b, clamped to the 64-bit ceiling.
func SatAdd(a, b uint64) uint64 {
	sum, overflow := math.SafeAdd(a, b)
	if overflow {
		return ^uint64(0)
	}
	return sum
}

// SatSub returns a-b, clamped to zero.
func SatSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// SatMul returns a*b, clamped to the 64-bit ceiling.
func SatMul(a, b uint64) uint64 {
	product, overflow := math.SafeMul(a, b)
	if overflow {
		return ^uint64(0)
	}
	return product
}

// SatDiv returns a/b, or zero when b is zero. The scenario kernels treat a
// zero divisor as an empty quantity rather than a failure.
func SatDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return a / b
}
