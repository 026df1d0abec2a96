// Package pool models a two-sided constant-product liquidity pool. A Pool is
// a plain value: queries never mutate it and Apply returns a fresh value, so
// a failed swap can never leave a half-updated pool behind.
package pool

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/defistate/poolsim-go/fixedpoint"
)

var (
	// ErrInvalidPool is returned when a pool is constructed with an empty
	// reserve or an invariant product wider than 64 bits.
	ErrInvalidPool = errors.New("invalid pool")
	// ErrPoolDepleted is returned when a swap would drain the output reserve.
	ErrPoolDepleted = errors.New("pool depleted")
	// ErrInvariantViolation is returned when an applied trade would shrink
	// the reserve product beyond the fee-retention tolerance.
	ErrInvariantViolation = errors.New("invariant violation")
)

// invariantToleranceBps is the allowed shrink of the reserve product across a
// single Apply, in basis points. Fees are retained by the pool, so outside of
// rounding the product only ever grows.
const invariantToleranceBps = 1

// Pool holds the two reserves of a constant-product pool.
// Not safe for concurrent mutation; callers chain trades sequentially.
type Pool struct {
	ReserveIn  uint64 `json:"reserveIn"`
	ReserveOut uint64 `json:"reserveOut"`
}

// New validates the initial liquidity and returns a Pool. Both reserves must
// be positive and their product must fit in 64 bits, which keeps every later
// invariant check inside checked 64-bit arithmetic.
func New(reserveIn, reserveOut uint64) (Pool, error) {
	if reserveIn == 0 || reserveOut == 0 {
		return Pool{}, fmt.Errorf("%w: both reserves must be positive", ErrInvalidPool)
	}
	if _, err := fixedpoint.Mul(reserveIn, reserveOut); err != nil {
		return Pool{}, fmt.Errorf("%w: reserve product exceeds 64 bits", ErrInvalidPool)
	}
	return Pool{ReserveIn: reserveIn, ReserveOut: reserveOut}, nil
}

// QuoteOutput returns the raw constant-product output for amountIn without
// touching the pool: floor(reserveOut - reserveIn*reserveOut/(reserveIn+amountIn)).
func (p Pool) QuoteOutput(amountIn uint64) (uint64, error) {
	denom, err := fixedpoint.Add(p.ReserveIn, amountIn)
	if err != nil {
		return 0, err
	}
	// The kept side rounds up so the reserve product can only grow.
	keep, err := fixedpoint.MulDivUp(p.ReserveIn, p.ReserveOut, denom)
	if err != nil {
		return 0, err
	}
	// keep <= reserveOut because denom >= reserveIn.
	return p.ReserveOut - keep, nil
}

// Apply returns the pool after an accepted trade: reserveIn grows by
// amountIn, reserveOut shrinks by amountOut. The receiving pool is not
// modified. The new reserve product must not fall below the old product by
// more than the fee-retention tolerance.
func (p Pool) Apply(amountIn, amountOut uint64) (Pool, error) {
	if amountOut >= p.ReserveOut {
		return Pool{}, fmt.Errorf("%w: amountOut %d >= reserveOut %d", ErrPoolDepleted, amountOut, p.ReserveOut)
	}

	newIn, err := fixedpoint.Add(p.ReserveIn, amountIn)
	if err != nil {
		return Pool{}, err
	}
	next := Pool{ReserveIn: newIn, ReserveOut: p.ReserveOut - amountOut}

	if !productHolds(p, next) {
		return Pool{}, fmt.Errorf("%w: reserve product decreased across apply", ErrInvariantViolation)
	}
	return next, nil
}

// Value reports the pool value in input-token units for a price quoted in
// millionths of an input token per output token.
func (p Pool) Value(priceMicro uint64) uint64 {
	converted := fixedpoint.SatDiv(fixedpoint.SatMul(p.ReserveOut, priceMicro), 1_000_000)
	return fixedpoint.SatAdd(p.ReserveIn, converted)
}

// productHolds checks newProduct >= oldProduct*(1 - tolerance). The compare
// runs in 256 bits so it holds for any pair of valid pools.
func productHolds(old, next Pool) bool {
	var oldProduct, newProduct, scaled uint256.Int
	oldProduct.Mul(uint256.NewInt(old.ReserveIn), uint256.NewInt(old.ReserveOut))
	newProduct.Mul(uint256.NewInt(next.ReserveIn), uint256.NewInt(next.ReserveOut))

	scaled.Mul(&oldProduct, uint256.NewInt(fixedpoint.BasisPointDivisor-invariantToleranceBps))
	scaled.Div(&scaled, uint256.NewInt(fixedpoint.BasisPointDivisor))

	return newProduct.Cmp(&scaled) >= 0
}
