// Package compliance evaluates an emissions report: regulatory flag bits
// are checked against a required mask, a wide carbon offset score and a
// baseline metric are derived, and everything is folded into one audit
// value. Reports missing the required flags get up to three fallback rounds
// that progressively halve emissions and credits.
package compliance

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"math/bits"

	"github.com/defistate/poolsim-go/fingerprint"
)

// ErrNonCompliant is returned when the flags are missing and no fallback
// round clears the offset threshold.
var ErrNonCompliant = errors.New("non-compliant report")

const (
	// requiredFlagMask demands bits 0, 1 and 3 of the compliance flags.
	requiredFlagMask uint32 = 0b1011
	// partialFlagMask is ORed into the flag transform.
	partialFlagMask uint32 = 0b10101010
	// fallbackAttempts bounds the halving rounds.
	fallbackAttempts = 3
)

// offsetThreshold is the minimum offset score a fallback round must reach.
var offsetThreshold = big.NewInt(50_000)

// Params describes one emissions report.
type Params struct {
	Emissions uint64 `json:"emissions"`
	Credits   uint64 `json:"credits"`
	Flags     uint32 `json:"flags"`
	Rate      uint32 `json:"rate"`
}

// Result is the outcome of one compliance evaluation.
type Result struct {
	EmissionsUsed    uint64 `json:"emissionsUsed"`
	CreditsUsed      uint64 `json:"creditsUsed"`
	TransformedFlags uint32 `json:"transformedFlags"`
	WasFallback      bool   `json:"wasFallback"`
	Combined         uint64 `json:"combined"`
}

// Run evaluates the report.
func Run(params Params) (Result, error) {
	if params.Flags&requiredFlagMask == requiredFlagMask {
		return evaluate(params.Emissions, params.Credits, params.Flags, params.Rate, false), nil
	}
	return fallback(params)
}

// fallback retries with halved emissions first, then halved credits, and
// recurses on both halves when neither clears the offset threshold.
func fallback(params Params) (Result, error) {
	emissions, credits := params.Emissions, params.Credits
	for attempt := 0; attempt < fallbackAttempts; attempt++ {
		halfEmissions := emissions / 2
		if offset := carbonOffset(halfEmissions, credits, params.Rate); offset.Cmp(offsetThreshold) > 0 {
			return evaluate(halfEmissions, credits, params.Flags, params.Rate, true), nil
		}
		halfCredits := credits / 2
		if offset := carbonOffset(emissions, halfCredits, params.Rate); offset.Cmp(offsetThreshold) > 0 {
			return evaluate(emissions, halfCredits, params.Flags, params.Rate, true), nil
		}
		emissions, credits = halfEmissions, halfCredits
	}
	return Result{}, fmt.Errorf("%w: flags=%#b emissions=%d credits=%d",
		ErrNonCompliant, params.Flags, params.Emissions, params.Credits)
}

func evaluate(emissions, credits uint64, flags, rate uint32, isFallback bool) Result {
	offset := carbonOffset(emissions, credits, rate)
	baseline := baselineMetric(emissions, credits, rate)
	transformed := transformFlags(flags)
	pop := uint32(bits.OnesCount32(transformed))

	return Result{
		EmissionsUsed:    emissions,
		CreditsUsed:      credits,
		TransformedFlags: transformed,
		WasFallback:      isFallback,
		Combined: fingerprint.Fold(
			foldWide(offset, pop),
			foldWide(baseline, pop/2),
			emissions,
			credits,
			uint64(transformed),
		),
	}
}

// carbonOffset is (emissions + credits) * (rate + 1) << 2, kept wide.
func carbonOffset(emissions, credits uint64, rate uint32) *big.Int {
	sum := new(big.Int).Add(new(big.Int).SetUint64(emissions), new(big.Int).SetUint64(credits))
	sum.Mul(sum, new(big.Int).SetUint64(uint64(rate)+1))
	return sum.Lsh(sum, 2)
}

// baselineMetric is (emissions^2 + credits^3 + 10000) * rate.
func baselineMetric(emissions, credits uint64, rate uint32) *big.Int {
	e := new(big.Int).SetUint64(emissions)
	c := new(big.Int).SetUint64(credits)
	eSq := new(big.Int).Mul(e, e)
	cCube := new(big.Int).Mul(new(big.Int).Mul(c, c), c)

	sum := eSq.Add(eSq, cCube)
	sum.Add(sum, big.NewInt(10_000))
	return sum.Mul(sum, new(big.Int).SetUint64(uint64(rate)))
}

// transformFlags rotates, shifts and masks the flag bits into a digest.
func transformFlags(flags uint32) uint32 {
	return (bits.RotateLeft32(flags, 13)>>2 | partialFlagMask) ^ flags
}

// maxUint64Big masks wide metrics down to their low 64 bits.
var maxUint64Big = new(big.Int).SetUint64(math.MaxUint64)

// foldWide collapses a wide value to its low 64 bits, rotated by the
// popcount and XORed with it.
func foldWide(wide *big.Int, pop uint32) uint64 {
	lower := new(big.Int).And(wide, maxUint64Big).Uint64()
	return bits.RotateLeft64(lower, int(pop%64)) ^ uint64(pop)
}
