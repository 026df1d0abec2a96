// Package contractaudit scores a contract audit run: path coverage bits are
// checked against a required mask, a wide complexity metric is derived from
// coverage, gas usage and function count, and the scaled audit score is
// folded through a set of bit transforms. Runs with insufficient coverage
// get up to five degraded retries at reduced coverage, gas and function
// count, with the degraded score doubled.
package contractaudit

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"math/bits"
)

// ErrInsufficientCoverage is returned when the coverage mask is never
// satisfied, even at degraded coverage.
var ErrInsufficientCoverage = errors.New("insufficient coverage")

const (
	// fallbackAttempts bounds the degraded retries.
	fallbackAttempts = 5
	// fallbackMultiplier scales a degraded score.
	fallbackMultiplier = 2
)

// Params describes one audit run.
type Params struct {
	CoverageFlags uint32 `json:"coverageFlags"`
	TotalGasUsed  uint64 `json:"totalGasUsed"`
	FunctionCount uint32 `json:"functionCount"`
	RequiredMask  uint32 `json:"requiredMask"`
}

// Result is the outcome of one audit run.
type Result struct {
	CoverageUsed  uint32 `json:"coverageUsed"`
	GasUsed       uint64 `json:"gasUsed"`
	FunctionsUsed uint32 `json:"functionsUsed"`
	FullCoverage  bool   `json:"fullCoverage"`
	WasFallback   bool   `json:"wasFallback"`
	Combined      uint64 `json:"combined"`
}

// Run scores the audit.
func Run(params Params) (Result, error) {
	if params.CoverageFlags&params.RequiredMask != params.RequiredMask {
		return fallback(params)
	}

	complexity := auditComplexity(params.CoverageFlags, params.TotalGasUsed, params.FunctionCount, 3)
	score := auditScore(complexity, params.CoverageFlags, params.FunctionCount, 10)
	folded := foldScore(score, params.CoverageFlags, params.TotalGasUsed, params.FunctionCount)

	combined := folded ^ params.TotalGasUsed ^ uint64(params.CoverageFlags) ^ uint64(params.FunctionCount)
	return Result{
		CoverageUsed:  params.CoverageFlags,
		GasUsed:       params.TotalGasUsed,
		FunctionsUsed: params.FunctionCount,
		FullCoverage:  params.CoverageFlags == ^uint32(0),
		Combined:      combined ^ math.MaxUint64,
	}, nil
}

// fallback degrades the run: coverage shifted down two bits, gas cut to an
// eighth, three functions dropped. A degraded run that satisfies the mask
// is scored with tighter factors and the result doubled.
func fallback(params Params) (Result, error) {
	coverage, gas, fnCount := params.CoverageFlags, params.TotalGasUsed, params.FunctionCount
	for attempt := 0; attempt < fallbackAttempts; attempt++ {
		coverage >>= 2
		gas /= 8
		fnCount = satSubUint32(fnCount, 3)

		if coverage&params.RequiredMask != params.RequiredMask {
			continue
		}
		complexity := auditComplexity(coverage, gas, fnCount, 2)
		score := auditScore(complexity, coverage, fnCount, 1)
		folded := foldScore(score, coverage, gas, fnCount)
		return Result{
			CoverageUsed:  coverage,
			GasUsed:       gas,
			FunctionsUsed: fnCount,
			WasFallback:   true,
			Combined:      folded * fallbackMultiplier,
		}, nil
	}
	return Result{}, fmt.Errorf("%w: flags=%#x required=%#x",
		ErrInsufficientCoverage, params.CoverageFlags, params.RequiredMask)
}

// auditComplexity is ((coverage+1) * gas^3 * (functions+7)) + extra^2,
// kept wide.
func auditComplexity(coverage uint32, gas uint64, fnCount, extra uint32) *big.Int {
	gasBig := new(big.Int).SetUint64(gas)
	gasCubed := new(big.Int).Mul(new(big.Int).Mul(gasBig, gasBig), gasBig)

	complexity := new(big.Int).SetUint64(uint64(coverage) + 1)
	complexity.Mul(complexity, gasCubed)
	complexity.Mul(complexity, new(big.Int).SetUint64(uint64(fnCount)+7))

	extraBig := new(big.Int).SetUint64(uint64(extra))
	return complexity.Add(complexity, extraBig.Mul(extraBig, extraBig))
}

// auditScore divides the complexity by coverage + functions + threshold.
func auditScore(complexity *big.Int, coverage, fnCount uint32, threshold uint64) *big.Int {
	denominator := uint64(coverage) + uint64(fnCount) + threshold
	if denominator == 0 {
		return new(big.Int)
	}
	return new(big.Int).Div(complexity, new(big.Int).SetUint64(denominator))
}

// foldScore collapses the wide score to 64 bits and mixes in popcount,
// leading zeros and a coverage-driven rotation.
func foldScore(score *big.Int, coverage uint32, gas uint64, fnCount uint32) uint64 {
	lower := low64(score)

	popc := uint64(bits.OnesCount32(coverage))
	leading := uint64(bits.LeadingZeros32(coverage))
	rotate := int(coverage & 0xFF)

	x := bits.RotateLeft64(lower, -rotate) ^ popc
	y := (leading | uint64(fnCount)) ^ lower/5
	return x ^ y ^ gas
}

// maxUint64Big masks a wide value down to its low 64 bits.
var maxUint64Big = new(big.Int).SetUint64(math.MaxUint64)

func low64(v *big.Int) uint64 {
	return new(big.Int).And(v, maxUint64Big).Uint64()
}

func satSubUint32(a, b uint32) uint32 {
	if a < b {
		return 0
	}
	return a - b
}
