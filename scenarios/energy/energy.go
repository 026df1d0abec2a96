// Package energy models a small grid accounting run: production is reduced
// by consumption overhead, line losses, battery behaviour and a stack of
// tariff adjustments, ending in a per-device cost. When the grid is not
// healthy at full consumption the run falls back to progressively smaller
// consumption slices.
package energy

import (
	"errors"
	"fmt"

	"github.com/defistate/poolsim-go/fingerprint"
	"github.com/defistate/poolsim-go/fixedpoint"
)

var (
	// ErrInvalidInput is returned for an empty grid or consumption above production.
	ErrInvalidInput = errors.New("invalid energy input")
	// ErrUnhealthy is returned when even the smallest fallback slice leaves
	// the grid without headroom.
	ErrUnhealthy = errors.New("grid unhealthy")
)

// fallbackDivisors are the consumption slices tried when the grid fails its
// health check at full consumption.
var fallbackDivisors = []uint64{2, 4, 8}

// Params is one grid accounting request.
type Params struct {
	TotalProduced uint64 `json:"totalProduced"`
	TotalConsumed uint64 `json:"totalConsumed"`
	DeviceCount   uint64 `json:"deviceCount"`
	BaselinePrice uint64 `json:"baselinePrice"`
}

// Result carries the accounting outputs for the consumption slice that was
// actually accepted.
type Result struct {
	ConsumedUsed     uint64 `json:"consumedUsed"`
	NetEnergy        uint64 `json:"netEnergy"`
	LineLosses       uint64 `json:"lineLosses"`
	OverheadAdjusted uint64 `json:"overheadAdjusted"`
	FinalCost        uint64 `json:"finalCost"`
	WasFallback      bool   `json:"wasFallback"`
	Combined         uint64 `json:"combined"`
}

// Run executes the accounting pass.
func Run(params Params) (Result, error) {
	if params.DeviceCount == 0 || params.TotalConsumed > params.TotalProduced {
		return Result{}, fmt.Errorf("%w: produced=%d consumed=%d devices=%d",
			ErrInvalidInput, params.TotalProduced, params.TotalConsumed, params.DeviceCount)
	}

	if res, ok := runSlice(params, params.TotalConsumed, false); ok {
		return res, nil
	}
	for _, divisor := range fallbackDivisors {
		if res, ok := runSlice(params, params.TotalConsumed/divisor, true); ok {
			return res, nil
		}
	}
	return Result{}, fmt.Errorf("%w: no consumption slice leaves headroom", ErrUnhealthy)
}

// runSlice evaluates one consumption slice; ok is false when the grid fails
// its health check at that slice.
func runSlice(params Params, consumed uint64, isFallback bool) (Result, bool) {
	historical := historicalUsage(consumed)
	losses := lineLosses(params.TotalProduced, historical)
	overhead := overheadAdjustment(consumed)

	if !healthy(params.TotalProduced, overhead, losses) {
		return Result{}, false
	}

	netEnergy := fixedpoint.SatSub(fixedpoint.SatSub(params.TotalProduced, overhead), losses)
	afterBattery := battery(netEnergy, historical)
	afterPenalty := peakPenalty(afterBattery, overhead)
	afterQuality := qualityFactor(afterPenalty, historical, params.DeviceCount)
	afterRebate := offPeakRebate(afterQuality)

	costPerDevice := fixedpoint.SatMul(perDevice(afterRebate, params.DeviceCount), params.BaselinePrice)
	finalCost := auditingAdjustments(regulatoryAdjustments(costPerDevice))

	res := Result{
		ConsumedUsed:     consumed,
		NetEnergy:        netEnergy,
		LineLosses:       losses,
		OverheadAdjusted: overhead,
		FinalCost:        finalCost,
		WasFallback:      isFallback,
	}
	if isFallback {
		res.Combined = fingerprint.Fold(netEnergy, finalCost, consumed, losses, afterRebate, afterQuality)
	} else {
		res.Combined = fingerprint.Fold(netEnergy, losses, overhead, finalCost, afterPenalty, afterQuality, afterRebate)
	}
	return res, true
}

// historicalUsage is a weighted average over a synthetic sliding window of
// past consumption, weighted toward the present value.
func historicalUsage(consumed uint64) uint64 {
	window := [3]uint64{fixedpoint.SatSub(consumed, 100), consumed, fixedpoint.SatAdd(consumed, 50)}
	weights := [3]uint64{1, 2, 1}

	var sum, total uint64
	for i := range window {
		sum = fixedpoint.SatAdd(sum, fixedpoint.SatMul(window[i], weights[i]))
		total = fixedpoint.SatAdd(total, weights[i])
	}
	return fixedpoint.SatDiv(sum, total)
}

func lineLosses(produced, historical uint64) uint64 {
	if historical == 0 {
		return 0
	}
	lossFactor := fixedpoint.SatMul(historical/1000, 2)
	return fixedpoint.SatDiv(fixedpoint.SatMul(produced, lossFactor), 100)
}

func overheadAdjustment(consumed uint64) uint64 {
	overhead := fixedpoint.SatDiv(fixedpoint.SatMul(consumed, 2), 100)
	adjusted := fixedpoint.SatAdd(consumed, overhead)
	if adjusted >= 10 {
		return adjusted
	}
	// Tiny grids get padded toward the minimum billable load.
	delta := fixedpoint.SatSub(10, adjusted)
	deltaExtra := fixedpoint.SatSub(delta, 2)
	return fixedpoint.SatAdd(adjusted, deltaExtra)
}

func healthy(produced, overheadAdjusted, losses uint64) bool {
	remainder := fixedpoint.SatSub(produced, overheadAdjusted)
	return fixedpoint.SatSub(remainder, losses) > 100
}

func battery(netEnergy, historical uint64) uint64 {
	draw := historical / 10
	injection := draw / 2
	overhead := draw - injection

	afterDraw := fixedpoint.SatSub(netEnergy, draw)
	afterInjection := fixedpoint.SatAdd(afterDraw, injection)
	return fixedpoint.SatSub(afterInjection, overhead)
}

func peakPenalty(netEnergy, overheadAdjusted uint64) uint64 {
	multiplied := fixedpoint.SatMul(overheadAdjusted, 5)
	var penalty uint64
	if multiplied > 100 {
		penalty = multiplied - 100
	} else {
		penalty = fixedpoint.SatSub(fixedpoint.SatSub(100-multiplied, 10), 5)
	}
	return fixedpoint.SatSub(netEnergy, penalty)
}

func qualityFactor(netEnergy, historical, deviceCount uint64) uint64 {
	base := fixedpoint.SatDiv(historical, deviceCount)
	deduction := fixedpoint.SatAdd(base/2, 5)
	return fixedpoint.SatSub(netEnergy, deduction)
}

func offPeakRebate(netEnergy uint64) uint64 {
	if netEnergy > 2000 {
		return netEnergy - 100
	}
	return fixedpoint.SatSub(fixedpoint.SatSub(netEnergy, 50), 20)
}

func perDevice(value, deviceCount uint64) uint64 {
	return value / max(deviceCount, 1)
}

func regulatoryAdjustments(cost uint64) uint64 {
	const adjustmentA, adjustmentB = 20, 5
	const adjustmentC = adjustmentA - adjustmentB
	after := fixedpoint.SatSub(cost, adjustmentA)
	after = fixedpoint.SatSub(after, adjustmentB)
	return fixedpoint.SatSub(after, adjustmentC)
}

func auditingAdjustments(cost uint64) uint64 {
	for _, layer := range []uint64{10, 15, 5} {
		cost = fixedpoint.SatSub(cost, layer)
	}
	return cost
}
