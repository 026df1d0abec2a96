// Package lending settles a collateralized loan position: health is gated
// on a 200% collateral ratio, interest compounds over fixed time slices,
// staking rewards are derived with wide integer compounding, and a decaying
// liquidity pool share simulation feeds the final fold. Unhealthy loans are
// retried at half, then a quarter, of the borrowed amount.
package lending

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrUnhealthyLoan is returned when even a quarter of the borrowed amount
// fails the collateral ratio.
var ErrUnhealthyLoan = errors.New("unhealthy loan")

const (
	// healthyRatioPct gates loan health at 200% collateralization.
	healthyRatioPct = 200
	// stakingRewardBps is the fixed staking reward rate.
	stakingRewardBps = 600
	// mainTimeSlices and fallbackTimeSlices set the compounding horizons.
	mainTimeSlices     = 5
	fallbackTimeSlices = 3
)

// Params describes one loan position. All amounts are 32-bit protocol units.
type Params struct {
	Collateral  uint32 `json:"collateral"`
	Borrowed    uint32 `json:"borrowed"`
	StakeRatio  uint32 `json:"stakeRatio"`
	InterestBps uint32 `json:"interestBps"`
}

// Result is the settled position.
type Result struct {
	BorrowedUsed    uint32 `json:"borrowedUsed"`
	InterestAccrued uint32 `json:"interestAccrued"`
	StakingRewards  uint32 `json:"stakingRewards"`
	PoolShares      uint32 `json:"poolShares"`
	WasFallback     bool   `json:"wasFallback"`
	Combined        uint32 `json:"combined"`
}

// Run settles the position.
func Run(params Params) (Result, error) {
	if loanHealthy(params.Collateral, params.Borrowed) {
		interest := compoundInterest(params.Borrowed, params.InterestBps, mainTimeSlices)
		staking := stakingRewards(params.Collateral, params.StakeRatio, stakingRewardBps, mainTimeSlices)
		shares := simulatePoolShares(2000, mainTimeSlices, 100, 50)
		return Result{
			BorrowedUsed:    params.Borrowed,
			InterestAccrued: interest,
			StakingRewards:  staking,
			PoolShares:      shares,
			Combined:        params.Borrowed ^ interest ^ staking ^ shares ^ params.Collateral,
		}, nil
	}
	return fallback(params)
}

// fallback retries at half, then a quarter, of the borrowed amount, over a
// shorter compounding horizon. The pool share simulation is skipped for
// distressed positions.
func fallback(params Params) (Result, error) {
	reduced := params.Borrowed
	for i := 0; i < 2; i++ {
		reduced /= 2
		if !loanHealthy(params.Collateral, reduced) {
			continue
		}
		interest := compoundInterest(reduced, params.InterestBps, fallbackTimeSlices)
		staking := stakingRewards(params.Collateral, params.StakeRatio, stakingRewardBps, fallbackTimeSlices)
		return Result{
			BorrowedUsed:    reduced,
			InterestAccrued: interest,
			StakingRewards:  staking,
			WasFallback:     true,
			Combined:        reduced ^ interest ^ staking ^ params.Collateral,
		}, nil
	}
	return Result{}, fmt.Errorf("%w: collateral=%d borrowed=%d",
		ErrUnhealthyLoan, params.Collateral, params.Borrowed)
}

// loanHealthy requires collateral*100/borrowed >= 200. A zero borrow is not
// a loan and is never healthy.
func loanHealthy(collateral, borrowed uint32) bool {
	if borrowed == 0 {
		return false
	}
	return satMulUint32(collateral, 100)/borrowed >= healthyRatioPct
}

// compoundInterest compounds naively per slice and returns the accrued
// delta. Integer bps division means sub-10000 slice rates round to zero,
// matching the coarse protocol units.
func compoundInterest(borrowed, annualBps, timeSlices uint32) uint32 {
	if timeSlices == 0 {
		return 0
	}
	principal := borrowed
	fractionBps := annualBps / timeSlices
	for i := uint32(0); i < timeSlices; i++ {
		sliceInterest := satMulUint32(principal, fractionBps/10_000)
		principal = satAddUint32(principal, sliceInterest)
	}
	return satSubUint32(principal, borrowed)
}

// stakingRewards compounds the staked fraction of the collateral with wide
// arithmetic and returns the accrued reward, clamped to 32 bits.
func stakingRewards(collateral, stakeRatio, rewardBps, timeSlices uint32) uint32 {
	staked := new(big.Int).Mul(big.NewInt(int64(collateral)), big.NewInt(int64(stakeRatio)))
	staked.Div(staked, big.NewInt(100))

	current := new(big.Int).Set(staked)
	if timeSlices > 0 {
		partialRate := big.NewInt(int64(rewardBps / 10_000 / timeSlices))
		for i := uint32(0); i < timeSlices; i++ {
			yield := new(big.Int).Mul(current, partialRate)
			current.Add(current, yield)
		}
	}

	reward := new(big.Int).Sub(current, staked)
	if reward.Sign() <= 0 {
		return 0
	}
	if !reward.IsUint64() || reward.Uint64() > uint64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(reward.Uint64())
}

// simulatePoolShares applies per-slice decay and a performance fee, with a
// half re-stake whenever shares fall below 100.
func simulatePoolShares(shares, timeSlices, decayBps, feeBps uint32) uint32 {
	current := shares
	for i := uint32(0); i < timeSlices; i++ {
		current = satSubUint32(current, satMulUint32(current, decayBps/10_000))
		current = satSubUint32(current, satMulUint32(current, feeBps/10_000))
		if current < 100 {
			current = satAddUint32(current, current/2)
		}
	}
	return current
}

func satAddUint32(a, b uint32) uint32 {
	if sum := a + b; sum >= a {
		return sum
	}
	return ^uint32(0)
}

func satSubUint32(a, b uint32) uint32 {
	if a < b {
		return 0
	}
	return a - b
}

func satMulUint32(a, b uint32) uint32 {
	wide := uint64(a) * uint64(b)
	if wide > uint64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(wide)
}
