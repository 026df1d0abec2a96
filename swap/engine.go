// Package swap orchestrates a single trade against a constant-product pool
// under a dynamic-fee, partial-fallback policy. A swap moves through
// Validating -> Quoting -> CheckingSlippage -> {Accepted | FallingBack} ->
// Finalizing; any failure along the way leaves the pool exactly as it was.
package swap

import (
	"fmt"
	"math/big"

	"github.com/defistate/poolsim-go/fee"
	"github.com/defistate/poolsim-go/fingerprint"
	"github.com/defistate/poolsim-go/fixedpoint"
	"github.com/defistate/poolsim-go/pool"
)

// Engine evaluates trades. It holds no mutable state of its own: the pool is
// passed in and a fresh pool comes back inside the Outcome.
type Engine struct {
	feeConfig fee.Config
}

// NewEngine validates the fee schedule and returns an Engine.
func NewEngine(cfg fee.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{feeConfig: cfg}, nil
}

// Swap executes req against p and returns the outcome. The input pool is
// never mutated; on any error the caller's pool is exactly what it was.
func (e *Engine) Swap(p pool.Pool, req TradeRequest) (Outcome, error) {
	// Validating.
	if req.AmountIn == 0 {
		return Outcome{}, fmt.Errorf("%w: amountIn must be positive", ErrInvalidAmount)
	}
	quote, err := e.feeConfig.QuoteFor(req.AmountIn, p.ReserveIn)
	if err != nil {
		return Outcome{}, err
	}
	if quote.FeeBps > req.MaxFeeBps {
		return Outcome{}, fmt.Errorf("%w: quoted %d bps, request allows %d bps", ErrFeeTooHigh, quote.FeeBps, req.MaxFeeBps)
	}

	// Quoting and CheckingSlippage.
	amountIn := req.AmountIn
	net, feeOut, err := e.netOutput(p, amountIn)
	if err != nil {
		return Outcome{}, err
	}

	wasFallback := false
	if net < req.MinAmountOut {
		// FallingBack: look for the largest reduced amount that still
		// clears the floor.
		amountIn, net, feeOut, err = e.fallback(p, req)
		if err != nil {
			return Outcome{}, err
		}
		wasFallback = true
	}

	// Finalizing. The fee stays in the pool, so only the net leg leaves.
	newPool, err := p.Apply(amountIn, net)
	if err != nil {
		return Outcome{}, err
	}

	slippage, err := slippageBps(p, amountIn, net)
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		AmountInExecuted: amountIn,
		AmountOut:        net,
		FeeApplied:       feeOut,
		SlippageBps:      slippage,
		WasFallback:      wasFallback,
		NewPool:          newPool,
		Distribution:     fee.Distribute(feeOut),
	}, nil
}

// netOutput quotes the net output and the output-denominated fee for a trade
// of amountIn against p, without mutating anything.
func (e *Engine) netOutput(p pool.Pool, amountIn uint64) (net, feeOut uint64, err error) {
	raw, err := p.QuoteOutput(amountIn)
	if err != nil {
		return 0, 0, err
	}
	quote, err := e.feeConfig.QuoteFor(amountIn, p.ReserveIn)
	if err != nil {
		return 0, 0, err
	}
	feeOut, err = fixedpoint.MulDiv(raw, quote.FeeBps, fixedpoint.BasisPointDivisor)
	if err != nil {
		return 0, 0, err
	}
	return raw - feeOut, feeOut, nil
}

// fallback finds the largest amountIn' < req.AmountIn whose net output still
// meets req.MinAmountOut.
//
// The net-output curve is unimodal in the trade size: raw output grows
// concavely while the dynamic fee rate climbs linearly, so net output rises
// to a peak and then falls. The peak of the real-valued relaxation has a
// closed form, obtained by inverting the pricing curve:
//
//	x* = sqrt(reserveIn^2 * (slope + 10000 - base) / slope) - reserveIn
//
// The search probes a small window around x* (and around the point where the
// rate clamps), anchors at the best probe, then binary searches the
// descending limb for the rightmost admissible size; ties break toward the
// largest amount.
func (e *Engine) fallback(p pool.Pool, req TradeRequest) (amountIn, net, feeOut uint64, err error) {
	noTrade := fmt.Errorf("%w: no trade up to %d clears the floor of %d", ErrSlippageExceeded, req.AmountIn, req.MinAmountOut)

	cfg := e.feeConfig
	if cfg.SlopeBps == 0 {
		// A flat rate makes net output monotone in trade size, so no
		// reduced trade can clear a floor the full trade missed.
		return 0, 0, 0, noTrade
	}

	// Anchor at the best of a few closed-form candidates. Floor rounding
	// shifts the discrete peak by a handful of units, so each candidate is
	// probed with a small window.
	anchor, anchorNet := uint64(0), uint64(0)
	probe := func(center uint64) {
		if center == 0 {
			center = 1
		}
		lo := center - min(center-1, 2)
		hi := center + 2
		if hi < center { // wrapped
			hi = center
		}
		for a := lo; a <= hi; a++ {
			if a > req.AmountIn {
				break
			}
			if n, _, err := e.netOutput(p, a); err == nil && n >= anchorNet {
				anchor, anchorNet = a, n
			}
		}
	}

	var t big.Int
	t.SetUint64(p.ReserveIn)
	t.Mul(&t, &t)
	t.Mul(&t, new(big.Int).SetUint64(fixedpoint.BasisPointDivisor+cfg.SlopeBps-cfg.BaseBps))
	t.Div(&t, new(big.Int).SetUint64(cfg.SlopeBps))
	t.Sqrt(&t)
	t.Sub(&t, new(big.Int).SetUint64(p.ReserveIn))
	if t.Sign() > 0 && t.IsUint64() {
		probe(t.Uint64())
	} else {
		probe(1)
	}

	if clampAt, err := fixedpoint.MulDiv(cfg.MaxBps-cfg.BaseBps, p.ReserveIn, cfg.SlopeBps); err == nil {
		probe(clampAt)
	}
	probe(req.AmountIn)

	if anchor == 0 || anchorNet < req.MinAmountOut {
		return 0, 0, 0, noTrade
	}

	// Rightmost admissible size on the descending limb.
	lo, hi := anchor, req.AmountIn
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		if n, _, err := e.netOutput(p, mid); err == nil && n >= req.MinAmountOut {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	// Floor rounding can dent the limb, ending the contiguous admissible
	// run just before sizes that still clear the floor. Walk forward past
	// the search result, giving up after two consecutive misses.
	for cand, misses := lo+1, 0; misses < 2 && cand <= req.AmountIn; cand++ {
		if n, _, err := e.netOutput(p, cand); err == nil && n >= req.MinAmountOut {
			lo, misses = cand, 0
		} else {
			misses++
		}
	}

	net, feeOut, err = e.netOutput(p, lo)
	if err != nil || net < req.MinAmountOut {
		return 0, 0, 0, noTrade
	}
	return lo, net, feeOut, nil
}

// slippageBps reports the shortfall of the delivered output against the
// zero-impact spot quote, in basis points of the spot quote.
func slippageBps(p pool.Pool, amountIn, net uint64) (uint64, error) {
	spot, err := fixedpoint.MulDiv(amountIn, p.ReserveOut, p.ReserveIn)
	if err != nil {
		return 0, err
	}
	if spot == 0 || net >= spot {
		return 0, nil
	}
	return fixedpoint.BasisPointsOf(spot-net, spot)
}

// fallbackBit marks fallback trades in the combined fingerprint.
const fallbackBit = uint64(1) << 63

// Combine folds the outcome into the canonical 64-bit fingerprint:
//
//	amountOut ^ rotl(feeApplied, 13) ^ rotl(slippageBps, 26)
//	          ^ rotl(reserveIn', 39) ^ rotl(reserveOut', 52)
//
// with bit 63 forced set for fallback trades. Identical outcomes always fold
// to identical values.
func Combine(o Outcome) uint64 {
	folded := fingerprint.FoldRotated(13,
		o.AmountOut,
		o.FeeApplied,
		o.SlippageBps,
		o.NewPool.ReserveIn,
		o.NewPool.ReserveOut,
	)
	if o.WasFallback {
		folded |= fallbackBit
	}
	return folded
}

// Simulate is the narrow numeric entry point for hosts: it builds the pool,
// runs one trade with the default fee schedule, and returns the combined
// fingerprint alongside the full outcome.
func Simulate(reserveIn, reserveOut, amountIn, minAmountOut, maxFeeBps uint64) (uint64, Outcome, error) {
	p, err := pool.New(reserveIn, reserveOut)
	if err != nil {
		return 0, Outcome{}, err
	}
	engine, err := NewEngine(fee.DefaultConfig())
	if err != nil {
		return 0, Outcome{}, err
	}
	outcome, err := engine.Swap(p, TradeRequest{
		AmountIn:     amountIn,
		MinAmountOut: minAmountOut,
		MaxFeeBps:    maxFeeBps,
	})
	if err != nil {
		return 0, Outcome{}, err
	}
	return Combine(outcome), outcome, nil
}
