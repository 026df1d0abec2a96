// Package fee implements the dynamic fee schedule: the rate grows with trade
// size relative to pool depth, which discourages single trades that would
// disproportionately move the price. The model is a pure function of its
// inputs; all tuning lives in an explicit Config value.
package fee

import (
	"errors"
	"fmt"

	"github.com/defistate/poolsim-go/fixedpoint"
)

// ErrInvalidConfig is returned when a Config cannot produce a usable rate.
var ErrInvalidConfig = errors.New("invalid fee config")

// Config holds the fee schedule parameters.
type Config struct {
	// BaseBps is the flat rate charged on every trade.
	BaseBps uint64 `json:"baseBps"`
	// SlopeBps scales how much of the trade's price impact is added to the
	// rate: surcharge = impactBps * SlopeBps / 10000.
	SlopeBps uint64 `json:"slopeBps"`
	// MaxBps clamps the final rate.
	MaxBps uint64 `json:"maxBps"`
}

// DefaultConfig mirrors the classic 30 bps base rate, passes price impact
// through at full weight, and caps the rate at 90%.
func DefaultConfig() Config {
	return Config{BaseBps: 30, SlopeBps: fixedpoint.BasisPointDivisor, MaxBps: 9000}
}

// Validate rejects configs whose clamp is meaningless.
func (c Config) Validate() error {
	if c.MaxBps >= fixedpoint.BasisPointDivisor {
		return fmt.Errorf("%w: MaxBps %d must stay below %d", ErrInvalidConfig, c.MaxBps, fixedpoint.BasisPointDivisor)
	}
	if c.BaseBps > c.MaxBps {
		return fmt.Errorf("%w: BaseBps %d exceeds MaxBps %d", ErrInvalidConfig, c.BaseBps, c.MaxBps)
	}
	return nil
}

// Quote is the fee quoted for one trade. FeeAmount is denominated in input
// tokens; the swap engine separately converts the rate to output units when
// it settles the trade.
type Quote struct {
	FeeBps    uint64 `json:"feeBps"`
	FeeAmount uint64 `json:"feeAmount"`
}

// QuoteFor computes the rate for a trade of amountIn against a pool holding
// reserveIn. The rate rises monotonically with amountIn/reserveIn and is
// clamped to MaxBps.
func (c Config) QuoteFor(amountIn, reserveIn uint64) (Quote, error) {
	impactBps, err := fixedpoint.BasisPointsOf(amountIn, reserveIn)
	if err != nil {
		return Quote{}, err
	}

	surcharge, err := fixedpoint.MulDiv(impactBps, c.SlopeBps, fixedpoint.BasisPointDivisor)
	if err != nil {
		return Quote{}, err
	}

	rate := fixedpoint.SatAdd(c.BaseBps, surcharge)
	if rate > c.MaxBps {
		rate = c.MaxBps
	}

	amount, err := fixedpoint.MulDiv(amountIn, rate, fixedpoint.BasisPointDivisor)
	if err != nil {
		return Quote{}, err
	}
	return Quote{FeeBps: rate, FeeAmount: amount}, nil
}

// Distribution splits a collected fee between the protocol's funds.
type Distribution struct {
	LPShare        uint64 `json:"lpShare"`
	TreasuryShare  uint64 `json:"treasuryShare"`
	InsuranceShare uint64 `json:"insuranceShare"`
}

// Distribute allocates 50% of the fee to liquidity providers, 30% to the
// treasury, and the remainder to the insurance fund.
func Distribute(feeAmount uint64) Distribution {
	lp := feeAmount / 2
	treasury := fixedpoint.SatDiv(fixedpoint.SatMul(feeAmount, 3), 10)
	return Distribution{
		LPShare:        lp,
		TreasuryShare:  treasury,
		InsuranceShare: fixedpoint.SatSub(feeAmount, fixedpoint.SatAdd(lp, treasury)),
	}
}
