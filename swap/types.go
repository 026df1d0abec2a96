package swap

import (
	"errors"

	"github.com/defistate/poolsim-go/fee"
	"github.com/defistate/poolsim-go/pool"
)

var (
	// ErrInvalidAmount is returned when a trade requests a zero input amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrFeeTooHigh is returned when the quoted rate exceeds the request's
	// fee ceiling. The check runs before any pool mutation.
	ErrFeeTooHigh = errors.New("fee too high")
	// ErrSlippageExceeded is returned when no trade size up to the requested
	// amount can satisfy the minimum-output floor.
	ErrSlippageExceeded = errors.New("slippage exceeded")
)

// TradeRequest describes one swap attempt. Values are immutable once built.
type TradeRequest struct {
	// AmountIn is the requested input amount.
	AmountIn uint64 `json:"amountIn"`
	// MinAmountOut is the slippage floor: the net output the trader will
	// still accept.
	MinAmountOut uint64 `json:"minAmountOut"`
	// MaxFeeBps is the highest fee rate the trader will pay.
	MaxFeeBps uint64 `json:"maxFeeBps"`
}

// Outcome is the authoritative record of one accepted swap.
type Outcome struct {
	// AmountInExecuted is the input amount actually traded. It is lower
	// than the requested amount only for fallback trades.
	AmountInExecuted uint64 `json:"amountInExecuted"`
	// AmountOut is the net output delivered to the trader, after fees.
	AmountOut uint64 `json:"amountOut"`
	// FeeApplied is the fee retained by the pool, in output-token units.
	FeeApplied uint64 `json:"feeApplied"`
	// SlippageBps measures how far the delivered output fell below the
	// zero-impact spot quote.
	SlippageBps uint64 `json:"slippageBps"`
	// WasFallback marks a trade that was reduced to satisfy MinAmountOut.
	WasFallback bool `json:"wasFallback"`
	// NewPool is the pool after the trade.
	NewPool pool.Pool `json:"newPool"`
	// Distribution splits the collected fee between the protocol funds.
	Distribution fee.Distribution `json:"distribution"`
}
