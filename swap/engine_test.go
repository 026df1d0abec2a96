package swap

import (
	"math/bits"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defistate/poolsim-go/fee"
	"github.com/defistate/poolsim-go/pool"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(fee.DefaultConfig())
	require.NoError(t, err)
	return engine
}

func newTestPool(t *testing.T, reserveIn, reserveOut uint64) pool.Pool {
	t.Helper()
	p, err := pool.New(reserveIn, reserveOut)
	require.NoError(t, err)
	return p
}

func TestSwapAccepted(t *testing.T) {
	engine := newTestEngine(t)
	p := newTestPool(t, 1000, 1000)

	// raw = 1000 - ceil(1e6/1100) = 90, rate = 30 + 1000 = 1030 bps,
	// fee = floor(90*1030/10000) = 9, net = 81.
	outcome, err := engine.Swap(p, TradeRequest{AmountIn: 100, MinAmountOut: 50, MaxFeeBps: 2000})
	require.NoError(t, err)

	assert.Equal(t, uint64(100), outcome.AmountInExecuted)
	assert.Equal(t, uint64(81), outcome.AmountOut)
	assert.Equal(t, uint64(9), outcome.FeeApplied)
	assert.False(t, outcome.WasFallback)
	// spot = 100, shortfall = 19 -> 1900 bps
	assert.Equal(t, uint64(1900), outcome.SlippageBps)
	assert.Equal(t, pool.Pool{ReserveIn: 1100, ReserveOut: 919}, outcome.NewPool)

	// Caller's pool is untouched.
	assert.Equal(t, pool.Pool{ReserveIn: 1000, ReserveOut: 1000}, p)
}

func TestSwapValidation(t *testing.T) {
	engine := newTestEngine(t)
	p := newTestPool(t, 1000, 1000)

	testCases := []struct {
		name        string
		req         TradeRequest
		expectedErr error
	}{
		{
			name:        "Zero AmountIn",
			req:         TradeRequest{AmountIn: 0, MinAmountOut: 0, MaxFeeBps: 10000},
			expectedErr: ErrInvalidAmount,
		},
		{
			name: "Fee Ceiling Below Quote",
			// quoted rate for 100 into 1000 is 1030 bps
			req:         TradeRequest{AmountIn: 100, MinAmountOut: 0, MaxFeeBps: 1000},
			expectedErr: ErrFeeTooHigh,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Swap(p, tc.req)
			require.ErrorIs(t, err, tc.expectedErr)
			// Failure atomicity: pool unchanged.
			assert.Equal(t, pool.Pool{ReserveIn: 1000, ReserveOut: 1000}, p)
		})
	}
}

func TestSwapFallback(t *testing.T) {
	engine := newTestEngine(t)
	p := newTestPool(t, 1000, 1000)

	// At the full 900 the net output is only 48; the floor of 100 pushes the
	// engine onto the fallback path. The largest admissible size is 768:
	// raw = 434, rate = 7710 bps, fee = 334, net = exactly 100.
	outcome, err := engine.Swap(p, TradeRequest{AmountIn: 900, MinAmountOut: 100, MaxFeeBps: 10000})
	require.NoError(t, err)

	assert.True(t, outcome.WasFallback)
	assert.Equal(t, uint64(768), outcome.AmountInExecuted)
	assert.Less(t, outcome.AmountInExecuted, uint64(900))
	assert.GreaterOrEqual(t, outcome.AmountOut, uint64(100))
	assert.Equal(t, uint64(100), outcome.AmountOut)
	assert.Equal(t, uint64(334), outcome.FeeApplied)
	assert.Equal(t, pool.Pool{ReserveIn: 1768, ReserveOut: 900}, outcome.NewPool)
	assert.Equal(t, pool.Pool{ReserveIn: 1000, ReserveOut: 1000}, p)
}

func TestSwapFallbackPicksLargestAdmissible(t *testing.T) {
	engine := newTestEngine(t)
	p := newTestPool(t, 1000, 1000)

	testCases := []struct {
		name             string
		minAmountOut     uint64
		expectedExecuted uint64
	}{
		{name: "Loose Floor", minAmountOut: 100, expectedExecuted: 768},
		{name: "Mid Floor", minAmountOut: 160, expectedExecuted: 546},
		{name: "Floor At The Peak", minAmountOut: 171, expectedExecuted: 441},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			outcome, err := engine.Swap(p, TradeRequest{AmountIn: 900, MinAmountOut: tc.minAmountOut, MaxFeeBps: 10000})
			require.NoError(t, err)
			assert.True(t, outcome.WasFallback)
			assert.Equal(t, tc.expectedExecuted, outcome.AmountInExecuted)
			assert.GreaterOrEqual(t, outcome.AmountOut, tc.minAmountOut)
		})
	}
}

func TestSwapFallbackRidesOutRoundingDips(t *testing.T) {
	engine := newTestEngine(t)
	p := newTestPool(t, 1000, 1000)

	// Floor rounding dents the descending limb: sizes 578, 579, 580 net
	// 154, 153, 154, so the admissible run for a floor of 154 is not
	// contiguous. The fallback must still land on 580, the true rightmost,
	// not stop at 578 where the dent begins.
	outcome, err := engine.Swap(p, TradeRequest{AmountIn: 900, MinAmountOut: 154, MaxFeeBps: 10000})
	require.NoError(t, err)

	assert.True(t, outcome.WasFallback)
	assert.Equal(t, uint64(580), outcome.AmountInExecuted)
	assert.Equal(t, uint64(154), outcome.AmountOut)
	assert.Equal(t, uint64(213), outcome.FeeApplied)
	assert.Equal(t, pool.Pool{ReserveIn: 1580, ReserveOut: 846}, outcome.NewPool)
}

func TestSwapSlippageExceeded(t *testing.T) {
	engine := newTestEngine(t)
	p := newTestPool(t, 1000, 1000)

	testCases := []struct {
		name string
		req  TradeRequest
	}{
		{
			// No size up to 500 can net 400 out of a 1000/1000 pool.
			name: "Floor Unreachable At Any Size",
			req:  TradeRequest{AmountIn: 500, MinAmountOut: 400, MaxFeeBps: 10000},
		},
		{
			name: "Floor Above The Peak",
			req:  TradeRequest{AmountIn: 900, MinAmountOut: 172, MaxFeeBps: 10000},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Swap(p, tc.req)
			require.ErrorIs(t, err, ErrSlippageExceeded)
			assert.Equal(t, pool.Pool{ReserveIn: 1000, ReserveOut: 1000}, p)
		})
	}
}

func TestSwapProductInvariant(t *testing.T) {
	engine := newTestEngine(t)
	p := newTestPool(t, 1000, 1000)

	for _, amountIn := range []uint64{1, 10, 100, 500, 900} {
		outcome, err := engine.Swap(p, TradeRequest{AmountIn: amountIn, MinAmountOut: 0, MaxFeeBps: 10000})
		require.NoError(t, err)
		oldProduct := p.ReserveIn * p.ReserveOut
		newProduct := outcome.NewPool.ReserveIn * outcome.NewPool.ReserveOut
		assert.GreaterOrEqual(t, newProduct, oldProduct, "amountIn=%d", amountIn)
		p = outcome.NewPool
	}
}

func TestSwapDeterminism(t *testing.T) {
	engine := newTestEngine(t)
	p := newTestPool(t, 1000, 1000)
	req := TradeRequest{AmountIn: 900, MinAmountOut: 100, MaxFeeBps: 10000}

	first, err := engine.Swap(p, req)
	require.NoError(t, err)
	second, err := engine.Swap(p, req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, Combine(first), Combine(second))
}

func TestCombine(t *testing.T) {
	outcome := Outcome{
		AmountOut:   81,
		FeeApplied:  9,
		SlippageBps: 1900,
		NewPool:     pool.Pool{ReserveIn: 1100, ReserveOut: 919},
	}

	plain := Combine(outcome)
	assert.Equal(t, plain, Combine(outcome), "identical outcomes fold identically")

	want := outcome.AmountOut ^
		bits.RotateLeft64(outcome.FeeApplied, 13) ^
		bits.RotateLeft64(outcome.SlippageBps, 26) ^
		bits.RotateLeft64(outcome.NewPool.ReserveIn, 39) ^
		bits.RotateLeft64(outcome.NewPool.ReserveOut, 52)
	assert.Equal(t, want, plain, "canonical rotated layout")

	outcome.WasFallback = true
	assert.Equal(t, plain|fallbackBit, Combine(outcome))
	assert.NotZero(t, Combine(outcome)&fallbackBit)
}

func TestSimulate(t *testing.T) {
	combined, outcome, err := Simulate(1000, 1000, 100, 50, 2000)
	require.NoError(t, err)
	assert.Equal(t, Combine(outcome), combined)
	assert.Equal(t, uint64(81), outcome.AmountOut)

	_, _, err = Simulate(0, 1000, 100, 0, 10000)
	assert.ErrorIs(t, err, pool.ErrInvalidPool)
}

func TestRoundTripPriceImpactIsReal(t *testing.T) {
	engine := newTestEngine(t)
	p := newTestPool(t, 1000, 1000)

	out, err := engine.Swap(p, TradeRequest{AmountIn: 100, MinAmountOut: 0, MaxFeeBps: 10000})
	require.NoError(t, err)

	// Reverse direction on the post-trade pool: feeding the output back
	// must not reproduce the original input.
	reversed := pool.Pool{ReserveIn: out.NewPool.ReserveOut, ReserveOut: out.NewPool.ReserveIn}
	back, err := engine.Swap(reversed, TradeRequest{AmountIn: out.AmountOut, MinAmountOut: 0, MaxFeeBps: 10000})
	require.NoError(t, err)
	assert.Less(t, back.AmountOut, uint64(100))
}
