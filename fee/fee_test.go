package fee

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defistate/poolsim-go/fixedpoint"
)

func TestQuoteFor(t *testing.T) {
	cfg := DefaultConfig()

	testCases := []struct {
		name               string
		amountIn, reserve  uint64
		expectedBps        uint64
		expectedFeeAmount  uint64
	}{
		{
			// impact = 100 bps, full slope -> 30 + 100
			name:     "Small Trade",
			amountIn: 10, reserve: 1000,
			expectedBps:       130,
			expectedFeeAmount: 0, // floor(10*130/10000)
		},
		{
			// impact = 5000 bps -> 30 + 5000
			name:     "Half The Pool",
			amountIn: 500, reserve: 1000,
			expectedBps:       5030,
			expectedFeeAmount: 251,
		},
		{
			// impact = 20000 bps, clamped to MaxBps
			name:     "Clamped",
			amountIn: 2000, reserve: 1000,
			expectedBps:       9000,
			expectedFeeAmount: 1800,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q, err := cfg.QuoteFor(tc.amountIn, tc.reserve)
			require.NoError(t, err)
			assert.Equal(t, tc.expectedBps, q.FeeBps)
			assert.Equal(t, tc.expectedFeeAmount, q.FeeAmount)
		})
	}
}

func TestQuoteForIsMonotone(t *testing.T) {
	cfg := DefaultConfig()

	var prev uint64
	for amountIn := uint64(1); amountIn <= 2000; amountIn += 7 {
		q, err := cfg.QuoteFor(amountIn, 1000)
		require.NoError(t, err)
		require.GreaterOrEqual(t, q.FeeBps, prev, "rate must not fall as trade size grows")
		require.LessOrEqual(t, q.FeeBps, cfg.MaxBps)
		prev = q.FeeBps
	}
}

func TestQuoteForZeroReserve(t *testing.T) {
	_, err := DefaultConfig().QuoteFor(10, 0)
	assert.ErrorIs(t, err, fixedpoint.ErrDivisionByZero)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.ErrorIs(t, Config{BaseBps: 30, MaxBps: 10000}.Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, Config{BaseBps: 500, MaxBps: 100}.Validate(), ErrInvalidConfig)
}

func TestDistribute(t *testing.T) {
	d := Distribute(1000)
	assert.Equal(t, Distribution{LPShare: 500, TreasuryShare: 300, InsuranceShare: 200}, d)

	// Shares always re-assemble to the full fee.
	for _, feeAmount := range []uint64{0, 1, 7, 999, 12345} {
		d := Distribute(feeAmount)
		assert.Equal(t, feeAmount, d.LPShare+d.TreasuryShare+d.InsuranceShare)
	}
}
