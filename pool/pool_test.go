package pool

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	testCases := []struct {
		name                  string
		reserveIn, reserveOut uint64
		expectedErr           error
	}{
		{name: "Balanced Pool", reserveIn: 1000, reserveOut: 1000},
		{name: "Lopsided Pool", reserveIn: 1, reserveOut: math.MaxUint64},
		{name: "Zero Input Reserve", reserveIn: 0, reserveOut: 1000, expectedErr: ErrInvalidPool},
		{name: "Zero Output Reserve", reserveIn: 1000, reserveOut: 0, expectedErr: ErrInvalidPool},
		{name: "Product Overflows", reserveIn: 1 << 40, reserveOut: 1 << 40, expectedErr: ErrInvalidPool},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := New(tc.reserveIn, tc.reserveOut)
			if tc.expectedErr != nil {
				require.ErrorIs(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.reserveIn, p.ReserveIn)
			assert.Equal(t, tc.reserveOut, p.ReserveOut)
		})
	}
}

func TestQuoteOutput(t *testing.T) {
	p, err := New(1000, 1000)
	require.NoError(t, err)

	// 1000 - ceil(1000*1000/1500) = 1000 - 667 = 333
	out, err := p.QuoteOutput(500)
	require.NoError(t, err)
	assert.Equal(t, uint64(333), out)

	// Pure query: identical second call, pool untouched.
	again, err := p.QuoteOutput(500)
	require.NoError(t, err)
	assert.Equal(t, out, again)
	assert.Equal(t, Pool{ReserveIn: 1000, ReserveOut: 1000}, p)
}

func TestApply(t *testing.T) {
	p, err := New(1000, 1000)
	require.NoError(t, err)

	next, err := p.Apply(500, 333)
	require.NoError(t, err)
	assert.Equal(t, Pool{ReserveIn: 1500, ReserveOut: 667}, next)
	// The original value is untouched.
	assert.Equal(t, Pool{ReserveIn: 1000, ReserveOut: 1000}, p)

	// Product monotonicity: 1500*666 >= 1000*1000.
	assert.GreaterOrEqual(t, next.ReserveIn*next.ReserveOut, p.ReserveIn*p.ReserveOut)
}

func TestApplyDepletesPool(t *testing.T) {
	p, err := New(1000, 1000)
	require.NoError(t, err)

	_, err = p.Apply(10, 1000)
	assert.ErrorIs(t, err, ErrPoolDepleted)

	_, err = p.Apply(10, 2000)
	assert.ErrorIs(t, err, ErrPoolDepleted)
}

func TestApplyInvariantViolation(t *testing.T) {
	p, err := New(1000, 1000)
	require.NoError(t, err)

	// Taking far more output than the curve allows shrinks the product.
	_, err = p.Apply(10, 900)
	assert.ErrorIs(t, err, ErrInvariantViolation)
}

func TestValue(t *testing.T) {
	p, err := New(1000, 2000)
	require.NoError(t, err)

	// 1000 + 2000*500000/1000000 = 2000
	assert.Equal(t, uint64(2000), p.Value(500_000))
	assert.Equal(t, uint64(1000), p.Value(0))
}
