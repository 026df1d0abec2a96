package fixedpoint

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulDiv(t *testing.T) {
	testCases := []struct {
		name        string
		a, b, denom uint64
		expected    uint64
		expectedErr error
	}{
		{
			name: "Simple",
			a:    6, b: 7, denom: 2,
			expected: 21,
		},
		{
			name: "Floors The Quotient",
			a:    10, b: 10, denom: 3,
			expected: 33,
		},
		{
			name: "Wide Intermediate Does Not Overflow",
			a:    math.MaxUint64, b: math.MaxUint64, denom: math.MaxUint64,
			expected: math.MaxUint64,
		},
		{
			name: "Quotient Too Wide",
			a:    math.MaxUint64, b: 2, denom: 1,
			expectedErr: ErrArithmeticOverflow,
		},
		{
			name: "Zero Denominator",
			a:    1, b: 1, denom: 0,
			expectedErr: ErrDivisionByZero,
		},
		{
			name: "Zero Numerator",
			a:    0, b: 12345, denom: 7,
			expected: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := MulDiv(tc.a, tc.b, tc.denom)
			if tc.expectedErr != nil {
				require.ErrorIs(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestBasisPointsOf(t *testing.T) {
	bps, err := BasisPointsOf(500, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), bps)

	bps, err = BasisPointsOf(1, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(3333), bps)

	_, err = BasisPointsOf(1, 0)
	require.ErrorIs(t, err, ErrDivisionByZero)

	// Whole numbers above the part are fine even at the top of the range.
	bps, err = BasisPointsOf(math.MaxUint64/2, math.MaxUint64)
	require.NoError(t, err)
	assert.Equal(t, uint64(4999), bps)
}

func TestCheckedHelpers(t *testing.T) {
	sum, err := Add(math.MaxUint64-1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), sum)

	_, err = Add(math.MaxUint64, 1)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)

	_, err = Sub(1, 2)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)

	_, err = Mul(math.MaxUint64, 2)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)
}

func TestSaturatingHelpers(t *testing.T) {
	assert.Equal(t, uint64(math.MaxUint64), SatAdd(math.MaxUint64, 1))
	assert.Equal(t, uint64(0), SatSub(3, 5))
	assert.Equal(t, uint64(math.MaxUint64), SatMul(math.MaxUint64, 2))
	assert.Equal(t, uint64(0), SatDiv(42, 0))
	assert.Equal(t, uint64(6), SatDiv(42, 7))
}
