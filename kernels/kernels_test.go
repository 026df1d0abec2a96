package kernels

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defistate/poolsim-go/engine"
	"github.com/defistate/poolsim-go/scenarios/lending"
	"github.com/defistate/poolsim-go/swap"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func newRunner(t *testing.T) *engine.Runner {
	t.Helper()
	runner, err := engine.NewRunner(&engine.RunnerConfig{
		Kernels:  All(),
		Registry: prometheus.NewRegistry(),
		Logger:   nopLogger{},
	})
	require.NoError(t, err)
	return runner
}

func TestAllKernelsRegister(t *testing.T) {
	runner := newRunner(t)
	assert.Len(t, runner.Kernels(), 8)
}

func TestSwapKernelMatchesSimulate(t *testing.T) {
	runner := newRunner(t)

	res, err := runner.Run(Swap, []uint64{1000, 1000, 100, 0, 10_000})
	require.NoError(t, err)

	want, _, err := swap.Simulate(1000, 1000, 100, 0, 10_000)
	require.NoError(t, err)
	assert.Equal(t, want, res.Combined)
}

func TestScenarioKernelsRun(t *testing.T) {
	runner := newRunner(t)
	cases := []struct {
		name engine.KernelName
		args []uint64
	}{
		{Energy, []uint64{100_000, 500, 5, 7}},
		{ToyRSA, []uint64{61, 53, 17, 65, 1}},
		{Provenance, []uint64{42, 0b101, 900, 0b1011}},
		{Compliance, []uint64{1000, 500, 0b1011, 7}},
		{GameLogic, []uint64{10_000_000, 100, 200, 5}},
		{ContractAudit, []uint64{0b1111, 500, 12, 0b1010}},
		{Lending, []uint64{1000, 400, 50, 500}},
	}
	for _, tc := range cases {
		t.Run(string(tc.name), func(t *testing.T) {
			res, err := runner.Run(tc.name, tc.args)
			require.NoError(t, err)
			assert.NotNil(t, res)
		})
	}
}

func TestLendingKernelMatchesDirectRun(t *testing.T) {
	runner := newRunner(t)

	res, err := runner.Run(Lending, []uint64{1000, 400, 50, 500})
	require.NoError(t, err)

	direct, err := lending.Run(lending.Params{Collateral: 1000, Borrowed: 400, StakeRatio: 50, InterestBps: 500})
	require.NoError(t, err)
	assert.Equal(t, uint64(direct.Combined), res.Combined)
}

func TestNarrow32Overflow(t *testing.T) {
	runner := newRunner(t)

	_, err := runner.Run(Lending, []uint64{1 << 33, 400, 50, 500})
	assert.ErrorIs(t, err, ErrArgOutOfRange)
}

func TestScenarioErrorsPropagate(t *testing.T) {
	runner := newRunner(t)

	_, err := runner.Run(Energy, []uint64{100, 200, 1, 1})
	assert.Error(t, err)
}
