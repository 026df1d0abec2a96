// Package kernels adapts every simulation entry point to the engine's
// uniform kernel shape, so hosts register one slice and dispatch by name.
package kernels

import (
	"errors"
	"fmt"

	"github.com/defistate/poolsim-go/engine"
	"github.com/defistate/poolsim-go/scenarios/compliance"
	"github.com/defistate/poolsim-go/scenarios/contractaudit"
	"github.com/defistate/poolsim-go/scenarios/energy"
	"github.com/defistate/poolsim-go/scenarios/gamelogic"
	"github.com/defistate/poolsim-go/scenarios/lending"
	"github.com/defistate/poolsim-go/scenarios/provenance"
	"github.com/defistate/poolsim-go/scenarios/toyrsa"
	"github.com/defistate/poolsim-go/swap"
)

// ErrArgOutOfRange is returned when a 32-bit kernel argument does not fit.
var ErrArgOutOfRange = errors.New("argument out of range")

// Kernel names, as hosts address them.
const (
	Swap          engine.KernelName = "swap"
	Energy        engine.KernelName = "energy"
	ToyRSA        engine.KernelName = "toyrsa"
	Provenance    engine.KernelName = "provenance"
	Compliance    engine.KernelName = "compliance"
	GameLogic     engine.KernelName = "gamelogic"
	ContractAudit engine.KernelName = "contractaudit"
	Lending       engine.KernelName = "lending"
)

// All returns every kernel this module ships, ready for engine.RunnerConfig.
func All() []engine.Kernel {
	return []engine.Kernel{
		{Name: Swap, Arity: 5, Fn: runSwap},
		{Name: Energy, Arity: 4, Fn: runEnergy},
		{Name: ToyRSA, Arity: 5, Fn: runToyRSA},
		{Name: Provenance, Arity: 4, Fn: runProvenance},
		{Name: Compliance, Arity: 4, Fn: runCompliance},
		{Name: GameLogic, Arity: 4, Fn: runGameLogic},
		{Name: ContractAudit, Arity: 4, Fn: runContractAudit},
		{Name: Lending, Arity: 4, Fn: runLending},
	}
}

func runSwap(args []uint64) (uint64, error) {
	combined, _, err := swap.Simulate(args[0], args[1], args[2], args[3], args[4])
	return combined, err
}

func runEnergy(args []uint64) (uint64, error) {
	res, err := energy.Run(energy.Params{
		TotalProduced: args[0],
		TotalConsumed: args[1],
		DeviceCount:   args[2],
		BaselinePrice: args[3],
	})
	return res.Combined, err
}

func runToyRSA(args []uint64) (uint64, error) {
	res, err := toyrsa.Run(toyrsa.Params{
		PrimeP:   args[0],
		PrimeQ:   args[1],
		Exponent: args[2],
		Message:  args[3],
		UseCRT:   args[4] == 1,
	})
	return res.Combined, err
}

func runProvenance(args []uint64) (uint64, error) {
	envFlags, err := narrow32(args[1], "envFlags")
	if err != nil {
		return 0, err
	}
	certification, err := narrow32(args[3], "certification")
	if err != nil {
		return 0, err
	}
	res, err := provenance.Run(provenance.Params{
		ProductID:     args[0],
		EnvFlags:      envFlags,
		QualityScore:  args[2],
		Certification: certification,
	})
	return res.Combined, err
}

func runCompliance(args []uint64) (uint64, error) {
	flags, err := narrow32(args[2], "flags")
	if err != nil {
		return 0, err
	}
	rate, err := narrow32(args[3], "rate")
	if err != nil {
		return 0, err
	}
	res, err := compliance.Run(compliance.Params{
		Emissions: args[0],
		Credits:   args[1],
		Flags:     flags,
		Rate:      rate,
	})
	return res.Combined, err
}

func runGameLogic(args []uint64) (uint64, error) {
	focus, err := narrow32(args[1], "playerFocus")
	if err != nil {
		return 0, err
	}
	rarity, err := narrow32(args[3], "rarityFactor")
	if err != nil {
		return 0, err
	}
	res, err := gamelogic.Run(gamelogic.Params{
		PlayerEnergy:  args[0],
		PlayerFocus:   focus,
		BaseMaterials: args[2],
		RarityFactor:  rarity,
	})
	return res.Combined, err
}

func runContractAudit(args []uint64) (uint64, error) {
	coverage, err := narrow32(args[0], "coverageFlags")
	if err != nil {
		return 0, err
	}
	fnCount, err := narrow32(args[2], "functionCount")
	if err != nil {
		return 0, err
	}
	required, err := narrow32(args[3], "requiredMask")
	if err != nil {
		return 0, err
	}
	res, err := contractaudit.Run(contractaudit.Params{
		CoverageFlags: coverage,
		TotalGasUsed:  args[1],
		FunctionCount: fnCount,
		RequiredMask:  required,
	})
	return res.Combined, err
}

func runLending(args []uint64) (uint64, error) {
	params := lending.Params{}
	for i, field := range []struct {
		name string
		dst  *uint32
	}{
		{"collateral", &params.Collateral},
		{"borrowed", &params.Borrowed},
		{"stakeRatio", &params.StakeRatio},
		{"interestBps", &params.InterestBps},
	} {
		v, err := narrow32(args[i], field.name)
		if err != nil {
			return 0, err
		}
		*field.dst = v
	}
	res, err := lending.Run(params)
	return uint64(res.Combined), err
}

func narrow32(v uint64, name string) (uint32, error) {
	if v > uint64(^uint32(0)) {
		return 0, fmt.Errorf("%w: %s=%d exceeds 32 bits", ErrArgOutOfRange, name, v)
	}
	return uint32(v), nil
}
