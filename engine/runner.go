// Package engine hosts the registry of scenario kernels and runs them behind
// a single instrumented entry point. Kernels themselves are pure; the runner
// adds the ambient concerns (metrics, logging, argument validation) so hosts
// embed one object instead of a bag of functions.
package engine

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/defistate/poolsim-go/bitset"
)

var (
	// ErrUnknownKernel is returned when no kernel is registered under the
	// requested name.
	ErrUnknownKernel = errors.New("unknown kernel")
	// ErrBadArity is returned when the argument count does not match the
	// kernel's declared arity.
	ErrBadArity = errors.New("bad argument count")
)

// RunnerConfig holds the kernels and the runner's dependencies.
type RunnerConfig struct {
	Kernels  []Kernel
	Registry prometheus.Registerer // Required for metrics.
	Logger   Logger                // Required for logging.
}

// validate checks if the configuration is valid, ensuring required dependencies are present.
func (c *RunnerConfig) validate() error {
	if c.Registry == nil {
		return errors.New("config: Registry cannot be nil")
	}
	if c.Logger == nil {
		return errors.New("config: Logger cannot be nil")
	}
	for _, k := range c.Kernels {
		if k.Name == "" {
			return errors.New("config: kernel name cannot be empty")
		}
		if k.Fn == nil {
			return fmt.Errorf("config: kernel %q has a nil function", k.Name)
		}
		if k.Arity <= 0 {
			return fmt.Errorf("config: kernel %q must declare a positive arity", k.Name)
		}
	}
	return nil
}

// Runner dispatches kernel runs, with metrics and logging.
type Runner struct {
	metrics *Metrics
	logger  Logger
	kernels map[KernelName]Kernel
}

// NewRunner constructs a Runner from a configuration, returning an error if
// the config is invalid.
func NewRunner(cfg *RunnerConfig) (*Runner, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	kernels := make(map[KernelName]Kernel, len(cfg.Kernels))
	for _, k := range cfg.Kernels {
		if _, exists := kernels[k.Name]; exists {
			return nil, fmt.Errorf("config: kernel %q registered twice", k.Name)
		}
		kernels[k.Name] = k
	}

	return &Runner{
		metrics: NewMetrics(cfg.Registry),
		logger:  cfg.Logger,
		kernels: kernels,
	}, nil
}

// Kernels returns the registered kernel names in no particular order.
func (r *Runner) Kernels() []KernelName {
	names := make([]KernelName, 0, len(r.kernels))
	for name := range r.kernels {
		names = append(names, name)
	}
	return names
}

// Run executes the named kernel with args. Kernels are pure, so concurrent
// Run calls are safe; it is the per-pool trade chaining inside a host that
// must stay serialized.
func (r *Runner) Run(name KernelName, args []uint64) (*Result, error) {
	kernel, exists := r.kernels[name]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKernel, name)
	}
	if len(args) != kernel.Arity {
		return nil, fmt.Errorf("%w: kernel %q wants %d args, got %d", ErrBadArity, name, kernel.Arity, len(args))
	}

	timer := prometheus.NewTimer(r.metrics.runDuration.WithLabelValues(string(name)))
	defer timer.ObserveDuration()

	combined, err := kernel.Fn(args)
	if err != nil {
		r.metrics.runFailures.WithLabelValues(string(name)).Inc()
		r.logger.Warn("kernel run failed", "kernel", name, "err", err)
		return nil, err
	}

	r.metrics.runsTotal.WithLabelValues(string(name)).Inc()
	r.logger.Debug("kernel run finished", "kernel", name, "combined", combined)

	return &Result{Kernel: name, Args: args, Combined: combined}, nil
}

// BatchRequest names one kernel run inside a batch.
type BatchRequest struct {
	Kernel KernelName `json:"kernel"`
	Args   []uint64   `json:"args"`
}

// RunBatch executes every request in order, continuing past failures. The
// returned slice holds one entry per request, nil where the run failed, and
// the bitset marks the indices that succeeded.
func (r *Runner) RunBatch(requests []BatchRequest) ([]*Result, bitset.BitSet) {
	results := make([]*Result, len(requests))
	succeeded := bitset.New(uint64(len(requests)))
	for i, req := range requests {
		res, err := r.Run(req.Kernel, req.Args)
		if err != nil {
			continue
		}
		results[i] = res
		succeeded.Set(uint64(i))
	}
	return results, succeeded
}
