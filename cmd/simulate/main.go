// Command simulate runs one named kernel with uint64 arguments and prints
// the result as JSON.
//
// Examples:
//
//	simulate -kernel swap -args 1000,1000,500,400,10000
//	simulate -kernel energy -args 100000,500,5,7
//	simulate -list
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/defistate/poolsim-go/engine"
	"github.com/defistate/poolsim-go/kernels"
)

func main() {
	// .env can provide SIMULATE_KERNEL and SIMULATE_ARGS defaults.
	_ = godotenv.Load()

	kernelName := flag.String("kernel", os.Getenv("SIMULATE_KERNEL"), "Kernel to run.")
	argsSpec := flag.String("args", os.Getenv("SIMULATE_ARGS"), "Comma-separated uint64 arguments.")
	list := flag.Bool("list", false, "List registered kernels and exit.")
	debug := flag.Bool("debug", false, "Enable debug logging.")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	runner, err := engine.NewRunner(&engine.RunnerConfig{
		Kernels:  kernels.All(),
		Registry: prometheus.NewRegistry(),
		Logger:   logger,
	})
	if err != nil {
		logger.Error("Failed to initialize runner", "error", err)
		os.Exit(1)
	}

	if *list {
		for _, name := range runner.Kernels() {
			fmt.Println(name)
		}
		return
	}

	if *kernelName == "" {
		logger.Error("No kernel selected, use -kernel or SIMULATE_KERNEL")
		os.Exit(2)
	}

	args, err := parseArgs(*argsSpec)
	if err != nil {
		logger.Error("Failed to parse arguments", "args", *argsSpec, "error", err)
		os.Exit(2)
	}

	result, err := runner.Run(engine.KernelName(*kernelName), args)
	if err != nil {
		logger.Error("Kernel run failed", "kernel", *kernelName, "error", err)
		os.Exit(1)
	}

	out, err := json.Marshal(result)
	if err != nil {
		logger.Error("Failed to encode result", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func parseArgs(spec string) ([]uint64, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil
	}
	parts := strings.Split(spec, ",")
	args := make([]uint64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", part, err)
		}
		args = append(args, v)
	}
	return args, nil
}
