package engine

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// KernelName identifies a registered scenario kernel.
type KernelName string

// KernelFunc is the uniform shape every scenario kernel reduces to: a pure
// function from a fixed number of 64-bit arguments to a combined fingerprint.
type KernelFunc func(args []uint64) (uint64, error)

// Kernel couples a kernel function with its name and argument count.
type Kernel struct {
	Name  KernelName
	Arity int
	Fn    KernelFunc
}

// Result carries the output of one kernel run.
type Result struct {
	Kernel   KernelName `json:"kernel"`
	Args     []uint64   `json:"args"`
	Combined uint64     `json:"combined"`
}
