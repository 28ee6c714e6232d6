package graph

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/weftlabs/weft/internal/state"
)

const (
	defaultMaxSteps = 50
	defaultTimeout  = 60 * time.Second
	defaultLeaseTTL = 30 * time.Second
)

// Config represents runtime configuration for graph execution
type Config[T state.GraphState[T]] struct {
	ThreadID     string         // Unique identifier for this execution thread
	MaxSteps     int            // Maximum number of node transitions per run
	Timeout      time.Duration  // Wall-clock bound for one run
	LeaseTTL     time.Duration  // How long a run may hold the per-thread lease
	Logger       *zap.Logger    // Execution tracing
	Configurable map[string]any // Additional configuration parameters
}

func (c *Config[T]) clone() Config[T] {
	return Config[T]{
		ThreadID:     c.ThreadID,
		MaxSteps:     c.MaxSteps,
		Timeout:      c.Timeout,
		LeaseTTL:     c.LeaseTTL,
		Logger:       c.Logger,
		Configurable: c.Configurable,
	}
}

// CompilationOption configures the compiled graph.
type CompilationOption[T state.GraphState[T]] func(*Config[T])

// WithMaxSteps sets the maximum number of node transitions per run
func WithMaxSteps[T state.GraphState[T]](steps int) CompilationOption[T] {
	return func(c *Config[T]) {
		c.MaxSteps = steps
	}
}

// WithTimeout sets the execution timeout per run
func WithTimeout[T state.GraphState[T]](timeout time.Duration) CompilationOption[T] {
	return func(c *Config[T]) {
		c.Timeout = timeout
	}
}

// WithLeaseTTL sets how long the per-thread lease is held before a crashed
// run's lease may be taken over
func WithLeaseTTL[T state.GraphState[T]](ttl time.Duration) CompilationOption[T] {
	return func(c *Config[T]) {
		c.LeaseTTL = ttl
	}
}

// WithLogger sets the logger used for execution tracing
func WithLogger[T state.GraphState[T]](logger *zap.Logger) CompilationOption[T] {
	return func(c *Config[T]) {
		c.Logger = logger
	}
}

// ExecutionOption configures a single run.
type ExecutionOption[T state.GraphState[T]] func(*Config[T])

// WithThreadID sets the unique thread identifier; a fresh one is generated
// when not provided
func WithThreadID[T state.GraphState[T]](id string) ExecutionOption[T] {
	return func(c *Config[T]) {
		c.ThreadID = id
	}
}

// WithConfigurable sets additional configuration parameters visible to nodes
func WithConfigurable[T state.GraphState[T]](config map[string]any) ExecutionOption[T] {
	return func(c *Config[T]) {
		c.Configurable = config
	}
}

func newConfig[T state.GraphState[T]](opts ...CompilationOption[T]) Config[T] {
	cfg := Config[T]{
		MaxSteps: defaultMaxSteps,
		Timeout:  defaultTimeout,
		LeaseTTL: defaultLeaseTTL,
		Logger:   zap.NewNop(),
	}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

func (c *Config[T]) forRun(opts ...ExecutionOption[T]) Config[T] {
	run := c.clone()
	for _, o := range opts {
		o(&run)
	}
	if run.ThreadID == "" {
		run.ThreadID = uuid.New().String()
	}
	return run
}
