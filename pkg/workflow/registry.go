package workflow

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// ErrWorkflowNotFound is returned when resolving a name with no registered
// workflow.
var ErrWorkflowNotFound = errors.New("workflow not found")

// Registry maps workflow names to their compiled runners. It is populated at
// process start and read-only afterwards; Register fails on duplicates rather
// than replacing.
type Registry struct {
	mu      sync.RWMutex
	runners map[string]Runner
}

func NewRegistry() *Registry {
	return &Registry{
		runners: make(map[string]Runner),
	}
}

// Register adds a compiled workflow under its name.
func (r *Registry) Register(runner Runner) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := runner.Name()
	if name == "" {
		return errors.New("workflow name must not be empty")
	}
	if _, exists := r.runners[name]; exists {
		return fmt.Errorf("workflow %q already registered", name)
	}
	r.runners[name] = runner
	return nil
}

// Resolve returns the runner registered under name.
func (r *Registry) Resolve(name string) (Runner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runner, exists := r.runners[name]
	if !exists {
		return nil, errors.Wrapf(ErrWorkflowNotFound, "%q", name)
	}
	return runner, nil
}

// Names returns the registered workflow names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.runners))
	for name := range r.runners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
