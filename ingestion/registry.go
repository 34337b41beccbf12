package ingestion

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/poiesic/kbflow/core"
)

// Stage executes one processing stage of a document.
type Stage interface {
	// Name identifies the stage. It must be one of core.Stages.
	Name() core.Stage

	// Execute runs the stage for run's document. Unit failures are reported
	// through the returned error; a nil error with a raised signal means the
	// stage stopped early on request.
	Execute(ctx context.Context, run *Run) error
}

// Registry holds the stages a Pipeline can dispatch.
type Registry struct {
	mu     sync.RWMutex
	stages map[core.Stage]Stage
}

// NewRegistry creates a registry holding stages.
func NewRegistry(stages ...Stage) (*Registry, error) {
	r := &Registry{stages: make(map[core.Stage]Stage)}
	for _, s := range stages {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a stage. Registering a name twice is an error.
func (r *Registry) Register(stage Stage) error {
	name := stage.Name()
	if !slices.Contains(core.Stages, name) {
		return fmt.Errorf("%w: unknown stage %q", core.ErrValidation, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stages[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateStage, name)
	}
	r.stages[name] = stage
	return nil
}

// Get returns the stage registered under name.
func (r *Registry) Get(name core.Stage) (Stage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stages[name]
	return s, ok
}

// Names returns the registered stage names in pipeline order.
func (r *Registry) Names() []core.Stage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []core.Stage
	for _, s := range core.Stages {
		if _, ok := r.stages[s]; ok {
			names = append(names, s)
		}
	}
	return names
}
