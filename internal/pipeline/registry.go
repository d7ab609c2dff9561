// internal/pipeline/registry.go

// Package pipeline names the detection algorithms a run can select.
package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ColonelBlimp/fpvdetect/internal/audio"
	"github.com/ColonelBlimp/fpvdetect/internal/dsp"
)

var (
	// ErrDuplicateAlgorithm indicates a name is already registered
	ErrDuplicateAlgorithm = errors.New("duplicate algorithm")
	// ErrUnknownAlgorithm indicates no algorithm has the requested name
	ErrUnknownAlgorithm = errors.New("unknown algorithm")
	// ErrEmptyRegistry indicates a lookup on a registry with no entries
	ErrEmptyRegistry = errors.New("no algorithms registered")
)

// Algorithm turns one clip into a Detection.
// Implementations must be safe for concurrent use.
type Algorithm interface {
	Name() string
	Detect(clip *audio.Clip, cfg dsp.DetectorConfig) (dsp.Detection, error)
}

// Registry maps algorithm names to implementations.
type Registry struct {
	mu    sync.RWMutex
	algos map[string]Algorithm
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{algos: make(map[string]Algorithm)}
}

// DefaultRegistry returns a registry holding the blade-pass detector.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(NewBPF())
	return r
}

// Register adds algo under its Name.
func (r *Registry) Register(algo Algorithm) error {
	if algo == nil {
		return errors.New("nil algorithm")
	}
	name := algo.Name()
	if name == "" {
		return errors.New("empty algorithm name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.algos[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateAlgorithm, name)
	}
	r.algos[name] = algo
	r.order = append(r.order, name)
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(algo Algorithm) {
	if err := r.Register(algo); err != nil {
		panic("pipeline registry: " + err.Error())
	}
}

// Lookup returns the named algorithm. An empty name selects the first one registered.
func (r *Registry) Lookup(name string) (Algorithm, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		if len(r.order) == 0 {
			return nil, ErrEmptyRegistry
		}
		return r.algos[r.order[0]], nil
	}

	algo, ok := r.algos[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrUnknownAlgorithm, name, r.order)
	}
	return algo, nil
}

// Names returns registered names in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}
