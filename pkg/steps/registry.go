package steps

import (
	"fmt"
	"sort"

	"github.com/systemstart/piper/pkg/api"
	"github.com/systemstart/piper/pkg/requirements"
)

// Definition is a configured step: its action plus the requirements that
// gate it.
type Definition struct {
	Name         string
	Kind         string
	Requirements requirements.Set
	Action       Step
}

// Registry holds step definitions by name. It is populated before runs
// start and only read while they are in progress.
type Registry struct {
	defs map[string]*Definition
}

// NewRegistry builds every configured step.
func NewRegistry(cfgs map[string]api.StepConfig) (*Registry, error) {
	r := &Registry{defs: make(map[string]*Definition, len(cfgs))}
	for name, cfg := range cfgs {
		reqs, err := requirements.FromConfig(cfg.Requirements)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", name, err)
		}
		action, err := NewStep(name, cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: step %q: %w", api.ErrConfiguration, name, err)
		}
		r.defs[name] = &Definition{
			Name:         name,
			Kind:         cfg.StepKind(),
			Requirements: reqs,
			Action:       action,
		}
	}
	return r, nil
}

// Add registers a definition, replacing any existing one with the same name.
func (r *Registry) Add(def *Definition) {
	if r.defs == nil {
		r.defs = make(map[string]*Definition)
	}
	r.defs[def.Name] = def
}

// Resolve returns the named step or a *api.NotFoundError.
func (r *Registry) Resolve(name string) (*Definition, error) {
	def, ok := r.defs[name]
	if !ok {
		return nil, &api.NotFoundError{Kind: "step", Name: name}
	}
	return def, nil
}

// Names returns all step names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
