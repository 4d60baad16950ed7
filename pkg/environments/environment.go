// Package environments models the named execution contexts a pipeline can
// run in and decides whether they are eligible.
package environments

import (
	"fmt"
	"maps"
	"sort"

	"github.com/systemstart/piper/pkg/api"
	"github.com/systemstart/piper/pkg/requirements"
)

// Environment is a named execution context gated by requirements.
type Environment struct {
	Name         string
	Kind         string
	Attributes   map[string]string
	Probe        []string
	Requirements requirements.Set

	cfg api.EnvConfig
}

// Eligibility is the outcome of checking an environment's requirements.
type Eligibility struct {
	Eligible bool
	Failures []requirements.Failure
}

// New builds an Environment from its configuration.
func New(name string, cfg api.EnvConfig) (*Environment, error) {
	reqs, err := requirements.FromConfig(cfg.Requirements)
	if err != nil {
		return nil, fmt.Errorf("env %q: %w", name, err)
	}
	return &Environment{
		Name:         name,
		Kind:         cfg.EnvKind(),
		Attributes:   maps.Clone(cfg.Attributes),
		Probe:        append([]string(nil), cfg.Probe...),
		Requirements: reqs,
		cfg:          cfg,
	}, nil
}

// IsEligible evaluates every requirement against attrs and reports all
// failures, not just the first.
func (e *Environment) IsEligible(attrs map[string]string) Eligibility {
	failed := e.Requirements.Failures(attrs)
	return Eligibility{Eligible: len(failed) == 0, Failures: failed}
}

// MergeAttributes overlays probed values on the static attributes. Probed
// keys override static ones.
func (e *Environment) MergeAttributes(probed map[string]string) map[string]string {
	merged := make(map[string]string, len(e.Attributes)+len(probed))
	maps.Copy(merged, e.Attributes)
	maps.Copy(merged, probed)
	return merged
}

// Registry holds environments by name. It is read-only after construction.
type Registry struct {
	envs map[string]*Environment
}

// NewRegistry builds every environment of the configuration.
func NewRegistry(envs map[string]api.EnvConfig) (*Registry, error) {
	r := &Registry{envs: make(map[string]*Environment, len(envs))}
	for name, cfg := range envs {
		env, err := New(name, cfg)
		if err != nil {
			return nil, err
		}
		r.envs[name] = env
	}
	return r, nil
}

// Resolve returns the named environment or a *api.NotFoundError.
func (r *Registry) Resolve(name string) (*Environment, error) {
	env, ok := r.envs[name]
	if !ok {
		return nil, &api.NotFoundError{Kind: "environment", Name: name}
	}
	return env, nil
}

// Names returns all environment names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.envs))
	for name := range r.envs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
