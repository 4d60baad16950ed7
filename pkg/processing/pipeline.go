package processing

import (
	"fmt"
	"sort"

	"github.com/systemstart/piper/pkg/api"
	"github.com/systemstart/piper/pkg/steps"
)

// Pipeline is an ordered sequence of step names. Duplicates are allowed.
type Pipeline struct {
	Name  string
	Steps []string
}

// Pipelines holds pipelines by name.
type Pipelines struct {
	m map[string]*Pipeline
}

// NewPipelines builds the pipeline registry and checks that every pipeline
// is non-empty and only references known steps.
func NewPipelines(cfg map[string][]string, reg *steps.Registry) (*Pipelines, error) {
	p := &Pipelines{m: make(map[string]*Pipeline, len(cfg))}
	for name, stepNames := range cfg {
		if len(stepNames) == 0 {
			return nil, fmt.Errorf("%w: pipeline %q has no steps", api.ErrConfiguration, name)
		}
		for _, s := range stepNames {
			if _, err := reg.Resolve(s); err != nil {
				return nil, fmt.Errorf("pipeline %q: %w", name, err)
			}
		}
		p.m[name] = &Pipeline{Name: name, Steps: append([]string(nil), stepNames...)}
	}
	return p, nil
}

// Resolve returns the named pipeline or a *api.NotFoundError.
func (p *Pipelines) Resolve(name string) (*Pipeline, error) {
	pl, ok := p.m[name]
	if !ok {
		return nil, &api.NotFoundError{Kind: "pipeline", Name: name}
	}
	return pl, nil
}

// Names returns all pipeline names, sorted.
func (p *Pipelines) Names() []string {
	names := make([]string, 0, len(p.m))
	for name := range p.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
