package steps

import (
	"fmt"
	"sync"

	"github.com/systemstart/piper/pkg/api"
)

// Factory creates a Step implementation from a StepConfig.
type Factory func(name string, cfg api.StepConfig) (Step, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{
		api.StepTypeCommand: func(name string, cfg api.StepConfig) (Step, error) {
			return NewCommandStep(name, cfg.Command), nil
		},
		api.StepTypeTemplate: func(name string, cfg api.StepConfig) (Step, error) {
			return NewTemplateStep(name, cfg.Template), nil
		},
		api.StepTypeGenerate: func(name string, cfg api.StepConfig) (Step, error) {
			return NewGenerateStep(name, cfg.Generate)
		},
	}
)

// RegisterKind adds a step kind. Registering an existing kind replaces it.
func RegisterKind(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// NewStep creates a Step implementation from a StepConfig.
func NewStep(name string, cfg api.StepConfig) (Step, error) {
	mu.RLock()
	f, ok := factories[cfg.StepKind()]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown step type: %s", cfg.StepKind())
	}
	return f(name, cfg)
}
