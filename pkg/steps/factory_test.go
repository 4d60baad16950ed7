package steps

import (
	"context"
	"testing"

	"github.com/systemstart/piper/pkg/api"
)

func TestNewStep(t *testing.T) {
	tests := []struct {
		name    string
		cfg     api.StepConfig
		wantErr bool
	}{
		{
			name: "command step",
			cfg:  api.StepConfig{Type: api.StepTypeCommand, Command: "make test"},
		},
		{
			name: "command is the default type",
			cfg:  api.StepConfig{Command: "make lint"},
		},
		{
			name: "template step",
			cfg:  api.StepConfig{Type: api.StepTypeTemplate, Template: &api.TemplateConfig{}},
		},
		{
			name: "generate step",
			cfg: api.StepConfig{
				Type:     api.StepTypeGenerate,
				Generate: &api.GenerateConfig{Output: "VERSION", Template: "{{ .version }}"},
			},
		},
		{
			name: "generate step with broken template",
			cfg: api.StepConfig{
				Type:     api.StepTypeGenerate,
				Generate: &api.GenerateConfig{Output: "VERSION", Template: "{{ .version"},
			},
			wantErr: true,
		},
		{
			name:    "unknown type",
			cfg:     api.StepConfig{Type: "unknown"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step, err := NewStep("s", tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewStep() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				if step == nil {
					t.Fatal("expected non-nil step")
				}
				if step.Name() != "s" {
					t.Errorf("Name() = %q, want %q", step.Name(), "s")
				}
			}
		})
	}
}

type noopStep struct{ name string }

func (s noopStep) Name() string { return s.name }

func (s noopStep) Run(context.Context, StepContext) (*Output, error) { return &Output{}, nil }

func TestRegisterKind(t *testing.T) {
	RegisterKind("test-noop", func(name string, _ api.StepConfig) (Step, error) {
		return noopStep{name: name}, nil
	})

	step, err := NewStep("migrate", api.StepConfig{Type: "test-noop"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := step.(noopStep); !ok {
		t.Errorf("expected registered kind, got %T", step)
	}
}
