package processing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/systemstart/piper/pkg/api"
	"github.com/systemstart/piper/pkg/environments"
	"github.com/systemstart/piper/pkg/requirements"
	"github.com/systemstart/piper/pkg/steps"
)

const virtualizedReason = "The base environment cannot run if hardware is virtualized"

func strPtr(s string) *string { return &s }

// recordingStep is an instrumented action that records every invocation.
type recordingStep struct {
	name     string
	exitCode int
	err      error
	block    bool // wait for cancellation

	mu    sync.Mutex
	calls int
	seen  []steps.StepContext
}

func (s *recordingStep) Name() string { return s.name }

func (s *recordingStep) Run(ctx context.Context, sctx steps.StepContext) (*steps.Output, error) {
	s.mu.Lock()
	s.calls++
	s.seen = append(s.seen, sctx)
	s.mu.Unlock()

	if s.block {
		<-ctx.Done()
		return &steps.Output{ExitCode: -1}, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return &steps.Output{ExitCode: s.exitCode, Combined: fmt.Appendf(nil, "%s ran\n", s.name)}, nil
}

func (s *recordingStep) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fixture struct {
	dir     string
	actions map[string]*recordingStep
	reg     *steps.Registry
	envs    *environments.Registry
}

// newFixture builds registries with one recording action per step name.
// stepReqs optionally gates steps on requirements.
func newFixture(t *testing.T, envCfgs map[string]api.EnvConfig, stepNames []string, stepReqs map[string]api.Requirements) *fixture {
	t.Helper()

	envs, err := environments.NewRegistry(envCfgs)
	if err != nil {
		t.Fatalf("environments.NewRegistry() error = %v", err)
	}

	f := &fixture{
		dir:     t.TempDir(),
		actions: make(map[string]*recordingStep),
		reg:     &steps.Registry{},
		envs:    envs,
	}
	for _, name := range stepNames {
		reqs, err := requirements.FromConfig(stepReqs[name])
		if err != nil {
			t.Fatal(err)
		}
		action := &recordingStep{name: name}
		f.actions[name] = action
		f.reg.Add(&steps.Definition{Name: name, Kind: "recording", Requirements: reqs, Action: action})
	}
	return f
}

func (f *fixture) executor(t *testing.T, pipelines map[string][]string, opts ...Option) *Executor {
	t.Helper()
	p, err := NewPipelines(pipelines, f.reg)
	if err != nil {
		t.Fatalf("NewPipelines() error = %v", err)
	}
	opts = append([]Option{WithBaseDir(f.dir)}, opts...)
	return NewExecutor(f.envs, f.reg, p, opts...)
}

func localEnv(virtual string) map[string]api.EnvConfig {
	return map[string]api.EnvConfig{
		"local": {
			Attributes: map[string]string{"virtual": virtual},
			Requirements: api.Requirements{
				{Name: "is_not_virtual", Key: "virtual", Reason: virtualizedReason, Equals: strPtr("physical")},
			},
		},
	}
}

func stepNames(results []StepResult) []string {
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Step)
	}
	return names
}

var errBoom = errors.New("boom")
