package processing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/systemstart/piper/pkg/api"
	"github.com/systemstart/piper/pkg/environments"
	"github.com/systemstart/piper/pkg/probe"
	"github.com/systemstart/piper/pkg/steps"
)

// ReasonCancelled is the reason recorded when a run is cancelled.
const ReasonCancelled = "cancelled"

// VersionSource supplies the version label attached to runs. It is asked
// when a run starts.
type VersionSource interface {
	Label(ctx context.Context) string
}

type staticVersion string

func (v staticVersion) Label(context.Context) string { return string(v) }

// Executor runs pipelines against environments. One Executor performs one
// run at a time; registries are only read.
type Executor struct {
	envs      *environments.Registry
	steps     *steps.Registry
	pipelines *Pipelines

	baseDir  string
	prober   probe.Prober
	version  VersionSource
	observer Observer
	output   io.Writer
	extra    map[string]any
	now      func() time.Time

	mu sync.Mutex
}

// Option configures an Executor.
type Option func(*Executor)

// WithProber sets the source of runtime attributes.
func WithProber(p probe.Prober) Option { return func(e *Executor) { e.prober = p } }

// WithVersion sets a fixed version label.
func WithVersion(v string) Option { return WithVersionSource(staticVersion(v)) }

// WithVersionSource sets where the version label comes from.
func WithVersionSource(s VersionSource) Option { return func(e *Executor) { e.version = s } }

// WithObserver sets the progress observer.
func WithObserver(o Observer) Option { return func(e *Executor) { e.observer = o } }

// WithOutput streams step output to w while it is captured.
func WithOutput(w io.Writer) Option { return func(e *Executor) { e.output = w } }

// WithBaseDir sets the project directory workspaces are created from.
func WithBaseDir(dir string) Option { return func(e *Executor) { e.baseDir = dir } }

// WithTemplateData adds data available to template steps. Built-in keys
// (version, pipeline, env, run_id, workdir, attrs) take precedence.
func WithTemplateData(data map[string]any) Option { return func(e *Executor) { e.extra = data } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(e *Executor) { e.now = now } }

// NewExecutor creates an Executor over the given registries.
func NewExecutor(envs *environments.Registry, reg *steps.Registry, pipelines *Pipelines, opts ...Option) *Executor {
	e := &Executor{
		envs:      envs,
		steps:     reg,
		pipelines: pipelines,
		baseDir:   ".",
		observer:  NopObserver{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FromConfig builds all registries from a loaded configuration.
func FromConfig(cfg *api.Config, opts ...Option) (*Executor, error) {
	envs, err := environments.NewRegistry(cfg.Envs)
	if err != nil {
		return nil, err
	}
	reg, err := steps.NewRegistry(cfg.Steps)
	if err != nil {
		return nil, err
	}
	pipelines, err := NewPipelines(cfg.Pipelines, reg)
	if err != nil {
		return nil, err
	}
	if cfg.Dir != "" {
		opts = append([]Option{WithBaseDir(cfg.Dir)}, opts...)
	}
	return NewExecutor(envs, reg, pipelines, opts...), nil
}

// Environments exposes the environment registry.
func (e *Executor) Environments() *environments.Registry { return e.envs }

// Steps exposes the step registry.
func (e *Executor) Steps() *steps.Registry { return e.steps }

// Pipelines exposes the pipeline registry.
func (e *Executor) Pipelines() *Pipelines { return e.pipelines }

// Run executes the named pipeline in the named environment. Unknown names
// are returned as errors wrapping api.ErrConfiguration; every other outcome,
// including failures, is reported through the RunResult.
func (e *Executor) Run(ctx context.Context, pipelineName, envName string) (*RunResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pl, err := e.pipelines.Resolve(pipelineName)
	if err != nil {
		return nil, err
	}
	env, err := e.envs.Resolve(envName)
	if err != nil {
		return nil, err
	}
	defs := make([]*steps.Definition, 0, len(pl.Steps))
	for _, name := range pl.Steps {
		def, err := e.steps.Resolve(name)
		if err != nil {
			return nil, fmt.Errorf("pipeline %q: %w", pl.Name, err)
		}
		defs = append(defs, def)
	}
	ws, err := environments.NewWorkspace(env, e.baseDir)
	if err != nil {
		return nil, err
	}

	result := &RunResult{
		ID:          uuid.NewString(),
		Pipeline:    pl.Name,
		Environment: env.Name,
		Version:     e.versionLabel(ctx),
		StartedAt:   e.now(),
	}
	e.observer.RunStarted(result)
	defer func() {
		result.EndedAt = e.now()
		e.observer.RunFinished(result)
	}()

	attrs, err := e.attributes(ctx, env, defs)
	if err != nil {
		e.stop(ctx, result, CategoryInfrastructure, fmt.Sprintf("probing attributes: %v", err))
		return result, nil
	}
	result.Attributes = attrs

	eligibility := env.IsEligible(attrs)
	if !eligibility.Eligible {
		result.Outcome = RunEnvironmentIneligible
		result.Category = CategoryRequirement
		result.EnvironmentFailures = eligibility.Failures
		result.Reason = joinReasons(eligibility.Failures)
		return result, nil
	}

	workDir, err := ws.Setup(ctx)
	if err != nil {
		e.stop(ctx, result, CategoryInfrastructure, fmt.Sprintf("setting up workspace: %v", err))
		return result, nil
	}
	defer func() {
		// Teardown must run even when the run was cancelled.
		if err := ws.Teardown(context.WithoutCancel(ctx)); err != nil {
			result.TeardownError = err.Error()
		}
	}()

	sctx := e.stepContext(result, workDir)
	sctx.Scratch = environments.IsScratch(ws)
	for i, def := range defs {
		if ctx.Err() != nil {
			result.FailedAt = i + 1
			result.FailedStep = def.Name
			e.stop(ctx, result, CategoryCancelled, ReasonCancelled)
			return result, nil
		}

		e.observer.StepStarted(result, i+1, def.Name)
		sr := e.runStep(ctx, i+1, def, sctx, attrs)
		result.Steps = append(result.Steps, sr)
		e.observer.StepFinished(result, sr)

		if sr.Outcome != Succeeded {
			result.FailedAt = sr.Index
			result.FailedStep = sr.Step
			e.stop(ctx, result, sr.Category, sr.Reason)
			return result, nil
		}
	}

	result.Outcome = RunSucceeded
	return result, nil
}

func (e *Executor) versionLabel(ctx context.Context) string {
	if e.version == nil {
		return ""
	}
	return e.version.Label(ctx)
}

// stop marks the run failed. Cancellation takes precedence over the
// category the caller observed.
func (e *Executor) stop(ctx context.Context, result *RunResult, cat Category, reason string) {
	result.Outcome = RunFailed
	if ctx.Err() != nil {
		cat, reason = CategoryCancelled, ReasonCancelled
	}
	result.Category = cat
	result.Reason = reason
}

// attributes merges static environment attributes with probed ones. Only
// keys some requirement or the environment's probe list refers to are
// probed.
func (e *Executor) attributes(ctx context.Context, env *environments.Environment, defs []*steps.Definition) (map[string]string, error) {
	if e.prober == nil {
		return maps.Clone(env.Attributes), nil
	}

	seen := make(map[string]bool)
	var keys []string
	add := func(ks []string) {
		for _, k := range ks {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	add(env.Probe)
	add(env.Requirements.Keys())
	for _, def := range defs {
		add(def.Requirements.Keys())
	}

	probed, err := e.prober.Probe(ctx, keys)
	if err != nil {
		return nil, err
	}
	return env.MergeAttributes(probed), nil
}

func (e *Executor) stepContext(result *RunResult, workDir string) steps.StepContext {
	return steps.StepContext{
		WorkDir: workDir,
		Env: []string{
			"PIPER_VERSION=" + result.Version,
			"PIPER_PIPELINE=" + result.Pipeline,
			"PIPER_ENV=" + result.Environment,
			"PIPER_RUN_ID=" + result.ID,
		},
		TemplateData: templateData(e.extra, map[string]any{
			"version":  result.Version,
			"pipeline": result.Pipeline,
			"env":      result.Environment,
			"run_id":   result.ID,
			"workdir":  workDir,
			"attrs":    maps.Clone(result.Attributes),
		}),
		Output: e.output,
	}
}

// runStep gates a step on its requirements and runs its action.
func (e *Executor) runStep(ctx context.Context, index int, def *steps.Definition, sctx steps.StepContext, attrs map[string]string) StepResult {
	sr := StepResult{
		Step:      def.Name,
		Index:     index,
		Kind:      def.Kind,
		StartedAt: e.now(),
	}

	if failed := def.Requirements.Failures(attrs); len(failed) > 0 {
		sr.Outcome = Skipped
		sr.Category = CategoryRequirement
		sr.Failures = failed
		sr.Reason = joinReasons(failed)
		return sr
	}

	out, err := def.Action.Run(ctx, sctx)
	sr.Duration = e.now().Sub(sr.StartedAt)
	if out != nil {
		sr.ExitCode = out.ExitCode
		sr.Output = out.Combined
	}

	switch {
	case ctx.Err() != nil:
		sr.Outcome = Failed
		sr.Category = CategoryCancelled
		sr.Reason = ReasonCancelled
	case errors.Is(err, steps.ErrInfrastructure):
		sr.Outcome = Failed
		sr.Category = CategoryInfrastructure
		sr.ExitCode = -1
		sr.Reason = err.Error()
	case err != nil:
		sr.Outcome = Failed
		sr.Category = CategoryExecution
		if out == nil {
			sr.ExitCode = -1
		}
		sr.Reason = err.Error()
	case sr.ExitCode != 0:
		sr.Outcome = Failed
		sr.Category = CategoryExecution
		sr.Reason = fmt.Sprintf("exit code %d", sr.ExitCode)
	default:
		sr.Outcome = Succeeded
	}
	return sr
}
