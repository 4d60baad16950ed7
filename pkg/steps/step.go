package steps

import (
	"context"
	"errors"
	"io"
)

// ErrInfrastructure marks actions that could not even be started, as
// opposed to actions that ran and reported failure.
var ErrInfrastructure = errors.New("step could not be started")

// StepContext provides the runtime context for a step.
type StepContext struct {
	WorkDir      string
	Env          []string       // extra KEY=value pairs for spawned processes
	TemplateData map[string]any // data for template rendering
	Output       io.Writer      // optional live copy of the captured output

	// Scratch is set when WorkDir is a throwaway copy of the project, so
	// steps may overwrite its files.
	Scratch bool
}

// Output holds what an action produced. A non-zero ExitCode means the
// action ran and failed.
type Output struct {
	ExitCode int
	Combined []byte // stdout and stderr, interleaved
}

// Step is the interface all step kinds implement.
type Step interface {
	Name() string
	Run(ctx context.Context, sctx StepContext) (*Output, error)
}
