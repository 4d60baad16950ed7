package steps

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// Shell runs command steps. It is a variable so tests can swap it.
var Shell = "/bin/sh"

// waitDelay bounds how long a cancelled command may keep its output pipes
// open through orphaned children.
const waitDelay = 2 * time.Second

type commandStep struct {
	name    string
	command string
}

// NewCommandStep creates a step running command through the shell.
func NewCommandStep(name, command string) Step {
	return &commandStep{name: name, command: command}
}

func (s *commandStep) Name() string { return s.name }

func (s *commandStep) Run(ctx context.Context, sctx StepContext) (*Output, error) {
	cmd := exec.CommandContext(ctx, Shell, "-c", s.command)
	cmd.Dir = sctx.WorkDir
	cmd.Env = append(os.Environ(), sctx.Env...)
	cmd.WaitDelay = waitDelay

	var combined bytes.Buffer
	var w io.Writer = &combined
	if sctx.Output != nil {
		w = io.MultiWriter(&combined, sctx.Output)
	}
	cmd.Stdout = w
	cmd.Stderr = w

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &Output{ExitCode: -1, Combined: combined.Bytes()}, ctxErr
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return &Output{Combined: combined.Bytes()}, nil
	case errors.As(err, &exitErr):
		return &Output{ExitCode: exitErr.ExitCode(), Combined: combined.Bytes()}, nil
	default:
		return nil, fmt.Errorf("%w: %s: %w", ErrInfrastructure, s.command, err)
	}
}
