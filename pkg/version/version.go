// Package version derives the label runs are tagged with.
package version

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/systemstart/piper/pkg/api"
)

// Unknown is used when no label could be derived.
const Unknown = "unknown"

// Provider derives a version label.
type Provider interface {
	Version(ctx context.Context) (string, error)
}

// Static always returns Value.
type Static struct {
	Value string
}

func (s Static) Version(context.Context) (string, error) { return s.Value, nil }

// Git describes the repository in Dir with `git describe --tags --always --dirty`.
type Git struct {
	Dir string
}

func (g Git) Version(ctx context.Context) (string, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return "", fmt.Errorf("git binary not found in PATH: %w", err)
	}

	cmd := exec.CommandContext(ctx, "git", "describe", "--tags", "--always", "--dirty")
	cmd.Dir = g.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git describe failed: %w\nstderr: %s", err, stderr.String())
	}
	return strings.TrimSpace(stdout.String()), nil
}

// New creates the provider selected by cfg. dir is the project directory.
func New(cfg api.VersionConfig, dir string) (Provider, error) {
	switch cfg.Type {
	case api.VersionTypeGit, "":
		return Git{Dir: dir}, nil
	case api.VersionTypeStatic:
		return Static{Value: cfg.Value}, nil
	default:
		return nil, fmt.Errorf("%w: unknown version type: %s", api.ErrConfiguration, cfg.Type)
	}
}

// Cached computes the label of a Provider once and returns the same result
// on every later call.
type Cached struct {
	p Provider

	once sync.Once
	v    string
	err  error
}

// Lazy wraps p so it is evaluated at most once.
func Lazy(p Provider) *Cached {
	return &Cached{p: p}
}

func (c *Cached) Version(ctx context.Context) (string, error) {
	c.once.Do(func() {
		c.v, c.err = c.p.Version(ctx)
	})
	return c.v, c.err
}

// Label returns the version or Unknown when it cannot be derived.
func (c *Cached) Label(ctx context.Context) string {
	v, err := c.Version(ctx)
	if err != nil || v == "" {
		return Unknown
	}
	return v
}
