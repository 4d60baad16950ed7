package steps

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/systemstart/piper/pkg/api"
)

// generateStep renders an inline template to a file in the workspace.
type generateStep struct {
	name   string
	output string
	tmpl   *template.Template
}

// NewGenerateStep parses the template up front so syntax errors surface
// when the configuration is loaded.
func NewGenerateStep(name string, cfg *api.GenerateConfig) (Step, error) {
	if cfg == nil {
		return nil, errors.New("generate config is required")
	}
	if !filepath.IsLocal(cfg.Output) {
		return nil, fmt.Errorf("output %q must be a relative path inside the workspace", cfg.Output)
	}
	tmpl, err := template.New(name).Funcs(sprig.FuncMap()).Option("missingkey=error").Parse(cfg.Template)
	if err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}
	return &generateStep{name: name, output: cfg.Output, tmpl: tmpl}, nil
}

func (s *generateStep) Name() string { return s.name }

func (s *generateStep) Run(_ context.Context, sctx StepContext) (*Output, error) {
	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, sctx.TemplateData); err != nil {
		return nil, fmt.Errorf("executing template: %w", err)
	}

	path := filepath.Join(sctx.WorkDir, s.output)
	msg, err := writeIfChanged(path, buf.Bytes())
	if err != nil {
		return nil, err
	}

	line := fmt.Appendf(nil, "%s %s (%d bytes)\n", msg, s.output, buf.Len())
	if sctx.Output != nil {
		_, _ = sctx.Output.Write(line)
	}
	return &Output{Combined: line}, nil
}

func writeIfChanged(path string, content []byte) (string, error) {
	current, err := os.ReadFile(path)
	switch {
	case err == nil && bytes.Equal(current, content):
		return "unchanged", nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("creating parent directories: %w", err)
	}
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return "", fmt.Errorf("writing output file: %w", err)
	}
	return "wrote", nil
}
