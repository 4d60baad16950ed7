package steps

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/systemstart/piper/pkg/api"
)

// templateSuffix marks template sources. A source renders next to itself
// with the suffix removed.
const templateSuffix = ".tmpl"

// templateStep renders the selected files of the workspace. Sources with
// the template suffix keep their content; anything else is rendered in place,
// which is only allowed in scratch workspaces.
type templateStep struct {
	name   string
	filter api.FileFilter
}

// NewTemplateStep creates a template step.
func NewTemplateStep(name string, cfg *api.TemplateConfig) Step {
	s := &templateStep{name: name}
	if cfg != nil {
		s.filter = cfg.Files
	}
	return s
}

func (s *templateStep) Name() string { return s.name }

func (s *templateStep) Run(ctx context.Context, sctx StepContext) (*Output, error) {
	files, err := selectFiles(os.DirFS(sctx.WorkDir), s.filter)
	if err != nil {
		return nil, err
	}

	// Resolve every target first so a refused file leaves the workspace untouched.
	targets := make([]string, len(files))
	for i, rel := range files {
		dst, ok := renderTarget(rel)
		if !ok {
			if !sctx.Scratch {
				return nil, fmt.Errorf("refusing to overwrite %s in a shared workspace: name it %s%s or use a %s environment",
					rel, rel, templateSuffix, api.EnvTypeTempDir)
			}
			dst = rel
		}
		targets[i] = dst
	}

	var log bytes.Buffer
	for i, rel := range files {
		if err := ctx.Err(); err != nil {
			return &Output{Combined: log.Bytes()}, err
		}
		dst := targets[i]
		if err := render(sctx.WorkDir, rel, dst, sctx.TemplateData); err != nil {
			return nil, fmt.Errorf("rendering %s: %w", rel, err)
		}
		line := fmt.Sprintf("rendered %s\n", rel)
		if dst != rel {
			line = fmt.Sprintf("rendered %s -> %s\n", rel, dst)
		}
		log.WriteString(line)
		if sctx.Output != nil {
			_, _ = fmt.Fprint(sctx.Output, line)
		}
	}
	return &Output{Combined: log.Bytes()}, nil
}

// renderTarget returns the file a template source renders to. It reports
// false for files without the template suffix.
func renderTarget(rel string) (string, bool) {
	if !strings.HasSuffix(rel, templateSuffix) || path.Base(rel) == templateSuffix {
		return "", false
	}
	return strings.TrimSuffix(rel, templateSuffix), true
}

// selectFiles returns the regular files matching any include pattern and
// no exclude pattern, sorted.
func selectFiles(fsys fs.FS, filter api.FileFilter) ([]string, error) {
	include := filter.Include
	if len(include) == 0 {
		include = []string{api.DefaultFileInclude}
	}
	for _, p := range filter.Exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}

	seen := make(map[string]bool)
	var files []string
	for _, pattern := range include {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("include pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if seen[m] || excluded(m, filter.Exclude) {
				continue
			}
			seen[m] = true
			files = append(files, m)
		}
	}
	slices.Sort(files)
	return files, nil
}

func excluded(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// render executes the file src as a template and writes the result to dst,
// both relative to workDir. dst is left untouched when parsing or execution
// fails.
func render(workDir, src, dst string, data map[string]any) error {
	srcPath := filepath.Join(workDir, filepath.FromSlash(src))
	info, err := os.Stat(srcPath)
	if err != nil {
		return err
	}
	content, err := os.ReadFile(srcPath)
	if err != nil {
		return err
	}

	tmpl, err := template.New(path.Base(src)).Funcs(sprig.FuncMap()).Parse(string(content))
	if err != nil {
		return fmt.Errorf("parsing template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("executing template: %w", err)
	}

	return os.WriteFile(filepath.Join(workDir, filepath.FromSlash(dst)), buf.Bytes(), info.Mode().Perm())
}
