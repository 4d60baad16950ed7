package environments

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/systemstart/piper/pkg/api"
)

// Workspace is the working context steps of a run execute in.
type Workspace interface {
	// Setup prepares the workspace and returns the directory steps run in.
	Setup(ctx context.Context) (string, error)
	Teardown(ctx context.Context) error
}

// Scratch is implemented by workspaces whose directory is a throwaway copy
// that steps may modify freely.
type Scratch interface {
	Scratch() bool
}

// IsScratch reports whether ws is a throwaway copy of the project.
func IsScratch(ws Workspace) bool {
	s, ok := ws.(Scratch)
	return ok && s.Scratch()
}

// WorkspaceFactory creates the workspace of an environment. baseDir is the
// directory of the configuration file.
type WorkspaceFactory func(env *Environment, baseDir string) (Workspace, error)

var (
	mu        sync.RWMutex
	factories = map[string]WorkspaceFactory{
		api.EnvTypeLocal:   newLocalWorkspace,
		api.EnvTypeTempDir: newTempDirWorkspace,
	}
)

// RegisterKind adds an environment kind. Registering an existing kind
// replaces it.
func RegisterKind(kind string, f WorkspaceFactory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// NewWorkspace creates the workspace for env according to its kind.
func NewWorkspace(env *Environment, baseDir string) (Workspace, error) {
	mu.RLock()
	f, ok := factories[env.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: env %q: unknown type %q", api.ErrConfiguration, env.Name, env.Kind)
	}
	return f(env, baseDir)
}

type localWorkspace struct {
	dir string
}

func newLocalWorkspace(env *Environment, baseDir string) (Workspace, error) {
	dir := env.cfg.Dir
	if dir == "" {
		dir = "."
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(baseDir, dir)
	}
	return &localWorkspace{dir: dir}, nil
}

func (w *localWorkspace) Setup(_ context.Context) (string, error) {
	st, err := os.Stat(w.dir)
	if err != nil {
		return "", fmt.Errorf("checking working directory: %w", err)
	}
	if !st.IsDir() {
		return "", fmt.Errorf("working directory %s is not a directory", w.dir)
	}
	return w.dir, nil
}

func (w *localWorkspace) Teardown(_ context.Context) error { return nil }

// tempDirWorkspace copies the project into a fresh temporary directory and
// runs the steps there.
type tempDirWorkspace struct {
	src            string
	deleteWhenDone bool

	root string
}

func newTempDirWorkspace(env *Environment, baseDir string) (Workspace, error) {
	del := env.cfg.DeleteWhenDone == nil || *env.cfg.DeleteWhenDone
	return &tempDirWorkspace{src: baseDir, deleteWhenDone: del}, nil
}

func (w *tempDirWorkspace) Setup(_ context.Context) (string, error) {
	root, err := os.MkdirTemp("", "piper-")
	if err != nil {
		return "", fmt.Errorf("creating temporary directory: %w", err)
	}
	w.root = root

	dst := filepath.Join(root, filepath.Base(w.src))
	if err := copyTree(w.src, dst, root); err != nil {
		_ = os.RemoveAll(root)
		w.root = ""
		return "", fmt.Errorf("copying project: %w", err)
	}
	return dst, nil
}

func (w *tempDirWorkspace) Teardown(_ context.Context) error {
	if w.root == "" || !w.deleteWhenDone {
		return nil
	}
	if err := os.RemoveAll(w.root); err != nil {
		return fmt.Errorf("removing temporary directory: %w", err)
	}
	return nil
}

// Dir returns the temporary root created by Setup.
func (w *tempDirWorkspace) Dir() string { return w.root }

func (w *tempDirWorkspace) Scratch() bool { return true }

// copyTree copies src to dst. The skip directory is left out, so a
// destination nested inside src is never copied into itself.
func copyTree(src, dst, skip string) error {
	skip = filepath.Clean(skip)
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk error at %s: %w", path, err)
		}
		if d.IsDir() && filepath.Clean(path) == skip {
			return fs.SkipDir
		}
		rel, relErr := filepath.Rel(src, path)
		if relErr != nil {
			return fmt.Errorf("computing relative path for %s: %w", path, relErr)
		}
		return copyEntry(dst, rel, path, d)
	})
	if err != nil {
		return fmt.Errorf("copying tree: %w", err)
	}
	return nil
}

func copyEntry(dst, rel, srcPath string, d fs.DirEntry) error {
	target := filepath.Join(dst, rel)

	if d.IsDir() {
		if err := os.MkdirAll(target, 0o750); err != nil {
			return fmt.Errorf("creating directory %s: %w", target, err)
		}
		return nil
	}

	info, err := d.Info()
	if err != nil {
		return fmt.Errorf("stat %s: %w", srcPath, err)
	}

	if info.Mode()&fs.ModeSymlink != 0 {
		link, err := os.Readlink(srcPath)
		if err != nil {
			return fmt.Errorf("reading link %s: %w", srcPath, err)
		}
		if err := os.Symlink(link, target); err != nil {
			return fmt.Errorf("creating link %s: %w", target, err)
		}
		return nil
	}

	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", srcPath, err)
	}

	if err := os.WriteFile(target, data, info.Mode().Perm()); err != nil {
		return fmt.Errorf("writing %s: %w", target, err)
	}
	return nil
}
