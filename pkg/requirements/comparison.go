package requirements

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/systemstart/piper/pkg/api"
)

// Comparison decides whether an attribute value satisfies a requirement.
// Implementations must be pure.
type Comparison interface {
	Compare(actual string) bool
	String() string
}

// Factory builds a Comparison from the expected value found in configuration.
type Factory func(expected string) (Comparison, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{
		api.CompareEquals:    newEquals,
		api.CompareNotEquals: newNotEquals,
		api.CompareMatches:   newMatches,
	}
)

// Register adds a comparison kind. Registering an existing kind replaces it.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// Kinds returns the registered comparison kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// NewComparison creates a Comparison for the given kind.
func NewComparison(kind, expected string) (Comparison, error) {
	mu.RLock()
	f, ok := factories[kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown comparison %q (known: %s)", kind, strings.Join(Kinds(), ", "))
	}
	return f(expected)
}

type equals struct{ expected string }

func newEquals(expected string) (Comparison, error) { return equals{expected}, nil }

func (c equals) Compare(actual string) bool { return actual == c.expected }
func (c equals) String() string { return fmt.Sprintf("== %q", c.expected) }

type notEquals struct{ expected string }

func newNotEquals(expected string) (Comparison, error) { return notEquals{expected}, nil }

func (c notEquals) Compare(actual string) bool { return actual != c.expected }
func (c notEquals) String() string { return fmt.Sprintf("!= %q", c.expected) }

// matches compares against a doublestar glob, e.g. "x86*" or "linux-{amd64,arm64}".
type matches struct{ pattern string }

func newMatches(pattern string) (Comparison, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}
	return matches{pattern}, nil
}

func (c matches) Compare(actual string) bool {
	ok, err := doublestar.Match(c.pattern, actual)
	return err == nil && ok
}

func (c matches) String() string { return fmt.Sprintf("matches %q", c.pattern) }
