// Package requirements evaluates named predicates against attribute maps.
package requirements

import (
	"fmt"
	"strings"

	"github.com/systemstart/piper/pkg/api"
)

// Requirement is a single named predicate on one attribute.
type Requirement struct {
	Name       string
	Key        string
	Reason     string
	Comparison Comparison
}

// Failure describes a requirement that did not hold.
type Failure struct {
	Name   string `json:"name"`
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// Evaluate checks the requirement against attrs. A missing key never
// satisfies a requirement. On failure the configured reason is returned
// verbatim.
func (r Requirement) Evaluate(attrs map[string]string) (bool, string) {
	actual, ok := attrs[r.Key]
	if !ok || !r.Comparison.Compare(actual) {
		return false, r.Reason
	}
	return true, ""
}

// Set is an ordered set of requirements.
type Set []Requirement

// Failures evaluates every requirement and collects all that failed, in
// declaration order.
func (s Set) Failures(attrs map[string]string) []Failure {
	var failed []Failure
	for _, r := range s {
		if ok, reason := r.Evaluate(attrs); !ok {
			failed = append(failed, Failure{Name: r.Name, Key: r.Key, Reason: reason})
		}
	}
	return failed
}

// Satisfied reports whether every requirement holds, stopping at the first
// one that does not.
func (s Set) Satisfied(attrs map[string]string) bool {
	for _, r := range s {
		if ok, _ := r.Evaluate(attrs); !ok {
			return false
		}
	}
	return true
}

// Keys returns the attribute keys referenced by the set, deduplicated.
func (s Set) Keys() []string {
	seen := make(map[string]bool, len(s))
	var keys []string
	for _, r := range s {
		if !seen[r.Key] {
			seen[r.Key] = true
			keys = append(keys, r.Key)
		}
	}
	return keys
}

// FromConfig builds a Set from its configuration.
func FromConfig(reqs api.Requirements) (Set, error) {
	set := make(Set, 0, len(reqs))
	for _, rc := range reqs {
		cmps := rc.Comparisons()
		if len(cmps) != 1 {
			return nil, fmt.Errorf("%w: requirement %q: exactly one of %s is required, got %d",
				api.ErrConfiguration, rc.Name, strings.Join(Kinds(), ", "), len(cmps))
		}
		for kind, expected := range cmps {
			cmp, err := NewComparison(kind, expected)
			if err != nil {
				return nil, fmt.Errorf("%w: requirement %q: %w", api.ErrConfiguration, rc.Name, err)
			}
			set = append(set, Requirement{
				Name:       rc.Name,
				Key:        rc.Key,
				Reason:     rc.Reason,
				Comparison: cmp,
			})
		}
	}
	return set, nil
}
