package requirements

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/systemstart/piper/pkg/api"
)

const virtualizedReason = "The base environment cannot run if hardware is virtualized"

func strPtr(s string) *string { return &s }

func isNotVirtual(t *testing.T) Requirement {
	t.Helper()
	c, err := NewComparison(api.CompareEquals, "physical")
	if err != nil {
		t.Fatal(err)
	}
	return Requirement{Name: "is_not_virtual", Key: "virtual", Reason: virtualizedReason, Comparison: c}
}

func TestRequirement_Evaluate(t *testing.T) {
	req := isNotVirtual(t)

	tests := []struct {
		name       string
		attrs      map[string]string
		wantOK     bool
		wantReason string
	}{
		{"physical host", map[string]string{"virtual": "physical"}, true, ""},
		{"virtual host", map[string]string{"virtual": "virtual"}, false, virtualizedReason},
		{"missing key", map[string]string{"kernel": "linux"}, false, virtualizedReason},
		{"nil attributes", nil, false, virtualizedReason},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := req.Evaluate(tt.attrs)
			if ok != tt.wantOK {
				t.Errorf("Evaluate() ok = %v, want %v", ok, tt.wantOK)
			}
			if reason != tt.wantReason {
				t.Errorf("Evaluate() reason = %q, want %q", reason, tt.wantReason)
			}
		})
	}
}

func TestRequirement_EvaluateIsDeterministic(t *testing.T) {
	req := isNotVirtual(t)
	attrs := map[string]string{"virtual": "kvm"}

	firstOK, firstReason := req.Evaluate(attrs)
	for i := 0; i < 10; i++ {
		ok, reason := req.Evaluate(attrs)
		if ok != firstOK || reason != firstReason {
			t.Fatalf("evaluation %d = (%v, %q), want (%v, %q)", i, ok, reason, firstOK, firstReason)
		}
	}
	if attrs["virtual"] != "kvm" || len(attrs) != 1 {
		t.Errorf("attributes were mutated: %v", attrs)
	}
}

func TestComparisons(t *testing.T) {
	tests := []struct {
		kind     string
		expected string
		actual   string
		want     bool
	}{
		{api.CompareEquals, "physical", "physical", true},
		{api.CompareEquals, "physical", "Physical", false},
		{api.CompareNotEquals, "windows", "linux", true},
		{api.CompareNotEquals, "linux", "linux", false},
		{api.CompareMatches, "x86*", "x86_64", true},
		{api.CompareMatches, "{amd64,arm64}", "arm64", true},
		{api.CompareMatches, "{amd64,arm64}", "386", false},
	}

	for _, tt := range tests {
		t.Run(tt.kind+"/"+tt.expected+"/"+tt.actual, func(t *testing.T) {
			c, err := NewComparison(tt.kind, tt.expected)
			if err != nil {
				t.Fatalf("NewComparison() error = %v", err)
			}
			if got := c.Compare(tt.actual); got != tt.want {
				t.Errorf("%s.Compare(%q) = %v, want %v", c, tt.actual, got, tt.want)
			}
		})
	}
}

func TestKinds(t *testing.T) {
	kinds := Kinds()
	if !slices.IsSorted(kinds) {
		t.Errorf("Kinds() not sorted: %v", kinds)
	}
	for _, k := range []string{api.CompareEquals, api.CompareMatches, api.CompareNotEquals} {
		if !slices.Contains(kinds, k) {
			t.Errorf("Kinds() = %v, missing %q", kinds, k)
		}
	}
}

func TestNewComparison_Errors(t *testing.T) {
	_, err := NewComparison("between", "1")
	if err == nil {
		t.Fatal("expected error for unknown comparison kind")
	}
	if want := strings.Join(Kinds(), ", "); !strings.Contains(err.Error(), want) {
		t.Errorf("error %q does not list the known kinds %q", err, want)
	}
	if _, err := NewComparison(api.CompareMatches, "[unclosed"); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

type prefixComparison struct{ prefix string }

func (c prefixComparison) Compare(actual string) bool {
	return len(actual) >= len(c.prefix) && actual[:len(c.prefix)] == c.prefix
}
func (c prefixComparison) String() string { return "prefix " + c.prefix }

func TestRegister(t *testing.T) {
	Register("test_prefix", func(expected string) (Comparison, error) {
		return prefixComparison{expected}, nil
	})

	c, err := NewComparison("test_prefix", "deb")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := Requirement{Name: "debian", Key: "os", Reason: "debian only", Comparison: c}
	if ok, _ := req.Evaluate(map[string]string{"os": "debian-12"}); !ok {
		t.Error("expected registered comparison to be used")
	}
}

func TestSet_FailuresCollectsAll(t *testing.T) {
	set, err := FromConfig(api.Requirements{
		{Name: "is_not_virtual", Key: "virtual", Reason: virtualizedReason, Equals: strPtr("physical")},
		{Name: "is_linux", Key: "kernel", Reason: "Linux is required", Equals: strPtr("linux")},
		{Name: "is_64bit", Key: "architecture", Reason: "64 bit only", Matches: strPtr("*64")},
	})
	if err != nil {
		t.Fatalf("FromConfig() error = %v", err)
	}

	attrs := map[string]string{"virtual": "kvm", "kernel": "darwin", "architecture": "amd64"}

	want := []Failure{
		{Name: "is_not_virtual", Key: "virtual", Reason: virtualizedReason},
		{Name: "is_linux", Key: "kernel", Reason: "Linux is required"},
	}
	if diff := cmp.Diff(want, set.Failures(attrs)); diff != "" {
		t.Errorf("Failures() mismatch (-want +got):\n%s", diff)
	}
	if set.Satisfied(attrs) {
		t.Error("Satisfied() = true, want false")
	}

	attrs["virtual"] = "physical"
	attrs["kernel"] = "linux"
	if failed := set.Failures(attrs); len(failed) != 0 {
		t.Errorf("expected no failures, got %v", failed)
	}
	if !set.Satisfied(attrs) {
		t.Error("Satisfied() = false, want true")
	}
}

func TestSet_EmptyIsSatisfied(t *testing.T) {
	var set Set
	if !set.Satisfied(nil) {
		t.Error("empty set should be satisfied")
	}
	if failed := set.Failures(nil); failed != nil {
		t.Errorf("expected nil failures, got %v", failed)
	}
}

func TestSet_Keys(t *testing.T) {
	set, err := FromConfig(api.Requirements{
		{Name: "a", Key: "virtual", Reason: "r", Equals: strPtr("physical")},
		{Name: "b", Key: "kernel", Reason: "r", Equals: strPtr("linux")},
		{Name: "c", Key: "virtual", Reason: "r", NotEquals: strPtr("docker")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"virtual", "kernel"}, set.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
}

func TestFromConfig_Errors(t *testing.T) {
	kinds := strings.Join(Kinds(), ", ")
	tests := []struct {
		name    string
		reqs    api.Requirements
		wantMsg string
	}{
		{"no comparison", api.Requirements{{Name: "a", Key: "k", Reason: "r"}}, "exactly one of " + kinds + " is required, got 0"},
		{"two comparisons", api.Requirements{{Name: "a", Key: "k", Reason: "r", Equals: strPtr("x"), Matches: strPtr("y")}}, "got 2"},
		{"bad pattern", api.Requirements{{Name: "a", Key: "k", Reason: "r", Matches: strPtr("[")}}, "invalid pattern"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromConfig(tt.reqs)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, api.ErrConfiguration) {
				t.Errorf("expected configuration error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err, tt.wantMsg)
			}
		})
	}
}
