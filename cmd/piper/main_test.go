package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/systemstart/piper/pkg/api"
	"github.com/systemstart/piper/pkg/processing"
	"github.com/systemstart/piper/pkg/version"
)

const listConfig = `
envs:
  local: {}
  clean:
    type: tempdir
steps:
  lint:
    command: go vet ./...
  stamp:
    type: generate
    generate:
      output: VERSION
      template: "{{ .version }}"
  spare:
    command: "true"
pipelines:
  build: [lint, stamp]
  check: [lint]
  release: [stamp]
`

func TestExitCode(t *testing.T) {
	tests := []struct {
		name   string
		result processing.RunResult
		want   int
	}{
		{"succeeded", processing.RunResult{Outcome: processing.RunSucceeded}, 0},
		{"execution", processing.RunResult{Outcome: processing.RunFailed, Category: processing.CategoryExecution}, 1},
		{"ineligible", processing.RunResult{Outcome: processing.RunEnvironmentIneligible, Category: processing.CategoryRequirement}, 2},
		{"skipped", processing.RunResult{Outcome: processing.RunFailed, Category: processing.CategoryRequirement}, 3},
		{"infrastructure", processing.RunResult{Outcome: processing.RunFailed, Category: processing.CategoryInfrastructure}, 4},
		{"cancelled", processing.RunResult{Outcome: processing.RunFailed, Category: processing.CategoryCancelled}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(&tt.result); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPositionalArgs(t *testing.T) {
	tests := []struct {
		args         []string
		wantPipeline string
		wantEnv      string
	}{
		{nil, "build", "local"},
		{[]string{"test"}, "test", "local"},
		{[]string{"test", "ci"}, "test", "ci"},
	}
	for _, tt := range tests {
		p, e := positionalArgs(tt.args)
		if p != tt.wantPipeline || e != tt.wantEnv {
			t.Errorf("positionalArgs(%v) = %s, %s", tt.args, p, e)
		}
	}
}

func TestHistoryPath(t *testing.T) {
	old := historyFile
	defer func() { historyFile = old }()

	historyFile = ".piper/runs.ndjson"
	if got := historyPath("/project"); got != "/project/.piper/runs.ndjson" {
		t.Errorf("historyPath() = %s", got)
	}
	historyFile = "/var/log/piper.ndjson"
	if got := historyPath("/project"); got != "/var/log/piper.ndjson" {
		t.Errorf("historyPath() = %s", got)
	}
}

func TestPrintList(t *testing.T) {
	cfg, err := api.ParseConfig([]byte(listConfig))
	if err != nil {
		t.Fatal(err)
	}
	e, err := processing.FromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := printList(&buf, e); err != nil {
		t.Fatalf("printList() error = %v", err)
	}

	want := `environments: clean, local
steps:
  lint [command]
  spare [command] (unused)
  stamp [generate]
pipelines:
  build: lint -> stamp
  check: lint
  release: stamp
`
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("printList() mismatch (-want +got):\n%s", diff)
	}
}

func TestVersionOption(t *testing.T) {
	tests := []struct {
		name    string
		version api.VersionConfig
		want    string
	}{
		{"static", api.VersionConfig{Type: api.VersionTypeStatic, Value: "1.2.3"}, "1.2.3"},
		{"invalid type", api.VersionConfig{Type: "bogus"}, version.Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			cfg, err := api.ParseConfig([]byte(listConfig))
			if err != nil {
				t.Fatal(err)
			}
			cfg.Dir = dir
			cfg.Version = tt.version

			e, err := processing.FromConfig(cfg, versionOption(cfg))
			if err != nil {
				t.Fatal(err)
			}
			result, err := e.Run(context.Background(), "release", "local")
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if result.Version != tt.want {
				t.Errorf("Version = %q, want %q", result.Version, tt.want)
			}
			got, err := os.ReadFile(filepath.Join(dir, "VERSION"))
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tt.want {
				t.Errorf("VERSION = %q, want %q", got, tt.want)
			}
		})
	}
}
