package processing

import (
	"fmt"
	"strings"
	"time"

	"github.com/systemstart/piper/pkg/requirements"
)

// Outcome is the result of a single step.
type Outcome string

const (
	Succeeded Outcome = "succeeded"
	Failed    Outcome = "failed"
	Skipped   Outcome = "skipped-due-to-requirement"
)

// RunOutcome is the final state of a run.
type RunOutcome string

const (
	RunSucceeded             RunOutcome = "succeeded"
	RunFailed                RunOutcome = "failed"
	RunEnvironmentIneligible RunOutcome = "environment-ineligible"
)

// Category tells why a step or run stopped.
type Category string

const (
	CategoryNone           Category = ""
	CategoryExecution      Category = "execution"
	CategoryInfrastructure Category = "infrastructure"
	CategoryRequirement    Category = "requirement"
	CategoryCancelled      Category = "cancelled"
)

// StepResult records one execution of a step.
type StepResult struct {
	Step      string
	Index     int // 1-based position in the pipeline
	Kind      string
	Outcome   Outcome
	Category  Category
	ExitCode  int
	Output    []byte
	Reason    string
	Failures  []requirements.Failure
	StartedAt time.Time
	Duration  time.Duration
}

// RunResult is everything one run produced. It belongs to the caller that
// requested the run.
type RunResult struct {
	ID          string
	Pipeline    string
	Environment string
	Version     string
	Attributes  map[string]string

	Outcome             RunOutcome
	Steps               []StepResult
	FailedAt            int // 1-based index of the stopping step, 0 if none
	FailedStep          string
	Category            Category
	Reason              string
	EnvironmentFailures []requirements.Failure
	TeardownError       string

	StartedAt time.Time
	EndedAt   time.Time
}

// Succeeded reports whether the run finished successfully.
func (r *RunResult) Succeeded() bool { return r.Outcome == RunSucceeded }

// Duration is the wall time of the run.
func (r *RunResult) Duration() time.Duration { return r.EndedAt.Sub(r.StartedAt) }

// Summary describes the final outcome in one line.
func (r *RunResult) Summary() string {
	switch r.Outcome {
	case RunSucceeded:
		return fmt.Sprintf("%s succeeded (%d steps)", r.Pipeline, len(r.Steps))
	case RunEnvironmentIneligible:
		return fmt.Sprintf("environment %s is ineligible: %s", r.Environment, r.Reason)
	case RunFailed:
		if r.FailedAt == 0 {
			return fmt.Sprintf("%s failed (%s): %s", r.Pipeline, r.Category, r.Reason)
		}
		return fmt.Sprintf("%s failed at step %d (%s, %s): %s",
			r.Pipeline, r.FailedAt, r.FailedStep, r.Category, r.Reason)
	default:
		return fmt.Sprintf("%s: %s", r.Pipeline, r.Outcome)
	}
}

func joinReasons(failures []requirements.Failure) string {
	reasons := make([]string, 0, len(failures))
	for _, f := range failures {
		reasons = append(reasons, f.Reason)
	}
	return strings.Join(reasons, "; ")
}
