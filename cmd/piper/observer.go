package main

import (
	"log/slog"

	"github.com/systemstart/piper/pkg/processing"
)

// logObserver reports run progress through slog.
type logObserver struct{}

func (logObserver) RunStarted(r *processing.RunResult) {
	slog.Info("run started", "pipeline", r.Pipeline, "env", r.Environment, "version", r.Version, "run", r.ID)
}

func (logObserver) StepStarted(r *processing.RunResult, index int, step string) {
	slog.Info("step started", "pipeline", r.Pipeline, "index", index, "step", step)
}

func (logObserver) StepFinished(_ *processing.RunResult, sr processing.StepResult) {
	attrs := []any{"step", sr.Step, "outcome", sr.Outcome, "duration", sr.Duration}
	switch sr.Outcome {
	case processing.Succeeded:
		slog.Info("step finished", attrs...)
	default:
		attrs = append(attrs, "category", sr.Category, "reason", sr.Reason)
		slog.Warn("step finished", attrs...)
	}
}

func (logObserver) RunFinished(r *processing.RunResult) {
	if r.Succeeded() {
		slog.Info("run finished", "outcome", r.Outcome, "duration", r.Duration())
		return
	}
	slog.Error("run finished", "outcome", r.Outcome, "category", r.Category, "reason", r.Reason)
}
