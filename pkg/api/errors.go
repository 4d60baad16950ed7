package api

import (
	"errors"
	"fmt"
)

// ErrConfiguration marks errors caused by the configuration itself: unknown
// names, empty pipelines, malformed requirements. They are never retried.
var ErrConfiguration = errors.New("configuration error")

// NotFoundError reports a name missing from one of the registries.
type NotFoundError struct {
	Kind string // "environment", "step" or "pipeline"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

func (e *NotFoundError) Unwrap() error { return ErrConfiguration }
