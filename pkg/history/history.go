// Package history keeps a log of finished runs.
package history

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/systemstart/piper/pkg/processing"
)

// DefaultFile is the history location relative to the project directory.
const DefaultFile = ".piper/runs.ndjson"

// Record is the persisted summary of one run.
type Record struct {
	ID          string        `json:"id"`
	Pipeline    string        `json:"pipeline"`
	Environment string        `json:"environment"`
	Version     string        `json:"version,omitempty"`
	Outcome     string        `json:"outcome"`
	Category    string        `json:"category,omitempty"`
	FailedAt    int           `json:"failed_at,omitempty"`
	FailedStep  string        `json:"failed_step,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	Steps       []StepRecord  `json:"steps"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration_ns"`
}

// StepRecord is the persisted summary of one step.
type StepRecord struct {
	Name     string `json:"name"`
	Outcome  string `json:"outcome"`
	ExitCode int    `json:"exit_code"`
}

// FromResult converts a run result into a record. Step output is not kept.
func FromResult(r *processing.RunResult) Record {
	rec := Record{
		ID:          r.ID,
		Pipeline:    r.Pipeline,
		Environment: r.Environment,
		Version:     r.Version,
		Outcome:     string(r.Outcome),
		Category:    string(r.Category),
		FailedAt:    r.FailedAt,
		FailedStep:  r.FailedStep,
		Reason:      r.Reason,
		Steps:       make([]StepRecord, 0, len(r.Steps)),
		StartedAt:   r.StartedAt.UTC(),
		Duration:    r.Duration(),
	}
	for _, s := range r.Steps {
		rec.Steps = append(rec.Steps, StepRecord{Name: s.Step, Outcome: string(s.Outcome), ExitCode: s.ExitCode})
	}
	return rec
}

// Store persists run records.
type Store interface {
	Save(ctx context.Context, rec Record) error
	List(ctx context.Context) ([]Record, error)
}

// FileStore appends records as newline-delimited JSON to a file.
type FileStore struct {
	Path string

	mu sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Save(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.Path), 0750); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}
	f, err := os.OpenFile(s.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := json.NewEncoder(f).Encode(rec); err != nil {
		return fmt.Errorf("writing history: %w", err)
	}
	return f.Close()
}

// List returns all records, oldest first. A missing file yields no records.
func (s *FileStore) List(_ context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	defer func() { _ = f.Close() }()

	return decode(f)
}

func decode(r io.Reader) ([]Record, error) {
	var recs []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("history line %d: %w", line, err)
		}
		recs = append(recs, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	return recs, nil
}

// Last returns at most n of the newest records, oldest first.
func Last(recs []Record, n int) []Record {
	if n <= 0 || n >= len(recs) {
		return recs
	}
	return recs[len(recs)-n:]
}
