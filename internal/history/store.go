// Package history persists launch records so a run can be looked up again
// after its output has scrolled away. Records are written to a JSON file
// directory, an SQLite index, or both, behind an optional in-memory LRU.
package history

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Load when no record has the requested ID.
var ErrNotFound = errors.New("run not found")

// Store persists and retrieves launch records.
type Store interface {
	Save(rec *Record) error
	Load(runID string) (*Record, error)
}

// Record is one completed launch.
type Record struct {
	ID         string    `json:"id"`
	JavaPath   string    `json:"java_path"`
	Args       []string  `json:"args"`
	Dir        string    `json:"dir,omitempty"`
	ExitStatus int       `json:"exit_status"`
	Stdout     string    `json:"stdout"`
	Stderr     string    `json:"stderr"`
	Truncated  bool      `json:"truncated,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
}

// Duration returns the recorded wall time.
func (r *Record) Duration() time.Duration {
	return time.Duration(r.DurationMS) * time.Millisecond
}

// Summary is a one-line description used in listings.
func (r *Record) Summary() string {
	return fmt.Sprintf("%s  %s  exit=%d  %s",
		r.ID, r.StartedAt.Local().Format(time.DateTime), r.ExitStatus, r.Duration())
}

// Tee saves to every store and loads from the first one that has the record.
type Tee []Store

// Save writes rec to all stores and joins any errors.
func (t Tee) Save(rec *Record) error {
	var errs []error
	for _, s := range t {
		if err := s.Save(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Load returns the record from the first store that has it. If none does,
// a store failure other than ErrNotFound is preferred over ErrNotFound.
func (t Tee) Load(runID string) (*Record, error) {
	var failure error
	for _, s := range t {
		rec, err := s.Load(runID)
		if err == nil {
			return rec, nil
		}
		if failure == nil && !errors.Is(err, ErrNotFound) {
			failure = err
		}
	}
	if failure != nil {
		return nil, failure
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
}
