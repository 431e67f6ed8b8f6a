// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrRunInProgress is returned when a pipeline run is requested while another one is still running.
var ErrRunInProgress = errors.New("a sync run is already in progress")

// ErrNoSnapshot is returned by readers before the first snapshot has been published.
var ErrNoSnapshot = errors.New("no snapshot has been published yet")

// ErrInvalidRepoFormat is returned when a repository string in the config is not in 'owner/name' format.
type ErrInvalidRepoFormat struct {
	Repo string
}

func (e *ErrInvalidRepoFormat) Error() string {
	return fmt.Sprintf("invalid repository format: %q, expected 'owner/name'", e.Repo)
}

// UpstreamFetchError wraps any failure talking to the upstream API: network errors,
// rate limiting and non-2xx responses. It aborts the current run.
type UpstreamFetchError struct {
	Op  string
	Err error
}

func (e *UpstreamFetchError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error { return e.Err }

// DataShapeError describes an upstream record that is missing required fields.
// The record is dropped and processing continues.
type DataShapeError struct {
	Entity string
	Key    string
	Reason string
}

func (e *DataShapeError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("malformed %s: %s", e.Entity, e.Reason)
	}
	return fmt.Sprintf("malformed %s %q: %s", e.Entity, e.Key, e.Reason)
}

// PersistenceError wraps a failed collection replace, update or read.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Upstream wraps err as an UpstreamFetchError unless it is nil or already one.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UpstreamFetchError
	if errors.As(err, &ue) {
		return err
	}
	return &UpstreamFetchError{Op: op, Err: err}
}

// Persistence wraps err as a PersistenceError unless it is nil.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
