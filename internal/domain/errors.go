// Package domain contains the pure, dependency-free entity graph and
// prediction models for the preload core: executables, file-backed maps,
// pairwise Markov chains, and the variable-order context tree.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions the core must recognize by identity.
var (
	// ErrExeExists indicates register_exe was called with a path that is
	// already present in the exe table.
	ErrExeExists = errors.New("exe already registered")

	// ErrExeNotFound indicates a lookup failed to find an exe by path.
	ErrExeNotFound = errors.New("exe not found")

	// ErrMapExists indicates a map with the same (path, offset, length)
	// triple is already present in the store.
	ErrMapExists = errors.New("map already registered")

	// ErrSelfMarkov indicates an attempt to create a markov edge between
	// an exe and itself.
	ErrSelfMarkov = errors.New("markov edge requires two distinct exes")

	// ErrMarkovExists indicates a markov edge already exists for the pair.
	ErrMarkovExists = errors.New("markov edge already exists for pair")
)

// InvariantError reports a violated model invariant: a programming error,
// not a recoverable condition. Per the error taxonomy, callers should log
// it with source context and treat it as fatal.
type InvariantError struct {
	// Where names the invariant that was violated (e.g. "correlation range",
	// "markov weight balance").
	Where string

	// Detail carries the offending values.
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("model invariant violated: %s: %s", e.Where, e.Detail)
}

// NewInvariantError builds an InvariantError from a fmt-style detail.
func NewInvariantError(where, format string, args ...any) *InvariantError {
	return &InvariantError{Where: where, Detail: fmt.Sprintf(format, args...)}
}

// StateFileError wraps a textual-format parsing failure with the line
// number at which it occurred, per the StateFileCorrupt taxonomy entry.
type StateFileError struct {
	Line int
	Err  error
}

func (e *StateFileError) Error() string {
	return fmt.Sprintf("state file error at line %d: %v", e.Line, e.Err)
}

func (e *StateFileError) Unwrap() error { return e.Err }

// NewStateFileError builds a StateFileError for the given line.
func NewStateFileError(line int, err error) *StateFileError {
	return &StateFileError{Line: line, Err: err}
}

// VersionSkewError reports a state file whose major version does not
// match the reader's expectation.
type VersionSkewError struct {
	Found, Want int
}

func (e *VersionSkewError) Error() string {
	return fmt.Sprintf("state file version skew: found major=%d, want major=%d", e.Found, e.Want)
}
