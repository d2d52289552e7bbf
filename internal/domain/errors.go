package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation is matched by every ValidationError
	ErrValidation = errors.New("invalid match result")

	// ErrConfiguration is matched by every ConfigurationError
	ErrConfiguration = errors.New("invalid strategy configuration")

	// ErrMatching is matched by every MatchingError
	ErrMatching = errors.New("matching failed")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrReportNotFound is returned when no report is cached under a fingerprint
	ErrReportNotFound = errors.New("report not found")

	// ErrDatasetNotFound is returned when a dataset file or object does not exist
	ErrDatasetNotFound = errors.New("dataset not found")

	// ErrStorageFailure is returned when the dataset store cannot be reached
	ErrStorageFailure = errors.New("dataset storage request failed")

	// ErrUnresolvedConflicts is returned when exporting while a source still maps to several CDEs
	ErrUnresolvedConflicts = errors.New("unresolved mapping conflicts")
)

// ValidationError reports a MatchResult field that violates its invariant.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid match result: %s %v: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ConfigurationError reports a bad strategy parameter or an unknown strategy kind.
// Index is the position of the entry inside an ensemble, or -1 outside one.
type ConfigurationError struct {
	Index  int
	Kind   string
	Key    string
	Value  any
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("invalid strategy configuration")
	if e.Index >= 0 {
		fmt.Fprintf(&b, " (entry %d", e.Index)
		if e.Kind != "" {
			fmt.Fprintf(&b, ", %s", e.Kind)
		}
		b.WriteString(")")
	} else if e.Kind != "" {
		fmt.Fprintf(&b, " (%s)", e.Kind)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, ": %s=%v", e.Key, e.Value)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

func (e *ConfigurationError) Unwrap() error { return e.Err }

// NewConfigurationError builds a ConfigurationError for a single strategy outside an ensemble.
func NewConfigurationError(kind, key string, value any, reason string) *ConfigurationError {
	return &ConfigurationError{Index: -1, Kind: kind, Key: key, Value: value, Reason: reason}
}

// MatchingError reports a runtime failure while one strategy compared a source
// against its targets. Target is empty when the failure is not tied to one target.
type MatchingError struct {
	Strategy MatchType
	Index    int
	Source   string
	Target   string
	Err      error
}

func (e *MatchingError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s matching failed", e.Strategy)
	if e.Source != "" {
		fmt.Fprintf(&b, " for source %q", e.Source)
	}
	if e.Target != "" {
		fmt.Fprintf(&b, " against target %q", e.Target)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *MatchingError) Is(target error) bool { return target == ErrMatching }

func (e *MatchingError) Unwrap() error { return e.Err }

// ConflictError lists the sources that still map to more than one CDE.
type ConflictError struct {
	Sources []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("unresolved mapping conflicts: %s", strings.Join(e.Sources, ", "))
}

func (e *ConflictError) Is(target error) bool { return target == ErrUnresolvedConflicts }
