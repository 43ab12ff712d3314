package domain

import (
	"errors"
	"fmt"
)

// Sentinel causes for configuration defects. They are always wrapped in a
// ConfigurationError before leaving the engine, so callers can match either
// the broad category (errors.As) or the specific cause (errors.Is).
var (
	ErrUnsupportedOperator = errors.New("unsupported filter operator")
	ErrInvalidFilterRange  = errors.New("filter range lower bound exceeds upper bound")
	ErrMissingRelationship = errors.New("no relationship path between entities")
	ErrUnknownDataSource   = errors.New("unknown data source reference")
)

// ConfigurationError marks a defect in the report definition itself. It is
// detected before any store access and is never worth retrying.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return "invalid report configuration: " + e.Err.Error()
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// NewConfigurationError wraps err as a configuration defect. A nil err
// passes through as nil.
func NewConfigurationError(err error) error {
	if err == nil {
		return nil
	}
	var existing *ConfigurationError
	if errors.As(err, &existing) {
		return err
	}
	return &ConfigurationError{Err: err}
}

// Configurationf builds a configuration error from a format string.
func Configurationf(format string, args ...any) error {
	return &ConfigurationError{Err: fmt.Errorf(format, args...)}
}

// FilterValueError reports a filter value whose shape does not match its
// operator (wrong arity, unparseable pattern, incomparable bounds).
type FilterValueError struct {
	Field  string
	Reason string
}

func (e *FilterValueError) Error() string {
	return fmt.Sprintf("invalid value for filter on %q: %s", e.Field, e.Reason)
}

// ExecutionError wraps a failure from the underlying data store: unreachable,
// query rejected, or timed out. The cause is preserved for the caller, who
// decides whether to retry.
type ExecutionError struct {
	Op  string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("report execution failed during %s: %v", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// TransformationError reports a raw result row whose shape does not match the
// declared dimensions and measures. This is a data-integrity defect and is
// surfaced rather than coerced.
type TransformationError struct {
	Detail string
}

func (e *TransformationError) Error() string {
	return "result transformation failed: " + e.Detail
}

// IsConfiguration reports whether err is a report-definition defect.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		return true
	}
	var fe *FilterValueError
	return errors.As(err, &fe)
}

// IsExecution reports whether err came from the underlying data store.
func IsExecution(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}
