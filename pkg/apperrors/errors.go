package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedRecord   = errors.New("malformed record")
	ErrUnresolvableSense = errors.New("unresolvable sense")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrEmptyInventory    = errors.New("sense inventory is empty")
	ErrRunInProgress     = errors.New("resolver run already in progress")
)

// RecordError describes one unusable input record. It matches ErrMalformedRecord
// under errors.Is.
type RecordError struct {
	Source string
	Line   int
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s record %d: %v", e.Source, e.Line, e.Err)
}

func (e *RecordError) Unwrap() []error {
	return []error{ErrMalformedRecord, e.Err}
}

// NewRecordError wraps cause as a malformed record error.
func NewRecordError(source string, line int, cause error) error {
	return &RecordError{Source: source, Line: line, Err: cause}
}

// SourceError reports an adapter whose upstream could not be reached.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() []error {
	return []error{ErrSourceUnavailable, e.Err}
}
