package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrConflict is matched by every ConflictError via errors.Is.
var ErrConflict = stderrors.New("conflict")

type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return e.Field + ": " + e.Message
}

// ErrNotFound reports a referenced balance or transaction that does not exist.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ConflictError is returned when the store could not serialize a concurrent
// update, or when a write targets a record that is already terminal.
// Callers may retry.
type ConflictError struct {
	Op  string
	Err error
}

func (e *ConflictError) Error() string {
	if e.Err == nil {
		return e.Op + ": conflict"
	}
	return e.Op + ": conflict: " + e.Err.Error()
}

func (e *ConflictError) Unwrap() error { return e.Err }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// UpstreamError wraps a failure of an external collaborator such as the
// pricing gateway.
type UpstreamError struct {
	Source string
	Err    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s unavailable: %v", e.Source, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// InvariantError reports data that would break a ledger invariant, for example
// an outflow that leaves a negative balance.
type InvariantError struct {
	Invariant string
	Detail    string
}

func (e *InvariantError) Error() string {
	return "invariant violated (" + e.Invariant + "): " + e.Detail
}

func NewValidation(field, message string) error {
	return &ErrValidation{Field: field, Message: message}
}

func NewNotFound(resource, id string) error {
	return &ErrNotFound{Resource: resource, ID: id}
}

func NewConflict(op string, err error) error {
	return &ConflictError{Op: op, Err: err}
}

func NewUpstream(source string, err error) error {
	return &UpstreamError{Source: source, Err: err}
}

func NewInvariant(invariant, format string, args ...interface{}) error {
	return &InvariantError{Invariant: invariant, Detail: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var e *ErrValidation
	return stderrors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *ErrNotFound
	return stderrors.As(err, &e)
}

func IsConflict(err error) bool {
	return stderrors.Is(err, ErrConflict)
}

func IsUpstream(err error) bool {
	var e *UpstreamError
	return stderrors.As(err, &e)
}

func IsInvariant(err error) bool {
	var e *InvariantError
	return stderrors.As(err, &e)
}
