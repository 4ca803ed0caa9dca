package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation is matched by every *ValidationError
	ErrValidation = errors.New("validation error")
	// ErrNotFound is returned when a client id is unknown
	ErrNotFound = errors.New("not found")
	// ErrDuplicateKey is returned when creating a record whose id already exists
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrConcurrentUpdate is returned when optimistic update retries are exhausted
	ErrConcurrentUpdate = errors.New("concurrent update")
	// ErrAlreadyConfirmed is returned by the reject re-confirmation policy
	ErrAlreadyConfirmed = errors.New("payment already confirmed")
	// ErrCollaborator is matched by every *CollaboratorError
	ErrCollaborator = errors.New("collaborator error")
	// ErrUnhandledTool marks a tool name with no handler; it is reported as text, never as a failure
	ErrUnhandledTool = errors.New("unhandled tool")
)

// ValidationError reports missing or malformed mandatory fields
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return "Missing required fields: " + strings.Join(e.Fields, ", ")
}

// Is makes errors.Is(err, ErrValidation) true
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError builds a ValidationError for the given missing fields
func NewValidationError(fields ...string) *ValidationError {
	return &ValidationError{Fields: fields}
}

// CollaboratorError wraps a failure of an external collaborator (calendar, sms, provisioning)
type CollaboratorError struct {
	Collaborator string
	Err          error
}

// Error returns the provider message verbatim; the collaborator name is kept for matching and logs
func (e *CollaboratorError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s failed", e.Collaborator)
	}
	return e.Err.Error()
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrCollaborator) true
func (e *CollaboratorError) Is(target error) bool {
	return target == ErrCollaborator
}

// NewCollaboratorError wraps err as a failure of the named collaborator
func NewCollaboratorError(collaborator string, err error) error {
	if err == nil {
		return nil
	}
	return &CollaboratorError{Collaborator: collaborator, Err: err}
}
