package domain

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching against the typed errors below.
var (
	ErrValidation         = errors.New("validation failed")
	ErrConflict           = errors.New("conflict")
	ErrNotFound           = errors.New("not found")
	ErrDuplicateCandidate = errors.New("duplicate candidate")
)

// ValidationError reports bad input. It may wrap the cause, e.g. a NotFoundError
// for a fee referenced by a payment that does not exist.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) Unwrap() error { return e.Err }

// ConflictError reports that a record's state no longer matched what the
// operation expected when it tried to transition it.
type ConflictError struct {
	Entity   string
	ID       string
	Expected string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s is no longer %s; it was modified concurrently", e.Entity, e.ID, e.Expected)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// NotFoundError reports a referenced record that does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// DuplicateCandidateError is returned when a member is created for a document
// number the registry already knows. The caller may retry with the
// use-existing variant after confirming the candidate is the same person.
type DuplicateCandidateError struct {
	Candidate RegistryRecord
}

func (e *DuplicateCandidateError) Error() string {
	return fmt.Sprintf("person with document %s is already in the registry", e.Candidate.DocumentNumber)
}

func (e *DuplicateCandidateError) Is(target error) bool { return target == ErrDuplicateCandidate }
