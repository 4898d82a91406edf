package model

import (
	"errors"
	"fmt"
	"strings"
)

// Violation is a single validation failure with the field that caused it.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v Violation) String() string { return v.Field + ": " + v.Message }

// ValidationError carries the full ordered list of invariant violations,
// never just the first.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsValidationError checks if an error is a ValidationError (including wrapped errors).
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NotFoundError indicates an operation targeted a non-existent record.
type NotFoundError struct {
	UUID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("vcon %s not found", e.UUID)
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// HookRejectionError wraps an error returned by a before-hook. The operation
// never reaches persistence.
type HookRejectionError struct {
	Hook string
	Err  error
}

func (e *HookRejectionError) Error() string {
	return fmt.Sprintf("hook %s rejected operation: %v", e.Hook, e.Err)
}

func (e *HookRejectionError) Unwrap() error { return e.Err }

// IsHookRejection checks if an error is a HookRejectionError.
func IsHookRejection(err error) bool {
	var he *HookRejectionError
	return errors.As(err, &he)
}

// Store failure classification for StoreUnavailableError.
const (
	StoreFailureNetwork     = "network"
	StoreFailureCredentials = "credentials"
	StoreFailureService     = "service"
)

// StoreUnavailableError indicates the relational store could not be reached
// or refused the call. Reason distinguishes network trouble from bad
// credentials from the service being down.
type StoreUnavailableError struct {
	Reason string
	Err    error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable (%s): %v", e.Reason, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// IsStoreUnavailable checks if an error is a StoreUnavailableError.
func IsStoreUnavailable(err error) bool {
	var se *StoreUnavailableError
	return errors.As(err, &se)
}
