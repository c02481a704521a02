package dispatch

import (
	"errors"
	"fmt"
)

var ErrBatchInProgress = errors.New("a batch is already in progress")

// ValidationError rejects a batch before any job is created.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConfigurationError means a collaborator the batch needs is missing.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "dispatcher not configured: " + e.Reason
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
