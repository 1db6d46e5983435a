package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// Problem codes produced by graph checks. Field-level problems reuse the validator tag name.
const (
	CodeNullStep          = "null_step"
	CodeDuplicateName     = "duplicate_name"
	CodeDuplicateOrder    = "duplicate_order"
	CodeSelfReference     = "self_reference"
	CodeUnknownReference  = "unknown_reference"
	CodeUnknownStepCode   = "unknown_step_code"
	CodeDuplicateStepCode = "duplicate_step_code"
	CodeNameTaken         = "name_taken"
)

// Problem describes one structural defect of a workflow definition.
type Problem struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError lists every problem found in a workflow definition.
type ValidationError struct {
	Problems []Problem
}

// NewValidationError creates a validation error for the given problems.
func NewValidationError(problems ...Problem) *ValidationError {
	return &ValidationError{Problems: problems}
}

func (e *ValidationError) Error() string {
	messages := make([]string, 0, len(e.Problems))
	for _, problem := range e.Problems {
		messages = append(messages, problem.Field+": "+problem.Message)
	}

	return fmt.Sprintf("invalid workflow definition (%d problems): %s", len(e.Problems), strings.Join(messages, "; "))
}

// IsValidationError checks if an error is a workflow definition validation error.
func IsValidationError(err error) bool {
	var validationErr *ValidationError

	return errors.As(err, &validationErr)
}

// ProblemsOf returns the problems carried by err, or nil if err is not a ValidationError.
func ProblemsOf(err error) []Problem {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Problems
	}

	return nil
}
