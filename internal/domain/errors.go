package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedInput    = errors.New("malformed input")
	ErrInconsistentInput = errors.New("inconsistent input")
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// MalformedInputError lists every field that failed bounds or enum checks.
type MalformedInputError struct {
	Fields []FieldError `json:"fields"`
}

func (e *MalformedInputError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("malformed input: %s", strings.Join(parts, "; "))
}

// Is matches ErrMalformedInput.
func (e *MalformedInputError) Is(target error) bool {
	return target == ErrMalformedInput
}

// Add records a field failure.
func (e *MalformedInputError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// ErrOrNil returns e when it holds at least one field, nil otherwise.
func (e *MalformedInputError) ErrOrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// ConsistencyError rejects input whose declared loss contradicts the figures.
type ConsistencyError struct {
	Field   string  `json:"field"`
	Message string  `json:"message"`
	Profit  float64 `json:"profit"`
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("inconsistent input: %s", e.Message)
}

// Is matches ErrInconsistentInput.
func (e *ConsistencyError) Is(target error) bool {
	return target == ErrInconsistentInput
}
