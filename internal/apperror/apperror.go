// Package apperror defines the domain errors shared by every layer.
//
// Services return these; handlers translate them into HTTP status codes.
// A sentinel (ErrNotFound, ErrValidation, ...) identifies the category and
// can be matched with errors.Is anywhere in a wrapped chain.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

type AppError struct {
	Err     error             // sentinel category
	Message string            // Human-readable error message
	Field   string            // Optional: first field causing the error
	Fields  map[string]string // Optional: every invalid field with its message
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// ValidationFailed reports a single invalid field. An empty field produces
// a non-field error (for example "invalid credentials").
func ValidationFailed(field, message string) *AppError {
	e := &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
	if field != "" {
		e.Fields = map[string]string{field: message}
	}
	return e
}

// ValidationFields reports several invalid fields at once.
func ValidationFields(fields map[string]string) *AppError {
	e := &AppError{
		Err:     ErrValidation,
		Message: "validation failed",
		Fields:  fields,
	}
	// Field mirrors one entry so single-field callers keep working.
	for name := range fields {
		if e.Field == "" || name < e.Field {
			e.Field = name
		}
	}
	return e
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized means the caller is not authenticated at all.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}
