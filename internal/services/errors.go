package services

import (
	"fmt"

	"example.com/backstage/services/warehouse/internal/repositories"

	"github.com/pkg/errors"
)

// Error kinds. Callers classify with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("conflict")
	ErrNoTruckAvailable  = errors.New("no truck available")
)

// Error carries a human readable message for one error kind
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the kind to errors.Is
func (e *Error) Unwrap() error {
	return e.Kind
}

func kindErrorf(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func validationErrorf(format string, args ...interface{}) error {
	return kindErrorf(ErrValidation, format, args...)
}

func notFoundErrorf(format string, args ...interface{}) error {
	return kindErrorf(ErrNotFound, format, args...)
}

func transitionErrorf(format string, args ...interface{}) error {
	return kindErrorf(ErrInvalidTransition, format, args...)
}

func conflictErrorf(format string, args ...interface{}) error {
	return kindErrorf(ErrConflict, format, args...)
}

// classify turns repository errors about entity what into service error kinds
func classify(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		return notFoundErrorf("%s not found", what)
	case errors.Is(err, repositories.ErrDuplicateKey):
		return conflictErrorf("%s already exists", what)
	case errors.Is(err, repositories.ErrStaleWrite):
		return conflictErrorf("%s was modified concurrently, retry the request", what)
	}
	return err
}

// Message returns the message safe to show a caller, or "" for internal errors
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}
