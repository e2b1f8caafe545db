package model

import (
	"errors"
	"fmt"
)

// Domain errors. Callers wrap them with context and match with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyClaimed      = errors.New("already claimed")
	ErrNotClaimed          = errors.New("not claimed by this user")
	ErrPermission          = errors.New("permission denied")
	ErrExternalUnavailable = errors.New("external service unavailable")
	ErrInvalidInput        = errors.New("invalid input")
)

// NotFound wraps ErrNotFound with the kind and id of the missing record.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}

// Invalid wraps ErrInvalidInput with a message.
func Invalid(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrInvalidInput)
}
