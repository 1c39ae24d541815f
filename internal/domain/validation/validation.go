// Package validation carries request validation failures from the domain
// layer to the transport layer without coupling the two.
package validation

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Error reports input that was missing or malformed. The message is safe to
// show to the caller.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Errorf builds an *Error from a format string.
func Errorf(format string, args ...any) error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// Required reports a missing field.
func Required(field string) error {
	return &Error{Message: field + " is required"}
}

// Is reports whether err (or anything it wraps) is a validation error.
func Is(err error) bool {
	var v *Error
	return errors.As(err, &v)
}
