package engine

import (
	"errors"
	"fmt"
)

// ErrExhausted reports that a session has no pending steps left. This is
// the normal terminal state of a quiz, not a failure.
var ErrExhausted = errors.New("engine: no pending steps")

// ValidationError rejects a request with a field-level message. Never
// retried; the caller fixes the input or stops.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func validationf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func isExhausted(err error) bool {
	return errors.Is(err, ErrExhausted)
}

func isValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
