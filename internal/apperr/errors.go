// Package apperr defines the error kinds the matching engine surfaces to
// callers. Handlers map them to HTTP statuses with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a referenced entity does not exist or is not
// visible to the requesting tenant. Cross-tenant references are reported as
// not found, never leaked.
var ErrNotFound = errors.New("not found")

// ErrBusinessRule is returned when an operation would violate a financial
// invariant: double allocation of a credit, over-application of an invoice,
// or re-reversal of an already-reversed payment.
var ErrBusinessRule = errors.New("business rule violation")

// NotFound wraps ErrNotFound with a formatted message.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// BusinessRule wraps ErrBusinessRule with a formatted message.
func BusinessRule(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBusinessRule, fmt.Sprintf(format, args...))
}
