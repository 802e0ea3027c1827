// Package errors defines the structured error values returned across the
// volume manager and indexed file layer. Every validation failure is
// reported as a DriverError rather than written directly to a stream, so
// callers can inspect it with errors.Is/errors.As and the CLI can decide how
// to render it.
package errors

import "fmt"

type DriverError interface {
	error
	WithMessage(message string) DriverError
	Wrap(err error) DriverError
}

// -----------------------------------------------------------------------------

type customDriverError struct {
	message       string
	originalError error
}

func (e customDriverError) Error() string {
	return e.message
}

func (e customDriverError) WithMessage(message string) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", e.message, message),
		originalError: e,
	}
}

func (e customDriverError) Wrap(err error) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: err,
	}
}

func (e customDriverError) Unwrap() error {
	return e.originalError
}
