// Package errors: sentinel error kinds.
//
// These mirror the error kinds enumerated in the volume manager and indexed
// file layer design: invalid argument, capacity, geometry violation,
// collision, and descriptor invalidation. Each is a distinct sentinel so
// callers can distinguish them with errors.Is, and each supports
// WithMessage to attach the specific diagnostic without losing the sentinel
// identity. Wrap composes the same kind of message around another error, but
// the result unwraps to that wrapped error, not to the sentinel.
package errors

import "fmt"

type VoldiskError string

const ErrCapacityExceeded = VoldiskError("capacity exceeded")
const ErrCollision = VoldiskError("overlaps an existing volume or the MBR")
const ErrDescriptorInvalid = VoldiskError("file descriptor invalid")
const ErrGeometryViolation = VoldiskError("outside drive geometry")
const ErrInvalidArgument = VoldiskError("invalid argument")
const ErrNoFreeSpace = VoldiskError("no free space")
const ErrNotFound = VoldiskError("no such volume or inode")
const ErrIOFailed = VoldiskError("input/output error")

func (e VoldiskError) Error() string {
	return string(e)
}

func (e VoldiskError) WithMessage(message string) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", e.Error(), message),
		originalError: e,
	}
}

func (e VoldiskError) Wrap(err error) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: err,
	}
}
