package mempool

import "github.com/pkg/errors"

// Same two-category split as the blockchain package (spec.md §7):
// validation failures are logged and dropped by callers, resource failures
// (pool full) are surfaced so a caller can back off.

type validationError struct{ cause error }

func newValidationError(format string, args ...interface{}) error {
	return &validationError{cause: errors.Errorf(format, args...)}
}

func (e *validationError) Error() string { return e.cause.Error() }

type resourceError struct{ cause error }

func newResourceError(format string, args ...interface{}) error {
	return &resourceError{cause: errors.Errorf(format, args...)}
}

func (e *resourceError) Error() string { return e.cause.Error() }

// IsValidationError reports whether err is a validation-class error.
func IsValidationError(err error) bool {
	_, ok := err.(*validationError)
	return ok
}

// IsResourceError reports whether err is a resource-class error.
func IsResourceError(err error) bool {
	_, ok := err.(*resourceError)
	return ok
}
