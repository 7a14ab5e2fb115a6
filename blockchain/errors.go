package blockchain

import "github.com/pkg/errors"

// Error taxonomy per spec.md §7. Validation errors are never propagated -
// callers are expected to drop the offending block/transaction and log;
// they're still typed so callers (and tests) can tell them apart from
// Resource errors, which the caller must act on (return value, no crash).

// ValidationError wraps a failed consensus-rule check: bad signature, bad
// PoW, bad linkage, bad coinbase, negative amount.
type ValidationError struct {
	cause error
}

func newValidationError(format string, args ...interface{}) error {
	return &ValidationError{cause: errors.Errorf(format, args...)}
}

func (e *ValidationError) Error() string { return e.cause.Error() }
func (e *ValidationError) Cause() error  { return e.cause }

// ResourceError wraps a caller-actionable condition such as a candidate
// chain too short to replace the current one. A candidate chain that fails
// validation at a given height is reported as a ValidationError instead.
type ResourceError struct {
	cause error
}

func newResourceError(format string, args ...interface{}) error {
	return &ResourceError{cause: errors.Errorf(format, args...)}
}

func (e *ResourceError) Error() string { return e.cause.Error() }
func (e *ResourceError) Cause() error  { return e.cause }

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	_, ok := err.(*ValidationError)
	return ok
}

// IsResourceError reports whether err is a ResourceError.
func IsResourceError(err error) bool {
	_, ok := err.(*ResourceError)
	return ok
}
