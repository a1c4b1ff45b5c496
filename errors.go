package harold

import (
	"errors"
	"log"
)

// Error kinds of the representation algebra. Concrete failures wrap one
// of these sentinels, so callers can branch with errors.Is.
var (
	// ErrShape indicates a fixed shape violated on mutation or operand
	// shapes incompatible for the requested operation.
	ErrShape = errors.New("harold: incompatible shape")

	// ErrCausality indicates a numerator degree exceeding the matching
	// denominator degree.
	ErrCausality = errors.New("harold: noncausal transfer entry")

	// ErrSamplingMismatch indicates operands with different sampling
	// periods or continuous/discrete type.
	ErrSamplingMismatch = errors.New("harold: sampling periods do not match")

	// ErrType indicates an unsupported operand type or a malformed
	// constructor argument.
	ErrType = errors.New("harold: unsupported argument type")

	// ErrUnsupported indicates an operation the algebra deliberately
	// rejects, such as division by a model.
	ErrUnsupported = errors.New("harold: unsupported operation")
)

// Warnf receives the non-fatal numerical cautions, such as a denominator
// entry with a tiny leading coefficient during realization. It defaults
// to the standard logger and may be replaced by the caller.
var Warnf = func(format string, args ...any) {
	log.Printf(format, args...)
}
