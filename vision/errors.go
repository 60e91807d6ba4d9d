package vision

import "fmt"

// Kind classifies a primitive failure so callers can decide what is
// recoverable. The corrector resets its reference state on any *Error and
// propagates everything else.
type Kind int

const (
	// KindNoSolution indicates the estimator could not produce a transform
	// (too few correspondences, or the robust fit rejected everything).
	KindNoSolution Kind = iota
	// KindDegenerate indicates a singular or otherwise unusable geometry
	// (collinear points, non-invertible transform).
	KindDegenerate
	// KindBackend indicates the underlying library failed internally.
	KindBackend
)

// String returns a human-readable name for the failure kind.
func (k Kind) String() string {
	switch k {
	case KindNoSolution:
		return "no-solution"
	case KindDegenerate:
		return "degenerate"
	case KindBackend:
		return "backend"
	default:
		return "unknown"
	}
}

// Error is a classified primitive failure.
type Error struct {
	// Op names the primitive that failed.
	Op string
	// Kind classifies the failure.
	Kind Kind
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("vision: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("vision: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
