package sim

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is wrapped by every configuration error: invalid bounds,
// non-positive counts, inverted min/max. Check with errors.Is.
var ErrInvalidConfig = errors.New("invalid configuration")

// ConfigErrorf formats a configuration error that wraps ErrInvalidConfig.
func ConfigErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// SimulationError reports a simulation-domain failure: numeric blow-up or an
// invalid parameter combination discovered while building a catalog.
// The catalog that produced it is unusable. The ensemble may rebuild it
// from a fresh seed.
type SimulationError struct {
	Op     string // operation that failed, e.g. "generate"
	Reason string
	Err    error // optional cause
}

func (e *SimulationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("simulation failure in %s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("simulation failure in %s: %s", e.Op, e.Reason)
}

func (e *SimulationError) Unwrap() error { return e.Err }

// NewSimulationError constructs a SimulationError.
func NewSimulationError(op, reason string, cause error) *SimulationError {
	return &SimulationError{Op: op, Reason: reason, Err: cause}
}

// IsRetryable reports whether err is a simulation-domain failure, the only
// kind of failure an ensemble driver should retry.
func IsRetryable(err error) bool {
	var se *SimulationError
	return errors.As(err, &se)
}
