package callstats

import (
	"errors"
	"fmt"
)

// Contract violations. These are raised with panic wrapped in a
// *ContractError because they mean the duration accounting of the
// surrounding program is already corrupt.
var (
	ErrNotRunning     = errors.New("timer is not running")
	ErrAlreadyRunning = errors.New("timer is already running")
	ErrUnbalanced     = errors.New("leave does not match the innermost enter")
)

var (
	// ErrBusy is returned by operations that need an idle stack.
	ErrBusy = errors.New("stats has an active timer")

	// ErrRegistryMismatch is returned when merging stats of different registries.
	ErrRegistryMismatch = errors.New("stats were built from different registries")

	// ErrUnknownCounter is returned for names missing from the registry.
	ErrUnknownCounter = errors.New("unknown counter")
)

// ContractError describes a misuse of the timer protocol.
type ContractError struct {
	Op      string
	Counter string
	Err     error
}

func (e *ContractError) Error() string {
	if e.Counter == "" {
		return fmt.Sprintf("callstats: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("callstats: %s %s: %v", e.Op, e.Counter, e.Err)
}

func (e *ContractError) Unwrap() error {
	return e.Err
}

func violation(op string, c *Counter, err error) {
	ce := &ContractError{Op: op, Err: err}
	if c != nil {
		ce.Counter = c.name
	}
	panic(ce)
}
