package core

import (
	"errors"
	"fmt"
)

// Structural errors abort the whole experiment before any shot runs.
// Per-shot errors are recorded in the shot result and leave sibling
// shots untouched.
var (
	ErrIndex      = errors.New("index out of range")
	ErrCapability = errors.New("operation not supported by backend")
	ErrNumerical  = errors.New("numerical invariant violated")
	ErrAllocation = errors.New("state does not fit in memory")
)

type IndexError struct {
	Kind  string // "qubit" or "clbit"
	Index int
	Count int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s index %d is out of range [0, %d)", e.Kind, e.Index, e.Count)
}

func (e *IndexError) Unwrap() error {
	return ErrIndex
}

type CapabilityError struct {
	Backend   string
	Operation string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("operation %s is not supported by the %s backend", e.Operation, e.Backend)
}

func (e *CapabilityError) Unwrap() error {
	return ErrCapability
}

type NumericalError struct {
	Invariant string
	Value     float64
	Epsilon   float64
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("%s is %g, outside tolerance %g after renormalization", e.Invariant, e.Value, e.Epsilon)
}

func (e *NumericalError) Unwrap() error {
	return ErrNumerical
}

type AllocationError struct {
	Backend   string
	Qubits    int
	MaxQubits int
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("%d qubits exceed the %s backend limit of %d", e.Qubits, e.Backend, e.MaxQubits)
}

func (e *AllocationError) Unwrap() error {
	return ErrAllocation
}

// IsStructural reports whether err must abort the whole experiment
// rather than a single shot. Capability misses stay per-shot: they
// surface through shot_failures, siblings keep running.
func IsStructural(err error) bool {
	return errors.Is(err, ErrIndex) || errors.Is(err, ErrAllocation)
}
