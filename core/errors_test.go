//go:build unit
// +build unit

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorUnwrapping(t *testing.T) {
	assert.ErrorIs(t, &IndexError{Kind: "qubit", Index: 3, Count: 2}, ErrIndex)
	assert.ErrorIs(t, &AllocationError{Backend: "statevector", Qubits: 30, MaxQubits: 25}, ErrAllocation)
	assert.ErrorIs(t, &CapabilityError{Backend: "unitary", Operation: "measure"}, ErrCapability)
	assert.ErrorIs(t, &NumericalError{Invariant: "probability sum", Value: 0.8, Epsilon: 1e-9}, ErrNumerical)
}

func TestIsStructural(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "index errors abort the run",
			err:  &IndexError{Kind: "qubit", Index: 3, Count: 2},
			want: true,
		},
		{
			name: "allocation errors abort the run",
			err:  &AllocationError{Backend: "statevector", Qubits: 30, MaxQubits: 25},
			want: true,
		},
		{
			name: "capability errors stay per shot",
			err:  &CapabilityError{Backend: "unitary", Operation: "measure"},
			want: false,
		},
		{
			name: "numerical errors stay per shot",
			err:  &NumericalError{Invariant: "probability sum", Value: 0.8, Epsilon: 1e-9},
			want: false,
		},
		{
			name: "nil is not structural",
			err:  nil,
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsStructural(tt.err))
		})
	}
}
