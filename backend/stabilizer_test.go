//go:build unit
// +build unit

package backend

import (
	"math/rand"
	"testing"

	"github.com/oqtopus-team/localsim/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStabilizer(t *testing.T, qubits int) *Stabilizer {
	t.Helper()
	s := &Stabilizer{maxQubits: 64}
	require.Nil(t, s.Initialize(qubits))
	return s
}

func TestStabilizerProbabilitiesDenseBound(t *testing.T) {
	// The tableau itself scales far past what a dense probability
	// vector can hold; the snapshot must refuse, not allocate.
	s := &Stabilizer{maxQubits: stabilizerMaxQubits}
	require.Nil(t, s.Initialize(70))
	require.Nil(t, s.Apply(unitary("h", 0)))

	_, err := s.Probabilities()
	require.ErrorIs(t, err, core.ErrCapability)
	var capErr *core.CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, StabilizerBackend, capErr.Backend)
	assert.Equal(t, core.SnapshotProbabilities, capErr.Operation)
}

func TestStabilizerInitialize(t *testing.T) {
	s := newStabilizer(t, 3)
	assert.Equal(t, 3, s.Qubits())
	assert.InDelta(t, 1.0, probabilities(t, s)[0], 1e-12)

	over := &Stabilizer{maxQubits: 10}
	err := over.Initialize(11)
	assert.ErrorIs(t, err, core.ErrAllocation)
}

func TestStabilizerRejectsNonClifford(t *testing.T) {
	s := newStabilizer(t, 1)
	for _, name := range []string{"t", "tdg", "sx", "ccx"} {
		err := s.Apply(unitary(name, 0))
		assert.ErrorIs(t, err, core.ErrCapability, name)
	}
	err := s.Apply(unitaryP("rx", []float64{0.5}, 0))
	assert.ErrorIs(t, err, core.ErrCapability)
}

func TestStabilizerBellProbabilities(t *testing.T) {
	s := newStabilizer(t, 2)
	require.Nil(t, s.Apply(unitary("h", 0)))
	require.Nil(t, s.Apply(unitary("cx", 0, 1)))

	probs := probabilities(t, s)
	assert.InDelta(t, 0.5, probs[0], 1e-12)
	assert.InDelta(t, 0.0, probs[1], 1e-12)
	assert.InDelta(t, 0.0, probs[2], 1e-12)
	assert.InDelta(t, 0.5, probs[3], 1e-12)
}

func TestStabilizerBellMeasurementIsCorrelated(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	sawZero, sawOne := false, false
	for shot := 0; shot < 100; shot++ {
		s := newStabilizer(t, 2)
		require.Nil(t, s.Apply(unitary("h", 0)))
		require.Nil(t, s.Apply(unitary("cx", 0, 1)))
		bits, err := s.Measure(rng, []int{0, 1})
		require.Nil(t, err)
		assert.Equal(t, bits[0], bits[1])
		if bits[0] == 0 {
			sawZero = true
		} else {
			sawOne = true
		}
	}
	assert.True(t, sawZero)
	assert.True(t, sawOne)
}

func TestStabilizerDeterministicOutcomes(t *testing.T) {
	tests := []struct {
		name  string
		insts []*core.Instruction
		want  []int
	}{
		{
			name:  "ground state",
			insts: nil,
			want:  []int{0, 0},
		},
		{
			name:  "x flips",
			insts: []*core.Instruction{unitary("x", 0)},
			want:  []int{1, 0},
		},
		{
			name: "h twice is identity",
			insts: []*core.Instruction{
				unitary("h", 1), unitary("h", 1),
			},
			want: []int{0, 0},
		},
		{
			name: "cz phase does not change z basis",
			insts: []*core.Instruction{
				unitary("x", 0), unitary("cz", 0, 1),
			},
			want: []int{1, 0},
		},
		{
			name: "swap moves the excitation",
			insts: []*core.Instruction{
				unitary("x", 0), unitary("swap", 0, 1),
			},
			want: []int{0, 1},
		},
		{
			name: "s then sdg cancels on superposition",
			insts: []*core.Instruction{
				unitary("h", 0), unitary("s", 0), unitary("sdg", 0), unitary("h", 0),
			},
			want: []int{0, 0},
		},
	}
	rng := rand.New(rand.NewSource(4))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStabilizer(t, 2)
			for _, inst := range tt.insts {
				require.Nil(t, s.Apply(inst))
			}
			bits, err := s.Measure(rng, []int{0, 1})
			require.Nil(t, err)
			assert.Equal(t, tt.want, bits)
		})
	}
}

func TestStabilizerMeasureCollapses(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	s := newStabilizer(t, 1)
	require.Nil(t, s.Apply(unitary("h", 0)))
	bits, err := s.Measure(rng, []int{0})
	require.Nil(t, err)
	again, err := s.Measure(rng, []int{0})
	require.Nil(t, err)
	assert.Equal(t, bits, again)
}

func TestStabilizerSampleLeavesStateUntouched(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	s := newStabilizer(t, 2)
	require.Nil(t, s.Apply(unitary("h", 0)))
	require.Nil(t, s.Apply(unitary("cx", 0, 1)))

	for i := 0; i < 20; i++ {
		basis := s.Sample(rng)
		assert.Contains(t, []uint64{0, 3}, basis)
	}
	// Still an even superposition after sampling.
	probs := probabilities(t, s)
	assert.InDelta(t, 0.5, probs[0], 1e-12)
	assert.InDelta(t, 0.5, probs[3], 1e-12)
}

func TestStabilizerReset(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	s := newStabilizer(t, 2)
	require.Nil(t, s.Apply(unitary("x", 0)))
	require.Nil(t, s.Apply(unitary("h", 1)))
	require.Nil(t, s.Reset(rng, []int{0, 1}))
	assert.InDelta(t, 1.0, probabilities(t, s)[0], 1e-12)
}

func TestStabilizerGHZProbabilities(t *testing.T) {
	s := newStabilizer(t, 3)
	require.Nil(t, s.Apply(unitary("h", 0)))
	require.Nil(t, s.Apply(unitary("cx", 0, 1)))
	require.Nil(t, s.Apply(unitary("cx", 1, 2)))

	probs := probabilities(t, s)
	for i, p := range probs {
		switch i {
		case 0, 7:
			assert.InDelta(t, 0.5, p, 1e-12)
		default:
			assert.InDelta(t, 0.0, p, 1e-12)
		}
	}
}
