package backend

import (
	"math/rand"

	"github.com/oqtopus-team/localsim/core"
	"github.com/oqtopus-team/localsim/gate"
)

// Unitary accumulates the product of all applied gates as a single
// 2^N x 2^N matrix instead of evolving a state. Measurement and reset
// are capability errors; the encoding is meant for gate-only circuits.
type Unitary struct {
	matrix    [][]complex128
	numQubits int
	maxQubits int
}

func (u *Unitary) Initialize(qubits int) error {
	if 2*qubits > u.maxQubits {
		return &core.AllocationError{Backend: UnitaryBackend, Qubits: qubits, MaxQubits: u.maxQubits / 2}
	}
	u.numQubits = qubits
	dim := 1 << qubits
	u.matrix = make([][]complex128, dim)
	for i := range u.matrix {
		u.matrix[i] = make([]complex128, dim)
		u.matrix[i][i] = 1
	}
	return nil
}

func (u *Unitary) Qubits() int {
	return u.numQubits
}

func (u *Unitary) Name() string {
	return UnitaryBackend
}

func (u *Unitary) Apply(inst *core.Instruction) error {
	switch inst.Op {
	case core.OpBarrier:
		return nil
	case core.OpUnitary:
	default:
		return &core.CapabilityError{Backend: UnitaryBackend, Operation: inst.Op.String()}
	}
	m, err := gate.Build(inst.Name, inst.Params)
	if err != nil {
		return err
	}
	// Left-multiplying the accumulator applies the gate to each
	// column, every column being the image of one basis state.
	dim := len(u.matrix)
	buf := make([]complex128, dim)
	for c := 0; c < dim; c++ {
		for r := 0; r < dim; r++ {
			buf[r] = u.matrix[r][c]
		}
		applyMatrixToVector(buf, m, inst.Qubits, 1)
		for r := 0; r < dim; r++ {
			u.matrix[r][c] = buf[r]
		}
	}
	return nil
}

// Probabilities describes the image of the all-zero state, the first
// column of the accumulated matrix.
func (u *Unitary) Probabilities() ([]float64, error) {
	probs := make([]float64, len(u.matrix))
	for i := range u.matrix {
		a := u.matrix[i][0]
		probs[i] = real(a)*real(a) + imag(a)*imag(a)
	}
	return probs, nil
}

func (u *Unitary) Sample(rng *rand.Rand) uint64 {
	r := rng.Float64()
	acc := 0.0
	probs, _ := u.Probabilities()
	for i, p := range probs {
		acc += p
		if r < acc {
			return uint64(i)
		}
	}
	return uint64(len(probs) - 1)
}

func (u *Unitary) Measure(*rand.Rand, []int) ([]int, error) {
	return nil, &core.CapabilityError{Backend: UnitaryBackend, Operation: core.OpMeasure.String()}
}

func (u *Unitary) Reset(*rand.Rand, []int) error {
	return &core.CapabilityError{Backend: UnitaryBackend, Operation: core.OpReset.String()}
}

// MatrixCopy returns the accumulated unitary.
func (u *Unitary) MatrixCopy() [][]complex128 {
	return cloneMatrix(u.matrix)
}
