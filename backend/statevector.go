package backend

import (
	"math"
	"math/bits"
	"math/cmplx"
	"math/rand"
	"sort"

	"github.com/oqtopus-team/localsim/core"
	"github.com/oqtopus-team/localsim/gate"
)

// Statevector is the dense pure-state encoding: 2^N complex
// amplitudes with qubit q stored at index bit q.
type Statevector struct {
	amps      []complex128
	numQubits int
	maxQubits int
	threads   int
}

func (s *Statevector) Initialize(qubits int) error {
	if qubits > s.maxQubits {
		return &core.AllocationError{Backend: StatevectorBackend, Qubits: qubits, MaxQubits: s.maxQubits}
	}
	s.numQubits = qubits
	s.amps = make([]complex128, 1<<qubits)
	s.amps[0] = 1
	return nil
}

func (s *Statevector) Qubits() int {
	return s.numQubits
}

func (s *Statevector) Name() string {
	return StatevectorBackend
}

func (s *Statevector) Apply(inst *core.Instruction) error {
	switch inst.Op {
	case core.OpBarrier:
		return nil
	case core.OpUnitary:
		m, err := gate.Build(inst.Name, inst.Params)
		if err != nil {
			return err
		}
		s.applyMatrix(m, inst.Qubits)
		return nil
	default:
		return &core.CapabilityError{Backend: StatevectorBackend, Operation: inst.Op.String()}
	}
}

// applyMatrix applies a 2^k matrix to the amplitudes of the operand
// qubits. Operands are listed most significant matrix bit first, so
// a cx lists (control, target). The 2^(N-k) index groups are disjoint
// and are split across worker goroutines, joined before returning.
func (s *Statevector) applyMatrix(m gate.Matrix, qubits []int) {
	applyMatrixToVector(s.amps, m, qubits, s.threads)
}

// applyMatrixToVector is shared with the unitary and density-matrix
// encodings, which evolve columns the same way.
func applyMatrixToVector(amps []complex128, m gate.Matrix, qubits []int, threads int) {
	k := len(qubits)
	dim := 1 << k
	sorted := append([]int(nil), qubits...)
	sort.Ints(sorted)

	// Matrix index bit i corresponds to qubits[k-1-i].
	shifts := make([]int, k)
	for i := 0; i < k; i++ {
		shifts[i] = qubits[k-1-i]
	}

	groups := len(amps) >> k
	parallelFor(groups, threads, func(lo, hi int) {
		idx := make([]int, dim)
		vec := make([]complex128, dim)
		for o := lo; o < hi; o++ {
			base := o
			for _, q := range sorted {
				mask := (1 << q) - 1
				base = ((base &^ mask) << 1) | (base & mask)
			}
			for g := 0; g < dim; g++ {
				i := base
				for b := 0; b < k; b++ {
					if g&(1<<b) != 0 {
						i |= 1 << shifts[b]
					}
				}
				idx[g] = i
				vec[g] = amps[i]
			}
			for r := 0; r < dim; r++ {
				var acc complex128
				for c := 0; c < dim; c++ {
					acc += m[r][c] * vec[c]
				}
				amps[idx[r]] = acc
			}
		}
	})
}

func (s *Statevector) Probabilities() ([]float64, error) {
	probs := make([]float64, len(s.amps))
	for i, a := range s.amps {
		probs[i] = real(a)*real(a) + imag(a)*imag(a)
	}
	return probs, nil
}

// Sample draws one basis state from the current distribution without
// mutating the state.
func (s *Statevector) Sample(rng *rand.Rand) uint64 {
	r := rng.Float64()
	acc := 0.0
	for i, a := range s.amps {
		acc += real(a)*real(a) + imag(a)*imag(a)
		if r < acc {
			return uint64(i)
		}
	}
	return uint64(len(s.amps) - 1)
}

// Measure samples an outcome over the given qubits, collapses the
// state to the matching subspace and renormalizes.
func (s *Statevector) Measure(rng *rand.Rand, qubits []int) ([]int, error) {
	basis := s.Sample(rng)
	bits := make([]int, len(qubits))
	var match, flip uint64
	for i, q := range qubits {
		bits[i] = int(basis >> q & 1)
		match |= uint64(bits[i]) << q
		flip |= 1 << q
	}

	prob := 0.0
	for i, a := range s.amps {
		if uint64(i)&flip == match {
			prob += real(a)*real(a) + imag(a)*imag(a)
		}
	}
	if prob <= 0 {
		return nil, &core.NumericalError{Invariant: "collapse probability", Value: prob, Epsilon: ProbabilityEpsilon}
	}
	norm := complex(1/math.Sqrt(prob), 0)
	for i := range s.amps {
		if uint64(i)&flip == match {
			s.amps[i] *= norm
		} else {
			s.amps[i] = 0
		}
	}
	if err := s.checkNorm(); err != nil {
		return nil, err
	}
	return bits, nil
}

// Reset forces the target qubits to |0>: measure without recording,
// then flip any qubit that came out 1.
func (s *Statevector) Reset(rng *rand.Rand, qubits []int) error {
	bits, err := s.Measure(rng, qubits)
	if err != nil {
		return err
	}
	for i, b := range bits {
		if b == 1 {
			m, err := gate.Build("x", nil)
			if err != nil {
				return err
			}
			s.applyMatrix(m, []int{qubits[i]})
		}
	}
	return nil
}

// checkNorm verifies Σ|a|^2 ≈ 1 and renormalizes once before giving
// up with a numerical error.
func (s *Statevector) checkNorm() error {
	sum := s.probabilitySum()
	if math.Abs(sum-1) <= ProbabilityEpsilon {
		return nil
	}
	if sum <= 0 {
		return &core.NumericalError{Invariant: "probability sum", Value: sum, Epsilon: ProbabilityEpsilon}
	}
	norm := complex(1/math.Sqrt(sum), 0)
	for i := range s.amps {
		s.amps[i] *= norm
	}
	sum = s.probabilitySum()
	if math.Abs(sum-1) > ProbabilityEpsilon {
		return &core.NumericalError{Invariant: "probability sum", Value: sum, Epsilon: ProbabilityEpsilon}
	}
	return nil
}

func (s *Statevector) probabilitySum() float64 {
	sum := 0.0
	for _, a := range s.amps {
		sum += real(a)*real(a) + imag(a)*imag(a)
	}
	return sum
}

func (s *Statevector) StatevectorCopy() []complex128 {
	c := make([]complex128, len(s.amps))
	copy(c, s.amps)
	return c
}

// ExpectationValue evaluates <ψ|P|ψ> for a weighted sum of Pauli
// strings without mutating the state. Pauli[i] of each term acts on
// qubits[i].
func (s *Statevector) ExpectationValue(terms []core.PauliTerm, qubits []int) (float64, error) {
	total := 0.0
	for _, term := range terms {
		flip, weight, err := pauliMasks(term.Pauli, qubits, s.numQubits)
		if err != nil {
			return 0, err
		}
		acc := complex(0, 0)
		for i, a := range s.amps {
			if a == 0 {
				continue
			}
			j := uint64(i) ^ flip
			acc += cmplx.Conj(s.amps[j]) * weight(uint64(i)) * a
		}
		total += term.Coeff * real(acc)
	}
	return total, nil
}

// pauliMasks compiles a Pauli string into the bit-flip mask and the
// per-basis-state phase factor of the operator.
func pauliMasks(pauli string, qubits []int, numQubits int) (uint64, func(uint64) complex128, error) {
	if len(pauli) != len(qubits) {
		return 0, nil, &core.CapabilityError{Backend: "pauli operator", Operation: pauli}
	}
	var flip, zmask, ymask uint64
	for i, p := range pauli {
		q := qubits[i]
		if q < 0 || q >= numQubits {
			return 0, nil, &core.IndexError{Kind: "qubit", Index: q, Count: numQubits}
		}
		switch p {
		case 'I', 'i':
		case 'X', 'x':
			flip |= 1 << q
		case 'Y', 'y':
			flip |= 1 << q
			ymask |= 1 << q
		case 'Z', 'z':
			zmask |= 1 << q
		default:
			return 0, nil, &core.CapabilityError{Backend: "pauli operator", Operation: string(p)}
		}
	}
	weight := func(b uint64) complex128 {
		w := complex(1, 0)
		if bits.OnesCount64(b&zmask)%2 == 1 {
			w = -w
		}
		y := ymask
		for y != 0 {
			bit := y & (-y)
			if b&bit == 0 {
				w *= 1i
			} else {
				w *= -1i
			}
			y &^= bit
		}
		return w
	}
	return flip, weight, nil
}
