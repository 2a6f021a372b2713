package backend

import (
	"math"
	"math/cmplx"
	"math/rand"

	"github.com/oqtopus-team/localsim/core"
	"github.com/oqtopus-team/localsim/gate"
)

// DensityMatrix is the mixed-state encoding: a 2^N x 2^N matrix with
// gate application U rho U†. Trace and Hermiticity are verified after
// every step, not assumed.
type DensityMatrix struct {
	rho       [][]complex128
	numQubits int
	maxQubits int
	threads   int
}

func (d *DensityMatrix) Initialize(qubits int) error {
	// The matrix squares the dense footprint, so the dense limit is
	// burned twice as fast.
	if 2*qubits > d.maxQubits {
		return &core.AllocationError{Backend: DensityMatrixBackend, Qubits: qubits, MaxQubits: d.maxQubits / 2}
	}
	d.numQubits = qubits
	dim := 1 << qubits
	d.rho = make([][]complex128, dim)
	for i := range d.rho {
		d.rho[i] = make([]complex128, dim)
	}
	d.rho[0][0] = 1
	return nil
}

func (d *DensityMatrix) Qubits() int {
	return d.numQubits
}

func (d *DensityMatrix) Name() string {
	return DensityMatrixBackend
}

func (d *DensityMatrix) Apply(inst *core.Instruction) error {
	switch inst.Op {
	case core.OpBarrier:
		return nil
	case core.OpUnitary:
		m, err := gate.Build(inst.Name, inst.Params)
		if err != nil {
			return err
		}
		d.applyUnitary(m, inst.Qubits)
		return d.checkInvariants()
	default:
		return &core.CapabilityError{Backend: DensityMatrixBackend, Operation: inst.Op.String()}
	}
}

// applyUnitary computes U rho U†: U on the row index of every column,
// then conj(U) on the column index of every row.
func (d *DensityMatrix) applyUnitary(m gate.Matrix, qubits []int) {
	d.mulLeft(m, qubits)
	d.mulRightDagger(m, qubits)
}

func (d *DensityMatrix) mulLeft(m gate.Matrix, qubits []int) {
	dim := len(d.rho)
	parallelFor(dim, d.threads, func(lo, hi int) {
		buf := make([]complex128, dim)
		for c := lo; c < hi; c++ {
			for r := 0; r < dim; r++ {
				buf[r] = d.rho[r][c]
			}
			applyMatrixToVector(buf, m, qubits, 1)
			for r := 0; r < dim; r++ {
				d.rho[r][c] = buf[r]
			}
		}
	})
}

// mulRightDagger multiplies rho by U† from the right, which turns
// every row v into conj(U)·v.
func (d *DensityMatrix) mulRightDagger(m gate.Matrix, qubits []int) {
	conj := conjugate(m)
	dim := len(d.rho)
	parallelFor(dim, d.threads, func(lo, hi int) {
		for r := lo; r < hi; r++ {
			applyMatrixToVector(d.rho[r], conj, qubits, 1)
		}
	})
}

func conjugate(m gate.Matrix) gate.Matrix {
	c := gate.NewMatrix(len(m))
	for i := range m {
		for j := range m[i] {
			c[i][j] = cmplx.Conj(m[i][j])
		}
	}
	return c
}

// ApplyKraus applies a completely positive map rho' = Σ K rho K†.
// The noise channels hand their Kraus operators here so the mixture
// is exact instead of sampled.
func (d *DensityMatrix) ApplyKraus(ks []gate.Matrix, qubits []int) error {
	dim := len(d.rho)
	acc := make([][]complex128, dim)
	for i := range acc {
		acc[i] = make([]complex128, dim)
	}
	saved := d.rho
	for _, k := range ks {
		d.rho = cloneMatrix(saved)
		d.applyUnitary(k, qubits) // K rho K†, K need not be unitary
		for i := 0; i < dim; i++ {
			for j := 0; j < dim; j++ {
				acc[i][j] += d.rho[i][j]
			}
		}
	}
	d.rho = acc
	return d.checkInvariants()
}

func cloneMatrix(m [][]complex128) [][]complex128 {
	c := make([][]complex128, len(m))
	for i := range m {
		c[i] = append([]complex128(nil), m[i]...)
	}
	return c
}

func (d *DensityMatrix) Probabilities() ([]float64, error) {
	probs := make([]float64, len(d.rho))
	for i := range d.rho {
		probs[i] = real(d.rho[i][i])
	}
	return probs, nil
}

func (d *DensityMatrix) Sample(rng *rand.Rand) uint64 {
	r := rng.Float64()
	acc := 0.0
	for i := range d.rho {
		acc += real(d.rho[i][i])
		if r < acc {
			return uint64(i)
		}
	}
	return uint64(len(d.rho) - 1)
}

func (d *DensityMatrix) Measure(rng *rand.Rand, qubits []int) ([]int, error) {
	basis := d.Sample(rng)
	bits := make([]int, len(qubits))
	var match, flip uint64
	for i, q := range qubits {
		bits[i] = int(basis >> q & 1)
		match |= uint64(bits[i]) << q
		flip |= 1 << q
	}

	prob := 0.0
	for i := range d.rho {
		if uint64(i)&flip == match {
			prob += real(d.rho[i][i])
		}
	}
	if prob <= 0 {
		return nil, &core.NumericalError{Invariant: "collapse probability", Value: prob, Epsilon: ProbabilityEpsilon}
	}
	norm := complex(1/prob, 0)
	for i := range d.rho {
		for j := range d.rho[i] {
			if uint64(i)&flip == match && uint64(j)&flip == match {
				d.rho[i][j] *= norm
			} else {
				d.rho[i][j] = 0
			}
		}
	}
	if err := d.checkInvariants(); err != nil {
		return nil, err
	}
	return bits, nil
}

func (d *DensityMatrix) Reset(rng *rand.Rand, qubits []int) error {
	bits, err := d.Measure(rng, qubits)
	if err != nil {
		return err
	}
	for i, b := range bits {
		if b == 1 {
			m, err := gate.Build("x", nil)
			if err != nil {
				return err
			}
			d.applyUnitary(m, []int{qubits[i]})
		}
	}
	return d.checkInvariants()
}

func (d *DensityMatrix) Trace() float64 {
	tr := 0.0
	for i := range d.rho {
		tr += real(d.rho[i][i])
	}
	return tr
}

// checkInvariants verifies trace ≈ 1 and Hermiticity, renormalizing
// the trace once before giving up.
func (d *DensityMatrix) checkInvariants() error {
	tr := d.Trace()
	if math.Abs(tr-1) > ProbabilityEpsilon {
		if tr <= 0 {
			return &core.NumericalError{Invariant: "trace", Value: tr, Epsilon: ProbabilityEpsilon}
		}
		norm := complex(1/tr, 0)
		for i := range d.rho {
			for j := range d.rho[i] {
				d.rho[i][j] *= norm
			}
		}
		tr = d.Trace()
		if math.Abs(tr-1) > ProbabilityEpsilon {
			return &core.NumericalError{Invariant: "trace", Value: tr, Epsilon: ProbabilityEpsilon}
		}
	}
	for i := range d.rho {
		for j := i; j < len(d.rho); j++ {
			if cmplx.Abs(d.rho[i][j]-cmplx.Conj(d.rho[j][i])) > HermiticityEpsilon {
				return &core.NumericalError{
					Invariant: "hermiticity",
					Value:     cmplx.Abs(d.rho[i][j] - cmplx.Conj(d.rho[j][i])),
					Epsilon:   HermiticityEpsilon,
				}
			}
		}
	}
	return nil
}

// ExpectationValue evaluates Tr(P rho) for a weighted sum of Pauli
// strings.
func (d *DensityMatrix) ExpectationValue(terms []core.PauliTerm, qubits []int) (float64, error) {
	total := 0.0
	for _, term := range terms {
		flip, weight, err := pauliMasks(term.Pauli, qubits, d.numQubits)
		if err != nil {
			return 0, err
		}
		acc := complex(0, 0)
		for i := range d.rho {
			j := int(uint64(i) ^ flip)
			acc += weight(uint64(i)) * d.rho[i][j]
		}
		total += term.Coeff * real(acc)
	}
	return total, nil
}
