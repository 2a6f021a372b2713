package backend

import (
	"math/rand"

	"github.com/oqtopus-team/localsim/core"
	"github.com/oqtopus-team/localsim/gate"
)

// Stabilizer is the CHP tableau encoding, valid only for the Clifford
// subgroup. Rows 0..n-1 are destabilizers, n..2n-1 stabilizers, row
// 2n is scratch for deterministic measurement.
type Stabilizer struct {
	numQubits int
	maxQubits int
	x         [][]uint8
	z         [][]uint8
	r         []uint8
}

func (t *Stabilizer) Initialize(qubits int) error {
	if qubits > t.maxQubits {
		return &core.AllocationError{Backend: StabilizerBackend, Qubits: qubits, MaxQubits: t.maxQubits}
	}
	t.numQubits = qubits
	rows := 2*qubits + 1
	t.x = make([][]uint8, rows)
	t.z = make([][]uint8, rows)
	t.r = make([]uint8, rows)
	for i := range t.x {
		t.x[i] = make([]uint8, qubits)
		t.z[i] = make([]uint8, qubits)
	}
	for i := 0; i < qubits; i++ {
		t.x[i][i] = 1        // destabilizer X_i
		t.z[qubits+i][i] = 1 // stabilizer Z_i
	}
	return nil
}

func (t *Stabilizer) Qubits() int {
	return t.numQubits
}

func (t *Stabilizer) Name() string {
	return StabilizerBackend
}

func (t *Stabilizer) clone() *Stabilizer {
	c := &Stabilizer{numQubits: t.numQubits, maxQubits: t.maxQubits}
	c.x = make([][]uint8, len(t.x))
	c.z = make([][]uint8, len(t.z))
	c.r = append([]uint8(nil), t.r...)
	for i := range t.x {
		c.x[i] = append([]uint8(nil), t.x[i]...)
		c.z[i] = append([]uint8(nil), t.z[i]...)
	}
	return c
}

// Apply supports the Clifford group only. A non-Clifford gate is a
// capability error, never a silent approximation.
func (t *Stabilizer) Apply(inst *core.Instruction) error {
	switch inst.Op {
	case core.OpBarrier:
		return nil
	case core.OpUnitary:
	default:
		return &core.CapabilityError{Backend: StabilizerBackend, Operation: inst.Op.String()}
	}
	if !gate.IsClifford(inst.Name) {
		return &core.CapabilityError{Backend: StabilizerBackend, Operation: inst.Name}
	}
	q := inst.Qubits
	switch inst.Name {
	case "id":
	case "h":
		t.applyH(q[0])
	case "s":
		t.applyS(q[0])
	case "sdg":
		// S† equals S applied three times up to global phase, which a
		// stabilizer state does not track.
		t.applyS(q[0])
		t.applyS(q[0])
		t.applyS(q[0])
	case "x":
		t.applyX(q[0])
	case "y":
		t.applyY(q[0])
	case "z":
		t.applyZ(q[0])
	case "cx":
		t.applyCX(q[0], q[1])
	case "cz":
		t.applyH(q[1])
		t.applyCX(q[0], q[1])
		t.applyH(q[1])
	case "swap":
		t.applyCX(q[0], q[1])
		t.applyCX(q[1], q[0])
		t.applyCX(q[0], q[1])
	default:
		return &core.CapabilityError{Backend: StabilizerBackend, Operation: inst.Name}
	}
	return nil
}

func (t *Stabilizer) applyH(a int) {
	for i := range t.x {
		t.r[i] ^= t.x[i][a] & t.z[i][a]
		t.x[i][a], t.z[i][a] = t.z[i][a], t.x[i][a]
	}
}

func (t *Stabilizer) applyS(a int) {
	for i := range t.x {
		t.r[i] ^= t.x[i][a] & t.z[i][a]
		t.z[i][a] ^= t.x[i][a]
	}
}

func (t *Stabilizer) applyX(a int) {
	for i := range t.x {
		t.r[i] ^= t.z[i][a]
	}
}

func (t *Stabilizer) applyY(a int) {
	for i := range t.x {
		t.r[i] ^= t.x[i][a] ^ t.z[i][a]
	}
}

func (t *Stabilizer) applyZ(a int) {
	for i := range t.x {
		t.r[i] ^= t.x[i][a]
	}
}

func (t *Stabilizer) applyCX(c, a int) {
	for i := range t.x {
		t.r[i] ^= t.x[i][c] & t.z[i][a] & (t.x[i][a] ^ t.z[i][c] ^ 1)
		t.x[i][a] ^= t.x[i][c]
		t.z[i][c] ^= t.z[i][a]
	}
}

// g is the exponent contribution of multiplying two single-qubit
// Pauli factors, mod 4.
func g(x1, z1, x2, z2 uint8) int {
	switch {
	case x1 == 0 && z1 == 0:
		return 0
	case x1 == 1 && z1 == 1:
		return int(z2) - int(x2)
	case x1 == 1 && z1 == 0:
		return int(z2) * (2*int(x2) - 1)
	default:
		return int(x2) * (1 - 2*int(z2))
	}
}

// rowsum sets row h to row h times row i, tracking the phase bit.
func (t *Stabilizer) rowsum(h, i int) {
	sum := 2*int(t.r[h]) + 2*int(t.r[i])
	for j := 0; j < t.numQubits; j++ {
		sum += g(t.x[i][j], t.z[i][j], t.x[h][j], t.z[h][j])
		t.x[h][j] ^= t.x[i][j]
		t.z[h][j] ^= t.z[i][j]
	}
	if (sum%4+4)%4 == 0 {
		t.r[h] = 0
	} else {
		t.r[h] = 1
	}
}

// measureQubit measures one qubit. When the outcome is random the
// forced bit (0 or 1) is taken and prob is 0.5; when deterministic,
// forced is ignored and prob is 1.
func (t *Stabilizer) measureQubit(a int, forced uint8) (outcome uint8, prob float64) {
	n := t.numQubits
	p := -1
	for i := n; i < 2*n; i++ {
		if t.x[i][a] == 1 {
			p = i
			break
		}
	}
	if p >= 0 {
		// random outcome
		for i := 0; i < 2*n; i++ {
			if i != p && t.x[i][a] == 1 {
				t.rowsum(i, p)
			}
		}
		copy(t.x[p-n], t.x[p])
		copy(t.z[p-n], t.z[p])
		t.r[p-n] = t.r[p]
		for j := 0; j < n; j++ {
			t.x[p][j] = 0
			t.z[p][j] = 0
		}
		t.z[p][a] = 1
		t.r[p] = forced
		return forced, 0.5
	}
	// deterministic outcome
	scratch := 2 * n
	for j := 0; j < n; j++ {
		t.x[scratch][j] = 0
		t.z[scratch][j] = 0
	}
	t.r[scratch] = 0
	for i := 0; i < n; i++ {
		if t.x[i][a] == 1 {
			t.rowsum(scratch, i+n)
		}
	}
	return t.r[scratch], 1.0
}

func (t *Stabilizer) Measure(rng *rand.Rand, qubits []int) ([]int, error) {
	bits := make([]int, len(qubits))
	for i, q := range qubits {
		forced := uint8(rng.Intn(2))
		outcome, _ := t.measureQubit(q, forced)
		bits[i] = int(outcome)
	}
	return bits, nil
}

func (t *Stabilizer) Reset(rng *rand.Rand, qubits []int) error {
	bits, err := t.Measure(rng, qubits)
	if err != nil {
		return err
	}
	for i, b := range bits {
		if b == 1 {
			t.applyX(qubits[i])
		}
	}
	return nil
}

// Sample measures every qubit on a copy of the tableau, leaving the
// state untouched.
func (t *Stabilizer) Sample(rng *rand.Rand) uint64 {
	c := t.clone()
	var basis uint64
	for q := 0; q < t.numQubits; q++ {
		forced := uint8(rng.Intn(2))
		outcome, _ := c.measureQubit(q, forced)
		basis |= uint64(outcome) << q
	}
	return basis
}

// The tableau holds thousands of qubits, but a probability vector is
// dense: 2^n entries. Past this bound the enumeration cannot be
// represented, so the snapshot is refused instead of attempted.
const stabilizerDenseProbabilityQubits = 25

// Probabilities enumerates basis-state probabilities by measuring
// qubit by qubit on tableau copies. Every branch is either
// deterministic or an even split, so each probability is a power of
// one half. Exponential in the qubit count, intended for snapshots
// of small circuits.
func (t *Stabilizer) Probabilities() ([]float64, error) {
	if t.numQubits > stabilizerDenseProbabilityQubits {
		return nil, &core.CapabilityError{Backend: StabilizerBackend, Operation: core.SnapshotProbabilities}
	}
	probs := make([]float64, 1<<t.numQubits)
	t.clone().fillProbabilities(probs, 0, 0, 1.0)
	return probs, nil
}

func (t *Stabilizer) fillProbabilities(probs []float64, q int, prefix uint64, weight float64) {
	if q == t.numQubits {
		probs[prefix] = weight
		return
	}
	_, p := t.clone().measureQubit(q, 0)
	if p == 1.0 {
		outcome, _ := t.measureQubit(q, 0)
		t.fillProbabilities(probs, q+1, prefix|uint64(outcome)<<q, weight)
		return
	}
	zero := t.clone()
	zero.measureQubit(q, 0)
	zero.fillProbabilities(probs, q+1, prefix, weight/2)
	t.measureQubit(q, 1)
	t.fillProbabilities(probs, q+1, prefix|1<<q, weight/2)
}
