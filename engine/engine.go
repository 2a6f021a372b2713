// Package engine executes one circuit against one quantum state:
// a single shot. It owns the shot's classical register and drives
// measurement collapse, conditionals, snapshots and noise injection
// off the shot's private RNG stream.
package engine

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/go-faster/errors"
	"github.com/oqtopus-team/localsim/core"
	"github.com/oqtopus-team/localsim/gate"
	"github.com/oqtopus-team/localsim/noise"
)

type ShotStatus int

const (
	Ready ShotStatus = iota
	Running
	Completed
	Failed
)

func (s ShotStatus) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// KrausApplier is implemented by backends that apply an error channel
// exactly in operator-sum form instead of sampling it.
type KrausApplier interface {
	ApplyKraus(ks []gate.Matrix, qubits []int) error
}

// ClassicalRegister is the per-shot bit store written by measurement
// and read by conditionals. Width is capped at 64 bits by the circuit
// validation.
type ClassicalRegister struct {
	bits  uint64
	width int
}

func NewClassicalRegister(width int) *ClassicalRegister {
	return &ClassicalRegister{width: width}
}

func (r *ClassicalRegister) Set(bit int, value int) {
	if value == 0 {
		r.bits &^= 1 << bit
	} else {
		r.bits |= 1 << bit
	}
}

func (r *ClassicalRegister) Value() uint64 {
	return r.bits
}

// Matches evaluates a conditional guard against the register. A zero
// mask compares the whole register.
func (r *ClassicalRegister) Matches(c *core.Conditional) bool {
	if c.Mask == 0 {
		return r.bits == c.Value
	}
	return r.bits&c.Mask == c.Value
}

// String renders the register most significant bit first.
func (r *ClassicalRegister) String() string {
	if r.width == 0 {
		return ""
	}
	var b strings.Builder
	for i := r.width - 1; i >= 0; i-- {
		if r.bits>>i&1 == 1 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

type Engine struct {
	state  core.QuantumState
	creg   *ClassicalRegister
	rng    *rand.Rand
	model  *noise.Model
	status ShotStatus
}

func New(state core.QuantumState, clbits int, rng *rand.Rand, model *noise.Model) *Engine {
	return &Engine{
		state:  state,
		creg:   NewClassicalRegister(clbits),
		rng:    rng,
		model:  model,
		status: Ready,
	}
}

func (e *Engine) Status() ShotStatus {
	return e.status
}

// Run consumes the circuit's instructions strictly in order and
// produces the shot result. A failure is recorded in the result and
// never aborts sibling shots.
func (e *Engine) Run(circ *core.Circuit) *core.ShotResult {
	e.status = Running
	result := &core.ShotResult{Snapshots: make(core.Snapshots)}
	measured := false
	for n := range circ.Instructions {
		inst := &circ.Instructions[n]
		if inst.Conditional != nil && !e.creg.Matches(inst.Conditional) {
			continue
		}
		if err := e.applyInstruction(inst, result); err != nil {
			e.status = Failed
			result.Err = errors.Wrap(err, fmt.Sprintf("instruction #%d(%s)", n, inst.String()))
			return result
		}
		if inst.Op == core.OpMeasure {
			measured = true
		}
	}
	if measured {
		result.Memory = e.creg.String()
	} else {
		// No measurement in the circuit: the outcome is a sample of
		// the final distribution over all qubits.
		result.Memory = formatBasis(e.state.Sample(e.rng), e.state.Qubits())
	}
	e.status = Completed
	return result
}

func (e *Engine) applyInstruction(inst *core.Instruction, result *core.ShotResult) error {
	switch inst.Op {
	case core.OpUnitary, core.OpBarrier:
		if err := e.state.Apply(inst); err != nil {
			return err
		}
		if inst.Op == core.OpUnitary {
			return e.injectNoise(inst)
		}
		return nil
	case core.OpMeasure:
		bits, err := e.state.Measure(e.rng, inst.Qubits)
		if err != nil {
			return err
		}
		for i, b := range inst.Clbits {
			e.creg.Set(b, bits[i])
		}
		return nil
	case core.OpReset:
		return e.state.Reset(e.rng, inst.Qubits)
	case core.OpSnapshot:
		return e.takeSnapshot(inst, result)
	default:
		return &core.CapabilityError{Backend: e.state.Name(), Operation: inst.Op.String()}
	}
}

// takeSnapshot reads a derived quantity off the state without
// mutating it and records it under the snapshot's label.
func (e *Engine) takeSnapshot(inst *core.Instruction, result *core.ShotResult) error {
	var value core.SnapshotValue
	switch inst.Snapshot {
	case core.SnapshotProbabilities:
		probs, err := e.state.Probabilities()
		if err != nil {
			return err
		}
		value = core.SnapshotValue{
			Kind:          core.SnapshotProbabilities,
			Probabilities: probs,
		}
	case core.SnapshotStatevector:
		reader, ok := e.state.(core.StatevectorReader)
		if !ok {
			return &core.CapabilityError{Backend: e.state.Name(), Operation: core.SnapshotStatevector}
		}
		amps := reader.StatevectorCopy()
		pairs := make([][2]float64, len(amps))
		for i, a := range amps {
			pairs[i] = [2]float64{real(a), imag(a)}
		}
		value = core.SnapshotValue{Kind: core.SnapshotStatevector, Statevector: pairs}
	case core.SnapshotExpectation:
		ev, ok := e.state.(core.ExpectationValuer)
		if !ok {
			return &core.CapabilityError{Backend: e.state.Name(), Operation: core.SnapshotExpectation}
		}
		val, err := ev.ExpectationValue(inst.Operators, inst.Qubits)
		if err != nil {
			return err
		}
		value = core.SnapshotValue{Kind: core.SnapshotExpectation, Expectation: val}
	default:
		return &core.CapabilityError{Backend: e.state.Name(), Operation: "snapshot:" + inst.Snapshot}
	}
	result.Snapshots[inst.Label] = append(result.Snapshots[inst.Label], value)
	return nil
}

// injectNoise applies the configured error channel after the ideal
// effect of a gate. The draw is a pure function of the shot RNG, so a
// fixed seed reproduces the same error insertions.
func (e *Engine) injectNoise(inst *core.Instruction) error {
	ch, ok := e.model.ChannelFor(inst.Name)
	if !ok {
		return nil
	}
	if ka, ok := e.state.(KrausApplier); ok {
		ks, err := ch.Kraus()
		if err != nil {
			return err
		}
		for _, q := range inst.Qubits {
			if err := ka.ApplyKraus(ks, []int{q}); err != nil {
				return err
			}
		}
		return nil
	}
	for _, q := range inst.Qubits {
		pauli, ok := ch.SamplePauli(e.rng)
		if !ok {
			return &core.CapabilityError{Backend: e.state.Name(), Operation: "noise channel " + ch.Type}
		}
		if pauli == "" {
			continue
		}
		err := e.state.Apply(&core.Instruction{Op: core.OpUnitary, Name: pauli, Qubits: []int{q}})
		if err != nil {
			return err
		}
	}
	return nil
}

func formatBasis(basis uint64, width int) string {
	if width == 0 {
		return ""
	}
	var b strings.Builder
	for i := width - 1; i >= 0; i-- {
		if basis>>i&1 == 1 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}
