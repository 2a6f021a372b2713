package core

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

type OpType int

const (
	OpUnitary OpType = iota
	OpMeasure
	OpReset
	OpBarrier
	OpSnapshot
)

func (o OpType) String() string {
	switch o {
	case OpUnitary:
		return "unitary"
	case OpMeasure:
		return "measure"
	case OpReset:
		return "reset"
	case OpBarrier:
		return "barrier"
	case OpSnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

// Op types travel as their names, not enum values, so circuit files
// stay readable and stable across enum reordering.
func (o OpType) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

func (o *OpType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "unitary":
		*o = OpUnitary
	case "measure":
		*o = OpMeasure
	case "reset":
		*o = OpReset
	case "barrier":
		*o = OpBarrier
	case "snapshot":
		*o = OpSnapshot
	default:
		return fmt.Errorf("unknown op type %s", s)
	}
	return nil
}

const (
	SnapshotStatevector   = "statevector"
	SnapshotProbabilities = "probabilities"
	SnapshotExpectation   = "expectation_value"
)

// Conditional guards an instruction on the classical register.
// The instruction is applied only when (register & Mask) == Value.
// A zero Mask compares the whole register.
type Conditional struct {
	Mask  uint64 `json:"mask"`
	Value uint64 `json:"value"`
}

// PauliTerm is one weighted Pauli string of a snapshot operator,
// e.g. {Coeff: 0.5, Pauli: "ZZ"}. Pauli[i] acts on Qubits[i] of the
// snapshot instruction.
type PauliTerm struct {
	Coeff float64 `json:"coeff"`
	Pauli string  `json:"pauli"`
}

type Instruction struct {
	Op          OpType       `json:"op"`
	Name        string       `json:"name,omitempty"`
	Qubits      []int        `json:"qubits,omitempty"`
	Clbits      []int        `json:"clbits,omitempty"`
	Params      []float64    `json:"params,omitempty"`
	Conditional *Conditional `json:"conditional,omitempty"`
	Label       string       `json:"label,omitempty"`
	Snapshot    string       `json:"snapshot,omitempty"`
	Operators   []PauliTerm  `json:"operators,omitempty"`
}

func (i *Instruction) String() string {
	if i.Op == OpUnitary {
		return fmt.Sprintf("%s%v", i.Name, i.Qubits)
	}
	return fmt.Sprintf("%s%v", i.Op, i.Qubits)
}

// Circuit is immutable once constructed and shared read-only across
// all shots of an experiment.
type Circuit struct {
	Qubits       int           `json:"qubits"`
	Clbits       int           `json:"clbits"`
	Instructions []Instruction `json:"instructions"`
}

// Validate fails fast on any instruction referencing a qubit or
// classical bit outside the declared counts.
func (c *Circuit) Validate() error {
	if c.Qubits <= 0 {
		return fmt.Errorf("circuit must declare at least one qubit, got %d", c.Qubits)
	}
	if c.Clbits < 0 {
		return fmt.Errorf("circuit declares negative clbit count %d", c.Clbits)
	}
	if c.Clbits > 64 {
		return fmt.Errorf("classical register is limited to 64 bits, got %d", c.Clbits)
	}
	for n, inst := range c.Instructions {
		seen := map[int]bool{}
		for _, q := range inst.Qubits {
			if q < 0 || q >= c.Qubits {
				err := &IndexError{Kind: "qubit", Index: q, Count: c.Qubits}
				zap.L().Info(fmt.Sprintf("invalid instruction #%d(%s): %s", n, inst.String(), err.Error()))
				return err
			}
			if seen[q] {
				return fmt.Errorf("instruction #%d(%s): qubit %d is listed twice", n, inst.String(), q)
			}
			seen[q] = true
		}
		for _, b := range inst.Clbits {
			if b < 0 || b >= c.Clbits {
				err := &IndexError{Kind: "clbit", Index: b, Count: c.Clbits}
				zap.L().Info(fmt.Sprintf("invalid instruction #%d(%s): %s", n, inst.String(), err.Error()))
				return err
			}
		}
		if inst.Op == OpMeasure && len(inst.Clbits) != len(inst.Qubits) {
			return fmt.Errorf("instruction #%d: measure needs one clbit per qubit, got %d qubits and %d clbits",
				n, len(inst.Qubits), len(inst.Clbits))
		}
		if inst.Op == OpSnapshot && inst.Label == "" {
			return fmt.Errorf("instruction #%d: snapshot needs a label", n)
		}
	}
	return nil
}
