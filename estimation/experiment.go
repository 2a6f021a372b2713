// Package estimation implements the "estimation" experiment type:
// the expectation value of a weighted Pauli operator estimated from
// sampled counts. Each operator term is measured in its own basis by
// appending basis-change gates and measurements to the circuit.
package estimation

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-faster/jx"
	"github.com/oqtopus-team/localsim/core"
	"github.com/oqtopus-team/localsim/engine"
	"github.com/oqtopus-team/localsim/noise"
	"go.uber.org/zap"
)

const (
	ESTIMATION_EXPERIMENT  = "estimation"
	ESTIMATION_SETTING_KEY = "estimation"

	DEFAULT_MAX_TERMS = 256
)

type EstimationSetting struct {
	MaxTerms int `toml:"max_terms"`
}

func NewEstimationSetting() EstimationSetting {
	return EstimationSetting{
		MaxTerms: DEFAULT_MAX_TERMS,
	}
}

// operatorTerm is one weighted Pauli string. The pauli runs over the
// whole register, most significant qubit first, like result
// bitstrings.
type operatorTerm struct {
	pauli string
	coeff float64
}

type EstimationExperiment struct {
	setting           EstimationSetting
	experimentData    *core.ExperimentData
	experimentContext *core.ExperimentContext
	terms             []operatorTerm
	countsList        []core.Counts

	finished bool
}

func (e *EstimationExperiment) New(ed *core.ExperimentData, ec *core.ExperimentContext) core.Experiment {
	setting := NewEstimationSetting()
	s, ok := core.GetComponentSetting(ESTIMATION_SETTING_KEY)
	if ok {
		mapped, ok := s.(map[string]interface{})
		if ok {
			if mt, ok := mapped["max_terms"].(int64); ok {
				setting.MaxTerms = int(mt)
			}
		}
	}
	return &EstimationExperiment{
		setting:           setting,
		experimentData:    ed,
		experimentContext: ec,
		terms:             make([]operatorTerm, 0),
		countsList:        make([]core.Counts, 0),
		finished:          false,
	}
}

func (e *EstimationExperiment) PreProcess() {
	if err := e.preProcessImpl(); err != nil {
		zap.L().Error(fmt.Sprintf("failed to pre-process an experiment(%s). Reason:%s",
			e.ExperimentData().ID, err.Error()))
		core.SetFailureWithError(e, err)
		e.finished = true
		return
	}
	e.ExperimentData().Status = core.READY
}

func (e *EstimationExperiment) preProcessImpl() (err error) {
	err = nil
	ed := e.ExperimentData()
	container := core.GetSystemComponents().Container
	err = container.Invoke(
		func(d *core.MemoryStore) error {
			return d.Insert(e)
		})
	if err != nil {
		zap.L().Error(fmt.Sprintf("failed to register an experiment(%s). Reason:%s",
			ed.ID, err.Error()))
		return
	}
	terms, err := parseOperators(ed.OperatorsRaw)
	if err != nil {
		zap.L().Error(fmt.Sprintf("failed to parse operators of an experiment(%s). Reason:%s",
			ed.ID, err.Error()))
		return
	}
	if err = validateTerms(terms, ed.Circuit, e.setting.MaxTerms); err != nil {
		return
	}
	e.terms = terms
	if !ed.SeedFixed {
		ed.Seed = time.Now().UnixNano()
		ed.SeedFixed = true
	}
	return
}

func (e *EstimationExperiment) Process() {
	ed := e.ExperimentData()
	if ed.Status == core.FAILED {
		return
	}
	ed.Status = core.RUNNING
	c := core.GetSystemComponents().Container
	for i, t := range e.terms {
		if !t.hasSupport() {
			// Identity term: nothing to measure.
			e.countsList = append(e.countsList, nil)
			continue
		}
		circ := measurementCircuit(ed.Circuit, t)
		var result *core.Result
		err := c.Invoke(
			func(f core.BackendFactory, m *noise.Model, conf *core.Conf) error {
				var err error
				result, err = engine.RunShots(context.Background(), engine.RunSpec{
					Circuit: circ,
					Shots:   ed.Shots,
					Seed:    termSeed(uint64(ed.Seed), i),
					Threads: conf.Threads,
					Model:   m,
					NewState: func() (core.QuantumState, error) {
						return f.New(ed.Backend, circ.Qubits)
					},
				})
				return err
			})
		if err != nil {
			zap.L().Error(fmt.Sprintf("failed to run term %d of experiment(%s). Reason:%s",
				i, ed.ID, err.Error()))
			core.SetFailureWithError(e, err)
			e.finished = true
			return
		}
		e.countsList = append(e.countsList, result.Counts)
	}
	zap.L().Debug(fmt.Sprintf("collected counts for %d terms of experiment(%s)",
		len(e.terms), ed.ID))
}

func (e *EstimationExperiment) PostProcess() {
	e.finished = true
	ed := e.ExperimentData()
	if ed.Status == core.FAILED {
		return
	}
	expValue, stds, err := postProcessCounts(e.terms, e.countsList)
	if err != nil {
		zap.L().Error(fmt.Sprintf("failed to post-process an experiment(%s). Reason:%s",
			ed.ID, err.Error()))
		core.SetFailureWithError(e, err)
		return
	}
	ed.Result.Estimation = &core.Estimation{
		ExpValue: expValue,
		Stds:     stds,
	}
	zap.L().Debug(fmt.Sprintf("exp_value:%f, stds:%f", expValue, stds))
	ed.Status = core.SUCCEEDED
	core.MarkEnded(ed)
	c := core.GetSystemComponents().Container
	err = c.Invoke(
		func(w core.ResultWriter) error {
			return w.Write(e)
		})
	if err != nil {
		zap.L().Error(fmt.Sprintf("failed to write the result of an experiment(%s). Reason:%s",
			ed.ID, err.Error()))
	}
}

func (e *EstimationExperiment) IsFinished() bool {
	return e.finished
}

func (e *EstimationExperiment) ExperimentData() *core.ExperimentData {
	return e.experimentData
}

func (e *EstimationExperiment) ExperimentType() string {
	return ESTIMATION_EXPERIMENT
}

func (e *EstimationExperiment) ExperimentContext() *core.ExperimentContext {
	return e.experimentContext
}

func (e *EstimationExperiment) Clone() core.Experiment {
	cloned := &EstimationExperiment{
		setting:           e.setting,
		experimentData:    e.experimentData.Clone(),
		experimentContext: e.experimentContext,
	}
	return cloned
}

func (t operatorTerm) hasSupport() bool {
	for _, c := range t.pauli {
		if c != 'I' {
			return true
		}
	}
	return false
}

// parseOperators decodes [{"pauli":"XZI","coeff":1.5}, ...].
func parseOperators(raw jx.Raw) ([]operatorTerm, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("operators payload is empty")
	}
	d := jx.DecodeBytes(raw)
	terms := []operatorTerm{}
	err := d.Arr(func(d *jx.Decoder) error {
		var t operatorTerm
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "pauli":
				s, err := d.Str()
				t.pauli = strings.ToUpper(s)
				return err
			case "coeff":
				f, err := d.Float64()
				t.coeff = f
				return err
			default:
				return d.Skip()
			}
		}); err != nil {
			return err
		}
		terms = append(terms, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return terms, nil
}

func validateTerms(terms []operatorTerm, circ *core.Circuit, maxTerms int) error {
	if len(terms) == 0 {
		return fmt.Errorf("operator has no terms")
	}
	if len(terms) > maxTerms {
		return fmt.Errorf("operator has %d terms, over the limit(%d)", len(terms), maxTerms)
	}
	for _, inst := range circ.Instructions {
		if inst.Op == core.OpMeasure {
			return fmt.Errorf("estimation circuit must not contain measurements")
		}
	}
	for _, t := range terms {
		if len(t.pauli) != circ.Qubits {
			return fmt.Errorf("pauli %q does not cover %d qubits", t.pauli, circ.Qubits)
		}
		for _, c := range t.pauli {
			switch c {
			case 'I', 'X', 'Y', 'Z':
			default:
				return fmt.Errorf("pauli %q has unknown operator %q", t.pauli, c)
			}
		}
	}
	return nil
}

// measurementCircuit appends the basis change of one term and the
// measurement of its support. Pauli characters run most significant
// qubit first, so character i addresses qubit Qubits-1-i.
func measurementCircuit(circ *core.Circuit, t operatorTerm) *core.Circuit {
	insts := make([]core.Instruction, len(circ.Instructions), len(circ.Instructions)+2*len(t.pauli))
	copy(insts, circ.Instructions)
	support := []int{}
	for i, p := range t.pauli {
		q := circ.Qubits - 1 - i
		switch p {
		case 'X':
			insts = append(insts, core.Instruction{Op: core.OpUnitary, Name: "h", Qubits: []int{q}})
		case 'Y':
			insts = append(insts,
				core.Instruction{Op: core.OpUnitary, Name: "sdg", Qubits: []int{q}},
				core.Instruction{Op: core.OpUnitary, Name: "h", Qubits: []int{q}})
		case 'I':
			continue
		}
		support = append(support, q)
	}
	clbits := make([]int, len(support))
	for i := range support {
		clbits[i] = i
	}
	insts = append(insts, core.Instruction{Op: core.OpMeasure, Qubits: support, Clbits: clbits})
	return &core.Circuit{
		Qubits:       circ.Qubits,
		Clbits:       len(support),
		Instructions: insts,
	}
}

// postProcessCounts turns per-term counts into the estimator mean and
// its standard deviation. Each measured bitstring contributes the
// parity sign of its support bits.
func postProcessCounts(terms []operatorTerm, countsList []core.Counts) (expValue float32, stds float32, err error) {
	if len(terms) != len(countsList) {
		return 0, 0, fmt.Errorf("got counts for %d of %d terms", len(countsList), len(terms))
	}
	var mean, variance float64
	for i, t := range terms {
		if !t.hasSupport() {
			mean += t.coeff
			continue
		}
		counts := countsList[i]
		total := float64(counts.Total())
		if total == 0 {
			return 0, 0, fmt.Errorf("term %d has no successful shots", i)
		}
		var signed float64
		for bits, n := range counts {
			if parity(bits) == 0 {
				signed += float64(n)
			} else {
				signed -= float64(n)
			}
		}
		m := signed / total
		mean += t.coeff * m
		// Sample variance of a +-1 estimator mean.
		variance += t.coeff * t.coeff * (1 - m*m) / total
	}
	return float32(mean), float32(math.Sqrt(variance)), nil
}

func parity(bits string) int {
	p := 0
	for _, c := range bits {
		if c == '1' {
			p ^= 1
		}
	}
	return p
}

func termSeed(base uint64, term int) uint64 {
	return base + (uint64(term)+1)*0xd1342543de82ef95
}
