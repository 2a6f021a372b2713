//go:build unit
// +build unit

package estimation

import (
	"testing"

	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/oqtopus-team/localsim/backend"
	"github.com/oqtopus-team/localsim/core"
	"github.com/oqtopus-team/localsim/noise"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"
)

func scWithRealBackend(t *testing.T) *core.SystemComponents {
	t.Helper()
	c := dig.New()
	conf := &core.Conf{MaxQubits: 20, MaxShots: 100000, QueueMaxSize: 100}
	require.Nil(t, c.Provide(func() *core.Conf { return conf }))
	require.Nil(t, c.Provide(func() core.BackendFactory { return &backend.Factory{} }))
	require.Nil(t, c.Provide(func() core.Scheduler { return &core.UnimplementedScheduler{} }))
	require.Nil(t, c.Provide(func() core.ResultWriter { return &core.UnimplementedResultWriter{} }))
	require.Nil(t, c.Provide(func() *core.MemoryStore { return &core.MemoryStore{} }))
	require.Nil(t, c.Provide(func() *noise.Model { return &noise.Model{} }))
	s := core.NewSystemComponents(c)
	require.Nil(t, s.Setup(conf))
	return s
}

func newEstimationExperiment(t *testing.T, circ *core.Circuit, operators string, shots int) *EstimationExperiment {
	t.Helper()
	ed := core.NewExperimentData()
	ed.ID = uuid.NewString()
	ed.Circuit = circ
	ed.Shots = shots
	ed.Seed = 17
	ed.SeedFixed = true
	ed.OperatorsRaw = jx.Raw(operators)
	ed.ExperimentType = ESTIMATION_EXPERIMENT
	ec, err := core.NewExperimentContext()
	require.Nil(t, err)
	u := &EstimationExperiment{}
	return u.New(ed, ec).(*EstimationExperiment)
}

func TestParseOperators(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		want      []operatorTerm
		wantError bool
	}{
		{
			name: "single term",
			raw:  `[{"pauli":"ZZ","coeff":1.5}]`,
			want: []operatorTerm{{pauli: "ZZ", coeff: 1.5}},
		},
		{
			name: "lower case pauli",
			raw:  `[{"pauli":"xyz","coeff":-0.5}]`,
			want: []operatorTerm{{pauli: "XYZ", coeff: -0.5}},
		},
		{
			name: "unknown keys are skipped",
			raw:  `[{"pauli":"X","coeff":2,"label":"ignored"}]`,
			want: []operatorTerm{{pauli: "X", coeff: 2}},
		},
		{
			name: "multiple terms",
			raw:  `[{"pauli":"IZ","coeff":0.5},{"pauli":"ZI","coeff":0.5}]`,
			want: []operatorTerm{{pauli: "IZ", coeff: 0.5}, {pauli: "ZI", coeff: 0.5}},
		},
		{
			name:      "empty payload",
			raw:       "",
			wantError: true,
		},
		{
			name:      "broken json",
			raw:       `[{"pauli":`,
			wantError: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseOperators(jx.Raw(tt.raw))
			if tt.wantError {
				assert.NotNil(t, err)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateTerms(t *testing.T) {
	circ := &core.Circuit{Qubits: 2}
	tests := []struct {
		name      string
		terms     []operatorTerm
		circuit   *core.Circuit
		maxTerms  int
		wantError string
	}{
		{
			name:     "valid",
			terms:    []operatorTerm{{pauli: "ZZ", coeff: 1}},
			circuit:  circ,
			maxTerms: 10,
		},
		{
			name:      "no terms",
			terms:     nil,
			circuit:   circ,
			maxTerms:  10,
			wantError: "no terms",
		},
		{
			name:      "over the term limit",
			terms:     []operatorTerm{{pauli: "ZZ"}, {pauli: "XX"}},
			circuit:   circ,
			maxTerms:  1,
			wantError: "over the limit(1)",
		},
		{
			name:  "measurement in circuit",
			terms: []operatorTerm{{pauli: "ZZ"}},
			circuit: &core.Circuit{
				Qubits: 2,
				Clbits: 2,
				Instructions: []core.Instruction{
					{Op: core.OpMeasure, Qubits: []int{0}, Clbits: []int{0}},
				},
			},
			maxTerms:  10,
			wantError: "must not contain measurements",
		},
		{
			name:      "pauli too short",
			terms:     []operatorTerm{{pauli: "Z"}},
			circuit:   circ,
			maxTerms:  10,
			wantError: "does not cover 2 qubits",
		},
		{
			name:      "unknown pauli character",
			terms:     []operatorTerm{{pauli: "ZQ"}},
			circuit:   circ,
			maxTerms:  10,
			wantError: "unknown operator",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTerms(tt.terms, tt.circuit, tt.maxTerms)
			if tt.wantError == "" {
				assert.Nil(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantError)
			}
		})
	}
}

func TestMeasurementCircuit(t *testing.T) {
	base := &core.Circuit{
		Qubits: 3,
		Instructions: []core.Instruction{
			{Op: core.OpUnitary, Name: "h", Qubits: []int{0}},
		},
	}
	// Character i addresses qubit Qubits-1-i: Y on qubit 2, X on
	// qubit 1, I leaves qubit 0 out of the support.
	circ := measurementCircuit(base, operatorTerm{pauli: "YXI", coeff: 1})

	require.Len(t, circ.Instructions, 5)
	assert.Equal(t, base.Instructions[0], circ.Instructions[0])
	assert.Equal(t, core.Instruction{Op: core.OpUnitary, Name: "sdg", Qubits: []int{2}}, circ.Instructions[1])
	assert.Equal(t, core.Instruction{Op: core.OpUnitary, Name: "h", Qubits: []int{2}}, circ.Instructions[2])
	assert.Equal(t, core.Instruction{Op: core.OpUnitary, Name: "h", Qubits: []int{1}}, circ.Instructions[3])
	assert.Equal(t, core.Instruction{Op: core.OpMeasure, Qubits: []int{2, 1}, Clbits: []int{0, 1}}, circ.Instructions[4])
	assert.Equal(t, 2, circ.Clbits)
	assert.Equal(t, 3, circ.Qubits)

	// The base circuit must stay untouched.
	assert.Len(t, base.Instructions, 1)
}

func TestPostProcessCounts(t *testing.T) {
	tests := []struct {
		name       string
		terms      []operatorTerm
		countsList []core.Counts
		wantExp    float32
		wantStds   float32
		wantError  string
	}{
		{
			name:       "deterministic plus one",
			terms:      []operatorTerm{{pauli: "Z", coeff: 1}},
			countsList: []core.Counts{{"0": 1000}},
			wantExp:    1,
			wantStds:   0,
		},
		{
			name:       "deterministic minus one with coefficient",
			terms:      []operatorTerm{{pauli: "Z", coeff: 2.5}},
			countsList: []core.Counts{{"1": 1000}},
			wantExp:    -2.5,
			wantStds:   0,
		},
		{
			name:       "identity term contributes its coefficient",
			terms:      []operatorTerm{{pauli: "II", coeff: 1.5}},
			countsList: []core.Counts{nil},
			wantExp:    1.5,
			wantStds:   0,
		},
		{
			name: "mixed counts",
			terms: []operatorTerm{
				{pauli: "Z", coeff: 2},
			},
			countsList: []core.Counts{{"0": 600, "1": 400}},
			// m = 0.2, stds = sqrt(4 * (1 - 0.04) / 1000)
			wantExp:  0.4,
			wantStds: 0.0619677,
		},
		{
			name: "parity of multi-bit strings",
			terms: []operatorTerm{
				{pauli: "ZZ", coeff: 1},
			},
			countsList: []core.Counts{{"00": 500, "11": 500}},
			wantExp:    1,
			wantStds:   0,
		},
		{
			name:       "missing counts",
			terms:      []operatorTerm{{pauli: "Z", coeff: 1}},
			countsList: nil,
			wantError:  "got counts for 0 of 1 terms",
		},
		{
			name:       "no successful shots",
			terms:      []operatorTerm{{pauli: "Z", coeff: 1}},
			countsList: []core.Counts{{}},
			wantError:  "no successful shots",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp, stds, err := postProcessCounts(tt.terms, tt.countsList)
			if tt.wantError != "" {
				assert.ErrorContains(t, err, tt.wantError)
				return
			}
			require.Nil(t, err)
			assert.InDelta(t, tt.wantExp, exp, 1e-6)
			assert.InDelta(t, tt.wantStds, stds, 1e-6)
		})
	}
}

func TestParity(t *testing.T) {
	assert.Equal(t, 0, parity("00"))
	assert.Equal(t, 1, parity("01"))
	assert.Equal(t, 1, parity("10"))
	assert.Equal(t, 0, parity("11"))
	assert.Equal(t, 1, parity("111"))
}

func TestEstimationExperimentLifecycle(t *testing.T) {
	s := scWithRealBackend(t)
	defer s.TearDown()

	// <Z> of |1> is exactly -1, so the counts are deterministic and
	// the estimator has zero spread.
	circ := &core.Circuit{
		Qubits: 1,
		Instructions: []core.Instruction{
			{Op: core.OpUnitary, Name: "x", Qubits: []int{0}},
		},
	}
	e := newEstimationExperiment(t, circ, `[{"pauli":"Z","coeff":1.0}]`, 500)
	e.PreProcess()
	require.Equal(t, core.READY, e.ExperimentData().Status)
	assert.False(t, e.IsFinished())

	e.Process()
	e.PostProcess()
	require.Equal(t, core.SUCCEEDED, e.ExperimentData().Status)
	assert.True(t, e.IsFinished())

	est := e.ExperimentData().Result.Estimation
	require.NotNil(t, est)
	assert.InDelta(t, -1.0, est.ExpValue, 1e-6)
	assert.InDelta(t, 0.0, est.Stds, 1e-6)
}

func TestEstimationBellExpectation(t *testing.T) {
	s := scWithRealBackend(t)
	defer s.TearDown()

	circ := &core.Circuit{
		Qubits: 2,
		Instructions: []core.Instruction{
			{Op: core.OpUnitary, Name: "h", Qubits: []int{0}},
			{Op: core.OpUnitary, Name: "cx", Qubits: []int{0, 1}},
		},
	}
	// ZZ and XX both stabilize the Bell state, so every sampled parity
	// is even and the estimate is exact.
	e := newEstimationExperiment(t, circ, `[{"pauli":"ZZ","coeff":0.5},{"pauli":"XX","coeff":0.5}]`, 400)
	e.PreProcess()
	require.Equal(t, core.READY, e.ExperimentData().Status)
	e.Process()
	e.PostProcess()
	require.Equal(t, core.SUCCEEDED, e.ExperimentData().Status)

	est := e.ExperimentData().Result.Estimation
	require.NotNil(t, est)
	assert.InDelta(t, 1.0, est.ExpValue, 1e-6)
	assert.InDelta(t, 0.0, est.Stds, 1e-6)
}

func TestEstimationInvalidOperatorsFailPreProcess(t *testing.T) {
	s := scWithRealBackend(t)
	defer s.TearDown()

	circ := &core.Circuit{
		Qubits: 1,
		Instructions: []core.Instruction{
			{Op: core.OpUnitary, Name: "x", Qubits: []int{0}},
		},
	}
	e := newEstimationExperiment(t, circ, `[{"pauli":"ZZ","coeff":1.0}]`, 100)
	e.PreProcess()
	assert.Equal(t, core.FAILED, e.ExperimentData().Status)
	assert.True(t, e.IsFinished())
	assert.Contains(t, e.ExperimentData().Result.Message, "does not cover 1 qubits")
}

func TestEstimationSettingLimitsTerms(t *testing.T) {
	s := scWithRealBackend(t)
	defer s.TearDown()

	core.ResetSetting()
	core.RegisterSetting(ESTIMATION_SETTING_KEY, map[string]interface{}{"max_terms": int64(1)})
	defer core.ResetSetting()

	circ := &core.Circuit{
		Qubits: 1,
		Instructions: []core.Instruction{
			{Op: core.OpUnitary, Name: "x", Qubits: []int{0}},
		},
	}
	e := newEstimationExperiment(t, circ, `[{"pauli":"Z","coeff":1.0},{"pauli":"X","coeff":1.0}]`, 100)
	assert.Equal(t, 1, e.setting.MaxTerms)

	e.PreProcess()
	assert.Equal(t, core.FAILED, e.ExperimentData().Status)
	assert.Contains(t, e.ExperimentData().Result.Message, "over the limit(1)")
}

func TestNewEstimationSettingDefault(t *testing.T) {
	assert.Equal(t, DEFAULT_MAX_TERMS, NewEstimationSetting().MaxTerms)
}
