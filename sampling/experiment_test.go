//go:build unit
// +build unit

package sampling

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oqtopus-team/localsim/backend"
	"github.com/oqtopus-team/localsim/core"
	"github.com/oqtopus-team/localsim/noise"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"
)

// scWithRealBackend wires the real backend factory so Process runs
// actual shots.
func scWithRealBackend(t *testing.T) *core.SystemComponents {
	t.Helper()
	return scWithNoiseModel(t, &noise.Model{})
}

func scWithNoiseModel(t *testing.T, m *noise.Model) *core.SystemComponents {
	t.Helper()
	c := dig.New()
	conf := &core.Conf{MaxQubits: 20, MaxShots: 100000, QueueMaxSize: 100}
	require.Nil(t, c.Provide(func() *core.Conf { return conf }))
	require.Nil(t, c.Provide(func() core.BackendFactory { return &backend.Factory{} }))
	require.Nil(t, c.Provide(func() core.Scheduler { return &core.UnimplementedScheduler{} }))
	require.Nil(t, c.Provide(func() core.ResultWriter { return &core.UnimplementedResultWriter{} }))
	require.Nil(t, c.Provide(func() *core.MemoryStore { return &core.MemoryStore{} }))
	require.Nil(t, c.Provide(func() *noise.Model { return m }))
	s := core.NewSystemComponents(c)
	require.Nil(t, s.Setup(conf))
	return s
}

func newSamplingExperiment(t *testing.T, circ *core.Circuit, shots int, seed int64) *SamplingExperiment {
	t.Helper()
	ed := core.NewExperimentData()
	ed.ID = uuid.NewString()
	ed.Circuit = circ
	ed.Shots = shots
	ed.Seed = seed
	ed.SeedFixed = true
	ed.ExperimentType = core.SAMPLING_EXPERIMENT
	ec, err := core.NewExperimentContext()
	require.Nil(t, err)
	u := &SamplingExperiment{}
	return u.New(ed, ec).(*SamplingExperiment)
}

func bellCircuit() *core.Circuit {
	return &core.Circuit{
		Qubits: 2,
		Clbits: 2,
		Instructions: []core.Instruction{
			{Op: core.OpUnitary, Name: "h", Qubits: []int{0}},
			{Op: core.OpUnitary, Name: "cx", Qubits: []int{0, 1}},
			{Op: core.OpMeasure, Qubits: []int{0, 1}, Clbits: []int{0, 1}},
		},
	}
}

func TestSamplingExperimentLifecycle(t *testing.T) {
	s := scWithRealBackend(t)
	defer s.TearDown()

	e := newSamplingExperiment(t, bellCircuit(), 200, 11)
	e.PreProcess()
	require.Equal(t, core.READY, e.ExperimentData().Status)
	assert.False(t, e.IsFinished())

	e.Process()
	require.Equal(t, core.SUCCEEDED, e.ExperimentData().Status)
	assert.True(t, e.IsFinished())

	result := e.ExperimentData().Result
	assert.Equal(t, uint32(200), result.Counts.Total())
	for memory := range result.Counts {
		assert.Contains(t, []string{"00", "11"}, memory)
	}
	assert.Equal(t, 0, result.ShotFailures)

	e.PostProcess()
	assert.False(t, time.Time(e.ExperimentData().Ended).IsZero())
}

func TestSamplingIdentityCircuitCountsGroundState(t *testing.T) {
	s := scWithRealBackend(t)
	defer s.TearDown()

	circ := &core.Circuit{
		Qubits:       3,
		Instructions: []core.Instruction{{Op: core.OpUnitary, Name: "id", Qubits: []int{0}}},
	}
	e := newSamplingExperiment(t, circ, 100, 5)
	e.PreProcess()
	e.Process()
	require.Equal(t, core.SUCCEEDED, e.ExperimentData().Status)
	assert.Equal(t, core.Counts{"000": 100}, e.ExperimentData().Result.Counts)
}

func TestSamplingIsDeterministicForFixedSeed(t *testing.T) {
	s := scWithRealBackend(t)
	defer s.TearDown()

	run := func() core.Counts {
		e := newSamplingExperiment(t, bellCircuit(), 100, 777)
		e.PreProcess()
		require.Equal(t, core.READY, e.ExperimentData().Status)
		e.Process()
		require.Equal(t, core.SUCCEEDED, e.ExperimentData().Status)
		return e.ExperimentData().Result.Counts
	}
	assert.Equal(t, run(), run())
}

func TestSamplingDerivesSeedWhenNotFixed(t *testing.T) {
	s := scWithRealBackend(t)
	defer s.TearDown()

	e := newSamplingExperiment(t, bellCircuit(), 10, 0)
	e.ExperimentData().SeedFixed = false
	e.PreProcess()
	require.Equal(t, core.READY, e.ExperimentData().Status)
	assert.True(t, e.ExperimentData().SeedFixed)
	assert.NotZero(t, e.ExperimentData().Seed)
}

func TestSamplingDuplicateIDFailsPreProcess(t *testing.T) {
	s := scWithRealBackend(t)
	defer s.TearDown()

	first := newSamplingExperiment(t, bellCircuit(), 10, 1)
	first.PreProcess()
	require.Equal(t, core.READY, first.ExperimentData().Status)

	second := newSamplingExperiment(t, bellCircuit(), 10, 1)
	second.ExperimentData().ID = first.ExperimentData().ID
	second.PreProcess()
	assert.Equal(t, core.FAILED, second.ExperimentData().Status)
	assert.Contains(t, second.ExperimentData().Result.Message, "already used")
}

func TestSamplingUnsupportedOperationFailsEveryShot(t *testing.T) {
	s := scWithRealBackend(t)
	defer s.TearDown()

	e := newSamplingExperiment(t, bellCircuit(), 10, 1)
	e.ExperimentData().Backend = backend.UnitaryBackend
	e.PreProcess()
	require.Equal(t, core.READY, e.ExperimentData().Status)
	e.Process()
	assert.Equal(t, core.FAILED, e.ExperimentData().Status)
	assert.Equal(t, 10, e.ExperimentData().Result.ShotFailures)
	assert.Contains(t, e.ExperimentData().Result.Message, "not supported")
}

func TestSamplingPartialShotFailuresAreNotSuccess(t *testing.T) {
	m := &noise.Model{
		Channels: map[string]noise.Channel{
			"x": {Type: noise.AmplitudeDamping, Gamma: 0.1},
		},
	}
	s := scWithNoiseModel(t, m)
	defer s.TearDown()

	// The corrective x fires only on shots that measured 1, and its
	// damping channel has no pure-state realization, so those shots
	// fail while the rest complete.
	circ := &core.Circuit{
		Qubits: 1,
		Clbits: 1,
		Instructions: []core.Instruction{
			{Op: core.OpUnitary, Name: "h", Qubits: []int{0}},
			{Op: core.OpMeasure, Qubits: []int{0}, Clbits: []int{0}},
			{Op: core.OpUnitary, Name: "x", Qubits: []int{0},
				Conditional: &core.Conditional{Mask: 1, Value: 1}},
		},
	}
	e := newSamplingExperiment(t, circ, 60, 7)
	e.PreProcess()
	require.Equal(t, core.READY, e.ExperimentData().Status)
	e.Process()

	result := e.ExperimentData().Result
	require.Greater(t, result.ShotFailures, 0)
	require.Less(t, result.ShotFailures, 60)
	assert.Equal(t, core.FAILED, e.ExperimentData().Status)
	assert.Equal(t, uint32(60-result.ShotFailures), result.Counts.Total())
	assert.Contains(t, result.Message, "not supported")
}

func TestSamplingCloneDetachesData(t *testing.T) {
	s := scWithRealBackend(t)
	defer s.TearDown()

	e := newSamplingExperiment(t, bellCircuit(), 10, 1)
	cloned := e.Clone()
	assert.False(t, cloned == core.Experiment(e))
	assert.False(t, cloned.ExperimentData() == e.ExperimentData())
	assert.Equal(t, e.ExperimentData().ID, cloned.ExperimentData().ID)

	e.ExperimentData().Status = core.RUNNING
	cloned.ExperimentData().Status = core.SUCCEEDED
	assert.NotEqual(t, e.ExperimentData().Status, cloned.ExperimentData().Status)
}
