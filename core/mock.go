package core

import (
	"math/rand"

	"go.uber.org/dig"
)

const MockMaxQubits int = 10
const MockMaxShots int = 10000

type UnimplementedExperiment struct {
	experimentData    *ExperimentData
	experimentContext *ExperimentContext
}

func (e *UnimplementedExperiment) New(ed *ExperimentData, ec *ExperimentContext) Experiment {
	return &UnimplementedExperiment{
		experimentData:    ed,
		experimentContext: ec,
	}
}

func (e *UnimplementedExperiment) PreProcess() {
}

func (e *UnimplementedExperiment) Process() {
}

func (e *UnimplementedExperiment) PostProcess() {
}

func (e *UnimplementedExperiment) IsFinished() bool {
	return e.ExperimentData().Status == SUCCEEDED || e.ExperimentData().Status == FAILED
}

func (e *UnimplementedExperiment) ExperimentData() *ExperimentData {
	return e.experimentData
}

func (e *UnimplementedExperiment) ExperimentType() string {
	return e.experimentData.ExperimentType
}

func (e *UnimplementedExperiment) ExperimentContext() *ExperimentContext {
	return e.experimentContext
}

func (e *UnimplementedExperiment) Clone() Experiment {
	cloned := &UnimplementedExperiment{
		experimentData:    e.experimentData.Clone(),
		experimentContext: e.experimentContext,
	}
	return cloned
}

type UnimplementedState struct {
	qubits int
}

func (s *UnimplementedState) Initialize(qubits int) error {
	s.qubits = qubits
	return nil
}

func (s *UnimplementedState) Apply(*Instruction) error {
	return nil
}

func (s *UnimplementedState) Probabilities() ([]float64, error) {
	p := make([]float64, 1<<s.qubits)
	p[0] = 1.0
	return p, nil
}

func (s *UnimplementedState) Sample(*rand.Rand) uint64 {
	return 0
}

func (s *UnimplementedState) Measure(_ *rand.Rand, qubits []int) ([]int, error) {
	return make([]int, len(qubits)), nil
}

func (s *UnimplementedState) Reset(*rand.Rand, []int) error {
	return nil
}

func (s *UnimplementedState) Qubits() int {
	return s.qubits
}

func (s *UnimplementedState) Name() string {
	return "unimplemented"
}

type UnimplementedBackendFactory struct{}

func (f *UnimplementedBackendFactory) Setup(*Conf) error {
	return nil
}

func (f *UnimplementedBackendFactory) New(backendName string, qubits int) (QuantumState, error) {
	s := &UnimplementedState{}
	if err := s.Initialize(qubits); err != nil {
		return nil, err
	}
	return s, nil
}

func (f *UnimplementedBackendFactory) GetSimulatorInfo() *SimulatorInfo {
	return &SimulatorInfo{
		SimulatorName: "unimplementedSimulator",
		Backends:      []string{"statevector", "density_matrix", "stabilizer", "unitary"},
		MaxQubits:     MockMaxQubits,
		MaxShots:      MockMaxShots,
	}
}

type UnimplementedScheduler struct{}

func (s *UnimplementedScheduler) Setup(*Conf) error {
	return nil
}

func (s *UnimplementedScheduler) Start() error {
	return nil
}

func (s *UnimplementedScheduler) HandleExperiment(Experiment) {
}

func (s *UnimplementedScheduler) GetCurrentQueueSize() int {
	return 0
}

type UnimplementedResultWriter struct{}

func (w *UnimplementedResultWriter) Setup(*Conf) error {
	return nil
}

func (w *UnimplementedResultWriter) Write(Experiment) error {
	return nil
}

func (w *UnimplementedResultWriter) TearDown() {
}

// SCWithUnimplementedContainer wires a SystemComponents suitable for
// unit tests that never touch a real backend.
func SCWithUnimplementedContainer() *SystemComponents {
	return SCWithScheduler(&UnimplementedScheduler{})
}

// SCWithScheduler wires a SystemComponents around the given scheduler,
// keeping every other component unimplemented.
func SCWithScheduler(sc Scheduler) *SystemComponents {
	c := dig.New()
	conf := &Conf{QueueMaxSize: 1000}
	if err := c.Provide(func() *Conf { return conf }); err != nil {
		panic(err)
	}
	if err := c.Provide(func() BackendFactory { return &UnimplementedBackendFactory{} }); err != nil {
		panic(err)
	}
	if err := c.Provide(func() Scheduler { return sc }); err != nil {
		panic(err)
	}
	if err := c.Provide(func() ResultWriter { return &UnimplementedResultWriter{} }); err != nil {
		panic(err)
	}
	if err := c.Provide(func() *MemoryStore { return &MemoryStore{} }); err != nil {
		panic(err)
	}
	s := NewSystemComponents(c)
	if err := s.Setup(conf); err != nil {
		panic(err)
	}
	return s
}
