package core

import (
	"fmt"
	"math/rand"

	"go.uber.org/dig"
	"go.uber.org/zap"
)

var systemComponents *SystemComponents

type ResultChan chan Experiment

type Channels struct {
	ResultChan
	// when more channel is needed, add here
}

func NewChannels() *Channels {
	return &Channels{
		ResultChan: make(ResultChan),
	}
}

func (c *Channels) Close() {
	close(c.ResultChan)
}

func (c *Channels) Check() error {
	if c.ResultChan == nil {
		return fmt.Errorf("ResultChan is nil")
	}
	return nil
}

// SimulatorInfo describes the bounds the selected backend set can
// honor. Experiment validation checks requests against it.
type SimulatorInfo struct {
	SimulatorName string   `json:"simulator_name"`
	Backends      []string `json:"backends"`
	MaxQubits     int      `json:"max_qubits"`
	MaxShots      int      `json:"max_shots"`
}

// QuantumState is the operation-application contract every backend
// encoding implements. A state is owned by exactly one in-flight shot.
type QuantumState interface {
	Initialize(qubits int) error
	Apply(inst *Instruction) error
	Probabilities() ([]float64, error)
	Sample(rng *rand.Rand) uint64
	Measure(rng *rand.Rand, qubits []int) ([]int, error)
	Reset(rng *rand.Rand, qubits []int) error
	Qubits() int
	Name() string
}

// ExpectationValuer is implemented by backends that can evaluate a
// weighted Pauli operator without mutating the state.
type ExpectationValuer interface {
	ExpectationValue(terms []PauliTerm, qubits []int) (float64, error)
}

// StatevectorReader is implemented by backends that expose the raw
// amplitude array for statevector snapshots.
type StatevectorReader interface {
	StatevectorCopy() []complex128
}

type BackendFactory interface {
	Setup(*Conf) error
	New(backendName string, qubits int) (QuantumState, error)
	GetSimulatorInfo() *SimulatorInfo
}

type Scheduler interface {
	Setup(*Conf) error
	Start() error
	HandleExperiment(Experiment)
	GetCurrentQueueSize() int
}

type ResultWriter interface {
	Setup(*Conf) error
	Write(Experiment) error
	TearDown()
}

type SystemComponents struct {
	*dig.Container
	*Channels
}

func NewSystemComponents(con *dig.Container) *SystemComponents {
	return &SystemComponents{
		con,
		NewChannels(),
	}
}

func GetSystemComponents() *SystemComponents {
	return systemComponents
}

func (s *SystemComponents) Setup(conf *Conf) error {
	zap.L().Debug("Setting up backend factory")
	var err error
	err = s.Invoke(
		func(f BackendFactory) error {
			return f.Setup(conf)
		})
	if err != nil {
		return err
	}

	zap.L().Debug("Setting up scheduler")
	err = s.Invoke(
		func(sc Scheduler) error {
			return sc.Setup(conf)
		})
	if err != nil {
		return err
	}

	zap.L().Debug("Setting up result writer")
	err = s.Invoke(
		func(w ResultWriter) error {
			return w.Setup(conf)
		})
	if err != nil {
		return err
	}

	zap.L().Debug("Setting up memory store")
	err = s.Invoke(
		func(d *MemoryStore) error {
			return d.Setup(s.ResultChan, conf)
		})
	if err != nil {
		return err
	}
	systemComponents = s
	return nil
}

func (s *SystemComponents) TearDown() {
	_ = s.Invoke(
		func(w ResultWriter) {
			w.TearDown()
		})
	s.Channels.Close()
}

func (s *SystemComponents) StartContainer() error {
	return s.Container.Invoke(
		func(sc Scheduler) error {
			return sc.Start()
		})
}

func (s *SystemComponents) GetSimulatorInfo() *SimulatorInfo {
	var info *SimulatorInfo
	s.Invoke(
		func(f BackendFactory) error {
			info = f.GetSimulatorInfo()
			return nil
		})
	return info
}

func (s *SystemComponents) GetCurrentQueueSize() int {
	var size int
	s.Invoke(
		func(sc Scheduler) {
			size = sc.GetCurrentQueueSize()
		})
	return size
}
