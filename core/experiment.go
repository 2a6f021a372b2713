package core

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/go-faster/jx"
	"github.com/go-openapi/strfmt"
	"go.uber.org/zap"
)

var ErrorExperimentIDConflict = errors.New("experiment ID is already used")
var experimentManager *ExperimentManager

const SAMPLING_EXPERIMENT = "sampling"

type Experiment interface {
	// Experiment Control
	New(*ExperimentData, *ExperimentContext) Experiment
	PreProcess()
	Process()
	PostProcess()
	IsFinished() bool

	// Data Access
	ExperimentData() *ExperimentData
	ExperimentType() string
	ExperimentContext() *ExperimentContext
	Clone() Experiment
}

type ExperimentContext struct {
	*Channels
}

func NewExperimentContext() (*ExperimentContext, error) {
	s := GetSystemComponents()
	if s == nil {
		return nil, fmt.Errorf("system components is not initialized")
	}
	c := s.Channels
	if c == nil {
		return nil, fmt.Errorf("channels is not initialized")
	}
	return &ExperimentContext{
		Channels: GetSystemComponents().Channels,
	}, nil
}

type ExperimentParam struct {
	ExperimentID   string
	Circuit        *Circuit
	Shots          int
	Backend        string
	Seed           int64
	SeedFixed      bool
	IncludeMemory  bool
	OperatorsRaw   jx.Raw
	ExperimentType string
}

// factory pattern
type ExperimentManager struct {
	acceptableExperiments []Experiment // empty experiments
}

func (m *ExperimentManager) RegisterExperiment(experiments ...Experiment) error {
	for _, e := range experiments {
		for _, t := range m.acceptableExperiments {
			if reflect.TypeOf(t) == reflect.TypeOf(e) {
				return fmt.Errorf("experiment:%s is already registered", e.ExperimentType())
			}
		}
		zap.L().Debug(fmt.Sprintf("registering experiment type %s", e.ExperimentType()))
		m.acceptableExperiments = append(m.acceptableExperiments, e)
	}
	return nil
}

func (m *ExperimentManager) AcceptableExperimentTypes() []string {
	types := []string{}
	for _, e := range m.acceptableExperiments {
		types = append(types, e.ExperimentType())
	}
	return types
}

func (m *ExperimentManager) NewExperimentWithValidation(param *ExperimentParam, ec *ExperimentContext) (Experiment, error) {
	if param.ExperimentType == "" { // default experiment type
		param.ExperimentType = SAMPLING_EXPERIMENT
	}
	if err := validateExperimentParam(param); err != nil {
		zap.L().Info(fmt.Sprintf("failed to validate experiment param. Reason:%s", err.Error()))
		return nil, err
	}
	return m.NewExperiment(param, ec)
}

func (m *ExperimentManager) NewExperiment(param *ExperimentParam, ec *ExperimentContext) (Experiment, error) {
	ed := NewExperimentData()
	ed.ID = param.ExperimentID
	ed.Circuit = param.Circuit
	ed.Shots = param.Shots
	ed.Backend = param.Backend
	ed.Seed = param.Seed
	ed.SeedFixed = param.SeedFixed
	ed.IncludeMemory = param.IncludeMemory
	ed.OperatorsRaw = param.OperatorsRaw
	ed.ExperimentType = param.ExperimentType
	return m.NewExperimentFromData(ed, ec)
}

func (m *ExperimentManager) NewExperimentFromData(ed *ExperimentData, ec *ExperimentContext) (Experiment, error) {
	if ed.ExperimentType == "" { // default experiment type
		ed.ExperimentType = SAMPLING_EXPERIMENT
	}
	zap.L().Debug(fmt.Sprintf("creating an experiment from data. ID:%s, Type:%s", ed.ID, ed.ExperimentType))
	for _, e := range m.acceptableExperiments {
		if e.ExperimentType() == ed.ExperimentType {
			// create a new experiment instance
			t := reflect.TypeOf(e)
			newInstance := reflect.New(t).Elem().Interface()
			experiment := newInstance.(Experiment).New(ed, ec)
			return experiment, nil
		}
	}
	return nil, fmt.Errorf("experiment type %s is not registered", ed.ExperimentType)
}

func validateExperimentParam(p *ExperimentParam) (err error) {
	err = nil
	if p.ExperimentID == "" {
		return fmt.Errorf("experiment ID is empty")
	}
	if p.Circuit == nil {
		return fmt.Errorf("experiment has no circuit")
	}
	if p.Shots <= 0 {
		msg := fmt.Sprintf("shots(%d) must be greater than 0", p.Shots)
		zap.L().Info(msg + fmt.Sprintf("/experimentID:%s", p.ExperimentID))
		return errors.New(msg)
	}
	info := GetSystemComponents().GetSimulatorInfo()
	if p.Shots > info.MaxShots {
		msg := fmt.Sprintf("shots(%d) is over the limit(%d)", p.Shots, info.MaxShots)
		zap.L().Info(msg + fmt.Sprintf("/experimentID:%s", p.ExperimentID))
		return errors.New(msg)
	}
	if p.Backend != "" && !containsBackend(info.Backends, p.Backend) {
		msg := fmt.Sprintf("backend %s is not acceptable", p.Backend)
		zap.L().Info(msg + fmt.Sprintf("/experimentID:%s", p.ExperimentID))
		return errors.New(msg)
	}
	// Fail fast on structural circuit defects, before any shot runs.
	if err := p.Circuit.Validate(); err != nil {
		zap.L().Info(fmt.Sprintf("invalid circuit/experimentID:%s/reason:%s", p.ExperimentID, err.Error()))
		return err
	}
	return
}

func containsBackend(backends []string, name string) bool {
	for _, b := range backends {
		if b == name {
			return true
		}
	}
	return false
}

func NewExperimentManager(experiments ...Experiment) (*ExperimentManager, error) {
	m := &ExperimentManager{}
	for _, e := range experiments {
		zap.L().Debug(fmt.Sprintf("registering experiment type %s", e.ExperimentType()))
		if err := m.RegisterExperiment(e); err != nil {
			return nil, err
		}
	}
	experimentManager = m
	return m, nil
}

func GetExperimentManager() *ExperimentManager {
	return experimentManager
}

func SetFailureWithError(e Experiment, err error) (msg string) {
	ed := e.ExperimentData()
	return SetFailureWithErrorToExperimentData(ed, err)
}

func MarkEnded(ed *ExperimentData) {
	ed.Ended = strfmt.DateTime(time.Now())
}
