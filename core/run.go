package core

import (
	"context"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/oklog/run"
	"github.com/oqtopus-team/localsim/common"
	"go.uber.org/zap"
)

var runContext *RunContext

const (
	PERIODIC_TASKS     = "periodic_tasks"
	EXPERIMENT_SERVERS = "experiment_servers"
)

type PeriodicTaskImplMap map[string]PeriodicTaskImpl
type ExperimentServerImplMap map[string]ExperimentServerImpl

type PeriodicTaskMap map[string]*PeriodicTask
type ExperimentServerMap map[string]*ExperimentServer

type ImplMaps struct {
	PeriodicTaskImplMap     PeriodicTaskImplMap
	ExperimentServerImplMap ExperimentServerImplMap
}

type Runner interface {
	*PeriodicTask | *ExperimentServer
	GetParams() interface{}
}

type RunnerImpl interface {
	GetEmptyParams() interface{}
	SetParams(interface{}) error
	Setup() error
}

// RunContext owns the process lifecycle: every long-running piece is
// an actor in the oklog run group, torn down together.
type RunContext struct {
	*run.Group
	context.Context

	settingsPath string

	RunGroupMaps *RunGroupMaps `toml:"run_group,omitempty"`
}

type RungroupSetting struct {
	Entries map[string]interface{} `toml:"run_group,omitempty"`
}

func NewGroupSettings() *RungroupSetting {
	return &RungroupSetting{
		Entries: make(map[string]interface{}),
	}
}

type RunGroupMaps struct {
	PeriodicTasks     PeriodicTaskMap     `toml:"periodic_tasks"`
	ExperimentServers ExperimentServerMap `toml:"experiment_servers"`
}

func parseRunGroupSettings(settings map[string]interface{}, im *ImplMaps) (*RunGroupMaps, error) {
	rgm := &RunGroupMaps{
		PeriodicTasks:     make(PeriodicTaskMap),
		ExperimentServers: make(ExperimentServerMap),
	}
	for group, value := range settings {
		switch group {
		case PERIODIC_TASKS:
			zap.L().Debug(fmt.Sprintf("PeriodicTasks: %v", value))
			ptm, err := parseRunnerSettings[*PeriodicTask, PeriodicTaskImpl](value.(map[string]interface{}), im.PeriodicTaskImplMap)
			if err != nil {
				zap.L().Error(fmt.Sprintf("Failed to parse periodic tasks settings. Reason:%s", err))
				return nil, err
			}
			rgm.PeriodicTasks = ptm
		case EXPERIMENT_SERVERS:
			zap.L().Debug(fmt.Sprintf("ExperimentServers: %v", value))
			esm, err := parseRunnerSettings[*ExperimentServer, ExperimentServerImpl](value.(map[string]interface{}), im.ExperimentServerImplMap)
			if err != nil {
				zap.L().Error(fmt.Sprintf("Failed to parse experiment servers settings. Reason:%s", err))
				return nil, err
			}
			rgm.ExperimentServers = esm
		default:
			msg := fmt.Sprintf("Unknown run group type. Group:%s, Value:%v", group, value)
			zap.L().Error(msg)
			return nil, fmt.Errorf("%s", msg)
		}
	}
	zap.L().Debug("Successfully parsed run group settings.", zap.Any("RunGroupMaps", rgm))
	return rgm, nil
}

func parseRunnerSettings[R Runner, I RunnerImpl](settings map[string]interface{}, implMap map[string]I) (map[string]R, error) {
	runnerMap := make(map[string]R)
	for runnerName := range settings {
		impl, ok := implMap[runnerName]
		if !ok {
			msg := fmt.Sprintf("failed to find %s implementation from RunnerMap %v", runnerName, implMap)
			zap.L().Error(msg)
			return nil, fmt.Errorf("%s", msg)
		}
		runner, err := newRunner[R, I](impl)
		if err != nil {
			msg := fmt.Sprintf("failed to set implementation to runnerName:%v/impl:%v/reason:%v", runnerName, impl, err.Error())
			zap.L().Error(msg)
			return nil, fmt.Errorf("%s", msg)
		}
		runnerMap[runnerName] = runner
	}
	return runnerMap, nil
}

func newRunner[R Runner, I RunnerImpl](runnerImpl I) (runner R, err error) {
	err = nil
	switch any(runner).(type) {
	case *PeriodicTask:
		i, ok := any(runnerImpl).(PeriodicTaskImpl)
		if !ok {
			err = fmt.Errorf("failed to cast to PeriodicTaskImpl/runner:%v", runner)
			return
		}
		runner = any(&PeriodicTask{PeriodicTaskImpl: i}).(R)
	case *ExperimentServer:
		i, ok := any(runnerImpl).(ExperimentServerImpl)
		if !ok {
			err = fmt.Errorf("failed to cast to ExperimentServerImpl/runner:%v", runner)
			return
		}
		runner = any(&ExperimentServer{ExperimentServerImpl: i}).(R)
	default:
		err = fmt.Errorf("unknown runner type:%v", runner)
		return
	}
	return
}

func NewRunContext() *RunContext {
	return &RunContext{
		Group:   &run.Group{},
		Context: context.Background(),
		RunGroupMaps: &RunGroupMaps{
			PeriodicTasks:     make(PeriodicTaskMap),
			ExperimentServers: make(ExperimentServerMap),
		},
	}
}

func NewRunContextWithSettingPath(settingsPath string, im *ImplMaps) (*RunContext, error) {
	tomlString, err := common.ReadSettingsFile(settingsPath)
	if err != nil {
		zap.L().Error(fmt.Sprintf("failed to read settings file/reason:%s", err))
		return nil, err
	}
	// Decoding TOML to RunGroupMaps takes two passes: the first pass
	// discovers which runners are configured, the second fills their
	// typed parameters.
	s := NewGroupSettings()
	if metadata, err := toml.Decode(tomlString, s); err != nil {
		zap.L().Error(fmt.Sprintf("Failed to decode settings file. Reason:%s. Metadata:%v",
			err, metadata))
		return nil, err
	}
	runGroupMaps, err := parseRunGroupSettings(s.Entries, im)
	if err != nil {
		zap.L().Error(fmt.Sprintf("Failed to parse run group settings. Reason:%s", err))
		return nil, err
	}
	rc := &RunContext{
		Group:        &run.Group{},
		Context:      context.Background(),
		settingsPath: settingsPath,
		RunGroupMaps: runGroupMaps,
	}
	// The second decode overwrites the Impl fields, so stash them and
	// recover after.
	tmpPeriodicTaskImplMap := make(map[string]PeriodicTaskImpl)
	tmpExperimentServerImplMap := make(map[string]ExperimentServerImpl)
	for taskName, task := range rc.RunGroupMaps.PeriodicTasks {
		tmpPeriodicTaskImplMap[taskName] = task.PeriodicTaskImpl
	}
	for serverName, server := range rc.RunGroupMaps.ExperimentServers {
		tmpExperimentServerImplMap[serverName] = server.ExperimentServerImpl
	}
	if metadata, err := toml.Decode(string(tomlString), rc); err != nil {
		zap.L().Error(fmt.Sprintf("Failed to decode settings file. Reason:%s. Metadata:%v",
			err, metadata))
		return nil, err
	}
	for taskName, task := range rc.RunGroupMaps.PeriodicTasks {
		task.PeriodicTaskImpl = tmpPeriodicTaskImplMap[taskName]
	}
	for serverName, server := range rc.RunGroupMaps.ExperimentServers {
		server.ExperimentServerImpl = tmpExperimentServerImplMap[serverName]
	}
	if err := setParametersToImpl[*PeriodicTask](rc.RunGroupMaps.PeriodicTasks); err != nil {
		zap.L().Error(fmt.Sprintf("failed to set parameters to PeriodicTask Impl/reason:%s", err.Error()))
		return nil, err
	}
	if err := setParametersToImpl[*ExperimentServer](rc.RunGroupMaps.ExperimentServers); err != nil {
		zap.L().Error(fmt.Sprintf("failed to set parameters to ExperimentServer Impl/reason:%s", err.Error()))
		return nil, err
	}
	if err := setupImplAndAddToRunContext[*PeriodicTask](rc.RunGroupMaps.PeriodicTasks, rc.AddPeriodicTask); err != nil {
		zap.L().Error(fmt.Sprintf("failed to setup and add PeriodicTask/reason:%s", err.Error()))
		return nil, err
	}
	if err := setupImplAndAddToRunContext[*ExperimentServer](rc.RunGroupMaps.ExperimentServers, rc.AddExperimentServer); err != nil {
		zap.L().Error(fmt.Sprintf("failed to setup and add ExperimentServer/reason:%s", err.Error()))
		return nil, err
	}
	zap.L().Info("Successfully initialized RunContext. RunGroupMaps:", zap.Any("RunGroupMaps", rc.RunGroupMaps))
	return rc, nil
}

func setParametersToImpl[R Runner](runners map[string]R) error {
	for name, runner := range runners {
		if err := any(runner).(RunnerImpl).SetParams(runner.GetParams()); err != nil {
			zap.L().Error(fmt.Sprintf("failed to set parameters to Impl/name:%s/runner%v/reason:%s",
				name, runner, err.Error()))
			return err
		}
	}
	return nil
}

func setupImplAndAddToRunContext[R Runner](
	runners map[string]R,
	addFunc func(R, string) error) error {
	for name, runner := range runners {
		if err := any(runner).(RunnerImpl).Setup(); err != nil {
			zap.L().Error(fmt.Sprintf("failed to setup/name:%s/reason:%s", name, err.Error()))
			return err
		}
		if err := addFunc(runner, name); err != nil {
			zap.L().Error(fmt.Sprintf("failed to add runner/name:%s/reason:%s", name, err))
			return err
		}
		zap.L().Info(fmt.Sprintf("successfully added runner/name:%s", name))
	}
	return nil
}

func GetRunContext() *RunContext {
	return runContext
}

func SetRunContext(rc *RunContext) {
	runContext = rc
}

type PeriodicTask struct {
	Period time.Duration `toml:"period"`
	Params interface{}   `toml:"params,omitempty"`
	PeriodicTaskImpl
}

func (t *PeriodicTask) GetParams() interface{} {
	return t.Params
}

type PeriodicTaskImpl interface {
	RunnerImpl
	RequirePeriodUpdate() (ok bool, duration time.Duration)
	Task()
	Cleanup()
}

type DefaultTaskImpl struct{}

func (v *DefaultTaskImpl) Setup() error {
	return nil
}

func (v *DefaultTaskImpl) GetEmptyParams() interface{} {
	return v
}

func (v *DefaultTaskImpl) SetParams(p interface{}) error {
	return nil
}

func (v *DefaultTaskImpl) RequirePeriodUpdate() (bool, time.Duration) {
	return false, 0
}

func (v *DefaultTaskImpl) Task() {}

func (v *DefaultTaskImpl) Cleanup() {}

func (rc *RunContext) AddPeriodicTask(t *PeriodicTask, taskName string) error {
	ctx, cancel := context.WithCancel(rc.Context)
	lastPeriod := t.Period
	rc.Group.Add(
		func() error {
			ticker := time.NewTicker(t.Period)
			zap.L().Info(fmt.Sprintf("[PeriodicTask/%s/Start]", taskName))
			t.PeriodicTaskImpl.Task()
			for {
				select {
				case <-ctx.Done():
					zap.L().Info(fmt.Sprintf("[PeriodicTask/%s/TearDown]Cleaning up periodic task", taskName))
					ticker.Stop()
					t.PeriodicTaskImpl.Cleanup()
					return ctx.Err()
				case <-ticker.C:
					t.PeriodicTaskImpl.Task()
					ok, newPeriod := t.RequirePeriodUpdate()
					if ok && newPeriod != lastPeriod {
						zap.L().Info(fmt.Sprintf("[PeriodicTask/%s/ResetPeriod]Resetting period from %v to %v",
							taskName, lastPeriod, newPeriod))
						ticker.Reset(newPeriod)
						lastPeriod = newPeriod
					}
				}
			}
		},
		func(error) {
			zap.L().Info(fmt.Sprintf("[PeriodicTask/%s/TearDown]Cancelling periodic task", taskName))
			cancel()
		},
	)
	return nil
}

// ExperimentServer feeds experiments into the scheduler from some
// source, like a batch file or standard input.
type ExperimentServer struct {
	Params interface{} `toml:"params,omitempty"`
	ExperimentServerImpl
}

func (s *ExperimentServer) GetParams() interface{} {
	return s.Params
}

type ExperimentServerImpl interface {
	RunnerImpl
	Start() error
	Cleanup()
	Handle(Experiment) error
}

func NewExperimentServer(impl ExperimentServerImpl) *ExperimentServer {
	return &ExperimentServer{
		Params:               impl.GetEmptyParams(),
		ExperimentServerImpl: impl,
	}
}

func (rc *RunContext) AddExperimentServer(s *ExperimentServer, serverName string) error {
	ctx, cancel := context.WithCancel(rc.Context)
	rc.Group.Add(
		func() error {
			zap.L().Info(fmt.Sprintf("[ExperimentServer/%s/Start]", serverName))
			err := s.Start()
			if err != nil {
				zap.L().Error(fmt.Sprintf("[ExperimentServer/%s/Error]failed to start experiment server/reason:%s",
					serverName, err))
				return err
			}
			zap.L().Info(fmt.Sprintf("[ExperimentServer/%s/Started]", serverName))
			<-ctx.Done()
			zap.L().Info(fmt.Sprintf("[ExperimentServer/%s/TearDown]cleaning up experiment server",
				serverName))
			s.Cleanup()
			return nil
		},
		func(error) {
			zap.L().Info(fmt.Sprintf("[ExperimentServer/%s/TearDown]cancelling experiment server",
				serverName))
			cancel()
		},
	)
	return nil
}
