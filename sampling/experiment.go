// Package sampling implements the default experiment type: run the
// circuit for the requested number of shots and aggregate outcome
// counts.
package sampling

import (
	"context"
	"fmt"
	"time"

	"github.com/oqtopus-team/localsim/core"
	"github.com/oqtopus-team/localsim/engine"
	"github.com/oqtopus-team/localsim/noise"
	"go.uber.org/zap"
)

type SamplingExperiment struct {
	experimentData    *core.ExperimentData
	experimentContext *core.ExperimentContext
}

func (e *SamplingExperiment) New(ed *core.ExperimentData, ec *core.ExperimentContext) core.Experiment {
	return &SamplingExperiment{
		experimentData:    ed,
		experimentContext: ec,
	}
}

func (e *SamplingExperiment) PreProcess() {
	if err := e.preProcessImpl(); err != nil {
		zap.L().Error(fmt.Sprintf("failed to pre-process an experiment(%s). Reason:%s",
			e.ExperimentData().ID, err.Error()))
		core.SetFailureWithError(e, err)
		return
	}
	e.ExperimentData().Status = core.READY
}

func (e *SamplingExperiment) preProcessImpl() (err error) {
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
	if !ed.SeedFixed {
		// Bind the seed now so the run is reproducible after the fact.
		ed.Seed = time.Now().UnixNano()
		ed.SeedFixed = true
		zap.L().Debug(fmt.Sprintf("derived seed %d for experiment(%s)", ed.Seed, ed.ID))
	}
	return
}

func (e *SamplingExperiment) Process() {
	ed := e.ExperimentData()
	if ed.Status == core.FAILED {
		return
	}
	ed.Status = core.RUNNING
	c := core.GetSystemComponents().Container
	err := c.Invoke(
		func(f core.BackendFactory, m *noise.Model, conf *core.Conf) error {
			result, err := engine.RunShots(context.Background(), engine.RunSpec{
				Circuit:       ed.Circuit,
				Shots:         ed.Shots,
				Seed:          uint64(ed.Seed),
				Threads:       conf.Threads,
				IncludeMemory: ed.IncludeMemory,
				Model:         m,
				NewState: func() (core.QuantumState, error) {
					return f.New(ed.Backend, ed.Circuit.Qubits)
				},
			})
			if err != nil {
				return err
			}
			result.Estimation = ed.Result.Estimation
			ed.Result = result
			return nil
		})
	if err != nil {
		zap.L().Error(fmt.Sprintf("failed to run experiment(%s). Reason:%s", ed.ID, err.Error()))
		core.SetFailureWithError(e, err)
		return
	}
	// Success means every requested shot succeeded. Partial runs keep
	// their counts, visible next to the shot_failures tally.
	if ed.Result.ShotFailures > 0 {
		ed.Status = core.FAILED
	} else {
		ed.Status = core.SUCCEEDED
	}
	zap.L().Debug(fmt.Sprintf("finished to process an experiment(%s)/status:%s", ed.ID, ed.Status))
}

func (e *SamplingExperiment) PostProcess() {
	ed := e.ExperimentData()
	core.MarkEnded(ed)
	c := core.GetSystemComponents().Container
	err := c.Invoke(
		func(w core.ResultWriter) error {
			return w.Write(e)
		})
	if err != nil {
		zap.L().Error(fmt.Sprintf("failed to write the result of an experiment(%s). Reason:%s",
			ed.ID, err.Error()))
	}
}

func (e *SamplingExperiment) IsFinished() bool {
	return e.ExperimentData().Status == core.SUCCEEDED || e.ExperimentData().Status == core.FAILED
}

func (e *SamplingExperiment) ExperimentData() *core.ExperimentData {
	return e.experimentData
}

func (e *SamplingExperiment) ExperimentType() string {
	return core.SAMPLING_EXPERIMENT
}

func (e *SamplingExperiment) ExperimentContext() *core.ExperimentContext {
	return e.experimentContext
}

func (e *SamplingExperiment) Clone() core.Experiment {
	cloned := &SamplingExperiment{
		experimentData:    e.experimentData.Clone(),
		experimentContext: e.experimentContext,
	}
	return cloned
}
