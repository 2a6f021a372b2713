// Package scheduler serializes experiment processing: experiments are
// validated concurrently but their shot runs go through one FIFO so a
// single dense state is resident at a time.
package scheduler

import (
	"fmt"
	"sync"

	"github.com/oqtopus-team/localsim/core"
	"github.com/oqtopus-team/localsim/log"
	"go.uber.org/zap"
)

type FIFOScheduler struct {
	queue *ExperimentQueue
}

type experimentInScheduler struct {
	experiment core.Experiment
	finished   *sync.WaitGroup
	rejected   bool
}

func (n *FIFOScheduler) Setup(conf *core.Conf) error {
	n.queue = &ExperimentQueue{}
	return n.queue.Setup(conf)
}

func (n *FIFOScheduler) Start() error {
	go func() {
		for {
			zap.L().Debug("checking the queue...")
			eis, err := n.queue.Dequeue(true)
			if err != nil {
				zap.L().Error(fmt.Sprintf("failed to get an experiment from queue. Reason:%s", err))
				continue
			}
			eid := eis.experiment.ExperimentData().ID
			zap.L().Debug(fmt.Sprintf("processing experiment:%s", eid))
			eis.experiment.Process()
			zap.L().Debug(fmt.Sprintf("finished to process experiment(%s), status:%s",
				eid, eis.experiment.ExperimentData().Status))
			eis.finished.Done()
		}
	}()
	return nil
}

func (n *FIFOScheduler) HandleExperiment(e core.Experiment) {
	zap.L().Debug(fmt.Sprintf("starting to handle experiment(%s) in %s",
		e.ExperimentData().ID, e.ExperimentData().Status))
	go n.handleImpl(e)
}

func (n *FIFOScheduler) HandleExperimentForTest(e core.Experiment, wg *sync.WaitGroup) {
	go func() {
		defer wg.Done()
		n.handleImpl(e)
	}()
}

func (n *FIFOScheduler) handleImpl(e core.Experiment) {
	eid := e.ExperimentData().ID
	if e.ExperimentData().Status != core.SUBMITTED {
		zap.L().Error(
			fmt.Sprintf("refusing to handle experiment(%s) with unexpected status:%s",
				eid, e.ExperimentData().Status.String()))
		return
	}
	zap.L().Debug(fmt.Sprintf("handling experiment(%s). start pre-processing", eid))
	e.PreProcess()
	e.ExperimentContext().ResultChan <- e.Clone()
	if e.IsFinished() {
		zap.L().Debug(fmt.Sprintf("finished to handle experiment(%s) after pre-processing", eid))
		return
	}
	var wg sync.WaitGroup
	wg.Add(1)
	eis := &experimentInScheduler{
		experiment: e,
		finished:   &wg,
	}
	n.queue.queueChan <- eis
	wg.Wait() // wait for processing
	if eis.rejected {
		core.SetFailureWithError(e, fmt.Errorf("experiment queue is full"))
		e.ExperimentContext().ResultChan <- e.Clone()
		return
	}
	zap.L().Debug(fmt.Sprintf("handling experiment(%s). start post-processing", eid))
	e.PostProcess()
	zap.L().Debug(fmt.Sprintf("finished to handle experiment(%s) with status:%s",
		eid, e.ExperimentData().Status.String()))
	log.CountExperiment(e.ExperimentData().Status)
	if e.ExperimentData().Status == core.SUCCEEDED {
		log.CountShots(e.ExperimentData().Shots)
	}
	e.ExperimentContext().ResultChan <- e.Clone()
}

func (n *FIFOScheduler) GetCurrentQueueSize() int {
	return n.queue.fifo.GetLen()
}
