package scheduler

import (
	"fmt"

	conq "github.com/enriquebris/goconcurrentqueue"
	"github.com/oqtopus-team/localsim/core"
	"go.uber.org/zap"
)

type queueChan chan *experimentInScheduler

type fifo interface {
	Enqueue(*experimentInScheduler) error
	Dequeue() (*experimentInScheduler, error)
	DequeueOrWaitForNextElement() (*experimentInScheduler, error)
	Get(index int) (*experimentInScheduler, error)
	GetLen() int
	Remove(index int) error
}

type conqFIFO struct {
	conq.FIFO
}

func newConqFIFO() *conqFIFO {
	return &conqFIFO{
		FIFO: *conq.NewFIFO(),
	}
}

func (c *conqFIFO) Enqueue(es *experimentInScheduler) error {
	return c.FIFO.Enqueue(es)
}

func (c *conqFIFO) Dequeue() (*experimentInScheduler, error) {
	tmp, err := c.FIFO.Dequeue()
	if err != nil {
		return nil, err
	}
	return tmp.(*experimentInScheduler), nil
}

func (c *conqFIFO) DequeueOrWaitForNextElement() (*experimentInScheduler, error) {
	tmp, err := c.FIFO.DequeueOrWaitForNextElement()
	if err != nil {
		return nil, err
	}
	return tmp.(*experimentInScheduler), nil
}

func (c *conqFIFO) Get(index int) (*experimentInScheduler, error) {
	tmp, err := c.FIFO.Get(index)
	if err != nil {
		return nil, err
	}
	return tmp.(*experimentInScheduler), nil
}

func (c *conqFIFO) GetLen() int {
	return c.FIFO.GetLen()
}

func (c *conqFIFO) Remove(index int) error {
	return c.FIFO.Remove(index)
}

// ExperimentQueue is the FIFO the dispatch loop drains. Enqueueing
// goes through queueChan so the full-queue policy lives in one place.
type ExperimentQueue struct {
	fifo       fifo
	maxSize    int
	queueChan  queueChan
	cancelChan chan struct{}
}

func (n *ExperimentQueue) Setup(conf *core.Conf) error {
	n.maxSize = conf.QueueMaxSize
	n.fifo = newConqFIFO()
	n.queueChan = make(queueChan)
	n.cancelChan = make(chan struct{})
	go func() {
		defer close(n.cancelChan)
		for {
			var eis *experimentInScheduler
			select {
			case <-n.cancelChan:
				return
			case eis = <-n.queueChan:
			}
			ed := eis.experiment.ExperimentData()
			if n.maxSize <= n.fifo.GetLen() {
				zap.L().Info(fmt.Sprintf("Failed to put %s. Experiment queue is full.", ed.ID))
				eis.rejected = true
				eis.finished.Done()
				continue
			}
			zap.L().Debug(fmt.Sprintf("Putting %s to the experiment queue", ed.ID))
			err := n.fifo.Enqueue(eis)
			if err != nil {
				zap.L().Error(
					fmt.Sprintf("Failed to put %s to the experiment queue. Reason:%s", ed.ID, err))
				eis.rejected = true
				eis.finished.Done()
			}
		}
	}()
	return nil
}

func (n *ExperimentQueue) TearDown() {
	n.cancelChan <- struct{}{}
}

// Dequeue with wait blocks until the next experiment gets enqueued.
func (n *ExperimentQueue) Dequeue(wait bool) (eis *experimentInScheduler, err error) {
	eis = nil
	err = nil
	if wait {
		eis, err = n.fifo.DequeueOrWaitForNextElement()
	} else {
		eis, err = n.fifo.Dequeue()
	}
	if err != nil {
		zap.L().Debug("no experiment in the queue.", zap.Error(err))
		return
	}
	zap.L().Debug(fmt.Sprintf("Dequeued experiment:%s", eis.experiment.ExperimentData().ID))
	return
}

// Delete removes a still-queued experiment, for cancellation before
// any shot runs.
func (n *ExperimentQueue) Delete(experimentID string) error {
	zap.L().Debug(fmt.Sprintf("deleting %s from the experiment queue", experimentID))
	idx, err := n.getIdx(experimentID)
	if err != nil {
		zap.L().Info(fmt.Sprintf("Failed to Delete %s. Reason:%s", experimentID, err))
		return err
	}
	if err := n.fifo.Remove(idx); err != nil {
		zap.L().Error(fmt.Sprintf("Failed to remove idx:%d. Reason:%s", idx, err))
		return err
	}
	return nil
}

func (n *ExperimentQueue) GetCurrentSize() int {
	return n.fifo.GetLen()
}

func (n *ExperimentQueue) getIdx(experimentID string) (int, error) {
	for i := 0; i < n.fifo.GetLen(); i++ {
		es, err := n.fifo.Get(i)
		if err == nil {
			if es.experiment.ExperimentData().ID == experimentID {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("no entry")
}
