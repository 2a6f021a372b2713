package core

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// MemoryStore keeps finished and in-flight experiments addressable by
// ID and guards against duplicate submissions.
type MemoryStore struct {
	storeMap   map[string]Experiment
	resultChan <-chan Experiment
	mu         sync.RWMutex
}

func (d *MemoryStore) Setup(rc ResultChan, c *Conf) error {
	d.storeMap = make(map[string]Experiment)
	d.resultChan = rc
	go func() {
		for {
			e := <-d.resultChan
			if e == nil { // when resultChan is closed
				return
			}
			zap.L().Debug(fmt.Sprintf("[MemoryStore] Received %s", e.ExperimentData().ID))
			if err := d.Update(e); err != nil {
				zap.L().Error(fmt.Sprintf("failed to update an experiment(%s). Reason:%s",
					e.ExperimentData().ID, err.Error()))
			}
		}
	}()
	return nil
}

func (d *MemoryStore) Insert(e Experiment) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := e.ExperimentData().ID
	if _, ok := d.storeMap[id]; ok {
		return ErrorExperimentIDConflict
	}
	d.storeMap[id] = e
	return nil
}

func (d *MemoryStore) Get(id string) (Experiment, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if val, ok := d.storeMap[id]; ok {
		return val, nil
	}
	err := fmt.Errorf("not found %s", id)
	zap.L().Info("[MemoryStore]", zap.Error(err))
	return nil, err
}

func (d *MemoryStore) Update(e Experiment) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.storeMap[e.ExperimentData().ID] = e
	return nil
}

func (d *MemoryStore) Delete(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.storeMap[id]; ok {
		delete(d.storeMap, id)
		zap.L().Info(fmt.Sprintf("[MemoryStore] deleted %s", id))
		return nil
	}
	err := fmt.Errorf("failed to find %s", id)
	zap.L().Info("[MemoryStore]", zap.Error(err))
	return err
}

func (d *MemoryStore) Exist(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.storeMap[id]
	return ok
}
