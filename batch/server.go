// Package batch feeds experiments from a JSON batch file into the
// scheduler. It stands between the outer world and the experiment
// registry: requests get IDs, defaults, and validation here.
package batch

import (
	"encoding/json"
	"fmt"

	"github.com/go-faster/jx"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/oqtopus-team/localsim/common"
	"github.com/oqtopus-team/localsim/core"
	"go.uber.org/zap"
)

const BatchServerName = "batch"

var jsonIter = jsoniter.ConfigCompatibleWithStandardLibrary

// experimentRequest is one entry of the batch file.
type experimentRequest struct {
	ID            string          `json:"id,omitempty"`
	Type          string          `json:"type,omitempty"`
	Circuit       *core.Circuit   `json:"circuit"`
	Shots         int             `json:"shots"`
	Backend       string          `json:"backend,omitempty"`
	Seed          *int64          `json:"seed,omitempty"`
	IncludeMemory bool            `json:"include_memory,omitempty"`
	Operators     json.RawMessage `json:"operators,omitempty"`
}

type ServerImpl struct {
	FilePath string `toml:"file_path"`
}

func (s *ServerImpl) Setup() error {
	if s.FilePath == "" {
		return fmt.Errorf("batch server has no file_path")
	}
	return nil
}

func (s *ServerImpl) GetEmptyParams() interface{} {
	return s
}

func (s *ServerImpl) SetParams(p interface{}) error {
	if p == nil {
		zap.L().Debug("no params for batch server")
		return nil
	}
	mp, ok := p.(map[string]interface{})
	if !ok {
		msg := fmt.Errorf("failed to set params for batch server/params: %s", p)
		zap.L().Error(msg.Error())
		return msg
	}
	if filePath, ok := mp["file_path"].(string); ok {
		s.FilePath = filePath
	}
	return nil
}

// Start submits every request of the batch file. Scheduling is
// asynchronous, so this returns as soon as the last request is handed
// to the scheduler.
func (s *ServerImpl) Start() error {
	requests, err := loadRequests(s.FilePath)
	if err != nil {
		return err
	}
	zap.L().Info(fmt.Sprintf("submitting %d experiments from %s", len(requests), s.FilePath))
	for i, req := range requests {
		e, err := buildExperiment(req)
		if err != nil {
			zap.L().Error(fmt.Sprintf("skipping request #%d. Reason:%s", i, err.Error()))
			continue
		}
		if err := s.Handle(e); err != nil {
			zap.L().Error(fmt.Sprintf("failed to hand over experiment(%s). Reason:%s",
				e.ExperimentData().ID, err.Error()))
		}
	}
	return nil
}

func (s *ServerImpl) Cleanup() {
}

func (s *ServerImpl) Handle(e core.Experiment) error {
	return core.GetSystemComponents().Invoke(
		func(sc core.Scheduler) error {
			sc.HandleExperiment(e)
			return nil
		})
}

func loadRequests(path string) ([]experimentRequest, error) {
	raw, err := common.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file %s: %w", path, err)
	}
	requests := []experimentRequest{}
	if err := jsonIter.Unmarshal([]byte(raw), &requests); err != nil {
		return nil, fmt.Errorf("failed to decode batch file %s: %w", path, err)
	}
	return requests, nil
}

func buildExperiment(req experimentRequest) (core.Experiment, error) {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	var seed int64
	seedFixed := false
	if req.Seed != nil {
		seed = *req.Seed
		seedFixed = true
	}
	param := &core.ExperimentParam{
		ExperimentID:   id,
		Circuit:        req.Circuit,
		Shots:          req.Shots,
		Backend:        req.Backend,
		Seed:           seed,
		SeedFixed:      seedFixed,
		IncludeMemory:  req.IncludeMemory,
		OperatorsRaw:   jx.Raw(req.Operators),
		ExperimentType: req.Type,
	}
	ec, err := core.NewExperimentContext()
	if err != nil {
		return nil, err
	}
	return core.GetExperimentManager().NewExperimentWithValidation(param, ec)
}
