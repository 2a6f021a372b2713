package core

import (
	"fmt"
	"time"

	"github.com/go-faster/jx"
	"github.com/go-openapi/strfmt"
	jsoniter "github.com/json-iterator/go"
	"github.com/mohae/deepcopy"
	"github.com/tidwall/pretty"
	"go.uber.org/zap"
)

type Status int
type Counts map[string]uint32

var jsonIter = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	SUBMITTED Status = iota // In the queue, not handed to a runner yet.
	READY                   // Validated and waiting for shots to start.
	RUNNING                 // Shots are in flight.
	SUCCEEDED               // All requested shots finished successfully.
	FAILED                  // Aborted structurally or every shot failed.
	CANCELLED               // Cancelled between shots.
)

func (s Status) String() string {
	switch s {
	case SUBMITTED:
		return "submitted"
	case READY:
		return "ready"
	case RUNNING:
		return "running"
	case SUCCEEDED:
		return "succeeded"
	case FAILED:
		return "failed"
	case CANCELLED:
		return "cancelled"
	default:
		return "unknown"
	}
}

func ToStatus(s string) (Status, error) {
	switch s {
	case "submitted":
		return SUBMITTED, nil
	case "ready":
		return READY, nil
	case "running":
		return RUNNING, nil
	case "succeeded":
		return SUCCEEDED, nil
	case "failed":
		return FAILED, nil
	case "cancelled":
		return CANCELLED, nil
	default:
		return 0, fmt.Errorf("unknown status: %s", s)
	}
}

func (c Counts) String() string {
	st, err := jsonIter.Marshal(c)
	if err != nil {
		zap.L().Error("Failed to marshal core.Counts")
		return ""
	}
	return string(st)
}

// Total is the number of shots the counts were accumulated from.
func (c Counts) Total() uint32 {
	var total uint32
	for _, v := range c {
		total += v
	}
	return total
}

// SnapshotValue is one recorded snapshot quantity. Exactly one of the
// value fields is populated depending on Kind.
type SnapshotValue struct {
	Kind          string       `json:"kind"`
	Expectation   float64      `json:"expectation,omitempty"`
	Probabilities []float64    `json:"probabilities,omitempty"`
	Statevector   [][2]float64 `json:"statevector,omitempty"` // (re, im) pairs
}

type Snapshots map[string][]SnapshotValue

// ShotResult is the outcome of one completed or failed shot. It is
// immutable after the shot ends.
type ShotResult struct {
	Memory    string // measured bitstring, most significant clbit first
	Snapshots Snapshots
	Err       error
}

func (s *ShotResult) Succeeded() bool {
	return s.Err == nil
}

type Estimation struct {
	ExpValue float32 `json:"exp_value"`
	Stds     float32 `json:"stds"`
}

type Result struct {
	Counts        Counts        `json:"counts"`
	Memory        []string      `json:"memory,omitempty"`
	Snapshots     Snapshots     `json:"snapshots,omitempty"`
	Estimation    *Estimation   `json:"estimation,omitempty"`
	ShotFailures  int           `json:"shot_failures"`
	Message       string        `json:"message"`
	ExecutionTime time.Duration `json:"execution_time"`
}

func NewResult() *Result {
	return &Result{
		Counts:    make(Counts),
		Snapshots: make(Snapshots),
	}
}

func (r *Result) ToString() string {
	st, err := jsonIter.Marshal(r)
	if err != nil {
		zap.L().Error("Failed to marshal core.Result")
		return ""
	}
	st = pretty.Pretty(st)
	return string(st)
}

// ExperimentData carries everything one experiment needs: the parsed
// circuit, the execution configuration, and the result being built.
type ExperimentData struct {
	ID             string
	Status         Status
	Circuit        *Circuit
	Shots          int
	Backend        string
	Seed           int64
	SeedFixed      bool // false means derive the seed from wall clock
	IncludeMemory  bool
	OperatorsRaw   jx.Raw // estimation operator payload, kept opaque here
	Result         *Result
	ExperimentType string
	Created        strfmt.DateTime
	Ended          strfmt.DateTime
}

func NewExperimentData() *ExperimentData {
	return &ExperimentData{
		Result:  NewResult(),
		Created: strfmt.DateTime(time.Now()),
	}
}

func (ed *ExperimentData) Clone() *ExperimentData {
	c := deepcopy.Copy(ed).(*ExperimentData)
	c.Circuit = ed.Circuit // circuits are immutable and shared
	c.Created = *ed.Created.DeepCopy()
	c.Ended = *ed.Ended.DeepCopy()
	c.OperatorsRaw = append(jx.Raw(nil), ed.OperatorsRaw...)
	return c
}

func SetFailureWithErrorToExperimentData(ed *ExperimentData, err error) (msg string) {
	msg = err.Error()
	ed.Result.Message = msg
	ed.Status = FAILED
	ed.Ended = strfmt.DateTime(time.Now())
	return msg
}
