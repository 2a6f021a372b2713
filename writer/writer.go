// Package writer persists finished experiments as JSON documents, one
// file per experiment ID.
package writer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-openapi/strfmt"
	jsoniter "github.com/json-iterator/go"
	"github.com/oqtopus-team/localsim/common"
	"github.com/oqtopus-team/localsim/core"
	"github.com/tidwall/pretty"
	"go.uber.org/zap"
)

var jsonIter = jsoniter.ConfigCompatibleWithStandardLibrary

// resultDocument is the on-disk shape of a finished experiment.
type resultDocument struct {
	ExperimentID   string          `json:"experiment_id"`
	ExperimentType string          `json:"experiment_type"`
	Status         string          `json:"status"`
	Backend        string          `json:"backend"`
	Shots          int             `json:"shots"`
	Seed           int64           `json:"seed"`
	Result         *core.Result    `json:"result"`
	Created        strfmt.DateTime `json:"created"`
	Ended          strfmt.DateTime `json:"ended"`
}

type FileWriter struct {
	dir string
}

func (w *FileWriter) Setup(conf *core.Conf) error {
	if err := os.MkdirAll(conf.ResultDir, 0755); err != nil {
		return fmt.Errorf("failed to create result dir %s: %w", conf.ResultDir, err)
	}
	if err := common.IsDirWritable(conf.ResultDir); err != nil {
		return err
	}
	w.dir = conf.ResultDir
	return nil
}

func newResultDocument(ed *core.ExperimentData) *resultDocument {
	return &resultDocument{
		ExperimentID:   ed.ID,
		ExperimentType: ed.ExperimentType,
		Status:         ed.Status.String(),
		Backend:        ed.Backend,
		Shots:          ed.Shots,
		Seed:           ed.Seed,
		Result:         ed.Result,
		Created:        ed.Created,
		Ended:          ed.Ended,
	}
}

func (w *FileWriter) Write(e core.Experiment) error {
	ed := e.ExperimentData()
	raw, err := jsonIter.Marshal(newResultDocument(ed))
	if err != nil {
		return fmt.Errorf("failed to marshal result of %s: %w", ed.ID, err)
	}
	path := filepath.Join(w.dir, ed.ID+".json")
	if err := os.WriteFile(path, pretty.Pretty(raw), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	zap.L().Debug(fmt.Sprintf("wrote result of experiment(%s) to %s", ed.ID, path))
	return nil
}

func (w *FileWriter) TearDown() {
}
