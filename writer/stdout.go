package writer

import (
	"fmt"
	"os"

	"github.com/oqtopus-team/localsim/core"
	"github.com/tidwall/pretty"
)

// StdoutWriter prints result documents to standard output, one per
// finished experiment. Meant for one-off batch runs and piping.
type StdoutWriter struct{}

func (w *StdoutWriter) Setup(conf *core.Conf) error {
	return nil
}

func (w *StdoutWriter) Write(e core.Experiment) error {
	ed := e.ExperimentData()
	raw, err := jsonIter.Marshal(newResultDocument(ed))
	if err != nil {
		return fmt.Errorf("failed to marshal result of %s: %w", ed.ID, err)
	}
	_, err = os.Stdout.Write(pretty.Pretty(raw))
	return err
}

func (w *StdoutWriter) TearDown() {
}
