// Package aggregate folds per-shot results into the experiment-level
// result. Accumulators are filled independently per worker over
// contiguous shot ranges and merged in range order, so counts are
// order-independent and memory keeps shot order.
package aggregate

import (
	"github.com/oqtopus-team/localsim/core"
	"go.uber.org/multierr"
)

type Accumulator struct {
	counts        core.Counts
	memory        []string
	snapshots     core.Snapshots
	includeMemory bool
	successful    int
	failures      int
	err           error
}

func NewAccumulator(includeMemory bool) *Accumulator {
	return &Accumulator{
		counts:        make(core.Counts),
		snapshots:     make(core.Snapshots),
		includeMemory: includeMemory,
	}
}

// Add consumes one shot. Failed shots contribute to the failure
// count and the combined error, never to counts.
func (a *Accumulator) Add(r *core.ShotResult) {
	if !r.Succeeded() {
		a.failures++
		a.err = multierr.Append(a.err, r.Err)
		return
	}
	a.successful++
	a.counts[r.Memory]++
	if a.includeMemory {
		a.memory = append(a.memory, r.Memory)
	}
	for label, values := range r.Snapshots {
		a.snapshots[label] = append(a.snapshots[label], values...)
	}
}

// Merge appends b into a. b must cover the shot range immediately
// after a's.
func (a *Accumulator) Merge(b *Accumulator) {
	for k, v := range b.counts {
		a.counts[k] += v
	}
	a.memory = append(a.memory, b.memory...)
	for label, values := range b.snapshots {
		a.snapshots[label] = append(a.snapshots[label], values...)
	}
	a.successful += b.successful
	a.failures += b.failures
	a.err = multierr.Append(a.err, b.err)
}

func (a *Accumulator) Successful() int {
	return a.successful
}

func (a *Accumulator) Failures() int {
	return a.failures
}

func (a *Accumulator) Err() error {
	return a.err
}

// Result materializes the accumulated shots as an experiment result.
func (a *Accumulator) Result() *core.Result {
	r := core.NewResult()
	r.Counts = a.counts
	r.Memory = a.memory
	r.Snapshots = a.snapshots
	r.ShotFailures = a.failures
	if a.err != nil {
		r.Message = a.err.Error()
	}
	return r
}

// Reduce merges worker accumulators in worker order into a single
// result.
func Reduce(accs []*Accumulator) *core.Result {
	if len(accs) == 0 {
		return core.NewResult()
	}
	first := accs[0]
	for _, acc := range accs[1:] {
		first.Merge(acc)
	}
	return first.Result()
}
