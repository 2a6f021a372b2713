package engine

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/oqtopus-team/localsim/aggregate"
	"github.com/oqtopus-team/localsim/core"
	"github.com/oqtopus-team/localsim/noise"
	"go.uber.org/zap"
)

// RunSpec is everything the shot runner needs for one experiment.
// NewState must return a freshly initialized state on every call; the
// runner never reuses a state across shots.
type RunSpec struct {
	Circuit       *core.Circuit
	Shots         int
	Seed          uint64
	Threads       int
	IncludeMemory bool
	Model         *noise.Model
	NewState      func() (core.QuantumState, error)
}

// RunShots executes the requested number of shots across a worker
// pool and reduces the per-worker accumulators into one result.
//
// Per-shot failures are folded into the result. A structural failure
// (allocation, capability, validation) on any shot cancels the
// remaining shots and fails the whole run, since every shot of the
// same circuit would fail identically.
func RunShots(ctx context.Context, spec RunSpec) (*core.Result, error) {
	started := time.Now()
	workers := spec.Threads
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > spec.Shots {
		workers = spec.Shots
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	accs := make([]*aggregate.Accumulator, workers)
	structural := make([]error, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo, hi := shotRange(spec.Shots, workers, w)
		accs[w] = aggregate.NewAccumulator(spec.IncludeMemory)
		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			for shot := lo; shot < hi; shot++ {
				if runCtx.Err() != nil {
					return
				}
				res := runOneShot(spec, shot)
				if res.Err != nil && core.IsStructural(res.Err) {
					structural[w] = res.Err
					cancel()
					return
				}
				accs[w].Add(res)
			}
		}(w, lo, hi)
	}
	wg.Wait()

	for _, err := range structural {
		if err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := aggregate.Reduce(accs)
	result.ExecutionTime = time.Since(started)
	zap.L().Debug(fmt.Sprintf(
		"finished %d shots (%d failed) in %s with %d workers",
		spec.Shots, result.ShotFailures, result.ExecutionTime, workers))
	return result, nil
}

func runOneShot(spec RunSpec, shot int) *core.ShotResult {
	state, err := spec.NewState()
	if err != nil {
		return &core.ShotResult{Err: err}
	}
	rng := rand.New(rand.NewSource(ShotSeed(spec.Seed, shot)))
	eng := New(state, spec.Circuit.Clbits, rng, spec.Model)
	return eng.Run(spec.Circuit)
}

// shotRange splits shots into contiguous per-worker ranges so the
// merged memory list keeps shot order.
func shotRange(shots, workers, w int) (lo, hi int) {
	per := shots / workers
	rem := shots % workers
	lo = w*per + min(w, rem)
	hi = lo + per
	if w < rem {
		hi++
	}
	return lo, hi
}

// ShotSeed derives the private RNG seed of one shot from the base
// seed with a splitmix64 mix, so shots are decorrelated and each one
// is reproducible in isolation.
func ShotSeed(base uint64, shot int) int64 {
	z := base + (uint64(shot)+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e595
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return int64(z ^ (z >> 31))
}
