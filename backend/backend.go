// Package backend holds the interchangeable quantum-state encodings:
// dense statevector, density matrix, stabilizer tableau and unitary
// accumulator. All of them implement core.QuantumState.
package backend

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/oqtopus-team/localsim/core"
	"go.uber.org/zap"
)

const (
	StatevectorBackend   = "statevector"
	DensityMatrixBackend = "density_matrix"
	StabilizerBackend    = "stabilizer"
	UnitaryBackend       = "unitary"
)

// Numerical tolerances. Probability mass and trace are double
// precision accumulations over up to 2^N terms, so the bound is
// looser than the per-matrix unitarity check.
const (
	ProbabilityEpsilon = 1e-9
	HermiticityEpsilon = 1e-9
)

// The stabilizer tableau grows quadratically, not exponentially, so
// it gets a fixed generous cap instead of the dense limit.
const stabilizerMaxQubits = 10000

const SimulatorName = "localsim"

func Backends() []string {
	return []string{StatevectorBackend, DensityMatrixBackend, StabilizerBackend, UnitaryBackend}
}

// Factory builds a fresh state per shot. Selection of the backend
// variant happens once per experiment; every shot of that experiment
// gets the same variant.
type Factory struct {
	maxQubits      int
	maxShots       int
	threads        int
	defaultBackend string
}

func (f *Factory) Setup(conf *core.Conf) error {
	zap.L().Debug("setting up backend factory")
	f.maxQubits = conf.MaxQubits
	f.maxShots = conf.MaxShots
	f.threads = conf.Threads
	if f.threads <= 0 {
		f.threads = runtime.GOMAXPROCS(0)
	}
	f.defaultBackend = conf.DefaultBackend
	if f.defaultBackend == "" {
		f.defaultBackend = StatevectorBackend
	}
	return nil
}

func (f *Factory) New(backendName string, qubits int) (core.QuantumState, error) {
	if backendName == "" {
		backendName = f.defaultBackend
	}
	var s core.QuantumState
	switch backendName {
	case StatevectorBackend:
		s = &Statevector{maxQubits: f.maxQubits, threads: f.threads}
	case DensityMatrixBackend:
		s = &DensityMatrix{maxQubits: f.maxQubits, threads: f.threads}
	case StabilizerBackend:
		s = &Stabilizer{maxQubits: stabilizerMaxQubits}
	case UnitaryBackend:
		s = &Unitary{maxQubits: f.maxQubits}
	default:
		return nil, fmt.Errorf("%s is an unknown backend", backendName)
	}
	if err := s.Initialize(qubits); err != nil {
		return nil, err
	}
	return s, nil
}

func (f *Factory) GetSimulatorInfo() *core.SimulatorInfo {
	return &core.SimulatorInfo{
		SimulatorName: SimulatorName,
		Backends:      Backends(),
		MaxQubits:     f.maxQubits,
		MaxShots:      f.maxShots,
	}
}

// parallelThreshold is the work size below which splitting a gate
// loop across goroutines costs more than it saves.
const parallelThreshold = 1 << 12

// parallelFor splits [0, total) into disjoint chunks, one per worker,
// and joins before returning. Chunks never overlap, so the body may
// write its indices without locking.
func parallelFor(total, threads int, body func(lo, hi int)) {
	if threads <= 1 || total < parallelThreshold {
		body(0, total)
		return
	}
	if threads > total {
		threads = total
	}
	chunk := (total + threads - 1) / threads
	var wg sync.WaitGroup
	for lo := 0; lo < total; lo += chunk {
		hi := lo + chunk
		if hi > total {
			hi = total
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			body(lo, hi)
		}(lo, hi)
	}
	wg.Wait()
}
