// Package noise holds the per-gate error-channel configuration used
// to simulate imperfect hardware. A model is read-only for the whole
// experiment; all randomness comes from the shot's private RNG.
package noise

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/BurntSushi/toml"
	"github.com/oqtopus-team/localsim/gate"
	"go.uber.org/zap"
)

const (
	Depolarizing     = "depolarizing"
	BitFlip          = "bit_flip"
	PhaseFlip        = "phase_flip"
	AmplitudeDamping = "amplitude_damping"
)

// Channel is one single-qubit error channel, applied to every operand
// qubit of the gate it is attached to.
type Channel struct {
	Type        string  `toml:"type"`
	Probability float64 `toml:"probability"`
	Gamma       float64 `toml:"gamma"`
}

type Model struct {
	Channels map[string]Channel `toml:"channels"`
}

func LoadModel(path string) (*Model, error) {
	m := &Model{}
	if _, err := toml.DecodeFile(path, m); err != nil {
		zap.L().Error(fmt.Sprintf("failed to decode noise model file:%s/reason:%s", path, err))
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	zap.L().Info(fmt.Sprintf("loaded noise model with %d channels from %s", len(m.Channels), path))
	return m, nil
}

func (m *Model) Validate() error {
	for gateName, c := range m.Channels {
		switch c.Type {
		case Depolarizing, BitFlip, PhaseFlip:
			if c.Probability < 0 || c.Probability > 1 {
				return fmt.Errorf("channel for %s has probability %g outside [0, 1]", gateName, c.Probability)
			}
		case AmplitudeDamping:
			if c.Gamma < 0 || c.Gamma > 1 {
				return fmt.Errorf("channel for %s has gamma %g outside [0, 1]", gateName, c.Gamma)
			}
		default:
			return fmt.Errorf("channel for %s has unknown type %s", gateName, c.Type)
		}
	}
	return nil
}

// ChannelFor returns the error channel attached to a gate identity.
func (m *Model) ChannelFor(gateName string) (Channel, bool) {
	if m == nil {
		return Channel{}, false
	}
	c, ok := m.Channels[gateName]
	return c, ok
}

// SamplePauli draws the stochastic realization of the channel: the
// name of a Pauli gate to insert, or "" for no error. Channels
// without a Pauli unraveling report ok=false; those need the Kraus
// form on a density matrix.
func (c Channel) SamplePauli(rng *rand.Rand) (pauli string, ok bool) {
	switch c.Type {
	case Depolarizing:
		if rng.Float64() < c.Probability {
			return []string{"x", "y", "z"}[rng.Intn(3)], true
		}
		return "", true
	case BitFlip:
		if rng.Float64() < c.Probability {
			return "x", true
		}
		return "", true
	case PhaseFlip:
		if rng.Float64() < c.Probability {
			return "z", true
		}
		return "", true
	default:
		return "", false
	}
}

// Kraus returns the operator-sum form of the channel.
func (c Channel) Kraus() ([]gate.Matrix, error) {
	scale := func(m gate.Matrix, f float64) gate.Matrix {
		s := m.Clone()
		for i := range s {
			for j := range s[i] {
				s[i][j] *= complex(f, 0)
			}
		}
		return s
	}
	id, _ := gate.Build("id", nil)
	x, _ := gate.Build("x", nil)
	y, _ := gate.Build("y", nil)
	z, _ := gate.Build("z", nil)
	switch c.Type {
	case Depolarizing:
		p := c.Probability
		return []gate.Matrix{
			scale(id, math.Sqrt(1-p)),
			scale(x, math.Sqrt(p/3)),
			scale(y, math.Sqrt(p/3)),
			scale(z, math.Sqrt(p/3)),
		}, nil
	case BitFlip:
		p := c.Probability
		return []gate.Matrix{
			scale(id, math.Sqrt(1-p)),
			scale(x, math.Sqrt(p)),
		}, nil
	case PhaseFlip:
		p := c.Probability
		return []gate.Matrix{
			scale(id, math.Sqrt(1-p)),
			scale(z, math.Sqrt(p)),
		}, nil
	case AmplitudeDamping:
		k0 := gate.Matrix{
			{1, 0},
			{0, complex(math.Sqrt(1-c.Gamma), 0)},
		}
		k1 := gate.Matrix{
			{0, complex(math.Sqrt(c.Gamma), 0)},
			{0, 0},
		}
		return []gate.Matrix{k0, k1}, nil
	default:
		return nil, fmt.Errorf("unknown channel type %s", c.Type)
	}
}
