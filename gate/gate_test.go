//go:build unit
// +build unit

package gate

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAllKnownGatesAreUnitary(t *testing.T) {
	for name, pc := range knownGates {
		t.Run(name, func(t *testing.T) {
			params := make([]float64, pc.params)
			for i := range params {
				params[i] = 0.3 * float64(i+1)
			}
			m, err := Build(name, params)
			require.Nil(t, err)
			assert.Equal(t, 1<<pc.qubits, m.Dim())
			assert.Equal(t, pc.qubits, m.NumQubits())
			assert.True(t, IsUnitary(m, UnitaryEpsilon))
		})
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name     string
		gateName string
		params   []float64
	}{
		{name: "unknown gate", gateName: "bogus", params: nil},
		{name: "missing angle", gateName: "rx", params: nil},
		{name: "extra angle", gateName: "x", params: []float64{0.1}},
		{name: "wrong u arity", gateName: "u", params: []float64{0.1, 0.2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Build(tt.gateName, tt.params)
			assert.Nil(t, m)
			assert.NotNil(t, err)
		})
	}
}

func TestInversePairs(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
	}{
		{name: "s sdg", a: "s", b: "sdg"},
		{name: "t tdg", a: "t", b: "tdg"},
		{name: "h h", a: "h", b: "h"},
		{name: "x x", a: "x", b: "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Build(tt.a, nil)
			require.Nil(t, err)
			b, err := Build(tt.b, nil)
			require.Nil(t, err)
			assertMatrixEqual(t, Identity(a.Dim()), Mul(a, b))
		})
	}
}

func TestDaggerIsInverse(t *testing.T) {
	m, err := Build("u", []float64{0.7, 1.1, -0.4})
	require.Nil(t, err)
	assertMatrixEqual(t, Identity(2), Mul(m, Dagger(m)))
}

func TestRotationComposition(t *testing.T) {
	// rx(a)·rx(b) == rx(a+b)
	a, err := Build("rx", []float64{0.5})
	require.Nil(t, err)
	b, err := Build("rx", []float64{0.25})
	require.Nil(t, err)
	want, err := Build("rx", []float64{0.75})
	require.Nil(t, err)
	assertMatrixEqual(t, want, Mul(a, b))
}

func TestPhaseGateIdentities(t *testing.T) {
	s, err := Build("s", nil)
	require.Nil(t, err)
	z, err := Build("z", nil)
	require.Nil(t, err)
	assertMatrixEqual(t, z, Mul(s, s))

	tg, err := Build("t", nil)
	require.Nil(t, err)
	assertMatrixEqual(t, s, Mul(tg, tg))
}

func TestSXSquaredIsX(t *testing.T) {
	sxm, err := Build("sx", nil)
	require.Nil(t, err)
	xm, err := Build("x", nil)
	require.Nil(t, err)
	// sx^2 == x up to global phase
	got := Mul(sxm, sxm)
	ratio := complex(0, 0)
	for i := range got {
		for j := range got[i] {
			if cmplx.Abs(xm[i][j]) > 1e-9 {
				ratio = got[i][j] / xm[i][j]
			}
		}
	}
	assert.InDelta(t, 1.0, cmplx.Abs(ratio), 1e-9)
	for i := range got {
		for j := range got[i] {
			assert.InDelta(t, 0, cmplx.Abs(got[i][j]-ratio*xm[i][j]), 1e-9)
		}
	}
}

func TestControlledEmbedding(t *testing.T) {
	cx, err := Build("cx", nil)
	require.Nil(t, err)
	// Control is the high-order bit: |10> -> |11>, |00> untouched.
	assert.Equal(t, complex(1, 0), cx[0][0])
	assert.Equal(t, complex(1, 0), cx[2][3])
	assert.Equal(t, complex(1, 0), cx[3][2])
	assert.Equal(t, complex(0, 0), cx[2][2])
}

func TestIsClifford(t *testing.T) {
	for _, name := range []string{"id", "x", "y", "z", "h", "s", "sdg", "cx", "cz", "swap"} {
		assert.True(t, IsClifford(name), name)
	}
	for _, name := range []string{"t", "tdg", "rx", "ccx", "u", "sx"} {
		assert.False(t, IsClifford(name), name)
	}
}

func TestQubits(t *testing.T) {
	assert.Equal(t, 1, Qubits("h"))
	assert.Equal(t, 2, Qubits("cx"))
	assert.Equal(t, 3, Qubits("ccx"))
	assert.Equal(t, 0, Qubits("bogus"))
}

func assertMatrixEqual(t *testing.T, want, got Matrix) {
	t.Helper()
	require.Equal(t, want.Dim(), got.Dim())
	for i := range want {
		for j := range want[i] {
			if cmplx.Abs(want[i][j]-got[i][j]) > 1e-9 {
				t.Fatalf("matrix mismatch at (%d,%d): want %v, got %v", i, j, want[i][j], got[i][j])
			}
		}
	}
}

func TestRZGlobalPhaseConvention(t *testing.T) {
	m, err := Build("rz", []float64{math.Pi})
	require.Nil(t, err)
	assert.InDelta(t, 0, cmplx.Abs(m[0][0]-complex(0, -1)), 1e-12)
	assert.InDelta(t, 0, cmplx.Abs(m[1][1]-complex(0, 1)), 1e-12)
}
