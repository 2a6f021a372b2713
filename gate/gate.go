// Package gate is the stateless catalog of canonical unitary matrices.
// Every matrix returned by Build is unitary to floating-point tolerance
// and parametric gates are continuous in their parameters.
package gate

import (
	"math"
	"math/cmplx"

	"github.com/oqtopus-team/localsim/core"
)

// Matrix is a dense square complex matrix of dimension 2^k for a
// k-qubit gate, row-major.
type Matrix [][]complex128

const UnitaryEpsilon = 1e-12

func NewMatrix(dim int) Matrix {
	m := make(Matrix, dim)
	for i := range m {
		m[i] = make([]complex128, dim)
	}
	return m
}

func Identity(dim int) Matrix {
	m := NewMatrix(dim)
	for i := 0; i < dim; i++ {
		m[i][i] = 1
	}
	return m
}

func (m Matrix) Dim() int {
	return len(m)
}

// NumQubits is log2 of the matrix dimension.
func (m Matrix) NumQubits() int {
	n := 0
	for d := len(m); d > 1; d >>= 1 {
		n++
	}
	return n
}

func (m Matrix) Clone() Matrix {
	c := NewMatrix(len(m))
	for i := range m {
		copy(c[i], m[i])
	}
	return c
}

func Mul(a, b Matrix) Matrix {
	dim := len(a)
	c := NewMatrix(dim)
	for i := 0; i < dim; i++ {
		for k := 0; k < dim; k++ {
			if a[i][k] == 0 {
				continue
			}
			for j := 0; j < dim; j++ {
				c[i][j] += a[i][k] * b[k][j]
			}
		}
	}
	return c
}

// Dagger is the conjugate transpose, the inverse of a unitary.
func Dagger(m Matrix) Matrix {
	dim := len(m)
	d := NewMatrix(dim)
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			d[i][j] = cmplx.Conj(m[j][i])
		}
	}
	return d
}

// IsUnitary checks m·m† == I within eps.
func IsUnitary(m Matrix, eps float64) bool {
	dim := len(m)
	p := Mul(m, Dagger(m))
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			want := complex(0, 0)
			if i == j {
				want = 1
			}
			if cmplx.Abs(p[i][j]-want) > eps {
				return false
			}
		}
	}
	return true
}

func x() Matrix {
	return Matrix{
		{0, 1},
		{1, 0},
	}
}

func y() Matrix {
	return Matrix{
		{0, -1i},
		{1i, 0},
	}
}

func z() Matrix {
	return Matrix{
		{1, 0},
		{0, -1},
	}
}

func h() Matrix {
	f := complex(1/math.Sqrt2, 0)
	return Matrix{
		{f, f},
		{f, -f},
	}
}

func phase(theta float64) Matrix {
	return Matrix{
		{1, 0},
		{0, cmplx.Exp(complex(0, theta))},
	}
}

func sx() Matrix {
	return Matrix{
		{complex(0.5, 0.5), complex(0.5, -0.5)},
		{complex(0.5, -0.5), complex(0.5, 0.5)},
	}
}

func rx(theta float64) Matrix {
	c := complex(math.Cos(theta/2), 0)
	js := complex(0, -math.Sin(theta/2))
	return Matrix{
		{c, js},
		{js, c},
	}
}

func ry(theta float64) Matrix {
	c := complex(math.Cos(theta/2), 0)
	s := complex(math.Sin(theta/2), 0)
	return Matrix{
		{c, -s},
		{s, c},
	}
}

func rz(theta float64) Matrix {
	e := cmplx.Exp(complex(0, theta/2))
	return Matrix{
		{cmplx.Conj(e), 0},
		{0, e},
	}
}

func u(theta, phi, lambda float64) Matrix {
	c := complex(math.Cos(theta/2), 0)
	s := complex(math.Sin(theta/2), 0)
	return Matrix{
		{c, -cmplx.Exp(complex(0, lambda)) * s},
		{cmplx.Exp(complex(0, phi)) * s, cmplx.Exp(complex(0, phi+lambda)) * c},
	}
}

// controlled embeds a single-qubit gate as a two-qubit
// controlled gate. Qubit ordering is (control, target) with the
// control as the higher-order index bit.
func controlled(g Matrix) Matrix {
	m := Identity(4)
	m[2][2] = g[0][0]
	m[2][3] = g[0][1]
	m[3][2] = g[1][0]
	m[3][3] = g[1][1]
	return m
}

func swap() Matrix {
	m := NewMatrix(4)
	m[0][0] = 1
	m[1][2] = 1
	m[2][1] = 1
	m[3][3] = 1
	return m
}

func ccx() Matrix {
	m := Identity(8)
	m[6][6] = 0
	m[6][7] = 1
	m[7][6] = 1
	m[7][7] = 0
	return m
}

func cswap() Matrix {
	m := Identity(8)
	m[5][5] = 0
	m[5][6] = 1
	m[6][5] = 1
	m[6][6] = 0
	return m
}

type paramCount struct {
	params int
	qubits int
}

var knownGates = map[string]paramCount{
	"id": {0, 1}, "x": {0, 1}, "y": {0, 1}, "z": {0, 1},
	"h": {0, 1}, "s": {0, 1}, "sdg": {0, 1}, "t": {0, 1}, "tdg": {0, 1},
	"sx": {0, 1},
	"rx": {1, 1}, "ry": {1, 1}, "rz": {1, 1}, "p": {1, 1},
	"u":  {3, 1},
	"cx": {0, 2}, "cy": {0, 2}, "cz": {0, 2}, "cp": {1, 2}, "swap": {0, 2},
	"ccx": {0, 3}, "cswap": {0, 3},
}

// Qubits returns the operand count of a known gate name, or 0.
func Qubits(name string) int {
	return knownGates[name].qubits
}

// Build maps an operation identity plus parameters to its unitary
// matrix. Unknown identity or wrong arity is a capability error for
// the caller to surface.
func Build(name string, params []float64) (Matrix, error) {
	pc, ok := knownGates[name]
	if !ok {
		return nil, &core.CapabilityError{Backend: "gate library", Operation: name}
	}
	if len(params) != pc.params {
		return nil, &core.CapabilityError{Backend: "gate library", Operation: name}
	}
	switch name {
	case "id":
		return Identity(2), nil
	case "x":
		return x(), nil
	case "y":
		return y(), nil
	case "z":
		return z(), nil
	case "h":
		return h(), nil
	case "s":
		return phase(math.Pi / 2), nil
	case "sdg":
		return phase(-math.Pi / 2), nil
	case "t":
		return phase(math.Pi / 4), nil
	case "tdg":
		return phase(-math.Pi / 4), nil
	case "sx":
		return sx(), nil
	case "rx":
		return rx(params[0]), nil
	case "ry":
		return ry(params[0]), nil
	case "rz":
		return rz(params[0]), nil
	case "p":
		return phase(params[0]), nil
	case "u":
		return u(params[0], params[1], params[2]), nil
	case "cx":
		return controlled(x()), nil
	case "cy":
		return controlled(y()), nil
	case "cz":
		return controlled(z()), nil
	case "cp":
		return controlled(phase(params[0])), nil
	case "swap":
		return swap(), nil
	case "ccx":
		return ccx(), nil
	case "cswap":
		return cswap(), nil
	}
	return nil, &core.CapabilityError{Backend: "gate library", Operation: name}
}

var cliffordGates = map[string]bool{
	"id": true, "x": true, "y": true, "z": true,
	"h": true, "s": true, "sdg": true,
	"cx": true, "cz": true, "swap": true,
}

// IsClifford reports whether the named gate stays inside the
// stabilizer formalism.
func IsClifford(name string) bool {
	return cliffordGates[name]
}
