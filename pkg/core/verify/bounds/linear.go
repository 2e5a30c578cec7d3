// Package bounds implements the symbolic linear bound abstraction used by the
// bound propagation engine: affine functions of the network input that
// sandwich the value of every neuron over an input box.
package bounds

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// LinearFunctions is a batch of affine functions x -> M*x + q over the
// original network input x. Row i of the matrix together with element i of
// the offset describes one function.
type LinearFunctions struct {
	matrix *mat.Dense
	offset *mat.VecDense
}

// NewLinearFunctions wraps a matrix and an offset vector. The number of
// matrix rows must equal the offset length.
func NewLinearFunctions(matrix *mat.Dense, offset *mat.VecDense) (LinearFunctions, error) {
	rows, _ := matrix.Dims()
	if rows != offset.Len() {
		return LinearFunctions{}, fmt.Errorf("LinearFunctions: matrix has %d rows but offset has %d elements", rows, offset.Len())
	}
	return LinearFunctions{matrix: matrix, offset: offset}, nil
}

// IdentityFunctions returns the identity map over n variables: I_n * x + 0.
func IdentityFunctions(n int) LinearFunctions {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return LinearFunctions{matrix: m, offset: mat.NewVecDense(n, nil)}
}

// Matrix returns the coefficient matrix.
func (f LinearFunctions) Matrix() *mat.Dense {
	return f.matrix
}

// Offset returns the offset vector.
func (f LinearFunctions) Offset() *mat.VecDense {
	return f.offset
}

// Rows returns the number of functions in the batch.
func (f LinearFunctions) Rows() int {
	rows, _ := f.matrix.Dims()
	return rows
}

// Vars returns the number of input variables.
func (f LinearFunctions) Vars() int {
	_, cols := f.matrix.Dims()
	return cols
}

// Clone returns a deep copy.
func (f LinearFunctions) Clone() LinearFunctions {
	return LinearFunctions{
		matrix: mat.DenseCopyOf(f.matrix),
		offset: mat.VecDenseCopyOf(f.offset),
	}
}

// Evaluate computes M*x + q for a concrete input point.
func (f LinearFunctions) Evaluate(x []float64) ([]float64, error) {
	if len(x) != f.Vars() {
		return nil, fmt.Errorf("LinearFunctions.Evaluate: expected %d variables, got %d", f.Vars(), len(x))
	}
	var y mat.VecDense
	y.MulVec(f.matrix, mat.NewVecDense(len(x), x))
	y.AddVec(&y, f.offset)
	out := make([]float64, y.Len())
	copy(out, y.RawVector().Data)
	return out, nil
}

// MinValues computes, per function, the minimum of M*x + q over the box by
// pairing positive coefficients with the lower corner and negative ones with
// the upper corner.
func (f LinearFunctions) MinValues(box HyperRectBounds) ([]float64, error) {
	return f.cornerValues(box.Lower(), box.Upper())
}

// MaxValues computes, per function, the maximum of M*x + q over the box.
func (f LinearFunctions) MaxValues(box HyperRectBounds) ([]float64, error) {
	return f.cornerValues(box.Upper(), box.Lower())
}

// cornerValues pairs positive coefficients with pos and negative coefficients
// with neg, then adds the offset.
func (f LinearFunctions) cornerValues(pos, neg []float64) ([]float64, error) {
	rows, cols := f.matrix.Dims()
	if cols != len(pos) {
		return nil, fmt.Errorf("LinearFunctions: expected box of size %d, got %d", cols, len(pos))
	}
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		acc := f.offset.AtVec(i)
		for j := 0; j < cols; j++ {
			c := f.matrix.At(i, j)
			if c >= 0 {
				acc += c * pos[j]
			} else {
				acc += c * neg[j]
			}
		}
		out[i] = acc
	}
	return out, nil
}

// PositivePart returns max(m, 0) elementwise.
func PositivePart(m *mat.Dense) *mat.Dense {
	out := mat.DenseCopyOf(m)
	out.Apply(func(_, _ int, v float64) float64 {
		if v > 0 {
			return v
		}
		return 0
	}, out)
	return out
}

// NegativePart returns min(m, 0) elementwise.
func NegativePart(m *mat.Dense) *mat.Dense {
	out := mat.DenseCopyOf(m)
	out.Apply(func(_, _ int, v float64) float64 {
		if v < 0 {
			return v
		}
		return 0
	}, out)
	return out
}
