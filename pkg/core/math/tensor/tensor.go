package tensor

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/chewxy/math32"
	gtensor "gorgonia.org/tensor"
)

// Tensor is a lightweight wrapper around gorgonia's tensor.Dense holding
// float64 data. All operations return new tensors; the underlying dense
// tensor is never shared between two Tensor values.
type Tensor struct {
	dense *gtensor.Dense
}

// New creates a zero-filled tensor with the given shape.
func New(shape ...int) Tensor {
	return Tensor{
		dense: gtensor.New(
			gtensor.WithShape(shape...),
			gtensor.Of(gtensor.Float64),
		),
	}
}

// FromSlice creates a tensor from a flat float64 slice in row-major order.
func FromSlice(shape Shape, data []float64) (Tensor, error) {
	if err := shape.Validate(); err != nil {
		return Tensor{}, err
	}
	if shape.Size() != len(data) {
		return Tensor{}, fmt.Errorf("tensor: shape %v needs %d elements, got %d", shape, shape.Size(), len(data))
	}
	backing := make([]float64, len(data))
	copy(backing, data)
	return Tensor{
		dense: gtensor.New(
			gtensor.WithShape(shape.ToSlice()...),
			gtensor.WithBacking(backing),
		),
	}, nil
}

// FromFloat32 widens a float32 slice into a float64 tensor. Model weights
// usually arrive in single precision; NaN or Inf entries are rejected before
// they can poison a bound computation.
func FromFloat32(shape Shape, data []float32) (Tensor, error) {
	if err := shape.Validate(); err != nil {
		return Tensor{}, err
	}
	if shape.Size() != len(data) {
		return Tensor{}, fmt.Errorf("tensor: shape %v needs %d elements, got %d", shape, shape.Size(), len(data))
	}
	backing := make([]float64, len(data))
	for i, v := range data {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			return Tensor{}, fmt.Errorf("tensor: non-finite value %v at index %d", v, i)
		}
		backing[i] = float64(v)
	}
	return Tensor{
		dense: gtensor.New(
			gtensor.WithShape(shape.ToSlice()...),
			gtensor.WithBacking(backing),
		),
	}, nil
}

// Identity creates the n by n identity matrix.
func Identity(n int) Tensor {
	backing := make([]float64, n*n)
	for i := 0; i < n; i++ {
		backing[i*n+i] = 1
	}
	return Tensor{
		dense: gtensor.New(
			gtensor.WithShape(n, n),
			gtensor.WithBacking(backing),
		),
	}
}

// Uniform creates a tensor with entries sampled uniformly from [lo, hi).
func Uniform(rng *rand.Rand, lo, hi float64, shape ...int) Tensor {
	size := NewShape(shape...).Size()
	backing := make([]float64, size)
	for i := range backing {
		backing[i] = lo + rng.Float64()*(hi-lo)
	}
	return Tensor{
		dense: gtensor.New(
			gtensor.WithShape(shape...),
			gtensor.WithBacking(backing),
		),
	}
}

// IsNil reports whether the tensor has no backing storage.
func (t Tensor) IsNil() bool {
	return t.dense == nil
}

// Shape returns the tensor shape.
func (t Tensor) Shape() Shape {
	if t.dense == nil {
		return nil
	}
	return NewShape(t.dense.Shape()...)
}

// Rank returns the number of dimensions.
func (t Tensor) Rank() int {
	return t.Shape().Rank()
}

// Size returns the total number of elements.
func (t Tensor) Size() int {
	return t.Shape().Size()
}

// Data returns the backing slice in row-major order. The slice is shared
// with the tensor; callers that need ownership must copy.
func (t Tensor) Data() []float64 {
	if t.dense == nil {
		return nil
	}
	return t.dense.Data().([]float64)
}

// At returns the element at the given coordinates.
func (t Tensor) At(ix ...int) (float64, error) {
	v, err := t.dense.At(ix...)
	if err != nil {
		return 0, fmt.Errorf("Tensor.At: %w", err)
	}
	return v.(float64), nil
}

// SetAt sets the element at the given coordinates.
func (t Tensor) SetAt(v float64, ix ...int) error {
	if err := t.dense.SetAt(v, ix...); err != nil {
		return fmt.Errorf("Tensor.SetAt: %w", err)
	}
	return nil
}

// Clone returns a deep copy.
func (t Tensor) Clone() Tensor {
	if t.dense == nil {
		return Tensor{}
	}
	return Tensor{dense: t.dense.Clone().(*gtensor.Dense)}
}

// Reshape returns a copy with the given shape.
func (t Tensor) Reshape(shape ...int) (Tensor, error) {
	out := t.Clone()
	if err := out.dense.Reshape(shape...); err != nil {
		return Tensor{}, fmt.Errorf("Tensor.Reshape: %w", err)
	}
	return out, nil
}

// Transpose returns a copy with axes permuted by perm, materialized in
// row-major order. With no arguments the axes are reversed.
func (t Tensor) Transpose(perm ...int) (Tensor, error) {
	shape := t.Shape()
	r := shape.Rank()
	if len(perm) == 0 {
		perm = make([]int, r)
		for i := range perm {
			perm[i] = r - 1 - i
		}
	}
	if len(perm) != r {
		return Tensor{}, fmt.Errorf("Tensor.Transpose: perm length %d does not match rank %d", len(perm), r)
	}
	seen := make([]bool, r)
	outShape := make(Shape, r)
	for i, p := range perm {
		if p < 0 || p >= r || seen[p] {
			return Tensor{}, fmt.Errorf("Tensor.Transpose: perm %v is not a permutation of 0..%d", perm, r-1)
		}
		seen[p] = true
		outShape[i] = shape[p]
	}

	inStrides := rowMajorStrides(shape)
	outStrides := rowMajorStrides(outShape)
	src := t.Data()
	dst := make([]float64, len(src))
	index := make([]int, r)
	for flat := range src {
		rem := flat
		for d := 0; d < r; d++ {
			index[d] = rem / inStrides[d]
			rem %= inStrides[d]
		}
		out := 0
		for d := 0; d < r; d++ {
			out += index[perm[d]] * outStrides[d]
		}
		dst[out] = src[flat]
	}
	return FromSlice(outShape, dst)
}

func rowMajorStrides(shape Shape) []int {
	strides := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}
	return strides
}

// MatMul computes the matrix product of two 2-D tensors.
func (t Tensor) MatMul(o Tensor) (Tensor, error) {
	out, err := t.dense.MatMul(o.dense)
	if err != nil {
		return Tensor{}, fmt.Errorf("Tensor.MatMul: %w", err)
	}
	return Tensor{dense: out}, nil
}

// MatVecMul multiplies a 2-D tensor with a vector.
func (t Tensor) MatVecMul(v Tensor) (Tensor, error) {
	out, err := t.dense.MatVecMul(v.dense)
	if err != nil {
		return Tensor{}, fmt.Errorf("Tensor.MatVecMul: %w", err)
	}
	return Tensor{dense: out}, nil
}

// Add computes the elementwise sum.
func (t Tensor) Add(o Tensor) (Tensor, error) {
	out, err := gtensor.Add(t.dense, o.dense)
	if err != nil {
		return Tensor{}, fmt.Errorf("Tensor.Add: %w", err)
	}
	return Tensor{dense: out.(*gtensor.Dense)}, nil
}

// Sub computes the elementwise difference.
func (t Tensor) Sub(o Tensor) (Tensor, error) {
	out, err := gtensor.Sub(t.dense, o.dense)
	if err != nil {
		return Tensor{}, fmt.Errorf("Tensor.Sub: %w", err)
	}
	return Tensor{dense: out.(*gtensor.Dense)}, nil
}

// Scale multiplies every element by a.
func (t Tensor) Scale(a float64) Tensor {
	out := t.Clone()
	data := out.Data()
	for i := range data {
		data[i] *= a
	}
	return out
}

// ClampMin replaces every element below v with v.
func (t Tensor) ClampMin(v float64) Tensor {
	out := t.Clone()
	data := out.Data()
	for i, x := range data {
		if x < v {
			data[i] = v
		}
	}
	return out
}

// Pad zero-pads the tensor with before[i] leading and after[i] trailing
// entries along axis i.
func (t Tensor) Pad(before, after []int) (Tensor, error) {
	shape := t.Shape()
	r := shape.Rank()
	if len(before) != r || len(after) != r {
		return Tensor{}, fmt.Errorf("Tensor.Pad: padding needs %d entries per side, got %d and %d", r, len(before), len(after))
	}
	outShape := make(Shape, r)
	for i := range outShape {
		if before[i] < 0 || after[i] < 0 {
			return Tensor{}, fmt.Errorf("Tensor.Pad: negative padding at axis %d", i)
		}
		outShape[i] = before[i] + shape[i] + after[i]
	}

	inStrides := rowMajorStrides(shape)
	outStrides := rowMajorStrides(outShape)
	src := t.Data()
	dst := make([]float64, outShape.Size())
	index := make([]int, r)
	for flat := range src {
		rem := flat
		out := 0
		for d := 0; d < r; d++ {
			index[d] = rem / inStrides[d]
			rem %= inStrides[d]
			out += (index[d] + before[d]) * outStrides[d]
		}
		dst[out] = src[flat]
	}
	return FromSlice(outShape, dst)
}

// EqualsApprox reports whether two tensors have the same shape and all
// elements within tol of each other.
func (t Tensor) EqualsApprox(o Tensor, tol float64) bool {
	if !t.Shape().Equal(o.Shape()) {
		return false
	}
	a, b := t.Data(), o.Data()
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}
