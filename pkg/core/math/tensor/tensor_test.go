package tensor

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSlice(t *testing.T) {
	tests := []struct {
		name        string
		shape       Shape
		data        []float64
		expectError bool
	}{
		{name: "matrix", shape: NewShape(2, 2), data: []float64{1, 2, 3, 4}},
		{name: "vector", shape: NewShape(3), data: []float64{1, 2, 3}},
		{name: "size_mismatch", shape: NewShape(2, 2), data: []float64{1, 2}, expectError: true},
		{name: "empty_shape", shape: NewShape(), data: nil, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := FromSlice(tt.shape, tt.data)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, ts.Shape().Equal(tt.shape))
			assert.Equal(t, tt.data, ts.Data())
		})
	}
}

func TestFromSlice_CopiesData(t *testing.T) {
	data := []float64{1, 2, 3}
	ts, err := FromSlice(NewShape(3), data)
	require.NoError(t, err)
	data[0] = 99
	v, err := ts.At(0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
}

func TestFromFloat32(t *testing.T) {
	tests := []struct {
		name        string
		data        []float32
		expectError bool
	}{
		{name: "finite", data: []float32{1, -2.5}},
		{name: "nan", data: []float32{1, float32(math.NaN())}, expectError: true},
		{name: "inf", data: []float32{float32(math.Inf(1)), 0}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := FromFloat32(NewShape(2), tt.data)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []float64{1, -2.5}, ts.Data())
		})
	}
}

func TestIdentity(t *testing.T) {
	id := Identity(3)
	assert.True(t, id.Shape().Equal(NewShape(3, 3)))
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			v, err := id.At(i, j)
			require.NoError(t, err)
			if i == j {
				assert.Equal(t, 1.0, v)
			} else {
				assert.Equal(t, 0.0, v)
			}
		}
	}
}

func TestUniform(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	ts := Uniform(rng, -0.5, 0.5, 4, 4)
	assert.True(t, ts.Shape().Equal(NewShape(4, 4)))
	for _, v := range ts.Data() {
		assert.GreaterOrEqual(t, v, -0.5)
		assert.Less(t, v, 0.5)
	}
}

func TestTensor_MatVecMul(t *testing.T) {
	m, err := FromSlice(NewShape(2, 3), []float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	v, err := FromSlice(NewShape(3), []float64{1, 0, -1})
	require.NoError(t, err)

	out, err := m.MatVecMul(v)
	require.NoError(t, err)
	assert.Equal(t, []float64{-2, -2}, out.Data())
}

func TestTensor_MatMul(t *testing.T) {
	a, err := FromSlice(NewShape(2, 2), []float64{1, 2, 3, 4})
	require.NoError(t, err)
	b, err := FromSlice(NewShape(2, 2), []float64{0, 1, 1, 0})
	require.NoError(t, err)

	out, err := a.MatMul(b)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 1, 4, 3}, out.Data())
}

func TestTensor_Transpose(t *testing.T) {
	a, err := FromSlice(NewShape(2, 3), []float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)

	tr, err := a.Transpose()
	require.NoError(t, err)
	assert.True(t, tr.Shape().Equal(NewShape(3, 2)))
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, tr.Data())
}

func TestTensor_Reshape(t *testing.T) {
	a, err := FromSlice(NewShape(2, 3), []float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)

	r, err := a.Reshape(3, 2)
	require.NoError(t, err)
	assert.True(t, r.Shape().Equal(NewShape(3, 2)))
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, r.Data())

	// The original keeps its shape.
	assert.True(t, a.Shape().Equal(NewShape(2, 3)))
}

func TestTensor_Arithmetic(t *testing.T) {
	a, err := FromSlice(NewShape(2), []float64{1, 2})
	require.NoError(t, err)
	b, err := FromSlice(NewShape(2), []float64{3, -1})
	require.NoError(t, err)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 1}, sum.Data())

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, []float64{-2, 3}, diff.Data())

	assert.Equal(t, []float64{2, 4}, a.Scale(2).Data())
}

func TestTensor_ClampMin(t *testing.T) {
	a, err := FromSlice(NewShape(4), []float64{-2, -0.5, 0, 3})
	require.NoError(t, err)
	clamped := a.ClampMin(0)
	assert.Equal(t, []float64{0, 0, 0, 3}, clamped.Data())
	// Original untouched.
	assert.Equal(t, []float64{-2, -0.5, 0, 3}, a.Data())
}

func TestTensor_Pad(t *testing.T) {
	a, err := FromSlice(NewShape(2, 2), []float64{1, 2, 3, 4})
	require.NoError(t, err)

	padded, err := a.Pad([]int{0, 1}, []int{1, 0})
	require.NoError(t, err)
	assert.True(t, padded.Shape().Equal(NewShape(3, 3)))
	assert.Equal(t, []float64{
		0, 1, 2,
		0, 3, 4,
		0, 0, 0,
	}, padded.Data())

	_, err = a.Pad([]int{1}, []int{1})
	assert.Error(t, err, "padding arity must match rank")
	_, err = a.Pad([]int{-1, 0}, []int{0, 0})
	assert.Error(t, err)
}

func TestTensor_EqualsApprox(t *testing.T) {
	a, _ := FromSlice(NewShape(2), []float64{1, 2})
	b, _ := FromSlice(NewShape(2), []float64{1 + 1e-9, 2})
	c, _ := FromSlice(NewShape(2), []float64{1.1, 2})
	assert.True(t, a.EqualsApprox(b, 1e-6))
	assert.False(t, a.EqualsApprox(c, 1e-6))
}
