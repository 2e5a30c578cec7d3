package bounds

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func box(t *testing.T, lower, upper []float64) HyperRectBounds {
	t.Helper()
	b, err := NewHyperRectBounds(lower, upper)
	require.NoError(t, err)
	return b
}

func TestNewSymbolicLinearBounds_DimensionMismatch(t *testing.T) {
	_, err := NewSymbolicLinearBounds(IdentityFunctions(2), IdentityFunctions(3))
	assert.Error(t, err)
}

func TestIdentityBounds_Concretize(t *testing.T) {
	// Identity bounds concretize to the box itself.
	s := IdentityBounds(2)
	b := box(t, []float64{-1, 0}, []float64{1, 2})

	out, err := s.ToHyperRectBounds(b)
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 0}, out.Lower())
	assert.Equal(t, []float64{1, 2}, out.Upper())
}

func TestSymbolicLinearBounds_Concretize_SignSeparation(t *testing.T) {
	// Single function f = x0 - x1 as both bounds over [0,1] x [0,1]:
	// min pairs +1 with 0 and -1 with 1; max does the opposite.
	f, err := NewLinearFunctions(mat.NewDense(1, 2, []float64{1, -1}), mat.NewVecDense(1, []float64{0}))
	require.NoError(t, err)
	s, err := NewSymbolicLinearBounds(f, f.Clone())
	require.NoError(t, err)

	out, err := s.ToHyperRectBounds(box(t, []float64{0, 0}, []float64{1, 1}))
	require.NoError(t, err)
	assert.Equal(t, []float64{-1}, out.Lower())
	assert.Equal(t, []float64{1}, out.Upper())
}

func TestSymbolicLinearBounds_AllBounds(t *testing.T) {
	s := IdentityBounds(1)
	lowerMin, lowerMax, upperMin, upperMax, err := s.AllBounds(box(t, []float64{-2}, []float64{4}))
	require.NoError(t, err)
	assert.Equal(t, []float64{-2}, lowerMin)
	assert.Equal(t, []float64{4}, lowerMax)
	assert.Equal(t, []float64{-2}, upperMin)
	assert.Equal(t, []float64{4}, upperMax)
}

func TestSymbolicLinearBounds_ConcretizationMonotonicity(t *testing.T) {
	// Shrinking the box must not loosen the concretized bounds.
	f, err := NewLinearFunctions(
		mat.NewDense(2, 2, []float64{1, -2, 0.5, 3}),
		mat.NewVecDense(2, []float64{0.25, -1}),
	)
	require.NoError(t, err)
	s, err := NewSymbolicLinearBounds(f, f.Clone())
	require.NoError(t, err)

	wide, err := s.ToHyperRectBounds(box(t, []float64{-1, -1}, []float64{1, 1}))
	require.NoError(t, err)
	narrow, err := s.ToHyperRectBounds(box(t, []float64{-0.5, 0}, []float64{0.5, 1}))
	require.NoError(t, err)

	for i := 0; i < wide.Size(); i++ {
		assert.GreaterOrEqual(t, narrow.Lower()[i], wide.Lower()[i])
		assert.LessOrEqual(t, narrow.Upper()[i], wide.Upper()[i])
	}
}
