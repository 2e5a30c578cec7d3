package bounds

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHyperRectBounds(t *testing.T) {
	tests := []struct {
		name        string
		lower       []float64
		upper       []float64
		expectError bool
	}{
		{name: "valid", lower: []float64{-1, 0}, upper: []float64{1, 0}},
		{name: "length_mismatch", lower: []float64{0}, upper: []float64{1, 2}, expectError: true},
		{name: "inverted", lower: []float64{2}, upper: []float64{1}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewHyperRectBounds(tt.lower, tt.upper)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.lower, b.Lower())
			assert.Equal(t, tt.upper, b.Upper())
			assert.Equal(t, len(tt.lower), b.Size())
		})
	}
}

func TestHyperRectBounds_Contains(t *testing.T) {
	b, err := NewHyperRectBounds([]float64{-1, -1}, []float64{1, 1})
	require.NoError(t, err)

	assert.True(t, b.Contains([]float64{0, 0}))
	assert.True(t, b.Contains([]float64{-1, 1}))
	assert.False(t, b.Contains([]float64{1.5, 0}))
	assert.False(t, b.Contains([]float64{0}))
}

func TestHyperRectBounds_CopiesInput(t *testing.T) {
	lower := []float64{0}
	upper := []float64{1}
	b, err := NewHyperRectBounds(lower, upper)
	require.NoError(t, err)
	lower[0] = -99
	assert.Equal(t, 0.0, b.Lower()[0])
}
