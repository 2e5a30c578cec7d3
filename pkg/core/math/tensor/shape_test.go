package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShape_Size(t *testing.T) {
	tests := []struct {
		name  string
		shape Shape
		size  int
	}{
		{name: "scalar", shape: NewShape(), size: 1},
		{name: "vector", shape: NewShape(5), size: 5},
		{name: "matrix", shape: NewShape(2, 3), size: 6},
		{name: "rank3", shape: NewShape(2, 3, 4), size: 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.size, tt.shape.Size())
		})
	}
}

func TestShape_Equal(t *testing.T) {
	assert.True(t, NewShape(2, 3).Equal(NewShape(2, 3)))
	assert.False(t, NewShape(2, 3).Equal(NewShape(3, 2)))
	assert.False(t, NewShape(2, 3).Equal(NewShape(2, 3, 1)))
}

func TestShape_Clone(t *testing.T) {
	s := NewShape(2, 3)
	c := s.Clone()
	c[0] = 7
	assert.Equal(t, 2, s[0], "clone must not alias the original")
}

func TestShape_Validate(t *testing.T) {
	tests := []struct {
		name        string
		shape       Shape
		expectError bool
	}{
		{name: "valid", shape: NewShape(2, 3)},
		{name: "empty", shape: NewShape(), expectError: true},
		{name: "zero_dim", shape: NewShape(2, 0), expectError: true},
		{name: "negative_dim", shape: NewShape(-1), expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.shape.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
