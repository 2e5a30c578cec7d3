package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/EasyVerify/pkg/core/math/tensor"
)

func buildFCReLUNet(t *testing.T) *Network {
	t.Helper()
	weight := mustTensor(t, tensor.NewShape(2, 2), []float64{1, -1, 1, 1})

	net := NewNetwork()
	fc, err := NewFullyConnectedNode("fc1", tensor.NewShape(2), 2, WithWeight(weight), WithoutBias())
	require.NoError(t, err)
	require.NoError(t, net.Add(fc))

	relu, err := NewReLUNode("relu1", tensor.NewShape(2))
	require.NoError(t, err)
	require.NoError(t, net.Add(relu))
	return net
}

func TestNetwork_Add(t *testing.T) {
	net := buildFCReLUNet(t)
	assert.Equal(t, 2, net.Len())
	assert.Equal(t, "fc1", net.First().Identifier())
	assert.Equal(t, "relu1", net.Last().Identifier())
	assert.Equal(t, "relu1", net.Next(net.First()).Identifier())
	assert.Nil(t, net.Next(net.Last()))
	assert.Equal(t, 2, net.InputSize())

	node, ok := net.Node("fc1")
	assert.True(t, ok)
	assert.Equal(t, "fc1", node.Identifier())
	_, ok = net.Node("missing")
	assert.False(t, ok)
}

func TestNetwork_Add_Validation(t *testing.T) {
	net := buildFCReLUNet(t)

	// Duplicate identifier.
	dup, err := NewReLUNode("relu1", tensor.NewShape(2))
	require.NoError(t, err)
	assert.Error(t, net.Add(dup))

	// Shape chain mismatch.
	bad, err := NewReLUNode("relu2", tensor.NewShape(3))
	require.NoError(t, err)
	assert.Error(t, net.Add(bad))

	assert.Error(t, net.Add(nil))
}

func TestNetwork_Forward_FCReLU(t *testing.T) {
	net := buildFCReLUNet(t)

	tests := []struct {
		name  string
		input []float64
		want  []float64
	}{
		{name: "positive_both", input: []float64{1, 0}, want: []float64{1, 1}},
		{name: "mixed", input: []float64{0, 1}, want: []float64{0, 1}},
		{name: "negative_clamped", input: []float64{-1, 1}, want: []float64{0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := net.Forward(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := net.Forward([]float64{1})
	assert.Error(t, err, "input size mismatch")
}

func TestNetwork_Forward_Bias(t *testing.T) {
	weight := mustTensor(t, tensor.NewShape(2, 2), []float64{2, 1, 0, 3})
	bias := mustTensor(t, tensor.NewShape(2), []float64{1, -1})

	net := NewNetwork()
	fc, err := NewFullyConnectedNode("fc", tensor.NewShape(2), 2, WithWeight(weight), WithBias(bias))
	require.NoError(t, err)
	require.NoError(t, net.Add(fc))

	got, err := net.Forward([]float64{1, 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 2}, got)
}

func TestNetwork_Forward_Conv(t *testing.T) {
	// All-ones 2x2 kernel on a 3x3 plane sums each window.
	weight := mustTensor(t, tensor.NewShape(1, 1, 2, 2), []float64{1, 1, 1, 1})
	net := NewNetwork()
	conv, err := NewConvNode("conv", tensor.NewShape(1, 3, 3), 1,
		[]int{2, 2}, []int{1, 1}, []int{0, 0, 0, 0}, []int{1, 1}, 1,
		WithConvWeight(weight))
	require.NoError(t, err)
	require.NoError(t, net.Add(conv))

	input := []float64{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}
	got, err := net.Forward(input)
	require.NoError(t, err)
	assert.Equal(t, []float64{12, 16, 24, 28}, got)
}

func TestNetwork_Forward_Unsupported(t *testing.T) {
	net := NewNetwork()
	sigmoid, err := NewSigmoidNode("sig", tensor.NewShape(2))
	require.NoError(t, err)
	require.NoError(t, net.Add(sigmoid))

	_, err = net.Forward([]float64{0, 0})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sig")
}
