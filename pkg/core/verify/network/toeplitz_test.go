package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/itohio/EasyVerify/pkg/core/math/tensor"
)

func TestToeplitz(t *testing.T) {
	got := toeplitz([]float64{1, 4, 5}, []float64{1, 2, 3})
	want := [][]float64{
		{1, 2, 3},
		{4, 1, 2},
		{5, 4, 1},
	}
	assert.Equal(t, want, got)

	// The corner comes from the first column.
	got = toeplitz([]float64{9, 0}, []float64{1, 2})
	assert.Equal(t, [][]float64{{9, 2}, {0, 9}}, got)
}

func TestStrideTrim(t *testing.T) {
	m := [][]int{
		{1, 2, 3, 4},
		{5, 6, 7, 8},
		{9, 10, 11, 12},
	}
	assert.Equal(t, [][]int{{2, 3}, {10, 11}}, strideTrim(m, 2, 1))
	assert.Equal(t, [][]int{{1, 2, 3, 4}, {5, 6, 7, 8}, {9, 10, 11, 12}}, strideTrim(m, 1, 0))
}

func TestFilterAsMatrix_AllOnes2x2On3x3(t *testing.T) {
	filter := [][]float64{{1, 1}, {1, 1}}
	got, err := filterAsMatrix(filter, 3, 3, 1, 0)
	require.NoError(t, err)

	// Row r hits exactly the four inputs under the kernel at output pixel r.
	want := [][]float64{
		{1, 1, 0, 1, 1, 0, 0, 0, 0},
		{0, 1, 1, 0, 1, 1, 0, 0, 0},
		{0, 0, 0, 1, 1, 0, 1, 1, 0},
		{0, 0, 0, 0, 1, 1, 0, 1, 1},
	}
	assert.Equal(t, want, got)
}

func TestFilterAsMatrix_Stride2(t *testing.T) {
	filter := [][]float64{{1, 2}, {3, 4}}
	got, err := filterAsMatrix(filter, 3, 3, 2, 0)
	require.NoError(t, err)

	// A single output pixel covering the top-left window.
	want := [][]float64{
		{1, 2, 0, 3, 4, 0, 0, 0, 0},
	}
	assert.Equal(t, want, got)
}

func TestFilterAsMatrix_Padded(t *testing.T) {
	filter := [][]float64{{1, 2}, {3, 4}}
	got, err := filterAsMatrix(filter, 2, 2, 1, 1)
	require.NoError(t, err)

	// 3x3 output over a 2x2 input zero-padded by one on every side.
	want := [][]float64{
		{4, 0, 0, 0},
		{3, 4, 0, 0},
		{0, 3, 0, 0},
		{2, 0, 4, 0},
		{1, 2, 3, 4},
		{0, 1, 0, 3},
		{0, 0, 2, 0},
		{0, 0, 1, 2},
		{0, 0, 0, 1},
	}
	assert.Equal(t, want, got)

	// The padded reduction agrees with the direct convolution.
	input := []float64{5, -1, 2, 7}
	direct := []float64{
		4 * 5, 3*5 + 4*-1, 3 * -1,
		2*5 + 4*2, 1*5 + 2*-1 + 3*2 + 4*7, 1*-1 + 3*7,
		2 * 2, 1*2 + 2*7, 1 * 7,
	}
	for r, row := range got {
		acc := 0.0
		for j, w := range row {
			acc += w * input[j]
		}
		assert.InDelta(t, direct[r], acc, 1e-12, "output pixel %d", r)
	}
}

func TestFilterAsMatrix_KernelTooLarge(t *testing.T) {
	filter := [][]float64{{1, 1, 1}, {1, 1, 1}, {1, 1, 1}}
	_, err := filterAsMatrix(filter, 2, 2, 1, 0)
	assert.Error(t, err)
}

func TestFilterMatrices_OneByOneKernel(t *testing.T) {
	weight := mustTensor(t, tensor.NewShape(1, 1, 1, 1), []float64{2})
	node, err := NewConvNode("conv", tensor.NewShape(1, 2, 2), 1,
		[]int{1, 1}, []int{1, 1}, []int{0, 0, 0, 0}, []int{1, 1}, 1,
		WithConvWeight(weight))
	require.NoError(t, err)

	filters, err := node.FilterMatrices()
	require.NoError(t, err)
	require.Len(t, filters, 1)

	// A 1x1 kernel of value 2 reduces to 2*I over the flattened input.
	want := mat.NewDense(4, 4, []float64{
		2, 0, 0, 0,
		0, 2, 0, 0,
		0, 0, 2, 0,
		0, 0, 0, 2,
	})
	assert.True(t, mat.EqualApprox(filters[0], want, 1e-12))
}

func TestFilterMatrices_ChannelInterleaving(t *testing.T) {
	// Two channels with 1x1 kernels 2 and 3: columns alternate channels.
	weight := mustTensor(t, tensor.NewShape(1, 2, 1, 1), []float64{2, 3})
	node, err := NewConvNode("conv", tensor.NewShape(2, 2, 2), 1,
		[]int{1, 1}, []int{1, 1}, []int{0, 0, 0, 0}, []int{1, 1}, 1,
		WithConvWeight(weight))
	require.NoError(t, err)

	filters, err := node.FilterMatrices()
	require.NoError(t, err)
	require.Len(t, filters, 1)

	want := mat.NewDense(4, 8, []float64{
		2, 3, 0, 0, 0, 0, 0, 0,
		0, 0, 2, 3, 0, 0, 0, 0,
		0, 0, 0, 0, 2, 3, 0, 0,
		0, 0, 0, 0, 0, 0, 2, 3,
	})
	assert.True(t, mat.EqualApprox(filters[0], want, 1e-12))
}

func TestFilterMatrices_Unsupported(t *testing.T) {
	node, err := NewConvNode("conv", tensor.NewShape(2, 4, 4), 2,
		[]int{2, 2}, []int{1, 1}, []int{0, 0, 0, 0}, []int{1, 1}, 2)
	require.NoError(t, err)
	_, err = node.FilterMatrices()
	assert.Error(t, err, "grouped convolutions are not reducible")

	node, err = NewConvNode("conv", tensor.NewShape(1, 7, 7), 1,
		[]int{3, 3}, []int{1, 1}, []int{0, 0, 0, 0}, []int{2, 2}, 1)
	require.NoError(t, err)
	_, err = node.FilterMatrices()
	assert.Error(t, err, "dilated convolutions are not reducible")

	node, err = NewConvNode("conv", tensor.NewShape(1, 4, 4), 1,
		[]int{2, 2}, []int{1, 1}, []int{1, 0, 1, 0}, []int{1, 1}, 1)
	require.NoError(t, err)
	_, err = node.FilterMatrices()
	assert.Error(t, err, "asymmetric padding is not reducible")
}

// The reduction contract: multiplying the Toeplitz stack with the
// channels-innermost flattening of the input equals the direct convolution.
func TestFilterMatrices_MatchesDirectConvolution(t *testing.T) {
	tests := []struct {
		name    string
		inDim   tensor.Shape
		filters int
		kernel  int
		stride  int
		pad     int
	}{
		{name: "single_channel", inDim: tensor.NewShape(1, 4, 4), filters: 1, kernel: 2, stride: 1, pad: 0},
		{name: "multi_channel", inDim: tensor.NewShape(2, 3, 3), filters: 2, kernel: 2, stride: 1, pad: 0},
		{name: "strided", inDim: tensor.NewShape(1, 5, 5), filters: 1, kernel: 3, stride: 2, pad: 0},
		{name: "padded", inDim: tensor.NewShape(2, 4, 4), filters: 3, kernel: 3, stride: 1, pad: 1},
		{name: "strided_padded", inDim: tensor.NewShape(1, 4, 4), filters: 2, kernel: 3, stride: 2, pad: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			channels := tt.inDim[0]
			weightShape := tensor.NewShape(tt.filters, channels, tt.kernel, tt.kernel)
			weightData := make([]float64, weightShape.Size())
			for i := range weightData {
				// Deterministic, sign-varying weights.
				weightData[i] = float64((i%7)-3) * 0.25
			}
			weight := mustTensor(t, weightShape, weightData)

			node, err := NewConvNode("conv", tt.inDim, tt.filters,
				[]int{tt.kernel, tt.kernel}, []int{tt.stride, tt.stride},
				[]int{tt.pad, tt.pad, tt.pad, tt.pad}, []int{1, 1}, 1,
				WithConvWeight(weight))
			require.NoError(t, err)

			input := make([]float64, tt.inDim.Size())
			for i := range input {
				input[i] = float64((i%5)-2) * 0.5
			}

			direct, err := forwardConv(node, input)
			require.NoError(t, err)

			filters, err := node.FilterMatrices()
			require.NoError(t, err)

			outC := node.OutDim()[0]
			rows, _ := filters[0].Dims()
			require.Equal(t, node.OutDim()[1]*node.OutDim()[2], rows)

			for f, m := range filters {
				for r := 0; r < rows; r++ {
					acc := 0.0
					for j := 0; j < len(input); j++ {
						acc += m.At(r, j) * input[j]
					}
					assert.InDelta(t, direct[r*outC+f], acc, 1e-6,
						"filter %d output pixel %d", f, r)
				}
			}
		})
	}
}
