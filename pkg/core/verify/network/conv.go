package network

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/itohio/EasyVerify/pkg/core/math/tensor"
)

// ConvNode is an n-dimensional convolution over an input of shape
// (channels, spatial...). Padding is per-axis begin/end in the ONNX layout
// [x1_begin, x2_begin, ..., x1_end, x2_end, ...].
type ConvNode struct {
	base
	inChannels  int
	outChannels int
	kernel      []int
	stride      []int
	padding     []int
	dilation    []int
	groups      int
	weight      tensor.Tensor
	bias        tensor.Tensor
	hasBias     bool
}

// ConvOption configures a ConvNode.
type ConvOption func(*ConvNode)

// WithConvWeight sets the weight tensor, shape
// (out_channels, in_channels/groups, kernel...).
func WithConvWeight(w tensor.Tensor) ConvOption {
	return func(n *ConvNode) { n.weight = w }
}

// WithConvBias sets the bias tensor, shape (out_channels,), and enables the
// bias term.
func WithConvBias(b tensor.Tensor) ConvOption {
	return func(n *ConvNode) {
		n.bias = b
		n.hasBias = true
	}
}

// WithConvSampledBias enables the bias term with default sampling.
func WithConvSampledBias() ConvOption {
	return func(n *ConvNode) { n.hasBias = true }
}

// NewConvNode creates a convolution node. When no weight is supplied it is
// sampled uniformly from +-sqrt(groups / (in_channels * prod(kernel))).
func NewConvNode(identifier string, inDim tensor.Shape, outChannels int,
	kernel, stride, padding, dilation []int, groups int, opts ...ConvOption) (*ConvNode, error) {

	if inDim.Rank() < 2 {
		return nil, shapeErrorf(identifier, "in_dim", "rank >= 2", inDim)
	}
	spatial := inDim.Rank() - 1
	if len(kernel) != spatial {
		return nil, shapeErrorf(identifier, "kernel", fmt.Sprintf("length %d", spatial), len(kernel))
	}
	if len(stride) != spatial {
		return nil, shapeErrorf(identifier, "stride", fmt.Sprintf("length %d", spatial), len(stride))
	}
	if len(padding) != 2*spatial {
		return nil, shapeErrorf(identifier, "padding", fmt.Sprintf("length %d", 2*spatial), len(padding))
	}
	if len(dilation) != spatial {
		return nil, shapeErrorf(identifier, "dilation", fmt.Sprintf("length %d", spatial), len(dilation))
	}
	for i := 0; i < spatial; i++ {
		if kernel[i] < 1 {
			return nil, shapeErrorf(identifier, "kernel", "positive entries", kernel)
		}
		if stride[i] < 1 {
			return nil, shapeErrorf(identifier, "stride", "positive entries", stride)
		}
		if dilation[i] < 1 {
			return nil, shapeErrorf(identifier, "dilation", "positive entries", dilation)
		}
	}
	for _, p := range padding {
		if p < 0 {
			return nil, shapeErrorf(identifier, "padding", "non-negative entries", padding)
		}
	}
	if groups < 1 {
		return nil, shapeErrorf(identifier, "groups", "positive value", groups)
	}
	if outChannels < 1 {
		return nil, shapeErrorf(identifier, "out_channels", "positive value", outChannels)
	}
	inChannels := inDim[0]
	if inChannels%groups != 0 || outChannels%groups != 0 {
		return nil, shapeErrorf(identifier, "groups",
			fmt.Sprintf("divisor of in_channels (%d) and out_channels (%d)", inChannels, outChannels), groups)
	}

	outDim := make(tensor.Shape, inDim.Rank())
	outDim[0] = outChannels
	for i := 1; i < inDim.Rank(); i++ {
		num := inDim[i] + padding[i-1] + padding[i-1+spatial] - dilation[i-1]*(kernel[i-1]-1) - 1
		size := num/stride[i-1] + 1
		if num < 0 || size < 1 {
			return nil, shapeErrorf(identifier, "kernel",
				fmt.Sprintf("output axis %d must be positive", i), size)
		}
		outDim[i] = size
	}

	n := &ConvNode{
		base:        newBase(identifier, inDim, outDim),
		inChannels:  inChannels,
		outChannels: outChannels,
		kernel:      append([]int(nil), kernel...),
		stride:      append([]int(nil), stride...),
		padding:     append([]int(nil), padding...),
		dilation:    append([]int(nil), dilation...),
		groups:      groups,
	}
	for _, opt := range opts {
		opt(n)
	}

	kernelSize := 1
	for _, k := range kernel {
		kernelSize *= k
	}
	bound := math.Sqrt(float64(groups) / float64(inChannels*kernelSize))

	weightShape := append(tensor.NewShape(outChannels, inChannels/groups), kernel...)
	if n.weight.IsNil() {
		n.weight = tensor.Uniform(newInitRand(), -bound, bound, weightShape.ToSlice()...)
	}
	if !n.weight.Shape().Equal(weightShape) {
		return nil, shapeErrorf(identifier, "weight", fmt.Sprintf("shape %v", weightShape), n.weight.Shape())
	}

	if n.hasBias {
		if n.bias.IsNil() {
			n.bias = tensor.Uniform(newInitRand(), -bound, bound, outChannels)
		}
		if !n.bias.Shape().Equal(tensor.NewShape(outChannels)) {
			return nil, shapeErrorf(identifier, "bias", fmt.Sprintf("shape (%d,)", outChannels), n.bias.Shape())
		}
	} else {
		n.bias = tensor.Tensor{}
	}

	return n, nil
}

func (n *ConvNode) InChannels() int { return n.inChannels }
func (n *ConvNode) OutChannels() int { return n.outChannels }
func (n *ConvNode) Kernel() []int { return n.kernel }
func (n *ConvNode) Stride() []int { return n.stride }
func (n *ConvNode) Padding() []int { return n.padding }
func (n *ConvNode) Dilation() []int { return n.dilation }
func (n *ConvNode) Groups() int { return n.groups }
func (n *ConvNode) Weight() tensor.Tensor { return n.weight }
func (n *ConvNode) Bias() tensor.Tensor { return n.bias }
func (n *ConvNode) HasBias() bool { return n.hasBias }

func (n *ConvNode) UpdateInput(in tensor.Shape) error {
	opts := []ConvOption{WithConvWeight(n.weight)}
	if n.hasBias {
		opts = append(opts, WithConvBias(n.bias))
	}
	rebuilt, err := NewConvNode(n.identifier, in, n.outChannels,
		n.kernel, n.stride, n.padding, n.dilation, n.groups, opts...)
	if err != nil {
		return err
	}
	*n = *rebuilt
	return nil
}

// FilterMatrices reduces the convolution to a stack of doubly-blocked
// Toeplitz matrices, one per output filter. Matrix f applied to the
// channels-innermost flattening of the input equals filter f's feature map
// flattened row-major. Columns are ordered (pixel, channel) with channels
// innermost, matching what a Flatten feeding a dense layer expects.
//
// The reduction covers 2-D convolutions with groups = 1, unit dilation and
// symmetric padding.
func (n *ConvNode) FilterMatrices() ([]*mat.Dense, error) {
	if n.inDim.Rank() != 3 {
		return nil, fmt.Errorf("ConvNode.FilterMatrices: layer %q: input must be (channels, rows, cols), got %v", n.identifier, n.inDim)
	}
	if n.groups != 1 {
		return nil, fmt.Errorf("ConvNode.FilterMatrices: layer %q: groups must be 1, got %d", n.identifier, n.groups)
	}
	if n.dilation[0] != 1 || n.dilation[1] != 1 {
		return nil, fmt.Errorf("ConvNode.FilterMatrices: layer %q: dilation must be 1, got %v", n.identifier, n.dilation)
	}
	pad := n.padding[0]
	for _, p := range n.padding {
		if p != pad {
			return nil, fmt.Errorf("ConvNode.FilterMatrices: layer %q: padding must be symmetric, got %v", n.identifier, n.padding)
		}
	}

	iRow, iCol := n.inDim[1], n.inDim[2]
	out := make([]*mat.Dense, n.outChannels)
	for f := 0; f < n.outChannels; f++ {
		blocks := make([][][]float64, n.inChannels)
		for ch := 0; ch < n.inChannels; ch++ {
			filter, err := n.filterPlane(f, ch)
			if err != nil {
				return nil, err
			}
			block, err := filterAsMatrix(filter, iRow, iCol, n.stride[0], pad)
			if err != nil {
				return nil, fmt.Errorf("ConvNode.FilterMatrices: layer %q: %w", n.identifier, err)
			}
			blocks[ch] = block
		}

		// Interleave the channel matrices so the channels end up innermost
		// in the column order.
		rows, cols := len(blocks[0]), len(blocks[0][0])
		m := mat.NewDense(rows, cols*n.inChannels, nil)
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				for ch := 0; ch < n.inChannels; ch++ {
					m.Set(i, j*n.inChannels+ch, blocks[ch][i][j])
				}
			}
		}
		out[f] = m
	}
	return out, nil
}

// filterPlane extracts the 2-D kernel of filter f over input channel ch.
func (n *ConvNode) filterPlane(f, ch int) ([][]float64, error) {
	kRow, kCol := n.kernel[0], n.kernel[1]
	plane := make([][]float64, kRow)
	for i := 0; i < kRow; i++ {
		plane[i] = make([]float64, kCol)
		for j := 0; j < kCol; j++ {
			v, err := n.weight.At(f, ch, i, j)
			if err != nil {
				return nil, fmt.Errorf("ConvNode.filterPlane: %w", err)
			}
			plane[i][j] = v
		}
	}
	return plane, nil
}
