package network

import (
	"fmt"

	"github.com/itohio/EasyVerify/pkg/core/math/tensor"
)

// poolOutDim derives the spatial output size shared by the pooling kinds.
// effective is the dilated kernel extent along each axis.
func poolOutDim(identifier string, inDim tensor.Shape, kernel, stride, padding, effective []int, ceilMode bool) (tensor.Shape, error) {
	spatial := inDim.Rank() - 1
	outDim := make(tensor.Shape, inDim.Rank())
	outDim[0] = inDim[0]
	for i := 1; i < inDim.Rank(); i++ {
		num := inDim[i] + padding[i-1] + padding[i-1+spatial] - effective[i-1]
		var size int
		if ceilMode {
			size = (num+stride[i-1]-1)/stride[i-1] + 1
		} else {
			size = num/stride[i-1] + 1
		}
		if num < 0 || size < 1 {
			return nil, shapeErrorf(identifier, "kernel",
				fmt.Sprintf("output axis %d must be positive", i), size)
		}
		outDim[i] = size
	}
	return outDim, nil
}

func validatePoolParams(identifier string, inDim tensor.Shape, kernel, stride, padding []int) error {
	if inDim.Rank() < 2 {
		return shapeErrorf(identifier, "in_dim", "rank >= 2", inDim)
	}
	spatial := inDim.Rank() - 1
	if len(kernel) != spatial {
		return shapeErrorf(identifier, "kernel", fmt.Sprintf("length %d", spatial), len(kernel))
	}
	if len(stride) != spatial {
		return shapeErrorf(identifier, "stride", fmt.Sprintf("length %d", spatial), len(stride))
	}
	if len(padding) != 2*spatial {
		return shapeErrorf(identifier, "padding", fmt.Sprintf("length %d", 2*spatial), len(padding))
	}
	for i := 0; i < spatial; i++ {
		if kernel[i] < 1 {
			return shapeErrorf(identifier, "kernel", "positive entries", kernel)
		}
		if stride[i] < 1 {
			return shapeErrorf(identifier, "stride", "positive entries", stride)
		}
	}
	for _, p := range padding {
		if p < 0 {
			return shapeErrorf(identifier, "padding", "non-negative entries", padding)
		}
	}
	return nil
}

// AveragePoolNode averages values over sliding windows.
type AveragePoolNode struct {
	base
	kernel          []int
	stride          []int
	padding         []int
	ceilMode        bool
	countIncludePad bool
}

func NewAveragePoolNode(identifier string, inDim tensor.Shape, kernel, stride, padding []int,
	ceilMode, countIncludePad bool) (*AveragePoolNode, error) {

	if err := validatePoolParams(identifier, inDim, kernel, stride, padding); err != nil {
		return nil, err
	}
	outDim, err := poolOutDim(identifier, inDim, kernel, stride, padding, kernel, ceilMode)
	if err != nil {
		return nil, err
	}
	return &AveragePoolNode{
		base:            newBase(identifier, inDim, outDim),
		kernel:          append([]int(nil), kernel...),
		stride:          append([]int(nil), stride...),
		padding:         append([]int(nil), padding...),
		ceilMode:        ceilMode,
		countIncludePad: countIncludePad,
	}, nil
}

func (n *AveragePoolNode) Kernel() []int { return n.kernel }
func (n *AveragePoolNode) Stride() []int { return n.stride }
func (n *AveragePoolNode) Padding() []int { return n.padding }
func (n *AveragePoolNode) CeilMode() bool { return n.ceilMode }
func (n *AveragePoolNode) CountIncludePad() bool { return n.countIncludePad }

func (n *AveragePoolNode) UpdateInput(in tensor.Shape) error {
	rebuilt, err := NewAveragePoolNode(n.identifier, in, n.kernel, n.stride, n.padding, n.ceilMode, n.countIncludePad)
	if err != nil {
		return err
	}
	*n = *rebuilt
	return nil
}

// MaxPoolNode takes the maximum over sliding windows.
type MaxPoolNode struct {
	base
	kernel        []int
	stride        []int
	padding       []int
	dilation      []int
	ceilMode      bool
	returnIndices bool
}

func NewMaxPoolNode(identifier string, inDim tensor.Shape, kernel, stride, padding, dilation []int,
	ceilMode, returnIndices bool) (*MaxPoolNode, error) {

	if err := validatePoolParams(identifier, inDim, kernel, stride, padding); err != nil {
		return nil, err
	}
	spatial := inDim.Rank() - 1
	if len(dilation) != spatial {
		return nil, shapeErrorf(identifier, "dilation", fmt.Sprintf("length %d", spatial), len(dilation))
	}
	effective := make([]int, spatial)
	for i := 0; i < spatial; i++ {
		if dilation[i] < 1 {
			return nil, shapeErrorf(identifier, "dilation", "positive entries", dilation)
		}
		effective[i] = dilation[i]*(kernel[i]-1) + 1
	}
	outDim, err := poolOutDim(identifier, inDim, kernel, stride, padding, effective, ceilMode)
	if err != nil {
		return nil, err
	}
	return &MaxPoolNode{
		base:          newBase(identifier, inDim, outDim),
		kernel:        append([]int(nil), kernel...),
		stride:        append([]int(nil), stride...),
		padding:       append([]int(nil), padding...),
		dilation:      append([]int(nil), dilation...),
		ceilMode:      ceilMode,
		returnIndices: returnIndices,
	}, nil
}

func (n *MaxPoolNode) Kernel() []int { return n.kernel }
func (n *MaxPoolNode) Stride() []int { return n.stride }
func (n *MaxPoolNode) Padding() []int { return n.padding }
func (n *MaxPoolNode) Dilation() []int { return n.dilation }
func (n *MaxPoolNode) CeilMode() bool { return n.ceilMode }
func (n *MaxPoolNode) ReturnIndices() bool { return n.returnIndices }

func (n *MaxPoolNode) UpdateInput(in tensor.Shape) error {
	rebuilt, err := NewMaxPoolNode(n.identifier, in, n.kernel, n.stride, n.padding, n.dilation, n.ceilMode, n.returnIndices)
	if err != nil {
		return err
	}
	*n = *rebuilt
	return nil
}
