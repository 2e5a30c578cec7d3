package network

import (
	"fmt"

	"github.com/itohio/EasyVerify/pkg/core/math/tensor"
)

// ConcatNode concatenates a second tensor of shape inDimSecond to the input
// along axis.
type ConcatNode struct {
	base
	inDimSecond tensor.Shape
	axis        int
}

func NewConcatNode(identifier string, inDim, inDimSecond tensor.Shape, axis int) (*ConcatNode, error) {
	if inDim.Rank() < 1 {
		return nil, shapeErrorf(identifier, "in_dim", "rank >= 1", inDim)
	}
	r := inDim.Rank()
	if axis < -r || axis > r-1 {
		return nil, shapeErrorf(identifier, "axis", fmt.Sprintf("value in [%d, %d]", -r, r-1), axis)
	}
	if inDimSecond.Rank() != r {
		return nil, shapeErrorf(identifier, "in_dim_second", fmt.Sprintf("rank %d", r), inDimSecond)
	}
	normalized := axis
	if normalized < 0 {
		normalized += r
	}
	for i := 0; i < r; i++ {
		if i != normalized && inDim[i] != inDimSecond[i] {
			return nil, shapeErrorf(identifier, "in_dim_second",
				fmt.Sprintf("shape equal to %v except on axis %d", inDim, normalized), inDimSecond)
		}
	}

	outDim := inDim.Clone()
	outDim[normalized] = inDim[normalized] + inDimSecond[normalized]

	return &ConcatNode{
		base:        newBase(identifier, inDim, outDim),
		inDimSecond: inDimSecond.Clone(),
		axis:        axis,
	}, nil
}

func (n *ConcatNode) InDimSecond() tensor.Shape { return n.inDimSecond }
func (n *ConcatNode) Axis() int { return n.axis }

func (n *ConcatNode) UpdateInput(in tensor.Shape) error {
	rebuilt, err := NewConcatNode(n.identifier, in, n.inDimSecond, n.axis)
	if err != nil {
		return err
	}
	*n = *rebuilt
	return nil
}

// SumNode adds a second tensor of identical shape to the input.
type SumNode struct {
	base
	inDimSecond tensor.Shape
}

func NewSumNode(identifier string, inDim, inDimSecond tensor.Shape) (*SumNode, error) {
	if inDim.Rank() < 1 {
		return nil, shapeErrorf(identifier, "in_dim", "rank >= 1", inDim)
	}
	if !inDim.Equal(inDimSecond) {
		return nil, shapeErrorf(identifier, "in_dim_second", fmt.Sprintf("shape %v", inDim), inDimSecond)
	}
	return &SumNode{
		base:        newBase(identifier, inDim, inDim),
		inDimSecond: inDimSecond.Clone(),
	}, nil
}

func (n *SumNode) InDimSecond() tensor.Shape { return n.inDimSecond }

func (n *SumNode) UpdateInput(in tensor.Shape) error {
	rebuilt, err := NewSumNode(n.identifier, in, n.inDimSecond)
	if err != nil {
		return err
	}
	*n = *rebuilt
	return nil
}
