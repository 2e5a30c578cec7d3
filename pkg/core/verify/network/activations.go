package network

import (
	"fmt"

	"github.com/itohio/EasyVerify/pkg/core/math/tensor"
)

// ReLUNode applies max(x, 0) elementwise.
type ReLUNode struct {
	base
}

// NewReLUNode creates a ReLU node. The output shape equals the input shape.
func NewReLUNode(identifier string, inDim tensor.Shape) (*ReLUNode, error) {
	if inDim.Rank() < 1 {
		return nil, shapeErrorf(identifier, "in_dim", "rank >= 1", inDim)
	}
	return &ReLUNode{base: newBase(identifier, inDim, inDim)}, nil
}

func (n *ReLUNode) UpdateInput(in tensor.Shape) error {
	rebuilt, err := NewReLUNode(n.identifier, in)
	if err != nil {
		return err
	}
	*n = *rebuilt
	return nil
}

// ELUNode applies the exponential linear unit with slope parameter alpha.
type ELUNode struct {
	base
	alpha float64
}

func NewELUNode(identifier string, inDim tensor.Shape, alpha float64) (*ELUNode, error) {
	if inDim.Rank() < 1 {
		return nil, shapeErrorf(identifier, "in_dim", "rank >= 1", inDim)
	}
	return &ELUNode{base: newBase(identifier, inDim, inDim), alpha: alpha}, nil
}

func (n *ELUNode) Alpha() float64 { return n.alpha }

func (n *ELUNode) UpdateInput(in tensor.Shape) error {
	rebuilt, err := NewELUNode(n.identifier, in, n.alpha)
	if err != nil {
		return err
	}
	*n = *rebuilt
	return nil
}

// CELUNode applies the continuously differentiable ELU variant.
type CELUNode struct {
	base
	alpha float64
}

func NewCELUNode(identifier string, inDim tensor.Shape, alpha float64) (*CELUNode, error) {
	if inDim.Rank() < 1 {
		return nil, shapeErrorf(identifier, "in_dim", "rank >= 1", inDim)
	}
	return &CELUNode{base: newBase(identifier, inDim, inDim), alpha: alpha}, nil
}

func (n *CELUNode) Alpha() float64 { return n.alpha }

func (n *CELUNode) UpdateInput(in tensor.Shape) error {
	rebuilt, err := NewCELUNode(n.identifier, in, n.alpha)
	if err != nil {
		return err
	}
	*n = *rebuilt
	return nil
}

// LeakyReLUNode applies max(x, slope*x) with a small negative slope.
type LeakyReLUNode struct {
	base
	negativeSlope float64
}

func NewLeakyReLUNode(identifier string, inDim tensor.Shape, negativeSlope float64) (*LeakyReLUNode, error) {
	if inDim.Rank() < 1 {
		return nil, shapeErrorf(identifier, "in_dim", "rank >= 1", inDim)
	}
	return &LeakyReLUNode{base: newBase(identifier, inDim, inDim), negativeSlope: negativeSlope}, nil
}

func (n *LeakyReLUNode) NegativeSlope() float64 { return n.negativeSlope }

func (n *LeakyReLUNode) UpdateInput(in tensor.Shape) error {
	rebuilt, err := NewLeakyReLUNode(n.identifier, in, n.negativeSlope)
	if err != nil {
		return err
	}
	*n = *rebuilt
	return nil
}

// SigmoidNode applies the logistic function elementwise.
type SigmoidNode struct {
	base
}

func NewSigmoidNode(identifier string, inDim tensor.Shape) (*SigmoidNode, error) {
	if inDim.Rank() < 1 {
		return nil, shapeErrorf(identifier, "in_dim", "rank >= 1", inDim)
	}
	return &SigmoidNode{base: newBase(identifier, inDim, inDim)}, nil
}

func (n *SigmoidNode) UpdateInput(in tensor.Shape) error {
	rebuilt, err := NewSigmoidNode(n.identifier, in)
	if err != nil {
		return err
	}
	*n = *rebuilt
	return nil
}

// TanhNode applies the hyperbolic tangent elementwise.
type TanhNode struct {
	base
}

func NewTanhNode(identifier string, inDim tensor.Shape) (*TanhNode, error) {
	if inDim.Rank() < 1 {
		return nil, shapeErrorf(identifier, "in_dim", "rank >= 1", inDim)
	}
	return &TanhNode{base: newBase(identifier, inDim, inDim)}, nil
}

func (n *TanhNode) UpdateInput(in tensor.Shape) error {
	rebuilt, err := NewTanhNode(n.identifier, in)
	if err != nil {
		return err
	}
	*n = *rebuilt
	return nil
}

// DropoutNode zeroes elements with probability p during training. It is an
// identity at verification time but kept in the IR so imported networks
// round-trip.
type DropoutNode struct {
	base
	p float64
}

func NewDropoutNode(identifier string, inDim tensor.Shape, p float64) (*DropoutNode, error) {
	if inDim.Rank() < 1 {
		return nil, shapeErrorf(identifier, "in_dim", "rank >= 1", inDim)
	}
	if p < 0 || p > 1 {
		return nil, shapeErrorf(identifier, "p", "value in [0, 1]", p)
	}
	return &DropoutNode{base: newBase(identifier, inDim, inDim), p: p}, nil
}

func (n *DropoutNode) P() float64 { return n.p }

func (n *DropoutNode) UpdateInput(in tensor.Shape) error {
	rebuilt, err := NewDropoutNode(n.identifier, in, n.p)
	if err != nil {
		return err
	}
	*n = *rebuilt
	return nil
}

// SoftMaxNode normalizes slices along axis to sum to one.
type SoftMaxNode struct {
	base
	axis int
}

func NewSoftMaxNode(identifier string, inDim tensor.Shape, axis int) (*SoftMaxNode, error) {
	if inDim.Rank() < 1 {
		return nil, shapeErrorf(identifier, "in_dim", "rank >= 1", inDim)
	}
	r := inDim.Rank()
	if axis < -r || axis > r-1 {
		return nil, shapeErrorf(identifier, "axis", fmt.Sprintf("value in [%d, %d]", -r, r-1), axis)
	}
	return &SoftMaxNode{base: newBase(identifier, inDim, inDim), axis: axis}, nil
}

func (n *SoftMaxNode) Axis() int { return n.axis }

func (n *SoftMaxNode) UpdateInput(in tensor.Shape) error {
	rebuilt, err := NewSoftMaxNode(n.identifier, in, n.axis)
	if err != nil {
		return err
	}
	*n = *rebuilt
	return nil
}
