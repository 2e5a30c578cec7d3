// Package network implements the framework-neutral layer IR of the
// verification toolkit: typed layer nodes with shape arithmetic and parameter
// invariants, a sequential network container, the convolution-to-Toeplitz
// reduction and a concrete forward evaluator for the propagated subset.
package network

import (
	"github.com/itohio/EasyVerify/pkg/core/math/tensor"
)

// LayerNode is a single operator of a network. Concrete node types validate
// their parameters at construction; a node that exists is well formed.
type LayerNode interface {
	// Identifier returns the unique name of the node.
	Identifier() string

	// InDim returns the input shape (batch dimension excluded).
	InDim() tensor.Shape

	// OutDim returns the derived output shape.
	OutDim() tensor.Shape

	// UpdateInput rebuilds the node for a new input shape, re-deriving the
	// output shape and re-validating parameters. Learned parameters are
	// preserved.
	UpdateInput(in tensor.Shape) error
}

// base carries the state shared by every node kind.
type base struct {
	identifier string
	inDim      tensor.Shape
	outDim     tensor.Shape
}

func newBase(identifier string, inDim, outDim tensor.Shape) base {
	return base{
		identifier: identifier,
		inDim:      inDim.Clone(),
		outDim:     outDim.Clone(),
	}
}

// Identifier returns the unique name of the node.
func (b *base) Identifier() string {
	return b.identifier
}

// InDim returns the input shape.
func (b *base) InDim() tensor.Shape {
	return b.inDim
}

// OutDim returns the output shape.
func (b *base) OutDim() tensor.Shape {
	return b.outDim
}
