package network

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/itohio/EasyVerify/pkg/core/math/tensor"
)

// FullyConnectedNode computes y = W*x + b over the last input axis.
type FullyConnectedNode struct {
	base
	inFeatures  int
	outFeatures int
	weight      tensor.Tensor
	bias        tensor.Tensor
	hasBias     bool
}

// FullyConnectedOption configures a FullyConnectedNode.
type FullyConnectedOption func(*FullyConnectedNode)

// WithWeight sets the weight tensor, shape (out_features, in_features).
func WithWeight(w tensor.Tensor) FullyConnectedOption {
	return func(n *FullyConnectedNode) {
		n.weight = w
	}
}

// WithBias sets the bias tensor, shape (out_features,).
func WithBias(b tensor.Tensor) FullyConnectedOption {
	return func(n *FullyConnectedNode) {
		n.bias = b
	}
}

// WithoutBias disables the bias term.
func WithoutBias() FullyConnectedOption {
	return func(n *FullyConnectedNode) {
		n.hasBias = false
	}
}

// NewFullyConnectedNode creates a fully connected node. When no weight or
// bias is supplied it is sampled uniformly from
// [-sqrt(1/in_features), sqrt(1/in_features)]; pass parameters explicitly for
// reproducible networks.
func NewFullyConnectedNode(identifier string, inDim tensor.Shape, outFeatures int, opts ...FullyConnectedOption) (*FullyConnectedNode, error) {
	if inDim.Rank() < 1 {
		return nil, shapeErrorf(identifier, "in_dim", "rank >= 1", inDim)
	}
	if outFeatures <= 0 {
		return nil, shapeErrorf(identifier, "out_features", "positive value", outFeatures)
	}

	inFeatures := inDim[inDim.Rank()-1]
	outDim := inDim.Clone()
	outDim[outDim.Rank()-1] = outFeatures

	n := &FullyConnectedNode{
		base:        newBase(identifier, inDim, outDim),
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		hasBias:     true,
	}
	for _, opt := range opts {
		opt(n)
	}

	k := math.Sqrt(1 / float64(inFeatures))
	if n.weight.IsNil() {
		n.weight = tensor.Uniform(newInitRand(), -k, k, outFeatures, inFeatures)
	}
	if !n.weight.Shape().Equal(tensor.NewShape(outFeatures, inFeatures)) {
		return nil, shapeErrorf(identifier, "weight",
			fmt.Sprintf("shape (%d, %d)", outFeatures, inFeatures), n.weight.Shape())
	}

	if n.hasBias {
		if n.bias.IsNil() {
			n.bias = tensor.Uniform(newInitRand(), -k, k, outFeatures)
		}
		if !n.bias.Shape().Equal(tensor.NewShape(outFeatures)) {
			return nil, shapeErrorf(identifier, "bias",
				fmt.Sprintf("shape (%d,)", outFeatures), n.bias.Shape())
		}
	} else {
		n.bias = tensor.Tensor{}
	}

	return n, nil
}

// InFeatures returns the input feature count.
func (n *FullyConnectedNode) InFeatures() int { return n.inFeatures }

// OutFeatures returns the output feature count.
func (n *FullyConnectedNode) OutFeatures() int { return n.outFeatures }

// Weight returns the weight tensor, shape (out_features, in_features).
func (n *FullyConnectedNode) Weight() tensor.Tensor { return n.weight }

// Bias returns the bias tensor or a nil tensor when the node has none.
func (n *FullyConnectedNode) Bias() tensor.Tensor { return n.bias }

// HasBias reports whether the node carries a bias term.
func (n *FullyConnectedNode) HasBias() bool { return n.hasBias }

func (n *FullyConnectedNode) UpdateInput(in tensor.Shape) error {
	opts := []FullyConnectedOption{WithWeight(n.weight)}
	if n.hasBias {
		opts = append(opts, WithBias(n.bias))
	} else {
		opts = append(opts, WithoutBias())
	}
	rebuilt, err := NewFullyConnectedNode(n.identifier, in, n.outFeatures, opts...)
	if err != nil {
		return err
	}
	*n = *rebuilt
	return nil
}

// newInitRand returns the source used for default parameter sampling.
// Sampled parameters are a convenience for ad-hoc networks, not a
// reproducibility contract.
func newInitRand() *rand.Rand {
	return rand.New(rand.NewSource(rand.Int63()))
}
