package network

import (
	"fmt"

	"github.com/itohio/EasyVerify/pkg/core/math/tensor"
)

// BatchNormNode normalizes over the first non-batch axis using running
// statistics. num_features is derived from in_dim[0].
type BatchNormNode struct {
	base
	numFeatures       int
	weight            tensor.Tensor
	bias              tensor.Tensor
	runningMean       tensor.Tensor
	runningVar        tensor.Tensor
	eps               float64
	momentum          float64
	affine            bool
	trackRunningStats bool
}

// BatchNormOption configures a BatchNormNode.
type BatchNormOption func(*BatchNormNode)

// WithBatchNormWeight sets the scale vector, length num_features.
func WithBatchNormWeight(w tensor.Tensor) BatchNormOption {
	return func(n *BatchNormNode) { n.weight = w }
}

// WithBatchNormBias sets the shift vector, length num_features.
func WithBatchNormBias(b tensor.Tensor) BatchNormOption {
	return func(n *BatchNormNode) { n.bias = b }
}

// WithRunningMean sets the running mean vector, length num_features.
func WithRunningMean(m tensor.Tensor) BatchNormOption {
	return func(n *BatchNormNode) { n.runningMean = m }
}

// WithRunningVar sets the running variance vector, length num_features.
func WithRunningVar(v tensor.Tensor) BatchNormOption {
	return func(n *BatchNormNode) { n.runningVar = v }
}

// WithEps sets the denominator stabilizer.
func WithEps(eps float64) BatchNormOption {
	return func(n *BatchNormNode) { n.eps = eps }
}

// WithMomentum sets the running statistics momentum.
func WithMomentum(momentum float64) BatchNormOption {
	return func(n *BatchNormNode) { n.momentum = momentum }
}

// WithAffine controls whether the node has learnable scale and shift.
func WithAffine(affine bool) BatchNormOption {
	return func(n *BatchNormNode) { n.affine = affine }
}

// WithTrackRunningStats controls whether running statistics are kept.
func WithTrackRunningStats(track bool) BatchNormOption {
	return func(n *BatchNormNode) { n.trackRunningStats = track }
}

// NewBatchNormNode creates a batch normalization node with pytorch-style
// defaults: eps 1e-5, momentum 0.1, affine and running statistics enabled.
func NewBatchNormNode(identifier string, inDim tensor.Shape, opts ...BatchNormOption) (*BatchNormNode, error) {
	if inDim.Rank() < 1 {
		return nil, shapeErrorf(identifier, "in_dim", "rank >= 1", inDim)
	}

	numFeatures := inDim[0]
	n := &BatchNormNode{
		base:              newBase(identifier, inDim, inDim),
		numFeatures:       numFeatures,
		eps:               1e-5,
		momentum:          0.1,
		affine:            true,
		trackRunningStats: true,
	}
	for _, opt := range opts {
		opt(n)
	}

	vecShape := tensor.NewShape(numFeatures)
	if n.trackRunningStats {
		if n.runningMean.IsNil() {
			n.runningMean = onesVector(numFeatures)
		}
		if n.runningVar.IsNil() {
			n.runningVar = tensor.New(numFeatures)
		}
		if !n.runningMean.Shape().Equal(vecShape) {
			return nil, shapeErrorf(identifier, "running_mean", fmt.Sprintf("length %d", numFeatures), n.runningMean.Shape())
		}
		if !n.runningVar.Shape().Equal(vecShape) {
			return nil, shapeErrorf(identifier, "running_var", fmt.Sprintf("length %d", numFeatures), n.runningVar.Shape())
		}
	} else {
		n.runningMean = tensor.Tensor{}
		n.runningVar = tensor.Tensor{}
	}

	if n.weight.IsNil() {
		n.weight = onesVector(numFeatures)
	}
	if n.bias.IsNil() {
		n.bias = tensor.New(numFeatures)
	}
	if !n.weight.Shape().Equal(vecShape) {
		return nil, shapeErrorf(identifier, "weight", fmt.Sprintf("length %d", numFeatures), n.weight.Shape())
	}
	if !n.bias.Shape().Equal(vecShape) {
		return nil, shapeErrorf(identifier, "bias", fmt.Sprintf("length %d", numFeatures), n.bias.Shape())
	}

	return n, nil
}

func onesVector(n int) tensor.Tensor {
	data := make([]float64, n)
	for i := range data {
		data[i] = 1
	}
	t, _ := tensor.FromSlice(tensor.NewShape(n), data)
	return t
}

func (n *BatchNormNode) NumFeatures() int { return n.numFeatures }
func (n *BatchNormNode) Weight() tensor.Tensor { return n.weight }
func (n *BatchNormNode) Bias() tensor.Tensor { return n.bias }
func (n *BatchNormNode) RunningMean() tensor.Tensor { return n.runningMean }
func (n *BatchNormNode) RunningVar() tensor.Tensor { return n.runningVar }
func (n *BatchNormNode) Eps() float64 { return n.eps }
func (n *BatchNormNode) Momentum() float64 { return n.momentum }
func (n *BatchNormNode) Affine() bool { return n.affine }
func (n *BatchNormNode) TrackRunningStats() bool { return n.trackRunningStats }

func (n *BatchNormNode) UpdateInput(in tensor.Shape) error {
	opts := []BatchNormOption{
		WithBatchNormWeight(n.weight),
		WithBatchNormBias(n.bias),
		WithEps(n.eps),
		WithMomentum(n.momentum),
		WithAffine(n.affine),
		WithTrackRunningStats(n.trackRunningStats),
	}
	if n.trackRunningStats {
		opts = append(opts, WithRunningMean(n.runningMean), WithRunningVar(n.runningVar))
	}
	rebuilt, err := NewBatchNormNode(n.identifier, in, opts...)
	if err != nil {
		return err
	}
	*n = *rebuilt
	return nil
}

// LRNNode applies local response normalization across neighbouring channels.
type LRNNode struct {
	base
	size  int
	alpha float64
	beta  float64
	k     float64
}

// NewLRNNode creates a local response normalization node. size, alpha, beta
// and k are stored as given; no default values are applied.
func NewLRNNode(identifier string, inDim tensor.Shape, size int, alpha, beta, k float64) (*LRNNode, error) {
	if inDim.Rank() < 2 {
		return nil, shapeErrorf(identifier, "in_dim", "rank >= 2", inDim)
	}
	return &LRNNode{
		base:  newBase(identifier, inDim, inDim),
		size:  size,
		alpha: alpha,
		beta:  beta,
		k:     k,
	}, nil
}

func (n *LRNNode) Size() int { return n.size }
func (n *LRNNode) Alpha() float64 { return n.alpha }
func (n *LRNNode) Beta() float64 { return n.beta }
func (n *LRNNode) K() float64 { return n.k }

func (n *LRNNode) UpdateInput(in tensor.Shape) error {
	rebuilt, err := NewLRNNode(n.identifier, in, n.size, n.alpha, n.beta, n.k)
	if err != nil {
		return err
	}
	*n = *rebuilt
	return nil
}
