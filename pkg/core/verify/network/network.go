package network

import (
	"fmt"

	"github.com/itohio/EasyVerify/pkg/core/math/tensor"
)

// Network owns its layer nodes in topological (list) order.
type Network struct {
	nodes []LayerNode
	index map[string]int
}

// NewNetwork creates an empty network.
func NewNetwork() *Network {
	return &Network{index: make(map[string]int)}
}

// Add appends a node. Identifiers must be unique and the node's input shape
// must match the previous node's output shape.
func (n *Network) Add(node LayerNode) error {
	if node == nil {
		return fmt.Errorf("Network.Add: nil node")
	}
	id := node.Identifier()
	if id == "" {
		return fmt.Errorf("Network.Add: node identifier cannot be empty")
	}
	if _, exists := n.index[id]; exists {
		return fmt.Errorf("Network.Add: duplicate identifier %q", id)
	}
	if last := n.Last(); last != nil && !last.OutDim().Equal(node.InDim()) {
		return fmt.Errorf("Network.Add: node %q input shape %v does not match previous output shape %v",
			id, node.InDim(), last.OutDim())
	}
	n.index[id] = len(n.nodes)
	n.nodes = append(n.nodes, node)
	return nil
}

// Len returns the number of nodes.
func (n *Network) Len() int {
	return len(n.nodes)
}

// First returns the first node, or nil for an empty network.
func (n *Network) First() LayerNode {
	if len(n.nodes) == 0 {
		return nil
	}
	return n.nodes[0]
}

// Last returns the last node, or nil for an empty network.
func (n *Network) Last() LayerNode {
	if len(n.nodes) == 0 {
		return nil
	}
	return n.nodes[len(n.nodes)-1]
}

// Next returns the node after the given one, or nil at the end.
func (n *Network) Next(node LayerNode) LayerNode {
	i, ok := n.index[node.Identifier()]
	if !ok || i+1 >= len(n.nodes) {
		return nil
	}
	return n.nodes[i+1]
}

// Node looks a node up by identifier.
func (n *Network) Node(id string) (LayerNode, bool) {
	i, ok := n.index[id]
	if !ok {
		return nil, false
	}
	return n.nodes[i], true
}

// Nodes returns the nodes in traversal order. The slice is shared.
func (n *Network) Nodes() []LayerNode {
	return n.nodes
}

// InputSize returns the flat size of the first node's input.
func (n *Network) InputSize() int {
	if len(n.nodes) == 0 {
		return 0
	}
	return n.nodes[0].InDim().Size()
}

// Forward evaluates the network at a concrete flat input point. Spatial
// inputs use the channels-innermost flattening of the bound propagation
// contract; shape-only nodes are identities on the flat vector. Supported
// kinds are FullyConnected, Conv, ReLU, Flatten, Reshape and Unsqueeze;
// everything else, Transpose included, reports an error.
func (n *Network) Forward(x []float64) ([]float64, error) {
	if len(n.nodes) == 0 {
		return nil, fmt.Errorf("Network.Forward: empty network")
	}
	if len(x) != n.InputSize() {
		return nil, fmt.Errorf("Network.Forward: expected input of size %d, got %d", n.InputSize(), len(x))
	}
	current := append([]float64(nil), x...)
	var err error
	for _, node := range n.nodes {
		switch layer := node.(type) {
		case *FullyConnectedNode:
			current, err = forwardFullyConnected(layer, current)
		case *ConvNode:
			current, err = forwardConv(layer, current)
		case *ReLUNode:
			for i, v := range current {
				if v < 0 {
					current[i] = 0
				}
			}
		case *FlattenNode, *ReshapeNode, *UnsqueezeNode:
			// Shape-only: the flat vector is unchanged.
		default:
			err = fmt.Errorf("node %q (%T) is not supported for concrete evaluation", node.Identifier(), node)
		}
		if err != nil {
			return nil, fmt.Errorf("Network.Forward: %w", err)
		}
	}
	return current, nil
}

func forwardFullyConnected(layer *FullyConnectedNode, x []float64) ([]float64, error) {
	xt, err := tensor.FromSlice(tensor.NewShape(layer.InFeatures()), x)
	if err != nil {
		return nil, fmt.Errorf("node %q: %w", layer.Identifier(), err)
	}
	yt, err := layer.Weight().MatVecMul(xt)
	if err != nil {
		return nil, fmt.Errorf("node %q: %w", layer.Identifier(), err)
	}
	if layer.HasBias() {
		if yt, err = yt.Add(layer.Bias()); err != nil {
			return nil, fmt.Errorf("node %q: %w", layer.Identifier(), err)
		}
	}
	return append([]float64(nil), yt.Data()...), nil
}

// forwardConv computes the convolution directly on the channels-innermost
// flat input, producing the channels-innermost flat output.
func forwardConv(layer *ConvNode, x []float64) ([]float64, error) {
	if layer.InDim().Rank() != 3 {
		return nil, fmt.Errorf("node %q: concrete evaluation needs a (channels, rows, cols) input, got %v",
			layer.Identifier(), layer.InDim())
	}
	inC, inH, inW := layer.InDim()[0], layer.InDim()[1], layer.InDim()[2]
	outC, outH, outW := layer.OutDim()[0], layer.OutDim()[1], layer.OutDim()[2]
	kH, kW := layer.Kernel()[0], layer.Kernel()[1]
	sH, sW := layer.Stride()[0], layer.Stride()[1]
	pH, pW := layer.Padding()[0], layer.Padding()[1]
	dH, dW := layer.Dilation()[0], layer.Dilation()[1]
	groupC := inC / layer.Groups()
	groupF := outC / layer.Groups()

	out := make([]float64, outC*outH*outW)
	for f := 0; f < outC; f++ {
		group := f / groupF
		for oh := 0; oh < outH; oh++ {
			for ow := 0; ow < outW; ow++ {
				acc := 0.0
				for c := 0; c < groupC; c++ {
					in := group*groupC + c
					for ki := 0; ki < kH; ki++ {
						ih := oh*sH - pH + ki*dH
						if ih < 0 || ih >= inH {
							continue
						}
						for kj := 0; kj < kW; kj++ {
							iw := ow*sW - pW + kj*dW
							if iw < 0 || iw >= inW {
								continue
							}
							w, err := layer.Weight().At(f, c, ki, kj)
							if err != nil {
								return nil, fmt.Errorf("node %q: %w", layer.Identifier(), err)
							}
							acc += w * x[(ih*inW+iw)*inC+in]
						}
					}
				}
				if layer.HasBias() {
					b, err := layer.Bias().At(f)
					if err != nil {
						return nil, fmt.Errorf("node %q: %w", layer.Identifier(), err)
					}
					acc += b
				}
				out[(oh*outW+ow)*outC+f] = acc
			}
		}
	}
	return out, nil
}
