package network

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/itohio/EasyVerify/pkg/core/math/tensor"
)

// fixtureTensor is a float tensor as stored in a network fixture. Weights
// are carried in single precision, matching common exchange formats.
type fixtureTensor struct {
	Shape []int     `yaml:"shape"`
	Data  []float32 `yaml:"data"`
}

func (t *fixtureTensor) toTensor() (tensor.Tensor, error) {
	return tensor.FromFloat32(tensor.NewShape(t.Shape...), t.Data)
}

// fixtureLayer is one layer entry of a network fixture.
type fixtureLayer struct {
	Kind        string         `yaml:"kind"`
	ID          string         `yaml:"id"`
	OutFeatures int            `yaml:"out_features,omitempty"`
	OutChannels int            `yaml:"out_channels,omitempty"`
	Kernel      []int          `yaml:"kernel,omitempty"`
	Stride      []int          `yaml:"stride,omitempty"`
	Padding     []int          `yaml:"padding,omitempty"`
	Dilation    []int          `yaml:"dilation,omitempty"`
	Groups      int            `yaml:"groups,omitempty"`
	Axis        *int           `yaml:"axis,omitempty"`
	Weight      *fixtureTensor `yaml:"weight,omitempty"`
	Bias        *fixtureTensor `yaml:"bias,omitempty"`
}

// fixtureNetwork is the document layout of a network fixture: the flat input
// shape followed by the layers in order.
type fixtureNetwork struct {
	Input  []int          `yaml:"input"`
	Layers []fixtureLayer `yaml:"layers"`
}

// LoadNetwork reads a YAML network fixture and builds the network, chaining
// each layer's input shape from the previous layer's output shape.
func LoadNetwork(r io.Reader) (*Network, error) {
	var doc fixtureNetwork
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("LoadNetwork: %w", err)
	}
	if len(doc.Input) == 0 {
		return nil, fmt.Errorf("LoadNetwork: missing input shape")
	}
	if len(doc.Layers) == 0 {
		return nil, fmt.Errorf("LoadNetwork: no layers")
	}

	net := NewNetwork()
	inDim := tensor.NewShape(doc.Input...)
	for i, entry := range doc.Layers {
		node, err := buildFixtureLayer(entry, inDim)
		if err != nil {
			return nil, fmt.Errorf("LoadNetwork: layer %d: %w", i, err)
		}
		if err := net.Add(node); err != nil {
			return nil, fmt.Errorf("LoadNetwork: %w", err)
		}
		inDim = node.OutDim()
	}
	return net, nil
}

func buildFixtureLayer(entry fixtureLayer, inDim tensor.Shape) (LayerNode, error) {
	switch entry.Kind {
	case "relu":
		return NewReLUNode(entry.ID, inDim)

	case "fully_connected":
		var opts []FullyConnectedOption
		if entry.Weight != nil {
			w, err := entry.Weight.toTensor()
			if err != nil {
				return nil, fmt.Errorf("weight: %w", err)
			}
			opts = append(opts, WithWeight(w))
		}
		if entry.Bias != nil {
			b, err := entry.Bias.toTensor()
			if err != nil {
				return nil, fmt.Errorf("bias: %w", err)
			}
			opts = append(opts, WithBias(b))
		} else {
			opts = append(opts, WithoutBias())
		}
		return NewFullyConnectedNode(entry.ID, inDim, entry.OutFeatures, opts...)

	case "conv":
		spatial := inDim.Rank() - 1
		stride := entry.Stride
		if stride == nil {
			stride = repeatInt(1, spatial)
		}
		padding := entry.Padding
		if padding == nil {
			padding = repeatInt(0, 2*spatial)
		}
		dilation := entry.Dilation
		if dilation == nil {
			dilation = repeatInt(1, spatial)
		}
		groups := entry.Groups
		if groups == 0 {
			groups = 1
		}
		var opts []ConvOption
		if entry.Weight != nil {
			w, err := entry.Weight.toTensor()
			if err != nil {
				return nil, fmt.Errorf("weight: %w", err)
			}
			opts = append(opts, WithConvWeight(w))
		}
		if entry.Bias != nil {
			b, err := entry.Bias.toTensor()
			if err != nil {
				return nil, fmt.Errorf("bias: %w", err)
			}
			opts = append(opts, WithConvBias(b))
		}
		return NewConvNode(entry.ID, inDim, entry.OutChannels, entry.Kernel, stride, padding, dilation, groups, opts...)

	case "maxpool":
		spatial := inDim.Rank() - 1
		stride := entry.Stride
		if stride == nil {
			stride = entry.Kernel
		}
		padding := entry.Padding
		if padding == nil {
			padding = repeatInt(0, 2*spatial)
		}
		dilation := entry.Dilation
		if dilation == nil {
			dilation = repeatInt(1, spatial)
		}
		return NewMaxPoolNode(entry.ID, inDim, entry.Kernel, stride, padding, dilation, false, false)

	case "flatten":
		axis := 0
		if entry.Axis != nil {
			axis = *entry.Axis
		}
		return NewFlattenNode(entry.ID, inDim, axis)

	default:
		return nil, fmt.Errorf("unknown layer kind %q", entry.Kind)
	}
}

func repeatInt(v, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}
