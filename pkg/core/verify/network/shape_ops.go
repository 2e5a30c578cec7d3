package network

import (
	"fmt"
	"sort"

	"github.com/itohio/EasyVerify/pkg/core/math/tensor"
)

// UnsqueezeNode inserts singleton dimensions at the given axes.
type UnsqueezeNode struct {
	base
	axes []int
}

func NewUnsqueezeNode(identifier string, inDim tensor.Shape, axes []int) (*UnsqueezeNode, error) {
	if inDim.Rank() < 1 {
		return nil, shapeErrorf(identifier, "in_dim", "rank >= 1", inDim)
	}
	if len(axes) == 0 {
		return nil, shapeErrorf(identifier, "axes", "non-empty list", axes)
	}
	r, k := inDim.Rank(), len(axes)
	seen := make(map[int]struct{}, k)
	normalized := make([]int, 0, k)
	for _, a := range axes {
		if a < -(r+k) || a > r+k-1 {
			return nil, shapeErrorf(identifier, "axes",
				fmt.Sprintf("values in [%d, %d]", -(r + k), r+k-1), axes)
		}
		if a < 0 {
			a += r + k
		}
		if _, dup := seen[a]; dup {
			return nil, shapeErrorf(identifier, "axes", "unique values", axes)
		}
		seen[a] = struct{}{}
		normalized = append(normalized, a)
	}
	sort.Ints(normalized)

	outDim := make(tensor.Shape, 0, r+k)
	outDim = append(outDim, inDim...)
	for _, a := range normalized {
		outDim = append(outDim, 0)
		copy(outDim[a+1:], outDim[a:])
		outDim[a] = 1
	}

	return &UnsqueezeNode{
		base: newBase(identifier, inDim, outDim),
		axes: append([]int(nil), axes...),
	}, nil
}

func (n *UnsqueezeNode) Axes() []int { return n.axes }

func (n *UnsqueezeNode) UpdateInput(in tensor.Shape) error {
	rebuilt, err := NewUnsqueezeNode(n.identifier, in, n.axes)
	if err != nil {
		return err
	}
	*n = *rebuilt
	return nil
}

// ReshapeNode changes the shape without changing the number of elements.
// A -1 entry is inferred; a 0 entry copies the corresponding input dimension
// unless allowZero honors the zero literally.
type ReshapeNode struct {
	base
	shape     []int
	allowZero bool
}

func NewReshapeNode(identifier string, inDim tensor.Shape, shape []int, allowZero bool) (*ReshapeNode, error) {
	if inDim.Rank() < 1 {
		return nil, shapeErrorf(identifier, "in_dim", "rank >= 1", inDim)
	}
	wildcards := 0
	for _, e := range shape {
		if e == -1 {
			wildcards++
		} else if e < -1 {
			return nil, shapeErrorf(identifier, "shape", "entries >= -1", shape)
		}
	}
	if wildcards > 1 {
		return nil, shapeErrorf(identifier, "shape", "at most one -1 entry", shape)
	}

	resolved := make([]int, len(shape))
	for i, e := range shape {
		switch {
		case e == 0 && allowZero:
			resolved[i] = 0
		case e == 0:
			if i >= inDim.Rank() {
				return nil, shapeErrorf(identifier, "shape",
					fmt.Sprintf("0 entry at position %d needs an input dimension there (rank %d)", i, inDim.Rank()), shape)
			}
			resolved[i] = inDim[i]
		default:
			resolved[i] = e
		}
	}

	total := inDim.Size()
	known := 1
	wildcardAt := -1
	for i, e := range resolved {
		if e == -1 {
			wildcardAt = i
			continue
		}
		known *= e
	}
	if wildcardAt >= 0 {
		if known == 0 || total%known != 0 {
			return nil, shapeErrorf(identifier, "shape",
				fmt.Sprintf("a shape compatible with %d elements", total), shape)
		}
		resolved[wildcardAt] = total / known
	} else if known != total {
		return nil, shapeErrorf(identifier, "shape",
			fmt.Sprintf("a shape with %d elements", total), shape)
	}

	return &ReshapeNode{
		base:      newBase(identifier, inDim, resolved),
		shape:     append([]int(nil), shape...),
		allowZero: allowZero,
	}, nil
}

func (n *ReshapeNode) TargetShape() []int { return n.shape }
func (n *ReshapeNode) AllowZero() bool { return n.allowZero }

func (n *ReshapeNode) UpdateInput(in tensor.Shape) error {
	rebuilt, err := NewReshapeNode(n.identifier, in, n.shape, n.allowZero)
	if err != nil {
		return err
	}
	*n = *rebuilt
	return nil
}

// FlattenNode flattens the input around the given axis: dimensions before
// the axis form the first output dimension, the rest form the second.
type FlattenNode struct {
	base
	axis int
}

func NewFlattenNode(identifier string, inDim tensor.Shape, axis int) (*FlattenNode, error) {
	if inDim.Rank() < 1 {
		return nil, shapeErrorf(identifier, "in_dim", "rank >= 1", inDim)
	}
	r := inDim.Rank()
	if axis < -r || axis > r {
		return nil, shapeErrorf(identifier, "axis", fmt.Sprintf("value in [%d, %d]", -r, r), axis)
	}
	normalized := axis
	if normalized < 0 {
		normalized += r
	}

	total := inDim.Size()
	var outDim tensor.Shape
	if normalized == 0 {
		outDim = tensor.NewShape(1, total)
	} else {
		head := 1
		for _, d := range inDim[:normalized] {
			head *= d
		}
		outDim = tensor.NewShape(head, total/head)
	}

	return &FlattenNode{base: newBase(identifier, inDim, outDim), axis: axis}, nil
}

func (n *FlattenNode) Axis() int { return n.axis }

func (n *FlattenNode) UpdateInput(in tensor.Shape) error {
	rebuilt, err := NewFlattenNode(n.identifier, in, n.axis)
	if err != nil {
		return err
	}
	*n = *rebuilt
	return nil
}

// TransposeNode permutes the input axes. A nil perm reverses them.
type TransposeNode struct {
	base
	perm []int
}

func NewTransposeNode(identifier string, inDim tensor.Shape, perm []int) (*TransposeNode, error) {
	if inDim.Rank() < 1 {
		return nil, shapeErrorf(identifier, "in_dim", "rank >= 1", inDim)
	}
	r := inDim.Rank()
	if perm == nil {
		perm = make([]int, r)
		for i := range perm {
			perm[i] = r - 1 - i
		}
	}
	if len(perm) != r {
		return nil, shapeErrorf(identifier, "perm", fmt.Sprintf("permutation of length %d", r), perm)
	}
	seen := make([]bool, r)
	for _, p := range perm {
		if p < 0 || p >= r || seen[p] {
			return nil, shapeErrorf(identifier, "perm", fmt.Sprintf("permutation of 0..%d", r-1), perm)
		}
		seen[p] = true
	}

	outDim := make(tensor.Shape, r)
	for i, p := range perm {
		outDim[i] = inDim[p]
	}

	return &TransposeNode{
		base: newBase(identifier, inDim, outDim),
		perm: append([]int(nil), perm...),
	}, nil
}

func (n *TransposeNode) Perm() []int { return n.perm }

func (n *TransposeNode) UpdateInput(in tensor.Shape) error {
	rebuilt, err := NewTransposeNode(n.identifier, in, n.perm)
	if err != nil {
		return err
	}
	*n = *rebuilt
	return nil
}
