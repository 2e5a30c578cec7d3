// Package bp implements symbolic bound propagation: starting from identity
// bounds over the input box it threads symbolic linear bounds through every
// layer of the network and concretizes them, producing numeric pre- and
// post-activation bounds per layer.
package bp

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/itohio/EasyVerify/pkg/core/math/tensor"
	"github.com/itohio/EasyVerify/pkg/core/verify/bounds"
	"github.com/itohio/EasyVerify/pkg/core/verify/network"
	"github.com/itohio/EasyVerify/pkg/core/verify/property"
	"github.com/itohio/EasyVerify/pkg/logger"
)

// SymbolicPair carries a layer's symbolic bounds before and after its
// activation. For affine layers the two are the same object.
type SymbolicPair struct {
	Pre  bounds.SymbolicLinearBounds
	Post bounds.SymbolicLinearBounds
}

// Bounds is the result of one propagation pass: symbolic and numeric bounds
// for every layer, keyed by layer identifier, plus the traversal order.
type Bounds struct {
	order       []string
	Symbolic    map[string]SymbolicPair
	NumericPre  map[string]bounds.HyperRectBounds
	NumericPost map[string]bounds.HyperRectBounds
}

// Order returns the layer identifiers in traversal order.
func (b *Bounds) Order() []string {
	return b.order
}

func (b *Bounds) record(id string, sym SymbolicPair, pre, post bounds.HyperRectBounds) {
	b.order = append(b.order, id)
	b.Symbolic[id] = sym
	b.NumericPre[id] = pre
	b.NumericPost[id] = post
}

// BoundsManager walks a network and computes bounds for a property's input
// region. It owns no mutable state beyond the inputs; ComputeBounds is a
// pure sequential pass.
type BoundsManager struct {
	net  *network.Network
	prop *property.Property
	log  zerolog.Logger
}

// NewBoundsManager pairs a network with a property.
func NewBoundsManager(net *network.Network, prop *property.Property) *BoundsManager {
	return &BoundsManager{
		net:  net,
		prop: prop,
		log:  logger.Log.With().Str("component", "bp").Logger(),
	}
}

// ComputeBounds runs the propagation pass. Only FullyConnected, Conv and
// ReLU layers have symbolic transformers; any other kind is an
// UnsupportedLayerError. Errors surface immediately and nothing partial is
// returned.
func (m *BoundsManager) ComputeBounds() (*Bounds, error) {
	box, err := m.prop.ToHyperRectBounds()
	if err != nil {
		return nil, err
	}
	if box.Size() != m.net.InputSize() {
		return nil, fmt.Errorf("BoundsManager.ComputeBounds: property box has %d variables but network input has %d",
			box.Size(), m.net.InputSize())
	}

	result := &Bounds{
		Symbolic:    make(map[string]SymbolicPair),
		NumericPre:  make(map[string]bounds.HyperRectBounds),
		NumericPost: make(map[string]bounds.HyperRectBounds),
	}

	current := bounds.IdentityBounds(box.Size())
	// The ReLU transformer consumes the symbolic output of the closest
	// preceding affine layer; the propagation keeps that dataflow explicit.
	var lastAffine *bounds.SymbolicLinearBounds
	var lastPre *bounds.HyperRectBounds

	for node := m.net.First(); node != nil; node = m.net.Next(node) {
		id := node.Identifier()
		switch layer := node.(type) {
		case *network.FullyConnectedNode:
			sym, err := denseOutputBounds(layer, current)
			if err != nil {
				return nil, err
			}
			pre, err := sym.ToHyperRectBounds(box)
			if err != nil {
				return nil, fmt.Errorf("BoundsManager.ComputeBounds: layer %q: %w", id, err)
			}
			if !finiteBox(pre) {
				return nil, &NumericalError{Layer: id}
			}
			result.record(id, SymbolicPair{Pre: sym, Post: sym}, pre, pre)
			lastAffine, lastPre = &sym, &pre
			current = sym

		case *network.ConvNode:
			sym, err := convOutputBounds(layer, current)
			if err != nil {
				return nil, err
			}
			pre, err := sym.ToHyperRectBounds(box)
			if err != nil {
				return nil, fmt.Errorf("BoundsManager.ComputeBounds: layer %q: %w", id, err)
			}
			if !finiteBox(pre) {
				return nil, &NumericalError{Layer: id}
			}
			result.record(id, SymbolicPair{Pre: sym, Post: sym}, pre, pre)
			lastAffine, lastPre = &sym, &pre
			current = sym

		case *network.ReLUNode:
			if lastAffine == nil {
				return nil, &UnsupportedLayerError{Layer: id, Kind: "relu without a preceding affine layer"}
			}
			post, err := reluOutputBounds(*lastAffine, box)
			if err != nil {
				return nil, fmt.Errorf("BoundsManager.ComputeBounds: layer %q: %w", id, err)
			}
			postBox, err := clampBoxMin(*lastPre, 0)
			if err != nil {
				return nil, fmt.Errorf("BoundsManager.ComputeBounds: layer %q: %w", id, err)
			}
			if !finiteBox(postBox) {
				return nil, &NumericalError{Layer: id}
			}
			result.record(id, SymbolicPair{Pre: *lastAffine, Post: post}, *lastPre, postBox)
			current = post

		default:
			return nil, &UnsupportedLayerError{Layer: id, Kind: kindName(node)}
		}

		m.log.Debug().
			Str("layer", id).
			Str("post", result.NumericPost[id].String()).
			Msg("propagated")
	}

	return result, nil
}

// denseOutputBounds applies the affine transformer of a fully connected
// layer: positive weights bind to the like bound, negative weights to the
// opposite one.
func denseOutputBounds(layer *network.FullyConnectedNode, in bounds.SymbolicLinearBounds) (bounds.SymbolicLinearBounds, error) {
	w := denseFromTensor(layer.Weight())
	var bias []float64
	if layer.HasBias() {
		bias = layer.Bias().Data()
	}
	if _, cols := w.Dims(); cols != in.Rows() {
		return bounds.SymbolicLinearBounds{}, fmt.Errorf("layer %q: weight expects %d inputs but previous bounds have %d rows",
			layer.Identifier(), cols, in.Rows())
	}
	return affineTransform(w, bias, in)
}

// affineTransform computes the tightest symbolic bounds of W*v + b given
// symbolic bounds on v.
func affineTransform(w *mat.Dense, bias []float64, in bounds.SymbolicLinearBounds) (bounds.SymbolicLinearBounds, error) {
	wp := bounds.PositivePart(w)
	wm := bounds.NegativePart(w)

	lowM := mulAdd(wp, in.Lower().Matrix(), wm, in.Upper().Matrix())
	upM := mulAdd(wp, in.Upper().Matrix(), wm, in.Lower().Matrix())
	lowQ := mulAddVec(wp, in.Lower().Offset(), wm, in.Upper().Offset(), bias)
	upQ := mulAddVec(wp, in.Upper().Offset(), wm, in.Lower().Offset(), bias)

	lower, err := bounds.NewLinearFunctions(lowM, lowQ)
	if err != nil {
		return bounds.SymbolicLinearBounds{}, err
	}
	upper, err := bounds.NewLinearFunctions(upM, upQ)
	if err != nil {
		return bounds.SymbolicLinearBounds{}, err
	}
	return bounds.NewSymbolicLinearBounds(lower, upper)
}

// convOutputBounds applies the affine transformer per Toeplitz filter matrix
// and interleaves the resulting rows so that row r*F+f describes output
// pixel r of filter f: spatial position major, filter innermost, matching
// the flattening the Toeplitz reduction expects downstream.
func convOutputBounds(layer *network.ConvNode, in bounds.SymbolicLinearBounds) (bounds.SymbolicLinearBounds, error) {
	filters, err := layer.FilterMatrices()
	if err != nil {
		return bounds.SymbolicLinearBounds{}, err
	}
	numFilters := len(filters)
	rows, cols := filters[0].Dims()
	if cols != in.Rows() {
		return bounds.SymbolicLinearBounds{}, fmt.Errorf("layer %q: filter matrices expect %d inputs but previous bounds have %d rows",
			layer.Identifier(), cols, in.Rows())
	}

	vars := in.Vars()
	lowM := mat.NewDense(rows*numFilters, vars, nil)
	upM := mat.NewDense(rows*numFilters, vars, nil)
	lowQ := mat.NewVecDense(rows*numFilters, nil)
	upQ := mat.NewVecDense(rows*numFilters, nil)

	for f, w := range filters {
		wp := bounds.PositivePart(w)
		wm := bounds.NegativePart(w)

		fl := mulAdd(wp, in.Lower().Matrix(), wm, in.Upper().Matrix())
		fu := mulAdd(wp, in.Upper().Matrix(), wm, in.Lower().Matrix())
		ql := mulAddVec(wp, in.Lower().Offset(), wm, in.Upper().Offset(), nil)
		qu := mulAddVec(wp, in.Upper().Offset(), wm, in.Lower().Offset(), nil)

		biasF := 0.0
		if layer.HasBias() {
			if biasF, err = layer.Bias().At(f); err != nil {
				return bounds.SymbolicLinearBounds{}, fmt.Errorf("layer %q: %w", layer.Identifier(), err)
			}
		}

		for r := 0; r < rows; r++ {
			out := r*numFilters + f
			lowM.SetRow(out, fl.RawRowView(r))
			upM.SetRow(out, fu.RawRowView(r))
			lowQ.SetVec(out, ql.AtVec(r)+biasF)
			upQ.SetVec(out, qu.AtVec(r)+biasF)
		}
	}

	lower, err := bounds.NewLinearFunctions(lowM, lowQ)
	if err != nil {
		return bounds.SymbolicLinearBounds{}, err
	}
	upper, err := bounds.NewLinearFunctions(upM, upQ)
	if err != nil {
		return bounds.SymbolicLinearBounds{}, err
	}
	return bounds.NewSymbolicLinearBounds(lower, upper)
}

// reluOutputBounds applies the triangle relaxation per neuron, scaling each
// symbolic row by the envelope slope and shifting the offset by the envelope
// intercept.
func reluOutputBounds(in bounds.SymbolicLinearBounds, box bounds.HyperRectBounds) (bounds.SymbolicLinearBounds, error) {
	lowerMin, lowerMax, upperMin, upperMax, err := in.AllBounds(box)
	if err != nil {
		return bounds.SymbolicLinearBounds{}, err
	}

	n := in.Rows()
	kLower := make([]float64, n)
	bLower := make([]float64, n)
	kUpper := make([]float64, n)
	bUpper := make([]float64, n)
	for i := 0; i < n; i++ {
		kLower[i], bLower[i] = lowerEnvelope(lowerMin[i], lowerMax[i])
		kUpper[i], bUpper[i] = upperEnvelope(upperMin[i], upperMax[i])
	}

	lower, err := scaleRows(in.Lower(), kLower, bLower)
	if err != nil {
		return bounds.SymbolicLinearBounds{}, err
	}
	upper, err := scaleRows(in.Upper(), kUpper, bUpper)
	if err != nil {
		return bounds.SymbolicLinearBounds{}, err
	}
	return bounds.NewSymbolicLinearBounds(lower, upper)
}

// lowerEnvelope returns the slope and intercept of the ReLU lower bound on
// [lower, upper]: identity when wholly positive, zero when wholly negative,
// otherwise the chord slope through the origin.
func lowerEnvelope(lower, upper float64) (k, b float64) {
	if lower >= 0 {
		return 1, 0
	}
	if upper <= 0 {
		return 0, 0
	}
	return upper / (upper - lower), 0
}

// upperEnvelope returns the slope and intercept of the ReLU upper bound on
// [lower, upper]: the chord from (lower, 0) to (upper, upper) in the mixed
// case.
func upperEnvelope(lower, upper float64) (k, b float64) {
	if lower >= 0 {
		return 1, 0
	}
	if upper <= 0 {
		return 0, 0
	}
	mult := upper / (upper - lower)
	return mult, -mult * lower
}

// scaleRows multiplies row i of the function matrix by k[i] and maps the
// offset to k[i]*q[i] + b[i].
func scaleRows(f bounds.LinearFunctions, k, b []float64) (bounds.LinearFunctions, error) {
	rows, cols := f.Matrix().Dims()
	outM := mat.NewDense(rows, cols, nil)
	outQ := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			outM.Set(i, j, f.Matrix().At(i, j)*k[i])
		}
		outQ.SetVec(i, f.Offset().AtVec(i)*k[i]+b[i])
	}
	return bounds.NewLinearFunctions(outM, outQ)
}

// denseFromTensor views a 2-D tensor as a gonum matrix. Both are row-major;
// the data is copied so the matrix owns its storage.
func denseFromTensor(t tensor.Tensor) *mat.Dense {
	shape := t.Shape()
	data := append([]float64(nil), t.Data()...)
	return mat.NewDense(shape[0], shape[1], data)
}

// mulAdd computes a*b + c*d.
func mulAdd(a, b, c, d *mat.Dense) *mat.Dense {
	var left, right mat.Dense
	left.Mul(a, b)
	right.Mul(c, d)
	left.Add(&left, &right)
	return &left
}

// mulAddVec computes a*v + c*w (+ bias when given).
func mulAddVec(a *mat.Dense, v *mat.VecDense, c *mat.Dense, w *mat.VecDense, bias []float64) *mat.VecDense {
	var left, right mat.VecDense
	left.MulVec(a, v)
	right.MulVec(c, w)
	left.AddVec(&left, &right)
	if bias != nil {
		left.AddVec(&left, mat.NewVecDense(len(bias), bias))
	}
	return &left
}

// clampBoxMin clamps both corners of a box from below.
func clampBoxMin(box bounds.HyperRectBounds, min float64) (bounds.HyperRectBounds, error) {
	lower := append([]float64(nil), box.Lower()...)
	upper := append([]float64(nil), box.Upper()...)
	for i := range lower {
		if lower[i] < min {
			lower[i] = min
		}
		if upper[i] < min {
			upper[i] = min
		}
	}
	return bounds.NewHyperRectBounds(lower, upper)
}

func finiteBox(box bounds.HyperRectBounds) bool {
	for _, v := range box.Lower() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	for _, v := range box.Upper() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// kindName renders a node's kind for error messages.
func kindName(node network.LayerNode) string {
	switch node.(type) {
	case *network.ReLUNode:
		return "relu"
	case *network.ELUNode:
		return "elu"
	case *network.CELUNode:
		return "celu"
	case *network.LeakyReLUNode:
		return "leaky_relu"
	case *network.SigmoidNode:
		return "sigmoid"
	case *network.TanhNode:
		return "tanh"
	case *network.FullyConnectedNode:
		return "fully_connected"
	case *network.BatchNormNode:
		return "batch_norm"
	case *network.ConvNode:
		return "conv"
	case *network.AveragePoolNode:
		return "average_pool"
	case *network.MaxPoolNode:
		return "max_pool"
	case *network.LRNNode:
		return "lrn"
	case *network.SoftMaxNode:
		return "softmax"
	case *network.DropoutNode:
		return "dropout"
	case *network.UnsqueezeNode:
		return "unsqueeze"
	case *network.ReshapeNode:
		return "reshape"
	case *network.FlattenNode:
		return "flatten"
	case *network.TransposeNode:
		return "transpose"
	case *network.ConcatNode:
		return "concat"
	case *network.SumNode:
		return "sum"
	default:
		return fmt.Sprintf("%T", node)
	}
}
