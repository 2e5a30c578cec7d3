package bounds

import (
	"fmt"
)

// SymbolicLinearBounds is a pair of LinearFunctions (L, U) with
// L(x) <= v(x) <= U(x) for every input x in the ambient box, where v is the
// true value of the layer the bounds describe.
type SymbolicLinearBounds struct {
	lower LinearFunctions
	upper LinearFunctions
}

// NewSymbolicLinearBounds pairs a lower and an upper function batch of
// identical dimensions.
func NewSymbolicLinearBounds(lower, upper LinearFunctions) (SymbolicLinearBounds, error) {
	if lower.Rows() != upper.Rows() || lower.Vars() != upper.Vars() {
		return SymbolicLinearBounds{}, fmt.Errorf("SymbolicLinearBounds: lower is %dx%d but upper is %dx%d",
			lower.Rows(), lower.Vars(), upper.Rows(), upper.Vars())
	}
	return SymbolicLinearBounds{lower: lower, upper: upper}, nil
}

// IdentityBounds seeds the propagation with L = U = identity over n variables.
func IdentityBounds(n int) SymbolicLinearBounds {
	return SymbolicLinearBounds{
		lower: IdentityFunctions(n),
		upper: IdentityFunctions(n),
	}
}

// Lower returns the lower bound functions.
func (s SymbolicLinearBounds) Lower() LinearFunctions {
	return s.lower
}

// Upper returns the upper bound functions.
func (s SymbolicLinearBounds) Upper() LinearFunctions {
	return s.upper
}

// Rows returns the number of bounded values.
func (s SymbolicLinearBounds) Rows() int {
	return s.lower.Rows()
}

// Vars returns the number of ambient input variables.
func (s SymbolicLinearBounds) Vars() int {
	return s.lower.Vars()
}

// ToHyperRectBounds concretizes the symbolic bounds against the input box:
// the minimum of the lower functions and the maximum of the upper functions.
func (s SymbolicLinearBounds) ToHyperRectBounds(box HyperRectBounds) (HyperRectBounds, error) {
	lower, err := s.lower.MinValues(box)
	if err != nil {
		return HyperRectBounds{}, fmt.Errorf("SymbolicLinearBounds.ToHyperRectBounds: %w", err)
	}
	upper, err := s.upper.MaxValues(box)
	if err != nil {
		return HyperRectBounds{}, fmt.Errorf("SymbolicLinearBounds.ToHyperRectBounds: %w", err)
	}
	return NewHyperRectBounds(lower, upper)
}

// AllBounds concretizes both functions against both corners of the box,
// returning per component the minimum and maximum of the lower function
// followed by the minimum and maximum of the upper function. The ReLU
// relaxation consumes all four.
func (s SymbolicLinearBounds) AllBounds(box HyperRectBounds) (lowerMin, lowerMax, upperMin, upperMax []float64, err error) {
	if lowerMin, err = s.lower.MinValues(box); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("SymbolicLinearBounds.AllBounds: %w", err)
	}
	if lowerMax, err = s.lower.MaxValues(box); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("SymbolicLinearBounds.AllBounds: %w", err)
	}
	if upperMin, err = s.upper.MinValues(box); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("SymbolicLinearBounds.AllBounds: %w", err)
	}
	if upperMax, err = s.upper.MaxValues(box); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("SymbolicLinearBounds.AllBounds: %w", err)
	}
	return lowerMin, lowerMax, upperMin, upperMax, nil
}
