// Package property models the input-side linear constraints of a
// verification property and converts them into the axis-aligned input box
// consumed by bound propagation.
package property

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/itohio/EasyVerify/pkg/core/verify/bounds"
)

// PropertyError reports a property that cannot be converted into an input
// box: an unbounded variable, a row touching no variable, or a nonlinear
// term.
type PropertyError struct {
	Variable int // index of the offending input variable, -1 when not variable-specific
	Reason   string
}

func (e *PropertyError) Error() string {
	if e.Variable >= 0 {
		return fmt.Sprintf("property: variable X_%d: %s", e.Variable, e.Reason)
	}
	return fmt.Sprintf("property: %s", e.Reason)
}

// Property is a linear constraint system A*x <= c over the input variables,
// plus the output-side constraint lines kept verbatim for downstream
// verification strategies.
type Property struct {
	inMatrix   *mat.Dense
	inVector   []float64
	outputRaws []string
}

// NewProperty wraps an input constraint system. The matrix must have one row
// per entry of c.
func NewProperty(a *mat.Dense, c []float64) (*Property, error) {
	rows, _ := a.Dims()
	if rows != len(c) {
		return nil, fmt.Errorf("NewProperty: matrix has %d rows but vector has %d entries", rows, len(c))
	}
	return &Property{inMatrix: a, inVector: c}, nil
}

// InMatrix returns the input coefficient matrix A.
func (p *Property) InMatrix() *mat.Dense {
	return p.inMatrix
}

// InVector returns the input constant vector c.
func (p *Property) InVector() []float64 {
	return p.inVector
}

// OutputConstraints returns the raw output-side constraint lines.
func (p *Property) OutputConstraints() []string {
	return p.outputRaws
}

// ToHyperRectBounds extracts the axis-aligned input box. Every row with
// exactly one nonzero coefficient contributes one bound for that axis; the
// tightest of multiple contributions wins. A variable left unbounded on
// either side is a PropertyError.
func (p *Property) ToHyperRectBounds() (bounds.HyperRectBounds, error) {
	rows, cols := p.inMatrix.Dims()
	lower := make([]float64, cols)
	upper := make([]float64, cols)
	hasLower := make([]bool, cols)
	hasUpper := make([]bool, cols)

	for i := 0; i < rows; i++ {
		variable := -1
		coefficient := 0.0
		single := true
		for j := 0; j < cols; j++ {
			v := p.inMatrix.At(i, j)
			if v == 0 {
				continue
			}
			if variable >= 0 {
				single = false
				break
			}
			variable = j
			coefficient = v
		}
		if !single || variable < 0 {
			// Multi-variable rows do not contribute axis bounds; empty rows
			// carry no information either way.
			continue
		}

		// coefficient * x <= c
		bound := p.inVector[i] / coefficient
		if coefficient > 0 {
			if !hasUpper[variable] || bound < upper[variable] {
				upper[variable] = bound
				hasUpper[variable] = true
			}
		} else {
			if !hasLower[variable] || bound > lower[variable] {
				lower[variable] = bound
				hasLower[variable] = true
			}
		}
	}

	for j := 0; j < cols; j++ {
		if !hasLower[j] {
			return bounds.HyperRectBounds{}, &PropertyError{Variable: j, Reason: "no lower bound"}
		}
		if !hasUpper[j] {
			return bounds.HyperRectBounds{}, &PropertyError{Variable: j, Reason: "no upper bound"}
		}
	}

	box, err := bounds.NewHyperRectBounds(lower, upper)
	if err != nil {
		return bounds.HyperRectBounds{}, fmt.Errorf("Property.ToHyperRectBounds: %w", err)
	}
	return box, nil
}
