package bp

import "fmt"

// UnsupportedLayerError reports a layer kind the propagator has no symbolic
// transformer for.
type UnsupportedLayerError struct {
	Layer string
	Kind  string
}

func (e *UnsupportedLayerError) Error() string {
	return fmt.Sprintf("layer %q (%s) is unsupported for bound propagation", e.Layer, e.Kind)
}

// NumericalError reports a NaN or Inf produced while propagating through a
// layer. It is fatal: the returned bounds would be meaningless.
type NumericalError struct {
	Layer string
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("layer %q produced a non-finite bound", e.Layer)
}
