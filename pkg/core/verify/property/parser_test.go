package property

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProperty_SimpleBox(t *testing.T) {
	text := `
; input region
X_0 <= 1.0
X_0 >= -1.0
X_1 <= 0.5
X_1 >= 0.0
# output side
Y_0 <= 3.5
`
	prop, err := ParseProperty(strings.NewReader(text))
	require.NoError(t, err)

	box, err := prop.ToHyperRectBounds()
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 0}, box.Lower())
	assert.Equal(t, []float64{1, 0.5}, box.Upper())

	require.Len(t, prop.OutputConstraints(), 1)
	assert.Equal(t, "Y_0 <= 3.5", prop.OutputConstraints()[0])
}

func TestParseProperty_Coefficients(t *testing.T) {
	// 2*X_0 <= 4 is X_0 <= 2; -0.5*X_0 <= 1 is X_0 >= -2.
	text := `
2.0 * X_0 <= 4
-0.5 * X_0 <= 1
`
	prop, err := ParseProperty(strings.NewReader(text))
	require.NoError(t, err)

	box, err := prop.ToHyperRectBounds()
	require.NoError(t, err)
	assert.Equal(t, []float64{-2}, box.Lower())
	assert.Equal(t, []float64{2}, box.Upper())
}

func TestParseProperty_NegatedVariable(t *testing.T) {
	text := `
X_0 <= 3
-X_0 <= 1
`
	prop, err := ParseProperty(strings.NewReader(text))
	require.NoError(t, err)

	box, err := prop.ToHyperRectBounds()
	require.NoError(t, err)
	assert.Equal(t, []float64{-1}, box.Lower())
	assert.Equal(t, []float64{3}, box.Upper())
}

func TestParseProperty_MultiVariableRowsIgnoredByConverter(t *testing.T) {
	text := `
X_0 + -1 * X_1 <= 0
X_0 <= 1
X_0 >= 0
X_1 <= 1
X_1 >= 0
`
	prop, err := ParseProperty(strings.NewReader(text))
	require.NoError(t, err)

	rows, cols := prop.InMatrix().Dims()
	assert.Equal(t, 5, rows)
	assert.Equal(t, 2, cols)
	assert.Equal(t, -1.0, prop.InMatrix().At(0, 1))

	box, err := prop.ToHyperRectBounds()
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, box.Lower())
	assert.Equal(t, []float64{1, 1}, box.Upper())
}

func TestParseProperty_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "nonlinear", text: "X_0 * X_1 <= 1\n"},
		{name: "no_comparison", text: "X_0 + 1\n"},
		{name: "bad_constant", text: "X_0 <= abc\n"},
		{name: "no_variable", text: "1.0 <= 2.0\n"},
		{name: "empty", text: "\n; nothing\n"},
		{name: "additive_constant", text: "X_0 + 1 <= 2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProperty(strings.NewReader(tt.text))
			assert.Error(t, err)
		})
	}
}

func TestParseProperty_NonlinearIsPropertyError(t *testing.T) {
	_, err := ParseProperty(strings.NewReader("X_0 * X_1 <= 1\n"))
	var propErr *PropertyError
	require.Error(t, err)
	assert.True(t, errors.As(err, &propErr))
}
