package network

import "fmt"

// toeplitz builds the matrix whose first column is c and first row is r:
// T[i][j] = c[i-j] for i >= j, r[j-i] otherwise. The corner value is taken
// from c.
func toeplitz[T any](c, r []T) [][]T {
	out := make([][]T, len(c))
	for i := range c {
		row := make([]T, len(r))
		for j := range r {
			if i >= j {
				row[j] = c[i-j]
			} else {
				row[j] = r[j-i]
			}
		}
		out[i] = row
	}
	return out
}

// strideTrim keeps every stride-th row and removes trim columns from both
// sides of each kept row.
func strideTrim[T any](m [][]T, stride, trim int) [][]T {
	var out [][]T
	for i := 0; i < len(m); i += stride {
		row := m[i]
		out = append(out, row[trim:len(row)-trim])
	}
	return out
}

// filterAsMatrix computes the doubly-blocked Toeplitz matrix of one 2-D
// filter over an input plane of iRow x iCol, accounting for stride and
// symmetric padding. Row k of the result yields output pixel k (row-major)
// when multiplied with the row-major flattening of the input plane.
func filterAsMatrix(filter [][]float64, iRow, iCol, stride, pad int) ([][]float64, error) {
	kRow, kCol := len(filter), len(filter[0])

	padLen := iCol - kCol + 2*pad
	vSpan := iRow - kRow + 2*pad
	if padLen < 0 || vSpan < 0 {
		return nil, fmt.Errorf("filter %dx%d does not fit input %dx%d with padding %d", kRow, kCol, iRow, iCol, pad)
	}
	blockRows := padLen/stride + 1

	// Block 0 is the all-zero block referenced by padding positions of the
	// block-index matrix.
	blocks := make([][][]float64, 0, kRow+1)
	zero := make([][]float64, blockRows)
	for i := range zero {
		zero[i] = make([]float64, iCol)
	}
	blocks = append(blocks, zero)

	// One classical Toeplitz block per filter row, stride-subsampled with
	// the padding columns trimmed away.
	for i := 0; i < kRow; i++ {
		r := make([]float64, iCol+2*pad)
		copy(r, filter[i])
		c := make([]float64, padLen+1)
		c[0] = r[0]
		blocks = append(blocks, strideTrim(toeplitz(c, r), stride, pad))
	}

	// The block-index matrix arranges the per-row blocks (1-based, 0 is the
	// zero block) into the doubly-blocked layout.
	rIdx := make([]int, iRow+2*pad)
	for i := 0; i < kRow; i++ {
		rIdx[i] = i + 1
	}
	cIdx := make([]int, vSpan+1)
	cIdx[0] = rIdx[0]
	doubly := strideTrim(toeplitz(cIdx, rIdx), stride, pad)

	bh, bw := blockRows, iCol
	out := make([][]float64, len(doubly)*bh)
	for i := range out {
		out[i] = make([]float64, len(doubly[0])*bw)
	}
	for i := range doubly {
		for j := range doubly[i] {
			block := blocks[doubly[i][j]]
			for bi := 0; bi < bh; bi++ {
				copy(out[i*bh+bi][j*bw:(j+1)*bw], block[bi])
			}
		}
	}
	return out, nil
}
