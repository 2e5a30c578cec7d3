package property

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ParseProperty reads the textual property format: one linear constraint per
// line over input variables X_0, X_1, ... and output variables Y_0, Y_1, ...
// with a <= or >= comparison against a constant. Lines mentioning output
// variables are retained verbatim for downstream strategies; only the
// input-side constraints are turned into the coefficient system. Blank lines
// and lines starting with ';' or '#' are skipped.
func ParseProperty(r io.Reader) (*Property, error) {
	type row struct {
		coefs map[int]float64
		bound float64
	}
	var rows []row
	var outputs []string
	numVars := 0

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}

		expr, op, rhs, err := splitComparison(line)
		if err != nil {
			return nil, fmt.Errorf("ParseProperty: line %d: %w", lineNo, err)
		}
		if strings.Contains(expr, "Y_") {
			outputs = append(outputs, line)
			continue
		}

		coefs, err := parseLinearExpr(expr)
		if err != nil {
			return nil, fmt.Errorf("ParseProperty: line %d: %w", lineNo, err)
		}
		if len(coefs) == 0 {
			return nil, fmt.Errorf("ParseProperty: line %d: %w", lineNo,
				&PropertyError{Variable: -1, Reason: "constraint references no variable"})
		}
		bound, err := strconv.ParseFloat(rhs, 64)
		if err != nil {
			return nil, fmt.Errorf("ParseProperty: line %d: invalid constant %q", lineNo, rhs)
		}

		// Normalize a >= constraint into <= by negating both sides.
		if op == ">=" {
			for k := range coefs {
				coefs[k] = -coefs[k]
			}
			bound = -bound
		}

		for k := range coefs {
			if k+1 > numVars {
				numVars = k + 1
			}
		}
		rows = append(rows, row{coefs: coefs, bound: bound})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ParseProperty: %w", err)
	}
	if len(rows) == 0 {
		return nil, &PropertyError{Variable: -1, Reason: "no input constraints found"}
	}

	a := mat.NewDense(len(rows), numVars, nil)
	c := make([]float64, len(rows))
	for i, rw := range rows {
		for k, v := range rw.coefs {
			a.Set(i, k, v)
		}
		c[i] = rw.bound
	}

	prop, err := NewProperty(a, c)
	if err != nil {
		return nil, fmt.Errorf("ParseProperty: %w", err)
	}
	prop.outputRaws = outputs
	return prop, nil
}

// splitComparison breaks "expr <= const" into its three parts.
func splitComparison(line string) (expr, op, rhs string, err error) {
	for _, candidate := range []string{"<=", ">="} {
		if i := strings.Index(line, candidate); i >= 0 {
			return strings.TrimSpace(line[:i]), candidate, strings.TrimSpace(line[i+2:]), nil
		}
	}
	return "", "", "", fmt.Errorf("no <= or >= comparison in %q", line)
}

// parseLinearExpr parses a sum of terms "coef * X_k", "X_k" or "-X_k" into a
// coefficient map. A product of two variables is a PropertyError; additive
// constants must be folded into the right-hand side by the property author.
func parseLinearExpr(expr string) (map[int]float64, error) {
	// Pad operators so Fields tokenizes them, keeping signed numbers intact.
	padded := strings.ReplaceAll(expr, "*", " * ")
	padded = strings.ReplaceAll(padded, "+", " + ")
	tokens := strings.Fields(padded)

	coefs := make(map[int]float64)
	sign := 1.0
	pending := 1.0
	hasPending := false
	afterVar := false // the previous tokens were "<variable> *"

	for _, tok := range tokens {
		switch tok {
		case "+", "-":
			if hasPending {
				return nil, &PropertyError{Variable: -1,
					Reason: fmt.Sprintf("additive constant in %q: fold it into the right-hand side", expr)}
			}
			if tok == "-" {
				sign = -sign
			}
			afterVar = false
			continue
		case "*":
			if !hasPending {
				afterVar = true
			}
			continue
		}

		if idx, ok := parseTermVariable(tok); ok {
			if afterVar {
				return nil, &PropertyError{Variable: idx, Reason: "nonlinear term: product of variables"}
			}
			if strings.HasPrefix(tok, "-") {
				sign = -sign
			}
			coefs[idx] += sign * pending
			sign, pending, hasPending = 1, 1, false
			continue
		}

		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, &PropertyError{Variable: -1, Reason: fmt.Sprintf("unrecognized token %q", tok)}
		}
		if hasPending || afterVar {
			return nil, &PropertyError{Variable: -1, Reason: fmt.Sprintf("misplaced constant in %q", expr)}
		}
		pending = v
		hasPending = true
	}
	if hasPending {
		return nil, &PropertyError{Variable: -1,
			Reason: fmt.Sprintf("additive constant in %q: fold it into the right-hand side", expr)}
	}
	return coefs, nil
}

// parseTermVariable accepts "X_k" and "-X_k" tokens.
func parseTermVariable(tok string) (int, bool) {
	if idx, ok := parseVariable(tok, "X_"); ok {
		return idx, true
	}
	if strings.HasPrefix(tok, "-") {
		return parseVariable(tok[1:], "X_")
	}
	return 0, false
}

// parseVariable extracts the index of a "X_12"-style token.
func parseVariable(tok, prefix string) (int, bool) {
	if !strings.HasPrefix(tok, prefix) {
		return 0, false
	}
	idx, err := strconv.Atoi(tok[len(prefix):])
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}
