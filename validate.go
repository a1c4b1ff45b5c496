package harold

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/andresbh/harold/poly"
)

// polyArg is the classification of one constructor argument of
// NewTransfer before the two sides are combined.
type polyArg struct {
	none bool
	// siso holds the single coefficient slice when the argument was not
	// a grid.
	siso poly.Poly
	// grid holds the p by m entries otherwise.
	grid [][]poly.Poly
}

func (a polyArg) isGrid() bool { return a.grid != nil }

// classifyPolyArg turns one raw argument into either nothing, a single
// polynomial or a grid of polynomials. side names the argument in error
// messages.
func classifyPolyArg(value any, side string) (polyArg, error) {
	switch v := value.(type) {
	case nil:
		return polyArg{none: true}, nil
	case int:
		return polyArg{siso: poly.Poly{float64(v)}}, nil
	case float64:
		return polyArg{siso: poly.Poly{v}}, nil
	case poly.Poly:
		if len(v) == 0 {
			return polyArg{}, fmt.Errorf("%w: empty %s coefficient slice", ErrType, side)
		}
		return polyArg{siso: v.Clone()}, nil
	case []float64:
		if len(v) == 0 {
			return polyArg{}, fmt.Errorf("%w: empty %s coefficient slice", ErrType, side)
		}
		return polyArg{siso: append(poly.Poly(nil), v...)}, nil
	case [][]float64:
		// Rows of scalars: a gain matrix, each entry a degree zero
		// polynomial. A single 1x1 collapses to SISO.
		return classifyScalarRows(v, side)
	case [][][]float64:
		grid := make([][]poly.Poly, len(v))
		for r, row := range v {
			grid[r] = make([]poly.Poly, len(row))
			for c, entry := range row {
				if len(entry) == 0 {
					return polyArg{}, fmt.Errorf("%w: empty %s coefficient slice at (%d,%d)", ErrType, side, r, c)
				}
				grid[r][c] = append(poly.Poly(nil), entry...)
			}
		}
		return finishGrid(grid, side)
	case [][]poly.Poly:
		grid := make([][]poly.Poly, len(v))
		for r, row := range v {
			grid[r] = make([]poly.Poly, len(row))
			for c, entry := range row {
				if len(entry) == 0 {
					return polyArg{}, fmt.Errorf("%w: empty %s coefficient slice at (%d,%d)", ErrType, side, r, c)
				}
				grid[r][c] = entry.Clone()
			}
		}
		return finishGrid(grid, side)
	case mat.Matrix:
		r, c := v.Dims()
		if r == 0 || c == 0 {
			return polyArg{}, fmt.Errorf("%w: empty %s matrix", ErrType, side)
		}
		if r == 1 || c == 1 {
			// A vector is read as a single coefficient slice.
			p := make(poly.Poly, 0, r*c)
			for i := 0; i < r; i++ {
				for j := 0; j < c; j++ {
					p = append(p, v.At(i, j))
				}
			}
			return polyArg{siso: p}, nil
		}
		grid := make([][]poly.Poly, r)
		for i := 0; i < r; i++ {
			grid[i] = make([]poly.Poly, c)
			for j := 0; j < c; j++ {
				grid[i][j] = poly.Poly{v.At(i, j)}
			}
		}
		return polyArg{grid: grid}, nil
	default:
		return polyArg{}, fmt.Errorf("%w: %s of type %T", ErrType, side, value)
	}
}

func classifyScalarRows(v [][]float64, side string) (polyArg, error) {
	if len(v) == 0 {
		return polyArg{}, fmt.Errorf("%w: empty %s matrix", ErrType, side)
	}
	width := len(v[0])
	for r, row := range v {
		if len(row) != width {
			return polyArg{}, fmt.Errorf("%w: ragged %s rows, row %d has %d entries where row 0 has %d", ErrShape, side, r, len(row), width)
		}
	}
	if width == 0 {
		return polyArg{}, fmt.Errorf("%w: empty %s matrix", ErrType, side)
	}
	if len(v) == 1 {
		// A single row is a coefficient slice, matching the vector case.
		return polyArg{siso: append(poly.Poly(nil), v[0]...)}, nil
	}
	grid := make([][]poly.Poly, len(v))
	for r, row := range v {
		grid[r] = make([]poly.Poly, width)
		for c, entry := range row {
			grid[r][c] = poly.Poly{entry}
		}
	}
	return polyArg{grid: grid}, nil
}

func finishGrid(grid [][]poly.Poly, side string) (polyArg, error) {
	if len(grid) == 0 {
		return polyArg{}, fmt.Errorf("%w: empty %s grid", ErrType, side)
	}
	width := len(grid[0])
	for r, row := range grid {
		if len(row) != width {
			return polyArg{}, fmt.Errorf("%w: ragged %s grid, row %d has %d entries where row 0 has %d", ErrShape, side, r, len(row), width)
		}
	}
	if width == 0 {
		return polyArg{}, fmt.Errorf("%w: empty %s grid", ErrType, side)
	}
	if len(grid) == 1 && width == 1 {
		return polyArg{siso: grid[0][0]}, nil
	}
	return polyArg{grid: grid}, nil
}

// ValidateTransferArguments normalizes the two constructor arguments of
// NewTransfer into matching p by m grids of trimmed polynomials. A nil
// side is completed with ones; a single polynomial facing a grid is
// broadcast across it. Causality (numerator degree at most denominator
// degree) and nonzero denominators are enforced per entry, with the
// offending coordinates in the error.
func ValidateTransferArguments(num, den any) (nums, dens [][]poly.Poly, p, m int, isGain bool, err error) {
	numArg, err := classifyPolyArg(num, "numerator")
	if err != nil {
		return nil, nil, 0, 0, false, err
	}
	denArg, err := classifyPolyArg(den, "denominator")
	if err != nil {
		return nil, nil, 0, 0, false, err
	}
	if numArg.none && denArg.none {
		return nil, nil, 0, 0, false, fmt.Errorf("%w: numerator and denominator cannot both be nil", ErrType)
	}

	switch {
	case numArg.isGrid() && denArg.isGrid():
		if len(numArg.grid) != len(denArg.grid) || len(numArg.grid[0]) != len(denArg.grid[0]) {
			return nil, nil, 0, 0, false, fmt.Errorf("%w: numerator is %dx%d but denominator is %dx%d",
				ErrShape, len(numArg.grid), len(numArg.grid[0]), len(denArg.grid), len(denArg.grid[0]))
		}
		nums, dens = numArg.grid, denArg.grid
	case numArg.isGrid():
		p, m := len(numArg.grid), len(numArg.grid[0])
		nums = numArg.grid
		if denArg.none {
			// No denominator means the numerator must be a plain gain
			// matrix.
			for r := range nums {
				for c := range nums[r] {
					if poly.Trim(nums[r][c]).Degree() > 0 {
						return nil, nil, 0, 0, false, fmt.Errorf("%w: numerator entry (%d,%d) has positive degree but no denominator is given", ErrCausality, r, c)
					}
				}
			}
			dens = onesGrid(p, m)
		} else {
			dens = broadcastGrid(denArg.siso, p, m)
		}
	case denArg.isGrid():
		p, m := len(denArg.grid), len(denArg.grid[0])
		dens = denArg.grid
		if numArg.none {
			nums = onesGrid(p, m)
		} else {
			nums = broadcastGrid(numArg.siso, p, m)
		}
	default:
		n, d := numArg.siso, denArg.siso
		if numArg.none {
			n = poly.Poly{1}
		}
		if denArg.none {
			d = poly.Poly{1}
		}
		nums = [][]poly.Poly{{n}}
		dens = [][]poly.Poly{{d}}
	}
	return canonicalizeGrids(nums, dens)
}

// canonicalizeGrids trims the entries of two matching grids in place and
// runs the shared entry checks: denominators must be nonzero and every
// entry causal. The returned grids alias the inputs.
func canonicalizeGrids(nums, dens [][]poly.Poly) ([][]poly.Poly, [][]poly.Poly, int, int, bool, error) {
	p, m := len(nums), len(nums[0])
	if len(dens) != p || len(dens[0]) != m {
		return nil, nil, 0, 0, false, fmt.Errorf("%w: numerator is %dx%d but denominator is %dx%d",
			ErrShape, p, m, len(dens), len(dens[0]))
	}
	gain := true
	for r := 0; r < p; r++ {
		for c := 0; c < m; c++ {
			nums[r][c] = poly.Trim(nums[r][c])
			dens[r][c] = poly.Trim(dens[r][c])
			if dens[r][c].IsZero() {
				return nil, nil, 0, 0, false, fmt.Errorf("%w: zero denominator entry at (%d,%d)", ErrType, r, c)
			}
			if nd, dd := nums[r][c].Degree(), dens[r][c].Degree(); nd > dd {
				return nil, nil, 0, 0, false, fmt.Errorf("%w: numerator degree %d exceeds denominator degree %d at (%d,%d)",
					ErrCausality, nd, dd, r, c)
			}
			if dens[r][c].Degree() > 0 {
				gain = false
			}
		}
	}
	return nums, dens, p, m, gain, nil
}

func onesGrid(p, m int) [][]poly.Poly {
	grid := make([][]poly.Poly, p)
	for r := range grid {
		grid[r] = make([]poly.Poly, m)
		for c := range grid[r] {
			grid[r][c] = poly.Poly{1}
		}
	}
	return grid
}

func broadcastGrid(entry poly.Poly, p, m int) [][]poly.Poly {
	grid := make([][]poly.Poly, p)
	for r := range grid {
		grid[r] = make([]poly.Poly, m)
		for c := range grid[r] {
			grid[r][c] = entry.Clone()
		}
	}
	return grid
}
