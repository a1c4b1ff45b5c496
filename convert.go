package harold

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/andresbh/harold/matutil"
	"github.com/andresbh/harold/poly"
)

// TransferToState realizes a transfer function model in state space.
// SISO models get the controllable companion form; MIMO models a
// Wolovich (1974, section 4.4) style coprime factorization, right for
// tall or square shapes and left (through pertransposition) for wide
// ones. The realization is not minimal in general.
func TransferToState(g *Transfer) (*State, error) {
	a, b, c, d, gain, err := transferGridsToABCD(g.Num(), g.Den(), g.p, g.m)
	if err != nil {
		return nil, err
	}
	if gain {
		a, b, c = nil, nil, nil
	}
	out, err := newStateFromMatrices(a, b, c, d, g.dt)
	if err != nil {
		return nil, err
	}
	out.method = g.method
	return out, nil
}

// TransferToStateMatrices is TransferToState returning the bare
// realization matrices instead of a model. A static gain comes back as
// (nil, nil, nil, d).
func TransferToStateMatrices(g *Transfer) (a, b, c, d *mat.Dense, err error) {
	a, b, c, d, gain, err := transferGridsToABCD(g.Num(), g.Den(), g.p, g.m)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if gain {
		return nil, nil, nil, d, nil
	}
	return a, b, c, d, nil
}

// StateToTransfer converts a state space model to the transfer
// representation following Varga and Sima (1981): every (output, input)
// pair is treated as a SISO system whose zeros and gain determine the
// numerator against the shared pole polynomial. Cancellations are not
// simplified.
func StateToTransfer(g *State) (*Transfer, error) {
	nums, dens, err := StateToTransferPolynomials(g)
	if err != nil {
		return nil, err
	}
	out, err := newTransferFromGrids(nums, dens, g.dt)
	if err != nil {
		return nil, err
	}
	out.method = g.method
	return out, nil
}

// StateToTransferPolynomials is StateToTransfer returning the raw
// numerator and denominator grids instead of a model.
func StateToTransferPolynomials(g *State) (nums, dens [][]poly.Poly, err error) {
	nums = make([][]poly.Poly, g.p)
	dens = make([][]poly.Poly, g.p)
	for r := range nums {
		nums[r] = make([]poly.Poly, g.m)
		dens[r] = make([]poly.Poly, g.m)
	}
	if g.gain {
		for r := 0; r < g.p; r++ {
			for c := 0; c < g.m; c++ {
				nums[r][c] = poly.Poly{g.d.At(r, c)}
				dens[r][c] = poly.Poly{1}
			}
		}
		return nums, dens, nil
	}

	pp, err := matutil.Eigenvalues(g.a)
	if err != nil {
		return nil, nil, err
	}
	entryDen := poly.FromRoots(pp)
	zeroD := mat.NewDense(1, 1, nil)

	for r := 0; r < g.p; r++ {
		for c := 0; c < g.m; c++ {
			bcol := mat.DenseCopyOf(g.b.Slice(0, g.n, c, c+1))
			crow := mat.DenseCopyOf(g.c.Slice(r, r+1, 0, g.n))

			zz, err := TransmissionZeros(g.a, bcol, crow, zeroD)
			if err != nil {
				return nil, nil, err
			}

			// Evaluate the entry at a point s0 away from every pole and
			// zero; the entry gain follows from
			//   G(s0) * polepoly(s0) / zeropoly(s0).
			s0 := 1.0
			for _, v := range pp {
				s0 = math.Max(s0, cmplx.Abs(v))
			}
			for _, v := range zz {
				s0 = math.Max(s0, cmplx.Abs(v))
			}
			s0 *= 2

			lhs := matutil.Eye(g.n)
			lhs.Scale(s0, lhs)
			lhs.Sub(lhs, g.a)
			sol, err := matutil.Solve(lhs, bcol)
			if err != nil {
				return nil, nil, err
			}
			var cab mat.Dense
			cab.Mul(crow, sol)

			zeroProd := complex(1, 0)
			for _, z := range zz {
				zeroProd *= complex(s0, 0) - z
			}
			poleProd := complex(1, 0)
			for _, p := range pp {
				poleProd *= complex(s0, 0) - p
			}
			entryGain := cab.At(0, 0) * real(poleProd) / real(zeroProd)

			var entryNum poly.Poly
			if len(zz) == 0 {
				entryNum = poly.Poly{entryGain}
			} else {
				entryNum = poly.FromRoots(zz).Scale(entryGain)
			}
			entryNum = poly.Add(entryNum, entryDen.Scale(g.d.At(r, c)))

			nums[r][c] = poly.Trim(entryNum)
			dens[r][c] = entryDen.Clone()
		}
	}
	return nums, dens, nil
}

// transferGridsToABCD is the realization core. It consumes the grids,
// extracting the feedthrough per entry first and reporting isGain when
// nothing dynamic remains. Callers own the grids; they are modified in
// place.
func transferGridsToABCD(nums, dens [][]poly.Poly, p, m int) (a, b, c, d *mat.Dense, isGain bool, err error) {
	static := true
	for r := range dens {
		for cc := range dens[r] {
			if dens[r][cc].Degree() > 0 {
				static = false
			}
		}
	}
	if static {
		d = mat.NewDense(p, m, nil)
		for r := 0; r < p; r++ {
			for cc := 0; cc < m; cc++ {
				d.Set(r, cc, poly.Trim(nums[r][cc])[0]/poly.Trim(dens[r][cc])[0])
			}
		}
		return nil, nil, nil, d, true, nil
	}
	if p == 1 && m == 1 {
		return sisoToABCD(nums[0][0], dens[0][0])
	}
	return mimoToABCD(nums, dens, p, m)
}

func sisoToABCD(num, den poly.Poly) (a, b, c, d *mat.Dense, isGain bool, err error) {
	num, den = poly.Trim(num), poly.Trim(den)
	monic, lead := den.Monic()
	den = monic
	num = num.Scale(1 / lead)

	if len(num) >= len(den) {
		quo, rem, derr := poly.Div(num, den)
		if derr != nil {
			return nil, nil, nil, nil, false, derr
		}
		d = mat.NewDense(1, 1, []float64{quo[0]})
		if rem.IsZero() {
			// Full cancellation, nothing dynamic survives.
			return nil, nil, nil, d, true, nil
		}
		num = rem
	} else {
		d = mat.NewDense(1, 1, nil)
	}

	a, err = poly.Companion(den)
	if err != nil {
		return nil, nil, nil, nil, false, err
	}
	n := len(den) - 1
	b = mat.NewDense(n, 1, nil)
	b.Set(n-1, 0, 1)
	c = mat.NewDense(1, n, nil)
	for i := 0; i < len(num); i++ {
		c.Set(0, i, num[len(num)-1-i])
	}
	return a, b, c, d, false, nil
}

func mimoToABCD(nums, dens [][]poly.Poly, p, m int) (a, b, c, d *mat.Dense, isGain bool, err error) {
	d = mat.NewDense(p, m, nil)

	// Per entry feedthrough extraction. Afterwards every entry is
	// either strictly proper or the static pair (0, 1).
	for x := 0; x < p; x++ {
		for y := 0; y < m; y++ {
			dn, dd := poly.Trim(nums[x][y]), poly.Trim(dens[x][y])
			switch {
			case len(dd) == 1:
				d.Set(x, y, dn[0]/dd[0])
				dn = poly.Poly{0}
			case len(dd) > len(dn):
				// Strictly proper, feedthrough stays zero.
			default:
				quo, rem, derr := poly.Div(dn, dd)
				if derr != nil {
					return nil, nil, nil, nil, false, derr
				}
				d.Set(x, y, quo[0])
				if rem.IsZero() {
					dn, dd = poly.Poly{0}, poly.Poly{1}
				} else {
					dn = rem
				}
			}
			if dd[0] != 1 {
				if math.Abs(dd[0]) < 1e-5 {
					Warnf("harold: the leading coefficient of the (%d,%d) denominator entry is smaller than 1e-5, expect numerical noise in the realization", x, y)
				}
				dn = dn.Scale(1 / dd[0])
				dd = dd.Scale(1 / dd[0])
			}
			nums[x][y], dens[x][y] = dn, dd
		}
	}

	// The extraction may have cancelled every entry down to a gain.
	static := true
	for x := range dens {
		for y := range dens[x] {
			if dens[x][y].Degree() > 0 {
				static = false
			}
		}
	}
	if static {
		return nil, nil, nil, d, true, nil
	}

	// Wide shapes are realized through the pertransposed system and
	// transposed back at the end.
	transposed := false
	if p < m {
		nums, dens = transposeGrid(nums), transposeGrid(dens)
		p, m = m, p
		transposed = true
	}

	sharedDen := true
	for x := range dens {
		for y := range dens[x] {
			if !samePoly(dens[x][y], dens[0][0]) {
				sharedDen = false
			}
		}
	}

	var colDegrees []int
	if sharedDen {
		colDegrees = make([]int, m)
		for y := range colDegrees {
			colDegrees[y] = dens[0][0].Degree()
		}
	} else {
		// Equalize each column on its least common denominator,
		// absorbing the cofactors into the numerators.
		colDegrees = make([]int, m)
		for y := 0; y < m; y++ {
			colDen := make([]poly.Poly, p)
			for x := 0; x < p; x++ {
				colDen[x] = dens[x][y]
			}
			lcm, mults, lerr := poly.LCM(colDen...)
			if lerr != nil {
				return nil, nil, nil, nil, false, lerr
			}
			for x := 0; x < p; x++ {
				dens[x][y] = lcm.Clone()
				nums[x][y] = poly.Trim(poly.Mul(nums[x][y], mults[x]))
			}
			colDegrees[y] = lcm.Degree()
		}
	}

	n := 0
	for _, deg := range colDegrees {
		n += deg
	}
	if n == 0 {
		return nil, nil, nil, d, true, nil
	}

	// Column companion blocks, with the block input hitting the last
	// state of its group.
	a = mat.NewDense(n, n, nil)
	b = mat.NewDense(n, m, nil)
	k := 0
	for y := 0; y < m; y++ {
		deg := colDegrees[y]
		if deg == 0 {
			continue
		}
		block, cerr := poly.Companion(dens[0][y])
		if cerr != nil {
			return nil, nil, nil, nil, false, cerr
		}
		a.Slice(k, k+deg, k, k+deg).(*mat.Dense).Copy(block)
		b.Set(k+deg-1, y, 1)
		k += deg
	}

	c = mat.NewDense(p, n, nil)
	k = 0
	for y := 0; y < m; y++ {
		for x := 0; x < p; x++ {
			entry := nums[x][y]
			for i := 0; i < len(entry); i++ {
				c.Set(x, k+i, entry[len(entry)-1-i])
			}
		}
		k += colDegrees[y]
	}

	if transposed {
		a, b, c = mat.DenseCopyOf(a.T()), mat.DenseCopyOf(c.T()), mat.DenseCopyOf(b.T())
	}
	return a, b, c, d, false, nil
}

func transposeGrid(grid [][]poly.Poly) [][]poly.Poly {
	p, m := len(grid), len(grid[0])
	out := make([][]poly.Poly, m)
	for y := 0; y < m; y++ {
		out[y] = make([]poly.Poly, p)
		for x := 0; x < p; x++ {
			out[y][x] = grid[x][y]
		}
	}
	return out
}

func samePoly(a, b poly.Poly) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

