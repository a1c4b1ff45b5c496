package harold

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/andresbh/harold/discretize"
	"github.com/andresbh/harold/matutil"
	"github.com/andresbh/harold/poly"
)

// Transfer is a p by m grid of rational function entries, each a
// (numerator, denominator) polynomial pair. A 1x1 grid is a SISO model;
// a model whose denominators are all degree zero is a static gain.
//
// The shape is fixed at construction. The coefficient data can be
// replaced through SetNum/SetDen with shape preserving values, which
// recomputes poles, zeros and stability before returning.
type Transfer struct {
	nums, dens [][]poly.Poly
	p, m       int

	siso, gain bool
	sampling

	poles, zeros []complex128
	stable       bool
}

// NewTransfer builds a transfer function model from numerator and
// denominator data. Each argument may be a scalar, a coefficient slice
// ([]float64 or poly.Poly, highest degree first), a gain matrix
// ([][]float64 or mat.Matrix), or a grid of coefficient slices
// ([][][]float64 or [][]poly.Poly) for MIMO models. One of the two may
// be nil to request a static gain completion of the other.
//
// dt is the sampling period: zero for continuous time, positive for a
// discrete time model.
func NewTransfer(num, den any, dt float64) (*Transfer, error) {
	nums, dens, p, m, gain, err := ValidateTransferArguments(num, den)
	if err != nil {
		return nil, err
	}
	g := &Transfer{nums: nums, dens: dens, p: p, m: m, gain: gain, siso: p == 1 && m == 1}
	if err := g.sampling.set(dt); err != nil {
		return nil, err
	}
	if err := g.recalc(); err != nil {
		return nil, err
	}
	return g, nil
}

// newTransferFromGrids wraps grids already produced by the arithmetic or
// conversion code. The grids are adopted, not copied; they must be fresh.
func newTransferFromGrids(nums, dens [][]poly.Poly, dt float64) (*Transfer, error) {
	nums, dens, p, m, gain, err := canonicalizeGrids(nums, dens)
	if err != nil {
		return nil, err
	}
	g := &Transfer{nums: nums, dens: dens, p: p, m: m, gain: gain, siso: p == 1 && m == 1}
	if err := g.sampling.set(dt); err != nil {
		return nil, err
	}
	if err := g.recalc(); err != nil {
		return nil, err
	}
	return g, nil
}

// zeroTransfer returns the declared zero gain of the given shape.
func zeroTransfer(p, m int, dt float64) (*Transfer, error) {
	nums := make([][]poly.Poly, p)
	dens := make([][]poly.Poly, p)
	for r := 0; r < p; r++ {
		nums[r] = make([]poly.Poly, m)
		dens[r] = make([]poly.Poly, m)
		for c := 0; c < m; c++ {
			nums[r][c] = poly.Poly{0}
			dens[r][c] = poly.Poly{1}
		}
	}
	return newTransferFromGrids(nums, dens, dt)
}

// Shape returns the output and input counts.
func (g *Transfer) Shape() (p, m int) { return g.p, g.m }

// NumberOfOutputs returns p.
func (g *Transfer) NumberOfOutputs() int { return g.p }

// NumberOfInputs returns m.
func (g *Transfer) NumberOfInputs() int { return g.m }

// IsSISO reports whether the model is single input, single output.
func (g *Transfer) IsSISO() bool { return g.siso }

// IsGain reports whether every entry is a static gain.
func (g *Transfer) IsGain() bool { return g.gain }

// IsStable reports whether every pole lies in the stability region of
// the model's time domain.
func (g *Transfer) IsStable() bool { return g.stable }

// SamplingPeriod returns the sampling period, zero for continuous time.
func (g *Transfer) SamplingPeriod() float64 { return g.dt }

// SamplingSet returns "R" for continuous and "Z" for discrete models.
func (g *Transfer) SamplingSet() string { return g.samplingSet() }

// Poles returns a copy of the cached pole locations.
func (g *Transfer) Poles() []complex128 { return append([]complex128(nil), g.poles...) }

// Zeros returns a copy of the cached transmission zero locations.
func (g *Transfer) Zeros() []complex128 { return append([]complex128(nil), g.zeros...) }

// PoleProperties returns natural frequency and damping ratio per pole,
// nil for static gains.
func (g *Transfer) PoleProperties() []PoleProperty { return poleProperties(g.poles, g.dt) }

// Num returns a deep copy of the numerator grid.
func (g *Transfer) Num() [][]poly.Poly { return copyGrid(g.nums) }

// Den returns a deep copy of the denominator grid.
func (g *Transfer) Den() [][]poly.Poly { return copyGrid(g.dens) }

// Polynomials returns deep copies of the numerator and denominator
// grids.
func (g *Transfer) Polynomials() (num, den [][]poly.Poly) {
	return copyGrid(g.nums), copyGrid(g.dens)
}

// Entry returns copies of the numerator and denominator of entry (r, c).
func (g *Transfer) Entry(r, c int) (num, den poly.Poly, err error) {
	if r < 0 || r >= g.p || c < 0 || c >= g.m {
		return nil, nil, fmt.Errorf("%w: entry (%d,%d) outside %dx%d model", ErrShape, r, c, g.p, g.m)
	}
	return g.nums[r][c].Clone(), g.dens[r][c].Clone(), nil
}

// DiscretizedWith returns the label of the discretization method that
// produced this model, empty if none is recorded.
func (g *Transfer) DiscretizedWith() string { return g.method }

// SetDiscretizedWith records the discretization method label. The model
// must be discrete and the label must be a known method.
func (g *Transfer) SetDiscretizedWith(method string) error {
	if g.dt == 0 {
		return fmt.Errorf("%w: continuous time models carry no discretization method", ErrUnsupported)
	}
	if !discretize.IsKnown(method) {
		return fmt.Errorf("%w: unknown discretization method %q", ErrType, method)
	}
	g.method = method
	return nil
}

// SetSamplingPeriod changes the sampling period. Zero reverts the model
// to continuous time and clears the discretization label; stability is
// re-derived against the new time domain.
func (g *Transfer) SetSamplingPeriod(dt float64) error {
	if err := g.sampling.set(dt); err != nil {
		return err
	}
	g.stable = stableFor(g.poles, g.dt)
	return nil
}

// SetNum replaces the numerator data. The new data must induce the
// existing shape; on failure the model is left untouched.
func (g *Transfer) SetNum(value any) error {
	nums, dens, p, m, gain, err := ValidateTransferArguments(value, g.dens)
	if err != nil {
		return err
	}
	if p != g.p || m != g.m {
		return fmt.Errorf("%w: numerator induces %dx%d but the model is %dx%d", ErrShape, p, m, g.p, g.m)
	}
	return g.commit(nums, dens, gain)
}

// SetDen replaces the denominator data under the same rules as SetNum.
func (g *Transfer) SetDen(value any) error {
	nums, dens, p, m, gain, err := ValidateTransferArguments(g.nums, value)
	if err != nil {
		return err
	}
	if p != g.p || m != g.m {
		return fmt.Errorf("%w: denominator induces %dx%d but the model is %dx%d", ErrShape, p, m, g.p, g.m)
	}
	return g.commit(nums, dens, gain)
}

// commit installs validated grids and recomputes the derived data,
// rolling back when the recomputation fails.
func (g *Transfer) commit(nums, dens [][]poly.Poly, gain bool) error {
	prevN, prevD, prevG := g.nums, g.dens, g.gain
	g.nums, g.dens, g.gain = nums, dens, gain
	if err := g.recalc(); err != nil {
		g.nums, g.dens, g.gain = prevN, prevD, prevG
		return err
	}
	return nil
}

// recalc fully rebuilds the cached poles, zeros and the stability flag
// from the current data. Nothing is patched incrementally.
func (g *Transfer) recalc() error {
	if g.gain {
		g.poles, g.zeros = nil, nil
		g.stable = true
		return nil
	}
	if g.siso {
		poles, err := poly.Roots(g.dens[0][0])
		if err != nil {
			return err
		}
		g.poles = poles
		if g.nums[0][0].Degree() == 0 {
			g.zeros = nil
		} else {
			zeros, err := poly.Roots(g.nums[0][0])
			if err != nil {
				return err
			}
			g.zeros = zeros
		}
	} else {
		// Realize a scratch state representation and read the poles and
		// transmission zeros off it.
		a, b, c, d, gain, err := transferGridsToABCD(copyGrid(g.nums), copyGrid(g.dens), g.p, g.m)
		if err != nil {
			return err
		}
		if gain {
			g.poles, g.zeros = nil, nil
			g.stable = true
			return nil
		}
		poles, err := matutil.Eigenvalues(a)
		if err != nil {
			return err
		}
		zeros, err := TransmissionZeros(a, b, c, d)
		if err != nil {
			return err
		}
		g.poles, g.zeros = poles, zeros
	}
	g.stable = stableFor(g.poles, g.dt)
	return nil
}

// ToArray converts a static gain model to its plain matrix of entry
// values. Dynamic models are rejected.
func (g *Transfer) ToArray() (*mat.Dense, error) {
	if !g.gain {
		return nil, fmt.Errorf("%w: only static gain models convert to a plain matrix", ErrUnsupported)
	}
	out := mat.NewDense(g.p, g.m, nil)
	for r := 0; r < g.p; r++ {
		for c := 0; c < g.m; c++ {
			num, den := poly.Trim(g.nums[r][c]), poly.Trim(g.dens[r][c])
			out.Set(r, c, num[0]/den[0])
		}
	}
	return out, nil
}

// At extracts the SISO subsystem of output r and input c as a new model.
func (g *Transfer) At(r, c int) (*Transfer, error) {
	return g.Slice([]int{r}, []int{c})
}

// Slice extracts the subsystem induced by the given output and input
// index selections as a new model. The parent is never mutated.
func (g *Transfer) Slice(rows, cols []int) (*Transfer, error) {
	if len(rows) == 0 || len(cols) == 0 {
		return nil, fmt.Errorf("%w: empty subsystem selection", ErrShape)
	}
	nums := make([][]poly.Poly, len(rows))
	dens := make([][]poly.Poly, len(rows))
	for i, r := range rows {
		if r < 0 || r >= g.p {
			return nil, fmt.Errorf("%w: output index %d outside %dx%d model", ErrShape, r, g.p, g.m)
		}
		nums[i] = make([]poly.Poly, len(cols))
		dens[i] = make([]poly.Poly, len(cols))
		for j, c := range cols {
			if c < 0 || c >= g.m {
				return nil, fmt.Errorf("%w: input index %d outside %dx%d model", ErrShape, c, g.p, g.m)
			}
			nums[i][j] = g.nums[r][c].Clone()
			dens[i][j] = g.dens[r][c].Clone()
		}
	}
	sub, err := newTransferFromGrids(nums, dens, g.dt)
	if err != nil {
		return nil, err
	}
	sub.method = g.method
	return sub, nil
}

// Neg returns the model with every numerator negated. Poles, zeros and
// stability are untouched by negation, so the cached values carry over
// without recomputation.
func (g *Transfer) Neg() *Transfer {
	nums := make([][]poly.Poly, g.p)
	for r := 0; r < g.p; r++ {
		nums[r] = make([]poly.Poly, g.m)
		for c := 0; c < g.m; c++ {
			nums[r][c] = g.nums[r][c].Scale(-1)
		}
	}
	out := &Transfer{
		nums: nums, dens: copyGrid(g.dens),
		p: g.p, m: g.m,
		siso: g.siso, gain: g.gain,
		sampling: g.sampling,
		poles:    append([]complex128(nil), g.poles...),
		zeros:    append([]complex128(nil), g.zeros...),
		stable:   g.stable,
	}
	return out
}

// Add returns g + other. See Add for the accepted operand types.
func (g *Transfer) Add(other any) (System, error) { return Add(g, other) }

// Sub returns g - other.
func (g *Transfer) Sub(other any) (System, error) { return Sub(g, other) }

// Mul returns the elementwise product of g and other.
func (g *Transfer) Mul(other any) (System, error) { return Mul(g, other) }

// MatMul returns the cascade (matrix) product of g and other.
func (g *Transfer) MatMul(other any) (System, error) { return MatMul(g, other) }

// Div scales the model by the reciprocal of other. Division by anything
// but a plain real scalar is unsupported.
func (g *Transfer) Div(other any) (System, error) { return Div(g, other) }

func copyGrid(grid [][]poly.Poly) [][]poly.Poly {
	out := make([][]poly.Poly, len(grid))
	for i, row := range grid {
		out[i] = make([]poly.Poly, len(row))
		for j, p := range row {
			out[i][j] = p.Clone()
		}
	}
	return out
}
