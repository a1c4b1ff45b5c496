package harold

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/andresbh/harold/discretize"
	"github.com/andresbh/harold/matutil"
)

// State is a state space realization with matrices A (n by n), B (n by
// m), C (p by n) and D (p by m). A static gain holds only D; its A, B
// and C are nil and its state count is zero.
//
// As with Transfer, the shape is fixed at construction and the cached
// poles, zeros and stability flag are recomputed on every mutation.
type State struct {
	a, b, c, d *mat.Dense
	n, p, m    int

	siso, gain bool
	sampling

	poles, zeros []complex128
	stable       bool
}

// NewState builds a state space model from matrix data. Each argument
// may be nil, a scalar, a []float64 vector, a [][]float64 or a
// mat.Matrix. Passing only A (with B, C, D nil) or only D declares a
// static gain with that matrix. D defaults to the zero matrix of the
// implied shape.
//
// dt is the sampling period: zero for continuous time, positive for a
// discrete time model.
func NewState(a, b, c, d any, dt float64) (*State, error) {
	am, bm, cm, dm, err := ValidateStateArguments(a, b, c, d)
	if err != nil {
		return nil, err
	}
	return newStateFromMatrices(am, bm, cm, dm, dt)
}

// newStateFromMatrices wraps matrices already validated or produced by
// the conversion and arithmetic code. The matrices are adopted; a gain
// is passed as (nil, nil, nil, d).
func newStateFromMatrices(a, b, c, d *mat.Dense, dt float64) (*State, error) {
	g := &State{a: a, b: b, c: c, d: d}
	g.p, g.m = d.Dims()
	if a != nil {
		g.n, _ = a.Dims()
	}
	g.gain = a == nil
	g.siso = g.p == 1 && g.m == 1
	if err := g.sampling.set(dt); err != nil {
		return nil, err
	}
	if err := g.recalc(); err != nil {
		return nil, err
	}
	return g, nil
}

// ValidateStateArguments normalizes the four constructor arguments of
// NewState. It returns the realization matrices with D filled in when
// omitted; a static gain comes back as (nil, nil, nil, d).
func ValidateStateArguments(a, b, c, d any) (am, bm, cm, dm *mat.Dense, err error) {
	am, err = toDense(a, "A")
	if err != nil {
		return nil, nil, nil, nil, err
	}
	bm, err = toDense(b, "B")
	if err != nil {
		return nil, nil, nil, nil, err
	}
	cm, err = toDense(c, "C")
	if err != nil {
		return nil, nil, nil, nil, err
	}
	dm, err = toDense(d, "D")
	if err != nil {
		return nil, nil, nil, nil, err
	}

	// Gain declarations: only A given reads A as the gain matrix, only
	// D given is a gain directly.
	if bm == nil && cm == nil && dm == nil {
		if am == nil {
			return nil, nil, nil, nil, fmt.Errorf("%w: no matrices given", ErrType)
		}
		return nil, nil, nil, am, nil
	}
	if am == nil && bm == nil && cm == nil {
		return nil, nil, nil, dm, nil
	}
	if am == nil || bm == nil || cm == nil {
		return nil, nil, nil, nil, fmt.Errorf("%w: a dynamic model needs all of A, B and C", ErrType)
	}

	for _, it := range []struct {
		name string
		m    *mat.Dense
	}{{"A", am}, {"B", bm}, {"C", cm}, {"D", dm}} {
		if it.m != nil && matutil.HasNaNOrInf(it.m) {
			return nil, nil, nil, nil, fmt.Errorf("%w: %s has NaN or Inf entries", ErrType, it.name)
		}
	}

	n, na := am.Dims()
	if n != na {
		return nil, nil, nil, nil, fmt.Errorf("%w: A must be square, got %dx%d", ErrShape, n, na)
	}
	// Forgive a B handed over as a single row and a C as a single
	// column when the transpose fits the state count.
	if br, bc := bm.Dims(); br != n && br == 1 && bc == n {
		bm = mat.DenseCopyOf(bm.T())
	}
	if cr, cc := cm.Dims(); cc != n && cr == n && cc == 1 {
		cm = mat.DenseCopyOf(cm.T())
	}
	br, m := bm.Dims()
	if br != n {
		return nil, nil, nil, nil, fmt.Errorf("%w: B has %d rows but A is %dx%d", ErrShape, br, n, n)
	}
	p, cc := cm.Dims()
	if cc != n {
		return nil, nil, nil, nil, fmt.Errorf("%w: C has %d columns but A is %dx%d", ErrShape, cc, n, n)
	}
	if dm == nil {
		dm = mat.NewDense(p, m, nil)
	} else {
		dr, dc := dm.Dims()
		if dr != p || dc != m {
			if dr == m && dc == p && p != m {
				dm = mat.DenseCopyOf(dm.T())
				dr, dc = dm.Dims()
			}
		}
		if dr, dc := dm.Dims(); dr != p || dc != m {
			return nil, nil, nil, nil, fmt.Errorf("%w: D is %dx%d but C and B imply %dx%d", ErrShape, dr, dc, p, m)
		}
	}
	return am, bm, cm, dm, nil
}

// toDense converts one raw argument to a dense matrix, nil staying nil.
// A plain scalar becomes 1x1 and a []float64 a single row.
func toDense(value any, name string) (*mat.Dense, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case int:
		return mat.NewDense(1, 1, []float64{float64(v)}), nil
	case float64:
		return mat.NewDense(1, 1, []float64{v}), nil
	case []float64:
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: empty %s", ErrType, name)
		}
		return mat.NewDense(1, len(v), append([]float64(nil), v...)), nil
	case [][]float64:
		if len(v) == 0 || len(v[0]) == 0 {
			return nil, fmt.Errorf("%w: empty %s", ErrType, name)
		}
		width := len(v[0])
		data := make([]float64, 0, len(v)*width)
		for r, row := range v {
			if len(row) != width {
				return nil, fmt.Errorf("%w: ragged %s rows, row %d has %d entries where row 0 has %d", ErrShape, name, r, len(row), width)
			}
			data = append(data, row...)
		}
		return mat.NewDense(len(v), width, data), nil
	case mat.Matrix:
		r, c := v.Dims()
		if r == 0 || c == 0 {
			return nil, fmt.Errorf("%w: empty %s", ErrType, name)
		}
		return mat.DenseCopyOf(v), nil
	default:
		return nil, fmt.Errorf("%w: %s of type %T", ErrType, name, value)
	}
}

// Shape returns the output and input counts.
func (g *State) Shape() (p, m int) { return g.p, g.m }

// NumberOfStates returns n, zero for static gains.
func (g *State) NumberOfStates() int { return g.n }

// NumberOfOutputs returns p.
func (g *State) NumberOfOutputs() int { return g.p }

// NumberOfInputs returns m.
func (g *State) NumberOfInputs() int { return g.m }

// IsSISO reports whether the model is single input, single output.
func (g *State) IsSISO() bool { return g.siso }

// IsGain reports whether the model holds only a D matrix.
func (g *State) IsGain() bool { return g.gain }

// IsStable reports whether every pole lies in the stability region of
// the model's time domain.
func (g *State) IsStable() bool { return g.stable }

// SamplingPeriod returns the sampling period, zero for continuous time.
func (g *State) SamplingPeriod() float64 { return g.dt }

// SamplingSet returns "R" for continuous and "Z" for discrete models.
func (g *State) SamplingSet() string { return g.samplingSet() }

// Poles returns a copy of the cached eigenvalues of A.
func (g *State) Poles() []complex128 { return append([]complex128(nil), g.poles...) }

// Zeros returns a copy of the cached transmission zero locations.
func (g *State) Zeros() []complex128 { return append([]complex128(nil), g.zeros...) }

// PoleProperties returns natural frequency and damping ratio per pole,
// nil for static gains.
func (g *State) PoleProperties() []PoleProperty { return poleProperties(g.poles, g.dt) }

// A returns a copy of the state matrix, nil for static gains.
func (g *State) A() *mat.Dense { return denseCopy(g.a) }

// B returns a copy of the input matrix, nil for static gains.
func (g *State) B() *mat.Dense { return denseCopy(g.b) }

// C returns a copy of the output matrix, nil for static gains.
func (g *State) C() *mat.Dense { return denseCopy(g.c) }

// D returns a copy of the feedthrough matrix.
func (g *State) D() *mat.Dense { return denseCopy(g.d) }

// Matrices returns copies of all four realization matrices.
func (g *State) Matrices() (a, b, c, d *mat.Dense) {
	return denseCopy(g.a), denseCopy(g.b), denseCopy(g.c), denseCopy(g.d)
}

// DiscretizedWith returns the label of the discretization method that
// produced this model, empty if none is recorded.
func (g *State) DiscretizedWith() string { return g.method }

// SetDiscretizedWith records the discretization method label. The model
// must be discrete and the label must be a known method.
func (g *State) SetDiscretizedWith(method string) error {
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
func (g *State) SetSamplingPeriod(dt float64) error {
	if err := g.sampling.set(dt); err != nil {
		return err
	}
	g.stable = stableFor(g.poles, g.dt)
	return nil
}

// SetA replaces the state matrix. The state count must be preserved; on
// failure the model is left untouched.
func (g *State) SetA(value any) error {
	m, err := toDense(value, "A")
	if err != nil {
		return err
	}
	if g.gain {
		return fmt.Errorf("%w: a static gain has no A matrix", ErrUnsupported)
	}
	if r, c := m.Dims(); r != g.n || c != g.n {
		return fmt.Errorf("%w: A must stay %dx%d, got %dx%d", ErrShape, g.n, g.n, r, c)
	}
	return g.commit(m, g.b, g.c, g.d)
}

// SetB replaces the input matrix under the analogous shape rule.
func (g *State) SetB(value any) error {
	m, err := toDense(value, "B")
	if err != nil {
		return err
	}
	if g.gain {
		return fmt.Errorf("%w: a static gain has no B matrix", ErrUnsupported)
	}
	if r, c := m.Dims(); r != g.n || c != g.m {
		return fmt.Errorf("%w: B must stay %dx%d, got %dx%d", ErrShape, g.n, g.m, r, c)
	}
	return g.commit(g.a, m, g.c, g.d)
}

// SetC replaces the output matrix under the analogous shape rule.
func (g *State) SetC(value any) error {
	m, err := toDense(value, "C")
	if err != nil {
		return err
	}
	if g.gain {
		return fmt.Errorf("%w: a static gain has no C matrix", ErrUnsupported)
	}
	if r, c := m.Dims(); r != g.p || c != g.n {
		return fmt.Errorf("%w: C must stay %dx%d, got %dx%d", ErrShape, g.p, g.n, r, c)
	}
	return g.commit(g.a, g.b, m, g.d)
}

// SetD replaces the feedthrough matrix, keeping p and m.
func (g *State) SetD(value any) error {
	m, err := toDense(value, "D")
	if err != nil {
		return err
	}
	if r, c := m.Dims(); r != g.p || c != g.m {
		return fmt.Errorf("%w: D must stay %dx%d, got %dx%d", ErrShape, g.p, g.m, r, c)
	}
	return g.commit(g.a, g.b, g.c, m)
}

func (g *State) commit(a, b, c, d *mat.Dense) error {
	prevA, prevB, prevC, prevD := g.a, g.b, g.c, g.d
	g.a, g.b, g.c, g.d = a, b, c, d
	if err := g.recalc(); err != nil {
		g.a, g.b, g.c, g.d = prevA, prevB, prevC, prevD
		return err
	}
	return nil
}

// recalc fully rebuilds the cached poles, zeros and the stability flag
// from the current matrices.
func (g *State) recalc() error {
	if g.gain {
		g.poles, g.zeros = nil, nil
		g.stable = true
		return nil
	}
	for _, it := range []struct {
		name string
		m    *mat.Dense
	}{{"A", g.a}, {"B", g.b}, {"C", g.c}, {"D", g.d}} {
		if matutil.HasNaNOrInf(it.m) {
			return fmt.Errorf("%w: %s has NaN or Inf entries", ErrType, it.name)
		}
	}
	poles, err := matutil.Eigenvalues(g.a)
	if err != nil {
		return err
	}
	zeros, err := TransmissionZeros(g.a, g.b, g.c, g.d)
	if err != nil {
		return err
	}
	g.poles, g.zeros = poles, zeros
	g.stable = stableFor(g.poles, g.dt)
	return nil
}

// ToArray converts a static gain model to a copy of its gain matrix.
// Dynamic models are rejected.
func (g *State) ToArray() (*mat.Dense, error) {
	if !g.gain {
		return nil, fmt.Errorf("%w: only static gain models convert to a plain matrix", ErrUnsupported)
	}
	return denseCopy(g.d), nil
}

// At extracts the SISO subsystem of output r and input c as a new
// model. The state matrix is carried over whole, so the result is
// typically nonminimal.
func (g *State) At(r, c int) (*State, error) {
	return g.Slice([]int{r}, []int{c})
}

// Slice extracts the subsystem induced by the given output and input
// index selections: C and D keep the selected rows, B and D the
// selected columns. The parent is never mutated.
func (g *State) Slice(rows, cols []int) (*State, error) {
	if len(rows) == 0 || len(cols) == 0 {
		return nil, fmt.Errorf("%w: empty subsystem selection", ErrShape)
	}
	for _, r := range rows {
		if r < 0 || r >= g.p {
			return nil, fmt.Errorf("%w: output index %d outside %dx%d model", ErrShape, r, g.p, g.m)
		}
	}
	for _, c := range cols {
		if c < 0 || c >= g.m {
			return nil, fmt.Errorf("%w: input index %d outside %dx%d model", ErrShape, c, g.p, g.m)
		}
	}
	d := mat.NewDense(len(rows), len(cols), nil)
	for i, r := range rows {
		for j, c := range cols {
			d.Set(i, j, g.d.At(r, c))
		}
	}
	if g.gain {
		sub, err := newStateFromMatrices(nil, nil, nil, d, g.dt)
		if err != nil {
			return nil, err
		}
		sub.method = g.method
		return sub, nil
	}
	b := mat.NewDense(g.n, len(cols), nil)
	for j, c := range cols {
		for i := 0; i < g.n; i++ {
			b.Set(i, j, g.b.At(i, c))
		}
	}
	cmat := mat.NewDense(len(rows), g.n, nil)
	for i, r := range rows {
		for j := 0; j < g.n; j++ {
			cmat.Set(i, j, g.c.At(r, j))
		}
	}
	sub, err := newStateFromMatrices(denseCopy(g.a), b, cmat, d, g.dt)
	if err != nil {
		return nil, err
	}
	sub.method = g.method
	return sub, nil
}

// Neg returns the model with C and D negated, leaving the state
// dynamics alone. Poles, zeros and stability are untouched by negation,
// so the cached values carry over without recomputation.
func (g *State) Neg() *State {
	var c *mat.Dense
	if g.c != nil {
		c = denseCopy(g.c)
		c.Scale(-1, c)
	}
	d := denseCopy(g.d)
	d.Scale(-1, d)
	return &State{
		a: denseCopy(g.a), b: denseCopy(g.b), c: c, d: d,
		n: g.n, p: g.p, m: g.m,
		siso: g.siso, gain: g.gain,
		sampling: g.sampling,
		poles:    append([]complex128(nil), g.poles...),
		zeros:    append([]complex128(nil), g.zeros...),
		stable:   g.stable,
	}
}

// Add returns g + other. See Add for the accepted operand types.
func (g *State) Add(other any) (System, error) { return Add(g, other) }

// Sub returns g - other.
func (g *State) Sub(other any) (System, error) { return Sub(g, other) }

// Mul returns the elementwise product of g and other.
func (g *State) Mul(other any) (System, error) { return Mul(g, other) }

// MatMul returns the cascade (matrix) product of g and other.
func (g *State) MatMul(other any) (System, error) { return MatMul(g, other) }

// Div scales the model by the reciprocal of other. Division by anything
// but a plain real scalar is unsupported.
func (g *State) Div(other any) (System, error) { return Div(g, other) }

// ConcatenateStateMatrices packs the realization into the single block
// matrix [A B; C D]. Static gains return just D.
func ConcatenateStateMatrices(g *State) *mat.Dense {
	if g.gain {
		return denseCopy(g.d)
	}
	top := matutil.HStack(g.a, g.b)
	bottom := matutil.HStack(g.c, g.d)
	return matutil.VStack(top, bottom)
}

func denseCopy(m *mat.Dense) *mat.Dense {
	if m == nil {
		return nil
	}
	return mat.DenseCopyOf(m)
}
