// Package poly implements the polynomial arithmetic used by the system
// representations: construction from roots, addition, multiplication,
// division with remainder, least common multiples with cofactor
// multipliers and companion matrix construction.
//
// A polynomial is an ordered coefficient slice with the highest degree
// first, so Poly{1, 3, 2} is x^2 + 3x + 2. Leading zero coefficients are
// insignificant and trimmed by the operations below. The zero polynomial
// is Poly{0}.
package poly

import (
	"errors"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrDegenerate is returned for polynomials that cannot take part in the
// requested operation, such as dividing by the zero polynomial.
var ErrDegenerate = errors.New("poly: degenerate polynomial")

// Poly holds real coefficients, highest degree first.
type Poly []float64

// Trim removes the leading (most significant) zero coefficients. An
// identically zero or empty input becomes Poly{0}.
func Trim(p Poly) Poly {
	for i, c := range p {
		if c != 0 {
			out := make(Poly, len(p)-i)
			copy(out, p[i:])
			return out
		}
	}
	return Poly{0}
}

// Clone returns an independent copy of p.
func (p Poly) Clone() Poly {
	out := make(Poly, len(p))
	copy(out, p)
	return out
}

// Degree returns the degree after trimming. The zero polynomial has
// degree zero.
func (p Poly) Degree() int {
	return len(Trim(p)) - 1
}

// IsZero reports whether every coefficient is zero.
func (p Poly) IsZero() bool {
	for _, c := range p {
		if c != 0 {
			return false
		}
	}
	return true
}

// Scale returns a*p as a new polynomial.
func (p Poly) Scale(a float64) Poly {
	out := p.Clone()
	floats.Scale(a, out)
	return out
}

// Monic returns p divided by its leading coefficient together with that
// coefficient. The zero polynomial is returned unchanged with lead 0.
func (p Poly) Monic() (Poly, float64) {
	t := Trim(p)
	if t.IsZero() {
		return t, 0
	}
	lead := t[0]
	return t.Scale(1 / lead), lead
}

// Add returns a+b, right aligning the coefficient slices.
func Add(a, b Poly) Poly {
	if len(b) > len(a) {
		a, b = b, a
	}
	out := a.Clone()
	off := len(a) - len(b)
	for i, c := range b {
		out[off+i] += c
	}
	return Trim(out)
}

// Sub returns a-b.
func Sub(a, b Poly) Poly {
	return Add(a, b.Scale(-1))
}

// Mul returns the product a*b by coefficient convolution.
func Mul(a, b Poly) Poly {
	a, b = Trim(a), Trim(b)
	if a.IsZero() || b.IsZero() {
		return Poly{0}
	}
	out := make(Poly, len(a)+len(b)-1)
	for i, ca := range a {
		for j, cb := range b {
			out[i+j] += ca * cb
		}
	}
	return out
}

// Div performs polynomial long division of num by den and returns the
// quotient and remainder such that num = quo*den + rem. Full cancellation
// leaves an identically zero remainder. Dividing by the zero polynomial
// returns ErrDegenerate.
func Div(num, den Poly) (quo, rem Poly, err error) {
	num, den = Trim(num), Trim(den)
	if den.IsZero() {
		return nil, nil, ErrDegenerate
	}
	if len(num) < len(den) {
		return Poly{0}, num, nil
	}
	work := num.Clone()
	quo = make(Poly, len(num)-len(den)+1)
	for i := 0; i < len(quo); i++ {
		q := work[i] / den[0]
		quo[i] = q
		for j, c := range den {
			work[i+j] -= q * c
		}
	}
	return Trim(quo), Trim(work[len(quo):]), nil
}

// FromRoots expands the monic polynomial with the given roots. Complex
// roots are expected in conjugate pairs so that the imaginary parts of
// the product cancel; only the real parts are kept.
func FromRoots(roots []complex128) Poly {
	acc := []complex128{1}
	for _, r := range roots {
		next := make([]complex128, len(acc)+1)
		for i, c := range acc {
			next[i] += c
			next[i+1] -= c * r
		}
		acc = next
	}
	out := make(Poly, len(acc))
	for i, c := range acc {
		out[i] = real(c)
	}
	return out
}

// Companion builds the bottom row companion matrix of p, so that its
// eigenvalues are the roots of p. The polynomial is normalized to monic
// form first. Degree below one returns ErrDegenerate.
func Companion(p Poly) (*mat.Dense, error) {
	m, lead := p.Monic()
	if lead == 0 || len(m) < 2 {
		return nil, ErrDegenerate
	}
	n := len(m) - 1
	a := mat.NewDense(n, n, nil)
	for i := 0; i < n-1; i++ {
		a.Set(i, i+1, 1)
	}
	for j := 0; j < n; j++ {
		a.Set(n-1, j, -m[n-j])
	}
	return a, nil
}

// Roots computes all roots of p through the eigenvalues of its companion
// matrix. Degree zero polynomials have no roots.
func Roots(p Poly) ([]complex128, error) {
	t := Trim(p)
	if t.IsZero() {
		return nil, ErrDegenerate
	}
	if len(t) == 1 {
		return []complex128{}, nil
	}
	a, err := Companion(t)
	if err != nil {
		return nil, err
	}
	var eig mat.Eigen
	if ok := eig.Factorize(a, mat.EigenNone); !ok {
		return nil, errors.New("poly: companion eigenvalue computation failed")
	}
	return eig.Values(nil), nil
}

// Eval evaluates p at s using Horner's method.
func Eval(p Poly, s complex128) complex128 {
	if len(p) == 0 {
		return 0
	}
	v := complex(p[0], 0)
	for _, c := range p[1:] {
		v = v*s + complex(c, 0)
	}
	return v
}

// LCM computes the least common multiple of the given polynomials and
// the cofactor multipliers such that ps[i] * mults[i] equals the returned
// polynomial for every i. The LCM is monic. Roots are matched across the
// inputs with a relative tolerance, taking the maximum multiplicity seen
// in any single input.
func LCM(ps ...Poly) (Poly, []Poly, error) {
	if len(ps) == 0 {
		return nil, nil, ErrDegenerate
	}
	allRoots := make([][]complex128, len(ps))
	leads := make([]float64, len(ps))
	var maxMag float64
	for i, p := range ps {
		t := Trim(p)
		if t.IsZero() {
			return nil, nil, ErrDegenerate
		}
		r, err := Roots(t)
		if err != nil {
			return nil, nil, err
		}
		allRoots[i] = r
		_, leads[i] = t.Monic()
		for _, z := range r {
			if a := cmplx.Abs(z); a > maxMag {
				maxMag = a
			}
		}
	}
	tol := 1e-8 * (1 + maxMag)

	// Union with maximum multiplicity: greedily match each input root
	// against the still unmatched union roots.
	var union []complex128
	for _, rs := range allRoots {
		used := make([]bool, len(union))
		for _, r := range rs {
			best, bestDist := -1, math.Inf(1)
			for j, u := range union {
				if used[j] {
					continue
				}
				if d := cmplx.Abs(u - r); d < bestDist {
					best, bestDist = j, d
				}
			}
			if best >= 0 && bestDist <= tol {
				used[best] = true
				continue
			}
			union = append(union, r)
			used = append(used, true)
		}
	}

	lcm := FromRoots(union)
	mults := make([]Poly, len(ps))
	for i, rs := range allRoots {
		rest, err := multisetDiff(union, rs, tol)
		if err != nil {
			return nil, nil, err
		}
		mults[i] = FromRoots(rest).Scale(1 / leads[i])
	}
	return lcm, mults, nil
}

// multisetDiff removes one occurrence of each root in sub from all,
// pairing within tol.
func multisetDiff(all, sub []complex128, tol float64) ([]complex128, error) {
	taken := make([]bool, len(all))
	for _, r := range sub {
		best, bestDist := -1, math.Inf(1)
		for j, u := range all {
			if taken[j] {
				continue
			}
			if d := cmplx.Abs(u - r); d < bestDist {
				best, bestDist = j, d
			}
		}
		if best < 0 || bestDist > 10*tol {
			return nil, errors.New("poly: lcm cofactor root pairing failed")
		}
		taken[best] = true
	}
	var out []complex128
	for j, u := range all {
		if !taken[j] {
			out = append(out, u)
		}
	}
	return out, nil
}

// Equal reports whether a and b have the same trimmed coefficients
// within tol.
func Equal(a, b Poly, tol float64) bool {
	a, b = Trim(a), Trim(b)
	if len(a) != len(b) {
		return false
	}
	return floats.EqualApprox(a, b, tol)
}
