// Package matutil collects the small gonum matrix helpers shared by the
// representation and conversion code: constant matrices, block layouts,
// rank revealing factorizations and eigenvalue wrappers.
package matutil

import (
	"errors"
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Ones returns an (r by c) matrix filled with ones.
func Ones(r, c int) *mat.Dense {
	return Full(r, c, 1)
}

// Full returns an (r by c) matrix filled with value.
func Full(r, c int, value float64) *mat.Dense {
	data := make([]float64, r*c)
	for index := range data {
		data[index] = value
	}
	return mat.NewDense(r, c, data)
}

// Eye returns the n by n identity matrix.
func Eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// HasNaNOrInf checks if there are any NaN or Inf entries in the matrix.
func HasNaNOrInf(m mat.Matrix) bool {
	r, c := m.Dims()
	for row := 0; row < r; row++ {
		for col := 0; col < c; col++ {
			v := m.At(row, col)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return true
			}
		}
	}
	return false
}

// AnyNonzero reports whether the matrix has at least one nonzero entry.
// A nil matrix counts as all zero.
func AnyNonzero(m mat.Matrix) bool {
	if m == nil {
		return false
	}
	r, c := m.Dims()
	for row := 0; row < r; row++ {
		for col := 0; col < c; col++ {
			if m.At(row, col) != 0 {
				return true
			}
		}
	}
	return false
}

// BlockDiag places the given matrices along the diagonal of a new dense
// matrix, zero elsewhere. Nil arguments are skipped.
func BlockDiag(ms ...mat.Matrix) *mat.Dense {
	var rows, cols int
	for _, m := range ms {
		if m == nil {
			continue
		}
		r, c := m.Dims()
		rows += r
		cols += c
	}
	out := mat.NewDense(rows, cols, nil)
	ro, co := 0, 0
	for _, m := range ms {
		if m == nil {
			continue
		}
		r, c := m.Dims()
		out.Slice(ro, ro+r, co, co+c).(*mat.Dense).Copy(m)
		ro += r
		co += c
	}
	return out
}

// HStack augments the given matrices left to right.
func HStack(ms ...mat.Matrix) *mat.Dense {
	out := mat.DenseCopyOf(ms[0])
	for _, m := range ms[1:] {
		var next mat.Dense
		next.Augment(out, m)
		out = &next
	}
	return out
}

// VStack stacks the given matrices top to bottom.
func VStack(ms ...mat.Matrix) *mat.Dense {
	out := mat.DenseCopyOf(ms[0])
	for _, m := range ms[1:] {
		var next mat.Dense
		next.Stack(out, m)
		out = &next
	}
	return out
}

// Roll cyclically shifts the rows and columns of m, following the numpy
// convention: entry (i, j) moves to ((i+rowShift) mod r, (j+colShift)
// mod c).
func Roll(m mat.Matrix, rowShift, colShift int) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(((i+rowShift)%r+r)%r, ((j+colShift)%c+c)%c, m.At(i, j))
		}
	}
	return out
}

// FlipCols reverses the column order of m.
func FlipCols(m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, c-1-j, m.At(i, j))
		}
	}
	return out
}

// SVDFactors holds a full singular value decomposition with its numeric
// rank under the tolerance it was computed with.
type SVDFactors struct {
	U      *mat.Dense
	V      *mat.Dense
	Values []float64
	Rank   int
}

// SVD computes the full singular value decomposition of m and counts the
// singular values above rankTol. A non-positive rankTol selects the
// usual machine epsilon scaling eps * max(r, c) * sigma_max.
func SVD(m mat.Matrix, rankTol float64) (SVDFactors, error) {
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDFull); !ok {
		return SVDFactors{}, errors.New("matutil: svd factorization failed")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	values := svd.Values(nil)
	if rankTol <= 0 {
		r, c := m.Dims()
		var smax float64
		if len(values) > 0 {
			smax = values[0]
		}
		rankTol = epsNear(smax) * float64(max(r, c))
	}
	rank := 0
	for _, s := range values {
		if s > rankTol {
			rank++
		}
	}
	return SVDFactors{U: &u, V: &v, Values: values, Rank: rank}, nil
}

// Solve returns X solving a*X = b. An ill conditioned but solvable
// system is not an error here; the condition warning is discarded.
func Solve(a, b mat.Matrix) (*mat.Dense, error) {
	var x mat.Dense
	if err := x.Solve(a, b); err != nil && !isCondition(err) {
		return nil, err
	}
	return &x, nil
}

// Eigenvalues returns the eigenvalues of the square matrix m.
func Eigenvalues(m mat.Matrix) ([]complex128, error) {
	var eig mat.Eigen
	if ok := eig.Factorize(m, mat.EigenNone); !ok {
		return nil, errors.New("matutil: eigenvalue computation failed")
	}
	return eig.Values(nil), nil
}

// GenEig returns the generalized eigenvalues of the pencil (E, A), the
// values lambda with det(A - lambda*E) = 0. E is inverted through a
// linear solve; when E is numerically singular the rank deficient
// directions correspond to eigenvalues at infinity, which are discarded
// by solving with the pseudoinverse instead.
func GenEig(e, a mat.Matrix) ([]complex128, error) {
	n, _ := e.Dims()
	if n == 0 {
		return nil, nil
	}
	var x mat.Dense
	err := x.Solve(e, a)
	if (err == nil || isCondition(err)) && !HasNaNOrInf(&x) {
		return Eigenvalues(&x)
	}

	// Singular E: form pinv(E) * A from the SVD of E and keep only the
	// eigenvalues of the finite part.
	f, ferr := SVD(e, 0)
	if ferr != nil {
		return nil, ferr
	}
	if f.Rank == 0 {
		return nil, nil
	}
	pinv := mat.NewDense(n, n, nil)
	for i := 0; i < f.Rank; i++ {
		var outer mat.Dense
		col := mat.DenseCopyOf(f.V.Slice(0, n, i, i+1))
		row := mat.DenseCopyOf(f.U.Slice(0, n, i, i+1))
		outer.Mul(col, row.T())
		outer.Scale(1/f.Values[i], &outer)
		pinv.Add(pinv, &outer)
	}
	x.Mul(pinv, a)
	vals, err := Eigenvalues(&x)
	if err != nil {
		return nil, err
	}
	// The null space of E maps each infinite eigenvalue of the pencil to
	// a spurious near zero eigenvalue of pinv(E)*A, one per discarded
	// singular direction. Drop the smallest magnitudes.
	sort.Slice(vals, func(i, j int) bool {
		return cmplx.Abs(vals[i]) < cmplx.Abs(vals[j])
	})
	return vals[n-f.Rank:], nil
}

func isCondition(err error) bool {
	var cond mat.Condition
	return errors.As(err, &cond)
}

// epsNear returns the spacing of floating point numbers near x, the
// equivalent of numpy's spacing().
func epsNear(x float64) float64 {
	x = math.Abs(x)
	if x == 0 {
		return math.Nextafter(0, 1)
	}
	return math.Nextafter(x, math.Inf(1)) - x
}
