package harold

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/andresbh/harold/matutil"
)

// TransmissionZeros computes the transmission zeros of the realization
// (A, B, C, D) following Misra, van Dooren and Varga (1994) without the
// descriptor matrix, which reduces to Emami-Naeini and van Dooren
// (1979): the feedthrough is compressed to full row rank by a staircase
// deflation, the pencil is compressed once more from the output side
// and the zeros drop out as generalized eigenvalues of the remaining
// regular part.
//
// A zero B or C makes the notion vacuous and returns an empty slice, as
// does a pencil that deflates away completely.
func TransmissionZeros(a, b, c, d *mat.Dense) ([]complex128, error) {
	if a == nil || !matutil.AnyNonzero(b) || !matutil.AnyNonzero(c) {
		return nil, nil
	}
	n, _ := a.Dims()
	p, m := d.Dims()
	if n == 0 {
		return nil, nil
	}

	df, err := matutil.SVD(d, 0)
	if err != nil {
		return nil, err
	}
	r := df.Rank

	var arc, brc, crc, drc *mat.Dense
	if (p == 1 && m == 1 && r > 0) || (r == min(p, m) && p == m) {
		arc, brc, crc, drc = a, b, c, d
	} else {
		ar, br, cr, dr := a, b, c, d
		if r != p {
			ar, br, cr, dr, err = tzerosReduce(a, b, c, d)
			if err != nil {
				return nil, err
			}
		}
		if ar == nil {
			return nil, nil
		}
		pr, mr := dr.Dims()
		if !matutil.AnyNonzero(matutil.HStack(cr, dr)) || pr != mr {
			// Deflate once more on the transposed system and transpose
			// back.
			at, ct, bt, dt, err := tzerosReduce(
				mat.DenseCopyOf(ar.T()), mat.DenseCopyOf(cr.T()),
				mat.DenseCopyOf(br.T()), mat.DenseCopyOf(dr.T()))
			if err != nil {
				return nil, err
			}
			arc, crc, brc, drc = transposeOrNil(at), transposeOrNil(ct), transposeOrNil(bt), transposeOrNil(dt)
		} else {
			arc, brc, crc, drc = ar, br, cr, dr
		}
	}
	if arc == nil {
		return nil, nil
	}

	n, _ = arc.Dims()
	_, m = drc.Dims()

	f, err := matutil.SVD(matutil.HStack(drc, crc), 0)
	if err != nil {
		return nil, err
	}
	v := matutil.Roll(f.V, -m, -m)
	var t mat.Dense
	t.Mul(matutil.HStack(arc, brc), v)

	e := mat.DenseCopyOf(v.Slice(0, n, 0, n))
	tnn := mat.DenseCopyOf(t.Slice(0, n, 0, n))
	z, err := matutil.GenEig(e, tnn)
	if err != nil {
		return nil, err
	}
	// Snap the numerically real results, matching real_if_close.
	for i, zi := range z {
		if math.Abs(imag(zi)) < 100*spacing(1) {
			z[i] = complex(real(zi), 0)
		}
	}
	return z, nil
}

// tzerosReduce runs the staircase deflation until the feedthrough has
// full row rank, shrinking the state dimension as rows of [C D] are
// compressed away. Nil returns mean the system deflated to nothing.
func tzerosReduce(a, b, c, d *mat.Dense) (*mat.Dense, *mat.Dense, *mat.Dense, *mat.Dense, error) {
	n0, _ := a.Dims()
	p0, _ := c.Dims()
	_, m0 := b.Dims()
	mEps := spacing(100*math.Sqrt(float64((n0+p0)*(n0+m0)))) * mat.Norm(a, 2)

	for iter := 0; iter < n0; iter++ {
		n, _ := a.Dims()
		p, m := d.Dims()

		var sigma int
		var cbd, rOfD *mat.Dense
		if matutil.AnyNonzero(d) {
			df, err := matutil.SVD(d, mEps)
			if err != nil {
				return nil, nil, nil, nil, err
			}
			sigma = df.Rank
			if p-sigma == 0 {
				break
			}
			// Row compression of D: U' D = S V', so the first sigma
			// rows of S V' carry the range of D.
			rOfD = mat.NewDense(p, m, nil)
			for i := 0; i < min(p, m); i++ {
				for j := 0; j < m; j++ {
					rOfD.Set(i, j, df.Values[i]*df.V.At(j, i))
				}
			}
			cbd = &mat.Dense{}
			cbd.Mul(df.U.T(), c)
		} else {
			sigma = 0
			cbd = c
		}

		var cbar *mat.Dense
		if sigma > 0 {
			cbar = mat.DenseCopyOf(cbd.Slice(0, sigma, 0, n))
		}
		ctilde := mat.DenseCopyOf(cbd.Slice(sigma, p, 0, n))

		cf, err := matutil.SVD(ctilde.T(), mEps)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		rho := cf.Rank
		nu := n - rho
		if rho == 0 {
			// [C D] compressed simultaneously with D.
			break
		}
		if nu == 0 {
			// [C D] is square invertible, nothing dynamic remains.
			return nil, nil, nil, nil, nil
		}

		q := matutil.FlipCols(cf.U)

		if sigma > 0 {
			var qta mat.Dense
			qta.Mul(q.T(), a)
			var acSlice mat.Dense
			acSlice.Mul(matutil.VStack(&qta, cbar), q)
			a = mat.DenseCopyOf(acSlice.Slice(0, nu, 0, nu))
			c = mat.DenseCopyOf(acSlice.Slice(nu, n+sigma, 0, nu))

			var qtb mat.Dense
			qtb.Mul(q.T(), b)
			bdSlice := matutil.VStack(&qtb, rOfD.Slice(0, sigma, 0, m))
			b = mat.DenseCopyOf(bdSlice.Slice(0, nu, 0, m))
			d = mat.DenseCopyOf(bdSlice.Slice(nu, n+sigma, 0, m))
		} else {
			var aq mat.Dense
			aq.Mul(a, q)
			var abcd mat.Dense
			abcd.Mul(q.T(), matutil.HStack(&aq, b))
			a = mat.DenseCopyOf(abcd.Slice(0, nu, 0, nu))
			b = mat.DenseCopyOf(abcd.Slice(0, nu, n, n+m))
			c = mat.DenseCopyOf(abcd.Slice(nu, n, 0, nu))
			d = mat.DenseCopyOf(abcd.Slice(nu, n, n, n+m))
		}
	}
	return a, b, c, d, nil
}

func transposeOrNil(m *mat.Dense) *mat.Dense {
	if m == nil {
		return nil
	}
	return mat.DenseCopyOf(m.T())
}

// spacing is the distance to the next representable float above x.
func spacing(x float64) float64 {
	x = math.Abs(x)
	return math.Nextafter(x, math.Inf(1)) - x
}
