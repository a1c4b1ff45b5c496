package poly

import (
	"math/cmplx"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sortedReals(t *testing.T, zs []complex128) []float64 {
	t.Helper()
	out := make([]float64, len(zs))
	for i, z := range zs {
		require.InDelta(t, 0, imag(z), 1e-9)
		out[i] = real(z)
	}
	sort.Float64s(out)
	return out
}

func TestTrim(t *testing.T) {
	assert.Equal(t, Poly{1, 2}, Trim(Poly{0, 0, 1, 2}))
	assert.Equal(t, Poly{0}, Trim(Poly{0, 0}))
	assert.Equal(t, Poly{0}, Trim(Poly{}))
}

func TestDegree(t *testing.T) {
	assert.Equal(t, 2, Poly{1, 3, 2}.Degree())
	assert.Equal(t, 0, Poly{0, 0, 5}.Degree())
	assert.Equal(t, 0, Poly{0}.Degree())
}

func TestAddAlignsRight(t *testing.T) {
	// (s^2+3s+2) + (s+1) = s^2+4s+3
	assert.Equal(t, Poly{1, 4, 3}, Add(Poly{1, 3, 2}, Poly{1, 1}))
	// Cancellation trims.
	assert.Equal(t, Poly{0}, Add(Poly{1, 1}, Poly{-1, -1}))
}

func TestMul(t *testing.T) {
	// (s+1)(s+2) = s^2+3s+2
	assert.Equal(t, Poly{1, 3, 2}, Mul(Poly{1, 1}, Poly{1, 2}))
	assert.Equal(t, Poly{0}, Mul(Poly{1, 1}, Poly{0}))
}

func TestDiv(t *testing.T) {
	quo, rem, err := Div(Poly{1, 3, 2}, Poly{1, 1})
	require.NoError(t, err)
	assert.Equal(t, Poly{1, 2}, quo)
	assert.True(t, rem.IsZero())

	// 3s^2+5s+3 over s^2+5s+3 leaves -10s-6.
	quo, rem, err = Div(Poly{3, 5, 3}, Poly{1, 5, 3})
	require.NoError(t, err)
	assert.Equal(t, Poly{3}, quo)
	assert.InDeltaSlice(t, []float64{-10, -6}, rem, 1e-12)

	_, _, err = Div(Poly{1, 1}, Poly{0})
	assert.ErrorIs(t, err, ErrDegenerate)
}

func TestFromRoots(t *testing.T) {
	got := FromRoots([]complex128{-1, -2})
	assert.InDeltaSlice(t, []float64{1, 3, 2}, got, 1e-12)

	// Conjugate pair keeps the result real: (s-(−1+i))(s-(−1−i)) = s^2+2s+2.
	got = FromRoots([]complex128{complex(-1, 1), complex(-1, -1)})
	assert.InDeltaSlice(t, []float64{1, 2, 2}, got, 1e-12)
}

func TestCompanion(t *testing.T) {
	a, err := Companion(Poly{1, 3, 2})
	require.NoError(t, err)
	assert.Equal(t, 0.0, a.At(0, 0))
	assert.Equal(t, 1.0, a.At(0, 1))
	assert.Equal(t, -2.0, a.At(1, 0))
	assert.Equal(t, -3.0, a.At(1, 1))

	// Non-monic input is normalized first.
	a2, err := Companion(Poly{2, 6, 4})
	require.NoError(t, err)
	assert.Equal(t, -2.0, a2.At(1, 0))

	_, err = Companion(Poly{5})
	assert.ErrorIs(t, err, ErrDegenerate)
}

func TestRoots(t *testing.T) {
	zs, err := Roots(Poly{1, 3, 2})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-2, -1}, sortedReals(t, zs), 1e-9)

	zs, err = Roots(Poly{7})
	require.NoError(t, err)
	assert.Empty(t, zs)

	_, err = Roots(Poly{0})
	assert.ErrorIs(t, err, ErrDegenerate)
}

func TestEval(t *testing.T) {
	assert.Equal(t, complex(12, 0), Eval(Poly{1, 3, 2}, 2))
	assert.Equal(t, complex(0, 0), Eval(Poly{1, 1}, -1))
}

func TestLCM(t *testing.T) {
	lcm, mults, err := LCM(Poly{1, 1}, Poly{1, 3, 2})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 3, 2}, lcm, 1e-9)
	require.Len(t, mults, 2)
	// (s+1)*(s+2) and (s^2+3s+2)*1 both reach the lcm.
	assert.InDeltaSlice(t, []float64{1, 2}, mults[0], 1e-9)
	assert.InDeltaSlice(t, []float64{1}, mults[1], 1e-9)
}

func TestLCMDisjoint(t *testing.T) {
	lcm, mults, err := LCM(Poly{1, 1}, Poly{1, 2})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 3, 2}, lcm, 1e-9)
	assert.InDeltaSlice(t, []float64{1, 2}, mults[0], 1e-9)
	assert.InDeltaSlice(t, []float64{1, 1}, mults[1], 1e-9)
}

func TestLCMScalesNonMonic(t *testing.T) {
	// 2(s+1) needs the cofactor (s+2)/2 to reach the monic lcm.
	lcm, mults, err := LCM(Poly{2, 2}, Poly{1, 2})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 3, 2}, lcm, 1e-9)
	got := Mul(Poly{2, 2}, mults[0])
	assert.True(t, Equal(lcm, got, 1e-9))
}

func TestLCMRejectsZero(t *testing.T) {
	_, _, err := LCM(Poly{1, 1}, Poly{0})
	assert.ErrorIs(t, err, ErrDegenerate)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Poly{0, 1, 2}, Poly{1, 2}, 1e-12))
	assert.False(t, Equal(Poly{1, 2}, Poly{1, 3}, 1e-12))
}

func TestRootsConjugatePair(t *testing.T) {
	zs, err := Roots(Poly{1, 2, 2})
	require.NoError(t, err)
	require.Len(t, zs, 2)
	for _, z := range zs {
		assert.InDelta(t, 0, cmplx.Abs(Eval(Poly{1, 2, 2}, z)), 1e-9)
	}
}
