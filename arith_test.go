package harold

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresbh/harold/poly"
)

func siso(t *testing.T, num, den []float64, dt float64) *Transfer {
	t.Helper()
	g, err := NewTransfer(num, den, dt)
	require.NoError(t, err)
	return g
}

func entryOf(t *testing.T, s System, r, c int) (poly.Poly, poly.Poly) {
	t.Helper()
	g, ok := s.(*Transfer)
	require.True(t, ok)
	num, den, err := g.Entry(r, c)
	require.NoError(t, err)
	return num, den
}

func TestAddTransfersSameDenominator(t *testing.T) {
	g := siso(t, []float64{1}, []float64{1, 1}, 0)
	sum, err := Add(g, g)
	require.NoError(t, err)
	num, den := entryOf(t, sum, 0, 0)
	assert.True(t, poly.Equal(num, poly.Poly{2}, 1e-9))
	assert.True(t, poly.Equal(den, poly.Poly{1, 1}, 1e-9))
}

func TestSubTransfersCollapsesToZeroGain(t *testing.T) {
	g := siso(t, []float64{1}, []float64{1, -0.5}, 0.1)
	diff, err := Sub(g, g)
	require.NoError(t, err)
	z, ok := diff.(*Transfer)
	require.True(t, ok)
	assert.True(t, z.IsGain())
	// The sampling period survives the collapse.
	assert.Equal(t, 0.1, z.SamplingPeriod())
	arr, err := z.ToArray()
	require.NoError(t, err)
	assert.Equal(t, 0.0, arr.At(0, 0))
}

func TestAddTransferScalar(t *testing.T) {
	g := siso(t, []float64{1}, []float64{1, 1}, 0)
	sum, err := Add(g, 1)
	require.NoError(t, err)
	num, den := entryOf(t, sum, 0, 0)
	assert.True(t, poly.Equal(num, poly.Poly{1, 2}, 1e-9))
	assert.True(t, poly.Equal(den, poly.Poly{1, 1}, 1e-9))
}

func TestAddScalarBroadcastsOverMIMO(t *testing.T) {
	num := [][][]float64{{{1}}, {{1}}}
	den := [][][]float64{{{1, 1}}, {{1, 2}}}
	g, err := NewTransfer(num, den, 0)
	require.NoError(t, err)
	sum, err := Add(g, 1)
	require.NoError(t, err)
	n0, d0 := entryOf(t, sum, 0, 0)
	assert.True(t, poly.Equal(n0, poly.Poly{1, 2}, 1e-9))
	assert.True(t, poly.Equal(d0, poly.Poly{1, 1}, 1e-9))
	n1, d1 := entryOf(t, sum, 1, 0)
	assert.True(t, poly.Equal(n1, poly.Poly{1, 3}, 1e-9))
	assert.True(t, poly.Equal(d1, poly.Poly{1, 2}, 1e-9))
}

func TestAddRejectsSamplingMismatch(t *testing.T) {
	a := siso(t, []float64{1}, []float64{1, -0.5}, 0.1)
	b := siso(t, []float64{1}, []float64{1, -0.5}, 0.2)
	_, err := Add(a, b)
	assert.ErrorIs(t, err, ErrSamplingMismatch)
}

func TestAddRejectsShapeMismatch(t *testing.T) {
	a := siso(t, []float64{1}, []float64{1, 1}, 0)
	// A single row of plain scalars would read as SISO coefficients, so
	// the 1x2 gain needs the grid form.
	b, err := NewTransfer([][][]float64{{{1}, {2}}}, nil, 0)
	require.NoError(t, err)
	p, m := b.Shape()
	require.Equal(t, 1, p)
	require.Equal(t, 2, m)
	_, err = Add(a, b)
	assert.ErrorIs(t, err, ErrShape)

	_, err = Add(a, [][]float64{{1, 2}})
	assert.ErrorIs(t, err, ErrShape)
}

func TestMulTransfersSISO(t *testing.T) {
	a := siso(t, []float64{1}, []float64{1, 1}, 0)
	b := siso(t, []float64{1}, []float64{1, 2}, 0)
	prod, err := Mul(a, b)
	require.NoError(t, err)
	num, den := entryOf(t, prod, 0, 0)
	assert.True(t, poly.Equal(num, poly.Poly{1}, 1e-9))
	assert.True(t, poly.Equal(den, poly.Poly{1, 3, 2}, 1e-9))
}

func TestMulTransferZeroScalarCollapses(t *testing.T) {
	g := siso(t, []float64{1}, []float64{1, 1}, 0)
	prod, err := Mul(g, 0.0)
	require.NoError(t, err)
	z, ok := prod.(*Transfer)
	require.True(t, ok)
	assert.True(t, z.IsGain())
}

func TestDivTransfer(t *testing.T) {
	g := siso(t, []float64{2}, []float64{1, 1}, 0)
	half, err := Div(g, 2)
	require.NoError(t, err)
	num, _ := entryOf(t, half, 0, 0)
	assert.True(t, poly.Equal(num, poly.Poly{1}, 1e-9))

	_, err = Div(g, g)
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = Div(g, 0)
	assert.ErrorIs(t, err, ErrType)
}

func TestMatMulTransferMatrix(t *testing.T) {
	// [1/(s+1), 1/(s+2)] @ [1; 1] = (2s+3)/((s+1)(s+2))
	num := [][][]float64{{{1}, {1}}}
	den := [][][]float64{{{1, 1}, {1, 2}}}
	g, err := NewTransfer(num, den, 0)
	require.NoError(t, err)
	prod, err := MatMul(g, [][]float64{{1}, {1}})
	require.NoError(t, err)
	p, m := prod.Shape()
	assert.Equal(t, 1, p)
	assert.Equal(t, 1, m)
	n, d := entryOf(t, prod, 0, 0)
	assert.True(t, poly.Equal(n, poly.Poly{2, 3}, 1e-9))
	assert.True(t, poly.Equal(d, poly.Poly{1, 3, 2}, 1e-9))
}

func TestMatMulTransfers(t *testing.T) {
	// [1, 1/(s+1)] @ [1/(s+2); 1] = 1/(s+2) + 1/(s+1)
	anum := [][][]float64{{{1}, {1}}}
	aden := [][][]float64{{{1}, {1, 1}}}
	a, err := NewTransfer(anum, aden, 0)
	require.NoError(t, err)
	bnum := [][][]float64{{{1}}, {{1}}}
	bden := [][][]float64{{{1, 2}}, {{1}}}
	b, err := NewTransfer(bnum, bden, 0)
	require.NoError(t, err)

	prod, err := MatMul(a, b)
	require.NoError(t, err)
	n, d := entryOf(t, prod, 0, 0)
	assert.True(t, poly.Equal(n, poly.Poly{2, 3}, 1e-9))
	assert.True(t, poly.Equal(d, poly.Poly{1, 3, 2}, 1e-9))
}

func TestMatMulShapeMismatch(t *testing.T) {
	num := [][][]float64{{{1}, {1}}}
	den := [][][]float64{{{1, 1}, {1, 2}}}
	g, err := NewTransfer(num, den, 0)
	require.NoError(t, err)
	_, err = MatMul(g, [][]float64{{1, 2}, {3, 4}, {5, 6}})
	assert.ErrorIs(t, err, ErrShape)
}

func TestAddStatesBlockDiagonal(t *testing.T) {
	a, err := NewState([][]float64{{-1}}, [][]float64{{1}}, [][]float64{{1}}, nil, 0)
	require.NoError(t, err)
	b, err := NewState([][]float64{{-2}}, [][]float64{{1}}, [][]float64{{1}}, nil, 0)
	require.NoError(t, err)

	sum, err := Add(a, b)
	require.NoError(t, err)
	ss, ok := sum.(*State)
	require.True(t, ok)
	assert.Equal(t, 2, ss.NumberOfStates())
	av := ss.A()
	assert.Equal(t, -1.0, av.At(0, 0))
	assert.Equal(t, -2.0, av.At(1, 1))
	assert.Equal(t, 0.0, av.At(0, 1))
	assert.InDeltaSlice(t, []float64{-2, -1}, realsSorted(t, ss.Poles()), 1e-9)
}

func TestAddStateGainShortCircuit(t *testing.T) {
	a, err := NewState([][]float64{{-1}}, [][]float64{{1}}, [][]float64{{1}}, nil, 0)
	require.NoError(t, err)
	sum, err := Add(a, 2)
	require.NoError(t, err)
	ss, ok := sum.(*State)
	require.True(t, ok)
	// A static offset lands in D without new states.
	assert.Equal(t, 1, ss.NumberOfStates())
	assert.Equal(t, 2.0, ss.D().At(0, 0))
}

func TestMatMulStatesSeriesCoupling(t *testing.T) {
	a, err := NewState([][]float64{{-1}}, [][]float64{{1}}, [][]float64{{1}}, nil, 0)
	require.NoError(t, err)
	b, err := NewState([][]float64{{-2}}, [][]float64{{1}}, [][]float64{{1}}, nil, 0)
	require.NoError(t, err)

	prod, err := MatMul(a, b)
	require.NoError(t, err)
	ss, ok := prod.(*State)
	require.True(t, ok)
	av, bv, cv, dv := ss.Matrices()
	// B1*C2 couples into the upper right block.
	assert.Equal(t, -1.0, av.At(0, 0))
	assert.Equal(t, 1.0, av.At(0, 1))
	assert.Equal(t, 0.0, av.At(1, 0))
	assert.Equal(t, -2.0, av.At(1, 1))
	assert.Equal(t, 0.0, bv.At(0, 0))
	assert.Equal(t, 1.0, bv.At(1, 0))
	assert.Equal(t, 1.0, cv.At(0, 0))
	assert.Equal(t, 0.0, cv.At(0, 1))
	assert.Equal(t, 0.0, dv.At(0, 0))
}

func TestMatMulStatesAssociative(t *testing.T) {
	mk := func(pole float64) *State {
		g, err := NewState([][]float64{{pole}}, [][]float64{{1}}, [][]float64{{1}}, nil, 0)
		require.NoError(t, err)
		return g
	}
	g1, g2, g3 := mk(-1), mk(-2), mk(-3)

	left12, err := MatMul(g1, g2)
	require.NoError(t, err)
	left, err := MatMul(left12, g3)
	require.NoError(t, err)
	right23, err := MatMul(g2, g3)
	require.NoError(t, err)
	right, err := MatMul(g1, right23)
	require.NoError(t, err)

	want := []float64{-3, -2, -1}
	assert.InDeltaSlice(t, want, realsSorted(t, left.Poles()), 1e-9)
	assert.InDeltaSlice(t, want, realsSorted(t, right.Poles()), 1e-9)
}

func TestMatMulTransfersAssociative(t *testing.T) {
	// [1/(s+1), 1] @ diag(1/(s+2), 1/(s+3)) @ [1; 1] grouped both ways.
	a, err := NewTransfer([][][]float64{{{1}, {1}}},
		[][][]float64{{{1, 1}, {1}}}, 0)
	require.NoError(t, err)
	b, err := NewTransfer(
		[][][]float64{{{1}, {0}}, {{0}, {1}}},
		[][][]float64{{{1, 2}, {1}}, {{1}, {1, 3}}}, 0)
	require.NoError(t, err)
	c, err := NewTransfer([][][]float64{{{1}}, {{1}}}, nil, 0)
	require.NoError(t, err)

	ab, err := MatMul(a, b)
	require.NoError(t, err)
	left, err := MatMul(ab, c)
	require.NoError(t, err)
	bc, err := MatMul(b, c)
	require.NoError(t, err)
	right, err := MatMul(a, bc)
	require.NoError(t, err)

	// 1/((s+1)(s+2)) + 1/(s+3) either way.
	wantNum := poly.Poly{1, 4, 5}
	wantDen := poly.Poly{1, 6, 11, 6}
	ln, ld := entryOf(t, left, 0, 0)
	assert.True(t, poly.Equal(ln, wantNum, 1e-9))
	assert.True(t, poly.Equal(ld, wantDen, 1e-9))
	rn, rd := entryOf(t, right, 0, 0)
	assert.True(t, poly.Equal(rn, wantNum, 1e-9))
	assert.True(t, poly.Equal(rd, wantDen, 1e-9))
}

func TestMatMulStateScalarScalesInputSide(t *testing.T) {
	g, err := NewState([][]float64{{-1}}, [][]float64{{1}}, [][]float64{{1}}, [][]float64{{3}}, 0)
	require.NoError(t, err)
	prod, err := MatMul(g, 2)
	require.NoError(t, err)
	ss, ok := prod.(*State)
	require.True(t, ok)
	assert.Equal(t, -1.0, ss.A().At(0, 0))
	assert.Equal(t, 2.0, ss.B().At(0, 0))
	assert.Equal(t, 1.0, ss.C().At(0, 0))
	assert.Equal(t, 6.0, ss.D().At(0, 0))
}

func TestMulStatesSISOIsCascade(t *testing.T) {
	a, err := NewState([][]float64{{-1}}, [][]float64{{1}}, [][]float64{{1}}, nil, 0)
	require.NoError(t, err)
	b, err := NewState([][]float64{{-2}}, [][]float64{{1}}, [][]float64{{1}}, nil, 0)
	require.NoError(t, err)
	prod, err := Mul(a, b)
	require.NoError(t, err)
	ss, ok := prod.(*State)
	require.True(t, ok)
	assert.Equal(t, 2, ss.NumberOfStates())
	assert.InDeltaSlice(t, []float64{-2, -1}, realsSorted(t, ss.Poles()), 1e-9)
}

func TestMulStatesElementwiseMIMO(t *testing.T) {
	// [1/(s+1); 1/(s+2)] squared elementwise doubles every pole.
	a, err := NewState([][]float64{{-1, 0}, {0, -2}},
		[][]float64{{1}, {1}}, [][]float64{{1, 0}, {0, 1}}, nil, 0)
	require.NoError(t, err)
	prod, err := Mul(a, a)
	require.NoError(t, err)
	ss, ok := prod.(*State)
	require.True(t, ok)
	p, m := ss.Shape()
	assert.Equal(t, 2, p)
	assert.Equal(t, 1, m)

	back, err := StateToTransfer(ss)
	require.NoError(t, err)
	num, den, err := back.Entry(0, 0)
	require.NoError(t, err)
	// 1/(s+1)^2, possibly carried on a nonminimal denominator.
	s := complex(1, 0)
	assert.InDelta(t, 0.25, real(poly.Eval(num, s)/poly.Eval(den, s)), 1e-6)
	num, den, err = back.Entry(1, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0/9.0, real(poly.Eval(num, s)/poly.Eval(den, s)), 1e-6)
}

func TestMulStateShapeMismatch(t *testing.T) {
	a, err := NewState([][]float64{{-1}}, [][]float64{{1, 0}}, [][]float64{{1}}, nil, 0)
	require.NoError(t, err)
	b, err := NewState([][]float64{{-1}}, [][]float64{{1}}, [][]float64{{1}}, nil, 0)
	require.NoError(t, err)
	_, err = Mul(a, b)
	assert.ErrorIs(t, err, ErrShape)
}

func TestMixedTransferStateAdd(t *testing.T) {
	g := siso(t, []float64{1}, []float64{1, 1}, 0)
	ss, err := NewState([][]float64{{-2}}, [][]float64{{1}}, [][]float64{{1}}, nil, 0)
	require.NoError(t, err)
	sum, err := Add(g, ss)
	require.NoError(t, err)
	out, ok := sum.(*State)
	require.True(t, ok)
	assert.Equal(t, 2, out.NumberOfStates())
	assert.InDeltaSlice(t, []float64{-2, -1}, realsSorted(t, out.Poles()), 1e-9)
}

func TestOperatorsLeaveOperandsUntouched(t *testing.T) {
	g := siso(t, []float64{1}, []float64{1, 1}, 0)
	_, err := Add(g, 5)
	require.NoError(t, err)
	num, den, err := g.Entry(0, 0)
	require.NoError(t, err)
	assert.Equal(t, poly.Poly{1}, num)
	assert.Equal(t, poly.Poly{1, 1}, den)
}

func TestNegDispatch(t *testing.T) {
	g := siso(t, []float64{1}, []float64{1, 1}, 0)
	n, err := Neg(g)
	require.NoError(t, err)
	num, _ := entryOf(t, n, 0, 0)
	assert.Equal(t, poly.Poly{-1}, num)
}
