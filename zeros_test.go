package harold

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestTransmissionZerosStrictlyProper(t *testing.T) {
	// (s-1)/((s+1)(s+2)) in companion form.
	a := mat.NewDense(2, 2, []float64{0, 1, -2, -3})
	b := mat.NewDense(2, 1, []float64{0, 1})
	c := mat.NewDense(1, 2, []float64{-1, 1})
	d := mat.NewDense(1, 1, nil)
	zs, err := TransmissionZeros(a, b, c, d)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1}, realsSorted(t, zs), 1e-7)
}

func TestTransmissionZerosNoInput(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{-1, 0, 0, -2})
	b := mat.NewDense(2, 1, nil)
	c := mat.NewDense(1, 2, []float64{1, 1})
	d := mat.NewDense(1, 1, nil)
	zs, err := TransmissionZeros(a, b, c, d)
	require.NoError(t, err)
	assert.Empty(t, zs)
}

func TestTransmissionZerosFullRankFeedthrough(t *testing.T) {
	// 1 + 1/(s+1) = (s+2)/(s+1) takes the direct pencil path.
	a := mat.NewDense(1, 1, []float64{-1})
	b := mat.NewDense(1, 1, []float64{1})
	c := mat.NewDense(1, 1, []float64{1})
	d := mat.NewDense(1, 1, []float64{1})
	zs, err := TransmissionZeros(a, b, c, d)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-2}, realsSorted(t, zs), 1e-7)
}

func TestTransmissionZerosSquareMIMO(t *testing.T) {
	// diag(1 + 2/(s+1), 1 + 3/(s+1)) has zeros at -3 and -4.
	a := mat.NewDense(2, 2, []float64{-1, 0, 0, -1})
	b := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	c := mat.NewDense(2, 2, []float64{2, 0, 0, 3})
	d := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	zs, err := TransmissionZeros(a, b, c, d)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-4, -3}, realsSorted(t, zs), 1e-7)
}

func TestTransmissionZerosTallDeflation(t *testing.T) {
	// Two outputs over one input, no feedthrough. The staircase pass
	// deflates the unobservable directions; no finite zeros remain.
	a := mat.NewDense(2, 2, []float64{0, 1, -2, -3})
	b := mat.NewDense(2, 1, []float64{0, 1})
	c := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	d := mat.NewDense(2, 1, nil)
	zs, err := TransmissionZeros(a, b, c, d)
	require.NoError(t, err)
	assert.Empty(t, zs)
}

func TestTransmissionZerosStaticPencil(t *testing.T) {
	zs, err := TransmissionZeros(nil, nil, nil, mat.NewDense(1, 1, []float64{5}))
	require.NoError(t, err)
	assert.Empty(t, zs)
}
