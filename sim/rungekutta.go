// Package sim integrates State models through time: explicit
// Runge-Kutta stepping for continuous models and the plain state
// recursion for discrete ones.
package sim

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// DerivFunc evaluates the state derivative at time t.
type DerivFunc func(t float64, x mat.Vector) *mat.VecDense

// butcherTableau describes the approximate solution, see
// https://en.wikipedia.org/wiki/Runge-Kutta_methods.
type butcherTableau struct {
	stages           int
	weights          [][]float64
	nodes            []float64
	rungeKuttaMatrix [][]float64
}

// RungeKutta advances an initial value problem with the explicit method
// its tableau describes. A tableau with a second weight row supports
// embedded error estimation and adaptive stepping.
type RungeKutta struct {
	tableau butcherTableau
}

// NewRK4 returns the classic fourth order method.
func NewRK4() *RungeKutta {
	return &RungeKutta{butcherTableau{
		stages:  4,
		nodes:   []float64{0, 1. / 2., 1. / 2., 1},
		weights: [][]float64{{1. / 6., 1. / 3., 1. / 3., 1. / 6.}},
		rungeKuttaMatrix: [][]float64{
			nil,
			{1. / 2.},
			{0, 1. / 2.},
			{0, 0, 1.},
		},
	}}
}

// NewEuler returns the forward Euler method.
func NewEuler() *RungeKutta {
	return &RungeKutta{butcherTableau{
		stages:           1,
		nodes:            []float64{0},
		weights:          [][]float64{{1}},
		rungeKuttaMatrix: [][]float64{nil},
	}}
}

// NewFehlberg45 returns the embedded 4(5) pair, see
// https://en.wikipedia.org/wiki/Runge-Kutta-Fehlberg_method.
func NewFehlberg45() *RungeKutta {
	return &RungeKutta{butcherTableau{
		stages: 6,
		nodes:  []float64{0, 1. / 4., 3. / 8., 12. / 13., 1., 1. / 2.},
		weights: [][]float64{
			{16. / 135., 0, 6656. / 12825., 28561. / 56430., -9. / 50., 2. / 55.},
			{25. / 216., 0, 1408. / 2565., 2197. / 4104., -1. / 5., 0},
		},
		rungeKuttaMatrix: [][]float64{
			nil,
			{1. / 4.},
			{3. / 32., 9. / 32.},
			{1932. / 2197., -7200. / 2197., 7296. / 2197.},
			{439. / 216., -8., 3680. / 513., -845. / 4104.},
			{-8. / 27., 2, -3544. / 2565., 1859. / 4104., -11. / 40.},
		},
	}}
}

// Step advances x from t=from to t=to in a single step and returns the
// next state together with the embedded error estimate (zero for
// tableaus without one).
func (rk *RungeKutta) Step(f DerivFunc, from, to float64, x *mat.VecDense) (next, errEst *mat.VecDense) {
	h := to - from
	n := x.Len()

	k := make([]*mat.VecDense, rk.tableau.stages)
	var tmp mat.VecDense
	for i := range k {
		tmp.CloneFromVec(x)
		for j, a := range rk.tableau.rungeKuttaMatrix[i] {
			tmp.AddScaledVec(&tmp, h*a, k[j])
		}
		k[i] = f(from+h*rk.tableau.nodes[i], &tmp)
	}

	next = mat.NewVecDense(n, nil)
	next.CloneFromVec(x)
	errEst = mat.NewVecDense(n, nil)
	for i, ki := range k {
		next.AddScaledVec(next, h*rk.tableau.weights[0][i], ki)
		if len(rk.tableau.weights) == 2 {
			errEst.AddScaledVec(errEst, h*(rk.tableau.weights[1][i]-rk.tableau.weights[0][i]), ki)
		}
	}
	return next, errEst
}

// maxAdaptiveIterations bounds the interval halving in AdaptiveStep.
const maxAdaptiveIterations = 10000

// AdaptiveStep integrates from t=from to t=to, halving the interval
// whenever the embedded error estimate exceeds tol, and returns the
// state at to. The method must carry an error estimating weight row.
func (rk *RungeKutta) AdaptiveStep(f DerivFunc, from, to, tol float64, x *mat.VecDense) (*mat.VecDense, error) {
	if len(rk.tableau.weights) < 2 {
		return nil, errors.New("sim: the tableau has no embedded error estimate")
	}
	state := mat.NewVecDense(x.Len(), nil)
	state.CloneFromVec(x)

	tnow := from
	count := 0
	for tnow < to {
		tnext := to
		for {
			next, errEst := rk.Step(f, tnow, tnext, state)
			localErr := 0.0
			for i := 0; i < errEst.Len(); i++ {
				localErr += math.Abs(errEst.AtVec(i))
			}
			if localErr < tol {
				state = next
				break
			}
			tnext = tnow + (tnext-tnow)/2
			count++
			if count >= maxAdaptiveIterations {
				return nil, errors.New("sim: adaptive integration did not converge")
			}
		}
		tnow = tnext
	}
	return state, nil
}
