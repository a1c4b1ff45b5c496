package sim

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/andresbh/harold"
)

// Input is one scalar input channel as a function of time.
type Input func(t float64) float64

// Step returns a constant input of the given amplitude.
func Step(amplitude float64) Input {
	return func(float64) float64 { return amplitude }
}

// Ramp returns an input growing linearly from zero with the given
// slope.
func Ramp(slope float64) Input {
	return func(t float64) float64 { return slope * t }
}

// Sine returns amplitude*sin(omega*t).
func Sine(amplitude, omega float64) Input {
	return func(t float64) float64 { return amplitude * math.Sin(omega*t) }
}

// Response holds a simulated trajectory: the sample times, the state at
// each sample (rows of X) and the outputs at each sample (rows of Y).
// Static gains have no state and a nil X.
type Response struct {
	T []float64
	X *mat.Dense
	Y *mat.Dense
}

// Simulate drives the model with the given input channels, one per
// model input, from t=from to t=to and records the trajectory from a
// zero initial state. Continuous models are stepped with the classic
// RK4 method on a uniform grid of the given sample count; discrete
// models follow the state recursion at their own sampling period and
// ignore samples.
func Simulate(g *harold.State, inputs []Input, from, to float64, samples int) (*Response, error) {
	return SimulateFrom(g, inputs, nil, from, to, samples)
}

// SimulateFrom is Simulate starting at the initial state x0, which must
// have one entry per model state. A nil x0 starts at rest.
func SimulateFrom(g *harold.State, inputs []Input, x0 []float64, from, to float64, samples int) (*Response, error) {
	p, m := g.Shape()
	if len(inputs) != m {
		return nil, fmt.Errorf("sim: the model has %d inputs but %d channels were given", m, len(inputs))
	}
	if to <= from {
		return nil, errors.New("sim: the time span is empty")
	}
	n := g.NumberOfStates()
	if x0 != nil && len(x0) != n {
		return nil, fmt.Errorf("sim: the model has %d states but x0 has %d entries", n, len(x0))
	}

	var grid []float64
	if dt := g.SamplingPeriod(); dt > 0 {
		steps := int((to-from)/dt) + 1
		grid = make([]float64, steps)
		for k := range grid {
			grid[k] = from + float64(k)*dt
		}
	} else {
		if samples < 2 {
			return nil, errors.New("sim: need at least two samples")
		}
		grid = make([]float64, samples)
		h := (to - from) / float64(samples-1)
		for k := range grid {
			grid[k] = from + float64(k)*h
		}
	}

	u := func(t float64) *mat.VecDense {
		v := mat.NewVecDense(m, nil)
		for j, in := range inputs {
			v.SetVec(j, in(t))
		}
		return v
	}

	resp := &Response{
		T: grid,
		Y: mat.NewDense(len(grid), p, nil),
	}

	d := g.D()
	if g.IsGain() {
		var y mat.VecDense
		for k, t := range grid {
			y.MulVec(d, u(t))
			resp.Y.SetRow(k, rawRow(&y, p))
		}
		return resp, nil
	}

	resp.X = mat.NewDense(len(grid), n, nil)
	a, b, c, _ := g.Matrices()
	var init []float64
	if x0 != nil {
		init = append([]float64(nil), x0...)
	}
	x := mat.NewVecDense(n, init)

	deriv := func(t float64, state mat.Vector) *mat.VecDense {
		dx := mat.NewVecDense(n, nil)
		dx.MulVec(a, state)
		var bu mat.VecDense
		bu.MulVec(b, u(t))
		dx.AddVec(dx, &bu)
		return dx
	}

	record := func(k int, t float64) {
		var y, du mat.VecDense
		y.MulVec(c, x)
		du.MulVec(d, u(t))
		y.AddVec(&y, &du)
		resp.X.SetRow(k, rawRow(x, n))
		resp.Y.SetRow(k, rawRow(&y, p))
	}

	if g.SamplingPeriod() > 0 {
		for k, t := range grid {
			record(k, t)
			if k == len(grid)-1 {
				break
			}
			next := mat.NewVecDense(n, nil)
			next.MulVec(a, x)
			var bu mat.VecDense
			bu.MulVec(b, u(t))
			next.AddVec(next, &bu)
			x = next
		}
		return resp, nil
	}

	rk := NewRK4()
	for k, t := range grid {
		record(k, t)
		if k == len(grid)-1 {
			break
		}
		x, _ = rk.Step(deriv, t, grid[k+1], x)
	}
	return resp, nil
}

func rawRow(v *mat.VecDense, n int) []float64 {
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = v.AtVec(i)
	}
	return out
}
