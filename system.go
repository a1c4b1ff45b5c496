package harold

import (
	"fmt"
	"math"
	"math/cmplx"
)

// System is the read surface shared by Transfer and State, consumed by
// display and analysis collaborators. The values it exposes are always
// consistent with the model data after any mutation.
type System interface {
	// Shape returns the number of outputs p and inputs m.
	Shape() (p, m int)
	// SamplingPeriod returns the sampling period, zero for continuous
	// time models.
	SamplingPeriod() float64
	Poles() []complex128
	Zeros() []complex128
	IsSISO() bool
	IsGain() bool
	IsStable() bool
}

// sampling holds the time domain tag shared by both representations: the
// period (zero meaning continuous) and the label of the discretization
// method that produced a discrete model, if any.
type sampling struct {
	dt     float64
	method string
}

func (s *sampling) set(dt float64) error {
	if dt < 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return fmt.Errorf("%w: sampling period must be a nonnegative real, got %v", ErrType, dt)
	}
	s.dt = dt
	if dt == 0 {
		s.method = ""
	}
	return nil
}

// samplingSet returns "R" for continuous and "Z" for discrete models.
func (s *sampling) samplingSet() string {
	if s.dt == 0 {
		return "R"
	}
	return "Z"
}

func sameSampling(a, b float64) bool {
	return a == b
}

func stableFor(poles []complex128, dt float64) bool {
	for _, p := range poles {
		if dt > 0 {
			if cmplx.Abs(p) >= 1 {
				return false
			}
		} else if real(p) >= 0 {
			return false
		}
	}
	return true
}

// PoleProperty describes one pole with its natural frequency and damping
// ratio. Discrete time poles are mapped through log(z)/dt first; pure
// integrators report zero frequency and NaN damping.
type PoleProperty struct {
	Pole      complex128
	Frequency float64
	Damping   float64
}

func poleProperties(poles []complex128, dt float64) []PoleProperty {
	if len(poles) == 0 {
		return nil
	}
	out := make([]PoleProperty, len(poles))
	for i, p := range poles {
		out[i].Pole = p
		integrator := p == 0
		if dt > 0 {
			integrator = p == 1
		}
		if integrator {
			out[i].Frequency = 0
			out[i].Damping = math.NaN()
			continue
		}
		q := p
		if dt > 0 {
			q = cmplx.Log(p) / complex(dt, 0)
		}
		out[i].Frequency = cmplx.Abs(q)
		out[i].Damping = -real(q) / cmplx.Abs(q)
	}
	return out
}
