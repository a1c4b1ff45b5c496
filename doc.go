// Package harold models linear time-invariant dynamical systems in two
// dual representations, rational polynomial Transfer functions and State
// space realizations, together with lossless conversion between the two,
// a closed arithmetic algebra over both (and mixed) representations and
// transmission zero computation through a rank revealing staircase
// reduction of the system pencil.
//
// Both model types accept SISO and MIMO data and carry a sampling period
// tag: zero means continuous time, a positive value marks the model as
// discrete with that period. Arithmetic between models requires the
// periods to agree exactly; no resampling is ever attempted.
//
// Conversions are not guaranteed to produce minimal realizations;
// pole/zero cancellations introduced by a round trip are kept.
package harold
