// Package regression fits polynomials to power/speed samples by least squares.
package regression

import (
	"errors"
	"fmt"

	"github.com/pathsim/bikesim/internal/physics"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrLengthMismatch is returned when x and y differ in length.
	ErrLengthMismatch = errors.New("x and y differ in length")
	// ErrTooFewPoints is returned when there are fewer points than terms.
	ErrTooFewPoints = errors.New("fewer points than terms")
	// ErrTerms is returned for a term count below one.
	ErrTerms = errors.New("terms must be at least 1")
)

// Fit is a polynomial y = sum(Coefficients[i] * x^i).
type Fit struct {
	Coefficients []float64
	SquaredError float64
}

// Predict evaluates the polynomial at x.
func (f Fit) Predict(x float64) float64 {
	var y float64
	for i := len(f.Coefficients) - 1; i >= 0; i-- {
		y = y*x + f.Coefficients[i]
	}
	return y
}

// Degree returns the polynomial degree.
func (f Fit) Degree() int {
	return len(f.Coefficients) - 1
}

// Vandermonde returns the len(x) by terms matrix with x[i]^j in row i, column j.
func Vandermonde(x []float64, terms int) *mat.Dense {
	m := mat.NewDense(len(x), terms, nil)
	for i, xi := range x {
		v := 1.0
		for j := 0; j < terms; j++ {
			m.Set(i, j, v)
			v *= xi
		}
	}
	return m
}

// Polynomial fits terms coefficients, lowest order first, minimizing the
// sum of squared residuals.
func Polynomial(x, y []float64, terms int) (Fit, error) {
	if terms < 1 {
		return Fit{}, ErrTerms
	}
	if len(x) != len(y) {
		return Fit{}, fmt.Errorf("%w: %d and %d", ErrLengthMismatch, len(x), len(y))
	}
	if len(x) < terms {
		return Fit{}, fmt.Errorf("%w: %d points, %d terms", ErrTooFewPoints, len(x), terms)
	}

	a := Vandermonde(x, terms)
	b := mat.NewVecDense(len(y), append([]float64(nil), y...))

	var coef mat.VecDense
	if err := coef.SolveVec(a, b); err != nil {
		return Fit{}, fmt.Errorf("least squares: %w", err)
	}

	var residual mat.VecDense
	residual.MulVec(a, &coef)
	residual.SubVec(b, &residual)

	return Fit{
		Coefficients: mat.Col(nil, 0, &coef),
		SquaredError: mat.Dot(&residual, &residual),
	}, nil
}

// ModelSamples returns the flat-road power the model requires at each speed
// in km/h from 1 to maxKmh, for a rider of mass kg.
func ModelSamples(m physics.Model, mass float64, maxKmh int) (speeds, powers []float64) {
	for kmh := 1; kmh <= maxKmh; kmh++ {
		v := float64(kmh)
		speeds = append(speeds, v)
		powers = append(powers, m.RequiredPower(v, 0, mass))
	}
	return speeds, powers
}
