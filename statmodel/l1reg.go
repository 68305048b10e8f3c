package statmodel

import (
	"math"

	"github.com/cockroachdb/errors"
)

// FitL1Quad uses coordinate descent to minimize the L1 penalized
// quadratic
//
//	b' H b / 2 - g' b + sum_j l1wgt[j] |b_j|
//
// where hess is the vectorized p x p positive semidefinite matrix H and
// grad is g.  coeff holds the starting point and is overwritten with the
// minimizer.  The sweeps stop when no coefficient moves by more than tol,
// or after maxiter sweeps.  The number of sweeps is returned.
func FitL1Quad(hess, grad, l1wgt, coeff []float64, maxiter int, tol float64) (int, error) {

	p := len(coeff)
	if len(grad) != p || len(l1wgt) != p || len(hess) != p*p {
		return 0, errors.Wrapf(ErrDimensionMismatch, "%d coefficients, %d gradient, %d L1 weights, %d Hessian elements",
			p, len(grad), len(l1wgt), len(hess))
	}

	var iter int
	for iter = 0; iter < maxiter; iter++ {

		// L-inf of the increment in the parameter vector
		px := 0.0

		for j := 0; j < p; j++ {
			np, err := opt1d(hess[j*p:(j+1)*p], grad[j], l1wgt[j], coeff, j)
			if err != nil {
				return iter, err
			}

			if d := math.Abs(np - coeff[j]); d > px {
				px = d
			}
			coeff[j] = np
		}

		if px < tol {
			return iter + 1, nil
		}
	}

	return iter, nil
}

// opt1d minimizes the quadratic along coordinate j, hrow being row j of
// the Hessian, holding the other coefficients fixed.
func opt1d(hrow []float64, g, l1wgt float64, coeff []float64, j int) (float64, error) {

	// Curvature and score of the quadratic along the coordinate
	c := hrow[j]
	b := g
	for k, h := range hrow {
		b -= h * coeff[k]
	}

	// The optimum point of the unpenalized quadratic, times c
	d := b + c*coeff[j]

	if l1wgt >= math.Abs(d) {
		// The optimum is achieved by hard thresholding to zero
		return 0, nil
	}

	if c <= 0 {
		return 0, errors.Newf("statmodel: coordinate %d has curvature %v, the problem is unbounded", j, c)
	}

	if d > 0 {
		return (d - l1wgt) / c, nil
	}
	return (d + l1wgt) / c, nil
}

// NonzeroActiveSet returns the active set of the nonzero coefficients,
// together with the positions in keep, which are active regardless of
// their value.
func NonzeroActiveSet(coeff []float64, keep []int) (*ActiveSet, error) {
	idx := append([]int(nil), keep...)
	for j, v := range coeff {
		if v != 0 {
			idx = append(idx, j)
		}
	}
	return NewActiveSet(idx, len(coeff))
}
