package spline

import (
	"math"
	"sort"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/stat"
)

// MinKnots is the smallest number of knots for which the second
// derivative penalty is defined.
const MinKnots = 3

// SelectKnots places numKnots knots at equal-frequency quantiles of the
// distinct finite values in x.  The first knot is the minimum and the last
// knot is the maximum of the data.  The argument is not modified.
func SelectKnots(x []float64, numKnots int) ([]float64, error) {

	if numKnots < MinKnots {
		return nil, errors.Wrapf(ErrInvalidKnots, "%d knots requested, at least %d are required",
			numKnots, MinKnots)
	}

	u := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			u = append(u, v)
		}
	}
	sort.Float64s(u)
	u = unique(u)

	if len(u) < numKnots {
		return nil, errors.Wrapf(ErrInvalidKnots, "%d knots requested but the data have %d distinct values",
			numKnots, len(u))
	}

	// stat.LinInterp interpolates at position n*p, shift the
	// probabilities so that the knots sit at position 1+(n-1)*p, which
	// puts the knots on data values when the spacing allows.
	n := float64(len(u))
	knots := make([]float64, numKnots)
	for i := range knots {
		p := float64(i) / float64(numKnots-1)
		q := math.Min(1, (1+(n-1)*p)/n)
		knots[i] = stat.Quantile(q, stat.LinInterp, u, nil)
	}
	knots[0] = u[0]
	knots[numKnots-1] = u[len(u)-1]

	if err := ValidateKnots(knots, numKnots); err != nil {
		return nil, err
	}

	return knots, nil
}

// ValidateKnots checks that knots has length numKnots, that numKnots is at
// least MinKnots, and that the knots are finite and strictly increasing.
func ValidateKnots(knots []float64, numKnots int) error {

	if numKnots < MinKnots {
		return errors.Wrapf(ErrInvalidKnots, "%d knots, at least %d are required", numKnots, MinKnots)
	}
	if len(knots) != numKnots {
		return errors.Wrapf(ErrInvalidKnots, "%d knots supplied, expected %d", len(knots), numKnots)
	}

	for i, v := range knots {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrapf(ErrInvalidKnots, "knot %d is not finite", i)
		}
		if i > 0 && v <= knots[i-1] {
			return errors.Wrapf(ErrInvalidKnots, "knots are not strictly increasing at position %d (%v <= %v)",
				i, v, knots[i-1])
		}
	}

	return nil
}

// unique removes repeated values from a sorted slice, in place.
func unique(x []float64) []float64 {
	if len(x) == 0 {
		return x
	}
	j := 0
	for i := 1; i < len(x); i++ {
		if x[i] != x[j] {
			j++
			x[j] = x[i]
		}
	}
	return x[0 : j+1]
}
