package gam

import (
	"math"

	"github.com/cockroachdb/errors"

	"github.com/kshedden/gam/spline"
)

// DefaultNumKnots is the number of knots used by NewSmoothTerm.
const DefaultNumKnots = 10

// SmoothTerm describes the spline expansion of one covariate.
type SmoothTerm struct {

	// The name of the covariate
	Name string

	// The kind of spline basis
	Basis spline.BasisType

	// The number of knots.  If zero and Knots is provided, the length of
	// Knots is used.
	NumKnots int

	// Knots, if not nil, is the strictly increasing knot sequence.  If
	// nil the knots are placed at quantiles of the covariate.
	Knots []float64

	// Scale multiplies the roughness penalty.
	Scale float64

	// If true, the basis is constrained so that the fitted smooth has
	// mean zero over the training data, and the term loses one
	// coefficient.
	Center bool

	// If true, the penalty is rescaled to the magnitude of the basis
	// before Scale is applied, so that Scale does not depend on the units
	// of the covariate.
	Normalize bool
}

// NewSmoothTerm returns a centered cubic regression spline term for the
// named covariate, with DefaultNumKnots knots and a normalized penalty of
// unit scale.
func NewSmoothTerm(name string) SmoothTerm {
	return SmoothTerm{
		Name:      name,
		Basis:     spline.CubicRegression,
		NumKnots:  DefaultNumKnots,
		Scale:     1,
		Center:    true,
		Normalize: true,
	}
}

// numKnots returns the effective number of knots.
func (st SmoothTerm) numKnots() int {
	if st.NumKnots == 0 && st.Knots != nil {
		return len(st.Knots)
	}
	return st.NumKnots
}

// Validate checks the configuration of the term.
func (st SmoothTerm) Validate() error {

	nk := st.numKnots()
	if nk < spline.MinKnots {
		return errors.Wrapf(spline.ErrInvalidKnots, "term %q: %d knots, at least %d are required",
			st.Name, nk, spline.MinKnots)
	}

	if st.Knots != nil {
		if err := spline.ValidateKnots(st.Knots, nk); err != nil {
			return errors.Wrapf(err, "term %q", st.Name)
		}
	}

	if st.Scale < 0 || math.IsNaN(st.Scale) || math.IsInf(st.Scale, 0) {
		return errors.Wrapf(spline.ErrInvalidScale, "term %q: scale=%v", st.Name, st.Scale)
	}

	if st.Basis != spline.CubicRegression {
		return errors.Wrapf(spline.ErrUnsupportedBasis, "term %q: %v", st.Name, st.Basis)
	}

	return nil
}
