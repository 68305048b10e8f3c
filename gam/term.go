package gam

import (
	"math"
	"sync"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/kshedden/gam/spline"
)

// Term holds the basis, penalty and centering transform constructed for
// one smooth term.  A Term is not modified after construction.
type Term struct {
	spec SmoothTerm

	basis *spline.Basis

	// nil if the term is not centered
	centering *spline.Centering

	// The training basis, uncentered and centered
	design         *mat.Dense
	centeredDesign *mat.Dense

	// The scaled penalty, uncentered and centered
	penalty         *mat.SymDense
	centeredPenalty *mat.SymDense
}

// BuildTerm constructs the knots, basis, penalty and optional centering
// of one smooth term from the training values x of its covariate.  NaN
// values give zero basis rows, infinite values are an error.
func BuildTerm(x []float64, st SmoothTerm) (*Term, error) {

	if err := st.Validate(); err != nil {
		return nil, err
	}

	for i, v := range x {
		if math.IsInf(v, 0) {
			return nil, errors.Wrapf(spline.ErrInfiniteValue, "term %q: observation %d is %v", st.Name, i, v)
		}
	}

	knots := st.Knots
	if knots == nil {
		var err error
		knots, err = spline.SelectKnots(x, st.numKnots())
		if err != nil {
			return nil, errors.Wrapf(err, "term %q", st.Name)
		}
	}

	basis, err := spline.NewBasis(knots, st.Basis)
	if err != nil {
		return nil, errors.Wrapf(err, "term %q", st.Name)
	}

	tm := &Term{
		spec:   st,
		basis:  basis,
		design: basis.Matrix(x),
	}
	tm.spec.Knots = basis.Knots()
	tm.spec.NumKnots = basis.NumBasis()

	scale := st.Scale
	if st.Normalize {
		raw, err := basis.Penalty(1)
		if err != nil {
			return nil, errors.Wrapf(err, "term %q", st.Name)
		}
		scale *= spline.PenaltyRescale(raw, tm.design)
	}
	tm.penalty, err = basis.Penalty(scale)
	if err != nil {
		return nil, errors.Wrapf(err, "term %q", st.Name)
	}

	if st.Center {
		tm.centering, err = spline.NewCentering(tm.design)
		if err != nil {
			return nil, errors.Wrapf(err, "term %q", st.Name)
		}
		tm.centeredDesign = tm.centering.Basis(tm.design)
		tm.centeredPenalty = tm.centering.Penalty(tm.penalty)
	}

	return tm, nil
}

// BuildTerms constructs every smooth term, cols[j] holding the training
// values for specs[j].  The terms are built concurrently.  If any term
// fails, the error of the first failing term is returned and no terms
// are produced.
func BuildTerms(cols [][]float64, specs []SmoothTerm) ([]*Term, error) {

	if len(cols) != len(specs) {
		return nil, errors.Newf("gam: %d columns for %d smooth terms", len(cols), len(specs))
	}

	terms := make([]*Term, len(specs))
	errs := make([]error, len(specs))

	var wg sync.WaitGroup
	for j := range specs {
		wg.Add(1)
		go func(j int) {
			defer wg.Done()
			terms[j], errs[j] = BuildTerm(cols[j], specs[j])
		}(j)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return terms, nil
}

// Name returns the name of the covariate.
func (tm *Term) Name() string {
	return tm.spec.Name
}

// Spec returns the configuration of the term, with the knots that were
// used filled in.
func (tm *Term) Spec() SmoothTerm {
	st := tm.spec
	st.Knots = append([]float64(nil), tm.spec.Knots...)
	return st
}

// Centered returns true if the term is centered.
func (tm *Term) Centered() bool {
	return tm.centering != nil
}

// Width returns the number of coefficients of the term.
func (tm *Term) Width() int {
	if tm.centering != nil {
		return tm.basis.NumBasis() - 1
	}
	return tm.basis.NumBasis()
}

// Basis returns the spline basis of the term.
func (tm *Term) Basis() *spline.Basis {
	return tm.basis
}

// Centering returns the centering transform, nil if the term is not
// centered.
func (tm *Term) Centering() *spline.Centering {
	return tm.centering
}

// Knots returns a copy of the knots.
func (tm *Term) Knots() []float64 {
	return tm.basis.Knots()
}

// BinvD returns a copy of the BinvD matrix of the basis.
func (tm *Term) BinvD() *mat.Dense {
	return tm.basis.BinvD()
}

// UncenteredDesign returns a copy of the uncentered training basis.
func (tm *Term) UncenteredDesign() *mat.Dense {
	return mat.DenseCopyOf(tm.design)
}

// CenteredDesign returns a copy of the centered training basis, nil if
// the term is not centered.
func (tm *Term) CenteredDesign() *mat.Dense {
	if tm.centeredDesign == nil {
		return nil
	}
	return mat.DenseCopyOf(tm.centeredDesign)
}

// UncenteredPenalty returns a copy of the uncentered penalty.
func (tm *Term) UncenteredPenalty() *mat.SymDense {
	return copySym(tm.penalty)
}

// CenteredPenalty returns a copy of the centered penalty, nil if the term
// is not centered.
func (tm *Term) CenteredPenalty() *mat.SymDense {
	if tm.centeredPenalty == nil {
		return nil
	}
	return copySym(tm.centeredPenalty)
}

// Penalty returns a copy of the penalty on the coefficients of the term,
// centered if the term is centered.
func (tm *Term) Penalty() *mat.SymDense {
	return copySym(tm.activePenalty())
}

func (tm *Term) activePenalty() *mat.SymDense {
	if tm.centeredPenalty != nil {
		return tm.centeredPenalty
	}
	return tm.penalty
}

// trainingDesign returns the training basis that the coefficients of the
// term multiply.
func (tm *Term) trainingDesign() *mat.Dense {
	if tm.centeredDesign != nil {
		return tm.centeredDesign
	}
	return tm.design
}

// Eval returns the basis of the term evaluated at new values of the
// covariate, centered with the training projector if the term is
// centered.
func (tm *Term) Eval(x []float64) *mat.Dense {
	m := tm.basis.Matrix(x)
	if tm.centering != nil {
		return tm.centering.Basis(m)
	}
	return m
}

// Expand maps coefficients of the term to coefficients on the uncentered
// basis, which are the values of the fitted smooth at the knots.
func (tm *Term) Expand(beta []float64) []float64 {
	if tm.centering != nil {
		return tm.centering.Expand(beta)
	}
	return append([]float64(nil), beta...)
}

func copySym(s *mat.SymDense) *mat.SymDense {
	c := mat.NewSymDense(s.SymmetricDim(), nil)
	c.CopySym(s)
	return c
}
