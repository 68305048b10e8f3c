package gam

import (
	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/kshedden/gam/statmodel"
)

// ColumnSet assigns each smooth term a disjoint range of positions in
// the coefficient vector.  Within the block of one class, the linear
// coefficients come first, then the smooth terms in order, then the
// intercept.  The block of class c starts at c*PerClass().
type ColumnSet struct {
	terms []*Term

	numLinear int
	numClass  int
	intercept bool

	// offsets[t] is the position of the first coefficient of term t
	// within a class block.
	offsets []int

	perClass int
}

// NewColumnSet returns the coefficient layout for the given smooth terms,
// numLinear unpenalized covariates, and numClass response classes.
func NewColumnSet(terms []*Term, numLinear, numClass int, intercept bool) (*ColumnSet, error) {

	if numLinear < 0 {
		return nil, errors.Wrapf(statmodel.ErrDimensionMismatch, "%d linear covariates", numLinear)
	}
	if numClass < 1 {
		return nil, errors.Wrapf(statmodel.ErrDimensionMismatch, "%d classes", numClass)
	}

	cs := &ColumnSet{
		terms:     terms,
		numLinear: numLinear,
		numClass:  numClass,
		intercept: intercept,
		offsets:   make([]int, len(terms)),
	}

	pos := numLinear
	for t, tm := range terms {
		cs.offsets[t] = pos
		pos += tm.Width()
	}
	if intercept {
		pos++
	}
	cs.perClass = pos

	return cs, nil
}

// NumTerms returns the number of smooth terms.
func (cs *ColumnSet) NumTerms() int {
	return len(cs.terms)
}

// Terms returns the smooth terms.
func (cs *ColumnSet) Terms() []*Term {
	return cs.terms
}

// NumLinear returns the number of linear covariates.
func (cs *ColumnSet) NumLinear() int {
	return cs.numLinear
}

// NumClass returns the number of response classes.
func (cs *ColumnSet) NumClass() int {
	return cs.numClass
}

// PerClass returns the number of coefficients in the block of one class.
func (cs *ColumnSet) PerClass() int {
	return cs.perClass
}

// NumCoeff returns the total number of coefficients.
func (cs *ColumnSet) NumCoeff() int {
	return cs.perClass * cs.numClass
}

// HasIntercept returns true if each class block ends with an intercept.
func (cs *ColumnSet) HasIntercept() bool {
	return cs.intercept
}

// InterceptIndex returns the global position of the intercept of class
// c, or -1 if the model has no intercept.
func (cs *ColumnSet) InterceptIndex(c int) int {
	if !cs.intercept {
		return -1
	}
	return (c+1)*cs.perClass - 1
}

// Indices returns the global coefficient positions of smooth term t in
// the block of class c, in increasing order.
func (cs *ColumnSet) Indices(t, c int) ([]int, error) {

	if t < 0 || t >= len(cs.terms) {
		return nil, errors.Wrapf(statmodel.ErrDimensionMismatch, "term %d of %d", t, len(cs.terms))
	}
	if c < 0 || c >= cs.numClass {
		return nil, errors.Wrapf(statmodel.ErrDimensionMismatch, "class %d of %d", c, cs.numClass)
	}

	return cs.indices(t, c), nil
}

func (cs *ColumnSet) indices(t, c int) []int {
	first := c*cs.perClass + cs.offsets[t]
	idx := make([]int, cs.terms[t].Width())
	for i := range idx {
		idx[i] = first + i
	}
	return idx
}

// Design returns the training design matrix for one class block: the
// linear covariates, the training basis of each smooth term, and a
// column of ones for the intercept.
func (cs *ColumnSet) Design(linear [][]float64) (*mat.Dense, error) {
	smooth := make([]*mat.Dense, len(cs.terms))
	for t, tm := range cs.terms {
		smooth[t] = tm.trainingDesign()
	}
	return cs.assemble(linear, smooth)
}

// DesignFor returns the design matrix for new data, where linear holds
// the linear covariates and smooth[t] the values of the covariate of
// term t.  Values outside the knot range are extrapolated linearly.
func (cs *ColumnSet) DesignFor(linear, smooth [][]float64) (*mat.Dense, error) {
	if len(smooth) != len(cs.terms) {
		return nil, errors.Wrapf(statmodel.ErrDimensionMismatch, "%d smooth columns for %d terms",
			len(smooth), len(cs.terms))
	}
	bases := make([]*mat.Dense, len(cs.terms))
	for t, tm := range cs.terms {
		bases[t] = tm.Eval(smooth[t])
	}
	return cs.assemble(linear, bases)
}

func (cs *ColumnSet) assemble(linear [][]float64, smooth []*mat.Dense) (*mat.Dense, error) {

	if len(linear) != cs.numLinear {
		return nil, errors.Wrapf(statmodel.ErrDimensionMismatch, "%d linear columns, expected %d",
			len(linear), cs.numLinear)
	}

	n := -1
	for _, x := range linear {
		if n >= 0 && len(x) != n {
			return nil, errors.Wrap(statmodel.ErrDimensionMismatch, "linear columns differ in length")
		}
		n = len(x)
	}
	for t, b := range smooth {
		r, _ := b.Dims()
		if n >= 0 && r != n {
			return nil, errors.Wrapf(statmodel.ErrDimensionMismatch, "term %q has %d rows, expected %d",
				cs.terms[t].Name(), r, n)
		}
		n = r
	}
	if n <= 0 {
		return nil, errors.Wrap(statmodel.ErrDimensionMismatch, "design has no rows")
	}

	x := mat.NewDense(n, cs.perClass, nil)
	for j, v := range linear {
		x.SetCol(j, v)
	}
	for t, b := range smooth {
		_, w := b.Dims()
		off := cs.offsets[t]
		x.Slice(0, n, off, off+w).(*mat.Dense).Copy(b)
	}
	if cs.intercept {
		for i := 0; i < n; i++ {
			x.Set(i, cs.perClass-1, 1)
		}
	}

	return x, nil
}

// BinvD returns a copy of the BinvD matrix of every term.
func (cs *ColumnSet) BinvD() []*mat.Dense {
	m := make([]*mat.Dense, len(cs.terms))
	for t, tm := range cs.terms {
		m[t] = tm.BinvD()
	}
	return m
}

// Penalties returns a copy of the uncentered penalty of every term.
func (cs *ColumnSet) Penalties() []*mat.SymDense {
	m := make([]*mat.SymDense, len(cs.terms))
	for t, tm := range cs.terms {
		m[t] = tm.UncenteredPenalty()
	}
	return m
}

// CenteredPenalties returns a copy of the centered penalty of every term,
// with nil entries for terms that are not centered.
func (cs *ColumnSet) CenteredPenalties() []*mat.SymDense {
	m := make([]*mat.SymDense, len(cs.terms))
	for t, tm := range cs.terms {
		m[t] = tm.CenteredPenalty()
	}
	return m
}

// UncenteredDesign returns a copy of the uncentered training basis of
// every term.
func (cs *ColumnSet) UncenteredDesign() []*mat.Dense {
	m := make([]*mat.Dense, len(cs.terms))
	for t, tm := range cs.terms {
		m[t] = tm.UncenteredDesign()
	}
	return m
}

// CenteredDesign returns a copy of the centered training basis of every
// term, with nil entries for terms that are not centered.
func (cs *ColumnSet) CenteredDesign() []*mat.Dense {
	m := make([]*mat.Dense, len(cs.terms))
	for t, tm := range cs.terms {
		m[t] = tm.CenteredDesign()
	}
	return m
}
