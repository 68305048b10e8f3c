package gam

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/kshedden/gam/statmodel"
)

// GAMResults describes the results of a fitted generalized additive
// model.  The value of Objective is the penalized objective, half the
// deviance plus the roughness penalty.
type GAMResults struct {
	statmodel.BaseResults

	model *GAM

	// The coefficients left by the L1 penalty, nil without one
	active *statmodel.ActiveSet

	deviance   float64
	scale      float64
	edf        float64
	iterations int
	converged  bool
}

// Model returns the fitted model.
func (rslt *GAMResults) Model() *GAM {
	return rslt.model
}

// Active returns the set of coefficients that the L1 penalty left in the
// model, nil if the model has no L1 penalty.  The standard errors of the
// other coefficients are zero.
func (rslt *GAMResults) Active() *statmodel.ActiveSet {
	return rslt.active
}

// Deviance returns the deviance at the estimates.
func (rslt *GAMResults) Deviance() float64 {
	return rslt.deviance
}

// Scale returns the estimated scale parameter, 1 for families with a fixed
// scale.
func (rslt *GAMResults) Scale() float64 {
	return rslt.scale
}

// EDF returns the effective degrees of freedom of the fit.
func (rslt *GAMResults) EDF() float64 {
	return rslt.edf
}

// Iterations returns the number of iterations of the optimizer.
func (rslt *GAMResults) Iterations() int {
	return rslt.iterations
}

// Converged returns true if the optimizer met its convergence criterion.
func (rslt *GAMResults) Converged() bool {
	return rslt.converged
}

// Terms returns the smooth terms of the model.
func (rslt *GAMResults) Terms() []*Term {
	return rslt.model.terms
}

// ClassParams returns the coefficients of class c.
func (rslt *GAMResults) ClassParams(c int) []float64 {
	cs := rslt.model.columns
	if c < 0 || c >= cs.NumClass() {
		msg := fmt.Sprintf("GAM: class %d of %d\n", c, cs.NumClass())
		panic(msg)
	}
	q := cs.PerClass()
	return append([]float64(nil), rslt.Params()[c*q:(c+1)*q]...)
}

// TermParams returns the coefficients of smooth term t in class c.
func (rslt *GAMResults) TermParams(t, c int) ([]float64, error) {
	idx, err := rslt.model.columns.Indices(t, c)
	if err != nil {
		return nil, err
	}
	params := rslt.Params()
	b := make([]float64, len(idx))
	for i, g := range idx {
		b[i] = params[g]
	}
	return b, nil
}

// Smooth returns the fitted smooth of term t in class c evaluated at x,
// the contribution of the term to the linear predictor.
func (rslt *GAMResults) Smooth(t, c int, x []float64) ([]float64, error) {
	b, err := rslt.TermParams(t, c)
	if err != nil {
		return nil, err
	}
	basis := rslt.model.terms[t].Eval(x)
	f := mat.NewVecDense(len(x), nil)
	f.MulVec(basis, mat.NewVecDense(len(b), b))
	return f.RawVector().Data, nil
}

// Predict returns the linear predictor of every class for new data, held
// as named columns like the training data.  The result is indexed by
// class then by observation.  Covariate values outside the knot range of
// a smooth term are extrapolated linearly.
func (rslt *GAMResults) Predict(data [][]statmodel.Dtype, names []string) ([][]float64, error) {

	if len(data) != len(names) {
		return nil, errors.Wrapf(statmodel.ErrDimensionMismatch, "%d data columns but %d names", len(data), len(names))
	}

	gam := rslt.model
	find := func(na string) ([]float64, error) {
		for j := range names {
			if names[j] == na {
				return data[j], nil
			}
		}
		return nil, errors.Newf("GAM: variable %q not found", na)
	}

	linear := make([][]float64, len(gam.linear))
	for j, na := range gam.linear {
		var err error
		if linear[j], err = find(na); err != nil {
			return nil, err
		}
	}
	smooth := make([][]float64, len(gam.terms))
	for t, tm := range gam.terms {
		var err error
		if smooth[t], err = find(tm.Name()); err != nil {
			return nil, err
		}
	}

	x, err := gam.columns.DesignFor(linear, smooth)
	if err != nil {
		return nil, err
	}

	n, q := x.Dims()
	k := gam.columns.NumClass()
	lp := make([][]float64, k)
	params := rslt.Params()
	for c := range lp {
		v := mat.NewVecDense(n, nil)
		v.MulVec(x, mat.NewVecDense(q, params[c*q:(c+1)*q]))
		lp[c] = v.RawVector().Data
	}

	return lp, nil
}

// GAMSummary summarizes a fitted generalized additive model.
type GAMSummary struct {

	// The results structure
	results *GAMResults

	// Messages that are appended to the table
	messages []string
}

// Summary returns a summary table of the model results.
func (rslt *GAMResults) Summary() *GAMSummary {
	return &GAMSummary{
		results: rslt,
	}
}

// AddMessage appends a message below the summary table.
func (gs *GAMSummary) AddMessage(msg string) *GAMSummary {
	gs.messages = append(gs.messages, msg)
	return gs
}

// String returns a string representation of a summary table for the model.
func (gs *GAMSummary) String() string {

	rslt := gs.results
	gam := rslt.model

	link := "Softmax"
	if l := gam.engine.GetLink(); l != nil {
		link = l.Name
	}

	sum := &statmodel.SummaryTable{
		Title: "Generalized additive model analysis",
		Msg:   gs.messages,
		Top: []string{
			fmt.Sprintf("Family:   %s", gam.fam.Name),
			fmt.Sprintf("Link:     %s", link),
			fmt.Sprintf("Num obs:  %d", gam.NumObs()),
			fmt.Sprintf("Smooths:  %d", len(gam.terms)),
			fmt.Sprintf("Scale:    %f", rslt.scale),
			fmt.Sprintf("EDF:      %.2f", rslt.edf),
			fmt.Sprintf("Deviance: %.4f", rslt.deviance),
			fmt.Sprintf("Converged: %t", rslt.converged),
		},
	}

	if rslt.StdErr() == nil {
		sum.ColNames = []string{"Variable   ", "Parameter"}
		sum.ColFmt = []statmodel.Fmter{statmodel.FmtStrings, statmodel.FmtFloats}
		sum.Cols = []interface{}{rslt.Names(), rslt.Params()}
		return sum.String()
	}

	sum.ColNames = []string{"Variable   ", "Parameter", "SE", "Z-score", "P-value"}
	sum.ColFmt = []statmodel.Fmter{statmodel.FmtStrings, statmodel.FmtFloats, statmodel.FmtFloats,
		statmodel.FmtFloats, statmodel.FmtFloats}
	sum.Cols = []interface{}{
		rslt.Names(),
		rslt.Params(),
		rslt.StdErr(),
		rslt.ZScores(),
		rslt.PValues(),
	}

	return sum.String()
}
