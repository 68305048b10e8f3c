package gam

import (
	"fmt"
	"log"
	"math"

	"github.com/cockroachdb/errors"

	"github.com/kshedden/gam/glm"
	"github.com/kshedden/gam/statmodel"
)

// GAM is a generalized additive model.  The data are held as columns,
// with names[j] the name of data[j].
type GAM struct {
	data  [][]statmodel.Dtype
	names []string

	// The name of the outcome variable
	yname string

	// The name of the case weight variable, optional
	wname string

	fam  *glm.Family
	link *glm.Link

	smooth []SmoothTerm

	// Names of the linear covariates; if not set, every column that is
	// not the outcome, the weight or a smooth term.
	linear    []string
	linearSet bool

	intercept bool
	numClass  int
	maxiter   int

	// Elastic net mixing and strength, no regularization if lambda is 0
	alpha  float64
	lambda float64

	// If not nil, write log messages here
	log *log.Logger

	done bool

	// Set by Done
	y       []float64
	wgt     []float64
	terms   []*Term
	columns *ColumnSet
	engine  *glm.GLM
	xnames  []string
}

// NewGAM returns a GAM for the given data columns, fitting the outcome
// named yname.  The default family is Gaussian.
func NewGAM(data [][]statmodel.Dtype, names []string, yname string) *GAM {

	if len(data) != len(names) {
		msg := fmt.Sprintf("GAM: %d data columns but %d names.\n", len(data), len(names))
		panic(msg)
	}

	return &GAM{
		data:      data,
		names:     names,
		yname:     yname,
		fam:       glm.NewFamily(glm.GaussianFamily),
		intercept: true,
		maxiter:   50,
	}
}

func (gam *GAM) checkOpen(name string) {
	if gam.done {
		msg := fmt.Sprintf("GAM: %s can not be called after Done.\n", name)
		panic(msg)
	}
}

// Family sets the GLM family of the model.
func (gam *GAM) Family(fam *glm.Family) *GAM {
	gam.checkOpen("Family")
	gam.fam = fam
	return gam
}

// Link sets the link function, the canonical link of the family is
// used by default.
func (gam *GAM) Link(link *glm.Link) *GAM {
	gam.checkOpen("Link")
	gam.link = link
	return gam
}

// Weight sets the name of the case weight variable.
func (gam *GAM) Weight(name string) *GAM {
	gam.checkOpen("Weight")
	gam.wname = name
	return gam
}

// Smooth adds smooth terms to the model.
func (gam *GAM) Smooth(st ...SmoothTerm) *GAM {
	gam.checkOpen("Smooth")
	gam.smooth = append(gam.smooth, st...)
	return gam
}

// Linear sets the covariates that enter the model linearly.
func (gam *GAM) Linear(names ...string) *GAM {
	gam.checkOpen("Linear")
	gam.linear = append([]string(nil), names...)
	gam.linearSet = true
	return gam
}

// NoIntercept omits the intercept from the model.
func (gam *GAM) NoIntercept() *GAM {
	gam.checkOpen("NoIntercept")
	gam.intercept = false
	return gam
}

// NumClass sets the number of response classes of a multinomial model.
func (gam *GAM) NumClass(k int) *GAM {
	gam.checkOpen("NumClass")
	gam.numClass = k
	return gam
}

// ElasticNet adds the elastic net penalty
//
//	n * lambda * (alpha * |b|_1 + (1 - alpha) * |b|^2 / 2)
//
// on all coefficients other than the intercepts, in addition to the
// roughness penalties.  Coefficients that the L1 part sets to zero are
// dropped from the active set of the fit.
func (gam *GAM) ElasticNet(alpha, lambda float64) *GAM {
	gam.checkOpen("ElasticNet")
	gam.alpha = alpha
	gam.lambda = lambda
	return gam
}

// MaxIter sets the maximum number of IRLS iterations.
func (gam *GAM) MaxIter(n int) *GAM {
	gam.maxiter = n
	return gam
}

// Log takes a Logger value that will be used to log the progress of the fit.
func (gam *GAM) Log(log *log.Logger) *GAM {
	gam.log = log
	return gam
}

func (gam *GAM) column(name string) ([]float64, error) {
	for j, na := range gam.names {
		if na == name {
			return gam.data[j], nil
		}
	}
	return nil, errors.Newf("GAM: variable %q not found", name)
}

// Done completes the definition of the model, constructing the smooth
// terms and the design matrix.  Configuration and construction errors
// are returned and no model is produced.
func (gam *GAM) Done() (*GAM, error) {

	gam.checkOpen("Done")

	var err error
	if gam.y, err = gam.column(gam.yname); err != nil {
		return nil, err
	}
	if gam.wname != "" {
		if gam.wgt, err = gam.column(gam.wname); err != nil {
			return nil, err
		}
	}

	if gam.link != nil && !gam.fam.IsValidLink(gam.link) {
		return nil, errors.Newf("GAM: link %s is not valid for the %s family", gam.link.Name, gam.fam.Name)
	}

	if gam.alpha < 0 || gam.alpha > 1 || math.IsNaN(gam.alpha) {
		return nil, errors.Newf("GAM: elastic net alpha=%v is not in [0, 1]", gam.alpha)
	}
	if gam.lambda < 0 || math.IsNaN(gam.lambda) || math.IsInf(gam.lambda, 0) {
		return nil, errors.Newf("GAM: elastic net lambda=%v", gam.lambda)
	}

	numClass := 1
	if gam.fam.TypeCode == glm.MultinomialFamily {
		if numClass, err = gam.classCount(); err != nil {
			return nil, err
		}
		if gam.lasso() {
			return nil, errors.New("GAM: the L1 penalty is not available for the multinomial family")
		}
	}

	smoothCols := make([][]float64, len(gam.smooth))
	isSmooth := make(map[string]bool)
	for j, st := range gam.smooth {
		if smoothCols[j], err = gam.column(st.Name); err != nil {
			return nil, err
		}
		isSmooth[st.Name] = true
	}

	linear := gam.linear
	if !gam.linearSet {
		linear = nil
		for _, na := range gam.names {
			if na != gam.yname && na != gam.wname && !isSmooth[na] {
				linear = append(linear, na)
			}
		}
	}
	linearCols := make([][]float64, len(linear))
	for j, na := range linear {
		if linearCols[j], err = gam.column(na); err != nil {
			return nil, err
		}
	}

	terms, err := BuildTerms(smoothCols, gam.smooth)
	if err != nil {
		return nil, err
	}

	columns, err := NewColumnSet(terms, len(linear), numClass, gam.intercept)
	if err != nil {
		return nil, err
	}

	x, err := columns.Design(linearCols)
	if err != nil {
		return nil, err
	}
	if r, _ := x.Dims(); r != len(gam.y) {
		return nil, errors.Wrapf(statmodel.ErrDimensionMismatch, "design has %d rows, outcome has %d", r, len(gam.y))
	}

	gam.linear = linear
	gam.terms = terms
	gam.columns = columns

	engine := glm.NewGLM(x, gam.y).Family(gam.fam).MaxIter(gam.maxiter).Log(gam.log)
	if gam.link != nil {
		engine = engine.Link(gam.link)
	}
	if gam.wgt != nil {
		engine = engine.Weight(gam.wgt)
	}
	if numClass > 1 {
		engine = engine.NumClass(numClass)
	}
	if gam.lambda > 0 {
		l1wgt, l2wgt := gam.elasticNetWeights()
		if gam.lasso() {
			engine = engine.L1Weight(l1wgt)
		}
		if gam.alpha < 1 {
			engine = engine.L2Weight(l2wgt)
		}
	}
	gam.engine = engine.Done()

	gam.xnames = gam.coeffNames()
	gam.done = true

	if gam.log != nil {
		gam.log.Printf("GAM: %d observations, %d smooth terms, %d coefficients\n",
			len(gam.y), len(gam.terms), gam.columns.NumCoeff())
	}

	return gam, nil
}

// lasso returns true if the model carries an L1 penalty.
func (gam *GAM) lasso() bool {
	return gam.lambda > 0 && gam.alpha > 0
}

// elasticNetWeights returns the per coefficient L1 and L2 weights, zero
// for the intercepts.
func (gam *GAM) elasticNetWeights() ([]float64, []float64) {
	cs := gam.columns
	l1wgt := make([]float64, cs.NumCoeff())
	l2wgt := make([]float64, cs.NumCoeff())
	for j := range l1wgt {
		l1wgt[j] = gam.lambda * gam.alpha
		l2wgt[j] = gam.lambda * (1 - gam.alpha)
	}
	for c := 0; c < cs.NumClass(); c++ {
		if j := cs.InterceptIndex(c); j >= 0 {
			l1wgt[j] = 0
			l2wgt[j] = 0
		}
	}
	return l1wgt, l2wgt
}

// interceptIndices returns the positions of the intercepts of all
// classes.
func (gam *GAM) interceptIndices() []int {
	var idx []int
	for c := 0; c < gam.columns.NumClass(); c++ {
		if j := gam.columns.InterceptIndex(c); j >= 0 {
			idx = append(idx, j)
		}
	}
	return idx
}

// classCount checks the multinomial class labels and returns the number
// of classes.
func (gam *GAM) classCount() (int, error) {

	k := gam.numClass
	if k == 0 {
		for _, v := range gam.y {
			if int(v)+1 > k {
				k = int(v) + 1
			}
		}
	}
	if k < 2 {
		return 0, errors.Newf("GAM: multinomial model with %d classes", k)
	}

	for i, v := range gam.y {
		if v < 0 || v != math.Trunc(v) || int(v) >= k {
			return 0, errors.Newf("GAM: observation %d has invalid class label %v", i, v)
		}
	}

	return k, nil
}

// coeffNames returns the names of all coefficients, class blocks
// suffixed with the class when there are multiple classes.
func (gam *GAM) coeffNames() []string {

	var block []string
	block = append(block, gam.linear...)
	for _, tm := range gam.terms {
		for i := 0; i < tm.Width(); i++ {
			block = append(block, fmt.Sprintf("%s_%d", tm.Name(), i))
		}
	}
	if gam.intercept {
		block = append(block, "icept")
	}

	k := gam.columns.NumClass()
	if k == 1 {
		return block
	}

	var names []string
	for c := 0; c < k; c++ {
		for _, na := range block {
			names = append(names, fmt.Sprintf("%s:%d", na, c))
		}
	}
	return names
}

// Columns returns the coefficient layout of the model.
func (gam *GAM) Columns() *ColumnSet {
	return gam.columns
}

// Terms returns the constructed smooth terms.
func (gam *GAM) Terms() []*Term {
	return gam.terms
}

// NumObs returns the number of observations.
func (gam *GAM) NumObs() int {
	return len(gam.y)
}

// NumParams returns the number of coefficients.
func (gam *GAM) NumParams() int {
	return gam.columns.NumCoeff()
}

// Xnames returns the names of the coefficients.
func (gam *GAM) Xnames() []string {
	return gam.xnames
}

// Engine returns the GLM that computes the likelihood of the model.
func (gam *GAM) Engine() *glm.GLM {
	return gam.engine
}

// Fit estimates the coefficients by minimizing the penalized objective.
func (gam *GAM) Fit() (*GAMResults, error) {

	if !gam.done {
		panic("GAM: Fit called before Done.\n")
	}

	// The softmax model is invariant to shifting every class block by the
	// same coefficients, so its Hessian is singular and no covariance is
	// computed.
	if gam.fam.TypeCode == glm.MultinomialFamily {
		fr, err := gam.engine.FitGradient(nil, gam.columns)
		if err != nil {
			return nil, errors.Wrap(err, "GAM")
		}
		return &GAMResults{
			BaseResults: statmodel.NewBaseResults(fr.Objective, fr.Params, gam.xnames, nil),
			model:       gam,
			deviance:    fr.Deviance,
			scale:       1,
			edf:         float64(gam.NumParams()),
			iterations:  fr.Iterations,
			converged:   fr.Converged,
		}, nil
	}

	fr, err := gam.engine.FitIRLS(nil, gam.columns)
	if err != nil {
		return nil, errors.Wrap(err, "GAM")
	}

	// Coefficients set to zero by the L1 penalty leave the model, and the
	// Hessians are taken over the remaining ones.
	p := gam.NumParams()
	act := allIndices(p)
	gram, hess := fr.Gram, fr.Hessian
	var active *statmodel.ActiveSet
	if gam.lasso() {
		if active, err = statmodel.NonzeroActiveSet(fr.Params, gam.interceptIndices()); err != nil {
			return nil, err
		}
		act = active.Indices()
		if gram, hess, err = gam.activeHessian(fr.Params, fr.Gram, active); err != nil {
			return nil, err
		}
	}
	m := len(act)

	// The effective degrees of freedom are tr(H^-1 G), where H is the
	// penalized and G the unpenalized Hessian.
	edf := float64(m)
	hinv, err := statmodel.InvertHessian(hess, m, 1)
	if err != nil && gam.log != nil {
		gam.log.Printf("GAM: no covariance estimate: %v\n", err)
	}
	if hinv != nil {
		edf = 0
		for i := 0; i < m; i++ {
			for j := 0; j < m; j++ {
				edf += hinv[i*m+j] * gram[j*m+i]
			}
		}
	}

	scale := gam.engine.EstimateScale(fr.Params, edf)

	var vcov []float64
	if hinv != nil {
		vcov = make([]float64, p*p)
		for i, gi := range act {
			for j, gj := range act {
				vcov[gi*p+gj] = scale * hinv[i*m+j]
			}
		}
	}

	return &GAMResults{
		BaseResults: statmodel.NewBaseResults(fr.Objective, fr.Params, gam.xnames, vcov),
		model:       gam,
		active:      active,
		deviance:    fr.Deviance,
		scale:       scale,
		edf:         edf,
		iterations:  fr.Iterations,
		converged:   fr.Converged,
	}, nil
}

// activeHessian restricts the full unpenalized Hessian gram to the active
// coefficients, and returns it with the penalized Hessian over the same
// coefficients.
func (gam *GAM) activeHessian(params, gram []float64, active *statmodel.ActiveSet) ([]float64, []float64, error) {

	p := gam.NumParams()
	act := active.Indices()
	m := len(act)

	agram := make([]float64, m*m)
	for i, gi := range act {
		for j, gj := range act {
			agram[i*m+j] = gram[gi*p+gj]
		}
	}

	hess := append([]float64(nil), agram...)
	if _, err := gam.columns.Augment(nil, hess, 0, params, active); err != nil {
		return nil, nil, err
	}

	_, l2wgt := gam.elasticNetWeights()
	nobs := float64(gam.NumObs())
	for i, g := range act {
		hess[i*m+i] += nobs * l2wgt[g]
	}

	return agram, hess, nil
}

// allIndices returns 0, 1, ..., n-1.
func allIndices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
