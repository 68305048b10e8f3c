package glm

import (
	"fmt"
	"log"
	"math"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/kshedden/gam/statmodel"
)

// GLM represents a generalized linear model with a dense design matrix.
type GLM struct {

	// The design matrix, one row per observation
	x *mat.Dense

	// The columns of x
	xcols [][]float64

	// The response.  For the multinomial family the response holds the
	// class labels 0, 1, ..., numClass-1.
	y []float64

	// Case weights, optional
	wgt []float64

	// The GLM family
	fam *Family

	// The GLM link function
	link *Link

	// The GLM variance function
	vari *Variance

	// Number of response classes, 1 except for the multinomial family
	numClass int

	// If not nil, IRLS only fits these coefficients, the others are
	// held at zero.
	active *statmodel.ActiveSet

	// L1 (lasso) penalty weights, optional.  The penalty is
	// NumObs() * l1wgt[j] * |b_j|.
	l1wgt []float64

	// L2 (ridge) penalty weights, optional.  The penalty is
	// NumObs() * l2wgt[j] * b_j^2 / 2.
	l2wgt []float64

	// Maximum number of IRLS iterations
	maxiter int

	// Convergence tolerance for the relative change in the objective
	dtol float64

	// Optimization settings for gradient fitting
	settings *optimize.Settings

	// Optimization method for gradient fitting
	method optimize.Method

	// If not nil, write log messages here
	log *log.Logger

	// Use concurrent calculations in IRLS if the sample size is at least
	// as large as this value.
	concurrentIRLS int

	done bool
}

// NewGLM creates a new GLM for the given design matrix and response.
func NewGLM(x *mat.Dense, y []float64) *GLM {

	return &GLM{
		x:              x,
		y:              y,
		numClass:       1,
		maxiter:        50,
		dtol:           1e-12,
		concurrentIRLS: 1000,
	}
}

func (glm *GLM) checkOpen(name string) {
	if glm.done {
		msg := fmt.Sprintf("GLM: %s can not be called after Done.\n", name)
		panic(msg)
	}
}

// Family sets the GLM family.
func (glm *GLM) Family(fam *Family) *GLM {
	glm.checkOpen("Family")
	glm.fam = fam
	return glm
}

// Link sets the link function.
func (glm *GLM) Link(link *Link) *GLM {
	glm.checkOpen("Link")

	if glm.fam == nil {
		panic("Must set family before setting link.\n")
	}
	if !glm.fam.IsValidLink(link) {
		panic("Invalid link")
	}
	glm.link = link

	return glm
}

// Weight sets the case weights.
func (glm *GLM) Weight(wgt []float64) *GLM {
	glm.checkOpen("Weight")
	glm.wgt = wgt
	return glm
}

// NumClass sets the number of response categories for a multinomial
// GLM.  If it is not set, it is one more than the largest label.
func (glm *GLM) NumClass(k int) *GLM {
	glm.checkOpen("NumClass")
	glm.numClass = k
	return glm
}

// Active restricts IRLS fitting to the coefficients in the active set.
// The remaining coefficients are fixed at zero.
func (glm *GLM) Active(active *statmodel.ActiveSet) *GLM {
	glm.active = active
	return glm
}

// L1Weight sets the L1 weights used for lasso regularization, one per
// coefficient.  Fitting with L1 weights uses coordinate descent within
// each IRLS step.
func (glm *GLM) L1Weight(l1wgt []float64) *GLM {
	glm.checkOpen("L1Weight")
	glm.l1wgt = l1wgt
	return glm
}

// L2Weight sets the L2 weights used for ridge regularization, one per
// coefficient.
func (glm *GLM) L2Weight(l2wgt []float64) *GLM {
	glm.checkOpen("L2Weight")
	glm.l2wgt = l2wgt
	return glm
}

// MaxIter sets the maximum number of IRLS iterations.
func (glm *GLM) MaxIter(n int) *GLM {
	glm.maxiter = n
	return glm
}

// Tol sets the IRLS convergence tolerance for the relative change in the
// penalized objective.
func (glm *GLM) Tol(tol float64) *GLM {
	glm.dtol = tol
	return glm
}

// Log takes a Logger value that will be used to log the progress of the fit.
func (glm *GLM) Log(log *log.Logger) *GLM {
	glm.log = log
	return glm
}

// ConcurrentIRLS sets the minimum sample size for which concurrent
// calculations are used during IRLS.
func (glm *GLM) ConcurrentIRLS(n int) *GLM {
	glm.concurrentIRLS = n
	return glm
}

// OptSettings allows the caller to provide an optimization settings
// value for gradient fitting.
func (glm *GLM) OptSettings(s *optimize.Settings) *GLM {
	glm.settings = s
	return glm
}

// OptMethod sets the optimization method from gonum.Optimize.
func (glm *GLM) OptMethod(method optimize.Method) *GLM {
	glm.method = method
	return glm
}

// Done completes definition of a GLM.
func (glm *GLM) Done() *GLM {

	if glm.fam == nil {
		msg := "GLM: the family must be defined before calling Done.\n"
		panic(msg)
	}

	n, p := glm.x.Dims()
	if len(glm.y) != n {
		msg := fmt.Sprintf("GLM: response has length %d, design has %d rows.\n", len(glm.y), n)
		panic(msg)
	}
	if glm.wgt != nil && len(glm.wgt) != n {
		msg := fmt.Sprintf("GLM: weights have length %d, design has %d rows.\n", len(glm.wgt), n)
		panic(msg)
	}

	if glm.fam.TypeCode == MultinomialFamily {
		if glm.numClass < 2 {
			glm.numClass = int(floats.Max(glm.y)) + 1
		}
		for i, v := range glm.y {
			if v < 0 || v != math.Trunc(v) || int(v) >= glm.numClass {
				msg := fmt.Sprintf("GLM: observation %d has invalid class label %v.\n", i, v)
				panic(msg)
			}
		}
	} else {
		glm.numClass = 1
		if glm.link == nil {
			glm.link = NewLink(glm.fam.validLinks[0])
		}
		glm.vari = NewVariance(glm.fam.variance)
	}

	for _, w := range [][]float64{glm.l1wgt, glm.l2wgt} {
		if w != nil && len(w) != p*glm.numClass {
			msg := fmt.Sprintf("GLM: penalty weight vector has length %d, but the model has %d coefficients.\n",
				len(w), p*glm.numClass)
			panic(msg)
		}
	}
	if glm.l1wgt != nil && glm.fam.TypeCode == MultinomialFamily {
		msg := "GLM: L1 weights are not available for the multinomial family.\n"
		panic(msg)
	}

	glm.xcols = make([][]float64, p)
	for j := range glm.xcols {
		glm.xcols[j] = mat.Col(nil, j, glm.x)
	}

	glm.done = true

	return glm
}

// NumParams returns the number of coefficients in the model, the number
// of columns of the design times the number of classes.
func (glm *GLM) NumParams() int {
	_, p := glm.x.Dims()
	return p * glm.numClass
}

// NumObs returns the number of observations.
func (glm *GLM) NumObs() int {
	return len(glm.y)
}

// Classes returns the number of response classes.
func (glm *GLM) Classes() int {
	return glm.numClass
}

// GetFamily returns the family of the model.
func (glm *GLM) GetFamily() *Family {
	return glm.fam
}

// GetLink returns the link function of the model, nil for the
// multinomial family.
func (glm *GLM) GetLink() *Link {
	return glm.link
}

func (glm *GLM) checkCoeff(coeff []float64) error {
	if len(coeff) != glm.NumParams() {
		return errors.Wrapf(statmodel.ErrDimensionMismatch, "GLM: %d coefficients, model has %d",
			len(coeff), glm.NumParams())
	}
	return nil
}

// linpred computes the linear predictor of one class.
func (glm *GLM) linpred(coeff []float64, lp []float64) {
	_, p := glm.x.Dims()
	lpv := mat.NewVecDense(len(lp), lp)
	lpv.MulVec(glm.x, mat.NewVecDense(p, coeff))
}

// weight returns the case weight of observation i.
func (glm *GLM) weight(i int) float64 {
	if glm.wgt == nil {
		return 1
	}
	return glm.wgt[i]
}

// Objective returns half the deviance of the model at the given
// coefficients (the negative log-likelihood for the multinomial family).
func (glm *GLM) Objective(coeff []float64) float64 {

	if glm.fam.TypeCode == MultinomialFamily {
		probs := glm.classProbs(coeff)
		var f float64
		for i, y := range glm.y {
			f -= glm.weight(i) * math.Log(probs.At(i, int(y)))
		}
		return f
	}

	n := glm.NumObs()
	lp := make([]float64, n)
	mn := make([]float64, n)
	glm.linpred(coeff, lp)
	glm.link.InvLink(lp, mn)

	return glm.fam.Deviance(glm.y, mn, glm.wgt) / 2
}

// Deviance returns the deviance of the model at the given coefficients.
func (glm *GLM) Deviance(coeff []float64) float64 {
	return 2 * glm.Objective(coeff)
}

// elasticNet returns the L1 and L2 penalty at coeff, and adds the
// gradient and Hessian of the L2 penalty over the coefficients at
// positions act to grad and hess, which may be nil.
func (glm *GLM) elasticNet(coeff []float64, act []int, grad, hess []float64) float64 {

	nobs := float64(glm.NumObs())
	var f float64
	for _, j := range act {
		if glm.l1wgt != nil {
			f += nobs * glm.l1wgt[j] * math.Abs(coeff[j])
		}
		if glm.l2wgt != nil {
			f += nobs * glm.l2wgt[j] * coeff[j] * coeff[j] / 2
		}
	}

	if glm.l2wgt == nil {
		return f
	}
	m := len(act)
	for i, j := range act {
		if grad != nil {
			grad[i] += nobs * glm.l2wgt[j] * coeff[j]
		}
		if hess != nil {
			hess[i*m+i] += nobs * glm.l2wgt[j]
		}
	}

	return f
}

// allPositions returns 0, 1, ..., n-1.
func allPositions(n int) []int {
	act := make([]int, n)
	for j := range act {
		act[j] = j
	}
	return act
}

func scoreFactor(yda, mn, deriv, va, sfac []float64) {
	for i, y := range yda {
		sfac[i] = (y - mn[i]) / (deriv[i] * va[i])
	}
}

// Gradient writes the gradient of the objective at the given
// coefficients into grad.
func (glm *GLM) Gradient(coeff, grad []float64) {

	zero(grad)

	if glm.fam.TypeCode == MultinomialFamily {
		glm.multinomialGradient(coeff, grad)
		return
	}

	n := glm.NumObs()
	lp := make([]float64, n)
	mn := make([]float64, n)
	deriv := make([]float64, n)
	va := make([]float64, n)
	fac := make([]float64, n)

	glm.linpred(coeff, lp)
	glm.link.InvLink(lp, mn)
	glm.link.Deriv(mn, deriv)
	glm.vari.Var(mn, va)
	scoreFactor(glm.y, mn, deriv, va, fac)
	if glm.wgt != nil {
		floats.Mul(fac, glm.wgt)
	}

	for j, xda := range glm.xcols {
		grad[j] = -floats.Dot(fac, xda)
	}
}

// Hessian writes the expected Hessian of the objective, the weighted
// Gram matrix, into the vectorized array hess.
func (glm *GLM) Hessian(coeff, hess []float64) {

	zero(hess)

	if glm.fam.TypeCode == MultinomialFamily {
		glm.multinomialHessian(coeff, hess)
		return
	}

	n := glm.NumObs()
	lp := make([]float64, n)
	mn := make([]float64, n)
	irlsw := make([]float64, n)

	glm.linpred(coeff, lp)
	glm.link.InvLink(lp, mn)
	glm.irlsWeights(mn, irlsw)

	nvar := len(glm.xcols)
	for j1 := range glm.xcols {
		for j2 := 0; j2 <= j1; j2++ {
			u := weightedDot(glm.xcols[j1], glm.xcols[j2], irlsw)
			hess[j1*nvar+j2] = u
			hess[j2*nvar+j1] = u
		}
	}
}

// irlsWeights computes the working weights w / (g'(mu)^2 V(mu)).
func (glm *GLM) irlsWeights(mn, irlsw []float64) {
	lderiv := make([]float64, len(mn))
	va := make([]float64, len(mn))
	glm.link.Deriv(mn, lderiv)
	glm.vari.Var(mn, va)
	for i := range mn {
		irlsw[i] = glm.weight(i) / (lderiv[i] * lderiv[i] * va[i])
	}
}

// classProbs returns the n x K matrix of fitted class probabilities.
func (glm *GLM) classProbs(coeff []float64) *mat.Dense {

	n, p := glm.x.Dims()
	k := glm.numClass

	var probs mat.Dense
	probs.Mul(glm.x, mat.NewDense(k, p, coeff).T())

	for i := 0; i < n; i++ {
		row := probs.RawRowView(i)
		mx := floats.Max(row)
		var s float64
		for c := range row {
			row[c] = math.Exp(row[c] - mx)
			s += row[c]
		}
		floats.Scale(1/s, row)
	}

	return &probs
}

func (glm *GLM) multinomialGradient(coeff, grad []float64) {

	_, p := glm.x.Dims()
	probs := glm.classProbs(coeff)

	for i, y := range glm.y {
		w := glm.weight(i)
		xrow := glm.x.RawRowView(i)
		prow := probs.RawRowView(i)
		for c := range prow {
			r := prow[c]
			if c == int(y) {
				r -= 1
			}
			floats.AddScaled(grad[c*p:(c+1)*p], w*r, xrow)
		}
	}
}

func (glm *GLM) multinomialHessian(coeff, hess []float64) {

	_, p := glm.x.Dims()
	k := glm.numClass
	nvar := k * p
	probs := glm.classProbs(coeff)

	for i := range glm.y {
		w := glm.weight(i)
		xrow := glm.x.RawRowView(i)
		prow := probs.RawRowView(i)
		for c1 := 0; c1 < k; c1++ {
			for c2 := 0; c2 < k; c2++ {
				f := -prow[c1] * prow[c2]
				if c1 == c2 {
					f += prow[c1]
				}
				f *= w
				for j1, x1 := range xrow {
					off := (c1*p+j1)*nvar + c2*p
					for j2, x2 := range xrow {
						hess[off+j2] += f * x1 * x2
					}
				}
			}
		}
	}
}

// FitGradient minimizes the penalized objective using gradient-based
// optimization.  The penalty may be nil.
func (glm *GLM) FitGradient(start []float64, pen Penalizer) (*FitResult, error) {

	if glm.l1wgt != nil {
		return nil, errors.New("GLM: L1 weights require IRLS fitting")
	}

	nvar := glm.NumParams()
	act := allPositions(nvar)
	if start == nil {
		start = make([]float64, nvar)
	}
	if err := glm.checkCoeff(start); err != nil {
		return nil, err
	}

	// Check the penalty layout once, so that the callbacks below can
	// not fail.
	if pen != nil {
		if _, err := pen.Augment(make([]float64, nvar), nil, 0, start, nil); err != nil {
			return nil, err
		}
	}

	p := optimize.Problem{
		Func: func(x []float64) float64 {
			f := glm.Objective(x) + glm.elasticNet(x, act, nil, nil)
			if pen != nil {
				f, _ = pen.Augment(nil, nil, f, x, nil)
			}
			return f
		},
		Grad: func(grad, x []float64) {
			glm.Gradient(x, grad)
			glm.elasticNet(x, act, grad, nil)
			if pen != nil {
				_, _ = pen.Augment(grad, nil, 0, x, nil)
			}
		},
	}

	settings := glm.settings
	if settings == nil {
		settings = &optimize.Settings{
			GradientThreshold: 1e-8 * math.Max(1, float64(glm.NumObs())),
		}
	}

	method := glm.method
	if method == nil {
		method = &optimize.BFGS{}
	}

	if glm.log != nil {
		glm.log.Printf("Gradient fitting of %d coefficients\n", nvar)
	}

	optrslt, err := optimize.Minimize(p, start, settings, method)
	if err == nil && optrslt != nil {
		err = optrslt.Status.Err()
	}
	if err != nil {
		// A line search that stalls at the optimum is not a failure.
		if optrslt == nil || floats.Norm(optrslt.Gradient, math.Inf(1)) > 1e-4*math.Max(1, float64(glm.NumObs())) {
			return nil, errors.Wrap(err, "GLM: gradient optimization failed")
		}
		if glm.log != nil {
			glm.log.Printf("Optimization stopped: %v\n", err)
		}
	}

	params := append([]float64(nil), optrslt.X...)
	return &FitResult{
		Params:     params,
		Objective:  optrslt.F,
		Deviance:   glm.Deviance(params),
		Iterations: optrslt.Stats.MajorIterations,
		Converged:  err == nil,
	}, nil
}

// EstimateScale returns an estimate of the scale parameter at the given
// coefficients, using edf as the effective number of parameters.  It
// returns 1 for families with a fixed scale.
func (glm *GLM) EstimateScale(params []float64, edf float64) float64 {

	if glm.fam.FixedScale() {
		return 1
	}

	n := glm.NumObs()
	lp := make([]float64, n)
	mn := make([]float64, n)
	va := make([]float64, n)
	glm.linpred(params, lp)
	glm.link.InvLink(lp, mn)
	glm.vari.Var(mn, va)

	var scale, ws float64
	for i, y := range glm.y {
		w := glm.weight(i)
		r := y - mn[i]
		scale += w * r * r / va[i]
		ws += w
	}

	return scale / (ws - edf)
}

// weightedDot returns sum_i w[i] x[i] y[i].
func weightedDot(x, y, w []float64) float64 {
	var u float64
	for i := range x {
		u += x[i] * y[i] * w[i]
	}
	return u
}

// zero sets all elements of the slice to 0
func zero(x []float64) {
	for i := range x {
		x[i] = 0
	}
}

// one sets all elements of the slice to 1
func one(x []float64) {
	for i := range x {
		x[i] = 1
	}
}
