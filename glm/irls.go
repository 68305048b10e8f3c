package glm

import (
	"math"
	"sync"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/kshedden/gam/statmodel"
)

// Penalizer adds a quadratic penalty on the coefficients to the objective
// and, when not nil, to the gradient and Hessian accumulators.  The
// coefficients are in the full layout of the model.  If active is not nil
// the accumulators are laid out over the active coefficients only.
type Penalizer interface {
	Augment(grad, hess []float64, obj float64, coeff []float64, active *statmodel.ActiveSet) (float64, error)
}

// FitResult holds the outcome of fitting a GLM.
type FitResult struct {

	// The coefficient estimates
	Params []float64

	// The penalized objective at the estimates
	Objective float64

	// The deviance at the estimates
	Deviance float64

	// The number of iterations that were run
	Iterations int

	// True if the convergence criterion was met
	Converged bool

	// The unpenalized expected Hessian at the estimates, vectorized.  Only
	// set by IRLS.
	Gram []float64

	// The penalized expected Hessian at the estimates, including the L2
	// weights, vectorized.  Only set by IRLS.
	Hessian []float64
}

// FitIRLS minimizes the penalized objective using iteratively reweighted
// least squares.  Each step solves (X'WX + P + P') b = X'Wz, where the
// penalizer contributes P + P', with the L2 weights added to the diagonal.
// With L1 weights each step is solved by coordinate descent.  The penalty may be nil.  If start is nil
// the iterations start from a moment-based guess of the mean.  If an
// active set is configured, only the active coefficients are fit, and
// Gram and Hessian of the result are laid out over the active set.
func (glm *GLM) FitIRLS(start []float64, pen Penalizer) (*FitResult, error) {

	if glm.fam.TypeCode == MultinomialFamily {
		return nil, errors.Newf("GLM: IRLS is not available for the %s family", glm.fam.Name)
	}

	n := glm.NumObs()
	np := glm.NumParams()

	// Positions of the fitted coefficients
	act := allPositions(np)
	if glm.active != nil {
		act = glm.active.Indices()
		if len(act) > 0 && act[len(act)-1] >= np {
			return nil, errors.Wrapf(statmodel.ErrDimensionMismatch, "GLM: active position %d, model has %d coefficients",
				act[len(act)-1], np)
		}
	}
	nvar := len(act)
	xcols := make([][]float64, nvar)
	for j, k := range act {
		xcols[j] = glm.xcols[k]
	}

	linpred := make([]float64, n)
	mn := make([]float64, n)
	lderiv := make([]float64, n)
	irlsw := make([]float64, n)
	adjy := make([]float64, n)

	xty := make([]float64, nvar)
	xtx := make([]float64, nvar*nvar)

	// L1 weights and coefficients of the active positions, for
	// coordinate descent
	var l1wgt, cdcoeff []float64
	if glm.l1wgt != nil {
		l1wgt = make([]float64, nvar)
		cdcoeff = make([]float64, nvar)
		for j, k := range act {
			l1wgt[j] = float64(n) * glm.l1wgt[k]
		}
	}

	params := make([]float64, np)
	if start != nil {
		if err := glm.checkCoeff(start); err != nil {
			return nil, err
		}
		for _, k := range act {
			params[k] = start[k]
		}
	}

	var nparam mat.VecDense
	var prev float64
	var iter int
	var converged bool

	for iter = 0; iter < glm.maxiter; iter++ {

		if iter == 0 && start == nil {
			glm.startingMu(mn)
			glm.link.Link(mn, linpred)
		} else {
			glm.linpred(params, linpred)
			glm.link.InvLink(linpred, mn)
		}

		obj := glm.fam.Deviance(glm.y, mn, glm.wgt)/2 + glm.elasticNet(params, act, nil, nil)
		if pen != nil {
			var err error
			if obj, err = pen.Augment(nil, nil, obj, params, glm.active); err != nil {
				return nil, err
			}
		}

		if glm.log != nil {
			glm.log.Printf("Iteration %d: objective=%.10f\n", iter+1, obj)
		}

		// The objective at the starting guess does not correspond to
		// the starting coefficients.
		if iter > 1 && math.Abs(obj-prev) <= glm.dtol*(1+math.Abs(obj)) {
			converged = true
			break
		}
		prev = obj

		// Working weights and adjusted response for WLS
		glm.irlsWeights(mn, irlsw)
		glm.link.Deriv(mn, lderiv)
		for i, y := range glm.y {
			adjy[i] = linpred[i] + lderiv[i]*(y-mn[i])
		}

		// Update the weighted moment matrices.  For large data sets, this is
		// by far the most expensive step.
		zero(xtx)
		zero(xty)
		glm.irlsXprod(xcols, adjy, irlsw, xty, xtx)
		fillUpper(xtx, nvar)

		if pen != nil {
			if _, err := pen.Augment(nil, xtx, 0, params, glm.active); err != nil {
				return nil, err
			}
		}
		glm.elasticNet(params, act, nil, xtx)

		if l1wgt != nil {
			for j, k := range act {
				cdcoeff[j] = params[k]
			}
			if _, err := statmodel.FitL1Quad(xtx, xty, l1wgt, cdcoeff, 10000, 1e-12); err != nil {
				return nil, errors.Wrapf(err, "GLM: IRLS iteration %d", iter+1)
			}
			for j, k := range act {
				params[k] = cdcoeff[j]
			}
			continue
		}

		if err := solveNormal(&nparam, xtx, xty, nvar); err != nil {
			return nil, errors.Wrapf(err, "GLM: IRLS iteration %d", iter+1)
		}
		for j, k := range act {
			params[k] = nparam.AtVec(j)
		}
	}

	if glm.log != nil {
		if converged {
			glm.log.Print("IRLS converged\n")
		} else {
			glm.log.Printf("IRLS did not converge in %d iterations\n", glm.maxiter)
		}
	}

	// Final moments at the estimates
	full := make([]float64, np*np)
	glm.Hessian(params, full)
	gram := make([]float64, nvar*nvar)
	for j1, k1 := range act {
		for j2, k2 := range act {
			gram[j1*nvar+j2] = full[k1*np+k2]
		}
	}
	hess := append([]float64(nil), gram...)
	dev := glm.Deviance(params)
	obj := dev/2 + glm.elasticNet(params, act, nil, hess)
	if pen != nil {
		var err error
		if obj, err = pen.Augment(nil, hess, obj, params, glm.active); err != nil {
			return nil, err
		}
	}

	return &FitResult{
		Params:     params,
		Objective:  obj,
		Deviance:   dev,
		Iterations: iter,
		Converged:  converged,
		Gram:       gram,
		Hessian:    hess,
	}, nil
}

// solveNormal solves the symmetric system with a Cholesky factorization,
// falling back to a general solver when the matrix is not numerically
// positive definite.
func solveNormal(dst *mat.VecDense, xtx, xty []float64, nvar int) error {

	xtyv := mat.NewVecDense(nvar, xty)

	var chol mat.Cholesky
	if chol.Factorize(mat.NewSymDense(nvar, xtx)) {
		if err := chol.SolveVecTo(dst, xtyv); err == nil {
			return nil
		}
	}

	err := dst.SolveVec(mat.NewDense(nvar, nvar, xtx), xtyv)
	if err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return errors.Wrap(err, "singular weighted cross product")
		}
	}

	return nil
}

// fillUpper copies the lower triangle of the vectorized n x n matrix
// into its upper triangle.
func fillUpper(x []float64, n int) {
	for j1 := 0; j1 < n; j1++ {
		for j2 := j1 + 1; j2 < n; j2++ {
			x[j1*n+j2] = x[j2*n+j1]
		}
	}
}

func (glm *GLM) irlsXprod(xcols [][]float64, adjy, irlsw, xty, xtx []float64) {

	if len(adjy) >= glm.concurrentIRLS {
		irlsXprodConcurrent(xcols, adjy, irlsw, xty, xtx)
		return
	}

	nvar := len(xcols)

	for j1, xda := range xcols {

		// Update x' w^-1 yadj
		xty[j1] += weightedDot(adjy, xda, irlsw)

		// Update x' w^-1 x
		for j2 := 0; j2 <= j1; j2++ {
			xtx[j1*nvar+j2] += weightedDot(xda, xcols[j2], irlsw)
		}
	}
}

// irlsXprodConcurrent is a concurrent version of irlsXprod, with one
// goroutine per column of the design.
func irlsXprodConcurrent(xcols [][]float64, adjy, irlsw, xty, xtx []float64) {

	nvar := len(xcols)

	var wg sync.WaitGroup

	for j1 := range xcols {
		wg.Add(1)
		go func(j1 int) {
			defer wg.Done()
			xda := xcols[j1]
			xty[j1] += weightedDot(adjy, xda, irlsw)
			for j2 := 0; j2 <= j1; j2++ {
				xtx[j1*nvar+j2] += weightedDot(xda, xcols[j2], irlsw)
			}
		}(j1)
	}

	wg.Wait()
}

// startingMu shrinks the response toward its mean to obtain a starting
// value for the fitted mean that is in the domain of the link.
func (glm *GLM) startingMu(mn []float64) {

	var q float64
	if glm.fam.TypeCode == BinomialFamily {
		q = 0.5
	} else {
		for _, y := range glm.y {
			q += y
		}
		q /= float64(len(glm.y))
	}

	for i, y := range glm.y {
		mn[i] = (y + q) / 2
		if glm.link.TypeCode != IdentityLink && mn[i] < 0.1 {
			mn[i] = 0.1
		}
	}
}
