package gam

import (
	"github.com/cockroachdb/errors"

	"github.com/kshedden/gam/statmodel"
)

// Augment adds the roughness penalty of every smooth term in every class
// to an objective value and to gradient and Hessian accumulators.  For
// term t with penalty P and coefficients b, obj gains b'Pb, the gradient
// gains 2Pb, and the Hessian gains P + P' in the rows and columns of the
// term.  The augmented objective is returned.
//
// coeff is always in the full layout of NumCoeff() positions.  If active
// is nil, grad has length NumCoeff() and hess is the vectorized NumCoeff()
// square matrix.  Otherwise the accumulators hold only the active
// coefficients, position g being stored at its rank in the active set,
// and inactive coefficients are left out of the penalty entirely.  Either
// accumulator may be nil, in which case it is not updated.
//
// Only grad and hess are modified, and they are left untouched when an
// error is returned.  Concurrent calls must not share accumulators.
func (cs *ColumnSet) Augment(grad, hess []float64, obj float64, coeff []float64, active *statmodel.ActiveSet) (float64, error) {

	nc := cs.NumCoeff()
	if len(coeff) != nc {
		return obj, errors.Wrapf(statmodel.ErrDimensionMismatch, "%d coefficients, model has %d", len(coeff), nc)
	}

	n := nc
	if active != nil {
		n = active.Len()
		if idx := active.Indices(); len(idx) > 0 && idx[len(idx)-1] >= nc {
			return obj, errors.Wrapf(statmodel.ErrDimensionMismatch, "active position %d, model has %d coefficients",
				idx[len(idx)-1], nc)
		}
	}
	if grad != nil && len(grad) != n {
		return obj, errors.Wrapf(statmodel.ErrDimensionMismatch, "gradient has length %d, expected %d", len(grad), n)
	}
	if hess != nil && len(hess) != n*n {
		return obj, errors.Wrapf(statmodel.ErrDimensionMismatch, "Hessian has %d elements, expected %d", len(hess), n*n)
	}

	for _, tm := range cs.terms {
		if r, w := tm.activePenalty().SymmetricDim(), tm.Width(); r != w {
			return obj, errors.Wrapf(statmodel.ErrDimensionMismatch, "term %q: penalty is %d x %d, term has %d coefficients",
				tm.Name(), r, r, w)
		}
	}

	for t, tm := range cs.terms {

		pen := tm.activePenalty()
		w := tm.Width()

		b := make([]float64, w)
		pb := make([]float64, w)
		pos := make([]int, w)

		for c := 0; c < cs.numClass; c++ {

			// Map the global positions of the term to accumulator
			// positions, -1 if inactive.
			for i, g := range cs.indices(t, c) {
				pos[i] = g
				b[i] = coeff[g]
				if active != nil {
					if p, ok := active.Pos(g); ok {
						pos[i] = p
					} else {
						pos[i] = -1
						b[i] = 0
					}
				}
			}

			for i := 0; i < w; i++ {
				var u float64
				for j := 0; j < w; j++ {
					u += pen.At(i, j) * b[j]
				}
				pb[i] = u
				obj += b[i] * u
			}

			if grad != nil {
				for i, p := range pos {
					if p >= 0 {
						grad[p] += 2 * pb[i]
					}
				}
			}

			if hess != nil {
				for i, p1 := range pos {
					if p1 < 0 {
						continue
					}
					for j, p2 := range pos {
						if p2 < 0 {
							continue
						}
						hess[p1*n+p2] += pen.At(i, j) + pen.At(j, i)
					}
				}
			}
		}
	}

	return obj, nil
}
