package spline

import (
	"math"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"
)

// Penalty returns the k x k matrix S such that b' S b is the integrated
// squared second derivative of the spline with knot values b, multiplied
// by scale.  S = BinvD' B BinvD, which equals D' B^-1 D.
func (bs *Basis) Penalty(scale float64) (*mat.SymDense, error) {

	if scale < 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return nil, errors.Wrapf(ErrInvalidScale, "scale=%v", scale)
	}

	var bx, s mat.Dense
	bx.Mul(bs.b, bs.binvD)
	s.Mul(bs.binvD.T(), &bx)

	return symmetrize(&s, scale), nil
}

// PenaltyRescale returns the factor that puts a penalty matrix on the
// scale of its basis: the squared maximum absolute row sum of the basis
// matrix divided by the maximum absolute row sum of the penalty.  It
// returns 1 if the penalty is zero.
func PenaltyRescale(s mat.Symmetric, basis mat.Matrix) float64 {
	ns := mat.Norm(s, math.Inf(1))
	if ns == 0 {
		return 1
	}
	nx := mat.Norm(basis, math.Inf(1))
	return nx * nx / ns
}

// symmetrize returns scale * (m + m') / 2.  The solves that produce
// penalty matrices leave round-off asymmetry.
func symmetrize(m mat.Matrix, scale float64) *mat.SymDense {
	r, c := m.Dims()
	if r != c {
		panic(mat.ErrShape)
	}
	s := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			s.SetSym(i, j, scale*(m.At(i, j)+m.At(j, i))/2)
		}
	}
	return s
}
