package spline

import (
	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Centering maps a k-column basis to the k-1 dimensional subspace of
// coefficients whose fitted values have zero mean over the training data.
type Centering struct {

	// Column means of the uncentered training basis
	means []float64

	// k x (k-1) projector, the last k-1 columns of the Q factor of the
	// column means.
	z *mat.Dense
}

// NewCentering constructs the centering projector for the given
// uncentered training basis (rows are observations).
func NewCentering(basis mat.Matrix) (*Centering, error) {

	r, k := basis.Dims()
	if r == 0 {
		return nil, errors.Wrap(ErrDegenerateBasis, "basis has no rows")
	}
	if k < 2 {
		return nil, errors.Wrapf(ErrDegenerateBasis, "basis has %d columns", k)
	}

	means := make([]float64, k)
	col := make([]float64, r)
	for j := range means {
		mat.Col(col, j, basis)
		means[j] = floats.Sum(col) / float64(r)
	}

	if floats.Norm(means, 2) == 0 {
		return nil, errors.Wrap(ErrDegenerateBasis, "basis column means are all zero")
	}

	var qr mat.QR
	qr.Factorize(mat.NewDense(k, 1, append([]float64(nil), means...)))
	var q mat.Dense
	qr.QTo(&q)

	return &Centering{
		means: means,
		z:     mat.DenseCopyOf(q.Slice(0, k, 1, k)),
	}, nil
}

// Means returns a copy of the column means of the training basis.
func (c *Centering) Means() []float64 {
	return append([]float64(nil), c.means...)
}

// Projector returns a copy of the k x (k-1) centering projector Z.
func (c *Centering) Projector() *mat.Dense {
	return mat.DenseCopyOf(c.z)
}

// Basis returns x Z, the centered version of a basis matrix x.  New data
// are centered with the projector derived from the training data.
func (c *Centering) Basis(x mat.Matrix) *mat.Dense {
	var y mat.Dense
	y.Mul(x, c.z)
	return &y
}

// Penalty returns Z' s Z, the penalty for the centered coefficients.
func (c *Centering) Penalty(s mat.Symmetric) *mat.SymDense {
	var sz, zsz mat.Dense
	sz.Mul(s, c.z)
	zsz.Mul(c.z.T(), &sz)
	return symmetrize(&zsz, 1)
}

// Expand maps centered coefficients (length k-1) to coefficients on the
// uncentered basis (length k).
func (c *Centering) Expand(beta []float64) []float64 {
	r, _ := c.z.Dims()
	out := mat.NewVecDense(r, nil)
	out.MulVec(c.z, mat.NewVecDense(len(beta), append([]float64(nil), beta...)))
	return out.RawVector().Data
}
