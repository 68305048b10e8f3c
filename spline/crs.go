package spline

import (
	"fmt"
	"math"
	"sort"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// BasisType identifies the family of spline basis functions.
type BasisType uint8

// CubicRegression is a cubic regression spline parameterized by its values
// at the knots, with natural (zero second derivative) boundary conditions.
const (
	CubicRegression BasisType = iota
)

// String returns the name of the basis type.
func (bt BasisType) String() string {
	switch bt {
	case CubicRegression:
		return "cr"
	default:
		return fmt.Sprintf("BasisType(%d)", bt)
	}
}

// Basis is a spline basis defined by a fixed knot sequence.  A Basis is
// not modified after construction and may be shared between goroutines.
type Basis struct {
	kind BasisType

	knots []float64

	// Knot spacings, h[j] = knots[j+1] - knots[j]
	h []float64

	// The tridiagonal matrix B relating second derivatives at the
	// interior knots to the second differences D.
	b *mat.SymBandDense

	// The solution of B X = D, (k-2) x k.
	binvD *mat.Dense
}

// NewBasis returns the basis of the given type for the knot sequence.
func NewBasis(knots []float64, bt BasisType) (*Basis, error) {

	if bt != CubicRegression {
		return nil, errors.Wrapf(ErrUnsupportedBasis, "%v", bt)
	}

	if err := ValidateKnots(knots, len(knots)); err != nil {
		return nil, err
	}

	k := len(knots)
	bs := &Basis{
		kind:  bt,
		knots: append([]float64(nil), knots...),
		h:     make([]float64, k-1),
	}
	for j := range bs.h {
		bs.h[j] = knots[j+1] - knots[j]
	}

	m := k - 2
	bw := 1
	if m == 1 {
		bw = 0
	}
	bs.b = mat.NewSymBandDense(m, bw, nil)
	d := mat.NewDense(m, k, nil)
	for i := 0; i < m; i++ {
		h0, h1 := bs.h[i], bs.h[i+1]
		bs.b.SetSymBand(i, i, (h0+h1)/3)
		if i+1 < m {
			bs.b.SetSymBand(i, i+1, h1/6)
		}
		d.Set(i, i, 1/h0)
		d.Set(i, i+1, -1/h0-1/h1)
		d.Set(i, i+2, 1/h1)
	}

	// B is strictly diagonally dominant with a positive diagonal, so
	// the banded Cholesky factorization exists.
	var chol mat.BandCholesky
	if ok := chol.Factorize(bs.b); !ok {
		return nil, errors.Wrap(ErrInvalidKnots, "knot spacing matrix is not positive definite")
	}
	bs.binvD = mat.NewDense(m, k, nil)
	if err := chol.SolveTo(bs.binvD, d); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, errors.Wrap(err, "spline: solving for BinvD")
		}
	}

	return bs, nil
}

// Type returns the basis type.
func (bs *Basis) Type() BasisType {
	return bs.kind
}

// NumBasis returns the number of basis functions, which equals the
// number of knots.
func (bs *Basis) NumBasis() int {
	return len(bs.knots)
}

// Knots returns a copy of the knot sequence.
func (bs *Basis) Knots() []float64 {
	return append([]float64(nil), bs.knots...)
}

// BinvD returns a copy of the (k-2) x k matrix B^-1 D.
func (bs *Basis) BinvD() *mat.Dense {
	return mat.DenseCopyOf(bs.binvD)
}

// Eval writes the values of all basis functions at x into row, which must
// have length NumBasis.  Outside the knot range the spline continues
// linearly from the boundary knot.  A NaN argument gives a zero row.
func (bs *Basis) Eval(x float64, row []float64) {

	k := len(bs.knots)
	if len(row) != k {
		msg := fmt.Sprintf("spline: row has length %d, basis has %d functions\n", len(row), k)
		panic(msg)
	}

	zero(row)
	switch {
	case math.IsNaN(x):
		return
	case x < bs.knots[0]:
		bs.extrapolate(x, true, row)
	case x > bs.knots[k-1]:
		bs.extrapolate(x, false, row)
	default:
		bs.interpolate(x, bs.bin(x), row)
	}
}

// Matrix returns the len(x) x NumBasis matrix whose i^th row holds the
// basis functions evaluated at x[i].
func (bs *Basis) Matrix(x []float64) *mat.Dense {
	k := len(bs.knots)
	m := mat.NewDense(len(x), k, nil)
	for i, v := range x {
		bs.Eval(v, m.RawRowView(i))
	}
	return m
}

// bin returns j such that knots[j] <= x <= knots[j+1].  The caller
// guarantees that x lies in the knot range.
func (bs *Basis) bin(x float64) int {
	j := sort.SearchFloat64s(bs.knots, x)
	if j > 0 {
		j--
	}
	if j > len(bs.knots)-2 {
		j = len(bs.knots) - 2
	}
	return j
}

func (bs *Basis) interpolate(x float64, j int, row []float64) {

	h := bs.h[j]
	dl := bs.knots[j+1] - x
	dr := x - bs.knots[j]

	row[j] += dl / h
	row[j+1] += dr / h

	bs.addSecond(j, (dl*dl*dl/h-h*dl)/6, row)
	bs.addSecond(j+1, (dr*dr*dr/h-h*dr)/6, row)
}

// extrapolate evaluates the linear continuation of the spline beyond one
// of the boundary knots, where the second derivative vanishes.
func (bs *Basis) extrapolate(x float64, left bool, row []float64) {

	k := len(bs.knots)
	if left {
		h := bs.h[0]
		d := x - bs.knots[0]
		row[0] += 1 - d/h
		row[1] += d / h
		bs.addSecond(1, -d*h/6, row)
		return
	}

	h := bs.h[k-2]
	d := x - bs.knots[k-1]
	row[k-1] += 1 + d/h
	row[k-2] -= d / h
	bs.addSecond(k-2, d*h/6, row)
}

// addSecond adds c times the map from knot values to the second
// derivative at knot i.  The map is zero at the boundary knots.
func (bs *Basis) addSecond(i int, c float64, row []float64) {
	if i == 0 || i == len(bs.knots)-1 || c == 0 {
		return
	}
	floats.AddScaled(row, c, bs.binvD.RawRowView(i-1))
}

// zero sets all elements of the slice to 0
func zero(x []float64) {
	for i := range x {
		x[i] = 0
	}
}
