package spline

import (
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func testColumn(n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = 2 * math.Sin(1.7*float64(i)) * math.Cos(0.3*float64(i))
	}
	return x
}

func centeredSetup(t *testing.T, k int) (*Basis, *mat.Dense, *Centering) {
	x := testColumn(2000)
	knots, err := SelectKnots(x, k)
	if err != nil {
		t.Fatal(err)
	}
	bs, err := NewBasis(knots, CubicRegression)
	if err != nil {
		t.Fatal(err)
	}
	xm := bs.Matrix(x)
	ce, err := NewCentering(xm)
	if err != nil {
		t.Fatal(err)
	}
	return bs, xm, ce
}

func TestCenteringZeroMeans(t *testing.T) {

	for _, k := range []int{3, 5, 8} {
		_, xm, ce := centeredSetup(t, k)
		xc := ce.Basis(xm)

		r, c := xc.Dims()
		if c != k-1 {
			t.Errorf("centered basis has %d columns, expected %d", c, k-1)
		}
		col := make([]float64, r)
		for j := 0; j < c; j++ {
			mat.Col(col, j, xc)
			if math.Abs(floats.Sum(col)/float64(r)) > 1e-6 {
				t.Errorf("k=%d column %d has mean %v", k, j, floats.Sum(col)/float64(r))
			}
		}
	}
}

func TestCenteringProjector(t *testing.T) {

	_, _, ce := centeredSetup(t, 6)
	z := ce.Projector()

	r, c := z.Dims()
	if r != 6 || c != 5 {
		t.Fatalf("projector has shape %dx%d", r, c)
	}

	// Orthonormal columns, orthogonal to the column means.
	var ztz mat.Dense
	ztz.Mul(z.T(), z)
	eye := mat.NewDiagDense(c, nil)
	for i := 0; i < c; i++ {
		eye.SetDiag(i, 1)
	}
	if !mat.EqualApprox(&ztz, eye, 1e-10) {
		t.Fail()
	}

	means := mat.NewVecDense(r, ce.Means())
	var zm mat.VecDense
	zm.MulVec(z.T(), means)
	if floats.Norm(zm.RawVector().Data, math.Inf(1)) > 1e-10 {
		t.Fail()
	}

	// Rank of the centered basis is k-1.
	_, xm, _ := centeredSetup(t, 6)
	var svd mat.SVD
	if !svd.Factorize(ce.Basis(xm), mat.SVDNone) {
		t.Fatal("SVD failed")
	}
	if svd.Rank(1e-10) != 5 {
		t.Errorf("rank %d", svd.Rank(1e-10))
	}
}

func TestCenteredPenalty(t *testing.T) {

	bs, _, ce := centeredSetup(t, 7)
	s, _ := bs.Penalty(1)
	sc := ce.Penalty(s)

	if sc.SymmetricDim() != 6 {
		t.Errorf("centered penalty has dimension %d", sc.SymmetricDim())
	}
	if !isPSD(sc, 1e-8) {
		t.Fail()
	}

	// The centered quadratic form equals the uncentered form at the
	// expanded coefficients.
	beta := []float64{1, -0.5, 0.25, 2, 0, -1}
	bv := mat.NewVecDense(6, beta)
	ev := mat.NewVecDense(7, ce.Expand(beta))
	if math.Abs(mat.Inner(bv, sc, bv)-mat.Inner(ev, s, ev)) > 1e-8 {
		t.Fail()
	}
}

func TestCenteringDegenerate(t *testing.T) {

	_, err := NewCentering(mat.NewDense(4, 3, nil))
	if !errors.Is(err, ErrDegenerateBasis) {
		t.Errorf("expected ErrDegenerateBasis, got %v", err)
	}

	_, err = NewCentering(mat.NewDense(4, 1, []float64{1, 1, 1, 1}))
	if !errors.Is(err, ErrDegenerateBasis) {
		t.Errorf("expected ErrDegenerateBasis, got %v", err)
	}
}
