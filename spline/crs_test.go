package spline

import (
	"fmt"
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Knots placed at the quantiles of a 10000 row test column, with the
// corresponding reference values of B^-1 D and the penalty computed by
// mgcv.  The penalty is rescaled by PenaltyRescale over a column evenly
// spread across the knots.
var (
	refKnots = []float64{-1.99905699, -0.98143075, 0.02599159, 1.00770987, 1.99942290}

	refBinvD = [][]float64{
		{1.5605080, -3.5620961, 2.5465468, -0.6524143, 0.1074557},
		{-0.4210098, 2.5559955, -4.3258597, 2.6228736, -0.4319995},
		{0.1047194, -0.6357626, 2.6244918, -3.7337994, 1.6403508},
	}

	refPenalty = [][]float64{
		{0.078482471, -0.17914814, 0.1280732, -0.03281181, 0.005404258},
		{-0.179148137, 0.48996127, -0.4772073, 0.19920397, -0.032809824},
		{0.128073216, -0.47720728, 0.7114729, -0.49778106, 0.135442250},
		{-0.032811808, 0.19920397, -0.4977811, 0.52407922, -0.192690331},
		{0.005404258, -0.03280982, 0.1354423, -0.19269033, 0.084653646},
	}
)

func matClose(m mat.Matrix, ref [][]float64, tol float64) bool {
	r, c := m.Dims()
	if r != len(ref) {
		return false
	}
	for i := 0; i < r; i++ {
		if len(ref[i]) != c {
			return false
		}
		for j := 0; j < c; j++ {
			if math.Abs(m.At(i, j)-ref[i][j]) > tol {
				return false
			}
		}
	}
	return true
}

func TestBinvDReference(t *testing.T) {

	bs, err := NewBasis(refKnots, CubicRegression)
	if err != nil {
		t.Fatal(err)
	}

	if !matClose(bs.BinvD(), refBinvD, 1e-6) {
		fmt.Printf("BinvD:\n%v\n", mat.Formatted(bs.BinvD()))
		t.Fail()
	}

	// Rebuilding from the same knots reproduces the matrix.
	bs2, _ := NewBasis(refKnots, CubicRegression)
	if !mat.EqualApprox(bs.BinvD(), bs2.BinvD(), 1e-12) {
		t.Fail()
	}
}

// evenGrid returns n evenly spaced points from lo to hi.
func evenGrid(lo, hi float64, n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = lo + (hi-lo)*float64(i)/float64(n-1)
	}
	return x
}

func TestPenaltyReference(t *testing.T) {

	bs, err := NewBasis(refKnots, CubicRegression)
	if err != nil {
		t.Fatal(err)
	}
	s, err := bs.Penalty(1)
	if err != nil {
		t.Fatal(err)
	}

	// The reference is rescaled to the basis over the test column.
	x := evenGrid(refKnots[0], refKnots[len(refKnots)-1], 10000)
	f := PenaltyRescale(s, bs.Matrix(x))
	var fs mat.SymDense
	fs.ScaleSym(f, s)
	if !matClose(&fs, refPenalty, 1e-6) {
		fmt.Printf("Rescaled penalty:\n%v\n", mat.Formatted(&fs))
		t.Fail()
	}

	// Without rescaling the penalty is far from the reference.
	if matClose(s, refPenalty, 1e-2) {
		t.Fail()
	}

	// Penalty is D' B^-1 D, check against the definition D' BinvD.
	k := len(refKnots)
	d := mat.NewDense(k-2, k, nil)
	h := bs.h
	for i := 0; i < k-2; i++ {
		d.Set(i, i, 1/h[i])
		d.Set(i, i+1, -1/h[i]-1/h[i+1])
		d.Set(i, i+2, 1/h[i+1])
	}
	var dbd mat.Dense
	dbd.Mul(d.T(), bs.binvD)
	if !mat.EqualApprox(&dbd, s, 1e-8) {
		t.Fail()
	}
}

func TestPenaltyScale(t *testing.T) {

	bs, _ := NewBasis(refKnots, CubicRegression)
	s1, _ := bs.Penalty(1)
	s3, _ := bs.Penalty(3)

	var s13 mat.SymDense
	s13.ScaleSym(3, s1)
	if !mat.EqualApprox(&s13, s3, 1e-10) {
		t.Fail()
	}

	for _, scale := range []float64{-1, math.NaN(), math.Inf(1)} {
		_, err := bs.Penalty(scale)
		if !errors.Is(err, ErrInvalidScale) {
			t.Errorf("scale %v: expected ErrInvalidScale, got %v", scale, err)
		}
	}
}

func TestPenaltySymmetricPSD(t *testing.T) {

	knotSets := [][]float64{
		refKnots,
		{0, 1, 2},
		{0, 0.1, 0.5, 3, 3.2, 7, 20},
		{-5, -4.9, -4.8, 10},
	}

	for _, knots := range knotSets {
		bs, err := NewBasis(knots, CubicRegression)
		if err != nil {
			t.Fatal(err)
		}
		s, _ := bs.Penalty(2.5)
		if !isSymmetric(s, 1e-6) {
			t.Errorf("penalty not symmetric for knots %v", knots)
		}
		if !isPSD(s, 1e-8) {
			t.Errorf("penalty not PSD for knots %v", knots)
		}
	}
}

// The quadratic form b' S b is the integral of the squared second
// derivative, which is piecewise linear between knots.
func TestPenaltyIntegral(t *testing.T) {

	knots := []float64{0, 0.1, 0.5, 3, 3.2, 7, 20}
	bs, _ := NewBasis(knots, CubicRegression)
	s, _ := bs.Penalty(1)

	for _, b := range [][]float64{
		{1, 0, 0, 0, 0, 0, 0},
		{0, 1, -1, 2, 0.5, 1, 3},
		{-2, 3, 1, 1, -1, 0, 4},
	} {
		k := len(knots)
		delta := make([]float64, k)
		for i := 1; i < k-1; i++ {
			delta[i] = floats.Dot(bs.binvD.RawRowView(i-1), b)
		}
		var want float64
		for j := 0; j < k-1; j++ {
			want += bs.h[j] * (delta[j]*delta[j] + delta[j]*delta[j+1] + delta[j+1]*delta[j+1]) / 3
		}

		bv := mat.NewVecDense(k, b)
		got := mat.Inner(bv, s, bv)
		if math.Abs(got-want) > 1e-8*math.Max(1, math.Abs(want)) {
			t.Errorf("quadratic form %v, integral %v", got, want)
		}
	}
}

func TestInterpolatesAtKnots(t *testing.T) {

	bs, _ := NewBasis(refKnots, CubicRegression)
	k := bs.NumBasis()
	row := make([]float64, k)

	for j, x := range refKnots {
		bs.Eval(x, row)
		for i := range row {
			want := 0.0
			if i == j {
				want = 1
			}
			if math.Abs(row[i]-want) > 1e-12 {
				t.Errorf("knot %d: row %v", j, row)
				break
			}
		}
	}
}

// The spline with coefficients equal to the knots is the identity
// function, inside and outside of the knot range, and every row of the
// basis sums to one.
func TestReproducesLinear(t *testing.T) {

	bs, _ := NewBasis(refKnots, CubicRegression)
	row := make([]float64, bs.NumBasis())

	for _, x := range []float64{-3.5, -2.0, -1.99905699, -1.5, 0, 0.3, 1.2, 1.99942290, 2.5, 10} {
		bs.Eval(x, row)
		if math.Abs(floats.Dot(row, refKnots)-x) > 1e-10 {
			t.Errorf("x=%v: linear reproduction gives %v", x, floats.Dot(row, refKnots))
		}
		if math.Abs(floats.Sum(row)-1) > 1e-10 {
			t.Errorf("x=%v: row sum %v", x, floats.Sum(row))
		}
	}
}

// Beyond the boundary knots the spline is linear and joins the interior
// piece with matching value and slope.
func TestNaturalExtrapolation(t *testing.T) {

	bs, _ := NewBasis(refKnots, CubicRegression)
	b := []float64{0.3, -1, 2, 0.5, -0.7}
	row := make([]float64, len(b))
	f := func(x float64) float64 {
		bs.Eval(x, row)
		return floats.Dot(row, b)
	}

	eps := 1e-6
	for _, x0 := range []float64{refKnots[0], refKnots[len(refKnots)-1]} {
		if math.Abs(f(x0)-f(x0+1e-12)) > 1e-8 || math.Abs(f(x0)-f(x0-1e-12)) > 1e-8 {
			t.Errorf("discontinuity at %v", x0)
		}
		left := (f(x0) - f(x0-eps)) / eps
		right := (f(x0+eps) - f(x0)) / eps
		if math.Abs(left-right) > 1e-4 {
			t.Errorf("slopes differ at %v: %v %v", x0, left, right)
		}
	}

	// Linear outside the range: equally spaced points have equal increments.
	lo := refKnots[0]
	d1 := f(lo-1) - f(lo-2)
	d2 := f(lo-2) - f(lo-3)
	if math.Abs(d1-d2) > 1e-10 {
		t.Errorf("left extrapolation is not linear: %v %v", d1, d2)
	}
	hi := refKnots[len(refKnots)-1]
	d1 = f(hi+2) - f(hi+1)
	d2 = f(hi+3) - f(hi+2)
	if math.Abs(d1-d2) > 1e-10 {
		t.Errorf("right extrapolation is not linear: %v %v", d1, d2)
	}
}

func TestEvalNaN(t *testing.T) {
	bs, _ := NewBasis([]float64{0, 1, 2}, CubicRegression)
	row := []float64{1, 1, 1}
	bs.Eval(math.NaN(), row)
	if !floats.Equal(row, []float64{0, 0, 0}) {
		t.Fail()
	}
}

func TestMatrix(t *testing.T) {

	bs, _ := NewBasis(refKnots, CubicRegression)
	x := []float64{-2.5, -1, 0, 0.5, 1.7, 3}
	m := bs.Matrix(x)

	r, c := m.Dims()
	if r != len(x) || c != len(refKnots) {
		t.Fatalf("matrix has shape %dx%d", r, c)
	}

	row := make([]float64, c)
	for i, v := range x {
		bs.Eval(v, row)
		if !floats.Equal(row, m.RawRowView(i)) {
			t.Errorf("row %d differs", i)
		}
	}
}

func TestNewBasisErrors(t *testing.T) {

	if _, err := NewBasis(refKnots, BasisType(7)); !errors.Is(err, ErrUnsupportedBasis) {
		t.Errorf("expected ErrUnsupportedBasis, got %v", err)
	}
	if _, err := NewBasis([]float64{0, 1}, CubicRegression); !errors.Is(err, ErrInvalidKnots) {
		t.Errorf("expected ErrInvalidKnots, got %v", err)
	}
	if _, err := NewBasis([]float64{0, 2, 1, 3}, CubicRegression); !errors.Is(err, ErrInvalidKnots) {
		t.Errorf("expected ErrInvalidKnots, got %v", err)
	}
}

func isSymmetric(m mat.Matrix, tol float64) bool {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < i; j++ {
			if math.Abs(m.At(i, j)-m.At(j, i)) > tol {
				return false
			}
		}
	}
	return true
}

func isPSD(s mat.Symmetric, tol float64) bool {
	var es mat.EigenSym
	if ok := es.Factorize(s, false); !ok {
		return false
	}
	for _, v := range es.Values(nil) {
		if v < -tol {
			return false
		}
	}
	return true
}
