package gam

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/kshedden/gam/glm"
	"github.com/kshedden/gam/statmodel"
)

// smoothData returns n observations with a covariate x in [0, 1], a
// linear covariate z, and y = sin(2 pi x) + z/2 plus a small
// deterministic perturbation.
func smoothData(n int) ([][]statmodel.Dtype, []string) {
	x := make([]float64, n)
	z := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = float64((i*37)%n) / float64(n-1)
		z[i] = math.Cos(float64(i))
		y[i] = math.Sin(2*math.Pi*x[i]) + z[i]/2 + 0.1*math.Sin(11*float64(i))
	}
	return [][]statmodel.Dtype{y, x, z}, []string{"y", "x", "z"}
}

func TestFitGaussian(t *testing.T) {

	data, names := smoothData(300)

	st := NewSmoothTerm("x")
	st.Scale = 1e-4

	model, err := NewGAM(data, names, "y").Smooth(st).Done()
	require.NoError(t, err)
	require.Equal(t, []string{"z", "x_0", "x_1", "x_2", "x_3", "x_4", "x_5", "x_6", "x_7", "x_8", "icept"},
		model.Xnames())

	rslt, err := model.Fit()
	require.NoError(t, err)
	require.True(t, rslt.Converged())

	// The fitted smooth recovers the curve, up to the mean of the curve
	// over the data which is absorbed by the intercept.
	x := data[1]
	f, err := rslt.Smooth(0, 0, x)
	require.NoError(t, err)
	truth := make([]float64, len(x))
	for i, v := range x {
		truth[i] = math.Sin(2 * math.Pi * v)
	}
	mt := floats.Sum(truth) / float64(len(truth))
	require.InDelta(t, 0, floats.Sum(f)/float64(len(f)), 1e-8)

	var sse float64
	for i := range f {
		r := f[i] - (truth[i] - mt)
		sse += r * r
	}
	require.Less(t, math.Sqrt(sse/float64(len(f))), 0.05)

	params := rslt.Params()
	require.InDelta(t, 0.5, params[0], 0.05)
	require.InDelta(t, mt, params[len(params)-1], 0.05)

	// The penalized gradient vanishes at the estimates.
	grad := make([]float64, model.NumParams())
	model.Engine().Gradient(params, grad)
	_, err = model.Columns().Augment(grad, nil, 0, params, nil)
	require.NoError(t, err)
	require.Less(t, floats.Norm(grad, math.Inf(1)), 1e-5)

	// The objective is half of the deviance plus the penalty.
	pen, err := model.Columns().Augment(nil, nil, 0, params, nil)
	require.NoError(t, err)
	require.InDelta(t, rslt.Deviance()/2+pen, rslt.Objective(), 1e-8)

	require.Greater(t, rslt.EDF(), 2.0)
	require.Less(t, rslt.EDF(), float64(model.NumParams())+1e-8)
	require.Len(t, rslt.StdErr(), model.NumParams())
	require.InDelta(t, rslt.Deviance()/(300-rslt.EDF()), rslt.Scale(), 1e-10)

	// Predicting at the training data reproduces the fitted linear
	// predictor.
	lp, err := rslt.Predict(data, names)
	require.NoError(t, err)
	require.Len(t, lp, 1)
	dm, err := model.Columns().Design([][]float64{data[2]})
	require.NoError(t, err)
	want := mat.NewVecDense(300, nil)
	want.MulVec(dm, mat.NewVecDense(len(params), params))
	require.True(t, floats.EqualApprox(lp[0], want.RawVector().Data, 1e-10))

	s := rslt.Summary().String()
	require.True(t, strings.Contains(s, "Generalized additive model"))
	require.True(t, strings.Contains(s, "x_3"))
}

// A heavier penalty gives a smoother fit.
func TestPenaltyStrength(t *testing.T) {

	data, names := smoothData(200)

	var last float64 = math.Inf(1)
	for _, scale := range []float64{1e-1, 10, 1e3, 1e5} {
		st := NewSmoothTerm("x")
		st.Scale = scale
		model, err := NewGAM(data, names, "y").Smooth(st).Done()
		require.NoError(t, err)
		rslt, err := model.Fit()
		require.NoError(t, err)

		b, err := rslt.TermParams(0, 0)
		require.NoError(t, err)
		p := model.Terms()[0].Penalty()
		bv := mat.NewVecDense(len(b), b)
		rough := mat.Inner(bv, p, bv) / scale
		require.Less(t, rough, last)
		last = rough
	}
}

func TestFitPoisson(t *testing.T) {

	n := 400
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = float64((i*53)%n) / float64(n)
		mu := math.Exp(1 + math.Sin(3*x[i]))
		// A deterministic count near the mean
		y[i] = math.Floor(mu + 0.5*math.Sin(7*float64(i)) + 0.5)
	}

	st := NewSmoothTerm("x")
	st.NumKnots = 6
	model, err := NewGAM([][]statmodel.Dtype{y, x}, []string{"y", "x"}, "y").
		Family(glm.NewFamily(glm.PoissonFamily)).Smooth(st).Done()
	require.NoError(t, err)

	rslt, err := model.Fit()
	require.NoError(t, err)
	require.Equal(t, 1.0, rslt.Scale())

	lp, err := rslt.Predict([][]statmodel.Dtype{{0.1, 0.5, 0.9}}, []string{"x"})
	require.NoError(t, err)
	for i, v := range []float64{0.1, 0.5, 0.9} {
		require.InDelta(t, 1+math.Sin(3*v), lp[0][i], 0.15)
	}
}

func TestFitMultinomial(t *testing.T) {

	n := 300
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = float64((i*17)%n) / float64(n)
		c := math.Floor(3 * x[i])
		if i%3 == 0 {
			c = math.Mod(c+1, 3)
		}
		y[i] = c
	}

	st := NewSmoothTerm("x")
	st.NumKnots = 5
	st.Scale = 100

	model, err := NewGAM([][]statmodel.Dtype{y, x}, []string{"y", "x"}, "y").
		Family(glm.NewFamily(glm.MultinomialFamily)).Smooth(st).Done()
	require.NoError(t, err)

	cs := model.Columns()
	require.Equal(t, 3, cs.NumClass())
	require.Equal(t, 3*cs.PerClass(), model.NumParams())
	require.Equal(t, "x_0:1", model.Xnames()[cs.PerClass()])

	rslt, err := model.Fit()
	require.NoError(t, err)
	require.Nil(t, rslt.StdErr())

	grad := make([]float64, model.NumParams())
	model.Engine().Gradient(rslt.Params(), grad)
	_, err = cs.Augment(grad, nil, 0, rslt.Params(), nil)
	require.NoError(t, err)
	require.Less(t, floats.Norm(grad, math.Inf(1)), 1e-3)

	// The most frequent class in each third of the range has the
	// largest linear predictor.
	lp, err := rslt.Predict([][]statmodel.Dtype{{0.15, 0.5, 0.85}}, []string{"x"})
	require.NoError(t, err)
	require.Len(t, lp, 3)
	for i := 0; i < 3; i++ {
		best := 0
		for c := 1; c < 3; c++ {
			if lp[c][i] > lp[best][i] {
				best = c
			}
		}
		require.Equal(t, i, best)
	}

	require.Len(t, rslt.ClassParams(2), cs.PerClass())
	_ = rslt.Summary().String()
}

func TestModelErrors(t *testing.T) {

	data, names := smoothData(100)

	_, err := NewGAM(data, names, "w").Done()
	require.Error(t, err)

	st := NewSmoothTerm("x")
	st.NumKnots = 2
	_, err = NewGAM(data, names, "y").Smooth(st).Done()
	require.Error(t, err)

	_, err = NewGAM(data, names, "y").Smooth(NewSmoothTerm("q")).Done()
	require.Error(t, err)

	_, err = NewGAM(data, names, "y").Family(glm.NewFamily(glm.PoissonFamily)).
		Link(glm.NewLink(glm.LogitLink)).Done()
	require.Error(t, err)

	// Non-integer class labels
	_, err = NewGAM(data, names, "y").Family(glm.NewFamily(glm.MultinomialFamily)).Done()
	require.Error(t, err)

	_, err = NewGAM(data, names, "y").ElasticNet(1.5, 0.1).Done()
	require.Error(t, err)
	_, err = NewGAM(data, names, "y").ElasticNet(0.5, -1).Done()
	require.Error(t, err)

	y := make([]float64, 100)
	for i := range y {
		y[i] = float64(i % 3)
	}
	_, err = NewGAM([][]statmodel.Dtype{y, data[1]}, []string{"y", "x"}, "y").
		Family(glm.NewFamily(glm.MultinomialFamily)).ElasticNet(0.5, 0.1).Done()
	require.Error(t, err)
}

// A failed Done leaves the model as it was configured.
func TestDoneRetry(t *testing.T) {

	data, names := smoothData(100)
	st := NewSmoothTerm("x")
	st.NumKnots = 1000

	model := NewGAM(data, names, "y").Smooth(st)
	for i := 0; i < 2; i++ {
		_, err := model.Done()
		require.Error(t, err)
		require.Nil(t, model.linear)
		require.Nil(t, model.terms)
	}

	model.smooth[0].NumKnots = 6
	model, err := model.Done()
	require.NoError(t, err)
	require.Equal(t, []string{"z", "x_0", "x_1", "x_2", "x_3", "x_4", "icept"}, model.Xnames())
}

func TestFitBinomialCloglog(t *testing.T) {

	n := 800
	x := make([]float64, n)
	y := make([]float64, n)
	f := func(v float64) float64 { return -0.5 + math.Sin(2*math.Pi*v) }
	for i := range x {
		x[i] = float64((i*31)%n) / float64(n-1)
		p := 1 - math.Exp(-math.Exp(f(x[i])))
		// A low discrepancy sequence in place of uniform draws
		u := math.Mod(0.5+float64(i)*0.6180339887498949, 1)
		if u < p {
			y[i] = 1
		}
	}

	st := NewSmoothTerm("x")
	st.NumKnots = 6
	model, err := NewGAM([][]statmodel.Dtype{y, x}, []string{"y", "x"}, "y").
		Family(glm.NewFamily(glm.BinomialFamily)).Link(glm.NewLink(glm.CloglogLink)).
		Smooth(st).Done()
	require.NoError(t, err)
	require.Equal(t, glm.CloglogLink, model.Engine().GetLink().TypeCode)

	rslt, err := model.Fit()
	require.NoError(t, err)
	require.True(t, rslt.Converged())
	require.Equal(t, 1.0, rslt.Scale())

	grad := make([]float64, model.NumParams())
	model.Engine().Gradient(rslt.Params(), grad)
	_, err = model.Columns().Augment(grad, nil, 0, rslt.Params(), nil)
	require.NoError(t, err)
	require.Less(t, floats.Norm(grad, math.Inf(1)), 1e-5)

	grid := []float64{0.25, 0.5, 0.75}
	lp, err := rslt.Predict([][]statmodel.Dtype{grid}, []string{"x"})
	require.NoError(t, err)
	for i, v := range grid {
		require.InDelta(t, f(v), lp[0][i], 0.5)
	}

	require.True(t, strings.Contains(rslt.Summary().String(), model.Engine().GetLink().Name))
}

// The elastic net drops coefficients, and the fit satisfies the
// subgradient conditions of the full penalized objective.
func TestFitElasticNet(t *testing.T) {

	data, names := smoothData(300)
	alpha := 0.8

	var sparse bool
	for _, lambda := range []float64{1e-4, 1e-3, 3e-3, 1e-2, 3e-2, 0.1, 0.3} {

		st := NewSmoothTerm("x")
		st.NumKnots = 8
		model, err := NewGAM(data, names, "y").Smooth(st).ElasticNet(alpha, lambda).Done()
		require.NoError(t, err)
		cs := model.Columns()
		n := cs.NumCoeff()
		icept := cs.InterceptIndex(0)

		rslt, err := model.Fit()
		require.NoError(t, err)
		params := rslt.Params()

		// The active set holds the nonzero coefficients and the intercept.
		active := rslt.Active()
		require.NotNil(t, active)
		for g := 0; g < n; g++ {
			_, ok := active.Pos(g)
			require.Equal(t, params[g] != 0 || g == icept, ok)
		}

		nobs := float64(model.NumObs())
		l1 := nobs * lambda * alpha
		l2 := nobs * lambda * (1 - alpha)
		grad := make([]float64, n)
		model.Engine().Gradient(params, grad)
		_, err = cs.Augment(grad, nil, 0, params, nil)
		require.NoError(t, err)
		for g, b := range params {
			r := grad[g]
			if g == icept {
				require.InDelta(t, 0, r, 1e-4)
				continue
			}
			r += l2 * b
			switch {
			case b > 0:
				require.InDelta(t, -l1, r, 1e-4)
			case b < 0:
				require.InDelta(t, l1, r, 1e-4)
			default:
				require.LessOrEqual(t, math.Abs(r), l1+1e-4)
			}
		}

		// The dropped coefficients are skipped by the penalty over the
		// active set, which agrees with the full penalty.
		m := active.Len()
		agrad := make([]float64, m)
		aobj, err := cs.Augment(agrad, make([]float64, m*m), 0, params, active)
		require.NoError(t, err)
		fgrad := make([]float64, n)
		fobj, err := cs.Augment(fgrad, nil, 0, params, nil)
		require.NoError(t, err)
		require.InDelta(t, fobj, aobj, 1e-10)
		for i, g := range active.Indices() {
			require.InDelta(t, fgrad[g], agrad[i], 1e-10)
		}

		se := rslt.StdErr()
		require.Len(t, se, n)
		for g := 0; g < n; g++ {
			if _, ok := active.Pos(g); !ok {
				require.Equal(t, 0.0, se[g])
			} else {
				require.Greater(t, se[g], 0.0)
			}
		}
		require.LessOrEqual(t, rslt.EDF(), float64(m)+1e-8)

		idx, err := cs.Indices(0, 0)
		require.NoError(t, err)
		var kept int
		for _, g := range idx {
			if params[g] != 0 {
				kept++
			}
		}
		if kept > 0 && kept < len(idx) {
			sparse = true
		}
	}
	require.True(t, sparse, "no penalty strength dropped part of the smooth")

	// A heavy L1 penalty leaves only the intercept.
	model, err := NewGAM(data, names, "y").Smooth(NewSmoothTerm("x")).ElasticNet(1, 100).Done()
	require.NoError(t, err)
	rslt, err := model.Fit()
	require.NoError(t, err)
	require.Equal(t, 1, rslt.Active().Len())
	params := rslt.Params()
	require.InDelta(t, floats.Sum(data[0])/300, params[len(params)-1], 1e-8)
	require.InDelta(t, 1, rslt.EDF(), 1e-8)
}

// Fitting with a smooth coefficient removed leaves the penalized
// gradient zero over the remaining coefficients.
func TestFitActive(t *testing.T) {

	data, names := smoothData(200)
	st := NewSmoothTerm("x")
	st.NumKnots = 6

	model, err := NewGAM(data, names, "y").Smooth(st).Done()
	require.NoError(t, err)

	cs := model.Columns()
	n := cs.NumCoeff()
	idx, err := cs.Indices(0, 0)
	require.NoError(t, err)

	var act []int
	for g := 0; g < n; g++ {
		if g != idx[2] {
			act = append(act, g)
		}
	}
	active, err := statmodel.NewActiveSet(act, n)
	require.NoError(t, err)

	fr, err := model.Engine().Active(active).FitIRLS(nil, cs)
	require.NoError(t, err)
	require.Equal(t, 0.0, fr.Params[idx[2]])
	require.Len(t, fr.Hessian, (n-1)*(n-1))

	full := make([]float64, n)
	model.Engine().Gradient(fr.Params, full)
	grad := make([]float64, n-1)
	for i, g := range act {
		grad[i] = full[g]
	}
	_, err = cs.Augment(grad, nil, 0, fr.Params, active)
	require.NoError(t, err)
	require.Less(t, floats.Norm(grad, math.Inf(1)), 1e-6)
}
