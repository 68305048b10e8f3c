/*
This example fits a generalized additive model with one smooth term to
simulated data and plots the fitted smooth along with the basis
functions of the term.

The settings are read from a YAML file given with -config, and any
setting can be overridden with an environment variable, e.g.

	SMOOTHPLOT_KNOTS=12 go run . -config config.yaml

Without -config the settings come from the environment and the
defaults.
*/

package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"sort"

	"github.com/ilyakaznacheev/cleanenv"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/kshedden/gam/gam"
	"github.com/kshedden/gam/glm"
	"github.com/kshedden/gam/statmodel"
)

// Config holds the settings of the example.
type Config struct {
	N        int     `yaml:"n" env:"SMOOTHPLOT_N" env-default:"500"`
	Seed     uint64  `yaml:"seed" env:"SMOOTHPLOT_SEED" env-default:"1"`
	Family   string  `yaml:"family" env:"SMOOTHPLOT_FAMILY" env-default:"gaussian"`
	Noise    float64 `yaml:"noise" env:"SMOOTHPLOT_NOISE" env-default:"0.3"`
	Knots    int     `yaml:"knots" env:"SMOOTHPLOT_KNOTS" env-default:"8"`
	Scale    float64 `yaml:"scale" env:"SMOOTHPLOT_SCALE" env-default:"1"`
	Center   bool    `yaml:"center" env:"SMOOTHPLOT_CENTER" env-default:"true"`
	Output   string  `yaml:"output" env:"SMOOTHPLOT_OUTPUT" env-default:"smooth.png"`
	BasisOut string  `yaml:"basis_output" env:"SMOOTHPLOT_BASIS_OUTPUT" env-default:"basis.png"`
	Verbose  bool    `yaml:"verbose" env:"SMOOTHPLOT_VERBOSE"`
}

func loadConfig(path string) (*Config, error) {
	var cfg Config
	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func truth(x float64) float64 {
	return math.Sin(4*x) + x*x/4
}

// simulate returns the outcome and covariate columns.
func simulate(cfg *Config) ([]float64, []float64, *glm.Family) {

	rng := rand.New(rand.NewSource(cfg.Seed))
	x := make([]float64, cfg.N)
	y := make([]float64, cfg.N)

	fam := glm.NewFamily(glm.GaussianFamily)
	if cfg.Family == "poisson" {
		fam = glm.NewFamily(glm.PoissonFamily)
	}

	ux := distuv.Uniform{Min: -2, Max: 2, Src: rng}
	for i := range x {
		x[i] = ux.Rand()
		f := truth(x[i])
		if fam.TypeCode == glm.PoissonFamily {
			y[i] = distuv.Poisson{Lambda: math.Exp(f), Src: rng}.Rand()
		} else {
			y[i] = distuv.Normal{Mu: f, Sigma: cfg.Noise, Src: rng}.Rand()
		}
	}

	return y, x, fam
}

func smoothPlot(x, f []float64, filename string) {

	ii := make([]int, len(x))
	for i := range ii {
		ii[i] = i
	}
	sort.Slice(ii, func(a, b int) bool { return x[ii[a]] < x[ii[b]] })

	fit := make(plotter.XYs, len(x))
	tru := make(plotter.XYs, len(x))
	for j, i := range ii {
		fit[j].X = x[i]
		fit[j].Y = f[i]
		tru[j].X = x[i]
		tru[j].Y = truth(x[i])
	}

	p := plot.New()
	p.Title.Text = "Fitted smooth"
	p.X.Label.Text = "x"
	p.Y.Label.Text = "Linear predictor"

	if err := plotutil.AddLines(p, "Fitted", fit, "True", tru); err != nil {
		panic(err)
	}

	if err := p.Save(6*vg.Inch, 4*vg.Inch, filename); err != nil {
		panic(err)
	}
}

func basisPlot(tm *gam.Term, filename string) {

	knots := tm.Knots()
	lo, hi := knots[0], knots[len(knots)-1]
	m := 200
	grid := make([]float64, m)
	for i := range grid {
		grid[i] = lo + (hi-lo)*float64(i)/float64(m-1)
	}
	b := tm.Basis().Matrix(grid)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Cubic regression spline basis, %d knots", len(knots))
	p.X.Label.Text = "x"

	var vs []interface{}
	for j := range knots {
		pts := make(plotter.XYs, m)
		for i := range grid {
			pts[i].X = grid[i]
			pts[i].Y = b.At(i, j)
		}
		vs = append(vs, fmt.Sprintf("b%d", j), pts)
	}

	if err := plotutil.AddLines(p, vs...); err != nil {
		panic(err)
	}

	if err := p.Save(6*vg.Inch, 4*vg.Inch, filename); err != nil {
		panic(err)
	}
}

func main() {

	cfgpath := flag.String("config", "", "YAML configuration file")
	flag.Parse()

	cfg, err := loadConfig(*cfgpath)
	if err != nil {
		log.Fatal(err)
	}

	y, x, fam := simulate(cfg)

	st := gam.NewSmoothTerm("x")
	st.NumKnots = cfg.Knots
	st.Scale = cfg.Scale
	st.Center = cfg.Center

	model := gam.NewGAM([][]statmodel.Dtype{y, x}, []string{"y", "x"}, "y").Family(fam).Smooth(st)
	if cfg.Verbose {
		model = model.Log(log.New(os.Stderr, "", log.Ltime))
	}
	model, err = model.Done()
	if err != nil {
		log.Fatal(err)
	}

	rslt, err := model.Fit()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Print(rslt.Summary().String())

	lp, err := rslt.Predict([][]statmodel.Dtype{x}, []string{"x"})
	if err != nil {
		log.Fatal(err)
	}

	smoothPlot(x, lp[0], cfg.Output)
	basisPlot(model.Terms()[0], cfg.BasisOut)
}
