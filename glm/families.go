package glm

import (
	"fmt"
	"math"
)

// FamilyType is the type of GLM family used in a model.
type FamilyType uint8

// BinomialFamily, ... are families for a GLM.
const (
	BinomialFamily FamilyType = iota
	PoissonFamily
	GaussianFamily
	MultinomialFamily
)

// DevianceFunc evaluates and returns the deviance for a GLM.  The arguments
// are the data, the mean values and the weights.  The weights may be nil in
// which case all weights are taken to be 1.
type DevianceFunc func([]float64, []float64, []float64) float64

// Family represents a generalized linear model family.
type Family struct {

	// The name of the family
	Name string

	// The numeric code for the family
	TypeCode FamilyType

	// The deviance function for the family, nil for the multinomial
	// family which is handled directly by the GLM.
	Deviance DevianceFunc

	// The names of valid links for this family.  The first listed
	// link is the canonical link.
	validLinks []LinkType

	// The variance function
	variance VarianceType

	// If true the scale parameter is 1, else it is estimated
	fixedScale bool
}

// NewFamily returns the family object of the given type.
func NewFamily(fam FamilyType) *Family {

	switch fam {
	case PoissonFamily:
		return &poisson
	case BinomialFamily:
		return &binomial
	case GaussianFamily:
		return &gaussian
	case MultinomialFamily:
		return &multinomial
	default:
		msg := fmt.Sprintf("Unknown family: %v\n", fam)
		panic(msg)
	}
}

var poisson = Family{
	Name:       "Poisson",
	TypeCode:   PoissonFamily,
	Deviance:   poissonDeviance,
	validLinks: []LinkType{LogLink, IdentityLink},
	variance:   IdentityVar,
	fixedScale: true,
}

var binomial = Family{
	Name:       "Binomial",
	TypeCode:   BinomialFamily,
	Deviance:   binomialDeviance,
	validLinks: []LinkType{LogitLink, CloglogLink, LogLink},
	variance:   BinomialVar,
	fixedScale: true,
}

var gaussian = Family{
	Name:       "Gaussian",
	TypeCode:   GaussianFamily,
	Deviance:   gaussianDeviance,
	validLinks: []LinkType{IdentityLink, LogLink},
	variance:   ConstantVar,
}

var multinomial = Family{
	Name:       "Multinomial",
	TypeCode:   MultinomialFamily,
	fixedScale: true,
}

// IsValidLink returns true or false based on whether the link is
// valid for the family.
func (fam *Family) IsValidLink(link *Link) bool {

	for _, q := range fam.validLinks {
		if link.TypeCode == q {
			return true
		}
	}

	return false
}

// FixedScale returns true if the scale parameter of the family is 1.
func (fam *Family) FixedScale() bool {
	return fam.fixedScale
}

func poissonDeviance(y []float64, mn []float64, wgt []float64) float64 {

	var dev float64
	var w float64 = 1

	for i := range y {
		if wgt != nil {
			w = wgt[i]
		}

		dev += 2 * w * (mn[i] - y[i])
		if y[i] > 0 {
			dev += 2 * w * y[i] * math.Log(y[i]/mn[i])
		}
	}

	return dev
}

func binomialDeviance(y []float64, mn []float64, wgt []float64) float64 {

	var dev float64
	var w float64 = 1

	for i := range y {
		if wgt != nil {
			w = wgt[i]
		}

		if y[i] > 0 {
			dev -= 2 * w * y[i] * math.Log(mn[i])
		}
		if y[i] < 1 {
			dev -= 2 * w * (1 - y[i]) * math.Log(1-mn[i])
		}
	}

	return dev
}

func gaussianDeviance(y []float64, mn []float64, wgt []float64) float64 {

	var dev float64
	var w float64 = 1

	for i := range y {
		if wgt != nil {
			w = wgt[i]
		}

		r := y[i] - mn[i]
		dev += w * r * r
	}

	return dev
}
