package glm

import (
	"fmt"
)

// VarianceType is used to specify a GLM variance function.
type VarianceType uint8

// BinomialVar, IdentityVar and ConstantVar are the variance functions of
// the binomial, Poisson and Gaussian families.
const (
	BinomialVar VarianceType = iota
	IdentityVar
	ConstantVar
)

// Variance represents a GLM variance function.
type Variance struct {
	Name string
	Var  VecFunc
}

// NewVariance returns the variance function object of the given type.
func NewVariance(vartype VarianceType) *Variance {

	switch vartype {
	case BinomialVar:
		return &binomVariance
	case IdentityVar:
		return &identVariance
	case ConstantVar:
		return &constVariance
	default:
		msg := fmt.Sprintf("Unknown variance function: %d\n", vartype)
		panic(msg)
	}
}

var binomVariance = Variance{
	Name: "Binomial",
	Var:  binomVar,
}

var identVariance = Variance{
	Name: "Identity",
	Var:  identVar,
}

var constVariance = Variance{
	Name: "Constant",
	Var:  constVar,
}

func binomVar(mn []float64, v []float64) {
	for i, p := range mn {
		v[i] = p * (1 - p)
	}
}

func identVar(mn []float64, v []float64) {
	copy(v, mn)
}

func constVar(mn []float64, v []float64) {
	one(v)
}
