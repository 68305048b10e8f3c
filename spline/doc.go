/*
Package spline constructs cubic regression spline bases and their
roughness penalties for use as smooth terms in penalized regression.

A smooth term is built from a knot sequence.  Knots are either supplied
by the caller or placed at equal-frequency quantiles of the data
(SelectKnots).  NewBasis solves the banded system B X = D that links the
spline values at the knots to their second derivatives, the solution
(BinvD) determines both the basis functions (Basis.Eval, Basis.Matrix) and
the penalty on the integrated squared second derivative (Basis.Penalty).

The basis of a natural cubic spline contains the constant function, so it
is collinear with a model intercept.  NewCentering constructs the
reparameterization that removes this direction from a basis and its
penalty.
*/
package spline
