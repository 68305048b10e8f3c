/*
Package gam fits generalized additive models in which some covariates
enter through penalized cubic regression splines.

A SmoothTerm describes how one covariate is expanded: the number of
knots or an explicit knot sequence, the basis type, the penalty scale and
whether the basis is centered.  BuildTerms constructs the basis, penalty
and centering transform of every term.  A ColumnSet assigns each term a
block of coefficients within the coefficient vector of each response
class, and its Augment method adds the roughness penalty of all terms to
the objective, gradient and Hessian computed by a GLM engine.

The coefficients of one class are laid out as the linear covariates,
followed by the smooth term blocks in the order the terms were given,
followed by the intercept.  Multinomial models repeat this layout once
per class.

GAM ties these pieces to the glm package.  Single-class families are fit
by penalized IRLS, the multinomial family by gradient optimization of the
penalized log-likelihood.  An elastic net penalty may be added to the
roughness penalties; coefficients that its L1 part sets to zero leave the
active set of the fit.
*/
package gam
