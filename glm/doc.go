/*
Package glm computes likelihood quantities for generalized linear models
with a dense design matrix, and fits such models with an optional
quadratic penalty on the coefficients.

The Gaussian, binomial, Poisson and multinomial families are supported.
For the single-class families the objective is half of the deviance,
its gradient and expected Hessian (the weighted Gram matrix X'WX) follow
from the link and variance functions.  For the multinomial family the
coefficients of the K classes are stored in consecutive blocks and the
objective is the negative log-likelihood of the softmax model.

A Penalizer adds its contribution to the objective, gradient and
Hessian.  FitIRLS solves the penalized weighted least squares problem at
every iteration, FitGradient minimizes the penalized objective using
gonum's optimize package.  L2 weights add a ridge penalty to either fit.
L1 weights require FitIRLS, which then solves each step by coordinate
descent.
*/
package glm
