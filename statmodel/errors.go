package statmodel

import "github.com/cockroachdb/errors"

// ErrDimensionMismatch indicates that a coefficient vector, accumulator,
// or coefficient index does not agree with the layout of a model.
var ErrDimensionMismatch = errors.New("statmodel: dimension mismatch")
