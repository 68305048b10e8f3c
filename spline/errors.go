package spline

import "github.com/cockroachdb/errors"

// ErrInvalidKnots is returned when a knot sequence is malformed or when
// too few knots, or too few distinct data values, are available.
var ErrInvalidKnots = errors.New("spline: invalid knot configuration")

// ErrDegenerateBasis is returned when a basis cannot be centered because
// its column means are all zero.
var ErrDegenerateBasis = errors.New("spline: degenerate basis")

// ErrUnsupportedBasis is returned for an unknown BasisType.
var ErrUnsupportedBasis = errors.New("spline: unsupported basis type")

// ErrInvalidScale is returned when a penalty scale is negative or not finite.
var ErrInvalidScale = errors.New("spline: invalid penalty scale")

// ErrInfiniteValue is returned when a covariate used to construct a
// basis holds an infinite value.
var ErrInfiniteValue = errors.New("spline: infinite covariate value")
