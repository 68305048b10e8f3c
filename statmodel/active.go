package statmodel

import (
	"sort"

	"github.com/cockroachdb/errors"
)

// ActiveSet is the ordered set of coefficient positions that remain in a
// model after some coefficients have been dropped, e.g. along a
// regularization path.  Accumulators sized for the active set are
// indexed by the rank of a coefficient in the set.
type ActiveSet struct {
	idx []int
}

// NewActiveSet returns the active set containing the given global
// coefficient positions.  Every position must lie in [0, numCoeff).
// Repeated positions are collapsed.
func NewActiveSet(idx []int, numCoeff int) (*ActiveSet, error) {

	u := append([]int(nil), idx...)
	sort.Ints(u)

	j := 0
	for i, v := range u {
		if v < 0 || v >= numCoeff {
			return nil, errors.Wrapf(ErrDimensionMismatch, "active position %d outside [0, %d)", v, numCoeff)
		}
		if i == 0 || v != u[j-1] {
			u[j] = v
			j++
		}
	}

	return &ActiveSet{idx: u[0:j]}, nil
}

// Len returns the number of active coefficients.
func (a *ActiveSet) Len() int {
	return len(a.idx)
}

// Pos returns the rank of global position g in the active set, and false
// if g is not active.
func (a *ActiveSet) Pos(g int) (int, bool) {
	i := sort.SearchInts(a.idx, g)
	if i < len(a.idx) && a.idx[i] == g {
		return i, true
	}
	return -1, false
}

// Indices returns a copy of the active global positions in increasing
// order.
func (a *ActiveSet) Indices() []int {
	return append([]int(nil), a.idx...)
}
