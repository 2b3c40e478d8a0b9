// Package coerce unifies the types found in an order by column.
package coerce

import (
	"errors"

	"github.com/brimdata/jsoniq"
)

var ErrIncompatibleTypes = errors.New("incompatible types")

// Unify returns the type to which values of types a and b are promoted for
// comparison.  Numeric types widen along integer, decimal, float, double
// and the duration types widen to duration.  Unify is commutative.
func Unify(a, b jsoniq.TypeID) (jsoniq.TypeID, error) {
	switch {
	case a == b:
		return a, nil
	case a.IsNumeric() && b.IsNumeric():
		return max(a, b), nil
	case a.IsDuration() && b.IsDuration():
		return jsoniq.IDDuration, nil
	}
	return 0, ErrIncompatibleTypes
}

// UnifyAll folds Unify over types.  It returns false when types is empty.
func UnifyAll(types []jsoniq.TypeID) (jsoniq.TypeID, bool, error) {
	if len(types) == 0 {
		return 0, false, nil
	}
	typ := types[0]
	for _, t := range types[1:] {
		var err error
		if typ, err = Unify(typ, t); err != nil {
			return 0, false, err
		}
	}
	return typ, true, nil
}
