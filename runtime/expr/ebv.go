package expr

import (
	"math"

	"github.com/brimdata/jsoniq"
)

// EffectiveBooleanValue returns the effective boolean value of items.
func EffectiveBooleanValue(items []jsoniq.Item, loc jsoniq.Loc) (bool, error) {
	if len(items) == 0 {
		return false, nil
	}
	first := items[0]
	if !first.Type().IsAtomic() {
		return true, nil
	}
	if len(items) > 1 {
		return false, jsoniq.NewError(jsoniq.InvalidEffectiveBoolean, loc, "effective boolean value is not defined for a sequence of more than one atomic item")
	}
	switch item := first.(type) {
	case jsoniq.Null:
		return false, nil
	case jsoniq.Boolean:
		return bool(item), nil
	case jsoniq.String:
		return item != "", nil
	case jsoniq.Integer:
		return item != 0, nil
	case jsoniq.Decimal:
		return !item.IsZero(), nil
	case jsoniq.Float:
		return item != 0 && !math.IsNaN(float64(item)), nil
	case jsoniq.Double:
		return item != 0 && !math.IsNaN(float64(item)), nil
	}
	return false, jsoniq.NewError(jsoniq.InvalidEffectiveBoolean, loc, "effective boolean value is not defined for %s", first.Type())
}
