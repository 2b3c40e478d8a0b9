package jsoniq

import (
	"cmp"
	"strings"

	"github.com/shopspring/decimal"
)

// Collator orders strings under a collation.
type Collator interface {
	CompareString(a, b string) int
}

// CompareAtomics returns an integer comparing atomics a and b.  Null is
// less than every other atomic, numbers compare across numeric types,
// and strings compare with coll, or by codepoint when coll is nil.  Other
// mixed-type comparisons fail with UnexpectedType.
func CompareAtomics(a, b Item, coll Collator) (int, error) {
	aid, bid := a.Type(), b.Type()
	switch {
	case aid == IDNull && bid == IDNull:
		return 0, nil
	case aid == IDNull:
		return -1, nil
	case bid == IDNull:
		return 1, nil
	case aid.IsNumeric() && bid.IsNumeric():
		return compareNumbers(a, b), nil
	case aid.IsDuration() && bid.IsDuration():
		return cmp.Compare(a.(Duration).OrderKey(), b.(Duration).OrderKey()), nil
	case aid != bid:
		return 0, NewError(UnexpectedType, Loc{}, "cannot compare %s with %s", aid, bid)
	}
	switch a := a.(type) {
	case Boolean:
		return cmp.Compare(boolRank(bool(a)), boolRank(bool(b.(Boolean)))), nil
	case String:
		if coll == nil {
			return strings.Compare(string(a), string(b.(String))), nil
		}
		return coll.CompareString(string(a), string(b.(String))), nil
	case Temporal:
		return cmp.Compare(a.OrderKey(), b.(Temporal).OrderKey()), nil
	}
	return 0, NewError(UnexpectedType, Loc{}, "cannot compare values of type %s", aid)
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

func compareNumbers(a, b Item) int {
	switch a := a.(type) {
	case Integer:
		switch b := b.(type) {
		case Integer:
			return cmp.Compare(a, b)
		case Decimal:
			return decimal.NewFromInt(int64(a)).Cmp(b.Decimal)
		}
	case Decimal:
		switch b := b.(type) {
		case Integer:
			return a.Cmp(decimal.NewFromInt(int64(b)))
		case Decimal:
			return a.Cmp(b.Decimal)
		}
	}
	af, _ := ToFloat64(a)
	bf, _ := ToFloat64(b)
	// cmp.Compare orders NaN before every other number.
	return cmp.Compare(af, bf)
}

// ToFloat64 converts a numeric item to float64.
func ToFloat64(item Item) (float64, bool) {
	switch item := item.(type) {
	case Integer:
		return float64(item), true
	case Decimal:
		return item.InexactFloat64(), true
	case Float:
		return float64(item), true
	case Double:
		return float64(item), true
	}
	return 0, false
}

// ToDecimal converts an integer or decimal item to a decimal.
func ToDecimal(item Item) (decimal.Decimal, bool) {
	switch item := item.(type) {
	case Integer:
		return decimal.NewFromInt(int64(item)), true
	case Decimal:
		return item.Decimal, true
	}
	return decimal.Decimal{}, false
}
