package expr

import (
	"errors"
	"slices"

	"github.com/brimdata/jsoniq"
	"github.com/brimdata/jsoniq/order"
	"github.com/brimdata/jsoniq/pkg/collation"
	"github.com/brimdata/jsoniq/runtime"
)

// SortExpr is one key of an order by clause.
type SortExpr struct {
	Eval      runtime.Iterator
	Order     order.Which
	Empty     order.Empty
	Collation string
}

func NewSortExpr(eval runtime.Iterator, o order.Which, e order.Empty, collation string) SortExpr {
	return SortExpr{Eval: eval, Order: o, Empty: e, Collation: collation}
}

// Key holds the value of each sort expression for one tuple.  A nil entry
// is the empty sequence.
type Key []jsoniq.Item

type Comparator struct {
	exprs      []SortExpr
	least      []bool
	collators  []jsoniq.Collator
	collations []func(a, b string) int
}

// NewComparator returns a comparator for exprs in which a key with
// EmptyDefault places the empty sequence least when defaultLeast is true.
// Unknown collations are an error.
func NewComparator(defaultLeast bool, exprs ...SortExpr) (*Comparator, error) {
	c := &Comparator{exprs: slices.Clone(exprs)}
	for _, e := range exprs {
		coll, err := collation.Lookup(e.Collation)
		if err != nil {
			return nil, jsoniq.WithLoc(err, e.Eval.Loc())
		}
		c.least = append(c.least, e.Empty.Least(defaultLeast))
		c.collators = append(c.collators, coll)
		c.collations = append(c.collations, collation.Compare(coll))
	}
	return c, nil
}

func (c *Comparator) Exprs() []SortExpr {
	return c.exprs
}

// EmptyLeast reports whether the empty sequence sorts below every value of
// key k.
func (c *Comparator) EmptyLeast(k int) bool {
	return c.least[k]
}

// Collation returns the string comparison of key k.
func (c *Comparator) Collation(k int) func(a, b string) int {
	return c.collations[k]
}

// EvalKey evaluates every sort expression in dctx.  Each must yield at most
// one atomic item.
func (c *Comparator) EvalKey(dctx *runtime.DynamicContext) (Key, error) {
	key := make(Key, 0, len(c.exprs))
	for _, e := range c.exprs {
		item, err := runtime.MaterializeAtMostOne(e.Eval, dctx)
		if err != nil {
			if errors.Is(err, runtime.ErrMoreThanOneItem) {
				return nil, jsoniq.NewError(jsoniq.UnexpectedType, e.Eval.Loc(), "order by keys must be at most one item")
			}
			return nil, err
		}
		if item != nil && !item.Type().IsAtomic() {
			return nil, jsoniq.NewError(jsoniq.UnexpectedType, e.Eval.Loc(), "order by keys must be atomics")
		}
		key = append(key, item)
	}
	return key, nil
}

// Compare returns an integer comparing two keys: 0 if a==b, -1 if a sorts
// before b and +1 otherwise.
func (c *Comparator) Compare(a, b Key) (int, error) {
	for k, e := range c.exprs {
		v, err := c.compareColumn(k, a[k], b[k])
		if err != nil {
			return 0, jsoniq.WithLoc(err, e.Eval.Loc())
		}
		if e.Order == order.Desc {
			v = -v
		}
		if v != 0 {
			return v, nil
		}
	}
	return 0, nil
}

func (c *Comparator) compareColumn(k int, a, b jsoniq.Item) (int, error) {
	switch {
	case a == nil && b == nil:
		return 0, nil
	case a == nil:
		if c.least[k] {
			return -1, nil
		}
		return 1, nil
	case b == nil:
		if c.least[k] {
			return 1, nil
		}
		return -1, nil
	}
	return jsoniq.CompareAtomics(a, b, c.collators[k])
}

// SortStable sorts keyed values stably by key.  It stops at the first
// comparison error.
func SortStable[T any](c *Comparator, vals []T, key func(T) Key) error {
	var err error
	slices.SortStableFunc(vals, func(a, b T) int {
		if err != nil {
			return 0
		}
		v, cerr := c.Compare(key(a), key(b))
		if cerr != nil {
			err = cerr
		}
		return v
	})
	return err
}
