package expr_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/brimdata/jsoniq"
	"github.com/brimdata/jsoniq/frame/sqlite"
	"github.com/brimdata/jsoniq/order"
	"github.com/brimdata/jsoniq/pkg/collation"
	"github.com/brimdata/jsoniq/runtime"
	"github.com/brimdata/jsoniq/runtime/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var x = jsoniq.NewName("x")

func ints(vals ...int64) []jsoniq.Item {
	items := make([]jsoniq.Item, 0, len(vals))
	for _, v := range vals {
		items = append(items, jsoniq.Integer(v))
	}
	return items
}

func parse(t *testing.T, text string) []jsoniq.Item {
	items, err := jsoniq.ParseJSONSequence(text)
	require.NoError(t, err)
	return items
}

func distributed(t *testing.T) *runtime.DynamicContext {
	engine, err := sqlite.Open("", nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	return runtime.NewRootContext(context.Background(), runtime.Config{Engine: engine})
}

func TestVar(t *testing.T) {
	root := runtime.NewRootContext(context.Background(), runtime.Config{})
	root.AddLocalVariable(x, ints(1, 2))
	v := expr.NewVar(x, jsoniq.ModeUnset, jsoniq.NewLoc(1, 1))
	assert.Equal(t, jsoniq.ModeLocal, v.Mode())
	items, err := runtime.Materialize(v, root)
	require.NoError(t, err)
	assert.Equal(t, ints(1, 2), items)
	assert.Equal(t, "{$x:full}", v.Dependencies().String())

	_, err = runtime.Materialize(expr.NewVar(jsoniq.NewName("nope"), jsoniq.ModeLocal, jsoniq.NewLoc(3, 4)), root)
	require.Error(t, err)
	assert.True(t, errors.Is(err, jsoniq.AbsentPartOfDynamicContext))
	assert.Contains(t, err.Error(), "line 3, column 4")
}

func TestCountVar(t *testing.T) {
	root := runtime.NewRootContext(context.Background(), runtime.Config{})
	root.AddVariableCount(x, 7)
	c := expr.NewCountVar(x, jsoniq.Loc{})
	assert.False(t, c.HasNext())
	items, err := runtime.Materialize(c, root)
	require.NoError(t, err)
	assert.Equal(t, ints(7), items)
	assert.Equal(t, "{$x:count}", c.Dependencies().String())
}

func TestLookup(t *testing.T) {
	root := runtime.NewRootContext(context.Background(), runtime.Config{})
	in := expr.NewLiteral(jsoniq.Loc{}, parse(t, `{"a":1} 2 {"b":3} {"a":[4]}`)...)
	items, err := runtime.Materialize(expr.NewLookup(in, "a", jsoniq.Loc{}), root)
	require.NoError(t, err)
	assert.Equal(t, `1
[4]
`, jsoniq.SerializeSequence(items))
}

func TestComma(t *testing.T) {
	root := runtime.NewRootContext(context.Background(), runtime.Config{})
	c := expr.NewComma(jsoniq.Loc{},
		expr.NewLiteral(jsoniq.Loc{}, ints(1, 2)...),
		expr.NewLiteral(jsoniq.Loc{}),
		expr.NewLiteral(jsoniq.Loc{}, ints(3)...),
	)
	assert.Equal(t, jsoniq.ModeLocal, c.Mode())
	items, err := runtime.Materialize(c, root)
	require.NoError(t, err)
	assert.Equal(t, ints(1, 2, 3), items)
	// Reopening starts over.
	items, err = runtime.Materialize(c, root)
	require.NoError(t, err)
	assert.Equal(t, ints(1, 2, 3), items)
}

func TestCommaRDD(t *testing.T) {
	dctx := distributed(t)
	dctx.AddLocalVariable(x, ints(3, 4))
	c := expr.NewComma(jsoniq.Loc{},
		expr.NewParallelize(expr.NewLiteral(jsoniq.Loc{}, ints(1, 2)...), jsoniq.Loc{}),
		expr.NewVar(x, jsoniq.ModeLocal, jsoniq.Loc{}),
		expr.NewLiteral(jsoniq.Loc{}, jsoniq.String("five")),
	)
	require.Equal(t, jsoniq.ModeRDD, c.Mode())
	rdd, err := c.RDD(dctx)
	require.NoError(t, err)
	items, err := runtime.CollectRDD(dctx, rdd)
	require.NoError(t, err)
	assert.Equal(t, append(ints(1, 2, 3, 4), jsoniq.String("five")), items)

	local, err := runtime.Materialize(c, dctx)
	require.NoError(t, err)
	assert.Equal(t, items, local)
}

func TestPositionAndLast(t *testing.T) {
	root := runtime.NewRootContext(context.Background(), runtime.Config{})
	root.SetPosition(3)
	root.SetLast(9)
	items, err := runtime.Materialize(expr.NewPosition(jsoniq.Loc{}), root)
	require.NoError(t, err)
	assert.Equal(t, ints(3), items)
	items, err = runtime.Materialize(expr.NewLast(jsoniq.Loc{}), root)
	require.NoError(t, err)
	assert.Equal(t, ints(9), items)
}

func TestEffectiveBooleanValue(t *testing.T) {
	dec, err := jsoniq.ParseDecimal("0.0")
	require.NoError(t, err)
	cases := []struct {
		items    []jsoniq.Item
		expected bool
	}{
		{nil, false},
		{[]jsoniq.Item{jsoniq.True}, true},
		{[]jsoniq.Item{jsoniq.String("")}, false},
		{[]jsoniq.Item{jsoniq.String("a")}, true},
		{ints(0), false},
		{ints(2), true},
		{[]jsoniq.Item{dec}, false},
		{[]jsoniq.Item{jsoniq.Double(math.NaN())}, false},
		{[]jsoniq.Item{jsoniq.Null{}}, false},
		{parse(t, `{"a":1} 2`), true},
	}
	for _, c := range cases {
		v, err := expr.EffectiveBooleanValue(c.items, jsoniq.Loc{})
		require.NoError(t, err)
		assert.Equal(t, c.expected, v, "%v", c.items)
	}
	_, err = expr.EffectiveBooleanValue(ints(1, 2), jsoniq.Loc{})
	assert.True(t, errors.Is(err, jsoniq.InvalidEffectiveBoolean))
	_, err = expr.EffectiveBooleanValue([]jsoniq.Item{jsoniq.NewYearMonthDuration(1)}, jsoniq.Loc{})
	assert.True(t, errors.Is(err, jsoniq.InvalidEffectiveBoolean))
}

func TestPrint(t *testing.T) {
	c := expr.NewComma(jsoniq.Loc{},
		expr.NewParallelize(expr.NewLiteral(jsoniq.Loc{}, ints(1, 2)...), jsoniq.Loc{}),
		expr.NewLookup(expr.NewVar(x, jsoniq.ModeLocal, jsoniq.Loc{}), "a", jsoniq.Loc{}),
	)
	expected := `Comma (rdd)
  Parallelize (rdd)
    Literal 1, 2 (local)
  Lookup "a" (local)
    Var $x (local)
`
	assert.Equal(t, expected, runtime.Print(c))
}

// keyOf evaluates $x as a single sort key.
func keyOf(t *testing.T, c *expr.Comparator, items ...jsoniq.Item) expr.Key {
	dctx := runtime.NewRootContext(context.Background(), runtime.Config{})
	dctx.AddLocalVariable(x, items)
	key, err := c.EvalKey(dctx)
	require.NoError(t, err)
	return key
}

func TestComparator(t *testing.T) {
	asc, err := expr.NewComparator(true, expr.NewSortExpr(expr.NewVar(x, jsoniq.ModeLocal, jsoniq.Loc{}), order.Asc, order.EmptyDefault, ""))
	require.NoError(t, err)
	empty := keyOf(t, asc)
	null := keyOf(t, asc, jsoniq.Null{})
	one := keyOf(t, asc, jsoniq.Integer(1))
	two := keyOf(t, asc, jsoniq.Double(2))
	for _, c := range []struct {
		a, b     expr.Key
		expected int
	}{
		{empty, null, -1},
		{null, one, -1},
		{one, two, -1},
		{two, two, 0},
		{two, empty, 1},
	} {
		v, err := asc.Compare(c.a, c.b)
		require.NoError(t, err)
		assert.Equal(t, c.expected, v)
	}

	desc, err := expr.NewComparator(true, expr.NewSortExpr(expr.NewVar(x, jsoniq.ModeLocal, jsoniq.Loc{}), order.Desc, order.EmptyGreatest, ""))
	require.NoError(t, err)
	assert.False(t, desc.EmptyLeast(0))
	v, err := desc.Compare(empty, two)
	require.NoError(t, err)
	assert.Equal(t, -1, v, "empty greatest sorts first descending")
	v, err = desc.Compare(null, two)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestComparatorErrors(t *testing.T) {
	c, err := expr.NewComparator(true, expr.NewSortExpr(expr.NewVar(x, jsoniq.ModeLocal, jsoniq.NewLoc(2, 9)), order.Asc, order.EmptyDefault, ""))
	require.NoError(t, err)
	dctx := runtime.NewRootContext(context.Background(), runtime.Config{})
	dctx.AddLocalVariable(x, ints(1, 2))
	_, err = c.EvalKey(dctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, jsoniq.UnexpectedType))
	assert.Contains(t, err.Error(), "at most one item")

	dctx.AddLocalVariable(x, parse(t, `[1]`))
	_, err = c.EvalKey(dctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be atomics")

	_, err = c.Compare(keyOf(t, c, jsoniq.String("a")), keyOf(t, c, jsoniq.Integer(1)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, jsoniq.UnexpectedType))
	assert.Contains(t, err.Error(), "line 2, column 9")

	_, err = expr.NewComparator(true, expr.NewSortExpr(expr.NewVar(x, jsoniq.ModeLocal, jsoniq.Loc{}), order.Asc, order.EmptyDefault, "urn:nope"))
	assert.True(t, errors.Is(err, jsoniq.UnsupportedCollation))
}

func TestComparatorCollation(t *testing.T) {
	c, err := expr.NewComparator(true, expr.NewSortExpr(expr.NewVar(x, jsoniq.ModeLocal, jsoniq.Loc{}), order.Asc, order.EmptyDefault, collation.UCA+"?lang=en&strength=primary"))
	require.NoError(t, err)
	v, err := c.Compare(keyOf(t, c, jsoniq.String("Apple")), keyOf(t, c, jsoniq.String("apple")))
	require.NoError(t, err)
	assert.Equal(t, 0, v)
	v, err = c.Compare(keyOf(t, c, jsoniq.String("apple")), keyOf(t, c, jsoniq.String("Banana")))
	require.NoError(t, err)
	assert.Equal(t, -1, v)
}

func TestSortStable(t *testing.T) {
	c, err := expr.NewComparator(true, expr.NewSortExpr(expr.NewVar(x, jsoniq.ModeLocal, jsoniq.Loc{}), order.Asc, order.EmptyDefault, ""))
	require.NoError(t, err)
	type rec struct {
		key expr.Key
		id  int
	}
	recs := []rec{
		{keyOf(t, c, jsoniq.Integer(2)), 0},
		{keyOf(t, c, jsoniq.Integer(1)), 1},
		{keyOf(t, c, jsoniq.Integer(2)), 2},
		{keyOf(t, c, jsoniq.Integer(1)), 3},
	}
	require.NoError(t, expr.SortStable(c, recs, func(r rec) expr.Key { return r.key }))
	var ids []int
	for _, r := range recs {
		ids = append(ids, r.id)
	}
	assert.Equal(t, []int{1, 3, 0, 2}, ids)
}
