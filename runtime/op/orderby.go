package op

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/brimdata/jsoniq"
	"github.com/brimdata/jsoniq/compiler/optimizer/demand"
	"github.com/brimdata/jsoniq/compiler/semantic"
	"github.com/brimdata/jsoniq/frame"
	"github.com/brimdata/jsoniq/order"
	"github.com/brimdata/jsoniq/runtime"
	"github.com/brimdata/jsoniq/runtime/expr"
	"github.com/brimdata/jsoniq/runtime/expr/coerce"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DecimalCollation orders the text of decimal numbers by value.
const DecimalCollation = "jsoniq_decimal"

// Type names reported by the discovery pass for keys without a value.
const (
	emptyKey = "empty"
	nullKey  = "null"
)

// OrderBy sorts the tuples of its child by a list of keys.  Tuples with
// equal keys keep their input order whether or not the clause is declared
// stable.
type OrderBy struct {
	child  runtime.TupleIterator
	keys   []expr.SortExpr
	stable bool
	cmp    *expr.Comparator
	loc    jsoniq.Loc

	keyCtx  *runtime.DynamicContext
	results []*runtime.Tuple
	off     int
	err     error
}

var _ runtime.DataFrameIterator = (*OrderBy)(nil)

// NewOrderBy returns an order by clause.  Keys with order.EmptyDefault
// place empty sequences as the module's static context says.
func NewOrderBy(sctx *semantic.StaticContext, child runtime.TupleIterator, keys []expr.SortExpr, stable bool, loc jsoniq.Loc) (*OrderBy, error) {
	for _, k := range keys {
		if k.Eval.Mode().IsBig() {
			return nil, jobWithinAJob("order by clause", k.Eval.Loc())
		}
	}
	cmp, err := expr.NewComparator(sctx.EmptySequenceOrderLeast(), keys...)
	if err != nil {
		return nil, err
	}
	return &OrderBy{
		child:  child,
		keys:   keys,
		stable: stable,
		cmp:    cmp,
		loc:    loc,
	}, nil
}

func (o *OrderBy) Open(dctx *runtime.DynamicContext) error {
	o.keyCtx = runtime.NewChildContext(dctx)
	o.results, o.off, o.err = nil, 0, nil
	if err := o.child.Open(dctx); err != nil {
		return err
	}
	o.err = o.load()
	return nil
}

type keyedTuple struct {
	key   expr.Key
	tuple *runtime.Tuple
}

// load drains the child and sorts its tuples.
func (o *OrderBy) load() error {
	deps := o.keyDependencies()
	var recs []keyedTuple
	for o.child.HasNext() {
		t, err := o.child.Next()
		if err != nil {
			return err
		}
		bind(o.keyCtx, t, deps)
		key, err := o.cmp.EvalKey(o.keyCtx)
		if err != nil {
			return err
		}
		recs = append(recs, keyedTuple{key, t})
	}
	if err := expr.SortStable(o.cmp, recs, func(r keyedTuple) expr.Key { return r.key }); err != nil {
		return err
	}
	o.results = make([]*runtime.Tuple, 0, len(recs))
	for _, r := range recs {
		o.results = append(o.results, r.tuple)
	}
	return nil
}

func (o *OrderBy) HasNext() bool {
	return o.err != nil || o.off < len(o.results)
}

func (o *OrderBy) Next() (*runtime.Tuple, error) {
	if err := o.err; err != nil {
		o.err = nil
		o.results = nil
		return nil, err
	}
	if o.off >= len(o.results) {
		return nil, errNoMoreTuples
	}
	t := o.results[o.off]
	o.off++
	return t, nil
}

func (o *OrderBy) Close() {
	o.results, o.off, o.err = nil, 0, nil
	o.child.Close()
}

func (o *OrderBy) Reset(dctx *runtime.DynamicContext) error {
	o.Close()
	return o.Open(dctx)
}

func (o *OrderBy) Mode() jsoniq.ExecutionMode {
	return o.child.Mode()
}

func (o *OrderBy) Dependencies() demand.Set {
	return dependencies(o.keyDependencies(), o.child)
}

func (o *OrderBy) Projection(parent demand.Set) demand.Set {
	return projection(parent, o.keyDependencies(), o.child)
}

func (o *OrderBy) Variables() []jsoniq.Name {
	return variables(o.child)
}

func (o *OrderBy) Loc() jsoniq.Loc {
	return o.loc
}

func (o *OrderBy) Print(p *runtime.Printer) {
	if o.stable {
		p.Printf("OrderBy stable (%s)", o.Mode())
	} else {
		p.Printf("OrderBy (%s)", o.Mode())
	}
	p.Indent(func() {
		for _, k := range o.keys {
			k.Eval.Print(p)
		}
		o.child.Print(p)
	})
}

func (o *OrderBy) keyDependencies() demand.Set {
	sets := make([]demand.Set, 0, len(o.keys))
	for _, k := range o.keys {
		sets = append(sets, k.Eval.Dependencies())
	}
	return demand.Union(sets...)
}

// DataFrame sorts the child's table in three passes.  A discovery pass
// finds the distinct types of each key, which are unified into one type per
// key before any sorting is submitted.  A second pass stores each row's
// keys as a JSON array of (flag, value) pairs, where the flag places empty
// sequences and nulls and the value is an order-preserving SQL surrogate of
// the key.  The final query orders by those pairs and then by input order.
func (o *OrderBy) DataFrame(dctx *runtime.DynamicContext, parent demand.Set) (*frame.DataFrame, error) {
	engine, err := dctx.Engine()
	if err != nil {
		return nil, err
	}
	df, err := childDataFrame(dctx, o.child, o.Projection(parent))
	if err != nil {
		return nil, err
	}
	columns := inputColumns(o.keyDependencies(), o.child)
	types, err := o.discover(dctx, engine, df, columns)
	if err != nil {
		return nil, err
	}
	return o.emit(dctx, engine, df, columns, types)
}

func (o *OrderBy) discover(dctx *runtime.DynamicContext, engine frame.Engine, df *frame.DataFrame, columns []jsoniq.Name) ([]jsoniq.TypeID, error) {
	ctx, span := tracer.Start(dctx.Context(), "orderby.discovery")
	defer span.End()
	udf, err := runtime.RegisterTupleUDF(dctx, "orderby_types", columns, func(rctx *runtime.DynamicContext) (any, error) {
		key, err := o.cmp.EvalKey(rctx)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(key))
		for _, item := range key {
			if item == nil {
				names = append(names, emptyKey)
			} else {
				names = append(names, item.Type().String())
			}
		}
		b, err := json.Marshal(names)
		return string(b), err
	})
	if err != nil {
		return nil, spanError(span, err)
	}
	typesColumn := runtime.InternalColumn("types")
	distinct, err := engine.SQL(ctx, fmt.Sprintf("SELECT DISTINCT %s AS %s FROM %s",
		frame.Call(udf, runtime.TupleArgs("", columns)...),
		frame.Quote(typesColumn),
		frame.Quote(df.Table)))
	if err != nil {
		return nil, spanError(span, err)
	}
	rows, err := engine.Collect(ctx, distinct.Table, -1)
	if err != nil {
		return nil, spanError(span, err)
	}
	found := make([][]jsoniq.TypeID, len(o.keys))
	for _, row := range rows {
		var names []string
		if err := json.Unmarshal([]byte(cellText(row[0])), &names); err != nil {
			return nil, spanError(span, fmt.Errorf("order by type discovery: %w", err))
		}
		for k, name := range names {
			if k >= len(found) || name == emptyKey || name == nullKey {
				continue
			}
			id, ok := jsoniq.LookupTypeID(name)
			if !ok {
				return nil, spanError(span, fmt.Errorf("order by type discovery: unknown type %q", name))
			}
			found[k] = append(found[k], id)
		}
	}
	types := make([]jsoniq.TypeID, len(o.keys))
	for k, ids := range found {
		typ, ok, err := coerce.UnifyAll(ids)
		if err != nil {
			err := jsoniq.NewError(jsoniq.UnexpectedType, o.keys[k].Eval.Loc(), "order by variable must contain values of a single type")
			return nil, spanError(span, err)
		}
		if !ok {
			// Only empty sequences and nulls.
			typ = jsoniq.IDNull
		}
		types[k] = typ
	}
	span.SetAttributes(attribute.String("jsoniq.orderby.types", typeList(types)))
	dctx.Logger().Debug("order by key types", zap.String("types", typeList(types)))
	return types, nil
}

func (o *OrderBy) emit(dctx *runtime.DynamicContext, engine frame.Engine, df *frame.DataFrame, columns []jsoniq.Name, types []jsoniq.TypeID) (*frame.DataFrame, error) {
	ctx, span := tracer.Start(dctx.Context(), "orderby.reification")
	udf, err := runtime.RegisterTupleUDF(dctx, "orderby_key", columns, func(rctx *runtime.DynamicContext) (any, error) {
		key, err := o.cmp.EvalKey(rctx)
		if err != nil {
			return nil, err
		}
		vals := make([]any, 0, 2*len(key))
		for k, item := range key {
			flag, val, err := o.reify(k, item, types[k])
			if err != nil {
				return nil, err
			}
			vals = append(vals, flag, val)
		}
		b, err := json.Marshal(vals)
		return string(b), err
	})
	if err != nil {
		spanError(span, err)
		span.End()
		return nil, err
	}
	keyColumn := runtime.InternalColumn("key")
	keyed, err := engine.SQL(ctx, fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid",
		selectList(carried(df, ""), []string{frame.Call(udf, runtime.TupleArgs("", columns)...) + " AS " + frame.Quote(keyColumn)}),
		frame.Quote(df.Table)))
	if err != nil {
		spanError(span, err)
		span.End()
		return nil, err
	}
	span.End()
	ctx, span = tracer.Start(dctx.Context(), "orderby.emission")
	defer span.End()
	terms, err := o.orderTerms(dctx, engine, keyColumn, types)
	if err != nil {
		return nil, spanError(span, err)
	}
	out, err := engine.SQL(ctx, fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		selectList(carried(keyed, "")),
		frame.Quote(keyed.Table),
		strings.Join(terms, ", ")))
	if err != nil {
		return nil, spanError(span, err)
	}
	return out, nil
}

// orderTerms returns the ORDER BY terms sorting on the reified key column.
func (o *OrderBy) orderTerms(dctx *runtime.DynamicContext, engine frame.Engine, keyColumn string, types []jsoniq.TypeID) ([]string, error) {
	var terms []string
	for k, key := range o.keys {
		dir := "ASC"
		if key.Order == order.Desc {
			dir = "DESC"
		}
		collate := ""
		switch types[k] {
		case jsoniq.IDDecimal:
			if err := engine.RegisterCollation(DecimalCollation, compareDecimals); err != nil {
				return nil, err
			}
			collate = " COLLATE " + DecimalCollation
		case jsoniq.IDString:
			if key.Collation != "" {
				name := runtime.UDFName("collation")
				if err := engine.RegisterCollation(name, o.cmp.Collation(k)); err != nil {
					return nil, err
				}
				collate = " COLLATE " + name
			}
		}
		flag := fmt.Sprintf("json_extract(%s, '$[%d]')", frame.Quote(keyColumn), 2*k)
		value := fmt.Sprintf("json_extract(%s, '$[%d]')", frame.Quote(keyColumn), 2*k+1)
		terms = append(terms, flag+" "+dir, value+collate+" "+dir)
	}
	// Input order breaks ties.
	return append(terms, "rowid"), nil
}

// reify returns the flag and SQL value of key k.  With empty least, the
// flags order empty before null before values, and otherwise null before
// values before empty.
func (o *OrderBy) reify(k int, item jsoniq.Item, typ jsoniq.TypeID) (int64, any, error) {
	least := o.cmp.EmptyLeast(k)
	if item == nil {
		if least {
			return 0, nil, nil
		}
		return 2, nil, nil
	}
	if _, ok := item.(jsoniq.Null); ok {
		if least {
			return 1, nil, nil
		}
		return 0, nil, nil
	}
	flag := int64(1)
	if least {
		flag = 2
	}
	val, err := surrogate(item, typ)
	if err != nil {
		return 0, nil, jsoniq.WithLoc(err, o.keys[k].Eval.Loc())
	}
	return flag, val, nil
}

// surrogate converts item to an order-preserving SQL value for the unified
// type typ.
func surrogate(item jsoniq.Item, typ jsoniq.TypeID) (any, error) {
	switch {
	case typ == jsoniq.IDBoolean:
		if b, ok := item.(jsoniq.Boolean); ok {
			if b {
				return int64(1), nil
			}
			return int64(0), nil
		}
	case typ == jsoniq.IDString:
		if s, ok := item.(jsoniq.String); ok {
			return string(s), nil
		}
	case typ == jsoniq.IDInteger:
		if i, ok := item.(jsoniq.Integer); ok {
			return int64(i), nil
		}
	case typ == jsoniq.IDDecimal:
		if d, ok := jsoniq.ToDecimal(item); ok {
			return d.String(), nil
		}
	case typ.IsNumeric():
		if f, ok := jsoniq.ToFloat64(item); ok {
			switch {
			case math.IsNaN(f):
				return nil, nil
			case math.IsInf(f, 1):
				return math.MaxFloat64, nil
			case math.IsInf(f, -1):
				return -math.MaxFloat64, nil
			}
			return f, nil
		}
	case typ.IsDuration():
		if d, ok := item.(jsoniq.Duration); ok {
			return d.OrderKey(), nil
		}
	case typ.IsTemporal():
		if t, ok := item.(jsoniq.Temporal); ok {
			return t.OrderKey(), nil
		}
	}
	return nil, jsoniq.NewError(jsoniq.UnexpectedType, jsoniq.Loc{}, "order by variable must contain values of a single type: found %s among %s", item.Type(), typ)
}

func compareDecimals(a, b string) int {
	da, erra := decimal.NewFromString(a)
	db, errb := decimal.NewFromString(b)
	if erra != nil || errb != nil {
		return strings.Compare(a, b)
	}
	return da.Cmp(db)
}

func cellText(cell any) string {
	switch cell := cell.(type) {
	case string:
		return cell
	case []byte:
		return string(cell)
	}
	return fmt.Sprint(cell)
}

func typeList(types []jsoniq.TypeID) string {
	s := make([]string, 0, len(types))
	for _, t := range types {
		s = append(s, t.String())
	}
	return strings.Join(s, ", ")
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
