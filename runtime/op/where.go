package op

import (
	"fmt"

	"github.com/brimdata/jsoniq"
	"github.com/brimdata/jsoniq/compiler/optimizer/demand"
	"github.com/brimdata/jsoniq/frame"
	"github.com/brimdata/jsoniq/runtime"
	"github.com/brimdata/jsoniq/runtime/expr"
)

// Where passes the tuples for which the effective boolean value of cond is
// true.
type Where struct {
	child runtime.TupleIterator
	cond  runtime.Iterator
	mode  jsoniq.ExecutionMode
	loc   jsoniq.Loc

	condCtx *runtime.DynamicContext
	next    *runtime.Tuple
	err     error
}

var _ runtime.DataFrameIterator = (*Where)(nil)

func NewWhere(child runtime.TupleIterator, cond runtime.Iterator, loc jsoniq.Loc) (*Where, error) {
	mode := child.Mode()
	if mode.IsDataFrame() && cond.Mode().IsBig() {
		return nil, jobWithinAJob("where clause", loc)
	}
	return &Where{child: child, cond: cond, mode: mode, loc: loc}, nil
}

func (w *Where) Open(dctx *runtime.DynamicContext) error {
	w.condCtx = runtime.NewChildContext(dctx)
	w.next, w.err = nil, nil
	if err := w.child.Open(dctx); err != nil {
		return err
	}
	w.fetch()
	return nil
}

func (w *Where) test(ctx *runtime.DynamicContext) (bool, error) {
	items, err := runtime.Materialize(w.cond, ctx)
	if err != nil {
		return false, err
	}
	return expr.EffectiveBooleanValue(items, w.cond.Loc())
}

func (w *Where) fetch() {
	w.next = nil
	for w.child.HasNext() {
		t, err := w.child.Next()
		if err != nil {
			w.err = err
			return
		}
		bind(w.condCtx, t, w.cond.Dependencies())
		ok, err := w.test(w.condCtx)
		if err != nil {
			w.err = err
			return
		}
		if ok {
			w.next = t
			return
		}
	}
}

func (w *Where) HasNext() bool {
	return w.next != nil || w.err != nil
}

func (w *Where) Next() (*runtime.Tuple, error) {
	if err := w.err; err != nil {
		w.err = nil
		return nil, err
	}
	if w.next == nil {
		return nil, errNoMoreTuples
	}
	t := w.next
	w.fetch()
	return t, nil
}

func (w *Where) Close() {
	w.child.Close()
	w.next, w.err = nil, nil
}

func (w *Where) Reset(dctx *runtime.DynamicContext) error {
	w.Close()
	return w.Open(dctx)
}

// DataFrame filters the child's rows with a UDF returning 1 or 0.
func (w *Where) DataFrame(dctx *runtime.DynamicContext, parent demand.Set) (*frame.DataFrame, error) {
	engine, err := dctx.Engine()
	if err != nil {
		return nil, err
	}
	df, err := childDataFrame(dctx, w.child, w.Projection(parent))
	if err != nil {
		return nil, err
	}
	columns := inputColumns(w.cond.Dependencies(), w.child)
	udf, err := runtime.RegisterTupleUDF(dctx, "where", columns, func(rctx *runtime.DynamicContext) (any, error) {
		ok, err := w.test(rctx)
		if err != nil || !ok {
			return int64(0), err
		}
		return int64(1), nil
	})
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s AS c WHERE %s ORDER BY c.rowid",
		selectList(carried(df, "c")),
		frame.Quote(df.Table),
		frame.Call(udf, runtime.TupleArgs("c", columns)...))
	return engine.SQL(dctx.Context(), query)
}

func (w *Where) Mode() jsoniq.ExecutionMode {
	return w.mode
}

func (w *Where) Dependencies() demand.Set {
	return dependencies(w.cond.Dependencies(), w.child)
}

func (w *Where) Projection(parent demand.Set) demand.Set {
	return projection(parent, w.cond.Dependencies(), w.child)
}

func (w *Where) Variables() []jsoniq.Name {
	return variables(w.child)
}

func (w *Where) Loc() jsoniq.Loc {
	return w.loc
}

func (w *Where) Print(p *runtime.Printer) {
	p.Printf("Where (%s)", w.mode)
	p.Indent(func() {
		w.cond.Print(p)
		w.child.Print(p)
	})
}
