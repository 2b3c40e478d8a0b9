package op

import (
	"fmt"

	"github.com/brimdata/jsoniq"
	"github.com/brimdata/jsoniq/compiler/optimizer/demand"
	"github.com/brimdata/jsoniq/frame"
	"github.com/brimdata/jsoniq/runtime"
)

// Let binds name to the whole sequence of expr.  Evaluated locally, a
// distributed expression is bound as an RDD and collected only when read.
type Let struct {
	child runtime.TupleIterator
	name  jsoniq.Name
	expr  runtime.Iterator
	mode  jsoniq.ExecutionMode
	loc   jsoniq.Loc

	exprCtx *runtime.DynamicContext
	started bool
	next    *runtime.Tuple
	err     error
}

var _ runtime.DataFrameIterator = (*Let)(nil)

func NewLet(child runtime.TupleIterator, name jsoniq.Name, expr runtime.Iterator, loc jsoniq.Loc) (*Let, error) {
	mode := jsoniq.ModeLocal
	if child != nil && child.Mode().IsDataFrame() {
		if expr.Mode().IsBig() {
			return nil, jobWithinAJob("let clause", loc)
		}
		mode = jsoniq.ModeDataFrame
	}
	return &Let{child: child, name: name, expr: expr, mode: mode, loc: loc}, nil
}

func (l *Let) Open(dctx *runtime.DynamicContext) error {
	l.exprCtx = runtime.NewChildContext(dctx)
	l.started = false
	l.next, l.err = nil, nil
	if l.child != nil {
		if err := l.child.Open(dctx); err != nil {
			return err
		}
	}
	l.fetch()
	return nil
}

func (l *Let) fetch() {
	l.next = nil
	var t *runtime.Tuple
	if l.child == nil {
		if l.started {
			return
		}
		l.started = true
		t = runtime.NewTuple()
	} else {
		if !l.child.HasNext() {
			return
		}
		var err error
		if t, err = l.child.Next(); err != nil {
			l.err = err
			return
		}
	}
	bind(l.exprCtx, t, l.expr.Dependencies())
	if rddIt, ok := l.expr.(runtime.RDDIterator); ok && l.expr.Mode().IsBig() {
		rdd, err := rddIt.RDD(l.exprCtx)
		if err != nil {
			l.err = err
			return
		}
		l.next = t.Derive().BindRDD(l.name, rdd)
		return
	}
	items, err := runtime.Materialize(l.expr, l.exprCtx)
	if err != nil {
		l.err = err
		return
	}
	l.next = t.Derive().BindLocal(l.name, items)
}

func (l *Let) HasNext() bool {
	return l.next != nil || l.err != nil
}

func (l *Let) Next() (*runtime.Tuple, error) {
	if err := l.err; err != nil {
		l.err = nil
		return nil, err
	}
	if l.next == nil {
		return nil, errNoMoreTuples
	}
	t := l.next
	l.fetch()
	return t, nil
}

func (l *Let) Close() {
	if l.child != nil {
		l.child.Close()
	}
	l.next, l.err = nil, nil
}

func (l *Let) Reset(dctx *runtime.DynamicContext) error {
	l.Close()
	return l.Open(dctx)
}

// DataFrame adds a column computed by a UDF from each row of the child.
func (l *Let) DataFrame(dctx *runtime.DynamicContext, parent demand.Set) (*frame.DataFrame, error) {
	engine, err := dctx.Engine()
	if err != nil {
		return nil, err
	}
	df, err := childDataFrame(dctx, l.child, l.Projection(parent))
	if err != nil {
		return nil, err
	}
	columns := inputColumns(l.expr.Dependencies(), l.child)
	udf, err := runtime.RegisterTupleUDF(dctx, "let", columns, func(rctx *runtime.DynamicContext) (any, error) {
		items, err := runtime.Materialize(l.expr, rctx)
		if err != nil {
			return nil, err
		}
		return encodeSequence(items, l.expr.Loc())
	})
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s AS c ORDER BY c.rowid",
		selectList(carried(df, "c", l.name), []string{as(frame.Call(udf, runtime.TupleArgs("c", columns)...), l.name)}),
		frame.Quote(df.Table))
	return engine.SQL(dctx.Context(), query)
}

func (l *Let) Mode() jsoniq.ExecutionMode {
	return l.mode
}

func (l *Let) Dependencies() demand.Set {
	return dependencies(l.expr.Dependencies(), l.child)
}

func (l *Let) Projection(parent demand.Set) demand.Set {
	return projection(parent, l.expr.Dependencies(), l.child, l.name)
}

func (l *Let) Variables() []jsoniq.Name {
	return appendVariables(l.child, l.name)
}

func (l *Let) Loc() jsoniq.Loc {
	return l.loc
}

func (l *Let) Print(p *runtime.Printer) {
	p.Printf("Let $%s (%s)", l.name, l.mode)
	p.Indent(func() {
		l.expr.Print(p)
		printChild(p, l.child)
	})
}
