package op

import (
	"fmt"

	"github.com/brimdata/jsoniq"
	"github.com/brimdata/jsoniq/compiler/optimizer/demand"
	"github.com/brimdata/jsoniq/frame"
	"github.com/brimdata/jsoniq/runtime"
)

// For binds name to each item of expr in turn, and position, when not
// zero, to the item's 1-based position.  A For without a child starts a
// FLWOR expression.
type For struct {
	child    runtime.TupleIterator
	name     jsoniq.Name
	position jsoniq.Name
	expr     runtime.Iterator
	mode     jsoniq.ExecutionMode
	loc      jsoniq.Loc

	exprCtx  *runtime.DynamicContext
	tuple    *runtime.Tuple
	started  bool
	exprOpen bool
	pos      int64
	next     *runtime.Tuple
	err      error
}

var _ runtime.DataFrameIterator = (*For)(nil)

func NewFor(child runtime.TupleIterator, name, position jsoniq.Name, expr runtime.Iterator, loc jsoniq.Loc) (*For, error) {
	mode := jsoniq.ModeLocal
	switch {
	case child == nil:
		if expr.Mode().IsBig() {
			if _, ok := expr.(runtime.RDDIterator); !ok {
				return nil, fmt.Errorf("for clause at %s: distributed expression has no RDD", loc)
			}
			mode = jsoniq.ModeDataFrame
		}
	case child.Mode().IsDataFrame():
		if expr.Mode().IsBig() {
			return nil, jobWithinAJob("for clause", loc)
		}
		mode = jsoniq.ModeDataFrame
	}
	return &For{
		child:    child,
		name:     name,
		position: position,
		expr:     expr,
		mode:     mode,
		loc:      loc,
	}, nil
}

func (f *For) Open(dctx *runtime.DynamicContext) error {
	f.exprCtx = runtime.NewChildContext(dctx)
	f.tuple = nil
	f.started = false
	f.exprOpen = false
	f.next, f.err = nil, nil
	if f.child != nil {
		if err := f.child.Open(dctx); err != nil {
			return err
		}
	}
	f.fetch()
	return nil
}

func (f *For) fetch() {
	f.next = nil
	for {
		if f.exprOpen && f.expr.HasNext() {
			item, err := f.expr.Next()
			if err != nil {
				f.err = err
				return
			}
			f.pos++
			t := f.tuple.Derive().BindLocal(f.name, []jsoniq.Item{item})
			if !f.position.IsZero() {
				t.BindLocal(f.position, []jsoniq.Item{jsoniq.Integer(f.pos)})
			}
			f.next = t
			return
		}
		if f.exprOpen {
			f.expr.Close()
			f.exprOpen = false
		}
		if f.child == nil {
			if f.started {
				return
			}
			f.started = true
			f.tuple = runtime.NewTuple()
		} else {
			if !f.child.HasNext() {
				return
			}
			t, err := f.child.Next()
			if err != nil {
				f.err = err
				return
			}
			f.tuple = t
		}
		bind(f.exprCtx, f.tuple, f.expr.Dependencies())
		if err := f.expr.Open(f.exprCtx); err != nil {
			f.err = err
			return
		}
		f.exprOpen = true
		f.pos = 0
	}
}

func (f *For) HasNext() bool {
	return f.next != nil || f.err != nil
}

func (f *For) Next() (*runtime.Tuple, error) {
	if err := f.err; err != nil {
		f.err = nil
		return nil, err
	}
	if f.next == nil {
		return nil, errNoMoreTuples
	}
	t := f.next
	f.fetch()
	return t, nil
}

func (f *For) Close() {
	if f.exprOpen {
		f.expr.Close()
		f.exprOpen = false
	}
	if f.child != nil {
		f.child.Close()
	}
	f.tuple, f.next, f.err = nil, nil, nil
}

func (f *For) Reset(dctx *runtime.DynamicContext) error {
	f.Close()
	return f.Open(dctx)
}

// DataFrame returns a table with a row per item.  A starting For turns the
// expression's RDD into a one-column table.  Otherwise each child row is
// joined with the items the expression yields for it.
func (f *For) DataFrame(dctx *runtime.DynamicContext, parent demand.Set) (*frame.DataFrame, error) {
	engine, err := dctx.Engine()
	if err != nil {
		return nil, err
	}
	if f.child == nil {
		rdd, err := f.expr.(runtime.RDDIterator).RDD(dctx)
		if err != nil {
			return nil, err
		}
		cols := []string{as(frame.Quote(frame.ItemColumn), f.name)}
		if !f.position.IsZero() {
			cols = append(cols, as(integerCell("ROW_NUMBER() OVER (ORDER BY rowid)"), f.position))
		}
		return engine.SQL(dctx.Context(), fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", selectList(cols), frame.Quote(rdd.Table)))
	}
	df, err := childDataFrame(dctx, f.child, f.Projection(parent))
	if err != nil {
		return nil, err
	}
	columns := inputColumns(f.expr.Dependencies(), f.child)
	udf, err := runtime.RegisterTupleUDF(dctx, "for", columns, func(rctx *runtime.DynamicContext) (any, error) {
		items, err := runtime.Materialize(f.expr, rctx)
		if err != nil {
			return nil, err
		}
		return encodeSequence(items, f.expr.Loc())
	})
	if err != nil {
		return nil, err
	}
	cols := []string{as(sequenceCell("j.value"), f.name)}
	if !f.position.IsZero() {
		cols = append(cols, as(integerCell("j.key + 1"), f.position))
	}
	query := fmt.Sprintf("SELECT %s FROM %s AS c, json_each(%s, '$.s') AS j ORDER BY c.rowid, j.key",
		selectList(carried(df, "c", f.name, f.position), cols),
		frame.Quote(df.Table),
		frame.Call(udf, runtime.TupleArgs("c", columns)...))
	return engine.SQL(dctx.Context(), query)
}

func (f *For) Mode() jsoniq.ExecutionMode {
	return f.mode
}

func (f *For) Dependencies() demand.Set {
	return dependencies(f.expr.Dependencies(), f.child)
}

func (f *For) Projection(parent demand.Set) demand.Set {
	return projection(parent, f.expr.Dependencies(), f.child, f.name, f.position)
}

func (f *For) Variables() []jsoniq.Name {
	return appendVariables(f.child, f.name, f.position)
}

func (f *For) Loc() jsoniq.Loc {
	return f.loc
}

func (f *For) Print(p *runtime.Printer) {
	if f.position.IsZero() {
		p.Printf("For $%s (%s)", f.name, f.mode)
	} else {
		p.Printf("For $%s at $%s (%s)", f.name, f.position, f.mode)
	}
	p.Indent(func() {
		f.expr.Print(p)
		printChild(p, f.child)
	})
}
