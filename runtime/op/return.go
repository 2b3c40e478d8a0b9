package op

import (
	"fmt"

	"github.com/brimdata/jsoniq"
	"github.com/brimdata/jsoniq/compiler/optimizer/demand"
	"github.com/brimdata/jsoniq/frame"
	"github.com/brimdata/jsoniq/runtime"
)

// Return ends a FLWOR expression, evaluating expr for each tuple of its
// child and concatenating the results.
type Return struct {
	child runtime.TupleIterator
	expr  runtime.Iterator
	mode  jsoniq.ExecutionMode
	loc   jsoniq.Loc

	exprCtx  *runtime.DynamicContext
	exprOpen bool
	next     jsoniq.Item
	err      error
}

var _ runtime.RDDIterator = (*Return)(nil)

func NewReturn(child runtime.TupleIterator, expr runtime.Iterator, loc jsoniq.Loc) (*Return, error) {
	mode := jsoniq.ModeLocal
	if child.Mode().IsDataFrame() {
		if expr.Mode().IsBig() {
			return nil, jobWithinAJob("return clause", loc)
		}
		mode = jsoniq.ModeRDD
	}
	return &Return{child: child, expr: expr, mode: mode, loc: loc}, nil
}

func (r *Return) Open(dctx *runtime.DynamicContext) error {
	r.exprCtx = runtime.NewChildContext(dctx)
	r.exprOpen = false
	r.next, r.err = nil, nil
	if err := r.child.Open(dctx); err != nil {
		return err
	}
	r.fetch()
	return nil
}

func (r *Return) fetch() {
	r.next = nil
	for {
		if r.exprOpen && r.expr.HasNext() {
			item, err := r.expr.Next()
			if err != nil {
				r.err = err
				return
			}
			r.next = item
			return
		}
		if r.exprOpen {
			r.expr.Close()
			r.exprOpen = false
		}
		if !r.child.HasNext() {
			return
		}
		t, err := r.child.Next()
		if err != nil {
			r.err = err
			return
		}
		bind(r.exprCtx, t, r.expr.Dependencies())
		if err := r.expr.Open(r.exprCtx); err != nil {
			r.err = err
			return
		}
		r.exprOpen = true
	}
}

func (r *Return) HasNext() bool {
	return r.next != nil || r.err != nil
}

func (r *Return) Next() (jsoniq.Item, error) {
	if err := r.err; err != nil {
		r.err = nil
		return nil, err
	}
	if r.next == nil {
		return nil, errNoMoreTuples
	}
	item := r.next
	r.fetch()
	return item, nil
}

func (r *Return) Close() {
	if r.exprOpen {
		r.expr.Close()
		r.exprOpen = false
	}
	r.child.Close()
	r.next, r.err = nil, nil
}

func (r *Return) Reset(dctx *runtime.DynamicContext) error {
	r.Close()
	return r.Open(dctx)
}

// RDD evaluates expr with a UDF for each row of the child's table and
// flattens the resulting sequences into a table of items.
func (r *Return) RDD(dctx *runtime.DynamicContext) (*frame.RDD, error) {
	engine, err := dctx.Engine()
	if err != nil {
		return nil, err
	}
	df, err := childDataFrame(dctx, r.child, r.projection())
	if err != nil {
		return nil, err
	}
	columns := inputColumns(r.expr.Dependencies(), r.child)
	udf, err := runtime.RegisterTupleUDF(dctx, "return", columns, func(rctx *runtime.DynamicContext) (any, error) {
		items, err := runtime.Materialize(r.expr, rctx)
		if err != nil {
			return nil, err
		}
		return encodeSequence(items, r.expr.Loc())
	})
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s AS %s FROM %s AS c, json_each(%s, '$.s') AS j ORDER BY c.rowid, j.key",
		sequenceCell("j.value"),
		frame.Quote(frame.ItemColumn),
		frame.Quote(df.Table),
		frame.Call(udf, runtime.TupleArgs("c", columns)...))
	out, err := engine.SQL(dctx.Context(), query)
	if err != nil {
		return nil, err
	}
	return &frame.RDD{Table: out.Table}, nil
}

// projection is what the expression needs from the child's variables.
func (r *Return) projection() demand.Set {
	return demand.Restrict(r.expr.Dependencies(), r.child.Variables())
}

func (r *Return) Mode() jsoniq.ExecutionMode {
	return r.mode
}

func (r *Return) Dependencies() demand.Set {
	return dependencies(r.expr.Dependencies(), r.child)
}

func (r *Return) Loc() jsoniq.Loc {
	return r.loc
}

func (r *Return) Print(p *runtime.Printer) {
	p.Printf("Return (%s)", r.mode)
	p.Indent(func() {
		r.expr.Print(p)
		r.child.Print(p)
	})
}
