package expr

import (
	"fmt"
	"strings"

	"github.com/brimdata/jsoniq"
	"github.com/brimdata/jsoniq/compiler/optimizer/demand"
	"github.com/brimdata/jsoniq/frame"
	"github.com/brimdata/jsoniq/runtime"
)

// Comma concatenates the sequences of its operands.  It is distributed when
// any operand is.
type Comma struct {
	exprs []runtime.Iterator
	mode  jsoniq.ExecutionMode
	loc   jsoniq.Loc
	off   int
	dctx  *runtime.DynamicContext
}

var _ runtime.RDDIterator = (*Comma)(nil)

func NewComma(loc jsoniq.Loc, exprs ...runtime.Iterator) *Comma {
	mode := jsoniq.ModeLocal
	for _, e := range exprs {
		if e.Mode().IsBig() {
			mode = jsoniq.ModeRDD
		}
	}
	return &Comma{exprs: exprs, mode: mode, loc: loc}
}

func (c *Comma) Open(dctx *runtime.DynamicContext) error {
	c.dctx = dctx
	c.off = 0
	if len(c.exprs) == 0 {
		return nil
	}
	if err := c.exprs[0].Open(dctx); err != nil {
		return err
	}
	return c.advance()
}

// advance moves past exhausted operands.
func (c *Comma) advance() error {
	for c.off < len(c.exprs) && !c.exprs[c.off].HasNext() {
		c.exprs[c.off].Close()
		c.off++
		if c.off < len(c.exprs) {
			if err := c.exprs[c.off].Open(c.dctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Comma) HasNext() bool {
	return c.off < len(c.exprs)
}

func (c *Comma) Next() (jsoniq.Item, error) {
	if c.off >= len(c.exprs) {
		return nil, errNoMoreItems
	}
	item, err := c.exprs[c.off].Next()
	if err != nil {
		return nil, err
	}
	return item, c.advance()
}

func (c *Comma) Close() {
	if c.off < len(c.exprs) {
		c.exprs[c.off].Close()
	}
	c.off = len(c.exprs)
}

func (c *Comma) Reset(dctx *runtime.DynamicContext) error {
	c.Close()
	return c.Open(dctx)
}

// RDD unions the operands' tables in operand order.
func (c *Comma) RDD(dctx *runtime.DynamicContext) (*frame.RDD, error) {
	engine, err := dctx.Engine()
	if err != nil {
		return nil, err
	}
	var selects []string
	for k, e := range c.exprs {
		rdd, err := toRDD(dctx, e)
		if err != nil {
			return nil, err
		}
		selects = append(selects, fmt.Sprintf("SELECT %s, %d AS k, rowid AS r FROM %s", frame.Quote(frame.ItemColumn), k, frame.Quote(rdd.Table)))
	}
	if len(selects) == 0 {
		return runtime.Parallelize(dctx, nil)
	}
	query := fmt.Sprintf("SELECT %s FROM (%s) ORDER BY k, r", frame.Quote(frame.ItemColumn), strings.Join(selects, " UNION ALL "))
	df, err := engine.SQL(dctx.Context(), query)
	if err != nil {
		return nil, err
	}
	return &frame.RDD{Table: df.Table}, nil
}

// toRDD returns the table of a distributed expression or parallelizes the
// items of a local one.
func toRDD(dctx *runtime.DynamicContext, it runtime.Iterator) (*frame.RDD, error) {
	if rddIt, ok := it.(runtime.RDDIterator); ok && it.Mode().IsBig() {
		return rddIt.RDD(dctx)
	}
	items, err := runtime.Materialize(it, dctx)
	if err != nil {
		return nil, err
	}
	return runtime.Parallelize(dctx, items)
}

func (c *Comma) Mode() jsoniq.ExecutionMode {
	return c.mode
}

func (c *Comma) Dependencies() demand.Set {
	sets := make([]demand.Set, 0, len(c.exprs))
	for _, e := range c.exprs {
		sets = append(sets, e.Dependencies())
	}
	return demand.Union(sets...)
}

func (c *Comma) Loc() jsoniq.Loc {
	return c.loc
}

func (c *Comma) Print(p *runtime.Printer) {
	p.Printf("Comma (%s)", c.mode)
	p.Indent(func() {
		for _, e := range c.exprs {
			e.Print(p)
		}
	})
}
