package op

import (
	"fmt"

	"github.com/brimdata/jsoniq"
	"github.com/brimdata/jsoniq/codec"
	"github.com/brimdata/jsoniq/compiler/optimizer/demand"
	"github.com/brimdata/jsoniq/frame"
	"github.com/brimdata/jsoniq/runtime"
	"go.uber.org/zap"
)

// Count binds name to the 1-based ordinal of each tuple of its child.
type Count struct {
	child runtime.TupleIterator
	name  jsoniq.Name
	loc   jsoniq.Loc
	count int64
}

var _ runtime.DataFrameIterator = (*Count)(nil)

func NewCount(child runtime.TupleIterator, name jsoniq.Name, loc jsoniq.Loc) *Count {
	return &Count{child: child, name: name, loc: loc, count: 1}
}

func (c *Count) Open(dctx *runtime.DynamicContext) error {
	c.count = 1
	return c.child.Open(dctx)
}

func (c *Count) HasNext() bool {
	return c.child.HasNext()
}

func (c *Count) Next() (*runtime.Tuple, error) {
	t, err := c.child.Next()
	if err != nil {
		return nil, err
	}
	out := t.Derive().BindLocal(c.name, []jsoniq.Item{jsoniq.Integer(c.count)})
	c.count++
	return out, nil
}

func (c *Count) Close() {
	c.count = 1
	c.child.Close()
}

func (c *Count) Reset(dctx *runtime.DynamicContext) error {
	c.count = 1
	return c.child.Reset(dctx)
}

// DataFrame numbers the child's rows from 1 and converts each number into
// the variable's cell.  When the parent does not need the variable, the
// child's table is returned as is.
func (c *Count) DataFrame(dctx *runtime.DynamicContext, parent demand.Set) (*frame.DataFrame, error) {
	df, err := childDataFrame(dctx, c.child, c.Projection(parent))
	if err != nil {
		return nil, err
	}
	if !parent.Has(c.name) {
		dctx.Logger().Debug("count variable not needed", zap.Stringer("variable", c.name))
		return df, nil
	}
	engine, err := dctx.Engine()
	if err != nil {
		return nil, err
	}
	index := runtime.InternalColumn("index")
	zipped, err := engine.ZipWithIndex(dctx.Context(), df, index, 1)
	if err != nil {
		return nil, err
	}
	udf := runtime.UDFName("count")
	err = engine.RegisterUDF(udf, func(args []any) (any, error) {
		n, ok := args[0].(int64)
		if !ok {
			return nil, fmt.Errorf("count: unexpected index %T", args[0])
		}
		return codec.EncodeSequence([]jsoniq.Item{jsoniq.Integer(n)})
	})
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid",
		selectList(carried(zipped, "", c.name), []string{as(frame.Call(udf, frame.Quote(index)), c.name)}),
		frame.Quote(zipped.Table))
	return engine.SQL(dctx.Context(), query)
}

func (c *Count) Mode() jsoniq.ExecutionMode {
	return c.child.Mode()
}

func (c *Count) Dependencies() demand.Set {
	return c.child.Dependencies()
}

func (c *Count) Projection(parent demand.Set) demand.Set {
	return demand.Delete(parent, c.name)
}

func (c *Count) Variables() []jsoniq.Name {
	return appendVariables(c.child, c.name)
}

func (c *Count) Loc() jsoniq.Loc {
	return c.loc
}

func (c *Count) Print(p *runtime.Printer) {
	p.Printf("Count $%s (%s)", c.name, c.Mode())
	p.Indent(func() {
		c.child.Print(p)
	})
}
