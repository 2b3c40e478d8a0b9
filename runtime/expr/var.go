package expr

import (
	"github.com/brimdata/jsoniq"
	"github.com/brimdata/jsoniq/compiler/optimizer/demand"
	"github.com/brimdata/jsoniq/frame"
	"github.com/brimdata/jsoniq/runtime"
)

// Var is a variable reference.  Its mode is the storage mode the static
// context recorded for the variable.
type Var struct {
	name   jsoniq.Name
	mode   jsoniq.ExecutionMode
	loc    jsoniq.Loc
	cursor runtime.Cursor
}

var _ runtime.RDDIterator = (*Var)(nil)

func NewVar(name jsoniq.Name, mode jsoniq.ExecutionMode, loc jsoniq.Loc) *Var {
	if mode == jsoniq.ModeUnset {
		mode = jsoniq.ModeLocal
	}
	return &Var{name: name, mode: mode, loc: loc}
}

func (v *Var) Name() jsoniq.Name {
	return v.name
}

func (v *Var) Open(dctx *runtime.DynamicContext) error {
	items, err := dctx.LocalVariableValue(v.name)
	if err != nil {
		return jsoniq.WithLoc(err, v.loc)
	}
	v.cursor.Reset(items)
	return nil
}

func (v *Var) HasNext() bool {
	return v.cursor.HasNext()
}

func (v *Var) Next() (jsoniq.Item, error) {
	if !v.cursor.HasNext() {
		return nil, errNoMoreItems
	}
	return v.cursor.Next(), nil
}

func (v *Var) Close() {
	v.cursor.Reset(nil)
}

func (v *Var) Reset(dctx *runtime.DynamicContext) error {
	return v.Open(dctx)
}

func (v *Var) RDD(dctx *runtime.DynamicContext) (*frame.RDD, error) {
	rdd, err := dctx.RDDVariableValue(v.name)
	return rdd, jsoniq.WithLoc(err, v.loc)
}

func (v *Var) Mode() jsoniq.ExecutionMode {
	return v.mode
}

func (v *Var) Dependencies() demand.Set {
	return demand.Of(v.name, demand.Full)
}

func (v *Var) Loc() jsoniq.Loc {
	return v.loc
}

func (v *Var) Print(p *runtime.Printer) {
	p.Printf("Var $%s (%s)", v.name, v.mode)
}

// CountVar is count($name).  It needs only the number of items bound to the
// variable.
type CountVar struct {
	name jsoniq.Name
	loc  jsoniq.Loc
	done bool
	n    int64
}

var _ runtime.Iterator = (*CountVar)(nil)

func NewCountVar(name jsoniq.Name, loc jsoniq.Loc) *CountVar {
	return &CountVar{name: name, loc: loc, done: true}
}

func (c *CountVar) Open(dctx *runtime.DynamicContext) error {
	n, err := dctx.VariableCount(c.name)
	if err != nil {
		return jsoniq.WithLoc(err, c.loc)
	}
	c.n = n
	c.done = false
	return nil
}

func (c *CountVar) HasNext() bool {
	return !c.done
}

func (c *CountVar) Next() (jsoniq.Item, error) {
	if c.done {
		return nil, errNoMoreItems
	}
	c.done = true
	return jsoniq.Integer(c.n), nil
}

func (c *CountVar) Close() {
	c.done = true
}

func (c *CountVar) Reset(dctx *runtime.DynamicContext) error {
	return c.Open(dctx)
}

func (*CountVar) Mode() jsoniq.ExecutionMode {
	return jsoniq.ModeLocal
}

func (c *CountVar) Dependencies() demand.Set {
	return demand.Of(c.name, demand.Count)
}

func (c *CountVar) Loc() jsoniq.Loc {
	return c.loc
}

func (c *CountVar) Print(p *runtime.Printer) {
	p.Printf("Count $%s (%s)", c.name, c.Mode())
}
