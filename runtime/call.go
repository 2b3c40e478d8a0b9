package runtime

import (
	"fmt"

	"github.com/brimdata/jsoniq"
	"github.com/brimdata/jsoniq/compiler/optimizer/demand"
)

// Call evaluates a user-defined function.  Each Open binds the arguments
// and the closure in a fresh child of the root context and builds a fresh
// body, so activations never share variables or iterator state.
type Call struct {
	fn   *jsoniq.Function
	args []Iterator
	loc  jsoniq.Loc
	body Iterator
}

var _ Iterator = (*Call)(nil)

func NewCall(fn *jsoniq.Function, args []Iterator, loc jsoniq.Loc) (*Call, error) {
	if len(args) != len(fn.Params) {
		return nil, jsoniq.NewError(jsoniq.UnknownFunctionCall, loc, "function %s called with %d arguments", fn.ID, len(args))
	}
	return &Call{fn: fn, args: args, loc: loc}, nil
}

func (c *Call) Open(dctx *DynamicContext) error {
	callCtx := NewChildContext(dctx.Root())
	for _, name := range jsoniq.SortedNames(c.fn.Closure) {
		callCtx.AddLocalVariable(name, c.fn.Closure[name])
	}
	for i, arg := range c.args {
		items, err := Materialize(arg, dctx)
		if err != nil {
			return err
		}
		if i < len(c.fn.Signature.Params) {
			if typ := c.fn.Signature.Params[i]; !typ.Matches(items) {
				return jsoniq.NewError(jsoniq.UnexpectedType, c.loc, "invalid argument %d of function %s: expected %s", i+1, c.fn.ID, typ)
			}
		}
		callCtx.AddLocalVariable(c.fn.Params[i], items)
	}
	if c.fn.NewBody == nil {
		return fmt.Errorf("function %s has no body", c.fn.ID)
	}
	body, ok := c.fn.NewBody().(Iterator)
	if !ok {
		return fmt.Errorf("function %s: body is not an iterator", c.fn.ID)
	}
	c.body = body
	return body.Open(callCtx)
}

func (c *Call) HasNext() bool {
	return c.body != nil && c.body.HasNext()
}

func (c *Call) Next() (jsoniq.Item, error) {
	return c.body.Next()
}

func (c *Call) Close() {
	if c.body != nil {
		c.body.Close()
		c.body = nil
	}
}

func (c *Call) Reset(dctx *DynamicContext) error {
	c.Close()
	return c.Open(dctx)
}

func (c *Call) Mode() jsoniq.ExecutionMode {
	return jsoniq.ModeLocal
}

func (c *Call) Dependencies() demand.Set {
	sets := make([]demand.Set, 0, len(c.args))
	for _, arg := range c.args {
		sets = append(sets, arg.Dependencies())
	}
	return demand.Union(sets...)
}

func (c *Call) Loc() jsoniq.Loc {
	return c.loc
}

func (c *Call) Print(p *Printer) {
	p.Printf("Call %s (%s)", c.fn.ID, c.Mode())
	p.Indent(func() {
		for _, arg := range c.args {
			arg.Print(p)
		}
	})
}

// Treat checks that the sequence produced by a function call conforms to
// the function's declared return type.
type Treat struct {
	in  Iterator
	typ jsoniq.SequenceType
	id  jsoniq.FunctionIdentifier
	loc jsoniq.Loc

	n       int
	next    jsoniq.Item
	pending error
}

var _ Iterator = (*Treat)(nil)

func NewTreat(in Iterator, typ jsoniq.SequenceType, id jsoniq.FunctionIdentifier, loc jsoniq.Loc) *Treat {
	return &Treat{in: in, typ: typ, id: id, loc: loc}
}

func (t *Treat) Open(dctx *DynamicContext) error {
	t.n = 0
	t.next = nil
	t.pending = nil
	if err := t.in.Open(dctx); err != nil {
		return err
	}
	t.fetch()
	return nil
}

func (t *Treat) mismatch(what string) error {
	return jsoniq.NewError(jsoniq.UnexpectedType, t.loc, "invalid return value of function %s: %s does not match %s", t.id, what, t.typ)
}

func (t *Treat) fetch() {
	t.next = nil
	if !t.in.HasNext() {
		if t.n == 0 && !t.typ.Arity.AllowsEmpty() {
			t.pending = t.mismatch("empty sequence")
		}
		return
	}
	item, err := t.in.Next()
	if err != nil {
		t.pending = err
		return
	}
	t.n++
	switch {
	case t.n > 1 && !t.typ.Arity.AllowsMany():
		t.pending = t.mismatch("sequence of more than one item")
	case !item.Type().Matches(t.typ.Item):
		t.pending = t.mismatch(item.Type().String())
	default:
		t.next = item
	}
}

func (t *Treat) HasNext() bool {
	return t.next != nil || t.pending != nil
}

func (t *Treat) Next() (jsoniq.Item, error) {
	if err := t.pending; err != nil {
		t.pending = nil
		return nil, err
	}
	if t.next == nil {
		return nil, fmt.Errorf("%s: no more items", t.id)
	}
	item := t.next
	t.fetch()
	return item, nil
}

func (t *Treat) Close() {
	t.next = nil
	t.pending = nil
	t.in.Close()
}

func (t *Treat) Reset(dctx *DynamicContext) error {
	t.Close()
	return t.Open(dctx)
}

func (t *Treat) Mode() jsoniq.ExecutionMode {
	return t.in.Mode()
}

func (t *Treat) Dependencies() demand.Set {
	return t.in.Dependencies()
}

func (t *Treat) Loc() jsoniq.Loc {
	return t.loc
}

func (t *Treat) Print(p *Printer) {
	p.Printf("Treat as %s (%s)", t.typ, t.Mode())
	p.Indent(func() {
		t.in.Print(p)
	})
}
