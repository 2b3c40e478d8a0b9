package runtime

import (
	"errors"
	"fmt"
	"strings"

	"github.com/brimdata/jsoniq"
	"github.com/brimdata/jsoniq/compiler/optimizer/demand"
	"github.com/brimdata/jsoniq/frame"
)

// Iterator evaluates an expression to a sequence of items.  Every iterator
// evaluates locally: Open, then Next while HasNext, then Close.  Reset
// restarts an open iterator in a new context.  An error hit while
// prefetching is held until the next call to Next, so HasNext reports true
// while one is pending.
//
// The execution mode is fixed when the iterator is built.  Iterators whose
// mode is big also implement RDDIterator.
type Iterator interface {
	Open(*DynamicContext) error
	HasNext() bool
	Next() (jsoniq.Item, error)
	Close()
	Reset(*DynamicContext) error
	Mode() jsoniq.ExecutionMode
	// Dependencies returns the variables the iterator reads.
	Dependencies() demand.Set
	Loc() jsoniq.Loc
	Print(*Printer)
}

// RDDIterator compiles an expression into a table of items on the
// distributed engine.
type RDDIterator interface {
	Iterator
	RDD(*DynamicContext) (*frame.RDD, error)
}

// TupleIterator is the Iterator protocol for FLWOR clauses, which produce
// tuples of variable bindings instead of items.
type TupleIterator interface {
	Open(*DynamicContext) error
	HasNext() bool
	Next() (*Tuple, error)
	Close()
	Reset(*DynamicContext) error
	Mode() jsoniq.ExecutionMode
	Dependencies() demand.Set
	// Projection returns what the clause needs from its child given what
	// its parent needs from it.
	Projection(parent demand.Set) demand.Set
	// Variables returns the variables bound by the clause and its children.
	Variables() []jsoniq.Name
	Loc() jsoniq.Loc
	Print(*Printer)
}

// DataFrameIterator compiles a clause into a table of tuples holding the
// variables in projection.
type DataFrameIterator interface {
	TupleIterator
	DataFrame(dctx *DynamicContext, projection demand.Set) (*frame.DataFrame, error)
}

var ErrMoreThanOneItem = errors.New("sequence has more than one item")

// Materialize opens it, drains it and closes it.
func Materialize(it Iterator, dctx *DynamicContext) ([]jsoniq.Item, error) {
	if err := it.Open(dctx); err != nil {
		return nil, err
	}
	defer it.Close()
	var items []jsoniq.Item
	for it.HasNext() {
		item, err := it.Next()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// MaterializeAtMostOne evaluates it to nil or a single item and fails with
// ErrMoreThanOneItem on longer sequences.
func MaterializeAtMostOne(it Iterator, dctx *DynamicContext) (jsoniq.Item, error) {
	if err := it.Open(dctx); err != nil {
		return nil, err
	}
	defer it.Close()
	if !it.HasNext() {
		return nil, nil
	}
	item, err := it.Next()
	if err != nil {
		return nil, err
	}
	if it.HasNext() {
		return nil, ErrMoreThanOneItem
	}
	return item, nil
}

// Cursor steps through a materialized sequence.
type Cursor struct {
	items []jsoniq.Item
	off   int
}

func (c *Cursor) Reset(items []jsoniq.Item) {
	c.items = items
	c.off = 0
}

func (c *Cursor) HasNext() bool {
	return c.off < len(c.items)
}

func (c *Cursor) Next() jsoniq.Item {
	item := c.items[c.off]
	c.off++
	return item
}

// Printer renders a plan as an indented tree.
type Printer struct {
	b     strings.Builder
	depth int
}

func (p *Printer) Printf(format string, args ...any) {
	p.b.WriteString(strings.Repeat("  ", p.depth))
	fmt.Fprintf(&p.b, format, args...)
	p.b.WriteByte('\n')
}

// Indent prints the children added by fn one level deeper.
func (p *Printer) Indent(fn func()) {
	p.depth++
	fn()
	p.depth--
}

func (p *Printer) String() string {
	return p.b.String()
}

// Print returns the plan rooted at node.
func Print(node interface{ Print(*Printer) }) string {
	var p Printer
	node.Print(&p)
	return p.String()
}
