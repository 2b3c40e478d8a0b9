// Package expr implements the expression iterators of a query plan.
package expr

import (
	"errors"
	"strings"

	"github.com/brimdata/jsoniq"
	"github.com/brimdata/jsoniq/compiler/optimizer/demand"
	"github.com/brimdata/jsoniq/runtime"
)

var errNoMoreItems = errors.New("no more items")

// Literal is a constant sequence.
type Literal struct {
	items  []jsoniq.Item
	loc    jsoniq.Loc
	cursor runtime.Cursor
}

var _ runtime.Iterator = (*Literal)(nil)

func NewLiteral(loc jsoniq.Loc, items ...jsoniq.Item) *Literal {
	return &Literal{items: items, loc: loc}
}

func (l *Literal) Open(*runtime.DynamicContext) error {
	l.cursor.Reset(l.items)
	return nil
}

func (l *Literal) HasNext() bool {
	return l.cursor.HasNext()
}

func (l *Literal) Next() (jsoniq.Item, error) {
	if !l.cursor.HasNext() {
		return nil, errNoMoreItems
	}
	return l.cursor.Next(), nil
}

func (l *Literal) Close() {
	l.cursor.Reset(nil)
}

func (l *Literal) Reset(dctx *runtime.DynamicContext) error {
	return l.Open(dctx)
}

func (*Literal) Mode() jsoniq.ExecutionMode {
	return jsoniq.ModeLocal
}

func (*Literal) Dependencies() demand.Set {
	return demand.None()
}

func (l *Literal) Loc() jsoniq.Loc {
	return l.loc
}

func (l *Literal) Print(p *runtime.Printer) {
	p.Printf("Literal %s (%s)", formatSequence(l.items), l.Mode())
}

func formatSequence(items []jsoniq.Item) string {
	if len(items) == 0 {
		return "()"
	}
	s := make([]string, 0, len(items))
	for _, item := range items {
		s = append(s, jsoniq.Serialize(item))
	}
	return strings.Join(s, ", ")
}
