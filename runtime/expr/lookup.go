package expr

import (
	"github.com/brimdata/jsoniq"
	"github.com/brimdata/jsoniq/compiler/optimizer/demand"
	"github.com/brimdata/jsoniq/runtime"
)

// Lookup is the object lookup in.key.  Items of in that are not objects or
// lack key contribute nothing.
type Lookup struct {
	in   runtime.Iterator
	key  string
	loc  jsoniq.Loc
	next jsoniq.Item
	err  error
}

var _ runtime.Iterator = (*Lookup)(nil)

func NewLookup(in runtime.Iterator, key string, loc jsoniq.Loc) *Lookup {
	return &Lookup{in: in, key: key, loc: loc}
}

func (l *Lookup) Open(dctx *runtime.DynamicContext) error {
	l.next, l.err = nil, nil
	if err := l.in.Open(dctx); err != nil {
		return err
	}
	l.fetch()
	return nil
}

func (l *Lookup) fetch() {
	l.next = nil
	for l.in.HasNext() {
		item, err := l.in.Next()
		if err != nil {
			l.err = err
			return
		}
		if obj, ok := item.(*jsoniq.Object); ok {
			if v, ok := obj.Get(l.key); ok {
				l.next = v
				return
			}
		}
	}
}

func (l *Lookup) HasNext() bool {
	return l.next != nil || l.err != nil
}

func (l *Lookup) Next() (jsoniq.Item, error) {
	if err := l.err; err != nil {
		l.err = nil
		return nil, err
	}
	if l.next == nil {
		return nil, errNoMoreItems
	}
	item := l.next
	l.fetch()
	return item, nil
}

func (l *Lookup) Close() {
	l.next, l.err = nil, nil
	l.in.Close()
}

func (l *Lookup) Reset(dctx *runtime.DynamicContext) error {
	l.Close()
	return l.Open(dctx)
}

func (*Lookup) Mode() jsoniq.ExecutionMode {
	return jsoniq.ModeLocal
}

func (l *Lookup) Dependencies() demand.Set {
	return l.in.Dependencies()
}

func (l *Lookup) Loc() jsoniq.Loc {
	return l.loc
}

func (l *Lookup) Print(p *runtime.Printer) {
	p.Printf("Lookup %q (%s)", l.key, l.Mode())
	p.Indent(func() {
		l.in.Print(p)
	})
}
