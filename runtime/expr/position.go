package expr

import (
	"github.com/brimdata/jsoniq"
	"github.com/brimdata/jsoniq/compiler/optimizer/demand"
	"github.com/brimdata/jsoniq/runtime"
)

// Position is fn:position() or, for a Last, fn:last().
type Position struct {
	last bool
	loc  jsoniq.Loc
	done bool
	n    int64
}

var _ runtime.Iterator = (*Position)(nil)

func NewPosition(loc jsoniq.Loc) *Position {
	return &Position{loc: loc, done: true}
}

func NewLast(loc jsoniq.Loc) *Position {
	return &Position{last: true, loc: loc, done: true}
}

func (p *Position) Open(dctx *runtime.DynamicContext) error {
	var err error
	if p.last {
		p.n, err = dctx.Last()
	} else {
		p.n, err = dctx.Position()
	}
	if err != nil {
		return jsoniq.WithLoc(err, p.loc)
	}
	p.done = false
	return nil
}

func (p *Position) HasNext() bool {
	return !p.done
}

func (p *Position) Next() (jsoniq.Item, error) {
	if p.done {
		return nil, errNoMoreItems
	}
	p.done = true
	return jsoniq.Integer(p.n), nil
}

func (p *Position) Close() {
	p.done = true
}

func (p *Position) Reset(dctx *runtime.DynamicContext) error {
	return p.Open(dctx)
}

func (*Position) Mode() jsoniq.ExecutionMode {
	return jsoniq.ModeLocal
}

func (p *Position) Dependencies() demand.Set {
	if p.last {
		return demand.Of(jsoniq.LastName, demand.Full)
	}
	return demand.Of(jsoniq.PositionName, demand.Full)
}

func (p *Position) Loc() jsoniq.Loc {
	return p.loc
}

func (p *Position) Print(pr *runtime.Printer) {
	if p.last {
		pr.Printf("Last (%s)", p.Mode())
	} else {
		pr.Printf("Position (%s)", p.Mode())
	}
}
