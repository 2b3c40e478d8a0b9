package expr

import (
	"github.com/brimdata/jsoniq"
	"github.com/brimdata/jsoniq/compiler/optimizer/demand"
	"github.com/brimdata/jsoniq/frame"
	"github.com/brimdata/jsoniq/runtime"
)

// Parallelize moves the sequence of a local expression onto the distributed
// engine.  Evaluated locally it is the identity.
type Parallelize struct {
	in  runtime.Iterator
	loc jsoniq.Loc
}

var _ runtime.RDDIterator = (*Parallelize)(nil)

func NewParallelize(in runtime.Iterator, loc jsoniq.Loc) *Parallelize {
	return &Parallelize{in: in, loc: loc}
}

func (p *Parallelize) Open(dctx *runtime.DynamicContext) error {
	return p.in.Open(dctx)
}

func (p *Parallelize) HasNext() bool {
	return p.in.HasNext()
}

func (p *Parallelize) Next() (jsoniq.Item, error) {
	return p.in.Next()
}

func (p *Parallelize) Close() {
	p.in.Close()
}

func (p *Parallelize) Reset(dctx *runtime.DynamicContext) error {
	return p.in.Reset(dctx)
}

func (p *Parallelize) RDD(dctx *runtime.DynamicContext) (*frame.RDD, error) {
	items, err := runtime.Materialize(p.in, dctx)
	if err != nil {
		return nil, err
	}
	return runtime.Parallelize(dctx, items)
}

func (*Parallelize) Mode() jsoniq.ExecutionMode {
	return jsoniq.ModeRDD
}

func (p *Parallelize) Dependencies() demand.Set {
	return p.in.Dependencies()
}

func (p *Parallelize) Loc() jsoniq.Loc {
	return p.loc
}

func (p *Parallelize) Print(pr *runtime.Printer) {
	pr.Printf("Parallelize (%s)", p.Mode())
	pr.Indent(func() {
		p.in.Print(pr)
	})
}
