package runtime

import (
	"slices"
	"strings"

	"github.com/brimdata/jsoniq"
	"github.com/brimdata/jsoniq/frame"
)

// Tuple is an ordered set of variable bindings flowing between FLWOR
// clauses.  Like a DynamicContext node, each variable lives in exactly one
// tier.  A clause never modifies a tuple it has emitted; it derives a new
// one instead.
type Tuple struct {
	names  []jsoniq.Name
	local  map[jsoniq.Name][]jsoniq.Item
	rdds   map[jsoniq.Name]*frame.RDD
	frames map[jsoniq.Name]*frame.DataFrame
	counts map[jsoniq.Name]int64
}

func NewTuple() *Tuple {
	return &Tuple{
		local:  make(map[jsoniq.Name][]jsoniq.Item),
		rdds:   make(map[jsoniq.Name]*frame.RDD),
		frames: make(map[jsoniq.Name]*frame.DataFrame),
		counts: make(map[jsoniq.Name]int64),
	}
}

// Derive returns a copy of t that may be extended without affecting t.
func (t *Tuple) Derive() *Tuple {
	out := NewTuple()
	out.names = slices.Clone(t.names)
	for k, v := range t.local {
		out.local[k] = v
	}
	for k, v := range t.rdds {
		out.rdds[k] = v
	}
	for k, v := range t.frames {
		out.frames[k] = v
	}
	for k, v := range t.counts {
		out.counts[k] = v
	}
	return out
}

func (t *Tuple) bind(name jsoniq.Name) {
	if !slices.Contains(t.names, name) {
		t.names = append(t.names, name)
	}
	delete(t.local, name)
	delete(t.rdds, name)
	delete(t.frames, name)
	delete(t.counts, name)
}

func (t *Tuple) BindLocal(name jsoniq.Name, items []jsoniq.Item) *Tuple {
	t.bind(name)
	t.local[name] = items
	return t
}

func (t *Tuple) BindRDD(name jsoniq.Name, rdd *frame.RDD) *Tuple {
	t.bind(name)
	t.rdds[name] = rdd
	return t
}

func (t *Tuple) BindDataFrame(name jsoniq.Name, df *frame.DataFrame) *Tuple {
	t.bind(name)
	t.frames[name] = df
	return t
}

// BindCount records only the number of items bound to name.
func (t *Tuple) BindCount(name jsoniq.Name, n int64) *Tuple {
	t.bind(name)
	t.counts[name] = n
	return t
}

func (t *Tuple) Local(name jsoniq.Name) ([]jsoniq.Item, bool) {
	items, ok := t.local[name]
	return items, ok
}

// Names returns the bound variables in binding order.
func (t *Tuple) Names() []jsoniq.Name {
	return slices.Clone(t.names)
}

func (t *Tuple) Contains(name jsoniq.Name) bool {
	return slices.Contains(t.names, name)
}

// String renders the local bindings, e.g. {$x: 1, $y: (1, 2)}.
func (t *Tuple) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, name := range t.names {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("$" + name.String() + ": ")
		switch {
		case t.isLocal(name):
			writeSequence(&b, t.local[name])
		case t.isCount(name):
			b.WriteString("count(")
			b.WriteString(jsoniq.Integer(t.counts[name]).String())
			b.WriteByte(')')
		case t.rdds[name] != nil:
			b.WriteString("rdd(" + t.rdds[name].Table + ")")
		case t.frames[name] != nil:
			b.WriteString("dataframe(" + t.frames[name].Table + ")")
		}
	}
	b.WriteByte('}')
	return b.String()
}

func (t *Tuple) isLocal(name jsoniq.Name) bool {
	_, ok := t.local[name]
	return ok
}

func (t *Tuple) isCount(name jsoniq.Name) bool {
	_, ok := t.counts[name]
	return ok
}

func writeSequence(b *strings.Builder, items []jsoniq.Item) {
	if len(items) == 1 {
		b.WriteString(jsoniq.Serialize(items[0]))
		return
	}
	b.WriteByte('(')
	for i, item := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(jsoniq.Serialize(item))
	}
	b.WriteByte(')')
}
