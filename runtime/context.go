package runtime

import (
	"context"
	"errors"

	"github.com/brimdata/jsoniq"
	"github.com/brimdata/jsoniq/compiler/optimizer/demand"
	"github.com/brimdata/jsoniq/frame"
	"go.uber.org/zap"
)

var ErrNoEngine = errors.New("distributed execution requires an engine")

// DynamicContext is one scope of runtime variable bindings.  Scopes form a
// tree linked toward the root, which owns the function registry and the
// query-wide settings.  A scope belongs to the activation that created it
// and is never shared between concurrent evaluations.
//
// Each variable is bound at a node in exactly one tier: local items, an RDD
// or a DataFrame on the distributed engine, or only its count when nothing
// downstream needs the items themselves.
type DynamicContext struct {
	parent *DynamicContext
	local  map[jsoniq.Name][]jsoniq.Item
	rdds   map[jsoniq.Name]*frame.RDD
	frames map[jsoniq.Name]*frame.DataFrame
	counts map[jsoniq.Name]int64

	// Root only.
	ctx       context.Context
	config    Config
	functions *registry
}

// NewRootContext returns the root scope of a query.
func NewRootContext(ctx context.Context, config Config) *DynamicContext {
	config = config.withDefaults()
	d := newNode(nil)
	d.ctx = ctx
	d.config = config
	d.functions = newRegistry(config.Builtins)
	d.checkRegistryPlacement()
	return d
}

// NewChildContext returns a new scope nested in parent.
func NewChildContext(parent *DynamicContext) *DynamicContext {
	if parent == nil {
		panic("runtime: NewChildContext requires a parent context")
	}
	d := newNode(parent)
	d.checkRegistryPlacement()
	return d
}

func newNode(parent *DynamicContext) *DynamicContext {
	return &DynamicContext{
		parent: parent,
		local:  make(map[jsoniq.Name][]jsoniq.Item),
		rdds:   make(map[jsoniq.Name]*frame.RDD),
		frames: make(map[jsoniq.Name]*frame.DataFrame),
		counts: make(map[jsoniq.Name]int64),
	}
}

// checkRegistryPlacement enforces that exactly the root holds the function
// registry.
func (d *DynamicContext) checkRegistryPlacement() {
	if d.parent == nil && d.functions == nil {
		panic("runtime: root context has no function registry")
	}
	if d.parent != nil && d.functions != nil {
		panic("runtime: function registry on a non-root context")
	}
}

func (d *DynamicContext) Parent() *DynamicContext {
	return d.parent
}

func (d *DynamicContext) Root() *DynamicContext {
	root := d
	for root.parent != nil {
		root = root.parent
	}
	return root
}

// Context returns the context.Context of the query.
func (d *DynamicContext) Context() context.Context {
	return d.Root().ctx
}

func (d *DynamicContext) Logger() *zap.Logger {
	return d.Root().config.Logger
}

func (d *DynamicContext) MaterializationCap() int {
	return d.Root().config.MaterializationCap
}

// Engine returns the distributed engine or ErrNoEngine.
func (d *DynamicContext) Engine() (frame.Engine, error) {
	if e := d.Root().config.Engine; e != nil {
		return e, nil
	}
	return nil, ErrNoEngine
}

func (d *DynamicContext) registry() *registry {
	root := d.Root()
	root.checkRegistryPlacement()
	return root.functions
}

func (d *DynamicContext) unbind(name jsoniq.Name) {
	delete(d.local, name)
	delete(d.rdds, name)
	delete(d.frames, name)
	delete(d.counts, name)
}

func (d *DynamicContext) AddLocalVariable(name jsoniq.Name, items []jsoniq.Item) {
	d.unbind(name)
	d.local[name] = items
}

func (d *DynamicContext) AddRDDVariable(name jsoniq.Name, rdd *frame.RDD) {
	d.unbind(name)
	d.rdds[name] = rdd
}

func (d *DynamicContext) AddDataFrameVariable(name jsoniq.Name, df *frame.DataFrame) {
	d.unbind(name)
	d.frames[name] = df
}

// AddVariableCount binds only the number of items of name.
func (d *DynamicContext) AddVariableCount(name jsoniq.Name, n int64) {
	d.unbind(name)
	d.counts[name] = n
}

type tier int

const (
	unbound tier = iota
	localTier
	rddTier
	frameTier
	countTier
)

func (d *DynamicContext) tierOf(name jsoniq.Name) tier {
	if _, ok := d.local[name]; ok {
		return localTier
	}
	if _, ok := d.rdds[name]; ok {
		return rddTier
	}
	if _, ok := d.frames[name]; ok {
		return frameTier
	}
	if _, ok := d.counts[name]; ok {
		return countTier
	}
	return unbound
}

// lookup returns the nearest node binding name.
func (d *DynamicContext) lookup(name jsoniq.Name) (*DynamicContext, tier) {
	for node := d; node != nil; node = node.parent {
		if t := node.tierOf(name); t != unbound {
			return node, t
		}
	}
	return nil, unbound
}

func absent(name jsoniq.Name) error {
	return jsoniq.NewError(jsoniq.AbsentPartOfDynamicContext, jsoniq.Loc{}, "variable $%s is not bound", name)
}

func onlyCount(name jsoniq.Name) error {
	return jsoniq.NewError(jsoniq.OnlyCountAvailable, jsoniq.Loc{}, "only the count of $%s is available, not its values", name)
}

// LocalVariableValue returns the items bound to name.  Distributed
// bindings are collected, up to the materialization cap.
func (d *DynamicContext) LocalVariableValue(name jsoniq.Name) ([]jsoniq.Item, error) {
	node, t := d.lookup(name)
	switch t {
	case localTier:
		return node.local[name], nil
	case rddTier:
		return d.materialize(name, node.rdds[name])
	case frameTier:
		rdd, err := DataFrameToRDD(d, node.frames[name])
		if err != nil {
			return nil, err
		}
		return d.materialize(name, rdd)
	case countTier:
		return nil, onlyCount(name)
	}
	return nil, absent(name)
}

func (d *DynamicContext) materialize(name jsoniq.Name, rdd *frame.RDD) ([]jsoniq.Item, error) {
	items, err := collect(d, rdd)
	if errors.Is(err, frame.ErrTooManyRows) {
		return nil, jsoniq.NewError(jsoniq.MaterializationCapExceeded, jsoniq.Loc{}, "cannot materialize $%s: more than %d items", name, d.MaterializationCap())
	}
	return items, err
}

// RDDVariableValue returns name as an RDD.  DataFrame bindings are
// converted row by row and local bindings are parallelized.
func (d *DynamicContext) RDDVariableValue(name jsoniq.Name) (*frame.RDD, error) {
	node, t := d.lookup(name)
	switch t {
	case rddTier:
		return node.rdds[name], nil
	case frameTier:
		return DataFrameToRDD(d, node.frames[name])
	case localTier:
		return Parallelize(d, node.local[name])
	case countTier:
		return nil, onlyCount(name)
	}
	return nil, absent(name)
}

// DataFrameVariableValue returns name only when it is bound to a DataFrame.
func (d *DynamicContext) DataFrameVariableValue(name jsoniq.Name) (*frame.DataFrame, error) {
	node, t := d.lookup(name)
	switch t {
	case frameTier:
		return node.frames[name], nil
	case unbound:
		return nil, absent(name)
	}
	return nil, jsoniq.NewError(jsoniq.AbsentPartOfDynamicContext, jsoniq.Loc{}, "variable $%s is not bound to a data frame", name)
}

// VariableCount returns the number of items bound to name.
func (d *DynamicContext) VariableCount(name jsoniq.Name) (int64, error) {
	node, t := d.lookup(name)
	switch t {
	case countTier:
		return node.counts[name], nil
	case localTier:
		return int64(len(node.local[name])), nil
	case rddTier, frameTier:
		engine, err := d.Engine()
		if err != nil {
			return 0, err
		}
		if t == rddTier {
			return engine.Count(d.Context(), node.rdds[name].Table)
		}
		return engine.Count(d.Context(), node.frames[name].Table)
	}
	return 0, absent(name)
}

func (d *DynamicContext) Contains(name jsoniq.Name) bool {
	_, t := d.lookup(name)
	return t != unbound
}

func (d *DynamicContext) IsRDD(name jsoniq.Name) (bool, error) {
	_, t := d.lookup(name)
	if t == unbound {
		return false, absent(name)
	}
	return t == rddTier, nil
}

func (d *DynamicContext) IsDataFrame(name jsoniq.Name) (bool, error) {
	_, t := d.lookup(name)
	if t == unbound {
		return false, absent(name)
	}
	return t == frameTier, nil
}

// RemoveVariable unbinds name at this node only.
func (d *DynamicContext) RemoveVariable(name jsoniq.Name) {
	d.unbind(name)
}

// RemoveAllVariables unbinds every variable at this node only.
func (d *DynamicContext) RemoveAllVariables() {
	clear(d.local)
	clear(d.rdds)
	clear(d.frames)
	clear(d.counts)
}

// SetBindingsFromTuple binds the variables of t in projection at this node.
// Variables on which projection depends only by count are bound as counts.
// A nil projection binds everything.
func (d *DynamicContext) SetBindingsFromTuple(t *Tuple, projection demand.Set) {
	for _, name := range t.names {
		if projection != nil {
			dep, ok := projection.Get(name)
			if !ok {
				continue
			}
			if dep == demand.Count {
				if items, ok := t.local[name]; ok {
					d.AddVariableCount(name, int64(len(items)))
					continue
				}
			}
		}
		switch {
		case t.isLocal(name):
			d.AddLocalVariable(name, t.local[name])
		case t.isCount(name):
			d.AddVariableCount(name, t.counts[name])
		case t.rdds[name] != nil:
			d.AddRDDVariable(name, t.rdds[name])
		case t.frames[name] != nil:
			d.AddDataFrameVariable(name, t.frames[name])
		}
	}
}

func (d *DynamicContext) SetPosition(n int64) {
	d.AddLocalVariable(jsoniq.PositionName, []jsoniq.Item{jsoniq.Integer(n)})
}

func (d *DynamicContext) SetLast(n int64) {
	d.AddLocalVariable(jsoniq.LastName, []jsoniq.Item{jsoniq.Integer(n)})
}

// Position returns the context position.
func (d *DynamicContext) Position() (int64, error) {
	return d.contextInteger(jsoniq.PositionName, "position")
}

// Last returns the context size.
func (d *DynamicContext) Last() (int64, error) {
	return d.contextInteger(jsoniq.LastName, "last")
}

func (d *DynamicContext) contextInteger(name jsoniq.Name, what string) (int64, error) {
	items, err := d.LocalVariableValue(name)
	if err == nil && len(items) == 1 {
		if n, ok := items[0].(jsoniq.Integer); ok {
			return int64(n), nil
		}
	}
	return 0, jsoniq.NewError(jsoniq.AbsentPartOfDynamicContext, jsoniq.Loc{}, "context %s is absent", what)
}
