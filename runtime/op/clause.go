// Package op implements the FLWOR clauses.  Every clause evaluates locally
// by pulling tuples from its child.  Clauses whose mode is dataframe also
// compile into a query over the child's table on the distributed engine.
package op

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/brimdata/jsoniq"
	"github.com/brimdata/jsoniq/codec"
	"github.com/brimdata/jsoniq/compiler/optimizer/demand"
	"github.com/brimdata/jsoniq/frame"
	"github.com/brimdata/jsoniq/runtime"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/brimdata/jsoniq/runtime/op")

var errNoMoreTuples = errors.New("no more tuples")

// projection returns what a clause binding bound needs from child given
// that its parent needs parent and its own expressions need deps.
func projection(parent, deps demand.Set, child runtime.TupleIterator, bound ...jsoniq.Name) demand.Set {
	return demand.Delete(demand.Union(parent, demand.Restrict(deps, variables(child))), bound...)
}

// dependencies returns what a clause reads from outside its tuples: the
// needs of its expressions not met by child plus the needs of child.
func dependencies(deps demand.Set, child runtime.TupleIterator) demand.Set {
	if child == nil {
		return deps
	}
	return demand.Union(demand.Delete(deps, child.Variables()...), child.Dependencies())
}

func variables(child runtime.TupleIterator) []jsoniq.Name {
	if child == nil {
		return nil
	}
	return child.Variables()
}

// appendVariables returns the variables of child followed by names not
// already among them.
func appendVariables(child runtime.TupleIterator, names ...jsoniq.Name) []jsoniq.Name {
	vars := slices.Clone(variables(child))
	for _, name := range names {
		if !name.IsZero() && !slices.Contains(vars, name) {
			vars = append(vars, name)
		}
	}
	return vars
}

// childDataFrame compiles child, which must be a DataFrameIterator.
func childDataFrame(dctx *runtime.DynamicContext, child runtime.TupleIterator, projection demand.Set) (*frame.DataFrame, error) {
	dfIt, ok := child.(runtime.DataFrameIterator)
	if !ok || !child.Mode().IsDataFrame() {
		return nil, fmt.Errorf("clause at %s cannot be compiled into a data frame", child.Loc())
	}
	return dfIt.DataFrame(dctx, projection)
}

func jobWithinAJob(what string, loc jsoniq.Loc) error {
	return jsoniq.NewError(jsoniq.JobWithinAJob, loc, "%s cannot evaluate a distributed expression for each tuple of a distributed clause", what)
}

// carried returns the variable columns of df except those of names,
// qualified by alias.
func carried(df *frame.DataFrame, alias string, names ...jsoniq.Name) []string {
	exclude := runtime.ColumnNames(names)
	var cols []string
	for _, c := range df.Schema {
		if runtime.IsInternalColumn(c.Name) || slices.Contains(exclude, c.Name) {
			continue
		}
		cols = append(cols, c.Name)
	}
	return frame.QuoteColumns(alias, cols)
}

// inputColumns returns the variables of child that deps needs, in name
// order.
func inputColumns(deps demand.Set, child runtime.TupleIterator) []jsoniq.Name {
	return demand.Restrict(deps, variables(child)).Names()
}

// selectList joins select expressions.
func selectList(cols ...[]string) string {
	var all []string
	for _, c := range cols {
		all = append(all, c...)
	}
	if len(all) == 0 {
		return "NULL AS " + frame.Quote(runtime.InternalColumn("empty"))
	}
	return strings.Join(all, ", ")
}

// sequenceCell is the SQL building an encoded one-item sequence from the
// JSON text of an encoded item.
func sequenceCell(item string) string {
	return fmt.Sprintf("json_object('v', %d, 's', json_array(json(%s)))", codec.Version, item)
}

// integerCell is the SQL building an encoded sequence holding the integer
// value of expr.
func integerCell(expr string) string {
	return sequenceCell(fmt.Sprintf("json_object('t', 'integer', 'v', CAST(%s AS TEXT))", expr))
}

func as(expr string, name jsoniq.Name) string {
	return expr + " AS " + frame.Quote(runtime.ColumnName(name))
}

// bind binds the variables of t that deps needs in ctx, replacing the
// bindings of the previous tuple.
func bind(ctx *runtime.DynamicContext, t *runtime.Tuple, deps demand.Set) {
	ctx.RemoveAllVariables()
	ctx.SetBindingsFromTuple(t, deps)
}

func encodeSequence(items []jsoniq.Item, loc jsoniq.Loc) (string, error) {
	cell, err := codec.EncodeSequence(items)
	if err != nil {
		return "", jsoniq.NewError(jsoniq.UnexpectedType, loc, "cannot store sequence on the distributed engine: %s", err)
	}
	return cell, nil
}

func printChild(p *runtime.Printer, child runtime.TupleIterator) {
	if child != nil {
		child.Print(p)
	}
}
