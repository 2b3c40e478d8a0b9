// Package exec drives the evaluation of a query plan.
package exec

import (
	"errors"
	"fmt"

	"github.com/brimdata/jsoniq"
	"github.com/brimdata/jsoniq/compiler/optimizer/demand"
	"github.com/brimdata/jsoniq/frame"
	"github.com/brimdata/jsoniq/runtime"
)

// Run evaluates it locally and returns its items.
func Run(dctx *runtime.DynamicContext, it runtime.Iterator) ([]jsoniq.Item, error) {
	var items []jsoniq.Item
	err := runtime.Catch(func() error {
		var err error
		items, err = runtime.Materialize(it, dctx)
		return err
	})
	return items, err
}

// RunDistributed evaluates it on the distributed engine and collects its
// items.  An iterator whose mode is local is evaluated locally.
func RunDistributed(dctx *runtime.DynamicContext, it runtime.Iterator) ([]jsoniq.Item, error) {
	rddIt, ok := it.(runtime.RDDIterator)
	if !ok || !it.Mode().IsBig() {
		return Run(dctx, it)
	}
	var items []jsoniq.Item
	err := runtime.Catch(func() error {
		rdd, err := rddIt.RDD(dctx)
		if err != nil {
			return err
		}
		items, err = runtime.CollectRDD(dctx, rdd)
		return err
	})
	return items, err
}

// CollectTuples evaluates the clause it locally and returns its tuples.
func CollectTuples(dctx *runtime.DynamicContext, it runtime.TupleIterator) ([]*runtime.Tuple, error) {
	var tuples []*runtime.Tuple
	err := runtime.Catch(func() error {
		if err := it.Open(dctx); err != nil {
			return err
		}
		defer it.Close()
		for it.HasNext() {
			t, err := it.Next()
			if err != nil {
				return err
			}
			tuples = append(tuples, t)
		}
		return nil
	})
	return tuples, err
}

// CollectFrame compiles the clause it into a table holding all of its
// variables and decodes the table's rows into tuples.
func CollectFrame(dctx *runtime.DynamicContext, it runtime.DataFrameIterator) ([]*runtime.Tuple, error) {
	var tuples []*runtime.Tuple
	err := runtime.Catch(func() error {
		if !it.Mode().IsDataFrame() {
			return fmt.Errorf("clause at %s does not run on the distributed engine", it.Loc())
		}
		engine, err := dctx.Engine()
		if err != nil {
			return err
		}
		df, err := it.DataFrame(dctx, demand.All(it.Variables()))
		if err != nil {
			return err
		}
		rows, err := engine.Collect(dctx.Context(), df.Table, dctx.MaterializationCap())
		if errors.Is(err, frame.ErrTooManyRows) {
			return jsoniq.NewError(jsoniq.MaterializationCapExceeded, it.Loc(), "cannot materialize more than %d tuples", dctx.MaterializationCap())
		}
		if err != nil {
			return err
		}
		for _, row := range rows {
			t, err := runtime.TupleFromRow(df.Schema, row, nil)
			if err != nil {
				return err
			}
			tuples = append(tuples, t)
		}
		return nil
	})
	return tuples, err
}

// Explain returns the plan rooted at node with the mode of each iterator.
func Explain(node interface{ Print(*runtime.Printer) }) string {
	return runtime.Print(node)
}
