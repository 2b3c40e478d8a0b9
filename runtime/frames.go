package runtime

import (
	"errors"
	"fmt"
	"strings"

	"github.com/brimdata/jsoniq"
	"github.com/brimdata/jsoniq/codec"
	"github.com/brimdata/jsoniq/compiler/optimizer/demand"
	"github.com/brimdata/jsoniq/frame"
	"github.com/segmentio/ksuid"
)

// CellType is the declared type of the columns holding encoded sequences.
const CellType = "TEXT"

// InternalColumn names a column that carries no variable.  Internal names
// start with '#', which no variable name can contain.
func InternalColumn(name string) string {
	return "#" + name
}

func IsInternalColumn(column string) bool {
	return strings.HasPrefix(column, "#")
}

// ColumnName returns the column holding variable name.
func ColumnName(name jsoniq.Name) string {
	return codec.EncodeVariable(name)
}

func ColumnNames(names []jsoniq.Name) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, ColumnName(name))
	}
	return out
}

// UDFName returns a fresh UDF name.  The engine labels its metrics with
// kind.
func UDFName(kind string) string {
	return kind + "_" + ksuid.New().String()
}

func collect(dctx *DynamicContext, rdd *frame.RDD) ([]jsoniq.Item, error) {
	engine, err := dctx.Engine()
	if err != nil {
		return nil, err
	}
	rows, err := engine.Collect(dctx.Context(), rdd.Table, dctx.MaterializationCap())
	if err != nil {
		return nil, err
	}
	var items []jsoniq.Item
	for _, row := range rows {
		seq, err := codec.DecodeCell(row[0])
		if err != nil {
			return nil, err
		}
		items = append(items, seq...)
	}
	return items, nil
}

// CollectRDD returns the items of rdd, failing when there are more than the
// materialization cap.
func CollectRDD(dctx *DynamicContext, rdd *frame.RDD) ([]jsoniq.Item, error) {
	items, err := collect(dctx, rdd)
	if errors.Is(err, frame.ErrTooManyRows) {
		return nil, jsoniq.NewError(jsoniq.MaterializationCapExceeded, jsoniq.Loc{}, "cannot materialize a distributed sequence of more than %d items", dctx.MaterializationCap())
	}
	return items, err
}

// Parallelize stores items as an RDD.
func Parallelize(dctx *DynamicContext, items []jsoniq.Item) (*frame.RDD, error) {
	engine, err := dctx.Engine()
	if err != nil {
		return nil, err
	}
	rows := make([]frame.Row, 0, len(items))
	for _, item := range items {
		cell, err := codec.EncodeSequence([]jsoniq.Item{item})
		if err != nil {
			return nil, err
		}
		rows = append(rows, frame.Row{cell})
	}
	df, err := engine.CreateTable(dctx.Context(), frame.Schema{{Name: frame.ItemColumn, Type: CellType}}, rows)
	if err != nil {
		return nil, err
	}
	return &frame.RDD{Table: df.Table}, nil
}

// DataFrameToRDD converts each row of df into an object item.
func DataFrameToRDD(dctx *DynamicContext, df *frame.DataFrame) (*frame.RDD, error) {
	engine, err := dctx.Engine()
	if err != nil {
		return nil, err
	}
	schema := df.Schema
	name := UDFName("row_to_item")
	err = engine.RegisterUDF(name, func(args []any) (any, error) {
		obj, err := RowToObject(schema, args)
		if err != nil {
			return nil, err
		}
		return codec.EncodeSequence([]jsoniq.Item{obj})
	})
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s AS %s FROM %s ORDER BY rowid",
		frame.Call(name, frame.QuoteColumns("", schema.Names())...),
		frame.Quote(frame.ItemColumn),
		frame.Quote(df.Table))
	out, err := engine.SQL(dctx.Context(), query)
	if err != nil {
		return nil, err
	}
	return &frame.RDD{Table: out.Table}, nil
}

// RowToObject converts a row into an object keyed by column name, or by
// variable name for variable columns.  Cells
// holding encoded sequences become their single item, or an array when the
// sequence has any other length.
func RowToObject(schema frame.Schema, row []any) (*jsoniq.Object, error) {
	if len(row) != len(schema) {
		return nil, fmt.Errorf("row has %d values for %d columns", len(row), len(schema))
	}
	obj := jsoniq.NewObject()
	for i, c := range schema {
		if IsInternalColumn(c.Name) {
			continue
		}
		item, err := cellItem(row[i])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Name, err)
		}
		key := c.Name
		if name, err := codec.DecodeVariable(c.Name); err == nil {
			key = name.String()
		}
		obj.Add(key, item)
	}
	return obj, nil
}

func cellItem(cell any) (jsoniq.Item, error) {
	switch cell := cell.(type) {
	case nil:
		return jsoniq.Null{}, nil
	case int64:
		return jsoniq.Integer(cell), nil
	case float64:
		return jsoniq.Double(cell), nil
	case []byte:
		return cellItem(string(cell))
	case string:
		if !codec.IsSequence(cell) {
			return jsoniq.String(cell), nil
		}
		items, err := codec.DecodeSequence(cell)
		if err != nil {
			return nil, err
		}
		if len(items) == 1 {
			return items[0], nil
		}
		return jsoniq.NewArray(items...), nil
	}
	return nil, fmt.Errorf("unexpected cell type %T", cell)
}

// TupleFromRow decodes the variable columns of a row in projection, or all
// of them when projection is nil.
func TupleFromRow(schema frame.Schema, row frame.Row, projection demand.Set) (*Tuple, error) {
	t := NewTuple()
	for i, c := range schema {
		if IsInternalColumn(c.Name) {
			continue
		}
		name, err := codec.DecodeVariable(c.Name)
		if err != nil {
			return nil, err
		}
		if projection != nil && !projection.Has(name) {
			continue
		}
		items, err := codec.DecodeCell(row[i])
		if err != nil {
			return nil, fmt.Errorf("variable $%s: %w", name, err)
		}
		t.BindLocal(name, items)
	}
	return t, nil
}

// RegisterTupleUDF registers a UDF that decodes its arguments into the
// variables named by columns, binds them in a child of dctx and calls fn.
// The child context is reused from row to row.  It returns the UDF's name.
func RegisterTupleUDF(dctx *DynamicContext, kind string, columns []jsoniq.Name, fn func(*DynamicContext) (any, error)) (string, error) {
	engine, err := dctx.Engine()
	if err != nil {
		return "", err
	}
	name := UDFName(kind)
	rctx := NewChildContext(dctx)
	err = engine.RegisterUDF(name, func(args []any) (any, error) {
		if len(args) != len(columns) {
			return nil, fmt.Errorf("%s: called with %d arguments for %d variables", kind, len(args), len(columns))
		}
		rctx.RemoveAllVariables()
		for i, col := range columns {
			items, err := codec.DecodeCell(args[i])
			if err != nil {
				return nil, fmt.Errorf("variable $%s: %w", col, err)
			}
			rctx.AddLocalVariable(col, items)
		}
		return fn(rctx)
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

// TupleArgs returns the SQL arguments that pass columns to a tuple UDF.
func TupleArgs(alias string, columns []jsoniq.Name) []string {
	return frame.QuoteColumns(alias, ColumnNames(columns))
}
