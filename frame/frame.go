// Package frame abstracts the distributed relational engine that runs the
// big (RDD and DataFrame mode) parts of a query.  Tables are ordered: a
// table's row order is the order of its tuples or items.  Queries are SQL
// in the SQLite dialect and reach back into the query runtime through
// registered UDFs.
package frame

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ItemColumn is the single column of an RDD table.  Each cell holds a
// one-item encoded sequence.
const ItemColumn = "item"

// DispatchFunction is the SQL function through which registered UDFs are
// called: DispatchFunction('name', args...).
const DispatchFunction = "jsoniq_udf"

var ErrTooManyRows = errors.New("result exceeds row limit")

type Column struct {
	Name string
	Type string
}

type Schema []Column

func (s Schema) Names() []string {
	names := make([]string, 0, len(s))
	for _, c := range s {
		names = append(names, c.Name)
	}
	return names
}

func (s Schema) Index(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func (s Schema) Has(name string) bool {
	return s.Index(name) >= 0
}

// DataFrame is a table of tuples.  Variable columns are named by their
// encoded variable name and hold encoded sequences.
type DataFrame struct {
	Table  string
	Schema Schema
}

// RDD is a table of items in ItemColumn.
type RDD struct {
	Table string
}

type Row []any

// UDF is a function callable from SQL.  Arguments and results are SQLite
// values: int64, float64, string, []byte or nil.
type UDF func(args []any) (any, error)

type Engine interface {
	RegisterUDF(name string, fn UDF) error
	RegisterCollation(name string, cmp func(a, b string) int) error
	// CreateTable stores rows in a new table with the given schema.
	CreateTable(ctx context.Context, schema Schema, rows []Row) (*DataFrame, error)
	// SQL materializes the result of a SELECT into a new table.
	SQL(ctx context.Context, query string, args ...any) (*DataFrame, error)
	// ZipWithIndex appends column numbering the rows of df from start.
	ZipWithIndex(ctx context.Context, df *DataFrame, column string, start int64) (*DataFrame, error)
	// Collect returns the rows of table in order.  A non-negative limit
	// bounds the result and more rows fail with ErrTooManyRows.
	Collect(ctx context.Context, table string, limit int) ([]Row, error)
	Count(ctx context.Context, table string) (int64, error)
	Close() error
}

// Quote quotes an SQL identifier.
func Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// QuoteString quotes an SQL string literal.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// QuoteColumns qualifies and quotes columns for a select list.
func QuoteColumns(alias string, columns []string) []string {
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if alias != "" {
			out = append(out, alias+"."+Quote(c))
		} else {
			out = append(out, Quote(c))
		}
	}
	return out
}

// Call returns the SQL expression calling the UDF registered as name.
func Call(name string, args ...string) string {
	return fmt.Sprintf("%s(%s)", DispatchFunction, strings.Join(append([]string{QuoteString(name)}, args...), ", "))
}
