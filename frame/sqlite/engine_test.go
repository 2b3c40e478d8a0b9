package sqlite_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/brimdata/jsoniq/frame"
	"github.com/brimdata/jsoniq/frame/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openEngine(t *testing.T, reg prometheus.Registerer) *sqlite.Engine {
	e, err := sqlite.Open("", nil, reg)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func createWords(t *testing.T, e *sqlite.Engine, words ...string) *frame.DataFrame {
	var rows []frame.Row
	for _, w := range words {
		rows = append(rows, frame.Row{w})
	}
	df, err := e.CreateTable(context.Background(), frame.Schema{{Name: "w", Type: "TEXT"}}, rows)
	require.NoError(t, err)
	return df
}

func TestCreateAndCollectInOrder(t *testing.T) {
	e := openEngine(t, nil)
	df := createWords(t, e, "c", "a", "b")
	rows, err := e.Collect(context.Background(), df.Table, -1)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "c", rows[0][0])
	n, err := e.Count(context.Background(), df.Table)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestCollectLimit(t *testing.T) {
	e := openEngine(t, nil)
	df := createWords(t, e, "a", "b", "c")
	_, err := e.Collect(context.Background(), df.Table, 2)
	assert.True(t, errors.Is(err, frame.ErrTooManyRows))
	rows, err := e.Collect(context.Background(), df.Table, 3)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestSQLKeepsOrderByOrder(t *testing.T) {
	e := openEngine(t, nil)
	df := createWords(t, e, "c", "a", "b")
	sorted, err := e.SQL(context.Background(), "SELECT w FROM "+frame.Quote(df.Table)+" ORDER BY w DESC")
	require.NoError(t, err)
	assert.Equal(t, []string{"w"}, sorted.Schema.Names())
	rows, err := e.Collect(context.Background(), sorted.Table, -1)
	require.NoError(t, err)
	assert.Equal(t, []frame.Row{{"c"}, {"b"}, {"a"}}, rows)
}

func TestZipWithIndex(t *testing.T) {
	e := openEngine(t, nil)
	df := createWords(t, e, "x", "y", "z")
	zipped, err := e.ZipWithIndex(context.Background(), df, "#idx", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"w", "#idx"}, zipped.Schema.Names())
	rows, err := e.Collect(context.Background(), zipped.Table, -1)
	require.NoError(t, err)
	assert.Equal(t, []frame.Row{{"x", int64(1)}, {"y", int64(2)}, {"z", int64(3)}}, rows)
}

func TestUDF(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := openEngine(t, reg)
	require.NoError(t, e.RegisterUDF("upper_1", func(args []any) (any, error) {
		return strings.ToUpper(args[0].(string)), nil
	}))
	assert.Error(t, e.RegisterUDF("upper_1", nil))
	df := createWords(t, e, "a", "b")
	out, err := e.SQL(context.Background(), "SELECT "+frame.Call("upper_1", "w")+" AS u FROM "+frame.Quote(df.Table)+" ORDER BY rowid")
	require.NoError(t, err)
	rows, err := e.Collect(context.Background(), out.Table, -1)
	require.NoError(t, err)
	assert.Equal(t, []frame.Row{{"A"}, {"B"}}, rows)

	expected := `
# HELP jsoniq_frame_udf_calls_total Number of UDF invocations made by SQL statements.
# TYPE jsoniq_frame_udf_calls_total counter
jsoniq_frame_udf_calls_total{kind="upper"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "jsoniq_frame_udf_calls_total"))
}

type udfError struct{ msg string }

func (u *udfError) Error() string { return u.msg }

func TestUDFErrorKeepsType(t *testing.T) {
	e := openEngine(t, nil)
	require.NoError(t, e.RegisterUDF("fail_1", func(args []any) (any, error) {
		return nil, &udfError{"boom"}
	}))
	df := createWords(t, e, "a")
	_, err := e.SQL(context.Background(), "SELECT "+frame.Call("fail_1", "w")+" FROM "+frame.Quote(df.Table))
	var target *udfError
	require.True(t, errors.As(err, &target))
	assert.Equal(t, "boom", target.msg)
	// The recorded error does not leak into the next statement.
	_, err = e.SQL(context.Background(), "SELECT nosuchcolumn FROM "+frame.Quote(df.Table))
	require.Error(t, err)
	assert.False(t, errors.As(err, &target))
}

func TestCollation(t *testing.T) {
	e := openEngine(t, nil)
	require.NoError(t, e.RegisterCollation("bylen", func(a, b string) int {
		return len(a) - len(b)
	}))
	df := createWords(t, e, "ccc", "a", "bb")
	out, err := e.SQL(context.Background(), "SELECT w FROM "+frame.Quote(df.Table)+" ORDER BY w COLLATE bylen")
	require.NoError(t, err)
	rows, err := e.Collect(context.Background(), out.Table, -1)
	require.NoError(t, err)
	assert.Equal(t, []frame.Row{{"a"}, {"bb"}, {"ccc"}}, rows)
}

func TestSharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	openEngine(t, reg)
	e := openEngine(t, reg)
	createWords(t, e, "a")
	n, err := testutil.GatherAndCount(reg, "jsoniq_frame_queries_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
