// Package sqlite implements frame.Engine on an embedded SQLite database.
// All tables live in one database reached through a single connection, so
// statements run one at a time and UDFs are called back on the goroutine
// that issued the statement.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/brimdata/jsoniq/frame"
	"github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

const MemoryDSN = ":memory:"

type Engine struct {
	db      *sql.DB
	logger  *zap.Logger
	metrics *metrics

	mu         sync.Mutex
	udfs       map[string]frame.UDF
	collations map[string]func(a, b string) int
	udfErr     error
}

var _ frame.Engine = (*Engine)(nil)

// Open opens an engine on dsn, which defaults to a private in-memory
// database.  Metrics are registered on reg when it is not nil.
func Open(dsn string, logger *zap.Logger, reg prometheus.Registerer) (*Engine, error) {
	if dsn == "" {
		dsn = MemoryDSN
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m, err := newMetrics(reg)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		logger:     logger,
		metrics:    m,
		udfs:       make(map[string]frame.UDF),
		collations: make(map[string]func(a, b string) int),
	}
	// Each engine gets its own driver so the connect hook can reach it.
	driver := "jsoniq_sqlite3_" + ksuid.New().String()
	sql.Register(driver, &sqlite3.SQLiteDriver{ConnectHook: e.connect})
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// An in-memory database lives as long as its connection, so there is
	// exactly one and it is never recycled.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	e.db = db
	return e, nil
}

func (e *Engine) connect(conn *sqlite3.SQLiteConn) error {
	if err := conn.RegisterFunc(frame.DispatchFunction, e.dispatch, false); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for name, cmp := range e.collations {
		if err := conn.RegisterCollation(name, cmp); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) Close() error {
	if e.db == nil {
		return nil
	}
	return e.db.Close()
}

func (e *Engine) RegisterUDF(name string, fn frame.UDF) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.udfs[name]; ok {
		return fmt.Errorf("UDF %q already registered", name)
	}
	e.udfs[name] = fn
	return nil
}

func (e *Engine) dispatch(name string, args ...any) (any, error) {
	e.mu.Lock()
	fn, ok := e.udfs[name]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown UDF %q", name)
	}
	e.metrics.udfCalls.WithLabelValues(udfKind(name)).Inc()
	out, err := fn(args)
	if err != nil {
		e.mu.Lock()
		if e.udfErr == nil {
			e.udfErr = err
		}
		e.mu.Unlock()
		return nil, err
	}
	return out, nil
}

func udfKind(name string) string {
	if i := strings.LastIndexByte(name, '_'); i > 0 {
		return name[:i]
	}
	return name
}

// RegisterCollation makes cmp available as COLLATE name.
func (e *Engine) RegisterCollation(name string, cmp func(a, b string) int) error {
	e.mu.Lock()
	e.collations[name] = cmp
	e.mu.Unlock()
	conn, err := e.db.Conn(context.Background())
	if err != nil {
		return err
	}
	defer conn.Close()
	return conn.Raw(func(driverConn any) error {
		c, ok := driverConn.(*sqlite3.SQLiteConn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		return c.RegisterCollation(name, cmp)
	})
}

func newTableName() string {
	return "t_" + ksuid.New().String()
}

func (e *Engine) exec(ctx context.Context, stmt string, args ...any) error {
	e.metrics.queries.Inc()
	e.logger.Debug("sql", zap.String("stmt", stmt))
	e.mu.Lock()
	e.udfErr = nil
	e.mu.Unlock()
	if _, err := e.db.ExecContext(ctx, stmt, args...); err != nil {
		return e.failure(stmt, err)
	}
	return nil
}

// failure prefers an error raised inside a UDF over the driver's rendering
// of it.
func (e *Engine) failure(stmt string, err error) error {
	e.mu.Lock()
	udfErr := e.udfErr
	e.udfErr = nil
	e.mu.Unlock()
	if udfErr != nil {
		return udfErr
	}
	e.logger.Debug("sql failed", zap.String("stmt", stmt), zap.Error(err))
	return fmt.Errorf("sql: %w", err)
}

func (e *Engine) SQL(ctx context.Context, query string, args ...any) (*frame.DataFrame, error) {
	table := newTableName()
	if err := e.exec(ctx, fmt.Sprintf("CREATE TABLE %s AS %s", frame.Quote(table), query), args...); err != nil {
		return nil, err
	}
	schema, err := e.schema(ctx, table)
	if err != nil {
		return nil, err
	}
	return &frame.DataFrame{Table: table, Schema: schema}, nil
}

func (e *Engine) schema(ctx context.Context, table string) (frame.Schema, error) {
	rows, err := e.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", frame.Quote(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var schema frame.Schema
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typ        string
			dflt             any
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		schema = append(schema, frame.Column{Name: name, Type: typ})
	}
	return schema, rows.Err()
}

func (e *Engine) CreateTable(ctx context.Context, schema frame.Schema, rows []frame.Row) (*frame.DataFrame, error) {
	if len(schema) == 0 {
		return nil, fmt.Errorf("cannot create a table without columns")
	}
	table := newTableName()
	defs := make([]string, 0, len(schema))
	params := make([]string, 0, len(schema))
	for _, c := range schema {
		defs = append(defs, strings.TrimSpace(frame.Quote(c.Name)+" "+c.Type))
		params = append(params, "?")
	}
	if err := e.exec(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", frame.Quote(table), strings.Join(defs, ", "))); err != nil {
		return nil, err
	}
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", frame.Quote(table), strings.Join(params, ", ")))
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	for _, row := range rows {
		if len(row) != len(schema) {
			return nil, fmt.Errorf("row has %d values for %d columns", len(row), len(schema))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &frame.DataFrame{Table: table, Schema: append(frame.Schema(nil), schema...)}, nil
}

func (e *Engine) ZipWithIndex(ctx context.Context, df *frame.DataFrame, column string, start int64) (*frame.DataFrame, error) {
	cols := frame.QuoteColumns("", df.Schema.Names())
	cols = append(cols, fmt.Sprintf("ROW_NUMBER() OVER (ORDER BY rowid) + %d AS %s", start-1, frame.Quote(column)))
	return e.SQL(ctx, fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", strings.Join(cols, ", "), frame.Quote(df.Table)))
}

func (e *Engine) Collect(ctx context.Context, table string, limit int) ([]frame.Row, error) {
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY rowid", frame.Quote(table))
	if limit >= 0 {
		query += fmt.Sprintf(" LIMIT %d", limit+1)
	}
	e.metrics.queries.Inc()
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, e.failure(query, err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []frame.Row
	for rows.Next() {
		if limit >= 0 && len(out) == limit {
			return nil, fmt.Errorf("%w: table has more than %d rows", frame.ErrTooManyRows, limit)
		}
		row := make(frame.Row, len(cols))
		dest := make([]any, len(cols))
		for i := range row {
			dest[i] = &row[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	e.metrics.rowsCollected.Add(float64(len(out)))
	return out, nil
}

func (e *Engine) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", frame.Quote(table))
	e.metrics.queries.Inc()
	if err := e.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, e.failure(query, err)
	}
	return n, nil
}
