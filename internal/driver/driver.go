// Package driver connects definitions to live database/sql pools. A
// backend variant is selected once at construction; everything above it
// (pooling, probing, query execution, introspection) is shared.
package driver

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"dbconnect/internal/dberr"
	"dbconnect/internal/models"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const (
	defaultMaxOpenConns = 5
	defaultMaxIdleConns = 2
	defaultConnLifetime = time.Hour
)

// backend is the per-database strategy: validation rules, DSN building,
// driver registration name, probe SQL and parameter style.
type backend interface {
	typ() models.DBType
	driverName() string
	validate(def models.Definition, log zerolog.Logger) error
	dsn(def models.Definition) (string, error)
	probe() string
	style() bindStyle
	tablesQuery() string
	columnsQuery() string
}

func backendFor(typ models.DBType) (backend, error) {
	switch typ {
	case models.DBTypeOracle:
		return oracleBackend{}, nil
	case models.DBTypePostgres:
		return postgresBackend{}, nil
	case models.DBTypeMySQL:
		return mysqlBackend{}, nil
	case models.DBTypeSQLServer:
		return mssqlBackend{}, nil
	case models.DBTypeSQLite:
		return sqliteBackend{}, nil
	}
	return nil, dberr.Newf(dberr.KindDriver, "unsupported database type %q", typ)
}

// Validate checks a definition against its backend's rules without
// opening a connection.
func Validate(def models.Definition, log zerolog.Logger) error {
	be, err := backendFor(def.Type)
	if err != nil {
		return err
	}
	return be.validate(def, log)
}

// Adapter owns one connection pool for one definition.
type Adapter struct {
	def models.Definition
	be  backend
	log zerolog.Logger

	// mu guards db: statement execution may run concurrently with
	// Disconnect or a downgrade from another goroutine.
	mu sync.RWMutex
	db *sql.DB
}

// handle returns the current pool under the read lock. Callers keep
// using the returned pointer even if the adapter is disconnected
// mid-flight; database/sql then fails the statement cleanly.
func (a *Adapter) handle() *sql.DB {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.db
}

// New builds an adapter for def. The definition is validated here; no
// connection is opened until Connect.
func New(def models.Definition, log zerolog.Logger) (*Adapter, error) {
	be, err := backendFor(def.Type)
	if err != nil {
		return nil, err
	}
	if err := be.validate(def, log); err != nil {
		return nil, err
	}
	return &Adapter{
		def: def.Clone(),
		be:  be,
		log: log.With().Str("component", "driver").Str("db_type", string(def.Type)).Logger(),
	}, nil
}

// Type returns the backend tag the adapter was built for.
func (a *Adapter) Type() models.DBType { return a.be.typ() }

// Connect opens the pool, applies pool limits and verifies liveness
// with the backend probe. A failed probe disposes the pool.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db != nil {
		return nil
	}
	dsn, err := a.be.dsn(a.def)
	if err != nil {
		return err
	}
	db, err := sql.Open(a.be.driverName(), dsn)
	if err != nil {
		return dberr.Wrap(dberr.KindConnection, "opening connection pool", err)
	}

	maxOpen := int64(defaultMaxOpenConns)
	if n, ok := a.def.Int("max_open_conns"); ok {
		maxOpen = n
	}
	maxIdle := int64(defaultMaxIdleConns)
	if n, ok := a.def.Int("max_idle_conns"); ok {
		maxIdle = n
	}
	// modernc.org/sqlite gives every pool connection its own in-memory
	// database, so :memory: must stay on a single connection.
	if a.be.typ() == models.DBTypeSQLite {
		if path, _ := a.def.Str("database"); path == "" || path == ":memory:" {
			maxOpen, maxIdle = 1, 1
		}
	}
	db.SetMaxOpenConns(int(maxOpen))
	db.SetMaxIdleConns(int(maxIdle))
	db.SetConnMaxLifetime(defaultConnLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return dberr.Wrap(dberr.KindConnection, "database unreachable", err)
	}
	var one int
	if err := db.QueryRowContext(ctx, a.be.probe()).Scan(&one); err != nil {
		db.Close()
		return dberr.Wrap(dberr.KindConnection, "liveness probe failed", err)
	}

	a.db = db
	a.log.Debug().Msg("connected")
	return nil
}

// Disconnect closes the pool. Calling it on a disconnected adapter is a
// no-op.
func (a *Adapter) Disconnect() error {
	a.mu.Lock()
	db := a.db
	a.db = nil
	a.mu.Unlock()

	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return dberr.Wrap(dberr.KindConnection, "closing connection pool", err)
	}
	a.log.Debug().Msg("disconnected")
	return nil
}

// IsConnected re-probes the pool and downgrades the adapter when the
// probe fails.
func (a *Adapter) IsConnected(ctx context.Context) bool {
	db := a.handle()
	if db == nil {
		return false
	}
	var one int
	if err := db.QueryRowContext(ctx, a.be.probe()).Scan(&one); err != nil {
		a.log.Warn().Err(err).Msg("probe failed, marking disconnected")
		a.mu.Lock()
		if a.db == db {
			a.db = nil
		}
		a.mu.Unlock()
		db.Close()
		return false
	}
	return true
}

// TestConnection reports reachability without mutating connection
// state: an already open pool is probed in place, otherwise a throwaway
// connection is opened and closed. It never returns an error.
func (a *Adapter) TestConnection(ctx context.Context) bool {
	if a.handle() != nil {
		return a.IsConnected(ctx)
	}
	if err := a.Connect(ctx); err != nil {
		a.log.Debug().Err(err).Msg("connection test failed")
		return false
	}
	a.Disconnect()
	return true
}

// ExecuteQuery runs a SELECT-shaped statement with named parameters and
// materializes all rows.
func (a *Adapter) ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	db, err := a.checkStatement(query)
	if err != nil {
		return nil, err
	}
	bound, args, err := bindNamed(a.be.style(), query, params)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, bound, args...)
	if err != nil {
		return nil, dberr.Wrap(dberr.KindQuery, "executing query", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// ExecuteCommand runs a mutating statement inside an explicit
// transaction and returns the affected row count.
func (a *Adapter) ExecuteCommand(ctx context.Context, query string, params map[string]any) (int64, error) {
	db, err := a.checkStatement(query)
	if err != nil {
		return 0, err
	}
	bound, args, err := bindNamed(a.be.style(), query, params)
	if err != nil {
		return 0, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, dberr.Wrap(dberr.KindQuery, "beginning transaction", err)
	}
	res, err := tx.ExecContext(ctx, bound, args...)
	if err != nil {
		tx.Rollback()
		return 0, dberr.Wrap(dberr.KindQuery, "executing command", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, dberr.Wrap(dberr.KindQuery, "committing transaction", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		// Not every driver reports affected rows.
		a.log.Debug().Err(err).Msg("rows affected unavailable")
		return 0, nil
	}
	return affected, nil
}

// checkStatement rejects blank SQL and returns the pool handle the
// statement should run on.
func (a *Adapter) checkStatement(query string) (*sql.DB, error) {
	if strings.TrimSpace(query) == "" {
		return nil, dberr.New(dberr.KindQuery, "statement must not be empty")
	}
	db := a.handle()
	if db == nil {
		return nil, dberr.New(dberr.KindConnection, "not connected")
	}
	return db, nil
}

// Tables lists the user tables visible to the connection.
func (a *Adapter) Tables(ctx context.Context) ([]string, error) {
	rows, err := a.ExecuteQuery(ctx, a.be.tablesQuery(), nil)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		for _, v := range row {
			if s, ok := v.(string); ok {
				names = append(names, s)
			}
		}
	}
	return names, nil
}

// Columns describes the columns of table. The result shape follows the
// backend's catalog (name, type, nullability).
func (a *Adapter) Columns(ctx context.Context, table string) ([]map[string]any, error) {
	if table == "" {
		return nil, dberr.New(dberr.KindQuery, "table name must not be empty")
	}
	return a.ExecuteQuery(ctx, a.be.columnsQuery(), map[string]any{"table": table})
}

func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, dberr.Wrap(dberr.KindQuery, "reading result columns", err)
	}
	out := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, dberr.Wrap(dberr.KindQuery, "scanning row", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(dberr.KindQuery, "iterating rows", err)
	}
	return out, nil
}
