package driver

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"dbconnect/internal/dberr"
	"dbconnect/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryDef() models.Definition {
	return models.Definition{
		Type:   models.DBTypeSQLite,
		Fields: map[string]any{"database": ":memory:"},
	}
}

func connectedAdapter(t *testing.T) *Adapter {
	t.Helper()
	a, err := New(memoryDef(), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, a.Connect(context.Background()))
	t.Cleanup(func() { a.Disconnect() })
	return a
}

func TestNew_UnsupportedType(t *testing.T) {
	_, err := New(models.Definition{Type: "mongodb"}, zerolog.Nop())
	require.Error(t, err)
	assert.True(t, dberr.Is(err, dberr.KindDriver))
}

func TestAdapter_SQLiteLifecycle(t *testing.T) {
	ctx := context.Background()
	a := connectedAdapter(t)

	assert.True(t, a.IsConnected(ctx))
	assert.True(t, a.TestConnection(ctx))

	_, err := a.ExecuteCommand(ctx,
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, active INTEGER)", nil)
	require.NoError(t, err)

	affected, err := a.ExecuteCommand(ctx,
		"INSERT INTO users (id, name, active) VALUES (:id, :name, :active)",
		map[string]any{"id": 1, "name": "ada", "active": 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	_, err = a.ExecuteCommand(ctx,
		"INSERT INTO users (id, name, active) VALUES (:id, :name, :active)",
		map[string]any{"id": 2, "name": "grace", "active": 0})
	require.NoError(t, err)

	rows, err := a.ExecuteQuery(ctx,
		"SELECT id, name FROM users WHERE active = :active ORDER BY id",
		map[string]any{"active": 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ada", rows[0]["name"])
	assert.EqualValues(t, 1, rows[0]["id"])

	affected, err = a.ExecuteCommand(ctx,
		"UPDATE users SET active = :active", map[string]any{"active": 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)
}

func TestAdapter_Tables(t *testing.T) {
	ctx := context.Background()
	a := connectedAdapter(t)

	_, err := a.ExecuteCommand(ctx, "CREATE TABLE bbb (id INTEGER)", nil)
	require.NoError(t, err)
	_, err = a.ExecuteCommand(ctx, "CREATE TABLE aaa (id INTEGER)", nil)
	require.NoError(t, err)

	tables, err := a.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"aaa", "bbb"}, tables)
}

func TestAdapter_Columns(t *testing.T) {
	ctx := context.Background()
	a := connectedAdapter(t)

	_, err := a.ExecuteCommand(ctx,
		"CREATE TABLE things (id INTEGER PRIMARY KEY, label TEXT NOT NULL)", nil)
	require.NoError(t, err)

	cols, err := a.Columns(ctx, "things")
	require.NoError(t, err)
	require.Len(t, cols, 2)

	names := make([]string, 0, len(cols))
	for _, c := range cols {
		if s, ok := c["name"].(string); ok {
			names = append(names, s)
		}
	}
	assert.ElementsMatch(t, []string{"id", "label"}, names)

	_, err = a.Columns(ctx, "")
	require.Error(t, err)
	assert.True(t, dberr.Is(err, dberr.KindQuery))
}

func TestAdapter_EmptyStatement(t *testing.T) {
	a := connectedAdapter(t)

	// Whitespace-only SQL is as empty as the empty string; neither may
	// reach the driver.
	for _, stmt := range []string{"", "   ", "\t\n  "} {
		_, err := a.ExecuteQuery(context.Background(), stmt, nil)
		require.Error(t, err, "query %q", stmt)
		assert.True(t, dberr.Is(err, dberr.KindQuery))

		_, err = a.ExecuteCommand(context.Background(), stmt, nil)
		require.Error(t, err, "command %q", stmt)
		assert.True(t, dberr.Is(err, dberr.KindQuery))
	}
}

func TestAdapter_ConcurrentExecuteAndDisconnect(t *testing.T) {
	ctx := context.Background()
	a := connectedAdapter(t)

	_, err := a.ExecuteCommand(ctx, "CREATE TABLE t (id INTEGER)", nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			// Failures are expected while disconnected; only races and
			// panics are defects here.
			a.ExecuteQuery(ctx, "SELECT id FROM t", nil)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			a.Disconnect()
			a.Connect(ctx)
		}
	}()
	wg.Wait()
}

func TestAdapter_NotConnected(t *testing.T) {
	a, err := New(memoryDef(), zerolog.Nop())
	require.NoError(t, err)

	_, err = a.ExecuteQuery(context.Background(), "SELECT 1", nil)
	require.Error(t, err)
	assert.True(t, dberr.Is(err, dberr.KindConnection))
	assert.False(t, a.IsConnected(context.Background()))
}

func TestAdapter_DisconnectIdempotent(t *testing.T) {
	a := connectedAdapter(t)
	require.NoError(t, a.Disconnect())
	require.NoError(t, a.Disconnect())
}

func TestAdapter_ConnectTwice(t *testing.T) {
	a := connectedAdapter(t)
	require.NoError(t, a.Connect(context.Background()))
}

func TestAdapter_QuerySyntaxError(t *testing.T) {
	a := connectedAdapter(t)
	_, err := a.ExecuteQuery(context.Background(), "SELEKT broken", nil)
	require.Error(t, err)
	assert.True(t, dberr.Is(err, dberr.KindQuery))
}

func TestAdapter_FileDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.db")
	a, err := New(models.Definition{
		Type:   models.DBTypeSQLite,
		Fields: map[string]any{"database": path, "timeout": int64(5)},
	}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, a.Connect(ctx))
	defer a.Disconnect()

	_, err = a.ExecuteCommand(ctx, "CREATE TABLE t (id INTEGER)", nil)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestValidate_MissingFieldsListed(t *testing.T) {
	def := models.Definition{
		Type:   models.DBTypePostgres,
		Fields: map[string]any{"host": "db"},
	}
	err := Validate(def, zerolog.Nop())
	require.Error(t, err)
	assert.True(t, dberr.Is(err, dberr.KindValidation))
	for _, f := range []string{"username", "password", "database"} {
		assert.Contains(t, err.Error(), f)
	}
	assert.NotContains(t, err.Error(), "host,")
}

func TestValidate_PortRange(t *testing.T) {
	def := models.Definition{
		Type: models.DBTypeMySQL,
		Fields: map[string]any{
			"host": "db", "username": "u", "password": "p", "database": "d",
			"port": int64(70000),
		},
	}
	err := Validate(def, zerolog.Nop())
	require.Error(t, err)
	assert.True(t, dberr.Is(err, dberr.KindValidation))
	assert.Contains(t, err.Error(), "port")
}

func TestValidate_SSLModeOneOf(t *testing.T) {
	def := models.Definition{
		Type: models.DBTypePostgres,
		Fields: map[string]any{
			"host": "db", "username": "u", "password": "p", "database": "d",
			"sslmode": "sometimes",
		},
	}
	err := Validate(def, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sslmode")

	def.Fields["sslmode"] = "verify-full"
	require.NoError(t, Validate(def, zerolog.Nop()))
}

func TestValidate_TDSVersionOneOf(t *testing.T) {
	def := models.Definition{
		Type: models.DBTypeSQLServer,
		Fields: map[string]any{
			"host": "db", "username": "u", "password": "p", "database": "d",
			"tds_version": "6.0",
		},
	}
	err := Validate(def, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tds_version")

	def.Fields["tds_version"] = "7.4"
	require.NoError(t, Validate(def, zerolog.Nop()))
}

func TestValidate_OracleServiceAndSIDExclusive(t *testing.T) {
	def := models.Definition{
		Type: models.DBTypeOracle,
		Fields: map[string]any{
			"host": "db", "username": "u", "password": "p", "database": "d",
			"service_name": "svc", "sid": "XE",
		},
	}
	err := Validate(def, zerolog.Nop())
	require.Error(t, err)
	assert.True(t, dberr.Is(err, dberr.KindValidation))
}

func TestValidate_MySQLCertPair(t *testing.T) {
	def := models.Definition{
		Type: models.DBTypeMySQL,
		Fields: map[string]any{
			"host": "db", "username": "u", "password": "p", "database": "d",
			"ssl_cert": "/tmp/client.pem",
		},
	}
	err := Validate(def, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ssl_key")
}

func TestValidate_SQLiteMinimal(t *testing.T) {
	require.NoError(t, Validate(models.Definition{Type: models.DBTypeSQLite, Fields: map[string]any{}}, zerolog.Nop()))
}

func TestDSN_Postgres(t *testing.T) {
	def := models.Definition{
		Type: models.DBTypePostgres,
		Fields: map[string]any{
			"host": "db.internal", "username": "app", "password": "p@ss:w/rd",
			"database": "appdb", "sslmode": "require", "connect_timeout": int64(10),
		},
	}
	dsn, err := postgresBackend{}.dsn(def)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dsn, "postgres://"), dsn)
	assert.Contains(t, dsn, "db.internal:5432")
	assert.Contains(t, dsn, "/appdb")
	assert.Contains(t, dsn, "sslmode=require")
	assert.Contains(t, dsn, "connect_timeout=10")
	// Reserved characters in the password must be percent-encoded.
	assert.NotContains(t, dsn, "p@ss:w/rd")
	assert.Contains(t, dsn, "p%40ss%3Aw%2Frd")
}

func TestDSN_MySQL(t *testing.T) {
	def := models.Definition{
		Type: models.DBTypeMySQL,
		Fields: map[string]any{
			"host": "db.internal", "username": "app", "password": "pw",
			"database": "appdb", "charset": "utf8mb4", "port": int64(3307),
		},
	}
	dsn, err := mysqlBackend{}.dsn(def)
	require.NoError(t, err)
	assert.Contains(t, dsn, "tcp(db.internal:3307)")
	assert.Contains(t, dsn, "/appdb")
	assert.Contains(t, dsn, "charset=utf8mb4")
	assert.Contains(t, dsn, "parseTime=true")
}

func TestDSN_SQLServer(t *testing.T) {
	def := models.Definition{
		Type: models.DBTypeSQLServer,
		Fields: map[string]any{
			"host": "db.internal", "username": "app", "password": "pw",
			"database": "appdb",
		},
	}
	dsn, err := mssqlBackend{}.dsn(def)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dsn, "sqlserver://"), dsn)
	assert.Contains(t, dsn, "db.internal:1433")
	assert.Contains(t, dsn, "database=appdb")
}

func TestDSN_Oracle(t *testing.T) {
	def := models.Definition{
		Type: models.DBTypeOracle,
		Fields: map[string]any{
			"host": "db.internal", "username": "app", "password": "pw",
			"database": "ORCL",
		},
	}
	dsn, err := oracleBackend{}.dsn(def)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dsn, "oracle://"), dsn)
	assert.Contains(t, dsn, "db.internal:1521")
	assert.Contains(t, dsn, "ORCL")
}

func TestDSN_SQLiteDefaults(t *testing.T) {
	dsn, err := sqliteBackend{}.dsn(models.Definition{Type: models.DBTypeSQLite, Fields: map[string]any{}})
	require.NoError(t, err)
	assert.Equal(t, ":memory:", dsn)

	dsn, err = sqliteBackend{}.dsn(models.Definition{
		Type:   models.DBTypeSQLite,
		Fields: map[string]any{"database": "/tmp/x.db", "timeout": int64(30)},
	})
	require.NoError(t, err)
	assert.Contains(t, dsn, "/tmp/x.db?")
	assert.Contains(t, dsn, "busy_timeout%2830000%29")
}
