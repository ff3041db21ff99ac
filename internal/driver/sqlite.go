package driver

import (
	"fmt"
	"net/url"

	"dbconnect/internal/dberr"
	"dbconnect/internal/models"

	"github.com/rs/zerolog"
)

type sqliteBackend struct{}

func (sqliteBackend) typ() models.DBType { return models.DBTypeSQLite }
func (sqliteBackend) driverName() string { return "sqlite" }
func (sqliteBackend) probe() string      { return "SELECT 1" }
func (sqliteBackend) style() bindStyle   { return styleColon }

func (sqliteBackend) validate(def models.Definition, log zerolog.Logger) error {
	if def.Has("database") {
		if _, ok := def.Str("database"); !ok {
			return dberr.New(dberr.KindValidation, "database must be a string path or :memory:").
				WithFields("database")
		}
	}
	if def.Has("timeout") {
		if _, ok := def.Int("timeout"); !ok {
			return dberr.New(dberr.KindValidation, "timeout must be an integer number of seconds").
				WithFields("timeout")
		}
	}
	known := append([]string{
		"database", "timeout", "isolation_level", "check_same_thread",
	}, poolFields...)
	warnUnknown(def, log, known...)
	return nil
}

func (sqliteBackend) dsn(def models.Definition) (string, error) {
	path, _ := def.Str("database")
	if path == "" {
		path = ":memory:"
	}
	q := url.Values{}
	if t, ok := def.Int("timeout"); ok {
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", t*1000))
	}
	if len(q) == 0 {
		return path, nil
	}
	return path + "?" + q.Encode(), nil
}

func (sqliteBackend) tablesQuery() string {
	return `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
}

func (sqliteBackend) columnsQuery() string {
	return `SELECT name, type, "notnull" FROM pragma_table_info(:table)`
}
