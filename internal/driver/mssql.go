package driver

import (
	"fmt"
	"net/url"

	"dbconnect/internal/dberr"
	"dbconnect/internal/models"

	"github.com/rs/zerolog"
)

type mssqlBackend struct{}

func (mssqlBackend) typ() models.DBType { return models.DBTypeSQLServer }
func (mssqlBackend) driverName() string { return "sqlserver" }
func (mssqlBackend) probe() string      { return "SELECT 1" }
func (mssqlBackend) style() bindStyle   { return styleAt }

func (mssqlBackend) validate(def models.Definition, log zerolog.Logger) error {
	if err := requireFields(def, "host", "username", "password", "database"); err != nil {
		return err
	}
	if err := checkPort(def); err != nil {
		return err
	}
	if err := checkOneOf(def, "tds_version", "7.0 7.1 7.2 7.3 7.4 8.0"); err != nil {
		return err
	}
	if def.Has("trusted_connection") {
		if _, ok := def.Bool("trusted_connection"); !ok {
			return dberr.New(dberr.KindValidation, "trusted_connection must be a boolean").
				WithFields("trusted_connection")
		}
	}
	// charset, tds_version, driver and trusted_connection are accepted
	// for compatibility with definitions written by ODBC-based tooling.
	// They are validated but inert: go-mssqldb negotiates the protocol
	// version and encoding itself and has no counterpart for them in
	// its DSN.
	known := append([]string{
		"host", "port", "username", "password", "database",
		"charset", "tds_version", "driver", "trusted_connection", "app_name",
	}, poolFields...)
	warnUnknown(def, log, known...)
	return nil
}

func (mssqlBackend) dsn(def models.Definition) (string, error) {
	host, _ := def.Str("host")
	user, _ := def.Str("username")
	pass, _ := def.Str("password")
	database, _ := def.Str("database")
	port := int64(1433)
	if p, ok := def.Int("port"); ok {
		port = p
	}

	q := url.Values{}
	q.Set("database", database)
	if app, ok := def.Str("app_name"); ok && app != "" {
		q.Set("app name", app)
	}

	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(user, pass),
		Host:     fmt.Sprintf("%s:%d", host, port),
		RawQuery: q.Encode(),
	}
	return u.String(), nil
}

func (mssqlBackend) tablesQuery() string {
	return `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`
}

func (mssqlBackend) columnsQuery() string {
	return `SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_NAME = :table ORDER BY ORDINAL_POSITION`
}
