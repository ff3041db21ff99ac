package driver

import (
	"fmt"
	"net/url"

	"dbconnect/internal/dberr"
	"dbconnect/internal/models"

	"github.com/rs/zerolog"
)

type postgresBackend struct{}

func (postgresBackend) typ() models.DBType { return models.DBTypePostgres }
func (postgresBackend) driverName() string { return "postgres" }
func (postgresBackend) probe() string      { return "SELECT 1" }
func (postgresBackend) style() bindStyle   { return styleDollar }

func (postgresBackend) validate(def models.Definition, log zerolog.Logger) error {
	if err := requireFields(def, "host", "username", "password", "database"); err != nil {
		return err
	}
	if err := checkPort(def); err != nil {
		return err
	}
	if err := checkOneOf(def, "sslmode", "disable allow prefer require verify-ca verify-full"); err != nil {
		return err
	}
	if def.Has("connect_timeout") {
		if _, ok := def.Int("connect_timeout"); !ok {
			return dberr.New(dberr.KindValidation, "connect_timeout must be an integer").WithFields("connect_timeout")
		}
	}
	known := append([]string{
		"host", "port", "username", "password", "database",
		"sslmode", "sslrootcert", "sslcert", "sslkey", "connect_timeout",
	}, poolFields...)
	warnUnknown(def, log, known...)
	return nil
}

func (postgresBackend) dsn(def models.Definition) (string, error) {
	host, _ := def.Str("host")
	user, _ := def.Str("username")
	pass, _ := def.Str("password")
	database, _ := def.Str("database")
	port := int64(5432)
	if p, ok := def.Int("port"); ok {
		port = p
	}

	q := url.Values{}
	for _, key := range []string{"sslmode", "sslrootcert", "sslcert", "sslkey"} {
		if v, ok := def.Str(key); ok && v != "" {
			q.Set(key, v)
		}
	}
	if t, ok := def.Int("connect_timeout"); ok {
		q.Set("connect_timeout", fmt.Sprintf("%d", t))
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, pass),
		Host:     fmt.Sprintf("%s:%d", host, port),
		Path:     "/" + database,
		RawQuery: q.Encode(),
	}
	return u.String(), nil
}

func (postgresBackend) tablesQuery() string {
	return `SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' ORDER BY table_name`
}

func (postgresBackend) columnsQuery() string {
	return `SELECT column_name, data_type, is_nullable FROM information_schema.columns WHERE table_name = :table ORDER BY ordinal_position`
}
