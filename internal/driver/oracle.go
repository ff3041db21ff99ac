package driver

import (
	"dbconnect/internal/dberr"
	"dbconnect/internal/models"

	"github.com/rs/zerolog"
	go_ora "github.com/sijms/go-ora/v2"
)

type oracleBackend struct{}

func (oracleBackend) typ() models.DBType { return models.DBTypeOracle }
func (oracleBackend) driverName() string { return "oracle" }
func (oracleBackend) probe() string      { return "SELECT 1 FROM DUAL" }
func (oracleBackend) style() bindStyle   { return styleColon }

func (oracleBackend) validate(def models.Definition, log zerolog.Logger) error {
	if err := requireFields(def, "host", "username", "password", "database"); err != nil {
		return err
	}
	if err := checkPort(def); err != nil {
		return err
	}
	if def.Has("service_name") && def.Has("sid") {
		return dberr.New(dberr.KindValidation, "service_name and sid are mutually exclusive").
			WithFields("service_name", "sid")
	}
	if err := checkOneOf(def, "mode", "sysdba sysoper"); err != nil {
		return err
	}
	known := append([]string{
		"host", "port", "username", "password", "database",
		"service_name", "sid", "mode", "threaded",
	}, poolFields...)
	warnUnknown(def, log, known...)
	return nil
}

func (oracleBackend) dsn(def models.Definition) (string, error) {
	host, _ := def.Str("host")
	user, _ := def.Str("username")
	pass, _ := def.Str("password")
	port := int64(1521)
	if p, ok := def.Int("port"); ok {
		port = p
	}

	// The database field doubles as the service name unless one is
	// given explicitly; a SID replaces the service entirely.
	service, _ := def.Str("database")
	if sn, ok := def.Str("service_name"); ok && sn != "" {
		service = sn
	}

	options := map[string]string{}
	if sid, ok := def.Str("sid"); ok && sid != "" {
		service = ""
		options["SID"] = sid
	}
	if mode, ok := def.Str("mode"); ok && mode != "" {
		options["dba privilege"] = mode
	}

	return go_ora.BuildUrl(host, int(port), service, user, pass, options), nil
}

func (oracleBackend) tablesQuery() string {
	return `SELECT table_name FROM user_tables ORDER BY table_name`
}

func (oracleBackend) columnsQuery() string {
	return `SELECT column_name, data_type, nullable FROM user_tab_columns WHERE table_name = UPPER(:table) ORDER BY column_id`
}
