package driver

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"hash/fnv"
	"os"

	"dbconnect/internal/dberr"
	"dbconnect/internal/models"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
)

type mysqlBackend struct{}

func (mysqlBackend) typ() models.DBType { return models.DBTypeMySQL }
func (mysqlBackend) driverName() string { return "mysql" }
func (mysqlBackend) probe() string      { return "SELECT 1" }
func (mysqlBackend) style() bindStyle   { return styleQuestion }

func (mysqlBackend) validate(def models.Definition, log zerolog.Logger) error {
	if err := requireFields(def, "host", "username", "password", "database"); err != nil {
		return err
	}
	if err := checkPort(def); err != nil {
		return err
	}
	for _, key := range []string{"charset", "collation", "ssl_ca", "ssl_cert", "ssl_key"} {
		if def.Has(key) {
			if _, ok := def.Str(key); !ok {
				return dberr.Newf(dberr.KindValidation, "%s must be a string", key).WithFields(key)
			}
		}
	}
	// Client cert and key only work as a pair.
	if def.Has("ssl_cert") != def.Has("ssl_key") {
		return dberr.New(dberr.KindValidation, "ssl_cert and ssl_key must be provided together").
			WithFields("ssl_cert", "ssl_key")
	}
	known := append([]string{
		"host", "port", "username", "password", "database",
		"charset", "collation", "ssl_ca", "ssl_cert", "ssl_key",
	}, poolFields...)
	warnUnknown(def, log, known...)
	return nil
}

func (mysqlBackend) dsn(def models.Definition) (string, error) {
	host, _ := def.Str("host")
	port := int64(3306)
	if p, ok := def.Int("port"); ok {
		port = p
	}

	cfg := gomysql.NewConfig()
	cfg.User, _ = def.Str("username")
	cfg.Passwd, _ = def.Str("password")
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", host, port)
	cfg.DBName, _ = def.Str("database")
	cfg.ParseTime = true

	if charset, ok := def.Str("charset"); ok && charset != "" {
		cfg.Params = map[string]string{"charset": charset}
	}
	if collation, ok := def.Str("collation"); ok && collation != "" {
		cfg.Collation = collation
	}
	if ca, ok := def.Str("ssl_ca"); ok && ca != "" {
		name, err := registerMySQLTLS(def, ca)
		if err != nil {
			return "", err
		}
		cfg.TLSConfig = name
	}
	return cfg.FormatDSN(), nil
}

// registerMySQLTLS builds a tls.Config from the definition's ssl_*
// fields and registers it with the driver under a name derived from the
// file paths, so equal configurations share one registration.
func registerMySQLTLS(def models.Definition, caPath string) (string, error) {
	certPath, _ := def.Str("ssl_cert")
	keyPath, _ := def.Str("ssl_key")

	h := fnv.New32a()
	fmt.Fprintf(h, "%s|%s|%s", caPath, certPath, keyPath)
	name := fmt.Sprintf("dbconnect_%08x", h.Sum32())

	pem, err := os.ReadFile(caPath)
	if err != nil {
		return "", dberr.Wrap(dberr.KindValidation, "reading ssl_ca file", err).WithFields("ssl_ca")
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return "", dberr.New(dberr.KindValidation, "ssl_ca file contains no usable certificates").WithFields("ssl_ca")
	}
	tlsCfg := &tls.Config{RootCAs: pool}

	if certPath != "" {
		pair, err := tls.LoadX509KeyPair(certPath, keyPath)
		if err != nil {
			return "", dberr.Wrap(dberr.KindValidation, "loading ssl client certificate", err).
				WithFields("ssl_cert", "ssl_key")
		}
		tlsCfg.Certificates = []tls.Certificate{pair}
	}

	if err := gomysql.RegisterTLSConfig(name, tlsCfg); err != nil {
		return "", dberr.Wrap(dberr.KindDriver, "registering TLS configuration", err)
	}
	return name, nil
}

func (mysqlBackend) tablesQuery() string {
	return `SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() ORDER BY table_name`
}

func (mysqlBackend) columnsQuery() string {
	return `SELECT column_name, data_type, is_nullable FROM information_schema.columns WHERE table_schema = DATABASE() AND table_name = :table ORDER BY ordinal_position`
}
