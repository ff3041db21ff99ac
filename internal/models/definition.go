package models

// DBType tags a connection definition with its backend.
type DBType string

const (
	DBTypeOracle    DBType = "oracle"
	DBTypePostgres  DBType = "postgresql"
	DBTypeMySQL     DBType = "mysql"
	DBTypeSQLServer DBType = "mssql"
	DBTypeSQLite    DBType = "sqlite"
)

// SupportedTypes lists the backend tags in their canonical order.
func SupportedTypes() []DBType {
	return []DBType{DBTypeOracle, DBTypePostgres, DBTypeMySQL, DBTypeSQLServer, DBTypeSQLite}
}

func (t DBType) Supported() bool {
	switch t {
	case DBTypeOracle, DBTypePostgres, DBTypeMySQL, DBTypeSQLServer, DBTypeSQLite:
		return true
	}
	return false
}

// Definition is a decrypted connection definition: the backend tag plus
// a bag of typed parameters. Field values are one of string, int64,
// float64 or bool.
type Definition struct {
	Type   DBType
	Fields map[string]any
}

func (d Definition) Clone() Definition {
	fields := make(map[string]any, len(d.Fields))
	for k, v := range d.Fields {
		fields[k] = v
	}
	return Definition{Type: d.Type, Fields: fields}
}

// Merge returns a copy of d with overrides applied on top. A "type"
// override replaces the backend tag.
func (d Definition) Merge(overrides map[string]any) Definition {
	out := d.Clone()
	for k, v := range overrides {
		if k == "type" {
			if s, ok := v.(string); ok {
				out.Type = DBType(s)
			}
			continue
		}
		out.Fields[k] = v
	}
	return out
}

// Str returns a string field. Non-string values report false.
func (d Definition) Str(key string) (string, bool) {
	v, ok := d.Fields[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Int returns an integer field. Whole float64 values (a side effect of
// envelope decoding and CLI inference) are accepted.
func (d Definition) Int(key string) (int64, bool) {
	v, ok := d.Fields[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

func (d Definition) Float(key string) (float64, bool) {
	v, ok := d.Fields[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func (d Definition) Bool(key string) (bool, bool) {
	v, ok := d.Fields[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func (d Definition) Has(key string) bool {
	_, ok := d.Fields[key]
	return ok
}
