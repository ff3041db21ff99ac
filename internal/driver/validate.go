package driver

import (
	"sort"

	"dbconnect/internal/dberr"
	"dbconnect/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

var vld = validator.New()

// requireFields checks that every named field is present and non-empty,
// reporting all missing names in one error.
func requireFields(def models.Definition, names ...string) error {
	var missing []string
	for _, name := range names {
		v, ok := def.Fields[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		if s, isStr := v.(string); isStr && s == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return dberr.New(dberr.KindValidation, "missing required fields").WithFields(missing...)
	}
	return nil
}

// warnUnknown logs any field outside the backend's known set. Unknown
// fields never fail validation.
func warnUnknown(def models.Definition, log zerolog.Logger, known ...string) {
	set := make(map[string]bool, len(known))
	for _, k := range known {
		set[k] = true
	}
	var unknown []string
	for k := range def.Fields {
		if !set[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return
	}
	sort.Strings(unknown)
	log.Warn().Str("db_type", string(def.Type)).Strs("fields", unknown).
		Msg("ignoring unsupported connection fields")
}

// checkPort validates an explicit port field when present.
func checkPort(def models.Definition) error {
	if !def.Has("port") {
		return nil
	}
	port, ok := def.Int("port")
	if !ok {
		return dberr.New(dberr.KindValidation, "port must be an integer").WithFields("port")
	}
	if err := vld.Var(port, "gte=1,lte=65535"); err != nil {
		return dberr.New(dberr.KindValidation, "port must be between 1 and 65535").WithFields("port")
	}
	return nil
}

// checkOneOf validates a string field against an allowed set when the
// field is present.
func checkOneOf(def models.Definition, field, oneof string) error {
	if !def.Has(field) {
		return nil
	}
	v, ok := def.Str(field)
	if !ok {
		return dberr.Newf(dberr.KindValidation, "%s must be a string", field).WithFields(field)
	}
	if err := vld.Var(v, "oneof="+oneof); err != nil {
		return dberr.Newf(dberr.KindValidation, "%s must be one of: %s", field, oneof).WithFields(field)
	}
	return nil
}

// poolFields are accepted by every backend.
var poolFields = []string{"max_open_conns", "max_idle_conns"}
