package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBType_Supported(t *testing.T) {
	for _, typ := range SupportedTypes() {
		assert.True(t, typ.Supported(), string(typ))
	}
	assert.False(t, DBType("mongodb").Supported())
	assert.False(t, DBType("").Supported())
}

func TestEncodeDecodeField(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want any
	}{
		{"string", "hello", "hello"},
		{"empty string", "", ""},
		{"int", 42, int64(42)},
		{"int64", int64(-7), int64(-7)},
		{"float", 3.14, 3.14},
		{"bool true", true, true},
		{"bool false", false, false},
		{"string that looks numeric", "5432", "5432"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := EncodeField(tc.in)
			require.NoError(t, err)

			decoded, err := DecodeField(encoded)
			require.NoError(t, err)
			assert.Equal(t, tc.want, decoded)
		})
	}
}

func TestEncodeField_UnsupportedType(t *testing.T) {
	_, err := EncodeField([]string{"nope"})
	require.Error(t, err)
	_, err = EncodeField(nil)
	require.Error(t, err)
}

func TestDecodeField_Malformed(t *testing.T) {
	_, err := DecodeField("plain legacy value")
	require.Error(t, err)

	_, err = DecodeField(`{"kind":"complex","value":"1+2i"}`)
	require.Error(t, err)
}

func TestDefinition_Clone(t *testing.T) {
	def := Definition{Type: DBTypeMySQL, Fields: map[string]any{"host": "a"}}
	clone := def.Clone()
	clone.Fields["host"] = "b"
	assert.Equal(t, "a", def.Fields["host"])
}

func TestDefinition_Merge(t *testing.T) {
	def := Definition{
		Type:   DBTypePostgres,
		Fields: map[string]any{"host": "a", "port": int64(5432)},
	}
	merged := def.Merge(map[string]any{"host": "b", "sslmode": "require"})

	assert.Equal(t, "b", merged.Fields["host"])
	assert.Equal(t, "require", merged.Fields["sslmode"])
	assert.Equal(t, int64(5432), merged.Fields["port"])
	// The original is untouched.
	assert.Equal(t, "a", def.Fields["host"])
	assert.False(t, def.Has("sslmode"))
}

func TestDefinition_MergeTypeOverride(t *testing.T) {
	def := Definition{Type: DBTypeSQLite, Fields: map[string]any{}}
	merged := def.Merge(map[string]any{"type": "mysql"})
	assert.Equal(t, DBTypeMySQL, merged.Type)
	assert.False(t, merged.Has("type"))
}

func TestDefinition_Accessors(t *testing.T) {
	def := Definition{Fields: map[string]any{
		"host":    "db",
		"port":    int64(5432),
		"ratio":   0.5,
		"enabled": true,
		"whole":   float64(30),
	}}

	s, ok := def.Str("host")
	assert.True(t, ok)
	assert.Equal(t, "db", s)
	_, ok = def.Str("port")
	assert.False(t, ok)

	n, ok := def.Int("port")
	assert.True(t, ok)
	assert.Equal(t, int64(5432), n)

	// Whole floats (envelope and CLI artifacts) count as ints.
	n, ok = def.Int("whole")
	assert.True(t, ok)
	assert.Equal(t, int64(30), n)
	_, ok = def.Int("ratio")
	assert.False(t, ok)

	f, ok := def.Float("ratio")
	assert.True(t, ok)
	assert.Equal(t, 0.5, f)
	f, ok = def.Float("port")
	assert.True(t, ok)
	assert.Equal(t, 5432.0, f)

	b, ok := def.Bool("enabled")
	assert.True(t, ok)
	assert.True(t, b)
	_, ok = def.Bool("host")
	assert.False(t, ok)

	_, ok = def.Str("absent")
	assert.False(t, ok)
	assert.False(t, def.Has("absent"))
}
