package driver

import (
	"database/sql"
	"testing"

	"dbconnect/internal/dberr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindNamed_Dollar(t *testing.T) {
	query := "SELECT * FROM t WHERE a = :a AND b = :b AND a2 = :a"
	bound, args, err := bindNamed(styleDollar, query, map[string]any{"a": 1, "b": "x"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2 AND a2 = $1", bound)
	assert.Equal(t, []any{1, "x"}, args)
}

func TestBindNamed_Question(t *testing.T) {
	query := "UPDATE t SET a = :a WHERE b = :b OR c = :a"
	bound, args, err := bindNamed(styleQuestion, query, map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE t SET a = ? WHERE b = ? OR c = ?", bound)
	// Repeated names repeat their value positionally.
	assert.Equal(t, []any{1, 2, 1}, args)
}

func TestBindNamed_At(t *testing.T) {
	query := "SELECT * FROM t WHERE id = :id"
	bound, args, err := bindNamed(styleAt, query, map[string]any{"id": 7})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE id = @id", bound)
	require.Len(t, args, 1)
	assert.Equal(t, sql.Named("id", 7), args[0])
}

func TestBindNamed_Colon(t *testing.T) {
	query := "SELECT * FROM t WHERE id = :id AND other = :id"
	bound, args, err := bindNamed(styleColon, query, map[string]any{"id": 7})
	require.NoError(t, err)
	assert.Equal(t, query, bound, "colon style keeps the statement verbatim")
	require.Len(t, args, 1)
	assert.Equal(t, sql.Named("id", 7), args[0])
}

func TestBindNamed_IgnoresLiteralsAndComments(t *testing.T) {
	query := `SELECT ':nope', "col:nope", x -- :nope
/* :nope */ FROM t WHERE y = :y`
	bound, args, err := bindNamed(styleDollar, query, map[string]any{"y": true})
	require.NoError(t, err)
	assert.Contains(t, bound, "':nope'")
	assert.Contains(t, bound, `"col:nope"`)
	assert.Contains(t, bound, "-- :nope")
	assert.Contains(t, bound, "/* :nope */")
	assert.Contains(t, bound, "y = $1")
	assert.Equal(t, []any{true}, args)
}

func TestBindNamed_EscapedQuote(t *testing.T) {
	query := `SELECT 'it''s :not a param' FROM t WHERE a = :a`
	bound, args, err := bindNamed(styleDollar, query, map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Contains(t, bound, "'it''s :not a param'")
	assert.Contains(t, bound, "a = $1")
	assert.Len(t, args, 1)
}

func TestBindNamed_PostgresCast(t *testing.T) {
	query := "SELECT x::text FROM t WHERE a = :a"
	bound, _, err := bindNamed(styleDollar, query, map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, "SELECT x::text FROM t WHERE a = $1", bound)
}

func TestBindNamed_MissingParameter(t *testing.T) {
	_, _, err := bindNamed(styleDollar, "SELECT :a", map[string]any{})
	require.Error(t, err)
	assert.True(t, dberr.Is(err, dberr.KindQuery))
	assert.Contains(t, err.Error(), `"a"`)
}

func TestBindNamed_UnusedParametersIgnored(t *testing.T) {
	bound, args, err := bindNamed(styleQuestion, "SELECT 1", map[string]any{"spare": 1})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", bound)
	assert.Empty(t, args)
}

func TestBindNamed_NoParams(t *testing.T) {
	bound, args, err := bindNamed(styleColon, "SELECT 1", nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", bound)
	assert.Empty(t, args)
}
