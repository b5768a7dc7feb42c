package store

import (
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteDSNValue_EscapesBackslashAndQuote(t *testing.T) {
	assert.Equal(t, `'plain'`, quoteDSNValue("plain"))
	assert.Equal(t, `'has space'`, quoteDSNValue("has space"))
	assert.Equal(t, `'O\'Brien'`, quoteDSNValue("O'Brien"))
	assert.Equal(t, `'back\\slash'`, quoteDSNValue(`back\slash`))
}

func TestWithDatabase_QuotesValuesContainingSpaces(t *testing.T) {
	dsn, err := WithDatabase("host=127.0.0.1 port=5432 user=postgres dbname=postgres sslmode=disable", "a db with spaces")
	require.NoError(t, err)
	assert.True(t, strings.Contains(dsn, `dbname='a db with spaces'`), dsn)

	// the produced DSN must itself be re-parseable by pgx without the space being
	// mistaken for the start of a new keyword.
	cfg, err := pgx.ParseConfig(dsn)
	require.NoError(t, err)
	assert.Equal(t, "a db with spaces", cfg.Database)
}

func TestWithDatabase_QuotesPasswordContainingSpecialChars(t *testing.T) {
	dsn, err := WithDatabase(`host=127.0.0.1 port=5432 user=postgres dbname=postgres password='p@ss w\'ord' sslmode=disable`, "target")
	require.NoError(t, err)

	cfg, err := pgx.ParseConfig(dsn)
	require.NoError(t, err)
	assert.Equal(t, "target", cfg.Database)
	assert.Equal(t, "p@ss w'ord", cfg.Password)
}
