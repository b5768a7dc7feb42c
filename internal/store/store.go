// Package store is the pg-exporter database helper: it wraps a pgx connection pool and
// turns query results into model.PGResult values the collector catalogue can project.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rustwizard/pg-exporter/internal/log"
	"github.com/rustwizard/pg-exporter/internal/model"
)

// Data types supported by the sql.NullString-based row parser. Types outside this set
// fail the query outright rather than risk a panic deep inside the pgx scanner.
const (
	dataTypeBool    uint32 = 16
	dataTypeName    uint32 = 19
	dataTypeInt8    uint32 = 20
	dataTypeInt2    uint32 = 21
	dataTypeInt4    uint32 = 23
	dataTypeText    uint32 = 25
	dataTypeOid     uint32 = 26
	dataTypeFloat4  uint32 = 700
	dataTypeFloat8  uint32 = 701
	dataTypeInet    uint32 = 869
	dataTypeBpchar  uint32 = 1042
	dataTypeVarchar uint32 = 1043
	dataTypeNumeric uint32 = 1700
)

// DB is a pooled connection to a single PostgreSQL database.
type DB struct {
	pool *pgxpool.Pool
}

// New creates a connection pool using the given DSN and connect timeout.
func New(ctx context.Context, dsn string, connTimeout time.Duration) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if connTimeout > 0 {
		cfg.ConnConfig.ConnectTimeout = connTimeout
	}
	return NewWithConfig(ctx, cfg)
}

// NewWithConfig creates a connection pool from an already-parsed pgxpool.Config.
//
// Simple protocol is forced so the exporter behaves the same way whether it is talking
// directly to PostgreSQL or through a connection-pooling proxy that does not support
// the extended query protocol.
func NewWithConfig(ctx context.Context, cfg *pgxpool.Config) (*DB, error) {
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	cfg.ConnConfig.RuntimeParams = map[string]string{
		"standard_conforming_strings": "on",
		"client_encoding":             "UTF8",
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &DB{pool: pool}, nil
}

// Pool exposes the underlying pgxpool.Pool for callers needing direct access.
func (db *DB) Pool() *pgxpool.Pool { return db.pool }

// Query executes a query under ctx and returns the result as a model.PGResult.
func (db *DB) Query(ctx context.Context, query string, args ...any) (*model.PGResult, error) {
	if db == nil || db.pool == nil {
		return nil, fmt.Errorf("store: db is nil")
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	descriptions := rows.FieldDescriptions()
	ncols := len(descriptions)
	colnames := make([]pgconn.FieldDescription, ncols)
	copy(colnames, descriptions)

	for _, c := range colnames {
		if !isDataTypeSupported(c.DataTypeOID) {
			return nil, fmt.Errorf("query %q: unsupported data type OID %d", query, c.DataTypeOID)
		}
	}

	rowsStore := make([][]sql.NullString, 0, 10)
	nrows := 0
	for rows.Next() {
		pointers := make([]any, ncols)
		values := make([]sql.NullString, ncols)
		for i := range pointers {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			log.Warnf("skip collecting row: %s", err)
			continue
		}
		rowsStore = append(rowsStore, values)
		nrows++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &model.PGResult{
		Nrows:    nrows,
		Ncols:    ncols,
		Colnames: colnames,
		Rows:     rowsStore,
	}, nil
}

// Ping verifies a connection can be obtained from the pool.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Close drains and closes the pool.
func (db *DB) Close() {
	if db != nil && db.pool != nil {
		db.pool.Close()
	}
}

func isDataTypeSupported(t uint32) bool {
	switch t {
	case dataTypeName, dataTypeBpchar, dataTypeVarchar, dataTypeText,
		dataTypeInt2, dataTypeInt4, dataTypeInt8,
		dataTypeOid, dataTypeFloat4, dataTypeFloat8, dataTypeNumeric,
		dataTypeBool, dataTypeInet:
		return true
	default:
		return false
	}
}

// Databases returns the names of all non-template databases the current role is
// permitted to connect to.
func Databases(ctx context.Context, db *DB) ([]string, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT datname FROM pg_database
		WHERE NOT datistemplate AND datallowconn
		  AND has_database_privilege(datname, 'CONNECT')`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]string, 0, 10)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		list = append(list, name)
	}
	return list, rows.Err()
}

// WithDatabase returns a keyword/value DSN built from base's host, port, user, password
// and TLS mode, but targeting the named database, used to open the per-database
// sub-pools that per-database collectors fan out over. Other parameters of base are
// not carried over, and the TLS mode is reduced to disable, prefer or require.
func WithDatabase(base string, database string) (string, error) {
	cfg, err := pgx.ParseConfig(base)
	if err != nil {
		return "", err
	}
	cfg.Database = database
	return stringifyConfig(cfg), nil
}

func stringifyConfig(cfg *pgx.ConnConfig) string {
	s := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		quoteDSNValue(cfg.Host), cfg.Port, quoteDSNValue(cfg.User), quoteDSNValue(cfg.Database), quoteDSNValue(sslModeOf(cfg)))
	if cfg.Password != "" {
		s += " password=" + quoteDSNValue(cfg.Password)
	}
	return s
}

// quoteDSNValue single-quotes a libpq keyword/value DSN value, backslash-escaping any
// embedded backslash or single quote, per
// https://www.postgresql.org/docs/current/libpq-connect.html#LIBPQ-CONNSTRING-KEYWORD-VALUE.
// Without this, a value containing whitespace (a generated password, a database name
// with a space) would be split into spurious keywords by pgx.ParseConfig.
func quoteDSNValue(v string) string {
	escaped := strings.ReplaceAll(v, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `'`, `\'`)
	return "'" + escaped + "'"
}

func sslModeOf(cfg *pgx.ConnConfig) string {
	if cfg.TLSConfig == nil {
		return "disable"
	}
	for _, fb := range cfg.Fallbacks {
		if fb.TLSConfig == nil {
			return "prefer"
		}
	}
	return "require"
}
