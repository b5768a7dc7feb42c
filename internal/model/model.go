// Package model defines the shared data types passed between the capability probe,
// collector registry, runner, worker and coordinator.
package model

import (
	"database/sql"

	"github.com/jackc/pgx/v5/pgconn"
)

// PGResult is the iterable store holding a query result (data and metadata) returned
// from PostgreSQL, independent of how it will later be projected into samples.
type PGResult struct {
	Nrows    int
	Ncols    int
	Colnames []pgconn.FieldDescription
	Rows     [][]sql.NullString
}

// ColumnIndex returns the index of the named column, or -1 if absent.
func (r *PGResult) ColumnIndex(name string) int {
	for i, c := range r.Colnames {
		if string(c.Name) == name {
			return i
		}
	}
	return -1
}

// Capabilities is an immutable snapshot of one server's version and feature surface,
// produced by the capability probe once per freshly established connection.
type Capabilities struct {
	// ServerVersionNum is e.g. 150003 for PostgreSQL 15.3.
	ServerVersionNum int
	// IsInRecovery reports whether the server is currently a standby.
	IsInRecovery bool
	// HasPgStatStatements reports whether pg_stat_statements is in
	// shared_preload_libraries and created as an extension in the connected database.
	HasPgStatStatements bool
	// PgStatStatementsSchema is the schema pg_stat_statements is installed in, when
	// HasPgStatStatements is true.
	PgStatStatementsSchema string
	// HasPgStatIO reports whether the pg_stat_io view exists (PostgreSQL >= 16).
	HasPgStatIO bool
	// HasRestartpoints reports whether pg_stat_checkpointer exposes restartpoint
	// counters (PostgreSQL >= 17).
	HasRestartpoints bool
	// HasIOTiming reports the value of the track_io_timing GUC.
	HasIOTiming bool
	// BlockSize is the server's configured block_size, used to convert block counts
	// into bytes.
	BlockSize uint64
}

// PostgreSQL major-version boundaries used by variant predicates, expressed as the
// smallest server_version_num belonging to that major release.
const (
	PostgresV10 = 100000
	PostgresV11 = 110000
	PostgresV12 = 120000
	PostgresV13 = 130000
	PostgresV14 = 140000
	PostgresV15 = 150000
	PostgresV16 = 160000
	PostgresV17 = 170000
	PostgresV18 = 180000
)
