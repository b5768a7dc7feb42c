// Package probe implements the capability probe: given a live session, it determines
// the server's version and the feature surface that gates collector query variants.
package probe

import (
	"context"
	"strconv"
	"strings"

	"github.com/rustwizard/pg-exporter/internal/log"
	"github.com/rustwizard/pg-exporter/internal/model"
	"github.com/rustwizard/pg-exporter/internal/store"
)

// Probe executes the fixed bundle of discovery queries against db and returns the
// resulting capability snapshot. Any query failure aborts the whole probe with a
// *model.Error of kind KindProbe; the snapshot returned alongside that error holds
// only the fields probed before the failure.
func Probe(ctx context.Context, db *store.DB) (model.Capabilities, error) {
	var caps model.Capabilities

	version, err := scalarInt(ctx, db, "SHOW server_version_num")
	if err != nil {
		return caps, model.NewError(model.KindProbe, "", err)
	}
	caps.ServerVersionNum = version

	recovery, err := scalarBool(ctx, db, "SELECT pg_is_in_recovery()")
	if err != nil {
		return caps, model.NewError(model.KindProbe, "", err)
	}
	caps.IsInRecovery = recovery

	blockSize, err := scalarInt(ctx, db, "SHOW block_size")
	if err != nil {
		return caps, model.NewError(model.KindProbe, "", err)
	}
	caps.BlockSize = uint64(blockSize)

	ioTiming, err := scalarOnOff(ctx, db, "SHOW track_io_timing")
	if err != nil {
		return caps, model.NewError(model.KindProbe, "", err)
	}
	caps.HasIOTiming = ioTiming

	exists, schema, err := probePgStatStatements(ctx, db)
	if err != nil {
		return caps, model.NewError(model.KindProbe, "", err)
	}
	caps.HasPgStatStatements = exists
	caps.PgStatStatementsSchema = schema

	if caps.ServerVersionNum >= model.PostgresV16 {
		hasStatIO, err := viewExists(ctx, db, "pg_stat_io")
		if err != nil {
			return caps, model.NewError(model.KindProbe, "", err)
		}
		caps.HasPgStatIO = hasStatIO
	}

	if caps.ServerVersionNum >= model.PostgresV17 {
		hasRestartpoints, err := columnExists(ctx, db, "pg_stat_checkpointer", "restartpoints_timed")
		if err != nil {
			return caps, model.NewError(model.KindProbe, "", err)
		}
		caps.HasRestartpoints = hasRestartpoints
	}

	return caps, nil
}

func probePgStatStatements(ctx context.Context, db *store.DB) (bool, string, error) {
	preload, err := scalarString(ctx, db, "SHOW shared_preload_libraries")
	if err != nil {
		return false, "", err
	}
	if !strings.Contains(preload, "pg_stat_statements") {
		return false, "", nil
	}

	res, err := db.Query(ctx, "SELECT extnamespace::regnamespace::text FROM pg_extension WHERE extname = 'pg_stat_statements'")
	if err != nil {
		return false, "", err
	}
	if res.Nrows == 0 {
		log.Debugln("pg_stat_statements preloaded but extension not created in this database")
		return false, "", nil
	}
	return true, res.Rows[0][0].String, nil
}

func viewExists(ctx context.Context, db *store.DB, name string) (bool, error) {
	res, err := db.Query(ctx, "SELECT 1 FROM pg_catalog.pg_views WHERE viewname = $1", name)
	if err != nil {
		return false, err
	}
	return res.Nrows > 0, nil
}

func columnExists(ctx context.Context, db *store.DB, relation, column string) (bool, error) {
	res, err := db.Query(ctx, `
		SELECT 1 FROM pg_catalog.pg_attribute a
		JOIN pg_catalog.pg_class c ON c.oid = a.attrelid
		WHERE c.relname = $1 AND a.attname = $2 AND NOT a.attisdropped`, relation, column)
	if err != nil {
		return false, err
	}
	return res.Nrows > 0, nil
}

func scalarString(ctx context.Context, db *store.DB, query string) (string, error) {
	res, err := db.Query(ctx, query)
	if err != nil {
		return "", err
	}
	if res.Nrows == 0 {
		return "", nil
	}
	return res.Rows[0][0].String, nil
}

func scalarInt(ctx context.Context, db *store.DB, query string) (int, error) {
	s, err := scalarString(ctx, db, query)
	if err != nil {
		return 0, err
	}
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func scalarBool(ctx context.Context, db *store.DB, query string) (bool, error) {
	s, err := scalarString(ctx, db, query)
	if err != nil {
		return false, err
	}
	return s == "t" || s == "true", nil
}

func scalarOnOff(ctx context.Context, db *store.DB, query string) (bool, error) {
	s, err := scalarString(ctx, db, query)
	if err != nil {
		return false, err
	}
	return s == "on", nil
}
