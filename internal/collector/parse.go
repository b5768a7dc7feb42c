package collector

import (
	"strconv"

	"github.com/rustwizard/pg-exporter/internal/log"
	"github.com/rustwizard/pg-exporter/internal/model"
)

// floatAt extracts column idx of row as a float64. ok is false for NULL values or
// values that fail to parse, in which case the caller should skip the sample rather
// than emit a misleading zero.
func floatAt(r *model.PGResult, row int, idx int) (float64, bool) {
	if idx < 0 {
		return 0, false
	}
	cell := r.Rows[row][idx]
	if !cell.Valid {
		return 0, false
	}
	v, err := strconv.ParseFloat(cell.String, 64)
	if err != nil {
		log.Warnf("invalid numeric value %q in column %d: %s; skip", cell.String, idx, err)
		return 0, false
	}
	return v, true
}

// stringAt extracts column idx of row as a string, returning "" for NULL or absent
// columns.
func stringAt(r *model.PGResult, row int, idx int) string {
	if idx < 0 {
		return ""
	}
	cell := r.Rows[row][idx]
	if !cell.Valid {
		return ""
	}
	return cell.String
}

// boolAt extracts column idx of row as a bool, interpreting PostgreSQL's textual
// boolean representation ("t"/"f") returned over the simple query protocol.
func boolAt(r *model.PGResult, row int, idx int) bool {
	return stringAt(r, row, idx) == "t"
}
