package collector

import (
	"database/sql"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/rustwizard/pg-exporter/internal/model"
)

func resultWith(colnames []string, row []sql.NullString) *model.PGResult {
	cols := make([]pgconn.FieldDescription, len(colnames))
	for i, n := range colnames {
		cols[i] = pgconn.FieldDescription{Name: n}
	}
	return &model.PGResult{Nrows: 1, Ncols: len(colnames), Colnames: cols, Rows: [][]sql.NullString{row}}
}

func TestFloatAt_Valid(t *testing.T) {
	r := resultWith([]string{"v"}, []sql.NullString{{String: "42.5", Valid: true}})
	v, ok := floatAt(r, 0, 0)
	assert.True(t, ok)
	assert.Equal(t, 42.5, v)
}

func TestFloatAt_NullSkipped(t *testing.T) {
	r := resultWith([]string{"v"}, []sql.NullString{{Valid: false}})
	_, ok := floatAt(r, 0, 0)
	assert.False(t, ok)
}

func TestFloatAt_InvalidNumberSkipped(t *testing.T) {
	r := resultWith([]string{"v"}, []sql.NullString{{String: "not-a-number", Valid: true}})
	_, ok := floatAt(r, 0, 0)
	assert.False(t, ok)
}

func TestFloatAt_MissingColumn(t *testing.T) {
	r := resultWith([]string{"v"}, []sql.NullString{{String: "1", Valid: true}})
	_, ok := floatAt(r, 0, -1)
	assert.False(t, ok)
}

func TestStringAt_NullIsEmpty(t *testing.T) {
	r := resultWith([]string{"v"}, []sql.NullString{{Valid: false}})
	assert.Equal(t, "", stringAt(r, 0, 0))
}

func TestBoolAt(t *testing.T) {
	r := resultWith([]string{"v"}, []sql.NullString{{String: "t", Valid: true}})
	assert.True(t, boolAt(r, 0, 0))

	r = resultWith([]string{"v"}, []sql.NullString{{String: "f", Valid: true}})
	assert.False(t, boolAt(r, 0, 0))
}
