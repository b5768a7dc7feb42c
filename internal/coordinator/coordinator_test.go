package coordinator

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustwizard/pg-exporter/internal/worker"
)

func TestRootHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	RootHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "This is a PgExporter for Prometheus written in Rust", rec.Body.String())
}

func TestRootHandler_UnknownPathReturns404(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	rec := httptest.NewRecorder()

	RootHandler(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeHTTP_UnreachableInstanceReportsDown(t *testing.T) {
	w := worker.New(worker.Config{
		Name:        "unreachable",
		DSN:         "host=127.0.0.1 port=1 dbname=postgres connect_timeout=1",
		ConnTimeout: 200 * time.Millisecond,
		ConstLabels: map[string]string{"cluster": "c1"},
	})
	defer w.Close()

	coord := New([]*worker.Worker{w}, 2*time.Second)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	coord.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `pg_up{cluster="c1"} 0`)
}

func TestDeadlineFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	assert.Equal(t, 5*time.Second, deadlineFor(req, 5*time.Second))

	req.Header.Set(scrapeTimeoutHeader, "2.5")
	assert.Equal(t, 2500*time.Millisecond, deadlineFor(req, 5*time.Second))

	req.Header.Set(scrapeTimeoutHeader, "not-a-number")
	assert.Equal(t, 5*time.Second, deadlineFor(req, 5*time.Second))
}
