package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustwizard/pg-exporter/internal/model"
)

func TestNew_NameAndConstLabels(t *testing.T) {
	w := New(Config{Name: "c1", ConstLabels: map[string]string{"cluster": "c1"}})
	assert.Equal(t, "c1", w.Name())
	assert.Equal(t, map[string]string{"cluster": "c1"}, w.ConstLabels())
}

func TestBackoffLocked_GrowsExponentially(t *testing.T) {
	w := New(Config{Name: "c1"})

	w.backoffLocked()
	first := time.Until(w.nextAttempt)

	w.backoffLocked()
	second := time.Until(w.nextAttempt)

	assert.Greater(t, second, first, "backoff after a second consecutive failure must be longer than after the first")
}

func TestBackoffLocked_CapsAtMaxBackoff(t *testing.T) {
	w := New(Config{Name: "c1"})

	for i := 0; i < 20; i++ {
		w.backoffLocked()
	}

	assert.LessOrEqual(t, time.Until(w.nextAttempt), maxBackoff+time.Second)
}

func TestEnsureConnected_RespectsBackoffWindow(t *testing.T) {
	w := New(Config{Name: "c1", DSN: "postgres://unreachable-host-for-test/db"})
	w.failures = 3
	w.nextAttempt = time.Now().Add(time.Minute)

	_, _, err := w.ensureConnected(context.Background())
	require.Error(t, err)

	var merr *model.Error
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, model.KindConnect, merr.Kind)
	assert.Contains(t, err.Error(), "reconnect suppressed")
}

func TestDiscardLocked_ClearsState(t *testing.T) {
	w := New(Config{Name: "c1"})
	w.hasCaps = true
	w.subPools["dbname"] = nil

	w.db = nil // nothing to close
	w.discardLocked()

	assert.False(t, w.hasCaps)
	assert.Empty(t, w.subPools)
}
