package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceCounters(t *testing.T) {
	m := NewMetricsService()

	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.ObserveTxRetry("upsert teams")
	m.ObserveTxRetry("upsert teams")
	m.ObserveTransaction("upsert teams", "committed", 10*time.Millisecond)
	m.ObserveJob("statistics", "retried")
	m.ObserveDBQuery("list_teams", 2*time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, 0.5, snap.CacheHitRatio)
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.Equal(t, uint64(2), snap.TxRetries)
	assert.Equal(t, uint64(1), snap.DBQueryCount)
	assert.InDelta(t, 2.0, snap.AverageDBQueryDurationMs, 0.001)
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveTxRetry("op")
	m.ObserveJob("q", "failed")
	assert.Equal(t, MetricsSnapshot{}, m.Snapshot())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsServiceHandlerExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.ObserveJob("statistics", "succeeded")
	m.ObserveTxRetry("upsert teams")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `jobs_processed_total{outcome="succeeded",queue="statistics"} 1`)
	assert.Contains(t, rec.Body.String(), `db_tx_retries_total{op="upsert teams"} 1`)
}
