package service

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceAuthEvents(t *testing.T) {
	m := NewMetricsService()

	m.RecordAuthEvent("login", nil)
	m.RecordAuthEvent("login", errors.New("bad password"))
	m.RecordAuthEvent("login", errors.New("bad password"))

	body := scrape(t, m)
	assert.Contains(t, body, `auth_events_total{event="login",outcome="success"} 1`)
	assert.Contains(t, body, `auth_events_total{event="login",outcome="failure"} 2`)
}

func scrape(t *testing.T, m *MetricsService) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	return rec.Body.String()
}

func TestMetricsServiceCacheRatio(t *testing.T) {
	m := NewMetricsService()
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)

	assert.Contains(t, scrape(t, m), "cache_hits_total 2")
	assert.Contains(t, scrape(t, m), "cache_misses_total 1")
}

func TestMetricsServiceHandlerExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest("GET", "/api/auth/verify", 200, 10*time.Millisecond)
	m.ObserveDBQuery("find_user_by_id", 2*time.Millisecond)
	m.AddSessionsSwept(4)

	body := scrape(t, m)
	assert.Contains(t, body, "http_requests_total")
	assert.Contains(t, body, `db_query_duration_seconds_count{query="find_user_by_id"} 1`)
	assert.Contains(t, body, "auth_sessions_swept_total 4")
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	m.RecordAuthEvent("refresh", nil)
	m.ObserveDBQuery("q", time.Second)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 503, rec.Code)
}
