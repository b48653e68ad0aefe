package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveConfidenceQuery(t *testing.T) {
	m := New()

	m.ObserveConfidenceQuery("sqlite", ResultOK, 20*time.Millisecond)
	m.ObserveConfidenceQuery("sqlite", ResultOK, 30*time.Millisecond)
	m.ObserveConfidenceQuery("sqlite", "timeout", time.Second)

	require.Equal(t, 2.0, testutil.ToFloat64(m.confidenceQueries.WithLabelValues("sqlite", ResultOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.confidenceQueries.WithLabelValues("sqlite", "timeout")))
	require.Equal(t, 1, testutil.CollectAndCount(m.confidenceDuration))
}

func TestSessionGauge(t *testing.T) {
	m := New()

	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()

	require.Equal(t, 1.0, testutil.ToFloat64(m.activeSessions))
}

func TestObserveStep(t *testing.T) {
	m := New()

	m.ObserveStep(ResultOK)
	m.ObserveStep("unavailable")

	require.Equal(t, 1.0, testutil.ToFloat64(m.sessionSteps.WithLabelValues(ResultOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.sessionSteps.WithLabelValues("unavailable")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	require.NotPanics(t, func() {
		m.ObserveConfidenceQuery("neo4j", ResultOK, time.Millisecond)
		m.ObserveStep(ResultOK)
		m.SessionOpened()
		m.SessionClosed()
	})
	require.Nil(t, m.Registry())
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveStep(ResultOK)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), `ric_session_steps_total{result="ok"} 1`))
}
