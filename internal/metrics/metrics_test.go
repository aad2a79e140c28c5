package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Records(t *testing.T) {
	m := NewRegistry()

	m.RecordAlertTrigger("low")
	m.RecordAlertTrigger("low")
	m.RecordAlertCheck("ok")
	m.ObserveAlertTick(20*time.Millisecond, 3)
	m.RecordProviderRequest("coingecko", "simple_price", "success")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AlertTriggers.WithLabelValues("low")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertTicks))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ActiveAlerts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("coingecko", "simple_price", "success")))
}

func TestRegistry_NilSafe(t *testing.T) {
	var m *Registry
	assert.NotPanics(t, func() {
		m.RecordAlertTrigger("high")
		m.ObserveHTTPRequest("/health", "GET", "200", time.Millisecond)
		m.RecordEmailDispatch("sent")
	})
}

func TestRegistry_Handler(t *testing.T) {
	m := NewRegistry()
	m.RecordRiskAnalysis("ethereum", "ok")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), `portfolio_risk_risk_analyses_total{chain="ethereum",outcome="ok"} 1`))
}
