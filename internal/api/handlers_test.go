package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portfolio-risk/internal/adapter"
	"github.com/portfolio-risk/internal/circuitbreaker"
	apperrors "github.com/portfolio-risk/internal/errors"
	"github.com/portfolio-risk/internal/metrics"
	"github.com/portfolio-risk/internal/models"
	"github.com/portfolio-risk/internal/types"
)

type fakePortfolioService struct {
	err            error
	lastWallet     string
	lastChain      string
	lastConfidence float64
	lastLimit      int
}

func (f *fakePortfolioService) CalculatePortfolio(ctx context.Context, wallet, chain string) (*models.Portfolio, error) {
	f.lastWallet, f.lastChain = wallet, chain
	if f.err != nil {
		return nil, f.err
	}
	return &models.Portfolio{WalletAddress: wallet, Chain: types.ChainEthereum, TotalValue: 5000}, nil
}

func (f *fakePortfolioService) AnalyzePortfolioRisk(ctx context.Context, wallet, chain string, confidence float64) (*models.RiskReport, error) {
	f.lastWallet, f.lastChain, f.lastConfidence = wallet, chain, confidence
	if f.err != nil {
		return nil, f.err
	}
	return &models.RiskReport{WalletAddress: wallet, ConfidenceLevel: 0.95, TotalValue: 5000}, nil
}

func (f *fakePortfolioService) RiskHistory(ctx context.Context, wallet, chain string, limit int) ([]models.RiskHistoryEntry, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return []models.RiskHistoryEntry{{WalletAddress: wallet, OverallRiskScore: 6}}, nil
}

type fakeAlertService struct {
	alerts    map[string]models.AlertSummary
	notes     []models.Notification
	acked     map[string]bool
	running   bool
	setupErr  error
	statusErr error
	lastUnack bool
}

func newFakeAlertService() *fakeAlertService {
	return &fakeAlertService{
		alerts: map[string]models.AlertSummary{},
		acked:  map[string]bool{},
	}
}

func (f *fakeAlertService) SetupPriceAlert(ctx context.Context, input models.AlertInput) (string, error) {
	if f.setupErr != nil {
		return "", f.setupErr
	}
	id := "alert-1"
	f.alerts[id] = models.AlertSummary{ID: id, Symbol: strings.ToUpper(input.Symbol)}
	return id, nil
}

func (f *fakeAlertService) ListPriceAlerts(ctx context.Context) []models.AlertSummary {
	var out []models.AlertSummary
	for _, a := range f.alerts {
		out = append(out, a)
	}
	return out
}

func (f *fakeAlertService) RemovePriceAlert(ctx context.Context, id string) bool {
	_, ok := f.alerts[id]
	delete(f.alerts, id)
	return ok
}

func (f *fakeAlertService) CheckAlertStatus(ctx context.Context, id string) (*models.AlertStatusReport, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	if id != "" {
		if _, ok := f.alerts[id]; !ok {
			return nil, apperrors.NewNotFoundError("alert", id)
		}
	}
	return &models.AlertStatusReport{TotalAlerts: len(f.alerts), MonitorRunning: f.running}, nil
}

func (f *fakeAlertService) GetAlertNotifications(ctx context.Context, unacknowledgedOnly bool) []models.Notification {
	f.lastUnack = unacknowledgedOnly
	return f.notes
}

func (f *fakeAlertService) AcknowledgeAlert(ctx context.Context, notificationID string) bool {
	for _, n := range f.notes {
		if n.ID == notificationID {
			f.acked[notificationID] = true
			return true
		}
	}
	return false
}

func (f *fakeAlertService) MonitorRunning() bool { return f.running }

func createTestServer(p *fakePortfolioService, a *fakeAlertService) *Server {
	return NewServer(&ServerConfig{Host: "localhost", Port: "0", RequestsPerSec: 1000}, p, a, metrics.NewRegistry(), nil)
}

func serve(s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) types.ServiceError {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealth(t *testing.T) {
	a := newFakeAlertService()
	a.running = true
	s := createTestServer(&fakePortfolioService{}, a)

	w := serve(s, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "running", body["alert_monitor"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

type staticRPCHealth map[types.ChainID]*adapter.ProviderHealth

func (h staticRPCHealth) Health() map[types.ChainID]*adapter.ProviderHealth { return h }

type staticBreaker circuitbreaker.Stats

func (b staticBreaker) BreakerStats() *circuitbreaker.Stats {
	stats := circuitbreaker.Stats(b)
	return &stats
}

func TestHealth_UpstreamSources(t *testing.T) {
	tests := []struct {
		name    string
		rpc     staticRPCHealth
		breaker staticBreaker
		status  string
	}{
		{
			name:    "all healthy",
			rpc:     staticRPCHealth{types.ChainEthereum: {CurrentURL: "https://eth.example", IsHealthy: true}},
			breaker: staticBreaker{Name: "coingecko", State: circuitbreaker.StateClosed},
			status:  "healthy",
		},
		{
			name:    "rpc failing",
			rpc:     staticRPCHealth{types.ChainPolygon: {CurrentURL: "https://polygon.example", ConsecutiveFails: 3}},
			breaker: staticBreaker{Name: "coingecko", State: circuitbreaker.StateClosed},
			status:  "degraded",
		},
		{
			name:    "breaker open",
			rpc:     staticRPCHealth{types.ChainEthereum: {IsHealthy: true}},
			breaker: staticBreaker{Name: "coingecko", State: circuitbreaker.StateOpen, ConsecutiveFailures: 5},
			status:  "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := createTestServer(&fakePortfolioService{}, newFakeAlertService())
			s.SetHealthSources(tt.rpc, tt.breaker)

			w := serve(s, "GET", "/health", nil)
			require.Equal(t, http.StatusOK, w.Code)

			var body struct {
				Status string                            `json:"status"`
				RPC    map[string]adapter.ProviderHealth `json:"rpc"`
				Prices circuitbreaker.Stats              `json:"price_breaker"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body.Status)
			assert.Len(t, body.RPC, len(tt.rpc))
			for chain, h := range tt.rpc {
				assert.Equal(t, h.IsHealthy, body.RPC[string(chain)].IsHealthy)
			}
			assert.Equal(t, tt.breaker.State, body.Prices.State)
			assert.Equal(t, "coingecko", body.Prices.Name)
		})
	}
}

func TestGetPortfolio(t *testing.T) {
	p := &fakePortfolioService{}
	s := createTestServer(p, newFakeAlertService())

	w := serve(s, "GET", "/api/portfolios/ethereum/0xabc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0xabc", p.lastWallet)
	assert.Equal(t, "ethereum", p.lastChain)

	var portfolio models.Portfolio
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &portfolio))
	assert.Equal(t, 5000.0, portfolio.TotalValue)
}

func TestGetPortfolio_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unsupported chain", apperrors.NewUnsupportedChainError("doge"), http.StatusBadRequest, "UNSUPPORTED_CHAIN"},
		{"provider failure", apperrors.NewProviderError("coingecko", errors.New("boom")), http.StatusBadGateway, "PROVIDER_ERROR"},
		{"internal failure hides cause", errors.New("secret detail"), http.StatusInternalServerError, ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := createTestServer(&fakePortfolioService{err: tt.err}, newFakeAlertService())

			w := serve(s, "GET", "/api/portfolios/doge/0xabc", nil)
			assert.Equal(t, tt.wantStatus, w.Code)
			se := decodeError(t, w)
			assert.Equal(t, tt.wantCode, se.Code)
			assert.NotContains(t, se.Message, "secret detail")
		})
	}
}

func TestGetRisk_Confidence(t *testing.T) {
	p := &fakePortfolioService{}
	s := createTestServer(p, newFakeAlertService())

	w := serve(s, "GET", "/api/portfolios/ethereum/0xabc/risk", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0.0, p.lastConfidence)

	w = serve(s, "GET", "/api/portfolios/ethereum/0xabc/risk?confidence=0.99", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0.99, p.lastConfidence)

	w = serve(s, "GET", "/api/portfolios/ethereum/0xabc/risk?confidence=high", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	se := decodeError(t, w)
	assert.Equal(t, "INVALID_PARAMETER", se.Code)
	assert.Equal(t, "confidence", se.Details["parameter"])
}

func TestGetRiskHistory(t *testing.T) {
	p := &fakePortfolioService{}
	s := createTestServer(p, newFakeAlertService())

	w := serve(s, "GET", "/api/portfolios/ethereum/0xabc/risk/history?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, p.lastLimit)

	w = serve(s, "GET", "/api/portfolios/ethereum/0xabc/risk/history?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "limit", decodeError(t, w).Details["parameter"])

	p.err = apperrors.NewServiceUnavailableError("risk history")
	w = serve(s, "GET", "/api/portfolios/ethereum/0xabc/risk/history", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCreateAlert(t *testing.T) {
	a := newFakeAlertService()
	s := createTestServer(&fakePortfolioService{}, a)

	w := serve(s, "POST", "/api/alerts", []byte(`{"symbol":"sol","lowThreshold":145,"highThreshold":160}`))
	require.Equal(t, http.StatusCreated, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "alert-1", body["id"])
	assert.Equal(t, "SOL", a.alerts["alert-1"].Symbol)
}

func TestCreateAlert_BadRequests(t *testing.T) {
	a := newFakeAlertService()
	s := createTestServer(&fakePortfolioService{}, a)

	w := serve(s, "POST", "/api/alerts", []byte("invalid json"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(s, "POST", "/api/alerts", []byte(`{"symbol":"sol","unknown":1}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	a.setupErr = apperrors.NewValidationError("thresholds", "low must be below high")
	w = serve(s, "POST", "/api/alerts", []byte(`{"symbol":"sol","lowThreshold":200,"highThreshold":100}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w).Code)
}

func TestListAndRemoveAlerts(t *testing.T) {
	a := newFakeAlertService()
	s := createTestServer(&fakePortfolioService{}, a)

	w := serve(s, "GET", "/api/alerts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"alerts":[],"count":0}`, w.Body.String())

	a.alerts["a1"] = models.AlertSummary{ID: "a1", Symbol: "BTC"}

	w = serve(s, "DELETE", "/api/alerts/a1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = serve(s, "DELETE", "/api/alerts/a1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAlertStatus(t *testing.T) {
	a := newFakeAlertService()
	a.alerts["a1"] = models.AlertSummary{ID: "a1"}
	s := createTestServer(&fakePortfolioService{}, a)

	w := serve(s, "GET", "/api/alerts/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report models.AlertStatusReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 1, report.TotalAlerts)

	w = serve(s, "GET", "/api/alerts/a1/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(s, "GET", "/api/alerts/missing/status", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, w).Code)
}

func TestNotifications(t *testing.T) {
	a := newFakeAlertService()
	a.notes = []models.Notification{{ID: "n1", AlertID: "a1", Symbol: "SOL", Price: 143}}
	s := createTestServer(&fakePortfolioService{}, a)

	w := serve(s, "GET", "/api/notifications?unacknowledged=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, a.lastUnack)

	w = serve(s, "GET", "/api/notifications?unacknowledged=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_PARAMETER", decodeError(t, w).Code)

	w = serve(s, "POST", "/api/notifications/n1/ack", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, a.acked["n1"])

	w = serve(s, "POST", "/api/notifications/nope/ack", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRateLimit(t *testing.T) {
	s := NewServer(&ServerConfig{RequestsPerSec: 1, Burst: 1}, &fakePortfolioService{}, newFakeAlertService(), nil, nil)

	req := func(client string) *httptest.ResponseRecorder {
		r := httptest.NewRequest("GET", "/health", nil)
		r.Header.Set("X-Client-ID", client)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, r)
		return w
	}

	assert.Equal(t, http.StatusOK, req("a").Code)

	limited := req("a")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "1", limited.Header().Get("Retry-After"))
	assert.Equal(t, ErrCodeRateLimitExceeded, decodeError(t, limited).Code)

	assert.Equal(t, http.StatusOK, req("b").Code)
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(10))
	assert.Equal(t, 1, retryAfterSeconds(1))
	assert.Equal(t, 4, retryAfterSeconds(0.25))
	assert.Equal(t, 1, retryAfterSeconds(0))
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := createTestServer(&fakePortfolioService{}, newFakeAlertService())

	serve(s, "GET", "/api/portfolios/ethereum/0xabc", nil)
	w := serve(s, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `route="/api/portfolios/{chain}/{address}"`)
}
