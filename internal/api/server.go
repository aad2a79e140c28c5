// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/portfolio-risk/internal/adapter"
	"github.com/portfolio-risk/internal/circuitbreaker"
	"github.com/portfolio-risk/internal/logging"
	"github.com/portfolio-risk/internal/metrics"
	"github.com/portfolio-risk/internal/models"
	"github.com/portfolio-risk/internal/types"
)

// Service interfaces for dependency injection and testing

// PortfolioServiceInterface defines the portfolio and risk operations
type PortfolioServiceInterface interface {
	CalculatePortfolio(ctx context.Context, wallet, chain string) (*models.Portfolio, error)
	AnalyzePortfolioRisk(ctx context.Context, wallet, chain string, confidence float64) (*models.RiskReport, error)
	RiskHistory(ctx context.Context, wallet, chain string, limit int) ([]models.RiskHistoryEntry, error)
}

// AlertServiceInterface defines the price alert operations
type AlertServiceInterface interface {
	SetupPriceAlert(ctx context.Context, input models.AlertInput) (string, error)
	ListPriceAlerts(ctx context.Context) []models.AlertSummary
	RemovePriceAlert(ctx context.Context, id string) bool
	CheckAlertStatus(ctx context.Context, id string) (*models.AlertStatusReport, error)
	GetAlertNotifications(ctx context.Context, unacknowledgedOnly bool) []models.Notification
	AcknowledgeAlert(ctx context.Context, notificationID string) bool
	MonitorRunning() bool
}

// RPCHealthSource reports endpoint health per configured chain
type RPCHealthSource interface {
	Health() map[types.ChainID]*adapter.ProviderHealth
}

// BreakerSource reports the circuit breaker in front of the price API
type BreakerSource interface {
	BreakerStats() *circuitbreaker.Stats
}

// Server represents the HTTP API server.
type Server struct {
	router           *mux.Router
	httpServer       *http.Server
	portfolioService PortfolioServiceInterface
	alertService     AlertServiceInterface
	metrics          *metrics.Registry
	logger           *logging.Logger
	config           *ServerConfig
	rpcHealth        RPCHealthSource
	priceBreaker     BreakerSource
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RequestsPerSec  float64
	Burst           int
}

// NewServer creates a new API server instance. m and logger may be nil.
func NewServer(
	config *ServerConfig,
	portfolioService PortfolioServiceInterface,
	alertService AlertServiceInterface,
	m *metrics.Registry,
	logger *logging.Logger,
) *Server {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	s := &Server{
		router:           mux.NewRouter(),
		portfolioService: portfolioService,
		alertService:     alertService,
		metrics:          m,
		logger:           logger.WithField("component", "api"),
		config:           config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rps := s.config.RequestsPerSec
	if rps <= 0 {
		rps = 20
	}
	burst := s.config.Burst
	if burst <= 0 {
		burst = int(rps * 2)
	}
	rateLimiter := NewRateLimiter(rps, burst)

	// Order matters: recovery must wrap everything below logging
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware)
	s.router.Use(MetricsMiddleware(s.metrics))
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Portfolio endpoints
	api.HandleFunc("/portfolios/{chain}/{address}", s.handleGetPortfolio).Methods("GET")
	api.HandleFunc("/portfolios/{chain}/{address}/risk", s.handleGetRisk).Methods("GET")
	api.HandleFunc("/portfolios/{chain}/{address}/risk/history", s.handleGetRiskHistory).Methods("GET")

	// Alert endpoints; the static status route is registered before {id}
	api.HandleFunc("/alerts", s.handleCreateAlert).Methods("POST")
	api.HandleFunc("/alerts", s.handleListAlerts).Methods("GET")
	api.HandleFunc("/alerts/status", s.handleAlertStatus).Methods("GET")
	api.HandleFunc("/alerts/{id}/status", s.handleAlertStatus).Methods("GET")
	api.HandleFunc("/alerts/{id}", s.handleRemoveAlert).Methods("DELETE")

	// Notification endpoints
	api.HandleFunc("/notifications", s.handleListNotifications).Methods("GET")
	api.HandleFunc("/notifications/{id}/ack", s.handleAcknowledge).Methods("POST")
}

// Handler exposes the fully wired router
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetHealthSources attaches upstream health reporters to /health. Either
// may be nil.
func (s *Server) SetHealthSources(rpc RPCHealthSource, prices BreakerSource) {
	s.rpcHealth = rpc
	s.priceBreaker = prices
}

// handleHealth handles health check requests. Upstream trouble reports
// "degraded" but still answers 200 since the process itself is serving.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	monitor := "stopped"
	if s.alertService != nil && s.alertService.MonitorRunning() {
		monitor = "running"
	}

	body := map[string]interface{}{
		"service":       "portfolio-risk",
		"alert_monitor": monitor,
	}

	if s.rpcHealth != nil {
		chains := s.rpcHealth.Health()
		for _, h := range chains {
			if h != nil && !h.IsHealthy {
				status = "degraded"
			}
		}
		body["rpc"] = chains
	}

	if s.priceBreaker != nil {
		stats := s.priceBreaker.BreakerStats()
		if stats.State != circuitbreaker.StateClosed {
			status = "degraded"
		}
		body["price_breaker"] = stats
	}

	body["status"] = status
	respondJSON(w, http.StatusOK, body)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
