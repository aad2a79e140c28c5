package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/portfolio-risk/internal/adapter"
	apperrors "github.com/portfolio-risk/internal/errors"
	"github.com/portfolio-risk/internal/logging"
	"github.com/portfolio-risk/internal/metrics"
	"github.com/portfolio-risk/internal/models"
	"github.com/portfolio-risk/internal/retry"
	"github.com/portfolio-risk/internal/risk"
	"github.com/portfolio-risk/internal/types"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	historyWriteTimeout = 5 * time.Second
)

// RiskHistoryStore persists risk report summaries
type RiskHistoryStore interface {
	Insert(ctx context.Context, entry models.RiskHistoryEntry) error
	List(ctx context.Context, wallet string, chain types.ChainID, limit int) ([]models.RiskHistoryEntry, error)
}

// PortfolioServiceConfig holds the portfolio service dependencies
type PortfolioServiceConfig struct {
	Holdings          adapter.HoldingsResolver
	Prices            adapter.PriceResolver
	History           RiskHistoryStore // optional
	Metrics           *metrics.Registry
	Retry             *retry.RetryConfig
	DefaultConfidence float64
	HistoryLimit      int
}

// PortfolioService values wallets and analyzes their risk
type PortfolioService struct {
	holdings          adapter.HoldingsResolver
	prices            adapter.PriceResolver
	history           RiskHistoryStore
	metrics           *metrics.Registry
	retry             *retry.RetryConfig
	defaultConfidence float64
	historyLimit      int
	now               func() time.Time
}

// NewPortfolioService creates a new portfolio service
func NewPortfolioService(cfg PortfolioServiceConfig) (*PortfolioService, error) {
	if cfg.Holdings == nil {
		return nil, fmt.Errorf("holdings resolver cannot be nil")
	}
	if cfg.Prices == nil {
		return nil, fmt.Errorf("price resolver cannot be nil")
	}

	retryCfg := cfg.Retry
	if retryCfg == nil {
		retryCfg = retry.DefaultRetryConfig()
	}
	if retryCfg.ShouldRetry == nil {
		c := *retryCfg
		c.ShouldRetry = apperrors.IsRetryable
		retryCfg = &c
	}

	confidence := cfg.DefaultConfidence
	if confidence <= 0 || confidence >= 1 {
		confidence = risk.DefaultConfidence
	}
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	return &PortfolioService{
		holdings:          cfg.Holdings,
		prices:            cfg.Prices,
		history:           cfg.History,
		metrics:           cfg.Metrics,
		retry:             retryCfg,
		defaultConfidence: confidence,
		historyLimit:      limit,
		now:               time.Now,
	}, nil
}

// CalculatePortfolio resolves and prices a wallet's holdings
func (s *PortfolioService) CalculatePortfolio(ctx context.Context, wallet, chain string) (*models.Portfolio, error) {
	chainID, wallet, err := normalizeTarget(wallet, chain)
	if err != nil {
		return nil, err
	}

	log := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"wallet": wallet,
		"chain":  string(chainID),
	})

	var raw []models.RawHolding
	err = retry.Do(ctx, s.retry, func(ctx context.Context, attempt int) error {
		var err error
		raw, err = s.holdings.ResolveHoldings(ctx, wallet, chainID)
		return err
	})
	if err != nil {
		log.WithError(err).Warn("Failed to resolve holdings")
		return nil, err
	}

	if len(raw) == 0 {
		return risk.Valuate(wallet, chainID, nil, nil), nil
	}

	var quotes map[string]models.PriceQuote
	err = retry.Do(ctx, s.retry, func(ctx context.Context, attempt int) error {
		var err error
		quotes, err = s.prices.ResolvePrices(ctx, raw, chainID)
		return err
	})
	if err != nil {
		log.WithError(err).Warn("Failed to resolve prices")
		return nil, err
	}

	p := risk.Valuate(wallet, chainID, raw, quotes)
	if dropped := len(raw) - len(p.Holdings); dropped > 0 {
		log.WithField("dropped", dropped).Debug("Holdings without a usable price were left out")
	}
	return p, nil
}

// AnalyzePortfolioRisk values the wallet and builds its risk report.
// A confidence of 0 selects the configured default.
func (s *PortfolioService) AnalyzePortfolioRisk(ctx context.Context, wallet, chain string, confidence float64) (*models.RiskReport, error) {
	if confidence == 0 {
		confidence = s.defaultConfidence
	}
	if !(confidence > 0 && confidence < 1) {
		return nil, apperrors.NewValidationError("confidence", "confidence must be between 0 and 1 (exclusive)")
	}

	p, err := s.CalculatePortfolio(ctx, wallet, chain)
	if err != nil {
		s.metrics.RecordRiskAnalysis(chainLabel(chain), "error")
		return nil, err
	}

	report := risk.Analyze(p, confidence, s.now())

	if p.IsEmpty() {
		s.metrics.RecordRiskAnalysis(string(p.Chain), "empty")
		return report, nil
	}
	s.metrics.RecordRiskAnalysis(string(p.Chain), "success")
	s.recordHistory(ctx, report)

	return report, nil
}

// recordHistory stores the report summary; failures only get logged
func (s *PortfolioService) recordHistory(ctx context.Context, report *models.RiskReport) {
	if s.history == nil {
		return
	}

	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyWriteTimeout)
	defer cancel()

	if err := s.history.Insert(hctx, report.HistoryEntry()); err != nil {
		logging.FromContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"wallet": report.WalletAddress,
			"chain":  string(report.Chain),
		}).Warn("Failed to store risk history")
	}
}

// RiskHistory returns stored report summaries for a wallet, newest first
func (s *PortfolioService) RiskHistory(ctx context.Context, wallet, chain string, limit int) ([]models.RiskHistoryEntry, error) {
	if s.history == nil {
		return nil, apperrors.NewServiceUnavailableError("risk history")
	}

	chainID, wallet, err := normalizeTarget(wallet, chain)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = s.historyLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	entries, err := s.history.List(ctx, wallet, chainID, limit)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list risk history", err)
	}
	return entries, nil
}

// chainLabel keeps metric labels inside the closed chain set
func chainLabel(chain string) string {
	if id, ok := types.ParseChain(chain); ok {
		return string(id)
	}
	return "unsupported"
}

func normalizeTarget(wallet, chain string) (types.ChainID, string, error) {
	chainID, ok := types.ParseChain(chain)
	if !ok {
		return "", "", apperrors.NewUnsupportedChainError(chain)
	}

	wallet = strings.TrimSpace(wallet)
	if err := adapter.ValidateAddress(wallet, chainID); err != nil {
		return "", "", err
	}
	return chainID, wallet, nil
}
