// Package main provides the API server entry point for the portfolio risk service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/portfolio-risk/internal/adapter"
	"github.com/portfolio-risk/internal/alert"
	"github.com/portfolio-risk/internal/api"
	"github.com/portfolio-risk/internal/config"
	"github.com/portfolio-risk/internal/logging"
	"github.com/portfolio-risk/internal/metrics"
	"github.com/portfolio-risk/internal/retry"
	"github.com/portfolio-risk/internal/service"
	"github.com/portfolio-risk/internal/storage"
	"github.com/portfolio-risk/internal/types"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	registry := metrics.NewRegistry()

	// Optional stores; a disabled store leaves its feature off
	var quoteCache adapter.QuoteCache
	if cfg.Database.Redis.Enabled {
		redisCache, err := storage.NewRedisCache(&cfg.Database.Redis)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer redisCache.Close()
		quoteCache = storage.NewPriceCache(redisCache)
		logger.Info("Redis price cache enabled")
	}

	var archive alert.Archive
	if cfg.Database.Postgres.Enabled {
		postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Postgres")
		}
		defer postgres.Close()
		archive = storage.NewAlertArchiveRepository(postgres)
		logger.Info("Postgres alert archive enabled")
	}

	var history service.RiskHistoryStore
	if cfg.Database.ClickHouse.Enabled {
		clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to ClickHouse")
		}
		defer clickhouse.Close()
		checkCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = storage.CheckRiskHistorySchema(checkCtx, clickhouse)
		cancel()
		if err != nil {
			logger.WithError(err).Fatal("ClickHouse risk history is not usable")
		}
		history = storage.NewRiskHistoryRepository(clickhouse)
		logger.Info("ClickHouse risk history enabled")
	}

	// Market data
	providers := make(map[types.ChainID]adapter.DataProvider)
	for name, chainCfg := range cfg.Chains.Chains {
		chain, ok := types.ParseChain(name)
		if !ok || chainCfg.RPCPrimary == "" {
			continue
		}
		provider, err := adapter.NewRPCProvider(chainCfg.RPCPrimary, chainCfg.RPCSecondary)
		if err != nil {
			logger.WithError(err).WithField("chain", name).Fatal("Failed to create RPC provider")
		}
		providers[chain] = provider
	}
	holdings := adapter.NewEVMHoldingsResolver(providers, registry)
	defer holdings.Close()

	coingecko := adapter.NewCoinGeckoClient(adapter.CoinGeckoConfig{
		BaseURL:        cfg.MarketData.BaseURL,
		APIKey:         cfg.MarketData.APIKey,
		Timeout:        cfg.MarketData.Timeout,
		RequestsPerSec: cfg.MarketData.RequestsPerSec,
	}, registry)

	var marketData adapter.MarketDataProvider = coingecko
	if quoteCache != nil {
		marketData = adapter.NewCachedMarketData(coingecko, quoteCache, cfg.MarketData.CacheTTL, registry)
	}

	// Services
	portfolioService, err := service.NewPortfolioService(service.PortfolioServiceConfig{
		Holdings:          holdings,
		Prices:            marketData,
		History:           history,
		Metrics:           registry,
		Retry:             retry.DefaultRetryConfig(),
		DefaultConfidence: cfg.Risk.DefaultConfidence,
		HistoryLimit:      cfg.Risk.HistoryLimit,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create portfolio service")
	}

	alertRegistry := alert.NewRegistry()
	monitor, err := alert.NewMonitor(alert.MonitorConfig{
		Registry:     alertRegistry,
		Prices:       marketData,
		Email:        alert.NewLogNotifier(logger),
		Archive:      archive,
		Metrics:      registry,
		Logger:       logger,
		PollInterval: cfg.Alerts.PollInterval,
		FetchTimeout: cfg.Alerts.FetchTimeout,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create alert monitor")
	}
	alertService := service.NewAlertService(alertRegistry, monitor, archive)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := alertService.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start alert monitor")
	}

	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		RequestsPerSec:  cfg.Server.RequestsPerSec,
	}
	server := api.NewServer(serverConfig, portfolioService, alertService, registry, logger)
	server.SetHealthSources(holdings, coingecko)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		logger.WithError(err).Error("Server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	// The monitor finishes its current tick before the listener goes away
	if err := alertService.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Alert monitor did not stop cleanly")
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
		os.Exit(1)
	}

	logger.Info("Server exited")
}
