package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/portfolio-risk/internal/circuitbreaker"
	apperrors "github.com/portfolio-risk/internal/errors"
	"github.com/portfolio-risk/internal/logging"
	"github.com/portfolio-risk/internal/metrics"
	"github.com/portfolio-risk/internal/models"
	"github.com/portfolio-risk/internal/types"
)

const coinGeckoProvider = "coingecko"

// coinGeckoIDs maps tickers to CoinGecko coin ids
var coinGeckoIDs = map[string]string{
	"BTC":   "bitcoin",
	"WBTC":  "wrapped-bitcoin",
	"ETH":   "ethereum",
	"WETH":  "weth",
	"SOL":   "solana",
	"BNB":   "binancecoin",
	"WBNB":  "wbnb",
	"POL":   "polygon-ecosystem-token",
	"MATIC": "matic-network",
	"USDC":  "usd-coin",
	"USDT":  "tether",
	"DAI":   "dai",
	"LINK":  "chainlink",
	"UNI":   "uniswap",
	"AAVE":  "aave",
	"XRP":   "ripple",
	"ADA":   "cardano",
	"AVAX":  "avalanche-2",
	"DOT":   "polkadot",
	"DOGE":  "dogecoin",
	"SHIB":  "shiba-inu",
	"PEPE":  "pepe",
	"CAKE":  "pancakeswap-token",
	"JUP":   "jupiter-exchange-solana",
	"BONK":  "bonk",
}

// coinGeckoPlatforms maps chains to CoinGecko asset platform ids
var coinGeckoPlatforms = map[types.ChainID]string{
	types.ChainEthereum: "ethereum",
	types.ChainPolygon:  "polygon-pos",
	types.ChainBSC:      "binance-smart-chain",
	types.ChainSolana:   "solana",
}

// CoinGeckoConfig configures the CoinGecko client
type CoinGeckoConfig struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	RequestsPerSec float64
}

// CoinGeckoClient prices holdings and symbols through the CoinGecko REST API
type CoinGeckoClient struct {
	client  *resty.Client
	limiter *rate.Limiter
	breaker *circuitbreaker.CircuitBreaker
	metrics *metrics.Registry
}

// coinGeckoQuote is one entry of a simple price response
type coinGeckoQuote struct {
	USD          *float64 `json:"usd"`
	USD24hChange *float64 `json:"usd_24h_change"`
}

// NewCoinGeckoClient creates a new CoinGecko client
func NewCoinGeckoClient(cfg CoinGeckoConfig, m *metrics.Registry) *CoinGeckoClient {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("x-cg-demo-api-key", cfg.APIKey)
	}

	breakerCfg := circuitbreaker.DefaultConfig(coinGeckoProvider)
	breakerCfg.IsFailure = func(err error) bool {
		return !apperrors.IsValidationError(err) && !errors.Is(err, context.Canceled)
	}

	return &CoinGeckoClient{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
		breaker: circuitbreaker.NewCircuitBreaker(breakerCfg),
		metrics: m,
	}
}

// BreakerStats reports the state of the breaker guarding the API
func (c *CoinGeckoClient) BreakerStats() *circuitbreaker.Stats {
	return c.breaker.GetStats()
}

// ResolvePrices prices native/symbol holdings through /simple/price and
// contract holdings through /simple/token_price. Unknown assets are left out.
func (c *CoinGeckoClient) ResolvePrices(ctx context.Context, holdings []models.RawHolding, chain types.ChainID) (map[string]models.PriceQuote, error) {
	quotes := make(map[string]models.PriceQuote, len(holdings))

	idsByKey := make(map[string]string)
	contractsByKey := make(map[string]string)
	for _, h := range holdings {
		if h.Address != "" {
			contractsByKey[h.Key()] = strings.ToLower(h.Address)
			continue
		}
		if id, ok := coinGeckoIDs[strings.ToUpper(h.Symbol)]; ok {
			idsByKey[h.Key()] = id
		}
	}

	if len(idsByKey) > 0 {
		byID, err := c.simplePrice(ctx, uniqueValues(idsByKey))
		if err != nil {
			return nil, err
		}
		for key, id := range idsByKey {
			if q, ok := byID[id]; ok {
				quotes[key] = q
			}
		}
	}

	if len(contractsByKey) > 0 {
		platform, ok := coinGeckoPlatforms[chain]
		if !ok {
			return quotes, nil
		}
		byContract, err := c.tokenPrice(ctx, platform, uniqueValues(contractsByKey))
		if err != nil {
			return nil, err
		}
		for key, contract := range contractsByKey {
			if q, ok := byContract[contract]; ok {
				quotes[key] = q
			}
		}
	}

	// stamp display symbols back onto the quotes
	for _, h := range holdings {
		if q, ok := quotes[h.Key()]; ok {
			q.Symbol = strings.ToUpper(h.Symbol)
			quotes[h.Key()] = q
		}
	}

	return quotes, nil
}

// GetSpotPrice returns the current price of a ticker. Tickers without a
// known id are tried as raw CoinGecko ids.
func (c *CoinGeckoClient) GetSpotPrice(ctx context.Context, symbol string) (*models.PriceQuote, error) {
	upper := strings.ToUpper(strings.TrimSpace(symbol))
	id, ok := coinGeckoIDs[upper]
	if !ok {
		id = strings.ToLower(strings.TrimSpace(symbol))
	}

	byID, err := c.simplePrice(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	q, ok := byID[id]
	if !ok {
		return nil, apperrors.NewProviderError(coinGeckoProvider,
			NewAdapterError("", "GetSpotPrice", ErrUnknownSymbol, map[string]interface{}{"symbol": symbol}))
	}
	q.Symbol = upper
	return &q, nil
}

func (c *CoinGeckoClient) simplePrice(ctx context.Context, ids []string) (map[string]models.PriceQuote, error) {
	return c.fetch(ctx, "simple_price", "/simple/price", map[string]string{
		"ids":                 strings.Join(ids, ","),
		"vs_currencies":       "usd",
		"include_24hr_change": "true",
	})
}

func (c *CoinGeckoClient) tokenPrice(ctx context.Context, platform string, contracts []string) (map[string]models.PriceQuote, error) {
	return c.fetch(ctx, "token_price", "/simple/token_price/"+platform, map[string]string{
		"contract_addresses":  strings.Join(contracts, ","),
		"vs_currencies":       "usd",
		"include_24hr_change": "true",
	})
}

// fetch runs one paced, breaker-guarded GET and decodes a quote map keyed
// by coin id or lowercased contract address
func (c *CoinGeckoClient) fetch(ctx context.Context, op, path string, params map[string]string) (map[string]models.PriceQuote, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperrors.NewProviderTimeoutError(coinGeckoProvider)
	}

	var raw map[string]coinGeckoQuote
	err := c.breaker.Execute(ctx, func() error {
		resp, err := c.client.R().
			SetContext(ctx).
			SetQueryParams(params).
			Get(path)
		if err != nil {
			return classifyTransportError(err)
		}

		switch {
		case resp.StatusCode() == http.StatusTooManyRequests:
			return apperrors.NewProviderRateLimitError(coinGeckoProvider)
		case resp.StatusCode() != http.StatusOK:
			return apperrors.NewProviderError(coinGeckoProvider,
				fmt.Errorf("API error %d: %s", resp.StatusCode(), truncate(resp.String(), 200)))
		}

		if err := json.Unmarshal(resp.Body(), &raw); err != nil {
			return apperrors.NewProviderError(coinGeckoProvider, fmt.Errorf("failed to parse price response: %w", err))
		}
		return nil
	})

	if err != nil {
		c.metrics.RecordProviderRequest(coinGeckoProvider, op, "error")
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			err = apperrors.NewProviderError(coinGeckoProvider, fmt.Errorf("%w: %v", ErrProviderUnavailable, err))
		}
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"provider":  coinGeckoProvider,
			"operation": op,
		}).WithError(err).Warn("Price request failed")
		return nil, err
	}
	c.metrics.RecordProviderRequest(coinGeckoProvider, op, "success")

	quotes := make(map[string]models.PriceQuote, len(raw))
	for key, q := range raw {
		if q.USD == nil || *q.USD <= 0 {
			continue
		}
		quote := models.PriceQuote{PriceUSD: *q.USD}
		if q.USD24hChange != nil {
			quote.Change24hPercent = *q.USD24hChange
		}
		quotes[strings.ToLower(key)] = quote
	}
	return quotes, nil
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return apperrors.NewProviderTimeoutError(coinGeckoProvider)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return apperrors.NewProviderError(coinGeckoProvider, err)
}

func uniqueValues(m map[string]string) []string {
	seen := make(map[string]struct{}, len(m))
	out := make([]string, 0, len(m))
	for _, v := range m {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
