package adapter

import (
	"context"
	"strings"
	"time"

	"github.com/portfolio-risk/internal/logging"
	"github.com/portfolio-risk/internal/metrics"
	"github.com/portfolio-risk/internal/models"
	"github.com/portfolio-risk/internal/types"
)

const spotNamespace = "spot"

// QuoteCache stores quotes per namespace (a chain or spot) and key
type QuoteCache interface {
	GetQuotes(ctx context.Context, namespace string, keys []string) (map[string]models.PriceQuote, error)
	SetQuotes(ctx context.Context, namespace string, quotes map[string]models.PriceQuote, ttl time.Duration) error
}

// CachedMarketData serves quotes from a cache and falls through to the
// wrapped provider for misses. Cache failures only cost a cache miss.
type CachedMarketData struct {
	next    MarketDataProvider
	cache   QuoteCache
	ttl     time.Duration
	metrics *metrics.Registry
}

// NewCachedMarketData wraps next with a quote cache
func NewCachedMarketData(next MarketDataProvider, cache QuoteCache, ttl time.Duration, m *metrics.Registry) *CachedMarketData {
	return &CachedMarketData{next: next, cache: cache, ttl: ttl, metrics: m}
}

// ResolvePrices implements PriceResolver
func (c *CachedMarketData) ResolvePrices(ctx context.Context, holdings []models.RawHolding, chain types.ChainID) (map[string]models.PriceQuote, error) {
	keys := make([]string, 0, len(holdings))
	for _, h := range holdings {
		keys = append(keys, h.Key())
	}

	quotes := c.lookup(ctx, string(chain), keys)

	var missing []models.RawHolding
	for _, h := range holdings {
		if _, ok := quotes[h.Key()]; !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) == 0 {
		return quotes, nil
	}

	fresh, err := c.next.ResolvePrices(ctx, missing, chain)
	if err != nil {
		return nil, err
	}
	c.store(ctx, string(chain), fresh)

	for k, q := range fresh {
		quotes[k] = q
	}
	return quotes, nil
}

// GetSpotPrice implements SpotPriceSource
func (c *CachedMarketData) GetSpotPrice(ctx context.Context, symbol string) (*models.PriceQuote, error) {
	key := strings.ToLower(strings.TrimSpace(symbol))
	if q, ok := c.lookup(ctx, spotNamespace, []string{key})[key]; ok {
		return &q, nil
	}

	q, err := c.next.GetSpotPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}
	c.store(ctx, spotNamespace, map[string]models.PriceQuote{key: *q})
	return q, nil
}

func (c *CachedMarketData) lookup(ctx context.Context, namespace string, keys []string) map[string]models.PriceQuote {
	cached, err := c.cache.GetQuotes(ctx, namespace, keys)
	if err != nil {
		logging.FromContext(ctx).WithField("namespace", namespace).WithError(err).Warn("Price cache read failed")
		c.metrics.RecordCacheLookup("error")
		return make(map[string]models.PriceQuote, len(keys))
	}
	if cached == nil {
		cached = make(map[string]models.PriceQuote, len(keys))
	}

	hits := len(cached)
	for i := 0; i < hits; i++ {
		c.metrics.RecordCacheLookup("hit")
	}
	for i := hits; i < len(keys); i++ {
		c.metrics.RecordCacheLookup("miss")
	}
	return cached
}

func (c *CachedMarketData) store(ctx context.Context, namespace string, quotes map[string]models.PriceQuote) {
	if len(quotes) == 0 {
		return
	}
	if err := c.cache.SetQuotes(ctx, namespace, quotes, c.ttl); err != nil {
		logging.FromContext(ctx).WithField("namespace", namespace).WithError(err).Warn("Price cache write failed")
	}
}
