package adapter

import (
	"context"
	"fmt"

	"github.com/portfolio-risk/internal/models"
	"github.com/portfolio-risk/internal/types"
)

// HoldingsResolver lists the unpriced holdings of a wallet
type HoldingsResolver interface {
	// ResolveHoldings returns the wallet's balances. Transport or auth
	// failures come back as provider errors.
	ResolveHoldings(ctx context.Context, wallet string, chain types.ChainID) ([]models.RawHolding, error)
}

// PriceResolver prices holdings. Holdings it cannot price are simply
// missing from the returned map, keyed by RawHolding.Key.
type PriceResolver interface {
	ResolvePrices(ctx context.Context, holdings []models.RawHolding, chain types.ChainID) (map[string]models.PriceQuote, error)
}

// SpotPriceSource returns the current USD price of a symbol
type SpotPriceSource interface {
	GetSpotPrice(ctx context.Context, symbol string) (*models.PriceQuote, error)
}

// MarketDataProvider is a price source usable by both the portfolio service
// and the alert monitor
type MarketDataProvider interface {
	PriceResolver
	SpotPriceSource
}

// Common error types for market data adapters
var (
	// ErrChainNotConfigured indicates no RPC endpoint exists for the chain
	ErrChainNotConfigured = fmt.Errorf("chain not configured")

	// ErrUnknownSymbol indicates the provider has no listing for the symbol
	ErrUnknownSymbol = fmt.Errorf("unknown symbol")

	// ErrProviderUnavailable indicates the data provider is unavailable
	ErrProviderUnavailable = fmt.Errorf("data provider unavailable")
)

// AdapterError wraps errors with additional context
type AdapterError struct {
	Chain   types.ChainID
	Op      string // Operation that failed (e.g., "ResolveHoldings", "GetSpotPrice")
	Err     error
	Details map[string]interface{}
}

func (e *AdapterError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("market data error [%s:%s]: %v (details: %+v)", e.Chain, e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("market data error [%s:%s]: %v", e.Chain, e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// NewAdapterError creates a new AdapterError
func NewAdapterError(chain types.ChainID, op string, err error, details map[string]interface{}) *AdapterError {
	return &AdapterError{
		Chain:   chain,
		Op:      op,
		Err:     err,
		Details: details,
	}
}
