package models

import (
	"strings"

	"github.com/portfolio-risk/internal/types"
)

// Holding is one priced position inside a wallet snapshot
type Holding struct {
	Symbol           string  `json:"symbol"`
	Name             string  `json:"name"`
	Amount           float64 `json:"amount"`
	UnitPrice        float64 `json:"unitPrice"`
	Value            float64 `json:"value"`
	Change24hValue   float64 `json:"change24hValue"`
	Change24hPercent float64 `json:"change24hPercent"`
	Address          string  `json:"address,omitempty"`
}

// Key identifies the holding's asset: the token address when known,
// otherwise the lowercased symbol.
func (h Holding) Key() string {
	if h.Address != "" {
		return strings.ToLower(h.Address)
	}
	return strings.ToLower(h.Symbol)
}

// Portfolio is a valued snapshot of a wallet on one chain. Holdings are
// ordered by value, largest first.
type Portfolio struct {
	WalletAddress         string        `json:"walletAddress"`
	Chain                 types.ChainID `json:"chain"`
	TotalValue            float64       `json:"totalValue"`
	TotalChange24hValue   float64       `json:"totalChange24hValue"`
	TotalChange24hPercent float64       `json:"totalChange24hPercent"`
	Holdings              []Holding     `json:"holdings"`
}

// IsEmpty reports the no-priced-holdings case
func (p *Portfolio) IsEmpty() bool {
	return p == nil || len(p.Holdings) == 0 || p.TotalValue <= 0
}

// RawHolding is what a holdings resolver reports before pricing
type RawHolding struct {
	Symbol  string  `json:"symbol"`
	Name    string  `json:"name"`
	Amount  float64 `json:"amount"`
	Address string  `json:"address,omitempty"`
}

// Key mirrors Holding.Key so prices can be matched back to raw holdings
func (h RawHolding) Key() string {
	if h.Address != "" {
		return strings.ToLower(h.Address)
	}
	return strings.ToLower(h.Symbol)
}

// PriceQuote is a unit price with its 24h percent move
type PriceQuote struct {
	Symbol           string  `json:"symbol" msgpack:"s"`
	PriceUSD         float64 `json:"priceUsd" msgpack:"p"`
	Change24hPercent float64 `json:"change24hPercent" msgpack:"c"`
}
