// Package risk implements portfolio valuation and the risk analytics derived
// from it. Everything here is a pure function of its inputs.
package risk

import (
	"sort"

	"github.com/portfolio-risk/internal/models"
	"github.com/portfolio-risk/internal/types"
)

// Valuate prices raw holdings with the given quotes, keyed by holding key.
// Holdings without a usable quote are dropped. When nothing can be priced
// the returned portfolio is empty with a zero total.
func Valuate(wallet string, chain types.ChainID, raw []models.RawHolding, quotes map[string]models.PriceQuote) *models.Portfolio {
	portfolio := &models.Portfolio{
		WalletAddress: wallet,
		Chain:         chain,
		Holdings:      []models.Holding{},
	}

	for _, rh := range raw {
		quote, ok := quotes[rh.Key()]
		if !ok || quote.PriceUSD <= 0 || rh.Amount <= 0 {
			continue
		}

		// Dust that rounds to $0.00 is still a priced position
		raw := rh.Amount * quote.PriceUSD
		if raw <= 0 {
			continue
		}
		value := roundUSD(raw)

		portfolio.Holdings = append(portfolio.Holdings, models.Holding{
			Symbol:           rh.Symbol,
			Name:             rh.Name,
			Amount:           rh.Amount,
			UnitPrice:        quote.PriceUSD,
			Value:            value,
			Change24hValue:   roundUSD(changeValue(value, quote.Change24hPercent)),
			Change24hPercent: roundPct(quote.Change24hPercent),
			Address:          rh.Address,
		})
	}

	sort.SliceStable(portfolio.Holdings, func(i, j int) bool {
		return portfolio.Holdings[i].Value > portfolio.Holdings[j].Value
	})

	var total, totalChange float64
	for _, h := range portfolio.Holdings {
		total += h.Value
		totalChange += h.Change24hValue
	}
	portfolio.TotalValue = roundUSD(total)
	portfolio.TotalChange24hValue = roundUSD(totalChange)

	if previous := total - totalChange; previous > 0 {
		portfolio.TotalChange24hPercent = roundPct(totalChange / previous * 100)
	}

	return portfolio
}

// changeValue is the USD move implied by a percent change ending at value
func changeValue(value, pct float64) float64 {
	base := 1 + pct/100
	if base <= 0 {
		// a -100% move leaves no defined starting value
		return 0
	}
	return value - value/base
}

// weights returns each holding's share of the total, in holding order
func weights(p *models.Portfolio) []float64 {
	w := make([]float64, len(p.Holdings))
	if p.TotalValue <= 0 {
		return w
	}
	for i, h := range p.Holdings {
		w[i] = h.Value / p.TotalValue
	}
	return w
}
