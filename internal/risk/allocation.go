package risk

import (
	"strings"

	"github.com/portfolio-risk/internal/models"
	"github.com/portfolio-risk/internal/types"
)

// Category is one bucket of the asset taxonomy
type Category struct {
	Name                  string
	RiskLevel             types.RiskLevel
	ExpectedVolatilityPct float64
	symbols               map[string]struct{}
}

// Matches reports whether symbol belongs to the category
func (c Category) Matches(symbol string) bool {
	_, ok := c.symbols[strings.ToUpper(strings.TrimSpace(symbol))]
	return ok
}

func newCategory(name string, level types.RiskLevel, expectedVol float64, symbols ...string) Category {
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	return Category{Name: name, RiskLevel: level, ExpectedVolatilityPct: expectedVol, symbols: set}
}

// Category names
const (
	CategoryStablecoin  = "stablecoin"
	CategoryBlueChip    = "blue_chip"
	CategoryLargeCapAlt = "large_cap_alt"
	CategoryDeFi        = "defi"
	CategoryLongTail    = "long_tail"
)

// categories is matched in order; the first match wins
var categories = []Category{
	newCategory(CategoryStablecoin, types.RiskLow, 2,
		"USDT", "USDC", "DAI", "BUSD", "TUSD", "USDP", "FDUSD", "PYUSD", "USDE", "FRAX", "LUSD", "GUSD", "USDD"),
	newCategory(CategoryBlueChip, types.RiskMedium, 60,
		"BTC", "ETH", "WBTC", "WETH", "STETH", "WSTETH", "CBBTC"),
	newCategory(CategoryLargeCapAlt, types.RiskMedium, 80,
		"BNB", "WBNB", "SOL", "WSOL", "XRP", "ADA", "AVAX", "DOT", "MATIC", "POL", "WMATIC",
		"TRX", "TON", "LINK", "LTC", "ATOM", "NEAR"),
	newCategory(CategoryDeFi, types.RiskHigh, 100,
		"UNI", "AAVE", "MKR", "CRV", "COMP", "SNX", "LDO", "SUSHI", "BAL", "YFI", "1INCH",
		"CAKE", "GMX", "DYDX", "PENDLE", "JUP", "RAY"),
}

// longTail catches every symbol no other category claims
var longTail = newCategory(CategoryLongTail, types.RiskHigh, 150)

// Classify returns the category of a symbol
func Classify(symbol string) Category {
	for _, c := range categories {
		if c.Matches(symbol) {
			return c
		}
	}
	return longTail
}

// ComputeAllocation returns value percentages by risk level and by category.
// All three risk levels are always present; categories only when non-zero.
func ComputeAllocation(p *models.Portfolio) models.AssetAllocation {
	allocation := models.AssetAllocation{
		ByRiskLevel: map[types.RiskLevel]float64{
			types.RiskLow:    0,
			types.RiskMedium: 0,
			types.RiskHigh:   0,
		},
		ByCategory: map[string]float64{},
	}
	if p.IsEmpty() {
		return allocation
	}

	byLevel := make(map[types.RiskLevel]float64, 3)
	byCategory := make(map[string]float64)
	for _, h := range p.Holdings {
		c := Classify(h.Symbol)
		byLevel[c.RiskLevel] += h.Value
		byCategory[c.Name] += h.Value
	}

	for level := range allocation.ByRiskLevel {
		allocation.ByRiskLevel[level] = roundPct(byLevel[level] / p.TotalValue * 100)
	}
	for name, value := range byCategory {
		if value > 0 {
			allocation.ByCategory[name] = roundPct(value / p.TotalValue * 100)
		}
	}

	return allocation
}
