package risk

import (
	"fmt"

	"github.com/portfolio-risk/internal/models"
	"github.com/portfolio-risk/internal/types"
)

// Recommendation thresholds
const (
	highVolatilityPct   = 100
	minDiversifiedCount = 5
	hedgeVaRSharePct    = 10
)

// Assessment bundles the metrics the recommendation and score rules read
type Assessment struct {
	TotalValue      float64
	Metrics         models.RiskMetrics
	Diversification models.DiversificationMetrics
	Concentration   models.ConcentrationRisk
}

// varSharePct is the 1-day VaR as a percent of portfolio value
func (a Assessment) varSharePct() float64 {
	if a.TotalValue <= 0 {
		return 0
	}
	return a.Metrics.VaR1dUSD / a.TotalValue * 100
}

type recommendationRule struct {
	applies func(a Assessment) bool
	build   func(a Assessment) models.RiskRecommendation
}

// recommendationRules are evaluated independently and in order
var recommendationRules = []recommendationRule{
	{
		applies: func(a Assessment) bool { return a.Concentration.Level == types.RiskHigh },
		build: func(a Assessment) models.RiskRecommendation {
			return models.RiskRecommendation{
				Kind:            types.RecommendRebalance,
				Priority:        types.RiskHigh,
				Message:         fmt.Sprintf("Largest position is %.2f%% of the portfolio", a.Concentration.Top1Pct),
				SuggestedAction: "Trim the largest holding so no single asset exceeds 25-30% of total value",
			}
		},
	},
	{
		applies: func(a Assessment) bool { return a.Metrics.AnnualizedVolatilityPct > highVolatilityPct },
		build: func(a Assessment) models.RiskRecommendation {
			return models.RiskRecommendation{
				Kind:            types.RecommendReduceRisk,
				Priority:        types.RiskHigh,
				Message:         fmt.Sprintf("Annualized volatility is %.2f%%", a.Metrics.AnnualizedVolatilityPct),
				SuggestedAction: "Shift part of the portfolio into stablecoins or blue-chip assets",
			}
		},
	},
	{
		applies: func(a Assessment) bool { return a.Diversification.AssetCount < minDiversifiedCount },
		build: func(a Assessment) models.RiskRecommendation {
			return models.RiskRecommendation{
				Kind:            types.RecommendDiversify,
				Priority:        types.RiskMedium,
				Message:         fmt.Sprintf("Portfolio holds only %d priced assets", a.Diversification.AssetCount),
				SuggestedAction: fmt.Sprintf("Spread value across at least %d uncorrelated assets", minDiversifiedCount),
			}
		},
	},
	{
		applies: func(a Assessment) bool { return a.varSharePct() > hedgeVaRSharePct },
		build: func(a Assessment) models.RiskRecommendation {
			return models.RiskRecommendation{
				Kind:            types.RecommendHedge,
				Priority:        types.RiskHigh,
				Message:         fmt.Sprintf("1-day VaR of $%.2f is %.2f%% of portfolio value", a.Metrics.VaR1dUSD, a.varSharePct()),
				SuggestedAction: "Hedge downside with stablecoin reserves or protective positions",
			}
		},
	},
}

var healthyRecommendation = models.RiskRecommendation{
	Kind:            types.RecommendDiversify,
	Priority:        types.RiskLow,
	Message:         "Portfolio risk looks healthy",
	SuggestedAction: "Keep monitoring and rebalance periodically",
}

var emptyPortfolioRecommendation = models.RiskRecommendation{
	Kind:            types.RecommendDiversify,
	Priority:        types.RiskLow,
	Message:         "No priced holdings found for this wallet",
	SuggestedAction: "Fund the wallet or check that its tokens are supported",
}

// Recommend runs every rule in order. The result is never empty.
func Recommend(a Assessment) []models.RiskRecommendation {
	var recs []models.RiskRecommendation
	for _, rule := range recommendationRules {
		if rule.applies(a) {
			recs = append(recs, rule.build(a))
		}
	}
	if len(recs) == 0 {
		recs = append(recs, healthyRecommendation)
	}
	return recs
}
