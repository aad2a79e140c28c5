package risk

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/portfolio-risk/internal/models"
)

const (
	// DefaultConfidence is used when a caller does not pick a VaR confidence
	DefaultConfidence = 0.95
	// RiskFreeAnnualPct is the annual risk-free rate used by the Sharpe ratio
	RiskFreeAnnualPct = 2.0

	daysPerYear    = 365
	varHorizonDays = 7
	defaultZScore  = 1.645
)

// zScores is the one-sided normal quantile table. Levels outside it fall
// back to defaultZScore rather than being interpolated.
var zScores = []struct {
	confidence float64
	z          float64
}{
	{0.90, 1.282},
	{0.95, 1.645},
	{0.99, 2.326},
}

// ZScore returns the quantile for a confidence level
func ZScore(confidence float64) float64 {
	for _, entry := range zScores {
		if math.Abs(entry.confidence-confidence) < 1e-9 {
			return entry.z
		}
	}
	return defaultZScore
}

// ComputeRiskMetrics derives proxy risk figures from the holdings' 24h
// moves. Volatility is the value-weighted mean absolute daily move scaled
// by sqrt(365), not a standard deviation of a return series.
func ComputeRiskMetrics(p *models.Portfolio, confidence float64) models.RiskMetrics {
	if p.IsEmpty() {
		return models.RiskMetrics{}
	}

	moves := make([]float64, len(p.Holdings))
	values := make([]float64, len(p.Holdings))
	for i, h := range p.Holdings {
		moves[i] = math.Abs(h.Change24hPercent)
		values[i] = h.Value
	}

	dailyVolPct := stat.Mean(moves, values)
	annualVolPct := dailyVolPct * math.Sqrt(daysPerYear)

	var1d := p.TotalValue * (dailyVolPct / 100) * ZScore(confidence)
	var7d := var1d * math.Sqrt(varHorizonDays)

	return models.RiskMetrics{
		AnnualizedVolatilityPct: roundPct(annualVolPct),
		DailyVolatilityPct:      roundPct(dailyVolPct),
		VaR1dUSD:                roundUSD(var1d),
		VaR7dUSD:                roundUSD(var7d),
		SharpeRatio:             roundRatio(sharpeRatio(p.TotalChange24hPercent, annualVolPct)),
		MaxDrawdownPct:          roundPct(math.Min(2*annualVolPct, 100)),
	}
}

// sharpeRatio is zero for non-positive returns or a flat portfolio
func sharpeRatio(returnPct, annualVolPct float64) float64 {
	if returnPct <= 0 || annualVolPct <= 0 {
		return 0
	}
	dailyRiskFreePct := RiskFreeAnnualPct / daysPerYear
	return (returnPct - dailyRiskFreePct) / (annualVolPct / 100)
}
