package risk

const (
	minScore = 1
	maxScore = 10
)

type tier struct {
	above  float64
	points int
}

// Tiers are checked from the top; the first threshold exceeded scores
var (
	volatilityTiers    = []tier{{150, 3}, {100, 2}, {50, 1}}
	concentrationTiers = []tier{{70, 3}, {50, 2}, {30, 1}}
	varShareTiers      = []tier{{10, 2}, {5, 1}}
)

func tierPoints(tiers []tier, v float64) int {
	for _, t := range tiers {
		if v > t.above {
			return t.points
		}
	}
	return 0
}

func diversificationPoints(ratio float64) int {
	switch {
	case ratio < 0.3:
		return 2
	case ratio < 0.5:
		return 1
	default:
		return 0
	}
}

// Score composes the 1-10 overall risk score. The VaR tier uses VaR as a
// share of the actual portfolio value.
func Score(a Assessment) int {
	if a.TotalValue <= 0 {
		return minScore
	}

	score := minScore
	score += tierPoints(volatilityTiers, a.Metrics.AnnualizedVolatilityPct)
	score += tierPoints(concentrationTiers, a.Concentration.Top1Pct)
	score += diversificationPoints(a.Diversification.DiversificationRatio)
	score += tierPoints(varShareTiers, a.varSharePct())

	if score > maxScore {
		score = maxScore
	}
	if score < minScore {
		score = minScore
	}
	return score
}
