package risk

import (
	"time"

	"github.com/portfolio-risk/internal/models"
)

// Analyze builds the full risk report for a valued portfolio. An empty
// portfolio yields a zero report with score 1 and a single low-priority
// recommendation.
func Analyze(p *models.Portfolio, confidence float64, generatedAt time.Time) *models.RiskReport {
	report := &models.RiskReport{
		WalletAddress:   p.WalletAddress,
		Chain:           p.Chain,
		TotalValue:      p.TotalValue,
		ConfidenceLevel: confidence,
		Allocation:      ComputeAllocation(p),
		GeneratedAt:     generatedAt.UTC(),
	}

	if p.IsEmpty() {
		report.TotalValue = 0
		report.Concentration = ComputeConcentration(p)
		report.Recommendations = []models.RiskRecommendation{emptyPortfolioRecommendation}
		report.OverallRiskScore = minScore
		return report
	}

	assessment := Assessment{
		TotalValue:      p.TotalValue,
		Metrics:         ComputeRiskMetrics(p, confidence),
		Diversification: ComputeDiversification(p),
		Concentration:   ComputeConcentration(p),
	}

	report.RiskMetrics = assessment.Metrics
	report.Diversification = assessment.Diversification
	report.Concentration = assessment.Concentration
	report.Recommendations = Recommend(assessment)
	report.OverallRiskScore = Score(assessment)

	return report
}
