package models

import (
	"time"

	"github.com/portfolio-risk/internal/types"
)

// RiskMetrics holds the proxy risk figures derived from 24h moves
type RiskMetrics struct {
	AnnualizedVolatilityPct float64 `json:"annualizedVolatilityPct"`
	DailyVolatilityPct      float64 `json:"dailyVolatilityPct"`
	VaR1dUSD                float64 `json:"var1dUsd"`
	VaR7dUSD                float64 `json:"var7dUsd"`
	SharpeRatio             float64 `json:"sharpeRatio"`
	MaxDrawdownPct          float64 `json:"maxDrawdownPct"`
}

// DiversificationMetrics describes how evenly value is spread across assets
type DiversificationMetrics struct {
	AssetCount           int     `json:"assetCount"`
	HerfindahlIndex      float64 `json:"herfindahlIndex"`
	EffectiveAssetCount  float64 `json:"effectiveAssetCount"`
	DiversificationRatio float64 `json:"diversificationRatio"`
}

// ConcentrationRisk reports the share held by the largest positions
type ConcentrationRisk struct {
	Top1Pct float64         `json:"top1Pct"`
	Top3Pct float64         `json:"top3Pct"`
	Top5Pct float64         `json:"top5Pct"`
	Level   types.RiskLevel `json:"level"`
}

// AssetAllocation breaks portfolio value down by risk level and category
type AssetAllocation struct {
	ByRiskLevel map[types.RiskLevel]float64 `json:"byRiskLevel"`
	ByCategory  map[string]float64          `json:"byCategory"`
}

// RiskRecommendation is one actionable suggestion
type RiskRecommendation struct {
	Kind            types.RecommendationKind `json:"kind"`
	Priority        types.Priority           `json:"priority"`
	Message         string                   `json:"message"`
	SuggestedAction string                   `json:"suggestedAction"`
}

// RiskReport is the full analysis of one portfolio snapshot
type RiskReport struct {
	WalletAddress    string                 `json:"walletAddress"`
	Chain            types.ChainID          `json:"chain"`
	TotalValue       float64                `json:"totalValue"`
	ConfidenceLevel  float64                `json:"confidenceLevel"`
	RiskMetrics      RiskMetrics            `json:"riskMetrics"`
	Diversification  DiversificationMetrics `json:"diversification"`
	Concentration    ConcentrationRisk      `json:"concentration"`
	Allocation       AssetAllocation        `json:"allocation"`
	Recommendations  []RiskRecommendation   `json:"recommendations"`
	OverallRiskScore int                    `json:"overallRiskScore"`
	GeneratedAt      time.Time              `json:"generatedAt"`
}

// RiskHistoryEntry is a stored summary of a past RiskReport
type RiskHistoryEntry struct {
	WalletAddress           string        `json:"walletAddress"`
	Chain                   types.ChainID `json:"chain"`
	TotalValue              float64       `json:"totalValue"`
	AnnualizedVolatilityPct float64       `json:"annualizedVolatilityPct"`
	VaR1dUSD                float64       `json:"var1dUsd"`
	SharpeRatio             float64       `json:"sharpeRatio"`
	HerfindahlIndex         float64       `json:"herfindahlIndex"`
	Top1Pct                 float64       `json:"top1Pct"`
	OverallRiskScore        int           `json:"overallRiskScore"`
	ConfidenceLevel         float64       `json:"confidenceLevel"`
	GeneratedAt             time.Time     `json:"generatedAt"`
}

// HistoryEntry summarizes the report for storage
func (r *RiskReport) HistoryEntry() RiskHistoryEntry {
	return RiskHistoryEntry{
		WalletAddress:           r.WalletAddress,
		Chain:                   r.Chain,
		TotalValue:              r.TotalValue,
		AnnualizedVolatilityPct: r.RiskMetrics.AnnualizedVolatilityPct,
		VaR1dUSD:                r.RiskMetrics.VaR1dUSD,
		SharpeRatio:             r.RiskMetrics.SharpeRatio,
		HerfindahlIndex:         r.Diversification.HerfindahlIndex,
		Top1Pct:                 r.Concentration.Top1Pct,
		OverallRiskScore:        r.OverallRiskScore,
		ConfidenceLevel:         r.ConfidenceLevel,
		GeneratedAt:             r.GeneratedAt,
	}
}
