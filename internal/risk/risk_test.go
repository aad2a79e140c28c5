package risk

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portfolio-risk/internal/models"
	"github.com/portfolio-risk/internal/types"
)

const wallet = "0x00000000219ab540356cBB839Cbe05303d7705Fa"

type position struct {
	symbol string
	amount float64
	price  float64
	change float64
}

func buildPortfolio(positions ...position) *models.Portfolio {
	raw := make([]models.RawHolding, 0, len(positions))
	quotes := make(map[string]models.PriceQuote, len(positions))
	for _, p := range positions {
		rh := models.RawHolding{Symbol: p.symbol, Name: p.symbol, Amount: p.amount}
		raw = append(raw, rh)
		quotes[rh.Key()] = models.PriceQuote{Symbol: p.symbol, PriceUSD: p.price, Change24hPercent: p.change}
	}
	return Valuate(wallet, types.ChainEthereum, raw, quotes)
}

func TestValuate_SingleHoldingScenario(t *testing.T) {
	p := buildPortfolio(position{"ETH", 2.5, 2000, 4})

	require.Len(t, p.Holdings, 1)
	assert.Equal(t, 5000.0, p.Holdings[0].Value)
	assert.Equal(t, 5000.0, p.TotalValue)
	assert.InDelta(t, 192.31, p.TotalChange24hValue, 0.001)
	assert.InDelta(t, 4.0, p.TotalChange24hPercent, 0.001)

	m := ComputeRiskMetrics(p, DefaultConfidence)
	assert.InDelta(t, 4*math.Sqrt(365), m.AnnualizedVolatilityPct, 0.005)
	assert.InDelta(t, 5000*0.04*1.645, m.VaR1dUSD, 0.005)
	assert.InDelta(t, 5000*0.04*1.645*math.Sqrt(7), m.VaR7dUSD, 0.01)
	assert.Equal(t, 100.0, m.MaxDrawdownPct)
	assert.InDelta(t, (4-2.0/365)/(4*math.Sqrt(365)/100), m.SharpeRatio, 0.001)
}

func TestValuate_DropsUnpricedAndSortsByValue(t *testing.T) {
	raw := []models.RawHolding{
		{Symbol: "USDC", Amount: 100, Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"},
		{Symbol: "ETH", Amount: 1},
		{Symbol: "SCAM", Amount: 1e9},
		{Symbol: "DUST", Amount: 0},
	}
	quotes := map[string]models.PriceQuote{
		"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48": {PriceUSD: 1},
		"eth":  {PriceUSD: 2500, Change24hPercent: -2},
		"dust": {PriceUSD: 5},
	}

	p := Valuate(wallet, types.ChainEthereum, raw, quotes)

	require.Len(t, p.Holdings, 2)
	assert.Equal(t, "ETH", p.Holdings[0].Symbol)
	assert.Equal(t, "USDC", p.Holdings[1].Symbol)
	assert.Equal(t, 2600.0, p.TotalValue)
	assert.Less(t, p.TotalChange24hValue, 0.0)
}

func TestValuate_KeepsSubCentHoldings(t *testing.T) {
	p := buildPortfolio(position{"ETH", 1, 2000, 1}, position{"USDC", 0.004, 1, 0})

	require.Len(t, p.Holdings, 2)
	assert.Equal(t, "USDC", p.Holdings[1].Symbol)
	assert.Equal(t, 0.0, p.Holdings[1].Value)
	assert.Equal(t, 0.004, p.Holdings[1].Amount)
	assert.Equal(t, 2000.0, p.TotalValue)
	assert.Equal(t, 2, ComputeDiversification(p).AssetCount)
}

func TestValuate_NothingPriced(t *testing.T) {
	p := Valuate(wallet, types.ChainSolana, []models.RawHolding{{Symbol: "BONK", Amount: 10}}, nil)

	assert.True(t, p.IsEmpty())
	assert.Equal(t, 0.0, p.TotalValue)
	assert.NotNil(t, p.Holdings)
	assert.Empty(t, p.Holdings)
}

func TestZScore(t *testing.T) {
	assert.Equal(t, 1.282, ZScore(0.90))
	assert.Equal(t, 1.645, ZScore(0.95))
	assert.Equal(t, 2.326, ZScore(0.99))
	assert.Equal(t, 1.645, ZScore(0.975))
}

func TestComputeRiskMetrics_SharpeZeroOnLoss(t *testing.T) {
	p := buildPortfolio(position{"ETH", 1, 2000, -5}, position{"BTC", 0.1, 60000, -3})
	m := ComputeRiskMetrics(p, 0.99)

	assert.Equal(t, 0.0, m.SharpeRatio)
	assert.Greater(t, m.VaR1dUSD, 0.0)
}

func TestComputeRiskMetrics_FlatPortfolio(t *testing.T) {
	p := buildPortfolio(position{"USDC", 1000, 1, 0})
	m := ComputeRiskMetrics(p, DefaultConfidence)

	assert.Equal(t, 0.0, m.AnnualizedVolatilityPct)
	assert.Equal(t, 0.0, m.VaR1dUSD)
	assert.Equal(t, 0.0, m.SharpeRatio)
	assert.Equal(t, 0.0, m.MaxDrawdownPct)
}

func TestComputeDiversification(t *testing.T) {
	single := ComputeDiversification(buildPortfolio(position{"ETH", 1, 100, 1}))
	assert.Equal(t, 1, single.AssetCount)
	assert.Equal(t, 1.0, single.HerfindahlIndex)
	assert.Equal(t, 1.0, single.EffectiveAssetCount)
	assert.Equal(t, 1.0, single.DiversificationRatio)

	equal := ComputeDiversification(buildPortfolio(
		position{"A", 1, 100, 1}, position{"B", 1, 100, 1},
		position{"C", 1, 100, 1}, position{"D", 1, 100, 1},
	))
	assert.Equal(t, 0.25, equal.HerfindahlIndex)
	assert.Equal(t, 4.0, equal.EffectiveAssetCount)
	assert.Equal(t, 1.0, equal.DiversificationRatio)

	skewed := ComputeDiversification(buildPortfolio(position{"A", 1, 900, 1}, position{"B", 1, 100, 1}))
	assert.InDelta(t, 0.82, skewed.HerfindahlIndex, 1e-9)
	assert.Less(t, skewed.DiversificationRatio, 1.0)
}

func TestComputeDiversification_ManyEqualHoldings(t *testing.T) {
	positions := make([]position, 2500)
	for i := range positions {
		positions[i] = position{fmt.Sprintf("T%d", i), 1, 10, 0}
	}

	d := ComputeDiversification(buildPortfolio(positions...))

	assert.Equal(t, 2500, d.AssetCount)
	assert.Greater(t, d.HerfindahlIndex, 0.0)
	assert.InDelta(t, 1.0/2500, d.HerfindahlIndex, 1e-9)
	assert.InDelta(t, 2500.0, d.EffectiveAssetCount, 0.01)
	assert.Equal(t, 1.0, d.DiversificationRatio)
}

func TestComputeConcentration(t *testing.T) {
	tests := []struct {
		name      string
		positions []position
		wantTop1  float64
		wantTop3  float64
		wantTop5  float64
		wantLevel types.RiskLevel
	}{
		{
			name:      "single asset",
			positions: []position{{"ETH", 1, 100, 0}},
			wantTop1:  100, wantTop3: 100, wantTop5: 100,
			wantLevel: types.RiskHigh,
		},
		{
			name:      "medium",
			positions: []position{{"A", 1, 40, 0}, {"B", 1, 30, 0}, {"C", 1, 20, 0}, {"D", 1, 10, 0}},
			wantTop1:  40, wantTop3: 90, wantTop5: 100,
			wantLevel: types.RiskMedium,
		},
		{
			name: "low",
			positions: []position{
				{"A", 1, 20, 0}, {"B", 1, 20, 0}, {"C", 1, 15, 0}, {"D", 1, 15, 0},
				{"E", 1, 10, 0}, {"F", 1, 10, 0}, {"G", 1, 10, 0},
			},
			wantTop1: 20, wantTop3: 55, wantTop5: 80,
			wantLevel: types.RiskLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ComputeConcentration(buildPortfolio(tt.positions...))
			assert.Equal(t, tt.wantTop1, c.Top1Pct)
			assert.Equal(t, tt.wantTop3, c.Top3Pct)
			assert.Equal(t, tt.wantTop5, c.Top5Pct)
			assert.Equal(t, tt.wantLevel, c.Level)
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		symbol string
		want   string
		level  types.RiskLevel
	}{
		{"usdc", CategoryStablecoin, types.RiskLow},
		{"WETH", CategoryBlueChip, types.RiskMedium},
		{"SOL", CategoryLargeCapAlt, types.RiskMedium},
		{"aave", CategoryDeFi, types.RiskHigh},
		{"PEPE", CategoryLongTail, types.RiskHigh},
		{"", CategoryLongTail, types.RiskHigh},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			c := Classify(tt.symbol)
			assert.Equal(t, tt.want, c.Name)
			assert.Equal(t, tt.level, c.RiskLevel)
		})
	}
}

func TestComputeAllocation(t *testing.T) {
	p := buildPortfolio(position{"USDC", 5000, 1, 0}, position{"ETH", 1, 3000, 2}, position{"PEPE", 1, 2000, 30})
	a := ComputeAllocation(p)

	assert.Equal(t, 50.0, a.ByRiskLevel[types.RiskLow])
	assert.Equal(t, 30.0, a.ByRiskLevel[types.RiskMedium])
	assert.Equal(t, 20.0, a.ByRiskLevel[types.RiskHigh])
	assert.Equal(t, map[string]float64{
		CategoryStablecoin: 50,
		CategoryBlueChip:   30,
		CategoryLongTail:   20,
	}, a.ByCategory)
}

func TestRecommend_OrderAndIndependence(t *testing.T) {
	a := Assessment{
		TotalValue:      1000,
		Metrics:         models.RiskMetrics{AnnualizedVolatilityPct: 180, VaR1dUSD: 150},
		Diversification: models.DiversificationMetrics{AssetCount: 2, DiversificationRatio: 0.6},
		Concentration:   models.ConcentrationRisk{Top1Pct: 80, Level: types.RiskHigh},
	}

	recs := Recommend(a)
	require.Len(t, recs, 4)
	assert.Equal(t, types.RecommendRebalance, recs[0].Kind)
	assert.Equal(t, types.RecommendReduceRisk, recs[1].Kind)
	assert.Equal(t, types.RecommendDiversify, recs[2].Kind)
	assert.Equal(t, types.RiskMedium, recs[2].Priority)
	assert.Equal(t, types.RecommendHedge, recs[3].Kind)
}

func TestRecommend_Healthy(t *testing.T) {
	a := Assessment{
		TotalValue:      1000,
		Metrics:         models.RiskMetrics{AnnualizedVolatilityPct: 40, VaR1dUSD: 20},
		Diversification: models.DiversificationMetrics{AssetCount: 8, DiversificationRatio: 0.9},
		Concentration:   models.ConcentrationRisk{Top1Pct: 20, Level: types.RiskLow},
	}

	recs := Recommend(a)
	require.Len(t, recs, 1)
	assert.Equal(t, types.RecommendDiversify, recs[0].Kind)
	assert.Equal(t, types.RiskLow, recs[0].Priority)
}

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		a    Assessment
		want int
	}{
		{
			name: "calm portfolio",
			a: Assessment{
				TotalValue:      10000,
				Metrics:         models.RiskMetrics{AnnualizedVolatilityPct: 20, VaR1dUSD: 100},
				Diversification: models.DiversificationMetrics{DiversificationRatio: 0.9},
				Concentration:   models.ConcentrationRisk{Top1Pct: 20},
			},
			want: 1,
		},
		{
			name: "every tier maxed clamps to ten",
			a: Assessment{
				TotalValue:      10000,
				Metrics:         models.RiskMetrics{AnnualizedVolatilityPct: 200, VaR1dUSD: 5000},
				Diversification: models.DiversificationMetrics{DiversificationRatio: 0.1},
				Concentration:   models.ConcentrationRisk{Top1Pct: 90},
			},
			want: 10,
		},
		{
			name: "var tier scales with actual value",
			a: Assessment{
				TotalValue:      1_000_000,
				Metrics:         models.RiskMetrics{AnnualizedVolatilityPct: 60, VaR1dUSD: 60_000},
				Diversification: models.DiversificationMetrics{DiversificationRatio: 0.4},
				Concentration:   models.ConcentrationRisk{Top1Pct: 40},
			},
			want: 1 + 1 + 1 + 1 + 1,
		},
		{
			name: "empty",
			a:    Assessment{},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.a))
		})
	}
}

func TestAnalyze_SingleHolding(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	report := Analyze(buildPortfolio(position{"ETH", 2.5, 2000, 4}), DefaultConfidence, now)

	assert.Equal(t, 5000.0, report.TotalValue)
	assert.Equal(t, now, report.GeneratedAt)
	assert.Equal(t, 6, report.OverallRiskScore)
	require.Len(t, report.Recommendations, 2)
	assert.Equal(t, types.RecommendRebalance, report.Recommendations[0].Kind)
	assert.Equal(t, types.RecommendDiversify, report.Recommendations[1].Kind)
	assert.Equal(t, 100.0, report.Allocation.ByCategory[CategoryBlueChip])
}

func TestAnalyze_EmptyPortfolio(t *testing.T) {
	p := Valuate(wallet, types.ChainBSC, nil, nil)
	report := Analyze(p, DefaultConfidence, time.Now())

	assert.Equal(t, 0.0, report.TotalValue)
	assert.Equal(t, 1, report.OverallRiskScore)
	require.Len(t, report.Recommendations, 1)
	assert.Equal(t, types.RiskLow, report.Recommendations[0].Priority)
	assert.Len(t, report.Allocation.ByRiskLevel, 3)
	assert.Empty(t, report.Allocation.ByCategory)
}
