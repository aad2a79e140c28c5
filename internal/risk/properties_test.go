package risk

import (
	"fmt"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/portfolio-risk/internal/models"
	"github.com/portfolio-risk/internal/types"
)

// genValues produces between 1 and 30 position values
func genValues() gopter.Gen {
	return gen.IntRange(1, 30).FlatMap(func(n interface{}) gopter.Gen {
		return gen.SliceOfN(n.(int), gen.Float64Range(1, 1e6))
	}, reflect.TypeOf([]float64{}))
}

func portfolioFromValues(values []float64) *models.Portfolio {
	raw := make([]models.RawHolding, len(values))
	quotes := make(map[string]models.PriceQuote, len(values))
	for i, v := range values {
		raw[i] = models.RawHolding{Symbol: fmt.Sprintf("T%d", i), Amount: 1}
		// spread 24h moves over [-30, 30)
		quotes[raw[i].Key()] = models.PriceQuote{PriceUSD: v, Change24hPercent: math.Mod(v, 60) - 30}
	}
	return Valuate(wallet, types.ChainEthereum, raw, quotes)
}

func TestPortfolioProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("holding values sum to total", prop.ForAll(
		func(values []float64) bool {
			p := portfolioFromValues(values)
			var sum float64
			for _, h := range p.Holdings {
				sum += h.Value
			}
			return math.Abs(sum-p.TotalValue) <= 0.01
		},
		genValues(),
	))

	properties.Property("herfindahl index within [1/n, 1]", prop.ForAll(
		func(values []float64) bool {
			p := portfolioFromValues(values)
			d := ComputeDiversification(p)
			n := float64(len(p.Holdings))
			return d.HerfindahlIndex >= 1/n-0.001 && d.HerfindahlIndex <= 1.001 &&
				d.DiversificationRatio > 0 && d.DiversificationRatio <= 1
		},
		genValues(),
	))

	properties.Property("equal values give herfindahl 1/n", prop.ForAll(
		func(n int, value float64) bool {
			values := make([]float64, n)
			for i := range values {
				values[i] = value
			}
			d := ComputeDiversification(portfolioFromValues(values))
			return math.Abs(d.HerfindahlIndex-1/float64(n)) <= 0.001
		},
		gen.IntRange(1, 25),
		gen.Float64Range(1, 1e5),
	))

	properties.Property("top concentrations are ordered and bounded", prop.ForAll(
		func(values []float64) bool {
			c := ComputeConcentration(portfolioFromValues(values))
			return c.Top1Pct <= c.Top3Pct && c.Top3Pct <= c.Top5Pct && c.Top5Pct <= 100
		},
		genValues(),
	))

	properties.Property("risk score stays within [1, 10]", prop.ForAll(
		func(values []float64, confidence float64) bool {
			report := Analyze(portfolioFromValues(values), confidence, time.Now())
			return report.OverallRiskScore >= 1 && report.OverallRiskScore <= 10 &&
				len(report.Recommendations) > 0
		},
		genValues(),
		gen.OneConstOf(0.90, 0.95, 0.99, 0.8),
	))

	properties.TestingRun(t)
}
