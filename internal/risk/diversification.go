package risk

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/portfolio-risk/internal/models"
	"github.com/portfolio-risk/internal/types"
)

// Concentration level thresholds on the largest position, in percent
const (
	highConcentrationPct   = 50
	mediumConcentrationPct = 25
)

// ComputeDiversification returns the Herfindahl index of value weights and
// the measures derived from it.
func ComputeDiversification(p *models.Portfolio) models.DiversificationMetrics {
	n := len(p.Holdings)
	if p.IsEmpty() {
		return models.DiversificationMetrics{}
	}

	w := weights(p)
	hhi := floats.Dot(w, w)
	effective := 1 / hhi

	// Rounding must not take the index under its 1/n floor
	h := roundRatio(hhi)
	if floor := 1 / float64(n); h < floor {
		h = floor
	}

	return models.DiversificationMetrics{
		AssetCount:           n,
		HerfindahlIndex:      h,
		EffectiveAssetCount:  roundRatio(effective),
		DiversificationRatio: roundRatio(math.Min(effective/float64(n), 1)),
	}
}

// ComputeConcentration returns the cumulative share of the largest 1, 3 and
// 5 positions.
func ComputeConcentration(p *models.Portfolio) models.ConcentrationRisk {
	if p.IsEmpty() {
		return models.ConcentrationRisk{Level: types.RiskLow}
	}

	values := make([]float64, len(p.Holdings))
	for i, h := range p.Holdings {
		values[i] = h.Value
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(values)))

	total := floats.Sum(values)
	topShare := func(k int) float64 {
		if k > len(values) {
			k = len(values)
		}
		return roundPct(math.Min(floats.Sum(values[:k])/total*100, 100))
	}

	top1 := topShare(1)
	c := models.ConcentrationRisk{
		Top1Pct: top1,
		Top3Pct: topShare(3),
		Top5Pct: topShare(5),
		Level:   types.RiskLow,
	}

	switch {
	case top1 > highConcentrationPct:
		c.Level = types.RiskHigh
	case top1 > mediumConcentrationPct:
		c.Level = types.RiskMedium
	}

	return c
}
