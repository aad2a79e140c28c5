package risk

import (
	"math"

	"github.com/shopspring/decimal"
)

// Precision used for report figures
const (
	pctPlaces   int32 = 2
	usdPlaces   int32 = 2
	ratioPlaces int32 = 3
)

// roundTo rounds half away from zero using decimal arithmetic so that
// values like 1.005 do not drift to 1.00.
func roundTo(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

func roundPct(v float64) float64   { return roundTo(v, pctPlaces) }
func roundUSD(v float64) float64   { return roundTo(v, usdPlaces) }
func roundRatio(v float64) float64 { return roundTo(v, ratioPlaces) }
