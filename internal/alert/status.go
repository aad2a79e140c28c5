package alert

import (
	"github.com/shopspring/decimal"

	apperrors "github.com/portfolio-risk/internal/errors"
	"github.com/portfolio-risk/internal/models"
	"github.com/portfolio-risk/internal/types"
)

// RecentTriggerLimit caps the trigger records shown in the overview
const RecentTriggerLimit = 10

// Status reports on one alert, or gives the overview when id is empty
func (m *Monitor) Status(id string) (*models.AlertStatusReport, error) {
	if id != "" {
		a, ok := m.registry.Get(id)
		if !ok {
			return nil, apperrors.NewNotFoundError("alert", id)
		}
		return &models.AlertStatusReport{Detail: detailOf(a)}, nil
	}

	total, active, triggered := m.registry.Counts()
	lastTick, ticks := m.TickStats()

	report := &models.AlertStatusReport{
		TotalAlerts:     total,
		ActiveAlerts:    active,
		TriggeredAlerts: triggered,
		MonitorRunning:  m.Running(),
		TickCount:       ticks,
		RecentTriggers:  m.registry.RecentRecords(RecentTriggerLimit),
	}
	if !lastTick.IsZero() {
		report.LastTickAt = &lastTick
	}
	return report, nil
}

// detailOf builds the per-alert view. Distances are percentages of the
// current price: positive while the threshold has not been reached.
func detailOf(a *models.PriceAlert) *models.AlertDetail {
	d := &models.AlertDetail{
		Alert:  a.Summary(),
		Status: statusText(a),
	}
	if a.CurrentPrice == nil || *a.CurrentPrice <= 0 {
		return d
	}

	price := decimal.NewFromFloat(*a.CurrentPrice)
	if a.LowThreshold != nil {
		v := price.Sub(decimal.NewFromFloat(*a.LowThreshold)).Div(price).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
		d.DistanceToLowPercent = &v
	}
	if a.HighThreshold != nil {
		v := decimal.NewFromFloat(*a.HighThreshold).Sub(price).Div(price).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
		d.DistanceToHighPercent = &v
	}
	return d
}

func statusText(a *models.PriceAlert) string {
	if !a.Triggered {
		if a.LastCheckedAt == nil {
			return "waiting for first price check"
		}
		return "monitoring"
	}
	if a.TriggerType != nil && *a.TriggerType == types.ThresholdLow {
		return "triggered: price fell to or below the low threshold"
	}
	return "triggered: price rose to or above the high threshold"
}
