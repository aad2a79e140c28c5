package models

import (
	"time"

	"github.com/portfolio-risk/internal/types"
)

// PriceAlert watches one symbol for a price crossing either threshold.
// An alert triggers at most once.
type PriceAlert struct {
	ID            string               `json:"id"`
	Symbol        string               `json:"symbol"`
	LowThreshold  *float64             `json:"lowThreshold,omitempty"`
	HighThreshold *float64             `json:"highThreshold,omitempty"`
	NotifyEmail   string               `json:"notifyEmail,omitempty"`
	CurrentPrice  *float64             `json:"currentPrice,omitempty"`
	CreatedAt     time.Time            `json:"createdAt"`
	LastCheckedAt *time.Time           `json:"lastCheckedAt,omitempty"`
	Triggered     bool                 `json:"triggered"`
	TriggeredAt   *time.Time           `json:"triggeredAt,omitempty"`
	TriggerType   *types.ThresholdType `json:"triggerType,omitempty"`
	TriggerPrice  *float64             `json:"triggerPrice,omitempty"`
}

// State returns the lifecycle state
func (a *PriceAlert) State() types.AlertState {
	if a.Triggered {
		return types.AlertTriggered
	}
	return types.AlertActive
}

// Crossed returns which threshold price satisfies, low first
func (a *PriceAlert) Crossed(price float64) (types.ThresholdType, float64, bool) {
	if a.LowThreshold != nil && price <= *a.LowThreshold {
		return types.ThresholdLow, *a.LowThreshold, true
	}
	if a.HighThreshold != nil && price >= *a.HighThreshold {
		return types.ThresholdHigh, *a.HighThreshold, true
	}
	return "", 0, false
}

// Clone returns a deep copy safe to hand outside the registry lock
func (a *PriceAlert) Clone() *PriceAlert {
	c := *a
	c.LowThreshold = cloneFloat(a.LowThreshold)
	c.HighThreshold = cloneFloat(a.HighThreshold)
	c.CurrentPrice = cloneFloat(a.CurrentPrice)
	c.TriggerPrice = cloneFloat(a.TriggerPrice)
	if a.LastCheckedAt != nil {
		t := *a.LastCheckedAt
		c.LastCheckedAt = &t
	}
	if a.TriggeredAt != nil {
		t := *a.TriggeredAt
		c.TriggeredAt = &t
	}
	if a.TriggerType != nil {
		tt := *a.TriggerType
		c.TriggerType = &tt
	}
	return &c
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// AlertInput is the request to create an alert
type AlertInput struct {
	Symbol        string   `json:"symbol"`
	LowThreshold  *float64 `json:"lowThreshold,omitempty"`
	HighThreshold *float64 `json:"highThreshold,omitempty"`
	NotifyEmail   string   `json:"notifyEmail,omitempty"`
}

// AlertSummary is the list view of an alert
type AlertSummary struct {
	ID            string           `json:"id"`
	Symbol        string           `json:"symbol"`
	LowThreshold  *float64         `json:"lowThreshold,omitempty"`
	HighThreshold *float64         `json:"highThreshold,omitempty"`
	CurrentPrice  *float64         `json:"currentPrice,omitempty"`
	State         types.AlertState `json:"state"`
	HasEmail      bool             `json:"hasEmail"`
	CreatedAt     time.Time        `json:"createdAt"`
	LastCheckedAt *time.Time       `json:"lastCheckedAt,omitempty"`
	TriggeredAt   *time.Time       `json:"triggeredAt,omitempty"`
}

// Summary builds the list view
func (a *PriceAlert) Summary() AlertSummary {
	c := a.Clone()
	return AlertSummary{
		ID:            c.ID,
		Symbol:        c.Symbol,
		LowThreshold:  c.LowThreshold,
		HighThreshold: c.HighThreshold,
		CurrentPrice:  c.CurrentPrice,
		State:         c.State(),
		HasEmail:      c.NotifyEmail != "",
		CreatedAt:     c.CreatedAt,
		LastCheckedAt: c.LastCheckedAt,
		TriggeredAt:   c.TriggeredAt,
	}
}

// TriggeredAlertRecord is the append-only log entry of a trigger
type TriggeredAlertRecord struct {
	ID             string              `json:"id"`
	AlertID        string              `json:"alertId"`
	Symbol         string              `json:"symbol"`
	Price          float64             `json:"price"`
	ThresholdType  types.ThresholdType `json:"thresholdType"`
	ThresholdValue float64             `json:"thresholdValue"`
	TriggeredAt    time.Time           `json:"triggeredAt"`
	EmailRequested bool                `json:"emailRequested"`
	EmailSent      *bool               `json:"emailSent,omitempty"`
}

// Notification is the in-app message created for a trigger. Only
// Acknowledged and AcknowledgedAt ever change.
type Notification struct {
	ID             string              `json:"id"`
	AlertID        string              `json:"alertId"`
	Symbol         string              `json:"symbol"`
	Message        string              `json:"message"`
	Price          float64             `json:"price"`
	ThresholdType  types.ThresholdType `json:"thresholdType"`
	ThresholdValue float64             `json:"thresholdValue"`
	CreatedAt      time.Time           `json:"createdAt"`
	Acknowledged   bool                `json:"acknowledged"`
	AcknowledgedAt *time.Time          `json:"acknowledgedAt,omitempty"`
}

// AlertDetail is the per-alert status view
type AlertDetail struct {
	Alert                 AlertSummary `json:"alert"`
	Status                string       `json:"status"`
	DistanceToLowPercent  *float64     `json:"distanceToLowPercent,omitempty"`
	DistanceToHighPercent *float64     `json:"distanceToHighPercent,omitempty"`
}

// AlertStatusReport answers a status query. Either Detail is set (single
// alert) or the overview fields are.
type AlertStatusReport struct {
	Detail          *AlertDetail           `json:"detail,omitempty"`
	TotalAlerts     int                    `json:"totalAlerts"`
	ActiveAlerts    int                    `json:"activeAlerts"`
	TriggeredAlerts int                    `json:"triggeredAlerts"`
	MonitorRunning  bool                   `json:"monitorRunning"`
	LastTickAt      *time.Time             `json:"lastTickAt,omitempty"`
	TickCount       int64                  `json:"tickCount"`
	RecentTriggers  []TriggeredAlertRecord `json:"recentTriggers,omitempty"`
}
