// Package alert holds the price-alert registry and the monitor that polls
// prices and fires each alert at most once.
package alert

import (
	"fmt"
	"math"
	"net/mail"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/portfolio-risk/internal/errors"
	"github.com/portfolio-risk/internal/models"
	"github.com/portfolio-risk/internal/types"
)

const maxSymbolLength = 32

// Trigger is the outcome of an alert transition
type Trigger struct {
	Alert        *models.PriceAlert
	Record       models.TriggeredAlertRecord
	Notification models.Notification
}

// Registry owns all alerts, triggered records and notifications. One mutex
// guards every mutation; callers only ever see copies.
type Registry struct {
	mu            sync.Mutex
	alerts        map[string]*models.PriceAlert
	records       []*models.TriggeredAlertRecord
	notifications []*models.Notification
	notifByID     map[string]*models.Notification
	newID         func() string
	now           func() time.Time
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		alerts:    make(map[string]*models.PriceAlert),
		notifByID: make(map[string]*models.Notification),
		newID:     uuid.NewString,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ValidateInput checks an alert request and returns it normalized
func ValidateInput(in models.AlertInput) (models.AlertInput, error) {
	in.Symbol = strings.ToUpper(strings.TrimSpace(in.Symbol))
	in.NotifyEmail = strings.TrimSpace(in.NotifyEmail)

	if in.Symbol == "" {
		return in, apperrors.NewValidationError("symbol", "symbol is required")
	}
	if len(in.Symbol) > maxSymbolLength {
		return in, apperrors.NewValidationError("symbol", fmt.Sprintf("symbol must be at most %d characters", maxSymbolLength))
	}
	if in.LowThreshold == nil && in.HighThreshold == nil {
		return in, apperrors.NewValidationError("threshold", "at least one of lowThreshold or highThreshold is required")
	}
	if err := validThreshold("lowThreshold", in.LowThreshold); err != nil {
		return in, err
	}
	if err := validThreshold("highThreshold", in.HighThreshold); err != nil {
		return in, err
	}
	if in.LowThreshold != nil && in.HighThreshold != nil && *in.LowThreshold >= *in.HighThreshold {
		return in, apperrors.NewValidationError("lowThreshold", "lowThreshold must be less than highThreshold")
	}
	if in.NotifyEmail != "" {
		addr, err := mail.ParseAddress(in.NotifyEmail)
		if err != nil {
			return in, apperrors.NewValidationError("notifyEmail", "invalid email address")
		}
		in.NotifyEmail = addr.Address
	}
	return in, nil
}

func validThreshold(field string, v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v <= 0 {
		return apperrors.NewValidationError(field, "threshold must be a positive number")
	}
	return nil
}

// Add validates and stores a new ACTIVE alert, returning its id
func (r *Registry) Add(in models.AlertInput) (string, error) {
	in, err := ValidateInput(in)
	if err != nil {
		return "", err
	}

	a := &models.PriceAlert{
		Symbol:        in.Symbol,
		LowThreshold:  in.LowThreshold,
		HighThreshold: in.HighThreshold,
		NotifyEmail:   in.NotifyEmail,
	}
	// detach from caller-owned pointers
	a = a.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	a.ID = r.newID()
	a.CreatedAt = r.now()
	r.alerts[a.ID] = a
	return a.ID, nil
}

// Remove deletes an alert. Records and notifications it produced are kept.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.alerts[id]; !ok {
		return false
	}
	delete(r.alerts, id)
	return true
}

// Get returns a copy of one alert
func (r *Registry) Get(id string) (*models.PriceAlert, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.alerts[id]
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

// List returns summaries of all alerts, oldest first
func (r *Registry) List() []models.AlertSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.AlertSummary, 0, len(r.alerts))
	for _, a := range r.alerts {
		out = append(out, a.Summary())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Active returns copies of every alert that has not triggered yet
func (r *Registry) Active() []*models.PriceAlert {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*models.PriceAlert, 0, len(r.alerts))
	for _, a := range r.alerts {
		if !a.Triggered {
			out = append(out, a.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Counts returns total, active and triggered alert counts
func (r *Registry) Counts() (total, active, triggered int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.alerts {
		if a.Triggered {
			triggered++
		} else {
			active++
		}
	}
	return len(r.alerts), active, triggered
}

// Evaluate applies a fetched price to an alert. It reports false when the
// alert no longer exists, so a removed alert is never resurrected. A non-nil
// Trigger means this call performed the ACTIVE to TRIGGERED transition.
func (r *Registry) Evaluate(id string, price float64) (*Trigger, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.alerts[id]
	if !ok {
		return nil, false
	}

	now := r.now()
	p := price
	a.CurrentPrice = &p
	a.LastCheckedAt = &now

	if a.Triggered {
		return nil, true
	}

	thresholdType, thresholdValue, crossed := a.Crossed(price)
	if !crossed {
		return nil, true
	}

	tp := price
	tt := thresholdType
	triggeredAt := now
	a.Triggered = true
	a.TriggeredAt = &triggeredAt
	a.TriggerType = &tt
	a.TriggerPrice = &tp

	rec := &models.TriggeredAlertRecord{
		ID:             r.newID(),
		AlertID:        a.ID,
		Symbol:         a.Symbol,
		Price:          price,
		ThresholdType:  thresholdType,
		ThresholdValue: thresholdValue,
		TriggeredAt:    now,
		EmailRequested: a.NotifyEmail != "",
	}
	n := &models.Notification{
		ID:             r.newID(),
		AlertID:        a.ID,
		Symbol:         a.Symbol,
		Message:        notificationMessage(a.Symbol, price, thresholdType, thresholdValue),
		Price:          price,
		ThresholdType:  thresholdType,
		ThresholdValue: thresholdValue,
		CreatedAt:      now,
	}
	r.records = append(r.records, rec)
	r.notifications = append(r.notifications, n)
	r.notifByID[n.ID] = n

	return &Trigger{Alert: a.Clone(), Record: *rec, Notification: *n}, true
}

func notificationMessage(symbol string, price float64, t types.ThresholdType, threshold float64) string {
	direction := "rose above"
	if t == types.ThresholdLow {
		direction = "fell below"
	}
	return fmt.Sprintf("%s %s %s threshold %.8g (current price %.8g)", symbol, direction, t, threshold, price)
}

// SetEmailOutcome records the email result on a triggered record
func (r *Registry) SetEmailOutcome(recordID string, sent bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].ID == recordID {
			s := sent
			r.records[i].EmailSent = &s
			return true
		}
	}
	return false
}

// RecentRecords returns up to limit triggered records, newest first
func (r *Registry) RecentRecords(limit int) []models.TriggeredAlertRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.TriggeredAlertRecord, 0, limit)
	for i := len(r.records) - 1; i >= 0 && len(out) < limit; i-- {
		rec := *r.records[i]
		if rec.EmailSent != nil {
			s := *rec.EmailSent
			rec.EmailSent = &s
		}
		out = append(out, rec)
	}
	return out
}

// Notifications returns notifications newest first, optionally only the
// unacknowledged ones
func (r *Registry) Notifications(unacknowledgedOnly bool) []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Notification, 0, len(r.notifications))
	for i := len(r.notifications) - 1; i >= 0; i-- {
		n := r.notifications[i]
		if unacknowledgedOnly && n.Acknowledged {
			continue
		}
		c := *n
		if n.AcknowledgedAt != nil {
			t := *n.AcknowledgedAt
			c.AcknowledgedAt = &t
		}
		out = append(out, c)
	}
	return out
}

// Acknowledge marks a notification acknowledged. Repeated calls succeed and
// keep the first acknowledgement time. The second result is false for an
// unknown id.
func (r *Registry) Acknowledge(notificationID string) (models.Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifByID[notificationID]
	if !ok {
		return models.Notification{}, false
	}
	if !n.Acknowledged {
		now := r.now()
		n.Acknowledged = true
		n.AcknowledgedAt = &now
	}

	c := *n
	t := *n.AcknowledgedAt
	c.AcknowledgedAt = &t
	return c, true
}
