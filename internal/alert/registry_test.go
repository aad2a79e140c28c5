package alert

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/portfolio-risk/internal/errors"
	"github.com/portfolio-risk/internal/models"
	"github.com/portfolio-risk/internal/types"
)

func ptr(v float64) *float64 { return &v }

// newTestRegistry returns a registry with deterministic ids and clock
func newTestRegistry() *Registry {
	r := NewRegistry()
	seq := 0
	r.newID = func() string {
		seq++
		return fmt.Sprintf("id-%03d", seq)
	}
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return r
}

func TestValidateInput(t *testing.T) {
	tests := []struct {
		name    string
		input   models.AlertInput
		wantErr bool
	}{
		{"low only", models.AlertInput{Symbol: "btc", LowThreshold: ptr(100)}, false},
		{"high only", models.AlertInput{Symbol: "ETH", HighThreshold: ptr(5000)}, false},
		{"both", models.AlertInput{Symbol: "SOL", LowThreshold: ptr(145), HighThreshold: ptr(150)}, false},
		{"no threshold", models.AlertInput{Symbol: "BTC"}, true},
		{"low above high", models.AlertInput{Symbol: "x", LowThreshold: ptr(200), HighThreshold: ptr(100)}, true},
		{"low equals high", models.AlertInput{Symbol: "x", LowThreshold: ptr(100), HighThreshold: ptr(100)}, true},
		{"negative threshold", models.AlertInput{Symbol: "x", LowThreshold: ptr(-1)}, true},
		{"missing symbol", models.AlertInput{Symbol: "  ", HighThreshold: ptr(1)}, true},
		{"bad email", models.AlertInput{Symbol: "x", HighThreshold: ptr(1), NotifyEmail: "not-an-email"}, true},
		{"good email", models.AlertInput{Symbol: "x", HighThreshold: ptr(1), NotifyEmail: "ops@example.com"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateInput(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsValidationError(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegistry_AddNormalizesAndDetaches(t *testing.T) {
	r := newTestRegistry()
	low := 145.0
	id, err := r.Add(models.AlertInput{Symbol: " sol ", LowThreshold: &low, NotifyEmail: "Ops <ops@example.com>"})
	require.NoError(t, err)

	low = 1 // caller mutation must not leak in

	a, ok := r.Get(id)
	require.True(t, ok)
	assert.Equal(t, "SOL", a.Symbol)
	assert.Equal(t, 145.0, *a.LowThreshold)
	assert.Equal(t, "ops@example.com", a.NotifyEmail)
	assert.Equal(t, types.AlertActive, a.State())
}

// With low=145 and high=150 the 155 reading already breaches high, so this
// sequence cannot show a low trigger at 143. The low-breach variant of the
// same price walk uses high=160 in TestMonitor_TriggersOnLowBreachOnce.
func TestRegistry_EvaluateTriggersOnce(t *testing.T) {
	r := newTestRegistry()
	id, err := r.Add(models.AlertInput{Symbol: "SOL", LowThreshold: ptr(145), HighThreshold: ptr(150)})
	require.NoError(t, err)

	var triggers []*Trigger
	for _, price := range []float64{155, 148, 143, 140, 160} {
		trig, ok := r.Evaluate(id, price)
		require.True(t, ok)
		if trig != nil {
			triggers = append(triggers, trig)
		}
		if price == 155 {
			// 155 is above high, so the first check already fires
			require.NotNil(t, trig)
		}
	}

	require.Len(t, triggers, 1)
	assert.Equal(t, types.ThresholdHigh, triggers[0].Record.ThresholdType)
	assert.Len(t, r.Notifications(false), 1)
	assert.Len(t, r.RecentRecords(10), 1)
}

func TestRegistry_LowFirstTieBreak(t *testing.T) {
	r := newTestRegistry()
	id, err := r.Add(models.AlertInput{Symbol: "BTC", LowThreshold: ptr(100)})
	require.NoError(t, err)

	trig, ok := r.Evaluate(id, 100)
	require.True(t, ok)
	require.NotNil(t, trig)
	assert.Equal(t, types.ThresholdLow, trig.Record.ThresholdType)
	assert.Equal(t, 100.0, trig.Record.ThresholdValue)
	assert.Equal(t, types.AlertTriggered, trig.Alert.State())
	assert.Contains(t, trig.Notification.Message, "fell below")
}

func TestRegistry_EvaluateRemovedAlert(t *testing.T) {
	r := newTestRegistry()
	id, _ := r.Add(models.AlertInput{Symbol: "ETH", HighThreshold: ptr(10)})
	require.True(t, r.Remove(id))
	assert.False(t, r.Remove(id))

	trig, ok := r.Evaluate(id, 100)
	assert.False(t, ok)
	assert.Nil(t, trig)
	assert.Empty(t, r.List())
	assert.Empty(t, r.Notifications(false))
}

func TestRegistry_AcknowledgeIsIdempotent(t *testing.T) {
	r := newTestRegistry()
	id, _ := r.Add(models.AlertInput{Symbol: "ETH", HighThreshold: ptr(10)})
	trig, _ := r.Evaluate(id, 11)
	require.NotNil(t, trig)

	first, ok := r.Acknowledge(trig.Notification.ID)
	require.True(t, ok)
	assert.True(t, first.Acknowledged)

	second, ok := r.Acknowledge(trig.Notification.ID)
	require.True(t, ok)
	assert.True(t, second.Acknowledged)
	assert.Equal(t, *first.AcknowledgedAt, *second.AcknowledgedAt)

	_, ok = r.Acknowledge("missing")
	assert.False(t, ok)

	assert.Empty(t, r.Notifications(true))
	assert.Len(t, r.Notifications(false), 1)
}

func TestRegistry_ListAndCounts(t *testing.T) {
	r := newTestRegistry()
	first, _ := r.Add(models.AlertInput{Symbol: "BTC", HighThreshold: ptr(10)})
	second, _ := r.Add(models.AlertInput{Symbol: "ETH", LowThreshold: ptr(1)})
	_, _ = r.Evaluate(first, 20)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, first, list[0].ID)
	assert.Equal(t, types.AlertTriggered, list[0].State)
	assert.Equal(t, second, list[1].ID)
	assert.Equal(t, types.AlertActive, list[1].State)

	total, active, triggered := r.Counts()
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, active)
	assert.Equal(t, 1, triggered)

	activeAlerts := r.Active()
	require.Len(t, activeAlerts, 1)
	assert.Equal(t, second, activeAlerts[0].ID)
}

func TestRegistry_SetEmailOutcome(t *testing.T) {
	r := newTestRegistry()
	id, _ := r.Add(models.AlertInput{Symbol: "BTC", HighThreshold: ptr(10), NotifyEmail: "a@b.io"})
	trig, _ := r.Evaluate(id, 20)
	require.NotNil(t, trig)
	assert.True(t, trig.Record.EmailRequested)

	assert.True(t, r.SetEmailOutcome(trig.Record.ID, false))
	assert.False(t, r.SetEmailOutcome("unknown", true))

	recs := r.RecentRecords(10)
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].EmailSent)
	assert.False(t, *recs[0].EmailSent)
}
