package service

import (
	"context"
	"time"

	"github.com/portfolio-risk/internal/alert"
	"github.com/portfolio-risk/internal/logging"
	"github.com/portfolio-risk/internal/models"
)

// TriggerHistory is implemented by archives that can read trigger records
// back, newest first. An empty symbol selects every symbol.
type TriggerHistory interface {
	ListTriggeredRecords(ctx context.Context, symbol string, limit int) ([]models.TriggeredAlertRecord, error)
}

// AlertService exposes the price-alert operations over a registry and the
// monitor polling it
type AlertService struct {
	registry *alert.Registry
	monitor  *alert.Monitor
	archive  alert.Archive
}

// NewAlertService creates a new alert service. archive may be nil.
func NewAlertService(registry *alert.Registry, monitor *alert.Monitor, archive alert.Archive) *AlertService {
	return &AlertService{
		registry: registry,
		monitor:  monitor,
		archive:  archive,
	}
}

// SetupPriceAlert creates an alert and returns its id
func (s *AlertService) SetupPriceAlert(ctx context.Context, input models.AlertInput) (string, error) {
	id, err := s.registry.Add(input)
	if err != nil {
		return "", err
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"alert_id": id,
		"symbol":   input.Symbol,
	}).Info("Price alert created")
	return id, nil
}

// ListPriceAlerts returns every alert summary
func (s *AlertService) ListPriceAlerts(ctx context.Context) []models.AlertSummary {
	return s.registry.List()
}

// RemovePriceAlert deletes an alert, reporting whether it existed
func (s *AlertService) RemovePriceAlert(ctx context.Context, id string) bool {
	removed := s.registry.Remove(id)
	if removed {
		logging.FromContext(ctx).WithField("alert_id", id).Info("Price alert removed")
	}
	return removed
}

// CheckAlertStatus reports on one alert or, with an empty id, on all of them
func (s *AlertService) CheckAlertStatus(ctx context.Context, id string) (*models.AlertStatusReport, error) {
	report, err := s.monitor.Status(id)
	if err != nil || id != "" {
		return report, err
	}

	// The archive outlives restarts, so it wins over the in-memory log
	history, ok := s.archive.(TriggerHistory)
	if !ok {
		return report, nil
	}
	records, err := history.ListTriggeredRecords(ctx, "", alert.RecentTriggerLimit)
	if err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to read archived triggers, using in-memory records")
		return report, nil
	}
	if len(records) > 0 {
		report.RecentTriggers = records
	}
	return report, nil
}

// GetAlertNotifications lists notifications, newest first
func (s *AlertService) GetAlertNotifications(ctx context.Context, unacknowledgedOnly bool) []models.Notification {
	return s.registry.Notifications(unacknowledgedOnly)
}

// AcknowledgeAlert marks a notification acknowledged. It is idempotent and
// reports false only for an unknown id.
func (s *AlertService) AcknowledgeAlert(ctx context.Context, notificationID string) bool {
	n, ok := s.registry.Acknowledge(notificationID)
	if !ok {
		return false
	}

	if s.archive != nil && n.AcknowledgedAt != nil {
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.archive.MarkAcknowledged(actx, n.ID, *n.AcknowledgedAt); err != nil {
			logging.FromContext(ctx).WithError(err).WithField("notification_id", n.ID).Warn("Failed to archive acknowledgement")
		}
	}
	return true
}

// MonitorRunning reports whether the polling schedule is active
func (s *AlertService) MonitorRunning() bool {
	return s.monitor.Running()
}

// Start starts the alert monitor
func (s *AlertService) Start(ctx context.Context) error {
	return s.monitor.Start(ctx)
}

// Stop stops the alert monitor after the current tick
func (s *AlertService) Stop(ctx context.Context) error {
	return s.monitor.Stop(ctx)
}
