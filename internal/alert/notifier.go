package alert

import (
	"context"
	"time"

	"github.com/portfolio-risk/internal/logging"
	"github.com/portfolio-risk/internal/models"
	"github.com/portfolio-risk/internal/types"
)

// EmailSender delivers trigger emails. It reports false on failure and must
// not panic into the monitor.
type EmailSender interface {
	SendAlertEmail(ctx context.Context, to, symbol string, price float64, thresholdType types.ThresholdType, thresholdValue float64, alertID string) bool
}

// Archive persists trigger history outside the process
type Archive interface {
	SaveTriggeredRecord(ctx context.Context, rec *models.TriggeredAlertRecord) error
	SaveNotification(ctx context.Context, n *models.Notification) error
	MarkAcknowledged(ctx context.Context, notificationID string, at time.Time) error
	UpdateEmailOutcome(ctx context.Context, recordID string, sent bool) error
}

// LogNotifier is the EmailSender used when no mail transport is configured.
// It logs the email it would have sent.
type LogNotifier struct {
	logger *logging.Logger
}

// NewLogNotifier creates a logging email sender
func NewLogNotifier(logger *logging.Logger) *LogNotifier {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &LogNotifier{logger: logger.WithField("component", "email")}
}

// SendAlertEmail implements EmailSender
func (n *LogNotifier) SendAlertEmail(ctx context.Context, to, symbol string, price float64, thresholdType types.ThresholdType, thresholdValue float64, alertID string) bool {
	n.logger.WithFields(map[string]interface{}{
		"to":              to,
		"symbol":          symbol,
		"price":           price,
		"threshold_type":  string(thresholdType),
		"threshold_value": thresholdValue,
		"alert_id":        alertID,
	}).Info("Price alert email")
	return true
}
