package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/portfolio-risk/internal/models"
	"github.com/portfolio-risk/internal/types"
)

// AlertArchiveRepository persists triggered alert records and notifications
type AlertArchiveRepository struct {
	pool *pgxpool.Pool
}

// NewAlertArchiveRepository creates a new alert archive repository
func NewAlertArchiveRepository(db *PostgresDB) *AlertArchiveRepository {
	return &AlertArchiveRepository{pool: db.Pool()}
}

// SaveTriggeredRecord inserts a triggered alert record
func (r *AlertArchiveRepository) SaveTriggeredRecord(ctx context.Context, rec *models.TriggeredAlertRecord) error {
	query := `
		INSERT INTO triggered_alerts (
			id, alert_id, symbol, price, threshold_type, threshold_value,
			triggered_at, email_requested, email_sent
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.AlertID,
		rec.Symbol,
		rec.Price,
		string(rec.ThresholdType),
		rec.ThresholdValue,
		rec.TriggeredAt,
		rec.EmailRequested,
		rec.EmailSent,
	)
	if err != nil {
		return fmt.Errorf("failed to insert triggered alert: %w", err)
	}
	return nil
}

// SaveNotification inserts a notification
func (r *AlertArchiveRepository) SaveNotification(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO alert_notifications (
			id, alert_id, symbol, message, price, threshold_type, threshold_value,
			created_at, acknowledged, acknowledged_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		n.ID,
		n.AlertID,
		n.Symbol,
		n.Message,
		n.Price,
		string(n.ThresholdType),
		n.ThresholdValue,
		n.CreatedAt,
		n.Acknowledged,
		n.AcknowledgedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// MarkAcknowledged flags a notification as acknowledged. The first
// acknowledgement time is kept.
func (r *AlertArchiveRepository) MarkAcknowledged(ctx context.Context, notificationID string, at time.Time) error {
	query := `
		UPDATE alert_notifications
		SET acknowledged = TRUE,
			acknowledged_at = COALESCE(acknowledged_at, $2)
		WHERE id = $1
	`

	if _, err := r.pool.Exec(ctx, query, notificationID, at); err != nil {
		return fmt.Errorf("failed to acknowledge notification: %w", err)
	}
	return nil
}

// UpdateEmailOutcome records whether the email for a trigger was delivered
func (r *AlertArchiveRepository) UpdateEmailOutcome(ctx context.Context, recordID string, sent bool) error {
	query := `UPDATE triggered_alerts SET email_sent = $2 WHERE id = $1`

	if _, err := r.pool.Exec(ctx, query, recordID, sent); err != nil {
		return fmt.Errorf("failed to update email outcome: %w", err)
	}
	return nil
}

// ListTriggeredRecords returns the most recent archived triggers for a symbol,
// or for all symbols when symbol is empty
func (r *AlertArchiveRepository) ListTriggeredRecords(ctx context.Context, symbol string, limit int) ([]models.TriggeredAlertRecord, error) {
	query := `
		SELECT id, alert_id, symbol, price, threshold_type, threshold_value,
			   triggered_at, email_requested, email_sent
		FROM triggered_alerts
		WHERE ($1 = '' OR symbol = $1)
		ORDER BY triggered_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query triggered alerts: %w", err)
	}
	defer rows.Close()

	var records []models.TriggeredAlertRecord
	for rows.Next() {
		var rec models.TriggeredAlertRecord
		var thresholdType string
		if err := rows.Scan(
			&rec.ID,
			&rec.AlertID,
			&rec.Symbol,
			&rec.Price,
			&thresholdType,
			&rec.ThresholdValue,
			&rec.TriggeredAt,
			&rec.EmailRequested,
			&rec.EmailSent,
		); err != nil {
			return nil, fmt.Errorf("failed to scan triggered alert row: %w", err)
		}
		rec.ThresholdType = types.ThresholdType(thresholdType)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating triggered alert rows: %w", err)
	}

	return records, nil
}
