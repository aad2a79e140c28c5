package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/portfolio-risk/internal/models"
	"github.com/portfolio-risk/internal/types"
)

// RiskHistoryRepository stores risk report summaries in ClickHouse
type RiskHistoryRepository struct {
	db *ClickHouseDB
}

// NewRiskHistoryRepository creates a new risk history repository
func NewRiskHistoryRepository(db *ClickHouseDB) *RiskHistoryRepository {
	return &RiskHistoryRepository{db: db}
}

// Insert appends one history entry
func (r *RiskHistoryRepository) Insert(ctx context.Context, entry models.RiskHistoryEntry) error {
	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO risk_reports (
			wallet_address, chain, total_value, annualized_volatility_pct,
			var_1d_usd, sharpe_ratio, herfindahl_index, top1_pct,
			overall_risk_score, confidence_level, generated_at
		)`)
	if err != nil {
		return fmt.Errorf("failed to prepare risk report insert: %w", err)
	}

	score := uint8(0)
	if entry.OverallRiskScore > 0 && entry.OverallRiskScore <= 255 {
		score = uint8(entry.OverallRiskScore) // #nosec G115 - bounded above
	}

	if err := batch.Append(
		strings.ToLower(entry.WalletAddress),
		string(entry.Chain),
		entry.TotalValue,
		entry.AnnualizedVolatilityPct,
		entry.VaR1dUSD,
		entry.SharpeRatio,
		entry.HerfindahlIndex,
		entry.Top1Pct,
		score,
		entry.ConfidenceLevel,
		entry.GeneratedAt.UTC(),
	); err != nil {
		return fmt.Errorf("failed to append risk report: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to insert risk report: %w", err)
	}
	return nil
}

// List returns up to limit entries for a wallet, most recent first
func (r *RiskHistoryRepository) List(ctx context.Context, wallet string, chain types.ChainID, limit int) ([]models.RiskHistoryEntry, error) {
	if limit <= 0 {
		return []models.RiskHistoryEntry{}, nil
	}

	query := `
		SELECT
			wallet_address, chain, total_value, annualized_volatility_pct,
			var_1d_usd, sharpe_ratio, herfindahl_index, top1_pct,
			overall_risk_score, confidence_level, generated_at
		FROM risk_reports
		WHERE wallet_address = ? AND chain = ?
		ORDER BY generated_at DESC
		LIMIT ?
	`

	rows, err := r.db.Conn().Query(ctx, query, strings.ToLower(wallet), string(chain), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query risk history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]models.RiskHistoryEntry, 0, limit)
	for rows.Next() {
		var e models.RiskHistoryEntry
		var chainStr string
		var score uint8
		if err := rows.Scan(
			&e.WalletAddress,
			&chainStr,
			&e.TotalValue,
			&e.AnnualizedVolatilityPct,
			&e.VaR1dUSD,
			&e.SharpeRatio,
			&e.HerfindahlIndex,
			&e.Top1Pct,
			&score,
			&e.ConfidenceLevel,
			&e.GeneratedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan risk history row: %w", err)
		}
		e.Chain = types.ChainID(chainStr)
		e.OverallRiskScore = int(score)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating risk history rows: %w", err)
	}

	return entries, nil
}
