package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/portfolio-risk/internal/config"
)

// riskReportsTable holds one row per completed risk analysis
const riskReportsTable = "risk_reports"

// ErrRiskHistorySchemaMissing means the ClickHouse migrations were never applied
var ErrRiskHistorySchemaMissing = errors.New("risk history table missing, run: migrate up --db clickhouse")

// ClickHouseDB is the connection behind the risk report history
type ClickHouseDB struct {
	conn driver.Conn
}

// NewClickHouseDB opens the risk history database. History rows arrive one
// report at a time, so inserts go through the server side async buffer.
func NewClickHouseDB(cfg *config.ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time":    30,
			"async_insert":          1,
			"wait_for_async_insert": 1,
		},
		DialTimeout:  5 * time.Second,
		MaxOpenConns: 4,
		MaxIdleConns: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open risk history store: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to reach risk history store: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the ClickHouse connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Conn returns the underlying ClickHouse connection
func (db *ClickHouseDB) Conn() driver.Conn {
	return db.conn
}

// Exec executes a query without returning rows
func (db *ClickHouseDB) Exec(ctx context.Context, query string, args ...interface{}) error {
	return db.conn.Exec(ctx, query, args...)
}

// TableExists reports whether name exists in the connected database
func (db *ClickHouseDB) TableExists(ctx context.Context, name string) (bool, error) {
	var exists uint8
	if err := db.conn.QueryRow(ctx, "EXISTS TABLE "+name).Scan(&exists); err != nil {
		return false, err
	}
	return exists == 1, nil
}

// TableChecker is the schema lookup CheckRiskHistorySchema needs
type TableChecker interface {
	TableExists(ctx context.Context, name string) (bool, error)
}

// CheckRiskHistorySchema fails fast at startup when the history table is
// absent instead of failing every later insert
func CheckRiskHistorySchema(ctx context.Context, db TableChecker) error {
	ok, err := db.TableExists(ctx, riskReportsTable)
	if err != nil {
		return fmt.Errorf("failed to inspect risk history schema: %w", err)
	}
	if !ok {
		return ErrRiskHistorySchemaMissing
	}
	return nil
}
