// Package main provides a CLI tool for running database migrations.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/portfolio-risk/internal/config"
	"github.com/portfolio-risk/internal/logging"
	"github.com/portfolio-risk/internal/storage"
)

const (
	postgresMigrations   = "migrations/postgres"
	clickhouseMigrations = "migrations/clickhouse"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dbType string

	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Apply or inspect database migrations",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dbType, "db", "postgres", "Database type: postgres, clickhouse")

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd.Context(), dbType, "up")
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration (postgres only)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd.Context(), dbType, "down")
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current migration version (postgres only)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd.Context(), dbType, "version")
			},
		},
	)

	return root
}

func run(ctx context.Context, dbType, action string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))

	switch dbType {
	case "postgres":
		return runPostgresMigrations(cfg, action)
	case "clickhouse":
		return runClickHouseMigrations(ctx, cfg, action)
	default:
		return fmt.Errorf("unknown database type: %s", dbType)
	}
}

func runPostgresMigrations(cfg *config.Config, action string) error {
	logger := logging.WithField("db", "postgres")
	databaseURL := cfg.Database.Postgres.DSN()

	switch action {
	case "up":
		logger.Info("Running migrations")
		if err := storage.RunMigrations(databaseURL, postgresMigrations); err != nil {
			return err
		}
		logger.Info("Migrations completed successfully")

	case "down":
		logger.Info("Rolling back migration")
		if err := storage.RollbackMigrations(databaseURL, postgresMigrations); err != nil {
			return err
		}
		logger.Info("Migration rolled back successfully")

	case "version":
		version, dirty, err := storage.MigrationVersion(databaseURL, postgresMigrations)
		if err != nil {
			return err
		}
		fmt.Printf("postgres migration version: %d (dirty: %v)\n", version, dirty)

	default:
		return fmt.Errorf("unknown action: %s", action)
	}

	return nil
}

func runClickHouseMigrations(ctx context.Context, cfg *config.Config, action string) error {
	if action != "up" {
		return fmt.Errorf("clickhouse migrations only support the up action")
	}

	logger := logging.WithField("db", "clickhouse")
	db, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		return fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.WithError(err).Warn("Error closing ClickHouse connection")
		}
	}()

	logger.Info("Running migrations")
	if err := storage.RunClickHouseMigrations(ctx, db, clickhouseMigrations); err != nil {
		return err
	}
	logger.Info("Migrations completed successfully")
	return nil
}
