// Command backup runs a single Persistence Manager (C8) verification pass
// against Store and exits, for cron/operator use outside the long-running
// engine process.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/buzzkillb/tirade-engine/config"
	"github.com/buzzkillb/tirade-engine/internal/logging"
	"github.com/buzzkillb/tirade-engine/internal/persistence"
	"github.com/buzzkillb/tirade-engine/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := logging.New(&logging.Config{
		Level:      cfg.LoggingConfig.Level,
		Output:     "stdout",
		JSONFormat: cfg.LoggingConfig.JSONFormat,
		Component:  "backup",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db, err := store.New(ctx, store.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	})
	if err != nil {
		log.Fatalf("failed to connect to store: %v", err)
	}

	mgr := persistence.New(persistence.Config{IntervalMinutes: cfg.TradingConfig.BackupIntervalMinutes}, db, cfg.TradingConfig.Pair, logger)
	report := mgr.Check(ctx)

	logger.Info("backup check complete",
		"status", string(report.Status),
		"learning_rows", report.LearningRows,
		"store_reachable", report.StoreReachable,
		"detail", report.Detail,
	)

	fmt.Printf("status=%s learning_rows=%d store_reachable=%t detail=%q\n",
		report.Status, report.LearningRows, report.StoreReachable, report.Detail)

	if report.Status == persistence.Critical {
		os.Exit(1)
	}
}
