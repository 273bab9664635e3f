// Command cmd runs maintenance tasks against the database without starting
// the HTTP server: schema migration and a single sweep pass.
package main

import (
	"Quizrace/config"
	"Quizrace/services/engine"
	"Quizrace/services/questions"
	"Quizrace/services/store"
	"Quizrace/utils/clock"
	"Quizrace/utils/logger"
	"context"
	"flag"
)

func main() {
	defer logger.Sync()
	migrate := flag.Bool("migrate", false, "migrate the PostgreSQL schema")
	sweep := flag.Bool("sweep", true, "run one sweep pass (rounds, idle participants, outbox)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Error loading configuration: %v", err)
	}
	db, err := config.ConnectGORM(cfg)
	if err != nil {
		logger.Fatalf("Error connecting to PostgreSQL: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatalf("Error reading GORM PostgreSQL instance: %v", err)
	}
	defer sqlDB.Close()

	if *migrate {
		if err := config.MigrateDatabase(db); err != nil {
			logger.Fatalf("Error migrating database: %v", err)
		}
	}
	if !*sweep {
		return
	}

	// Without a publisher the sweep leaves the outbox for the server's relay.
	eng, err := engine.New(engine.Options{
		Store:  store.NewGormStore(db),
		Bank:   questions.NewGormBank(db),
		Policy: cfg.FraudPolicy(),
		Now:    clock.System,
	})
	if err != nil {
		logger.Fatalf("Error building engine: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.SweepTimeout)
	defer cancel()
	report, err := eng.Sweep(ctx)
	if err != nil {
		logger.Errorf("Sweep finished with errors: %v", err)
	}
	logger.Infof("Sweep: completed=%d abandoned=%d created=%d relayed=%d",
		report.Completed, report.Abandoned, report.Created, report.Relayed)
}
