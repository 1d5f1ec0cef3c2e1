// Command registerctl runs maintenance tasks against the registration
// database.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bhmc/slot-reservation/internal/config"
	"github.com/bhmc/slot-reservation/internal/database"
	"github.com/bhmc/slot-reservation/internal/logger"
	"github.com/bhmc/slot-reservation/internal/payment"
	"github.com/bhmc/slot-reservation/internal/repository"
	"github.com/bhmc/slot-reservation/internal/reservation"
)

var Version = "dev"

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "registerctl",
		Short:         "Maintenance tasks for the slot reservation service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Init(&logger.Config{Level: os.Getenv("LOG_LEVEL"), Development: true})
		},
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(cleanupCmd())
	rootCmd.AddCommand(layoutCmd())
	rootCmd.AddCommand(tokenCmd())

	err := rootCmd.Execute()
	logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds what the commands need to talk to the store.
type app struct {
	cfg    config.Config
	store  repository.Store
	engine *reservation.Engine
	coord  *payment.Coordinator
	close  func()
}

// openApp connects to the configured store.  Maintenance commands never
// call the gateway, so the mock stands in for it.
func openApp() (*app, error) {
	cfg := config.Load()
	lg := logger.Get()
	a := &app{cfg: cfg, close: func() {}}
	if cfg.Store == "memory" {
		a.store = repository.NewMemoryStore()
	} else {
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBLockWait)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.store = repository.NewMySQLStore(db)
		a.close = func() { _ = db.Close() }
	}
	a.engine = reservation.NewEngine(a.store, reservation.WithLogger(lg))
	a.coord = payment.NewCoordinator(a.engine, payment.NewMockGateway(), payment.WithLogger(lg.Named("payment")))
	lg.Debug("store opened", zap.String("store", cfg.Store))
	return a, nil
}
