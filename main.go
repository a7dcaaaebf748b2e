package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"pharmacy/m/internal/api"
	"pharmacy/m/internal/config"
	"pharmacy/m/internal/database"
	"pharmacy/m/internal/logging"
	"pharmacy/m/internal/metrics"
	"pharmacy/m/internal/migrations"
	"pharmacy/m/internal/sales"
	"pharmacy/m/internal/seed"
	"pharmacy/m/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return err
	}
	if cfg.SeedPath != "" {
		if _, err := seed.LoadDrugs(ctx, db, cfg.SeedPath, log); err != nil {
			return err
		}
	}

	m := metrics.NewSales()
	engine := sales.NewEngine(db, store.NewUsers(), store.NewDrugs(), store.NewSales(),
		sales.WithLogger(log),
		sales.WithRecorder(m),
		sales.WithTxTimeout(cfg.TxTimeout),
	)
	handler := api.New(db, engine, api.Options{
		Secret:      cfg.Secret,
		CORSOrigins: cfg.CORSOrigins,
		Metrics:     m.Handler(),
		Logger:      log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("pharmacy POS server starting", zap.String("addr", srv.Addr), zap.String("driver", cfg.DatabaseDriver))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
