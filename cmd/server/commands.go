package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sheikh-saqib/prisoner-money-ledger/internal/config"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/events"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/events/kafka"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/interfaces"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/ledger"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/logging"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/server"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/storage/postgres"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const connectTimeout = 15 * time.Second

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "ledger",
		Short:         "Prisoner money double-entry ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "env file to load (default .env if present)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), envFile)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create the PostgreSQL schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return migrate(cmd.Context(), envFile)
		},
	})

	return root
}

func bootstrap(envFile string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(logging.Config{Environment: cfg.Environment, Level: cfg.LogLevel})
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func migrate(ctx context.Context, envFile string) error {
	cfg, logger, err := bootstrap(envFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Store.Driver != config.DriverPostgres {
		return errors.New("migrate requires STORE_DRIVER=postgres")
	}

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		logger.Error("schema migration failed", zap.Error(err))
		return err
	}

	logger.Info("schema is up to date")
	return store.Close()
}

func serve(ctx context.Context, envFile string) error {
	cfg, logger, err := bootstrap(envFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		logger.Error("failed to initialize store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close store", zap.Error(err))
		}
	}()
	logger.Info("store initialized", zap.String("driver", cfg.Store.Driver))

	var publisher interfaces.EventPublisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher := kafka.NewPublisher(cfg.Kafka.Brokers)
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				logger.Error("failed to close kafka publisher", zap.Error(err))
			}
		}()
		publisher = events.NewBreakerPublisher(kafkaPublisher, events.DefaultBreakerConfig(), logger)
		logger.Info("kafka publishing enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	directory := ledger.NewDirectory(store, ledger.WithLogger(logger))
	ledgerService := ledger.NewLedger(store, directory,
		ledger.WithLogger(logger), ledger.WithPublisher(publisher, cfg.Kafka.Topic))
	balances := ledger.NewBalanceCalculator(store, store, store, ledger.WithLogger(logger))

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      server.New(directory, ledgerService, balances, logger).Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (interfaces.LedgerStore, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		ctx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		return postgres.Open(ctx, cfg.DatabaseURL, postgres.Options{
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: 30 * time.Minute,
		})
	default:
		return memory.NewMemoryLedgerStore(), nil
	}
}
