package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finboard/internal/backend"
	"finboard/internal/cli"
	apphttp "finboard/internal/http"
	"finboard/internal/log"
	"finboard/internal/plaid"
	"finboard/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	ctx, stop := cli.SignalContext()
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	be, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	if !cfg.PlaidConfigured() {
		logger.Warn("Plaid credentials not set; bank linking will fail until PLAID_CLIENT_ID and PLAID_SECRET are provided")
	}
	plaidClient := plaid.NewClient(plaid.Config{
		ClientID:    cfg.PlaidClientID,
		Secret:      cfg.PlaidSecret,
		Environment: cfg.PlaidEnv,
		BaseURL:     cfg.PlaidBaseURL,
		ClientName:  cfg.PlaidClientName,
		HTTPClient:  &http.Client{Timeout: cfg.PlaidTimeout},
	})

	syncService := services.NewSyncService(plaidClient, be.Store, be.Publisher, services.SyncConfig{
		TransactionWindowDays: cfg.SyncWindowDays,
	})

	readiness := []apphttp.ReadinessCheck{{Name: "store", Check: be.Store.Ping}}
	if be.AMQP != nil {
		readiness = append(readiness, apphttp.ReadinessCheck{
			Name: "amqp",
			Check: func(context.Context) error {
				if !be.AMQP.IsConnected() {
					return errors.New("not connected")
				}
				return nil
			},
		})
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Dependencies{
		LinkTokens:   plaidClient,
		Sync:         syncService,
		Transactions: services.NewTransactionService(be.Store),
		Readiness:    readiness,
	}, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger.WithComponent(log.ComponentHTTP),
	})

	logger.Info("Starting finboard server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"plaid_env", cfg.PlaidEnv,
		"amqp_enabled", be.Publisher != nil)

	if err := cli.RunHTTPServer(ctx, logger.Logger, srv, 30*time.Second); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
