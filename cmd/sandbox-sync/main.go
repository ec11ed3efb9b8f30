// Command sandbox-sync links a Plaid sandbox institution and runs one full
// sync without the browser widget.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	"finboard/internal/backend"
	"finboard/internal/cli"
	"finboard/internal/log"
	"finboard/internal/plaid"
	"finboard/internal/services"
)

func main() {
	institution := flag.String("institution", "ins_109508", "sandbox institution id")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall time limit")
	flag.Parse()

	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentSync)

	if cfg.PlaidEnv != plaid.Sandbox {
		logger.Error("sandbox-sync only runs against the sandbox environment", "plaid_env", cfg.PlaidEnv)
		os.Exit(1)
	}
	if !cfg.PlaidConfigured() {
		logger.Error("PLAID_CLIENT_ID and PLAID_SECRET are required")
		os.Exit(1)
	}

	sigCtx, stop := cli.SignalContext()
	defer stop()
	ctx, cancel := context.WithTimeout(sigCtx, *timeout)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	be, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err)
		os.Exit(1)
	}
	defer be.Cleanup()

	client := plaid.NewClient(plaid.Config{
		ClientID:    cfg.PlaidClientID,
		Secret:      cfg.PlaidSecret,
		Environment: cfg.PlaidEnv,
		BaseURL:     cfg.PlaidBaseURL,
		ClientName:  cfg.PlaidClientName,
		HTTPClient:  &http.Client{Timeout: cfg.PlaidTimeout},
	})

	publicToken, err := client.CreateSandboxPublicToken(ctx, *institution)
	if err != nil {
		logger.Error("Sandbox public token creation failed", "error", err, "institution", *institution)
		os.Exit(1)
	}

	result, err := services.NewSyncService(client, be.Store, be.Publisher, services.SyncConfig{
		TransactionWindowDays: cfg.SyncWindowDays,
	}).ExchangeAndSync(ctx, publicToken)
	if err != nil {
		logger.Error("Sync failed", "error", err)
		os.Exit(1)
	}

	log.NewStructuredLogger(logger).LogSyncCompleted(ctx, result.AccountsWritten, result.TransactionsWritten, result.Message)
}
