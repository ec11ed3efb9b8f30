package main

import (
	"context"
	"errors"
	"os"

	"finboard/internal/amqp"
	"finboard/internal/cli"
	"finboard/internal/log"
	"finboard/internal/sheets"
	gsheet "finboard/internal/sheets/google"
	"finboard/internal/sheets/memory"
	"finboard/internal/storage"
	"finboard/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required for the export worker")
		os.Exit(1)
	}
	if cfg.DataBackend != "sqlite" {
		logger.Error("The export worker reads the shared SQLite database; set DATA_BACKEND=sqlite",
			"backend", cfg.DataBackend)
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var exporter sheets.TransactionExporter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewFromEnv(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled",
			"spreadsheet_id", cfg.GoogleSpreadsheetID,
			"sheet", cfg.GoogleSheetName)
	} else {
		exporter = memory.New()
		logger.Info("GOOGLE_SPREADSHEET_ID not set; exporting to memory only")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	exportWorker := worker.NewExportWorker(repo, exporter)

	logger.Info("Starting finboard-worker",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)

	err = amqpClient.ConsumeTransactionsSynced(ctx, exportWorker.HandleTransactionsSynced)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
