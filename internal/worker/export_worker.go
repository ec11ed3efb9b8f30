// Package worker consumes sync events and exports the new transactions.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finboard/internal/amqp"
	"finboard/internal/core"
	"finboard/internal/sheets"
)

// TransactionLister resolves aggregator ids to stored transactions.
type TransactionLister interface {
	ListTransactionsByPlaidIDs(ctx context.Context, plaidIDs []string) ([]core.Transaction, error)
}

// ExportWorker appends the transactions named by a sync event to the
// export spreadsheet.
type ExportWorker struct {
	store    TransactionLister
	exporter sheets.TransactionExporter
}

func NewExportWorker(store TransactionLister, exporter sheets.TransactionExporter) *ExportWorker {
	return &ExportWorker{store: store, exporter: exporter}
}

// HandleTransactionsSynced loads the rows named in msg and exports them.
// A returned error requeues the message.
func (w *ExportWorker) HandleTransactionsSynced(ctx context.Context, msg *amqp.TransactionsSyncedMessage) error {
	start := time.Now()
	slog.InfoContext(ctx, "Processing transactions synced message",
		"transactions", len(msg.TransactionIDs),
		"published_at", msg.Timestamp)

	txs, err := w.store.ListTransactionsByPlaidIDs(ctx, msg.TransactionIDs)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}
	if missing := len(msg.TransactionIDs) - len(txs); missing > 0 {
		slog.WarnContext(ctx, "Some synced transactions are not stored",
			"requested", len(msg.TransactionIDs),
			"missing", missing)
	}
	if len(txs) == 0 {
		return nil
	}

	ref, err := w.exporter.Export(ctx, txs)
	if err != nil {
		return fmt.Errorf("export transactions: %w", err)
	}

	slog.InfoContext(ctx, "Exported synced transactions",
		"rows", len(txs),
		"range", ref,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}
