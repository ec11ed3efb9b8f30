package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"finboard/internal/core"
)

var (
	// ErrExchangeFailed means the public token could not be exchanged.
	// Nothing has been written when it is returned.
	ErrExchangeFailed = errors.New("token exchange failed")
	// ErrFetchFailed means the account list could not be fetched after a
	// successful exchange. Nothing has been written when it is returned.
	ErrFetchFailed = errors.New("failed to fetch accounts")
	// ErrSyncInterrupted means the context ended mid-run. Writes made before
	// it are kept.
	ErrSyncInterrupted = errors.New("sync interrupted")
)

// DefaultTransactionWindowDays is how far back transactions are requested.
const DefaultTransactionWindowDays = 90

// SyncConfig holds the tunables of a sync run.
type SyncConfig struct {
	// TransactionWindowDays is the lookback for transaction retrieval
	// (default: 90).
	TransactionWindowDays int

	// Now returns the current time (default: time.Now).
	Now func() time.Time
}

func (c SyncConfig) withDefaults() SyncConfig {
	if c.TransactionWindowDays <= 0 {
		c.TransactionWindowDays = DefaultTransactionWindowDays
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// SyncService runs the exchange-and-sync flow for a newly linked bank.
type SyncService struct {
	aggregator Aggregator
	store      Store
	publisher  Publisher
	config     SyncConfig
}

// NewSyncService wires a sync service. publisher may be nil.
func NewSyncService(aggregator Aggregator, store Store, publisher Publisher, config SyncConfig) *SyncService {
	return &SyncService{
		aggregator: aggregator,
		store:      store,
		publisher:  publisher,
		config:     config.withDefaults(),
	}
}

// ExchangeAndSync exchanges publicToken for an access token, then stores the
// linked accounts and the transactions of the configured window. Account
// and transaction storage errors are logged and skipped; only a missing
// token, a failed exchange, a failed account fetch or a cancelled ctx abort
// the run. Writes made before a failure are kept.
func (s *SyncService) ExchangeAndSync(ctx context.Context, publicToken string) (core.SyncResult, error) {
	if strings.TrimSpace(publicToken) == "" {
		return core.SyncResult{}, fmt.Errorf("%w: no public token provided", core.ErrBadRequest)
	}

	start := time.Now()

	accessToken, err := s.aggregator.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		slog.ErrorContext(ctx, "Public token exchange failed", "error", err)
		return core.SyncResult{}, fmt.Errorf("%w: %w", ErrExchangeFailed, err)
	}

	accounts, err := s.aggregator.GetAccounts(ctx, accessToken)
	if err != nil {
		slog.ErrorContext(ctx, "Account fetch failed", "error", err)
		return core.SyncResult{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	if err := ctx.Err(); err != nil {
		return core.SyncResult{}, fmt.Errorf("%w before storing accounts: %w", ErrSyncInterrupted, err)
	}

	var result core.SyncResult
	result.AccountsWritten = s.storeAccounts(ctx, accounts)

	window := core.TrailingWindow(s.config.Now(), s.config.TransactionWindowDays)
	raws, err := s.aggregator.GetTransactions(ctx, accessToken, window)
	if err != nil {
		slog.WarnContext(ctx, "Transaction fetch failed, continuing without transactions",
			"start_date", window.Start.String(),
			"end_date", window.End.String(),
			"error", err)
		raws = nil
	}

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("%w before storing transactions: %w", ErrSyncInterrupted, err)
	}

	result.InsertedTransactionIDs = s.storeTransactions(ctx, raws)
	result.TransactionsWritten = len(result.InsertedTransactionIDs)
	result.Message = core.SyncMessage(result.AccountsWritten, result.TransactionsWritten)

	slog.InfoContext(ctx, "Sync completed",
		"accounts_fetched", len(accounts),
		"accounts_written", result.AccountsWritten,
		"transactions_fetched", len(raws),
		"transactions_written", result.TransactionsWritten,
		"duration_ms", time.Since(start).Milliseconds())

	s.publish(ctx, result)
	return result, nil
}

func (s *SyncService) storeAccounts(ctx context.Context, accounts []core.Account) int {
	written := 0
	for _, a := range accounts {
		created, err := s.store.UpsertAccount(ctx, a)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to store account",
				"plaid_account_id", a.PlaidID, "error", err)
			continue
		}
		if created {
			written++
		}
	}
	return written
}

// storeTransactions returns the aggregator ids of the rows it inserted.
func (s *SyncService) storeTransactions(ctx context.Context, raws []core.RawTransaction) []string {
	var inserted []string
	for _, raw := range raws {
		tx := core.NewTransaction(raw)
		ok, err := s.store.InsertTransactionIfAbsent(ctx, tx)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to store transaction",
				"plaid_transaction_id", raw.PlaidID, "error", err)
			continue
		}
		if ok {
			inserted = append(inserted, tx.PlaidID)
		}
	}
	return inserted
}

func (s *SyncService) publish(ctx context.Context, result core.SyncResult) {
	if s.publisher == nil || result.TransactionsWritten == 0 {
		return
	}
	if err := s.publisher.PublishTransactionsSynced(ctx, result); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync event",
			"transactions", result.TransactionsWritten, "error", err)
	}
}
