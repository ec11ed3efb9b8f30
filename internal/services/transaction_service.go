package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finboard/internal/core"
)

// TransactionService serves the user-facing read and edit paths.
type TransactionService struct {
	store Store
	now   func() time.Time
}

func NewTransactionService(store Store) *TransactionService {
	return &TransactionService{store: store, now: time.Now}
}

// Update applies a user edit. Invalid edits are rejected before touching the
// store and match core.ErrBadRequest.
func (s *TransactionService) Update(ctx context.Context, id int64, edit core.TransactionEdit) (core.Transaction, error) {
	if id <= 0 {
		return core.Transaction{}, fmt.Errorf("%w: invalid transaction id %d", core.ErrBadRequest, id)
	}
	if err := edit.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %w", core.ErrBadRequest, err)
	}

	tx, err := s.store.UpdateTransaction(ctx, id, edit)
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction edited",
		"id", id,
		"user_category", tx.UserCategory)
	return tx, nil
}

// Overview builds the dashboard summary from stored accounts and the most
// recent transactions.
func (s *TransactionService) Overview(ctx context.Context) (core.Overview, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return core.Overview{}, fmt.Errorf("list accounts: %w", err)
	}
	txs, err := s.store.ListRecentTransactions(ctx, core.OverviewTransactionLimit)
	if err != nil {
		return core.Overview{}, fmt.Errorf("list transactions: %w", err)
	}
	return core.BuildOverview(accounts, txs, s.now()), nil
}

// ByPlaidIDs resolves aggregator ids to stored transactions, skipping
// unknown ids.
func (s *TransactionService) ByPlaidIDs(ctx context.Context, plaidIDs []string) ([]core.Transaction, error) {
	txs, err := s.store.ListTransactionsByPlaidIDs(ctx, plaidIDs)
	if err != nil {
		return nil, fmt.Errorf("list transactions by plaid id: %w", err)
	}
	return txs, nil
}
