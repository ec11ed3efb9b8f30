package services

import (
	"context"

	"finboard/internal/core"
)

// Aggregator is the subset of the bank-data API used by a sync.
type Aggregator interface {
	ExchangePublicToken(ctx context.Context, publicToken string) (string, error)
	GetAccounts(ctx context.Context, accessToken string) ([]core.Account, error)
	GetTransactions(ctx context.Context, accessToken string, window core.DateRange) ([]core.RawTransaction, error)
}

// Store persists accounts and transactions. Writes keyed on aggregator ids
// are atomic: concurrent callers never produce duplicate rows.
type Store interface {
	FindAccountByPlaidID(ctx context.Context, plaidID string) (core.Account, bool, error)
	// UpsertAccount reports true when the account was inserted and false
	// when an existing row was updated.
	UpsertAccount(ctx context.Context, a core.Account) (bool, error)
	ListAccounts(ctx context.Context) ([]core.Account, error)

	FindTransactionByPlaidID(ctx context.Context, plaidID string) (core.Transaction, bool, error)
	// InsertTransactionIfAbsent reports false, without error, when the
	// aggregator id is already stored.
	InsertTransactionIfAbsent(ctx context.Context, t core.Transaction) (bool, error)
	// UpdateTransaction returns core.ErrNotFound when id does not exist.
	UpdateTransaction(ctx context.Context, id int64, edit core.TransactionEdit) (core.Transaction, error)
	ListRecentTransactions(ctx context.Context, limit int) ([]core.Transaction, error)
	ListTransactionsByPlaidIDs(ctx context.Context, plaidIDs []string) ([]core.Transaction, error)
}

// Publisher announces completed syncs to downstream consumers.
type Publisher interface {
	PublishTransactionsSynced(ctx context.Context, result core.SyncResult) error
}
