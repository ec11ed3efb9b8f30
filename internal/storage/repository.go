package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"finboard/internal/core"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// SQLiteRepository stores accounts and transactions in a SQLite database.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) FindAccountByPlaidID(ctx context.Context, plaidID string) (core.Account, bool, error) {
	row, err := r.queries.GetAccountByPlaidID(ctx, plaidID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, false, nil
	}
	if err != nil {
		return core.Account{}, false, fmt.Errorf("get account %s: %w", plaidID, err)
	}
	a, err := accountFromRow(row)
	if err != nil {
		return core.Account{}, false, err
	}
	return a, true, nil
}

// UpsertAccount inserts the account or, when its aggregator id exists,
// refreshes the stored fields. Both statements run in one transaction.
func (r *SQLiteRepository) UpsertAccount(ctx context.Context, a core.Account) (bool, error) {
	if err := a.Validate(); err != nil {
		return false, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin upsert account: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	params := accountParams(a)

	n, err := q.InsertAccountIgnore(ctx, params)
	if err != nil {
		return false, fmt.Errorf("insert account %s: %w", a.PlaidID, err)
	}
	created := n == 1
	if !created {
		if err := q.UpdateAccountByPlaidID(ctx, params); err != nil {
			return false, fmt.Errorf("update account %s: %w", a.PlaidID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit upsert account: %w", err)
	}

	slog.DebugContext(ctx, "Account stored", "plaid_account_id", a.PlaidID, "created", created)
	return created, nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.queries.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	accounts := make([]core.Account, 0, len(rows))
	for _, row := range rows {
		a, err := accountFromRow(row)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

func (r *SQLiteRepository) FindTransactionByPlaidID(ctx context.Context, plaidID string) (core.Transaction, bool, error) {
	row, err := r.queries.GetTransactionByPlaidID(ctx, plaidID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, false, nil
	}
	if err != nil {
		return core.Transaction{}, false, fmt.Errorf("get transaction %s: %w", plaidID, err)
	}
	t, err := transactionFromRow(row)
	if err != nil {
		return core.Transaction{}, false, err
	}
	return t, true, nil
}

// InsertTransactionIfAbsent reports whether a row was written; an existing
// aggregator id leaves the stored row untouched.
func (r *SQLiteRepository) InsertTransactionIfAbsent(ctx context.Context, t core.Transaction) (bool, error) {
	if err := t.Validate(); err != nil {
		return false, err
	}

	n, err := r.queries.InsertTransactionIgnore(ctx, InsertTransactionParams{
		PlaidTransactionID: t.PlaidID,
		AccountID:          t.AccountID,
		Amount:             t.Amount.String(),
		Name:               t.Name,
		MerchantName:       nullString(t.MerchantName),
		Date:               t.Date.String(),
		CategoryPrimary:    nullString(t.CategoryPrimary),
		CategoryDetailed:   nullString(t.CategoryDetailed),
		Pending:            t.Pending,
		UserCategory:       t.UserCategory,
	})
	if err != nil {
		return false, fmt.Errorf("insert transaction %s: %w", t.PlaidID, err)
	}
	return n == 1, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, id int64, edit core.TransactionEdit) (core.Transaction, error) {
	params := UpdateTransactionParams{ID: id}
	if edit.Name != nil {
		params.Name = sql.NullString{String: *edit.Name, Valid: true}
	}
	if edit.UserCategory != nil {
		params.UserCategory = sql.NullString{String: *edit.UserCategory, Valid: true}
	}
	if edit.Amount != nil {
		params.Amount = sql.NullString{String: edit.Amount.String(), Valid: true}
	}

	row, err := r.queries.UpdateTransaction(ctx, params)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", id, err)
	}

	slog.InfoContext(ctx, "Transaction updated", "id", id)
	return transactionFromRow(row)
}

func (r *SQLiteRepository) ListRecentTransactions(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.queries.ListRecentTransactions(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list recent transactions: %w", err)
	}
	return transactionsFromRows(rows)
}

func (r *SQLiteRepository) ListTransactionsByPlaidIDs(ctx context.Context, plaidIDs []string) ([]core.Transaction, error) {
	if len(plaidIDs) == 0 {
		return nil, nil
	}
	rows, err := r.queries.ListTransactionsByPlaidIDs(ctx, plaidIDs)
	if err != nil {
		return nil, fmt.Errorf("list transactions by plaid id: %w", err)
	}
	return transactionsFromRows(rows)
}

func accountParams(a core.Account) AccountParams {
	return AccountParams{
		PlaidAccountID:   a.PlaidID,
		Name:             a.Name,
		OfficialName:     nullString(a.OfficialName),
		Type:             a.Type,
		Subtype:          nullString(a.Subtype),
		BalanceAvailable: nullDecimalString(a.Available),
		BalanceCurrent:   nullDecimalString(a.Current),
		BalanceLimit:     nullDecimalString(a.Limit),
	}
}

func accountFromRow(row Account) (core.Account, error) {
	a := core.Account{
		ID:           row.ID,
		PlaidID:      row.PlaidAccountID,
		Name:         row.Name,
		OfficialName: row.OfficialName.String,
		Type:         row.Type,
		Subtype:      row.Subtype.String,
	}
	var err error
	if a.Available, err = parseNullDecimal(row.BalanceAvailable); err != nil {
		return core.Account{}, fmt.Errorf("account %s available balance: %w", row.PlaidAccountID, err)
	}
	if a.Current, err = parseNullDecimal(row.BalanceCurrent); err != nil {
		return core.Account{}, fmt.Errorf("account %s current balance: %w", row.PlaidAccountID, err)
	}
	if a.Limit, err = parseNullDecimal(row.BalanceLimit); err != nil {
		return core.Account{}, fmt.Errorf("account %s limit: %w", row.PlaidAccountID, err)
	}
	return a, nil
}

func transactionFromRow(row Transaction) (core.Transaction, error) {
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d amount %q: %w", row.ID, row.Amount, err)
	}
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d date %q: %w", row.ID, row.Date, err)
	}
	return core.Transaction{
		ID:               row.ID,
		PlaidID:          row.PlaidTransactionID,
		AccountID:        row.AccountID,
		Amount:           amount,
		Name:             row.Name,
		MerchantName:     row.MerchantName.String,
		Date:             date,
		CategoryPrimary:  row.CategoryPrimary.String,
		CategoryDetailed: row.CategoryDetailed.String,
		Pending:          row.Pending,
		UserCategory:     row.UserCategory,
	}, nil
}

func transactionsFromRows(rows []Transaction) ([]core.Transaction, error) {
	txs := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := transactionFromRow(row)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullDecimalString(d decimal.NullDecimal) sql.NullString {
	if !d.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Decimal.String(), Valid: true}
}

func parseNullDecimal(s sql.NullString) (decimal.NullDecimal, error) {
	if !s.Valid || s.String == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}
