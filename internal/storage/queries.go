package storage

import (
	"context"
	"database/sql"
	"encoding/json"
)

const accountColumns = `id, plaid_account_id, name, official_name, type, subtype,
    balance_available, balance_current, balance_limit`

const transactionColumns = `id, plaid_transaction_id, account_id, amount, name, merchant_name,
    date, category_primary, category_detailed, pending, user_category`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (Account, error) {
	var a Account
	err := row.Scan(
		&a.ID,
		&a.PlaidAccountID,
		&a.Name,
		&a.OfficialName,
		&a.Type,
		&a.Subtype,
		&a.BalanceAvailable,
		&a.BalanceCurrent,
		&a.BalanceLimit,
	)
	return a, err
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var t Transaction
	err := row.Scan(
		&t.ID,
		&t.PlaidTransactionID,
		&t.AccountID,
		&t.Amount,
		&t.Name,
		&t.MerchantName,
		&t.Date,
		&t.CategoryPrimary,
		&t.CategoryDetailed,
		&t.Pending,
		&t.UserCategory,
	)
	return t, err
}

type AccountParams struct {
	PlaidAccountID   string
	Name             string
	OfficialName     sql.NullString
	Type             string
	Subtype          sql.NullString
	BalanceAvailable sql.NullString
	BalanceCurrent   sql.NullString
	BalanceLimit     sql.NullString
}

const insertAccountIgnore = `INSERT INTO accounts (
    plaid_account_id, name, official_name, type, subtype,
    balance_available, balance_current, balance_limit
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(plaid_account_id) DO NOTHING`

// InsertAccountIgnore returns the number of inserted rows: 0 when the
// aggregator id already exists.
func (q *Queries) InsertAccountIgnore(ctx context.Context, arg AccountParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertAccountIgnore,
		arg.PlaidAccountID,
		arg.Name,
		arg.OfficialName,
		arg.Type,
		arg.Subtype,
		arg.BalanceAvailable,
		arg.BalanceCurrent,
		arg.BalanceLimit,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const updateAccountByPlaidID = `UPDATE accounts SET
    name = ?, official_name = ?, type = ?, subtype = ?,
    balance_available = ?, balance_current = ?, balance_limit = ?,
    updated_at = CURRENT_TIMESTAMP
WHERE plaid_account_id = ?`

func (q *Queries) UpdateAccountByPlaidID(ctx context.Context, arg AccountParams) error {
	_, err := q.db.ExecContext(ctx, updateAccountByPlaidID,
		arg.Name,
		arg.OfficialName,
		arg.Type,
		arg.Subtype,
		arg.BalanceAvailable,
		arg.BalanceCurrent,
		arg.BalanceLimit,
		arg.PlaidAccountID,
	)
	return err
}

const getAccountByPlaidID = `SELECT ` + accountColumns + ` FROM accounts WHERE plaid_account_id = ?`

func (q *Queries) GetAccountByPlaidID(ctx context.Context, plaidID string) (Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx, getAccountByPlaidID, plaidID))
}

const listAccounts = `SELECT ` + accountColumns + ` FROM accounts ORDER BY id`

func (q *Queries) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := q.db.QueryContext(ctx, listAccounts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type InsertTransactionParams struct {
	PlaidTransactionID string
	AccountID          string
	Amount             string
	Name               string
	MerchantName       sql.NullString
	Date               string
	CategoryPrimary    sql.NullString
	CategoryDetailed   sql.NullString
	Pending            bool
	UserCategory       string
}

const insertTransactionIgnore = `INSERT INTO transactions (
    plaid_transaction_id, account_id, amount, name, merchant_name,
    date, category_primary, category_detailed, pending, user_category
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(plaid_transaction_id) DO NOTHING`

func (q *Queries) InsertTransactionIgnore(ctx context.Context, arg InsertTransactionParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertTransactionIgnore,
		arg.PlaidTransactionID,
		arg.AccountID,
		arg.Amount,
		arg.Name,
		arg.MerchantName,
		arg.Date,
		arg.CategoryPrimary,
		arg.CategoryDetailed,
		arg.Pending,
		arg.UserCategory,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getTransactionByPlaidID = `SELECT ` + transactionColumns + ` FROM transactions WHERE plaid_transaction_id = ?`

func (q *Queries) GetTransactionByPlaidID(ctx context.Context, plaidID string) (Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransactionByPlaidID, plaidID))
}

type UpdateTransactionParams struct {
	ID           int64
	Name         sql.NullString
	UserCategory sql.NullString
	Amount       sql.NullString
}

const updateTransaction = `UPDATE transactions SET
    name = COALESCE(?, name),
    user_category = COALESCE(?, user_category),
    amount = COALESCE(?, amount),
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?
RETURNING ` + transactionColumns

func (q *Queries) UpdateTransaction(ctx context.Context, arg UpdateTransactionParams) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, updateTransaction,
		arg.Name,
		arg.UserCategory,
		arg.Amount,
		arg.ID,
	)
	return scanTransaction(row)
}

const listRecentTransactions = `SELECT ` + transactionColumns + ` FROM transactions
ORDER BY date DESC, id DESC
LIMIT ?`

func (q *Queries) ListRecentTransactions(ctx context.Context, limit int64) ([]Transaction, error) {
	return q.listTransactions(ctx, listRecentTransactions, limit)
}

const listTransactionsByPlaidIDs = `SELECT ` + transactionColumns + ` FROM transactions
WHERE plaid_transaction_id IN (SELECT value FROM json_each(?))
ORDER BY date, id`

func (q *Queries) ListTransactionsByPlaidIDs(ctx context.Context, plaidIDs []string) ([]Transaction, error) {
	ids, err := json.Marshal(plaidIDs)
	if err != nil {
		return nil, err
	}
	return q.listTransactions(ctx, listTransactionsByPlaidIDs, string(ids))
}

func (q *Queries) listTransactions(ctx context.Context, query string, args ...any) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
