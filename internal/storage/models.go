package storage

import "database/sql"

// Row types mirror the tables; amounts and balances are decimal strings.

type Account struct {
	ID               int64
	PlaidAccountID   string
	Name             string
	OfficialName     sql.NullString
	Type             string
	Subtype          sql.NullString
	BalanceAvailable sql.NullString
	BalanceCurrent   sql.NullString
	BalanceLimit     sql.NullString
}

type Transaction struct {
	ID                 int64
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
