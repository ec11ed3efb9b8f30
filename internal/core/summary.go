package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// OverviewTransactionLimit caps the transactions shown on the dashboard.
	OverviewTransactionLimit = 50
	// OverviewWindowDays is the lookback for income and expense totals.
	OverviewWindowDays = 30
)

// SyncResult summarizes one exchange-and-sync run.
type SyncResult struct {
	AccountsWritten     int
	TransactionsWritten int
	Message             string
	// InsertedTransactionIDs holds the aggregator ids of new transactions.
	InsertedTransactionIDs []string
}

// SyncMessage composes the user-facing summary for a sync.
func SyncMessage(accounts, transactions int) string {
	switch {
	case accounts > 0 && transactions > 0:
		return fmt.Sprintf("🎉 Success! Connected %d accounts with %d transactions.", accounts, transactions)
	case accounts > 0:
		return fmt.Sprintf("🎉 Success! Connected %d accounts. Transactions may take a few minutes to appear.", accounts)
	default:
		return "Bank connected successfully!"
	}
}

// Overview is the dashboard summary.
type Overview struct {
	TotalBalance     decimal.Decimal `json:"total_balance"`
	MonthlyIncome    decimal.Decimal `json:"monthly_income"`
	MonthlyExpenses  decimal.Decimal `json:"monthly_expenses"`
	TransactionCount int             `json:"transaction_count"`
	Accounts         []Account       `json:"accounts"`
	Transactions     []Transaction   `json:"transactions"`
}

// BuildOverview sums current balances across accounts and splits the
// transactions dated within the last OverviewWindowDays into income and
// expenses. Expenses are reported as a positive total.
func BuildOverview(accounts []Account, txs []Transaction, now time.Time) Overview {
	ov := Overview{
		TotalBalance:     decimal.Zero,
		MonthlyIncome:    decimal.Zero,
		MonthlyExpenses:  decimal.Zero,
		TransactionCount: len(txs),
		Accounts:         accounts,
		Transactions:     txs,
	}
	if ov.Accounts == nil {
		ov.Accounts = []Account{}
	}
	if ov.Transactions == nil {
		ov.Transactions = []Transaction{}
	}

	for _, a := range accounts {
		if a.Current.Valid {
			ov.TotalBalance = ov.TotalBalance.Add(a.Current.Decimal)
		}
	}

	cutoff := NewDate(now).AddDate(0, 0, -OverviewWindowDays)
	spent := decimal.Zero
	for _, tx := range txs {
		if tx.Date.Before(cutoff) {
			continue
		}
		switch {
		case tx.Amount.IsPositive():
			ov.MonthlyIncome = ov.MonthlyIncome.Add(tx.Amount)
		case tx.Amount.IsNegative():
			spent = spent.Add(tx.Amount)
		}
	}
	ov.MonthlyExpenses = spent.Abs()
	return ov
}
