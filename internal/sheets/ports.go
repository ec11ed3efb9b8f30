package sheets

import (
	"context"

	"finboard/internal/core"
)

// TransactionExporter appends transactions to an external spreadsheet.
type TransactionExporter interface {
	// Export appends one row per transaction and returns a reference to
	// the written range.
	Export(ctx context.Context, txs []core.Transaction) (rangeRef string, err error)
}

// Header names the exported columns in order.
var Header = []any{
	"date",
	"name",
	"merchant",
	"amount",
	"user_category",
	"category_primary",
	"pending",
	"plaid_transaction_id",
}

// Row renders t in Header order.
func Row(t core.Transaction) []any {
	return []any{
		t.Date.String(),
		t.Name,
		t.MerchantName,
		t.Amount.StringFixed(2),
		t.UserCategory,
		t.CategoryPrimary,
		t.Pending,
		t.PlaidID,
	}
}

func Rows(txs []core.Transaction) [][]any {
	rows := make([][]any, 0, len(txs))
	for _, t := range txs {
		rows = append(rows, Row(t))
	}
	return rows
}
