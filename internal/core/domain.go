package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type (
	// Balances mirrors the aggregator's balance block. Any of the three may be
	// absent for a given account type.
	Balances struct {
		Available decimal.NullDecimal `json:"balance_available"`
		Current   decimal.NullDecimal `json:"balance_current"`
		Limit     decimal.NullDecimal `json:"balance_limit"`
	}

	Account struct {
		ID           int64  `json:"id,omitempty"`
		PlaidID      string `json:"plaid_account_id"`
		Name         string `json:"name"`
		OfficialName string `json:"official_name,omitempty"`
		Type         string `json:"type"`
		Subtype      string `json:"subtype,omitempty"`
		Balances
	}

	// RawTransaction is a transaction as reported by the aggregator: expenses
	// carry a positive amount.
	RawTransaction struct {
		PlaidID      string
		AccountID    string
		Amount       decimal.Decimal
		Name         string
		MerchantName string
		Date         time.Time
		Category     []string
		Pending      bool
	}

	// Transaction is the stored form: inflows are positive, outflows negative.
	Transaction struct {
		ID               int64           `json:"id,omitempty"`
		PlaidID          string          `json:"plaid_transaction_id"`
		AccountID        string          `json:"account_id"`
		Amount           decimal.Decimal `json:"amount"`
		Name             string          `json:"name"`
		MerchantName     string          `json:"merchant_name,omitempty"`
		Date             Date            `json:"date"`
		CategoryPrimary  string          `json:"category_primary,omitempty"`
		CategoryDetailed string          `json:"category_detailed,omitempty"`
		Pending          bool            `json:"pending"`
		UserCategory     string          `json:"user_category"`
	}

	// TransactionEdit carries the user-editable fields. Nil fields are left
	// untouched.
	TransactionEdit struct {
		Name         *string
		UserCategory *string
		Amount       *decimal.Decimal
	}

	// DateRange is an inclusive range of calendar days.
	DateRange struct {
		Start Date
		End   Date
	}

	Date struct {
		time.Time
	}
)

var (
	ErrBadRequest      = errors.New("bad request")
	ErrNotFound        = errors.New("not found")
	ErrEmptyPlaidID    = errors.New("empty aggregator id")
	ErrEmptyAccountID  = errors.New("empty account id")
	ErrInvalidDate     = errors.New("invalid date")
	ErrEmptyEdit       = errors.New("no editable field provided")
	ErrUnknownCategory = errors.New("unknown category")
)

// NewDate truncates t to its calendar day in UTC.
func NewDate(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// TrailingWindow returns the range of the last days ending on now's date.
func TrailingWindow(now time.Time, days int) DateRange {
	end := NewDate(now)
	return DateRange{
		Start: Date{Time: end.AddDate(0, 0, -days)},
		End:   end,
	}
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.PlaidID) == "" {
		return ErrEmptyPlaidID
	}
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.PlaidID) == "" {
		return ErrEmptyPlaidID
	}
	if strings.TrimSpace(t.AccountID) == "" {
		return ErrEmptyAccountID
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// NewTransaction derives the stored transaction from an aggregator record:
// the amount is converted to the ledger sign, the category list is flattened
// and a user category is suggested.
func NewTransaction(raw RawTransaction) Transaction {
	tx := Transaction{
		PlaidID:          raw.PlaidID,
		AccountID:        raw.AccountID,
		Amount:           ToLedgerAmount(raw.Amount),
		Name:             raw.Name,
		MerchantName:     raw.MerchantName,
		Date:             NewDate(raw.Date),
		CategoryDetailed: strings.Join(raw.Category, ", "),
		Pending:          raw.Pending,
		UserCategory:     SuggestCategory(raw),
	}
	if len(raw.Category) > 0 {
		tx.CategoryPrimary = raw.Category[0]
	}
	return tx
}

func (e TransactionEdit) Validate() error {
	if e.Name == nil && e.UserCategory == nil && e.Amount == nil {
		return ErrEmptyEdit
	}
	if e.UserCategory != nil && !IsKnownCategory(*e.UserCategory) {
		return ErrUnknownCategory
	}
	return nil
}

// Apply returns t with the edit's non-nil fields applied.
func (e TransactionEdit) Apply(t Transaction) Transaction {
	if e.Name != nil {
		t.Name = *e.Name
	}
	if e.UserCategory != nil {
		t.UserCategory = *e.UserCategory
	}
	if e.Amount != nil {
		t.Amount = *e.Amount
	}
	return t
}
