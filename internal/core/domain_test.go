package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewTransactionFromAggregator(t *testing.T) {
	in := RawTransaction{
		PlaidID:      "t1",
		AccountID:    "a1",
		Amount:       decimal.RequireFromString("25.50"),
		Name:         "Starbucks",
		MerchantName: "Starbucks",
		Date:         time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC),
		Category:     []string{"Food and Drink", "Restaurants", "Coffee Shop"},
		Pending:      true,
	}

	tx := NewTransaction(in)

	if !tx.Amount.Equal(decimal.RequireFromString("-25.50")) {
		t.Fatalf("amount = %s, want -25.50", tx.Amount)
	}
	if tx.UserCategory != CategoryFoodDining {
		t.Fatalf("user category = %q", tx.UserCategory)
	}
	if tx.CategoryPrimary != "Food and Drink" {
		t.Fatalf("primary = %q", tx.CategoryPrimary)
	}
	if tx.CategoryDetailed != "Food and Drink, Restaurants, Coffee Shop" {
		t.Fatalf("detailed = %q", tx.CategoryDetailed)
	}
	if tx.Date.String() != "2024-03-14" || !tx.Pending || tx.AccountID != "a1" || tx.PlaidID != "t1" {
		t.Fatalf("unexpected transaction: %+v", tx)
	}
	if err := tx.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestNewTransactionWithoutCategory(t *testing.T) {
	tx := NewTransaction(RawTransaction{PlaidID: "t", AccountID: "a", Amount: decimal.NewFromInt(-10), Date: time.Now()})
	if tx.CategoryPrimary != "" || tx.CategoryDetailed != "" {
		t.Fatalf("expected empty categories, got %q / %q", tx.CategoryPrimary, tx.CategoryDetailed)
	}
	if tx.UserCategory != CategoryIncome || !tx.Amount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected: %+v", tx)
	}
}

func TestTransactionValidate(t *testing.T) {
	valid := Transaction{PlaidID: "t", AccountID: "a", Date: NewDate(time.Now())}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	noID := valid
	noID.PlaidID = " "
	if err := noID.Validate(); !errors.Is(err, ErrEmptyPlaidID) {
		t.Fatalf("expected ErrEmptyPlaidID, got %v", err)
	}

	noAccount := valid
	noAccount.AccountID = ""
	if err := noAccount.Validate(); !errors.Is(err, ErrEmptyAccountID) {
		t.Fatalf("expected ErrEmptyAccountID, got %v", err)
	}

	noDate := valid
	noDate.Date = Date{}
	if err := noDate.Validate(); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestTransactionEdit(t *testing.T) {
	if err := (TransactionEdit{}).Validate(); !errors.Is(err, ErrEmptyEdit) {
		t.Fatalf("expected ErrEmptyEdit, got %v", err)
	}

	bogus := "Groceries"
	if err := (TransactionEdit{UserCategory: &bogus}).Validate(); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}

	name := "Coffee with Sam"
	cat := CategoryEntertainment
	amt := decimal.RequireFromString("-4.75")
	edit := TransactionEdit{Name: &name, UserCategory: &cat, Amount: &amt}
	if err := edit.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	got := edit.Apply(Transaction{PlaidID: "t1", Name: "SQ *COFFEE", UserCategory: CategoryFoodDining, Amount: decimal.NewFromInt(-5)})
	if got.Name != name || got.UserCategory != cat || !got.Amount.Equal(amt) || got.PlaidID != "t1" {
		t.Fatalf("unexpected apply result: %+v", got)
	}

	partial := TransactionEdit{Name: &name}.Apply(Transaction{UserCategory: CategoryOther, Amount: decimal.NewFromInt(3)})
	if partial.UserCategory != CategoryOther || !partial.Amount.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("partial edit touched other fields: %+v", partial)
	}
}

func TestTrailingWindow(t *testing.T) {
	now := time.Date(2024, 5, 30, 23, 59, 0, 0, time.UTC)
	w := TrailingWindow(now, 90)
	if w.End.String() != "2024-05-30" {
		t.Fatalf("end = %s", w.End)
	}
	if w.Start.String() != "2024-03-01" {
		t.Fatalf("start = %s", w.Start)
	}
}

func TestDateJSON(t *testing.T) {
	var v struct {
		D Date `json:"d"`
	}
	if err := json.Unmarshal([]byte(`{"d":"2024-01-15"}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"d":"2024-01-15"}` {
		t.Fatalf("got %s", out)
	}
	if err := json.Unmarshal([]byte(`{"d":"15/01/2024"}`), &v); err == nil {
		t.Fatalf("expected error for bad layout")
	}
}
