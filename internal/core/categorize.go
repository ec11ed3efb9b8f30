package core

import "strings"

const (
	CategoryFoodDining    = "Food & Dining"
	CategoryTransport     = "Transportation"
	CategoryShopping      = "Shopping"
	CategoryBills         = "Bills & Utilities"
	CategoryEntertainment = "Entertainment"
	CategoryHealthcare    = "Healthcare"
	CategoryIncome        = "Income"
	CategoryTransfer      = "Transfer"
	CategoryOther         = "Other"
)

// Categories lists the labels a user can assign to a transaction, in display
// order.
var Categories = []string{
	CategoryFoodDining,
	CategoryTransport,
	CategoryShopping,
	CategoryBills,
	CategoryEntertainment,
	CategoryHealthcare,
	CategoryIncome,
	CategoryTransfer,
	CategoryOther,
}

type keywordRule struct {
	label           string
	categoryKeyword string
	nameKeywords    []string
}

// Evaluated in order; the first match wins.
var keywordRules = []keywordRule{
	{CategoryFoodDining, "food", []string{"restaurant", "coffee"}},
	{CategoryTransport, "transportation", []string{"gas", "uber"}},
	{CategoryBills, "payment", []string{"electric", "internet"}},
	{CategoryShopping, "shops", []string{"amazon", "target"}},
}

// SuggestCategory maps an aggregator transaction to a coarse spending
// category. Negative aggregator amounts are inflows and always yield Income.
func SuggestCategory(raw RawTransaction) string {
	if raw.Amount.IsNegative() {
		return CategoryIncome
	}

	name := strings.ToLower(raw.Name)
	var category string
	if len(raw.Category) > 0 {
		category = strings.ToLower(raw.Category[0])
	}

	for _, rule := range keywordRules {
		if category != "" && strings.Contains(category, rule.categoryKeyword) {
			return rule.label
		}
		for _, kw := range rule.nameKeywords {
			if strings.Contains(name, kw) {
				return rule.label
			}
		}
	}
	return CategoryOther
}

// IsKnownCategory reports whether label is one of Categories.
func IsKnownCategory(label string) bool {
	for _, c := range Categories {
		if c == label {
			return true
		}
	}
	return false
}
