package metrics

import (
	"github.com/shopspring/decimal"

	"spendmind/internal/core"
)

// Level is the budget classification of a category.
type Level string

const (
	LevelNone     Level = "none" // limit 0, unmonitored
	LevelOK       Level = "ok"
	LevelWarning  Level = "warning"
	LevelExceeded Level = "exceeded"
)

// Classify maps spent against limit. A limit of zero or less is unmonitored.
func Classify(spent, limit decimal.Decimal) Level {
	if !limit.IsPositive() {
		return LevelNone
	}
	if spent.GreaterThan(limit) {
		return LevelExceeded
	}
	if spent.GreaterThan(limit.Mul(warningRatio)) {
		return LevelWarning
	}
	return LevelOK
}

// Status is the budget view of one category.
type Status struct {
	CategoryID string              `json:"category_id"`
	Name       string              `json:"name"`
	Spent      decimal.Decimal     `json:"spent"`
	Limit      decimal.Decimal     `json:"limit"`
	Percentage decimal.NullDecimal `json:"percentage"` // null when unmonitored
	Remaining  decimal.Decimal     `json:"remaining"`
	Level      Level               `json:"level"`
}

// CategoryStatus builds the status of cat given what was spent in it.
func CategoryStatus(cat core.Category, spent decimal.Decimal) Status {
	st := Status{
		CategoryID: cat.ID,
		Name:       cat.Name,
		Spent:      spent,
		Limit:      cat.BudgetLimit,
		Remaining:  cat.BudgetLimit.Sub(spent),
		Level:      Classify(spent, cat.BudgetLimit),
	}
	if cat.Monitored() {
		st.Percentage = decimal.NewNullDecimal(spent.Div(cat.BudgetLimit).Mul(hundred).Round(2))
	}
	return st
}

// Statuses computes a status for every category, in collection order, from
// the given expenses (typically the current month).
func Statuses(cats []core.Category, exps []core.Expense) []Status {
	spent := spentByCategory(cats, exps)
	out := make([]Status, len(cats))
	for i, c := range cats {
		out[i] = CategoryStatus(c, spent[c.ID])
	}
	return out
}

// Alerts returns the statuses classified warning or exceeded.
func Alerts(cats []core.Category, exps []core.Expense) []Status {
	var out []Status
	for _, st := range Statuses(cats, exps) {
		if st.Level == LevelWarning || st.Level == LevelExceeded {
			out = append(out, st)
		}
	}
	return out
}

func spentByCategory(cats []core.Category, exps []core.Expense) map[string]decimal.Decimal {
	byName := make(map[string]string, len(cats))
	for _, c := range cats {
		if _, dup := byName[c.Name]; !dup {
			byName[c.Name] = c.ID
		}
	}
	spent := make(map[string]decimal.Decimal, len(cats))
	for _, e := range exps {
		id := e.CategoryID
		if id == "" {
			id = byName[e.CategoryName]
		}
		if id != "" {
			spent[id] = spent[id].Add(e.Amount)
		}
	}
	return spent
}
