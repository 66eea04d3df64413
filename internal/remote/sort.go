package remote

import (
	"sort"

	"spendmind/internal/core"
)

// SortExpenses orders expenses by date descending, then by creation time
// descending. The sort is stable so equal keys keep their relative order.
func SortExpenses(exps []core.Expense) {
	sort.SliceStable(exps, func(i, j int) bool {
		return ExpenseBefore(exps[i], exps[j])
	})
}

// ExpenseBefore reports whether a sorts ahead of b.
func ExpenseBefore(a, b core.Expense) bool {
	if !a.Date.Equal(b.Date.Time) {
		return a.Date.After(b.Date.Time)
	}
	return a.CreatedAt.After(b.CreatedAt)
}
