package store

import (
	"github.com/shopspring/decimal"

	"spendmind/internal/core"
	"spendmind/internal/metrics"
)

// TrendMonths is the length of the monthly trend series.
const TrendMonths = 6

// Snapshot returns a copy of the current collections.
func (s *Store) Snapshot() core.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.Snapshot{
		Expenses:   s.expenses,
		Categories: s.categories,
		Goals:      s.goals,
		Settings:   s.settings,
	}.Clone()
}

func (s *Store) Expenses() []core.Expense    { return s.Snapshot().Expenses }
func (s *Store) Categories() []core.Category { return s.Snapshot().Categories }
func (s *Store) Goals() []core.Goal          { return s.Snapshot().Goals }
func (s *Store) CategoryNames() []string     { return s.Snapshot().CategoryNames() }
func (s *Store) Settings() core.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Category looks a category up by name.
func (s *Store) Category(name string) (core.Category, bool) {
	return s.categoryByName(name)
}

// MonthExpenses are the expenses dated in the current calendar month.
func (s *Store) MonthExpenses() []core.Expense {
	return metrics.InMonth(s.Expenses(), s.now())
}

// TotalSpent sums the expenses inside r, optionally for one category id.
func (s *Store) TotalSpent(r metrics.Range, categoryID string) decimal.Decimal {
	return metrics.Total(s.Expenses(), r, categoryID)
}

// MonthTotal is the amount spent in the current calendar month.
func (s *Store) MonthTotal() decimal.Decimal {
	return core.Sum(s.MonthExpenses())
}

// TotalBudget sums all category limits.
func (s *Store) TotalBudget() decimal.Decimal {
	return metrics.TotalBudget(s.Categories())
}

// Breakdown groups the expenses inside r by category.
func (s *Store) Breakdown(r metrics.Range, order metrics.Order) []metrics.CategoryTotal {
	snap := s.Snapshot()
	return metrics.Breakdown(metrics.InRange(snap.Expenses, r, ""), snap.Categories, order)
}

// MonthlyTrend is the spend of the last TrendMonths calendar months.
func (s *Store) MonthlyTrend() []metrics.Bucket {
	return metrics.TrailingMonths(s.Expenses(), s.now(), TrendMonths)
}

// DailySeries is the current month's spend per day.
func (s *Store) DailySeries() []metrics.Bucket {
	return metrics.DailySeries(s.MonthExpenses())
}

// CategoryStatuses classifies every category against this month's spend.
func (s *Store) CategoryStatuses() []metrics.Status {
	snap := s.Snapshot()
	return metrics.Statuses(snap.Categories, metrics.InMonth(snap.Expenses, s.now()))
}

// CategoryStatus is the budget status of the category called name.
func (s *Store) CategoryStatus(name string) (metrics.Status, bool) {
	for _, st := range s.CategoryStatuses() {
		if st.Name == name {
			return st, true
		}
	}
	return metrics.Status{}, false
}

// RemainingBudget is what is left of name's limit this month. bounded is
// false for unmonitored or unknown categories.
func (s *Store) RemainingBudget(name string) (remaining decimal.Decimal, bounded bool) {
	st, ok := s.CategoryStatus(name)
	if !ok || st.Level == metrics.LevelNone {
		return decimal.Zero, false
	}
	return st.Remaining, true
}

// Alerts are the categories at warning or exceeded this month.
func (s *Store) Alerts() []metrics.Status {
	snap := s.Snapshot()
	return metrics.Alerts(snap.Categories, metrics.InMonth(snap.Expenses, s.now()))
}

// Dashboard gathers the figures the overview screen shows.
type Dashboard struct {
	Settings    core.Settings           `json:"settings"`
	MonthTotal  decimal.Decimal         `json:"month_total"`
	TotalBudget decimal.Decimal         `json:"total_budget"`
	Breakdown   []metrics.CategoryTotal `json:"breakdown"`
	Daily       []metrics.Bucket        `json:"daily"`
	Trend       []metrics.Bucket        `json:"trend"`
	Statuses    []metrics.Status        `json:"statuses"`
	Alerts      []metrics.Status        `json:"alerts"`
	Recent      []core.Expense          `json:"recent"`
	Loading     bool                    `json:"loading"`
}

const recentExpenses = 5

// Dashboard computes every overview figure from one consistent snapshot.
func (s *Store) Dashboard() Dashboard {
	snap := s.Snapshot()
	now := s.now()
	month := metrics.InMonth(snap.Expenses, now)
	recent := snap.Expenses
	if len(recent) > recentExpenses {
		recent = recent[:recentExpenses]
	}
	return Dashboard{
		Settings:    snap.Settings,
		MonthTotal:  core.Sum(month),
		TotalBudget: metrics.TotalBudget(snap.Categories),
		Breakdown:   metrics.Breakdown(month, snap.Categories, metrics.SortDescending),
		Daily:       metrics.DailySeries(month),
		Trend:       metrics.TrailingMonths(snap.Expenses, now, TrendMonths),
		Statuses:    metrics.Statuses(snap.Categories, month),
		Alerts:      metrics.Alerts(snap.Categories, month),
		Recent:      recent,
		Loading:     s.Loading(),
	}
}
