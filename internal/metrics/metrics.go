// Package metrics computes the derived figures every view relies on: monthly
// totals, category breakdowns, time series and budget classification.
//
// All functions are pure. The caller passes "now" so results are
// reproducible in tests.
package metrics

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"spendmind/internal/core"
)

var (
	hundred      = decimal.NewFromInt(100)
	warningRatio = decimal.RequireFromString("0.9")
)

// Range is an inclusive calendar date range. A zero bound is open.
type Range struct {
	Start core.Date
	End   core.Date
}

// Contains reports whether d falls inside the range.
func (r Range) Contains(d core.Date) bool {
	if !r.Start.IsZero() && d.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && r.End.Before(d) {
		return false
	}
	return true
}

// MonthRange spans the calendar month containing now.
func MonthRange(now time.Time) Range {
	first := core.NewDate(now.Year(), int(now.Month()), 1)
	last := core.Date{Time: first.AddDate(0, 1, -1)}
	return Range{Start: first, End: last}
}

// YearRange spans the calendar year containing now.
func YearRange(now time.Time) Range {
	return Range{Start: core.NewDate(now.Year(), 1, 1), End: core.NewDate(now.Year(), 12, 31)}
}

// IsInMonth reports whether e is dated in the calendar month and year of now.
func IsInMonth(e core.Expense, now time.Time) bool {
	return e.Date.Year() == now.Year() && e.Date.Month() == now.Month()
}

// InMonth keeps the expenses dated in now's calendar month, preserving order.
func InMonth(exps []core.Expense, now time.Time) []core.Expense {
	var out []core.Expense
	for _, e := range exps {
		if IsInMonth(e, now) {
			out = append(out, e)
		}
	}
	return out
}

// InRange keeps the expenses inside r, optionally restricted to one category id.
func InRange(exps []core.Expense, r Range, categoryID string) []core.Expense {
	var out []core.Expense
	for _, e := range exps {
		if categoryID != "" && e.CategoryID != categoryID {
			continue
		}
		if r.Contains(e.Date) {
			out = append(out, e)
		}
	}
	return out
}

// Total is the amount spent inside r, optionally for one category id.
func Total(exps []core.Expense, r Range, categoryID string) decimal.Decimal {
	return core.Sum(InRange(exps, r, categoryID))
}

// TotalBudget sums every category limit.
func TotalBudget(cats []core.Category) decimal.Decimal {
	total := decimal.Zero
	for _, c := range cats {
		total = total.Add(c.BudgetLimit)
	}
	return total
}

// CategoryTotal is the amount spent in one category.
type CategoryTotal struct {
	CategoryID string          `json:"category_id,omitempty"`
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
}

// Order selects how Breakdown sorts its groups.
type Order int

const (
	// InsertionOrder follows the category collection order.
	InsertionOrder Order = iota
	// SortDescending puts the largest totals first.
	SortDescending
)

// Breakdown groups exps by category and drops groups summing to zero.
// Expenses pointing at categories missing from cats are grouped by their
// stored name after the known categories, in first-seen order.
func Breakdown(exps []core.Expense, cats []core.Category, order Order) []CategoryTotal {
	sums := make(map[string]decimal.Decimal)
	byName := make(map[string]string, len(cats))
	for _, c := range cats {
		byName[c.Name] = c.ID
	}
	var orphans []CategoryTotal
	seen := make(map[string]bool)
	for _, e := range exps {
		key := e.CategoryID
		if key == "" {
			key = byName[e.CategoryName]
		}
		if key == "" || !knownID(cats, key) {
			key = core.CategoryKey(e)
			if !seen[key] {
				seen[key] = true
				orphans = append(orphans, CategoryTotal{CategoryID: e.CategoryID, Name: e.CategoryName})
			}
		}
		sums[key] = sums[key].Add(e.Amount)
	}

	out := make([]CategoryTotal, 0, len(cats)+len(orphans))
	for _, c := range cats {
		if amt := sums[c.ID]; !amt.IsZero() {
			out = append(out, CategoryTotal{CategoryID: c.ID, Name: c.Name, Amount: amt})
		}
	}
	for _, o := range orphans {
		key := core.CategoryKey(core.Expense{CategoryID: o.CategoryID, CategoryName: o.Name})
		if amt := sums[key]; !amt.IsZero() {
			o.Amount = amt
			out = append(out, o)
		}
	}
	if order == SortDescending {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Amount.GreaterThan(out[j].Amount)
		})
	}
	return out
}

func knownID(cats []core.Category, id string) bool {
	for _, c := range cats {
		if c.ID == id {
			return true
		}
	}
	return false
}

// TopN returns the n largest groups, largest first.
func TopN(totals []CategoryTotal, n int) []CategoryTotal {
	sorted := append([]CategoryTotal(nil), totals...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Amount.GreaterThan(sorted[j].Amount)
	})
	if n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}

// SumTotals adds the group amounts.
func SumTotals(totals []CategoryTotal) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range totals {
		sum = sum.Add(t.Amount)
	}
	return sum
}

// Bucket is one point of a time series.
type Bucket struct {
	Label  string          `json:"label"`
	Year   int             `json:"year,omitempty"`
	Month  int             `json:"month,omitempty"`
	Day    int             `json:"day,omitempty"`
	Amount decimal.Decimal `json:"amount"`
}

// TrailingMonths sums spend for each of the n calendar months ending at
// now's month, earliest first. Buckets are labelled with the short month name.
func TrailingMonths(exps []core.Expense, now time.Time, n int) []Bucket {
	if n < 1 {
		return nil
	}
	anchor := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	out := make([]Bucket, n)
	for i := 0; i < n; i++ {
		m := anchor.AddDate(0, i-(n-1), 0)
		out[i] = Bucket{
			Label:  m.Month().String()[:3],
			Year:   m.Year(),
			Month:  int(m.Month()),
			Amount: decimal.Zero,
		}
	}
	for _, e := range exps {
		for i := range out {
			if e.Date.Year() == out[i].Year && int(e.Date.Month()) == out[i].Month {
				out[i].Amount = out[i].Amount.Add(e.Amount)
				break
			}
		}
	}
	return out
}

// DailySeries sums spend per day of month, sorted by day. Days without
// spend are omitted.
func DailySeries(exps []core.Expense) []Bucket {
	sums := make(map[int]decimal.Decimal)
	for _, e := range exps {
		sums[e.Date.Day()] = sums[e.Date.Day()].Add(e.Amount)
	}
	days := make([]int, 0, len(sums))
	for d := range sums {
		days = append(days, d)
	}
	sort.Ints(days)
	out := make([]Bucket, len(days))
	for i, d := range days {
		out[i] = Bucket{Label: fmt.Sprintf("Day %d", d), Day: d, Amount: sums[d]}
	}
	return out
}
