// Package report filters an owner's expenses into a dated report, renders it
// in several formats and describes the e-mail that carries it.
package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"spendmind/internal/core"
	"spendmind/internal/format"
	"spendmind/internal/metrics"
)

// Title heads every report.
const Title = "SpendMind Expense Report"

// Period selects the date window of a report.
type Period string

const (
	PeriodAll    Period = "all"
	PeriodMonth  Period = "month"
	PeriodYear   Period = "year"
	PeriodCustom Period = "custom"
)

var (
	ErrUnknownPeriod = errors.New("unknown report period")
	ErrInvalidRange  = errors.New("report start is after its end")
)

// Filter chooses which expenses go into a report. Start and End apply to
// PeriodCustom only; a zero bound is open.
type Filter struct {
	Period     Period    `json:"period"`
	Start      core.Date `json:"start,omitempty"`
	End        core.Date `json:"end,omitempty"`
	CategoryID string    `json:"category_id,omitempty"`
}

// rangeStrategy resolves a filter to dates relative to now.
type rangeStrategy interface {
	Range(f Filter, now time.Time) metrics.Range
	Label(f Filter) string
}

type allTime struct{}

func (allTime) Range(Filter, time.Time) metrics.Range { return metrics.Range{} }
func (allTime) Label(Filter) string                   { return "All Time" }

type currentMonth struct{}

func (currentMonth) Range(_ Filter, now time.Time) metrics.Range { return metrics.MonthRange(now) }
func (currentMonth) Label(Filter) string                         { return "Current Month" }

type currentYear struct{}

func (currentYear) Range(_ Filter, now time.Time) metrics.Range { return metrics.YearRange(now) }
func (currentYear) Label(Filter) string                         { return "Current Year" }

type custom struct{}

func (custom) Range(f Filter, _ time.Time) metrics.Range {
	return metrics.Range{Start: f.Start, End: f.End}
}

func (custom) Label(f Filter) string {
	start, end := "Beginning", "Present"
	if !f.Start.IsZero() {
		start = f.Start.String()
	}
	if !f.End.IsZero() {
		end = f.End.String()
	}
	return start + " to " + end
}

var strategies = map[Period]rangeStrategy{
	PeriodAll:    allTime{},
	PeriodMonth:  currentMonth{},
	PeriodYear:   currentYear{},
	PeriodCustom: custom{},
}

func (f Filter) strategy() (rangeStrategy, error) {
	p := Period(strings.ToLower(strings.TrimSpace(string(f.Period))))
	if p == "" {
		p = PeriodAll
	}
	s, ok := strategies[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPeriod, f.Period)
	}
	if p == PeriodCustom && !f.Start.IsZero() && !f.End.IsZero() && f.End.Before(f.Start) {
		return nil, ErrInvalidRange
	}
	return s, nil
}

// Row is one expense line.
type Row struct {
	Date        core.Date       `json:"date"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Display     string          `json:"display"`
}

// Report is a filtered, ordered set of expenses with its totals.
type Report struct {
	Title         string                  `json:"title"`
	GeneratedAt   time.Time               `json:"generated_at"`
	FilterLabel   string                  `json:"filter"`
	CategoryLabel string                  `json:"category"`
	Range         metrics.Range           `json:"-"`
	Rows          []Row                   `json:"rows"`
	Total         decimal.Decimal         `json:"total"`
	TotalDisplay  string                  `json:"total_display"`
	ByCategory    []metrics.CategoryTotal `json:"by_category"`
	Currency      core.Currency           `json:"currency"`
}

// Build filters snap with f. Rows keep the snapshot's order, newest first.
// Blank descriptions read "N/A".
func Build(snap core.Snapshot, f Filter, now time.Time) (Report, error) {
	strat, err := f.strategy()
	if err != nil {
		return Report{}, core.Validation("build report", err)
	}
	categoryLabel := "All Categories"
	if f.CategoryID != "" {
		cat, ok := snap.CategoryByID(f.CategoryID)
		if !ok {
			return Report{}, core.NotFound("build report", core.ErrUnknownCategory)
		}
		categoryLabel = cat.Name
	}

	r := strat.Range(f, now)
	exps := metrics.InRange(core.ResolveNames(snap.Expenses, snap.Categories), r, f.CategoryID)
	cur := snap.Settings.Currency

	rep := Report{
		Title:         Title,
		GeneratedAt:   now,
		FilterLabel:   strat.Label(f),
		CategoryLabel: categoryLabel,
		Range:         r,
		Rows:          make([]Row, 0, len(exps)),
		Total:         core.Sum(exps),
		ByCategory:    metrics.Breakdown(exps, snap.Categories, metrics.SortDescending),
		Currency:      cur,
	}
	for _, e := range exps {
		desc := strings.TrimSpace(e.Description)
		if desc == "" {
			desc = "N/A"
		}
		rep.Rows = append(rep.Rows, Row{
			Date:        e.Date,
			Description: desc,
			Category:    e.CategoryName,
			Amount:      e.Amount,
			Display:     format.Format(e.Amount, cur),
		})
	}
	rep.TotalDisplay = format.Format(rep.Total, cur)
	return rep, nil
}

// Subject is the default e-mail subject for rep.
func (r Report) Subject() string {
	return "SpendMind Report: " + r.FilterLabel
}
