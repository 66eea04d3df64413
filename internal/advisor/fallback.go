package advisor

import (
	"fmt"

	"github.com/shopspring/decimal"

	"spendmind/internal/core"
	"spendmind/internal/format"
	"spendmind/internal/metrics"
)

// MockMonthlyIncome stands in for income, which is not tracked.
var MockMonthlyIncome = decimal.NewFromInt(5000)

// reductionCategories is how many of the largest categories the reduction
// target applies to.
const reductionCategories = 3

// FallbackInput is what the deterministic plan is computed from.
type FallbackInput struct {
	Goals []core.Goal
	// Expenses is the spend being analysed, usually the current month.
	Expenses             []core.Expense
	Categories           []core.Category
	ReductionRatePercent decimal.Decimal
	// MonthlyIncome defaults to MockMonthlyIncome when unset. An explicit
	// zero is honored.
	MonthlyIncome decimal.NullDecimal
	// Currency renders amounts in messages; blank renders plain numbers.
	Currency core.Currency
}

// FallbackFigures are the intermediate numbers behind a fallback plan.
type FallbackFigures struct {
	Spent          decimal.Decimal
	CurrentSavings decimal.Decimal
	Top            []metrics.CategoryTotal
	TopSpending    decimal.Decimal
	Reduction      decimal.Decimal
}

// Figures computes the numbers the fallback plan is based on:
// current savings are income minus spend, floored at zero, and the reduction
// is the rate applied to the three largest categories.
func Figures(in FallbackInput) FallbackFigures {
	income := MockMonthlyIncome
	if in.MonthlyIncome.Valid {
		income = in.MonthlyIncome.Decimal
	}
	spent := core.Sum(in.Expenses)
	top := metrics.TopN(metrics.Breakdown(in.Expenses, in.Categories, metrics.SortDescending), reductionCategories)
	topSpending := metrics.SumTotals(top)
	return FallbackFigures{
		Spent:          spent,
		CurrentSavings: decimal.Max(decimal.Zero, income.Sub(spent)),
		Top:            top,
		TopSpending:    topSpending,
		Reduction:      topSpending.Mul(in.ReductionRatePercent).Div(decimal.NewFromInt(100)),
	}
}

// Fallback builds the plan used whenever the model cannot answer. The same
// input always yields the same plan.
func Fallback(in FallbackInput) Plan {
	f := Figures(in)
	money := func(d decimal.Decimal) string {
		if in.Currency.Code == "" {
			return d.Round(0).String()
		}
		return format.Format(d.Round(0), in.Currency)
	}
	// With categories but no spend, the first category still gets the
	// optimization item, at zero.
	top := f.Top
	if len(top) == 0 && len(in.Categories) > 0 {
		c := in.Categories[0]
		top = []metrics.CategoryTotal{{CategoryID: c.ID, Name: c.Name, Amount: decimal.Zero}}
	}
	topName := "your largest category"
	if len(top) > 0 {
		topName = top[0].Name
	}

	plan := Plan{TotalPotentialSavings: f.Reduction, Source: SourceFallback}
	projected := f.CurrentSavings.Add(f.Reduction)
	for i, g := range in.Goals {
		required := g.RequiredMonthly()
		id := g.ID
		if id == "" {
			id = fmt.Sprintf("%d", i)
		}
		if projected.LessThan(required) {
			plan.Recommendations = append(plan.Recommendations, Recommendation{
				ID:       "goal-" + id,
				Priority: PriorityHigh,
				Type:     TypeWarning,
				Title:    "Goal At Risk: " + g.Title,
				Message:  fmt.Sprintf("You need %s/mo but represent only %s potential savings.", money(required), money(projected)),
				Action:   fmt.Sprintf("Reduce spending in %s by an additional 10%%", topName),
				Color:    ColorHigh,
			})
			continue
		}
		plan.Recommendations = append(plan.Recommendations, Recommendation{
			ID:       "goal-" + id,
			Priority: PriorityLow,
			Type:     TypeSuccess,
			Title:    "On Track: " + g.Title,
			Message:  "With your current plan, you will reach this goal on time!",
			Action:   fmt.Sprintf("Set up auto-deposit of %s", money(required)),
			Color:    ColorLow,
		})
	}

	if len(top) > 0 {
		top := top[0]
		saving := top.Amount.Mul(in.ReductionRatePercent).Div(decimal.NewFromInt(100))
		plan.Recommendations = append(plan.Recommendations, Recommendation{
			ID:       "optimize-" + top.Name,
			Priority: PriorityMedium,
			Type:     TypeOptimization,
			Title:    "Optimize: " + top.Name,
			Message:  fmt.Sprintf("%s is your highest expense (%s).", top.Name, money(top.Amount)),
			Action: fmt.Sprintf("Apply the %s%% reduction target here to save %s/mo",
				in.ReductionRatePercent.String(), money(saving)),
			Color: ColorMedium,
		})
	}
	if plan.Recommendations == nil {
		plan.Recommendations = []Recommendation{}
	}
	return plan
}
