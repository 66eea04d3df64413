package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"spendmind/internal/core"
	"spendmind/internal/format"
	"spendmind/internal/metrics"
	"spendmind/internal/store"
)

type dashboardResponse struct {
	store.Dashboard
	MonthTotalDisplay  string `json:"month_total_display"`
	TotalBudgetDisplay string `json:"total_budget_display"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	st, ok := s.currentStore(w, r, "dashboard")
	if !ok {
		return
	}
	d := st.Dashboard()
	NewJSONResponse().Data(dashboardResponse{
		Dashboard:          d,
		MonthTotalDisplay:  format.Format(d.MonthTotal, d.Settings.Currency),
		TotalBudgetDisplay: format.Format(d.TotalBudget, d.Settings.Currency),
	}).Write(w)
}

type budgetResponse struct {
	Statuses []metrics.Status `json:"statuses"`
	Alerts   []metrics.Status `json:"alerts"`
}

type categoryBudgetResponse struct {
	metrics.Status
	// Remaining is null for unmonitored categories.
	Remaining decimal.NullDecimal `json:"remaining"`
}

// handleBudgets reports every category's status for the current month, or
// a single one when category names it.
func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	const op = "budgets"
	st, ok := s.currentStore(w, r, op)
	if !ok {
		return
	}
	if name := sanitizeInput(r.URL.Query().Get("category")); name != "" {
		status, found := st.CategoryStatus(name)
		if !found {
			s.fail(w, r, op, core.NotFound(op, core.ErrUnknownCategory))
			return
		}
		resp := categoryBudgetResponse{Status: status}
		if remaining, bounded := st.RemainingBudget(name); bounded {
			resp.Remaining = decimal.NewNullDecimal(remaining)
		}
		NewJSONResponse().Data(resp).Write(w)
		return
	}
	resp := budgetResponse{Statuses: st.CategoryStatuses(), Alerts: st.Alerts()}
	if resp.Statuses == nil {
		resp.Statuses = []metrics.Status{}
	}
	if resp.Alerts == nil {
		resp.Alerts = []metrics.Status{}
	}
	NewJSONResponse().Data(resp).Write(w)
}

type trendResponse struct {
	Monthly   []metrics.Bucket        `json:"monthly"`
	Daily     []metrics.Bucket        `json:"daily"`
	Breakdown []metrics.CategoryTotal `json:"breakdown"`
}

// handleTrend returns the trailing months, this month's days and the
// category breakdown over period (all, month or year).
func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	const op = "trend"
	st, ok := s.currentStore(w, r, op)
	if !ok {
		return
	}
	rng := metrics.MonthRange(s.now())
	switch p := sanitizeInput(r.URL.Query().Get("period")); p {
	case "", "month":
	case "year":
		rng = metrics.YearRange(s.now())
	case "all":
		rng = metrics.Range{}
	default:
		s.fail(w, r, op, core.Validation(op, errUnknownPeriod(p)))
		return
	}
	resp := trendResponse{
		Monthly:   st.MonthlyTrend(),
		Daily:     st.DailySeries(),
		Breakdown: st.Breakdown(rng, metrics.SortDescending),
	}
	if resp.Daily == nil {
		resp.Daily = []metrics.Bucket{}
	}
	if resp.Breakdown == nil {
		resp.Breakdown = []metrics.CategoryTotal{}
	}
	NewJSONResponse().Data(resp).Write(w)
}
