package http

import (
	"net/http"

	"spendmind/internal/core"
	"spendmind/internal/log"
	"spendmind/internal/metrics"
	"spendmind/internal/store"
)

type expenseRequest struct {
	Amount       Text   `json:"amount"`
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category"`
	Date         string `json:"date"`
	Description  string `json:"description"`
}

func (req expenseRequest) input() (store.ExpenseInput, error) {
	const op = "add expense"
	amount, err := core.ParseAmount(req.Amount.String())
	if err != nil {
		return store.ExpenseInput{}, core.Validation(op, err)
	}
	in := store.ExpenseInput{
		Amount:       amount,
		CategoryID:   sanitizeInput(req.CategoryID),
		CategoryName: sanitizeInput(req.CategoryName),
		Description:  sanitizeInput(req.Description),
	}
	if d := sanitizeInput(req.Date); d != "" {
		if in.Date, err = core.ParseDate(d); err != nil {
			return store.ExpenseInput{}, core.Validation(op, err)
		}
	}
	return in, nil
}

// handleListExpenses lists expenses newest first with category names
// resolved. period=month keeps the current month; category_id narrows to
// one category.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	st, ok := s.currentStore(w, r, "list expenses")
	if !ok {
		return
	}
	snap := st.Snapshot()
	exps := core.ResolveNames(snap.Expenses, snap.Categories)
	q := r.URL.Query()
	rng := metrics.Range{}
	switch sanitizeInput(q.Get("period")) {
	case "", "all":
	case "month":
		rng = metrics.MonthRange(s.now())
	case "year":
		rng = metrics.YearRange(s.now())
	default:
		s.fail(w, r, "list expenses", core.Validation("list expenses", errUnknownPeriod(q.Get("period"))))
		return
	}
	exps = metrics.InRange(exps, rng, sanitizeInput(q.Get("category_id")))
	if exps == nil {
		exps = []core.Expense{}
	}
	NewJSONResponse().Data(map[string]any{
		"expenses": exps,
		"total":    core.Sum(exps),
		"loading":  st.Loading(),
	}).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	const op = "add expense"
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	in, err := req.input()
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	st, ok := s.loadedStore(w, r, op)
	if !ok {
		return
	}
	exp, err := st.AddExpense(r.Context(), in)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Expense recorded",
		log.FieldExpenseID, exp.ID, log.FieldCategoryID, exp.CategoryID, log.FieldAmount, exp.Amount.String())
	NewJSONResponse().Status(http.StatusCreated).Data(exp).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	const op = "delete expense"
	st, ok := s.loadedStore(w, r, op)
	if !ok {
		return
	}
	if err := st.DeleteExpense(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, op, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

type categoryRequest struct {
	Name        string `json:"name"`
	BudgetLimit Text   `json:"budget_limit"`
}

type limitRequest struct {
	Limit Text `json:"limit"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	st, ok := s.currentStore(w, r, "list categories")
	if !ok {
		return
	}
	cats := st.Categories()
	if cats == nil {
		cats = []core.Category{}
	}
	NewJSONResponse().Data(map[string]any{"categories": cats}).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	const op = "add category"
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	limit, err := core.ParseLimit(req.BudgetLimit.String())
	if err != nil {
		s.fail(w, r, op, core.Validation(op, err))
		return
	}
	st, ok := s.loadedStore(w, r, op)
	if !ok {
		return
	}
	cat, err := st.AddCategoryWithLimit(r.Context(), sanitizeInput(req.Name), limit)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(cat).Write(w)
}

func (s *Server) handleRenameCategory(w http.ResponseWriter, r *http.Request) {
	const op = "rename category"
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	st, ok := s.loadedStore(w, r, op)
	if !ok {
		return
	}
	cat, err := st.RenameCategory(r.Context(), r.PathValue("id"), sanitizeInput(req.Name))
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	NewJSONResponse().Data(cat).Write(w)
}

// handleDeleteCategory answers 409 while expenses still use the category.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	const op = "delete category"
	st, ok := s.loadedStore(w, r, op)
	if !ok {
		return
	}
	if err := st.DeleteCategory(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, op, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleSetCategoryLimit sets a category's monthly limit; 0 stops monitoring.
func (s *Server) handleSetCategoryLimit(w http.ResponseWriter, r *http.Request) {
	const op = "update category limit"
	var req limitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	limit, err := core.ParseLimit(req.Limit.String())
	if err != nil {
		s.fail(w, r, op, core.Validation(op, err))
		return
	}
	st, ok := s.loadedStore(w, r, op)
	if !ok {
		return
	}
	cat, err := st.SetCategoryLimit(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	NewJSONResponse().Data(cat).Write(w)
}
