package http

import (
	"net/http"
	"strconv"

	"spendmind/internal/core"
	"spendmind/internal/store"
)

type goalRequest struct {
	Title        string `json:"title"`
	TargetAmount Text   `json:"target_amount"`
	Months       Text   `json:"months"`
}

func (req goalRequest) input() (store.GoalInput, error) {
	const op = "add goal"
	target, err := core.ParseAmount(req.TargetAmount.String())
	if err != nil {
		return store.GoalInput{}, core.Validation(op, err)
	}
	months, err := strconv.Atoi(req.Months.String())
	if err != nil {
		return store.GoalInput{}, core.Validation(op, core.ErrInvalidHorizon)
	}
	return store.GoalInput{Title: sanitizeInput(req.Title), TargetAmount: target, HorizonMonths: months}, nil
}

// goalView adds the monthly saving a goal needs.
type goalView struct {
	core.Goal
	RequiredMonthly string `json:"required_monthly"`
}

func viewGoal(g core.Goal) goalView {
	return goalView{Goal: g, RequiredMonthly: g.RequiredMonthly().StringFixed(2)}
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	st, ok := s.currentStore(w, r, "list goals")
	if !ok {
		return
	}
	goals := st.Goals()
	out := make([]goalView, len(goals))
	for i, g := range goals {
		out[i] = viewGoal(g)
	}
	NewJSONResponse().Data(map[string]any{"goals": out}).Write(w)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	const op = "add goal"
	var req goalRequest
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
	g, err := st.AddGoal(r.Context(), in)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(viewGoal(g)).Write(w)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	const op = "delete goal"
	st, ok := s.loadedStore(w, r, op)
	if !ok {
		return
	}
	if err := st.DeleteGoal(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, op, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

type settingsRequest struct {
	CurrencyCode *string        `json:"currency_code"`
	Currency     *core.Currency `json:"currency"`
	CountryCode  *string        `json:"country_code"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	st, ok := s.currentStore(w, r, "read settings")
	if !ok {
		return
	}
	NewJSONResponse().Data(st.Settings()).Write(w)
}

// handleUpdateSettings patches the fields present in the body and persists
// the result.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	const op = "update settings"
	var req settingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	st, ok := s.loadedStore(w, r, op)
	if !ok {
		return
	}
	settings, err := st.UpdateSettings(r.Context(), store.SettingsPatch{
		CurrencyCode: req.CurrencyCode,
		Currency:     req.Currency,
		CountryCode:  req.CountryCode,
	})
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	NewJSONResponse().Data(settings).Write(w)
}
