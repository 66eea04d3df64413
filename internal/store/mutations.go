package store

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"spendmind/internal/core"
	"spendmind/internal/format"
	"spendmind/internal/log"
)

// ExpenseInput is what a caller supplies to record an expense. The category
// is referenced by id, or by name when the id is blank.
type ExpenseInput struct {
	Amount       decimal.Decimal
	CategoryID   string
	CategoryName string
	Date         core.Date // zero means today
	Description  string
}

// GoalInput is what a caller supplies to add a savings goal.
type GoalInput struct {
	Title         string
	TargetAmount  decimal.Decimal
	HorizonMonths int
}

// SettingsPatch changes selected settings fields. Nil fields are kept.
// When only the currency code is given, symbol and locale come from the
// supported currency list.
type SettingsPatch struct {
	CurrencyCode *string
	Currency     *core.Currency
	CountryCode  *string
}

// AddExpense records an expense and inserts it ahead of every expense dated
// on or before it.
func (s *Store) AddExpense(ctx context.Context, in ExpenseInput) (core.Expense, error) {
	const op = "add expense"
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if in.Date.IsZero() {
		in.Date = core.DateOf(s.now())
	}
	e := core.Expense{
		OwnerID:      s.owner,
		Amount:       in.Amount,
		CategoryID:   strings.TrimSpace(in.CategoryID),
		CategoryName: strings.TrimSpace(in.CategoryName),
		Date:         in.Date,
		Description:  strings.TrimSpace(in.Description),
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, core.Validation(op, err)
	}
	cat, ok := s.resolveCategory(e.CategoryID, e.CategoryName)
	if !ok {
		return core.Expense{}, core.Validation(op, core.ErrUnknownCategory)
	}
	e.CategoryID, e.CategoryName = cat.ID, cat.Name

	created, err := run(ctx, s, op, func(ctx context.Context) (core.Expense, error) {
		return s.remote.InsertExpense(ctx, e)
	})
	if err != nil {
		return core.Expense{}, err
	}
	created.CategoryName = cat.Name

	err = s.apply(op, func() {
		i := 0
		for i < len(s.expenses) && s.expenses[i].Date.After(created.Date.Time) {
			i++
		}
		s.expenses = append(s.expenses, core.Expense{})
		copy(s.expenses[i+1:], s.expenses[i:])
		s.expenses[i] = created
	})
	if err != nil {
		return core.Expense{}, err
	}
	s.logger.WithFields(log.NewFields().
		WithOperation(log.OpCreate).
		WithExpense(created.ID, created.CategoryName, created.Amount.String())).
		Info("expense added")
	return created, nil
}

// DeleteExpense removes the expense with the given id.
func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	const op = "delete expense"
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, ok := s.findExpense(id); !ok {
		return core.NotFound(op, core.ErrUnknownExpense)
	}
	if err := s.call(ctx, op, func(ctx context.Context) error {
		return s.remote.DeleteExpense(ctx, s.owner, id)
	}); err != nil {
		return err
	}
	return s.apply(op, func() {
		s.expenses = removeExpense(s.expenses, id)
	})
}

// AddCategory creates an unmonitored category. Names are unique per owner
// and compared exactly after trimming.
func (s *Store) AddCategory(ctx context.Context, name string) (core.Category, error) {
	return s.AddCategoryWithLimit(ctx, name, decimal.Zero)
}

// AddCategoryWithLimit creates a category with an initial budget limit.
func (s *Store) AddCategoryWithLimit(ctx context.Context, name string, limit decimal.Decimal) (core.Category, error) {
	const op = "add category"
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	c := core.Category{OwnerID: s.owner, Name: strings.TrimSpace(name), BudgetLimit: limit}
	if err := c.Validate(); err != nil {
		return core.Category{}, core.Validation(op, err)
	}
	if _, dup := s.categoryByName(c.Name); dup {
		return core.Category{}, core.Conflict(op, core.ErrDuplicateCategory)
	}

	created, err := run(ctx, s, op, func(ctx context.Context) (core.Category, error) {
		return s.remote.InsertCategory(ctx, c)
	})
	if err != nil {
		return core.Category{}, err
	}
	if err := s.apply(op, func() { s.categories = append(s.categories, created) }); err != nil {
		return core.Category{}, err
	}
	s.logger.Info("category added", log.FieldCategoryID, created.ID, log.FieldCategory, created.Name)
	return created, nil
}

// DeleteCategory removes a category no expense refers to.
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	const op = "delete category"
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cat, ok := s.categoryByID(id)
	if !ok {
		return core.NotFound(op, core.ErrUnknownCategory)
	}
	if s.categoryInUse(cat) {
		return core.Conflict(op, core.ErrCategoryInUse)
	}
	if err := s.call(ctx, op, func(ctx context.Context) error {
		return s.remote.DeleteCategory(ctx, s.owner, id)
	}); err != nil {
		return err
	}
	return s.apply(op, func() {
		out := s.categories[:0:0]
		for _, c := range s.categories {
			if c.ID != id {
				out = append(out, c)
			}
		}
		s.categories = out
	})
}

// UpdateCategoryLimit sets the budget limit of the category called name.
// A zero limit turns monitoring off.
func (s *Store) UpdateCategoryLimit(ctx context.Context, name string, limit decimal.Decimal) (core.Category, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	cat, ok := s.categoryByName(strings.TrimSpace(name))
	if !ok {
		return core.Category{}, core.NotFound("update category limit", core.ErrUnknownCategory)
	}
	return s.setLimit(ctx, cat, limit)
}

// SetCategoryLimit is UpdateCategoryLimit addressed by id.
func (s *Store) SetCategoryLimit(ctx context.Context, id string, limit decimal.Decimal) (core.Category, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	cat, ok := s.categoryByID(id)
	if !ok {
		return core.Category{}, core.NotFound("update category limit", core.ErrUnknownCategory)
	}
	return s.setLimit(ctx, cat, limit)
}

func (s *Store) setLimit(ctx context.Context, cat core.Category, limit decimal.Decimal) (core.Category, error) {
	const op = "update category limit"
	if limit.IsNegative() {
		return core.Category{}, core.Validation(op, core.ErrNegativeLimit)
	}
	cat.BudgetLimit = limit
	updated, err := run(ctx, s, op, func(ctx context.Context) (core.Category, error) {
		return s.remote.UpdateCategory(ctx, cat)
	})
	if err != nil {
		return core.Category{}, err
	}
	err = s.apply(op, func() { s.replaceCategory(updated) })
	return updated, err
}

// RenameCategory changes a category's name. Expenses follow by id; their
// stored names are refreshed on a best-effort basis.
func (s *Store) RenameCategory(ctx context.Context, id, name string) (core.Category, error) {
	const op = "rename category"
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cat, ok := s.categoryByID(id)
	if !ok {
		return core.Category{}, core.NotFound(op, core.ErrUnknownCategory)
	}
	cat.Name = strings.TrimSpace(name)
	if err := cat.Validate(); err != nil {
		return core.Category{}, core.Validation(op, err)
	}
	if other, dup := s.categoryByName(cat.Name); dup && other.ID != id {
		return core.Category{}, core.Conflict(op, core.ErrDuplicateCategory)
	}

	updated, err := run(ctx, s, op, func(ctx context.Context) (core.Category, error) {
		return s.remote.UpdateCategory(ctx, cat)
	})
	if err != nil {
		return core.Category{}, err
	}
	if err := s.call(ctx, op, func(ctx context.Context) error {
		return s.remote.RenameExpenseCategory(ctx, s.owner, id, updated.Name)
	}); err != nil && core.IsKind(err, core.KindSession) {
		return core.Category{}, err
	}
	err = s.apply(op, func() {
		s.replaceCategory(updated)
		s.expenses = core.ResolveNames(s.expenses, s.categories)
	})
	return updated, err
}

// AddGoal records a savings goal.
func (s *Store) AddGoal(ctx context.Context, in GoalInput) (core.Goal, error) {
	const op = "add goal"
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	g := core.Goal{
		OwnerID:       s.owner,
		Title:         strings.TrimSpace(in.Title),
		TargetAmount:  in.TargetAmount,
		HorizonMonths: in.HorizonMonths,
	}
	if err := g.Validate(); err != nil {
		return core.Goal{}, core.Validation(op, err)
	}
	created, err := run(ctx, s, op, func(ctx context.Context) (core.Goal, error) {
		return s.remote.InsertGoal(ctx, g)
	})
	if err != nil {
		return core.Goal{}, err
	}
	if err := s.apply(op, func() { s.goals = append(s.goals, created) }); err != nil {
		return core.Goal{}, err
	}
	s.logger.Info("goal added", log.FieldGoalID, created.ID)
	return created, nil
}

// DeleteGoal removes the goal with the given id.
func (s *Store) DeleteGoal(ctx context.Context, id string) error {
	const op = "delete goal"
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !s.hasGoal(id) {
		return core.NotFound(op, core.ErrUnknownGoal)
	}
	if err := s.call(ctx, op, func(ctx context.Context) error {
		return s.remote.DeleteGoal(ctx, s.owner, id)
	}); err != nil {
		return err
	}
	return s.apply(op, func() {
		out := s.goals[:0:0]
		for _, g := range s.goals {
			if g.ID != id {
				out = append(out, g)
			}
		}
		s.goals = out
	})
}

// UpdateSettings merges patch into the current settings and persists them.
// Local settings change only after the remote accepted the write.
func (s *Store) UpdateSettings(ctx context.Context, patch SettingsPatch) (core.Settings, error) {
	const op = "update settings"
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	merged := s.Settings()
	merged.OwnerID = s.owner
	if patch.CurrencyCode != nil {
		cur, ok := format.Lookup(*patch.CurrencyCode)
		if !ok {
			return core.Settings{}, core.Validation(op, core.ErrInvalidCurrency)
		}
		merged.Currency = cur
	}
	if patch.Currency != nil {
		cur := *patch.Currency
		cur.Code = strings.ToUpper(strings.TrimSpace(cur.Code))
		if known, ok := format.Lookup(cur.Code); ok {
			if cur.Symbol == "" {
				cur.Symbol = known.Symbol
			}
			if cur.Locale == "" {
				cur.Locale = known.Locale
			}
		}
		merged.Currency = cur
	}
	if patch.CountryCode != nil {
		merged.CountryCode = strings.ToUpper(strings.TrimSpace(*patch.CountryCode))
	}
	if err := merged.Validate(); err != nil {
		return core.Settings{}, core.Validation(op, err)
	}

	saved, err := run(ctx, s, op, func(ctx context.Context) (core.Settings, error) {
		return s.remote.UpsertSettings(ctx, merged)
	})
	if err != nil {
		return core.Settings{}, err
	}
	if err := s.apply(op, func() { s.settings = saved }); err != nil {
		return core.Settings{}, err
	}
	s.logger.Info("settings updated", log.FieldCurrency, saved.Currency.Code, log.FieldLocale, saved.Currency.Locale)
	return saved, nil
}

func (s *Store) resolveCategory(id, name string) (core.Category, bool) {
	if id != "" {
		return s.categoryByID(id)
	}
	return s.categoryByName(name)
}

func (s *Store) categoryByID(id string) (core.Category, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.Snapshot{Categories: s.categories}.CategoryByID(id)
}

func (s *Store) categoryByName(name string) (core.Category, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.Snapshot{Categories: s.categories}.CategoryByName(name)
}

func (s *Store) categoryInUse(cat core.Category) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.expenses {
		if e.CategoryID == cat.ID || (e.CategoryID == "" && e.CategoryName == cat.Name) {
			return true
		}
	}
	return false
}

func (s *Store) findExpense(id string) (core.Expense, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.expenses {
		if e.ID == id {
			return e, true
		}
	}
	return core.Expense{}, false
}

func (s *Store) hasGoal(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.goals {
		if g.ID == id {
			return true
		}
	}
	return false
}

// replaceCategory must be called with s.mu held.
func (s *Store) replaceCategory(c core.Category) {
	for i := range s.categories {
		if s.categories[i].ID == c.ID {
			s.categories[i] = c
			return
		}
	}
}

func removeExpense(exps []core.Expense, id string) []core.Expense {
	out := exps[:0:0]
	for _, e := range exps {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}
