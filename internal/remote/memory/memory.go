// Package memory is an in-process implementation of the remote ports, used
// for local runs and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"spendmind/internal/core"
	"spendmind/internal/remote"
)

type Store struct {
	mu         sync.Mutex
	now        func() time.Time
	expenses   map[string][]core.Expense
	categories map[string][]core.Category
	goals      map[string][]core.Goal
	settings   map[string]core.Settings
}

var _ remote.Remote = (*Store)(nil)

func New() *Store {
	return &Store{
		now:        time.Now,
		expenses:   make(map[string][]core.Expense),
		categories: make(map[string][]core.Category),
		goals:      make(map[string][]core.Goal),
		settings:   make(map[string]core.Settings),
	}
}

// WithClock replaces the clock used for CreatedAt stamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// stamp returns a strictly increasing creation time so inserts in the same
// clock tick still order deterministically.
func (s *Store) stamp(last time.Time) time.Time {
	t := s.now()
	if !t.After(last) {
		t = last.Add(time.Nanosecond)
	}
	return t
}

func (s *Store) ListExpenses(ctx context.Context, owner string) ([]core.Expense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.Expense(nil), s.expenses[owner]...)
	remote.SortExpenses(out)
	return out, nil
}

func (s *Store) InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := ctx.Err(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var last time.Time
	if rows := s.expenses[e.OwnerID]; len(rows) > 0 {
		last = rows[len(rows)-1].CreatedAt
	}
	e.ID = uuid.NewString()
	e.CreatedAt = s.stamp(last)
	s.expenses[e.OwnerID] = append(s.expenses[e.OwnerID], e)
	return e, nil
}

func (s *Store) DeleteExpense(ctx context.Context, owner, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.expenses[owner]
	for i, e := range rows {
		if e.ID == id {
			s.expenses[owner] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return remote.ErrNotFound
}

func (s *Store) RenameExpenseCategory(ctx context.Context, owner, categoryID, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.expenses[owner]
	for i := range rows {
		if rows[i].CategoryID == categoryID {
			rows[i].CategoryName = name
		}
	}
	return nil
}

func (s *Store) ListCategories(ctx context.Context, owner string) ([]core.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Category(nil), s.categories[owner]...), nil
}

func (s *Store) InsertCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := ctx.Err(); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var last time.Time
	if rows := s.categories[c.OwnerID]; len(rows) > 0 {
		last = rows[len(rows)-1].CreatedAt
	}
	c.ID = uuid.NewString()
	c.CreatedAt = s.stamp(last)
	s.categories[c.OwnerID] = append(s.categories[c.OwnerID], c)
	return c, nil
}

func (s *Store) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := ctx.Err(); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.categories[c.OwnerID]
	for i := range rows {
		if rows[i].ID == c.ID {
			rows[i].Name = c.Name
			rows[i].BudgetLimit = c.BudgetLimit
			return rows[i], nil
		}
	}
	return core.Category{}, remote.ErrNotFound
}

func (s *Store) DeleteCategory(ctx context.Context, owner, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.categories[owner]
	for i, c := range rows {
		if c.ID == id {
			s.categories[owner] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return remote.ErrNotFound
}

func (s *Store) ListGoals(ctx context.Context, owner string) ([]core.Goal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Goal(nil), s.goals[owner]...), nil
}

func (s *Store) InsertGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	if err := ctx.Err(); err != nil {
		return core.Goal{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g.ID = uuid.NewString()
	g.CreatedAt = s.now()
	s.goals[g.OwnerID] = append(s.goals[g.OwnerID], g)
	return g, nil
}

func (s *Store) DeleteGoal(ctx context.Context, owner, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.goals[owner]
	for i, g := range rows {
		if g.ID == id {
			s.goals[owner] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return remote.ErrNotFound
}

func (s *Store) GetSettings(ctx context.Context, owner string) (core.Settings, error) {
	if err := ctx.Err(); err != nil {
		return core.Settings{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.settings[owner]
	if !ok {
		return core.Settings{}, remote.ErrNotFound
	}
	return st, nil
}

func (s *Store) UpsertSettings(ctx context.Context, st core.Settings) (core.Settings, error) {
	if err := ctx.Err(); err != nil {
		return core.Settings{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[st.OwnerID] = st
	return st, nil
}
