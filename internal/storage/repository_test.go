package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"spendmind/internal/core"
	"spendmind/internal/log"
	"spendmind/internal/remote"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"), log.Nop())
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteExpenseRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	cat, err := repo.InsertCategory(ctx, core.Category{OwnerID: "alice", Name: "Food", BudgetLimit: decimal.NewFromInt(500)})
	if err != nil {
		t.Fatalf("insert category: %v", err)
	}

	for _, in := range []core.Expense{
		{OwnerID: "alice", Amount: decimal.RequireFromString("12.34"), CategoryID: cat.ID, CategoryName: cat.Name, Date: core.NewDate(2025, 3, 1), Description: "older"},
		{OwnerID: "alice", Amount: decimal.RequireFromString("5"), CategoryID: cat.ID, CategoryName: cat.Name, Date: core.NewDate(2025, 3, 9), Description: "a"},
		{OwnerID: "alice", Amount: decimal.RequireFromString("7"), CategoryID: cat.ID, CategoryName: cat.Name, Date: core.NewDate(2025, 3, 9), Description: "b"},
		{OwnerID: "bob", Amount: decimal.RequireFromString("1"), CategoryName: "Other", Date: core.NewDate(2025, 3, 9), Description: "not mine"},
	} {
		if _, err := repo.InsertExpense(ctx, in); err != nil {
			t.Fatalf("insert expense: %v", err)
		}
	}

	got, err := repo.ListExpenses(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d expenses, want 3", len(got))
	}
	if got[0].Description != "b" || got[1].Description != "a" || got[2].Description != "older" {
		t.Fatalf("unexpected order: %s %s %s", got[0].Description, got[1].Description, got[2].Description)
	}
	if !got[2].Amount.Equal(decimal.RequireFromString("12.34")) {
		t.Fatalf("amount = %s", got[2].Amount)
	}

	if err := repo.DeleteExpense(ctx, "alice", got[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteExpense(ctx, "alice", got[0].ID); !errors.Is(err, remote.ErrNotFound) {
		t.Fatalf("second delete = %v, want ErrNotFound", err)
	}
}

func TestSQLiteCategoryNameIsUniquePerOwner(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if _, err := repo.InsertCategory(ctx, core.Category{OwnerID: "alice", Name: "Food"}); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.InsertCategory(ctx, core.Category{OwnerID: "alice", Name: "Food"}); err == nil {
		t.Fatal("duplicate name for the same owner should be rejected")
	}
	if _, err := repo.InsertCategory(ctx, core.Category{OwnerID: "bob", Name: "Food"}); err != nil {
		t.Fatalf("other owner may reuse the name: %v", err)
	}
	if _, err := repo.InsertCategory(ctx, core.Category{OwnerID: "alice", Name: "food"}); err != nil {
		t.Fatalf("names are case-sensitive: %v", err)
	}
}

func TestSQLiteSettingsUpsert(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if _, err := repo.GetSettings(ctx, "alice"); !errors.Is(err, remote.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	s := core.DefaultSettings("alice")
	if _, err := repo.UpsertSettings(ctx, s); err != nil {
		t.Fatal(err)
	}
	s.Currency = core.Currency{Code: "EUR", Symbol: "€", Locale: "de-DE"}
	if _, err := repo.UpsertSettings(ctx, s); err != nil {
		t.Fatal(err)
	}
	got, err := repo.GetSettings(ctx, "alice")
	if err != nil || got.Currency.Code != "EUR" || got.CountryCode != "US" {
		t.Fatalf("got %+v %v", got, err)
	}
}

func TestSQLiteGoalsAndRename(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	g, err := repo.InsertGoal(ctx, core.Goal{OwnerID: "alice", Title: "Trip", TargetAmount: decimal.NewFromInt(1200), HorizonMonths: 12})
	if err != nil {
		t.Fatal(err)
	}
	goals, _ := repo.ListGoals(ctx, "alice")
	if len(goals) != 1 || goals[0].HorizonMonths != 12 {
		t.Fatalf("goals = %+v", goals)
	}
	if err := repo.DeleteGoal(ctx, "alice", g.ID); err != nil {
		t.Fatal(err)
	}

	cat, _ := repo.InsertCategory(ctx, core.Category{OwnerID: "alice", Name: "Food"})
	_, _ = repo.InsertExpense(ctx, core.Expense{OwnerID: "alice", Amount: decimal.NewFromInt(1), CategoryID: cat.ID, CategoryName: "Food", Date: core.NewDate(2025, 1, 1), Description: "x"})
	if err := repo.RenameExpenseCategory(ctx, "alice", cat.ID, "Groceries"); err != nil {
		t.Fatal(err)
	}
	exps, _ := repo.ListExpenses(ctx, "alice")
	if exps[0].CategoryName != "Groceries" {
		t.Fatalf("category name = %s", exps[0].CategoryName)
	}
}

func TestPgx5URL(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@h/db":  "pgx5://u:p@h/db",
		"postgresql://u@h/db":  "pgx5://u@h/db",
		"pgx5://already/there": "pgx5://already/there",
	}
	for in, want := range cases {
		if got := pgx5URL(in); got != want {
			t.Errorf("pgx5URL(%q) = %q, want %q", in, got, want)
		}
	}
}
