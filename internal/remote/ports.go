// Package remote declares the storage collaborator the domain store talks to.
// Every collection is scoped by owner id; implementations never return rows
// belonging to another owner.
package remote

import (
	"context"
	"errors"

	"spendmind/internal/core"
)

// ErrNotFound is returned when a row addressed by id does not exist for the owner.
var ErrNotFound = errors.New("record not found")

// Ports for outbound adapters.
type (
	ExpenseRepository interface {
		// ListExpenses returns the owner's expenses, newest date first and
		// newest insert first within a date.
		ListExpenses(ctx context.Context, owner string) ([]core.Expense, error)
		InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		DeleteExpense(ctx context.Context, owner, id string) error
		// RenameExpenseCategory refreshes the stored category name of every
		// expense pointing at categoryID.
		RenameExpenseCategory(ctx context.Context, owner, categoryID, name string) error
	}

	CategoryRepository interface {
		// ListCategories returns categories in insertion order.
		ListCategories(ctx context.Context, owner string) ([]core.Category, error)
		InsertCategory(ctx context.Context, c core.Category) (core.Category, error)
		UpdateCategory(ctx context.Context, c core.Category) (core.Category, error)
		DeleteCategory(ctx context.Context, owner, id string) error
	}

	GoalRepository interface {
		ListGoals(ctx context.Context, owner string) ([]core.Goal, error)
		InsertGoal(ctx context.Context, g core.Goal) (core.Goal, error)
		DeleteGoal(ctx context.Context, owner, id string) error
	}

	SettingsRepository interface {
		// GetSettings returns ErrNotFound when the owner never saved settings.
		GetSettings(ctx context.Context, owner string) (core.Settings, error)
		UpsertSettings(ctx context.Context, s core.Settings) (core.Settings, error)
	}

	// Remote is the full storage collaborator.
	Remote interface {
		ExpenseRepository
		CategoryRepository
		GoalRepository
		SettingsRepository
	}
)
