// Package postgres implements the remote ports on PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"spendmind/internal/core"
	"spendmind/internal/remote"
	"spendmind/internal/storage"
)

// Connect opens a small pool and applies migrations.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 5
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 2 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := storage.RunPostgresMigrations(databaseURL); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

type Repository struct {
	db  *pgxpool.Pool
	now func() time.Time
}

var _ remote.Remote = (*Repository)(nil)

func New(db *pgxpool.Pool) *Repository {
	return &Repository{db: db, now: time.Now}
}

func (r *Repository) Close() error {
	r.db.Close()
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *Repository) ListExpenses(ctx context.Context, owner string) ([]core.Expense, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, owner_id, amount, category_id, category_name, date, description, created_at
		FROM expenses WHERE owner_id = $1
		ORDER BY date DESC, created_at DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var (
			e            core.Expense
			amount, date string
			created      int64
		)
		if err := rows.Scan(&e.ID, &e.OwnerID, &amount, &e.CategoryID, &e.CategoryName, &date, &e.Description, &created); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("expense %s amount: %w", e.ID, err)
		}
		if e.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("expense %s: %w", e.ID, err)
		}
		e.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repository) InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	e.ID = uuid.NewString()
	e.CreatedAt = r.now().UTC()
	_, err := r.db.Exec(ctx, `
		INSERT INTO expenses (id, owner_id, amount, category_id, category_name, date, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.OwnerID, e.Amount.String(), e.CategoryID, e.CategoryName, e.Date.String(), e.Description, e.CreatedAt.UnixNano())
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	return e, nil
}

func (r *Repository) DeleteExpense(ctx context.Context, owner, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM expenses WHERE owner_id = $1 AND id = $2`, owner, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return affectedOne(tag)
}

func (r *Repository) RenameExpenseCategory(ctx context.Context, owner, categoryID, name string) error {
	if _, err := r.db.Exec(ctx, `UPDATE expenses SET category_name = $1 WHERE owner_id = $2 AND category_id = $3`, name, owner, categoryID); err != nil {
		return fmt.Errorf("rename expense category: %w", err)
	}
	return nil
}

func (r *Repository) ListCategories(ctx context.Context, owner string) ([]core.Category, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, owner_id, name, budget_limit, created_at
		FROM categories WHERE owner_id = $1
		ORDER BY created_at ASC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var (
			c       core.Category
			limit   string
			created int64
		)
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &limit, &created); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		if c.BudgetLimit, err = decimal.NewFromString(limit); err != nil {
			return nil, fmt.Errorf("category %s limit: %w", c.ID, err)
		}
		c.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) InsertCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.ID = uuid.NewString()
	c.CreatedAt = r.now().UTC()
	_, err := r.db.Exec(ctx, `
		INSERT INTO categories (id, owner_id, name, budget_limit, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.OwnerID, c.Name, c.BudgetLimit.String(), c.CreatedAt.UnixNano())
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func (r *Repository) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE categories SET name = $1, budget_limit = $2
		WHERE owner_id = $3 AND id = $4`,
		c.Name, c.BudgetLimit.String(), c.OwnerID, c.ID)
	if err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	if err := affectedOne(tag); err != nil {
		return core.Category{}, err
	}
	return c, nil
}

func (r *Repository) DeleteCategory(ctx context.Context, owner, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM categories WHERE owner_id = $1 AND id = $2`, owner, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return affectedOne(tag)
}

func (r *Repository) ListGoals(ctx context.Context, owner string) ([]core.Goal, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, owner_id, title, target_amount, months, created_at
		FROM goals WHERE owner_id = $1
		ORDER BY created_at ASC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		var (
			g       core.Goal
			target  string
			months  int32
			created int64
		)
		if err := rows.Scan(&g.ID, &g.OwnerID, &g.Title, &target, &months, &created); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		if g.TargetAmount, err = decimal.NewFromString(target); err != nil {
			return nil, fmt.Errorf("goal %s target: %w", g.ID, err)
		}
		g.HorizonMonths = int(months)
		g.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *Repository) InsertGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	g.ID = uuid.NewString()
	g.CreatedAt = r.now().UTC()
	_, err := r.db.Exec(ctx, `
		INSERT INTO goals (id, owner_id, title, target_amount, months, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		g.ID, g.OwnerID, g.Title, g.TargetAmount.String(), g.HorizonMonths, g.CreatedAt.UnixNano())
	if err != nil {
		return core.Goal{}, fmt.Errorf("create goal: %w", err)
	}
	return g, nil
}

func (r *Repository) DeleteGoal(ctx context.Context, owner, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM goals WHERE owner_id = $1 AND id = $2`, owner, id)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return affectedOne(tag)
}

func (r *Repository) GetSettings(ctx context.Context, owner string) (core.Settings, error) {
	s := core.Settings{OwnerID: owner}
	err := r.db.QueryRow(ctx, `
		SELECT currency_code, currency_symbol, currency_locale, country_code
		FROM settings WHERE owner_id = $1`, owner).
		Scan(&s.Currency.Code, &s.Currency.Symbol, &s.Currency.Locale, &s.CountryCode)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Settings{}, remote.ErrNotFound
	}
	if err != nil {
		return core.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	return s, nil
}

func (r *Repository) UpsertSettings(ctx context.Context, s core.Settings) (core.Settings, error) {
	_, err := r.db.Exec(ctx, `
		INSERT INTO settings (owner_id, currency_code, currency_symbol, currency_locale, country_code)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner_id) DO UPDATE SET
			currency_code = EXCLUDED.currency_code,
			currency_symbol = EXCLUDED.currency_symbol,
			currency_locale = EXCLUDED.currency_locale,
			country_code = EXCLUDED.country_code`,
		s.OwnerID, s.Currency.Code, s.Currency.Symbol, s.Currency.Locale, s.CountryCode)
	if err != nil {
		return core.Settings{}, fmt.Errorf("upsert settings: %w", err)
	}
	return s, nil
}

func affectedOne(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return remote.ErrNotFound
	}
	return nil
}
