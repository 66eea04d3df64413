package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"spendmind/internal/core"
	"spendmind/internal/log"
	"spendmind/internal/remote"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

// SQLiteRepository implements remote.Remote on a local SQLite file.
type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger

	mu       sync.Mutex
	now      func() time.Time
	lastSeen int64
}

var _ remote.Remote = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Default(log.ComponentStorage)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, logger: logger, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// stamp returns a strictly increasing creation time in unix nanoseconds.
func (r *SQLiteRepository) stamp() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.now().UnixNano()
	if n <= r.lastSeen {
		n = r.lastSeen + 1
	}
	r.lastSeen = n
	return n
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, owner string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, amount, category_id, category_name, date, description, created_at
		FROM expenses WHERE owner_id = ?
		ORDER BY date DESC, created_at DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var (
			e       core.Expense
			date    string
			created int64
		)
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.Amount, &e.CategoryID, &e.CategoryName, &date, &e.Description, &created); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if e.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("expense %s: %w", e.ID, err)
		}
		e.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	e.ID = uuid.NewString()
	created := r.stamp()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (id, owner_id, amount, category_id, category_name, date, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OwnerID, e.Amount.String(), e.CategoryID, e.CategoryName, e.Date.Format(dateLayout), e.Description, created)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	e.CreatedAt = time.Unix(0, created).UTC()

	r.logger.DebugContext(ctx, "Expense saved to SQLite",
		log.FieldExpenseID, e.ID,
		log.FieldOwner, e.OwnerID,
		log.FieldAmount, e.Amount.String())
	return e, nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, owner, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE owner_id = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return affectedOne(res)
}

func (r *SQLiteRepository) RenameExpenseCategory(ctx context.Context, owner, categoryID, name string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE expenses SET category_name = ? WHERE owner_id = ? AND category_id = ?`, name, owner, categoryID)
	if err != nil {
		return fmt.Errorf("rename expense category: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, owner string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, name, budget_limit, created_at
		FROM categories WHERE owner_id = ?
		ORDER BY created_at ASC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var (
			c       core.Category
			created int64
		)
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.BudgetLimit, &created); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) InsertCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.ID = uuid.NewString()
	created := r.stamp()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, owner_id, name, budget_limit, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.OwnerID, c.Name, c.BudgetLimit.String(), created)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	c.CreatedAt = time.Unix(0, created).UTC()
	return c, nil
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE categories SET name = ?, budget_limit = ?
		WHERE owner_id = ? AND id = ?`,
		c.Name, c.BudgetLimit.String(), c.OwnerID, c.ID)
	if err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	if err := affectedOne(res); err != nil {
		return core.Category{}, err
	}
	return c, nil
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, owner, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE owner_id = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return affectedOne(res)
}

func (r *SQLiteRepository) ListGoals(ctx context.Context, owner string) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, title, target_amount, months, created_at
		FROM goals WHERE owner_id = ?
		ORDER BY created_at ASC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		var (
			g       core.Goal
			created int64
		)
		if err := rows.Scan(&g.ID, &g.OwnerID, &g.Title, &g.TargetAmount, &g.HorizonMonths, &created); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		g.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) InsertGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	g.ID = uuid.NewString()
	created := r.stamp()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO goals (id, owner_id, title, target_amount, months, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		g.ID, g.OwnerID, g.Title, g.TargetAmount.String(), g.HorizonMonths, created)
	if err != nil {
		return core.Goal{}, fmt.Errorf("create goal: %w", err)
	}
	g.CreatedAt = time.Unix(0, created).UTC()
	return g, nil
}

func (r *SQLiteRepository) DeleteGoal(ctx context.Context, owner, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM goals WHERE owner_id = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return affectedOne(res)
}

func (r *SQLiteRepository) GetSettings(ctx context.Context, owner string) (core.Settings, error) {
	s := core.Settings{OwnerID: owner}
	err := r.db.QueryRowContext(ctx, `
		SELECT currency_code, currency_symbol, currency_locale, country_code
		FROM settings WHERE owner_id = ?`, owner).
		Scan(&s.Currency.Code, &s.Currency.Symbol, &s.Currency.Locale, &s.CountryCode)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Settings{}, remote.ErrNotFound
	}
	if err != nil {
		return core.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) UpsertSettings(ctx context.Context, s core.Settings) (core.Settings, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (owner_id, currency_code, currency_symbol, currency_locale, country_code)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (owner_id) DO UPDATE SET
			currency_code = excluded.currency_code,
			currency_symbol = excluded.currency_symbol,
			currency_locale = excluded.currency_locale,
			country_code = excluded.country_code`,
		s.OwnerID, s.Currency.Code, s.Currency.Symbol, s.Currency.Locale, s.CountryCode)
	if err != nil {
		return core.Settings{}, fmt.Errorf("upsert settings: %w", err)
	}
	return s, nil
}

func affectedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return remote.ErrNotFound
	}
	return nil
}
