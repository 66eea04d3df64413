package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendmind/internal/core"
	"spendmind/internal/log"
	"spendmind/internal/metrics"
	"spendmind/internal/remote"
	"spendmind/internal/remote/memory"
	"spendmind/internal/session"
)

var testNow = time.Date(2025, time.March, 15, 9, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// spyRemote counts calls and can fail or stall selected operations.
type spyRemote struct {
	remote.Remote

	mu      sync.Mutex
	calls   map[string]int
	fail    map[string]error
	stall   chan struct{} // InsertExpense waits on it, ignoring ctx
	entered chan struct{}
}

func newSpy() *spyRemote {
	return &spyRemote{Remote: memory.New(), calls: map[string]int{}, fail: map[string]error{}}
}

func (s *spyRemote) hit(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[name]++
	return s.fail[name]
}

func (s *spyRemote) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *spyRemote) ListCategories(ctx context.Context, owner string) ([]core.Category, error) {
	if err := s.hit("ListCategories"); err != nil {
		return nil, err
	}
	return s.Remote.ListCategories(ctx, owner)
}

func (s *spyRemote) InsertCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := s.hit("InsertCategory"); err != nil {
		return core.Category{}, err
	}
	return s.Remote.InsertCategory(ctx, c)
}

func (s *spyRemote) DeleteCategory(ctx context.Context, owner, id string) error {
	if err := s.hit("DeleteCategory"); err != nil {
		return err
	}
	return s.Remote.DeleteCategory(ctx, owner, id)
}

func (s *spyRemote) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := s.hit("UpdateCategory"); err != nil {
		return core.Category{}, err
	}
	return s.Remote.UpdateCategory(ctx, c)
}

func (s *spyRemote) InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := s.hit("InsertExpense"); err != nil {
		return core.Expense{}, err
	}
	if s.stall != nil {
		if s.entered != nil {
			close(s.entered)
		}
		<-s.stall
	}
	return s.Remote.InsertExpense(ctx, e)
}

func (s *spyRemote) DeleteExpense(ctx context.Context, owner, id string) error {
	if err := s.hit("DeleteExpense"); err != nil {
		return err
	}
	return s.Remote.DeleteExpense(ctx, owner, id)
}

func testOptions() Options {
	return Options{Logger: log.Nop(), Now: func() time.Time { return testNow }}
}

func newStore(t *testing.T, r remote.Remote) *Store {
	t.Helper()
	st, err := New("alice", 1, nil, r, testOptions())
	require.NoError(t, err)
	_, err = st.Load(context.Background())
	require.NoError(t, err)
	return st
}

func addExpense(t *testing.T, st *Store, amount, category string, d core.Date, desc string) core.Expense {
	t.Helper()
	e, err := st.AddExpense(context.Background(), ExpenseInput{Amount: dec(amount), CategoryName: category, Date: d, Description: desc})
	require.NoError(t, err)
	return e
}

func TestBudgetExceededScenario(t *testing.T) {
	ctx := context.Background()
	st := newStore(t, newSpy())

	_, err := st.AddCategory(ctx, "Food")
	require.NoError(t, err)
	_, err = st.UpdateCategoryLimit(ctx, "Food", dec("500"))
	require.NoError(t, err)
	addExpense(t, st, "600", "Food", core.DateOf(testNow), "Groceries")

	status, ok := st.CategoryStatus("Food")
	require.True(t, ok)
	require.True(t, status.Percentage.Valid)
	assert.True(t, status.Percentage.Decimal.Equal(dec("120")), "percentage %s", status.Percentage.Decimal)
	assert.True(t, status.Remaining.Equal(dec("-100")))
	assert.Equal(t, metrics.LevelExceeded, status.Level)

	remaining, bounded := st.RemainingBudget("Food")
	assert.True(t, bounded)
	assert.True(t, remaining.Equal(dec("-100")))

	alerts := st.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "Food", alerts[0].Name)
	assert.True(t, st.MonthTotal().Equal(dec("600")))
}

func TestDeleteCategoryInUseIsRejectedLocally(t *testing.T) {
	ctx := context.Background()
	spy := newSpy()
	st := newStore(t, spy)

	food, err := st.AddCategory(ctx, "Food")
	require.NoError(t, err)
	e := addExpense(t, st, "12.50", "Food", core.DateOf(testNow), "Lunch")

	err = st.DeleteCategory(ctx, food.ID)
	assert.True(t, core.IsKind(err, core.KindConflict), "got %v", err)
	assert.ErrorIs(t, err, core.ErrCategoryInUse)
	assert.Zero(t, spy.count("DeleteCategory"))
	assert.Len(t, st.Categories(), 1)

	require.NoError(t, st.DeleteExpense(ctx, e.ID))
	require.NoError(t, st.DeleteCategory(ctx, food.ID))
	assert.Empty(t, st.Categories())
}

func TestDuplicateCategoryName(t *testing.T) {
	ctx := context.Background()
	spy := newSpy()
	st := newStore(t, spy)

	_, err := st.AddCategory(ctx, "Food")
	require.NoError(t, err)
	_, err = st.AddCategory(ctx, "  Food ")
	assert.True(t, core.IsKind(err, core.KindConflict), "got %v", err)
	assert.Equal(t, 1, spy.count("InsertCategory"))

	// names are case-sensitive
	_, err = st.AddCategory(ctx, "food")
	require.NoError(t, err)
	assert.Equal(t, []string{"Food", "food"}, st.CategoryNames())
}

func TestAddExpenseValidation(t *testing.T) {
	ctx := context.Background()
	spy := newSpy()
	st := newStore(t, spy)
	_, err := st.AddCategory(ctx, "Food")
	require.NoError(t, err)

	cases := []struct {
		name string
		in   ExpenseInput
		want error
	}{
		{"zero amount", ExpenseInput{Amount: decimal.Zero, CategoryName: "Food", Description: "x"}, core.ErrInvalidAmount},
		{"negative amount", ExpenseInput{Amount: dec("-1"), CategoryName: "Food", Description: "x"}, core.ErrInvalidAmount},
		{"blank description", ExpenseInput{Amount: dec("1"), CategoryName: "Food", Description: "   "}, core.ErrEmptyDescription},
		{"long description", ExpenseInput{Amount: dec("1"), CategoryName: "Food", Description: strings.Repeat("a", 201)}, core.ErrLongDescription},
		{"blank category", ExpenseInput{Amount: dec("1"), Description: "x"}, core.ErrEmptyCategory},
		{"unknown category", ExpenseInput{Amount: dec("1"), CategoryName: "Rent", Description: "x"}, core.ErrUnknownCategory},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := st.AddExpense(ctx, tc.in)
			assert.True(t, core.IsKind(err, core.KindValidation), "got %v", err)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Zero(t, spy.count("InsertExpense"))
	assert.Empty(t, st.Expenses())
}

func TestAddExpenseKeepsDateOrder(t *testing.T) {
	ctx := context.Background()
	st := newStore(t, newSpy())
	_, err := st.AddCategory(ctx, "Food")
	require.NoError(t, err)

	addExpense(t, st, "1", "Food", core.NewDate(2025, 3, 10), "older")
	addExpense(t, st, "2", "Food", core.NewDate(2025, 3, 12), "newest date")
	addExpense(t, st, "3", "Food", core.NewDate(2025, 3, 10), "same day, later insert")
	addExpense(t, st, "4", "Food", core.NewDate(2025, 1, 2), "oldest")

	var got []string
	for _, e := range st.Expenses() {
		got = append(got, e.Description)
	}
	assert.Equal(t, []string{"newest date", "same day, later insert", "older", "oldest"}, got)

	// a reload yields the same order
	fresh, err := New("alice", 1, nil, st.remote, testOptions())
	require.NoError(t, err)
	_, err = fresh.Load(ctx)
	require.NoError(t, err)
	var reloaded []string
	for _, e := range fresh.Expenses() {
		reloaded = append(reloaded, e.Description)
	}
	assert.Equal(t, got, reloaded)
}

func TestAddExpenseDefaultsToToday(t *testing.T) {
	ctx := context.Background()
	st := newStore(t, newSpy())
	_, err := st.AddCategory(ctx, "Food")
	require.NoError(t, err)
	e, err := st.AddExpense(ctx, ExpenseInput{Amount: dec("3"), CategoryName: "Food", Description: "Coffee"})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-15", e.Date.String())
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	st := newStore(t, newSpy())

	assert.True(t, core.IsKind(st.DeleteExpense(ctx, "missing"), core.KindNotFound))
	assert.True(t, core.IsKind(st.DeleteCategory(ctx, "missing"), core.KindNotFound))
	assert.True(t, core.IsKind(st.DeleteGoal(ctx, "missing"), core.KindNotFound))
	_, err := st.UpdateCategoryLimit(ctx, "Nope", dec("10"))
	assert.True(t, core.IsKind(err, core.KindNotFound))
}

func TestUpdateCategoryLimit(t *testing.T) {
	ctx := context.Background()
	st := newStore(t, newSpy())
	_, err := st.AddCategory(ctx, "Food")
	require.NoError(t, err)

	_, err = st.UpdateCategoryLimit(ctx, "Food", dec("-5"))
	assert.True(t, core.IsKind(err, core.KindValidation))

	_, err = st.UpdateCategoryLimit(ctx, "Food", dec("250"))
	require.NoError(t, err)
	cat, ok := st.Category("Food")
	require.True(t, ok)
	assert.True(t, cat.BudgetLimit.Equal(dec("250")))
	assert.True(t, st.TotalBudget().Equal(dec("250")))

	_, err = st.UpdateCategoryLimit(ctx, "Food", decimal.Zero)
	require.NoError(t, err)
	_, bounded := st.RemainingBudget("Food")
	assert.False(t, bounded, "a zero limit is unmonitored")
}

func TestRenameCategoryFollowsExpenses(t *testing.T) {
	ctx := context.Background()
	st := newStore(t, newSpy())
	food, err := st.AddCategory(ctx, "Food")
	require.NoError(t, err)
	_, err = st.AddCategory(ctx, "Rent")
	require.NoError(t, err)
	addExpense(t, st, "5", "Food", core.DateOf(testNow), "Snack")

	_, err = st.RenameCategory(ctx, food.ID, "Rent")
	assert.True(t, core.IsKind(err, core.KindConflict))

	_, err = st.RenameCategory(ctx, food.ID, "Groceries")
	require.NoError(t, err)
	assert.Equal(t, "Groceries", st.Expenses()[0].CategoryName)
	assert.Equal(t, food.ID, st.Expenses()[0].CategoryID)

	fresh, err := New("alice", 1, nil, st.remote, testOptions())
	require.NoError(t, err)
	_, err = fresh.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Groceries", fresh.Expenses()[0].CategoryName)
}

func TestGoals(t *testing.T) {
	ctx := context.Background()
	st := newStore(t, newSpy())

	_, err := st.AddGoal(ctx, GoalInput{Title: "Trip", TargetAmount: dec("1200"), HorizonMonths: 0})
	assert.True(t, core.IsKind(err, core.KindValidation))

	g, err := st.AddGoal(ctx, GoalInput{Title: "Trip", TargetAmount: dec("1200"), HorizonMonths: 12})
	require.NoError(t, err)
	require.Len(t, st.Goals(), 1)
	assert.True(t, st.Goals()[0].RequiredMonthly().Equal(dec("100")))

	require.NoError(t, st.DeleteGoal(ctx, g.ID))
	assert.Empty(t, st.Goals())
}

func TestUpdateSettingsPersists(t *testing.T) {
	ctx := context.Background()
	spy := newSpy()
	st := newStore(t, spy)
	assert.Equal(t, "USD", st.Settings().Currency.Code)

	bad := "XXX"
	_, err := st.UpdateSettings(ctx, SettingsPatch{CurrencyCode: &bad})
	assert.True(t, core.IsKind(err, core.KindValidation))

	eur, country := "eur", "de"
	saved, err := st.UpdateSettings(ctx, SettingsPatch{CurrencyCode: &eur, CountryCode: &country})
	require.NoError(t, err)
	assert.Equal(t, core.Currency{Code: "EUR", Symbol: "€", Locale: "de-DE"}, saved.Currency)
	assert.Equal(t, "DE", saved.CountryCode)

	fresh := newStore(t, spy)
	assert.Equal(t, saved.Currency, fresh.Settings().Currency)
}

func TestUpdateSettingsKeepsLocalStateOnFailure(t *testing.T) {
	st := newStore(t, failingSettings{newSpy()})
	gbp := "GBP"
	_, err := st.UpdateSettings(context.Background(), SettingsPatch{CurrencyCode: &gbp})
	assert.True(t, core.IsKind(err, core.KindRemote), "got %v", err)
	assert.Equal(t, "USD", st.Settings().Currency.Code)
}

type failingSettings struct{ *spyRemote }

func (failingSettings) UpsertSettings(context.Context, core.Settings) (core.Settings, error) {
	return core.Settings{}, errors.New("network down")
}

func TestLoadFailureIsPerCollection(t *testing.T) {
	ctx := context.Background()
	spy := newSpy()
	seed := newStore(t, spy)
	_, err := seed.AddCategory(ctx, "Food")
	require.NoError(t, err)
	addExpense(t, seed, "7", "Food", core.DateOf(testNow), "Lunch")

	spy.fail["ListCategories"] = errors.New("boom")
	st, err := New("alice", 1, nil, spy, testOptions())
	require.NoError(t, err)
	res, err := st.Load(ctx)
	require.NoError(t, err)

	assert.False(t, res.OK())
	assert.Contains(t, res.Failed, CollectionCategories)
	assert.Empty(t, st.Categories())
	assert.Len(t, st.Expenses(), 1)
	assert.False(t, st.Loading())
	select {
	case <-st.Ready():
	default:
		t.Fatal("ready must be closed after load")
	}
}

func TestRemoteTimeout(t *testing.T) {
	ctx := context.Background()
	spy := newSpy()
	st := newStore(t, spy)
	_, err := st.AddCategory(ctx, "Food")
	require.NoError(t, err)

	st.timeout = 20 * time.Millisecond
	spy.stall = make(chan struct{})
	t.Cleanup(func() { close(spy.stall) })

	_, err = st.AddExpense(ctx, ExpenseInput{Amount: dec("1"), CategoryName: "Food", Description: "slow"})
	assert.True(t, core.IsKind(err, core.KindTimeout), "got %v", err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, st.Expenses())
}

func TestResultAfterSignOutIsDiscarded(t *testing.T) {
	ctx := context.Background()
	gate := session.NewGate()
	require.NoError(t, gate.SignIn("alice"))
	_, epoch, _ := gate.Current()

	spy := newSpy()
	st, err := New("alice", epoch, gate, spy, testOptions())
	require.NoError(t, err)
	_, err = st.Load(ctx)
	require.NoError(t, err)
	_, err = st.AddCategory(ctx, "Food")
	require.NoError(t, err)

	spy.stall = make(chan struct{})
	spy.entered = make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		_, err := st.AddExpense(ctx, ExpenseInput{Amount: dec("9"), CategoryName: "Food", Description: "late"})
		errCh <- err
	}()

	<-spy.entered
	gate.SignOut()
	close(spy.stall)

	err = <-errCh
	assert.True(t, core.IsKind(err, core.KindSession), "got %v", err)
	assert.ErrorIs(t, err, core.ErrSessionClosed)
	assert.Empty(t, st.Expenses())

	_, err = st.AddCategory(ctx, "Rent")
	assert.True(t, core.IsKind(err, core.KindSession))
}

func TestManagerFollowsGate(t *testing.T) {
	gate := session.NewGate()
	m := NewManager(context.Background(), gate, memory.New(), testOptions())
	defer m.Close()

	_, ok := m.Current()
	assert.False(t, ok)

	require.NoError(t, gate.SignIn("alice"))
	st, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "alice", st.Owner())
	<-st.Ready()

	_, err := st.AddCategory(context.Background(), "Food")
	require.NoError(t, err)

	gate.SignOut()
	_, ok = m.Current()
	assert.False(t, ok)
	assert.Empty(t, st.Categories(), "closed store must drop its state")
}

func TestManagerIgnoresOutOfOrderSignIn(t *testing.T) {
	gate := session.NewGate()
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	// Registered first, so it delays alice's event before the manager sees it.
	gate.Subscribe(func(ev session.Event) {
		if ev.Transition == session.SignedIn && ev.Owner == "alice" {
			once.Do(func() { close(entered) })
			<-release
		}
	})
	m := NewManager(context.Background(), gate, memory.New(), testOptions())
	defer m.Close()

	done := make(chan error, 1)
	go func() { done <- gate.SignIn("alice") }()
	<-entered

	require.NoError(t, gate.SignIn("bob"))
	close(release)
	require.NoError(t, <-done)

	owner, epoch, ok := gate.Current()
	require.True(t, ok)
	require.Equal(t, "bob", owner)

	st, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "bob", st.Owner())
	assert.Equal(t, epoch, st.Epoch())
	<-st.Ready()

	_, err := st.AddCategory(context.Background(), "Food")
	assert.NoError(t, err)
}

func TestManagerIgnoresStaleSignOut(t *testing.T) {
	gate := session.NewGate()
	m := NewManager(context.Background(), gate, memory.New(), testOptions())
	defer m.Close()

	require.NoError(t, gate.SignIn("alice"))
	require.NoError(t, gate.SignIn("bob"))
	st, ok := m.Current()
	require.True(t, ok)
	require.Equal(t, "bob", st.Owner())

	// alice's sign-out was epoch 2; bob's store is epoch 3.
	m.handle(session.Event{Transition: session.SignedOut, Owner: "alice", Epoch: st.Epoch() - 1})
	cur, ok := m.Current()
	require.True(t, ok)
	assert.Same(t, st, cur)
}

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	st := newStore(t, newSpy())
	_, err := st.AddCategoryWithLimit(ctx, "Food", dec("100"))
	require.NoError(t, err)
	_, err = st.AddCategory(ctx, "Fun")
	require.NoError(t, err)
	addExpense(t, st, "95", "Food", core.NewDate(2025, 3, 2), "Market")
	addExpense(t, st, "30", "Fun", core.NewDate(2025, 3, 9), "Cinema")
	addExpense(t, st, "50", "Fun", core.NewDate(2025, 2, 9), "Concert")

	d := st.Dashboard()
	assert.True(t, d.MonthTotal.Equal(dec("125")))
	assert.True(t, d.TotalBudget.Equal(dec("100")))
	require.Len(t, d.Breakdown, 2)
	assert.Equal(t, "Food", d.Breakdown[0].Name)
	require.Len(t, d.Trend, TrendMonths)
	assert.True(t, d.Trend[TrendMonths-2].Amount.Equal(dec("50")))
	require.Len(t, d.Alerts, 1)
	assert.Equal(t, metrics.LevelWarning, d.Alerts[0].Level)
	assert.Len(t, d.Recent, 3)

	year := st.TotalSpent(metrics.YearRange(testNow), "")
	assert.True(t, year.Equal(dec("175")))
}
