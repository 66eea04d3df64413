// Package store keeps the signed-in owner's expenses, categories, goals and
// settings in memory, mirrors every mutation to the remote collaborator and
// answers the derived questions the views ask.
//
// Mutations are serialized. Each one validates locally, calls the remote with
// a bounded timeout, and only then applies the remote's answer to the local
// collections. A result arriving after the session that started it has ended
// is discarded.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"spendmind/internal/core"
	"spendmind/internal/log"
	"spendmind/internal/remote"
)

// DefaultTimeout bounds every remote call.
const DefaultTimeout = 15 * time.Second

// Guard reports whether the session a store was opened for is still live.
type Guard interface {
	IsCurrent(epoch uint64) bool
}

// Options tune a Store. Zero values pick the defaults.
type Options struct {
	Timeout time.Duration
	Logger  *log.Logger
	Now     func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Logger == nil {
		o.Logger = log.Default(log.ComponentStore)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Store is the in-memory state of one owner for one session.
type Store struct {
	owner   string
	epoch   uint64
	guard   Guard
	remote  remote.Remote
	timeout time.Duration
	logger  *log.Logger
	now     func() time.Time

	// writeMu serializes mutations end to end, remote call included.
	writeMu sync.Mutex

	mu         sync.RWMutex
	expenses   []core.Expense
	categories []core.Category
	goals      []core.Goal
	settings   core.Settings
	loading    bool
	closed     bool

	readyOnce sync.Once
	ready     chan struct{}
}

// New opens a store for owner. guard may be nil, in which case the store
// stays current until Close.
func New(owner string, epoch uint64, guard Guard, r remote.Remote, opts Options) (*Store, error) {
	if owner == "" {
		return nil, core.Validation("open store", core.ErrEmptyOwner)
	}
	if r == nil {
		return nil, errors.New("store: remote is required")
	}
	opts = opts.withDefaults()
	return &Store{
		owner:    owner,
		epoch:    epoch,
		guard:    guard,
		remote:   r,
		timeout:  opts.Timeout,
		logger:   opts.Logger.WithFields(log.NewFields().WithSession(owner, epoch)),
		now:      opts.Now,
		settings: core.DefaultSettings(owner),
		ready:    make(chan struct{}),
	}, nil
}

func (s *Store) Owner() string { return s.owner }
func (s *Store) Epoch() uint64 { return s.epoch }

// Ready is closed once the first Load has finished, successfully or not.
func (s *Store) Ready() <-chan struct{} { return s.ready }

// Loading reports whether a load is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Close discards all state. Later mutations fail with a session error.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.expenses, s.categories, s.goals = nil, nil, nil
	s.settings = core.DefaultSettings(s.owner)
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })
}

// current must be called without s.mu held.
func (s *Store) current() bool {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	return !closed && s.liveEpoch()
}

func (s *Store) liveEpoch() bool {
	return s.guard == nil || s.guard.IsCurrent(s.epoch)
}

// run calls fn against the remote with the store timeout. A remote that
// ignores its context still cannot hold the caller past the deadline; its
// late answer is dropped.
func run[T any](ctx context.Context, s *Store, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if !s.current() {
		return zero, core.Session(op)
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(cctx)
		done <- result{v, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-cctx.Done():
		res.err = cctx.Err()
	}
	if res.err != nil {
		var err error
		if errors.Is(res.err, remote.ErrNotFound) {
			err = core.NotFound(op, res.err)
		} else {
			err = core.Remote(op, res.err)
		}
		s.logFailure(ctx, op, err)
		return zero, err
	}
	return res.v, nil
}

// call is run for remote calls without a result.
func (s *Store) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := run(ctx, s, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// apply runs fn under the state lock unless the session ended meanwhile.
func (s *Store) apply(op string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.liveEpoch() {
		s.logger.Debug("discarding result of ended session", log.FieldOperation, op)
		return core.Session(op)
	}
	fn()
	return nil
}

func (s *Store) logFailure(ctx context.Context, op string, err error) {
	errType := log.ErrorTypeDatabase
	switch core.KindOf(err) {
	case core.KindTimeout:
		errType = log.ErrorTypeTimeout
	case core.KindNotFound:
		errType = log.ErrorTypeNotFound
	case core.KindValidation:
		errType = log.ErrorTypeValidation
	case core.KindConflict:
		errType = log.ErrorTypeConflict
	}
	s.logger.Failure(ctx, "store operation failed", op, errType, err)
}

// LoadResult reports which collections could not be fetched. Those
// collections are left empty; the others are usable.
type LoadResult struct {
	Failed map[string]error
}

// OK reports whether every collection loaded.
func (r LoadResult) OK() bool { return len(r.Failed) == 0 }

// Collection names used in LoadResult.
const (
	CollectionExpenses   = "expenses"
	CollectionCategories = "categories"
	CollectionGoals      = "goals"
	CollectionSettings   = "settings"
)

// Load fetches the four collections concurrently and replaces local state
// with whatever arrived. A collection failing does not stop the others.
// The only error returned is a session error when the session ended while
// loading.
func (s *Store) Load(ctx context.Context) (LoadResult, error) {
	const op = "load"
	defer s.readyOnce.Do(func() { close(s.ready) })
	if !s.current() {
		return LoadResult{}, core.Session(op)
	}
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	var (
		exps     []core.Expense
		cats     []core.Category
		goals    []core.Goal
		settings = core.DefaultSettings(s.owner)
		failMu   sync.Mutex
		result   = LoadResult{Failed: map[string]error{}}
	)
	fail := func(name string, err error) {
		failMu.Lock()
		result.Failed[name] = err
		failMu.Unlock()
	}

	var g errgroup.Group
	g.Go(func() error {
		var err error
		exps, err = run(ctx, s, op+" "+CollectionExpenses, func(ctx context.Context) ([]core.Expense, error) {
			return s.remote.ListExpenses(ctx, s.owner)
		})
		if err != nil {
			fail(CollectionExpenses, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		cats, err = run(ctx, s, op+" "+CollectionCategories, s.listCategories)
		if err != nil {
			fail(CollectionCategories, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		goals, err = run(ctx, s, op+" "+CollectionGoals, func(ctx context.Context) ([]core.Goal, error) {
			return s.remote.ListGoals(ctx, s.owner)
		})
		if err != nil {
			fail(CollectionGoals, err)
		}
		return nil
	})
	g.Go(func() error {
		got, err := run(ctx, s, op+" "+CollectionSettings, func(ctx context.Context) (core.Settings, error) {
			return s.remote.GetSettings(ctx, s.owner)
		})
		switch {
		case err == nil:
			settings = got
		case core.IsKind(err, core.KindNotFound):
			// never saved; defaults apply
		default:
			fail(CollectionSettings, err)
		}
		return nil
	})
	_ = g.Wait()

	err := s.apply(op, func() {
		s.categories = cats
		s.expenses = core.ResolveNames(exps, cats)
		remote.SortExpenses(s.expenses)
		s.goals = goals
		s.settings = settings
	})
	if err != nil {
		return LoadResult{}, err
	}
	s.logger.Info("store loaded",
		CollectionExpenses, len(exps),
		CollectionCategories, len(cats),
		CollectionGoals, len(goals),
		"failed", len(result.Failed),
	)
	return result, nil
}

func (s *Store) listCategories(ctx context.Context) ([]core.Category, error) {
	return s.remote.ListCategories(ctx, s.owner)
}
