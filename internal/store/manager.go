package store

import (
	"context"
	"sync"

	"spendmind/internal/log"
	"spendmind/internal/remote"
	"spendmind/internal/session"
)

// Manager opens a store when the gate signs someone in and closes it on
// sign-out. The initial load runs in the background; wait on Ready.
type Manager struct {
	ctx    context.Context
	gate   *session.Gate
	remote remote.Remote
	opts   Options
	logger *log.Logger

	mu          sync.Mutex
	current     *Store
	unsubscribe func()
}

// NewManager subscribes to gate. ctx bounds the background loads.
func NewManager(ctx context.Context, gate *session.Gate, r remote.Remote, opts Options) *Manager {
	opts = opts.withDefaults()
	m := &Manager{
		ctx:    ctx,
		gate:   gate,
		remote: r,
		opts:   opts,
		logger: opts.Logger.WithComponent(log.ComponentSession),
	}
	m.unsubscribe = gate.Subscribe(m.handle)
	if owner, epoch, ok := gate.Current(); ok {
		m.open(owner, epoch)
	}
	return m
}

// Current returns the live store, if somebody is signed in.
func (m *Manager) Current() (*Store, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, m.current != nil
}

// Close stops following the gate and closes the live store.
func (m *Manager) Close() {
	m.unsubscribe()
	m.mu.Lock()
	st := m.current
	m.current = nil
	m.mu.Unlock()
	if st != nil {
		st.Close()
	}
}

// handle applies gate transitions. Subscribers run outside the gate's lock,
// so events from racing transitions can arrive out of order; anything older
// than the store already installed is ignored.
func (m *Manager) handle(ev session.Event) {
	switch ev.Transition {
	case session.SignedIn:
		m.open(ev.Owner, ev.Epoch)
	case session.SignedOut:
		m.mu.Lock()
		st := m.current
		if st == nil || st.Epoch() >= ev.Epoch {
			m.mu.Unlock()
			return
		}
		m.current = nil
		m.mu.Unlock()
		st.Close()
		m.logger.Info("store closed", log.FieldOwner, ev.Owner, log.FieldEpoch, ev.Epoch)
	}
}

func (m *Manager) open(owner string, epoch uint64) {
	st, err := New(owner, epoch, m.gate, m.remote, m.opts)
	if err != nil {
		m.logger.Error("open store", log.FieldOwner, owner, log.FieldError, err)
		return
	}
	m.mu.Lock()
	prev := m.current
	if !m.gate.IsCurrent(epoch) || (prev != nil && prev.Epoch() >= epoch) {
		m.mu.Unlock()
		st.Close()
		m.logger.Debug("stale sign-in ignored", log.FieldOwner, owner, log.FieldEpoch, epoch)
		return
	}
	m.current = st
	m.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
	go func() {
		if _, err := st.Load(m.ctx); err != nil {
			m.logger.Debug("initial load discarded", log.FieldOwner, owner, log.FieldError, err)
		}
	}()
}
