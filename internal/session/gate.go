// Package session tracks who is signed in and announces sign-in and
// sign-out transitions to subscribers.
package session

import (
	"strings"
	"sync"

	"spendmind/internal/core"
)

// Transition is the kind of identity change.
type Transition string

const (
	SignedIn  Transition = "signed_in"
	SignedOut Transition = "signed_out"
)

// Event describes one transition. Epoch increases on every transition, so a
// result tagged with an older epoch belongs to a session that has ended.
type Event struct {
	Transition Transition
	Owner      string
	Epoch      uint64
}

type subscriber struct {
	id int
	fn func(Event)
}

// Gate holds the current owner. The zero value is not usable; call NewGate.
type Gate struct {
	mu     sync.RWMutex
	owner  string
	epoch  uint64
	nextID int
	subs   []subscriber
}

func NewGate() *Gate {
	return &Gate{}
}

// SignIn makes owner current. Signing in while another owner is current
// signs that owner out first. Signing in the current owner again is a no-op.
func (g *Gate) SignIn(owner string) error {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return core.Validation("sign in", core.ErrEmptyOwner)
	}

	var events []Event
	g.mu.Lock()
	if g.owner == owner {
		g.mu.Unlock()
		return nil
	}
	if g.owner != "" {
		g.epoch++
		events = append(events, Event{Transition: SignedOut, Owner: g.owner, Epoch: g.epoch})
	}
	g.epoch++
	g.owner = owner
	events = append(events, Event{Transition: SignedIn, Owner: owner, Epoch: g.epoch})
	subs := g.snapshotSubs()
	g.mu.Unlock()

	notify(subs, events)
	return nil
}

// SignOut clears the current owner. It is a no-op when nobody is signed in.
func (g *Gate) SignOut() {
	g.mu.Lock()
	if g.owner == "" {
		g.mu.Unlock()
		return
	}
	g.epoch++
	ev := Event{Transition: SignedOut, Owner: g.owner, Epoch: g.epoch}
	g.owner = ""
	subs := g.snapshotSubs()
	g.mu.Unlock()

	notify(subs, []Event{ev})
}

// Current returns the signed-in owner and the epoch it was signed in at.
func (g *Gate) Current() (owner string, epoch uint64, ok bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.owner, g.epoch, g.owner != ""
}

// IsCurrent reports whether epoch still identifies the live session.
func (g *Gate) IsCurrent(epoch uint64) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.owner != "" && g.epoch == epoch
}

// Subscribe registers fn for future transitions. Subscribers run
// synchronously, outside the gate's lock, in registration order.
func (g *Gate) Subscribe(fn func(Event)) (unsubscribe func()) {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.subs = append(g.subs, subscriber{id: id, fn: fn})
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			for i, s := range g.subs {
				if s.id == id {
					g.subs = append(g.subs[:i:i], g.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (g *Gate) snapshotSubs() []subscriber {
	return append([]subscriber(nil), g.subs...)
}

func notify(subs []subscriber, events []Event) {
	for _, ev := range events {
		for _, s := range subs {
			s.fn(ev)
		}
	}
}
