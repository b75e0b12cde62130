package ratelimit

import (
	"sync"
	"time"

	"github.com/mcoot/anonhere/internal/dependencies/clock"
)

// Action names a rate-limited operation
type Action string

const (
	ActionSend       Action = "send"
	ActionDelete     Action = "delete"
	ActionJoinFail   Action = "join_fail"
	ActionLogin      Action = "login"
	ActionCreateRoom Action = "create_room"
)

// Policy allows at most Limit events per sliding Window
type Policy struct {
	Limit  int
	Window time.Duration
}

// Policies maps each action to its policy
type Policies map[Action]Policy

// DefaultPolicies returns the production limits
func DefaultPolicies() Policies {
	return Policies{
		ActionSend:       {Limit: 5, Window: 10 * time.Second},
		ActionDelete:     {Limit: 10, Window: time.Minute},
		ActionJoinFail:   {Limit: 5, Window: time.Minute},
		ActionLogin:      {Limit: 10, Window: time.Minute},
		ActionCreateRoom: {Limit: 5, Window: time.Minute},
	}
}

type key struct {
	identity string
	action   Action
}

// Limiter is a sliding-log rate limiter keyed by (identity, action).
// A rejected call is not recorded, so retrying while throttled does not
// extend the penalty.
type Limiter struct {
	clock clock.Clock

	mu   sync.Mutex
	logs map[key][]time.Time
}

// New creates a Limiter
func New(clock clock.Clock) *Limiter {
	return &Limiter{
		clock: clock,
		logs:  make(map[key][]time.Time),
	}
}

// Allow records an event and reports whether it is within policy
func (l *Limiter) Allow(identity string, action Action, policy Policy) bool {
	ok, _ := l.Reserve(identity, action, policy)
	return ok
}

// Reserve admits and records an event in one step, like Allow. The returned
// release func removes that event again for outcomes that should not count
// against the identity. Release is a no-op when the event was rejected and
// is safe to call more than once.
func (l *Limiter) Reserve(identity string, action Action, policy Policy) (bool, func()) {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	k := key{identity: identity, action: action}
	log := trim(l.logs[k], now.Add(-policy.Window))
	if len(log) >= policy.Limit {
		l.store(k, log)
		return false, func() {}
	}
	l.logs[k] = append(log, now)

	var once sync.Once
	return true, func() {
		once.Do(func() { l.release(k, now) })
	}
}

// Prune drops timestamps before olderThan and removes keys left empty.
// It returns the number of keys removed.
func (l *Limiter) Prune(olderThan time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for k, log := range l.logs {
		kept := log[:0]
		for _, t := range log {
			if !t.Before(olderThan) {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			delete(l.logs, k)
			removed++
			continue
		}
		l.logs[k] = kept
	}
	return removed
}

// Len returns the number of tracked keys
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.logs)
}

func (l *Limiter) release(k key, t time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	log := l.logs[k]
	for i := len(log) - 1; i >= 0; i-- {
		if log[i].Equal(t) {
			l.store(k, append(log[:i], log[i+1:]...))
			return
		}
	}
}

func (l *Limiter) store(k key, log []time.Time) {
	if len(log) == 0 {
		delete(l.logs, k)
		return
	}
	l.logs[k] = log
}

// trim drops entries at or before bound. The whole log is scanned since a
// wall-clock step backwards can leave entries out of order.
func trim(log []time.Time, bound time.Time) []time.Time {
	kept := log[:0]
	for _, t := range log {
		if t.After(bound) {
			kept = append(kept, t)
		}
	}
	return kept
}
