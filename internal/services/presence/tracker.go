package presence

import (
	"sync"
	"time"

	"github.com/mcoot/anonhere/internal/dependencies/clock"
)

// DefaultWindow is how long a user counts as active after their last poll
const DefaultWindow = 10 * time.Second

// Tracker records the last time each user was seen in each room
type Tracker struct {
	clock  clock.Clock
	window time.Duration

	mu    sync.Mutex
	rooms map[string]map[string]time.Time
}

// New creates a Tracker. A non-positive window uses DefaultWindow.
func New(clock clock.Clock, window time.Duration) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{
		clock:  clock,
		window: window,
		rooms:  make(map[string]map[string]time.Time),
	}
}

// Touch marks username as seen in roomID now
func (t *Tracker) Touch(roomID, username string) {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	users, ok := t.rooms[roomID]
	if !ok {
		users = make(map[string]time.Time)
		t.rooms[roomID] = users
	}
	users[username] = now
}

// ActiveCount returns the number of users seen in roomID within the window.
// Stale entries for the room are evicted.
func (t *Tracker) ActiveCount(roomID string) int {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.evictLocked(roomID, now)
	return len(t.rooms[roomID])
}

// Forget removes username from roomID
func (t *Tracker) Forget(roomID, username string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	users, ok := t.rooms[roomID]
	if !ok {
		return
	}
	delete(users, username)
	if len(users) == 0 {
		delete(t.rooms, roomID)
	}
}

// Prune evicts stale entries in every room and returns how many were removed
func (t *Tracker) Prune() int {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for roomID := range t.rooms {
		removed += t.evictLocked(roomID, now)
	}
	return removed
}

// evictLocked drops stale entries for one room, deleting the room once empty
func (t *Tracker) evictLocked(roomID string, now time.Time) int {
	users, ok := t.rooms[roomID]
	if !ok {
		return 0
	}
	removed := 0
	for username, seen := range users {
		if now.Sub(seen) >= t.window {
			delete(users, username)
			removed++
		}
	}
	if len(users) == 0 {
		delete(t.rooms, roomID)
	}
	return removed
}
