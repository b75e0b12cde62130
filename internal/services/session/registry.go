package session

import (
	"errors"
	"sync"
	"time"

	"github.com/mcoot/anonhere/internal/dependencies/clock"
	"github.com/mcoot/anonhere/internal/dependencies/random"
	"github.com/mcoot/anonhere/internal/model"
)

// Errors
var (
	ErrIdentityInUse  = errors.New("username is in use by another session")
	ErrInvalidSession = errors.New("invalid or expired session")
)

// TokenPrefix marks session tokens
const TokenPrefix = "sess_"

// tokenBytes is the amount of randomness in a session token
const tokenBytes = 32

// Session is a claimed username and its bearer token
type Session struct {
	Username  string
	Token     string
	RoomCode  model.RoomCode
	CreatedAt time.Time
	LastSeen  time.Time
}

// Config holds configuration for the registry
type Config struct {
	// IdleTimeout releases sessions not seen for this long. Zero keeps a
	// session until logout.
	IdleTimeout time.Duration
}

// DefaultConfig returns default registry configuration
func DefaultConfig() Config {
	return Config{}
}

// Registry enforces one live session per username
type Registry struct {
	clock  clock.Clock
	random random.Random
	cfg    Config

	mu         sync.Mutex
	byUsername map[string]*Session
	byToken    map[string]*Session
}

// New creates a Registry
func New(clock clock.Clock, random random.Random, cfg Config) *Registry {
	return &Registry{
		clock:      clock,
		random:     random,
		cfg:        cfg,
		byUsername: make(map[string]*Session),
		byToken:    make(map[string]*Session),
	}
}

// Register claims username for a new session. The first registrant holds
// the name until it is unregistered.
func (r *Registry) Register(username string) (*Session, error) {
	now := r.clock.Now()
	token := TokenPrefix + r.random.Token(tokenBytes)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byUsername[username]; taken {
		return nil, ErrIdentityInUse
	}

	sess := &Session{
		Username:  username,
		Token:     token,
		RoomCode:  model.GlobalRoom,
		CreatedAt: now,
		LastSeen:  now,
	}
	r.byUsername[username] = sess
	r.byToken[token] = sess

	result := *sess
	return &result, nil
}

// Validate reports whether token is the live token for username
func (r *Registry) Validate(username, token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.byUsername[username]
	return ok && sess.Token == token
}

// Lookup returns a copy of the session for token and marks it as seen
func (r *Registry) Lookup(token string) (*Session, error) {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.byToken[token]
	if !ok {
		return nil, ErrInvalidSession
	}
	sess.LastSeen = now

	result := *sess
	return &result, nil
}

// Unregister releases username, invalidating its token
func (r *Registry) Unregister(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(username)
}

// SetRoom changes the room a session is affiliated with
func (r *Registry) SetRoom(token string, code model.RoomCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.byToken[token]
	if !ok {
		return ErrInvalidSession
	}
	sess.RoomCode = code
	return nil
}

// PruneIdle releases sessions idle for longer than the configured timeout
// and returns how many were released
func (r *Registry) PruneIdle(now time.Time) int {
	if r.cfg.IdleTimeout <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for username, sess := range r.byUsername {
		if now.Sub(sess.LastSeen) > r.cfg.IdleTimeout {
			r.removeLocked(username)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUsername)
}

func (r *Registry) removeLocked(username string) {
	sess, ok := r.byUsername[username]
	if !ok {
		return
	}
	delete(r.byUsername, username)
	delete(r.byToken, sess.Token)
}
