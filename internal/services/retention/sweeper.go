package retention

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/anonhere/internal/dependencies/clock"
	"github.com/mcoot/anonhere/internal/storage"
)

// Config holds retention windows
type Config struct {
	MessageTTL time.Duration
	RoomTTL    time.Duration
	// LimiterIdle is how long a rate-limit key may sit unused before it is dropped
	LimiterIdle time.Duration
	// MinInterval skips sweeps requested sooner than this after the last one
	MinInterval time.Duration
}

// DefaultConfig returns the production retention windows
func DefaultConfig() Config {
	return Config{
		MessageTTL:  time.Hour,
		RoomTTL:     time.Hour,
		LimiterIdle: 5 * time.Minute,
	}
}

// LimiterPruner drops idle rate-limit state
type LimiterPruner interface {
	Prune(olderThan time.Time) int
}

// PresencePruner drops stale presence entries
type PresencePruner interface {
	Prune() int
}

// SessionPruner releases idle sessions
type SessionPruner interface {
	PruneIdle(now time.Time) int
}

// Result counts what one sweep removed
type Result struct {
	Skipped      bool
	Messages     int64
	Rooms        int
	LimiterKeys  int
	PresenceKeys int
	Sessions     int
}

// Empty reports whether the sweep removed nothing
func (r Result) Empty() bool {
	return r.Messages == 0 && r.Rooms == 0 && r.LimiterKeys == 0 && r.PresenceKeys == 0 && r.Sessions == 0
}

// Sweeper expires messages, rooms and stale bookkeeping
type Sweeper struct {
	store    storage.Storage
	clock    clock.Clock
	limiter  LimiterPruner
	presence PresencePruner
	sessions SessionPruner
	cfg      Config
	logger   *slog.Logger

	mu        sync.Mutex
	lastSweep time.Time
}

// New creates a Sweeper. A nil logger discards output.
func New(
	store storage.Storage,
	clock clock.Clock,
	limiter LimiterPruner,
	presence PresencePruner,
	sessions SessionPruner,
	cfg Config,
	logger *slog.Logger,
) *Sweeper {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Sweeper{
		store:    store,
		clock:    clock,
		limiter:  limiter,
		presence: presence,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger,
	}
}

// Sweep runs one retention pass relative to now. If another sweep is in
// progress, or the last one ran within MinInterval, it returns immediately
// with Result.Skipped set. Store failures do not stop the in-memory pruning;
// they are joined into the returned error.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (Result, error) {
	if !s.mu.TryLock() {
		return Result{Skipped: true}, nil
	}
	defer s.mu.Unlock()

	if s.cfg.MinInterval > 0 && !s.lastSweep.IsZero() && now.Sub(s.lastSweep) < s.cfg.MinInterval {
		return Result{Skipped: true}, nil
	}
	s.lastSweep = now

	var (
		res  Result
		errs []error
	)

	deleted, err := s.store.DeleteMessagesBefore(ctx, now.Add(-s.cfg.MessageTTL))
	if err != nil {
		errs = append(errs, fmt.Errorf("expire messages: %w", err))
	}
	res.Messages = deleted

	released, err := s.store.DeleteRoomsBefore(ctx, now.Add(-s.cfg.RoomTTL))
	if err != nil {
		errs = append(errs, fmt.Errorf("expire rooms: %w", err))
	}
	res.Rooms = len(released)

	res.LimiterKeys = s.limiter.Prune(now.Add(-s.cfg.LimiterIdle))
	res.PresenceKeys = s.presence.Prune()
	res.Sessions = s.sessions.PruneIdle(now)

	if !res.Empty() {
		s.logger.Debug("retention sweep",
			slog.Int64("messages", res.Messages),
			slog.Int("rooms", res.Rooms),
			slog.Int("limiter_keys", res.LimiterKeys),
			slog.Int("presence_entries", res.PresenceKeys),
			slog.Int("sessions", res.Sessions),
		)
	}

	return res, errors.Join(errs...)
}

// Run sweeps every interval until ctx is cancelled
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx, s.clock.Now()); err != nil {
				s.logger.Error("background sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// SweepNow runs a sweep at the current clock time
func (s *Sweeper) SweepNow(ctx context.Context) (Result, error) {
	return s.Sweep(ctx, s.clock.Now())
}
