package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/mcoot/anonhere/internal/dependencies/clock"
	"github.com/mcoot/anonhere/internal/dependencies/random"
	"github.com/mcoot/anonhere/internal/model"
	"github.com/mcoot/anonhere/internal/services/presence"
	"github.com/mcoot/anonhere/internal/services/ratelimit"
	"github.com/mcoot/anonhere/internal/services/session"
	"github.com/mcoot/anonhere/internal/storage"
)

const (
	minRoomCode  = 100000
	roomCodeSpan = 900000
)

// ErrNoRoomCode is returned when no free room code was found
var ErrNoRoomCode = errors.New("could not allocate a room code")

// Config holds configuration for the chat service
type Config struct {
	Policies ratelimit.Policies
	RoomTTL  time.Duration
	// MaxCodeAttempts bounds retries when a generated room code is taken
	MaxCodeAttempts int
}

// DefaultConfig returns default chat configuration
func DefaultConfig() Config {
	return Config{
		Policies:        ratelimit.DefaultPolicies(),
		RoomTTL:         time.Hour,
		MaxCodeAttempts: 10,
	}
}

// Feed is what a poll returns: the room's messages and how many users are
// currently polling it
type Feed struct {
	Room        model.RoomCode
	Messages    []*model.Message
	ActiveCount int
}

// Service coordinates sessions, rate limits, presence and the store for
// every chat operation. Each component locks internally; no lock is held
// across a store call.
type Service struct {
	store    storage.Storage
	clock    clock.Clock
	random   random.Random
	limiter  *ratelimit.Limiter
	presence *presence.Tracker
	sessions *session.Registry
	cfg      Config
	logger   *slog.Logger
}

// New creates a Service. A nil logger discards output.
func New(
	store storage.Storage,
	clock clock.Clock,
	random random.Random,
	limiter *ratelimit.Limiter,
	presence *presence.Tracker,
	sessions *session.Registry,
	cfg Config,
	logger *slog.Logger,
) *Service {
	defaults := DefaultConfig()
	if cfg.Policies == nil {
		cfg.Policies = defaults.Policies
	}
	if cfg.RoomTTL <= 0 {
		cfg.RoomTTL = defaults.RoomTTL
	}
	if cfg.MaxCodeAttempts <= 0 {
		cfg.MaxCodeAttempts = defaults.MaxCodeAttempts
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Service{
		store:    store,
		clock:    clock,
		random:   random,
		limiter:  limiter,
		presence: presence,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger,
	}
}

// RoomTTL returns how long a private room stays live
func (s *Service) RoomTTL() time.Duration {
	return s.cfg.RoomTTL
}

// allow applies the named policy to identity
func (s *Service) allow(identity string, action ratelimit.Action) error {
	if !s.limiter.Allow(identity, action, s.cfg.Policies[action]) {
		s.logger.Debug("rate limited",
			slog.String("identity", identity),
			slog.String("action", string(action)),
		)
		return model.ErrRateLimited
	}
	return nil
}

// Session lifecycle

// Login claims username for a new session
func (s *Service) Login(ctx context.Context, identity, username string) (*session.Session, error) {
	name, err := model.NormalizeUsername(username)
	if err != nil {
		return nil, err
	}
	if err := s.allow(identity, ratelimit.ActionLogin); err != nil {
		return nil, err
	}

	sess, err := s.sessions.Register(name)
	if err != nil {
		return nil, err
	}

	s.logger.Info("session started", slog.String("username", sess.Username))
	return sess, nil
}

// Authenticate resolves a bearer token to its session
func (s *Service) Authenticate(token string) (*session.Session, error) {
	if token == "" {
		return nil, session.ErrInvalidSession
	}
	return s.sessions.Lookup(token)
}

// Logout releases the session's username
func (s *Service) Logout(ctx context.Context, sess *session.Session) {
	s.sessions.Unregister(sess.Username)
	s.presence.Forget(sess.RoomCode.PresenceKey(), sess.Username)

	s.logger.Info("session ended", slog.String("username", sess.Username))
}

// Messages

// ListMessages returns the feed for the session's current room and marks
// the caller as present there
func (s *Service) ListMessages(ctx context.Context, sess *session.Session) (*Feed, error) {
	if _, err := s.liveRoom(ctx, sess); err != nil {
		return nil, err
	}

	key := sess.RoomCode.PresenceKey()
	s.presence.Touch(key, sess.Username)

	msgs, err := s.store.ListMessages(ctx, sess.RoomCode)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	return &Feed{
		Room:        sess.RoomCode,
		Messages:    msgs,
		ActiveCount: s.presence.ActiveCount(key),
	}, nil
}

// SendMessage posts content to the session's current room
func (s *Service) SendMessage(ctx context.Context, sess *session.Session, identity, content string) (*model.Message, error) {
	text, err := model.NormalizeContent(content)
	if err != nil {
		return nil, err
	}
	if err := s.allow(identity, ratelimit.ActionSend); err != nil {
		return nil, err
	}
	if _, err := s.liveRoom(ctx, sess); err != nil {
		return nil, err
	}

	s.presence.Touch(sess.RoomCode.PresenceKey(), sess.Username)

	msg := &model.Message{
		Username:  sess.Username,
		Content:   text,
		RoomCode:  sess.RoomCode,
		Timestamp: s.clock.Now(),
	}
	if _, err := s.store.InsertMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return msg, nil
}

// DeleteMessage removes a message authored by the session's username
func (s *Service) DeleteMessage(ctx context.Context, sess *session.Session, identity string, id model.MessageID) error {
	if err := s.allow(identity, ratelimit.ActionDelete); err != nil {
		return err
	}

	msg, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return err
	}
	if msg.Username != sess.Username {
		return model.ErrNotMessageAuthor
	}

	return s.store.DeleteMessage(ctx, id)
}

// Rooms

// CreateRoom creates a private room under a fresh code and moves the
// session into it
func (s *Service) CreateRoom(ctx context.Context, sess *session.Session, identity, name string) (*model.Room, error) {
	if _, err := model.NormalizeRoomName(name, model.GlobalRoom); err != nil {
		return nil, err
	}
	if err := s.allow(identity, ratelimit.ActionCreateRoom); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	for attempt := 0; attempt < s.cfg.MaxCodeAttempts; attempt++ {
		code := s.generateCode()
		roomName, err := model.NormalizeRoomName(name, code)
		if err != nil {
			return nil, err
		}

		room := &model.Room{Code: code, Name: roomName, CreatedAt: now}
		err = s.store.CreateRoom(ctx, room)
		if errors.Is(err, model.ErrRoomCodeTaken) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create room: %w", err)
		}

		if err := s.moveTo(sess, code); err != nil {
			return nil, err
		}
		s.logger.Info("room created",
			slog.String("room_code", string(code)),
			slog.String("username", sess.Username),
		)
		return room, nil
	}

	s.logger.Warn("room code space exhausted", slog.Int("attempts", s.cfg.MaxCodeAttempts))
	return nil, ErrNoRoomCode
}

// JoinRoom moves the session into the room with the given code. Every
// attempt reserves a join_fail slot before the code is looked up, and only
// a successful join hands it back, so once the limit is exhausted every
// join is rejected until the window passes.
func (s *Service) JoinRoom(ctx context.Context, sess *session.Session, identity, rawCode string) (*model.Room, error) {
	policy := s.cfg.Policies[ratelimit.ActionJoinFail]
	ok, release := s.limiter.Reserve(identity, ratelimit.ActionJoinFail, policy)
	if !ok {
		return nil, model.ErrRateLimited
	}

	code, err := model.ParseRoomCode(rawCode)
	if err != nil {
		return nil, model.ErrRoomNotFound
	}

	room, err := s.store.GetRoom(ctx, code)
	if err == nil && room.Expired(s.clock.Now(), s.cfg.RoomTTL) {
		err = model.ErrRoomNotFound
	}
	if errors.Is(err, model.ErrRoomNotFound) {
		return nil, model.ErrRoomNotFound
	}
	release()
	if err != nil {
		return nil, fmt.Errorf("join room: %w", err)
	}

	if err := s.moveTo(sess, code); err != nil {
		return nil, err
	}
	return room, nil
}

// LeaveRoom returns the session to the global room
func (s *Service) LeaveRoom(ctx context.Context, sess *session.Session) error {
	return s.moveTo(sess, model.GlobalRoom)
}

// CurrentRoom returns the session's private room, or nil in the global room.
// A session whose room has expired is moved back to the global room.
func (s *Service) CurrentRoom(ctx context.Context, sess *session.Session) (*model.Room, error) {
	if sess.RoomCode.IsGlobal() {
		return nil, nil
	}
	room, err := s.liveRoom(ctx, sess)
	if errors.Is(err, model.ErrRoomNotFound) {
		return nil, nil
	}
	return room, err
}

// liveRoom returns the session's room. If the room has expired the session
// is reset to the global room and model.ErrRoomNotFound is returned.
func (s *Service) liveRoom(ctx context.Context, sess *session.Session) (*model.Room, error) {
	if sess.RoomCode.IsGlobal() {
		return nil, nil
	}

	room, err := s.store.GetRoom(ctx, sess.RoomCode)
	if err == nil && room.Expired(s.clock.Now(), s.cfg.RoomTTL) {
		err = model.ErrRoomNotFound
	}
	if errors.Is(err, model.ErrRoomNotFound) {
		if err := s.moveTo(sess, model.GlobalRoom); err != nil {
			return nil, err
		}
		return nil, model.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	return room, nil
}

// moveTo changes the session's room affiliation and presence
func (s *Service) moveTo(sess *session.Session, code model.RoomCode) error {
	if err := s.sessions.SetRoom(sess.Token, code); err != nil {
		return err
	}
	if sess.RoomCode != code {
		s.presence.Forget(sess.RoomCode.PresenceKey(), sess.Username)
	}
	sess.RoomCode = code
	return nil
}

func (s *Service) generateCode() model.RoomCode {
	return model.RoomCode(strconv.Itoa(minRoomCode + s.random.Intn(roomCodeSpan)))
}
