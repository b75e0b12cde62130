package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/anonhere/internal/model"
	"github.com/mcoot/anonhere/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface.
//
// Messages are JSON values indexed by two sorted sets scored by unix
// milliseconds: one per room and one across all rooms for retention.
// Rooms are claimed and indexed by creation time in a single script.
type Storage struct {
	client *redis.Client
	keys   keys
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultConfig().KeyPrefix
	}
	return &Storage{
		client: client,
		keys:   keys{prefix: prefix},
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// score maps a timestamp to a sorted set score
func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// upTo returns a ZRangeBy covering every score at or below t
func upTo(t time.Time) *redis.ZRangeBy {
	return &redis.ZRangeBy{Min: "-inf", Max: strconv.FormatInt(t.UnixMilli(), 10)}
}

// Message operations

func (s *Storage) InsertMessage(ctx context.Context, msg *model.Message) (model.MessageID, error) {
	seq, err := s.client.Incr(ctx, s.keys.messageSeq()).Result()
	if err != nil {
		return 0, fmt.Errorf("allocate message id: %w", err)
	}

	stored := *msg
	stored.ID = model.MessageID(seq)
	stored.Timestamp = stored.Timestamp.UTC()

	data, err := json.Marshal(stored)
	if err != nil {
		return 0, err
	}

	z := redis.Z{Score: score(stored.Timestamp), Member: member(stored.ID)}

	// MULTI/EXEC so the message and both indexes appear together
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.keys.message(stored.ID), data, 0)
	pipe.ZAdd(ctx, s.keys.roomMessages(stored.RoomCode), z)
	pipe.ZAdd(ctx, s.keys.allMessages(), z)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}

	msg.ID = stored.ID
	return stored.ID, nil
}

func (s *Storage) ListMessages(ctx context.Context, room model.RoomCode) ([]*model.Message, error) {
	members, err := s.client.ZRange(ctx, s.keys.roomMessages(room), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	msgs, err := s.loadMessages(ctx, members)
	if err != nil {
		return nil, err
	}
	// Scores have millisecond resolution; restore exact ordering
	model.SortMessages(msgs)
	return msgs, nil
}

func (s *Storage) GetMessage(ctx context.Context, id model.MessageID) (*model.Message, error) {
	data, err := s.client.Get(ctx, s.keys.message(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrMessageNotFound
		}
		return nil, err
	}

	var msg model.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *Storage) DeleteMessage(ctx context.Context, id model.MessageID) error {
	msg, err := s.GetMessage(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrMessageNotFound) {
			return nil
		}
		return err
	}

	pipe := s.client.TxPipeline()
	s.queueMessageDelete(ctx, pipe, msg)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	members, err := s.client.ZRangeByScore(ctx, s.keys.allMessages(), upTo(cutoff)).Result()
	if err != nil {
		return 0, err
	}
	if len(members) == 0 {
		return 0, nil
	}

	msgKeys := make([]string, len(members))
	for i, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("corrupt message index member %q: %w", m, err)
		}
		msgKeys[i] = s.keys.message(model.MessageID(id))
	}

	values, err := s.client.MGet(ctx, msgKeys...).Result()
	if err != nil {
		return 0, err
	}

	var deleted int64
	pipe := s.client.TxPipeline()
	for i, val := range values {
		if val == nil {
			// Deleted concurrently; drop the dangling index entry
			pipe.ZRem(ctx, s.keys.allMessages(), members[i])
			continue
		}
		var msg model.Message
		if err := json.Unmarshal([]byte(val.(string)), &msg); err != nil {
			continue
		}
		// The score range is inclusive at millisecond resolution; the exact
		// timestamp decides
		if !msg.Timestamp.Before(cutoff) {
			continue
		}
		s.queueMessageDelete(ctx, pipe, &msg)
		deleted++
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return deleted, nil
}

// queueMessageDelete adds the commands removing msg and its index entries
func (s *Storage) queueMessageDelete(ctx context.Context, pipe redis.Pipeliner, msg *model.Message) {
	m := member(msg.ID)
	pipe.Del(ctx, s.keys.message(msg.ID))
	pipe.ZRem(ctx, s.keys.roomMessages(msg.RoomCode), m)
	pipe.ZRem(ctx, s.keys.allMessages(), m)
}

// loadMessages fetches the messages for the given index members, skipping
// any that disappeared between the index read and the fetch
func (s *Storage) loadMessages(ctx context.Context, members []string) ([]*model.Message, error) {
	if len(members) == 0 {
		return []*model.Message{}, nil
	}

	msgKeys := make([]string, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		msgKeys = append(msgKeys, s.keys.message(model.MessageID(id)))
	}

	values, err := s.client.MGet(ctx, msgKeys...).Result()
	if err != nil {
		return nil, err
	}

	msgs := make([]*model.Message, 0, len(values))
	for _, val := range values {
		if val == nil {
			continue
		}
		var msg model.Message
		if err := json.Unmarshal([]byte(val.(string)), &msg); err != nil {
			continue // Skip invalid data
		}
		msgs = append(msgs, &msg)
	}
	return msgs, nil
}

// Room operations

// claimRoom writes the index entry before the room key so a failed ZADD
// leaves nothing behind. KEYS: room, rooms index. ARGV: data, score, code.
var claimRoom = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[3])
redis.call('SET', KEYS[1], ARGV[1])
return 1
`)

func (s *Storage) CreateRoom(ctx context.Context, room *model.Room) error {
	stored := *room
	stored.CreatedAt = stored.CreatedAt.UTC()

	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}

	claimed, err := claimRoom.Run(ctx, s.client,
		[]string{s.keys.room(room.Code), s.keys.rooms()},
		data, score(stored.CreatedAt), string(stored.Code),
	).Int()
	if err != nil {
		return fmt.Errorf("claim room code: %w", err)
	}
	if claimed == 0 {
		return model.ErrRoomCodeTaken
	}
	return nil
}

func (s *Storage) GetRoom(ctx context.Context, code model.RoomCode) (*model.Room, error) {
	data, err := s.client.Get(ctx, s.keys.room(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrRoomNotFound
		}
		return nil, err
	}

	var room model.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *Storage) DeleteRoomsBefore(ctx context.Context, cutoff time.Time) ([]model.RoomCode, error) {
	codes, err := s.client.ZRangeByScore(ctx, s.keys.rooms(), upTo(cutoff)).Result()
	if err != nil {
		return nil, err
	}

	var released []model.RoomCode
	for _, c := range codes {
		code := model.RoomCode(c)
		room, err := s.GetRoom(ctx, code)
		if errors.Is(err, model.ErrRoomNotFound) {
			_ = s.client.ZRem(ctx, s.keys.rooms(), c).Err()
			continue
		}
		if err != nil {
			return released, err
		}
		if !room.CreatedAt.Before(cutoff) {
			continue
		}

		if err := s.deleteRoom(ctx, code); err != nil {
			return released, err
		}
		released = append(released, code)
	}
	return released, nil
}

// deleteRoom removes a room, its message index and every message in it
func (s *Storage) deleteRoom(ctx context.Context, code model.RoomCode) error {
	indexKey := s.keys.roomMessages(code)
	members, err := s.client.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		pipe.Del(ctx, s.keys.message(model.MessageID(id)))
		pipe.ZRem(ctx, s.keys.allMessages(), m)
	}
	pipe.Del(ctx, indexKey)
	pipe.Del(ctx, s.keys.room(code))
	pipe.ZRem(ctx, s.keys.rooms(), string(code))
	_, err = pipe.Exec(ctx)
	return err
}

// Lifecycle

// Ping checks the Redis connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}
