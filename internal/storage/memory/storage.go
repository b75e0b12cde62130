package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mcoot/anonhere/internal/model"
	"github.com/mcoot/anonhere/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	nextID   model.MessageID
	messages map[model.MessageID]*model.Message
	byRoom   map[model.RoomCode][]model.MessageID
	rooms    map[model.RoomCode]*model.Room
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		messages: make(map[model.MessageID]*model.Message),
		byRoom:   make(map[model.RoomCode][]model.MessageID),
		rooms:    make(map[model.RoomCode]*model.Room),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Message operations

func (s *Storage) InsertMessage(ctx context.Context, msg *model.Message) (model.MessageID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	stored := *msg
	stored.ID = s.nextID
	stored.Timestamp = stored.Timestamp.UTC()

	s.messages[stored.ID] = &stored
	s.byRoom[stored.RoomCode] = append(s.byRoom[stored.RoomCode], stored.ID)

	msg.ID = stored.ID
	return stored.ID, nil
}

func (s *Storage) ListMessages(ctx context.Context, room model.RoomCode) ([]*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byRoom[room]
	result := make([]*model.Message, 0, len(ids))
	for _, id := range ids {
		msg := *s.messages[id]
		result = append(result, &msg)
	}
	// Timestamps are assigned by callers, so insertion order is not guaranteed to be time order
	model.SortMessages(result)
	return result, nil
}

func (s *Storage) DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, msg := range s.messages {
		if msg.Timestamp.Before(cutoff) {
			s.removeMessageLocked(id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Storage) DeleteMessage(ctx context.Context, id model.MessageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeMessageLocked(id)
	return nil
}

func (s *Storage) GetMessage(ctx context.Context, id model.MessageID) (*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, model.ErrMessageNotFound
	}
	copied := *msg
	return &copied, nil
}

// removeMessageLocked deletes a message and its room index entry; s.mu must be held
func (s *Storage) removeMessageLocked(id model.MessageID) {
	msg, ok := s.messages[id]
	if !ok {
		return
	}
	delete(s.messages, id)

	ids := s.byRoom[msg.RoomCode]
	for i, other := range ids {
		if other == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(s.byRoom, msg.RoomCode)
	} else {
		s.byRoom[msg.RoomCode] = ids
	}
}

// Room operations

func (s *Storage) CreateRoom(ctx context.Context, room *model.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.Code]; ok {
		return model.ErrRoomCodeTaken
	}
	stored := *room
	stored.CreatedAt = stored.CreatedAt.UTC()
	s.rooms[room.Code] = &stored
	return nil
}

func (s *Storage) GetRoom(ctx context.Context, code model.RoomCode) (*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[code]
	if !ok {
		return nil, model.ErrRoomNotFound
	}
	copied := *room
	return &copied, nil
}

func (s *Storage) DeleteRoomsBefore(ctx context.Context, cutoff time.Time) ([]model.RoomCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var released []model.RoomCode
	for code, room := range s.rooms {
		if !room.CreatedAt.Before(cutoff) {
			continue
		}
		for _, id := range s.byRoom[code] {
			delete(s.messages, id)
		}
		delete(s.byRoom, code)
		delete(s.rooms, code)
		released = append(released, code)
	}
	return released, nil
}

// Lifecycle

func (s *Storage) Ping(ctx context.Context) error {
	return nil
}

func (s *Storage) Close() error {
	return nil
}
