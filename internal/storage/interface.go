package storage

import (
	"context"
	"time"

	"github.com/mcoot/anonhere/internal/model"
)

// MessageStore is the append-only message log.
// Every insert and delete is atomic: a message is either fully visible or absent.
type MessageStore interface {
	// InsertMessage stores msg, assigns its ID and returns it
	InsertMessage(ctx context.Context, msg *model.Message) (model.MessageID, error)
	// ListMessages returns the messages of a room in ascending timestamp order (ties by ID)
	ListMessages(ctx context.Context, room model.RoomCode) ([]*model.Message, error)
	// DeleteMessagesBefore removes every message with timestamp strictly before cutoff
	DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// DeleteMessage removes a single message; deleting a missing message is not an error
	DeleteMessage(ctx context.Context, id model.MessageID) error
	// GetMessage returns model.ErrMessageNotFound for unknown IDs
	GetMessage(ctx context.Context, id model.MessageID) (*model.Message, error)
}

// RoomStore holds the live private rooms
type RoomStore interface {
	// CreateRoom claims room.Code; it fails with model.ErrRoomCodeTaken while
	// another room holds the code
	CreateRoom(ctx context.Context, room *model.Room) error
	// GetRoom returns model.ErrRoomNotFound for unknown codes
	GetRoom(ctx context.Context, code model.RoomCode) (*model.Room, error)
	// DeleteRoomsBefore removes rooms created strictly before cutoff together
	// with their messages, and returns the released codes
	DeleteRoomsBefore(ctx context.Context, cutoff time.Time) ([]model.RoomCode, error)
}

// Storage defines the interface for data persistence
type Storage interface {
	MessageStore
	RoomStore

	// Ping checks that the backend is reachable
	Ping(ctx context.Context) error
	// Close releases backend resources
	Close() error
}
