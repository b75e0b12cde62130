package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// RoomCode is the six-digit identifier of a private room.
// The zero value denotes the global room.
type RoomCode string

// GlobalRoom is the implicit shared room every session starts in
const GlobalRoom RoomCode = ""

// globalPresenceKey is the presence key of the global room
const globalPresenceKey = "global"

const (
	// RoomCodeLength is the number of digits in a room code
	RoomCodeLength = 6
	// MaxRoomNameLength bounds room display names
	MaxRoomNameLength = 30
)

// IsGlobal reports whether the code refers to the global room
func (c RoomCode) IsGlobal() bool {
	return c == GlobalRoom
}

// PresenceKey returns the key used by the presence tracker:
// "global" for the global room, otherwise the decimal code.
func (c RoomCode) PresenceKey() string {
	if c.IsGlobal() {
		return globalPresenceKey
	}
	return string(c)
}

// ParseRoomCode validates a user-supplied room code
func ParseRoomCode(raw string) (RoomCode, error) {
	code := strings.TrimSpace(raw)
	if len(code) != RoomCodeLength {
		return "", ErrInvalidRoomCode
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return "", ErrInvalidRoomCode
		}
	}
	return RoomCode(code), nil
}

// Room is a private chat room
type Room struct {
	Code      RoomCode
	Name      string
	CreatedAt time.Time
}

// ExpiresAt returns when the room stops being live for the given TTL
func (r *Room) ExpiresAt(ttl time.Duration) time.Time {
	return r.CreatedAt.Add(ttl)
}

// Expired reports whether the room has outlived ttl at now
func (r *Room) Expired(now time.Time, ttl time.Duration) bool {
	return r.CreatedAt.Before(now.Add(-ttl))
}

// NormalizeRoomName trims the name and falls back to a name derived from the code
func NormalizeRoomName(raw string, code RoomCode) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return fmt.Sprintf("Room %s", code), nil
	}
	if utf8.RuneCountInString(name) > MaxRoomNameLength {
		return "", ErrInvalidRoomName
	}
	return name, nil
}
