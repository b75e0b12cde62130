package model

import (
	"cmp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

// MessageID is assigned by the message store and increases monotonically
type MessageID int64

// MaxMessageLength caps message content, counted in runes
const MaxMessageLength = 2000

// Message is an immutable chat message
type Message struct {
	ID        MessageID
	Username  string
	Content   string
	RoomCode  RoomCode // GlobalRoom for the global room
	Timestamp time.Time
}

// NormalizeContent trims message content and enforces the length bounds
func NormalizeContent(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return "", ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return "", ErrMessageTooLong
	}
	return content, nil
}

// SortMessages orders messages by timestamp, breaking ties by ID
func SortMessages(msgs []*Message) {
	slices.SortStableFunc(msgs, func(a, b *Message) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
