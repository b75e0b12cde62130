package redis

import (
	"fmt"

	"github.com/mcoot/anonhere/internal/model"
)

// keys builds the Redis keys for one key prefix
type keys struct {
	prefix string
}

// message returns the key holding a message's JSON
func (k keys) message(id model.MessageID) string {
	return fmt.Sprintf("%s:msg:%d", k.prefix, id)
}

// messageSeq returns the counter used to assign message IDs
func (k keys) messageSeq() string {
	return fmt.Sprintf("%s:msg:seq", k.prefix)
}

// allMessages returns the ZSET of every message ID scored by timestamp
func (k keys) allMessages() string {
	return fmt.Sprintf("%s:msgs", k.prefix)
}

// roomMessages returns the ZSET of a room's message IDs scored by timestamp
func (k keys) roomMessages(code model.RoomCode) string {
	return fmt.Sprintf("%s:room:%s:msgs", k.prefix, code.PresenceKey())
}

// room returns the key holding a room's JSON
func (k keys) room(code model.RoomCode) string {
	return fmt.Sprintf("%s:room:%s", k.prefix, code)
}

// rooms returns the ZSET of room codes scored by creation time
func (k keys) rooms() string {
	return fmt.Sprintf("%s:rooms", k.prefix)
}

// member encodes a message ID as a ZSET member. Zero padding makes the
// lexicographic tie order of equal scores match ID order.
func member(id model.MessageID) string {
	return fmt.Sprintf("%020d", id)
}
