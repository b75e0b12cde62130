package response

import (
	"time"

	"github.com/mcoot/anonhere/internal/model"
	"github.com/mcoot/anonhere/internal/services/chat"
	"github.com/mcoot/anonhere/internal/services/session"
)

// Status is a bare acknowledgement
type Status struct {
	Status string `json:"status"`
}

// Health is the response for the health endpoint
type Health struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}

// Login is the response for a successful login
type Login struct {
	Username     string `json:"username"`
	SessionToken string `json:"session_token"`
}

// LoginFromSession converts a session to a Login response
func LoginFromSession(s *session.Session) Login {
	return Login{
		Username:     s.Username,
		SessionToken: s.Token,
	}
}

// Me describes the caller's session
type Me struct {
	Username string  `json:"username"`
	Room     *string `json:"room"`
}

// MeFromSession converts a session to a Me response
func MeFromSession(s *session.Session) Me {
	return Me{
		Username: s.Username,
		Room:     roomCode(s.RoomCode),
	}
}

// Message represents a chat message in API responses
type Message struct {
	ID        int64   `json:"id"`
	Username  string  `json:"username"`
	Content   string  `json:"content"`
	RoomCode  *string `json:"room_code"`
	Timestamp string  `json:"timestamp"`
}

// MessageFromModel converts a model.Message to a response Message
func MessageFromModel(m *model.Message) Message {
	return Message{
		ID:        int64(m.ID),
		Username:  m.Username,
		Content:   m.Content,
		RoomCode:  roomCode(m.RoomCode),
		Timestamp: formatTime(m.Timestamp),
	}
}

// Feed is the response for polling a room
type Feed struct {
	Messages    []Message `json:"messages"`
	ActiveCount int       `json:"active_count"`
}

// FeedFromChat converts a chat.Feed to a response Feed
func FeedFromChat(f *chat.Feed) Feed {
	msgs := make([]Message, 0, len(f.Messages))
	for _, m := range f.Messages {
		msgs = append(msgs, MessageFromModel(m))
	}
	return Feed{
		Messages:    msgs,
		ActiveCount: f.ActiveCount,
	}
}

// Room represents a private room in API responses
type Room struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	ExpiresAt string `json:"expires_at"`
}

// RoomFromModel converts a model.Room to a response Room
func RoomFromModel(r *model.Room, ttl time.Duration) Room {
	return Room{
		Code:      string(r.Code),
		Name:      r.Name,
		CreatedAt: formatTime(r.CreatedAt),
		ExpiresAt: formatTime(r.ExpiresAt(ttl)),
	}
}

// CurrentRoom wraps the caller's room; Room is null in the global room
type CurrentRoom struct {
	Room *Room `json:"room"`
}

func roomCode(c model.RoomCode) *string {
	if c.IsGlobal() {
		return nil
	}
	s := string(c)
	return &s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
