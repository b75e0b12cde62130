package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.w, string(data))
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

// PrintChatMessage outputs one message as it arrives in a watch
func (o *Output) PrintChatMessage(m Message) {
	if o.format == "json" {
		data, _ := json.Marshal(m)
		_, _ = fmt.Fprintln(o.w, string(data))
		return
	}
	o.printChatMessage(m)
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case LoginResult:
		o.printLoginResult(v)
	case Me:
		o.printMe(v)
	case Feed:
		o.printFeed(v)
	case Room:
		o.printRoom(v)
	case CurrentRoom:
		o.printCurrentRoom(v)
	case StatusResult:
		_, _ = fmt.Fprintf(o.w, "Status: %s\n", v.Status)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// LoginResult response type (matches API)
type LoginResult struct {
	Username     string `json:"username"`
	SessionToken string `json:"session_token"`
}

// Me response type
type Me struct {
	Username string  `json:"username"`
	Room     *string `json:"room"`
}

// Message response type
type Message struct {
	ID        int64   `json:"id"`
	Username  string  `json:"username"`
	Content   string  `json:"content"`
	RoomCode  *string `json:"room_code"`
	Timestamp string  `json:"timestamp"`
}

// Feed response type
type Feed struct {
	Messages    []Message `json:"messages"`
	ActiveCount int       `json:"active_count"`
}

// Room response type
type Room struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	ExpiresAt string `json:"expires_at"`
}

// CurrentRoom response type
type CurrentRoom struct {
	Room *Room `json:"room"`
}

// StatusResult response type
type StatusResult struct {
	Status string `json:"status"`
}

// HealthResult response type
type HealthResult struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}

func (o *Output) printLoginResult(l LoginResult) {
	_, _ = fmt.Fprintf(o.w, "Logged in as: %s\n", l.Username)
	_, _ = fmt.Fprintf(o.w, "Token: %s\n", l.SessionToken)
}

func (o *Output) printMe(m Me) {
	_, _ = fmt.Fprintf(o.w, "Username: %s\n", m.Username)
	_, _ = fmt.Fprintf(o.w, "Room: %s\n", roomLabel(m.Room))
}

func (o *Output) printFeed(f Feed) {
	if len(f.Messages) == 0 {
		_, _ = fmt.Fprintln(o.w, "No messages yet")
	}
	for _, m := range f.Messages {
		o.printChatMessage(m)
	}
	_, _ = fmt.Fprintf(o.w, "Active: %d\n", f.ActiveCount)
}

func (o *Output) printChatMessage(m Message) {
	stamp := m.Timestamp
	if t, err := time.Parse(time.RFC3339, m.Timestamp); err == nil {
		stamp = t.Local().Format("15:04:05")
	}
	_, _ = fmt.Fprintf(o.w, "[%s] #%d %s: %s\n", stamp, m.ID, m.Username, m.Content)
}

func (o *Output) printRoom(r Room) {
	_, _ = fmt.Fprintf(o.w, "Room: %s (%s)\n", r.Name, r.Code)
	_, _ = fmt.Fprintf(o.w, "Expires: %s\n", r.ExpiresAt)
}

func (o *Output) printCurrentRoom(c CurrentRoom) {
	if c.Room == nil {
		_, _ = fmt.Fprintln(o.w, "Room: global")
		return
	}
	o.printRoom(*c.Room)
}

func (o *Output) printHealthResult(h HealthResult) {
	_, _ = fmt.Fprintf(o.w, "Status: %s\n", h.Status)
	_, _ = fmt.Fprintf(o.w, "Storage: %s\n", h.Storage)
}

func roomLabel(code *string) string {
	if code == nil {
		return "global"
	}
	return *code
}
