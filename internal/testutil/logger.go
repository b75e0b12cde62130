package testutil

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
)

// NopLogger returns a logger that discards all output
func NopLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// LogBuffer collects JSON log output at debug level and above
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// NewLogBuffer returns a buffer and a logger writing into it
func NewLogBuffer() (*LogBuffer, *slog.Logger) {
	lb := &LogBuffer{}
	return lb, slog.New(slog.NewJSONHandler(lb, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// Write implements io.Writer
func (lb *LogBuffer) Write(p []byte) (int, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.buf.Write(p)
}

// Entries decodes every log line written so far
func (lb *LogBuffer) Entries() []map[string]any {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	var entries []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(lb.buf.Bytes()))
	for sc.Scan() {
		var entry map[string]any
		if json.Unmarshal(sc.Bytes(), &entry) == nil {
			entries = append(entries, entry)
		}
	}
	return entries
}

// Find returns the first entry with the given message, or nil
func (lb *LogBuffer) Find(msg string) map[string]any {
	for _, entry := range lb.Entries() {
		if entry[slog.MessageKey] == msg {
			return entry
		}
	}
	return nil
}
