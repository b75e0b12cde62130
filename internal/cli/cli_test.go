package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/anonhere/internal/api"
	"github.com/mcoot/anonhere/internal/factory"
	"github.com/mcoot/anonhere/internal/testutil"
)

type cliHarness struct {
	serverURL string
	tokenFile string
	app       *factory.TestApp
}

func newHarness(t *testing.T) *cliHarness {
	t.Helper()

	app := factory.NewTestApp()
	srv := httptest.NewServer(api.NewRouter(api.RouterConfig{
		Logger:  testutil.NopLogger(),
		Chat:    app.Chat,
		Sweeper: app.Sweeper,
		Storage: app.Storage,
	}))
	t.Cleanup(srv.Close)

	return &cliHarness{
		serverURL: srv.URL,
		tokenFile: filepath.Join(t.TempDir(), "token"),
		app:       app,
	}
}

func (h *cliHarness) run(args ...string) (string, error) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{
		"--server", h.serverURL,
		"--token-file", h.tokenFile,
		"--token", "",
		"--output", "json",
	}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (h *cliHarness) runJSON(t *testing.T, v any, args ...string) {
	t.Helper()
	out, err := h.run(args...)
	require.NoError(t, err, out)
	require.NoError(t, json.Unmarshal([]byte(out), v), out)
}

func TestLoginSavesToken(t *testing.T) {
	h := newHarness(t)

	var login LoginResult
	h.runJSON(t, &login, "login", "alice")
	assert.Equal(t, "alice", login.Username)

	saved, err := os.ReadFile(h.tokenFile)
	require.NoError(t, err)
	assert.Equal(t, login.SessionToken, string(saved))

	var me Me
	h.runJSON(t, &me, "whoami")
	assert.Equal(t, "alice", me.Username)
	assert.Nil(t, me.Room)
}

func TestLogoutRemovesToken(t *testing.T) {
	h := newHarness(t)

	var login LoginResult
	h.runJSON(t, &login, "login", "alice")

	_, err := h.run("logout")
	require.NoError(t, err)

	_, err = os.Stat(h.tokenFile)
	assert.True(t, os.IsNotExist(err))

	_, err = h.run("whoami")
	assert.Error(t, err)
}

func TestSendListAndDelete(t *testing.T) {
	h := newHarness(t)

	var login LoginResult
	h.runJSON(t, &login, "login", "alice")

	var status StatusResult
	h.runJSON(t, &status, "messages", "send", "hello", "there")
	assert.Equal(t, "sent", status.Status)

	var feed Feed
	h.runJSON(t, &feed, "messages", "list")
	require.Len(t, feed.Messages, 1)
	assert.Equal(t, "hello there", feed.Messages[0].Content)
	assert.Equal(t, 1, feed.ActiveCount)

	h.runJSON(t, &status, "messages", "delete", "1")
	assert.Equal(t, "deleted", status.Status)

	_, err := h.run("messages", "delete", "1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "MESSAGE_NOT_FOUND", apiErr.Code)
	assert.Equal(t, 404, apiErr.Status)
}

func TestRoomCommands(t *testing.T) {
	h := newHarness(t)

	var login LoginResult
	h.runJSON(t, &login, "login", "alice")

	h.app.MockRandom.QueueIntn(777)
	var room Room
	h.runJSON(t, &room, "rooms", "create", "--name", "hideout")
	assert.Equal(t, "100777", room.Code)
	assert.Equal(t, "hideout", room.Name)

	var current CurrentRoom
	h.runJSON(t, &current, "rooms", "current")
	require.NotNil(t, current.Room)
	assert.Equal(t, "100777", current.Room.Code)

	var status StatusResult
	h.runJSON(t, &status, "rooms", "leave")
	assert.Equal(t, "global", status.Status)

	h.runJSON(t, &room, "rooms", "join", "100777")
	assert.Equal(t, "hideout", room.Name)

	_, err := h.run("rooms", "join", "999999")
	assert.ErrorContains(t, err, "ROOM_NOT_FOUND")
}

func TestHealth(t *testing.T) {
	h := newHarness(t)

	var health HealthResult
	h.runJSON(t, &health, "health")
	assert.Equal(t, "ok", health.Status)
}

func TestInvalidOutputFormat(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("--output", "yaml", "health")
	assert.ErrorContains(t, err, "invalid --output")
}

func TestWatchPrintsEachMessageOnce(t *testing.T) {
	h := newHarness(t)

	var login LoginResult
	h.runJSON(t, &login, "login", "alice")
	_, err := h.run("messages", "send", "ping")
	require.NoError(t, err)

	client = NewClient(h.serverURL, login.SessionToken)
	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, watchMessages(ctx, NewOutput("json", &out), 10*time.Millisecond))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1)

	var msg Message
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &msg))
	assert.Equal(t, "ping", msg.Content)
}
