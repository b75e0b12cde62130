package e2e_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/anonhere/internal/api"
	"github.com/mcoot/anonhere/internal/factory"
)

// cliRunner manages CLI binary execution
type cliRunner struct {
	binaryPath string
	serverURL  string
	tokenFile  string
	// scratchFile receives tokens saved by runWithToken
	scratchFile string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()

	// Find project root (where go.mod is)
	projectRoot := findProjectRoot(t)

	// Build the CLI binary
	binaryPath := filepath.Join(t.TempDir(), "anonhere-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/anonhere")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	// Create temp token file
	tokenFile := filepath.Join(t.TempDir(), "token")

	return &cliRunner{
		binaryPath:  binaryPath,
		serverURL:   serverURL,
		tokenFile:   tokenFile,
		scratchFile: filepath.Join(t.TempDir(), "scratch-token"),
	}
}

func (r *cliRunner) run(args ...string) (string, error) {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--token-file", r.tokenFile,
		"--output", "json",
	}, args...)

	cmd := exec.Command(r.binaryPath, fullArgs...)
	cmd.Env = cliEnv()
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func (r *cliRunner) runWithToken(token string, args ...string) (string, error) {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--token", token,
		"--token-file", r.scratchFile,
		"--output", "json",
	}, args...)

	cmd := exec.Command(r.binaryPath, fullArgs...)
	cmd.Env = cliEnv()
	output, err := cmd.CombinedOutput()
	return string(output), err
}

// cliEnv strips ANONHERE_* settings so the caller's shell cannot leak in
func cliEnv() []string {
	var env []string
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, "ANONHERE_") {
			env = append(env, kv)
		}
	}
	return env
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// testServer manages a real HTTP server for e2e tests
type testServer struct {
	addr     string
	shutdown func()
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	// Find a free port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	// Create application
	app, err := factory.New(factory.Config{Logger: logger})
	require.NoError(t, err)

	server := &http.Server{
		Addr: addr,
		Handler: api.NewRouter(api.RouterConfig{
			Logger:  logger,
			Chat:    app.Chat,
			Sweeper: app.Sweeper,
			Storage: app.Storage,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Start server
	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	// Wait for server to be ready
	serverURL := "http://" + addr
	waitForServer(t, serverURL+"/api/health")

	return &testServer{
		addr: serverURL,
		shutdown: func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(ctx)
			_ = app.Close()
		},
	}
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatal("server did not become ready in time")
}

// Response types for JSON parsing
type loginResponse struct {
	Username     string `json:"username"`
	SessionToken string `json:"session_token"`
}

type feedResponse struct {
	Messages []struct {
		ID       int64   `json:"id"`
		Username string  `json:"username"`
		Content  string  `json:"content"`
		RoomCode *string `json:"room_code"`
	} `json:"messages"`
	ActiveCount int `json:"active_count"`
}

type roomResponse struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// Tests

func TestCLI_HealthCheck(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("health")
	require.NoError(t, err, "output: %s", output)

	var resp healthResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestCLI_ChatBetweenTwoUsers(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	alice := newCLIRunner(t, ts.addr)

	output, err := alice.run("login", "alice")
	require.NoError(t, err, "output: %s", output)
	var login loginResponse
	require.NoError(t, json.Unmarshal([]byte(output), &login))
	assert.Equal(t, "alice", login.Username)

	// Bob uses an explicit token
	output, err = alice.runWithToken("", "login", "bob")
	require.NoError(t, err, "output: %s", output)
	var bob loginResponse
	require.NoError(t, json.Unmarshal([]byte(output), &bob))

	// Alice opens a private room and Bob joins it
	output, err = alice.run("rooms", "create", "--name", "e2e")
	require.NoError(t, err, "output: %s", output)
	var room roomResponse
	require.NoError(t, json.Unmarshal([]byte(output), &room))
	assert.Len(t, room.Code, 6)

	output, err = alice.runWithToken(bob.SessionToken, "rooms", "join", room.Code)
	require.NoError(t, err, "output: %s", output)

	output, err = alice.runWithToken(bob.SessionToken, "messages", "send", "hi", "alice")
	require.NoError(t, err, "output: %s", output)

	output, err = alice.run("messages", "list")
	require.NoError(t, err, "output: %s", output)
	var feed feedResponse
	require.NoError(t, json.Unmarshal([]byte(output), &feed))
	require.Len(t, feed.Messages, 1)
	assert.Equal(t, "bob", feed.Messages[0].Username)
	assert.Equal(t, "hi alice", feed.Messages[0].Content)
	require.NotNil(t, feed.Messages[0].RoomCode)
	assert.Equal(t, room.Code, *feed.Messages[0].RoomCode)

	// Alice cannot delete Bob's message
	output, err = alice.run("messages", "delete", "1")
	assert.Error(t, err)
	assert.Contains(t, output, "FORBIDDEN")

	// The global room never saw it
	output, err = alice.run("rooms", "leave")
	require.NoError(t, err, "output: %s", output)
	output, err = alice.run("messages", "list")
	require.NoError(t, err, "output: %s", output)
	require.NoError(t, json.Unmarshal([]byte(output), &feed))
	assert.Empty(t, feed.Messages)
}

func TestCLI_ErrorHandling(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	// Session commands without a token
	output, err := cli.run("whoami")
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(output), "unauthorized")

	output, err = cli.run("login", "alice")
	require.NoError(t, err, "output: %s", output)

	// The name is held until logout
	output, err = cli.runWithToken("", "login", "alice")
	assert.Error(t, err)
	assert.Contains(t, output, "IDENTITY_IN_USE")

	output, err = cli.run("rooms", "join", "000000")
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(output), "not found")

	output, err = cli.run("logout")
	require.NoError(t, err, "output: %s", output)

	output, err = cli.runWithToken("", "login", "alice")
	assert.NoError(t, err, "output: %s", output)
}
