package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"favorsweb/internal/backend/backendtest"
	"favorsweb/internal/config"
	"favorsweb/internal/domain"
)

func newTestConfig(t *testing.T, fake *backendtest.Server) config.Config {
	t.Helper()
	env := map[string]string{
		"APP_ENV":             "test",
		"APP_LOG_LEVEL":       "error",
		"APP_BACKEND_URL":     fake.URL(),
		"APP_TOKEN_STORE":     "file",
		"APP_TOKEN_PATH":      t.TempDir(),
		"APP_POLL_INTERVAL":   "1h",
		"APP_SEARCH_DEBOUNCE": "20ms",
	}
	cfg, err := config.LoadFromEnv(func(k string) string { return env[k] })
	require.NoError(t, err)
	return cfg
}

func runCLI(t *testing.T, cfg config.Config, stdin string, args ...string) (string, string, error) {
	t.Helper()
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	err := run(context.Background(), cfg, args, strings.NewReader(stdin), stdout, stderr)
	return stdout.String(), stderr.String(), err
}

func loggedIn(t *testing.T, fake *backendtest.Server, username string) (config.Config, domain.User) {
	t.Helper()
	u, _ := fake.AddUser(username, "secret")
	cfg := newTestConfig(t, fake)
	_, _, err := runCLI(t, cfg, "", "login", "-user", username, "-password", "secret")
	require.NoError(t, err)
	return cfg, u
}

func TestRun_LoginPersistsSession(t *testing.T) {
	fake := backendtest.New(t)
	fake.AddUser("alice", "secret")
	cfg := newTestConfig(t, fake)

	stdout, _, err := runCLI(t, cfg, "secret\n", "login", "-user", "alice")
	require.NoError(t, err)
	var u domain.User
	require.NoError(t, json.Unmarshal([]byte(stdout), &u))
	assert.Equal(t, "alice", u.Username)

	// A fresh process restores the stored token.
	stdout, _, err = runCLI(t, cfg, "", "me")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"username": "alice"`)

	_, _, err = runCLI(t, cfg, "", "logout")
	require.NoError(t, err)
	_, _, err = runCLI(t, cfg, "", "me")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")
}

func TestRun_LoginRejected(t *testing.T) {
	fake := backendtest.New(t)
	fake.AddUser("alice", "secret")
	cfg := newTestConfig(t, fake)

	_, _, err := runCLI(t, cfg, "", "login", "-user", "alice", "-password", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRun_UsageAndUnknownCommand(t *testing.T) {
	fake := backendtest.New(t)
	cfg := newTestConfig(t, fake)

	stdout, _, err := runCLI(t, cfg, "", "help")
	assert.ErrorIs(t, err, flag.ErrHelp)
	assert.Contains(t, stdout, "Usage: favors")

	_, stderr, err := runCLI(t, cfg, "", "frobnicate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "frobnicate"`)
	assert.Contains(t, stderr, "Usage: favors")
}

func TestRun_PostLifecycle(t *testing.T) {
	fake := backendtest.New(t)
	cfg, _ := loggedIn(t, fake, "alice")

	stdout, _, err := runCLI(t, cfg, "", "post", "create", "-type", "offer", "-title", "Walk the dog", "-category", "pet_care", "-price", "12.50")
	require.NoError(t, err)
	var p domain.Post
	require.NoError(t, json.Unmarshal([]byte(stdout), &p))
	assert.Equal(t, domain.PostTypeOffer, p.Type)
	assert.Equal(t, domain.PostStatusOpen, p.Status)
	require.NotNil(t, p.Price)
	assert.Equal(t, "12.5", p.Price.String())

	id := strconv.FormatInt(p.ID, 10)
	_, _, err = runCLI(t, cfg, "", "post", "update", id, "-status", "completed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot move post from OPEN to COMPLETED")

	stdout, _, err = runCLI(t, cfg, "", "post", "update", id, "-title", "Walk two dogs")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Walk two dogs")

	stdout, _, err = runCLI(t, cfg, "", "post", "mine")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Walk two dogs")
}

func TestRun_PostCreateValidatesLocally(t *testing.T) {
	fake := backendtest.New(t)
	cfg, _ := loggedIn(t, fake, "alice")

	_, _, err := runCLI(t, cfg, "", "post", "create", "-type", "offer")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Zero(t, fake.Hits("POST /api/posts"))
}

func TestRun_FriendsInteractiveSearchDebounces(t *testing.T) {
	fake := backendtest.New(t)
	fake.AddUser("bob", "pw")
	fake.AddUser("bobby", "pw")
	cfg, _ := loggedIn(t, fake, "alice")

	stdout, _, err := runCLI(t, cfg, "b\nbo\nbob\n", "friends", "search", "-i")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 1)
	var res searchResult
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &res))
	assert.Equal(t, "bob", res.Query)
	require.Len(t, res.Users, 2)
	assert.Equal(t, 1, fake.Hits("GET /api/users/search"))
}

func TestRun_FriendsSearchExcludesSelf(t *testing.T) {
	fake := backendtest.New(t)
	fake.AddUser("alicia", "pw")
	cfg, _ := loggedIn(t, fake, "alice")

	stdout, _, err := runCLI(t, cfg, "", "friends", "search", "ali")
	require.NoError(t, err)
	var res searchResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	require.Len(t, res.Users, 1)
	assert.Equal(t, "alicia", res.Users[0].Username)
}

func TestRun_FriendsListReportsPartial(t *testing.T) {
	fake := backendtest.New(t)
	bob, _ := fake.AddUser("bob", "pw")
	cfg, _ := loggedIn(t, fake, "alice")

	_, _, err := runCLI(t, cfg, "", "friends", "send", strconv.FormatInt(bob.ID, 10))
	require.NoError(t, err)

	fake.Fail("GET /api/friends/list", 500, `{"message":"boom"}`)
	stdout, stderr, err := runCLI(t, cfg, "", "friends", "list")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Some friend details may be missing.")
	assert.JSONEq(t, `[]`, stdout)
}

func TestRun_MessagesWatchSendsStdinLines(t *testing.T) {
	fake := backendtest.New(t)
	bob, _ := fake.AddUser("bob", "pw")
	cfg, alice := loggedIn(t, fake, "alice")

	_, _, err := runCLI(t, cfg, "", "messages", "open", strconv.FormatInt(alice.ID, 10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "yourself")

	stdout, _, err := runCLI(t, cfg, "", "messages", "open", strconv.FormatInt(bob.ID, 10))
	require.NoError(t, err)
	var conv domain.Conversation
	require.NoError(t, json.Unmarshal([]byte(stdout), &conv))
	assert.Equal(t, domain.ConversationDirect, conv.Type)

	stdout, _, err = runCLI(t, cfg, "  hi there  \n", "messages", "watch", strconv.FormatInt(conv.ID, 10))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 1)
	var msg domain.Message
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &msg))
	assert.Equal(t, "hi there", msg.Body)
	assert.Equal(t, "alice", msg.Sender.Username)
	assert.Equal(t, 2, fake.Hits("GET /api/conversations/{id}/messages"))
}

func TestRun_PayWithManualStatus(t *testing.T) {
	fake := backendtest.New(t)
	bob, _ := fake.AddUser("bob", "pw")
	cfg, _ := loggedIn(t, fake, "alice")

	stdout, _, err := runCLI(t, cfg, "", "post", "create", "-type", "request", "-title", "Fix my sink")
	require.NoError(t, err)
	var p domain.Post
	require.NoError(t, json.Unmarshal([]byte(stdout), &p))

	stdout, stderr, err := runCLI(t, cfg, "", "pay",
		"-post", strconv.FormatInt(p.ID, 10),
		"-payee", strconv.FormatInt(bob.ID, 10),
		"-amount", "20")
	require.NoError(t, err)
	assert.Contains(t, stderr, "report the outcome")
	var pending domain.Payment
	require.NoError(t, json.Unmarshal([]byte(stdout), &pending))
	assert.Equal(t, domain.PaymentStatusPending, pending.Status)

	stdout, _, err = runCLI(t, cfg, "", "pay", "status", strconv.FormatInt(pending.ID, 10), "succeeded")
	require.NoError(t, err)
	var done domain.Payment
	require.NoError(t, json.Unmarshal([]byte(stdout), &done))
	assert.Equal(t, domain.PaymentStatusSucceeded, done.Status)
}

func TestRun_NotificationsList(t *testing.T) {
	fake := backendtest.New(t)
	cfg, _ := loggedIn(t, fake, "alice")

	stdout, _, err := runCLI(t, cfg, "", "notifications", "list")
	require.NoError(t, err)
	assert.JSONEq(t, `{"unread":0,"notifications":[]}`, stdout)
}
