package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"favorsweb/internal/backend"
	"favorsweb/internal/backend/backendtest"
	"favorsweb/internal/metrics"
)

type gateway struct {
	fake    *backendtest.Server
	handler http.Handler
	metrics *metrics.Metrics
}

func newGateway(t *testing.T, loginRate int) *gateway {
	t.Helper()
	fake := backendtest.New(t)
	m := metrics.New()
	client := backend.New(backend.Options{
		BaseURL:    fake.URL(),
		HTTPClient: fake.Client(),
		Observe:    m.ObserveUpstream,
	})
	h := NewRouter(RouterOpts{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Backend:   client,
		Metrics:   m,
		LoginRate: loginRate,
	})
	return &gateway{fake: fake, handler: h, metrics: m}
}

func (g *gateway) do(t *testing.T, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	g.handler.ServeHTTP(rr, req)
	return rr
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	res := gjson.Get(rr.Body.String(), "error.message")
	require.True(t, res.Exists(), "no error envelope in %s", rr.Body.String())
	return res.String()
}

func TestLoginProxy(t *testing.T) {
	g := newGateway(t, 0)
	g.fake.AddUser("alice", "pw")

	rr := g.do(t, http.MethodPost, "/api/login", "", `{"email":"alice@example.com","password":"pw"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.NotEmpty(t, gjson.Get(rr.Body.String(), "token").String())
	assert.Equal(t, "alice", gjson.Get(rr.Body.String(), "user.username").String())

	rr = g.do(t, http.MethodPost, "/api/login", "", `{"email":"alice@example.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Invalid username or password", errorMessage(t, rr))
}

func TestLoginProxyBackendErrorBecomes401(t *testing.T) {
	g := newGateway(t, 0)
	g.fake.Fail("POST /api/auth/login", http.StatusInternalServerError, `not json`)

	rr := g.do(t, http.MethodPost, "/api/login", "", `{"email":"a@b.c","password":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Invalid credentials", errorMessage(t, rr))
}

func TestLoginRateLimited(t *testing.T) {
	g := newGateway(t, 2)
	for i := 0; i < 2; i++ {
		rr := g.do(t, http.MethodPost, "/api/login", "", `{"email":"a@b.c","password":"x"}`)
		require.Equal(t, http.StatusUnauthorized, rr.Code)
	}
	rr := g.do(t, http.MethodPost, "/api/signup", "", `{"email":"a@b.c","username":"a","password":"x"}`)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, 2, g.fake.Hits("POST /api/auth/login"))
	assert.Zero(t, g.fake.Hits("POST /api/auth/register"))
}

func TestSignupProxyPassesStatus(t *testing.T) {
	g := newGateway(t, 0)
	body := `{"email":"bob@example.com","username":"bob","password":"pw","displayName":"Bob"}`

	rr := g.do(t, http.MethodPost, "/api/signup", "", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Bob", gjson.Get(rr.Body.String(), "user.displayName").String())

	rr = g.do(t, http.MethodPost, "/api/signup", "", body)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "Username is already taken", errorMessage(t, rr))
}

func TestMeProxy(t *testing.T) {
	g := newGateway(t, 0)
	alice, tok := g.fake.AddUser("alice", "pw")

	rr := g.do(t, http.MethodGet, "/api/auth/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "No token provided", errorMessage(t, rr))
	assert.Zero(t, g.fake.Hits("GET /api/auth/me"))

	rr = g.do(t, http.MethodGet, "/api/auth/me", tok, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, alice.ID, gjson.Get(rr.Body.String(), "id").Int())

	rr = g.do(t, http.MethodGet, "/api/auth/me", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Invalid or expired token", errorMessage(t, rr))
}

func TestFriendsProxy(t *testing.T) {
	g := newGateway(t, 0)
	_, aliceTok := g.fake.AddUser("alice", "pw")
	bob, bobTok := g.fake.AddUser("bob", "pw")

	rr := g.do(t, http.MethodGet, "/api/friends", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Unauthorized", errorMessage(t, rr))

	for _, body := range []string{`{}`, `{"toUserId":0}`, `{"toUserId":null}`} {
		rr = g.do(t, http.MethodPost, "/api/friends", aliceTok, body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
		assert.Equal(t, "toUserId is required", errorMessage(t, rr))
	}
	assert.Zero(t, g.fake.Hits("POST /api/friends/requests"))

	rr = g.do(t, http.MethodPost, "/api/friends", aliceTok, `{"toUserId":`+jsonInt(bob.ID)+`}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "PENDING", gjson.Get(rr.Body.String(), "status").String())

	rr = g.do(t, http.MethodPost, "/api/friends", aliceTok, `{"toUserId":`+jsonInt(bob.ID)+`}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "Failed to send friend request", errorMessage(t, rr))

	rr = g.do(t, http.MethodGet, "/api/friends/requests", bobTok, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, int64(1), gjson.Get(rr.Body.String(), "incoming.#").Int())
	assert.Equal(t, int64(0), gjson.Get(rr.Body.String(), "outgoing.#").Int())
	assert.True(t, gjson.Get(rr.Body.String(), "outgoing").IsArray())

	rr = g.do(t, http.MethodGet, "/api/friends", bobTok, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestFriendRequestsEitherFailureFails(t *testing.T) {
	g := newGateway(t, 0)
	_, tok := g.fake.AddUser("alice", "pw")
	g.fake.Fail("GET /api/friends/requests/outgoing", http.StatusBadGateway, `{"message":"down"}`)

	rr := g.do(t, http.MethodGet, "/api/friends/requests", tok, "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Failed to get friend requests", errorMessage(t, rr))
}

func TestPostsProxy(t *testing.T) {
	g := newGateway(t, 0)
	_, tok := g.fake.AddUser("alice", "pw")

	rr := g.do(t, http.MethodPost, "/api/posts", tok, `{"type":"OFFER","title":"Dog walking","category":"PET_CARE","price":12.5}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "OPEN", gjson.Get(rr.Body.String(), "status").String())

	rr = g.do(t, http.MethodPost, "/api/posts", tok, `{"type":"REQUEST","title":"Move a couch","category":"MOVING"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = g.do(t, http.MethodPost, "/api/posts", tok, `{"type":"BOGUS","title":""}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Failed to create post", errorMessage(t, rr))

	rr = g.do(t, http.MethodPost, "/api/posts", tok, `not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = g.do(t, http.MethodGet, "/api/posts/feed?type=OFFER&size=5", tok, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(1), gjson.Get(rr.Body.String(), "totalElements").Int())
	assert.Equal(t, "Dog walking", gjson.Get(rr.Body.String(), "content.0.title").String())

	rr = g.do(t, http.MethodGet, "/api/posts/feed", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "No token provided", errorMessage(t, rr))
}

func TestUsersSearchProxy(t *testing.T) {
	g := newGateway(t, 0)
	_, tok := g.fake.AddUser("alice", "pw")
	g.fake.AddUser("alicia", "pw")

	rr := g.do(t, http.MethodGet, "/api/users/search", tok, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
	assert.Zero(t, g.fake.Hits("GET /api/users/search"))

	rr = g.do(t, http.MethodGet, "/api/users/search?q=alic", tok, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var users []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &users))
	assert.Len(t, users, 2)

	g.fake.Fail("GET /api/users/search", http.StatusServiceUnavailable, `{"message":"busy"}`)
	rr = g.do(t, http.MethodGet, "/api/users/search?q=alic", tok, "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "Failed to search users", errorMessage(t, rr))
}

func TestTransportFailure(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	down.Close()
	h := NewRouter(RouterOpts{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Backend: backend.New(backend.Options{BaseURL: down.URL + "/api"}),
	})
	g := &gateway{handler: h}

	rr := g.do(t, http.MethodGet, "/api/auth/me", "tok", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Internal server error", errorMessage(t, rr))

	rr = g.do(t, http.MethodGet, "/api/friends/requests", "tok", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Internal server error", errorMessage(t, rr))

	rr = g.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRequestIDIsForwarded(t *testing.T) {
	g := newGateway(t, 0)
	_, tok := g.fake.AddUser("alice", "pw")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("X-Request-Id", "req-123")
	rr := httptest.NewRecorder()
	g.handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "req-123", rr.Header().Get("X-Request-Id"))
	assert.Equal(t, "req-123", g.fake.LastHeaders().Get("X-Request-Id"))

	rr = g.do(t, http.MethodGet, "/api/auth/me", tok, "")
	assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))
}

func TestHealthzAndMetrics(t *testing.T) {
	g := newGateway(t, 0)

	rr := g.do(t, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())

	g.do(t, http.MethodGet, "/api/users/search", "tok", "")
	g.do(t, http.MethodGet, "/api/nope", "", "")

	rr = g.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `favorsweb_http_requests_total{method="GET",route="/api/users/search",status="200"} 1`)
	assert.Contains(t, body, `favorsweb_http_requests_total{method="GET",route="/api/",status="404"} 1`)
	assert.Contains(t, body, `favorsweb_backend_calls_total{op="health.check",status="200"} 1`)
}

func TestUnknownAPIRoute(t *testing.T) {
	g := newGateway(t, 0)
	rr := g.do(t, http.MethodGet, "/api/does-not-exist", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not found", errorMessage(t, rr))
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
