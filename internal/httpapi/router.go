package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"favorsweb/internal/backend"
	"favorsweb/internal/metrics"
)

type RouterOpts struct {
	Logger *slog.Logger
	IsProd bool

	// Backend is the main REST API. Auth is the origin serving /auth/login;
	// it defaults to Backend.
	Backend *backend.Client
	Auth    *backend.Client

	Metrics *metrics.Metrics
	// LoginRate is the number of login/signup attempts allowed per client IP
	// per minute.
	LoginRate int
}

func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	authClient := opts.Auth
	if authClient == nil {
		authClient = opts.Backend
	}

	api := &api{
		logger:      logger,
		isProd:      opts.IsProd,
		backend:     opts.Backend,
		auth:        authClient,
		metrics:     opts.Metrics,
		authLimiter: newLoginLimiter(opts.LoginRate),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", api.handleHealthz)
	if api.metrics != nil {
		mux.Handle("GET /metrics", api.metrics.Handler())
	}

	mux.HandleFunc("POST /api/login", api.limitAuth(api.handleLogin))
	mux.HandleFunc("POST /api/signup", api.limitAuth(api.handleSignup))
	mux.HandleFunc("GET /api/auth/me", api.requireBearer(msgNoToken, api.handleMe))

	mux.HandleFunc("GET /api/friends", api.requireBearer(msgUnauthorized, api.handleFriendsList))
	mux.HandleFunc("POST /api/friends", api.requireBearer(msgUnauthorized, api.handleFriendsCreateRequest))
	mux.HandleFunc("GET /api/friends/requests", api.requireBearer(msgUnauthorized, api.handleFriendRequests))

	mux.HandleFunc("POST /api/posts", api.requireBearer(msgUnauthorized, api.handlePostsCreate))
	mux.HandleFunc("GET /api/posts/feed", api.requireBearer(msgNoToken, api.handlePostsFeed))

	mux.HandleFunc("GET /api/users/search", api.requireBearer(msgUnauthorized, api.handleUsersSearch))

	mux.HandleFunc("/api/", handleAPINotFound)

	var h http.Handler = mux
	if api.metrics != nil {
		h = api.metrics.InstrumentHandler(h)
	}
	h = RequestLogger(logger)(h)
	h = RequestID()(h)
	h = Recoverer(logger, opts.IsProd)(h)
	return h
}

func handleAPINotFound(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotFound, "not_found", "not found")
}

type api struct {
	logger *slog.Logger
	isProd bool

	backend *backend.Client
	auth    *backend.Client
	metrics *metrics.Metrics

	authLimiter *loginLimiter
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if _, err := a.backend.Health.Check(ctx); err != nil {
		a.logger.Warn("healthz: backend check failed", "err", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("backend down"))
		return
	}

	_, _ = w.Write([]byte("ok"))
}
