package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"favorsweb/internal/auth"
	"favorsweb/internal/domain"
)

const maxResponseBytes = 8 << 20

// TokenSource supplies the bearer token attached to backend calls. An empty
// string means no session.
type TokenSource interface {
	Token() string
}

type StaticToken string

func (t StaticToken) Token() string { return string(t) }

type Options struct {
	// BaseURL defaults to http://localhost:8080/api.
	BaseURL    string
	HTTPClient *http.Client
	Tokens     TokenSource
	// OnUnauthorized runs with the offending token after the backend rejects
	// it on an authenticated call or it is found expired locally.
	OnUnauthorized func(token string)
	// Observe, when set, is called once per completed round trip.
	Observe func(op string, status int, d time.Duration)
	Logger  *slog.Logger
	Now     func() time.Time
}

// Client is a typed client for the favors REST API. It is safe for
// concurrent use. Calls are never retried or cached.
type Client struct {
	baseURL        string
	http           *http.Client
	tokens         TokenSource
	onUnauthorized func(token string)
	observe        func(string, int, time.Duration)
	logger         *slog.Logger
	now            func() time.Time

	Auth          *AuthAPI
	Users         *UsersAPI
	Friends       *FriendsAPI
	Posts         *PostsAPI
	Tasks         *TasksAPI
	Payments      *PaymentsAPI
	Reviews       *ReviewsAPI
	Messaging     *MessagingAPI
	Notifications *NotificationsAPI
	Health        *HealthAPI
}

func New(opts Options) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		http:           opts.HTTPClient,
		tokens:         opts.Tokens,
		onUnauthorized: opts.OnUnauthorized,
		observe:        opts.Observe,
		logger:         opts.Logger,
		now:            opts.Now,
	}
	if c.baseURL == "" {
		c.baseURL = "http://localhost:8080/api"
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}

	c.Auth = &AuthAPI{c: c}
	c.Users = &UsersAPI{c: c}
	c.Friends = &FriendsAPI{c: c}
	c.Posts = &PostsAPI{c: c}
	c.Tasks = &TasksAPI{c: c}
	c.Payments = &PaymentsAPI{c: c}
	c.Reviews = &ReviewsAPI{c: c}
	c.Messaging = &MessagingAPI{c: c}
	c.Notifications = &NotificationsAPI{c: c}
	c.Health = &HealthAPI{c: c}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// call describes one backend request.
type call struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	// auth calls fail fast without a usable token.
	auth bool
	// fallback is the error message used when the backend supplies none.
	fallback string
}

func (c *Client) token() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

func (c *Client) resolve(path string, query url.Values) string {
	u := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		u = c.baseURL + "/" + strings.TrimLeft(path, "/")
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) unauthorized(token string) {
	if c.onUnauthorized != nil {
		c.onUnauthorized(token)
	}
}

func (c *Client) do(ctx context.Context, cl call, out any) error {
	// Public calls go out without credentials.
	var token string
	if cl.auth {
		token = c.token()
		if err := auth.CheckToken(token, c.now()); err != nil {
			if errors.Is(err, domain.ErrTokenExpired) {
				c.unauthorized(token)
			}
			return err
		}
	}

	var body io.Reader
	if cl.body != nil {
		b, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", cl.op, err)
		}
		body = bytes.NewReader(b)
	}

	status, raw, err := c.roundTrip(ctx, cl.op, cl.method, c.resolve(cl.path, cl.query), token, body)
	if err != nil {
		return err
	}

	if status < 200 || status > 299 {
		apiErr := newAPIError(status, raw, cl.fallback)
		if status == http.StatusUnauthorized && cl.auth {
			c.unauthorized(token)
		}
		c.logger.Debug("backend call failed", "op", cl.op, "status", status, "message", apiErr.Message)
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", cl.op, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, op, method, target, token string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if rid, ok := RequestIDFromContext(ctx); ok {
		req.Header.Set("X-Request-Id", rid)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, &TransportError{Op: op, URL: target, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, &TransportError{Op: op, URL: target, Err: err}
	}
	if c.observe != nil {
		c.observe(op, resp.StatusCode, time.Since(start))
	}
	return resp.StatusCode, raw, nil
}

func doJSON[T any](ctx context.Context, c *Client, cl call) (T, error) {
	var out T
	if err := c.do(ctx, cl, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

type requestIDKey struct{}

// WithRequestID makes outgoing backend calls carry id as X-Request-Id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}
