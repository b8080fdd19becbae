package backend

import (
	"context"
	"net/http"

	"favorsweb/internal/domain"
)

type AuthAPI struct{ c *Client }

func (a *AuthAPI) Register(ctx context.Context, req domain.RegisterRequest) (domain.AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return domain.AuthResponse{}, err
	}
	return doJSON[domain.AuthResponse](ctx, a.c, call{
		op:       "auth.register",
		method:   http.MethodPost,
		path:     "/signup",
		body:     req,
		fallback: "Registration failed",
	})
}

func (a *AuthAPI) Login(ctx context.Context, req domain.LoginRequest) (domain.AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return domain.AuthResponse{}, err
	}
	return doJSON[domain.AuthResponse](ctx, a.c, call{
		op:       "auth.login",
		method:   http.MethodPost,
		path:     "/auth/login",
		body:     req,
		fallback: "Login failed",
	})
}

// Me returns the user the current token belongs to.
func (a *AuthAPI) Me(ctx context.Context) (domain.User, error) {
	return doJSON[domain.User](ctx, a.c, call{
		op:     "auth.me",
		method: http.MethodGet,
		path:   "/auth/me",
		auth:   true,
	})
}

type HealthAPI struct{ c *Client }

func (h *HealthAPI) Check(ctx context.Context) (domain.HealthStatus, error) {
	return doJSON[domain.HealthStatus](ctx, h.c, call{
		op:     "health.check",
		method: http.MethodGet,
		path:   "/health",
	})
}
