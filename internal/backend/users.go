package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"favorsweb/internal/domain"
)

type UsersAPI struct{ c *Client }

func (u *UsersAPI) GetMe(ctx context.Context) (domain.User, error) {
	return doJSON[domain.User](ctx, u.c, call{
		op:     "users.me",
		method: http.MethodGet,
		path:   "/users/me",
		auth:   true,
	})
}

func (u *UsersAPI) GetUser(ctx context.Context, id int64) (domain.User, error) {
	return doJSON[domain.User](ctx, u.c, call{
		op:     "users.get",
		method: http.MethodGet,
		path:   fmt.Sprintf("/users/%d", id),
		auth:   true,
	})
}

// Search returns users matching q. A blank query returns no users without
// calling the backend.
func (u *UsersAPI) Search(ctx context.Context, q string) ([]domain.User, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []domain.User{}, nil
	}
	out, err := doJSON[[]domain.User](ctx, u.c, call{
		op:       "users.search",
		method:   http.MethodGet,
		path:     "/users/search",
		query:    url.Values{"q": {q}},
		auth:     true,
		fallback: "Failed to search users",
	})
	if out == nil && err == nil {
		out = []domain.User{}
	}
	return out, err
}
