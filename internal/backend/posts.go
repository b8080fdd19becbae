package backend

import (
	"context"
	"fmt"
	"net/http"

	"favorsweb/internal/domain"
)

type PostsAPI struct{ c *Client }

func (p *PostsAPI) Create(ctx context.Context, req domain.CreatePostRequest) (domain.Post, error) {
	if err := req.Validate(); err != nil {
		return domain.Post{}, err
	}
	return doJSON[domain.Post](ctx, p.c, call{
		op:       "posts.create",
		method:   http.MethodPost,
		path:     "/posts",
		body:     req,
		auth:     true,
		fallback: "Failed to create post",
	})
}

func (p *PostsAPI) Get(ctx context.Context, id int64) (domain.Post, error) {
	return doJSON[domain.Post](ctx, p.c, call{
		op:     "posts.get",
		method: http.MethodGet,
		path:   fmt.Sprintf("/posts/%d", id),
		auth:   true,
	})
}

// Update applies a partial update; only the non-nil fields of req are sent.
func (p *PostsAPI) Update(ctx context.Context, id int64, req domain.UpdatePostRequest) (domain.Post, error) {
	if err := req.Validate(); err != nil {
		return domain.Post{}, err
	}
	return doJSON[domain.Post](ctx, p.c, call{
		op:     "posts.update",
		method: http.MethodPut,
		path:   fmt.Sprintf("/posts/%d", id),
		body:   req,
		auth:   true,
	})
}

func (p *PostsAPI) Feed(ctx context.Context, params domain.FeedParams) (domain.PostPage, error) {
	return doJSON[domain.PostPage](ctx, p.c, call{
		op:     "posts.feed",
		method: http.MethodGet,
		path:   "/posts/feed",
		query:  params.Values(),
		auth:   true,
	})
}

// UserPosts lists the posts authored by userID; userID 0 means the current user.
func (p *PostsAPI) UserPosts(ctx context.Context, userID int64) ([]domain.Post, error) {
	if userID > 0 {
		return doJSON[[]domain.Post](ctx, p.c, call{
			op:     "posts.user",
			method: http.MethodGet,
			path:   fmt.Sprintf("/posts/user/%d", userID),
			auth:   true,
		})
	}
	return doJSON[[]domain.Post](ctx, p.c, call{
		op:       "posts.mine",
		method:   http.MethodGet,
		path:     "/posts/my-posts",
		auth:     true,
		fallback: "Failed to get user posts",
	})
}

// Accepted lists the posts the current user has accepted as tasks.
func (p *PostsAPI) Accepted(ctx context.Context) ([]domain.Post, error) {
	return doJSON[[]domain.Post](ctx, p.c, call{
		op:       "posts.accepted",
		method:   http.MethodGet,
		path:     "/posts/accepted",
		auth:     true,
		fallback: "Failed to get accepted posts",
	})
}
