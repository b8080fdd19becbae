package backend

import (
	"context"
	"fmt"
	"net/http"

	"favorsweb/internal/domain"
)

type FriendsAPI struct{ c *Client }

// List returns the current user's friends with full profiles.
func (f *FriendsAPI) List(ctx context.Context) ([]domain.User, error) {
	return doJSON[[]domain.User](ctx, f.c, call{
		op:       "friends.list",
		method:   http.MethodGet,
		path:     "/friends/list",
		auth:     true,
		fallback: "Failed to get friends list",
	})
}

// IDs returns the ids of the current user's friends.
func (f *FriendsAPI) IDs(ctx context.Context) ([]int64, error) {
	return doJSON[[]int64](ctx, f.c, call{
		op:       "friends.ids",
		method:   http.MethodGet,
		path:     "/friends",
		auth:     true,
		fallback: "Failed to get friends",
	})
}

func (f *FriendsAPI) SendRequest(ctx context.Context, toUserID int64) error {
	if toUserID <= 0 {
		return domain.NewValidationError(map[string]string{"toUserId": "required"})
	}
	return f.c.do(ctx, call{
		op:       "friends.send",
		method:   http.MethodPost,
		path:     "/friends/requests",
		body:     domain.SendFriendRequest{ToUserID: toUserID},
		auth:     true,
		fallback: "Failed to send friend request",
	}, nil)
}

func (f *FriendsAPI) Accept(ctx context.Context, requestID int64) error {
	return f.c.do(ctx, call{
		op:       "friends.accept",
		method:   http.MethodPut,
		path:     fmt.Sprintf("/friends/requests/%d/accept", requestID),
		auth:     true,
		fallback: "Failed to accept friend request",
	}, nil)
}

func (f *FriendsAPI) Decline(ctx context.Context, requestID int64) error {
	return f.c.do(ctx, call{
		op:       "friends.decline",
		method:   http.MethodPut,
		path:     fmt.Sprintf("/friends/requests/%d/decline", requestID),
		auth:     true,
		fallback: "Failed to decline friend request",
	}, nil)
}

func (f *FriendsAPI) Incoming(ctx context.Context) ([]domain.FriendRequest, error) {
	return doJSON[[]domain.FriendRequest](ctx, f.c, call{
		op:       "friends.incoming",
		method:   http.MethodGet,
		path:     "/friends/requests/incoming",
		auth:     true,
		fallback: "Failed to get friend requests",
	})
}

func (f *FriendsAPI) Outgoing(ctx context.Context) ([]domain.FriendRequest, error) {
	return doJSON[[]domain.FriendRequest](ctx, f.c, call{
		op:       "friends.outgoing",
		method:   http.MethodGet,
		path:     "/friends/requests/outgoing",
		auth:     true,
		fallback: "Failed to get friend requests",
	})
}

func (f *FriendsAPI) Remove(ctx context.Context, friendID int64) error {
	return f.c.do(ctx, call{
		op:       "friends.remove",
		method:   http.MethodDelete,
		path:     fmt.Sprintf("/friends/%d", friendID),
		auth:     true,
		fallback: "Failed to remove friend",
	}, nil)
}
