package domain

type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "PENDING"
	FriendRequestAccepted FriendRequestStatus = "ACCEPTED"
	FriendRequestDeclined FriendRequestStatus = "DECLINED"
)

type FriendRequest struct {
	ID        int64               `json:"id"`
	FromUser  User                `json:"fromUser"`
	ToUser    User                `json:"toUser"`
	Status    FriendRequestStatus `json:"status"`
	CreatedAt Timestamp           `json:"createdAt"`
}

type SendFriendRequest struct {
	ToUserID int64 `json:"toUserId"`
}

// FriendRequests is the pending requests of the current user, split by direction.
type FriendRequests struct {
	Incoming []FriendRequest `json:"incoming"`
	Outgoing []FriendRequest `json:"outgoing"`
}

type FriendsOverview struct {
	Friends []User `json:"friends"`
	FriendRequests
	// Partial is set when some friend details could not be loaded.
	Partial bool `json:"partial,omitempty"`
}

// ExcludeUser drops the user with the given id from a search result.
func ExcludeUser(users []User, id int64) []User {
	out := make([]User, 0, len(users))
	for _, u := range users {
		if u.ID == id {
			continue
		}
		out = append(out, u)
	}
	return out
}
