package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"favorsweb/internal/domain"
)

type stubFriendsAPI struct {
	listFunc     func(context.Context) ([]domain.User, error)
	idsFunc      func(context.Context) ([]int64, error)
	incomingFunc func(context.Context) ([]domain.FriendRequest, error)
	outgoingFunc func(context.Context) ([]domain.FriendRequest, error)
}

func (s *stubFriendsAPI) List(ctx context.Context) ([]domain.User, error) {
	if s.listFunc != nil {
		return s.listFunc(ctx)
	}
	return nil, errors.New("list not stubbed")
}

func (s *stubFriendsAPI) IDs(ctx context.Context) ([]int64, error) {
	if s.idsFunc != nil {
		return s.idsFunc(ctx)
	}
	return nil, errors.New("ids not stubbed")
}

func (s *stubFriendsAPI) Incoming(ctx context.Context) ([]domain.FriendRequest, error) {
	if s.incomingFunc != nil {
		return s.incomingFunc(ctx)
	}
	return nil, nil
}

func (s *stubFriendsAPI) Outgoing(ctx context.Context) ([]domain.FriendRequest, error) {
	if s.outgoingFunc != nil {
		return s.outgoingFunc(ctx)
	}
	return nil, nil
}

type stubUserLookup struct {
	mu    sync.Mutex
	calls []int64
	users map[int64]domain.User
}

func (s *stubUserLookup) GetUser(_ context.Context, id int64) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, id)
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func TestFriendsServiceOverviewUsesList(t *testing.T) {
	users := &stubUserLookup{}
	svc := &FriendsService{
		Friends: &stubFriendsAPI{
			listFunc: func(context.Context) ([]domain.User, error) {
				return []domain.User{{ID: 2, Username: "bob"}}, nil
			},
			incomingFunc: func(context.Context) ([]domain.FriendRequest, error) {
				return []domain.FriendRequest{{ID: 9, Status: domain.FriendRequestPending}}, nil
			},
		},
		Users: users,
	}

	got, err := svc.Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if got.Partial {
		t.Fatalf("expected complete overview")
	}
	if len(got.Friends) != 1 || got.Friends[0].Username != "bob" {
		t.Fatalf("unexpected friends: %+v", got.Friends)
	}
	if len(got.Incoming) != 1 || got.Outgoing == nil {
		t.Fatalf("unexpected requests: %+v", got.FriendRequests)
	}
	if len(users.calls) != 0 {
		t.Fatalf("expected no per-user lookups, got %v", users.calls)
	}
}

func TestFriendsServiceOverviewFallsBackToIDs(t *testing.T) {
	users := &stubUserLookup{users: map[int64]domain.User{
		2: {ID: 2, Username: "bob"},
		4: {ID: 4, Username: "dave"},
	}}
	svc := &FriendsService{
		Friends: &stubFriendsAPI{
			listFunc: func(context.Context) ([]domain.User, error) {
				return nil, domain.ErrBackend
			},
			idsFunc: func(context.Context) ([]int64, error) {
				return []int64{2, 3, 4}, nil
			},
		},
		Users: users,
	}

	got, err := svc.Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if !got.Partial {
		t.Fatalf("expected partial overview")
	}
	if len(got.Friends) != 2 || got.Friends[0].ID != 2 || got.Friends[1].ID != 4 {
		t.Fatalf("unexpected friends: %+v", got.Friends)
	}
	if len(users.calls) != 3 {
		t.Fatalf("expected 3 lookups, got %v", users.calls)
	}
}

func TestFriendsServiceOverviewAuthFailureDoesNotFallBack(t *testing.T) {
	idsCalled := false
	svc := &FriendsService{
		Friends: &stubFriendsAPI{
			listFunc: func(context.Context) ([]domain.User, error) {
				return nil, domain.ErrUnauthorized
			},
			idsFunc: func(context.Context) ([]int64, error) {
				idsCalled = true
				return nil, nil
			},
		},
		Users: &stubUserLookup{},
	}

	_, err := svc.Overview(context.Background())
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if idsCalled {
		t.Fatalf("expected no fallback on auth failure")
	}
}

func TestFriendsServiceOverviewRequestFailure(t *testing.T) {
	svc := &FriendsService{
		Friends: &stubFriendsAPI{
			listFunc: func(context.Context) ([]domain.User, error) { return nil, nil },
			outgoingFunc: func(context.Context) ([]domain.FriendRequest, error) {
				return nil, domain.ErrBackend
			},
		},
		Users: &stubUserLookup{},
	}

	if _, err := svc.Overview(context.Background()); !errors.Is(err, domain.ErrBackend) {
		t.Fatalf("expected ErrBackend, got %v", err)
	}
}

type stubSearcher struct {
	users []domain.User
	err   error
}

func (s stubSearcher) Search(context.Context, string) ([]domain.User, error) {
	return s.users, s.err
}

func TestUsersServiceSearchExcludesSelf(t *testing.T) {
	svc := &UsersService{Users: stubSearcher{users: []domain.User{{ID: 1}, {ID: 2}, {ID: 3}}}}

	got, err := svc.Search(context.Background(), "a", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Fatalf("unexpected users: %+v", got)
	}
}
