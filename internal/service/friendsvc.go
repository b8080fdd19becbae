package service

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"favorsweb/internal/domain"
)

type FriendsAPI interface {
	List(ctx context.Context) ([]domain.User, error)
	IDs(ctx context.Context) ([]int64, error)
	Incoming(ctx context.Context) ([]domain.FriendRequest, error)
	Outgoing(ctx context.Context) ([]domain.FriendRequest, error)
}

type UserLookup interface {
	GetUser(ctx context.Context, id int64) (domain.User, error)
}

// lookupLimit caps concurrent profile fetches in the id fallback.
const lookupLimit = 4

type FriendsService struct {
	Friends FriendsAPI
	Users   UserLookup
	Logger  *slog.Logger
}

func (s *FriendsService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// Overview loads friends and pending requests concurrently. When the full
// friends list is unavailable it falls back to friend ids plus one profile
// lookup per id, skipping lookups that fail, and marks the result Partial.
// A failure loading either request list fails the whole overview.
func (s *FriendsService) Overview(ctx context.Context) (domain.FriendsOverview, error) {
	var out domain.FriendsOverview
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		friends, partial, err := s.friends(gctx)
		out.Friends, out.Partial = friends, partial
		return err
	})
	g.Go(func() error {
		in, err := s.Friends.Incoming(gctx)
		out.Incoming = in
		return err
	})
	g.Go(func() error {
		o, err := s.Friends.Outgoing(gctx)
		out.Outgoing = o
		return err
	})

	if err := g.Wait(); err != nil {
		return domain.FriendsOverview{}, err
	}
	if out.Friends == nil {
		out.Friends = []domain.User{}
	}
	if out.Incoming == nil {
		out.Incoming = []domain.FriendRequest{}
	}
	if out.Outgoing == nil {
		out.Outgoing = []domain.FriendRequest{}
	}
	return out, nil
}

func (s *FriendsService) friends(ctx context.Context) ([]domain.User, bool, error) {
	list, err := s.Friends.List(ctx)
	if err == nil {
		return list, false, nil
	}
	if domain.IsAuthFailure(err) || ctx.Err() != nil {
		return nil, false, err
	}
	s.logger().Warn("friends list unavailable, loading by id", "err", err)

	ids, err := s.Friends.IDs(ctx)
	if err != nil {
		return nil, true, err
	}

	found := make([]*domain.User, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupLimit)
	for i, id := range ids {
		g.Go(func() error {
			u, err := s.Users.GetUser(gctx, id)
			if err != nil {
				s.logger().Debug("friend lookup failed", "user_id", id, "err", err)
				return nil
			}
			found[i] = &u
			return nil
		})
	}
	_ = g.Wait()

	users := make([]domain.User, 0, len(ids))
	for _, u := range found {
		if u != nil {
			users = append(users, *u)
		}
	}
	return users, true, nil
}
