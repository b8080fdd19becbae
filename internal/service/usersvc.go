package service

import (
	"context"

	"favorsweb/internal/domain"
)

type UsersSearcher interface {
	Search(ctx context.Context, q string) ([]domain.User, error)
}

type UsersService struct {
	Users UsersSearcher
}

// Search finds users matching q, leaving out selfID.
func (s *UsersService) Search(ctx context.Context, q string, selfID int64) ([]domain.User, error) {
	users, err := s.Users.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	return domain.ExcludeUser(users, selfID), nil
}
