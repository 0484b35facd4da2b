package middleware

import (
	"context"
	"sync"

	"storefront/internal/domain"
)

type stubUsers struct {
	mu    sync.Mutex
	users []*domain.User
}

func newStubUsers() *stubUsers {
	return &stubUsers{}
}

func (s *stubUsers) Create(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return domain.ErrUserAlreadyExists
		}
	}
	user.ID = int64(len(s.users) + 1)
	s.users = append(s.users, user)
	return nil
}

func (s *stubUsers) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *stubUsers) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *stubUsers) List(ctx context.Context) ([]*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.User(nil), s.users...), nil
}
