// Package auth logs the client in and out of the LMS backend.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/irsalhamdi/lms-client/api"
	"github.com/irsalhamdi/lms-client/core/claims"
)

// Tokens is where a successful login stores the bearer token.
type Tokens interface {
	Save(token string) error
	Clear() error
}

type User struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  claims.Role `json:"role"`
}

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type Service struct {
	client *api.Client
	tokens Tokens
}

func NewService(client *api.Client, tokens Tokens) *Service {
	return &Service{client: client, tokens: tokens}
}

// Login exchanges credentials for a token and stores it under the
// canonical key.
func (s *Service) Login(ctx context.Context, cred Credentials) (User, error) {
	var out struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}
	if err := s.client.Post(ctx, "/auth/login", cred, &out); err != nil {
		return User{}, fmt.Errorf("logging in: %w", err)
	}
	if out.Token == "" {
		return User{}, errors.New("login response carries no token")
	}

	if err := s.tokens.Save(out.Token); err != nil {
		return User{}, fmt.Errorf("storing token: %w", err)
	}
	return out.User, nil
}

// Logout ends the backend session and always drops the stored token, even
// when the backend could not be reached.
func (s *Service) Logout(ctx context.Context) error {
	err := s.client.Post(ctx, "/auth/logout", nil, nil)
	if errors.Is(err, api.ErrSessionExpired) {
		err = nil
	}

	if cerr := s.tokens.Clear(); cerr != nil {
		return errors.Join(err, fmt.Errorf("clearing token: %w", cerr))
	}
	if err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	return nil
}
