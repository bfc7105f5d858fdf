package service

import (
	"context"
	"errors"

	"geotasks/api/internal/auth"
	"geotasks/api/internal/model"
	"geotasks/api/internal/sanitize"
	"geotasks/api/internal/store"
)

// AuthService handles authentication business logic
type AuthService struct {
	repo   store.Repository
	tokens *auth.TokenManager
	users  *UserService
}

// NewAuthService creates a new auth service
func NewAuthService(repo store.Repository, tokens *auth.TokenManager, users *UserService) *AuthService {
	return &AuthService{repo: repo, tokens: tokens, users: users}
}

// Login validates credentials and issues an access token. Every failure
// is reported as ErrIncorrectLogin.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.LoginResponse, error) {
	normalized, err := sanitize.Email(email)
	if err != nil {
		return nil, ErrIncorrectLogin
	}

	user, err := s.repo.GetUserByEmail(ctx, normalized)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrIncorrectLogin
	}
	if err != nil {
		return nil, err
	}

	if !user.IsActive || !auth.VerifyPassword(password, user.Password) {
		return nil, ErrIncorrectLogin
	}

	return s.loginResponse(user)
}

// RegisterAndLogin creates the account and logs it in
func (s *AuthService) RegisterAndLogin(ctx context.Context, in model.UserCreate) (*model.LoginResponse, error) {
	user, err := s.users.Register(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.loginResponse(user)
}

// Refresh issues a fresh token for an authenticated user
func (s *AuthService) Refresh(ctx context.Context, user *model.User) (*model.Token, error) {
	token, _, err := s.tokens.Issue(user.Email)
	if err != nil {
		return nil, err
	}
	return &model.Token{AccessToken: token, TokenType: auth.TokenType}, nil
}

// ResolveIdentity returns the active user a bearer token belongs to
func (s *AuthService) ResolveIdentity(ctx context.Context, token string) (*model.User, error) {
	email, err := s.tokens.Parse(token)
	if err != nil {
		return nil, ErrInvalidCredentials.wrap(err)
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *AuthService) loginResponse(user *model.User) (*model.LoginResponse, error) {
	token, _, err := s.tokens.Issue(user.Email)
	if err != nil {
		return nil, err
	}
	return &model.LoginResponse{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		AccessToken: token,
		TokenType:   auth.TokenType,
	}, nil
}
