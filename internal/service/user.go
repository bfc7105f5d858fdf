package service

import (
	"context"
	"errors"

	"geotasks/api/internal/auth"
	"geotasks/api/internal/model"
	"geotasks/api/internal/sanitize"
	"geotasks/api/internal/store"
)

// UserService handles user accounts
type UserService struct {
	repo   store.Repository
	events Publisher
}

// NewUserService creates a new user service
func NewUserService(repo store.Repository, events Publisher) *UserService {
	if events == nil {
		events = NopPublisher{}
	}
	return &UserService{repo: repo, events: events}
}

// Register creates an active user with a hashed password
func (s *UserService) Register(ctx context.Context, in model.UserCreate) (*model.User, error) {
	user := &model.User{Role: model.RoleUser, IsActive: true}
	if err := setUsername(user, in.Username); err != nil {
		return nil, err
	}
	if err := setEmail(user, in.Email); err != nil {
		return nil, err
	}
	if err := setPassword(user, in.Password); err != nil {
		return nil, err
	}

	err := s.repo.Transaction(ctx, func(tx store.Repository) error {
		if err := checkUserUnique(ctx, tx, user); err != nil {
			return err
		}
		return tx.CreateUser(ctx, user)
	})
	if err != nil {
		return nil, translate(err)
	}

	s.events.Publish(newEvent(EventUserCreated, user.ID, user.ID))
	return user, nil
}

// List returns a page of active users
func (s *UserService) List(ctx context.Context, page model.Page) ([]model.User, error) {
	return s.repo.ListActiveUsers(ctx, page)
}

// Get returns an active user
func (s *UserService) Get(ctx context.Context, id uint) (*model.User, error) {
	return activeUser(ctx, s.repo, id)
}

// Update overwrites username, email and password of the caller's own profile
func (s *UserService) Update(ctx context.Context, caller *model.User, id uint, in model.UserCreate) (*model.User, error) {
	return s.Patch(ctx, caller, id, model.UserPatch{
		Username: &in.Username,
		Email:    &in.Email,
		Password: &in.Password,
	})
}

// Patch applies the provided fields to the caller's own profile
func (s *UserService) Patch(ctx context.Context, caller *model.User, id uint, patch model.UserPatch) (*model.User, error) {
	if caller.ID != id {
		return nil, ErrNoPermission
	}

	var user *model.User
	err := s.repo.Transaction(ctx, func(tx store.Repository) error {
		var err error
		if user, err = activeUser(ctx, tx, id); err != nil {
			return err
		}
		if patch.Username != nil {
			if err := setUsername(user, *patch.Username); err != nil {
				return err
			}
		}
		if patch.Email != nil {
			if err := setEmail(user, *patch.Email); err != nil {
				return err
			}
		}
		if patch.Password != nil {
			if err := setPassword(user, *patch.Password); err != nil {
				return err
			}
		}
		if err := checkUserUnique(ctx, tx, user); err != nil {
			return err
		}
		return tx.SaveUser(ctx, user)
	})
	if err != nil {
		return nil, translate(err)
	}

	s.events.Publish(newEvent(EventUserUpdated, user.ID, user.ID))
	return user, nil
}

// Deactivate hides the caller's own account
func (s *UserService) Deactivate(ctx context.Context, caller *model.User, id uint) (*model.User, error) {
	if caller.ID != id {
		return nil, ErrNoPermission
	}
	user, err := s.setActive(ctx, id, false)
	if err != nil {
		return nil, err
	}
	s.events.Publish(newEvent(EventUserDeactivated, user.ID, user.ID))
	return user, nil
}

// Activate makes any existing account visible again. Callers gate
// access according to the configured reactivation policy.
func (s *UserService) Activate(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.setActive(ctx, id, true)
	if err != nil {
		return nil, err
	}
	s.events.Publish(newEvent(EventUserActivated, user.ID, user.ID))
	return user, nil
}

func (s *UserService) setActive(ctx context.Context, id uint, active bool) (*model.User, error) {
	var user *model.User
	err := s.repo.Transaction(ctx, func(tx store.Repository) error {
		var err error
		user, err = tx.GetUser(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}
		user.IsActive = active
		return tx.SaveUser(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes the caller's own account with its tasks and locations
func (s *UserService) Delete(ctx context.Context, caller *model.User, id uint) error {
	if caller.ID != id {
		return ErrNoPermission
	}
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	s.events.Publish(newEvent(EventUserDeleted, id, id))
	return nil
}

func setUsername(user *model.User, raw string) error {
	username := sanitize.Username(raw)
	if username == "" {
		return ErrEmptyUsername
	}
	user.Username = username
	return nil
}

func setEmail(user *model.User, raw string) error {
	email, err := sanitize.Email(raw)
	if err != nil {
		return validation("Email '%s' is not valid", raw)
	}
	user.Email = email
	return nil
}

func setPassword(user *model.User, plain string) error {
	if plain == "" {
		return validation("Password must not be empty")
	}
	hashed, err := auth.HashPassword(plain)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return validation("Password must be at most 72 bytes")
	}
	if err != nil {
		return err
	}
	user.Password = hashed
	return nil
}

// checkUserUnique is the fast path in front of the unique constraints
func checkUserUnique(ctx context.Context, repo store.Repository, user *model.User) error {
	existing, err := repo.GetUserByUsername(ctx, user.Username)
	switch {
	case err == nil && existing.ID != user.ID:
		return ErrUsernameExists
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return err
	}

	existing, err = repo.GetUserByEmail(ctx, user.Email)
	switch {
	case err == nil && existing.ID != user.ID:
		return ErrEmailExists
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return err
	}
	return nil
}
