// Package service implements the use cases on top of the store. Every
// operation checks, in order: existence, ownership, then uniqueness.
package service

import (
	"context"
	"errors"

	"geotasks/api/internal/model"
	"geotasks/api/internal/store"
)

// constraintErrors maps database constraints onto the conflict reported to callers
var constraintErrors = map[string]*Error{
	store.ConstraintUsername:     ErrUsernameExists,
	store.ConstraintEmail:        ErrEmailExists,
	store.ConstraintTaskTitle:    ErrTaskExists,
	store.ConstraintUserLocation: ErrUserLocationExists,
	store.ConstraintTaskLocation: ErrTaskLocationExists,
}

// translate turns a constraint violation into its Conflict error
func translate(err error) error {
	var ce *store.ConstraintError
	if errors.As(err, &ce) {
		if conflict, ok := constraintErrors[ce.Constraint]; ok {
			return conflict.wrap(err)
		}
	}
	return err
}

// activeUser loads an active user or fails with ErrUserNotFound
func activeUser(ctx context.Context, repo store.Repository, id uint) (*model.User, error) {
	user, err := repo.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ownedTask loads a task and checks the caller owns it. With active set,
// inactive tasks are reported as missing.
func ownedTask(ctx context.Context, repo store.Repository, caller *model.User, id uint, active bool) (*model.Task, error) {
	task, err := repo.GetTask(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	if active && !task.IsActive {
		return nil, ErrTaskNotFound
	}
	if task.UserID != caller.ID {
		return nil, ErrNoPermission
	}
	return task, nil
}
