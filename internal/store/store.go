// Package store persists users, tasks and locations.
package store

import (
	"context"
	"errors"
	"fmt"

	"geotasks/api/internal/model"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// Unique and check constraint names created by the schema migrations
const (
	ConstraintUsername      = "uq_users_username"
	ConstraintEmail         = "uq_users_email"
	ConstraintTaskTitle     = "uq_tasks_user_title"
	ConstraintUserLocation  = "uq_locations_user_id"
	ConstraintTaskLocation  = "uq_locations_task_id"
	ConstraintLocationOwner = "ck_locations_owner"
)

// ConstraintError reports a write rejected by a database constraint
type ConstraintError struct {
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint %s violated: %v", e.Constraint, e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// IsConstraint reports whether err is a violation of the named constraint
func IsConstraint(err error, name string) bool {
	var ce *ConstraintError
	return errors.As(err, &ce) && ce.Constraint == name
}

// UserStore persists users. Lookups return inactive users too; callers
// decide whether is_active matters.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id uint) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	ListActiveUsers(ctx context.Context, page model.Page) ([]model.User, error)
	SaveUser(ctx context.Context, user *model.User) error
	// DeleteUser removes the user with its tasks and locations
	DeleteUser(ctx context.Context, id uint) error
}

// TaskStore persists tasks
type TaskStore interface {
	CreateTask(ctx context.Context, task *model.Task) error
	GetTask(ctx context.Context, id uint) (*model.Task, error)
	FindTaskByTitle(ctx context.Context, userID uint, title string) (*model.Task, error)
	ListActiveTasks(ctx context.Context, userID uint, filter model.TaskFilter, page model.Page) ([]model.Task, error)
	SaveTask(ctx context.Context, task *model.Task) error
	// DeleteTask removes the task with its location
	DeleteTask(ctx context.Context, id uint) error
}

// LocationStore persists locations. Writes derive geom from lat/lon.
type LocationStore interface {
	CreateLocation(ctx context.Context, loc *model.Location) error
	GetLocationByUser(ctx context.Context, userID uint) (*model.Location, error)
	GetLocationByTask(ctx context.Context, taskID uint) (*model.Location, error)
	SaveLocation(ctx context.Context, loc *model.Location) error
	DeleteLocation(ctx context.Context, id uint) error
}

// Repository is the request-scoped handle used by the service layer
type Repository interface {
	UserStore
	TaskStore
	LocationStore

	// Transaction runs fn against a repository bound to one transaction.
	// It commits when fn returns nil and rolls back otherwise.
	Transaction(ctx context.Context, fn func(tx Repository) error) error
	Ping(ctx context.Context) error
}
