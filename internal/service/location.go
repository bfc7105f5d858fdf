package service

import (
	"context"
	"errors"

	"geotasks/api/internal/model"
	"geotasks/api/internal/store"
)

// LocationService manages the single location of a user or a task
type LocationService struct {
	repo   store.Repository
	events Publisher
}

// NewLocationService creates a new location service
func NewLocationService(repo store.Repository, events Publisher) *LocationService {
	if events == nil {
		events = NopPublisher{}
	}
	return &LocationService{repo: repo, events: events}
}

// owner resolves which location a call addresses and checks access to it
type owner struct {
	userID   *uint
	taskID   *uint
	exists   *Error
	notFound *Error
	check    func(ctx context.Context, tx store.Repository) error
	lookup   func(ctx context.Context, tx store.Repository) (*model.Location, error)
}

func userOwner(caller *model.User, userID uint) owner {
	return owner{
		userID:   &userID,
		exists:   ErrUserLocationExists,
		notFound: ErrUserLocationNotFound,
		check: func(ctx context.Context, tx store.Repository) error {
			if _, err := activeUser(ctx, tx, userID); err != nil {
				return err
			}
			if caller.ID != userID {
				return ErrNoPermission
			}
			return nil
		},
		lookup: func(ctx context.Context, tx store.Repository) (*model.Location, error) {
			return tx.GetLocationByUser(ctx, userID)
		},
	}
}

func taskOwner(caller *model.User, taskID uint) owner {
	return owner{
		taskID:   &taskID,
		exists:   ErrTaskLocationExists,
		notFound: ErrTaskLocationNotFound,
		check: func(ctx context.Context, tx store.Repository) error {
			_, err := ownedTask(ctx, tx, caller, taskID, true)
			return err
		},
		lookup: func(ctx context.Context, tx store.Repository) (*model.Location, error) {
			return tx.GetLocationByTask(ctx, taskID)
		},
	}
}

// CreateForUser attaches a location to the caller's own account
func (s *LocationService) CreateForUser(ctx context.Context, caller *model.User, userID uint, in model.LocationInput) (*model.Location, error) {
	return s.create(ctx, caller, userOwner(caller, userID), in)
}

// CreateForTask attaches a location to an active task owned by caller
func (s *LocationService) CreateForTask(ctx context.Context, caller *model.User, taskID uint, in model.LocationInput) (*model.Location, error) {
	return s.create(ctx, caller, taskOwner(caller, taskID), in)
}

// GetForUser returns the location of the caller's own account
func (s *LocationService) GetForUser(ctx context.Context, caller *model.User, userID uint) (*model.Location, error) {
	return s.get(ctx, userOwner(caller, userID))
}

// GetForTask returns the location of an active task owned by caller
func (s *LocationService) GetForTask(ctx context.Context, caller *model.User, taskID uint) (*model.Location, error) {
	return s.get(ctx, taskOwner(caller, taskID))
}

// UpdateForUser replaces the location of the caller's own account
func (s *LocationService) UpdateForUser(ctx context.Context, caller *model.User, userID uint, in model.LocationInput) (*model.Location, error) {
	return s.update(ctx, caller, userOwner(caller, userID), in)
}

// UpdateForTask replaces the location of an active task owned by caller
func (s *LocationService) UpdateForTask(ctx context.Context, caller *model.User, taskID uint, in model.LocationInput) (*model.Location, error) {
	return s.update(ctx, caller, taskOwner(caller, taskID), in)
}

// DeleteForUser removes the location of the caller's own account
func (s *LocationService) DeleteForUser(ctx context.Context, caller *model.User, userID uint) error {
	return s.delete(ctx, caller, userOwner(caller, userID))
}

// DeleteForTask removes the location of an active task owned by caller
func (s *LocationService) DeleteForTask(ctx context.Context, caller *model.User, taskID uint) error {
	return s.delete(ctx, caller, taskOwner(caller, taskID))
}

func (s *LocationService) create(ctx context.Context, caller *model.User, o owner, in model.LocationInput) (*model.Location, error) {
	if err := in.Validate(); err != nil {
		return nil, validation("%v", err)
	}

	loc := &model.Location{UserID: o.userID, TaskID: o.taskID}
	in.Apply(loc)

	err := s.repo.Transaction(ctx, func(tx store.Repository) error {
		if err := o.check(ctx, tx); err != nil {
			return err
		}
		_, err := o.lookup(ctx, tx)
		if err == nil {
			return o.exists
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		return tx.CreateLocation(ctx, loc)
	})
	if err != nil {
		return nil, translate(err)
	}

	s.events.Publish(newEvent(EventLocationCreated, loc.ID, caller.ID))
	return loc, nil
}

func (s *LocationService) get(ctx context.Context, o owner) (*model.Location, error) {
	var loc *model.Location
	err := s.repo.Transaction(ctx, func(tx store.Repository) error {
		var err error
		loc, err = s.find(ctx, tx, o)
		return err
	})
	if err != nil {
		return nil, err
	}
	return loc, nil
}

func (s *LocationService) update(ctx context.Context, caller *model.User, o owner, in model.LocationInput) (*model.Location, error) {
	if err := in.Validate(); err != nil {
		return nil, validation("%v", err)
	}

	var loc *model.Location
	err := s.repo.Transaction(ctx, func(tx store.Repository) error {
		var err error
		if loc, err = s.find(ctx, tx, o); err != nil {
			return err
		}
		in.Apply(loc)
		return tx.SaveLocation(ctx, loc)
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(newEvent(EventLocationUpdated, loc.ID, caller.ID))
	return loc, nil
}

func (s *LocationService) delete(ctx context.Context, caller *model.User, o owner) error {
	var id uint
	err := s.repo.Transaction(ctx, func(tx store.Repository) error {
		loc, err := s.find(ctx, tx, o)
		if err != nil {
			return err
		}
		id = loc.ID
		return tx.DeleteLocation(ctx, loc.ID)
	})
	if err != nil {
		return err
	}

	s.events.Publish(newEvent(EventLocationDeleted, id, caller.ID))
	return nil
}

func (s *LocationService) find(ctx context.Context, tx store.Repository, o owner) (*model.Location, error) {
	if err := o.check(ctx, tx); err != nil {
		return nil, err
	}
	loc, err := o.lookup(ctx, tx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, o.notFound
	}
	return loc, err
}
