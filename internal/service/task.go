package service

import (
	"context"
	"errors"

	"geotasks/api/internal/model"
	"geotasks/api/internal/sanitize"
	"geotasks/api/internal/store"
)

// TaskService handles the caller's tasks
type TaskService struct {
	repo   store.Repository
	events Publisher
}

// NewTaskService creates a new task service
func NewTaskService(repo store.Repository, events Publisher) *TaskService {
	if events == nil {
		events = NopPublisher{}
	}
	return &TaskService{repo: repo, events: events}
}

// Create inserts a task owned by caller
func (s *TaskService) Create(ctx context.Context, caller *model.User, in model.TaskCreate) (*model.Task, error) {
	task := &model.Task{
		UserID:      caller.ID,
		Description: sanitize.Text(in.Description),
		Done:        in.Done,
		Priority:    model.PriorityMedium,
		IsActive:    true,
	}
	if err := setTitle(task, in.Title); err != nil {
		return nil, err
	}
	if in.Priority != "" {
		p, err := model.ParsePriority(string(in.Priority))
		if err != nil {
			return nil, validation("%v", err)
		}
		task.Priority = p
	}

	err := s.repo.Transaction(ctx, func(tx store.Repository) error {
		if err := checkTitleUnique(ctx, tx, task); err != nil {
			return err
		}
		return tx.CreateTask(ctx, task)
	})
	if err != nil {
		return nil, translate(err)
	}

	s.events.Publish(newEvent(EventTaskCreated, task.ID, caller.ID))
	return task, nil
}

// List returns the caller's active tasks
func (s *TaskService) List(ctx context.Context, caller *model.User, filter model.TaskFilter, page model.Page) ([]model.Task, error) {
	return s.repo.ListActiveTasks(ctx, caller.ID, filter, page)
}

// Get returns an active task owned by caller
func (s *TaskService) Get(ctx context.Context, caller *model.User, id uint) (*model.Task, error) {
	return ownedTask(ctx, s.repo, caller, id, true)
}

// Patch applies the provided fields to an active task owned by caller
func (s *TaskService) Patch(ctx context.Context, caller *model.User, id uint, patch model.TaskPatch) (*model.Task, error) {
	var task *model.Task
	err := s.repo.Transaction(ctx, func(tx store.Repository) error {
		var err error
		if task, err = ownedTask(ctx, tx, caller, id, true); err != nil {
			return err
		}
		if patch.Title != nil {
			if err := setTitle(task, *patch.Title); err != nil {
				return err
			}
			if err := checkTitleUnique(ctx, tx, task); err != nil {
				return err
			}
		}
		if patch.Description != nil {
			task.Description = sanitize.Text(*patch.Description)
		}
		if patch.Done != nil {
			task.Done = *patch.Done
		}
		if patch.Priority != nil {
			p, err := model.ParsePriority(string(*patch.Priority))
			if err != nil {
				return validation("%v", err)
			}
			task.Priority = p
		}
		return tx.SaveTask(ctx, task)
	})
	if err != nil {
		return nil, translate(err)
	}

	s.events.Publish(newEvent(EventTaskUpdated, task.ID, caller.ID))
	return task, nil
}

// ToggleDone flips the done flag of an active task owned by caller
func (s *TaskService) ToggleDone(ctx context.Context, caller *model.User, id uint) (*model.Task, error) {
	task, err := s.mutate(ctx, caller, id, true, func(t *model.Task) { t.Done = !t.Done })
	if err != nil {
		return nil, err
	}
	s.events.Publish(newEvent(EventTaskDoneToggled, task.ID, caller.ID))
	return task, nil
}

// Deactivate hides a task owned by caller
func (s *TaskService) Deactivate(ctx context.Context, caller *model.User, id uint) (*model.Task, error) {
	task, err := s.mutate(ctx, caller, id, false, func(t *model.Task) { t.IsActive = false })
	if err != nil {
		return nil, err
	}
	s.events.Publish(newEvent(EventTaskDeactivated, task.ID, caller.ID))
	return task, nil
}

// Activate makes any existing task visible again. Callers gate access
// according to the configured reactivation policy.
func (s *TaskService) Activate(ctx context.Context, id uint) (*model.Task, error) {
	var task *model.Task
	err := s.repo.Transaction(ctx, func(tx store.Repository) error {
		var err error
		task, err = tx.GetTask(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return ErrTaskNotFound
		}
		if err != nil {
			return err
		}
		task.IsActive = true
		return tx.SaveTask(ctx, task)
	})
	if err != nil {
		return nil, err
	}
	s.events.Publish(newEvent(EventTaskActivated, task.ID, task.UserID))
	return task, nil
}

// Delete removes a task owned by caller together with its location
func (s *TaskService) Delete(ctx context.Context, caller *model.User, id uint) error {
	err := s.repo.Transaction(ctx, func(tx store.Repository) error {
		if _, err := ownedTask(ctx, tx, caller, id, false); err != nil {
			return err
		}
		return tx.DeleteTask(ctx, id)
	})
	if err != nil {
		return err
	}
	s.events.Publish(newEvent(EventTaskDeleted, id, caller.ID))
	return nil
}

func (s *TaskService) mutate(ctx context.Context, caller *model.User, id uint, active bool, apply func(*model.Task)) (*model.Task, error) {
	var task *model.Task
	err := s.repo.Transaction(ctx, func(tx store.Repository) error {
		var err error
		if task, err = ownedTask(ctx, tx, caller, id, active); err != nil {
			return err
		}
		apply(task)
		return tx.SaveTask(ctx, task)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func setTitle(task *model.Task, raw string) error {
	title := sanitize.Text(raw)
	if title == "" {
		return validation("Title must not be empty")
	}
	task.Title = title
	return nil
}

// checkTitleUnique is the fast path in front of uq_tasks_user_title
func checkTitleUnique(ctx context.Context, repo store.Repository, task *model.Task) error {
	existing, err := repo.FindTaskByTitle(ctx, task.UserID, task.Title)
	switch {
	case err == nil && existing.ID != task.ID:
		return ErrTaskExists
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return err
	}
	return nil
}
