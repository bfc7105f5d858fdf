package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"geotasks/api/internal/auth"
	"geotasks/api/internal/model"
	"geotasks/api/internal/store/storetest"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	repo      *storetest.Memory
	events    *recordingPublisher
	tokens    *auth.TokenManager
	users     *UserService
	auth      *AuthService
	tasks     *TaskService
	locations *LocationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := storetest.New()
	events := &recordingPublisher{}
	tokens := auth.NewTokenManager("test-secret", 30*time.Minute)
	users := NewUserService(repo, events)
	return &fixture{
		repo:      repo,
		events:    events,
		tokens:    tokens,
		users:     users,
		auth:      NewAuthService(repo, tokens, users),
		tasks:     NewTaskService(repo, events),
		locations: NewLocationService(repo, events),
	}
}

func (f *fixture) register(t *testing.T, username, email string) *model.User {
	t.Helper()
	user, err := f.users.Register(context.Background(), model.UserCreate{
		Username: username,
		Email:    email,
		Password: "secret123",
	})
	require.NoError(t, err)
	return user
}

func (f *fixture) createTask(t *testing.T, owner *model.User, title string) *model.Task {
	t.Helper()
	task, err := f.tasks.Create(context.Background(), owner, model.TaskCreate{Title: title})
	require.NoError(t, err)
	return task
}

func ptr[T any](v T) *T { return &v }
