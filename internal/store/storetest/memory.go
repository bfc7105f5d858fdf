// Package storetest provides an in-memory store.Repository for tests. It
// enforces the same unique constraints and cascades as the SQL schema.
package storetest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"geotasks/api/internal/model"
	"geotasks/api/internal/store"
)

type tables struct {
	users     map[uint]model.User
	tasks     map[uint]model.Task
	locations map[uint]model.Location
	nextID    map[string]uint
}

func (t *tables) clone() *tables {
	c := &tables{
		users:     make(map[uint]model.User, len(t.users)),
		tasks:     make(map[uint]model.Task, len(t.tasks)),
		locations: make(map[uint]model.Location, len(t.locations)),
		nextID:    make(map[string]uint, len(t.nextID)),
	}
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.tasks {
		c.tasks[k] = v
	}
	for k, v := range t.locations {
		c.locations[k] = v
	}
	for k, v := range t.nextID {
		c.nextID[k] = v
	}
	return c
}

// Memory is a goroutine-safe in-memory repository
type Memory struct {
	mu   *sync.Mutex
	data *tables
	inTx bool
	// PingErr is returned by Ping when set
	PingErr error
}

// New creates an empty in-memory repository
func New() *Memory {
	return &Memory{
		mu: &sync.Mutex{},
		data: &tables{
			users:     map[uint]model.User{},
			tasks:     map[uint]model.Task{},
			locations: map[uint]model.Location{},
			nextID:    map[string]uint{},
		},
	}
}

var _ store.Repository = (*Memory)(nil)

func (m *Memory) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *Memory) next(table string) uint {
	m.data.nextID[table]++
	return m.data.nextID[table]
}

func constraint(name string) error {
	return &store.ConstraintError{Constraint: name, Err: errors.New("duplicate key value")}
}

// Transaction holds the lock for the whole of fn and restores a snapshot on error
func (m *Memory) Transaction(ctx context.Context, fn func(tx store.Repository) error) error {
	unlock := m.lock()
	defer unlock()

	snapshot := m.data.clone()
	tx := &Memory{mu: m.mu, data: m.data, inTx: true}
	if err := fn(tx); err != nil {
		*m.data = *snapshot
		return err
	}
	return nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return m.PingErr
}

func (m *Memory) CreateUser(ctx context.Context, user *model.User) error {
	defer m.lock()()
	if err := m.checkUser(*user); err != nil {
		return err
	}
	now := time.Now()
	user.ID = m.next("users")
	user.CreatedAt, user.UpdatedAt = now, now
	if user.Role == "" {
		user.Role = model.RoleUser
	}
	m.data.users[user.ID] = *user
	return nil
}

func (m *Memory) checkUser(user model.User) error {
	for _, u := range m.data.users {
		if u.ID == user.ID {
			continue
		}
		if u.Username == user.Username {
			return constraint(store.ConstraintUsername)
		}
		if u.Email == user.Email {
			return constraint(store.ConstraintEmail)
		}
	}
	return nil
}

func (m *Memory) GetUser(ctx context.Context, id uint) (*model.User, error) {
	defer m.lock()()
	u, ok := m.data.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	defer m.lock()()
	for _, u := range m.data.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Memory) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	defer m.lock()()
	for _, u := range m.data.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Memory) ListActiveUsers(ctx context.Context, page model.Page) ([]model.User, error) {
	defer m.lock()()
	var users []model.User
	for _, u := range m.data.users {
		if u.IsActive {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return paginate(users, page), nil
}

func (m *Memory) SaveUser(ctx context.Context, user *model.User) error {
	defer m.lock()()
	existing, ok := m.data.users[user.ID]
	if !ok {
		return store.ErrNotFound
	}
	if err := m.checkUser(*user); err != nil {
		return err
	}
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = time.Now()
	m.data.users[user.ID] = *user
	return nil
}

func (m *Memory) DeleteUser(ctx context.Context, id uint) error {
	defer m.lock()()
	if _, ok := m.data.users[id]; !ok {
		return store.ErrNotFound
	}
	for taskID, t := range m.data.tasks {
		if t.UserID == id {
			m.deleteTask(taskID)
		}
	}
	for locID, l := range m.data.locations {
		if l.UserID != nil && *l.UserID == id {
			delete(m.data.locations, locID)
		}
	}
	delete(m.data.users, id)
	return nil
}

func (m *Memory) CreateTask(ctx context.Context, task *model.Task) error {
	defer m.lock()()
	if _, ok := m.data.users[task.UserID]; !ok {
		return errors.New("foreign key violation: tasks.user_id")
	}
	if err := m.checkTask(*task); err != nil {
		return err
	}
	now := time.Now()
	task.ID = m.next("tasks")
	task.CreatedAt, task.UpdatedAt = now, now
	if task.Priority == "" {
		task.Priority = model.PriorityMedium
	}
	m.data.tasks[task.ID] = *task
	return nil
}

func (m *Memory) checkTask(task model.Task) error {
	for _, t := range m.data.tasks {
		if t.ID != task.ID && t.UserID == task.UserID && t.Title == task.Title {
			return constraint(store.ConstraintTaskTitle)
		}
	}
	return nil
}

func (m *Memory) GetTask(ctx context.Context, id uint) (*model.Task, error) {
	defer m.lock()()
	t, ok := m.data.tasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (m *Memory) FindTaskByTitle(ctx context.Context, userID uint, title string) (*model.Task, error) {
	defer m.lock()()
	for _, t := range m.data.tasks {
		if t.UserID == userID && t.Title == title {
			return &t, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Memory) ListActiveTasks(ctx context.Context, userID uint, filter model.TaskFilter, page model.Page) ([]model.Task, error) {
	defer m.lock()()
	var tasks []model.Task
	for _, t := range m.data.tasks {
		if t.UserID != userID || !t.IsActive {
			continue
		}
		if filter.Priority != nil && t.Priority != *filter.Priority {
			continue
		}
		if filter.Done != nil && t.Done != *filter.Done {
			continue
		}
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return paginate(tasks, page), nil
}

func (m *Memory) SaveTask(ctx context.Context, task *model.Task) error {
	defer m.lock()()
	existing, ok := m.data.tasks[task.ID]
	if !ok {
		return store.ErrNotFound
	}
	if err := m.checkTask(*task); err != nil {
		return err
	}
	task.UserID = existing.UserID
	task.CreatedAt = existing.CreatedAt
	task.UpdatedAt = time.Now()
	m.data.tasks[task.ID] = *task
	return nil
}

func (m *Memory) DeleteTask(ctx context.Context, id uint) error {
	defer m.lock()()
	if _, ok := m.data.tasks[id]; !ok {
		return store.ErrNotFound
	}
	m.deleteTask(id)
	return nil
}

func (m *Memory) deleteTask(id uint) {
	for locID, l := range m.data.locations {
		if l.TaskID != nil && *l.TaskID == id {
			delete(m.data.locations, locID)
		}
	}
	delete(m.data.tasks, id)
}

func (m *Memory) CreateLocation(ctx context.Context, loc *model.Location) error {
	defer m.lock()()
	if (loc.UserID == nil) == (loc.TaskID == nil) {
		return constraint(store.ConstraintLocationOwner)
	}
	for _, l := range m.data.locations {
		if loc.UserID != nil && l.UserID != nil && *l.UserID == *loc.UserID {
			return constraint(store.ConstraintUserLocation)
		}
		if loc.TaskID != nil && l.TaskID != nil && *l.TaskID == *loc.TaskID {
			return constraint(store.ConstraintTaskLocation)
		}
	}
	now := time.Now()
	loc.ID = m.next("locations")
	loc.Geom = model.NewPoint(loc.Lat, loc.Lon)
	loc.CreatedAt, loc.UpdatedAt = now, now
	m.data.locations[loc.ID] = *loc
	return nil
}

func (m *Memory) GetLocationByUser(ctx context.Context, userID uint) (*model.Location, error) {
	defer m.lock()()
	for _, l := range m.data.locations {
		if l.UserID != nil && *l.UserID == userID {
			return &l, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Memory) GetLocationByTask(ctx context.Context, taskID uint) (*model.Location, error) {
	defer m.lock()()
	for _, l := range m.data.locations {
		if l.TaskID != nil && *l.TaskID == taskID {
			return &l, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Memory) SaveLocation(ctx context.Context, loc *model.Location) error {
	defer m.lock()()
	existing, ok := m.data.locations[loc.ID]
	if !ok {
		return store.ErrNotFound
	}
	loc.UserID, loc.TaskID = existing.UserID, existing.TaskID
	loc.Geom = model.NewPoint(loc.Lat, loc.Lon)
	loc.CreatedAt = existing.CreatedAt
	loc.UpdatedAt = time.Now()
	m.data.locations[loc.ID] = *loc
	return nil
}

func (m *Memory) DeleteLocation(ctx context.Context, id uint) error {
	defer m.lock()()
	if _, ok := m.data.locations[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.data.locations, id)
	return nil
}

func paginate[T any](rows []T, page model.Page) []T {
	if page.Offset >= len(rows) {
		return []T{}
	}
	rows = rows[page.Offset:]
	if page.Limit > 0 && page.Limit < len(rows) {
		rows = rows[:page.Limit]
	}
	return rows
}
