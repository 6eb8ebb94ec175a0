package storage

import (
	"context"
	"sync"
	"time"

	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/domain"
)

// Memory is an in-process store used for local runs and tests.
type Memory struct {
	mu    sync.RWMutex
	tasks map[string]domain.Task
	users map[string]domain.User
}

func NewMemory() *Memory {
	return &Memory{tasks: map[string]domain.Task{}, users: map[string]domain.User{}}
}

func (m *Memory) ListTasks(ctx context.Context, teamID string) ([]domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tasks := []domain.Task{}
	for _, t := range m.tasks {
		if t.TeamID == teamID {
			tasks = append(tasks, cloneTask(t))
		}
	}
	domain.SortTasks(tasks)
	return tasks, nil
}

func (m *Memory) GetTask(ctx context.Context, teamID, id string) (domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok || t.TeamID != teamID {
		return domain.Task{}, domain.ErrNotFound
	}
	return cloneTask(t), nil
}

func (m *Memory) FindTask(ctx context.Context, id string) (domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return domain.Task{}, domain.ErrNotFound
	}
	return cloneTask(t), nil
}

func (m *Memory) CreateTask(ctx context.Context, t domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.ID]; ok {
		return domain.ErrConflict
	}
	m.tasks[t.ID] = cloneTask(t)
	return nil
}

func (m *Memory) UpdateTask(ctx context.Context, id string, patch domain.TaskPatch, now time.Time) (domain.Task, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return domain.Task{}, false, domain.ErrNotFound
	}
	t = cloneTask(t)
	changed := patch.Apply(&t, now)
	if changed {
		m.tasks[id] = t
	}
	return cloneTask(t), changed, nil
}

func (m *Memory) DeleteTask(ctx context.Context, id string) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return domain.Task{}, domain.ErrNotFound
	}
	delete(m.tasks, id)
	return t, nil
}

func (m *Memory) ListUsers(ctx context.Context) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	sortUsers(users)
	return users, nil
}

func (m *Memory) PutUser(ctx context.Context, u domain.User) error {
	m.mu.Lock()
	m.users[u.ID] = u
	m.mu.Unlock()
	return nil
}

func cloneTask(t domain.Task) domain.Task {
	if t.Tags != nil {
		t.Tags = append([]string(nil), t.Tags...)
	}
	if t.DueDate != nil {
		d := *t.DueDate
		t.DueDate = &d
	}
	return t
}
