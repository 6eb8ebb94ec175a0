package board

import (
	"context"
	"sync"

	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/domain"
)

// TaskLister fetches the task list visible to a viewer.
type TaskLister interface {
	ListTasks(ctx context.Context, teamID string, effectiveRole domain.Role) ([]domain.Task, error)
}

// QueryKey identifies a cached task list.
type QueryKey struct {
	TeamID string
	Role   domain.Role
}

// TaskQuery is a read-through cached copy of the task list. It refetches on
// the next Get after TopicTasks is published or the key changes.
type TaskQuery struct {
	lister      TaskLister
	unsubscribe func()

	mu      sync.RWMutex
	key     QueryKey
	tasks   []domain.Task
	byID    map[string]int
	fresh   bool
	gen     uint64
	fetches int
}

// NewTaskQuery creates a query subscribed to bus.
func NewTaskQuery(lister TaskLister, bus Bus, key QueryKey) *TaskQuery {
	q := &TaskQuery{lister: lister, key: key}
	if bus != nil {
		q.unsubscribe = bus.Subscribe(TopicTasks, q.Invalidate)
	}
	return q
}

// Key returns the current query identity.
func (q *TaskQuery) Key() QueryKey {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.key
}

// SetKey switches team or role. A different key discards the cached copy.
func (q *TaskQuery) SetKey(key QueryKey) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if key == q.key {
		return
	}
	q.key = key
	q.tasks = nil
	q.byID = nil
	q.fresh = false
	q.gen++
}

// Invalidate marks the cached copy stale.
func (q *TaskQuery) Invalidate() {
	q.mu.Lock()
	q.fresh = false
	q.gen++
	q.mu.Unlock()
}

// Stale reports whether the next Get will hit the remote source.
func (q *TaskQuery) Stale() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return !q.fresh
}

// Get returns the cached list, fetching it first when stale. On fetch errors
// the previous copy is kept and the error returned.
func (q *TaskQuery) Get(ctx context.Context) ([]domain.Task, error) {
	q.mu.RLock()
	if q.fresh {
		out := append([]domain.Task(nil), q.tasks...)
		q.mu.RUnlock()
		return out, nil
	}
	key, gen := q.key, q.gen
	q.mu.RUnlock()

	tasks, err := q.lister.ListTasks(ctx, key.TeamID, key.Role)
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.fetches++
	if key != q.key {
		return append([]domain.Task(nil), tasks...), nil
	}
	q.tasks = tasks
	q.byID = make(map[string]int, len(tasks))
	for i, t := range tasks {
		q.byID[t.ID] = i
	}
	// An invalidation that arrived during the fetch keeps the copy stale.
	q.fresh = gen == q.gen
	return append([]domain.Task(nil), tasks...), nil
}

// Task returns the cached copy of id without fetching.
func (q *TaskQuery) Task(id string) (domain.Task, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	i, ok := q.byID[id]
	if !ok {
		return domain.Task{}, false
	}
	return q.tasks[i], true
}

// Fetches counts completed remote fetches.
func (q *TaskQuery) Fetches() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.fetches
}

// Close unsubscribes from the bus.
func (q *TaskQuery) Close() {
	if q.unsubscribe != nil {
		q.unsubscribe()
	}
}
