package board

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/domain"
)

type recordedUpdate struct {
	ID    string
	Patch domain.TaskPatch
}

// fakeTaskAPI behaves like the task endpoints: list and partial update.
type fakeTaskAPI struct {
	mu        sync.Mutex
	order     []string
	tasks     map[string]domain.Task
	updates   []recordedUpdate
	updateErr error
	listErr   error
	listCalls int
	// block, when set, holds ListTasks until closed.
	block chan struct{}
}

func newFakeTaskAPI(tasks ...domain.Task) *fakeTaskAPI {
	f := &fakeTaskAPI{tasks: make(map[string]domain.Task)}
	for _, t := range tasks {
		f.order = append(f.order, t.ID)
		f.tasks[t.ID] = t
	}
	return f
}

func (f *fakeTaskAPI) ListTasks(ctx context.Context, teamID string, role domain.Role) ([]domain.Task, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.Task, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.tasks[id])
	}
	return out, nil
}

func (f *fakeTaskAPI) UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, recordedUpdate{ID: id, Patch: patch})
	if f.updateErr != nil {
		return domain.Task{}, f.updateErr
	}
	t, ok := f.tasks[id]
	if !ok {
		return domain.Task{}, errors.New("not found")
	}
	patch.Apply(&t, time.Now())
	f.tasks[id] = t
	return t, nil
}

func (f *fakeTaskAPI) Updates() []recordedUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedUpdate(nil), f.updates...)
}

func (f *fakeTaskAPI) ListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func boardTasks() []domain.Task {
	return []domain.Task{
		{ID: "t1", Title: "Call supplier", Status: domain.StatusTodo, Priority: domain.PriorityHigh},
		{ID: "t2", Title: "Draft invoice", Status: domain.StatusInProgress, Priority: domain.PriorityLow},
		{ID: "t3", Title: "Ship order", Status: domain.StatusDone, Priority: domain.PriorityMedium},
		{ID: "t4", Title: "Review contract", Status: domain.StatusReview, Priority: domain.PriorityHigh},
	}
}
