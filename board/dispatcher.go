package board

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/domain"
)

const defaultMutationTimeout = 30 * time.Second

// TaskUpdater performs the remote partial update of a task.
type TaskUpdater interface {
	UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error)
}

// Dispatcher is the only write path for tasks on the board. It applies
// changes remotely and publishes TopicTasks once the server confirmed them.
// Nothing is written locally before that.
type Dispatcher struct {
	api    TaskUpdater
	bus    Bus
	logger *log.Logger

	mu      sync.Mutex
	timeout time.Duration
	onError func(taskID string, err error)

	inflight sync.WaitGroup
}

// NewDispatcher creates a dispatcher publishing on bus.
func NewDispatcher(api TaskUpdater, bus Bus, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Dispatcher{api: api, bus: bus, logger: logger, timeout: defaultMutationTimeout}
}

// SetTimeout bounds each asynchronous mutation dispatched after the call.
// Zero disables the bound.
func (d *Dispatcher) SetTimeout(t time.Duration) {
	d.mu.Lock()
	d.timeout = t
	d.mu.Unlock()
}

// OnError registers a hook called when an asynchronous mutation fails.
func (d *Dispatcher) OnError(fn func(taskID string, err error)) {
	d.mu.Lock()
	d.onError = fn
	d.mu.Unlock()
}

// Apply sends patch and invalidates cached task lists on success.
func (d *Dispatcher) Apply(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	task, err := d.api.UpdateTask(ctx, id, patch)
	if err != nil {
		return domain.Task{}, err
	}
	d.bus.Publish(TopicTasks)
	return task, nil
}

// MutateStatus dispatches a status change in the background. Once dispatched
// the request is not aborted when ctx is cancelled.
func (d *Dispatcher) MutateStatus(ctx context.Context, taskID string, status domain.Status) {
	d.mu.Lock()
	timeout := d.timeout
	d.mu.Unlock()
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		mctx := context.WithoutCancel(ctx)
		if timeout > 0 {
			var cancel context.CancelFunc
			mctx, cancel = context.WithTimeout(mctx, timeout)
			defer cancel()
		}
		if _, err := d.Apply(mctx, taskID, domain.StatusPatch(status)); err != nil {
			d.logger.WithError(err).WithFields(log.Fields{"task": taskID, "status": status}).Error("status update failed")
			d.mu.Lock()
			fn := d.onError
			d.mu.Unlock()
			if fn != nil {
				fn(taskID, err)
			}
		}
	}()
}

// Wait blocks until every dispatched mutation finished.
func (d *Dispatcher) Wait() { d.inflight.Wait() }
