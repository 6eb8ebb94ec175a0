package board

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/domain"
)

var (
	ErrDragInProgress = errors.New("a drag is already in progress")
	ErrNotDraggable   = errors.New("item is not draggable")
)

// State of the drag coordinator.
type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// OutcomeKind classifies what a drag event did.
type OutcomeKind int

const (
	OutcomeNone OutcomeKind = iota
	OutcomeStarted
	OutcomeMoved
	OutcomeUnchanged
	OutcomeCancelled
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeStarted:
		return "started"
	case OutcomeMoved:
		return "moved"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeCancelled:
		return "cancelled"
	}
	return "none"
}

// Outcome reports one coordinator transition.
type Outcome struct {
	Kind   OutcomeKind
	TaskID string
	From   domain.Status
	To     domain.Status
}

// TaskSource looks up the current copy of a task.
type TaskSource interface {
	Task(id string) (domain.Task, bool)
}

// StatusMutator issues a status change without waiting for it to complete.
type StatusMutator interface {
	MutateStatus(ctx context.Context, taskID string, status domain.Status)
}

// Coordinator owns the drag session. Only one task can be active at a time.
// It implements Surface.
type Coordinator struct {
	*Registry

	ctx     context.Context
	tasks   TaskSource
	mutator StatusMutator
	logger  *log.Logger

	mu       sync.Mutex
	activeID string
	snapshot domain.Task
	dragSeq  uint64
}

// NewCoordinator builds a coordinator. ctx is the parent of every mutation it issues.
func NewCoordinator(ctx context.Context, reg *Registry, tasks TaskSource, mutator StatusMutator, logger *log.Logger) *Coordinator {
	if reg == nil {
		reg = NewRegistry()
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Coordinator{Registry: reg, ctx: ctx, tasks: tasks, mutator: mutator, logger: logger}
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeID != "" {
		return Dragging
	}
	return Idle
}

// Active returns the dragged task snapshot, if a drag is in progress.
func (c *Coordinator) Active() (domain.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeID == "" {
		return domain.Task{}, false
	}
	return c.snapshot, true
}

// OnDragStart moves Idle → Dragging and snapshots the task for overlay rendering.
func (c *Coordinator) OnDragStart(id string) (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeID != "" {
		return Outcome{}, ErrDragInProgress
	}
	if !c.Draggable(id) {
		return Outcome{}, ErrNotDraggable
	}
	task, ok := c.tasks.Task(id)
	if !ok {
		return Outcome{}, ErrNotDraggable
	}
	c.activeID = id
	c.snapshot = task
	c.dragSeq++
	c.logger.WithFields(log.Fields{"task": id, "status": task.Status}).Debug("drag started")
	return Outcome{Kind: OutcomeStarted, TaskID: id, From: task.Status}, nil
}

// OnDragEnd resolves the drop target and returns to Idle. A status mutation is
// issued only for a registered stage that differs from the dragged task's status.
// The coordinator does not wait for the mutation.
func (c *Coordinator) OnDragEnd(id, targetID string) Outcome {
	c.mu.Lock()
	if c.activeID == "" || (id != "" && id != c.activeID) {
		c.mu.Unlock()
		return Outcome{Kind: OutcomeNone, TaskID: id}
	}
	task := c.snapshot
	c.activeID = ""
	c.snapshot = domain.Task{}
	c.mu.Unlock()

	to, ok := c.resolve(targetID)
	if !ok {
		c.logger.WithFields(log.Fields{"task": task.ID, "target": targetID}).Debug("drag cancelled")
		return Outcome{Kind: OutcomeCancelled, TaskID: task.ID, From: task.Status}
	}
	if to == task.Status {
		return Outcome{Kind: OutcomeUnchanged, TaskID: task.ID, From: task.Status, To: to}
	}

	c.logger.WithFields(log.Fields{"task": task.ID, "from": task.Status, "to": to}).Info("task moved")
	c.mutator.MutateStatus(c.ctx, task.ID, to)
	return Outcome{Kind: OutcomeMoved, TaskID: task.ID, From: task.Status, To: to}
}

// Cancel drops the active drag without side effects.
func (c *Coordinator) Cancel() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeID == "" {
		return Outcome{Kind: OutcomeNone}
	}
	out := Outcome{Kind: OutcomeCancelled, TaskID: c.activeID, From: c.snapshot.Status}
	c.activeID = ""
	c.snapshot = domain.Task{}
	return out
}

// resolve maps a drop target id to a stage. A column resolves to itself, a
// card to its current status. Anything else is unresolvable.
func (c *Coordinator) resolve(targetID string) (domain.Status, bool) {
	if targetID == "" {
		return "", false
	}
	var status domain.Status
	switch c.Target(targetID) {
	case TargetColumn:
		status = domain.Status(targetID)
	case TargetCard:
		t, ok := c.tasks.Task(targetID)
		if !ok {
			return "", false
		}
		status = t.Status
	default:
		return "", false
	}
	if !status.Valid() {
		return "", false
	}
	return status, true
}

// Press is recorded at pointer-down on a card.
type Press struct {
	TaskID     string
	dragActive bool
	seq        uint64
}

// Press records a pointer-down on a card.
func (c *Coordinator) Press(taskID string) Press {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Press{TaskID: taskID, dragActive: c.activeID != "", seq: c.dragSeq}
}

// OpensDetail reports whether releasing p should open the task detail view.
// It is false when a drag was active at pointer-down or started since.
func (c *Coordinator) OpensDetail(p Press) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !p.dragActive && p.seq == c.dragSeq && c.activeID == ""
}
