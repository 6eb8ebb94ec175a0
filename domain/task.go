package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("already exists")
	ErrInvalidStatus   = errors.New("invalid task status")
	ErrInvalidPriority = errors.New("invalid task priority")
	ErrEmptyPatch      = errors.New("task update had no fields")
	ErrMissingTitle    = errors.New("task title is required")
)

// Priority is the urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task represents a single board item as served by the API.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	AssignedTo  string     `json:"assignedTo"`
	Tags        []string   `json:"tags,omitempty"`
	TeamID      string     `json:"teamId"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// NewTask carries the fields accepted when creating a task.
type NewTask struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"dueDate"`
	AssignedTo  string     `json:"assignedTo"`
	Tags        []string   `json:"tags"`
}

// Build validates n and produces a task with defaults applied.
func (n NewTask) Build(id, teamID string, now time.Time) (Task, error) {
	title := strings.TrimSpace(n.Title)
	if title == "" {
		return Task{}, ErrMissingTitle
	}
	status := n.Status
	if status == "" {
		status = StatusTodo
	}
	if !status.Valid() {
		return Task{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	priority := n.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.Valid() {
		return Task{}, fmt.Errorf("%w: %q", ErrInvalidPriority, priority)
	}
	now = now.UTC()
	return Task{
		ID:          id,
		Title:       title,
		Description: n.Description,
		Status:      status,
		Priority:    priority,
		DueDate:     n.DueDate,
		AssignedTo:  n.AssignedTo,
		Tags:        append([]string(nil), n.Tags...),
		TeamID:      teamID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// TaskPatch is a partial update. Nil fields are left untouched.
type TaskPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Status      *Status    `json:"status,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	AssignedTo  *string    `json:"assignedTo,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
}

// StatusPatch builds the patch issued when a card changes column.
func StatusPatch(s Status) TaskPatch {
	return TaskPatch{Status: &s}
}

// Empty reports whether the patch carries no fields.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.Priority == nil &&
		p.DueDate == nil && p.AssignedTo == nil && p.Tags == nil
}

// Validate rejects empty patches and values outside the known enums.
func (p TaskPatch) Validate() error {
	if p.Empty() {
		return ErrEmptyPatch
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return ErrMissingTitle
	}
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, *p.Status)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, *p.Priority)
	}
	return nil
}

// Apply merges the patch into t and reports whether anything changed.
// Applying the same patch twice leaves t as after the first application.
func (p TaskPatch) Apply(t *Task, now time.Time) bool {
	changed := false
	if p.Title != nil {
		if title := strings.TrimSpace(*p.Title); title != t.Title {
			t.Title = title
			changed = true
		}
	}
	if p.Description != nil && *p.Description != t.Description {
		t.Description = *p.Description
		changed = true
	}
	if p.Status != nil && *p.Status != t.Status {
		t.Status = *p.Status
		changed = true
	}
	if p.Priority != nil && *p.Priority != t.Priority {
		t.Priority = *p.Priority
		changed = true
	}
	if p.DueDate != nil && (t.DueDate == nil || !p.DueDate.Equal(*t.DueDate)) {
		d := *p.DueDate
		t.DueDate = &d
		changed = true
	}
	if p.AssignedTo != nil && *p.AssignedTo != t.AssignedTo {
		t.AssignedTo = *p.AssignedTo
		changed = true
	}
	if p.Tags != nil && !equalTags(p.Tags, t.Tags) {
		t.Tags = append([]string(nil), p.Tags...)
		changed = true
	}
	if changed {
		t.UpdatedAt = now.UTC()
	}
	return changed
}

func equalTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
