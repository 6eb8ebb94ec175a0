package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
)

func TestTaskMarshalUsesWireNames(t *testing.T) {
	task := Task{ID: "t1", Title: "Title", Status: StatusInProgress, Priority: PriorityHigh, AssignedTo: "u1"}

	payload, err := sonic.Marshal(task)
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}

	for _, want := range []string{`"status":"in_progress"`, `"priority":"high"`, `"assignedTo":"u1"`} {
		if !strings.Contains(string(payload), want) {
			t.Fatalf("expected %s in %s", want, payload)
		}
	}
	if strings.Contains(string(payload), "dueDate") {
		t.Fatalf("expected nil due date to be omitted, got %s", payload)
	}
}

func TestNewTaskBuildDefaults(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	task, err := NewTask{Title: "  Ship it  "}.Build("id-1", "team-1", now)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if task.Title != "Ship it" {
		t.Fatalf("expected trimmed title, got %q", task.Title)
	}
	if task.Status != StatusTodo || task.Priority != PriorityMedium {
		t.Fatalf("unexpected defaults: %s/%s", task.Status, task.Priority)
	}
	if !task.CreatedAt.Equal(now) || !task.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected timestamps: %v %v", task.CreatedAt, task.UpdatedAt)
	}
	if task.TeamID != "team-1" || task.ID != "id-1" {
		t.Fatalf("unexpected identity: %+v", task)
	}
}

func TestNewTaskBuildRejectsInvalid(t *testing.T) {
	tests := map[string]struct {
		in   NewTask
		want error
	}{
		"missing title":    {in: NewTask{}, want: ErrMissingTitle},
		"unknown status":   {in: NewTask{Title: "x", Status: "blocked"}, want: ErrInvalidStatus},
		"unknown priority": {in: NewTask{Title: "x", Priority: "urgent"}, want: ErrInvalidPriority},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := tt.in.Build("id", "team", time.Now()); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestTaskPatchValidate(t *testing.T) {
	bad := Status("archived")
	blank := "   "
	low := PriorityLow
	tests := map[string]struct {
		patch TaskPatch
		want  error
	}{
		"empty":        {patch: TaskPatch{}, want: ErrEmptyPatch},
		"bad status":   {patch: TaskPatch{Status: &bad}, want: ErrInvalidStatus},
		"blank title":  {patch: TaskPatch{Title: &blank}, want: ErrMissingTitle},
		"priority ok":  {patch: TaskPatch{Priority: &low}, want: nil},
		"status patch": {patch: StatusPatch(StatusReview), want: nil},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := tt.patch.Validate()
			if tt.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestTaskPatchApplyIsIdempotent(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	task := Task{ID: "t1", Title: "a", Status: StatusTodo, Priority: PriorityLow, UpdatedAt: created}
	patch := StatusPatch(StatusInProgress)

	first := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	if !patch.Apply(&task, first) {
		t.Fatalf("expected first apply to change the task")
	}
	snapshot := task

	if patch.Apply(&task, first.Add(time.Hour)) {
		t.Fatalf("expected second apply to be a no-op")
	}
	if task.Status != StatusInProgress || !task.UpdatedAt.Equal(snapshot.UpdatedAt) {
		t.Fatalf("task changed on repeated patch: %+v", task)
	}
}

func TestTaskPatchApplyCopiesTagsAndDueDate(t *testing.T) {
	due := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	tags := []string{"ops"}
	task := Task{}
	TaskPatch{DueDate: &due, Tags: tags}.Apply(&task, time.Now())

	tags[0] = "mutated"
	due = due.Add(time.Hour)
	if task.Tags[0] != "ops" {
		t.Fatalf("tags aliased caller slice: %v", task.Tags)
	}
	if task.DueDate.Hour() != 0 {
		t.Fatalf("due date aliased caller value: %v", task.DueDate)
	}
}
