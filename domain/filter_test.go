package domain

import (
	"errors"
	"testing"
	"time"
)

func sampleTasks() []Task {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return []Task{
		{ID: "t1", Title: "Call supplier", Status: StatusTodo, Priority: PriorityHigh, AssignedTo: "u1", CreatedAt: base},
		{ID: "t2", Title: "Draft invoice", Status: StatusInProgress, Priority: PriorityLow, AssignedTo: "u2", CreatedAt: base.Add(time.Minute)},
		{ID: "t3", Title: "Ship order", Status: StatusDone, Priority: PriorityMedium, AssignedTo: "u1", CreatedAt: base.Add(2 * time.Minute)},
		{ID: "t4", Title: "Review contract", Description: "supplier terms", Status: StatusReview, Priority: PriorityHigh, AssignedTo: "u3", CreatedAt: base.Add(3 * time.Minute)},
		{ID: "t5", Title: "Book venue", Status: StatusTodo, Priority: PriorityLow, AssignedTo: "u2", CreatedAt: base.Add(4 * time.Minute)},
	}
}

func TestGroupByStageIsDisjointAndComplete(t *testing.T) {
	tasks := sampleTasks()
	groups := GroupByStage(tasks)

	if len(groups) != len(Stages()) {
		t.Fatalf("expected one group per stage, got %d", len(groups))
	}
	seen := map[string]Status{}
	total := 0
	for status, group := range groups {
		for _, task := range group {
			if task.Status != status {
				t.Fatalf("task %s with status %s grouped under %s", task.ID, task.Status, status)
			}
			if prev, dup := seen[task.ID]; dup {
				t.Fatalf("task %s appears under %s and %s", task.ID, prev, status)
			}
			seen[task.ID] = status
			total++
		}
	}
	if total != len(tasks) {
		t.Fatalf("union has %d tasks, want %d", total, len(tasks))
	}
	if got := groups[StatusTodo]; len(got) != 2 || got[0].ID != "t1" || got[1].ID != "t5" {
		t.Fatalf("expected todo column to keep input order, got %+v", got)
	}
}

func TestGroupByStageKeepsEmptyColumns(t *testing.T) {
	groups := GroupByStage(nil)
	for _, s := range Stages() {
		if g, ok := groups[s.ID]; !ok || g == nil {
			t.Fatalf("expected empty, non-nil column for %s", s.ID)
		}
	}
}

func TestFilterApply(t *testing.T) {
	tests := map[string]struct {
		filter Filter
		want   []string
	}{
		"all":         {filter: Filter{}, want: []string{"t1", "t2", "t3", "t4", "t5"}},
		"status":      {filter: Filter{Status: StatusTodo}, want: []string{"t1", "t5"}},
		"priority":    {filter: Filter{Priority: PriorityHigh}, want: []string{"t1", "t4"}},
		"assignee":    {filter: Filter{AssignedTo: "u2"}, want: []string{"t2", "t5"}},
		"query title": {filter: Filter{Query: "SHIP"}, want: []string{"t3"}},
		"query desc":  {filter: Filter{Query: "supplier"}, want: []string{"t1", "t4"}},
		"combined":    {filter: Filter{Status: StatusTodo, Priority: PriorityLow}, want: []string{"t5"}},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := tt.filter.Apply(sampleTasks())
			if len(got) != len(tt.want) {
				t.Fatalf("got %d tasks, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Fatalf("position %d: got %s want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestVisibleTo(t *testing.T) {
	tasks := sampleTasks()
	if got := VisibleTo(tasks, "u1", RoleManager); len(got) != len(tasks) {
		t.Fatalf("manager should see whole team, got %d", len(got))
	}
	got := VisibleTo(tasks, "u1", RoleMember)
	if len(got) != 2 {
		t.Fatalf("member should see own tasks only, got %d", len(got))
	}
	for _, task := range got {
		if task.AssignedTo != "u1" {
			t.Fatalf("member saw foreign task %s", task.ID)
		}
	}
}

func TestSortTasksStable(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tasks := []Task{
		{ID: "b", CreatedAt: base},
		{ID: "c", CreatedAt: base.Add(-time.Minute)},
		{ID: "a", CreatedAt: base},
	}
	SortTasks(tasks)
	if tasks[0].ID != "c" || tasks[1].ID != "a" || tasks[2].ID != "b" {
		t.Fatalf("unexpected order: %s %s %s", tasks[0].ID, tasks[1].ID, tasks[2].ID)
	}
}

func TestPaginate(t *testing.T) {
	tasks := sampleTasks()

	page, next, err := Paginate(tasks, "", 2)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(page) != 2 || page[0].ID != "t1" || next == "" {
		t.Fatalf("unexpected first page: %d next=%q", len(page), next)
	}

	var ids []string
	for _, task := range page {
		ids = append(ids, task.ID)
	}
	for next != "" {
		page, next, err = Paginate(tasks, next, 2)
		if err != nil {
			t.Fatalf("page: %v", err)
		}
		for _, task := range page {
			ids = append(ids, task.ID)
		}
	}
	if len(ids) != len(tasks) {
		t.Fatalf("walked %d tasks, want %d", len(ids), len(tasks))
	}

	all, next, err := Paginate(tasks, "", 0)
	if err != nil || len(all) != len(tasks) || next != "" {
		t.Fatalf("unbounded page: len=%d next=%q err=%v", len(all), next, err)
	}
}

func TestPaginateRejectsForeignTokens(t *testing.T) {
	for _, token := range []string{"%%%", "bm9wZQ", "bzoy", "azp4OnQx", "azoxMjM6"} {
		if _, _, err := Paginate(sampleTasks(), token, 2); !errors.Is(err, ErrInvalidPageToken) {
			t.Fatalf("token %q: expected ErrInvalidPageToken, got %v", token, err)
		}
	}
}

func TestPaginateSurvivesDeleteBetweenPages(t *testing.T) {
	tasks := sampleTasks()
	first, next, err := Paginate(tasks, "", 2)
	if err != nil || len(first) != 2 || next == "" {
		t.Fatalf("first page: %d next=%q err=%v", len(first), next, err)
	}

	// t1 is deleted before the second page is fetched.
	remaining := tasks[1:]
	second, _, err := Paginate(remaining, next, 2)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second) != 2 || second[0].ID != "t3" || second[1].ID != "t4" {
		t.Fatalf("expected t3,t4 after the cursor, got %+v", second)
	}

	// The cursor task itself disappearing does not reset the walk either.
	without := []Task{tasks[0], tasks[2], tasks[3], tasks[4]}
	second, _, err = Paginate(without, next, 2)
	if err != nil || len(second) != 2 || second[0].ID != "t3" {
		t.Fatalf("cursor task deleted: %+v err=%v", second, err)
	}

	// A cursor past the end yields an empty last page.
	end, next, err := Paginate(tasks[:2], next, 2)
	if err != nil || len(end) != 0 || next != "" {
		t.Fatalf("cursor past the end: %d next=%q err=%v", len(end), next, err)
	}
}
