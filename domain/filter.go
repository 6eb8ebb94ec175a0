package domain

import (
	"encoding/base64"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidPageToken is returned for page tokens this package did not issue.
var ErrInvalidPageToken = errors.New("invalid page token")

// GroupByStage splits tasks into one slice per registered stage, keyed by status.
// Tasks whose status is not registered are left out. Input order is preserved.
func GroupByStage(tasks []Task) map[Status][]Task {
	out := make(map[Status][]Task, len(stages))
	for _, s := range stages {
		out[s.ID] = []Task{}
	}
	for _, t := range tasks {
		if _, ok := out[t.Status]; ok {
			out[t.Status] = append(out[t.Status], t)
		}
	}
	return out
}

// Filter narrows a task list. Zero fields match everything.
type Filter struct {
	Status     Status
	Priority   Priority
	AssignedTo string
	Query      string
}

// Match reports whether t satisfies every set field of f.
func (f Filter) Match(t Task) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.AssignedTo != "" && t.AssignedTo != f.AssignedTo {
		return false
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		q = strings.ToLower(q)
		if !strings.Contains(strings.ToLower(t.Title), q) &&
			!strings.Contains(strings.ToLower(t.Description), q) {
			return false
		}
	}
	return true
}

// Apply returns the tasks matching f.
func (f Filter) Apply(tasks []Task) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// VisibleTo keeps the tasks a viewer with the given effective role may see.
func VisibleTo(tasks []Task, viewerID string, role Role) []Task {
	if role.SeesWholeTeam() {
		return tasks
	}
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.AssignedTo == viewerID {
			out = append(out, t)
		}
	}
	return out
}

// SortTasks orders tasks by creation time, then id, so listings are stable.
func SortTasks(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
}

// Paginate returns the page after the cursor in token. tasks must be in
// SortTasks order. The cursor names the last task handed out, so tasks
// deleted or added between fetches do not shift later pages. A limit of
// zero or less returns everything after the cursor.
func Paginate(tasks []Task, token string, limit int) ([]Task, string, error) {
	rest := tasks
	if token != "" {
		after, id, err := decodePageToken(token)
		if err != nil {
			return nil, "", err
		}
		i := sort.Search(len(tasks), func(i int) bool {
			return afterCursor(tasks[i], after, id)
		})
		rest = tasks[i:]
	}
	if limit <= 0 || limit >= len(rest) {
		return rest, "", nil
	}
	return rest[:limit], encodePageToken(rest[limit-1]), nil
}

func afterCursor(t Task, after time.Time, id string) bool {
	if !t.CreatedAt.Equal(after) {
		return t.CreatedAt.After(after)
	}
	return t.ID > id
}

func encodePageToken(last Task) string {
	raw := "k:" + strconv.FormatInt(last.CreatedAt.UnixNano(), 10) + ":" + last.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodePageToken(token string) (time.Time, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, "", ErrInvalidPageToken
	}
	rest, ok := strings.CutPrefix(string(raw), "k:")
	if !ok {
		return time.Time{}, "", ErrInvalidPageToken
	}
	nanos, id, ok := strings.Cut(rest, ":")
	if !ok || id == "" {
		return time.Time{}, "", ErrInvalidPageToken
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return time.Time{}, "", ErrInvalidPageToken
	}
	return time.Unix(0, n).UTC(), id, nil
}
