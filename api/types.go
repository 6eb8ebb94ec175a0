package api

import (
	"context"
	"slices"
	"time"

	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/domain"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	ListTasks(ctx context.Context, teamID string) ([]domain.Task, error)
	FindTask(ctx context.Context, id string) (domain.Task, error)
	CreateTask(ctx context.Context, t domain.Task) error
	UpdateTask(ctx context.Context, id string, patch domain.TaskPatch, now time.Time) (domain.Task, bool, error)
	DeleteTask(ctx context.Context, id string) (domain.Task, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Role   domain.Role
	Teams  []string
}

// InTeam reports whether the caller may open teamID. Admins may open any team.
func (p Principal) InTeam(teamID string) bool {
	return p.Role == domain.RoleAdmin || slices.Contains(p.Teams, teamID)
}

// Sees reports whether t is visible to the caller viewing as role.
func (p Principal) Sees(t domain.Task, role domain.Role) bool {
	return p.InTeam(t.TeamID) && (role.SeesWholeTeam() || t.AssignedTo == p.UserID)
}

// Authenticator is implemented by types able to resolve callers from headers.
type Authenticator interface {
	PrincipalFromAuthHeader(string) (Principal, error)
}

// Deduper records PATCH idempotency keys together with the task they produced.
// Keys are unique within a scope (caller and task).
type Deduper interface {
	// Claim records the key as in flight and returns true if it was newly added.
	Claim(ctx context.Context, scope, key string) (bool, error)
	// Complete stores the result of the request made under key.
	Complete(ctx context.Context, scope, key string, t domain.Task) error
	// Replay returns the stored result. ok is false while the first request is still in flight.
	Replay(ctx context.Context, scope, key string) (t domain.Task, ok bool, err error)
	// Release deletes a claimed key, used when the write fails so the caller may retry.
	Release(ctx context.Context, scope, key string) error
}

// ChangeSink receives every task change after a successful write.
type ChangeSink interface {
	Publish(ctx context.Context, ch domain.TaskChange) error
}
