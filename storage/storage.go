package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/domain"
)

// maxUpdateAttempts bounds the read-apply-write loop when a concurrent
// writer changes the row between our read and our write.
const maxUpdateAttempts = 3

// Tables stores tasks and users in Azure Table Storage.
type Tables struct {
	taskTable *aztables.Client
	userTable *aztables.Client
}

// New creates a Tables instance from the given connection string.
func New(connStr, tasksTable, usersTable string) (*Tables, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &Tables{taskTable: svc.NewClient(tasksTable), userTable: svc.NewClient(usersTable)}, nil
}

// ListTasks retrieves all tasks of a team.
func (s *Tables) ListTasks(ctx context.Context, teamID string) ([]domain.Task, error) {
	tasks, err := s.queryTasks(ctx, "PartitionKey eq "+quote(teamID))
	if err != nil {
		return nil, err
	}
	domain.SortTasks(tasks)
	return tasks, nil
}

// GetTask retrieves a single task of a team.
func (s *Tables) GetTask(ctx context.Context, teamID, id string) (domain.Task, error) {
	t, _, err := s.getTask(ctx, teamID, id)
	return t, err
}

// FindTask looks a task up by id across all teams.
func (s *Tables) FindTask(ctx context.Context, id string) (domain.Task, error) {
	tasks, err := s.queryTasks(ctx, "RowKey eq "+quote(id))
	if err != nil {
		return domain.Task{}, err
	}
	if len(tasks) == 0 {
		return domain.Task{}, domain.ErrNotFound
	}
	return tasks[0], nil
}

// CreateTask inserts a new task row.
func (s *Tables) CreateTask(ctx context.Context, t domain.Task) error {
	payload, err := encodeTask(t)
	if err != nil {
		return err
	}
	_, err = s.taskTable.AddEntity(ctx, payload, nil)
	return mapError(err)
}

// UpdateTask applies patch to the task with the given id and reports whether
// the stored row changed. A patch that changes nothing does not write.
func (s *Tables) UpdateTask(ctx context.Context, id string, patch domain.TaskPatch, now time.Time) (domain.Task, bool, error) {
	found, err := s.FindTask(ctx, id)
	if err != nil {
		return domain.Task{}, false, err
	}
	for attempt := 1; ; attempt++ {
		t, etag, err := s.getTask(ctx, found.TeamID, id)
		if err != nil {
			return domain.Task{}, false, err
		}
		if !patch.Apply(&t, now) {
			return t, false, nil
		}
		payload, err := encodeTask(t)
		if err != nil {
			return domain.Task{}, false, err
		}
		_, err = s.taskTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &etag, UpdateMode: aztables.UpdateModeReplace})
		if err == nil {
			return t, true, nil
		}
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusPreconditionFailed && attempt < maxUpdateAttempts {
			continue
		}
		return domain.Task{}, false, mapError(err)
	}
}

// DeleteTask removes the task with the given id and returns its last state.
func (s *Tables) DeleteTask(ctx context.Context, id string) (domain.Task, error) {
	t, err := s.FindTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	if _, err := s.taskTable.DeleteEntity(ctx, t.TeamID, t.ID, nil); err != nil {
		return domain.Task{}, mapError(err)
	}
	return t, nil
}

// ListUsers retrieves the user directory.
func (s *Tables) ListUsers(ctx context.Context) ([]domain.User, error) {
	filter := "PartitionKey eq " + quote(usersPartition)
	pager := s.userTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	users := []domain.User{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			u, err := decodeUser(e)
			if err != nil {
				return nil, err
			}
			users = append(users, u)
		}
	}
	return users, nil
}

// PutUser creates or replaces a user row.
func (s *Tables) PutUser(ctx context.Context, u domain.User) error {
	payload, err := encodeUser(u)
	if err == nil {
		_, err = s.userTable.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	}
	return err
}

func (s *Tables) getTask(ctx context.Context, teamID, id string) (domain.Task, azcore.ETag, error) {
	ent, err := s.taskTable.GetEntity(ctx, teamID, id, nil)
	if err != nil {
		return domain.Task{}, "", mapError(err)
	}
	t, err := decodeTask(ent.Value)
	if err != nil {
		return domain.Task{}, "", fmt.Errorf("decode task %s: %w", id, err)
	}
	return t, ent.ETag, nil
}

func (s *Tables) queryTasks(ctx context.Context, filter string) ([]domain.Task, error) {
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			t, err := decodeTask(e)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", domain.ErrNotFound, respErr.ErrorCode)
		case http.StatusConflict, http.StatusPreconditionFailed:
			return fmt.Errorf("%w: %s", domain.ErrConflict, respErr.ErrorCode)
		}
	}
	return err
}

// quote renders s as an OData string literal.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
