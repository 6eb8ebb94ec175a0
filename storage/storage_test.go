package storage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/domain"
)

func TestEncodeTaskWritesInt64Timestamps(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	due := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	task := domain.Task{
		ID: "t1", TeamID: "team-1", Title: "Ship", Status: domain.StatusReview,
		Priority: domain.PriorityHigh, DueDate: &due, Tags: []string{"a", "b"},
		CreatedAt: created, UpdatedAt: created.Add(time.Hour),
	}
	payload, err := encodeTask(task)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw["PartitionKey"] != "team-1" || raw["RowKey"] != "t1" {
		t.Fatalf("unexpected keys: %v", raw)
	}
	if raw["CreatedAt"] != "1709285400000" || raw["CreatedAt@odata.type"] != EdmInt64 {
		t.Fatalf("unexpected CreatedAt encoding: %v %v", raw["CreatedAt"], raw["CreatedAt@odata.type"])
	}
	if raw["DueDate@odata.type"] != EdmInt64 || raw["Tags"] != `["a","b"]` {
		t.Fatalf("unexpected due/tags encoding: %v", raw)
	}

	got, err := decodeTask(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "t1" || got.TeamID != "team-1" || !got.CreatedAt.Equal(created) || !got.DueDate.Equal(due) || len(got.Tags) != 2 {
		t.Fatalf("unexpected decoded task: %+v", got)
	}
}

func TestEncodeTaskOmitsMissingDueDate(t *testing.T) {
	payload, err := encodeTask(domain.Task{ID: "t1", TeamID: "team-1"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw["DueDate"]; ok {
		t.Fatalf("expected no DueDate, got %v", raw)
	}
	if _, ok := raw["DueDate@odata.type"]; ok {
		t.Fatalf("expected no DueDate type, got %v", raw)
	}
}

func TestUserEntityUsesUserPartition(t *testing.T) {
	payload, err := encodeUser(domain.User{ID: "u1", Name: "Asha", Role: domain.RoleManager})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var ent aztables.Entity
	if err := json.Unmarshal(payload, &ent); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ent.PartitionKey != usersPartition || ent.RowKey != "u1" {
		t.Fatalf("unexpected keys: %+v", ent)
	}
	u, err := decodeUser(payload)
	if err != nil || u.Role != domain.RoleManager || u.Name != "Asha" {
		t.Fatalf("unexpected user: %+v %v", u, err)
	}
}

func TestMapError(t *testing.T) {
	notFound := &azcore.ResponseError{StatusCode: http.StatusNotFound, ErrorCode: "ResourceNotFound"}
	if err := mapError(notFound); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	conflict := &azcore.ResponseError{StatusCode: http.StatusConflict, ErrorCode: "EntityAlreadyExists"}
	if err := mapError(conflict); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	stale := &azcore.ResponseError{StatusCode: http.StatusPreconditionFailed, ErrorCode: "UpdateConditionNotSatisfied"}
	if err := mapError(stale); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected exhausted precondition failure to be ErrConflict, got %v", err)
	}
	other := errors.New("boom")
	if err := mapError(other); err != other {
		t.Fatalf("expected passthrough, got %v", err)
	}
	if mapError(nil) != nil {
		t.Fatalf("expected nil")
	}
}

func TestQuoteEscapesSingleQuotes(t *testing.T) {
	if got := quote("o'brien"); got != "'o''brien'" {
		t.Fatalf("unexpected quote: %s", got)
	}
}

func TestAlreadyExists(t *testing.T) {
	err := &azcore.ResponseError{StatusCode: http.StatusConflict, ErrorCode: queueAlreadyExists}
	if !alreadyExists(err, queueAlreadyExists) {
		t.Fatalf("expected already exists")
	}
	if alreadyExists(err, string(aztables.TableAlreadyExists)) {
		t.Fatalf("unexpected match on other code")
	}
	if alreadyExists(nil, queueAlreadyExists) {
		t.Fatalf("nil error is not already exists")
	}
	if got := nonEmpty([]string{"", "a", ""}); len(got) != 1 || got[0] != "a" {
		t.Fatalf("unexpected names: %v", got)
	}
}

func TestEventQueuePublishesJSON(t *testing.T) {
	var got string
	q := &EventQueue{enqueue: func(ctx context.Context, msg string) error {
		got = msg
		return nil
	}}
	ch := domain.TaskChange{TeamID: "team-1", TaskID: "t1", Type: domain.TaskUpdated, Status: domain.StatusDone, Time: 42}
	if err := q.Publish(context.Background(), ch); err != nil {
		t.Fatalf("publish: %v", err)
	}
	var decoded domain.TaskChange
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("invalid message %q: %v", got, err)
	}
	if decoded != ch {
		t.Fatalf("unexpected message: %+v", decoded)
	}
}
