package storage

import (
	"encoding/json"
	"time"

	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/domain"
)

const (
	EdmInt64 = "Edm.Int64"

	usersPartition = "user"
)

// taskEntity is the table row of a task. PartitionKey is the team, RowKey the task id.
type taskEntity struct {
	PartitionKey  string `json:"PartitionKey"`
	RowKey        string `json:"RowKey"`
	Title         string `json:"Title"`
	Description   string `json:"Description,omitempty"`
	Status        string `json:"Status"`
	Priority      string `json:"Priority"`
	AssignedTo    string `json:"AssignedTo,omitempty"`
	Tags          string `json:"Tags,omitempty"`
	DueDate       *int64 `json:"DueDate,omitempty,string"`
	DueDateType   string `json:"DueDate@odata.type,omitempty"`
	CreatedAt     int64  `json:"CreatedAt,string"`
	CreatedAtType string `json:"CreatedAt@odata.type"`
	UpdatedAt     int64  `json:"UpdatedAt,string"`
	UpdatedAtType string `json:"UpdatedAt@odata.type"`
}

type userEntity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
	Name         string `json:"Name"`
	Email        string `json:"Email,omitempty"`
	AvatarURL    string `json:"AvatarUrl,omitempty"`
	Role         string `json:"Role"`
}

func encodeTask(t domain.Task) ([]byte, error) {
	ent := taskEntity{
		PartitionKey:  t.TeamID,
		RowKey:        t.ID,
		Title:         t.Title,
		Description:   t.Description,
		Status:        string(t.Status),
		Priority:      string(t.Priority),
		AssignedTo:    t.AssignedTo,
		CreatedAt:     t.CreatedAt.UnixMilli(),
		CreatedAtType: EdmInt64,
		UpdatedAt:     t.UpdatedAt.UnixMilli(),
		UpdatedAtType: EdmInt64,
	}
	if len(t.Tags) > 0 {
		tags, err := json.Marshal(t.Tags)
		if err != nil {
			return nil, err
		}
		ent.Tags = string(tags)
	}
	if t.DueDate != nil {
		due := t.DueDate.UnixMilli()
		ent.DueDate = &due
		ent.DueDateType = EdmInt64
	}
	return json.Marshal(ent)
}

func decodeTask(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, err
	}
	t := domain.Task{
		ID:          ent.RowKey,
		TeamID:      ent.PartitionKey,
		Title:       ent.Title,
		Description: ent.Description,
		Status:      domain.Status(ent.Status),
		Priority:    domain.Priority(ent.Priority),
		AssignedTo:  ent.AssignedTo,
		CreatedAt:   time.UnixMilli(ent.CreatedAt).UTC(),
		UpdatedAt:   time.UnixMilli(ent.UpdatedAt).UTC(),
	}
	if ent.Tags != "" {
		if err := json.Unmarshal([]byte(ent.Tags), &t.Tags); err != nil {
			return domain.Task{}, err
		}
	}
	if ent.DueDate != nil {
		due := time.UnixMilli(*ent.DueDate).UTC()
		t.DueDate = &due
	}
	return t, nil
}

func encodeUser(u domain.User) ([]byte, error) {
	return json.Marshal(userEntity{
		PartitionKey: usersPartition,
		RowKey:       u.ID,
		Name:         u.Name,
		Email:        u.Email,
		AvatarURL:    u.AvatarURL,
		Role:         string(u.Role),
	})
}

func decodeUser(data []byte) (domain.User, error) {
	var ent userEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.User{}, err
	}
	return domain.User{
		ID:        ent.RowKey,
		Name:      ent.Name,
		Email:     ent.Email,
		AvatarURL: ent.AvatarURL,
		Role:      domain.Role(ent.Role),
	}, nil
}
