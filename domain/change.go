package domain

const (
	TaskCreated = "task-created"
	TaskUpdated = "task-updated"
	TaskDeleted = "task-deleted"
)

// TaskChange is published after every successful write so readers holding a
// cached task collection can refetch.
type TaskChange struct {
	TeamID string `json:"teamId"`
	TaskID string `json:"taskId"`
	Type   string `json:"type"`
	Status Status `json:"status,omitempty"`
	Time   int64  `json:"time"`
}
