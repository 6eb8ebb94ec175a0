package domain

// Status is the column a task currently occupies.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusDone       Status = "done"
)

// Stage is the display metadata of one status column.
type Stage struct {
	ID    Status `json:"id"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// stages is ordered left to right as the board renders them.
var stages = [...]Stage{
	{ID: StatusTodo, Label: "To Do", Color: "#64748B"},
	{ID: StatusInProgress, Label: "In Progress", Color: "#3B82F6"},
	{ID: StatusReview, Label: "Review", Color: "#F59E0B"},
	{ID: StatusDone, Label: "Done", Color: "#22C55E"},
}

// Stages returns a copy of the stage registry in column order.
func Stages() []Stage {
	out := make([]Stage, len(stages))
	copy(out, stages[:])
	return out
}

// LookupStage returns the stage registered under id.
func LookupStage(id string) (Stage, bool) {
	for _, s := range stages {
		if string(s.ID) == id {
			return s, true
		}
	}
	return Stage{}, false
}

// StageIndex returns the column position of s, or -1 when unknown.
func StageIndex(s Status) int {
	for i, st := range stages {
		if st.ID == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a registered stage id.
func (s Status) Valid() bool {
	return StageIndex(s) >= 0
}

// Label returns the display label, falling back to the raw value.
func (s Status) Label() string {
	if st, ok := LookupStage(string(s)); ok {
		return st.Label
	}
	return string(s)
}

// Color returns the display color, or an empty string for unknown statuses.
func (s Status) Color() string {
	if st, ok := LookupStage(string(s)); ok {
		return st.Color
	}
	return ""
}
