package board

import (
	"fmt"
	"strings"
	"time"

	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/domain"
)

// Column is the view over one stage of the board.
type Column struct {
	Stage domain.Stage
}

// Columns returns one column per registered stage, in board order.
func Columns() []Column {
	stages := domain.Stages()
	out := make([]Column, len(stages))
	for i, s := range stages {
		out[i] = Column{Stage: s}
	}
	return out
}

// DropID is the droppable id the column registers under.
func (c Column) DropID() string { return string(c.Stage.ID) }

// Tasks returns the tasks of all whose status equals the column's stage.
func (c Column) Tasks(all []domain.Task) []domain.Task {
	out := make([]domain.Task, 0)
	for _, t := range all {
		if t.Status == c.Stage.ID {
			out = append(out, t)
		}
	}
	return out
}

// Register makes the column and its cards known to the drag surface.
func (c Column) Register(s Surface, all []domain.Task) {
	s.RegisterDroppable(c.DropID(), TargetColumn)
	for _, t := range c.Tasks(all) {
		s.RegisterDraggable(t.ID)
		s.RegisterDroppable(t.ID, TargetCard)
	}
}

// Card is the rendered summary of one task.
type Card struct {
	ID       string
	Title    string
	Priority domain.Priority
	Due      string
	Overdue  bool
	Assignee string
	Initials string
}

// NewCard builds the summary of t, resolving the assignee through dir.
func NewCard(t domain.Task, dir domain.Directory, now time.Time) Card {
	c := Card{ID: t.ID, Title: t.Title, Priority: t.Priority}
	if t.DueDate != nil {
		c.Due = t.DueDate.Format("Jan 2")
		c.Overdue = t.Status != domain.StatusDone && t.DueDate.Before(now)
	}
	if t.AssignedTo != "" {
		c.Assignee = dir.Name(t.AssignedTo)
		if u, ok := dir[t.AssignedTo]; ok {
			c.Initials = u.Initials()
		} else {
			c.Initials = domain.User{Name: t.AssignedTo}.Initials()
		}
	}
	return c
}

// Badge is the short priority marker.
func (c Card) Badge() string {
	switch c.Priority {
	case domain.PriorityHigh:
		return "HIGH"
	case domain.PriorityMedium:
		return "MED"
	case domain.PriorityLow:
		return "LOW"
	}
	return strings.ToUpper(string(c.Priority))
}

// Meta is the second line of the card.
func (c Card) Meta() string {
	parts := []string{c.Badge()}
	if c.Due != "" {
		due := c.Due
		if c.Overdue {
			due += "!"
		}
		parts = append(parts, due)
	}
	if c.Initials != "" {
		parts = append(parts, fmt.Sprintf("@%s", c.Initials))
	}
	return strings.Join(parts, " · ")
}
