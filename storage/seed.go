package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/domain"
)

// Seed is a fixture of users and tasks loaded into a fresh store.
type Seed struct {
	Users []domain.User `yaml:"users"`
	Tasks []seedTask    `yaml:"tasks"`
}

type seedTask struct {
	ID          string          `yaml:"id"`
	Team        string          `yaml:"team"`
	Title       string          `yaml:"title"`
	Description string          `yaml:"description"`
	Status      domain.Status   `yaml:"status"`
	Priority    domain.Priority `yaml:"priority"`
	Due         string          `yaml:"due"`
	AssignedTo  string          `yaml:"assignedTo"`
	Tags        []string        `yaml:"tags"`
}

// SeedWriter is the write side of a store.
type SeedWriter interface {
	CreateTask(ctx context.Context, t domain.Task) error
	PutUser(ctx context.Context, u domain.User) error
}

// LoadSeed reads a YAML fixture from path.
func LoadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, err
	}
	return ParseSeed(data)
}

func ParseSeed(data []byte) (Seed, error) {
	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	for _, u := range s.Users {
		if u.ID == "" || !u.Role.Valid() {
			return Seed{}, fmt.Errorf("seed user %q: invalid id or role %q", u.ID, u.Role)
		}
	}
	return s, nil
}

// Apply writes every user and task of the fixture. Tasks that already exist
// are skipped so a seed can be applied to a provisioned store repeatedly.
// Task creation times are spaced one second apart from now to keep the
// fixture order.
func (s Seed) Apply(ctx context.Context, w SeedWriter, now time.Time) error {
	for _, u := range s.Users {
		if err := w.PutUser(ctx, u); err != nil {
			return fmt.Errorf("seed user %s: %w", u.ID, err)
		}
	}
	for i, st := range s.Tasks {
		in := domain.NewTask{
			Title:       st.Title,
			Description: st.Description,
			Status:      st.Status,
			Priority:    st.Priority,
			AssignedTo:  st.AssignedTo,
			Tags:        st.Tags,
		}
		if st.Due != "" {
			due, err := time.Parse(time.DateOnly, st.Due)
			if err != nil {
				return fmt.Errorf("seed task %s: due: %w", st.ID, err)
			}
			in.DueDate = &due
		}
		t, err := in.Build(st.ID, st.Team, now.Add(time.Duration(i)*time.Second))
		if err != nil {
			return fmt.Errorf("seed task %s: %w", st.ID, err)
		}
		if err := w.CreateTask(ctx, t); err != nil && !errors.Is(err, domain.ErrConflict) {
			return fmt.Errorf("seed task %s: %w", st.ID, err)
		}
	}
	return nil
}

func sortUsers(users []domain.User) {
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
}
