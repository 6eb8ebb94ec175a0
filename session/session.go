// Package session holds the board's application context: who is signed in,
// which team is open and which role the board views as. Only identity is
// written to disk; view and interaction state live for the process only.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/domain"
)

var ErrRoleNotAllowed = errors.New("role not allowed for current user")

// persisted is the slice of the session that survives restarts.
type persisted struct {
	UserID string      `yaml:"userId"`
	TeamID string      `yaml:"teamId"`
	Role   domain.Role `yaml:"role"`
}

// Session is safe for concurrent use.
type Session struct {
	path   string
	logger *log.Logger

	mu            sync.RWMutex
	state         persisted
	effectiveRole domain.Role
	activeTaskID  string
	lastError     error
}

// Load reads the session stored at path. A missing file yields an empty session.
func Load(path string, logger *log.Logger) (*Session, error) {
	s := &Session{path: path, logger: logger}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &s.state); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", path, err)
	}
	if s.state.Role != "" && !s.state.Role.Valid() {
		return nil, fmt.Errorf("parse session %s: invalid role %q", path, s.state.Role)
	}
	s.effectiveRole = s.state.Role
	return s, nil
}

func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.UserID
}

func (s *Session) TeamID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.TeamID
}

func (s *Session) Role() domain.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Role
}

// EffectiveRole is the role the board currently views as.
func (s *Session) EffectiveRole() domain.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.effectiveRole
}

func (s *Session) ActiveTaskID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeTaskID
}

func (s *Session) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// SignIn replaces the identity and resets view state.
func (s *Session) SignIn(userID, teamID string, role domain.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrRoleNotAllowed, role)
	}
	s.mu.Lock()
	s.state = persisted{UserID: userID, TeamID: teamID, Role: role}
	s.effectiveRole = role
	s.activeTaskID = ""
	s.lastError = nil
	s.mu.Unlock()
	return s.save()
}

// SwitchTeam opens another team.
func (s *Session) SwitchTeam(teamID string) error {
	s.mu.Lock()
	s.state.TeamID = teamID
	s.activeTaskID = ""
	s.mu.Unlock()
	return s.save()
}

// SetEffectiveRole changes the view-as role. It may only lower the signed-in role.
func (s *Session) SetEffectiveRole(role domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Role.CanViewAs(role) {
		return fmt.Errorf("%w: %s cannot view as %q", ErrRoleNotAllowed, s.state.Role, role)
	}
	s.effectiveRole = role
	return nil
}

func (s *Session) SetActiveTask(id string) {
	s.mu.Lock()
	s.activeTaskID = id
	s.mu.Unlock()
}

// SetLastError records the most recent failure shown to the user. Nil clears it.
func (s *Session) SetLastError(err error) {
	s.mu.Lock()
	s.lastError = err
	s.mu.Unlock()
}

func (s *Session) save() error {
	if s.path == "" {
		return nil
	}
	s.mu.RLock()
	data, err := yaml.Marshal(s.state)
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.WithField("path", s.path).Debug("session saved")
	}
	return nil
}
