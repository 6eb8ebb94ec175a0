package session

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/domain"
)

func TestReloadRestoresOnlyPersistedSlice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.yaml")
	logger, _ := test.NewNullLogger()

	s, err := Load(path, logger)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if s.UserID() != "" || s.EffectiveRole() != "" {
		t.Fatalf("expected empty session")
	}
	if err := s.SignIn("u1", "team-1", domain.RoleAdmin); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if err := s.SetEffectiveRole(domain.RoleMember); err != nil {
		t.Fatalf("view as: %v", err)
	}
	s.SetActiveTask("t1")
	s.SetLastError(errors.New("boom"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	for _, leaked := range []string{"t1", "boom", "member"} {
		if strings.Contains(string(data), leaked) {
			t.Fatalf("in-memory state %q persisted: %s", leaked, data)
		}
	}

	reloaded, err := Load(path, logger)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.UserID() != "u1" || reloaded.TeamID() != "team-1" || reloaded.Role() != domain.RoleAdmin {
		t.Fatalf("identity not restored: %s %s %s", reloaded.UserID(), reloaded.TeamID(), reloaded.Role())
	}
	if reloaded.EffectiveRole() != domain.RoleAdmin {
		t.Fatalf("effective role should reset to role, got %s", reloaded.EffectiveRole())
	}
	if reloaded.ActiveTaskID() != "" || reloaded.LastError() != nil {
		t.Fatalf("interaction state should not survive reload")
	}
}

func TestSetEffectiveRoleOnlyLowers(t *testing.T) {
	s, _ := Load("", nil)
	if err := s.SignIn("u2", "team-1", domain.RoleMember); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if err := s.SetEffectiveRole(domain.RoleAdmin); !errors.Is(err, ErrRoleNotAllowed) {
		t.Fatalf("expected ErrRoleNotAllowed, got %v", err)
	}
	if s.EffectiveRole() != domain.RoleMember {
		t.Fatalf("effective role changed on rejection: %s", s.EffectiveRole())
	}
	if err := s.SetEffectiveRole("owner"); !errors.Is(err, ErrRoleNotAllowed) {
		t.Fatalf("expected rejection of unknown role, got %v", err)
	}
}

func TestSwitchTeamClearsActiveTask(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	s, _ := Load(path, nil)
	_ = s.SignIn("u1", "team-1", domain.RoleManager)
	s.SetActiveTask("t1")
	if err := s.SwitchTeam("team-2"); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if s.ActiveTaskID() != "" {
		t.Fatalf("expected active task cleared")
	}
	reloaded, _ := Load(path, nil)
	if reloaded.TeamID() != "team-2" {
		t.Fatalf("team not persisted: %s", reloaded.TeamID())
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	if err := os.WriteFile(path, []byte("userId: u1\nrole: owner\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path, nil); err == nil {
		t.Fatalf("expected invalid role error")
	}
	if err := writeFile(path, "userId: [\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path, nil); err == nil {
		t.Fatalf("expected parse error")
	}
	if err := writeFile(path, "userId: u1\nrole: manager\nextra: ignored\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path, nil); err != nil {
		t.Fatalf("unexpected error for unknown key: %v", err)
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}

func TestSignInRejectsUnknownRole(t *testing.T) {
	sess, _ := Load("", nil)
	if err := sess.SignIn("u1", "team-1", "owner"); !errors.Is(err, ErrRoleNotAllowed) {
		t.Fatalf("expected ErrRoleNotAllowed, got %v", err)
	}
}
