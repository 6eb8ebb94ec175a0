package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Role is the permission level of a user within the portal.
type Role string

const (
	RoleMember  Role = "member"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

func (r Role) rank() int {
	switch r {
	case RoleMember:
		return 1
	case RoleManager:
		return 2
	case RoleAdmin:
		return 3
	}
	return 0
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r.rank() > 0 }

// SeesWholeTeam reports whether the role lists every task of a team rather
// than only the viewer's own assignments.
func (r Role) SeesWholeTeam() bool { return r.rank() >= RoleManager.rank() }

// CanViewAs reports whether a user holding r may act with the effective role other.
// Only downgrades are allowed.
func (r Role) CanViewAs(other Role) bool {
	return other.Valid() && other.rank() <= r.rank()
}

// User is an entry of the portal's user directory.
type User struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Email     string `json:"email" yaml:"email"`
	AvatarURL string `json:"avatarUrl,omitempty" yaml:"avatarUrl,omitempty"`
	Role      Role   `json:"role" yaml:"role"`
}

// Initials returns up to two upper-case initials for avatar placeholders.
func (u User) Initials() string {
	fields := strings.Fields(u.Name)
	if len(fields) == 0 {
		if u.Email != "" {
			return initial(u.Email)
		}
		return "?"
	}
	out := initial(fields[0])
	if len(fields) > 1 {
		out += initial(fields[len(fields)-1])
	}
	return out
}

func initial(s string) string {
	r, _ := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r))
}

// Directory resolves user ids to users.
type Directory map[string]User

// NewDirectory indexes users by id.
func NewDirectory(users []User) Directory {
	d := make(Directory, len(users))
	for _, u := range users {
		d[u.ID] = u
	}
	return d
}

// Name returns the display name of id, or id itself when unknown.
func (d Directory) Name(id string) string {
	if u, ok := d[id]; ok && u.Name != "" {
		return u.Name
	}
	return id
}
