package api

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/domain"
)

// SignLocalToken issues an HS256 token accepted by NewLocalAuth(secret).
func SignLocalToken(secret []byte, userID string, role domain.Role, teams []string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("empty secret")
	}
	if userID == "" {
		return "", errors.New("missing user id")
	}
	if !role.Valid() {
		return "", errInvalidRoleClaim
	}
	now := time.Now()
	ts := make([]any, 0, len(teams))
	for _, team := range teams {
		ts = append(ts, team)
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      userID,
		claimRole:  string(role),
		claimTeams: ts,
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	}).SignedString(secret)
}
