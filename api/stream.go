package api

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/stream"
)

var keepAliveInterval = 25 * time.Second

// streamChanges serves the task changes of one team as server-sent events.
func streamChanges(auth Authenticator, broker *stream.Broker, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, err := auth.PrincipalFromAuthHeader(authHeader(c))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		teamID, rerr := resolveTeam(c, p)
		if teamID == "" {
			return rerr
		}
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}

		changes, unsubscribe := broker.Subscribe(teamID)
		defer unsubscribe()

		res := c.Response()
		res.Header().Set(echo.HeaderContentType, "text/event-stream")
		res.Header().Set(echo.HeaderCacheControl, "no-cache")
		res.Header().Set(echo.HeaderConnection, "keep-alive")
		res.Header().Set("X-Accel-Buffering", "no")
		res.WriteHeader(http.StatusOK)
		if _, err := res.Write([]byte(": connected\n\n")); err != nil {
			return nil
		}
		flusher.Flush()

		entry := logger.WithFields(log.Fields{"team": teamID, "user": p.UserID})
		entry.Debug("stream opened")
		defer entry.Debug("stream closed")

		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()
		ctx := c.Request().Context()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if _, err := res.Write([]byte(": keepalive\n\n")); err != nil {
					return nil
				}
			case ch := <-changes:
				data, err := sonic.Marshal(ch)
				if err != nil {
					entry.WithError(err).Error("marshal task change")
					continue
				}
				if _, err := res.Write([]byte("data: ")); err != nil {
					return nil
				}
				if _, err := res.Write(data); err != nil {
					return nil
				}
				if _, err := res.Write([]byte("\n\n")); err != nil {
					return nil
				}
			}
			flusher.Flush()
		}
	}
}
