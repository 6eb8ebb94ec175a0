package board

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/domain"
)

var followRetryDelay = 2 * time.Second

// ChangeSource streams remote task changes for a team until ctx is done.
type ChangeSource interface {
	Watch(ctx context.Context, teamID string, fn func(domain.TaskChange)) error
}

// Follow republishes every remote change of teamID as TopicTasks on bus.
// It reconnects after stream errors and returns when ctx is done.
func Follow(ctx context.Context, src ChangeSource, bus Bus, teamID string, logger *log.Logger) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	for {
		err := src.Watch(ctx, teamID, func(ch domain.TaskChange) {
			if teamID != "" && ch.TeamID != teamID {
				return
			}
			logger.WithFields(log.Fields{"task": ch.TaskID, "type": ch.Type}).Debug("remote change")
			bus.Publish(TopicTasks)
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.WithError(err).Warn("change stream failed, reconnecting")
		}
		// A reconnect may have missed changes.
		bus.Publish(TopicTasks)
		select {
		case <-ctx.Done():
			return
		case <-time.After(followRetryDelay):
		}
	}
}
