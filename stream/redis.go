package stream

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/domain"
)

// Publisher sends task changes to a Redis channel.
type Publisher struct {
	rc      *redis.Client
	channel string
}

func NewPublisher(rc *redis.Client, channel string) *Publisher {
	return &Publisher{rc: rc, channel: channel}
}

func (p *Publisher) Publish(ctx context.Context, ch domain.TaskChange) error {
	data, err := sonic.Marshal(ch)
	if err != nil {
		return err
	}
	return p.rc.Publish(ctx, p.channel, data).Err()
}

// SubscribeUpdates listens on channel and passes every change to handle until
// ctx is done. A closed subscription is reopened after reconnectDelay.
func SubscribeUpdates(ctx context.Context, logger *log.Logger, rc *redis.Client, channel string, handle func(domain.TaskChange)) {
	for {
		sub := rc.Subscribe(ctx, channel)
		consume(ctx, logger, sub.Channel(), handle)
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		logger.WithField("channel", channel).Error("pubsub channel closed, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

var reconnectDelay = time.Second

func consume(ctx context.Context, logger *log.Logger, msgs <-chan *redis.Message, handle func(domain.TaskChange)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var ch domain.TaskChange
			if err := sonic.UnmarshalString(msg.Payload, &ch); err != nil {
				logger.WithError(err).Error("unable to parse task change")
				continue
			}
			if ch.TeamID == "" {
				logger.WithField("payload", msg.Payload).Warn("task change without team")
				continue
			}
			handle(ch)
		}
	}
}
