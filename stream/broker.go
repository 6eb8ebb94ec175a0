// Package stream fans task changes out to connected clients. Changes travel
// between instances over a Redis channel and reach subscribers through an
// in-process broker keyed by team.
package stream

import (
	"context"
	"sync"

	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/domain"
)

const subscriberBuffer = 16

// Broker delivers changes to subscribers of a team. A subscriber that does
// not keep up loses changes rather than blocking the publisher.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan domain.TaskChange]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[chan domain.TaskChange]struct{})}
}

// Subscribe registers a subscriber for teamID. The returned func removes it.
func (b *Broker) Subscribe(teamID string) (<-chan domain.TaskChange, func()) {
	ch := make(chan domain.TaskChange, subscriberBuffer)
	b.mu.Lock()
	if b.subs[teamID] == nil {
		b.subs[teamID] = make(map[chan domain.TaskChange]struct{})
	}
	b.subs[teamID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[teamID], ch)
			if len(b.subs[teamID]) == 0 {
				delete(b.subs, teamID)
			}
			b.mu.Unlock()
		})
	}
}

// Notify hands ch to every subscriber of its team.
func (b *Broker) Notify(ch domain.TaskChange) {
	b.mu.Lock()
	for sub := range b.subs[ch.TeamID] {
		select {
		case sub <- ch:
		default:
		}
	}
	b.mu.Unlock()
}

// Subscribers returns the number of subscribers of teamID.
func (b *Broker) Subscribers(teamID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[teamID])
}

// Publish lets the broker act as a change sink when no Redis channel
// connects instances.
func (b *Broker) Publish(_ context.Context, ch domain.TaskChange) error {
	b.Notify(ch)
	return nil
}
