package board

import "sync"

// Topic names a family of cached data that can be invalidated.
type Topic string

// TopicTasks is published whenever the task collection changed remotely.
const TopicTasks Topic = "tasks"

// Bus carries invalidation events from writers to every view holding a cached copy.
type Bus interface {
	Publish(topic Topic)
	Subscribe(topic Topic, fn func()) (unsubscribe func())
}

// LocalBus is an in-process Bus. Handlers run synchronously on the publisher's goroutine.
type LocalBus struct {
	mu   sync.Mutex
	next int
	subs map[Topic]map[int]func()
}

// NewLocalBus creates an empty bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[Topic]map[int]func())}
}

// Publish invokes every handler subscribed to topic.
func (b *LocalBus) Publish(topic Topic) {
	b.mu.Lock()
	handlers := make([]func(), 0, len(b.subs[topic]))
	for _, fn := range b.subs[topic] {
		handlers = append(handlers, fn)
	}
	b.mu.Unlock()

	for _, fn := range handlers {
		fn()
	}
}

// Subscribe registers fn for topic. The returned function removes it and is safe to call twice.
func (b *LocalBus) Subscribe(topic Topic, fn func()) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]func())
	}
	b.subs[topic][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[topic], id)
			b.mu.Unlock()
		})
	}
}
