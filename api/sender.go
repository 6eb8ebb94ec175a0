package api

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/domain"
)

// SenderConfig sizes the change sender.
type SenderConfig struct {
	Workers        int
	Buffer         int
	PublishTimeout time.Duration
	HandoffTimeout time.Duration
}

func (c SenderConfig) withDefaults() SenderConfig {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Buffer <= 0 {
		c.Buffer = 1024
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 10 * time.Second
	}
	if c.HandoffTimeout < 0 {
		c.HandoffTimeout = 0
	}
	return c
}

// changeSender delivers task changes to every sink off the request path.
// When the buffer is saturated the change is delivered inline.
type changeSender struct {
	sinks  []ChangeSink
	logger *log.Logger
	cfg    SenderConfig

	mu     sync.RWMutex
	jobs   chan domain.TaskChange
	closed bool
	wg     sync.WaitGroup
}

func newChangeSender(sinks []ChangeSink, cfg SenderConfig, logger *log.Logger) *changeSender {
	if logger == nil {
		panic("Logger is not initialized")
	}
	cfg = cfg.withDefaults()
	s := &changeSender{sinks: sinks, logger: logger, cfg: cfg, jobs: make(chan domain.TaskChange, cfg.Buffer)}
	for i := 0; i < cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	logger.Infof("change sender started, workers: %d, buffer: %d, timeout: %v, handoff: %v", cfg.Workers, cfg.Buffer, cfg.PublishTimeout, cfg.HandoffTimeout)
	return s
}

func (s *changeSender) worker(id int) {
	defer s.wg.Done()
	for ch := range s.jobs {
		s.deliver(ch, id)
	}
}

func (s *changeSender) deliver(ch domain.TaskChange, worker int) {
	for _, sink := range s.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PublishTimeout)
		err := sink.Publish(ctx, ch)
		cancel()
		if err != nil {
			s.logger.WithError(err).WithFields(log.Fields{
				"team":   ch.TeamID,
				"task":   ch.TaskID,
				"type":   ch.Type,
				"worker": worker,
			}).Error("publish task change failed")
		}
	}
}

// Send hands ch to a worker, waiting at most the handoff timeout for room.
func (s *changeSender) Send(ch domain.TaskChange) {
	if len(s.sinks) == 0 {
		return
	}
	if s.tryEnqueue(ch) {
		return
	}
	s.logger.Warn("change buffer saturated; publishing inline")
	s.deliver(ch, -1)
}

func (s *changeSender) tryEnqueue(ch domain.TaskChange) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.jobs <- ch:
		return true
	default:
	}
	if s.cfg.HandoffTimeout <= 0 {
		return false
	}
	timer := time.NewTimer(s.cfg.HandoffTimeout)
	defer timer.Stop()
	select {
	case s.jobs <- ch:
		return true
	case <-timer.C:
		return false
	}
}

// Close stops accepting changes and waits for queued ones to be delivered.
func (s *changeSender) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.jobs)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
