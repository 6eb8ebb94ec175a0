package api

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/domain"
)

type recordingSink struct {
	mu      sync.Mutex
	changes []domain.TaskChange
	err     error
	block   chan struct{}
}

func (s *recordingSink) Publish(ctx context.Context, ch domain.TaskChange) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes = append(s.changes, ch)
	return s.err
}

func (s *recordingSink) Changes() []domain.TaskChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.TaskChange(nil), s.changes...)
}

func TestChangeSenderDeliversToEverySink(t *testing.T) {
	logger, _ := test.NewNullLogger()
	a, b := &recordingSink{}, &recordingSink{}
	s := newChangeSender([]ChangeSink{a, b}, SenderConfig{Workers: 2, Buffer: 4}, logger)
	for i := 0; i < 3; i++ {
		s.Send(domain.TaskChange{TeamID: "team-1", TaskID: "t1", Time: int64(i)})
	}
	s.Close()
	if len(a.Changes()) != 3 || len(b.Changes()) != 3 {
		t.Fatalf("expected 3 changes per sink, got %d and %d", len(a.Changes()), len(b.Changes()))
	}
}

func TestChangeSenderLogsSinkFailure(t *testing.T) {
	logger, hook := test.NewNullLogger()
	failing := &recordingSink{err: errors.New("queue down")}
	ok := &recordingSink{}
	s := newChangeSender([]ChangeSink{failing, ok}, SenderConfig{Workers: 1, Buffer: 1}, logger)
	s.Send(domain.TaskChange{TeamID: "team-1", TaskID: "t1"})
	s.Close()
	if len(ok.Changes()) != 1 {
		t.Fatalf("a failing sink must not stop the others")
	}
	var found bool
	for _, e := range hook.AllEntries() {
		if e.Level == log.ErrorLevel && e.Message == "publish task change failed" && e.Data["task"] == "t1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected error log entry")
	}
}

func TestChangeSenderPublishesInlineWhenSaturated(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sink := &recordingSink{block: make(chan struct{})}
	s := newChangeSender([]ChangeSink{sink}, SenderConfig{Workers: 1, Buffer: 1, HandoffTimeout: 10 * time.Millisecond}, logger)

	s.Send(domain.TaskChange{TaskID: "held"})   // picked up by the worker, blocks
	time.Sleep(20 * time.Millisecond)           // let the worker take it
	s.Send(domain.TaskChange{TaskID: "queued"}) // fills the buffer

	done := make(chan struct{})
	go func() {
		s.Send(domain.TaskChange{TaskID: "inline"})
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	close(sink.block)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("inline send did not finish")
	}
	s.Close()

	if got := len(sink.Changes()); got != 3 {
		t.Fatalf("expected 3 changes, got %d", got)
	}
	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == log.WarnLevel {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("expected saturation warning")
	}
}

func TestChangeSenderAfterCloseDeliversInline(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sink := &recordingSink{}
	s := newChangeSender([]ChangeSink{sink}, SenderConfig{}, logger)
	s.Close()
	s.Close()
	s.Send(domain.TaskChange{TaskID: "late"})
	if got := sink.Changes(); len(got) != 1 || got[0].TaskID != "late" {
		t.Fatalf("unexpected changes: %+v", got)
	}
}

func TestNextTimestampIncreases(t *testing.T) {
	prev := nextTimestamp()
	for i := 0; i < 1000; i++ {
		next := nextTimestamp()
		if next <= prev {
			t.Fatalf("timestamp did not increase: %d <= %d", next, prev)
		}
		prev = next
	}
}
