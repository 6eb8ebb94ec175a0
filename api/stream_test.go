package api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/domain"
	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/storage"
	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/stream"
)

func newStreamServer(t *testing.T) (*httptest.Server, *stream.Broker) {
	t.Helper()
	mem := storage.NewMemory()
	task := domain.Task{ID: "t1", TeamID: "team-1", Title: "Draft", Status: domain.StatusTodo, Priority: domain.PriorityLow, AssignedTo: "mgr", CreatedAt: fixedNow, UpdatedAt: fixedNow}
	if err := mem.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("create task: %v", err)
	}
	logger, _ := test.NewNullLogger()
	broker := stream.NewBroker()
	e := echo.New()
	shutdown := Register(e, Deps{
		Store:  mem,
		Auth:   NewLocalAuth(testSecret),
		Sinks:  []ChangeSink{broker},
		Broker: broker,
	}, logger)
	srv := httptest.NewServer(e)
	t.Cleanup(func() {
		srv.Close()
		shutdown()
	})
	return srv, broker
}

// openStream connects and consumes the initial comment frame.
func openStream(t *testing.T, srv *httptest.Server, query string) (*bufio.Reader, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/stream?"+query, nil)
	if err != nil {
		cancel()
		t.Fatalf("new request: %v", err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		cancel()
		t.Fatalf("connect: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		cancel()
		resp.Body.Close()
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	r := bufio.NewReader(resp.Body)
	line, err := r.ReadString('\n')
	if err != nil || line != ": connected\n" {
		t.Fatalf("unexpected first frame %q: %v", line, err)
	}
	return r, func() {
		cancel()
		resp.Body.Close()
	}
}

func readChange(t *testing.T, r *bufio.Reader) domain.TaskChange {
	t.Helper()
	type result struct {
		ch  domain.TaskChange
		err error
	}
	out := make(chan result, 1)
	go func() {
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				out <- result{err: err}
				return
			}
			data, ok := strings.CutPrefix(strings.TrimSpace(line), "data: ")
			if !ok {
				continue
			}
			var ch domain.TaskChange
			out <- result{ch: ch, err: sonic.UnmarshalString(data, &ch)}
			return
		}
	}()
	select {
	case res := <-out:
		if res.err != nil {
			t.Fatalf("read change: %v", res.err)
		}
		return res.ch
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
	}
	return domain.TaskChange{}
}

func TestStreamDeliversTeamChanges(t *testing.T) {
	srv, broker := newStreamServer(t)
	token := strings.TrimPrefix(bearer(t, "mgr", domain.RoleManager, "team-1", "team-2"), bearerPrefix)
	r, closeStream := openStream(t, srv, "teamId=team-1&token="+url.QueryEscape(token))
	defer closeStream()

	deadline := time.Now().Add(time.Second)
	for broker.Subscribers("team-1") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber not registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	broker.Notify(domain.TaskChange{TeamID: "team-2", TaskID: "other", Type: domain.TaskCreated})
	broker.Notify(domain.TaskChange{TeamID: "team-1", TaskID: "t9", Type: domain.TaskCreated, Status: domain.StatusTodo, Time: 7})

	ch := readChange(t, r)
	if ch.TaskID != "t9" || ch.TeamID != "team-1" || ch.Time != 7 {
		t.Fatalf("unexpected change: %+v", ch)
	}
}

func TestStreamCarriesPatchedTask(t *testing.T) {
	srv, broker := newStreamServer(t)
	auth := bearer(t, "mgr", domain.RoleManager, "team-1")
	token := strings.TrimPrefix(auth, bearerPrefix)
	r, closeStream := openStream(t, srv, "token="+url.QueryEscape(token))
	defer closeStream()
	for broker.Subscribers("team-1") == 0 {
		time.Sleep(5 * time.Millisecond)
	}

	req, err := http.NewRequest(http.MethodPatch, srv.URL+"/api/tasks/t1", strings.NewReader(`{"status":"review"}`))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set(echo.HeaderAuthorization, auth)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status %d", resp.StatusCode)
	}

	ch := readChange(t, r)
	if ch.TaskID != "t1" || ch.Type != domain.TaskUpdated || ch.Status != domain.StatusReview {
		t.Fatalf("unexpected change: %+v", ch)
	}
}

func TestStreamRejectsUnauthenticated(t *testing.T) {
	srv, _ := newStreamServer(t)
	resp, err := srv.Client().Get(srv.URL + "/api/stream?teamId=team-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	token := strings.TrimPrefix(bearer(t, "mem", domain.RoleMember, "team-1"), bearerPrefix)
	resp, err = srv.Client().Get(srv.URL + "/api/stream?teamId=team-2&token=" + url.QueryEscape(token))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}
