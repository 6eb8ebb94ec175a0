// Package client is the request helper used by the board to talk to the task API.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/domain"
)

const (
	headerNextPageToken  = "X-Next-Page-Token"
	headerIdempotencyKey = "Idempotency-Key"
	maxErrorBody         = 4 * 1024
)

// StatusError is returned for every non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, e.Body)
}

// Client wraps http.Client with helpers for the task API.
type Client struct {
	BaseURL string
	Bearer  string
	HTTP    *http.Client
}

// New creates a new Client.
func New(baseURL, bearer string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Bearer:  bearer,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// ListTasks fetches every page of tasks visible to the caller for teamID.
func (c *Client) ListTasks(ctx context.Context, teamID string, effectiveRole domain.Role) ([]domain.Task, error) {
	q := url.Values{}
	if teamID != "" {
		q.Set("teamId", teamID)
	}
	if effectiveRole != "" {
		q.Set("effectiveRole", string(effectiveRole))
	}

	all := []domain.Task{}
	for {
		var page []domain.Task
		resp, err := c.do(ctx, http.MethodGet, "/api/tasks", q, nil, nil, &page)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		next := resp.Header.Get(headerNextPageToken)
		if next == "" {
			return all, nil
		}
		q.Set("pageToken", next)
	}
}

// GetTask fetches a single task.
func (c *Client) GetTask(ctx context.Context, teamID, id string) (domain.Task, error) {
	q := url.Values{}
	if teamID != "" {
		q.Set("teamId", teamID)
	}
	var task domain.Task
	_, err := c.do(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(id), q, nil, nil, &task)
	return task, err
}

// CreateTask creates a task in teamID.
func (c *Client) CreateTask(ctx context.Context, teamID string, in domain.NewTask) (domain.Task, error) {
	q := url.Values{"teamId": []string{teamID}}
	var task domain.Task
	_, err := c.do(ctx, http.MethodPost, "/api/tasks", q, nil, in, &task)
	return task, err
}

// UpdateTask sends a partial update. Each call carries a fresh idempotency key.
func (c *Client) UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	return c.UpdateTaskWithKey(ctx, id, uuid.NewString(), patch)
}

// UpdateTaskWithKey sends a partial update under a caller-chosen idempotency key,
// so a resend of the same logical change is recognised by the server.
func (c *Client) UpdateTaskWithKey(ctx context.Context, id, key string, patch domain.TaskPatch) (domain.Task, error) {
	h := http.Header{}
	if key != "" {
		h.Set(headerIdempotencyKey, key)
	}
	var task domain.Task
	_, err := c.do(ctx, http.MethodPatch, "/api/tasks/"+url.PathEscape(id), nil, h, patch, &task)
	return task, err
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, nil, nil, nil)
	return err
}

// ListUsers fetches the user directory.
func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	_, err := c.do(ctx, http.MethodGet, "/api/users", nil, nil, nil, &users)
	return users, err
}

func (c *Client) newRequest(ctx context.Context, method, path string, q url.Values, body io.Reader) (*http.Request, error) {
	target := c.BaseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if c.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.Bearer)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, h http.Header, in, out any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		data, err := sonic.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, q, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range h {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp, &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := sonic.ConfigStd.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp, nil
}
