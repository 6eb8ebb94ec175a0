package client

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/domain"
)

// Watch reads the change stream of teamID and calls fn for every change
// until ctx is done or the server closes the stream.
func (c *Client) Watch(ctx context.Context, teamID string, fn func(domain.TaskChange)) error {
	q := url.Values{}
	if teamID != "" {
		q.Set("teamId", teamID)
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/api/stream", q, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	// The stream outlives the request timeout of the regular client.
	hc := &http.Client{Transport: c.HTTP.Transport}
	resp, err := hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: http.MethodGet, Path: "/api/stream", Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		var ch domain.TaskChange
		if err := sonic.UnmarshalString(strings.TrimSpace(data), &ch); err != nil {
			continue
		}
		fn(ch)
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
