// Package live binds the discussion engine to a running task service: a JSON
// REST client for the mutation operations, a reference-counted websocket feed
// per task, and a session that funnels both delivery channels into a single
// reconciling goroutine.
package live

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"taskdeck/api/internal/discussion"
)

// APIError carries the service's error envelope for a failed request.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// Client talks to the task service's REST surface on behalf of one user.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// ListComments fetches the full comment tree for a task.
func (c *Client) ListComments(ctx context.Context, taskID int64) ([]discussion.Comment, error) {
	var out struct {
		Comments []discussion.Comment `json:"comments"`
	}
	path := fmt.Sprintf("/api/tasks/%d/comments", taskID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Comments, nil
}

// CreateComment posts a new comment. parentID zero means top-level. The
// returned comment carries the server-assigned id and is the authoritative
// shape to feed into the store.
func (c *Client) CreateComment(ctx context.Context, taskID int64, content string, parentID int64) (discussion.Comment, error) {
	body := map[string]any{"content": content}
	if parentID != 0 {
		body["parentId"] = parentID
	}
	var out discussion.Comment
	path := fmt.Sprintf("/api/tasks/%d/comments", taskID)
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return discussion.Comment{}, err
	}
	return out, nil
}

// UpdateComment replaces a comment's content.
func (c *Client) UpdateComment(ctx context.Context, taskID, commentID int64, content string) (discussion.Comment, error) {
	var out discussion.Comment
	path := fmt.Sprintf("/api/tasks/%d/comments/%d", taskID, commentID)
	if err := c.do(ctx, http.MethodPatch, path, map[string]any{"content": content}, &out); err != nil {
		return discussion.Comment{}, err
	}
	return out, nil
}

// DeleteComment tombstones a comment.
func (c *Client) DeleteComment(ctx context.Context, taskID, commentID int64) error {
	path := fmt.Sprintf("/api/tasks/%d/comments/%d", taskID, commentID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// AddReaction adds the viewer's reaction; idempotent on the server.
func (c *Client) AddReaction(ctx context.Context, taskID, commentID int64, emoji string) (discussion.Reaction, error) {
	var out discussion.Reaction
	path := fmt.Sprintf("/api/tasks/%d/comments/%d/reactions", taskID, commentID)
	if err := c.do(ctx, http.MethodPut, path, map[string]any{"emoji": emoji}, &out); err != nil {
		return discussion.Reaction{}, err
	}
	return out, nil
}

// RemoveReaction removes the viewer's reaction; a no-op if absent.
func (c *Client) RemoveReaction(ctx context.Context, taskID, commentID int64, emoji string) error {
	path := fmt.Sprintf("/api/tasks/%d/comments/%d/reactions/%s", taskID, commentID, url.PathEscape(emoji))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope struct {
			Code    string `json:"code"`
			Message string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&envelope); decodeErr == nil {
			apiErr.Code = envelope.Code
			apiErr.Message = envelope.Message
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
