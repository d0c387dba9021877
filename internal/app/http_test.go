package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"taskdeck/api/internal/export"
	"taskdeck/api/internal/store"
)

type fakeExporter struct {
	exportFn func(ctx context.Context, req export.Request) (*export.Result, error)
}

func (f *fakeExporter) Export(ctx context.Context, req export.Request) (*export.Result, error) {
	if f.exportFn != nil {
		return f.exportFn(ctx, req)
	}
	return &export.Result{Data: []byte("<html></html>"), Filename: "t.html", MimeType: "text/html; charset=utf-8"}, nil
}

func issueToken(t *testing.T, svc *Service, userID, role string) string {
	t.Helper()
	session, err := svc.IssueSession(context.Background(), store.User{ID: userID, DisplayName: "User " + userID, Role: role})
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	return session.Token
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeHub{})
	handler := NewHTTPServer(svc, nil, "*").Handler()

	rr := doJSON(t, handler, http.MethodGet, "/api/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if response["ok"] != true {
		t.Errorf("ok = %v", response["ok"])
	}
}

func TestReadyEndpointReportsDatabaseFailure(t *testing.T) {
	fs := &fakeStore{
		pingFn: func(context.Context) error { return errors.New("connection refused") },
	}
	svc := newTestService(fs, &fakeHub{})
	handler := NewHTTPServer(svc, nil, "*").Handler()

	rr := doJSON(t, handler, http.MethodGet, "/api/ready", "", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestTaskRoutesRequireSession(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeHub{})
	handler := NewHTTPServer(svc, nil, "*").Handler()

	rr := doJSON(t, handler, http.MethodGet, "/api/tasks/7/comments", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}

	rr = doJSON(t, handler, http.MethodGet, "/api/tasks/7/comments", "not-a-token", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token status = %d, want 401", rr.Code)
	}
}

func TestEventFeedRejectsMissingToken(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeHub{})
	handler := NewHTTPServer(svc, nil, "*").Handler()

	rr := doJSON(t, handler, http.MethodGet, "/api/tasks/7/events", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestCommentLifecycleOverHTTP(t *testing.T) {
	comments := map[int64]store.Comment{}
	fs := &fakeStore{
		insertCommentFn: func(ctx context.Context, taskID, parentID int64, content, createdBy string) (store.Comment, error) {
			c := store.Comment{ID: 1, TaskID: taskID, ParentID: parentID, Content: content, Status: "active", CreatedBy: createdBy, AuthorName: "User " + createdBy}
			comments[c.ID] = c
			return c, nil
		},
		getCommentFn: func(ctx context.Context, taskID, commentID int64) (store.Comment, error) {
			c, ok := comments[commentID]
			if !ok {
				return store.Comment{}, store.ErrNotFound
			}
			return c, nil
		},
		updateCommentFn: func(ctx context.Context, taskID, commentID int64, content, editedBy string) (store.Comment, error) {
			c := comments[commentID]
			c.Content = content
			c.Status = "edited"
			comments[commentID] = c
			return c, nil
		},
		tombstoneCommentFn: func(ctx context.Context, taskID, commentID int64) (bool, error) {
			c := comments[commentID]
			c.Status = "deleted"
			comments[commentID] = c
			return true, nil
		},
	}
	fh := &fakeHub{}
	svc := newTestService(fs, fh)
	handler := NewHTTPServer(svc, nil, "*").Handler()
	token := issueToken(t, svc, "u1", "member")

	rr := doJSON(t, handler, http.MethodPost, "/api/tasks/7/comments", token, CreateCommentInput{Content: "hello"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, handler, http.MethodPatch, "/api/tasks/7/comments/1", token, UpdateCommentInput{Content: "hello again"})
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, handler, http.MethodDelete, "/api/tasks/7/comments/1", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d: %s", rr.Code, rr.Body.String())
	}

	if len(fh.events) != 3 {
		t.Errorf("published %d events, want 3", len(fh.events))
	}
}

func TestViewerCannotComment(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeHub{})
	handler := NewHTTPServer(svc, nil, "*").Handler()
	token := issueToken(t, svc, "u1", "viewer")

	rr := doJSON(t, handler, http.MethodPost, "/api/tasks/7/comments", token, CreateCommentInput{Content: "hello"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
}

func TestReactionRoutes(t *testing.T) {
	var removedEmoji string
	fs := &fakeStore{
		getCommentFn: func(ctx context.Context, taskID, commentID int64) (store.Comment, error) {
			return store.Comment{ID: commentID, TaskID: taskID, Status: "active"}, nil
		},
		removeReactionFn: func(ctx context.Context, commentID int64, emoji, userID string) (bool, error) {
			removedEmoji = emoji
			return true, nil
		},
	}
	svc := newTestService(fs, &fakeHub{})
	handler := NewHTTPServer(svc, nil, "*").Handler()
	token := issueToken(t, svc, "u1", "member")

	rr := doJSON(t, handler, http.MethodPut, "/api/tasks/7/comments/1/reactions", token, ReactionInput{Emoji: "👍"})
	if rr.Code != http.StatusOK {
		t.Fatalf("add status = %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, handler, http.MethodDelete, "/api/tasks/7/comments/1/reactions/%F0%9F%91%8D", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("remove status = %d: %s", rr.Code, rr.Body.String())
	}
	if removedEmoji != "👍" {
		t.Errorf("removed emoji = %q", removedEmoji)
	}
}

func TestExportEndpoint(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeHub{})
	svc.WithExporter(&fakeExporter{})
	handler := NewHTTPServer(svc, nil, "*").Handler()
	token := issueToken(t, svc, "u1", "viewer") // viewers may export

	rr := doJSON(t, handler, http.MethodGet, "/api/tasks/7/export?format=html", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "t.html") {
		t.Errorf("content disposition = %q", cd)
	}
}

func TestExportUnavailableWithoutExporter(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeHub{})
	handler := NewHTTPServer(svc, nil, "*").Handler()
	token := issueToken(t, svc, "u1", "member")

	rr := doJSON(t, handler, http.MethodGet, "/api/tasks/7/export", token, nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}

func TestSearchValidatesParams(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeHub{}).WithSearch(&fakeSearch{})
	handler := NewHTTPServer(svc, nil, "*").Handler()
	token := issueToken(t, svc, "u1", "member")

	rr := doJSON(t, handler, http.MethodGet, "/api/search?q=deploy&limit=banana", token, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}

	rr = doJSON(t, handler, http.MethodGet, "/api/search?q=deploy", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeHub{})
	handler := NewHTTPServer(svc, nil, "*").Handler()
	token := issueToken(t, svc, "u1", "member")

	rr := doJSON(t, handler, http.MethodGet, "/api/widgets", token, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}
