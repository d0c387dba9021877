package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func getTestDatabaseURL(t *testing.T) string {
	t.Helper()
	if url := os.Getenv("TEST_DATABASE_URL"); url != "" {
		return url
	}
	t.Skip("TEST_DATABASE_URL not set; skipping postgres integration test")
	return ""
}

func setupTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	ctx := context.Background()

	db, err := Open(ctx, getTestDatabaseURL(t))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := ApplyMigrations(ctx, db, filepath.Join("..", "..", "db", "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewPostgresStore(db)
}

func seedUser(t *testing.T, s *PostgresStore, name string) User {
	t.Helper()
	user := User{
		ID:          fmt.Sprintf("usr_test_%s_%d", name, time.Now().UnixNano()),
		DisplayName: name,
		Email:       fmt.Sprintf("%s.%d@test.local", name, time.Now().UnixNano()),
		Role:        "member",
	}
	if err := s.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func TestCommentLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	s := setupTestStore(t)
	ctx := context.Background()
	user := seedUser(t, s, "dana")

	task, err := s.InsertTask(ctx, "Ship sprint review", user.ID)
	if err != nil {
		t.Fatalf("insert task: %v", err)
	}

	top, err := s.InsertComment(ctx, task.ID, 0, "first", user.ID)
	if err != nil {
		t.Fatalf("insert comment: %v", err)
	}
	if top.ID == 0 || top.ParentID != 0 || top.Status != "active" {
		t.Fatalf("unexpected inserted comment: %+v", top)
	}

	reply, err := s.InsertComment(ctx, task.ID, top.ID, "reply", user.ID)
	if err != nil {
		t.Fatalf("insert reply: %v", err)
	}
	if reply.ParentID != top.ID {
		t.Errorf("reply parent = %d, want %d", reply.ParentID, top.ID)
	}

	edited, err := s.UpdateCommentContent(ctx, task.ID, top.ID, "first, edited", user.ID)
	if err != nil {
		t.Fatalf("update comment: %v", err)
	}
	if edited.Status != "edited" || edited.Content != "first, edited" || edited.EditedAt == nil {
		t.Errorf("unexpected edited comment: %+v", edited)
	}

	revisions, err := s.ListCommentRevisions(ctx, top.ID)
	if err != nil {
		t.Fatalf("list revisions: %v", err)
	}
	if len(revisions) != 1 || revisions[0].Content != "first" {
		t.Errorf("revisions = %+v, want the superseded content", revisions)
	}

	deleted, err := s.TombstoneComment(ctx, task.ID, reply.ID)
	if err != nil || !deleted {
		t.Fatalf("tombstone: %v %v", deleted, err)
	}
	// Tombstoning twice is a no-op, and the row survives.
	again, err := s.TombstoneComment(ctx, task.ID, reply.ID)
	if err != nil || again {
		t.Errorf("second tombstone should be a no-op, got %v %v", again, err)
	}
	row, err := s.GetComment(ctx, task.ID, reply.ID)
	if err != nil || row.Status != "deleted" {
		t.Errorf("tombstoned row = %+v, %v", row, err)
	}

	comments, err := s.ListComments(ctx, task.ID)
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if len(comments) != 2 {
		t.Errorf("listed %d comments, want 2 (tombstones included)", len(comments))
	}
}

func TestReactionPairUniqueness(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	s := setupTestStore(t)
	ctx := context.Background()
	user := seedUser(t, s, "alice")

	task, err := s.InsertTask(ctx, "Reactions", user.ID)
	if err != nil {
		t.Fatalf("insert task: %v", err)
	}
	comment, err := s.InsertComment(ctx, task.ID, 0, "react to me", user.ID)
	if err != nil {
		t.Fatalf("insert comment: %v", err)
	}

	added, err := s.AddReaction(ctx, comment.ID, "👍", user.ID)
	if err != nil || !added {
		t.Fatalf("first add = %v, %v", added, err)
	}
	added, err = s.AddReaction(ctx, comment.ID, "👍", user.ID)
	if err != nil {
		t.Fatalf("duplicate add errored: %v", err)
	}
	if added {
		t.Error("duplicate (emoji, user) pair should not insert")
	}

	reactions, err := s.ListCommentReactions(ctx, comment.ID)
	if err != nil {
		t.Fatalf("list reactions: %v", err)
	}
	if len(reactions) != 1 {
		t.Errorf("reactions = %+v, want one", reactions)
	}

	removed, err := s.RemoveReaction(ctx, comment.ID, "👍", user.ID)
	if err != nil || !removed {
		t.Fatalf("remove = %v, %v", removed, err)
	}
	removed, err = s.RemoveReaction(ctx, comment.ID, "👍", user.ID)
	if err != nil || removed {
		t.Errorf("removing an absent pair should be a no-op, got %v %v", removed, err)
	}
}
