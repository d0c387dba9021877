package discussion

import (
	"testing"
	"time"
)

func at(sec int) time.Time {
	return time.Date(2026, 3, 1, 12, 0, sec, 0, time.UTC)
}

func topComment(id int64, sec int) Comment {
	return Comment{
		ID:        id,
		Content:   "comment",
		Author:    Author{ID: "u1", DisplayName: "Dana"},
		CreatedAt: at(sec),
		Status:    StatusActive,
	}
}

func replyComment(id, parentID int64, sec int) Comment {
	c := topComment(id, sec)
	c.ParentID = parentID
	return c
}

func TestUpsertThenFindByID(t *testing.T) {
	s := NewStore()
	c := topComment(1, 0)
	if !s.Upsert(c) {
		t.Fatal("upsert failed")
	}
	got, ok := s.FindByID(1)
	if !ok {
		t.Fatal("FindByID missed after upsert")
	}
	if got.ID != c.ID {
		t.Errorf("id = %d, want %d", got.ID, c.ID)
	}
}

func TestUpsertReplaceKeepsSingleNode(t *testing.T) {
	s := NewStore()
	s.Upsert(topComment(1, 0))
	updated := topComment(1, 0)
	updated.Content = "edited"
	updated.Status = StatusEdited
	s.Upsert(updated)

	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
	got, _ := s.FindByID(1)
	if got.Content != "edited" || got.Status != StatusEdited {
		t.Errorf("replace not applied: %+v", got)
	}
}

func TestUpsertPreservesRepliesOnPartialPayload(t *testing.T) {
	s := NewStore()
	parent := topComment(1, 0)
	parent.Replies = []Comment{replyComment(2, 1, 1)}
	s.Upsert(parent)

	// A reaction-only push payload carries no replies.
	partial := topComment(1, 0)
	partial.Reactions = []Reaction{{Emoji: "👍", UserID: "u2"}}
	s.Upsert(partial)

	if ids := s.ReplyIDs(1); len(ids) != 1 || ids[0] != 2 {
		t.Fatalf("reply ids = %v, want [2]", ids)
	}
	got, _ := s.FindByID(1)
	if len(got.Reactions) != 1 {
		t.Errorf("reactions = %v, want one entry", got.Reactions)
	}
}

func TestUpsertPreservesReactionsOnNilPayload(t *testing.T) {
	s := NewStore()
	c := topComment(1, 0)
	c.Reactions = []Reaction{{Emoji: "🎉", UserID: "u1"}}
	s.Upsert(c)

	update := topComment(1, 0)
	update.Content = "edited"
	s.Upsert(update)

	got, _ := s.FindByID(1)
	if len(got.Reactions) != 1 {
		t.Errorf("reactions erased by content-only update: %v", got.Reactions)
	}
}

func TestUpsertReplyWithUnknownParentDropped(t *testing.T) {
	s := NewStore()
	if s.Upsert(replyComment(5, 99, 0)) {
		t.Error("expected upsert of orphan reply to report false")
	}
	if _, ok := s.FindByID(5); ok {
		t.Error("orphan reply should not enter the store")
	}
}

func TestTombstoneRetainsNode(t *testing.T) {
	s := NewStore()
	s.Upsert(topComment(1, 0))
	if !s.Tombstone(1) {
		t.Fatal("tombstone failed")
	}
	got, ok := s.FindByID(1)
	if !ok {
		t.Fatal("tombstoned comment must stay resolvable")
	}
	if !got.Deleted() {
		t.Errorf("status = %q, want deleted", got.Status)
	}
	if s.Tombstone(99) {
		t.Error("tombstone of unknown id should report false")
	}
}

func TestNestedRepliesFlattenIntoArena(t *testing.T) {
	s := NewStore()
	parent := topComment(1, 0)
	parent.Replies = []Comment{replyComment(2, 1, 1), replyComment(3, 1, 2)}
	s.Upsert(parent)

	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}
	if _, ok := s.FindByID(3); !ok {
		t.Error("nested reply not findable by id")
	}
	if ids := s.ReplyIDs(1); len(ids) != 2 {
		t.Errorf("reply ids = %v, want two", ids)
	}
}
