package discussion

import "testing"

func TestProjectNewestFirstWithIndependentReplyOrder(t *testing.T) {
	s := NewStore()
	s.Upsert(topComment(1, 1))
	s.Upsert(topComment(2, 2))
	s.Upsert(replyComment(3, 1, 3))
	s.Upsert(replyComment(4, 1, 4))

	threads := s.Project()
	if len(threads) != 2 {
		t.Fatalf("projected %d threads, want 2", len(threads))
	}
	if threads[0].Comment.ID != 2 || threads[1].Comment.ID != 1 {
		t.Errorf("top-level order = [%d %d], want [2 1]", threads[0].Comment.ID, threads[1].Comment.ID)
	}
	replies := threads[1].Replies
	if len(replies) != 2 || replies[0].ID != 4 || replies[1].ID != 3 {
		t.Errorf("reply order = %v, want [4 3]", replyIDsOf(replies))
	}
}

func TestProjectExcludesTombstones(t *testing.T) {
	s := NewStore()
	s.Upsert(topComment(1, 1))
	s.Upsert(topComment(2, 2))
	s.Upsert(replyComment(3, 1, 3))
	s.Tombstone(2)
	s.Tombstone(3)

	threads := s.Project()
	if len(threads) != 1 || threads[0].Comment.ID != 1 {
		t.Fatalf("projection = %v, want only comment 1", threads)
	}
	if len(threads[0].Replies) != 0 {
		t.Error("tombstoned reply still projected")
	}
	// Both tombstones stay resolvable for quote references.
	for _, id := range []int64{2, 3} {
		if _, ok := s.FindByID(id); !ok {
			t.Errorf("comment %d purged instead of tombstoned", id)
		}
	}
}

func TestProjectTieBreaksOnID(t *testing.T) {
	s := NewStore()
	s.Upsert(topComment(1, 5))
	s.Upsert(topComment(2, 5))

	threads := s.Project()
	if threads[0].Comment.ID != 2 {
		t.Errorf("equal timestamps should order by higher id first, got %d", threads[0].Comment.ID)
	}
}

func TestProjectIsPure(t *testing.T) {
	s := NewStore()
	s.Upsert(topComment(1, 1))
	first := s.Project()
	first[0].Comment.Content = "mutated by caller"

	second := s.Project()
	if second[0].Comment.Content != "comment" {
		t.Error("projection leaked mutable state back into the store")
	}
}

func replyIDsOf(comments []Comment) []int64 {
	ids := make([]int64, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
	}
	return ids
}
