package discussion

import "testing"

func TestDuplicateCreateIsNoOp(t *testing.T) {
	s := NewStore()
	c := topComment(1, 0)

	// REST response lands first, then the push echo of the same create.
	s.ApplyCreated(c)
	s.ApplyCreated(c)

	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
	threads := s.Project()
	if len(threads) != 1 {
		t.Fatalf("projected %d top-level comments, want 1", len(threads))
	}
}

func TestCreateAndUpdateCommute(t *testing.T) {
	created := topComment(1, 0)
	edited := topComment(1, 0)
	edited.Content = "edited"
	edited.Status = StatusEdited

	// Whichever order the create and its edit arrive, the final state wins.
	a := NewStore()
	a.ApplyCreated(created)
	a.ApplyUpdated(edited)

	b := NewStore()
	b.ApplyUpdated(edited) // unknown id: dropped
	b.ApplyCreated(created)
	b.ApplyUpdated(edited)

	for name, s := range map[string]*Store{"create-first": a, "update-first": b} {
		got, _ := s.FindByID(1)
		if got.Content != "edited" {
			t.Errorf("%s: content = %q, want edited", name, got.Content)
		}
	}
}

func TestUpdateUnknownIDDropped(t *testing.T) {
	s := NewStore()
	if s.ApplyUpdated(topComment(7, 0)) {
		t.Error("update of unknown id should report false")
	}
	if s.Len() != 0 {
		t.Error("dropped update must not insert")
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := NewStore()
	s.ApplyCreated(topComment(1, 0))
	s.ApplyDeleted(1)
	s.ApplyDeleted(1)

	if len(s.Project()) != 0 {
		t.Error("tombstoned comment still projected")
	}
	if _, ok := s.FindByID(1); !ok {
		t.Error("tombstoned comment must stay resolvable")
	}
}

func TestReactionAddedTwiceYieldsOneEntry(t *testing.T) {
	s := NewStore()
	s.ApplyCreated(topComment(1, 0))

	r := Reaction{Emoji: "👍", UserID: "userA"}
	s.ApplyReactionAdded(1, r)
	s.ApplyReactionAdded(1, r)

	got, _ := s.FindByID(1)
	if len(got.Reactions) != 1 {
		t.Errorf("reactions = %v, want one entry", got.Reactions)
	}
}

func TestReactionRemoveNonexistentIsNoOp(t *testing.T) {
	s := NewStore()
	s.ApplyCreated(topComment(1, 0))
	s.ApplyReactionAdded(1, Reaction{Emoji: "👍", UserID: "userA"})

	s.ApplyReactionRemoved(1, "👍", "userB")
	s.ApplyReactionRemoved(1, "🎉", "userA")

	got, _ := s.FindByID(1)
	if len(got.Reactions) != 1 {
		t.Errorf("reactions = %v, want the original entry untouched", got.Reactions)
	}
}

func TestReactionToggleRoundTrip(t *testing.T) {
	s := NewStore()
	s.ApplyCreated(topComment(1, 0))

	c, _ := s.FindByID(1)
	if !ToggleAction(c.Reactions, "👍", "userA") {
		t.Fatal("first toggle should add")
	}
	s.ApplyReactionAdded(1, Reaction{Emoji: "👍", UserID: "userA"})

	c, _ = s.FindByID(1)
	if len(c.Reactions) != 1 {
		t.Fatalf("reactions = %v, want one after first toggle", c.Reactions)
	}
	if ToggleAction(c.Reactions, "👍", "userA") {
		t.Fatal("second toggle should remove")
	}
	s.ApplyReactionRemoved(1, "👍", "userA")

	c, _ = s.FindByID(1)
	if len(c.Reactions) != 0 {
		t.Errorf("reactions = %v, want none after second toggle", c.Reactions)
	}
}

func TestReactionEventForUnknownCommentDropped(t *testing.T) {
	s := NewStore()
	if s.ApplyReactionAdded(42, Reaction{Emoji: "👍", UserID: "u"}) {
		t.Error("reaction on unknown comment should report false")
	}
	if s.ApplyReactionRemoved(42, "👍", "u") {
		t.Error("reaction removal on unknown comment should report false")
	}
}

func TestReplyCreateEchoedThroughBothChannels(t *testing.T) {
	s := NewStore()
	s.ApplyCreated(topComment(1, 0))
	reply := replyComment(2, 1, 1)

	s.ApplyCreated(reply) // push broadcast
	s.ApplyCreated(reply) // REST response

	if ids := s.ReplyIDs(1); len(ids) != 1 {
		t.Errorf("reply ids = %v, want exactly one", ids)
	}
}
