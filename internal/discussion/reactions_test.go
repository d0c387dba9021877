package discussion

import "testing"

func TestAggregateReactionsGroupsByFirstSeenEmoji(t *testing.T) {
	list := []Reaction{
		{Emoji: "👍", UserID: "u1"},
		{Emoji: "🎉", UserID: "u2"},
		{Emoji: "👍", UserID: "u3"},
	}
	groups := AggregateReactions(list, "u3")

	if len(groups) != 2 {
		t.Fatalf("groups = %v, want 2", groups)
	}
	if groups[0].Emoji != "👍" || groups[0].Count != 2 || !groups[0].Viewer {
		t.Errorf("first group = %+v", groups[0])
	}
	if groups[1].Emoji != "🎉" || groups[1].Count != 1 || groups[1].Viewer {
		t.Errorf("second group = %+v", groups[1])
	}
}

func TestAggregateReactionsEmpty(t *testing.T) {
	if groups := AggregateReactions(nil, "u1"); len(groups) != 0 {
		t.Errorf("groups = %v, want none", groups)
	}
}

func TestToggleActionMatchesExactPair(t *testing.T) {
	list := []Reaction{{Emoji: "👍", UserID: "u1"}}

	if ToggleAction(list, "👍", "u1") {
		t.Error("existing pair should toggle to a remove")
	}
	if !ToggleAction(list, "👍", "u2") {
		t.Error("other user's toggle should add")
	}
	if !ToggleAction(list, "🎉", "u1") {
		t.Error("other emoji should add")
	}
}
