package discussion

// ReactionGroup is one emoji's aggregate on a comment.
type ReactionGroup struct {
	Emoji  string
	Count  int
	Viewer bool // the viewing user is among the reactors
}

// AggregateReactions groups a flat reaction list by emoji, preserving the
// order in which each emoji first appears. Pure projection, no mutation.
func AggregateReactions(list []Reaction, viewerID string) []ReactionGroup {
	var groups []ReactionGroup
	index := make(map[string]int)
	for _, r := range list {
		i, ok := index[r.Emoji]
		if !ok {
			i = len(groups)
			index[r.Emoji] = i
			groups = append(groups, ReactionGroup{Emoji: r.Emoji})
		}
		groups[i].Count++
		if r.UserID == viewerID {
			groups[i].Viewer = true
		}
	}
	return groups
}

// HasReaction reports whether the exact (emoji, user) pair is present.
func HasReaction(list []Reaction, emoji, userID string) bool {
	for _, r := range list {
		if r.Emoji == emoji && r.UserID == userID {
			return true
		}
	}
	return false
}

// ToggleAction decides what a reaction toggle should issue: remove when the
// user already placed that emoji on the comment, add otherwise.
func ToggleAction(list []Reaction, emoji, userID string) (add bool) {
	return !HasReaction(list, emoji, userID)
}
