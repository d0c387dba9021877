package discussion

// Reconciliation: the same logical mutation can reach the store through the
// REST response to the viewer's own call and again through the task's push
// room, in either order. Every handler below is keyed by server id and
// re-derives the final state of the affected fields from the incoming
// payload, so a duplicate or out-of-order delivery is a no-op. Creates are
// never optimistic — a comment only enters the store once a server id
// exists — which is what makes upsert-by-id sufficient to deduplicate.

// ApplyCreated handles a comment:created event or a create response.
// Applying the same comment twice leaves exactly one node.
func (s *Store) ApplyCreated(c Comment) bool {
	return s.Upsert(c)
}

// ApplyUpdated handles a comment:updated event or an update response. An
// unknown id is dropped; a later full reload will include it.
func (s *Store) ApplyUpdated(c Comment) bool {
	if _, ok := s.nodes[c.ID]; !ok {
		return false
	}
	return s.Upsert(c)
}

// ApplyDeleted handles a comment:deleted event or a delete confirmation.
func (s *Store) ApplyDeleted(id int64) bool {
	return s.Tombstone(id)
}

// ApplyReactionAdded appends a reaction unless the identical (emoji, user)
// pair is already present on the comment.
func (s *Store) ApplyReactionAdded(commentID int64, r Reaction) bool {
	n, ok := s.nodes[commentID]
	if !ok {
		return false
	}
	for _, existing := range n.comment.Reactions {
		if existing.Emoji == r.Emoji && existing.UserID == r.UserID {
			return true
		}
	}
	n.comment.Reactions = append(n.comment.Reactions, r)
	return true
}

// ApplyReactionRemoved filters out the exact (emoji, user) pair. Removing a
// pair that is not present is a no-op.
func (s *Store) ApplyReactionRemoved(commentID int64, emoji, userID string) bool {
	n, ok := s.nodes[commentID]
	if !ok {
		return false
	}
	kept := n.comment.Reactions[:0]
	for _, r := range n.comment.Reactions {
		if r.Emoji == emoji && r.UserID == userID {
			continue
		}
		kept = append(kept, r)
	}
	n.comment.Reactions = kept
	return true
}
