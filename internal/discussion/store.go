package discussion

// Store is the arena holding one task's comments: a flat map keyed by server
// id plus ordered id lists for top-level comments and for each comment's
// replies. Lookups are O(1) regardless of nesting. The store is confined to
// a single goroutine (the session event loop); it has no locking, and every
// mutating method is written to apply cleanly whatever order independent
// events for the same comment arrive in.
type Store struct {
	nodes    map[int64]*node
	topOrder []int64
}

type node struct {
	comment  Comment // Replies always nil here; reply ids live in replyIDs
	replyIDs []int64
}

func NewStore() *Store {
	return &Store{nodes: make(map[int64]*node)}
}

// Len reports the number of comments in the arena, tombstones included.
func (s *Store) Len() int { return len(s.nodes) }

// Upsert inserts or replaces a comment by id, recursively upserting any
// nested replies the payload carries. A payload with nil Reactions or no
// Replies does not erase reactions or replies already known for that id, so
// partial push payloads cannot clobber loaded state. A reply whose parent is
// unknown is dropped and Upsert returns false.
func (s *Store) Upsert(c Comment) bool {
	replies := c.Replies
	c.Replies = nil

	if c.ParentID != 0 {
		if _, ok := s.nodes[c.ParentID]; !ok {
			return false
		}
	}

	existing, known := s.nodes[c.ID]
	if known {
		if c.Reactions == nil {
			c.Reactions = existing.comment.Reactions
		}
		existing.comment = c
	} else {
		s.nodes[c.ID] = &node{comment: c}
		if c.ParentID == 0 {
			s.topOrder = append(s.topOrder, c.ID)
		} else {
			parent := s.nodes[c.ParentID]
			parent.replyIDs = appendID(parent.replyIDs, c.ID)
		}
	}

	for _, reply := range replies {
		if reply.ParentID == 0 {
			reply.ParentID = c.ID
		}
		s.Upsert(reply)
	}
	return true
}

// Tombstone marks a comment deleted in place. The node is retained so quote
// references keep resolving. Unknown ids are a no-op.
func (s *Store) Tombstone(id int64) bool {
	n, ok := s.nodes[id]
	if !ok {
		return false
	}
	n.comment.Status = StatusDeleted
	return true
}

// FindByID returns a snapshot of the comment with the given id, searching
// top-level comments and replies alike. The snapshot carries no Replies.
func (s *Store) FindByID(id int64) (Comment, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return Comment{}, false
	}
	c := n.comment
	c.Reactions = append([]Reaction(nil), n.comment.Reactions...)
	return c, true
}

// ReplyIDs returns the known reply ids of a comment in insertion order.
func (s *Store) ReplyIDs(id int64) []int64 {
	n, ok := s.nodes[id]
	if !ok {
		return nil
	}
	return append([]int64(nil), n.replyIDs...)
}

// TopLevelIDs returns the ids of all top-level comments in insertion order,
// tombstones included.
func (s *Store) TopLevelIDs() []int64 {
	return append([]int64(nil), s.topOrder...)
}

func appendID(ids []int64, id int64) []int64 {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
