package discussion

import "sort"

// Thread is one visible top-level comment with its visible replies.
type Thread struct {
	Comment Comment
	Replies []Comment
}

// Project derives the displayable tree from the store: tombstones excluded,
// top-level comments newest-first, each comment's replies independently
// newest-first. The projection holds no state of its own and is recomputed
// on every call.
func (s *Store) Project() []Thread {
	var threads []Thread
	for _, id := range s.topOrder {
		n := s.nodes[id]
		if n.comment.Deleted() {
			continue
		}
		top, _ := s.FindByID(id)
		thread := Thread{Comment: top}
		for _, replyID := range n.replyIDs {
			reply, ok := s.FindByID(replyID)
			if !ok || reply.Deleted() {
				continue
			}
			thread.Replies = append(thread.Replies, reply)
		}
		sortNewestFirst(thread.Replies)
		threads = append(threads, thread)
	}
	sort.SliceStable(threads, func(i, j int) bool {
		return newerThan(threads[i].Comment, threads[j].Comment)
	})
	return threads
}

func sortNewestFirst(comments []Comment) {
	sort.SliceStable(comments, func(i, j int) bool {
		return newerThan(comments[i], comments[j])
	})
}

// newerThan orders by creation time descending, breaking ties on the higher
// server id so concurrent timestamps project deterministically.
func newerThan(a, b Comment) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
