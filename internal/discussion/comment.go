// Package discussion models one task's comment thread: an in-memory arena of
// comments keyed by server id, idempotent application of mutation events,
// quote-reference resolution, authoring state, and the projection rules used
// to render the tree. The package does no I/O; callers feed it REST results
// and push events and read projections back out.
package discussion

import "time"

// Status is the lifecycle of a comment. A deleted comment is a tombstone: it
// stays in the store so quote references to it keep resolving, but it is
// excluded from projections.
type Status string

const (
	StatusActive  Status = "active"
	StatusEdited  Status = "edited"
	StatusDeleted Status = "deleted"
)

type Author struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
}

// Label returns the display name, falling back to the email address.
func (a Author) Label() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Email
}

type Reaction struct {
	Emoji  string `json:"emoji"`
	UserID string `json:"userId"`
}

// Comment is the wire and model shape of a single comment. ParentID zero
// means top-level; a comment with a parent is a reply and never has replies
// of its own (depth is capped at one by the authoring layer and re-checked
// by the server).
type Comment struct {
	ID        int64      `json:"id"`
	TaskID    int64      `json:"taskId,omitempty"`
	ParentID  int64      `json:"parentId,omitempty"`
	Content   string     `json:"content"`
	Author    Author     `json:"author"`
	CreatedAt time.Time  `json:"createdAt"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`
	Status    Status     `json:"status"`
	Reactions []Reaction `json:"reactions,omitempty"`
	Replies   []Comment  `json:"replies,omitempty"`
}

// Deleted reports whether the comment is a tombstone.
func (c Comment) Deleted() bool { return c.Status == StatusDeleted }

// Edited reports whether the comment has been edited since creation.
func (c Comment) Edited() bool { return c.Status == StatusEdited }

// QuotedReference is the resolved form of a leading quote tag. Deleted marks
// a tombstoned target; Missing marks an id the store has never seen (hard
// deleted on the server, or simply not loaded). Either way the surrounding
// comment still renders, with a placeholder instead of the preview.
type QuotedReference struct {
	ID      int64
	Author  string
	Snippet string
	Deleted bool
	Missing bool
}

// Available reports whether the reference resolved to quotable content.
func (q QuotedReference) Available() bool { return !q.Deleted && !q.Missing }
