package store

import "time"

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	Role                  string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
}

// Task is the discussion anchor. Task management proper lives elsewhere;
// this service only needs the id and a title for transcripts and mail.
type Task struct {
	ID        int64
	Title     string
	CreatedBy string
	CreatedAt time.Time
}

// Comment is a stored comment row. ParentID zero means top-level. Status is
// one of active, edited, deleted; deleted rows are tombstones and are never
// removed. AuthorName and AuthorEmail are joined from users for responses.
type Comment struct {
	ID          int64
	TaskID      int64
	ParentID    int64
	Content     string
	Status      string
	CreatedBy   string
	AuthorName  string
	AuthorEmail string
	CreatedAt   time.Time
	EditedAt    *time.Time
}

type Reaction struct {
	CommentID int64
	Emoji     string
	UserID    string
	CreatedAt time.Time
}

// CommentRevision is one superseded version of a comment's content.
type CommentRevision struct {
	ID        int64
	CommentID int64
	Content   string
	EditedBy  string
	EditedAt  time.Time
}
