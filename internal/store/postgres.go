package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("not found")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---- users ----

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, role, is_email_verified, verification_token, verification_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.Role, user.IsEmailVerified, user.VerificationToken, user.VerificationExpiresAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role, is_email_verified
		FROM users WHERE LOWER(email)=LOWER($1)
	`, email).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.IsEmailVerified)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user by email: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role, is_email_verified
		FROM users WHERE id=$1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.IsEmailVerified)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET verification_token=$2, verification_expires_at=$3 WHERE id=$1
	`, userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("update verification token: %w", err)
	}
	return nil
}

func (s *PostgresStore) VerifyUserEmail(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET is_email_verified=TRUE, verification_token='', verification_expires_at=NULL
		WHERE verification_token=$1 AND verification_expires_at > NOW()
	`, token)
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=$2 WHERE id=$1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token, user_id, expires_at) VALUES ($1, $2, $3)
	`, token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM password_resets
		WHERE token=$1 AND used_at IS NULL AND expires_at > NOW()
	`, token).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup password reset: %w", err)
	}
	return userID, nil
}

func (s *PostgresStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE password_resets SET used_at=NOW() WHERE token=$1`, token)
	if err != nil {
		return fmt.Errorf("mark password reset used: %w", err)
	}
	return nil
}

// ---- refresh sessions / token revocation ----

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.display_name, u.email, u.role
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.DisplayName, &user.Email, &user.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup refresh session: %w", err)
	}
	if user.Role == "" {
		user.Role = "viewer"
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// ---- tasks ----

func (s *PostgresStore) InsertTask(ctx context.Context, title, createdBy string) (Task, error) {
	var task Task
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tasks (title, created_by) VALUES ($1, $2)
		RETURNING id, title, created_by, created_at
	`, title, createdBy).Scan(&task.ID, &task.Title, &task.CreatedBy, &task.CreatedAt)
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

func (s *PostgresStore) GetTask(ctx context.Context, taskID int64) (Task, error) {
	var task Task
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, created_by, created_at FROM tasks WHERE id=$1
	`, taskID).Scan(&task.ID, &task.Title, &task.CreatedBy, &task.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

func (s *PostgresStore) ListTasks(ctx context.Context) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, created_by, created_at FROM tasks ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]Task, 0)
	for rows.Next() {
		var task Task
		if err := rows.Scan(&task.ID, &task.Title, &task.CreatedBy, &task.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// ---- comments ----

const commentColumns = `
	c.id, c.task_id, COALESCE(c.parent_id, 0), c.content, c.status, c.created_by,
	u.display_name, u.email, c.created_at, c.edited_at
`

func scanComment(row interface{ Scan(...any) error }) (Comment, error) {
	var c Comment
	err := row.Scan(&c.ID, &c.TaskID, &c.ParentID, &c.Content, &c.Status, &c.CreatedBy,
		&c.AuthorName, &c.AuthorEmail, &c.CreatedAt, &c.EditedAt)
	return c, err
}

// InsertComment persists a new comment and returns the stored row with its
// server-assigned id. parentID zero means top-level.
func (s *PostgresStore) InsertComment(ctx context.Context, taskID, parentID int64, content, createdBy string) (Comment, error) {
	var parent any
	if parentID != 0 {
		parent = parentID
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO comments (task_id, parent_id, content, status, created_by)
		VALUES ($1, $2, $3, 'active', $4)
		RETURNING id
	`, taskID, parent, content, createdBy).Scan(&id)
	if err != nil {
		return Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return s.GetComment(ctx, taskID, id)
}

func (s *PostgresStore) GetComment(ctx context.Context, taskID, commentID int64) (Comment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments c JOIN users u ON u.id = c.created_by
		WHERE c.id=$1 AND c.task_id=$2
	`, commentID, taskID)
	c, err := scanComment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Comment{}, ErrNotFound
	}
	if err != nil {
		return Comment{}, fmt.Errorf("get comment: %w", err)
	}
	return c, nil
}

// ListComments returns all of a task's comments, tombstones included, oldest
// first. The caller assembles the tree.
func (s *PostgresStore) ListComments(ctx context.Context, taskID int64) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments c JOIN users u ON u.id = c.created_by
		WHERE c.task_id=$1
		ORDER BY c.created_at ASC, c.id ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return comments, nil
}

// UpdateCommentContent replaces a comment's content, marks it edited, and
// records the superseded content as a revision. Tombstoned comments are not
// editable.
func (s *PostgresStore) UpdateCommentContent(ctx context.Context, taskID, commentID int64, content, editedBy string) (Comment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Comment{}, fmt.Errorf("begin update comment: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var previous string
	err = tx.QueryRowContext(ctx, `
		SELECT content FROM comments WHERE id=$1 AND task_id=$2 AND status <> 'deleted' FOR UPDATE
	`, commentID, taskID).Scan(&previous)
	if errors.Is(err, sql.ErrNoRows) {
		return Comment{}, ErrNotFound
	}
	if err != nil {
		return Comment{}, fmt.Errorf("lock comment: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO comment_revisions (comment_id, content, edited_by) VALUES ($1, $2, $3)
	`, commentID, previous, editedBy); err != nil {
		return Comment{}, fmt.Errorf("record revision: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE comments SET content=$3, status='edited', edited_at=NOW() WHERE id=$1 AND task_id=$2
	`, commentID, taskID, content); err != nil {
		return Comment{}, fmt.Errorf("update comment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Comment{}, fmt.Errorf("commit update comment: %w", err)
	}
	return s.GetComment(ctx, taskID, commentID)
}

// TombstoneComment soft-deletes a comment. The row is retained so quote
// references to it keep resolving. Returns false when no live comment
// matched.
func (s *PostgresStore) TombstoneComment(ctx context.Context, taskID, commentID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE comments SET status='deleted' WHERE id=$1 AND task_id=$2 AND status <> 'deleted'
	`, commentID, taskID)
	if err != nil {
		return false, fmt.Errorf("tombstone comment: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

func (s *PostgresStore) ListCommentRevisions(ctx context.Context, commentID int64) ([]CommentRevision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, comment_id, content, edited_by, edited_at
		FROM comment_revisions WHERE comment_id=$1 ORDER BY edited_at ASC, id ASC
	`, commentID)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	revisions := make([]CommentRevision, 0)
	for rows.Next() {
		var rev CommentRevision
		if err := rows.Scan(&rev.ID, &rev.CommentID, &rev.Content, &rev.EditedBy, &rev.EditedAt); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		revisions = append(revisions, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revisions: %w", err)
	}
	return revisions, nil
}

// ---- reactions ----

// AddReaction inserts the (comment, emoji, user) pair. Inserting a pair that
// already exists is a no-op; the bool reports whether a row was added.
func (s *PostgresStore) AddReaction(ctx context.Context, commentID int64, emoji, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO comment_reactions (comment_id, emoji, user_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (comment_id, emoji, user_id) DO NOTHING
	`, commentID, emoji, userID)
	if err != nil {
		return false, fmt.Errorf("add reaction: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

// RemoveReaction deletes the exact (comment, emoji, user) pair; removing a
// pair that is not present is a no-op.
func (s *PostgresStore) RemoveReaction(ctx context.Context, commentID int64, emoji, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM comment_reactions WHERE comment_id=$1 AND emoji=$2 AND user_id=$3
	`, commentID, emoji, userID)
	if err != nil {
		return false, fmt.Errorf("remove reaction: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

// ListTaskReactions returns every reaction on a task's comments in insertion
// order.
func (s *PostgresStore) ListTaskReactions(ctx context.Context, taskID int64) ([]Reaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.comment_id, r.emoji, r.user_id, r.created_at
		FROM comment_reactions r
		JOIN comments c ON c.id = r.comment_id
		WHERE c.task_id=$1
		ORDER BY r.created_at ASC, r.comment_id ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	defer rows.Close()

	reactions := make([]Reaction, 0)
	for rows.Next() {
		var r Reaction
		if err := rows.Scan(&r.CommentID, &r.Emoji, &r.UserID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		reactions = append(reactions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reactions: %w", err)
	}
	return reactions, nil
}

func (s *PostgresStore) ListCommentReactions(ctx context.Context, commentID int64) ([]Reaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT comment_id, emoji, user_id, created_at
		FROM comment_reactions WHERE comment_id=$1
		ORDER BY created_at ASC
	`, commentID)
	if err != nil {
		return nil, fmt.Errorf("list comment reactions: %w", err)
	}
	defer rows.Close()

	reactions := make([]Reaction, 0)
	for rows.Next() {
		var r Reaction
		if err := rows.Scan(&r.CommentID, &r.Emoji, &r.UserID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		reactions = append(reactions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reactions: %w", err)
	}
	return reactions, nil
}
