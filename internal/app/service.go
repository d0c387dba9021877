package app

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"taskdeck/api/internal/auth"
	"taskdeck/api/internal/authpw"
	"taskdeck/api/internal/config"
	"taskdeck/api/internal/discussion"
	"taskdeck/api/internal/export"
	"taskdeck/api/internal/rbac"
	"taskdeck/api/internal/realtime"
	"taskdeck/api/internal/search"
	"taskdeck/api/internal/store"
	"taskdeck/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

type CreateCommentInput struct {
	Content  string `json:"content"`
	ParentID int64  `json:"parentId,omitempty"`
}

type UpdateCommentInput struct {
	Content string `json:"content"`
}

type ReactionInput struct {
	Emoji string `json:"emoji"`
}

type CreateTaskInput struct {
	Title string `json:"title"`
}

const (
	maxCommentRunes    = 10000
	maxAttachmentBytes = 25 << 20
)

type dataStore interface {
	GetUserByID(context.Context, string) (store.User, error)
	SaveRefreshSession(context.Context, string, string, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)

	InsertTask(context.Context, string, string) (store.Task, error)
	GetTask(context.Context, int64) (store.Task, error)
	ListTasks(context.Context) ([]store.Task, error)

	InsertComment(context.Context, int64, int64, string, string) (store.Comment, error)
	GetComment(context.Context, int64, int64) (store.Comment, error)
	ListComments(context.Context, int64) ([]store.Comment, error)
	UpdateCommentContent(context.Context, int64, int64, string, string) (store.Comment, error)
	TombstoneComment(context.Context, int64, int64) (bool, error)
	ListCommentRevisions(context.Context, int64) ([]store.CommentRevision, error)

	AddReaction(context.Context, int64, string, string) (bool, error)
	RemoveReaction(context.Context, int64, string, string) (bool, error)
	ListTaskReactions(context.Context, int64) ([]store.Reaction, error)
	ListCommentReactions(context.Context, int64) ([]store.Reaction, error)

	InsertAttachment(context.Context, store.Attachment) error
	GetAttachment(context.Context, string) (store.Attachment, error)
	ListCommentAttachments(context.Context, int64) ([]store.Attachment, error)

	Ping(ctx context.Context) error
}

// refreshStore is the refresh-token backend: Redis when configured,
// Postgres otherwise.
type refreshStore interface {
	SaveRefreshSession(context.Context, string, string, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
}

// publisher is the push side; realtime.Hub in production.
type publisher interface {
	Publish(context.Context, realtime.Event)
}

// searchService mirrors comment mutations into the search backend and
// answers queries.
type searchService interface {
	IndexComment(taskID int64, c discussion.Comment)
	RemoveComment(commentID int64)
	Search(q search.Query) search.Response
}

// replyNotifier delivers reply notification mail.
type replyNotifier interface {
	NotifyReply(parentAuthor store.User, task store.Task, reply discussion.Comment)
}

// accountMailer is the optional half of a notifier that can also deliver
// account lifecycle mail. email.Service implements it; test fakes usually
// don't bother.
type accountMailer interface {
	SendVerificationEmail(to, userName, token string) error
	SendPasswordResetEmail(to, userName, token string) error
}

// blobStore holds attachment bytes; attachments.Service in production.
type blobStore interface {
	Upload(ctx context.Context, taskID, commentID int64, fileName, contentType string, body io.Reader, size int64) (string, error)
	PresignedURL(ctx context.Context, objectKey, fileName string) (string, error)
}

// transcriptExporter renders a task's discussion as HTML or PDF.
type transcriptExporter interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions refreshStore
	hub      publisher
	search   searchService
	notifier replyNotifier
	blobs    blobStore
	exporter transcriptExporter
	passwd   *authpw.Service
}

func New(cfg config.Config, dataStore *store.PostgresStore, hub *realtime.Hub) *Service {
	return &Service{cfg: cfg, store: dataStore, sessions: dataStore, hub: hub}
}

// WithSessionStore swaps the refresh-token backend (Redis in production).
func (s *Service) WithSessionStore(sessions refreshStore) *Service {
	s.sessions = sessions
	return s
}

// WithSearch attaches the search backend.
func (s *Service) WithSearch(search searchService) *Service {
	s.search = search
	return s
}

// WithNotifier attaches the reply notification mailer.
func (s *Service) WithNotifier(notifier replyNotifier) *Service {
	s.notifier = notifier
	return s
}

// WithAttachments attaches the object storage backend for comment attachments.
func (s *Service) WithAttachments(blobs blobStore) *Service {
	s.blobs = blobs
	return s
}

// WithExporter attaches the transcript exporter.
func (s *Service) WithExporter(exporter transcriptExporter) *Service {
	s.exporter = exporter
	return s
}

// WithAuthPassword attaches email/password authentication.
func (s *Service) WithAuthPassword(passwd *authpw.Service) *Service {
	s.passwd = passwd
	return s
}

// AuthPasswordService returns the email/password auth backend, or nil when
// not configured.
func (s *Service) AuthPasswordService() *authpw.Service {
	return s.passwd
}

// SMTPConfigured reports whether outbound mail is configured.
func (s *Service) SMTPConfigured() bool {
	return s.cfg.SMTPHost != "" && s.cfg.SMTPFrom != ""
}

// MailVerification sends the email verification link in the background.
// No-op when the notifier cannot send account mail.
func (s *Service) MailVerification(to, userName, token string) {
	am, ok := s.notifier.(accountMailer)
	if !ok || !s.SMTPConfigured() {
		return
	}
	go func() {
		if err := am.SendVerificationEmail(to, userName, token); err != nil {
			log.Printf("app: verification mail to %s: %v", to, err)
		}
	}()
}

// MailPasswordReset sends the password reset link in the background.
func (s *Service) MailPasswordReset(to, token string) {
	am, ok := s.notifier.(accountMailer)
	if !ok || !s.SMTPConfigured() {
		return
	}
	go func() {
		if err := am.SendPasswordResetEmail(to, "", token); err != nil {
			log.Printf("app: password reset mail to %s: %v", to, err)
		}
	}()
}

// ---- sessions ----

func (s *Service) IssueSession(ctx context.Context, user store.User) (Session, error) {
	jti := util.NewID("")
	expiresAt := time.Now().Add(s.cfg.AccessTTL)
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		Role: user.Role,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}

	refreshToken := util.NewID("rt")
	if err := s.sessions.SaveRefreshSession(ctx, hashToken(refreshToken), user.ID, time.Now().Add(s.cfg.RefreshTTL)); err != nil {
		return Session{}, fmt.Errorf("save refresh session: %w", err)
	}

	return Session{
		Token:        token,
		RefreshToken: refreshToken,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Email:        user.Email,
		Role:         string(rbac.Normalize(user.Role)),
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// CreateSession issues a session for a known user id; used after password
// sign-in.
func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.IssueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	user, err := s.sessions.LookupRefreshSession(ctx, hashToken(refreshToken))
	if err != nil {
		return Session{}, auth.ErrInvalidToken
	}
	return s.IssueSession(ctx, user)
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}
	return Session{
		Token:     token,
		UserID:    claims.Sub,
		UserName:  claims.Name,
		Role:      string(rbac.Normalize(claims.Role)),
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if refreshToken != "" {
		if err := s.sessions.RevokeRefreshSession(ctx, hashToken(refreshToken)); err != nil {
			return err
		}
	}
	return s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func hashToken(token string) string {
	sum := sha1.Sum([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ---- tasks ----

func (s *Service) CreateTask(ctx context.Context, session Session, input CreateTaskInput) (store.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return store.Task{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	return s.store.InsertTask(ctx, title, session.UserID)
}

func (s *Service) GetTask(ctx context.Context, taskID int64) (store.Task, error) {
	return s.store.GetTask(ctx, taskID)
}

func (s *Service) ListTasks(ctx context.Context) ([]store.Task, error) {
	return s.store.ListTasks(ctx)
}

// ---- comments ----

// CreateComment validates and persists a new comment, then announces it to
// the task room. The caller gets the authoritative row back; the room gets
// the same payload, so a client applying both converges on one node. Replies
// to replies are re-parented onto the reply's own parent to keep the tree at
// depth one.
func (s *Service) CreateComment(ctx context.Context, session Session, taskID int64, input CreateCommentInput) (discussion.Comment, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return discussion.Comment{}, err
	}

	content := strings.TrimSpace(input.Content)
	if content == "" {
		return discussion.Comment{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is required", nil)
	}
	if len([]rune(content)) > maxCommentRunes {
		return discussion.Comment{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is too long", nil)
	}

	parentID := input.ParentID
	var parentAuthorID string
	if parentID != 0 {
		parent, err := s.store.GetComment(ctx, taskID, parentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return discussion.Comment{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "parent comment does not exist", nil)
			}
			return discussion.Comment{}, err
		}
		if parent.Status == "deleted" {
			return discussion.Comment{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "cannot reply to a deleted comment", nil)
		}
		if parent.ParentID != 0 {
			parentID = parent.ParentID
		}
		parentAuthorID = parent.CreatedBy
	}

	row, err := s.store.InsertComment(ctx, taskID, parentID, content, session.UserID)
	if err != nil {
		return discussion.Comment{}, err
	}

	comment := toWireComment(row, nil)
	s.hub.Publish(ctx, realtime.NewCommentEvent(realtime.CommentCreated, taskID, comment))
	if s.search != nil {
		s.search.IndexComment(taskID, comment)
	}
	s.notifyReply(ctx, task, comment, parentAuthorID, session.UserID)
	return comment, nil
}

// UpdateComment replaces a comment's content. Members may edit their own
// comments; admins may edit any.
func (s *Service) UpdateComment(ctx context.Context, session Session, taskID, commentID int64, input UpdateCommentInput) (discussion.Comment, error) {
	existing, err := s.store.GetComment(ctx, taskID, commentID)
	if err != nil {
		return discussion.Comment{}, err
	}
	if existing.Status == "deleted" {
		return discussion.Comment{}, domainError(http.StatusConflict, "GONE", "comment was deleted", nil)
	}
	if existing.CreatedBy != session.UserID && !s.Can(session.Role, rbac.ActionModerate) {
		return discussion.Comment{}, domainError(http.StatusForbidden, "FORBIDDEN", "only the author can edit a comment", nil)
	}

	content := strings.TrimSpace(input.Content)
	if content == "" {
		return discussion.Comment{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is required", nil)
	}
	if len([]rune(content)) > maxCommentRunes {
		return discussion.Comment{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is too long", nil)
	}

	row, err := s.store.UpdateCommentContent(ctx, taskID, commentID, content, session.UserID)
	if err != nil {
		return discussion.Comment{}, err
	}

	reactions, err := s.store.ListCommentReactions(ctx, commentID)
	if err != nil {
		return discussion.Comment{}, err
	}
	comment := toWireComment(row, reactions)
	s.hub.Publish(ctx, realtime.NewCommentEvent(realtime.CommentUpdated, taskID, comment))
	if s.search != nil {
		s.search.IndexComment(taskID, comment)
	}
	return comment, nil
}

// DeleteComment tombstones a comment. The row survives so quote references
// to it keep resolving; clients hide it from display.
func (s *Service) DeleteComment(ctx context.Context, session Session, taskID, commentID int64) error {
	existing, err := s.store.GetComment(ctx, taskID, commentID)
	if err != nil {
		return err
	}
	if existing.CreatedBy != session.UserID && !s.Can(session.Role, rbac.ActionModerate) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "only the author can delete a comment", nil)
	}

	deleted, err := s.store.TombstoneComment(ctx, taskID, commentID)
	if err != nil {
		return err
	}
	if deleted {
		s.hub.Publish(ctx, realtime.NewDeletedEvent(taskID, commentID))
		if s.search != nil {
			s.search.RemoveComment(commentID)
		}
	}
	return nil
}

// AddReaction records the (emoji, user) pair on a comment. Re-adding an
// existing pair succeeds without inserting and without re-announcing.
func (s *Service) AddReaction(ctx context.Context, session Session, taskID, commentID int64, input ReactionInput) (discussion.Reaction, error) {
	emoji, err := validateEmoji(input.Emoji)
	if err != nil {
		return discussion.Reaction{}, err
	}
	comment, err := s.store.GetComment(ctx, taskID, commentID)
	if err != nil {
		return discussion.Reaction{}, err
	}
	if comment.Status == "deleted" {
		return discussion.Reaction{}, domainError(http.StatusConflict, "GONE", "comment was deleted", nil)
	}

	added, err := s.store.AddReaction(ctx, commentID, emoji, session.UserID)
	if err != nil {
		return discussion.Reaction{}, err
	}
	reaction := discussion.Reaction{Emoji: emoji, UserID: session.UserID}
	if added {
		s.hub.Publish(ctx, realtime.NewReactionAddedEvent(taskID, commentID, reaction))
	}
	return reaction, nil
}

// RemoveReaction deletes the viewer's (emoji, user) pair. Removing an absent
// pair is a no-op.
func (s *Service) RemoveReaction(ctx context.Context, session Session, taskID, commentID int64, emoji string) error {
	emoji, err := validateEmoji(emoji)
	if err != nil {
		return err
	}
	if _, err := s.store.GetComment(ctx, taskID, commentID); err != nil {
		return err
	}

	removed, err := s.store.RemoveReaction(ctx, commentID, emoji, session.UserID)
	if err != nil {
		return err
	}
	if removed {
		s.hub.Publish(ctx, realtime.NewReactionRemovedEvent(taskID, commentID, emoji, session.UserID))
	}
	return nil
}

// ListComments assembles the full comment tree for a task, tombstones
// included so clients can resolve quotes against them. Tombstoned content is
// blanked server-side.
func (s *Service) ListComments(ctx context.Context, taskID int64) ([]discussion.Comment, error) {
	if _, err := s.store.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	rows, err := s.store.ListComments(ctx, taskID)
	if err != nil {
		return nil, err
	}
	reactions, err := s.store.ListTaskReactions(ctx, taskID)
	if err != nil {
		return nil, err
	}

	byComment := make(map[int64][]store.Reaction)
	for _, r := range reactions {
		byComment[r.CommentID] = append(byComment[r.CommentID], r)
	}

	topLevel := make([]discussion.Comment, 0)
	index := make(map[int64]int)
	for _, row := range rows {
		if row.ParentID != 0 {
			continue
		}
		index[row.ID] = len(topLevel)
		topLevel = append(topLevel, toWireComment(row, byComment[row.ID]))
	}
	for _, row := range rows {
		if row.ParentID == 0 {
			continue
		}
		i, ok := index[row.ParentID]
		if !ok {
			log.Printf("app: comment %d has unknown parent %d, skipping", row.ID, row.ParentID)
			continue
		}
		topLevel[i].Replies = append(topLevel[i].Replies, toWireComment(row, byComment[row.ID]))
	}
	return topLevel, nil
}

func (s *Service) ListCommentRevisions(ctx context.Context, taskID, commentID int64) ([]store.CommentRevision, error) {
	if _, err := s.store.GetComment(ctx, taskID, commentID); err != nil {
		return nil, err
	}
	return s.store.ListCommentRevisions(ctx, commentID)
}

// ---- attachments ----

// AddAttachment uploads a file against a comment and records its metadata.
func (s *Service) AddAttachment(ctx context.Context, session Session, taskID, commentID int64, fileName, contentType string, body io.Reader, size int64) (store.Attachment, error) {
	if s.blobs == nil {
		return store.Attachment{}, domainError(http.StatusServiceUnavailable, "ATTACHMENTS_UNAVAILABLE", "Attachment storage not configured", nil)
	}
	if strings.TrimSpace(fileName) == "" {
		return store.Attachment{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "file name is required", nil)
	}
	if size <= 0 || size > maxAttachmentBytes {
		return store.Attachment{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "attachment size out of range", nil)
	}

	comment, err := s.store.GetComment(ctx, taskID, commentID)
	if err != nil {
		return store.Attachment{}, err
	}
	if comment.Status == "deleted" {
		return store.Attachment{}, domainError(http.StatusConflict, "GONE", "comment was deleted", nil)
	}
	if comment.CreatedBy != session.UserID && !s.Can(session.Role, rbac.ActionModerate) {
		return store.Attachment{}, domainError(http.StatusForbidden, "FORBIDDEN", "only the author can attach files", nil)
	}

	key, err := s.blobs.Upload(ctx, taskID, commentID, fileName, contentType, body, size)
	if err != nil {
		return store.Attachment{}, fmt.Errorf("upload attachment: %w", err)
	}

	attachment := store.Attachment{
		ID:          util.NewID("att"),
		CommentID:   commentID,
		FileName:    fileName,
		ContentType: contentType,
		SizeBytes:   size,
		ObjectKey:   key,
		UploadedBy:  session.UserID,
		CreatedAt:   time.Now(),
	}
	if err := s.store.InsertAttachment(ctx, attachment); err != nil {
		return store.Attachment{}, err
	}
	return attachment, nil
}

// ListAttachments returns attachment metadata for a comment.
func (s *Service) ListAttachments(ctx context.Context, taskID, commentID int64) ([]store.Attachment, error) {
	if _, err := s.store.GetComment(ctx, taskID, commentID); err != nil {
		return nil, err
	}
	return s.store.ListCommentAttachments(ctx, commentID)
}

// AttachmentURL returns a short-lived download URL for an attachment.
func (s *Service) AttachmentURL(ctx context.Context, taskID, commentID int64, attachmentID string) (string, error) {
	if s.blobs == nil {
		return "", domainError(http.StatusServiceUnavailable, "ATTACHMENTS_UNAVAILABLE", "Attachment storage not configured", nil)
	}
	if _, err := s.store.GetComment(ctx, taskID, commentID); err != nil {
		return "", err
	}
	attachment, err := s.store.GetAttachment(ctx, attachmentID)
	if err != nil {
		return "", err
	}
	if attachment.CommentID != commentID {
		return "", store.ErrNotFound
	}
	return s.blobs.PresignedURL(ctx, attachment.ObjectKey, attachment.FileName)
}

// ---- search and export ----

// Search runs a full-text query over tasks and comments.
func (s *Service) Search(ctx context.Context, q search.Query) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}, nil
	}
	if q.FilterTaskID != 0 {
		if _, err := s.store.GetTask(ctx, q.FilterTaskID); err != nil {
			return search.Response{}, err
		}
	}
	return s.search.Search(q), nil
}

// ExportTranscript renders a task's discussion in the requested format.
func (s *Service) ExportTranscript(ctx context.Context, taskID int64, format export.Format) (*export.Result, error) {
	if s.exporter == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export not configured", nil)
	}
	return s.exporter.Export(ctx, export.Request{TaskID: taskID, Format: format})
}

func (s *Service) notifyReply(ctx context.Context, task store.Task, reply discussion.Comment, parentAuthorID, actorID string) {
	if s.notifier == nil || parentAuthorID == "" || parentAuthorID == actorID {
		return
	}
	parentAuthor, err := s.store.GetUserByID(ctx, parentAuthorID)
	if err != nil {
		log.Printf("app: lookup reply recipient %s: %v", parentAuthorID, err)
		return
	}
	go s.notifier.NotifyReply(parentAuthor, task, reply)
}

func validateEmoji(emoji string) (string, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "emoji is required", nil)
	}
	if len([]rune(emoji)) > 8 {
		return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "emoji is too long", nil)
	}
	return emoji, nil
}

// toWireComment converts a stored row into the wire shape shared by REST
// responses and push payloads. Deleted content is blanked; the tombstone
// itself is kept addressable.
func toWireComment(row store.Comment, reactions []store.Reaction) discussion.Comment {
	content := row.Content
	if row.Status == "deleted" {
		content = ""
	}
	c := discussion.Comment{
		ID:       row.ID,
		TaskID:   row.TaskID,
		ParentID: row.ParentID,
		Content:  content,
		Author: discussion.Author{
			ID:          row.CreatedBy,
			DisplayName: row.AuthorName,
			Email:       row.AuthorEmail,
		},
		CreatedAt: row.CreatedAt,
		EditedAt:  row.EditedAt,
		Status:    discussion.Status(row.Status),
	}
	for _, r := range reactions {
		c.Reactions = append(c.Reactions, discussion.Reaction{Emoji: r.Emoji, UserID: r.UserID})
	}
	return c
}
