package live

import (
	"context"
	"errors"
	"fmt"

	"taskdeck/api/internal/discussion"
	"taskdeck/api/internal/realtime"
)

// ErrClosed is returned by operations on a session that has been closed.
var ErrClosed = errors.New("live: session closed")

// ErrUnknownComment is returned when an operation names a comment id the
// session has never seen.
var ErrUnknownComment = errors.New("live: unknown comment")

// Session owns one task's discussion engine for one viewer. All store and
// authoring access runs on a single internal goroutine; push events from the
// task's feed and the results of this session's own REST calls are both
// funneled through it, so the engine never needs locks. After Close, late
// events and stale REST responses are discarded.
type Session struct {
	client   *Client
	feeds    *FeedManager
	taskID   int64
	viewerID string

	store     *discussion.Store
	authoring *discussion.Authoring

	calls  chan func()
	closed chan struct{}
	done   chan struct{}
	sub    *FeedSub
}

func NewSession(client *Client, feeds *FeedManager, taskID int64, viewerID string) *Session {
	return &Session{
		client:    client,
		feeds:     feeds,
		taskID:    taskID,
		viewerID:  viewerID,
		store:     discussion.NewStore(),
		authoring: &discussion.Authoring{},
		calls:     make(chan func()),
		closed:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Open joins the task's feed, loads the full tree, and starts the event
// loop. Joining before the load means a mutation landing mid-load waits in
// the subscription buffer instead of being missed; replaying it over the
// loaded tree is a no-op thanks to upsert-by-id. The load happens before
// the loop starts, so the loop is the store's only writer from here on.
// Every other method requires a prior successful Open.
func (s *Session) Open(ctx context.Context) error {
	sub, err := s.feeds.Acquire(ctx, s.taskID)
	if err != nil {
		return err
	}

	comments, err := s.client.ListComments(ctx, s.taskID)
	if err != nil {
		sub.Close()
		return fmt.Errorf("load task %d comments: %w", s.taskID, err)
	}
	s.sub = sub

	for _, c := range comments {
		s.store.Upsert(c)
	}
	go s.loop()
	return nil
}

// Close leaves the task's feed and stops the loop. Safe to call more than
// once.
func (s *Session) Close() {
	select {
	case <-s.closed:
		return
	default:
	}
	close(s.closed)
	if s.sub != nil {
		s.sub.Close()
	}
}

func (s *Session) loop() {
	defer close(s.done)
	events := s.sub.Events()
	for {
		select {
		case <-s.closed:
			return
		case fn := <-s.calls:
			fn()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.apply(ev)
		}
	}
}

// run executes fn on the loop goroutine and waits for it. Returns false when
// the session closed before fn could run.
func (s *Session) run(fn func()) bool {
	ran := make(chan struct{})
	select {
	case <-s.closed:
		return false
	case s.calls <- func() {
		fn()
		close(ran)
	}:
	}
	select {
	case <-ran:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) apply(ev realtime.Event) {
	if ev.TaskID != s.taskID {
		return
	}
	switch ev.Name {
	case realtime.CommentCreated:
		if c, err := ev.Comment(); err == nil {
			s.store.ApplyCreated(c)
		}
	case realtime.CommentUpdated:
		if c, err := ev.Comment(); err == nil {
			s.store.ApplyUpdated(c)
		}
	case realtime.CommentDeleted:
		if p, err := ev.Deleted(); err == nil {
			s.store.ApplyDeleted(p.CommentID)
		}
	case realtime.ReactionAdded:
		if p, err := ev.ReactionAdd(); err == nil {
			s.store.ApplyReactionAdded(p.CommentID, p.Reaction)
		}
	case realtime.ReactionRemoved:
		if p, err := ev.ReactionRemove(); err == nil {
			s.store.ApplyReactionRemoved(p.CommentID, p.Emoji, p.UserID)
		}
	}
}

// ---- read side ----

// Threads projects the visible tree: tombstones excluded, newest-first at
// both levels.
func (s *Session) Threads() []discussion.Thread {
	var out []discussion.Thread
	s.run(func() { out = s.store.Project() })
	return out
}

// Comment returns a snapshot of one comment, tombstones included.
func (s *Session) Comment(id int64) (discussion.Comment, bool) {
	var (
		c  discussion.Comment
		ok bool
	)
	s.run(func() { c, ok = s.store.FindByID(id) })
	return c, ok
}

// QuotePreview resolves a leading quote tag in content against the session's
// store.
func (s *Session) QuotePreview(content string) (ref discussion.QuotedReference, remainder string, hasQuote bool) {
	s.run(func() { ref, remainder, hasQuote = s.store.ResolveQuote(content) })
	return ref, remainder, hasQuote
}

// Reactions aggregates a comment's reactions for display, marking the groups
// the session's viewer belongs to.
func (s *Session) Reactions(commentID int64) []discussion.ReactionGroup {
	var groups []discussion.ReactionGroup
	s.run(func() {
		if c, ok := s.store.FindByID(commentID); ok {
			groups = discussion.AggregateReactions(c.Reactions, s.viewerID)
		}
	})
	return groups
}

// ---- authoring ----

// Reply focuses the composer for the given comment, discarding any pending
// quote.
func (s *Session) Reply(commentID int64) {
	s.run(func() { s.authoring.Reply(commentID) })
}

// QuoteComment stages a quote of the given comment. Quoting a reply targets
// the reply's thread; quoting a top-level comment targets the main composer.
// Tombstoned and unknown comments cannot be quoted.
func (s *Session) QuoteComment(commentID int64) error {
	err := ErrUnknownComment
	ok := s.run(func() {
		c, found := s.store.FindByID(commentID)
		if !found || c.Deleted() {
			return
		}
		s.authoring.Quote(c.ID, c.Content, c.Author.Label(), c.ParentID)
		err = nil
	})
	if !ok {
		return ErrClosed
	}
	return err
}

// CancelAuthoring clears the reply target and any pending quote.
func (s *Session) CancelAuthoring() {
	s.run(func() { s.authoring.Cancel() })
}

// ActiveTarget reports which composer is active; discussion.MainComposer
// means the top-level composer.
func (s *Session) ActiveTarget() int64 {
	var target int64
	s.run(func() { target = s.authoring.ActiveTarget() })
	return target
}

// QuoteFor returns the pending quote when composer is the active target.
func (s *Session) QuoteFor(composer int64) (discussion.QuotedReference, bool) {
	var (
		ref discussion.QuotedReference
		ok  bool
	)
	s.run(func() { ref, ok = s.authoring.QuoteFor(composer) })
	return ref, ok
}

// ---- mutations ----
//
// Each mutation calls the service first and feeds the authoritative result
// back through the loop. A failed call never touches the store; the caller
// keeps its draft.

// SubmitComment sends the active composer's content: body prefixed with the
// staged quote tag, attached to the active reply target. On success the
// quote is cleared and the reply target is kept.
func (s *Session) SubmitComment(ctx context.Context, body string) (discussion.Comment, error) {
	var (
		content  string
		parentID int64
	)
	if !s.run(func() {
		parentID = s.authoring.ActiveTarget()
		content = s.authoring.ComposeContent(body)
	}) {
		return discussion.Comment{}, ErrClosed
	}

	created, err := s.client.CreateComment(ctx, s.taskID, content, parentID)
	if err != nil {
		return discussion.Comment{}, err
	}

	s.run(func() {
		s.store.ApplyCreated(created)
		s.authoring.SubmitSuccess()
	})
	return created, nil
}

// EditComment replaces a comment's content.
func (s *Session) EditComment(ctx context.Context, commentID int64, content string) (discussion.Comment, error) {
	updated, err := s.client.UpdateComment(ctx, s.taskID, commentID, content)
	if err != nil {
		return discussion.Comment{}, err
	}
	if !s.run(func() { s.store.ApplyUpdated(updated) }) {
		return discussion.Comment{}, ErrClosed
	}
	return updated, nil
}

// DeleteComment tombstones a comment.
func (s *Session) DeleteComment(ctx context.Context, commentID int64) error {
	if err := s.client.DeleteComment(ctx, s.taskID, commentID); err != nil {
		return err
	}
	if !s.run(func() { s.store.ApplyDeleted(commentID) }) {
		return ErrClosed
	}
	return nil
}

// ToggleReaction adds the viewer's reaction when absent and removes it when
// present.
func (s *Session) ToggleReaction(ctx context.Context, commentID int64, emoji string) error {
	var (
		known bool
		add   bool
	)
	if !s.run(func() {
		var c discussion.Comment
		c, known = s.store.FindByID(commentID)
		if known {
			add = discussion.ToggleAction(c.Reactions, emoji, s.viewerID)
		}
	}) {
		return ErrClosed
	}
	if !known {
		return ErrUnknownComment
	}

	if add {
		reaction, err := s.client.AddReaction(ctx, s.taskID, commentID, emoji)
		if err != nil {
			return err
		}
		if !s.run(func() { s.store.ApplyReactionAdded(commentID, reaction) }) {
			return ErrClosed
		}
		return nil
	}

	if err := s.client.RemoveReaction(ctx, s.taskID, commentID, emoji); err != nil {
		return err
	}
	if !s.run(func() { s.store.ApplyReactionRemoved(commentID, emoji, s.viewerID) }) {
		return ErrClosed
	}
	return nil
}
