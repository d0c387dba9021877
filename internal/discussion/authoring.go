package discussion

// MainComposer is the composer key for the top-level composer, used where an
// active reply target of "none" is meant. Comment ids are server-assigned
// starting at 1, so zero never collides.
const MainComposer int64 = 0

// Authoring tracks which single composer is active and which comment, if
// any, is pending as a quote. At most one reply target exists at a time;
// starting a new reply or quote replaces both fields atomically, silently
// discarding whatever the previous composer held.
type Authoring struct {
	target int64
	quote  *QuotedReference
}

// Reply makes commentID the active reply target and clears any pending
// quote. The composer owning that comment should take focus.
func (a *Authoring) Reply(commentID int64) {
	a.target = commentID
	a.quote = nil
}

// Quote stages a quote of the given comment. Quoting a reply attaches the
// new comment to the thread the reply belongs to, so the active target
// becomes parentID; quoting a top-level comment (parentID zero) targets the
// main composer. content is the quoted comment's raw content; its own quote
// tags are stripped from the preview.
func (a *Authoring) Quote(commentID int64, content, author string, parentID int64) {
	a.target = parentID
	a.quote = &QuotedReference{
		ID:      commentID,
		Author:  author,
		Snippet: truncate(StripQuoteTags(content), snippetRunes),
	}
}

// Cancel clears the target and the pending quote.
func (a *Authoring) Cancel() {
	a.target = MainComposer
	a.quote = nil
}

// SubmitSuccess clears the pending quote after a successful send. The reply
// target is kept so a thread stays open for continued conversation.
func (a *Authoring) SubmitSuccess() {
	a.quote = nil
}

// ActiveTarget returns the current reply target, MainComposer meaning the
// top-level composer.
func (a *Authoring) ActiveTarget() int64 { return a.target }

// QuoteFor returns the pending quote if and only if composer is the active
// target. Every other composer sees no quote, whatever its own UI state.
func (a *Authoring) QuoteFor(composer int64) (QuotedReference, bool) {
	if a.quote == nil || composer != a.target {
		return QuotedReference{}, false
	}
	return *a.quote, true
}

// ComposeContent renders the content to submit from the active composer:
// body prefixed with the pending quote's tag when one is staged.
func (a *Authoring) ComposeContent(body string) string {
	if a.quote == nil {
		return body
	}
	return EncodeQuote(a.quote.ID, body)
}
