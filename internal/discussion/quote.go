package discussion

import (
	"fmt"
	"regexp"
	"strconv"
	"unicode/utf8"
)

// A quote tag is a fixed leading marker of the form "[quote:<id>]" followed
// by the rest of the message. Content without that exact leading pattern —
// including a tag with a non-numeric id — is treated as having no quote.
var quoteTagPattern = regexp.MustCompile(`^\[quote:(\d+)\] ?`)

const snippetRunes = 120

// EncodeQuote prefixes body with a quote tag referencing commentID.
func EncodeQuote(commentID int64, body string) string {
	return fmt.Sprintf("[quote:%d] %s", commentID, body)
}

// ParseQuote extracts a leading quote tag. It returns the referenced id and
// the remainder of the content after the tag, or ok=false when the content
// carries no well-formed tag.
func ParseQuote(content string) (id int64, remainder string, ok bool) {
	m := quoteTagPattern.FindStringSubmatch(content)
	if m == nil {
		return 0, content, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		// Digits overflowing int64; treat as no quote rather than failing.
		return 0, content, false
	}
	return id, content[len(m[0]):], true
}

// StripQuoteTags removes leading quote tags recursively, so the preview of a
// quoted comment that itself quotes another does not cascade.
func StripQuoteTags(content string) string {
	for {
		_, rest, ok := ParseQuote(content)
		if !ok {
			return content
		}
		content = rest
	}
}

// ResolveQuote parses content for a leading quote tag and resolves it against
// the store. hasQuote is false when the content carries no tag. When the tag
// resolves to a tombstoned or unknown comment the reference is returned with
// the Deleted or Missing flag set; the caller renders a placeholder, never an
// error.
func (s *Store) ResolveQuote(content string) (ref QuotedReference, remainder string, hasQuote bool) {
	id, remainder, ok := ParseQuote(content)
	if !ok {
		return QuotedReference{}, content, false
	}
	target, found := s.FindByID(id)
	if !found {
		return QuotedReference{ID: id, Missing: true}, remainder, true
	}
	if target.Deleted() {
		return QuotedReference{ID: id, Author: target.Author.Label(), Deleted: true}, remainder, true
	}
	return QuotedReference{
		ID:      id,
		Author:  target.Author.Label(),
		Snippet: truncate(StripQuoteTags(target.Content), snippetRunes),
	}, remainder, true
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "…"
}
