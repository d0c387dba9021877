package discussion

import (
	"strings"
	"testing"
)

func TestQuoteRoundTrip(t *testing.T) {
	body := "sounds good, shipping it"
	encoded := EncodeQuote(42, body)

	id, remainder, ok := ParseQuote(encoded)
	if !ok {
		t.Fatal("encoded content not recognized as quoted")
	}
	if id != 42 {
		t.Errorf("id = %d, want 42", id)
	}
	if remainder != body {
		t.Errorf("remainder = %q, want %q", remainder, body)
	}
}

func TestParseQuoteMalformedTags(t *testing.T) {
	cases := []string{
		"no quote here",
		"[quote:abc] letters",
		"[quote:] empty",
		"[quote 12] missing colon",
		" [quote:1] leading space",
		"body then [quote:1] tag",
	}
	for _, content := range cases {
		if _, remainder, ok := ParseQuote(content); ok || remainder != content {
			t.Errorf("ParseQuote(%q) should treat content as unquoted", content)
		}
	}
}

func TestStripQuoteTagsRecursive(t *testing.T) {
	content := EncodeQuote(7, EncodeQuote(3, "innermost"))
	if got := StripQuoteTags(content); got != "innermost" {
		t.Errorf("StripQuoteTags = %q, want innermost", got)
	}
}

func TestResolveQuoteAgainstWholeTree(t *testing.T) {
	s := NewStore()
	s.Upsert(topComment(1, 0))
	quotedReply := replyComment(2, 1, 1)
	quotedReply.Content = "the reply being quoted"
	quotedReply.Author = Author{ID: "u2", DisplayName: "Alice"}
	s.Upsert(quotedReply)

	// A top-level comment may quote a reply.
	ref, remainder, hasQuote := s.ResolveQuote(EncodeQuote(2, "agreed"))
	if !hasQuote {
		t.Fatal("quote tag not detected")
	}
	if !ref.Available() {
		t.Fatalf("reference should resolve: %+v", ref)
	}
	if ref.Author != "Alice" || ref.Snippet != "the reply being quoted" {
		t.Errorf("preview = %+v", ref)
	}
	if remainder != "agreed" {
		t.Errorf("remainder = %q", remainder)
	}
}

func TestResolveQuoteTombstonedTarget(t *testing.T) {
	s := NewStore()
	s.Upsert(topComment(1, 0))
	s.Tombstone(1)

	ref, _, hasQuote := s.ResolveQuote(EncodeQuote(1, "still renders"))
	if !hasQuote || !ref.Deleted {
		t.Errorf("tombstoned target should resolve with Deleted set: %+v", ref)
	}
}

func TestResolveQuoteMissingTarget(t *testing.T) {
	s := NewStore()
	ref, remainder, hasQuote := s.ResolveQuote(EncodeQuote(404, "orphaned"))
	if !hasQuote || !ref.Missing {
		t.Errorf("unknown target should resolve with Missing set: %+v", ref)
	}
	if remainder != "orphaned" {
		t.Errorf("remainder = %q; the surrounding comment must keep its body", remainder)
	}
}

func TestResolveQuoteStripsNestedTagsFromSnippet(t *testing.T) {
	s := NewStore()
	s.Upsert(topComment(1, 0))
	nested := topComment(2, 1)
	nested.Content = EncodeQuote(1, "visible part")
	s.Upsert(nested)

	ref, _, _ := s.ResolveQuote(EncodeQuote(2, "x"))
	if ref.Snippet != "visible part" {
		t.Errorf("snippet = %q, nested tag should be stripped", ref.Snippet)
	}
}

func TestSnippetTruncated(t *testing.T) {
	s := NewStore()
	long := topComment(1, 0)
	long.Content = strings.Repeat("я", 200)
	s.Upsert(long)

	ref, _, _ := s.ResolveQuote(EncodeQuote(1, "x"))
	if got := len([]rune(ref.Snippet)); got != snippetRunes+1 {
		t.Errorf("snippet rune length = %d, want %d plus ellipsis", got, snippetRunes)
	}
	if !strings.HasSuffix(ref.Snippet, "…") {
		t.Error("truncated snippet should end with an ellipsis")
	}
}
