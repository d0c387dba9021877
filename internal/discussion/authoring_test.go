package discussion

import (
	"strings"
	"testing"
)

func TestReplyReplacesPreviousTarget(t *testing.T) {
	var a Authoring
	a.Reply(5)
	a.Reply(9)

	if a.ActiveTarget() != 9 {
		t.Errorf("target = %d, want 9", a.ActiveTarget())
	}
	if _, ok := a.QuoteFor(5); ok {
		t.Error("composer 5 must not see a quote after losing the target")
	}
}

func TestReplyClearsPendingQuote(t *testing.T) {
	var a Authoring
	a.Quote(3, "quoted", "Alice", 0)
	a.Reply(8)

	if _, ok := a.QuoteFor(8); ok {
		t.Error("starting a reply must drop the staged quote")
	}
}

func TestQuoteOfReplyTargetsItsParent(t *testing.T) {
	var a Authoring
	a.Quote(12, "reply body", "Bob", 7)

	if a.ActiveTarget() != 7 {
		t.Errorf("target = %d, want the quoted reply's parent 7", a.ActiveTarget())
	}
	if _, ok := a.QuoteFor(7); !ok {
		t.Error("the parent thread's composer should hold the quote")
	}
}

func TestQuoteOfTopLevelTargetsMainComposer(t *testing.T) {
	var a Authoring
	a.Reply(4)
	a.Quote(9, "top-level body", "Cara", 0)

	if a.ActiveTarget() != MainComposer {
		t.Errorf("target = %d, want the main composer", a.ActiveTarget())
	}
	q, ok := a.QuoteFor(MainComposer)
	if !ok || q.ID != 9 || q.Author != "Cara" {
		t.Errorf("main composer quote = %+v, %v", q, ok)
	}
	if _, ok := a.QuoteFor(4); ok {
		t.Error("the abandoned reply composer must not see the quote")
	}
}

func TestQuoteThenReplySubmission(t *testing.T) {
	// Task has [{id:1}, {id:2, parentId:1}]; quoting the reply then
	// submitting "thanks" must land under comment 1 with a [quote:2] prefix.
	var a Authoring
	a.Quote(2, "hi", "Alice", 1)

	if a.ActiveTarget() != 1 {
		t.Fatalf("target = %d, want 1", a.ActiveTarget())
	}
	content := a.ComposeContent("thanks")
	if !strings.HasPrefix(content, "[quote:2]") {
		t.Errorf("content = %q, want a leading reference to id 2", content)
	}
	id, rest, ok := ParseQuote(content)
	if !ok || id != 2 || rest != "thanks" {
		t.Errorf("round trip = (%d, %q, %v)", id, rest, ok)
	}
}

func TestSubmitSuccessKeepsThreadOpen(t *testing.T) {
	var a Authoring
	a.Quote(2, "hi", "Alice", 1)
	a.SubmitSuccess()

	if a.ActiveTarget() != 1 {
		t.Error("successful submit should keep the thread expanded")
	}
	if _, ok := a.QuoteFor(1); ok {
		t.Error("successful submit must clear the quote")
	}
	if got := a.ComposeContent("next"); got != "next" {
		t.Errorf("ComposeContent = %q after quote cleared", got)
	}
}

func TestCancelReturnsToIdle(t *testing.T) {
	var a Authoring
	a.Quote(2, "hi", "Alice", 1)
	a.Cancel()

	if a.ActiveTarget() != MainComposer {
		t.Error("cancel should clear the target")
	}
	if _, ok := a.QuoteFor(MainComposer); ok {
		t.Error("cancel should clear the quote")
	}
}
