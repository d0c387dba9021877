package export

import (
	"context"
	"fmt"
	"time"

	"taskdeck/api/internal/discussion"
	"taskdeck/api/internal/store"
)

// TranscriptStore supplies the task and its assembled comment tree.
type TranscriptStore interface {
	GetTask(ctx context.Context, taskID int64) (store.Task, error)
	ListComments(ctx context.Context, taskID int64) ([]discussion.Comment, error)
}

// Service renders discussion transcripts
type Service struct {
	store TranscriptStore
}

// NewService creates a new export service
func NewService(store TranscriptStore) *Service {
	return &Service{store: store}
}

// Export generates a transcript in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	task, err := s.store.GetTask(ctx, req.TaskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	comments, err := s.store.ListComments(ctx, req.TaskID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	data := buildTemplateData(task.Title, comments)

	html, err := RenderTranscriptHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(task.Title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		return exportPDF(html, task.Title)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
}

// buildTemplateData flattens the comment tree into template rows. Quote tags
// are resolved against the same tree, so a quote of a deleted or missing
// comment renders as unavailable rather than leaking the raw tag.
func buildTemplateData(title string, comments []discussion.Comment) TemplateData {
	lookup := discussion.NewStore()
	for _, c := range comments {
		lookup.Upsert(c)
	}

	data := TemplateData{TaskTitle: title, GeneratedAt: time.Now()}
	for _, c := range comments {
		row := toTemplateComment(lookup, c)
		for _, reply := range c.Replies {
			row.Replies = append(row.Replies, toTemplateComment(lookup, reply))
		}
		data.Comments = append(data.Comments, row)
	}
	return data
}

func toTemplateComment(lookup *discussion.Store, c discussion.Comment) TemplateComment {
	row := TemplateComment{
		Author:    c.Author.Label(),
		CreatedAt: c.CreatedAt,
		Edited:    c.Edited(),
		Deleted:   c.Deleted(),
	}

	quote, body, hasQuote := lookup.ResolveQuote(c.Content)
	row.Body = body
	if hasQuote {
		if quote.Available() {
			row.Quote = fmt.Sprintf("%s: %s", quote.Author, quote.Snippet)
		} else {
			row.Quote = "Quoted comment unavailable"
		}
	}

	for _, g := range discussion.AggregateReactions(c.Reactions, "") {
		row.Reactions = append(row.Reactions, TemplateReaction{Emoji: g.Emoji, Count: g.Count})
	}
	return row
}
