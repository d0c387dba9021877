package export

import (
	"bytes"
	"html/template"
	"time"
)

var transcriptTemplate = template.Must(template.New("transcript").Parse(transcriptHTML))

// TemplateData holds data for transcript rendering
type TemplateData struct {
	TaskTitle   string
	GeneratedAt time.Time
	Comments    []TemplateComment
}

// TemplateComment holds one comment, with its replies nested one level deep
type TemplateComment struct {
	Author    string
	Body      string
	CreatedAt time.Time
	Edited    bool
	Deleted   bool
	Quote     string
	Reactions []TemplateReaction
	Replies   []TemplateComment
}

// TemplateReaction is an aggregated emoji badge
type TemplateReaction struct {
	Emoji string
	Count int
}

// RenderTranscriptHTML renders the transcript template with provided data
func RenderTranscriptHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := transcriptTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const transcriptHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.TaskTitle}} — Discussion</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .comment { padding: 0.75rem 1rem; margin: 1rem 0; border-left: 3px solid #333; }
    .comment .author { font-weight: bold; }
    .comment .when { color: #666; font-size: 0.85em; }
    .comment.deleted { color: #999; font-style: italic; border-left-color: #ccc; }
    .quote { background: #f5f5f5; border-left: 3px solid #999; padding: 0.25rem 0.75rem; margin: 0.5rem 0; color: #555; }
    .reactions { font-size: 0.85em; color: #444; }
    .reply { margin-left: 2rem; border-left-color: #888; }
  </style>
</head>
<body>
  <h1>{{.TaskTitle}}</h1>
  <div class="meta">Discussion transcript | generated {{.GeneratedAt.Format "Jan 2, 2006 15:04 MST"}}</div>
  {{range .Comments}}
  <div class="comment{{if .Deleted}} deleted{{end}}">
    {{if .Deleted}}<span>Comment deleted</span>{{else}}
    <div><span class="author">{{.Author}}</span> <span class="when">{{.CreatedAt.Format "Jan 2, 2006 15:04"}}{{if .Edited}} (edited){{end}}</span></div>
    {{if .Quote}}<div class="quote">{{.Quote}}</div>{{end}}
    <div>{{.Body}}</div>
    {{if .Reactions}}<div class="reactions">{{range .Reactions}}{{.Emoji}} {{.Count}} {{end}}</div>{{end}}
    {{end}}
    {{range .Replies}}
    <div class="comment reply{{if .Deleted}} deleted{{end}}">
      {{if .Deleted}}<span>Comment deleted</span>{{else}}
      <div><span class="author">{{.Author}}</span> <span class="when">{{.CreatedAt.Format "Jan 2, 2006 15:04"}}{{if .Edited}} (edited){{end}}</span></div>
      {{if .Quote}}<div class="quote">{{.Quote}}</div>{{end}}
      <div>{{.Body}}</div>
      {{if .Reactions}}<div class="reactions">{{range .Reactions}}{{.Emoji}} {{.Count}} {{end}}</div>{{end}}
      {{end}}
    </div>
    {{end}}
  </div>
  {{end}}
</body>
</html>`
