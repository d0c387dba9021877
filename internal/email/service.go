// Package email delivers outbound mail over SMTP: account verification,
// password resets, and reply notifications. Every send is best-effort from
// the caller's point of view; nothing in the request path waits on SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"net/smtp"
	"strings"

	"taskdeck/api/internal/discussion"
	"taskdeck/api/internal/store"
)

// replyExcerptRunes caps how much of a reply body goes into the
// notification mail.
const replyExcerptRunes = 280

type Config struct {
	Host      string
	Port      string
	Username  string
	Password  string
	From      string
	FromName  string
	BaseURL   string
	EnableTLS bool
}

// Service sends templated HTML mail through a single SMTP relay.
type Service struct {
	cfg  Config
	addr string
	auth smtp.Auth
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewService(cfg Config) *Service {
	return &Service{
		cfg:  cfg,
		addr: cfg.Host + ":" + cfg.Port,
		auth: smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host),
		send: smtp.SendMail,
	}
}

// IsConfigured reports whether the relay settings are complete enough to
// attempt a send.
func (s *Service) IsConfigured() bool {
	return s.cfg.Host != "" && s.cfg.Port != "" && s.cfg.From != ""
}

// deliver renders a template and hands the assembled message to the relay.
func (s *Service) deliver(to, subject, tmpl string, data any) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}
	html, err := renderTemplate(tmpl, data)
	if err != nil {
		return err
	}
	msg := buildMessage(s.sender(), to, subject, html)
	return s.send(s.addr, s.auth, s.cfg.From, []string{to}, msg)
}

func (s *Service) sender() string {
	if s.cfg.FromName == "" {
		return s.cfg.From
	}
	return fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.From)
}

// buildMessage assembles a multipart/alternative message with a plain-text
// fallback part and the rendered HTML part.
func buildMessage(from, to, subject, html string) []byte {
	const boundary = "taskdeck-mail"

	var b bytes.Buffer
	writeHeader := func(k, v string) { fmt.Fprintf(&b, "%s: %s\r\n", k, v) }
	writeHeader("From", from)
	writeHeader("To", to)
	writeHeader("Subject", subject)
	writeHeader("MIME-Version", "1.0")
	writeHeader("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", boundary))
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	writeHeader("Content-Type", "text/plain; charset=UTF-8")
	b.WriteString("\r\nThis message requires an HTML-capable mail client.\r\n\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	writeHeader("Content-Type", "text/html; charset=UTF-8")
	b.WriteString("\r\n")
	b.WriteString(html)
	fmt.Fprintf(&b, "\r\n\r\n--%s--\r\n", boundary)

	return b.Bytes()
}

func renderTemplate(tmpl string, data any) (string, error) {
	t, err := template.New("email").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return buf.String(), nil
}

// actionURL joins the configured app base URL with a frontend route.
func (s *Service) actionURL(path, token string) string {
	return fmt.Sprintf("%s%s?token=%s", strings.TrimRight(s.cfg.BaseURL, "/"), path, token)
}

type accountMailData struct {
	UserName  string
	ActionURL string
	ExpiresIn string
}

// SendVerificationEmail mails a new account its email verification link.
func (s *Service) SendVerificationEmail(to, userName, token string) error {
	data := accountMailData{
		UserName:  userName,
		ActionURL: s.actionURL("/verify-email", token),
		ExpiresIn: "24 hours",
	}
	if err := s.deliver(to, "Verify your Taskdeck account", verificationTemplate, data); err != nil {
		return fmt.Errorf("verification mail: %w", err)
	}
	return nil
}

// SendPasswordResetEmail mails a password reset link. userName may be empty;
// the template degrades to a generic greeting.
func (s *Service) SendPasswordResetEmail(to, userName, token string) error {
	data := accountMailData{
		UserName:  userName,
		ActionURL: s.actionURL("/reset-password", token),
		ExpiresIn: "1 hour",
	}
	if err := s.deliver(to, "Reset your Taskdeck password", passwordResetTemplate, data); err != nil {
		return fmt.Errorf("password reset mail: %w", err)
	}
	return nil
}

type replyMailData struct {
	UserName    string
	ReplyAuthor string
	TaskTitle   string
	ReplyBody   string
	TaskURL     string
}

// NotifyReply mails the parent comment's author when someone replies to
// them. Failures are logged, not returned; notification mail must never
// fail the comment write.
func (s *Service) NotifyReply(parentAuthor store.User, task store.Task, reply discussion.Comment) {
	if !s.IsConfigured() || parentAuthor.Email == "" {
		return
	}

	body := discussion.StripQuoteTags(reply.Content)
	if runes := []rune(body); len(runes) > replyExcerptRunes {
		body = string(runes[:replyExcerptRunes]) + "…"
	}

	data := replyMailData{
		UserName:    parentAuthor.DisplayName,
		ReplyAuthor: reply.Author.Label(),
		TaskTitle:   task.Title,
		ReplyBody:   body,
		TaskURL:     fmt.Sprintf("%s/tasks/%d", strings.TrimRight(s.cfg.BaseURL, "/"), task.ID),
	}

	subject := fmt.Sprintf("%s replied to your comment on %q", data.ReplyAuthor, task.Title)
	if err := s.deliver(parentAuthor.Email, subject, replyTemplate, data); err != nil {
		log.Printf("email: reply notification to %s: %v", parentAuthor.Email, err)
	}
}

// Templates share one inline style block; mail clients ignore external CSS.
const mailStyle = `body{font-family:system-ui,-apple-system,'Segoe UI',sans-serif;color:#1f2933;max-width:560px;margin:0 auto;padding:24px;line-height:1.5}
h1{font-size:18px;border-bottom:2px solid #2563eb;padding-bottom:8px}
a.btn{display:inline-block;background:#2563eb;color:#fff;padding:10px 22px;border-radius:4px;text-decoration:none;margin:16px 0}
p.url{word-break:break-all;color:#2563eb;font-size:13px}
blockquote{background:#f1f5f9;border-left:3px solid #2563eb;margin:16px 0;padding:10px 14px}
footer{margin-top:28px;border-top:1px solid #e2e8f0;padding-top:12px;font-size:12px;color:#64748b}`

const verificationTemplate = `<!DOCTYPE html>
<html><head><meta charset="UTF-8"><style>` + mailStyle + `</style></head>
<body>
<h1>Taskdeck</h1>
<p>Welcome{{with .UserName}}, {{.}}{{end}}!</p>
<p>Confirm your email address to activate your account.</p>
<p><a class="btn" href="{{.ActionURL}}">Verify email address</a></p>
<p>Or open this link directly:</p>
<p class="url">{{.ActionURL}}</p>
<p>The link expires in {{.ExpiresIn}}.</p>
<footer>If you did not sign up for Taskdeck, ignore this email.</footer>
</body></html>`

const passwordResetTemplate = `<!DOCTYPE html>
<html><head><meta charset="UTF-8"><style>` + mailStyle + `</style></head>
<body>
<h1>Taskdeck</h1>
<p>Hi{{with .UserName}} {{.}}{{end}},</p>
<p>Someone asked to reset the password for this account. If that was you,
pick a new password here:</p>
<p><a class="btn" href="{{.ActionURL}}">Reset password</a></p>
<p>Or open this link directly:</p>
<p class="url">{{.ActionURL}}</p>
<p>The link expires in {{.ExpiresIn}} and can be used once.</p>
<footer>If you did not request a reset, ignore this email; your password is
unchanged.</footer>
</body></html>`

const replyTemplate = `<!DOCTYPE html>
<html><head><meta charset="UTF-8"><style>` + mailStyle + `</style></head>
<body>
<h1>Taskdeck</h1>
<p>Hi{{with .UserName}} {{.}}{{end}},</p>
<p><strong>{{.ReplyAuthor}}</strong> replied to your comment on
<strong>{{.TaskTitle}}</strong>:</p>
<blockquote>{{.ReplyBody}}</blockquote>
<p><a class="btn" href="{{.TaskURL}}">View discussion</a></p>
<footer>You are receiving this because someone replied to your comment.</footer>
</body></html>`
