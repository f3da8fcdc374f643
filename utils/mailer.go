package utils

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
	"mailkit/config"
	"mailkit/models"
)

// Dialer opens an SMTP session. *gomail.Dialer satisfies it.
type Dialer interface {
	Dial() (gomail.SendCloser, error)
}

// MassMailItem is one message of a SendMassMail batch.
type MassMailItem struct {
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	Recipients []string `json:"recipients"`
}

// Mail assembles messages and delivers them over SMTP.
type Mail struct {
	Config  config.MailConfig
	Dialer  Dialer
	Checker *Checker
	Logger  logrus.FieldLogger

	mu        sync.Mutex
	outboxes  []*Outbox
	templates map[string]*template.Template
}

func NewMail(cfg config.MailConfig, logger logrus.FieldLogger) (*Mail, error) {
	if err := ValidateStruct(cfg); err != nil {
		return nil, fmt.Errorf("invalid mail configuration: %w", err)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	username, password := cfg.Username, cfg.Password
	if !cfg.UseCredentials {
		username, password = "", ""
	}
	dialer := gomail.NewDialer(cfg.Server, cfg.Port, username, password)
	dialer.SSL = cfg.UseSSL
	dialer.TLSConfig = &tls.Config{
		ServerName:         cfg.Server,
		InsecureSkipVerify: !cfg.ValidateCerts,
	}
	if cfg.LocalName != "" {
		dialer.LocalName = cfg.LocalName
	}

	return &Mail{
		Config:    cfg,
		Dialer:    dialer,
		Logger:    logger.WithField("component", "mail"),
		templates: make(map[string]*template.Template),
	}, nil
}

// SendMessage validates, optionally renders and delivers msg. When
// templateName is set the template output becomes the HTML body and
// msg.Subtype is switched to html.
func (m *Mail) SendMessage(ctx context.Context, msg *models.Message, templateName string) error {
	if err := ValidateStruct(msg); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}

	if templateName == "" && msg.HasTemplateData() {
		return ErrTemplateDataWithoutTemplate
	}
	if templateName != "" {
		if msg.HTML != "" {
			return ErrTemplateWithHTML
		}
		rendered, err := m.render(templateName, msg)
		if err != nil {
			return err
		}
		msg.Rendered = rendered
		msg.Subtype = models.SubtypeHTML
	}

	if err := m.checkRecipients(ctx, msg); err != nil {
		return err
	}

	gm, err := m.buildMessage(msg)
	if err != nil {
		return err
	}
	return m.deliver(ctx, gm)
}

// SendMail sends a plain-text message.
func (m *Mail) SendMail(ctx context.Context, subject, body string, recipients []string) error {
	return m.SendMessage(ctx, &models.Message{
		Subject:    subject,
		Body:       body,
		Recipients: recipients,
		Subtype:    models.SubtypePlain,
	}, "")
}

// SendMassMail delivers every item over a single SMTP session.
func (m *Mail) SendMassMail(ctx context.Context, items []MassMailItem) error {
	msgs := make([]*gomail.Message, 0, len(items))
	for i, item := range items {
		msg := &models.Message{
			Subject:    item.Subject,
			Body:       item.Body,
			Recipients: item.Recipients,
			Subtype:    models.SubtypePlain,
		}
		if err := ValidateStruct(msg); err != nil {
			return fmt.Errorf("invalid message %d: %w", i, err)
		}
		if err := m.checkRecipients(ctx, msg); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
		gm, err := m.buildMessage(msg)
		if err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
		msgs = append(msgs, gm)
	}
	return m.deliver(ctx, msgs...)
}

// RecordMessages starts capturing every delivered message. Call the returned
// function to stop recording.
func (m *Mail) RecordMessages() (*Outbox, func()) {
	outbox := &Outbox{}
	m.mu.Lock()
	m.outboxes = append(m.outboxes, outbox)
	m.mu.Unlock()

	return outbox, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, o := range m.outboxes {
			if o == outbox {
				m.outboxes = append(m.outboxes[:i], m.outboxes[i+1:]...)
				return
			}
		}
	}
}

func (m *Mail) checkRecipients(ctx context.Context, msg *models.Message) error {
	if !m.Config.CheckRecipients || m.Checker == nil {
		return nil
	}
	for _, list := range [][]string{msg.Recipients, msg.CC, msg.BCC} {
		for _, rcpt := range list {
			blocked, err := m.Checker.IsBlocked(ctx, rcpt)
			if err != nil {
				return err
			}
			if blocked {
				return fmt.Errorf("%w: %s", ErrBlockedRecipient, rcpt)
			}
		}
	}
	return nil
}

func (m *Mail) deliver(ctx context.Context, msgs ...*gomail.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !m.Config.SuppressSend {
		sc, err := m.Dialer.Dial()
		if err != nil {
			return fmt.Errorf("error connecting to SMTP server: %w", err)
		}
		sendErr := gomail.Send(sc, msgs...)
		if err := sc.Close(); err != nil {
			m.Logger.WithField("error", err.Error()).Warn("Error closing SMTP connection")
		}
		if sendErr != nil {
			return fmt.Errorf("error sending email: %w", sendErr)
		}
	}

	m.record(msgs)
	m.Logger.WithFields(logrus.Fields{
		"messages":   len(msgs),
		"suppressed": m.Config.SuppressSend,
	}).Debug("Email delivered")
	return nil
}

func (m *Mail) record(msgs []*gomail.Message) {
	m.mu.Lock()
	outboxes := append([]*Outbox(nil), m.outboxes...)
	m.mu.Unlock()
	if len(outboxes) == 0 {
		return
	}

	for _, gm := range msgs {
		var buf bytes.Buffer
		if _, err := gm.WriteTo(&buf); err != nil {
			m.Logger.WithField("error", err.Error()).Warn("Failed to record message")
			continue
		}
		for _, o := range outboxes {
			o.add(buf.Bytes())
		}
	}
}

func (m *Mail) buildMessage(msg *models.Message) (*gomail.Message, error) {
	gm := gomail.NewMessage()
	gm.SetHeader("From", gm.FormatAddress(m.Config.From, m.Config.FromName))
	gm.SetHeader("To", msg.Recipients...)
	if len(msg.CC) > 0 {
		gm.SetHeader("Cc", msg.CC...)
	}
	if len(msg.BCC) > 0 {
		gm.SetHeader("Bcc", msg.BCC...)
	}
	if len(msg.ReplyTo) > 0 {
		gm.SetHeader("Reply-To", msg.ReplyTo...)
	}
	gm.SetHeader("Subject", msg.Subject)
	for k, v := range msg.Headers {
		gm.SetHeader(k, v)
	}

	html := msg.HTML
	if msg.Rendered != "" {
		html = msg.Rendered
	}
	switch {
	case html != "" && msg.Body != "":
		gm.SetBody("text/plain", msg.Body)
		gm.AddAlternative("text/html", html)
	case html != "":
		gm.SetBody("text/html", html)
	default:
		subtype := msg.Subtype
		if subtype == "" {
			subtype = models.SubtypePlain
		}
		gm.SetBody("text/"+subtype, msg.Body)
	}

	for i, a := range msg.Attachments {
		if err := attach(gm, a); err != nil {
			return nil, fmt.Errorf("attachment %d: %w", i, err)
		}
	}
	return gm, nil
}

func attach(gm *gomail.Message, a models.Attachment) error {
	name := a.Filename
	if name == "" {
		name = filepath.Base(a.Path)
	}
	if name == "" || name == "." {
		return fmt.Errorf("attachment has no filename")
	}

	mimeType, subtype := a.MimeType, a.MimeSubtype
	if mimeType == "" {
		mimeType = "application"
	}
	if subtype == "" {
		subtype = "octet-stream"
	}
	headers := map[string][]string{
		"Content-Type": {fmt.Sprintf("%s/%s; name=%q", mimeType, subtype, name)},
	}
	for k, v := range a.Headers {
		headers[k] = []string{v}
	}

	if a.Content != nil {
		content := a.Content
		gm.Attach(name,
			gomail.SetHeader(headers),
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(content)
				return err
			}))
		return nil
	}

	if _, err := os.Stat(a.Path); err != nil {
		return fmt.Errorf("cannot read attachment: %w", err)
	}
	gm.Attach(a.Path, gomail.Rename(name), gomail.SetHeader(headers))
	return nil
}

func (m *Mail) render(name string, msg *models.Message) (string, error) {
	tmpl, err := m.template(name)
	if err != nil {
		return "", err
	}

	var data interface{} = map[string]interface{}{"Body": msg.TemplateBody}
	if len(msg.TemplateParams) > 0 {
		data = msg.TemplateParams
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return "", fmt.Errorf("error executing template: %w", err)
	}
	return body.String(), nil
}

func (m *Mail) template(name string) (*template.Template, error) {
	if m.Config.TemplateFolder == "" {
		return nil, fmt.Errorf("template '%s' requested but no template folder is configured", name)
	}
	clean := filepath.Clean(name)
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return nil, fmt.Errorf("template '%s' is outside the template folder", name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if tmpl, ok := m.templates[clean]; ok {
		return tmpl, nil
	}

	tmpl, err := template.ParseFiles(filepath.Join(m.Config.TemplateFolder, clean))
	if err != nil {
		return nil, fmt.Errorf("error parsing template: %w", err)
	}
	if m.templates == nil {
		m.templates = make(map[string]*template.Template)
	}
	m.templates[clean] = tmpl
	return tmpl, nil
}
