package core

import (
	"fmt"
	htmltmpl "html/template"
	"io"
	"net/mail"
	"path/filepath"
	"strings"
	"sync"
	texttmpl "text/template"
)

// EmailService is any service that can send emails.
type EmailService interface {
	// SendMessages sends messages concurrently.
	SendMessages(messages ...*EmailMessage)
}

// EmailMessage is either a plain BodyStr message or a templated one.
// Templates are looked up by TemplateName in assets/templates/email (.txt and .gohtml).
type EmailMessage struct {
	To      []mail.Address
	Cc      []mail.Address
	Bcc     []mail.Address
	Subject string
	BodyStr string

	TemplateName string
	TemplateData interface{}
	TextContent  string
	HTMLContent  string
}

// ContextData is what every email template is executed with.
type ContextData struct {
	AppName         string
	FrontendBaseURL string
	Data            interface{}
}

type emailTemplate interface {
	Execute(w io.Writer, data interface{}) error
}

// templateSet holds the parsed email templates, keyed by name then by extension.
type templateSet struct {
	mu     sync.RWMutex
	byName map[string]map[string]emailTemplate
}

var emailTemplates = &templateSet{byName: make(map[string]map[string]emailTemplate)}

func (s *templateSet) get(name, ext string) emailTemplate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byName[name][ext]
}

func (s *templateSet) set(name, ext string, tmpl emailTemplate) {
	if s.byName[name] == nil {
		s.byName[name] = make(map[string]emailTemplate, 2)
	}
	s.byName[name][ext] = tmpl
}

func (m *EmailMessage) execute(ext string, data ContextData) (string, error) {
	tmpl := emailTemplates.get(m.TemplateName, ext)
	if tmpl == nil {
		return "", nil
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("executing %s%s: %w", m.TemplateName, ext, err)
	}
	return sb.String(), nil
}

// Render fills TextContent and HTMLContent. A BodyStr takes precedence over the text template.
func (m *EmailMessage) Render(conf *Config) (err error) {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	}
	if m.TemplateName == "" {
		return nil
	}

	data := ContextData{AppName: conf.AppName, FrontendBaseURL: conf.FrontendBaseURL, Data: m.TemplateData}
	if m.BodyStr == "" {
		if m.TextContent, err = m.execute(".txt", data); err != nil {
			return err
		}
	}
	m.HTMLContent, err = m.execute(".gohtml", data)
	return err
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To)+len(m.Cc)+len(m.Bcc) > 0 }
func (m *EmailMessage) HasContent() bool    { return m.TextContent != "" || m.HTMLContent != "" }

// ParseEmailTemplates loads the email templates found under assets/templates/email.
// Files starting with "_" are base layouts; they are parsed along with every template of the same kind.
func ParseEmailTemplates(conf *Config, logger Logger) {
	dir := filepath.Join(conf.WorkDir, "assets", "templates", "email")
	paths, err := filepath.Glob(filepath.Join(dir, "*"))
	if err != nil {
		logger.Error(fmt.Sprintf("listing email templates: %v", err), err)
		return
	}

	missingKey := "missingkey=default"
	if conf.Debug || conf.TestMode {
		missingKey = "missingkey=error"
	}

	emailTemplates.mu.Lock()
	defer emailTemplates.mu.Unlock()
	for _, path := range paths {
		base := filepath.Base(path)
		if strings.HasPrefix(base, "_") {
			continue
		}
		ext := filepath.Ext(base)
		layout := filepath.Join(dir, "_base"+ext)

		var tmpl emailTemplate
		switch ext {
		case ".txt":
			tmpl, err = texttmpl.New(filepath.Base(layout)).Option(missingKey).ParseFiles(layout, path)
		case ".gohtml":
			tmpl, err = htmltmpl.New(filepath.Base(layout)).Option(missingKey).ParseFiles(layout, path)
		default:
			continue
		}
		if err != nil {
			logger.Error(fmt.Sprintf("parsing email template %s: %v", base, err), err)
			continue
		}
		emailTemplates.set(strings.TrimSuffix(base, ext), ext, tmpl)
	}
}
