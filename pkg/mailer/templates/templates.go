package templates

import (
	"bytes"
	"embed"
	"fmt"
	htmpl "html/template"
	"strings"
	"sync"
	texttpl "text/template"
	"time"
)

//go:embed *.tmpl
var FS embed.FS

// LoginNotification is sent after an admin signs in to the dashboard.
const LoginNotification = "login_notification"

// EmailData holds the fields every template may use. Jobs cross the queue as
// JSON, so templates only ever see it as a map (see ToMap).
type EmailData struct {
	Email          string
	RecipientEmail string
	Type           string

	CompanyName  string
	AppName      string
	SupportURL   string
	DashboardURL string

	IP        string
	UserAgent string
	Time      string
	TimeAt    time.Time
}

// ToMap flattens d into EmailJob.Data. TimeAt is omitted when unset.
func ToMap(d EmailData) map[string]any {
	m := map[string]any{
		"Email":          d.Email,
		"RecipientEmail": d.RecipientEmail,
		"Type":           d.Type,
		"CompanyName":    d.CompanyName,
		"AppName":        d.AppName,
		"SupportURL":     d.SupportURL,
		"DashboardURL":   d.DashboardURL,
		"IP":             d.IP,
		"UserAgent":      d.UserAgent,
		"Time":           d.Time,
	}
	if !d.TimeAt.IsZero() {
		m["TimeAt"] = d.TimeAt.Format(time.RFC3339)
	}
	return m
}

// defaultFn supports pipe usage: {{ .Value | default "Fallback" }}
func defaultFn(fallback any, value any) any {
	switch x := value.(type) {
	case nil:
		return fallback
	case string:
		if strings.TrimSpace(x) == "" {
			return fallback
		}
	case int:
		if x == 0 {
			return fallback
		}
	case float64:
		if x == 0 {
			return fallback
		}
	case bool:
		if !x {
			return fallback
		}
	}
	return value
}

var funcs = map[string]any{
	"upper":   strings.ToUpper,
	"default": defaultFn,
}

var (
	parseOnce sync.Once
	htmlSet   *htmpl.Template
	textSet   *texttpl.Template
	parseErr  error
)

// parse loads every embedded template once. *.html.tmpl goes through
// html/template, everything else through text/template.
func parse() error {
	parseOnce.Do(func() {
		htmlSet, parseErr = htmpl.New("mail").Funcs(htmpl.FuncMap(funcs)).ParseFS(FS, "*.html.tmpl")
		if parseErr != nil {
			parseErr = fmt.Errorf("parse html templates: %w", parseErr)
			return
		}
		textSet, parseErr = texttpl.New("mail").Funcs(texttpl.FuncMap(funcs)).ParseFS(FS, "*.subject.tmpl", "*.text.tmpl")
		if parseErr != nil {
			parseErr = fmt.Errorf("parse text templates: %w", parseErr)
		}
	})
	return parseErr
}

type executor interface {
	ExecuteTemplate(w *bytes.Buffer, name string, data any) error
}

type htmlExec struct{ t *htmpl.Template }

func (e htmlExec) ExecuteTemplate(w *bytes.Buffer, name string, data any) error {
	if e.t.Lookup(name) == nil {
		return fmt.Errorf("unknown template %q", name)
	}
	return e.t.ExecuteTemplate(w, name, data)
}

type textExec struct{ t *texttpl.Template }

func (e textExec) ExecuteTemplate(w *bytes.Buffer, name string, data any) error {
	if e.t.Lookup(name) == nil {
		return fmt.Errorf("unknown template %q", name)
	}
	return e.t.ExecuteTemplate(w, name, data)
}

func execute(e executor, name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := e.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("exec %q: %w", name, err)
	}
	return buf.String(), nil
}

// Render produces subject, text and html for the template family name,
// i.e. <name>.subject.tmpl, <name>.text.tmpl and <name>.html.tmpl.
func Render(name string, data any) (subject, text, html string, err error) {
	if err := parse(); err != nil {
		return "", "", "", err
	}
	if subject, err = execute(textExec{textSet}, name+".subject.tmpl", data); err != nil {
		return "", "", "", err
	}
	if text, err = execute(textExec{textSet}, name+".text.tmpl", data); err != nil {
		return "", "", "", err
	}
	if html, err = execute(htmlExec{htmlSet}, name+".html.tmpl", data); err != nil {
		return "", "", "", err
	}
	return strings.TrimSpace(subject), text, html, nil
}
