package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Engine renders the HTML views embedded in the package.
type Engine struct {
	templates *template.Template
}

// New initialises an Engine by parsing all embedded templates.
func New() (*Engine, error) {
	t, err := template.New("render").Funcs(template.FuncMap{
		"severityClass": SeverityClass,
		"typeIcon":      TypeIcon,
		"displayTime":   DisplayTime,
	}).ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Engine{templates: t}, nil
}

// Render executes the named template with the provided data and returns the rendered string.
func (e *Engine) Render(name string, data any) (string, error) {
	if e == nil || e.templates == nil {
		return "", fmt.Errorf("nil engine")
	}

	buf := bytes.NewBuffer(nil)
	if err := e.templates.ExecuteTemplate(buf, name, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// SeverityClass maps a severity label onto a badge CSS class. Unrecognized
// labels share the neutral badge so free-text severities still render.
func SeverityClass(severity string) string {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case "high":
		return "badge badge-high"
	case "medium":
		return "badge badge-medium"
	case "low":
		return "badge badge-low"
	default:
		return "badge badge-unknown"
	}
}

// TypeIcon maps an indicator type onto a glyph for the table view.
func TypeIcon(indicatorType string) string {
	switch strings.ToLower(strings.TrimSpace(indicatorType)) {
	case "ipv4", "ipv6":
		return "🖧"
	case "domain", "hostname":
		return "🌐"
	case "url":
		return "🔗"
	case "email":
		return "✉"
	case "file", "hash":
		return "📄"
	case "malware":
		return "🐛"
	case "cve":
		return "⚠"
	default:
		return "•"
	}
}

// DisplayTime formats a timestamp for the table view; zero times render as n/a.
func DisplayTime(t time.Time) string {
	if t.IsZero() {
		return "n/a"
	}
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}
