package render

import (
	"strings"
	"testing"
	"time"
)

func TestSeverityClass(t *testing.T) {
	tests := []struct {
		severity string
		want     string
	}{
		{"high", "badge badge-high"},
		{"HIGH", "badge badge-high"},
		{" medium ", "badge badge-medium"},
		{"low", "badge badge-low"},
		{"", "badge badge-unknown"},
		{"hostile", "badge badge-unknown"},
	}

	for _, tt := range tests {
		if got := SeverityClass(tt.severity); got != tt.want {
			t.Errorf("SeverityClass(%q) = %q, want %q", tt.severity, got, tt.want)
		}
	}
}

func TestTypeIcon(t *testing.T) {
	if TypeIcon("ipv4") == TypeIcon("url") {
		t.Error("expected distinct icons for ipv4 and url")
	}
	if got := TypeIcon("something-new"); got != "•" {
		t.Errorf("TypeIcon fallback = %q, want bullet", got)
	}
}

func TestRenderIndicators(t *testing.T) {
	engine, err := New()
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	type indicator struct {
		Indicator string
		Type      string
		Severity  string
		Timestamp time.Time
		Tags      []string
		Source    string
	}
	type filter struct {
		Type     string
		Severity string
		Tag      string
	}

	out, err := engine.Render("indicators.tmpl", map[string]any{
		"Filter": filter{Severity: "high"},
		"Indicators": []indicator{
			{
				Indicator: "203.0.113.7",
				Type:      "ipv4",
				Severity:  "high",
				Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
				Tags:      []string{"botnet"},
				Source:    "otx",
			},
		},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	for _, want := range []string{"203.0.113.7", "badge badge-high", "botnet", "2026-03-01 12:00:00 UTC"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered output missing %q", want)
		}
	}
}

func TestRenderEmptyResult(t *testing.T) {
	engine, err := New()
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	out, err := engine.Render("indicators.tmpl", map[string]any{
		"Filter":     struct{ Type, Severity, Tag string }{},
		"Indicators": nil,
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "No indicators match") {
		t.Error("expected empty-state message")
	}
}
