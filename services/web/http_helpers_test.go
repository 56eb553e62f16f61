package web

import (
	"testing"
	"time"
)

func TestParseQueryTime(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *time.Time
	}{
		{name: "empty", raw: "", want: nil},
		{name: "whitespace", raw: "   ", want: nil},
		{name: "rfc3339", raw: "2026-03-10T12:30:00Z", want: ptrTime(2026, 3, 10, 12, 30)},
		{name: "no zone", raw: "2026-03-10T12:30:00", want: ptrTime(2026, 3, 10, 12, 30)},
		{name: "date only", raw: "2026-03-10", want: ptrTime(2026, 3, 10, 0, 0)},
		{name: "malformed", raw: "yesterday", want: nil},
		{name: "partial", raw: "2026-03", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseQueryTime(tt.raw)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("parseQueryTime(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			if got != nil && !got.Equal(*tt.want) {
				t.Fatalf("parseQueryTime(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func ptrTime(year int, month time.Month, day, hour, min int) *time.Time {
	ts := time.Date(year, month, day, hour, min, 0, 0, time.UTC)
	return &ts
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		def  int
		max  int
		want int
	}{
		{name: "empty uses default", raw: "", def: 20, max: 500, want: 20},
		{name: "valid", raw: "35", def: 20, max: 500, want: 35},
		{name: "clamped", raw: "9999", def: 20, max: 500, want: 500},
		{name: "zero uses default", raw: "0", def: 20, max: 500, want: 20},
		{name: "negative uses default", raw: "-5", def: 20, max: 500, want: 20},
		{name: "garbage uses default", raw: "lots", def: 20, max: 500, want: 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseLimit(tt.raw, tt.def, tt.max); got != tt.want {
				t.Fatalf("parseLimit(%q) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}
