package fetcher

import (
	"strings"
	"time"
)

var typeAliases = map[string]string{
	"ipv4":             TypeIPv4,
	"ipv6":             TypeIPv6,
	"domain":           TypeDomain,
	"hostname":         TypeHostname,
	"url":              TypeURL,
	"uri":              TypeURL,
	"email":            TypeEmail,
	"filehash-md5":     TypeHash,
	"filehash-sha1":    TypeHash,
	"filehash-sha256":  TypeHash,
	"filehash-imphash": TypeHash,
	"filepath":         TypeFile,
	"file":             TypeFile,
	"malware":          TypeMalware,
	"cve":              TypeCVE,
	"yara":             TypeYara,
}

var severityAliases = map[string]string{
	"low":           SeverityLow,
	"info":          SeverityLow,
	"informational": SeverityLow,
	"medium":        SeverityMedium,
	"moderate":      SeverityMedium,
	"high":          SeverityHigh,
	"critical":      SeverityHigh,
}

// NormalizeType maps a feed's type label onto the canonical set. Unrecognized
// labels are kept lowercased so filters still match what the store holds.
func NormalizeType(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := typeAliases[key]; ok {
		return canonical
	}
	return key
}

// NormalizeSeverity maps severity synonyms onto low/medium/high. Unrecognized
// labels pass through lowercased; an absent severity stays empty rather than
// being invented.
func NormalizeSeverity(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := severityAliases[key]; ok {
		return canonical
	}
	return key
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses the upstream observation time, trying the layouts
// feeds are known to emit. Unparsable values fall back to the provided fetch
// time so a record is never dropped over a bad timestamp.
func ParseTimestamp(raw string, fallback time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC()
		}
	}
	return fallback
}

// Normalize flattens feed pulses into indicator records attributed to source.
// Entries missing the observable value or the type are skipped.
func Normalize(pulses []feedPulse, source string, fetchedAt time.Time) []Indicator {
	var out []Indicator
	for _, pulse := range pulses {
		pulseSeverity := NormalizeSeverity(pulse.Severity)
		for _, entry := range pulse.Indicators {
			value := strings.TrimSpace(entry.Indicator)
			if value == "" || strings.TrimSpace(entry.Type) == "" {
				continue
			}

			severity := NormalizeSeverity(entry.Severity)
			if severity == "" {
				severity = pulseSeverity
			}

			observed := entry.Created
			if observed == "" {
				observed = pulse.Modified
			}

			out = append(out, Indicator{
				Indicator: value,
				Type:      NormalizeType(entry.Type),
				Severity:  severity,
				Timestamp: ParseTimestamp(observed, fetchedAt),
				Tags:      append([]string(nil), pulse.Tags...),
				Source:    source,
			})
		}
	}
	return out
}
