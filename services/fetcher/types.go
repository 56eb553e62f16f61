package fetcher

import (
	"time"

	"github.com/google/uuid"
)

// Canonical indicator types. Feed-specific labels are normalized onto this
// set; anything unrecognized keeps its lowercased raw label so new upstream
// categories are stored rather than dropped.
const (
	TypeIPv4     = "ipv4"
	TypeIPv6     = "ipv6"
	TypeDomain   = "domain"
	TypeHostname = "hostname"
	TypeURL      = "url"
	TypeEmail    = "email"
	TypeFile     = "file"
	TypeHash     = "hash"
	TypeMalware  = "malware"
	TypeCVE      = "cve"
	TypeYara     = "yara"
)

// Severity labels. Free-text severities outside this set are preserved as-is.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Indicator is a normalized observable ready for insertion.
// (Indicator, Type) is the dedup key; the store rejects duplicates.
type Indicator struct {
	Indicator string
	Type      string
	Severity  string
	Timestamp time.Time
	Tags      []string
	Source    string
}

// Run summarises one fetch cycle against a single feed.
type Run struct {
	ID         uuid.UUID `db:"id"`
	Source     string    `db:"source"`
	Status     string    `db:"status"`
	Fetched    int       `db:"fetched"`
	Inserted   int       `db:"inserted"`
	Duplicates int       `db:"duplicates"`
	Error      string    `db:"error"`
	ArchiveURL string    `db:"archive_url"`
	StartedAt  time.Time `db:"started_at"`
	FinishedAt time.Time `db:"finished_at"`
}

// Run statuses.
const (
	RunStatusOK    = "ok"
	RunStatusError = "error"
)
