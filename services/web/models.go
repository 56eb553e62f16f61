package web

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type indicatorModel struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Indicator string         `gorm:"type:text;not null"`
	Type      string         `gorm:"type:text;not null"`
	Severity  string         `gorm:"type:text"`
	Timestamp time.Time      `gorm:"type:timestamptz;not null"`
	Tags      datatypes.JSON `gorm:"type:jsonb"`
	Source    string         `gorm:"type:text;not null"`
	TraceID   string         `gorm:"type:text"`
	FetchedAt time.Time      `gorm:"type:timestamptz;not null"`
}

func (indicatorModel) TableName() string { return "indicators" }

func (m indicatorModel) toAPI() Indicator {
	return Indicator{
		ID:        m.ID,
		Indicator: m.Indicator,
		Type:      m.Type,
		Severity:  m.Severity,
		Timestamp: m.Timestamp,
		Tags:      tagsFromJSON(m.Tags),
		Source:    m.Source,
		FetchedAt: m.FetchedAt,
	}
}

type fetchRunModel struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Source     string     `gorm:"type:text;not null"`
	Status     string     `gorm:"type:text;not null"`
	Fetched    int        `gorm:"type:integer;not null"`
	Inserted   int        `gorm:"type:integer;not null"`
	Duplicates int        `gorm:"type:integer;not null"`
	Error      string     `gorm:"type:text"`
	ArchiveURL string     `gorm:"type:text"`
	StartedAt  time.Time  `gorm:"type:timestamptz;not null"`
	FinishedAt *time.Time `gorm:"type:timestamptz"`
}

func (fetchRunModel) TableName() string { return "fetch_runs" }

func (m fetchRunModel) toAPI() RunSummary {
	return RunSummary{
		ID:         m.ID,
		Source:     m.Source,
		Status:     m.Status,
		Fetched:    m.Fetched,
		Inserted:   m.Inserted,
		Duplicates: m.Duplicates,
		Error:      m.Error,
		ArchiveURL: m.ArchiveURL,
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
	}
}

func tagsFromJSON(src datatypes.JSON) []string {
	if len(src) == 0 {
		return []string{}
	}
	var tags []string
	if err := json.Unmarshal(src, &tags); err != nil {
		return []string{}
	}
	return tags
}
