package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

type Indicator struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Indicator string         `gorm:"type:text;not null;uniqueIndex:idx_indicators_value_type"`
	Type      string         `gorm:"type:text;not null;uniqueIndex:idx_indicators_value_type"`
	Severity  string         `gorm:"type:text"`
	Timestamp time.Time      `gorm:"type:timestamptz;not null;index:idx_indicators_timestamp,sort:desc"`
	Tags      datatypes.JSON `gorm:"type:jsonb"`
	Source    string         `gorm:"type:text;not null"`
	TraceID   string         `gorm:"type:text"`
	FetchedAt time.Time      `gorm:"type:timestamptz;not null;default:now()"`
}

func (Indicator) TableName() string { return "indicators" }

type FetchRun struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Source     string     `gorm:"type:text;not null;index"`
	Status     string     `gorm:"type:text;not null"`
	Fetched    int        `gorm:"type:integer;not null;default:0"`
	Inserted   int        `gorm:"type:integer;not null;default:0"`
	Duplicates int        `gorm:"type:integer;not null;default:0"`
	Error      string     `gorm:"type:text"`
	ArchiveURL string     `gorm:"type:text"`
	StartedAt  time.Time  `gorm:"type:timestamptz;not null"`
	FinishedAt *time.Time `gorm:"type:timestamptz"`
}

func (FetchRun) TableName() string { return "fetch_runs" }

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).AutoMigrate(
		&Indicator{},
		&FetchRun{},
	)
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Migrator().DropTable(
		&FetchRun{},
		&Indicator{},
	)
}
