package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"not null"`
	Status       string
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type SubscriptionModel struct {
	UserID    string    `gorm:"primaryKey"`
	Plan      string    `gorm:"not null"`
	Status    string    `gorm:"not null"`
	PeriodEnd time.Time `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

type ProjectModel struct {
	ID            string `gorm:"primaryKey"`
	OwnerID       string `gorm:"not null;index"`
	Title         string `gorm:"not null"`
	SourceContent string `gorm:"type:text;not null"`
	SourceType    string `gorm:"not null"`
	PostTone      string
	BrandVoiceID  string
	SeriesCount   int            `gorm:"not null"`
	SeriesCounts  datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time      `gorm:"not null"`
	UpdatedAt     time.Time
}

// OutputModel rows are unique per (project, platform, series index) so
// regeneration upserts in place instead of accumulating rows.
type OutputModel struct {
	ID              string `gorm:"primaryKey"`
	ProjectID       string `gorm:"not null;uniqueIndex:idx_output_slot,priority:1"`
	Platform        string `gorm:"not null;uniqueIndex:idx_output_slot,priority:2"`
	SeriesIndex     int    `gorm:"not null;uniqueIndex:idx_output_slot,priority:3"`
	Content         string `gorm:"type:text"`
	OriginalContent string `gorm:"type:text"`
	IsEdited        bool   `gorm:"not null"`
	Model           string
	Temperature     float64
	MaxTokens       int
	Provenance      string `gorm:"not null"`
	Success         bool   `gorm:"not null"`
	ErrorMessage    string
	GeneratedAt     time.Time `gorm:"not null"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time
}

type BrandVoiceModel struct {
	ID          string `gorm:"primaryKey"`
	OwnerID     string `gorm:"not null;index"`
	Name        string `gorm:"not null"`
	Description string `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

type AudioUsageModel struct {
	UserID      string    `gorm:"primaryKey"`
	MinutesUsed int       `gorm:"not null"`
	PeriodEnd   time.Time `gorm:"not null"`
	UpdatedAt   time.Time
}

type AuditLogModel struct {
	ID        string         `gorm:"primaryKey"`
	UserID    string         `gorm:"not null;index"`
	Event     string         `gorm:"not null"`
	Metadata  datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"not null;index"`
}
