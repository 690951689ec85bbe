package domain

import "time"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusDisabled UserStatus = "disabled"
)

type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         UserRole   `json:"role"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// SubscriptionStatus mirrors the billing provider's lifecycle states.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// Subscription is the raw stored billing record. The effective plan is always
// derived from it through plan.Resolve, never read directly.
type Subscription struct {
	UserID    string             `json:"userId"`
	Plan      string             `json:"plan"`
	Status    SubscriptionStatus `json:"status"`
	PeriodEnd time.Time          `json:"periodEnd"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// Project holds one piece of source text and its generation configuration.
type Project struct {
	ID            string         `json:"id"`
	OwnerID       string         `json:"ownerId"`
	Title         string         `json:"title"`
	SourceContent string         `json:"sourceContent"`
	SourceType    string         `json:"sourceType"` // text, document, audio
	PostTone      string         `json:"postTone,omitempty"`
	BrandVoiceID  string         `json:"brandVoiceId,omitempty"`
	SeriesCount   int            `json:"seriesCount,omitempty"`
	SeriesCounts  map[string]int `json:"seriesCounts,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// Output is one generated post, identified by (projectID, platform, seriesIndex).
// OriginalContent keeps the first successful generation and is write-once;
// Content may later diverge through user edits.
type Output struct {
	ID              string    `json:"id"`
	ProjectID       string    `json:"projectId"`
	Platform        string    `json:"platform"`
	SeriesIndex     int       `json:"seriesIndex"`
	Content         string    `json:"content"`
	OriginalContent string    `json:"-"`
	IsEdited        bool      `json:"isEdited"`
	Model           string    `json:"model,omitempty"`
	Temperature     float64   `json:"temperature,omitempty"`
	MaxTokens       int       `json:"maxTokens,omitempty"`
	Provenance      string    `json:"-"`
	Success         bool      `json:"success"`
	ErrorMessage    string    `json:"errorMessage,omitempty"`
	GeneratedAt     time.Time `json:"generatedAt"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// BrandVoice is a reusable writing-style profile injected into prompts.
// UpdatedAt participates in cache keys so edits invalidate cached generations.
type BrandVoice struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// AudioUsage accumulates transcribed minutes inside one billing period.
type AudioUsage struct {
	UserID      string    `json:"userId"`
	MinutesUsed int       `json:"minutesUsed"`
	PeriodEnd   time.Time `json:"periodEnd"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// AuditEntry is an append-only record of a business event.
type AuditEntry struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	Event     string            `json:"event"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}
