package store

import "postflow/pkg/domain"

// Store is the persistence surface for users, projects, outputs and
// supporting records. Implementations must be safe for concurrent use.
type Store interface {
	// Users.
	SaveUser(u domain.User) error
	GetUserByID(id string) (domain.User, bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)

	// Subscriptions, keyed by user.
	SaveSubscription(sub domain.Subscription) error
	GetSubscription(userID string) (domain.Subscription, bool, error)

	// Projects.
	SaveProject(p domain.Project) error
	GetProject(id string) (domain.Project, bool, error)
	ListProjectsByOwner(ownerID string) ([]domain.Project, error)
	CountProjectsByOwner(ownerID string) (int, error)
	DeleteProject(id string) error

	// Outputs. UpsertOutput keys on (project, platform, series index):
	// regenerating a slot replaces the stored row in place, keeping the
	// slot's identity stable. ListOutputs returns canonical order,
	// series index ascending then platform ascending.
	UpsertOutput(o domain.Output) (domain.Output, error)
	GetOutput(id string) (domain.Output, bool, error)
	ListOutputs(projectID string) ([]domain.Output, error)
	UpdateOutputContent(id, content string) (domain.Output, error)

	// Brand voices.
	SaveBrandVoice(v domain.BrandVoice) error
	GetBrandVoice(id string) (domain.BrandVoice, bool, error)
	ListBrandVoicesByOwner(ownerID string) ([]domain.BrandVoice, error)
	DeleteBrandVoice(id string) error

	// Audio usage, one row per user per billing period.
	GetAudioUsage(userID string) (domain.AudioUsage, bool, error)
	SaveAudioUsage(u domain.AudioUsage) error

	// Audit log, append only.
	AppendAudit(e domain.AuditEntry) error
	ListAuditByUser(userID string, limit int) ([]domain.AuditEntry, error)
}
