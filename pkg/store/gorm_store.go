package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"postflow/pkg/domain"
)

const migrateLockID int64 = 52105210

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&UserModel{},
			&SubscriptionModel{},
			&ProjectModel{},
			&OutputModel{},
			&BrandVoiceModel{},
			&AudioUsageModel{},
			&AuditLogModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if err := tx.Exec(`
			DO $$
			BEGIN
				DELETE FROM output_models o
				WHERE NOT EXISTS (SELECT 1 FROM project_models p WHERE p.id = o.project_id);
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'output_models'
					AND constraint_name = 'output_models_project_id_fkey'
				) THEN
					ALTER TABLE output_models
					ADD CONSTRAINT output_models_project_id_fkey
					FOREIGN KEY (project_id) REFERENCES project_models(id) ON DELETE CASCADE;
				END IF;
			END $$;
		`).Error; err != nil {
			return fmt.Errorf("ensure output foreign keys: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "password_hash", "role", "status", "updated_at"}),
	}).Create(&model).Error
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// SaveSubscription stores or replaces the user's subscription row.
func (s *GormStore) SaveSubscription(sub domain.Subscription) error {
	model := subscriptionToModel(sub)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"plan", "status", "period_end", "updated_at"}),
	}).Create(&model).Error
}

// GetSubscription returns the subscription for a user, if any.
func (s *GormStore) GetSubscription(userID string) (domain.Subscription, bool, error) {
	var model SubscriptionModel
	if err := s.db.First(&model, "user_id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Subscription{}, false, nil
		}
		return domain.Subscription{}, false, err
	}
	return subscriptionFromModel(model), true, nil
}

// SaveProject stores or updates a project.
func (s *GormStore) SaveProject(p domain.Project) error {
	model, err := projectToModel(p)
	if err != nil {
		return err
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "source_content", "source_type", "post_tone", "brand_voice_id", "series_count", "series_counts", "updated_at"}),
	}).Create(&model).Error
}

// GetProject retrieves a project.
func (s *GormStore) GetProject(id string) (domain.Project, bool, error) {
	var model ProjectModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Project{}, false, nil
		}
		return domain.Project{}, false, err
	}
	p, err := projectFromModel(model)
	if err != nil {
		return domain.Project{}, false, err
	}
	return p, true, nil
}

// ListProjectsByOwner returns the owner's projects ordered by created_at.
func (s *GormStore) ListProjectsByOwner(ownerID string) ([]domain.Project, error) {
	var models []ProjectModel
	if err := s.db.Where("owner_id = ?", ownerID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Project, 0, len(models))
	for _, m := range models {
		p, err := projectFromModel(m)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, nil
}

// CountProjectsByOwner returns the number of projects the owner holds.
func (s *GormStore) CountProjectsByOwner(ownerID string) (int, error) {
	var count int64
	if err := s.db.Model(&ProjectModel{}).Where("owner_id = ?", ownerID).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// DeleteProject removes a project; outputs cascade via foreign key.
func (s *GormStore) DeleteProject(id string) error {
	return s.db.Delete(&ProjectModel{}, "id = ?", id).Error
}

// UpsertOutput inserts or replaces the row for the output's slot. Slot
// identity (row ID) survives regeneration; original_content is set once
// on the first successful generation and never overwritten after.
func (s *GormStore) UpsertOutput(o domain.Output) (domain.Output, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	model := outputToModel(o)
	model.CreatedAt = now
	model.UpdatedAt = now
	if o.Success && model.OriginalContent == "" {
		model.OriginalContent = model.Content
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "project_id"}, {Name: "platform"}, {Name: "series_index"}},
		DoUpdates: clause.Assignments(map[string]any{
			"content":       model.Content,
			"is_edited":     false,
			"model":         model.Model,
			"temperature":   model.Temperature,
			"max_tokens":    model.MaxTokens,
			"provenance":    model.Provenance,
			"success":       model.Success,
			"error_message": model.ErrorMessage,
			"generated_at":  model.GeneratedAt,
			"updated_at":    now,
			"original_content": gorm.Expr(
				"CASE WHEN output_models.original_content <> '' THEN output_models.original_content ELSE EXCLUDED.original_content END",
			),
		}),
	}).Create(&model).Error
	if err != nil {
		return domain.Output{}, err
	}
	var stored OutputModel
	if err := s.db.First(&stored, "project_id = ? AND platform = ? AND series_index = ?",
		o.ProjectID, o.Platform, o.SeriesIndex).Error; err != nil {
		return domain.Output{}, err
	}
	return outputFromModel(stored), nil
}

// GetOutput retrieves an output by ID.
func (s *GormStore) GetOutput(id string) (domain.Output, bool, error) {
	var model OutputModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Output{}, false, nil
		}
		return domain.Output{}, false, err
	}
	return outputFromModel(model), true, nil
}

// ListOutputs returns the project's outputs in canonical order:
// series index ascending, then platform ascending.
func (s *GormStore) ListOutputs(projectID string) ([]domain.Output, error) {
	var models []OutputModel
	if err := s.db.Where("project_id = ?", projectID).
		Order("series_index ASC, platform ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Output, 0, len(models))
	for _, m := range models {
		res = append(res, outputFromModel(m))
	}
	return res, nil
}

// UpdateOutputContent replaces the output's content with a user edit and
// marks it edited. The original generated text stays untouched.
func (s *GormStore) UpdateOutputContent(id, content string) (domain.Output, error) {
	res := s.db.Model(&OutputModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"content":    content,
			"is_edited":  true,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return domain.Output{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Output{}, gorm.ErrRecordNotFound
	}
	var model OutputModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		return domain.Output{}, err
	}
	return outputFromModel(model), nil
}

// SaveBrandVoice stores or updates a brand voice.
func (s *GormStore) SaveBrandVoice(v domain.BrandVoice) error {
	model := brandVoiceToModel(v)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "updated_at"}),
	}).Create(&model).Error
}

// GetBrandVoice retrieves a brand voice.
func (s *GormStore) GetBrandVoice(id string) (domain.BrandVoice, bool, error) {
	var model BrandVoiceModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.BrandVoice{}, false, nil
		}
		return domain.BrandVoice{}, false, err
	}
	return brandVoiceFromModel(model), true, nil
}

// ListBrandVoicesByOwner returns the owner's brand voices ordered by created_at.
func (s *GormStore) ListBrandVoicesByOwner(ownerID string) ([]domain.BrandVoice, error) {
	var models []BrandVoiceModel
	if err := s.db.Where("owner_id = ?", ownerID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.BrandVoice, 0, len(models))
	for _, m := range models {
		res = append(res, brandVoiceFromModel(m))
	}
	return res, nil
}

// DeleteBrandVoice removes a brand voice.
func (s *GormStore) DeleteBrandVoice(id string) error {
	return s.db.Delete(&BrandVoiceModel{}, "id = ?", id).Error
}

// GetAudioUsage returns the user's audio usage row for the current period.
func (s *GormStore) GetAudioUsage(userID string) (domain.AudioUsage, bool, error) {
	var model AudioUsageModel
	if err := s.db.First(&model, "user_id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.AudioUsage{}, false, nil
		}
		return domain.AudioUsage{}, false, err
	}
	return audioUsageFromModel(model), true, nil
}

// SaveAudioUsage stores or replaces the user's audio usage row.
func (s *GormStore) SaveAudioUsage(u domain.AudioUsage) error {
	model := audioUsageToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"minutes_used", "period_end", "updated_at"}),
	}).Create(&model).Error
}

// AppendAudit stores an audit log entry.
func (s *GormStore) AppendAudit(e domain.AuditEntry) error {
	model, err := auditToModel(e)
	if err != nil {
		return err
	}
	return s.db.Create(&model).Error
}

// ListAuditByUser returns the user's most recent audit entries.
func (s *GormStore) ListAuditByUser(userID string, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var models []AuditLogModel
	if err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.AuditEntry, 0, len(models))
	for _, m := range models {
		e, err := auditFromModel(m)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Status:       string(u.Status),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         domain.UserRole(m.Role),
		Status:       domain.UserStatus(m.Status),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func subscriptionToModel(sub domain.Subscription) SubscriptionModel {
	return SubscriptionModel{
		UserID:    sub.UserID,
		Plan:      sub.Plan,
		Status:    string(sub.Status),
		PeriodEnd: sub.PeriodEnd,
		CreatedAt: sub.CreatedAt,
		UpdatedAt: sub.UpdatedAt,
	}
}

func subscriptionFromModel(m SubscriptionModel) domain.Subscription {
	return domain.Subscription{
		UserID:    m.UserID,
		Plan:      m.Plan,
		Status:    domain.SubscriptionStatus(m.Status),
		PeriodEnd: m.PeriodEnd,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func projectToModel(p domain.Project) (ProjectModel, error) {
	var counts datatypes.JSON
	if len(p.SeriesCounts) > 0 {
		raw, err := json.Marshal(p.SeriesCounts)
		if err != nil {
			return ProjectModel{}, fmt.Errorf("marshal series counts: %w", err)
		}
		counts = datatypes.JSON(raw)
	}
	return ProjectModel{
		ID:            p.ID,
		OwnerID:       p.OwnerID,
		Title:         p.Title,
		SourceContent: p.SourceContent,
		SourceType:    p.SourceType,
		PostTone:      p.PostTone,
		BrandVoiceID:  p.BrandVoiceID,
		SeriesCount:   p.SeriesCount,
		SeriesCounts:  counts,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}, nil
}

func projectFromModel(m ProjectModel) (domain.Project, error) {
	var counts map[string]int
	if len(m.SeriesCounts) > 0 {
		if err := json.Unmarshal(m.SeriesCounts, &counts); err != nil {
			return domain.Project{}, fmt.Errorf("unmarshal series counts: %w", err)
		}
	}
	return domain.Project{
		ID:            m.ID,
		OwnerID:       m.OwnerID,
		Title:         m.Title,
		SourceContent: m.SourceContent,
		SourceType:    m.SourceType,
		PostTone:      m.PostTone,
		BrandVoiceID:  m.BrandVoiceID,
		SeriesCount:   m.SeriesCount,
		SeriesCounts:  counts,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}, nil
}

func outputToModel(o domain.Output) OutputModel {
	return OutputModel{
		ID:              o.ID,
		ProjectID:       o.ProjectID,
		Platform:        o.Platform,
		SeriesIndex:     o.SeriesIndex,
		Content:         o.Content,
		OriginalContent: o.OriginalContent,
		IsEdited:        o.IsEdited,
		Model:           o.Model,
		Temperature:     o.Temperature,
		MaxTokens:       o.MaxTokens,
		Provenance:      o.Provenance,
		Success:         o.Success,
		ErrorMessage:    o.ErrorMessage,
		GeneratedAt:     o.GeneratedAt,
	}
}

func outputFromModel(m OutputModel) domain.Output {
	return domain.Output{
		ID:              m.ID,
		ProjectID:       m.ProjectID,
		Platform:        m.Platform,
		SeriesIndex:     m.SeriesIndex,
		Content:         m.Content,
		OriginalContent: m.OriginalContent,
		IsEdited:        m.IsEdited,
		Model:           m.Model,
		Temperature:     m.Temperature,
		MaxTokens:       m.MaxTokens,
		Provenance:      m.Provenance,
		Success:         m.Success,
		ErrorMessage:    m.ErrorMessage,
		GeneratedAt:     m.GeneratedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func brandVoiceToModel(v domain.BrandVoice) BrandVoiceModel {
	return BrandVoiceModel{
		ID:          v.ID,
		OwnerID:     v.OwnerID,
		Name:        v.Name,
		Description: v.Description,
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   v.UpdatedAt,
	}
}

func brandVoiceFromModel(m BrandVoiceModel) domain.BrandVoice {
	return domain.BrandVoice{
		ID:          m.ID,
		OwnerID:     m.OwnerID,
		Name:        m.Name,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func audioUsageToModel(u domain.AudioUsage) AudioUsageModel {
	return AudioUsageModel{
		UserID:      u.UserID,
		MinutesUsed: u.MinutesUsed,
		PeriodEnd:   u.PeriodEnd,
		UpdatedAt:   u.UpdatedAt,
	}
}

func audioUsageFromModel(m AudioUsageModel) domain.AudioUsage {
	return domain.AudioUsage{
		UserID:      m.UserID,
		MinutesUsed: m.MinutesUsed,
		PeriodEnd:   m.PeriodEnd,
		UpdatedAt:   m.UpdatedAt,
	}
}

func auditToModel(e domain.AuditEntry) (AuditLogModel, error) {
	var meta datatypes.JSON
	if len(e.Metadata) > 0 {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return AuditLogModel{}, fmt.Errorf("marshal audit metadata: %w", err)
		}
		meta = datatypes.JSON(raw)
	}
	id := e.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return AuditLogModel{
		ID:        id,
		UserID:    e.UserID,
		Event:     e.Event,
		Metadata:  meta,
		CreatedAt: createdAt,
	}, nil
}

func auditFromModel(m AuditLogModel) (domain.AuditEntry, error) {
	var meta map[string]string
	if len(m.Metadata) > 0 {
		if err := json.Unmarshal(m.Metadata, &meta); err != nil {
			return domain.AuditEntry{}, fmt.Errorf("unmarshal audit metadata: %w", err)
		}
	}
	return domain.AuditEntry{
		ID:        m.ID,
		UserID:    m.UserID,
		Event:     m.Event,
		Metadata:  meta,
		CreatedAt: m.CreatedAt,
	}, nil
}
