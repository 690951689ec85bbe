package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"postflow/internal/ratelimit"
	"postflow/internal/util"
	"postflow/pkg/domain"
	"postflow/pkg/events"
	"postflow/pkg/generate"
)

// ProjectInput is the mutable part of a project.
type ProjectInput struct {
	Title         string         `json:"title"`
	SourceContent string         `json:"sourceContent"`
	SourceType    string         `json:"sourceType"`
	PostTone      string         `json:"postTone"`
	BrandVoiceID  string         `json:"brandVoiceId"`
	SeriesCount   int            `json:"seriesCount"`
	SeriesCounts  map[string]int `json:"seriesCounts"`
}

func (a *App) validateProjectInput(user domain.User, snap PlanSnapshot, in ProjectInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return errValidation("title is required")
	}
	if strings.TrimSpace(in.SourceContent) == "" {
		return errValidation("source content is required")
	}
	if len([]rune(in.SourceContent)) > snap.Limits.MaxInputChars {
		return errQuota(fmt.Sprintf("source content exceeds the plan limit of %d characters", snap.Limits.MaxInputChars))
	}
	if in.PostTone != "" && !snap.Capabilities.CanUsePostTone {
		return errPlanRequired("post tone requires a paid plan")
	}
	if in.BrandVoiceID != "" {
		if !snap.Capabilities.CanUseBrandVoice {
			return errPlanRequired("brand voices are not available on this plan")
		}
		voice, ok, err := a.store.GetBrandVoice(in.BrandVoiceID)
		if err != nil {
			return fmt.Errorf("load brand voice: %w", err)
		}
		if !ok || voice.OwnerID != user.ID {
			return errNotFound("brand voice not found")
		}
	}
	if !snap.Capabilities.CanUseSeries {
		if in.SeriesCount > 1 {
			return errPlanRequired("post series are not available on this plan")
		}
		for _, n := range in.SeriesCounts {
			if n > 1 {
				return errPlanRequired("post series are not available on this plan")
			}
		}
	}
	for platform := range in.SeriesCounts {
		if !generate.KnownPlatform(generate.NormalizePlatform(platform)) {
			return errValidation("unknown platform in series config: " + platform)
		}
	}
	return nil
}

// CreateProject creates a project, enforcing the plan's project quota.
func (a *App) CreateProject(ctx context.Context, user domain.User, in ProjectInput) (domain.Project, error) {
	if err := a.allow(ctx, user.ID, ratelimit.CategoryProjectMutation); err != nil {
		return domain.Project{}, err
	}
	snap, err := a.planFor(user)
	if err != nil {
		return domain.Project{}, err
	}
	if err := a.validateProjectInput(user, snap, in); err != nil {
		return domain.Project{}, err
	}
	count, err := a.store.CountProjectsByOwner(user.ID)
	if err != nil {
		return domain.Project{}, fmt.Errorf("count projects: %w", err)
	}
	if count >= snap.Limits.MaxProjects {
		return domain.Project{}, errQuota(fmt.Sprintf("project limit of %d reached", snap.Limits.MaxProjects))
	}
	project := domain.Project{
		ID:            util.NewID(),
		OwnerID:       user.ID,
		Title:         strings.TrimSpace(in.Title),
		SourceContent: in.SourceContent,
		SourceType:    defaultSourceType(in.SourceType),
		PostTone:      strings.TrimSpace(in.PostTone),
		BrandVoiceID:  in.BrandVoiceID,
		SeriesCount:   in.SeriesCount,
		SeriesCounts:  normalizeSeriesCounts(in.SeriesCounts),
		CreatedAt:     a.now(),
		UpdatedAt:     a.now(),
	}
	if err := a.store.SaveProject(project); err != nil {
		return domain.Project{}, fmt.Errorf("save project: %w", err)
	}
	a.publisher.Publish(ctx, events.Event{
		Type:      events.TypeProjectCreated,
		UserID:    user.ID,
		ProjectID: project.ID,
	})
	return project, nil
}

// GetProject loads a project owned by the user.
func (a *App) GetProject(user domain.User, projectID string) (domain.Project, error) {
	project, ok, err := a.store.GetProject(projectID)
	if err != nil {
		return domain.Project{}, fmt.Errorf("load project: %w", err)
	}
	if !ok || project.OwnerID != user.ID {
		return domain.Project{}, errNotFound("project not found")
	}
	return project, nil
}

// ListProjects returns the user's projects.
func (a *App) ListProjects(user domain.User) ([]domain.Project, error) {
	return a.store.ListProjectsByOwner(user.ID)
}

// UpdateProject applies changes and drops the project's cached generations
// when anything feeding prompts changed.
func (a *App) UpdateProject(ctx context.Context, user domain.User, projectID string, in ProjectInput) (domain.Project, error) {
	if err := a.allow(ctx, user.ID, ratelimit.CategoryProjectMutation); err != nil {
		return domain.Project{}, err
	}
	project, err := a.GetProject(user, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	snap, err := a.planFor(user)
	if err != nil {
		return domain.Project{}, err
	}
	if err := a.validateProjectInput(user, snap, in); err != nil {
		return domain.Project{}, err
	}
	invalidate := in.SourceContent != project.SourceContent ||
		strings.TrimSpace(in.PostTone) != project.PostTone ||
		in.BrandVoiceID != project.BrandVoiceID

	project.Title = strings.TrimSpace(in.Title)
	project.SourceContent = in.SourceContent
	project.SourceType = defaultSourceType(in.SourceType)
	project.PostTone = strings.TrimSpace(in.PostTone)
	project.BrandVoiceID = in.BrandVoiceID
	project.SeriesCount = in.SeriesCount
	project.SeriesCounts = normalizeSeriesCounts(in.SeriesCounts)
	project.UpdatedAt = a.now()
	if err := a.store.SaveProject(project); err != nil {
		return domain.Project{}, fmt.Errorf("save project: %w", err)
	}
	if invalidate {
		a.invalidateProjectCache(ctx, project.ID)
	}
	return project, nil
}

// DeleteProject removes a project, its outputs and its cached generations.
func (a *App) DeleteProject(ctx context.Context, user domain.User, projectID string) error {
	if err := a.allow(ctx, user.ID, ratelimit.CategoryProjectMutation); err != nil {
		return err
	}
	if _, err := a.GetProject(user, projectID); err != nil {
		return err
	}
	if err := a.store.DeleteProject(projectID); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	a.invalidateProjectCache(ctx, projectID)
	a.publisher.Publish(ctx, events.Event{
		Type:      events.TypeProjectDeleted,
		UserID:    user.ID,
		ProjectID: projectID,
	})
	return nil
}

func (a *App) invalidateProjectCache(ctx context.Context, projectID string) {
	if a.cache == nil {
		return
	}
	if err := a.cache.InvalidatePrefix(ctx, generate.ProjectKeyPrefix(projectID)); err != nil {
		slog.Warn("cache invalidation failed", "project_id", projectID, "err", err)
	}
}

func defaultSourceType(t string) string {
	switch t {
	case "document", "audio":
		return t
	default:
		return "text"
	}
}

func normalizeSeriesCounts(counts map[string]int) map[string]int {
	if len(counts) == 0 {
		return nil
	}
	out := make(map[string]int, len(counts))
	for platform, n := range counts {
		out[generate.NormalizePlatform(platform)] = n
	}
	return out
}
