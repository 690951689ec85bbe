package app

import (
	"context"
	"fmt"
	"strings"

	"postflow/internal/ratelimit"
	"postflow/internal/util"
	"postflow/pkg/domain"
)

// BrandVoiceInput is the mutable part of a brand voice.
type BrandVoiceInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateBrandVoice stores a reusable writing-style profile.
func (a *App) CreateBrandVoice(ctx context.Context, user domain.User, in BrandVoiceInput) (domain.BrandVoice, error) {
	if err := a.allow(ctx, user.ID, ratelimit.CategoryProjectMutation); err != nil {
		return domain.BrandVoice{}, err
	}
	snap, err := a.planFor(user)
	if err != nil {
		return domain.BrandVoice{}, err
	}
	if !snap.Capabilities.CanUseBrandVoice {
		return domain.BrandVoice{}, errPlanRequired("brand voices are not available on this plan")
	}
	if strings.TrimSpace(in.Name) == "" {
		return domain.BrandVoice{}, errValidation("name is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return domain.BrandVoice{}, errValidation("description is required")
	}
	voice := domain.BrandVoice{
		ID:          util.NewID(),
		OwnerID:     user.ID,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   a.now(),
		UpdatedAt:   a.now(),
	}
	if err := a.store.SaveBrandVoice(voice); err != nil {
		return domain.BrandVoice{}, fmt.Errorf("save brand voice: %w", err)
	}
	return voice, nil
}

// UpdateBrandVoice edits a voice. The bumped updatedAt flows into cache
// keys, so stale generations fall out naturally.
func (a *App) UpdateBrandVoice(ctx context.Context, user domain.User, voiceID string, in BrandVoiceInput) (domain.BrandVoice, error) {
	if err := a.allow(ctx, user.ID, ratelimit.CategoryProjectMutation); err != nil {
		return domain.BrandVoice{}, err
	}
	voice, err := a.GetBrandVoice(user, voiceID)
	if err != nil {
		return domain.BrandVoice{}, err
	}
	if strings.TrimSpace(in.Name) != "" {
		voice.Name = strings.TrimSpace(in.Name)
	}
	if strings.TrimSpace(in.Description) != "" {
		voice.Description = strings.TrimSpace(in.Description)
	}
	voice.UpdatedAt = a.now()
	if err := a.store.SaveBrandVoice(voice); err != nil {
		return domain.BrandVoice{}, fmt.Errorf("save brand voice: %w", err)
	}
	return voice, nil
}

// GetBrandVoice loads a voice owned by the user.
func (a *App) GetBrandVoice(user domain.User, voiceID string) (domain.BrandVoice, error) {
	voice, ok, err := a.store.GetBrandVoice(voiceID)
	if err != nil {
		return domain.BrandVoice{}, fmt.Errorf("load brand voice: %w", err)
	}
	if !ok || voice.OwnerID != user.ID {
		return domain.BrandVoice{}, errNotFound("brand voice not found")
	}
	return voice, nil
}

// ListBrandVoices returns the user's voices.
func (a *App) ListBrandVoices(user domain.User) ([]domain.BrandVoice, error) {
	return a.store.ListBrandVoicesByOwner(user.ID)
}

// DeleteBrandVoice removes a voice. Projects referencing it simply lose
// the style injection on their next generation.
func (a *App) DeleteBrandVoice(ctx context.Context, user domain.User, voiceID string) error {
	if err := a.allow(ctx, user.ID, ratelimit.CategoryProjectMutation); err != nil {
		return err
	}
	if _, err := a.GetBrandVoice(user, voiceID); err != nil {
		return err
	}
	return a.store.DeleteBrandVoice(voiceID)
}
