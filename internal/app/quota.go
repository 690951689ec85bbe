package app

import (
	"fmt"
	"time"

	"postflow/pkg/domain"
	"postflow/pkg/plan"
)

// PlanSnapshot bundles the effective plan with its derived limits and
// capabilities, resolved fresh for every request.
type PlanSnapshot struct {
	Plan         plan.Plan
	Limits       plan.Limits
	Capabilities plan.Capabilities
}

func (a *App) planFor(user domain.User) (PlanSnapshot, error) {
	sub, ok, err := a.store.GetSubscription(user.ID)
	if err != nil {
		return PlanSnapshot{}, fmt.Errorf("load subscription: %w", err)
	}
	var subPtr *domain.Subscription
	if ok {
		subPtr = &sub
	}
	p := plan.Resolve(subPtr, user.CreatedAt, a.now())
	return PlanSnapshot{
		Plan:         p,
		Limits:       plan.LimitsFor(p),
		Capabilities: plan.CapabilitiesFor(p),
	}, nil
}

// ProjectQuota reports project slots used against the plan ceiling.
type ProjectQuota struct {
	Used  int `json:"used"`
	Limit int `json:"limit"`
}

// AudioQuota reports transcription minutes used inside the current period.
type AudioQuota struct {
	MinutesUsed  int       `json:"minutesUsed"`
	MinutesLimit int       `json:"minutesLimit"`
	PeriodEnd    time.Time `json:"periodEnd"`
}

// Quota is the client-facing usage snapshot.
type Quota struct {
	Plan                 string       `json:"plan"`
	PlanType             string       `json:"planType"`
	CanUseAudio          bool         `json:"canUseAudio"`
	Projects             ProjectQuota `json:"projects"`
	MaxOutputsPerProject int          `json:"maxOutputsPerProject"`
	MaxInputChars        int          `json:"maxInputChars"`
	MaxVariations        int          `json:"maxVariations"`
	MaxPostsPerPlatform  int          `json:"maxPostsPerPlatform"`
	Audio                *AudioQuota  `json:"audio,omitempty"`
}

// QuotaProbe returns current usage against the plan's limits without
// consuming any of it.
func (a *App) QuotaProbe(user domain.User) (Quota, error) {
	snap, err := a.planFor(user)
	if err != nil {
		return Quota{}, err
	}
	used, err := a.store.CountProjectsByOwner(user.ID)
	if err != nil {
		return Quota{}, fmt.Errorf("count projects: %w", err)
	}
	q := Quota{
		Plan:                 string(snap.Plan),
		PlanType:             string(snap.Limits.Type),
		CanUseAudio:          snap.Capabilities.CanUseAudio,
		Projects:             ProjectQuota{Used: used, Limit: snap.Limits.MaxProjects},
		MaxOutputsPerProject: snap.Limits.MaxOutputsPerProject,
		MaxInputChars:        snap.Limits.MaxInputChars,
		MaxVariations:        snap.Limits.MaxVariations,
		MaxPostsPerPlatform:  snap.Capabilities.MaxPostsPerPlatform,
	}
	if snap.Capabilities.CanUseAudio && snap.Limits.AudioMinutesPerMonth != nil {
		audio := &AudioQuota{MinutesLimit: *snap.Limits.AudioMinutesPerMonth}
		usage, ok, err := a.store.GetAudioUsage(user.ID)
		if err != nil {
			return Quota{}, fmt.Errorf("load audio usage: %w", err)
		}
		if ok && a.now().Before(usage.PeriodEnd) {
			audio.MinutesUsed = usage.MinutesUsed
			audio.PeriodEnd = usage.PeriodEnd
		} else {
			audio.PeriodEnd = a.audioPeriodEnd(user.ID)
		}
		q.Audio = audio
	}
	return q, nil
}

// audioPeriodEnd anchors the audio window to the billing period when a
// subscription exists, otherwise to the end of the calendar month.
func (a *App) audioPeriodEnd(userID string) time.Time {
	if sub, ok, err := a.store.GetSubscription(userID); err == nil && ok && sub.PeriodEnd.After(a.now()) {
		return sub.PeriodEnd
	}
	now := a.now()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}

// addAudioMinutes accumulates transcribed minutes. Outside the stored
// period the row is restarted; resetting is otherwise left to billing.
func (a *App) addAudioMinutes(userID string, minutes int) error {
	if minutes <= 0 {
		return nil
	}
	usage, ok, err := a.store.GetAudioUsage(userID)
	if err != nil {
		return fmt.Errorf("load audio usage: %w", err)
	}
	now := a.now()
	if !ok || !now.Before(usage.PeriodEnd) {
		usage = domain.AudioUsage{
			UserID:    userID,
			PeriodEnd: a.audioPeriodEnd(userID),
		}
	}
	usage.MinutesUsed += minutes
	usage.UpdatedAt = now
	if err := a.store.SaveAudioUsage(usage); err != nil {
		return fmt.Errorf("save audio usage: %w", err)
	}
	return nil
}

// ListAudit returns the user's most recent generation batches.
func (a *App) ListAudit(user domain.User, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	entries, err := a.store.ListAuditByUser(user.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	return entries, nil
}
