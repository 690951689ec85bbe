package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"postflow/internal/ratelimit"
	"postflow/pkg/ai"
	"postflow/pkg/domain"
	"postflow/pkg/events"
	"postflow/pkg/generate"
)

// GenerateRequest is one bulk generation call: which platforms to target
// and the sampling options shared by every slot in the batch. At most one
// of the regenerate variants may be set; when one is, Platforms is ignored
// and the batch is scoped to that variant's platform.
type GenerateRequest struct {
	Platforms                   []string             `json:"platforms"`
	Temperature                 float64              `json:"temperature"`
	MaxTokens                   int                  `json:"maxTokens"`
	Variation                   int                  `json:"variation"`
	PostToneOverride            string               `json:"postToneOverride,omitempty"`
	RegenerateSeriesForPlatform string               `json:"regenerateSeriesForPlatform,omitempty"`
	RegenerateFromIndex         *RegenerateFromIndex `json:"regenerateFromIndex,omitempty"`
}

// RegenerateFromIndex rebuilds one platform's series from the given index
// to its end, leaving earlier slots untouched.
type RegenerateFromIndex struct {
	Platform    string `json:"platform"`
	SeriesIndex int    `json:"seriesIndex"`
}

// Generate runs a bulk generation batch for a project. Capability, quota
// and rate-limit gates all run before the first provider call; afterwards
// per-slot failure is contained and partial success is a normal outcome.
func (a *App) Generate(ctx context.Context, user domain.User, projectID string, req GenerateRequest) (generate.BatchResult, error) {
	if err := a.allow(ctx, user.ID, ratelimit.CategoryGenerate); err != nil {
		return generate.BatchResult{}, err
	}
	project, err := a.GetProject(user, projectID)
	if err != nil {
		return generate.BatchResult{}, err
	}
	snap, err := a.planFor(user)
	if err != nil {
		return generate.BatchResult{}, err
	}
	if err := validateOptions(snap, req); err != nil {
		return generate.BatchResult{}, err
	}
	cfg, err := a.seriesConfig(project, snap)
	if err != nil {
		return generate.BatchResult{}, err
	}
	platforms, slots, err := planSlots(cfg, req)
	if err != nil {
		return generate.BatchResult{}, err
	}
	if err := a.checkOutputQuota(project.ID, snap, slots); err != nil {
		return generate.BatchResult{}, err
	}
	params, err := a.buildParams(user, project, snap, generate.StepPost, req, platforms)
	if err != nil {
		return generate.BatchResult{}, err
	}

	batch := a.orchestrator.Run(ctx, params, slots)
	a.publisher.Publish(ctx, events.Event{
		Type:      events.TypeBatchCompleted,
		UserID:    user.ID,
		ProjectID: project.ID,
		Metadata: map[string]string{
			"succeeded": strconv.Itoa(len(batch.Successful)),
			"failed":    strconv.Itoa(len(batch.Failed)),
		},
	})
	return batch, nil
}

// RegenerateOutput re-runs a single existing slot as a one-element batch.
// Sibling outputs are untouched.
func (a *App) RegenerateOutput(ctx context.Context, user domain.User, outputID string, req GenerateRequest) (generate.BatchResult, error) {
	if err := a.allow(ctx, user.ID, ratelimit.CategoryGenerate); err != nil {
		return generate.BatchResult{}, err
	}
	output, ok, err := a.store.GetOutput(outputID)
	if err != nil {
		return generate.BatchResult{}, fmt.Errorf("load output: %w", err)
	}
	if !ok {
		return generate.BatchResult{}, errNotFound("output not found")
	}
	project, err := a.GetProject(user, output.ProjectID)
	if err != nil {
		return generate.BatchResult{}, err
	}
	snap, err := a.planFor(user)
	if err != nil {
		return generate.BatchResult{}, err
	}
	if err := validateOptions(snap, req); err != nil {
		return generate.BatchResult{}, err
	}
	params, err := a.buildParams(user, project, snap, generate.StepPost, req, []string{output.Platform})
	if err != nil {
		return generate.BatchResult{}, err
	}
	slots := []generate.Slot{{Platform: output.Platform, SeriesIndex: output.SeriesIndex}}
	return a.orchestrator.Run(ctx, params, slots), nil
}

// ContentPackResult is the supplementary hooks/hashtags pack for a project.
type ContentPackResult struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
}

// ContentPack produces the project's supplementary content pack with a
// single executor call; it is cached like any other generation but not
// persisted as an output.
func (a *App) ContentPack(ctx context.Context, user domain.User, projectID string, req GenerateRequest) (ContentPackResult, error) {
	if err := a.allow(ctx, user.ID, ratelimit.CategoryContentPack); err != nil {
		return ContentPackResult{}, err
	}
	project, err := a.GetProject(user, projectID)
	if err != nil {
		return ContentPackResult{}, err
	}
	snap, err := a.planFor(user)
	if err != nil {
		return ContentPackResult{}, err
	}
	if err := validateOptions(snap, req); err != nil {
		return ContentPackResult{}, err
	}
	params, err := a.buildParams(user, project, snap, generate.StepContentPack, req, nil)
	if err != nil {
		return ContentPackResult{}, err
	}
	systemPrompt, userPrompt := generate.BuildContentPackPrompt(params)
	res, err := a.executor.Execute(ctx, generate.ExecRequest{
		KeyParams: generate.KeyParams{
			UserID:              params.UserID,
			ProjectID:           params.ProjectID,
			Step:                params.Step,
			Platform:            "all",
			SourceContent:       params.SourceContent,
			Options:             params.Options,
			BrandVoiceID:        params.BrandVoiceID,
			BrandVoiceUpdatedAt: params.BrandVoiceUpdatedAt,
			Tone:                params.Tone,
		},
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Options: ai.Options{
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		},
	})
	if err != nil {
		return ContentPackResult{}, fmt.Errorf("content pack generation: %w", err)
	}
	a.publisher.Publish(ctx, events.Event{
		Type:      events.TypeContentPackGenerated,
		UserID:    user.ID,
		ProjectID: project.ID,
	})
	return ContentPackResult{Content: res.Content, Model: res.Model}, nil
}

// planSlots turns the request into the batch's platform set and slot list.
// The regenerate variants are mutually exclusive and scope the batch to a
// single platform; otherwise the full Platforms list is expanded.
func planSlots(cfg generate.SeriesConfig, req GenerateRequest) ([]string, []generate.Slot, error) {
	if req.RegenerateSeriesForPlatform != "" && req.RegenerateFromIndex != nil {
		return nil, nil, errValidation("regenerateSeriesForPlatform and regenerateFromIndex are mutually exclusive")
	}
	if req.RegenerateSeriesForPlatform != "" {
		id, err := normalizePlatform(req.RegenerateSeriesForPlatform)
		if err != nil {
			return nil, nil, err
		}
		return []string{id}, generate.SeriesSlots(cfg, id), nil
	}
	if req.RegenerateFromIndex != nil {
		id, err := normalizePlatform(req.RegenerateFromIndex.Platform)
		if err != nil {
			return nil, nil, err
		}
		slots := generate.TailSlots(cfg, id, req.RegenerateFromIndex.SeriesIndex)
		if len(slots) == 0 {
			return nil, nil, errValidation("seriesIndex is outside the platform's series")
		}
		return []string{id}, slots, nil
	}
	platforms, err := normalizePlatforms(req.Platforms)
	if err != nil {
		return nil, nil, err
	}
	return platforms, generate.ScheduleSlots(cfg, platforms), nil
}

// seriesConfig derives the effective series layout from the project,
// re-checked against the current plan in case it changed since the
// project was configured. A stored multi-post layout on a plan without
// the series capability is rejected rather than silently flattened.
func (a *App) seriesConfig(project domain.Project, snap PlanSnapshot) (generate.SeriesConfig, error) {
	if !snap.Capabilities.CanUseSeries {
		if project.SeriesCount > 1 {
			return generate.SeriesConfig{}, errPlanRequired("this project is configured for series generation, which the current plan does not include")
		}
		for _, n := range project.SeriesCounts {
			if n > 1 {
				return generate.SeriesConfig{}, errPlanRequired("this project is configured for series generation, which the current plan does not include")
			}
		}
		return generate.SeriesConfig{}, nil
	}
	capMax := snap.Capabilities.MaxPostsPerPlatform
	cfg := generate.SeriesConfig{Default: capAt(project.SeriesCount, capMax)}
	if len(project.SeriesCounts) > 0 {
		cfg.PerPlatform = make(map[string]int, len(project.SeriesCounts))
		for platform, n := range project.SeriesCounts {
			cfg.PerPlatform[platform] = capAt(n, capMax)
		}
	}
	return cfg, nil
}

func capAt(n, max int) int {
	if max > 0 && n > max {
		return max
	}
	return n
}

// checkOutputQuota rejects a batch that would push the project past its
// output ceiling. Existing outputs on platforms the batch does not touch
// still count; slots the batch overwrites are not double counted.
func (a *App) checkOutputQuota(projectID string, snap PlanSnapshot, slots []generate.Slot) error {
	existing, err := a.store.ListOutputs(projectID)
	if err != nil {
		return fmt.Errorf("list outputs: %w", err)
	}
	distinct := make(map[string]struct{}, len(existing)+len(slots))
	for _, o := range existing {
		distinct[o.Platform+"#"+strconv.Itoa(o.SeriesIndex)] = struct{}{}
	}
	for _, s := range slots {
		distinct[s.Platform+"#"+strconv.Itoa(s.SeriesIndex)] = struct{}{}
	}
	if len(distinct) > snap.Limits.MaxOutputsPerProject {
		return errQuota(fmt.Sprintf("batch would exceed the plan limit of %d outputs per project", snap.Limits.MaxOutputsPerProject))
	}
	return nil
}

func (a *App) buildParams(user domain.User, project domain.Project, snap PlanSnapshot, step string, req GenerateRequest, platforms []string) (generate.Params, error) {
	params := generate.Params{
		UserID:        user.ID,
		ProjectID:     project.ID,
		Step:          step,
		SourceContent: project.SourceContent,
		Options: generate.GenerationOptions{
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
			Variation:   req.Variation,
		},
	}
	if snap.Capabilities.CanUsePostTone {
		params.Tone = project.PostTone
		if tone := strings.TrimSpace(req.PostToneOverride); tone != "" {
			params.Tone = tone
		}
	}
	if snap.Capabilities.CanUseBrandVoice && project.BrandVoiceID != "" {
		voice, ok, err := a.store.GetBrandVoice(project.BrandVoiceID)
		if err != nil {
			return generate.Params{}, fmt.Errorf("load brand voice: %w", err)
		}
		if ok && voice.OwnerID == user.ID {
			params.BrandVoiceID = voice.ID
			params.BrandVoiceName = voice.Name
			params.BrandVoiceStyle = voice.Description
			params.BrandVoiceUpdatedAt = voice.UpdatedAt
		}
	}
	if len(platforms) > 0 {
		cfg, err := a.seriesConfig(project, snap)
		if err != nil {
			return generate.Params{}, err
		}
		params.SeriesTotals = make(map[string]int, len(platforms))
		for _, platform := range platforms {
			params.SeriesTotals[platform] = cfg.Count(platform)
		}
	}
	return params, nil
}

func normalizePlatforms(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, errValidation("at least one platform is required")
	}
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		id, err := normalizePlatform(p)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func normalizePlatform(raw string) (string, error) {
	id := generate.NormalizePlatform(strings.TrimSpace(raw))
	if !generate.KnownPlatform(id) {
		return "", errValidation("unknown platform: " + raw)
	}
	return id, nil
}

func validateOptions(snap PlanSnapshot, req GenerateRequest) error {
	if req.Temperature < 0 || req.Temperature > 2 {
		return errValidation("temperature must be between 0 and 2")
	}
	if req.MaxTokens < 0 {
		return errValidation("maxTokens must not be negative")
	}
	if req.Variation < 0 {
		return errValidation("variation must not be negative")
	}
	if req.Variation+1 > snap.Limits.MaxVariations {
		return errPlanRequired(fmt.Sprintf("this plan allows %d variation(s) per slot", snap.Limits.MaxVariations))
	}
	if strings.TrimSpace(req.PostToneOverride) != "" && !snap.Capabilities.CanUsePostTone {
		return errPlanRequired("post tone is not included in the current plan")
	}
	return nil
}
