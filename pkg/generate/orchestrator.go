package generate

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"postflow/pkg/ai"
	"postflow/pkg/domain"
)

// SlotExecutor is the orchestrator's view of the Generation Executor.
type SlotExecutor interface {
	Execute(ctx context.Context, req ExecRequest) (Result, error)
}

// BatchStore is the persistence surface the orchestrator needs: upsert by
// (projectID, platform, seriesIndex) and append-only audit writes.
type BatchStore interface {
	UpsertOutput(output domain.Output) (domain.Output, error)
	AppendAudit(entry domain.AuditEntry) error
}

// SlotResult is one slot's outcome inside a batch.
type SlotResult struct {
	Platform    string     `json:"platform"`
	SeriesIndex int        `json:"seriesIndex"`
	Content     string     `json:"content,omitempty"`
	Success     bool       `json:"success"`
	Error       string     `json:"error,omitempty"`
	OutputID    string     `json:"outputId,omitempty"`
	Provenance  Provenance `json:"-"`
}

// BatchResult aggregates a batch. Partial success is a first-class outcome,
// not an error state.
type BatchResult struct {
	Successful     []SlotResult `json:"successful"`
	Failed         []SlotResult `json:"failed"`
	TotalRequested int          `json:"totalRequested"`
}

// Orchestrator fans slots out across the executor concurrently, isolates
// per-slot failure, and persists every slot's outcome idempotently.
type Orchestrator struct {
	exec  SlotExecutor
	store BatchStore
}

// NewOrchestrator wires the executor and persistence.
func NewOrchestrator(exec SlotExecutor, store BatchStore) *Orchestrator {
	return &Orchestrator{exec: exec, store: store}
}

// Run executes all slots concurrently and independently, persists each slot
// regardless of success, and writes one audit entry for the whole batch.
// One slot's failure never cancels or delays a sibling.
func (o *Orchestrator) Run(ctx context.Context, params Params, slots []Slot) BatchResult {
	results := make([]SlotResult, len(slots))
	g := new(errgroup.Group)
	for i, slot := range slots {
		i, slot := i, slot
		g.Go(func() error {
			results[i] = o.runSlot(ctx, params, slot)
			return nil
		})
	}
	_ = g.Wait()

	batch := BatchResult{TotalRequested: len(slots)}
	platforms := make(map[string]struct{}, len(slots))
	for i, res := range results {
		platforms[slots[i].Platform] = struct{}{}
		if res.Success {
			batch.Successful = append(batch.Successful, res)
		} else {
			batch.Failed = append(batch.Failed, res)
		}
	}

	names := make([]string, 0, len(platforms))
	for name := range platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	if err := o.store.AppendAudit(domain.AuditEntry{
		UserID: params.UserID,
		Event:  "generation.batch",
		Metadata: map[string]string{
			"project_id": params.ProjectID,
			"step":       params.Step,
			"platforms":  strings.Join(names, ","),
			"succeeded":  strconv.Itoa(len(batch.Successful)),
			"failed":     strconv.Itoa(len(batch.Failed)),
		},
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		slog.Warn("batch audit write failed", "project_id", params.ProjectID, "err", err)
	}
	return batch
}

func (o *Orchestrator) runSlot(ctx context.Context, params Params, slot Slot) SlotResult {
	seriesTotal := params.SeriesTotal(slot.Platform)
	var systemPrompt, userPrompt string
	if params.Step == StepContentPack {
		systemPrompt, userPrompt = BuildContentPackPrompt(params)
	} else {
		systemPrompt, userPrompt = BuildPrompt(params, slot)
	}

	req := ExecRequest{
		KeyParams: KeyParams{
			UserID:              params.UserID,
			ProjectID:           params.ProjectID,
			Step:                params.Step,
			Platform:            slot.Platform,
			SourceContent:       params.SourceContent,
			Options:             params.Options,
			BrandVoiceID:        params.BrandVoiceID,
			BrandVoiceUpdatedAt: params.BrandVoiceUpdatedAt,
			Tone:                params.Tone,
			SeriesIndex:         slot.SeriesIndex,
			SeriesTotal:         seriesTotal,
		},
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Options: ai.Options{
			Temperature: params.Options.Temperature,
			MaxTokens:   params.Options.MaxTokens,
		},
	}

	output := domain.Output{
		ProjectID:   params.ProjectID,
		Platform:    slot.Platform,
		SeriesIndex: slot.SeriesIndex,
		Temperature: params.Options.Temperature,
		MaxTokens:   params.Options.MaxTokens,
		GeneratedAt: time.Now().UTC(),
	}

	res, err := o.exec.Execute(ctx, req)
	if err == nil {
		content := Sanitize(slot.Platform, res.Content)
		if content == "" {
			err = errors.New("generation produced empty content")
		} else {
			output.Content = content
			output.Success = true
			output.Model = res.Model
			output.Provenance = string(res.Provenance)
		}
	}
	if err != nil {
		output.Success = false
		output.ErrorMessage = err.Error()
	}

	// A record is written whether the slot succeeded or failed, so clients
	// can show "failed" instead of stale content.
	saved, persistErr := o.store.UpsertOutput(output)
	if persistErr != nil {
		slog.Error("slot persistence failed",
			"project_id", params.ProjectID,
			"platform", slot.Platform,
			"series_index", slot.SeriesIndex,
			"err", persistErr)
		return SlotResult{
			Platform:    slot.Platform,
			SeriesIndex: slot.SeriesIndex,
			Success:     false,
			Error:       "persistence failed: " + persistErr.Error(),
		}
	}

	result := SlotResult{
		Platform:    slot.Platform,
		SeriesIndex: slot.SeriesIndex,
		OutputID:    saved.ID,
	}
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Content = output.Content
	result.Success = true
	result.Provenance = res.Provenance
	if res.Provenance != ProvenanceAPI {
		slog.Info("degraded generation served",
			"project_id", params.ProjectID,
			"platform", slot.Platform,
			"series_index", slot.SeriesIndex,
			"provenance", res.Provenance,
			"model", res.Model)
	}
	return result
}
