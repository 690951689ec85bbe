package generate

import (
	"context"
	"log/slog"
	"time"

	"postflow/pkg/ai"
)

// Provenance records which path produced a generation result.
type Provenance string

const (
	ProvenanceCache    Provenance = "cache"
	ProvenanceAPI      Provenance = "api"
	ProvenanceTemplate Provenance = "template"
)

// Cache is the read-through cache the executor consults. Implementations must
// swallow backend errors: Get treats them as a miss, Set is best-effort.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

// ExecRequest describes one slot's generation. The executor fills
// KeyParams.Model from its primary generator before deriving the cache key.
type ExecRequest struct {
	KeyParams    KeyParams
	SystemPrompt string
	UserPrompt   string
	Options      ai.Options
}

// Result is one generation outcome.
type Result struct {
	Content    string
	Provenance Provenance
	Model      string
}

const executorAttempts = 3

var executorBackoff = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// Executor wraps one model call with cache read/write, bounded retry, a
// cheaper fallback model, and a last-resort local template.
type Executor struct {
	primary  ai.TextGenerator
	fallback ai.TextGenerator
	cache    Cache

	attempts int
	backoff  []time.Duration
	sleep    func(ctx context.Context, d time.Duration)
}

// NewExecutor constructs an executor. fallback and cache may be nil.
func NewExecutor(primary ai.TextGenerator, fallback ai.TextGenerator, cache Cache) *Executor {
	return &Executor{
		primary:  primary,
		fallback: fallback,
		cache:    cache,
		attempts: executorAttempts,
		backoff:  executorBackoff,
		sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Execute produces content for one slot. It never fails: cache misses fall
// through to the provider, provider failures fall back to the cheaper model,
// and if everything fails the deterministic template terminates the chain.
// The error return exists for mock implementations; this implementation
// always returns a nil error.
func (e *Executor) Execute(ctx context.Context, req ExecRequest) (Result, error) {
	key := req.KeyParams
	key.Model = e.primary.Model()
	cacheKey := CacheKey(key)

	if e.cache != nil {
		if content, ok := e.cache.Get(ctx, cacheKey); ok {
			return Result{Content: content, Provenance: ProvenanceCache, Model: key.Model}, nil
		}
	}

	content, model, err := e.callWithRetry(ctx, req)
	if err == nil {
		if e.cache != nil {
			e.cache.Set(ctx, cacheKey, content)
		}
		return Result{Content: content, Provenance: ProvenanceAPI, Model: model}, nil
	}

	slog.Warn("generation degraded to template",
		"platform", req.KeyParams.Platform,
		"series_index", req.KeyParams.SeriesIndex,
		"model", key.Model,
		"err", err)
	slot := Slot{Platform: req.KeyParams.Platform, SeriesIndex: req.KeyParams.SeriesIndex}
	content = TemplatePost(req.KeyParams.Platform, req.KeyParams.SourceContent, slot, req.KeyParams.SeriesTotal)
	return Result{Content: content, Provenance: ProvenanceTemplate, Model: key.Model}, nil
}

// callWithRetry runs up to e.attempts calls against the primary model with
// exponential backoff, then a single attempt against the fallback model.
func (e *Executor) callWithRetry(ctx context.Context, req ExecRequest) (string, string, error) {
	var lastErr error
	for attempt := 0; attempt < e.attempts; attempt++ {
		if attempt > 0 {
			e.sleep(ctx, e.backoff[min(attempt-1, len(e.backoff)-1)])
		}
		content, err := e.primary.GenerateText(ctx, req.SystemPrompt, req.UserPrompt, req.Options)
		if err == nil {
			return content, e.primary.Model(), nil
		}
		lastErr = err
		slog.Debug("generation attempt failed",
			"model", e.primary.Model(),
			"attempt", attempt+1,
			"err", err)
	}
	if e.fallback != nil {
		e.sleep(ctx, e.backoff[len(e.backoff)-1])
		content, err := e.fallback.GenerateText(ctx, req.SystemPrompt, req.UserPrompt, req.Options)
		if err == nil {
			return content, e.fallback.Model(), nil
		}
		lastErr = err
	}
	return "", "", lastErr
}
