package ratelimit

import (
	"context"
	"strings"
	"time"
)

// Category is a route family sharing one fixed-window budget per user.
type Category string

const (
	CategoryGenerate        Category = "generate"
	CategoryProjectMutation Category = "project-mutation"
	CategoryOutputUpdate    Category = "output-update"
	CategoryTranscribe      Category = "transcribe"
	CategoryDocumentParse   Category = "document-parse"
	CategoryContentPack     Category = "content-pack"
)

// Rule is one category's ceiling inside its window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// DefaultRules returns the per-category windows and ceilings. Transcription
// uses an hour window; everything else a minute.
func DefaultRules() map[Category]Rule {
	return map[Category]Rule{
		CategoryGenerate:        {Limit: 10, Window: time.Minute},
		CategoryProjectMutation: {Limit: 30, Window: time.Minute},
		CategoryOutputUpdate:    {Limit: 60, Window: time.Minute},
		CategoryTranscribe:      {Limit: 10, Window: time.Hour},
		CategoryDocumentParse:   {Limit: 20, Window: time.Minute},
		CategoryContentPack:     {Limit: 10, Window: time.Minute},
	}
}

// Result describes one rate-limit decision. RetryAfter is only meaningful
// when Allowed is false.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// CounterStore atomically increments a fixed-window counter and reports the
// post-increment count plus the remaining window time. The counter lazily
// resets once its window elapses.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, remaining time.Duration, err error)
}

// Limiter answers "allowed now?" per (user, category). It increments first
// and checks after, so rejected requests still consume window budget.
type Limiter struct {
	store CounterStore
	rules map[Category]Rule
}

// New builds a limiter over a counter store. nil rules means DefaultRules.
func New(store CounterStore, rules map[Category]Rule) *Limiter {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Limiter{store: store, rules: rules}
}

// Allow records one request for the user in the category and decides whether
// it may proceed. Counter-store failures fail closed with a full-window retry
// hint.
func (l *Limiter) Allow(ctx context.Context, userID string, category Category) Result {
	rule, ok := l.rules[category]
	if !ok || rule.Limit <= 0 || rule.Window <= 0 {
		return Result{Allowed: true}
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = "unknown"
	}
	key := string(category) + ":" + userID
	count, remaining, err := l.store.Incr(ctx, key, rule.Window)
	if err != nil {
		return Result{Allowed: false, RetryAfter: rule.Window}
	}
	if count > int64(rule.Limit) {
		if remaining <= 0 {
			remaining = rule.Window
		}
		return Result{Allowed: false, RetryAfter: remaining}
	}
	return Result{Allowed: true, Remaining: rule.Limit - int(count)}
}
