package plan

import (
	"testing"
	"time"

	"postflow/pkg/domain"
)

func TestResolvePaidPlanWins(t *testing.T) {
	created := time.Now().UTC() // still inside the trial window
	sub := &domain.Subscription{Plan: "pro"}
	if got := Resolve(sub, created, time.Now().UTC()); got != Pro {
		t.Fatalf("expected pro, got %s", got)
	}
	sub.Plan = "Enterprise"
	if got := Resolve(sub, created, time.Now().UTC()); got != Enterprise {
		t.Fatalf("expected enterprise, got %s", got)
	}
}

func TestResolveTrialWindow(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	created := now.Add(-2 * 24 * time.Hour)
	if got := Resolve(nil, created, now); got != Trial {
		t.Fatalf("expected trial inside window, got %s", got)
	}
	if got := Resolve(nil, created, now.Add(2*24*time.Hour)); got != Free {
		t.Fatalf("expected free after window, got %s", got)
	}
}

func TestResolveMonotonicInTime(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	created := now.Add(-TrialWindow).Add(time.Minute)
	first := Resolve(nil, created, now)
	if first != Trial {
		t.Fatalf("expected trial, got %s", first)
	}
	// Once expired, re-evaluating later never returns to trial.
	for _, elapsed := range []time.Duration{2 * time.Minute, time.Hour, 30 * 24 * time.Hour} {
		if got := Resolve(nil, created, now.Add(elapsed)); got != Free {
			t.Fatalf("expected free at +%s, got %s", elapsed, got)
		}
	}
}

func TestResolveUnknownStoredPlanFallsThrough(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	created := now.Add(-30 * 24 * time.Hour)
	sub := &domain.Subscription{Plan: "legacy-gold"}
	if got := Resolve(sub, created, now); got != Free {
		t.Fatalf("expected free for unknown stored plan, got %s", got)
	}
}

func TestCapabilitiesDerivation(t *testing.T) {
	free := CapabilitiesFor(Free)
	if free.CanUseSeries || free.CanUseAudio || free.CanUsePostTone || free.CanUseBrandVoice {
		t.Fatalf("free plan should have no feature capabilities: %+v", free)
	}
	if free.MaxPostsPerPlatform != 1 {
		t.Fatalf("free plan max posts per platform = %d, want 1", free.MaxPostsPerPlatform)
	}
	pro := CapabilitiesFor(Pro)
	if !pro.CanUsePostTone || pro.CanUseSeries {
		t.Fatalf("pro plan should allow tone but not series: %+v", pro)
	}
	for _, p := range []Plan{Trial, Max, Enterprise} {
		caps := CapabilitiesFor(p)
		if !caps.CanUseSeries || caps.MaxPostsPerPlatform != 3 {
			t.Fatalf("%s plan should allow 3-post series: %+v", p, caps)
		}
		if !caps.CanUseAudio || !caps.CanUseBrandVoice {
			t.Fatalf("%s plan should allow audio and brand voice: %+v", p, caps)
		}
	}
}

func TestLimitsForUnknownPlanDefaultsToFree(t *testing.T) {
	if got := LimitsFor(Plan("nope")); got != LimitsFor(Free) {
		t.Fatalf("unknown plan limits = %+v, want free limits", got)
	}
}

func TestAudioLimitsOnlyOnAudioPlans(t *testing.T) {
	for p, limits := range planLimits {
		hasAudio := limits.AudioMinutesPerMonth != nil
		if hasAudio != (limits.Type == TypeTextAudio) {
			t.Fatalf("%s: audio minutes and plan type disagree", p)
		}
		if hasAudio != CapabilitiesFor(p).CanUseAudio {
			t.Fatalf("%s: audio limits and capability disagree", p)
		}
	}
}
