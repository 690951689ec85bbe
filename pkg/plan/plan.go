package plan

import (
	"strings"
	"time"

	"postflow/pkg/domain"
)

// Plan is the effective subscription tier governing behavior right now.
type Plan string

const (
	Trial      Plan = "trial"
	Free       Plan = "free"
	Pro        Plan = "pro"
	Max        Plan = "max"
	Enterprise Plan = "enterprise"
)

// TrialWindow is how long after account creation a user without a paid plan
// stays on the trial tier.
const TrialWindow = 3 * 24 * time.Hour

// Resolve derives the effective plan from the stored subscription and the
// account creation time. An explicit paid plan wins outright; otherwise the
// account is on trial inside the trial window and free after it. The function
// is pure and monotonic in time: re-evaluating later can move trial to free
// but never the reverse.
func Resolve(sub *domain.Subscription, accountCreatedAt, now time.Time) Plan {
	if sub != nil {
		switch Plan(strings.ToLower(strings.TrimSpace(sub.Plan))) {
		case Pro:
			return Pro
		case Max:
			return Max
		case Enterprise:
			return Enterprise
		}
	}
	if now.Sub(accountCreatedAt) < TrialWindow {
		return Trial
	}
	return Free
}

// Valid reports whether p is a known tier.
func Valid(p Plan) bool {
	switch p {
	case Trial, Free, Pro, Max, Enterprise:
		return true
	}
	return false
}
