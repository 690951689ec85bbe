package generate

import (
	"fmt"
	"strings"
	"time"
)

// Step names the kind of generation a cache key and prompt belong to.
const (
	StepPost        = "post"
	StepContentPack = "content_pack"
)

// Params carries everything a batch needs to prompt, cache and persist its
// slots.
type Params struct {
	UserID        string
	ProjectID     string
	Step          string
	SourceContent string
	Tone          string

	BrandVoiceID        string
	BrandVoiceName      string
	BrandVoiceStyle     string
	BrandVoiceUpdatedAt time.Time

	Options GenerationOptions

	// SeriesTotals maps platform -> total posts in that platform's series for
	// this batch; used for "post i of n" prompting and cache keys.
	SeriesTotals map[string]int
}

// SeriesTotal returns the series length for a platform, defaulting to 1.
func (p Params) SeriesTotal(platform string) int {
	if n, ok := p.SeriesTotals[platform]; ok && n > 0 {
		return n
	}
	return 1
}

// BuildPrompt renders the system and user prompts for one slot.
func BuildPrompt(params Params, slot Slot) (string, string) {
	rule := RuleFor(slot.Platform)
	total := params.SeriesTotal(slot.Platform)

	var system strings.Builder
	system.WriteString("You are a social media copywriter. Rewrite the provided source text as a ready-to-publish post for ")
	system.WriteString(rule.Label)
	system.WriteString(fmt.Sprintf(". Stay under %d characters. Reply with the post text only, no commentary.", rule.MaxChars))
	if tone := strings.TrimSpace(params.Tone); tone != "" {
		system.WriteString(" Write in a ")
		system.WriteString(tone)
		system.WriteString(" tone.")
	}
	if style := strings.TrimSpace(params.BrandVoiceStyle); style != "" {
		system.WriteString(" Match this brand voice: ")
		system.WriteString(style)
	}

	var user strings.Builder
	if total > 1 {
		fmt.Fprintf(&user, "This is post %d of a %d-post series; it must stand alone but continue the thread.\n\n", slot.SeriesIndex, total)
	}
	user.WriteString("Source text:\n")
	user.WriteString(params.SourceContent)
	return system.String(), user.String()
}

// BuildContentPackPrompt renders the prompts for a project's supplementary
// content pack (hooks and hashtags).
func BuildContentPackPrompt(params Params) (string, string) {
	system := "You are a social media strategist. From the source text, produce a content pack: 3 hook lines, 10 relevant hashtags, and 2 call-to-action closers. Use plain text with one section per block."
	if tone := strings.TrimSpace(params.Tone); tone != "" {
		system += " Keep a " + tone + " tone."
	}
	return system, "Source text:\n" + params.SourceContent
}
