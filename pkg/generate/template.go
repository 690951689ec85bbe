package generate

import (
	"fmt"
	"strings"
)

const templateMarker = "[draft - generation service temporarily unavailable]"

// TemplatePost is the executor's guaranteed terminal fallback: a deterministic
// local rendering that echoes a truncated excerpt of the source text. It must
// never fail.
func TemplatePost(platform, source string, slot Slot, seriesTotal int) string {
	rule := RuleFor(platform)
	excerpt := strings.TrimSpace(source)
	excerpt = strings.Join(strings.Fields(excerpt), " ")

	header := templateMarker
	if seriesTotal > 1 {
		header = fmt.Sprintf("%s (%d/%d)", templateMarker, slot.SeriesIndex, seriesTotal)
	}

	budget := rule.MaxChars - len([]rune(header)) - 2
	if budget < 0 {
		budget = 0
	}
	runes := []rune(excerpt)
	if len(runes) > budget {
		excerpt = strings.TrimSpace(string(runes[:budget]))
	}
	if excerpt == "" {
		return header
	}
	return header + "\n\n" + excerpt
}
