package generate

import "strings"

// PlatformRule bounds what a generated post may look like on one platform.
type PlatformRule struct {
	MaxChars    int
	Label       string
	AllowsLinks bool
}

var platformRules = map[string]PlatformRule{
	"twitter":   {MaxChars: 280, Label: "X (Twitter)", AllowsLinks: true},
	"threads":   {MaxChars: 500, Label: "Threads", AllowsLinks: true},
	"instagram": {MaxChars: 2200, Label: "Instagram", AllowsLinks: false},
	"tiktok":    {MaxChars: 2200, Label: "TikTok", AllowsLinks: false},
	"linkedin":  {MaxChars: 3000, Label: "LinkedIn", AllowsLinks: true},
	"facebook":  {MaxChars: 5000, Label: "Facebook", AllowsLinks: true},
}

// KnownPlatform reports whether id is a supported platform.
func KnownPlatform(id string) bool {
	_, ok := platformRules[id]
	return ok
}

// RuleFor returns the content rule for a platform, defaulting conservatively
// for unknown ids so sanitization always has a bound.
func RuleFor(id string) PlatformRule {
	if rule, ok := platformRules[id]; ok {
		return rule
	}
	return PlatformRule{MaxChars: 280, Label: id}
}

// NormalizePlatform lowercases and maps aliases onto canonical platform ids.
func NormalizePlatform(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "x" {
		return "twitter"
	}
	return id
}

// Sanitize trims the content and enforces the platform's character ceiling on
// a rune boundary.
func Sanitize(platform, content string) string {
	content = strings.TrimSpace(strings.ReplaceAll(content, "\r\n", "\n"))
	rule := RuleFor(platform)
	runes := []rune(content)
	if rule.MaxChars > 0 && len(runes) > rule.MaxChars {
		return strings.TrimSpace(string(runes[:rule.MaxChars]))
	}
	return content
}
