package generate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const cacheNamespace = "gen"

// KeyParams is the ordered tuple a cache key is derived from. Any input that
// could change the generated output must appear here.
type KeyParams struct {
	UserID              string
	ProjectID           string
	Step                string
	Model               string
	Platform            string
	SourceContent       string
	Options             GenerationOptions
	BrandVoiceID        string
	BrandVoiceUpdatedAt time.Time
	Tone                string
	SeriesIndex         int
	SeriesTotal         int
}

// GenerationOptions are the request-level generation knobs that feed both the
// provider call and the cache key.
type GenerationOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"maxTokens,omitempty"`
	Variation   int     `json:"variation,omitempty"`
}

// CacheKey builds the deterministic cache key for one generation. Keys are
// namespaced by project so a project's entries can be invalidated together
// with one prefix delete.
func CacheKey(p KeyParams) string {
	tone := strings.TrimSpace(p.Tone)
	if tone == "" {
		tone = "neutral"
	}
	seriesIndex := p.SeriesIndex
	if seriesIndex < 1 {
		seriesIndex = 1
	}
	seriesTotal := p.SeriesTotal
	if seriesTotal < 1 {
		seriesTotal = 1
	}
	brandVoice := "none"
	brandVoiceModified := "none"
	if p.BrandVoiceID != "" {
		brandVoice = p.BrandVoiceID
		brandVoiceModified = p.BrandVoiceUpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	inputHash := contentHash(p.SourceContent)
	optionsHash := contentHash(fmt.Sprintf("t=%g|m=%d|v=%d", p.Options.Temperature, p.Options.MaxTokens, p.Options.Variation))

	h := sha256.New()
	for _, field := range []string{
		p.UserID,
		p.ProjectID,
		p.Step,
		p.Model,
		p.Platform,
		inputHash,
		optionsHash,
		brandVoice,
		brandVoiceModified,
		tone,
		fmt.Sprintf("%d/%d", seriesIndex, seriesTotal),
	} {
		h.Write([]byte(field))
		h.Write([]byte{0})
	}
	return ProjectKeyPrefix(p.ProjectID) + hex.EncodeToString(h.Sum(nil))
}

// ProjectKeyPrefix is the namespace prefix shared by all of a project's cache
// entries.
func ProjectKeyPrefix(projectID string) string {
	return fmt.Sprintf("%s:%s:", cacheNamespace, projectID)
}

func contentHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
