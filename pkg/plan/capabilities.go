package plan

// Capabilities are the feature flags derived from the effective plan. They are
// never persisted; callers recompute them per request.
type Capabilities struct {
	CanUseAudio         bool
	CanUseSeries        bool
	CanUsePostTone      bool
	CanUseBrandVoice    bool
	MaxPostsPerPlatform int
}

var planCapabilities = map[Plan]Capabilities{
	Trial: {
		CanUseAudio:         true,
		CanUseSeries:        true,
		CanUsePostTone:      true,
		CanUseBrandVoice:    true,
		MaxPostsPerPlatform: 3,
	},
	Free: {
		MaxPostsPerPlatform: 1,
	},
	Pro: {
		CanUsePostTone:      true,
		MaxPostsPerPlatform: 1,
	},
	Max: {
		CanUseAudio:         true,
		CanUseSeries:        true,
		CanUsePostTone:      true,
		CanUseBrandVoice:    true,
		MaxPostsPerPlatform: 3,
	},
	Enterprise: {
		CanUseAudio:         true,
		CanUseSeries:        true,
		CanUsePostTone:      true,
		CanUseBrandVoice:    true,
		MaxPostsPerPlatform: 3,
	},
}

// CapabilitiesFor returns the capability set of a tier. Unknown tiers map to
// the free capabilities.
func CapabilitiesFor(p Plan) Capabilities {
	caps, ok := planCapabilities[p]
	if !ok {
		return planCapabilities[Free]
	}
	return caps
}
