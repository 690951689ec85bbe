package plan

// PlanType distinguishes text-only plans from plans with audio ingestion.
type PlanType string

const (
	TypeText      PlanType = "text"
	TypeTextAudio PlanType = "text_audio"
)

// Limits is the fixed volume envelope of one tier. Audio fields are nil for
// text-only plans.
type Limits struct {
	MaxProjects          int
	MaxOutputsPerProject int
	MaxInputChars        int
	MaxVariations        int
	AudioMinutesPerMonth *int
	MaxAudioFileBytes    *int64
	Type                 PlanType
}

func minutes(n int) *int      { return &n }
func fileBytes(n int64) *int64 { return &n }

var planLimits = map[Plan]Limits{
	Trial: {
		MaxProjects:          3,
		MaxOutputsPerProject: 12,
		MaxInputChars:        15000,
		MaxVariations:        2,
		AudioMinutesPerMonth: minutes(30),
		MaxAudioFileBytes:    fileBytes(50 * 1024 * 1024),
		Type:                 TypeTextAudio,
	},
	Free: {
		MaxProjects:          1,
		MaxOutputsPerProject: 4,
		MaxInputChars:        5000,
		MaxVariations:        1,
		Type:                 TypeText,
	},
	Pro: {
		MaxProjects:          20,
		MaxOutputsPerProject: 8,
		MaxInputChars:        25000,
		MaxVariations:        2,
		Type:                 TypeText,
	},
	Max: {
		MaxProjects:          100,
		MaxOutputsPerProject: 18,
		MaxInputChars:        50000,
		MaxVariations:        3,
		AudioMinutesPerMonth: minutes(300),
		MaxAudioFileBytes:    fileBytes(200 * 1024 * 1024),
		Type:                 TypeTextAudio,
	},
	Enterprise: {
		MaxProjects:          1000,
		MaxOutputsPerProject: 18,
		MaxInputChars:        100000,
		MaxVariations:        3,
		AudioMinutesPerMonth: minutes(1200),
		MaxAudioFileBytes:    fileBytes(500 * 1024 * 1024),
		Type:                 TypeTextAudio,
	},
}

// LimitsFor returns the volume limits of a tier. Unknown tiers get the free
// limits as a safe default.
func LimitsFor(p Plan) Limits {
	limits, ok := planLimits[p]
	if !ok {
		return planLimits[Free]
	}
	return limits
}
