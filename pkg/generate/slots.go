package generate

import "sort"

const (
	// MinSeriesCount and MaxSeriesCount bound how many posts a platform's
	// series may hold. Counts outside the range are clamped, not rejected.
	MinSeriesCount = 1
	MaxSeriesCount = 3
)

// Slot is the unit of generation and of persistence identity: the pair
// (platform, seriesIndex) is unique within a project.
type Slot struct {
	Platform    string `json:"platform"`
	SeriesIndex int    `json:"seriesIndex"`
}

// SeriesConfig is a project's series configuration. PerPlatform takes
// precedence over Default when non-empty.
type SeriesConfig struct {
	Default     int
	PerPlatform map[string]int
}

// Count resolves the configured post count for one platform, clamped to
// [MinSeriesCount, MaxSeriesCount] with 1 as the fallback.
func (c SeriesConfig) Count(platform string) int {
	n := c.Default
	if len(c.PerPlatform) > 0 {
		if v, ok := c.PerPlatform[platform]; ok {
			n = v
		}
	}
	return clampCount(n)
}

func clampCount(n int) int {
	if n < MinSeriesCount {
		return MinSeriesCount
	}
	if n > MaxSeriesCount {
		return MaxSeriesCount
	}
	return n
}

// ScheduleSlots expands the series configuration across the target platforms
// into the canonical ordered slot list: seriesIndex ascending, ties broken by
// platform name ascending. This ordering is observed by clients and by the
// outputs listing, so it must not change.
func ScheduleSlots(cfg SeriesConfig, platforms []string) []Slot {
	slots := make([]Slot, 0, len(platforms))
	for _, platform := range platforms {
		n := cfg.Count(platform)
		for i := 1; i <= n; i++ {
			slots = append(slots, Slot{Platform: platform, SeriesIndex: i})
		}
	}
	SortSlots(slots)
	return slots
}

// SeriesSlots rebuilds one platform's full series as slots 1..n.
func SeriesSlots(cfg SeriesConfig, platform string) []Slot {
	return ScheduleSlots(cfg, []string{platform})
}

// TailSlots emits slots from..n for one platform; slots before from stay
// untouched. An out-of-range from yields an empty list.
func TailSlots(cfg SeriesConfig, platform string, from int) []Slot {
	n := cfg.Count(platform)
	if from < MinSeriesCount || from > n {
		return nil
	}
	slots := make([]Slot, 0, n-from+1)
	for i := from; i <= n; i++ {
		slots = append(slots, Slot{Platform: platform, SeriesIndex: i})
	}
	return slots
}

// SortSlots orders slots by seriesIndex ascending then platform ascending.
func SortSlots(slots []Slot) {
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].SeriesIndex != slots[j].SeriesIndex {
			return slots[i].SeriesIndex < slots[j].SeriesIndex
		}
		return slots[i].Platform < slots[j].Platform
	})
}

// MaxPerPlatform returns the largest per-platform count among the slots.
func MaxPerPlatform(slots []Slot) int {
	counts := make(map[string]int, len(slots))
	highest := 0
	for _, s := range slots {
		counts[s.Platform]++
		if counts[s.Platform] > highest {
			highest = counts[s.Platform]
		}
	}
	return highest
}
