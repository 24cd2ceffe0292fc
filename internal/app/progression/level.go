// Package progression implements the Lumen progression engine: the
// idempotent XP ledger, level derivation, stats reconciliation, badge
// evaluation, and daily quests.
package progression

// levelThresholds is the ascending cumulative-XP table. Level N is
// reached when XP meets thresholds[N-1]; the table length caps the level.
var levelThresholds = []int64{0, 50, 200, 600, 1500, 3500, 7500}

// levelNames parallels levelThresholds one-to-one.
var levelNames = []string{
	"Seedling",
	"Sprout",
	"Sapling",
	"Bloom",
	"Grove",
	"Horizon",
	"Summit",
}

// MaxLevel is the highest reachable level.
func MaxLevel() int { return len(levelThresholds) }

// ComputeLevel maps cumulative XP to a level index: one plus the count
// of thresholds at or below the XP, capped at the table length.
// Non-decreasing in XP; level 1 at XP 0; never exceeds MaxLevel.
func ComputeLevel(xp int64) int {
	level := 0
	for _, threshold := range levelThresholds {
		if xp < threshold {
			break
		}
		level++
	}
	if level < 1 {
		level = 1
	}
	return level
}

// ComputeLevelName maps a level to its display name, clamping the index
// into [1, MaxLevel] so out-of-range input never panics.
func ComputeLevelName(level int) string {
	if level < 1 {
		level = 1
	}
	if level > len(levelNames) {
		level = len(levelNames)
	}
	return levelNames[level-1]
}
