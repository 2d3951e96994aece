package services

// Level thresholds grow by a fixed arithmetic step: going from level L to L+1
// costs BaseLevelCost + (L-1)*LevelCostStep (1→2 costs 100, 2→3 costs 150, …),
// capped at MaxLevel. This is the single canonical formula — every call path
// derives Level from TotalXP through LevelOf.
const (
	BaseLevelCost = 100
	LevelCostStep = 50
	MaxLevel      = 100
)

// LevelInfo is the Level Model output: the level TotalXP lands on, how far
// into it the user is, and what the next level costs (0 at the cap).
type LevelInfo struct {
	Level         int   `json:"level"`
	XPIntoLevel   int64 `json:"xp_into_level"`
	XPToNextLevel int64 `json:"xp_to_next_level"`
}

// xpForNextLevel returns the XP required to go from currentLevel to the next.
func xpForNextLevel(currentLevel int) int64 {
	if currentLevel < 1 {
		currentLevel = 1
	}
	return int64(BaseLevelCost + (currentLevel-1)*LevelCostStep)
}

// LevelOf maps total XP to a level. Monotonic: more XP never means a lower
// level. Negative input is treated as zero.
func LevelOf(totalXP int64) LevelInfo {
	if totalXP < 0 {
		totalXP = 0
	}
	level := 1
	remaining := totalXP
	for level < MaxLevel && remaining >= xpForNextLevel(level) {
		remaining -= xpForNextLevel(level)
		level++
	}
	info := LevelInfo{Level: level, XPIntoLevel: remaining}
	if level < MaxLevel {
		info.XPToNextLevel = xpForNextLevel(level)
	}
	return info
}
