package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelOfThresholds(t *testing.T) {
	cases := []struct {
		totalXP     int64
		level       int
		intoLevel   int64
		toNextLevel int64
	}{
		{0, 1, 0, 100},
		{99, 1, 99, 100},
		{100, 2, 0, 150},   // 1→2 costs 100
		{249, 2, 149, 150}, // one short of level 3
		{250, 3, 0, 200},   // 2→3 costs 150
		{449, 3, 199, 200},
		{450, 4, 0, 250},
		{-50, 1, 0, 100}, // negative treated as zero
	}
	for _, c := range cases {
		info := LevelOf(c.totalXP)
		assert.Equal(t, c.level, info.Level, "totalXP=%d", c.totalXP)
		assert.Equal(t, c.intoLevel, info.XPIntoLevel, "totalXP=%d", c.totalXP)
		assert.Equal(t, c.toNextLevel, info.XPToNextLevel, "totalXP=%d", c.totalXP)
	}
}

func TestLevelOfMonotonic(t *testing.T) {
	prev := 0
	for xp := int64(0); xp <= 300_000; xp += 37 {
		info := LevelOf(xp)
		assert.GreaterOrEqual(t, info.Level, prev, "level dropped at totalXP=%d", xp)
		prev = info.Level
	}
}

func TestLevelOfCap(t *testing.T) {
	// Cumulative cost of levels 1..99 is 99*100 + 50*(98*99/2) = 252450.
	const capXP = 252_450

	info := LevelOf(capXP - 1)
	assert.Equal(t, 99, info.Level)

	info = LevelOf(capXP)
	assert.Equal(t, MaxLevel, info.Level)
	assert.Equal(t, int64(0), info.XPIntoLevel)
	assert.Equal(t, int64(0), info.XPToNextLevel)

	// XP past the cap accumulates into the level but never levels further.
	info = LevelOf(capXP + 1_000_000)
	assert.Equal(t, MaxLevel, info.Level)
	assert.Equal(t, int64(1_000_000), info.XPIntoLevel)
	assert.Equal(t, int64(0), info.XPToNextLevel)
}
