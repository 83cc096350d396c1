package core

import "math"

// The level curve is linear in its increments: reaching level 2 takes 1000
// cumulative XP and every further level adds 500 to the bar.
const (
	firstLevelAt  int64 = 1000
	levelStep     int64 = 500
	xpFloor       int64 = 15
	pacingBonusXP int64 = 30
)

// LevelProgress pairs a level with the first threshold not yet reached.
type LevelProgress struct {
	Level       int   `json:"level"`
	NextLevelAt int64 `json:"next_level_at"`
}

// LevelFromXP maps cumulative XP to a level. Monotonic and idempotent:
// the same XP always yields the same level.
func LevelFromXP(xp int64) LevelProgress {
	level := 1
	next := firstLevelAt
	for xp >= next {
		level++
		next += levelStep
	}
	return LevelProgress{Level: level, NextLevelAt: next}
}

// LevelFloor returns the cumulative XP at which the given level begins.
func LevelFloor(level int) int64 {
	if level <= 1 {
		return 0
	}
	return firstLevelAt + int64(level-2)*levelStep
}

// AttemptXP computes the XP awarded for one attempt. streak is the learner's
// platform-wide consecutive-success streak including this attempt; it only
// pays out once it reaches 3. The result never drops below the XP floor.
func AttemptXP(a Attempt, streak int) int64 {
	xp := int64(25)
	if a.Success {
		xp = 80
	}
	if a.Score != nil {
		xp += int64(math.Round(*a.Score * 0.5))
	}
	if a.Accuracy != nil {
		xp += int64(math.Round(*a.Accuracy * 60))
	}
	if a.TimeSpentSec != nil && *a.TimeSpentSec >= 60 && *a.TimeSpentSec <= 360 {
		xp += pacingBonusXP
	}
	if streak >= 3 {
		xp += int64(streak) * 5
	}
	if xp < xpFloor {
		xp = xpFloor
	}
	return xp
}
